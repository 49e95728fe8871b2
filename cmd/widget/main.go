package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"

	"chat-widget/internal/usecase"
)

func main() {
	root := newRootCmd(os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		// Widget errors were already shown through the view.
		var uerr *usecase.Error
		if !errors.As(err, &uerr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
