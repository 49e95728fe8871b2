package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"chat-widget/internal/render"
	"chat-widget/internal/tui"
	"chat-widget/internal/usecase"
)

type cli struct {
	flags  rootFlags
	out    io.Writer
	errOut io.Writer
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	c := &cli{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:           "widget",
		Short:         "Chat with a company's website-trained chatbot",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&c.flags.backendURL, "backend-url", "", "chatbot backend base URL (overrides WIDGET_BACKEND_URL)")
	pf.StringVar(&c.flags.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	pf.StringVar(&c.flags.logFormat, "log-format", "", "log format: console or json")
	pf.StringVar(&c.flags.envFile, "env-file", "", "dotenv file to load (default .env)")

	root.AddCommand(
		c.chatCmd(),
		c.createCmd(),
		c.askCmd(),
		c.statusCmd(),
		c.probeCmd(),
		c.historyCmd(),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command, logOut io.Writer) (*app, error) {
	return newApp(cmd, &c.flags, c.out, c.errOut, logOut)
}

func (c *cli) chatCmd() *cobra.Command {
	var logFile string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the interactive chat widget",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logOut := io.Discard
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return errors.Wrap(err, "open log file")
				}
				defer f.Close()
				logOut = f
			}
			a, err := c.setup(cmd, logOut)
			if err != nil {
				return err
			}
			doc := render.NewDocument()
			ctrl, err := a.controller(doc)
			if err != nil {
				return err
			}
			return errors.Wrap(tui.Run(cmd.Context(), ctrl, doc), "run chat")
		},
	}
	cmd.Flags().StringVar(&logFile, "log-file", "", "append logs to this file (logs are discarded otherwise)")
	return cmd
}

func (c *cli) createCmd() *cobra.Command {
	var company, site string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a chatbot from a company website",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.setup(cmd, c.errOut)
			if err != nil {
				return err
			}
			ctrl, err := a.controller(render.NewTerminal(a.out))
			if err != nil {
				return err
			}
			return ctrl.CreateChatbot(cmd.Context(), usecase.CreateInput{CompanyName: company, WebsiteURL: site})
		},
	}
	cmd.Flags().StringVar(&company, "company", "", "company name")
	cmd.Flags().StringVar(&site, "url", "", "company website URL")
	return cmd
}

func (c *cli) askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the current chatbot one question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.setup(cmd, c.errOut)
			if err != nil {
				return err
			}
			ctrl, err := a.controller(render.NewTerminal(a.out))
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			// Adopt the backend's session before sending.
			ctrl.CheckChatbotStatus(ctx)
			return ctrl.SendMessage(ctx, strings.Join(args, " "))
		},
	}
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the backend holds a chatbot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.setup(cmd, c.errOut)
			if err != nil {
				return err
			}
			ctrl, err := a.controller(render.NewTerminal(a.out))
			if err != nil {
				return err
			}
			if !ctrl.CheckChatbotStatus(cmd.Context()) {
				fmt.Fprintln(a.out, "No chatbot yet. Create one with: widget create --company NAME --url URL")
			}
			return nil
		},
	}
}

func (c *cli) probeCmd() *cobra.Command {
	var diagnostics bool
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check that the backend is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.setup(cmd, c.errOut)
			if err != nil {
				return err
			}
			paths := []string{"/"}
			if diagnostics {
				paths = append(paths, "/test-ai", "/test-db")
			}

			var failed []string
			for _, p := range paths {
				data, err := a.client.Probe(cmd.Context(), p)
				if err != nil {
					a.logger.Debug().Err(err).Str("path", p).Msg("probe failed")
					fmt.Fprintf(a.out, "GET %s: %s\n", p, render.SanitizeTerminal(err.Error()))
					failed = append(failed, p)
					continue
				}
				raw, err := json.Marshal(data)
				if err != nil {
					return errors.Wrapf(err, "encode %s response", p)
				}
				fmt.Fprintf(a.out, "GET %s: %s\n", p, render.SanitizeTerminal(string(raw)))
			}
			if len(failed) > 0 {
				return errors.Errorf("backend at %s failed %s", a.client.BaseURL(), strings.Join(failed, ", "))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&diagnostics, "diagnostics", false, "also probe the backend's AI and database checks")
	return cmd
}

func (c *cli) historyCmd() *cobra.Command {
	var (
		company string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print recorded chat turns for a company",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(company) == "" {
				return errors.New("--company is required")
			}
			a, err := c.setup(cmd, c.errOut)
			if err != nil {
				return err
			}
			if a.store == nil {
				return errors.New("history needs WIDGET_TRANSCRIPT_TABLE to be set")
			}
			turns, err := a.store.ListTurns(cmd.Context(), company, limit)
			if err != nil {
				return errors.Wrap(err, "list turns")
			}
			if len(turns) == 0 {
				fmt.Fprintf(a.out, "No recorded turns for %s.\n", render.SanitizeTerminal(company))
				return nil
			}
			for _, t := range turns {
				fmt.Fprintf(a.out, "%s  👤 %s\n", t.CreatedAt.Local().Format("2006-01-02 15:04:05"), render.SanitizeTerminal(t.Question))
				fmt.Fprintf(a.out, "%19s  🤖 %s (%s, %dms)\n", "", render.SanitizeTerminal(t.Answer), t.Outcome, t.ClientElapsed.Milliseconds())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&company, "company", "", "company name")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of turns")
	return cmd
}
