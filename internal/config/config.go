// Package config loads the widget's settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	BackendURL      string        `env:"WIDGET_BACKEND_URL" envDefault:"http://localhost:5000"`
	BackendURLParam string        `env:"WIDGET_BACKEND_URL_PARAM"`
	RequestTimeout  time.Duration `env:"WIDGET_REQUEST_TIMEOUT" envDefault:"0s"`
	TranscriptTable string        `env:"WIDGET_TRANSCRIPT_TABLE"`
	LogLevel        string        `env:"WIDGET_LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"WIDGET_LOG_FORMAT" envDefault:"console"`
}

// Load reads the given dotenv files (".env" when none are given) and then
// parses the environment. Missing dotenv files are skipped. Variables already
// set in the environment win over dotenv values.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := ValidateBaseURL(c.BackendURL); err != nil {
		return err
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("config: WIDGET_REQUEST_TIMEOUT must not be negative, got %s", c.RequestTimeout)
	}
	return nil
}

// ValidateBaseURL accepts absolute http(s) URLs only.
func ValidateBaseURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return errors.New("config: backend URL must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("config: invalid backend URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("config: backend URL %q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("config: backend URL %q has no host", raw)
	}
	return nil
}
