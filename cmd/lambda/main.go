package main

import (
	"context"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog"

	"chat-widget/handler"
	"chat-widget/internal/config"
	"chat-widget/internal/integrations/backend"
	"chat-widget/internal/integrations/paramstore"
	"chat-widget/internal/logging"
)

func main() {
	ctx := context.Background()

	// Used until the configured logger exists.
	boot := zerolog.New(os.Stderr).With().Timestamp().Logger()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		boot.Fatal().Err(err).Msg("failed to load config")
	}
	logger, err := logging.New(cfg.LogLevel, logging.FormatJSON, os.Stdout)
	if err != nil {
		boot.Fatal().Err(err).Str("log_level", cfg.LogLevel).Msg("failed to create logger")
	}

	// ---- AWS SDK config ----
	baseURL := cfg.BackendURL
	if cfg.BackendURLParam != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to load AWS config")
		}
		params, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create SSM client")
		}
		baseURL, err = params.ResolveBackendURL(ctx, cfg.BackendURLParam, cfg.BackendURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to resolve backend URL")
		}
		if err := config.ValidateBaseURL(baseURL); err != nil {
			logger.Fatal().Err(err).Msg("invalid backend URL parameter")
		}
	}

	// ---- Clients ----
	client, err := backend.NewClient(
		backend.WithBaseURL(baseURL),
		backend.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create backend client")
	}

	// ---- Handler ----
	h, err := handler.NewHandler(client, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create handler")
	}

	lambda.Start(h.Handle)
}
