package main

import (
	"context"
	"io"
	"net/http"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"chat-widget/internal/config"
	"chat-widget/internal/integrations/backend"
	"chat-widget/internal/integrations/paramstore"
	"chat-widget/internal/logging"
	"chat-widget/internal/render"
	"chat-widget/internal/repository"
	"chat-widget/internal/session"
	"chat-widget/internal/usecase"
)

// rootFlags holds the persistent flags. Empty values fall back to config.
type rootFlags struct {
	backendURL string
	logLevel   string
	logFormat  string
	envFile    string
}

// app is the wiring shared by every subcommand.
type app struct {
	cfg     config.Config
	logger  zerolog.Logger
	client  *backend.Client
	store   *repository.Client
	out     io.Writer
	errOut  io.Writer
	loadAWS func(ctx context.Context) (awsClients, error)
}

type awsClients struct {
	ssm    *awsssm.Client
	dynamo *awsdynamodb.Client
}

func loadAWSClients(ctx context.Context) (awsClients, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return awsClients{}, errors.Wrap(err, "load AWS config")
	}
	return awsClients{
		ssm:    awsssm.NewFromConfig(cfg),
		dynamo: awsdynamodb.NewFromConfig(cfg),
	}, nil
}

func newApp(cmd *cobra.Command, flags *rootFlags, out, errOut io.Writer, logOut io.Writer) (*app, error) {
	var files []string
	if flags.envFile != "" {
		files = append(files, flags.envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	if flags.backendURL != "" {
		if err := config.ValidateBaseURL(flags.backendURL); err != nil {
			return nil, errors.Wrap(err, "--backend-url")
		}
		cfg.BackendURL = flags.backendURL
		cfg.BackendURLParam = ""
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.LogFormat = flags.logFormat
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, logOut)
	if err != nil {
		return nil, errors.Wrap(err, "create logger")
	}

	a := &app{cfg: cfg, logger: logger, out: out, errOut: errOut, loadAWS: loadAWSClients}
	ctx := cmd.Context()

	baseURL := cfg.BackendURL
	if cfg.BackendURLParam != "" || cfg.TranscriptTable != "" {
		clients, err := a.loadAWS(ctx)
		if err != nil {
			return nil, err
		}
		if cfg.BackendURLParam != "" {
			params, err := paramstore.New(clients.ssm)
			if err != nil {
				return nil, errors.Wrap(err, "create parameter store client")
			}
			baseURL, err = params.ResolveBackendURL(ctx, cfg.BackendURLParam, cfg.BackendURL)
			if err != nil {
				return nil, err
			}
			if err := config.ValidateBaseURL(baseURL); err != nil {
				return nil, errors.Wrapf(err, "parameter %s", cfg.BackendURLParam)
			}
		}
		if cfg.TranscriptTable != "" {
			a.store, err = repository.New(clients.dynamo, cfg.TranscriptTable)
			if err != nil {
				return nil, errors.Wrap(err, "create transcript store")
			}
		}
	}

	a.client, err = backend.NewClient(
		backend.WithBaseURL(baseURL),
		backend.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create backend client")
	}
	logger.Debug().Str("backend_url", a.client.BaseURL()).Bool("transcripts", a.store != nil).Msg("widget configured")
	return a, nil
}

// controller builds a Controller over v, recording turns when a transcript
// table is configured.
func (a *app) controller(v render.View, opts ...usecase.Option) (*usecase.Controller, error) {
	opts = append([]usecase.Option{usecase.WithLogger(a.logger)}, opts...)
	if a.store != nil {
		opts = append(opts, usecase.WithRecorder(a.store))
	}
	ctrl, err := usecase.NewController(a.client, session.New(), v, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create controller")
	}
	return ctrl, nil
}
