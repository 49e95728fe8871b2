package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"chat-widget/internal/integrations/backend"
)

const (
	headerCorrelationID = "X-Correlation-Id"

	errorMethodNotAllowed    = "METHOD_NOT_ALLOWED"
	errorBackendUnreachable  = "BACKEND_UNREACHABLE"
	statusOnline             = "online"
	statusChatbotUnavailable = "unavailable"
)

// Prober is the part of the backend client the health check needs.
type Prober interface {
	Probe(ctx context.Context, path string) (any, error)
	Status(ctx context.Context) (backend.StatusResponse, error)
}

type Handler struct {
	prober Prober
	logger zerolog.Logger
}

type healthResponse struct {
	Backend     string `json:"backend"`
	API         any    `json:"api,omitempty"`
	Chatbot     string `json:"chatbot"`
	Ready       bool   `json:"ready"`
	CompanyName string `json:"companyName,omitempty"`
	WebsiteURL  string `json:"websiteUrl,omitempty"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func NewHandler(p Prober, logger zerolog.Logger) (*Handler, error) {
	if p == nil {
		return nil, errors.New("handler: prober must not be nil")
	}
	return &Handler{prober: p, logger: logger}, nil
}

// Handle serves GET requests with a health report of the chatbot backend. The
// root probe and the status check run concurrently; only an unreachable root
// fails the request.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := correlationID(req.Headers)
	log := h.logger.With().Str("correlation_id", corrID).Logger()

	if req.HTTPMethod != http.MethodGet {
		return respond(corrID, http.StatusMethodNotAllowed, errorResponse{Error: errorMethodNotAllowed}), nil
	}

	var (
		api    any
		status backend.StatusResponse
		stErr  error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := h.prober.Probe(gctx, "/")
		if err != nil {
			return err
		}
		api = out
		return nil
	})
	g.Go(func() error {
		// A failed status check only degrades the report.
		status, stErr = h.prober.Status(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("backend unreachable")
		return respond(corrID, http.StatusBadGateway, errorResponse{
			Error:   errorBackendUnreachable,
			Message: err.Error(),
		}), nil
	}

	out := healthResponse{Backend: statusOnline, API: api, Chatbot: statusChatbotUnavailable}
	if stErr != nil {
		log.Warn().Err(stErr).Msg("chatbot status check failed")
	} else {
		out.Chatbot = statusOnline
		out.Ready = status.Ready
		out.CompanyName = status.CompanyName
		out.WebsiteURL = status.WebsiteURL
	}
	log.Info().Bool("ready", out.Ready).Str("chatbot", out.Chatbot).Msg("health check complete")
	return respond(corrID, http.StatusOK, out), nil
}

func correlationID(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, headerCorrelationID) && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return uuid.NewString()
}

func respond(corrID string, status int, body any) events.APIGatewayProxyResponse {
	raw, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		raw = []byte(`{"error":"INTERNAL"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":      "application/json",
			headerCorrelationID: corrID,
		},
		Body: string(raw),
	}
}
