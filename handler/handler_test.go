package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"chat-widget/internal/backendtest"
	"chat-widget/internal/integrations/backend"
)

func makeEvent(method string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: method,
		Path:       "/health",
		Headers:    map[string]string{},
	}
}

func parseBody[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

func newTestHandler(t *testing.T, baseURL string) *Handler {
	t.Helper()
	c, err := backend.NewClient(
		backend.WithBaseURL(baseURL),
		backend.WithHTTPClient(&http.Client{Timeout: 2 * time.Second}),
	)
	require.NoError(t, err)
	h, err := NewHandler(c, zerolog.Nop())
	require.NoError(t, err)
	return h
}

func TestNewHandler_ValidatesDependency(t *testing.T) {
	_, err := NewHandler(nil, zerolog.Nop())
	require.Error(t, err)
}

func TestHandle_ReadyBackend(t *testing.T) {
	srv := backendtest.New(t)
	srv.SetReady("Acme", "https://acme.com")
	h := newTestHandler(t, srv.URL())

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodGet))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Headers["X-Correlation-Id"])

	out := parseBody[healthResponse](t, resp.Body)
	require.Equal(t, "online", out.Backend)
	api, ok := out.API.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "online", api["status"])
	require.Equal(t, "online", out.Chatbot)
	require.True(t, out.Ready)
	require.Equal(t, "Acme", out.CompanyName)
	require.Equal(t, "https://acme.com", out.WebsiteURL)
	require.Equal(t, 1, srv.Hits(backendtest.PathRoot))
	require.Equal(t, 1, srv.Hits(backendtest.PathStatus))
}

func TestHandle_NonObjectRootAnswer(t *testing.T) {
	srv := backendtest.New(t)
	srv.Override(backendtest.PathRoot, backendtest.Reply{Body: `["online"]`})
	h := newTestHandler(t, srv.URL())

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodGet))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := parseBody[healthResponse](t, resp.Body)
	require.Equal(t, "online", out.Backend)
	require.Equal(t, []any{"online"}, out.API)
}

func TestHandle_NotReadyBackend(t *testing.T) {
	srv := backendtest.New(t)
	h := newTestHandler(t, srv.URL())

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodGet))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := parseBody[healthResponse](t, resp.Body)
	require.Equal(t, "online", out.Chatbot)
	require.False(t, out.Ready)
	require.Empty(t, out.CompanyName)
}

func TestHandle_StatusFailureDegradesReport(t *testing.T) {
	srv := backendtest.New(t)
	srv.Override(backendtest.PathStatus, backendtest.Reply{Status: http.StatusInternalServerError, Body: "oops"})
	h := newTestHandler(t, srv.URL())

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodGet))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := parseBody[healthResponse](t, resp.Body)
	require.Equal(t, "online", out.Backend)
	require.Equal(t, "unavailable", out.Chatbot)
	require.False(t, out.Ready)
}

func TestHandle_UnreachableBackend(t *testing.T) {
	srv := backendtest.New(t)
	srv.Close()
	h := newTestHandler(t, srv.URL())

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodGet))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)

	out := parseBody[errorResponse](t, resp.Body)
	require.Equal(t, "BACKEND_UNREACHABLE", out.Error)
	require.Contains(t, out.Message, "request failed")
}

func TestHandle_RejectsNonGet(t *testing.T) {
	srv := backendtest.New(t)
	h := newTestHandler(t, srv.URL())

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost))
	require.NoError(t, err)
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	require.Zero(t, srv.TotalHits())
}

func TestHandle_UsesProvidedCorrelationID_CaseInsensitive(t *testing.T) {
	srv := backendtest.New(t)
	h := newTestHandler(t, srv.URL())

	event := makeEvent(http.MethodGet)
	event.Headers["x-correlation-id"] = "corr-123"
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "corr-123", resp.Headers["X-Correlation-Id"])
}
