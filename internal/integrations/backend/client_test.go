package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// endpointURL helper
// ---------------------------------------------------------------------------

func TestEndpointURL(t *testing.T) {
	cases := []struct {
		base string
		path string
		want string
	}{
		{"http://localhost:5000", "/chat", "http://localhost:5000/chat"},
		{"http://localhost:5000/", "/chat", "http://localhost:5000/chat"},
		{"http://api.example.com/bot", "chatbot-status", "http://api.example.com/bot/chatbot-status"},
		{"", "/", "http://localhost:5000/"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, endpointURL(tc.base, tc.path), "base=%q path=%q", tc.base, tc.path)
	}
}

// ---------------------------------------------------------------------------
// NewClient
// ---------------------------------------------------------------------------

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient()
	require.NoError(t, err)
	require.Equal(t, DefaultBaseURL, c.BaseURL())
	require.NotNil(t, c.httpClient)
	require.Zero(t, c.httpClient.Timeout)
}

func TestNewClient_TrimsBaseURL(t *testing.T) {
	c, err := NewClient(WithBaseURL(" http://example.test:8080/ "))
	require.NoError(t, err)
	require.Equal(t, "http://example.test:8080", c.BaseURL())
}

func TestNewClient_EmptyBaseURL(t *testing.T) {
	_, err := NewClient(WithBaseURL("  "))
	require.Error(t, err)
	require.Contains(t, err.Error(), "base URL")
}

// ---------------------------------------------------------------------------
// Client calls
// ---------------------------------------------------------------------------

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(
		WithBaseURL(srv.URL),
		WithHTTPClient(&http.Client{Timeout: 2 * time.Second}),
	)
	require.NoError(t, err)
	return c
}

func TestClient_CreateChatbot_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/create-chatbot", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.Empty(t, r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, map[string]string{"company_name": "Acme", "website_url": "https://acme.com"}, body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"success": true,
			"message": "Chatbot created for Acme",
			"company_id": 7,
			"data_extracted": {"title": "Acme Inc", "services_count": 3, "has_contact_info": true}
		}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	out, err := c.CreateChatbot(context.Background(), CreateRequest{CompanyName: "Acme", WebsiteURL: "https://acme.com"})
	require.NoError(t, err)
	require.True(t, out.Success)
	require.Equal(t, "Chatbot created for Acme", out.Message)
	require.Equal(t, "7", out.CompanyID)
	require.NotNil(t, out.DataExtracted)
	require.Equal(t, 3, out.DataExtracted.ServicesCount)
}

func TestClient_CreateChatbot_ApplicationErrorOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success": false, "error": "Failed to scrape website"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	out, err := c.CreateChatbot(context.Background(), CreateRequest{CompanyName: "Acme", WebsiteURL: "acme.com"})
	require.NoError(t, err)
	require.False(t, out.Success)
	require.Equal(t, "Failed to scrape website", out.Error)
}

func TestClient_Chat_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat", r.URL.Path)
		var body ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "What do you sell?", body.Question)
		_, _ = w.Write([]byte(`{"success": true, "response": "Widgets", "response_time_ms": 120, "cached": true}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	out, err := c.Chat(context.Background(), ChatRequest{Question: "What do you sell?"})
	require.NoError(t, err)
	require.Equal(t, ChatResponse{Success: true, Response: "Widgets", ResponseTimeMs: 120, Cached: true}, out)
}

func TestClient_Chat_Non200WithoutJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<html>bad gateway</html>`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Chat(context.Background(), ChatRequest{Question: "hi"})
	require.Error(t, err)

	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusBadGateway, statusErr.HTTPStatusCode())
	require.Contains(t, err.Error(), "unexpected status 502")
}

func TestClient_Chat_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not-a-json`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Chat(context.Background(), ChatRequest{Question: "hi"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode response")
}

func TestClient_Chat_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Chat(context.Background(), ChatRequest{Question: "hi"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode response")
}

func TestClient_Chat_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"success": true}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	c.httpClient = &http.Client{Timeout: 50 * time.Millisecond}
	_, err := c.Chat(context.Background(), ChatRequest{Question: "hi"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "request failed")
}

func TestClient_Chat_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Chat(ctx, ChatRequest{Question: "hi"})
	require.Error(t, err)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestClient_NetworkError(t *testing.T) {
	c, err := NewClient(
		WithBaseURL("http://127.0.0.1:1"),
		WithHTTPClient(&http.Client{Timeout: 100 * time.Millisecond}),
	)
	require.NoError(t, err)

	_, err = c.Status(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "request failed")
}

func TestClient_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chatbot-status", r.URL.Path)
		require.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`{"ready": true, "company_name": "Acme", "website_url": "https://acme.com", "company_id": 1}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	out, err := c.Status(context.Background())
	require.NoError(t, err)
	require.True(t, out.Ready)
	require.Equal(t, "Acme", out.CompanyName)
	require.Equal(t, "https://acme.com", out.WebsiteURL)
}

func TestClient_Status_NotReadyWithNullName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ready": false, "company_name": null, "website_url": null, "company_id": null}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	out, err := c.Status(context.Background())
	require.NoError(t, err)
	require.False(t, out.Ready)
	require.Empty(t, out.CompanyName)
	require.Empty(t, out.CompanyID)
}

func TestClient_Probe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/", r.URL.Path)
		_, _ = w.Write([]byte(`{"status": "online"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	out, err := c.Probe(context.Background(), "/")
	require.NoError(t, err)
	require.Equal(t, map[string]any{"status": "online"}, out)
}

func TestClient_RootAcceptsAnyJSONValue(t *testing.T) {
	cases := []struct {
		body string
		want any
	}{
		{`[1, 2, 3]`, []any{float64(1), float64(2), float64(3)}},
		{`"ok"`, "ok"},
		{`42`, float64(42)},
		{`null`, nil},
	}
	for _, tc := range cases {
		t.Run(tc.body, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := newTestClient(t, srv)
			out, err := c.Probe(context.Background(), "/")
			require.NoError(t, err)
			require.Equal(t, tc.want, out)
		})
	}
}

func TestClient_RootRejectsNonJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`online`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Probe(context.Background(), "/")
	require.Error(t, err)
	require.Contains(t, err.Error(), "probe /")
}

// ---------------------------------------------------------------------------
// Response decoding
// ---------------------------------------------------------------------------

func serveBody(t *testing.T, status int, body string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return newTestClient(t, srv)
}

func TestClient_Chat_FractionalResponseTime(t *testing.T) {
	c := serveBody(t, http.StatusOK, `{"success": true, "response": "Widgets", "response_time_ms": 120.5}`)

	out, err := c.Chat(context.Background(), ChatRequest{Question: "What do you sell?"})
	require.NoError(t, err)
	require.True(t, out.Success)
	require.Equal(t, "Widgets", out.Response)
	require.EqualValues(t, 121, out.ResponseTimeMs)
}

func TestClient_Chat_MalformedInformationalFields(t *testing.T) {
	c := serveBody(t, http.StatusOK, `{"success": true, "response": "Widgets", "response_time_ms": "fast", "cached": "yes"}`)

	out, err := c.Chat(context.Background(), ChatRequest{Question: "hi"})
	require.NoError(t, err)
	require.Equal(t, ChatResponse{Success: true, Response: "Widgets"}, out)
}

func TestClient_CreateChatbot_TolerantExtras(t *testing.T) {
	c := serveBody(t, http.StatusOK, `{"success": true, "company_id": "c-42", "data_extracted": {"services_count": "many"}}`)

	out, err := c.CreateChatbot(context.Background(), CreateRequest{CompanyName: "Acme", WebsiteURL: "https://acme.com"})
	require.NoError(t, err)
	require.True(t, out.Success)
	require.Equal(t, "c-42", out.CompanyID)
	require.Nil(t, out.DataExtracted)
}

func TestClient_Status_StringCompanyID(t *testing.T) {
	c := serveBody(t, http.StatusOK, `{"ready": true, "company_name": "Acme", "company_id": "c-42", "website_url": 7}`)

	out, err := c.Status(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusResponse{Ready: true, CompanyName: "Acme", CompanyID: "c-42"}, out)
}

func TestClient_WrongTypeForFlowField(t *testing.T) {
	c := serveBody(t, http.StatusOK, `{"success": "true", "response": "Widgets"}`)

	_, err := c.Chat(context.Background(), ChatRequest{Question: "hi"})
	require.Error(t, err)
	require.Contains(t, err.Error(), `field "success"`)
}

func TestClient_NullOrNonObjectBodyIsDecodeError(t *testing.T) {
	for _, body := range []string{`null`, ` null `, `[]`, `"ok"`} {
		t.Run(body, func(t *testing.T) {
			c := serveBody(t, http.StatusOK, body)

			_, err := c.CreateChatbot(context.Background(), CreateRequest{CompanyName: "Acme", WebsiteURL: "https://acme.com"})
			require.ErrorContains(t, err, "decode response")

			_, err = c.Chat(context.Background(), ChatRequest{Question: "hi"})
			require.ErrorContains(t, err, "decode response")

			_, err = c.Status(context.Background())
			require.ErrorContains(t, err, "decode response")
		})
	}
}

func TestClient_NullBodyOnErrorStatus(t *testing.T) {
	c := serveBody(t, http.StatusInternalServerError, `null`)

	_, err := c.Chat(context.Background(), ChatRequest{Question: "hi"})
	require.ErrorContains(t, err, "body is null")
}
