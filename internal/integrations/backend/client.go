package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
)

const DefaultBaseURL = "http://localhost:5000"

// CreateRequest is the body of POST /create-chatbot.
type CreateRequest struct {
	CompanyName string `json:"company_name"`
	WebsiteURL  string `json:"website_url"`
}

// CreateResponse is the decoded answer of POST /create-chatbot. Only Success
// and Error drive the widget; the rest is informational and decoded on a best
// effort basis.
type CreateResponse struct {
	Success       bool
	Error         string
	Message       string
	CompanyID     string // numeric or string ids both end up here
	DataExtracted *DataExtracted
}

type DataExtracted struct {
	Title          string `json:"title"`
	ServicesCount  int    `json:"services_count"`
	HasContactInfo bool   `json:"has_contact_info"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Question string `json:"question"`
}

// ChatResponse is the decoded answer of POST /chat. ResponseTimeMs and Cached
// are informational; a malformed value leaves them zero.
type ChatResponse struct {
	Success        bool
	Response       string
	ResponseTimeMs int64
	Cached         bool
	Error          string
}

// StatusResponse is the decoded answer of GET /chatbot-status.
type StatusResponse struct {
	Ready       bool
	CompanyName string
	WebsiteURL  string
	CompanyID   string
}

// HTTPStatusError is returned for non-2xx responses whose body is not JSON.
// A non-2xx response carrying a JSON body is an application-level answer and
// is decoded instead.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("backend: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client talks to the chatbot backend over JSON/HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client for DefaultBaseURL unless overridden. The default
// HTTP client has no timeout: a slow backend blocks the caller until ctx ends.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.baseURL = strings.TrimRight(c.baseURL, "/")
	if c.baseURL == "" {
		return nil, errors.New("backend: base URL must not be empty")
	}
	return c, nil
}

// BaseURL returns the normalized base address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return http.DefaultClient
}

func endpointURL(baseURL, path string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

func (c *Client) CreateChatbot(ctx context.Context, in CreateRequest) (CreateResponse, error) {
	fields, err := c.postObject(ctx, "/create-chatbot", in)
	if err != nil {
		return CreateResponse{}, fmt.Errorf("backend: create chatbot: %w", err)
	}
	var out CreateResponse
	if err := errors.Join(
		requiredField(fields, "success", &out.Success),
		requiredField(fields, "error", &out.Error),
	); err != nil {
		return CreateResponse{}, fmt.Errorf("backend: create chatbot: %w", err)
	}
	out.Message, _ = optionalField[string](fields, "message")
	out.CompanyID = idField(fields, "company_id")
	if d, ok := optionalField[DataExtracted](fields, "data_extracted"); ok {
		out.DataExtracted = &d
	}
	return out, nil
}

func (c *Client) Chat(ctx context.Context, in ChatRequest) (ChatResponse, error) {
	fields, err := c.postObject(ctx, "/chat", in)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("backend: chat: %w", err)
	}
	var out ChatResponse
	if err := errors.Join(
		requiredField(fields, "success", &out.Success),
		requiredField(fields, "response", &out.Response),
		requiredField(fields, "error", &out.Error),
	); err != nil {
		return ChatResponse{}, fmt.Errorf("backend: chat: %w", err)
	}
	if ms, ok := optionalField[float64](fields, "response_time_ms"); ok {
		out.ResponseTimeMs = int64(math.Round(ms))
	}
	out.Cached, _ = optionalField[bool](fields, "cached")
	return out, nil
}

func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	fields, err := c.getObject(ctx, "/chatbot-status")
	if err != nil {
		return StatusResponse{}, fmt.Errorf("backend: chatbot status: %w", err)
	}
	var out StatusResponse
	if err := errors.Join(
		requiredField(fields, "ready", &out.Ready),
		requiredField(fields, "company_name", &out.CompanyName),
	); err != nil {
		return StatusResponse{}, fmt.Errorf("backend: chatbot status: %w", err)
	}
	out.WebsiteURL, _ = optionalField[string](fields, "website_url")
	out.CompanyID = idField(fields, "company_id")
	return out, nil
}

// Probe fetches a diagnostic endpoint and returns whatever JSON value it
// answers with, including null.
func (c *Client) Probe(ctx context.Context, path string) (any, error) {
	raw, err := c.getJSON(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("backend: probe %s: %w", path, err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("backend: probe %s: decode response: %w", path, err)
	}
	return out, nil
}

func (c *Client) postObject(ctx context.Context, path string, in any) (map[string]json.RawMessage, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	url := endpointURL(c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	raw, err := c.doJSONRequest(req, url)
	if err != nil {
		return nil, err
	}
	return objectFields(raw)
}

func (c *Client) getObject(ctx context.Context, path string) (map[string]json.RawMessage, error) {
	raw, err := c.getJSON(ctx, path)
	if err != nil {
		return nil, err
	}
	return objectFields(raw)
}

func (c *Client) getJSON(ctx context.Context, path string) (json.RawMessage, error) {
	url := endpointURL(c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.doJSONRequest(req, url)
}

// doJSONRequest returns the raw JSON body of any response, whatever its
// status. Bodies that are not JSON fail with HTTPStatusError on non-2xx
// statuses and with a decode error otherwise.
func (c *Client) doJSONRequest(req *http.Request, url string) (json.RawMessage, error) {
	req.Header.Set("Accept", "application/json")
	res, err := c.resolvedHTTPClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	var raw json.RawMessage
	decErr := json.Unmarshal(buf, &raw)
	if decErr == nil {
		return raw, nil
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		if len(buf) > 4096 {
			buf = buf[:4096]
		}
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
		}
	}
	return nil, fmt.Errorf("decode response: %w", decErr)
}

// objectFields splits a JSON object into its members. Answers of the typed
// endpoints must be objects; null, arrays and scalars are decode errors.
func objectFields(raw json.RawMessage) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if fields == nil {
		return nil, errors.New("decode response: body is null")
	}
	return fields, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null"
}

// requiredField decodes a member that drives the widget. Absent or null
// members leave dst untouched; a wrongly typed one is an error.
func requiredField[T any](fields map[string]json.RawMessage, key string, dst *T) error {
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode response: field %q: %w", key, err)
	}
	return nil
}

// optionalField decodes an informational member, reporting false when it is
// absent, null or of an unexpected type.
func optionalField[T any](fields map[string]json.RawMessage, key string) (T, bool) {
	var zero T
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		return zero, false
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, false
	}
	return v, true
}

// idField reads an identifier sent either as a JSON number or a string.
func idField(fields map[string]json.RawMessage, key string) string {
	if s, ok := optionalField[string](fields, key); ok {
		return s
	}
	if n, ok := optionalField[json.Number](fields, key); ok {
		return n.String()
	}
	return ""
}
