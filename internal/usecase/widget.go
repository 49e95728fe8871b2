package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"chat-widget/internal/domain"
	"chat-widget/internal/integrations/backend"
	"chat-widget/internal/render"
	"chat-widget/internal/session"
)

// ErrorBannerDelay is how long an error banner stays up.
const ErrorBannerDelay = 5 * time.Second

const (
	msgConnected        = "✅ Connected to API successfully!"
	msgMissingFields    = "Please enter both company name and website URL"
	msgCreateFailed     = "Failed to create chatbot"
	msgNotReady         = "Please create a chatbot first by entering a company URL above"
	msgChatFailed       = "Sorry, I couldn't process your question. Please try again."
	msgUnknownChatError = "unknown error"
)

type Backend interface {
	BaseURL() string
	CreateChatbot(ctx context.Context, in backend.CreateRequest) (backend.CreateResponse, error)
	Chat(ctx context.Context, in backend.ChatRequest) (backend.ChatResponse, error)
	Status(ctx context.Context) (backend.StatusResponse, error)
	Probe(ctx context.Context, path string) (any, error)
}

// TranscriptRecorder receives every completed chat turn.
type TranscriptRecorder interface {
	SaveTurn(ctx context.Context, turn domain.Turn) error
}

// CreateInput is the content of the provisioning form.
type CreateInput struct {
	CompanyName string
	WebsiteURL  string
}

// Controller implements the widget's command handlers on top of a backend,
// the session state and a view.
type Controller struct {
	backend  Backend
	state    *session.State
	view     render.View
	recorder TranscriptRecorder
	logger   zerolog.Logger

	now       func() time.Time
	afterFunc func(time.Duration, func())
	newID     func() string

	creating atomic.Bool
	sending  atomic.Bool
}

type Option func(*Controller)

func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithRecorder enables transcript recording. Recording failures are logged
// and never shown.
func WithRecorder(r TranscriptRecorder) Option {
	return func(c *Controller) { c.recorder = r }
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithAfterFunc replaces the one-shot timer used to hide error banners.
func WithAfterFunc(fn func(time.Duration, func())) Option {
	return func(c *Controller) { c.afterFunc = fn }
}

func NewController(b Backend, s *session.State, v render.View, opts ...Option) (*Controller, error) {
	if b == nil {
		return nil, errors.New("usecase: backend must not be nil")
	}
	if s == nil {
		return nil, errors.New("usecase: session state must not be nil")
	}
	if v == nil {
		return nil, errors.New("usecase: view must not be nil")
	}
	c := &Controller{
		backend: b,
		state:   s,
		view:    v,
		logger:  zerolog.Nop(),
		now:     time.Now,
		afterFunc: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
		newID: newUUID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Start runs the load-time work: a background connectivity probe and a status
// check that resumes a session the backend already holds.
func (c *Controller) Start(ctx context.Context) bool {
	go c.TestAPIConnection(ctx)
	return c.CheckChatbotStatus(ctx)
}

func (c *Controller) CreateChatbot(ctx context.Context, in CreateInput) error {
	if !c.creating.CompareAndSwap(false, true) {
		c.logger.Debug().Msg("create already in flight, ignoring")
		return nil
	}
	defer c.creating.Store(false)

	company := strings.TrimSpace(in.CompanyName)
	site := strings.TrimSpace(in.WebsiteURL)
	if company == "" || site == "" {
		c.showError(msgMissingFields)
		return newError(ErrorInvalidInput, "missing_fields", nil)
	}

	c.view.SetLoading(render.ControlCreate, true)
	defer c.view.SetLoading(render.ControlCreate, false)
	c.view.HideStatus()

	res, err := c.backend.CreateChatbot(ctx, backend.CreateRequest{CompanyName: company, WebsiteURL: site})
	if err != nil {
		c.logger.Error().Err(err).Str("company", company).Msg("error creating chatbot")
		c.showError(fmt.Sprintf("Failed to connect to server. Make sure the backend is running at %s.", c.backend.BaseURL()))
		return newError(ErrorTransport, "create_request_failed", err)
	}
	if !res.Success {
		reason := res.Error
		if reason == "" {
			reason = msgCreateFailed
		}
		c.showError(reason)
		return newError(ErrorApplication, "create_rejected", errors.New(reason))
	}

	c.state.MarkReady(company, site)
	c.view.ShowStatus(msgConnected, render.BannerSuccess)
	c.view.SetChatStatus(readyText(company))
	c.view.AppendMessage(domain.BotMessage(greeting(company)))
	c.view.ClearCreateForm()

	ev := c.logger.Info().Str("company", company).Str("website_url", site).Str("message", res.Message)
	if res.CompanyID != "" {
		ev = ev.Str("company_id", res.CompanyID)
	}
	if d := res.DataExtracted; d != nil {
		ev = ev.Str("title", d.Title).Int("services_count", d.ServicesCount).Bool("has_contact_info", d.HasContactInfo)
	}
	ev.Msg("chatbot created")
	return nil
}

func (c *Controller) SendMessage(ctx context.Context, question string) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil
	}
	if !c.state.Ready() {
		c.showError(msgNotReady)
		return newError(ErrorNotReady, "session_not_ready", nil)
	}
	if !c.sending.CompareAndSwap(false, true) {
		c.logger.Debug().Msg("send already in flight, ignoring")
		return nil
	}

	turn, err := c.exchange(ctx, question)
	c.record(ctx, turn)
	return err
}

// exchange runs one question/answer round trip. The send control is disabled
// for its whole duration.
func (c *Controller) exchange(ctx context.Context, question string) (domain.Turn, error) {
	defer c.sending.Store(false)

	c.view.AppendMessage(domain.UserMessage(question))
	c.view.ClearMessageInput()
	typingID := "typing-" + c.newID()
	c.view.AddTypingIndicator(typingID)
	c.view.SetEnabled(render.ControlSend, false)
	defer func() {
		c.view.SetEnabled(render.ControlSend, true)
		c.view.FocusMessageInput()
	}()

	start := c.now()
	turn := domain.Turn{
		ID:          c.newID(),
		CompanyName: c.state.CompanyName(),
		Question:    question,
		CreatedAt:   start.UTC(),
	}

	res, err := c.backend.Chat(ctx, backend.ChatRequest{Question: question})
	elapsed := c.now().Sub(start)
	turn.ClientElapsed = elapsed
	c.view.RemoveTypingIndicator(typingID)

	if err != nil {
		c.logger.Error().Err(err).Msg("error sending message")
		c.view.AppendMessage(domain.BotMessage(msgChatFailed))
		turn.Outcome = domain.OutcomeTransport
		turn.Answer = msgChatFailed
		return turn, newError(ErrorTransport, "chat_request_failed", err)
	}
	if !res.Success {
		reason := res.Error
		if reason == "" {
			reason = msgUnknownChatError
		}
		text := "Sorry, I encountered an error: " + reason
		c.view.AppendMessage(domain.BotMessage(text))
		turn.Outcome = domain.OutcomeRejected
		turn.Answer = text
		return turn, newError(ErrorApplication, "chat_rejected", errors.New(reason))
	}

	c.view.AppendMessage(domain.TimedBotMessage(res.Response, elapsed))
	c.logger.Debug().
		Int64("response_time_ms", res.ResponseTimeMs).
		Int64("total_ms", elapsed.Milliseconds()).
		Bool("cached", res.Cached).
		Msg("chat response received")

	turn.Outcome = domain.OutcomeAnswered
	turn.Answer = res.Response
	turn.ServerResponseTime = res.ResponseTimeMs
	turn.Cached = res.Cached
	return turn, nil
}

func (c *Controller) record(ctx context.Context, turn domain.Turn) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.SaveTurn(ctx, turn); err != nil {
		c.logger.Warn().Err(err).Str("turn_id", turn.ID).Msg("failed to record chat turn")
	}
}

// CheckChatbotStatus adopts a session the backend already holds. Failures are
// expected when no chatbot exists yet and are only logged.
func (c *Controller) CheckChatbotStatus(ctx context.Context) bool {
	res, err := c.backend.Status(ctx)
	if err != nil {
		c.logger.Debug().Err(err).Msg("no existing chatbot found")
		return c.state.Ready()
	}
	if !res.Ready {
		c.logger.Debug().Msg("backend has no chatbot yet")
		return c.state.Ready()
	}

	c.state.MarkReady(res.CompanyName, res.WebsiteURL)
	c.view.SetChatStatus(readyText(res.CompanyName))
	c.view.ShowStatus(msgConnected, render.BannerSuccess)
	c.logger.Info().Str("company", res.CompanyName).Msg("resumed existing chatbot")
	return true
}

// TestAPIConnection probes the backend root for diagnostics. Nothing reaches
// the view.
func (c *Controller) TestAPIConnection(ctx context.Context) {
	data, err := c.backend.Probe(ctx, "/")
	if err != nil {
		c.logger.Warn().Err(err).Str("backend_url", c.backend.BaseURL()).Msg("API not reachable, make sure the backend is running")
		return
	}
	c.logger.Info().Interface("api_status", data).Msg("API status")
}

func (c *Controller) showError(text string) {
	c.view.ShowStatus("❌ "+text, render.BannerError)
	c.afterFunc(ErrorBannerDelay, c.view.HideStatus)
}

func readyText(company string) string {
	return fmt.Sprintf("Chatbot ready for %s", company)
}

func greeting(company string) string {
	return fmt.Sprintf("Great! I've analyzed %s's website. Ask me anything about the company!", company)
}

var newUUID = func() string {
	return uuid.NewString()
}
