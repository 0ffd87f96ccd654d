package chat

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"supernomad/internal/platform/config"
	dErrors "supernomad/pkg/domain-errors"
	"supernomad/pkg/platform/circuit"
)

// ErrNotConfigured is returned when no gateway URL was supplied.
var ErrNotConfigured = dErrors.New(dErrors.CodeUnavailable, "chat assistant is not configured")

// Stream is an open gateway response. Callers must close Body.
type Stream struct {
	ContentType string
	Body        io.ReadCloser
}

type completionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// Client forwards conversations to the LLM gateway.
type Client struct {
	http      *resty.Client
	url       string
	model     string
	knowledge string
	breaker   *circuit.Breaker
	logger    *slog.Logger
}

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) {
		if b != nil {
			c.breaker = b
		}
	}
}

// New builds a client from cfg. A client without a gateway URL is valid but
// every call fails with ErrNotConfigured.
func New(cfg config.Chat, opts ...Option) (*Client, error) {
	knowledge, err := KnowledgeBase()
	if err != nil {
		return nil, fmt.Errorf("load knowledge base: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	// The timeout covers dialing and waiting for response headers only. A
	// client-wide timeout would also cut the streamed body; that is bounded
	// by the request context instead.
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext
	transport.TLSHandshakeTimeout = timeout
	transport.ResponseHeaderTimeout = timeout

	c := &Client{
		http: resty.New().
			SetTransport(transport).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "text/event-stream"),
		url:       cfg.GatewayURL,
		model:     cfg.Model,
		knowledge: knowledge,
		breaker:   circuit.New("chat-gateway"),
		logger:    slog.Default(),
	}
	if cfg.GatewayKey != "" {
		c.http.SetAuthToken(cfg.GatewayKey)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Configured() bool { return c.url != "" }

// Stream validates req, prepends the system prompt and opens a streaming
// completion against the gateway.
func (c *Client) Stream(ctx context.Context, req Request) (*Stream, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !c.breaker.Allow() {
		return nil, dErrors.New(dErrors.CodeUnavailable, "chat assistant is temporarily unavailable")
	}

	messages := make([]Message, 0, len(req.Messages)+1)
	messages = append(messages, Message{Role: roleSystem, Content: SystemPrompt(c.knowledge, req.UserContext)})
	messages = append(messages, req.Messages...)

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(completionRequest{Model: c.model, Messages: messages, Stream: true}).
		SetDoNotParseResponse(true).
		Post(c.url)
	if err != nil {
		c.failure(ctx, err)
		if ctx.Err() != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "chat gateway request canceled")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "chat gateway unreachable")
	}

	body := resp.RawBody()
	switch status := resp.StatusCode(); {
	case status == http.StatusOK:
		c.breaker.RecordSuccess()
		return &Stream{ContentType: resp.Header().Get("Content-Type"), Body: body}, nil
	case status == http.StatusTooManyRequests:
		body.Close()
		return nil, dErrors.New(dErrors.CodeUnavailable, "chat assistant is rate limited, try again shortly")
	case status >= http.StatusInternalServerError:
		detail, _ := io.ReadAll(io.LimitReader(body, 512))
		body.Close()
		err := fmt.Errorf("gateway status %d: %s", status, detail)
		c.failure(ctx, err)
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "chat gateway failed")
	default:
		detail, _ := io.ReadAll(io.LimitReader(body, 512))
		body.Close()
		c.logger.WarnContext(ctx, "chat gateway rejected request",
			"status", status,
			"detail", string(detail),
		)
		return nil, dErrors.New(dErrors.CodeInternal, fmt.Sprintf("chat gateway rejected request with status %d", status))
	}
}

func (c *Client) failure(ctx context.Context, err error) {
	_, change := c.breaker.RecordFailure()
	c.logger.WarnContext(ctx, "chat gateway call failed",
		"error", err,
		"breaker_opened", change.Opened,
	)
}
