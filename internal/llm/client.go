// Package llm wraps an OpenAI-compatible chat-completions endpoint behind a
// small Completer interface.
//
// The client sends exactly one request per call (system instruction plus one
// user message) and returns the text of the first choice. Non-2xx responses
// are surfaced as *StatusError so callers can classify them by HTTP status
// without depending on the wire library. Transport failures and deadline
// expiry are returned as plain wrapped errors (status 0).
//
// Retries are disabled: the go-openai client never retries on its own, and
// this package adds none.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "google/gemini-2.5-flash"

// Completer issues a single chat completion.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Config holds connection settings for an OpenAI-compatible gateway.
type Config struct {
	APIKey  string
	BaseURL string // e.g. https://ai.gateway.example/v1
	Model   string

	// HTTPClient overrides the transport (tests, proxies). Optional.
	HTTPClient *http.Client
}

// StatusError is a non-success HTTP response from the completion endpoint.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("llm: upstream status %d", e.StatusCode)
	}
	return fmt.Sprintf("llm: upstream status %d: %s", e.StatusCode, e.Message)
}

// ErrEmptyResponse is returned when the endpoint answers 2xx with no choices.
var ErrEmptyResponse = errors.New("llm: response contained no choices")

// Client is a Completer backed by github.com/sashabaranov/go-openai.
type Client struct {
	api   *openai.Client
	model string

	// Observe, when set, is called once per request with the outcome status
	// ("ok", the HTTP status code, or "error") and the elapsed time.
	Observe func(status string, elapsed time.Duration)
}

// New builds a Client. The API key is sent as a bearer token.
func New(cfg Config) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		oc.BaseURL = base
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		api:   openai.NewClientWithConfig(oc),
		model: model,
	}
}

// Model reports the model name sent with every request.
func (c *Client) Model() string { return c.model }

// Complete sends one chat completion and returns the first choice's content.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	ctx, span := otel.Tracer("llm/Client").Start(ctx, "Complete",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("llm.model", c.model)),
	)
	defer span.End()

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		err = classify(err)
		status := "error"
		var se *StatusError
		if errors.As(err, &se) {
			status = fmt.Sprint(se.StatusCode)
			span.SetAttributes(attribute.Int("http.status_code", se.StatusCode))
		}
		c.observe(status, elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		zerolog.Ctx(ctx).Debug().Err(err).Dur("elapsed", elapsed).Msg("llm completion failed")
		return "", err
	}
	c.observe("ok", elapsed)

	if len(resp.Choices) == 0 {
		span.SetStatus(codes.Error, ErrEmptyResponse.Error())
		return "", ErrEmptyResponse
	}
	span.SetAttributes(attribute.String("llm.finish_reason", string(resp.Choices[0].FinishReason)))
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) observe(status string, d time.Duration) {
	if c.Observe != nil {
		c.Observe(status, d)
	}
}

// classify converts go-openai error types into *StatusError when an HTTP
// status is known. Anything else is wrapped unchanged.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &StatusError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		msg := ""
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &StatusError{StatusCode: reqErr.HTTPStatusCode, Message: msg}
	}
	return fmt.Errorf("llm: request failed: %w", err)
}
