// Package groq implements llm.Provider against Groq's OpenAI-compatible
// chat-completions API using the openai-go client.
package groq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/kbukum/ailibrary/llm"
	"github.com/kbukum/ailibrary/logger"
)

const (
	// ProviderName is the registered name for the Groq provider.
	ProviderName = "groq"

	defaultBaseURL = "https://api.groq.com/openai/v1/"
	defaultTimeout = 120 * time.Second

	// probeModel is the cheapest model used by the credential probe.
	probeModel = "llama-3.1-8b-instant"
)

// ErrNoMessages is returned when a stream is requested with an empty payload.
var ErrNoMessages = errors.New("groq: completion request has no messages")

// Config holds configuration for the Groq provider.
type Config struct {
	APIKey  string        `json:"api_key"`
	BaseURL string        `json:"base_url"`
	Timeout time.Duration `json:"timeout"`
}

// Provider implements llm.Provider using the OpenAI-compatible API.
type Provider struct {
	client *openai.Client
	log    *logger.Logger
}

// New creates a new Groq LLM provider.
func New(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(0), // retry policy belongs to callers
	)
	return &Provider{
		client: client,
		log:    logger.WithComponent("groq"),
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// Stream sends a completion request and returns a channel of streamed chunks.
// The channel is closed after the terminal chunk (done or error).
func (p *Provider) Stream(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamChunk, error) {
	if len(req.Messages) == 0 {
		return nil, ErrNoMessages
	}

	params, err := buildParams(req)
	if err != nil {
		return nil, fmt.Errorf("groq stream: build request: %w", err)
	}

	p.log.Debug("Sending streaming request", map[string]any{
		"model":    req.Model,
		"messages": len(req.Messages),
	})

	ch := make(chan llm.StreamChunk)
	go p.readStream(ctx, params, ch)
	return ch, nil
}

// readStream consumes the upstream SSE stream and forwards one chunk per
// delta. It owns closing the channel.
//
// Every send is guarded by ctx.Done: a consumer that stops reading (client
// disconnect) must not strand this goroutine, and returning runs the deferred
// Close so the upstream connection is released.
func (p *Provider) readStream(ctx context.Context, params openai.ChatCompletionNewParams, ch chan<- llm.StreamChunk) {
	defer close(ch)

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	defer func() { _ = stream.Close() }()

	for stream.Next() {
		if ctx.Err() != nil {
			return
		}

		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}

		content := chunk.Choices[0].Delta.Content
		if content == "" {
			continue
		}

		select {
		case ch <- llm.StreamChunk{Content: content}:
		case <-ctx.Done():
			return
		}
	}

	if ctx.Err() != nil {
		return
	}
	if err := stream.Err(); err != nil {
		select {
		case ch <- llm.StreamChunk{Err: fmt.Errorf("groq stream: %w", err)}:
		case <-ctx.Done():
		}
		return
	}

	select {
	case ch <- llm.StreamChunk{Done: true}:
		p.log.Debug("Stream completed")
	case <-ctx.Done():
	}
}

// ValidateCredentials issues a one-token completion to confirm the API key
// is accepted. Startup diagnostic only.
func (p *Provider) ValidateCredentials(ctx context.Context) bool {
	_, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.F(probeModel),
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.UserMessage("Hi"),
		}),
		MaxTokens: openai.Int(1),
	})
	if err != nil {
		p.log.WithError(err).Error("Credential validation failed")
		return false
	}
	return true
}

// buildParams maps the universal request onto the OpenAI wire format.
func buildParams(req llm.CompletionRequest) (openai.ChatCompletionNewParams, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case "user":
			msgs = append(msgs, openai.UserMessage(m.Content))
		case "assistant":
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			return openai.ChatCompletionNewParams{}, fmt.Errorf("unsupported role %q", m.Role)
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.F(req.Model),
		Messages:    openai.F(msgs),
		N:           openai.Int(1),
		Temperature: openai.Float(req.Temperature),
		TopP:        openai.Float(req.TopP),
		MaxTokens:   openai.Int(int64(req.MaxTokens)),
	}
	if len(req.Stop) > 0 {
		params.Stop = openai.F[openai.ChatCompletionNewParamsStopUnion](
			openai.ChatCompletionNewParamsStopArray(req.Stop),
		)
	}
	return params, nil
}
