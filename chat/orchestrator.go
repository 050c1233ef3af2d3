package chat

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/ailibrary/errors"
	"github.com/kbukum/ailibrary/llm"
	"github.com/kbukum/ailibrary/logger"
	"github.com/kbukum/ailibrary/observability"
	"github.com/kbukum/ailibrary/store"
)

// ContextWindow is the number of trailing stored messages included as model
// context on each turn.
const ContextWindow = 20

// Transport delivers stream events to the client. The SSE implementation
// lives in the server package; tests substitute their own.
type Transport interface {
	// SendMeta announces the conversation id and model before any content.
	SendMeta(conversationID, model string) error
	// SendFragment delivers one content fragment.
	SendFragment(content string) error
	// SendDone terminates a successful stream.
	SendDone() error
	// SendError terminates a failed stream with a client-safe message.
	SendError(message string) error
}

// Orchestrator drives one chat turn: resolve context, stream the completion,
// persist the finished turn.
type Orchestrator struct {
	provider llm.Provider
	store    store.Store
	metrics  *observability.ChatMetrics
	log      *logger.Logger
}

// NewOrchestrator wires a provider and a conversation store.
func NewOrchestrator(provider llm.Provider, st store.Store) *Orchestrator {
	return &Orchestrator{
		provider: provider,
		store:    st,
		log:      logger.WithComponent("chat.orchestrator"),
	}
}

// WithMetrics attaches chat stream instruments. Nil-safe: without them the
// orchestrator records nothing.
func (o *Orchestrator) WithMetrics(m *observability.ChatMetrics) *Orchestrator {
	o.metrics = m
	return o
}

// Run executes a chat turn over the given transport.
//
// A non-nil return means the completion never started and no stream bytes
// were written; the caller still owns the response and should reply with a
// plain error. Once SendMeta has gone out, all failures are delivered
// in-stream as error events and Run returns nil.
func (o *Orchestrator) Run(ctx context.Context, req Request, t Transport) error {
	ctx, span := observability.StartSpan(ctx, "chat.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("chat.model", string(req.Model)),
		attribute.Bool("chat.save_conversation", req.SaveConversation),
	)
	started := time.Now()

	conversationID, history, err := o.resolveContext(ctx, req)
	if err != nil {
		return err
	}

	creq := o.buildCompletionRequest(req, history)

	// Opening the provider stream before touching the transport keeps
	// synchronous provider failures out of the SSE body.
	chunks, err := o.provider.Stream(ctx, creq)
	if err != nil {
		o.log.WithError(err).Error("Provider stream failed to start", map[string]any{
			"model": string(req.Model),
		})
		return errors.Provider(err)
	}

	if err := t.SendMeta(conversationID, string(req.Model)); err != nil {
		o.log.WithError(err).Warn("Client gone before stream start")
		return nil
	}

	if o.metrics != nil {
		o.metrics.RecordStreamStart(ctx)
	}

	var accumulated string
	fragments := 0

	finish := func(status string) {
		span.SetAttributes(attribute.Int("chat.fragments", fragments))
		if o.metrics != nil {
			o.metrics.RecordStreamEnd(ctx, string(req.Model), status, fragments, time.Since(started))
		}
	}

	for chunk := range chunks {
		switch {
		case chunk.Err != nil:
			o.log.WithError(chunk.Err).Error("Stream failed mid-flight", map[string]any{
				"conversation_id": conversationID,
				"fragments":       fragments,
			})
			observability.SetSpanError(ctx, chunk.Err)
			finish("error")
			_ = t.SendError("The completion stream was interrupted")
			return nil

		case chunk.Done:
			if req.SaveConversation {
				o.persistTurn(ctx, conversationID, req, accumulated)
			}
			finish("ok")
			_ = t.SendDone()
			return nil

		default:
			// Accumulate before emitting so the persisted transcript can
			// never trail what the client has seen.
			accumulated += chunk.Content
			fragments++
			if err := t.SendFragment(chunk.Content); err != nil {
				o.log.WithError(err).Warn("Client disconnected mid-stream", map[string]any{
					"conversation_id": conversationID,
					"fragments":       fragments,
				})
				finish("disconnect")
				return nil
			}
		}
	}

	// Channel closed without a terminal chunk; treat as interrupted.
	o.log.Error("Stream ended without terminal chunk", map[string]any{
		"conversation_id": conversationID,
	})
	finish("error")
	_ = t.SendError("The completion stream was interrupted")
	return nil
}

// resolveContext determines the conversation id and loads model context.
// Unknown supplied ids never fail the request.
func (o *Orchestrator) resolveContext(ctx context.Context, req Request) (string, []Message, error) {
	if !req.SaveConversation {
		return "", nil, nil
	}

	id := req.ConversationID
	if id != "" {
		exists, err := o.store.Exists(ctx, id)
		if err != nil {
			return "", nil, errors.Storage("exists", err)
		}
		if !exists {
			o.log.Warn("Unknown conversation id supplied, starting fresh", map[string]any{
				"conversation_id": id,
			})
			id = ""
		}
	}

	if id == "" {
		created, err := o.store.Create(ctx, true)
		if err != nil {
			return "", nil, errors.Storage("create", err)
		}
		id = created
	}

	stored, err := o.store.History(ctx, id, ContextWindow)
	if err != nil {
		return "", nil, errors.Storage("history", err)
	}

	history := make([]Message, len(stored))
	for i, m := range stored {
		history[i] = Message{Role: Role(m.Role), Content: m.Content, Timestamp: m.Timestamp}
	}
	return id, history, nil
}

func (o *Orchestrator) buildCompletionRequest(req Request, history []Message) llm.CompletionRequest {
	msgs := req.BuildMessages(history)
	payload := make([]llm.Message, len(msgs))
	for i, m := range msgs {
		payload[i] = llm.Message{Role: string(m.Role), Content: m.Content}
	}

	hp := req.Hyperparameters
	return llm.CompletionRequest{
		Model:       string(req.Model),
		Messages:    payload,
		Temperature: hp.EffectiveTemperature(),
		TopP:        hp.EffectiveTopP(),
		MaxTokens:   hp.EffectiveMaxTokens(),
		Stop:        hp.StopSequences(),
	}
}

// persistTurn appends the finished turn. Failures are logged only: the client
// already holds the full response and must not see it retracted.
func (o *Orchestrator) persistTurn(ctx context.Context, id string, req Request, response string) {
	appendMsg := func(role Role, content string) {
		if err := o.store.Append(ctx, id, string(role), content); err != nil {
			o.log.WithError(err).Error("Failed to persist message", map[string]any{
				"conversation_id": id,
				"role":            string(role),
			})
		}
	}

	// Only the system prompt is optional. The user and assistant turns are
	// always written; an empty assistant message records a completion that
	// finished without emitting content.
	if sp := req.EffectiveSystemPrompt(); sp != "" {
		appendMsg(RoleSystem, sp)
	}
	appendMsg(RoleUser, req.UserPrompt)
	appendMsg(RoleAssistant, response)
}
