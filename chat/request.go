package chat

import (
	"github.com/kbukum/ailibrary/errors"
	"github.com/kbukum/ailibrary/validation"
)

// Model is a supported Groq model identifier.
type Model string

// Supported provider models.
const (
	ModelLlama318BInstant Model = "llama-3.1-8b-instant"
	ModelGPTOSS120B       Model = "openai/gpt-oss-120b"
	ModelQwen332B         Model = "qwen/qwen3-32b"
	ModelGroqCompound     Model = "groq/compound"
)

// SupportedModels lists every model the service accepts.
func SupportedModels() []Model {
	return []Model{ModelLlama318BInstant, ModelGPTOSS120B, ModelQwen332B, ModelGroqCompound}
}

// Valid reports whether the model is supported.
func (m Model) Valid() bool {
	for _, s := range SupportedModels() {
		if m == s {
			return true
		}
	}
	return false
}

// DefaultSystemPrompt is the persona used when a request supplies no system prompt.
const DefaultSystemPrompt = "You are a helpful AI assistant."

// Request is a chat completion request as received from a client.
type Request struct {
	// Model selects the provider model.
	Model Model `json:"model" validate:"required"`
	// UserPrompt is the user's input for this turn.
	UserPrompt string `json:"user_prompt" validate:"required,min=1"`
	// SystemPrompt guides model behavior. A nil pointer means the default
	// persona; an explicit empty string disables the system message.
	SystemPrompt *string `json:"system_prompt,omitempty"`
	// Hyperparameters tune generation; nil means all defaults.
	Hyperparameters *Hyperparameters `json:"hyperparameters,omitempty"`
	// SaveConversation enables persistence of this turn.
	SaveConversation bool `json:"save_conversation"`
	// ConversationID continues an existing conversation when set.
	ConversationID string `json:"conversation_id,omitempty"`
}

// Normalize fills defaulted fields in place. Call after decoding, before Validate.
func (r *Request) Normalize() {
	if r.SystemPrompt == nil {
		d := DefaultSystemPrompt
		r.SystemPrompt = &d
	}
}

// EffectiveSystemPrompt returns the system prompt to use: the supplied value,
// or the default persona when the field was absent. Empty means the request
// explicitly opted out of a system message.
func (r *Request) EffectiveSystemPrompt() string {
	if r.SystemPrompt == nil {
		return DefaultSystemPrompt
	}
	return *r.SystemPrompt
}

// Validate checks all request constraints. It returns an *errors.AppError
// with field-level detail so handlers can respond with a structured 400.
func (r *Request) Validate() error {
	if err := validation.Validate(r); err != nil {
		return err
	}
	if !r.Model.Valid() {
		return errors.Validation("model: unsupported model").
			WithDetail("model", string(r.Model)).
			WithDetail("supported", SupportedModels())
	}
	return r.Hyperparameters.Validate()
}

// BuildMessages assembles the full provider payload for this request:
// conversation history first, then the system prompt, then the user prompt.
// The system prompt deliberately follows history — stored messages carry
// their original roles, and the current persona must sit closest to the new
// user turn.
func (r *Request) BuildMessages(history []Message) []Message {
	msgs := make([]Message, 0, len(history)+2)
	msgs = append(msgs, history...)
	if sp := r.EffectiveSystemPrompt(); sp != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: sp})
	}
	msgs = append(msgs, Message{Role: RoleUser, Content: r.UserPrompt})
	return msgs
}
