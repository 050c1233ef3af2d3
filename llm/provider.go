package llm

import "context"

// Provider is the interface LLM backends must implement.
type Provider interface {
	// Name returns the provider identifier (e.g., "groq").
	Name() string

	// Stream sends a completion request and returns a channel of streamed
	// chunks. Fragments arrive in emission order; the channel is closed after
	// the terminal chunk. Re-invoking issues a brand-new upstream call.
	// A non-nil error means the request never left the process.
	Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error)

	// ValidateCredentials performs a minimal low-cost request to confirm the
	// configured credential is accepted. Used for a startup diagnostic only;
	// it never gates request handling.
	ValidateCredentials(ctx context.Context) bool
}
