package llm

// Message represents a single chat message in provider wire order.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// CompletionRequest is the universal input for providers.
type CompletionRequest struct {
	// Model is the provider model identifier.
	Model string `json:"model"`
	// Messages is the ordered conversation payload.
	Messages []Message `json:"messages"`
	// Temperature controls randomness (0 = deterministic).
	Temperature float64 `json:"temperature"`
	// TopP is the nucleus sampling threshold.
	TopP float64 `json:"top_p"`
	// MaxTokens limits the response length.
	MaxTokens int `json:"max_tokens"`
	// Stop holds optional stop sequences.
	Stop []string `json:"stop,omitempty"`
}

// StreamChunk is a single piece of a streamed response.
// Exactly one terminal chunk arrives per stream: either Done=true or Err!=nil.
// The channel closes after the terminal chunk.
type StreamChunk struct {
	// Content is the text fragment.
	Content string `json:"content"`
	// Done indicates this is the final chunk of a successful stream.
	Done bool `json:"done"`
	// Err is set when a streaming error occurs; the stream is then over.
	Err error `json:"-"`
}
