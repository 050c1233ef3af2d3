package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kbukum/ailibrary/logger"
)

// Stream event payloads. Every event is a bare data: line; no event: field,
// so EventSource clients receive them all as plain messages.
type metaEvent struct {
	ConversationID string `json:"conversation_id"`
	Model          string `json:"model"`
}

type fragmentEvent struct {
	Content  string `json:"content"`
	Finished bool   `json:"finished"`
}

type errorEvent struct {
	Error    string `json:"error"`
	Finished bool   `json:"finished"`
}

// streamTransport writes chat stream events as Server-Sent Events.
//
// Headers are written lazily on the first event: until then the handler can
// still answer with a plain JSON error and correct status code.
type streamTransport struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
	log     *logger.Logger
}

// newStreamTransport wraps a ResponseWriter. It fails when the writer cannot
// flush, which would make streaming pointless.
func newStreamTransport(w http.ResponseWriter) (*streamTransport, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("sse: response writer does not support flushing")
	}
	return &streamTransport{
		w:       w,
		flusher: flusher,
		log:     logger.WithComponent("server.sse"),
	}, nil
}

// begin commits the response to SSE: headers go out and the write deadline is
// cleared so the server's WriteTimeout cannot sever a long completion.
func (t *streamTransport) begin() {
	if t.started {
		return
	}
	t.started = true

	h := t.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no") // disable nginx buffering

	rc := http.NewResponseController(t.w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		t.log.WithError(err).Warn("Could not disable write deadline")
	}

	t.w.WriteHeader(http.StatusOK)
}

func (t *streamTransport) send(v any) error {
	t.begin()
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("sse: marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(t.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("sse: write event: %w", err)
	}
	t.flusher.Flush()
	return nil
}

// SendMeta announces the conversation id and model before any content.
func (t *streamTransport) SendMeta(conversationID, model string) error {
	return t.send(metaEvent{ConversationID: conversationID, Model: model})
}

// SendFragment delivers one content fragment.
func (t *streamTransport) SendFragment(content string) error {
	return t.send(fragmentEvent{Content: content, Finished: false})
}

// SendDone terminates a successful stream with an empty finished fragment.
func (t *streamTransport) SendDone() error {
	return t.send(fragmentEvent{Content: "", Finished: true})
}

// SendError terminates a failed stream.
func (t *streamTransport) SendError(message string) error {
	return t.send(errorEvent{Error: message, Finished: true})
}
