package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kbukum/ailibrary/llm"
	"github.com/kbukum/ailibrary/store"
)

// stubProvider replays a fixed chunk sequence.
type stubProvider struct {
	chunks   []llm.StreamChunk
	startErr error
	lastReq  llm.CompletionRequest
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Stream(_ context.Context, req llm.CompletionRequest) (<-chan llm.StreamChunk, error) {
	if p.startErr != nil {
		return nil, p.startErr
	}
	p.lastReq = req
	ch := make(chan llm.StreamChunk, len(p.chunks))
	for _, c := range p.chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func (p *stubProvider) ValidateCredentials(context.Context) bool { return true }

// stubStore records appends and serves canned history.
type stubStore struct {
	history    []store.Message
	appends    []store.Message
	created    int
	knownIDs   map[string]bool
	appendErr  error
	createdID  string
	historyIDs []string
}

func newStubStore() *stubStore {
	return &stubStore{knownIDs: map[string]bool{}, createdID: "fresh-id"}
}

func (s *stubStore) Create(context.Context, bool) (string, error) {
	s.created++
	return s.createdID, nil
}

func (s *stubStore) Append(_ context.Context, _, role, content string) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	s.appends = append(s.appends, store.Message{Role: role, Content: content})
	return nil
}

func (s *stubStore) History(_ context.Context, id string, _ int) ([]store.Message, error) {
	s.historyIDs = append(s.historyIDs, id)
	return s.history, nil
}

func (s *stubStore) Exists(_ context.Context, id string) (bool, error) {
	return s.knownIDs[id], nil
}

func (s *stubStore) Delete(context.Context, string) (bool, error) { return false, nil }
func (s *stubStore) Count(context.Context) (int64, error)         { return 0, nil }
func (s *stubStore) Clear(context.Context) error                  { return nil }

var _ store.Store = (*stubStore)(nil)

// recordingTransport captures the event sequence.
type recordingTransport struct {
	events []string
}

func (t *recordingTransport) SendMeta(id, model string) error {
	t.events = append(t.events, fmt.Sprintf("meta:%s:%s", id, model))
	return nil
}

func (t *recordingTransport) SendFragment(content string) error {
	t.events = append(t.events, "frag:"+content)
	return nil
}

func (t *recordingTransport) SendDone() error {
	t.events = append(t.events, "done")
	return nil
}

func (t *recordingTransport) SendError(message string) error {
	t.events = append(t.events, "error:"+message)
	return nil
}

func chunksOf(contents ...string) []llm.StreamChunk {
	out := make([]llm.StreamChunk, 0, len(contents)+1)
	for _, c := range contents {
		out = append(out, llm.StreamChunk{Content: c})
	}
	return append(out, llm.StreamChunk{Done: true})
}

func baseRequest() Request {
	r := Request{
		Model:            ModelLlama318BInstant,
		UserPrompt:       "hi there",
		SaveConversation: true,
	}
	r.Normalize()
	return r
}

func TestRunStreamsAndPersists(t *testing.T) {
	provider := &stubProvider{chunks: chunksOf("Hel", "lo")}
	st := newStubStore()
	tr := &recordingTransport{}

	err := NewOrchestrator(provider, st).Run(t.Context(), baseRequest(), tr)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := []string{
		"meta:fresh-id:llama-3.1-8b-instant",
		"frag:Hel",
		"frag:lo",
		"done",
	}
	if len(tr.events) != len(want) {
		t.Fatalf("events = %v, want %v", tr.events, want)
	}
	for i := range want {
		if tr.events[i] != want[i] {
			t.Errorf("events[%d] = %q, want %q", i, tr.events[i], want[i])
		}
	}

	if len(st.appends) != 3 {
		t.Fatalf("appends = %d, want 3", len(st.appends))
	}
	if st.appends[0].Role != store.RoleSystem || st.appends[0].Content != DefaultSystemPrompt {
		t.Errorf("appends[0] = %+v, want the system prompt", st.appends[0])
	}
	if st.appends[1].Role != store.RoleUser || st.appends[1].Content != "hi there" {
		t.Errorf("appends[1] = %+v, want the user prompt", st.appends[1])
	}
	if st.appends[2].Role != store.RoleAssistant || st.appends[2].Content != "Hello" {
		t.Errorf("appends[2] = %+v, want the accumulated response", st.appends[2])
	}
}

func TestRunEmptyCompletionPersistsAssistantTurn(t *testing.T) {
	provider := &stubProvider{chunks: []llm.StreamChunk{{Done: true}}}
	st := newStubStore()
	tr := &recordingTransport{}

	if err := NewOrchestrator(provider, st).Run(t.Context(), baseRequest(), tr); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(st.appends) != 3 {
		t.Fatalf("appends = %d, want system + user + empty assistant", len(st.appends))
	}
	if st.appends[2].Role != store.RoleAssistant || st.appends[2].Content != "" {
		t.Errorf("appends[2] = %+v, want an empty assistant message", st.appends[2])
	}
}

func TestRunExplicitEmptySystemPromptOmitsSystemMessage(t *testing.T) {
	provider := &stubProvider{chunks: chunksOf("ok")}
	st := newStubStore()
	tr := &recordingTransport{}

	req := baseRequest()
	empty := ""
	req.SystemPrompt = &empty

	if err := NewOrchestrator(provider, st).Run(t.Context(), req, tr); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for _, m := range provider.lastReq.Messages {
		if m.Role == "system" {
			t.Errorf("payload carries a system message %q, want none", m.Content)
		}
	}
	if len(st.appends) != 2 {
		t.Fatalf("appends = %d, want user + assistant only", len(st.appends))
	}
	if st.appends[0].Role != store.RoleUser || st.appends[1].Role != store.RoleAssistant {
		t.Errorf("appends = %+v, want user then assistant", st.appends)
	}
}

func TestRunErrorMidStreamSkipsPersistence(t *testing.T) {
	provider := &stubProvider{chunks: []llm.StreamChunk{
		{Content: "partial"},
		{Err: errors.New("upstream reset")},
	}}
	st := newStubStore()
	tr := &recordingTransport{}

	err := NewOrchestrator(provider, st).Run(t.Context(), baseRequest(), tr)
	if err != nil {
		t.Fatalf("Run should absorb in-stream failures, got %v", err)
	}

	last := tr.events[len(tr.events)-1]
	if last != "error:The completion stream was interrupted" {
		t.Errorf("last event = %q, want the error event", last)
	}
	if len(st.appends) != 0 {
		t.Errorf("appends = %v, want none on failure", st.appends)
	}
}

func TestRunWithoutSavingSkipsStore(t *testing.T) {
	provider := &stubProvider{chunks: chunksOf("hey")}
	st := newStubStore()
	tr := &recordingTransport{}

	req := baseRequest()
	req.SaveConversation = false
	req.ConversationID = "ignored-id"

	if err := NewOrchestrator(provider, st).Run(t.Context(), req, tr); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if tr.events[0] != "meta::llama-3.1-8b-instant" {
		t.Errorf("meta = %q, want empty conversation id", tr.events[0])
	}
	if st.created != 0 || len(st.appends) != 0 || len(st.historyIDs) != 0 {
		t.Error("store must not be touched when save_conversation is false")
	}
}

func TestRunUnknownSuppliedIDStartsFresh(t *testing.T) {
	provider := &stubProvider{chunks: chunksOf("ok")}
	st := newStubStore()
	tr := &recordingTransport{}

	req := baseRequest()
	req.ConversationID = "expired-or-bogus"

	if err := NewOrchestrator(provider, st).Run(t.Context(), req, tr); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if st.created != 1 {
		t.Errorf("created = %d, want a fresh conversation", st.created)
	}
	if tr.events[0] != "meta:fresh-id:llama-3.1-8b-instant" {
		t.Errorf("meta = %q, want the fresh id", tr.events[0])
	}
}

func TestRunKnownIDLoadsHistory(t *testing.T) {
	provider := &stubProvider{chunks: chunksOf("ok")}
	st := newStubStore()
	st.knownIDs["conv-1"] = true
	st.history = []store.Message{
		{Role: store.RoleUser, Content: "earlier question"},
		{Role: store.RoleAssistant, Content: "earlier answer"},
	}
	tr := &recordingTransport{}

	req := baseRequest()
	req.ConversationID = "conv-1"

	if err := NewOrchestrator(provider, st).Run(t.Context(), req, tr); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	msgs := provider.lastReq.Messages
	if len(msgs) != 4 {
		t.Fatalf("payload = %d messages, want history + system + user", len(msgs))
	}
	if msgs[0].Content != "earlier question" || msgs[1].Content != "earlier answer" {
		t.Error("history must lead the payload")
	}
	if msgs[2].Role != "system" {
		t.Errorf("payload[2].Role = %q, want the system prompt after history", msgs[2].Role)
	}
	if msgs[3].Content != "hi there" {
		t.Errorf("payload[3] = %+v, want the user turn last", msgs[3])
	}
}

func TestRunPreStreamFailureReturnsError(t *testing.T) {
	provider := &stubProvider{startErr: errors.New("bad credentials")}
	st := newStubStore()
	tr := &recordingTransport{}

	err := NewOrchestrator(provider, st).Run(t.Context(), baseRequest(), tr)
	if err == nil {
		t.Fatal("expected the pre-stream failure to surface")
	}
	for _, e := range tr.events {
		if e == "done" || len(e) > 5 && e[:5] == "meta:" {
			t.Errorf("no stream event should be written, got %q", e)
		}
	}
}

func TestRunPersistFailureStillCompletesStream(t *testing.T) {
	provider := &stubProvider{chunks: chunksOf("fine")}
	st := newStubStore()
	st.appendErr = errors.New("mongo down")
	tr := &recordingTransport{}

	if err := NewOrchestrator(provider, st).Run(t.Context(), baseRequest(), tr); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	last := tr.events[len(tr.events)-1]
	if last != "done" {
		t.Errorf("last event = %q, want done despite persistence failure", last)
	}
}

func TestRunChannelClosedWithoutTerminal(t *testing.T) {
	provider := &stubProvider{chunks: []llm.StreamChunk{{Content: "half"}}}
	st := newStubStore()
	tr := &recordingTransport{}

	if err := NewOrchestrator(provider, st).Run(t.Context(), baseRequest(), tr); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	last := tr.events[len(tr.events)-1]
	if last != "error:The completion stream was interrupted" {
		t.Errorf("last event = %q, want the interruption error", last)
	}
	if len(st.appends) != 0 {
		t.Error("an unterminated stream must not be persisted")
	}
}
