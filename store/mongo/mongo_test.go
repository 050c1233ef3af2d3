package mongo

import (
	"fmt"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/kbukum/ailibrary/store"
)

func TestLiveFilterShape(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	filter := liveOnly(now)
	or, ok := filter["$or"].(bson.A)
	if !ok || len(or) != 2 {
		t.Fatalf("filter $or = %v, want two branches", filter["$or"])
	}

	missing := or[0].(bson.M)["expires_at"].(bson.M)
	if missing["$exists"] != false {
		t.Errorf("first branch = %v, want $exists false", missing)
	}
	future := or[1].(bson.M)["expires_at"].(bson.M)
	if future["$gt"] != now {
		t.Errorf("second branch = %v, want $gt %v", future, now)
	}
}

func TestLiveByIDIncludesID(t *testing.T) {
	now := time.Now().UTC()
	filter := liveByID("conv-1", now)

	if filter["_id"] != "conv-1" {
		t.Errorf("_id = %v, want conv-1", filter["_id"])
	}
	if _, ok := filter["$or"]; !ok {
		t.Error("expected the live filter branches to be preserved")
	}
}

// Integration tests run only against a real MongoDB instance.

func integrationStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set; skipping integration test")
	}

	client, err := Connect(t.Context(), uri, "ailibrary_test")
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close(t.Context()) })

	s := NewStore(client, 2*time.Hour)
	if err := s.EnsureIndexes(t.Context()); err != nil {
		t.Fatalf("EnsureIndexes failed: %v", err)
	}
	if err := s.Clear(t.Context()); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	return s
}

func TestIntegrationConversationLifecycle(t *testing.T) {
	s := integrationStore(t)

	id, err := s.Create(t.Context(), true)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		role := store.RoleUser
		if i%2 == 1 {
			role = store.RoleAssistant
		}
		if err := s.Append(t.Context(), id, role, fmt.Sprintf("msg-%d", i)); err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}
	}

	history, err := s.History(t.Context(), id, 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("history = %d messages, want 3", len(history))
	}
	for i, m := range history {
		if want := fmt.Sprintf("msg-%d", i); m.Content != want {
			t.Errorf("history[%d] = %q, want %q", i, m.Content, want)
		}
	}

	tail, _ := s.History(t.Context(), id, 2)
	if len(tail) != 2 || tail[0].Content != "msg-1" {
		t.Errorf("tail = %v, want the last two messages", tail)
	}

	exists, _ := s.Exists(t.Context(), id)
	if !exists {
		t.Error("expected conversation to exist")
	}

	removed, err := s.Delete(t.Context(), id)
	if err != nil || !removed {
		t.Fatalf("Delete = (%v, %v), want (true, nil)", removed, err)
	}
	removed, _ = s.Delete(t.Context(), id)
	if removed {
		t.Error("second Delete should report nothing removed")
	}
}

func TestIntegrationAppendRecreatesUnknownID(t *testing.T) {
	s := integrationStore(t)

	if err := s.Append(t.Context(), "ghost-id", store.RoleUser, "hello"); err != nil {
		t.Fatalf("Append on unknown id failed: %v", err)
	}

	history, _ := s.History(t.Context(), "ghost-id", 0)
	if len(history) != 1 || history[0].Content != "hello" {
		t.Errorf("history = %v, want the appended message", history)
	}
}

// expiresAt reads the raw expires_at value of a document.
func expiresAt(t *testing.T, s *Store, id string) time.Time {
	t.Helper()
	var doc struct {
		ExpiresAt time.Time `bson:"expires_at"`
	}
	if err := s.coll.FindOne(t.Context(), bson.M{"_id": id}).Decode(&doc); err != nil {
		t.Fatalf("expires_at lookup failed: %v", err)
	}
	if doc.ExpiresAt.IsZero() {
		t.Fatal("document has no expires_at")
	}
	return doc.ExpiresAt
}

func TestIntegrationAppendSlidesExpiry(t *testing.T) {
	s := integrationStore(t)

	id, err := s.Create(t.Context(), true)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	exp0 := expiresAt(t, s, id)

	time.Sleep(10 * time.Millisecond)
	if err := s.Append(t.Context(), id, store.RoleUser, "first"); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	exp1 := expiresAt(t, s, id)
	if !exp1.After(exp0) {
		t.Errorf("expires_at after first append = %v, want later than %v", exp1, exp0)
	}

	time.Sleep(10 * time.Millisecond)
	if err := s.Append(t.Context(), id, store.RoleAssistant, "second"); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	exp2 := expiresAt(t, s, id)
	if !exp2.After(exp1) {
		t.Errorf("expires_at after second append = %v, want later than %v", exp2, exp1)
	}
}

func TestIntegrationExpiredConversationIsInvisible(t *testing.T) {
	s := integrationStore(t)

	// Insert an already expired document directly: the TTL monitor only
	// sweeps periodically, so the store must hide it before physical removal.
	now := time.Now().UTC()
	past := now.Add(-time.Minute)
	conv := store.Conversation{
		ID:        "expired-conv",
		Messages:  []store.Message{{Role: store.RoleUser, Content: "old", Timestamp: past}},
		CreatedAt: past,
		UpdatedAt: past,
		Temporary: true,
		ExpiresAt: &past,
	}
	if _, err := s.coll.InsertOne(t.Context(), conv); err != nil {
		t.Fatalf("InsertOne failed: %v", err)
	}

	exists, err := s.Exists(t.Context(), "expired-conv")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("expired conversation must not exist")
	}

	history, err := s.History(t.Context(), "expired-conv", 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("history = %v, want empty for an expired conversation", history)
	}

	count, err := s.Count(t.Context())
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want expired conversations excluded", count)
	}
}

func TestIntegrationHistoryUnknownIDIsEmpty(t *testing.T) {
	s := integrationStore(t)

	history, err := s.History(t.Context(), "nope", 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("history = %v, want empty", history)
	}
}
