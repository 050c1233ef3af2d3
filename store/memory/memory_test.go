package memory

import (
	"fmt"
	"sync"
	"testing"

	"github.com/kbukum/ailibrary/store"
)

func TestCreateThenHistoryIsEmpty(t *testing.T) {
	s := New()
	id, err := s.Create(t.Context(), true)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected a non-empty id")
	}

	history, err := s.History(t.Context(), id, 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("history = %d messages, want 0", len(history))
	}
}

func TestAppendPreservesOrder(t *testing.T) {
	s := New()
	id, _ := s.Create(t.Context(), true)

	const n = 7
	for i := 0; i < n; i++ {
		role := store.RoleUser
		if i%2 == 1 {
			role = store.RoleAssistant
		}
		if err := s.Append(t.Context(), id, role, fmt.Sprintf("msg-%d", i)); err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}
	}

	history, _ := s.History(t.Context(), id, 0)
	if len(history) != n {
		t.Fatalf("history = %d messages, want %d", len(history), n)
	}
	for i, m := range history {
		if want := fmt.Sprintf("msg-%d", i); m.Content != want {
			t.Errorf("history[%d] = %q, want %q", i, m.Content, want)
		}
		if m.Timestamp.IsZero() {
			t.Errorf("history[%d] has no timestamp", i)
		}
	}
}

func TestHistoryLimitReturnsTail(t *testing.T) {
	s := New()
	id, _ := s.Create(t.Context(), true)
	for i := 0; i < 5; i++ {
		_ = s.Append(t.Context(), id, store.RoleUser, fmt.Sprintf("msg-%d", i))
	}

	history, _ := s.History(t.Context(), id, 2)
	if len(history) != 2 {
		t.Fatalf("history = %d messages, want 2", len(history))
	}
	if history[0].Content != "msg-3" || history[1].Content != "msg-4" {
		t.Errorf("tail = [%q, %q], want last two", history[0].Content, history[1].Content)
	}
}

func TestAppendRecreatesUnknownID(t *testing.T) {
	s := New()
	if err := s.Append(t.Context(), "ghost-id", store.RoleUser, "hello"); err != nil {
		t.Fatalf("Append on unknown id failed: %v", err)
	}

	exists, _ := s.Exists(t.Context(), "ghost-id")
	if !exists {
		t.Error("expected conversation to be recreated")
	}
	history, _ := s.History(t.Context(), "ghost-id", 0)
	if len(history) != 1 || history[0].Content != "hello" {
		t.Errorf("history = %v, want the appended message", history)
	}
}

func TestHistoryUnknownIDIsEmptyNotError(t *testing.T) {
	s := New()
	history, err := s.History(t.Context(), "nope", 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("history = %v, want empty", history)
	}
}

func TestDeleteSemantics(t *testing.T) {
	s := New()
	id, _ := s.Create(t.Context(), false)

	removed, err := s.Delete(t.Context(), id)
	if err != nil || !removed {
		t.Fatalf("Delete = (%v, %v), want (true, nil)", removed, err)
	}

	exists, _ := s.Exists(t.Context(), id)
	if exists {
		t.Error("expected conversation to be gone")
	}

	removed, err = s.Delete(t.Context(), id)
	if err != nil || removed {
		t.Errorf("second Delete = (%v, %v), want (false, nil)", removed, err)
	}
}

func TestCountAndClear(t *testing.T) {
	s := New()
	for i := 0; i < 3; i++ {
		_, _ = s.Create(t.Context(), true)
	}

	count, _ := s.Count(t.Context())
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}

	if err := s.Clear(t.Context()); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	count, _ = s.Count(t.Context())
	if count != 0 {
		t.Errorf("count after clear = %d, want 0", count)
	}
}

func TestHistoryReturnsCopy(t *testing.T) {
	s := New()
	id, _ := s.Create(t.Context(), true)
	_ = s.Append(t.Context(), id, store.RoleUser, "original")

	history, _ := s.History(t.Context(), id, 0)
	history[0].Content = "mutated"

	again, _ := s.History(t.Context(), id, 0)
	if again[0].Content != "original" {
		t.Error("History must return a copy, not the stored slice")
	}
}

func TestConcurrentAppends(t *testing.T) {
	s := New()
	id, _ := s.Create(t.Context(), true)

	var wg sync.WaitGroup
	const n = 50
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Append(t.Context(), id, store.RoleUser, "concurrent")
		}()
	}
	wg.Wait()

	history, _ := s.History(t.Context(), id, 0)
	if len(history) != n {
		t.Errorf("history = %d messages, want %d", len(history), n)
	}
}
