// Package memory implements store.Store with an in-process map.
//
// Entries live for the process lifetime: no TTL is enforced here. That
// asymmetry with the mongo backend is intentional; this backend serves
// development and tests, where expiry only gets in the way.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/ailibrary/logger"
	"github.com/kbukum/ailibrary/store"
)

// Store is a mutex-guarded in-memory conversation store.
type Store struct {
	mu            sync.RWMutex
	conversations map[string]*store.Conversation
	log           *logger.Logger
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		conversations: make(map[string]*store.Conversation),
		log:           logger.WithComponent("store.memory"),
	}
}

// Create allocates a fresh conversation and returns its id.
func (s *Store) Create(_ context.Context, temporary bool) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	s.mu.Lock()
	s.conversations[id] = &store.Conversation{
		ID:        id,
		Messages:  []store.Message{},
		CreatedAt: now,
		UpdatedAt: now,
		Temporary: temporary,
	}
	s.mu.Unlock()

	s.log.Info("Created conversation", map[string]any{
		"conversation_id": id,
		"temporary":       temporary,
	})
	return id, nil
}

// Append adds a message, recreating the conversation if the id is unknown.
func (s *Store) Append(_ context.Context, id, role, content string) error {
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		s.log.Warn("Conversation not found, creating new one", map[string]any{
			"conversation_id": id,
		})
		conv = &store.Conversation{
			ID:        id,
			Messages:  []store.Message{},
			CreatedAt: now,
			Temporary: true,
		}
		s.conversations[id] = conv
	}

	conv.Messages = append(conv.Messages, store.Message{
		Role:      role,
		Content:   content,
		Timestamp: now,
	})
	conv.UpdatedAt = now
	return nil
}

// History returns the stored messages, or the trailing limit entries.
func (s *Store) History(_ context.Context, id string, limit int) ([]store.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, nil
	}
	return slices.Clone(store.LastN(conv.Messages, limit)), nil
}

// Exists reports whether the conversation is present.
func (s *Store) Exists(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.conversations[id]
	return ok, nil
}

// Delete removes a conversation, reporting whether anything was removed.
func (s *Store) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[id]; !ok {
		return false, nil
	}
	delete(s.conversations, id)
	return true, nil
}

// Count returns the number of stored conversations.
func (s *Store) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.conversations)), nil
}

// Clear removes all conversations.
func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	s.conversations = make(map[string]*store.Conversation)
	s.mu.Unlock()
	return nil
}
