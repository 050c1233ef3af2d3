package store

import (
	"context"
	"time"
)

// Message role values as persisted. Plain strings on this contract: the chat
// layer owns the typed role enum and converts at the boundary.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a stored chat turn.
type Message struct {
	Role      string    `bson:"role" json:"role"`
	Content   string    `bson:"content" json:"content"`
	Timestamp time.Time `bson:"timestamp,omitempty" json:"timestamp,omitempty"`
}

// Conversation is a stored conversation record. The Store exclusively owns
// its lifetime and mutation; callers only ever hold ids and message
// snapshots.
type Conversation struct {
	ID        string    `bson:"_id" json:"conversation_id"`
	Messages  []Message `bson:"messages" json:"messages"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
	Temporary bool      `bson:"temporary" json:"temporary"`
	// ExpiresAt is set for temporary conversations and slides forward to
	// now+TTL on every mutation.
	ExpiresAt *time.Time `bson:"expires_at,omitempty" json:"expires_at,omitempty"`
}

// Store is the conversation persistence contract.
type Store interface {
	// Create allocates a fresh conversation and returns its id.
	Create(ctx context.Context, temporary bool) (string, error)

	// Append adds a message to a conversation. An unknown id recreates the
	// conversation in place (temporary, fresh TTL); deliberately not an
	// error path.
	Append(ctx context.Context, id, role, content string) error

	// History returns the stored message sequence in insertion order, or the
	// most recent limit entries when limit > 0. Unknown ids yield an empty
	// sequence, not an error.
	History(ctx context.Context, id string, limit int) ([]Message, error)

	// Exists reports whether a live conversation with this id exists.
	Exists(ctx context.Context, id string) (bool, error)

	// Delete removes a conversation, reporting whether anything was removed.
	Delete(ctx context.Context, id string) (bool, error)

	// Count returns the number of live conversations.
	Count(ctx context.Context) (int64, error)

	// Clear removes all conversations. Intended for tests and tooling.
	Clear(ctx context.Context) error
}

// LastN returns the trailing n messages, or all of them when n <= 0 or the
// sequence is shorter. Shared by both backends.
func LastN(msgs []Message, n int) []Message {
	if n <= 0 || len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}
