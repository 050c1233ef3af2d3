package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/ailibrary/logger"
	"github.com/kbukum/ailibrary/observability"
	"github.com/kbukum/ailibrary/store"
)

const collectionName = "conversations"

// Store implements store.Store on a MongoDB collection.
type Store struct {
	coll *mongo.Collection
	ttl  time.Duration
	log  *logger.Logger
}

// NewStore creates a conversation store over the shared client. ttl is the
// sliding expiry window applied to temporary conversations.
func NewStore(client *Client, ttl time.Duration) *Store {
	return &Store{
		coll: client.Collection(collectionName),
		ttl:  ttl,
		log:  logger.WithComponent("store.mongo"),
	}
}

// EnsureIndexes creates the TTL and query indexes. Safe to call on every
// startup: index creation is idempotent.
//
// The TTL index uses expireAfterSeconds=0 so the document's own expires_at
// value is the deadline; the per-document window slides forward on mutation.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("expires_at_ttl"),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: -1}},
			Options: options.Index().SetName("updated_at_desc"),
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("created_at_desc"),
		},
	})
	if err != nil {
		return fmt.Errorf("mongo: create indexes: %w", err)
	}
	s.log.Info("Ensured conversation indexes", map[string]any{
		"collection": collectionName,
		"ttl":        s.ttl.String(),
	})
	return nil
}

// liveOnly matches documents whose TTL window is still open. The TTL monitor
// only sweeps periodically, so expired documents can linger physically; this
// filter makes them invisible immediately.
func liveOnly(now time.Time) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"expires_at": bson.M{"$exists": false}},
		bson.M{"expires_at": bson.M{"$gt": now}},
	}}
}

// liveByID narrows liveOnly to a single conversation.
func liveByID(id string, now time.Time) bson.M {
	filter := liveOnly(now)
	filter["_id"] = id
	return filter
}

// Create allocates a fresh conversation and returns its id.
func (s *Store) Create(ctx context.Context, temporary bool) (string, error) {
	ctx, span := observability.StartSpan(ctx, "store.create")
	defer span.End()

	id := uuid.NewString()
	now := time.Now().UTC()

	conv := store.Conversation{
		ID:        id,
		Messages:  []store.Message{},
		CreatedAt: now,
		UpdatedAt: now,
		Temporary: temporary,
	}
	if temporary {
		exp := now.Add(s.ttl)
		conv.ExpiresAt = &exp
	}

	if _, err := s.coll.InsertOne(ctx, conv); err != nil {
		return "", fmt.Errorf("mongo: insert conversation: %w", err)
	}

	s.log.Info("Created conversation", map[string]any{
		"conversation_id": id,
		"temporary":       temporary,
	})
	return id, nil
}

// Append adds a message, recreating the conversation if the id is unknown or
// already expired. Temporary conversations get their expiry slid forward.
func (s *Store) Append(ctx context.Context, id, role, content string) error {
	ctx, span := observability.StartSpan(ctx, "store.append")
	defer span.End()
	span.SetAttributes(attribute.String("conversation.id", id))

	now := time.Now().UTC()
	msg := store.Message{Role: role, Content: content, Timestamp: now}

	var meta struct {
		Temporary bool `bson:"temporary"`
	}
	err := s.coll.FindOne(ctx, liveByID(id, now),
		options.FindOne().SetProjection(bson.M{"temporary": 1})).Decode(&meta)

	switch {
	case err == nil:
		set := bson.M{"updated_at": now}
		if meta.Temporary {
			set["expires_at"] = now.Add(s.ttl)
		}
		_, err = s.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
			"$push": bson.M{"messages": msg},
			"$set":  set,
		})
		if err != nil {
			return fmt.Errorf("mongo: append message: %w", err)
		}
		return nil

	case errors.Is(err, mongo.ErrNoDocuments):
		s.log.Warn("Conversation not found, creating new one", map[string]any{
			"conversation_id": id,
		})
		exp := now.Add(s.ttl)
		conv := store.Conversation{
			ID:        id,
			Messages:  []store.Message{msg},
			CreatedAt: now,
			UpdatedAt: now,
			Temporary: true,
			ExpiresAt: &exp,
		}
		// Upsert replace: an expired document may still exist physically
		// until the TTL monitor sweeps it.
		_, err = s.coll.ReplaceOne(ctx, bson.M{"_id": id}, conv,
			options.Replace().SetUpsert(true))
		if err != nil {
			return fmt.Errorf("mongo: recreate conversation: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("mongo: lookup conversation: %w", err)
	}
}

// History returns the stored messages, or the trailing limit entries.
//
// Driver errors are logged and reported as empty history rather than
// surfaced: a chat request must proceed without context rather than fail
// outright when storage is degraded.
func (s *Store) History(ctx context.Context, id string, limit int) ([]store.Message, error) {
	ctx, span := observability.StartSpan(ctx, "store.history")
	defer span.End()
	span.SetAttributes(attribute.String("conversation.id", id))

	now := time.Now().UTC()

	opts := options.FindOne()
	if limit > 0 {
		opts.SetProjection(bson.M{"messages": bson.M{"$slice": -limit}})
	}

	var conv store.Conversation
	err := s.coll.FindOne(ctx, liveByID(id, now), opts).Decode(&conv)
	switch {
	case err == nil:
		return conv.Messages, nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, nil
	default:
		s.log.WithError(err).Error("Failed to load conversation history", map[string]any{
			"conversation_id": id,
		})
		return nil, nil
	}
}

// Exists reports whether a live conversation with this id exists.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	n, err := s.coll.CountDocuments(ctx, liveByID(id, time.Now().UTC()),
		options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("mongo: count conversation: %w", err)
	}
	return n > 0, nil
}

// Delete removes a conversation, reporting whether anything was removed.
// Expired documents count as already gone.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	ctx, span := observability.StartSpan(ctx, "store.delete")
	defer span.End()
	span.SetAttributes(attribute.String("conversation.id", id))

	res, err := s.coll.DeleteOne(ctx, liveByID(id, time.Now().UTC()))
	if err != nil {
		return false, fmt.Errorf("mongo: delete conversation: %w", err)
	}
	if res.DeletedCount == 0 {
		return false, nil
	}
	s.log.Info("Deleted conversation", map[string]any{"conversation_id": id})
	return true, nil
}

// Count returns the number of live conversations.
func (s *Store) Count(ctx context.Context) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, liveOnly(time.Now().UTC()))
	if err != nil {
		return 0, fmt.Errorf("mongo: count conversations: %w", err)
	}
	return n, nil
}

// Clear removes all conversations, expired ones included.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.coll.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("mongo: clear conversations: %w", err)
	}
	return nil
}
