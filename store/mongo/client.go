// Package mongo implements store.Store on MongoDB with sliding TTL expiry.
//
// One document per conversation, keyed by its id. A TTL index on expires_at
// performs the physical sweep; because Mongo's TTL monitor only runs
// periodically, every operation additionally filters out expired documents so
// they become unreachable the instant their window closes, without any
// caller-driven sweeps.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/kbukum/ailibrary/logger"
)

const connectTimeout = 10 * time.Second

// Client manages the shared MongoDB connection. It is long-lived: created at
// startup, closed at shutdown, and shared by every request task.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
	log    *logger.Logger
}

// Connect establishes the MongoDB connection and verifies it with a ping.
func Connect(ctx context.Context, uri, database string) (*Client, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo: connection URI is not configured")
	}

	log := logger.WithComponent("store.mongo")
	log.Info("Connecting to MongoDB", map[string]any{"database": database})

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}

	log.Info("Connected to MongoDB", map[string]any{"database": database})
	return &Client{
		client: client,
		db:     client.Database(database),
		log:    log,
	}, nil
}

// Healthy reports whether the connection answers a ping.
func (c *Client) Healthy(ctx context.Context) bool {
	if err := c.client.Ping(ctx, readpref.Primary()); err != nil {
		c.log.WithError(err).Error("MongoDB health check failed")
		return false
	}
	return true
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	c.log.Info("Closing MongoDB connection")
	return c.client.Disconnect(ctx)
}

// Collection returns a handle on a named collection.
func (c *Client) Collection(name string) *mongo.Collection {
	return c.db.Collection(name)
}
