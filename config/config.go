// Package config loads service configuration from the environment.
// A .env file is honored when present (local development), after which
// environment variables always win. Every section carries ApplyDefaults and
// Validate so a zero value is usable and a bad value fails at startup, not at
// request time.
package config

import (
	"fmt"
	"strings"

	"github.com/kbukum/ailibrary/logger"
)

// Backend names for the conversation store.
const (
	StoreMemory = "memory"
	StoreMongo  = "mongo"
)

// Config is the root service configuration.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Server        ServerConfig        `mapstructure:"server"`
	Groq          GroqConfig          `mapstructure:"groq"`
	Mongo         MongoConfig         `mapstructure:"mongo"`
	Conversation  ConversationConfig  `mapstructure:"conversation"`
	Logging       logger.Config       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// AppConfig identifies the service.
type AppConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
	Debug   bool   `mapstructure:"debug"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string   `mapstructure:"host"`
	Port         int      `mapstructure:"port"`
	ReadTimeout  int      `mapstructure:"read_timeout"`  // seconds
	WriteTimeout int      `mapstructure:"write_timeout"` // seconds
	IdleTimeout  int      `mapstructure:"idle_timeout"`  // seconds
	CORSOrigins  []string `mapstructure:"cors_origins"`
}

// GroqConfig holds upstream provider configuration.
type GroqConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// MongoConfig holds durable storage configuration.
type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

// ConversationConfig controls conversation lifetime and backend selection.
type ConversationConfig struct {
	// Backend selects the store implementation: "memory" or "mongo".
	Backend string `mapstructure:"backend"`
	// TTLHours is the sliding expiry window for temporary conversations.
	TTLHours int `mapstructure:"ttl_hours"`
}

// ObservabilityConfig controls the OpenTelemetry exporters.
type ObservabilityConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// ApplyDefaults applies default values to unset fields.
func (c *Config) ApplyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "AI Library"
	}
	if c.App.Version == "" {
		c.App.Version = "1.0.0"
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15
	}
	// Streaming responses are long-lived; the SSE handler additionally clears
	// the per-connection write deadline.
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 120
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	if c.Groq.BaseURL == "" {
		c.Groq.BaseURL = "https://api.groq.com/openai/v1"
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "ai_library"
	}
	if c.Conversation.TTLHours == 0 {
		c.Conversation.TTLHours = 2
	}
	if c.Conversation.Backend == "" {
		if c.Mongo.URI != "" {
			c.Conversation.Backend = StoreMongo
		} else {
			c.Conversation.Backend = StoreMemory
		}
	}
	if c.App.Debug {
		c.Logging.Level = "debug"
	}
	c.Logging.ApplyDefaults()
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Groq.APIKey == "" {
		return fmt.Errorf("config: GROQ_API_KEY is required")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server port must be between 0 and 65535 (got: %d)", c.Server.Port)
	}
	if c.Conversation.TTLHours < 1 {
		return fmt.Errorf("config: conversation TTL must be at least 1 hour (got: %d)", c.Conversation.TTLHours)
	}
	switch c.Conversation.Backend {
	case StoreMemory:
	case StoreMongo:
		if c.Mongo.URI == "" {
			return fmt.Errorf("config: MONGODB_URI is required for the mongo backend")
		}
	default:
		return fmt.Errorf("config: conversation backend must be %q or %q (got: %q)",
			StoreMemory, StoreMongo, c.Conversation.Backend)
	}
	return c.Logging.Validate()
}

// splitOrigins parses a comma-separated origin list, trimming whitespace.
func splitOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
