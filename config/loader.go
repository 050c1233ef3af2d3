package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envBindings maps environment variable names to config fields.
var envBindings = map[string]string{
	"APP_NAME":                "app.name",
	"DEBUG":                   "app.debug",
	"HOST":                    "server.host",
	"PORT":                    "server.port",
	"SERVER_READ_TIMEOUT":     "server.read_timeout",
	"SERVER_WRITE_TIMEOUT":    "server.write_timeout",
	"SERVER_IDLE_TIMEOUT":     "server.idle_timeout",
	"GROQ_API_KEY":            "groq.api_key",
	"GROQ_BASE_URL":           "groq.base_url",
	"MONGODB_URI":             "mongo.uri",
	"MONGODB_DB_NAME":         "mongo.database",
	"CONVERSATION_STORE":      "conversation.backend",
	"CONVERSATION_TTL_HOURS":  "conversation.ttl_hours",
	"LOG_LEVEL":               "logging.level",
	"LOG_FORMAT":              "logging.format",
	"LOG_OUTPUT":              "logging.output",
	"OTEL_ENABLED":            "observability.enabled",
	"OTEL_EXPORTER_ENDPOINT":  "observability.endpoint",
}

// Load reads configuration from the environment, honoring a .env file when
// one exists in the working directory. Defaults are applied and the result is
// validated before being returned.
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit dotenv path, used by tests.
func LoadFile(envFile string) (*Config, error) {
	if _, err := os.Stat(envFile); err == nil {
		// Existing environment variables take precedence over the file.
		_ = godotenv.Load(envFile)
	}

	v := viper.New()
	for env, key := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// CORS origins arrive as a single comma-separated variable.
	if raw := os.Getenv("CORS_ORIGINS"); raw != "" {
		cfg.Server.CORSOrigins = splitOrigins(raw)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
