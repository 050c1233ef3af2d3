// Command ailibrary runs the streaming chat service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kbukum/ailibrary/chat"
	"github.com/kbukum/ailibrary/config"
	"github.com/kbukum/ailibrary/llm/groq"
	"github.com/kbukum/ailibrary/logger"
	"github.com/kbukum/ailibrary/observability"
	"github.com/kbukum/ailibrary/server"
	"github.com/kbukum/ailibrary/store"
	"github.com/kbukum/ailibrary/store/memory"
	mongostore "github.com/kbukum/ailibrary/store/mongo"
)

const probeTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ailibrary: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger.Init(cfg.Logging)
	log := logger.WithComponent("main")
	log.Info("Starting service", map[string]any{
		"name":    cfg.App.Name,
		"version": cfg.App.Version,
		"store":   cfg.Conversation.Backend,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Observability.Enabled {
		if err := initObservability(ctx, cfg); err != nil {
			return err
		}
	}

	provider := groq.New(groq.Config{
		APIKey:  cfg.Groq.APIKey,
		BaseURL: cfg.Groq.BaseURL,
	})
	probeCredentials(ctx, provider, log)

	st, cleanup, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	orch := chat.NewOrchestrator(provider, st)
	if cfg.Observability.Enabled {
		metrics, err := observability.NewChatMetrics()
		if err != nil {
			log.WithError(err).Warn("Chat metrics unavailable")
		} else {
			orch.WithMetrics(metrics)
		}
	}

	srv := server.New(cfg.Server)
	server.NewHandlers(cfg.App, cfg.Conversation.Backend, orch, st).Register(srv.Engine())

	if err := srv.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	log.Info("Shutdown signal received")
	return srv.Stop(context.Background())
}

// probeCredentials runs the startup credential check. It is diagnostic only:
// a failed probe is logged and the service starts anyway.
func probeCredentials(ctx context.Context, provider *groq.Provider, log *logger.Logger) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if provider.ValidateCredentials(probeCtx) {
		log.Info("Groq API key validated")
		return
	}
	log.Warn("Groq API key validation failed; upstream requests may be rejected")
}

// buildStore selects the conversation store backend. The cleanup function
// closes any held connections and is safe to call unconditionally.
func buildStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	switch cfg.Conversation.Backend {
	case config.StoreMongo:
		client, err := mongostore.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, nil, err
		}
		st := mongostore.NewStore(client, time.Duration(cfg.Conversation.TTLHours)*time.Hour)
		if err := st.EnsureIndexes(ctx); err != nil {
			_ = client.Close(context.Background())
			return nil, nil, err
		}
		cleanup := func() { _ = client.Close(context.Background()) }
		return st, cleanup, nil

	default:
		return memory.New(), func() {}, nil
	}
}

func initObservability(ctx context.Context, cfg *config.Config) error {
	environment := "production"
	if cfg.App.Debug {
		environment = "development"
	}

	tp, err := observability.InitTracer(ctx, observability.TracerConfig{
		ServiceName:    cfg.App.Name,
		ServiceVersion: cfg.App.Version,
		Environment:    environment,
		Endpoint:       cfg.Observability.Endpoint,
		Insecure:       true,
	})
	if err != nil {
		return err
	}

	mp, err := observability.InitMeter(ctx, observability.MeterConfig{
		ServiceName:    cfg.App.Name,
		ServiceVersion: cfg.App.Version,
		Environment:    environment,
		Endpoint:       cfg.Observability.Endpoint,
		Insecure:       true,
		Interval:       15 * time.Second,
	})
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
		_ = mp.Shutdown(shutdownCtx)
	}()
	return nil
}
