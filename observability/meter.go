package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/ailibrary/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("Meter initialized", map[string]any{
		"service":  config.ServiceName,
		"endpoint": config.Endpoint,
	})

	return mp, nil
}

// ChatMetrics holds the instruments recorded around streaming chat turns.
type ChatMetrics struct {
	streamTotal    metric.Int64Counter
	streamActive   metric.Int64UpDownCounter
	streamDuration metric.Float64Histogram
	fragmentTotal  metric.Int64Counter
}

// NewChatMetrics creates the chat instruments on the service meter.
func NewChatMetrics() (*ChatMetrics, error) {
	meter := otel.Meter(tracerName)

	streamTotal, err := meter.Int64Counter("chat.stream.total",
		metric.WithDescription("Total number of chat streams"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating chat.stream.total counter: %w", err)
	}

	streamActive, err := meter.Int64UpDownCounter("chat.stream.active",
		metric.WithDescription("Number of chat streams currently open"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating chat.stream.active gauge: %w", err)
	}

	streamDuration, err := meter.Float64Histogram("chat.stream.duration",
		metric.WithDescription("Duration of chat streams in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating chat.stream.duration histogram: %w", err)
	}

	fragmentTotal, err := meter.Int64Counter("chat.fragment.total",
		metric.WithDescription("Total content fragments delivered"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating chat.fragment.total counter: %w", err)
	}

	return &ChatMetrics{
		streamTotal:    streamTotal,
		streamActive:   streamActive,
		streamDuration: streamDuration,
		fragmentTotal:  fragmentTotal,
	}, nil
}

// RecordStreamStart increments the open stream count.
func (m *ChatMetrics) RecordStreamStart(ctx context.Context) {
	m.streamActive.Add(ctx, 1)
}

// RecordStreamEnd closes out a stream with its outcome and fragment count.
func (m *ChatMetrics) RecordStreamEnd(ctx context.Context, model, status string, fragments int, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("status", status),
	)
	m.streamActive.Add(ctx, -1)
	m.streamTotal.Add(ctx, 1, attrs)
	m.streamDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("model", model),
	))
	m.fragmentTotal.Add(ctx, int64(fragments), metric.WithAttributes(
		attribute.String("model", model),
	))
}
