package observability

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// InitTracing sets the global OpenTelemetry tracer provider, exporting spans
// to the given OTLP collector over gRPC. The returned function flushes and
// shuts the provider down; call it during application shutdown.
func InitTracing(
	ctx context.Context,
	serviceName string,
	collectorEndpoint string,
	logger *slog.Logger,
) (func(), error) {
	logger.Info("Initializing OpenTelemetry Tracer", "service", serviceName, "collector", collectorEndpoint)

	conn, err := grpc.NewClient(
		collectorEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		logger.Error("Failed to create gRPC connection to collector", slog.Any("error", err))
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		logger.Error("Failed to create OTLP trace exporter", slog.Any("error", err))
		conn.Close()
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion("1.0.0"),
		semconv.ServiceInstanceID(os.Getenv("HOSTNAME")),
	)

	bsp := trace.NewBatchSpanProcessor(exporter)
	tp := trace.NewTracerProvider(
		trace.WithSampler(trace.AlwaysSample()),
		trace.WithResource(res),
		trace.WithSpanProcessor(bsp),
	)

	otel.SetTracerProvider(tp)

	logger.Info("TracerProvider initialized", slog.String("service", serviceName))

	cleanup := func() {
		logger.Info("Shutting down TracerProvider")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Failed to shutdown TracerProvider", slog.Any("error", err))
		} else {
			logger.Info("TracerProvider shut down successfully")
		}

		if err := conn.Close(); err != nil {
			logger.Error("Failed to close gRPC connection", slog.Any("error", err))
		}
	}

	return cleanup, nil
}
