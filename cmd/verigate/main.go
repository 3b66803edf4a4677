package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/joho/godotenv"

	"github.com/dron-olya7/verigate/internal/audit"
	"github.com/dron-olya7/verigate/internal/config"
	"github.com/dron-olya7/verigate/internal/handler"
	"github.com/dron-olya7/verigate/internal/kafka"
	"github.com/dron-olya7/verigate/internal/logger"
	"github.com/dron-olya7/verigate/internal/metrics"
	"github.com/dron-olya7/verigate/internal/router"
	"github.com/dron-olya7/verigate/internal/service"
	"github.com/dron-olya7/verigate/internal/storage"
	"github.com/dron-olya7/verigate/internal/webhook"
	"github.com/dron-olya7/verigate/pkg/observability"
	"github.com/dron-olya7/verigate/pkg/tracing"
)

const serviceName = "verigate"

func main() {
	l := logger.NewLogger()
	slog.SetDefault(l)

	metrics.Init()

	if err := godotenv.Load(); err != nil {
		l.Info("No .env file loaded, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		l.Error("Invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	ctx := context.Background()

	if cfg.OTelEndpoint != "" {
		tracerShutdown, err := observability.InitTracing(ctx, serviceName, cfg.OTelEndpoint, l)
		if err != nil {
			l.Error("Failed to initialize OpenTelemetry TracerProvider", slog.Any("error", err))
			os.Exit(1)
		}
		defer tracerShutdown()
	}

	if cfg.MigrateOnStart {
		// Migration failure is not fatal: the store may simply be down, and
		// the manager reconnects on demand once it is back.
		if err := storage.Migrate(cfg.DatabaseURL); err != nil {
			l.Error("Schema migration failed", slog.Any("error", err))
		}
	}

	manager := storage.NewManager(cfg.DatabaseURL, storage.ManagerConfig{
		Attempts:       cfg.ConnectAttempts,
		RetryDelay:     cfg.ConnectRetryDelay,
		ConnectTimeout: cfg.ConnectTimeout,
		PingTimeout:    cfg.PingTimeout,
		ProbeInterval:  cfg.ProbeInterval,
	}, l)

	// Warm up the pool; failure is fine, requests answer 503 until the store
	// is reachable.
	if _, err := manager.Acquire(ctx); err != nil {
		l.Warn("Store unreachable at startup, connecting on demand", slog.Any("error", err))
	}

	store := storage.NewPostgresStore(manager, l)
	recorder := audit.NewRecorder(store, l)
	dispatcher := webhook.NewDispatcher(store, cfg.WebhookTimeout,
		tracing.NewTracer(tracing.GetTracer(serviceName)), l)

	// Outcome events are optional; verification runs without them when no
	// brokers are configured.
	var events kafka.EventProducer
	var producerWG sync.WaitGroup
	if brokers := cfg.KafkaBrokersList(); len(brokers) > 0 {
		saramaConfig := sarama.NewConfig()
		saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
		saramaConfig.Producer.Retry.Max = 5
		saramaConfig.Producer.Return.Successes = true
		saramaConfig.ClientID = "verigate-producer"

		asyncProducer, err := sarama.NewAsyncProducer(brokers, saramaConfig)
		if err != nil {
			l.Error("Failed to create sarama producer", slog.Any("error", err))
			os.Exit(1)
		}

		events = kafka.NewProducer(asyncProducer, cfg.KafkaEventsTopic, l, &producerWG,
			tracing.NewTracer(tracing.GetTracer(serviceName)))
		events.Start(ctx)
	}

	verifySvc := service.NewVerificationService(store, recorder, dispatcher, events, cfg.VerifyWindow, l)
	intakeSvc := service.NewIntakeService(store, l)
	adminSvc := service.NewAdminService(store, l)
	healthSvc := service.NewHealthService(store, l)

	r := router.NewRouter(
		handler.NewIntakeHandler(intakeSvc, l),
		handler.NewVerificationHandler(verifySvc, l),
		handler.NewEndpointHandler(adminSvc, l),
		handler.NewHealthHandler(healthSvc, l),
		router.Config{
			AllowedOrigins: cfg.AllowedOrigins(),
			AdminToken:     cfg.AdminToken,
		},
	)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	go func() {
		l.Info("Server started", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("Failed to start server", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	l.Info("Shutting down server...")

	ctxTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxTimeout); err != nil {
		l.Error("Shutdown failed", "err", err)
	}
	if events != nil {
		events.Close(ctxTimeout)
	}
	manager.Close()

	l.Info("Server exited cleanly")
}
