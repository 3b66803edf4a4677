package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dron-olya7/verigate/internal/model"
	"github.com/dron-olya7/verigate/pkg/tracing"
)

// EventProducer publishes verification outcome events for downstream
// consumers (CRM sync, analytics). Publishing is best-effort: the
// verification flow never fails because an event could not be queued.
type EventProducer interface {
	Start(ctx context.Context)
	Publish(ctx context.Context, event model.OutcomeEvent) error
	Close(ctx context.Context)
}

type producer struct {
	asyncProducer sarama.AsyncProducer
	topic         string
	log           *slog.Logger
	wg            *sync.WaitGroup
	closeOnce     sync.Once
	tracer        *tracing.Tracer
}

// NewProducer wraps an AsyncProducer for the outcome events topic.
func NewProducer(asyncProducer sarama.AsyncProducer, topic string, log *slog.Logger, wg *sync.WaitGroup, tracer *tracing.Tracer) EventProducer {
	if asyncProducer == nil || log == nil || wg == nil || tracer == nil {
		panic("NewProducer: nil dependencies provided")
	}
	if topic == "" {
		panic("NewProducer: topic must not be empty")
	}
	return &producer{
		asyncProducer: asyncProducer,
		topic:         topic,
		log:           log,
		wg:            wg,
		tracer:        tracer,
	}
}

// Start launches background handlers for success and error channels
func (p *producer) Start(ctx context.Context) {
	p.log.Info("Starting Kafka producer handlers")
	p.wg.Add(2)
	go p.handleSuccess(ctx)
	go p.handleErrors(ctx)
}

// handleSuccess logs successful deliveries
func (p *producer) handleSuccess(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case msg, ok := <-p.asyncProducer.Successes():
			if !ok {
				p.log.Info("Kafka successes channel closed")
				return
			}

			key, _ := msg.Key.Encode()
			p.log.Info("Outcome event delivered",
				slog.String("topic", msg.Topic),
				slog.Int64("offset", msg.Offset),
				slog.String("key", string(key)))
		case <-ctx.Done():
			p.log.Info("Kafka success handler stopped by context")
			return
		}
	}
}

// handleErrors logs failed deliveries
func (p *producer) handleErrors(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case err, ok := <-p.asyncProducer.Errors():
			if !ok {
				p.log.Info("Kafka errors channel closed")
				return
			}
			p.log.Error("Outcome event delivery failed",
				slog.String("topic", err.Msg.Topic),
				slog.Any("error", err.Err))
		case <-ctx.Done():
			p.log.Info("Kafka error handler stopped by context")
			return
		}
	}
}

// Publish queues one outcome event, keyed by phone so events for the same
// number stay ordered within a partition.
func (p *producer) Publish(ctx context.Context, event model.OutcomeEvent) error {
	ctx, span := p.tracer.StartClientSpan(ctx, "KafkaPublish")
	defer span.End()

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Error("Failed to marshal outcome event",
			slog.String("phone", event.Phone),
			slog.Any("error", err))
		span.RecordError(err)
		return fmt.Errorf("failed to marshal outcome event: %w", err)
	}

	// Inject trace context into headers for propagation to consumers
	headers := tracing.InjectTraceContext(ctx, nil)

	msg := &sarama.ProducerMessage{
		Topic:     p.topic,
		Key:       sarama.StringEncoder(event.Phone),
		Value:     sarama.ByteEncoder(data),
		Timestamp: time.Now(),
		Headers:   headers,
	}

	select {
	case p.asyncProducer.Input() <- msg:
		p.log.Info("Outcome event queued to Kafka",
			slog.String("topic", p.topic),
			slog.String("phone", event.Phone),
			slog.String("status", event.Status))
		span.SetAttributes(
			attribute.String(tracing.AttrMessagingSystem, "kafka"),
			attribute.String(tracing.AttrMessagingDestination, p.topic),
			attribute.String("event.status", event.Status),
		)
		return nil
	case <-ctx.Done():
		p.log.Warn("Publish cancelled by context",
			slog.String("phone", event.Phone))
		span.SetStatus(2, "Publish cancelled by context") // 2 = Error
		return ctx.Err()
	}
}

// Close shuts down the producer and waits for workers
func (p *producer) Close(_ context.Context) {
	p.closeOnce.Do(func() {
		p.log.Info("Closing Kafka producer...")
		p.asyncProducer.AsyncClose()
		p.wg.Wait()
		p.log.Info("Kafka producer closed")
	})
}
