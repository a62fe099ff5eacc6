package order

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/minimart-labs/orderflow/internal/domain/messaging"
	domain "github.com/minimart-labs/orderflow/internal/domain/order"
)

// ShipmentHandler advances an order on a shipment confirmation.
type ShipmentHandler interface {
	HandleOrderShipped(ctx context.Context, id string) (*domain.Order, error)
}

// Consumer drains the shipment-events queue on a fixed interval and feeds
// recognized events back into the saga. A message is acknowledged only
// after its handler returns without error; everything else stays on the
// queue for redelivery once the visibility window lapses. Errors never
// escape a poll cycle.
type Consumer struct {
	channel   messaging.Channel
	handler   ShipmentHandler
	queue     string
	interval  time.Duration
	batchSize int
	metrics   *Metrics
	tracer    trace.Tracer
	log       *zap.Logger
}

func NewConsumer(
	channel messaging.Channel,
	handler ShipmentHandler,
	queue string,
	interval time.Duration,
	batchSize int,
	metrics *Metrics,
	logger *zap.Logger,
) *Consumer {
	if logger == nil {
		logger = zap.L()
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 10
	}
	return &Consumer{
		channel:   channel,
		handler:   handler,
		queue:     queue,
		interval:  interval,
		batchSize: batchSize,
		metrics:   metrics,
		tracer:    otel.Tracer("orderflow/application/order"),
		log:       logger.With(zap.String("component", "order_events_consumer")),
	}
}

// Run polls until ctx is canceled. Each tick is one independent cycle.
func (c *Consumer) Run(ctx context.Context) {
	c.log.Info("consumer_started",
		zap.String("queue", c.queue),
		zap.Duration("interval", c.interval),
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("consumer_stopped")
			return
		case <-ticker.C:
			c.Poll(ctx)
		}
	}
}

// Poll runs a single cycle: resolve the queue, receive a bounded batch,
// and handle messages in delivery order. Handling failures are isolated
// per message so one bad message cannot starve the rest of the batch.
func (c *Consumer) Poll(ctx context.Context) {
	if c.queue == "" {
		c.log.Error("queue_not_configured", zap.Error(messaging.ErrQueueNotConfigured))
		return
	}

	messages, err := c.channel.Receive(ctx, c.queue, c.batchSize)
	if err != nil {
		c.log.Error("receive_failed", zap.String("queue", c.queue), zap.Error(err))
		return
	}
	if len(messages) == 0 {
		return
	}
	c.log.Debug("messages_received", zap.Int("count", len(messages)))

	for _, msg := range messages {
		c.handleMessage(ctx, msg)
	}
}

func (c *Consumer) handleMessage(ctx context.Context, msg messaging.Message) {
	env, err := messaging.DecodeEnvelope(msg.Body)
	if err != nil {
		c.metrics.message("decode_error")
		c.log.Warn("message_decode_failed", zap.Error(err))
		return
	}

	ctx, span := c.tracer.Start(ctx, "Consumer.HandleMessage",
		trace.WithAttributes(
			attribute.String("event.id", env.ID),
			attribute.String("event.type", env.EventType),
		))
	defer span.End()

	switch env.EventType {
	case messaging.EventOrderShipped:
		var payload domain.ShippedPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			c.metrics.message("decode_error")
			span.SetStatus(codes.Error, "payload decode failed")
			c.log.Warn("payload_decode_failed",
				zap.String("event", env.EventType),
				zap.Error(err),
			)
			return
		}

		if _, err := c.handler.HandleOrderShipped(ctx, payload.Order.ID); err != nil {
			c.metrics.message("handle_error")
			span.RecordError(err)
			span.SetStatus(codes.Error, "handling failed")
			c.log.Warn("event_handling_failed",
				zap.String("event", env.EventType),
				zap.String("order_id", payload.Order.ID),
				zap.Error(err),
			)
			return
		}

		if err := c.channel.Acknowledge(ctx, c.queue, msg.ReceiptHandle); err != nil {
			c.metrics.message("ack_error")
			span.RecordError(err)
			span.SetStatus(codes.Error, "acknowledge failed")
			c.log.Warn("acknowledge_failed",
				zap.String("event", env.EventType),
				zap.Error(err),
			)
			return
		}

		c.metrics.message("handled")
		span.SetStatus(codes.Ok, "")
		c.log.Info("event_handled",
			zap.String("event", env.EventType),
			zap.String("order_id", payload.Order.ID),
		)

	default:
		// Not an error: the message stays queued for redelivery or for
		// manual inspection.
		c.metrics.message("unrecognized")
		c.log.Warn("unhandled_event_type", zap.String("event", env.EventType))
	}
}
