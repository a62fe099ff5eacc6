package order

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/minimart-labs/orderflow/internal/domain/messaging"
	domain "github.com/minimart-labs/orderflow/internal/domain/order"
	"github.com/minimart-labs/orderflow/internal/pkg/logging"
)

// Publisher translates a completed lifecycle transition into an outbound
// event on the channel. Publish failures return to the saga's caller.
type Publisher struct {
	channel messaging.Channel
}

func NewPublisher(channel messaging.Channel) *Publisher {
	return &Publisher{channel: channel}
}

func (p *Publisher) OrderCreated(ctx context.Context, o *domain.Order) error {
	if err := p.channel.Publish(ctx, messaging.EventOrderCreated, domain.NewCreatedPayload(o)); err != nil {
		return fmt.Errorf("publish %s: %w", messaging.EventOrderCreated, err)
	}
	logging.FromContext(ctx).Info("event_published",
		zap.String("event", messaging.EventOrderCreated),
		zap.String("order_id", o.ID),
	)
	return nil
}
