// Package shipping is the demo shipping step: it publishes order.shipped
// immediately rather than handing the order to a deferred fulfillment
// pipeline. The consumer picks the event back up to close the loop.
package shipping

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/minimart-labs/orderflow/internal/domain/messaging"
	domain "github.com/minimart-labs/orderflow/internal/domain/order"
	"github.com/minimart-labs/orderflow/internal/pkg/logging"
)

type Service struct {
	channel messaging.Channel
}

func NewService(channel messaging.Channel) *Service {
	return &Service{channel: channel}
}

func (s *Service) ShipOrder(ctx context.Context, o *domain.Order) error {
	logging.FromContext(ctx).Info("shipping_order", zap.String("order_id", o.ID))

	payload := domain.ShippedPayload{Order: domain.ShippedOrder{ID: o.ID}}
	if err := s.channel.Publish(ctx, messaging.EventOrderShipped, payload); err != nil {
		return fmt.Errorf("publish %s: %w", messaging.EventOrderShipped, err)
	}
	return nil
}
