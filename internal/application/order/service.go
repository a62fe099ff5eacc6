// Package order orchestrates the order saga: creation, payment-failure
// compensation, explicit cancellation, and shipment confirmation.
package order

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	domain "github.com/minimart-labs/orderflow/internal/domain/order"
	"github.com/minimart-labs/orderflow/internal/pkg/logging"
)

const (
	useCaseCreate = "order.create"
	useCaseCancel = "order.cancel"
	useCaseShip   = "order.handle_shipped"
)

// Service drives the order lifecycle against the customer, inventory,
// payment, and shipping collaborators. All status mutation goes through
// here; the repository's conditional update is the only concurrency guard.
type Service struct {
	repo      domain.Repository
	ids       IDGenerator
	customers CustomerGateway
	inventory InventoryGateway
	payments  PaymentGateway
	publisher EventPublisher
	shipper   Shipper
	metrics   *Metrics
	tracer    trace.Tracer
}

func NewService(
	repo domain.Repository,
	ids IDGenerator,
	customers CustomerGateway,
	inventory InventoryGateway,
	payments PaymentGateway,
	publisher EventPublisher,
	shipper Shipper,
	metrics *Metrics,
) *Service {
	return &Service{
		repo:      repo,
		ids:       ids,
		customers: customers,
		inventory: inventory,
		payments:  payments,
		publisher: publisher,
		shipper:   shipper,
		metrics:   metrics,
		tracer:    otel.Tracer("orderflow/application/order"),
	}
}

type CreateOrderInput struct {
	CustomerID string
	StoreID    string
	Items      []domain.Item
}

// CreateOrder runs the full saga:
//
//	verify customer -> reserve inventory -> persist PENDING -> authorize
//	payment -> PROCESSING -> publish order.created -> ship.
//
// Payment failure is the only compensated step: reserved inventory is
// released and the order lands in CANCELED with the payment error as its
// status reason. A publish or shipping failure after payment propagates to
// the caller with the order left PROCESSING and payment captured; there is
// no retry path for that case, so it is logged at error level.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (_ *domain.Order, err error) {
	logger := logging.FromContext(ctx).With(zap.String("use_case", useCaseCreate))

	ctx, span := s.tracer.Start(ctx, "Saga.CreateOrder",
		trace.WithAttributes(
			attribute.String("order.customer_id", input.CustomerID),
			attribute.String("order.store_id", input.StoreID),
			attribute.Int("order.item_count", len(input.Items)),
		))
	start := time.Now()
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
		s.metrics.observe(useCaseCreate, outcome, time.Since(start).Seconds())
	}()

	logger.Info("create_order_start",
		zap.String("customer_id", input.CustomerID),
		zap.String("store_id", input.StoreID),
		zap.Int("items", len(input.Items)),
	)

	// The entity is built first so item validation rejects the request
	// before any collaborator is called.
	entity, err := domain.New(s.ids.NewID(), input.CustomerID, input.StoreID, input.Items)
	if err != nil {
		return nil, err
	}

	if _, err := s.customers.GetCustomer(ctx, input.CustomerID); err != nil {
		logger.Warn("customer_check_failed", zap.Error(err))
		return nil, err
	}

	reservation := toReservationItems(input.Items)
	if err := s.inventory.Reserve(ctx, reservation); err != nil {
		logger.Warn("inventory_reserve_failed", zap.Error(err))
		return nil, err
	}

	// The PENDING row is committed before payment so a persisted order
	// exists for every successful reservation.
	if err := s.repo.Insert(ctx, entity); err != nil {
		logger.Error("order_insert_failed", zap.Error(err))
		return nil, fmt.Errorf("order: insert: %w", err)
	}
	span.SetAttributes(attribute.String("order.id", entity.ID))

	if _, err := s.payments.Authorize(ctx, AuthorizationRequest{
		CustomerID: input.CustomerID,
		StoreID:    input.StoreID,
		Items:      reservation,
	}); err != nil {
		return nil, s.compensatePaymentFailure(ctx, logger, entity, reservation, err)
	}

	if err := entity.Authorize(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, entity, domain.StatusPending); err != nil {
		logger.Error("order_update_failed", zap.String("order_id", entity.ID), zap.Error(err))
		return nil, fmt.Errorf("order: update: %w", err)
	}

	if err := s.publisher.OrderCreated(ctx, entity); err != nil {
		// Known gap: payment is captured and nothing unwinds it here.
		logger.Error("event_publish_failed",
			zap.String("order_id", entity.ID),
			zap.Error(err),
		)
		return nil, err
	}

	if err := s.shipper.ShipOrder(ctx, entity); err != nil {
		logger.Error("shipping_dispatch_failed",
			zap.String("order_id", entity.ID),
			zap.Error(err),
		)
		return nil, err
	}

	logger.Info("create_order_success",
		zap.String("order_id", entity.ID),
		zap.String("status", string(entity.Status)),
		zap.String("total", entity.Total.String()),
	)
	return entity, nil
}

// compensatePaymentFailure is the saga's only compensating action: release
// the reserved inventory and cancel the order, then surface the payment
// error. A release failure is logged but does not preempt the cancel.
func (s *Service) compensatePaymentFailure(
	ctx context.Context,
	logger *zap.Logger,
	entity *domain.Order,
	reservation []ReservationItem,
	paymentErr error,
) error {
	logger.Warn("payment_authorization_failed",
		zap.String("order_id", entity.ID),
		zap.Error(paymentErr),
	)

	if err := s.inventory.Release(ctx, reservation); err != nil {
		logger.Error("inventory_release_failed",
			zap.String("order_id", entity.ID),
			zap.Error(err),
		)
	}

	if err := entity.Cancel(paymentErr.Error()); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, entity, domain.StatusPending); err != nil {
		logger.Error("order_cancel_update_failed",
			zap.String("order_id", entity.ID),
			zap.Error(err),
		)
		return fmt.Errorf("order: cancel after payment failure: %w", err)
	}

	return paymentErr
}

// GetOrder returns the order with its items, or domain.ErrNotFound.
func (s *Service) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return s.repo.Get(ctx, id)
}

// CancelOrder cancels a PENDING order on the customer's request. Inventory
// is released first; a release failure rejects the cancel without mutating
// status.
func (s *Service) CancelOrder(ctx context.Context, id string) (_ *domain.Order, err error) {
	logger := logging.FromContext(ctx).With(
		zap.String("use_case", useCaseCancel),
		zap.String("order_id", id),
	)
	start := time.Now()
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		s.metrics.observe(useCaseCancel, outcome, time.Since(start).Seconds())
	}()

	entity, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if entity.Status != domain.StatusPending {
		return nil, fmt.Errorf("%w: cancel requires %s, order is %s",
			domain.ErrConflict, domain.StatusPending, entity.Status)
	}

	if err := s.inventory.Release(ctx, toReservationItems(entity.Items)); err != nil {
		logger.Warn("inventory_release_failed", zap.Error(err))
		return nil, err
	}

	if err := entity.Cancel(domain.CancelReasonCustomer); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, entity, domain.StatusPending); err != nil {
		return nil, err
	}

	logger.Info("cancel_order_success")
	return entity, nil
}

// HandleOrderShipped records a shipment confirmation. Requiring exactly
// PROCESSING doubles as the idempotency guard: a duplicate order.shipped
// delivery fails here with a status conflict instead of re-mutating.
func (s *Service) HandleOrderShipped(ctx context.Context, id string) (_ *domain.Order, err error) {
	logger := logging.FromContext(ctx).With(
		zap.String("use_case", useCaseShip),
		zap.String("order_id", id),
	)
	start := time.Now()
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		s.metrics.observe(useCaseShip, outcome, time.Since(start).Seconds())
	}()

	entity, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if entity.Status != domain.StatusProcessing {
		return nil, fmt.Errorf("%w: shipment requires %s, order is %s",
			domain.ErrConflict, domain.StatusProcessing, entity.Status)
	}

	if err := entity.Ship(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, entity, domain.StatusProcessing); err != nil {
		return nil, err
	}

	logger.Info("order_shipped")
	return entity, nil
}

func toReservationItems(items []domain.Item) []ReservationItem {
	out := make([]ReservationItem, 0, len(items))
	for _, item := range items {
		out = append(out, ReservationItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return out
}
