package order

import (
	"context"

	domain "github.com/minimart-labs/orderflow/internal/domain/order"
)

type IDGenerator interface {
	NewID() string
}

// Customer is the collaborator's view of a verified customer.
type Customer struct {
	ID    string
	Name  string
	Email string
}

// ReservationItem is the product/quantity pair collaborators operate on.
type ReservationItem struct {
	ProductID string
	Quantity  int
}

// AuthorizationRequest asks the payment collaborator to authorize the full
// item set for a customer at a store.
type AuthorizationRequest struct {
	CustomerID string
	StoreID    string
	Items      []ReservationItem
}

type Authorization struct {
	TransactionID string
}

// CollaboratorError is a typed failure reported by a collaborator call.
// Its message is surfaced verbatim to the saga's caller.
type CollaboratorError struct {
	Code    string
	Message string
}

func (e *CollaboratorError) Error() string { return e.Message }

// CustomerGateway verifies a customer exists and is in good standing.
type CustomerGateway interface {
	GetCustomer(ctx context.Context, customerID string) (*Customer, error)
}

// InventoryGateway reserves and releases stock for an item set.
type InventoryGateway interface {
	Reserve(ctx context.Context, items []ReservationItem) error
	Release(ctx context.Context, items []ReservationItem) error
}

// PaymentGateway authorizes payment for an order's item set.
type PaymentGateway interface {
	Authorize(ctx context.Context, req AuthorizationRequest) (*Authorization, error)
}

// Shipper dispatches a processing order to the shipping collaborator.
type Shipper interface {
	ShipOrder(ctx context.Context, o *domain.Order) error
}

// EventPublisher emits the order.created event after payment succeeds.
type EventPublisher interface {
	OrderCreated(ctx context.Context, o *domain.Order) error
}
