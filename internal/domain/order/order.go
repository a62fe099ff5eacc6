// Package order holds the Order aggregate and its lifecycle rules.
package order

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound        = errors.New("order: not found")
	ErrConflict        = errors.New("order: status conflict")
	ErrNoItems         = errors.New("order: at least one item is required")
	ErrInvalidQuantity = errors.New("order: item quantity must be at least one")
	ErrInvalidPrice    = errors.New("order: item price must be at least 0.01")
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusCanceled   Status = "CANCELED"
)

// CancelReasonCustomer is the status reason recorded for an explicit cancel.
const CancelReasonCustomer = "Order canceled by customer"

var minPrice = decimal.RequireFromString("0.01")

// Item is a value object owned by its Order, immutable once persisted.
type Item struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Order is the aggregate root. Status is mutated only through the
// transition methods below; Total is computed once at creation.
type Order struct {
	ID           string          `json:"id"`
	CustomerID   string          `json:"customerId"`
	StoreID      string          `json:"storeId"`
	Status       Status          `json:"status"`
	StatusReason string          `json:"statusReason,omitempty"`
	Total        decimal.Decimal `json:"total"`
	Items        []Item          `json:"orderItems"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// New builds a PENDING order with Total = Σ price×quantity over items.
func New(id, customerID, storeID string, items []Item) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}

	total := decimal.Zero
	for _, item := range items {
		if item.Quantity < 1 {
			return nil, fmt.Errorf("%w: product %s", ErrInvalidQuantity, item.ProductID)
		}
		if item.Price.LessThan(minPrice) {
			return nil, fmt.Errorf("%w: product %s", ErrInvalidPrice, item.ProductID)
		}
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	now := time.Now().UTC()
	return &Order{
		ID:         id,
		CustomerID: customerID,
		StoreID:    storeID,
		Status:     StatusPending,
		Total:      total,
		Items:      append([]Item(nil), items...),
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Authorize moves a PENDING order to PROCESSING after payment success.
func (o *Order) Authorize() error {
	return o.transition(EventAuthorize, "")
}

// Cancel moves a PENDING order to CANCELED, recording why.
func (o *Order) Cancel(reason string) error {
	return o.transition(EventCancel, reason)
}

// Ship moves a PROCESSING order to SHIPPED.
func (o *Order) Ship() error {
	return o.transition(EventShip, "")
}

func (o *Order) transition(event string, reason string) error {
	next, err := lifecycle.Transition(o.Status, event)
	if err != nil {
		return err
	}
	o.Status = next
	if reason != "" {
		o.StatusReason = reason
	}
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// Clone returns a deep copy so repository callers cannot alias stored state.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Items = append([]Item(nil), o.Items...)
	return &clone
}
