// Package stub provides always-succeeding in-process collaborators.
// Production implementations plug in behind the same application ports.
package stub

import (
	"context"

	"go.uber.org/zap"

	apporder "github.com/minimart-labs/orderflow/internal/application/order"
	"github.com/minimart-labs/orderflow/internal/pkg/logging"
)

type CustomerGateway struct{}

func NewCustomerGateway() CustomerGateway { return CustomerGateway{} }

func (CustomerGateway) GetCustomer(ctx context.Context, customerID string) (*apporder.Customer, error) {
	logging.FromContext(ctx).Info("customer_lookup", zap.String("customer_id", customerID))
	return &apporder.Customer{
		ID:    customerID,
		Name:  "John Doe",
		Email: "john.doe@example.com",
	}, nil
}

type InventoryGateway struct{}

func NewInventoryGateway() InventoryGateway { return InventoryGateway{} }

func (InventoryGateway) Reserve(ctx context.Context, items []apporder.ReservationItem) error {
	logging.FromContext(ctx).Info("inventory_reserve", zap.Int("items", len(items)))
	return nil
}

func (InventoryGateway) Release(ctx context.Context, items []apporder.ReservationItem) error {
	logging.FromContext(ctx).Info("inventory_release", zap.Int("items", len(items)))
	return nil
}

type PaymentGateway struct{}

func NewPaymentGateway() PaymentGateway { return PaymentGateway{} }

func (PaymentGateway) Authorize(ctx context.Context, req apporder.AuthorizationRequest) (*apporder.Authorization, error) {
	logging.FromContext(ctx).Info("payment_authorize", zap.String("customer_id", req.CustomerID))
	return &apporder.Authorization{TransactionID: "1234567890"}, nil
}
