package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/minimart-labs/orderflow/internal/domain/order"
)

type fakeRepo struct {
	mu     sync.Mutex
	orders map[string]*domain.Order

	insertErr error
	updateErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{orders: make(map[string]*domain.Order)}
}

func (r *fakeRepo) Insert(_ context.Context, o *domain.Order) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[o.ID]; ok {
		return domain.ErrConflict
	}
	r.orders[o.ID] = o.Clone()
	return nil
}

func (r *fakeRepo) Get(_ context.Context, id string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return o.Clone(), nil
}

func (r *fakeRepo) Update(_ context.Context, o *domain.Order, expected domain.Status) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.orders[o.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Status != expected {
		return fmt.Errorf("%w: expected %s, stored %s", domain.ErrConflict, expected, stored.Status)
	}
	r.orders[o.ID] = o.Clone()
	return nil
}

func (r *fakeRepo) stored(t *testing.T, id string) *domain.Order {
	t.Helper()
	o, err := r.Get(context.Background(), id)
	require.NoError(t, err)
	return o
}

type fakeCustomers struct{ err error }

func (f *fakeCustomers) GetCustomer(context.Context, string) (*Customer, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &Customer{ID: "c1", Name: "John Doe"}, nil
}

type fakeInventory struct {
	reserveErr error
	releaseErr error
	reserves   [][]ReservationItem
	releases   [][]ReservationItem
}

func (f *fakeInventory) Reserve(_ context.Context, items []ReservationItem) error {
	f.reserves = append(f.reserves, items)
	return f.reserveErr
}

func (f *fakeInventory) Release(_ context.Context, items []ReservationItem) error {
	f.releases = append(f.releases, items)
	return f.releaseErr
}

type fakePayments struct {
	err   error
	calls int
}

func (f *fakePayments) Authorize(context.Context, AuthorizationRequest) (*Authorization, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &Authorization{TransactionID: "tx-1"}, nil
}

type fakePublisher struct {
	err       error
	published []string
}

func (f *fakePublisher) OrderCreated(_ context.Context, o *domain.Order) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, o.ID)
	return nil
}

type fakeShipper struct {
	err     error
	shipped []string
}

func (f *fakeShipper) ShipOrder(_ context.Context, o *domain.Order) error {
	if f.err != nil {
		return f.err
	}
	f.shipped = append(f.shipped, o.ID)
	return nil
}

type seqIDs struct{ n int }

func (s *seqIDs) NewID() string {
	s.n++
	return fmt.Sprintf("order-%d", s.n)
}

type sagaFixture struct {
	service   *Service
	repo      *fakeRepo
	customers *fakeCustomers
	inventory *fakeInventory
	payments  *fakePayments
	publisher *fakePublisher
	shipper   *fakeShipper
}

func newSagaFixture() *sagaFixture {
	f := &sagaFixture{
		repo:      newFakeRepo(),
		customers: &fakeCustomers{},
		inventory: &fakeInventory{},
		payments:  &fakePayments{},
		publisher: &fakePublisher{},
		shipper:   &fakeShipper{},
	}
	f.service = NewService(
		f.repo, &seqIDs{},
		f.customers, f.inventory, f.payments,
		f.publisher, f.shipper,
		nil,
	)
	return f
}

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testInput() CreateOrderInput {
	return CreateOrderInput{
		CustomerID: "c1",
		StoreID:    "s1",
		Items: []domain.Item{
			{ProductID: "p1", Quantity: 2, Price: price("10.00")},
			{ProductID: "p2", Quantity: 1, Price: price("5.50")},
		},
	}
}

func TestCreateOrderSuccess(t *testing.T) {
	f := newSagaFixture()

	o, err := f.service.CreateOrder(context.Background(), testInput())
	require.NoError(t, err)

	assert.Equal(t, domain.StatusProcessing, o.Status)
	assert.True(t, o.Total.Equal(price("25.50")), "total = %s", o.Total)

	stored := f.repo.stored(t, o.ID)
	assert.Equal(t, domain.StatusProcessing, stored.Status)

	assert.Equal(t, []string{o.ID}, f.publisher.published)
	assert.Equal(t, []string{o.ID}, f.shipper.shipped)
	assert.Empty(t, f.inventory.releases)
}

func TestCreateOrderCustomerFailure(t *testing.T) {
	f := newSagaFixture()
	f.customers.err = &CollaboratorError{Code: "CUSTOMER_NOT_FOUND", Message: "customer not found"}

	_, err := f.service.CreateOrder(context.Background(), testInput())
	require.Error(t, err)
	assert.EqualError(t, err, "customer not found")

	assert.Empty(t, f.repo.orders, "no order is created")
	assert.Empty(t, f.inventory.reserves)
	assert.Zero(t, f.payments.calls)
}

func TestCreateOrderInvalidItemsHaveNoSideEffects(t *testing.T) {
	tests := []struct {
		name string
		item domain.Item
		want error
	}{
		{"zero quantity", domain.Item{ProductID: "p1", Quantity: 0, Price: price("1.00")}, domain.ErrInvalidQuantity},
		{"price below minimum", domain.Item{ProductID: "p1", Quantity: 1, Price: price("0.001")}, domain.ErrInvalidPrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSagaFixture()
			input := testInput()
			input.Items = []domain.Item{tt.item}

			_, err := f.service.CreateOrder(context.Background(), input)
			require.ErrorIs(t, err, tt.want)

			assert.Empty(t, f.inventory.reserves, "nothing is reserved for a rejected request")
			assert.Empty(t, f.inventory.releases)
			assert.Empty(t, f.repo.orders, "no order is created")
			assert.Zero(t, f.payments.calls)
		})
	}
}

func TestCreateOrderReserveFailure(t *testing.T) {
	f := newSagaFixture()
	f.inventory.reserveErr = &CollaboratorError{Code: "OUT_OF_STOCK", Message: "insufficient stock"}

	_, err := f.service.CreateOrder(context.Background(), testInput())
	require.Error(t, err)
	assert.EqualError(t, err, "insufficient stock")

	assert.Empty(t, f.repo.orders, "no order is created")
	assert.Empty(t, f.inventory.releases, "nothing was reserved, nothing to release")
}

func TestCreateOrderPaymentFailureCompensates(t *testing.T) {
	f := newSagaFixture()
	paymentErr := &CollaboratorError{Code: "CARD_DECLINED", Message: "card declined"}
	f.payments.err = paymentErr

	_, err := f.service.CreateOrder(context.Background(), testInput())
	require.Error(t, err)
	assert.Equal(t, paymentErr, err, "payment error surfaces to the caller")

	require.Len(t, f.repo.orders, 1)
	stored := f.repo.stored(t, "order-1")
	assert.Equal(t, domain.StatusCanceled, stored.Status)
	assert.Equal(t, "card declined", stored.StatusReason)

	require.Len(t, f.inventory.releases, 1, "release invoked exactly once")
	assert.Equal(t, []ReservationItem{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", Quantity: 1},
	}, f.inventory.releases[0])

	assert.Empty(t, f.publisher.published)
	assert.Empty(t, f.shipper.shipped)
}

func TestCreateOrderPublishFailureLeavesProcessing(t *testing.T) {
	f := newSagaFixture()
	f.publisher.err = errors.New("topic unavailable")

	_, err := f.service.CreateOrder(context.Background(), testInput())
	require.Error(t, err)

	// Known gap: no compensation after payment is captured.
	stored := f.repo.stored(t, "order-1")
	assert.Equal(t, domain.StatusProcessing, stored.Status)
	assert.Empty(t, f.inventory.releases)
	assert.Empty(t, f.shipper.shipped)
}

func TestCreateOrderShippingFailureLeavesProcessing(t *testing.T) {
	f := newSagaFixture()
	f.shipper.err = errors.New("shipping unavailable")

	_, err := f.service.CreateOrder(context.Background(), testInput())
	require.Error(t, err)

	stored := f.repo.stored(t, "order-1")
	assert.Equal(t, domain.StatusProcessing, stored.Status)
	assert.Empty(t, f.inventory.releases)
}

func pendingOrder(t *testing.T, f *sagaFixture) *domain.Order {
	t.Helper()
	o, err := domain.New("order-pending", "c1", "s1", testInput().Items)
	require.NoError(t, err)
	require.NoError(t, f.repo.Insert(context.Background(), o))
	return o
}

func TestCancelOrder(t *testing.T) {
	t.Run("cancels a pending order", func(t *testing.T) {
		f := newSagaFixture()
		o := pendingOrder(t, f)

		result, err := f.service.CancelOrder(context.Background(), o.ID)
		require.NoError(t, err)

		assert.Equal(t, domain.StatusCanceled, result.Status)
		assert.Equal(t, domain.CancelReasonCustomer, result.StatusReason)
		require.Len(t, f.inventory.releases, 1)
	})

	t.Run("rejects a non-pending order", func(t *testing.T) {
		f := newSagaFixture()
		o, err := f.service.CreateOrder(context.Background(), testInput())
		require.NoError(t, err)

		_, err = f.service.CancelOrder(context.Background(), o.ID)
		assert.ErrorIs(t, err, domain.ErrConflict)

		stored := f.repo.stored(t, o.ID)
		assert.Equal(t, domain.StatusProcessing, stored.Status, "status is not mutated")
	})

	t.Run("unknown order", func(t *testing.T) {
		f := newSagaFixture()
		_, err := f.service.CancelOrder(context.Background(), "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("release failure rejects without mutating", func(t *testing.T) {
		f := newSagaFixture()
		o := pendingOrder(t, f)
		f.inventory.releaseErr = &CollaboratorError{Code: "INVENTORY_DOWN", Message: "inventory unavailable"}

		_, err := f.service.CancelOrder(context.Background(), o.ID)
		require.Error(t, err)

		stored := f.repo.stored(t, o.ID)
		assert.Equal(t, domain.StatusPending, stored.Status)
	})
}

func TestHandleOrderShipped(t *testing.T) {
	t.Run("first delivery ships, second conflicts", func(t *testing.T) {
		f := newSagaFixture()
		o, err := f.service.CreateOrder(context.Background(), testInput())
		require.NoError(t, err)

		shipped, err := f.service.HandleOrderShipped(context.Background(), o.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusShipped, shipped.Status)

		_, err = f.service.HandleOrderShipped(context.Background(), o.ID)
		assert.ErrorIs(t, err, domain.ErrConflict)

		stored := f.repo.stored(t, o.ID)
		assert.Equal(t, domain.StatusShipped, stored.Status, "duplicate delivery does not re-mutate")
	})

	t.Run("pending order conflicts", func(t *testing.T) {
		f := newSagaFixture()
		o := pendingOrder(t, f)

		_, err := f.service.HandleOrderShipped(context.Background(), o.ID)
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("unknown order", func(t *testing.T) {
		f := newSagaFixture()
		_, err := f.service.HandleOrderShipped(context.Background(), "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
