package order

import "context"

// Repository is durable keyed storage for Order aggregates.
//
// Update is conditional: it only writes when the stored status still equals
// expected, returning ErrConflict otherwise. That check is the saga's sole
// concurrency-safety mechanism, so every implementation must honor it.
type Repository interface {
	Insert(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	Update(ctx context.Context, o *Order, expected Status) error
}
