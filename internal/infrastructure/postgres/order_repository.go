// Package postgres implements the durable order store on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	domain "github.com/minimart-labs/orderflow/internal/domain/order"
)

const schema = `
CREATE TABLE IF NOT EXISTS orders (
    id            TEXT PRIMARY KEY,
    customer_id   TEXT        NOT NULL,
    store_id      TEXT        NOT NULL,
    status        TEXT        NOT NULL,
    status_reason TEXT        NOT NULL DEFAULT '',
    total         NUMERIC     NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS order_items (
    order_id   TEXT    NOT NULL REFERENCES orders (id),
    position   INT     NOT NULL,
    product_id TEXT    NOT NULL,
    quantity   INT     NOT NULL,
    price      NUMERIC NOT NULL,
    PRIMARY KEY (order_id, position)
);
`

type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// EnsureSchema creates the orders tables when they do not exist yet.
func (r *OrderRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, schema)
	return err
}

func (r *OrderRepository) Insert(ctx context.Context, o *domain.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO orders (id, customer_id, store_id, status, status_reason, total, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		o.ID, o.CustomerID, o.StoreID, string(o.Status), o.StatusReason,
		o.Total.String(), o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert order: %w", err)
	}

	for i, item := range o.Items {
		_, err = tx.Exec(ctx,
			`INSERT INTO order_items (order_id, position, product_id, quantity, price)
			 VALUES ($1, $2, $3, $4, $5)`,
			o.ID, i, item.ProductID, item.Quantity, item.Price.String(),
		)
		if err != nil {
			return fmt.Errorf("postgres: insert item: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	var (
		o      domain.Order
		status string
		total  string
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, customer_id, store_id, status, status_reason, total::text, created_at, updated_at
		 FROM orders WHERE id = $1`, id,
	).Scan(&o.ID, &o.CustomerID, &o.StoreID, &status, &o.StatusReason, &total, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get order: %w", err)
	}
	o.Status = domain.Status(status)
	if o.Total, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("postgres: parse total: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT product_id, quantity, price::text
		 FROM order_items WHERE order_id = $1 ORDER BY position`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: get items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item  domain.Item
			price string
		)
		if err := rows.Scan(&item.ProductID, &item.Quantity, &price); err != nil {
			return nil, fmt.Errorf("postgres: scan item: %w", err)
		}
		if item.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("postgres: parse price: %w", err)
		}
		o.Items = append(o.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate items: %w", err)
	}

	return &o, nil
}

func (r *OrderRepository) Update(ctx context.Context, o *domain.Order, expected domain.Status) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $1, status_reason = $2, updated_at = $3
		 WHERE id = $4 AND status = $5`,
		string(o.Status), o.StatusReason, o.UpdatedAt, o.ID, string(expected),
	)
	if err != nil {
		return fmt.Errorf("postgres: update order: %w", err)
	}
	if ct.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, o.ID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("postgres: update check: %w", err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%w: expected %s", domain.ErrConflict, expected)
}
