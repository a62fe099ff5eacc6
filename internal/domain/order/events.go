package order

import "time"

// CreatedPayload is the order.created event body published for downstream
// services (fulfillment, accounting). It carries the full order and items.
type CreatedPayload struct {
	ID           string    `json:"id"`
	CustomerID   string    `json:"customerId"`
	StoreID      string    `json:"storeId"`
	Status       Status    `json:"status"`
	StatusReason string    `json:"statusReason,omitempty"`
	Total        string    `json:"total"`
	OrderItems   []Item    `json:"orderItems"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func NewCreatedPayload(o *Order) CreatedPayload {
	return CreatedPayload{
		ID:           o.ID,
		CustomerID:   o.CustomerID,
		StoreID:      o.StoreID,
		Status:       o.Status,
		StatusReason: o.StatusReason,
		Total:        o.Total.String(),
		OrderItems:   append([]Item(nil), o.Items...),
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
}

// ShippedPayload is the order.shipped event body. Only the order reference
// is consumed; shippers may attach the full order.
type ShippedPayload struct {
	Order ShippedOrder `json:"order"`
}

type ShippedOrder struct {
	ID string `json:"id"`
}
