package domain

import "time"

type Order struct {
	ID               string      `json:"id"`
	EventID          string      `json:"event_id"`
	BuyerID          string      `json:"buyer_id"`
	BuyerName        string      `json:"buyer_name"`
	Quantity         int         `json:"quantity"`
	TotalPrice       int64       `json:"total_price"`
	ConfirmationCode string      `json:"confirmation_code"`
	IdempotencyKey   string      `json:"idempotency_key,omitempty"`
	Status           OrderStatus `json:"status"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusFailed    OrderStatus = "failed"
)

func (o *Order) IsConfirmed() bool {
	return o.Status == OrderStatusConfirmed
}
