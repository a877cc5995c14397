package kafka

import "time"

// Events published by the marketplace core.

type OrderConfirmedEvent struct {
	OrderID          string    `json:"order_id"`
	EventID          string    `json:"event_id"`
	BuyerID          string    `json:"buyer_id"`
	Quantity         int       `json:"quantity"`
	TotalPrice       int64     `json:"total_price"`
	ConfirmationCode string    `json:"confirmation_code"`
	ConfirmedAt      time.Time `json:"confirmed_at"`
	Timestamp        time.Time `json:"timestamp"`
}

type OrderFailedEvent struct {
	OrderID   string    `json:"order_id"`
	EventID   string    `json:"event_id"`
	BuyerID   string    `json:"buyer_id"`
	Quantity  int       `json:"quantity"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// ReconciliationAlertEvent is published when a compensating release fails
// and the inventory for an event can no longer be trusted without manual
// intervention.
type ReconciliationAlertEvent struct {
	OrderID   string    `json:"order_id"`
	EventID   string    `json:"event_id"`
	Quantity  int       `json:"quantity"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// Topic names
const (
	TopicOrderConfirmed      = "ORDER_CONFIRMED"
	TopicOrderFailed         = "ORDER_FAILED"
	TopicReconciliationAlert = "INVENTORY_RECONCILIATION_ALERT"
)
