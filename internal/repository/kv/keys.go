package repository

import "fmt"

// Key layout in the durable store. Every entity is one independently
// versioned record; the *_events and *_orders keys are index records
// listing IDs, mutated with the same compare-and-set discipline as
// everything else.
func eventKey(eventID string) string {
	return fmt.Sprintf("event:%s", eventID)
}

func orderKey(orderID string) string {
	return fmt.Sprintf("order:%s", orderID)
}

func orderIdemKey(buyerID, idemKey string) string {
	return fmt.Sprintf("order_idem:%s:%s", buyerID, idemKey)
}

func ticketKey(orderID string, seq int) string {
	return fmt.Sprintf("ticket:%s:%04d", orderID, seq)
}

func ticketOrderPrefix(orderID string) string {
	return fmt.Sprintf("ticket:%s:", orderID)
}

func loginAttemptsKey(identity string) string {
	return fmt.Sprintf("login_attempts:%s", identity)
}

func organizerEventsKey(organizerID string) string {
	return fmt.Sprintf("organizer_events:%s", organizerID)
}

func buyerOrdersKey(buyerID string) string {
	return fmt.Sprintf("user_orders:%s", buyerID)
}

const eventPrefix = "event:"
