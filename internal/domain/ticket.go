package domain

import "time"

type Ticket struct {
	ID              string    `json:"id"`
	OrderID         string    `json:"order_id"`
	SequenceInOrder int       `json:"sequence_in_order"`
	Code            string    `json:"code"`
	QRPayload       string    `json:"qr_payload"`
	IssuedAt        time.Time `json:"issued_at"`
}
