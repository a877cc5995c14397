package service

import (
	"time"

	"github.com/proticket/marketplace-core/internal/domain"
)

type CreateOrderInput struct {
	EventID        string `json:"event_id" validate:"required"`
	BuyerID        string `json:"buyer_id" validate:"required"`
	BuyerName      string `json:"buyer_name" validate:"required"`
	Quantity       int    `json:"quantity" validate:"gt=0"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type CreateOrderOutput struct {
	Order   domain.Order    `json:"order"`
	Tickets []domain.Ticket `json:"tickets"`
}

type CreateEventInput struct {
	Title         string    `json:"title" validate:"required"`
	Description   string    `json:"description"`
	Location      string    `json:"location"`
	Category      string    `json:"category"`
	StartsAt      time.Time `json:"starts_at"`
	UnitPrice     int64     `json:"unit_price" validate:"gte=0"`
	Capacity      int       `json:"capacity" validate:"gt=0"`
	OrganizerID   string    `json:"organizer_id" validate:"required"`
	OrganizerName string    `json:"organizer_name"`
	OrganizerRole string    `json:"organizer_role" validate:"required"`
}

type UpdateEventInput struct {
	EventID     string  `json:"event_id" validate:"required"`
	UserID      string  `json:"user_id" validate:"required"`
	UserRole    string  `json:"user_role" validate:"required"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Location    *string `json:"location,omitempty"`
	Category    *string `json:"category,omitempty"`
	Status      *string `json:"status,omitempty"`
}

type CheckLoginOutput struct {
	Allowed          bool `json:"allowed"`
	RemainingMinutes int  `json:"remaining_minutes,omitempty"`
}
