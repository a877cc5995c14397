package domain

import "time"

type Event struct {
	ID               string      `json:"id"`
	Title            string      `json:"title"`
	Description      string      `json:"description,omitempty"`
	Location         string      `json:"location,omitempty"`
	Category         string      `json:"category,omitempty"`
	StartsAt         time.Time   `json:"starts_at"`
	UnitPrice        int64       `json:"unit_price"`
	Capacity         int         `json:"capacity"`
	AvailableTickets int         `json:"available_tickets"`
	TicketsSold      int         `json:"tickets_sold"`
	Revenue          int64       `json:"revenue"`
	Status           EventStatus `json:"status"`
	OrganizerID      string      `json:"organizer_id"`
	OrganizerName    string      `json:"organizer_name,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

type EventStatus string

const (
	EventStatusActive EventStatus = "active"
	EventStatusClosed EventStatus = "closed"
)

func (e *Event) IsActive() bool {
	return e.Status == EventStatusActive
}

// Accounted reports whether the capacity split and revenue still add up.
// Every accepted write must keep this true.
func (e *Event) Accounted() bool {
	return e.TicketsSold+e.AvailableTickets == e.Capacity &&
		e.Revenue == int64(e.TicketsSold)*e.UnitPrice
}

func (e *Event) HasSales() bool {
	return e.TicketsSold > 0
}
