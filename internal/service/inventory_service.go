package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/proticket/marketplace-core/internal/domain"
	repo "github.com/proticket/marketplace-core/internal/repository/kv"
	"github.com/proticket/marketplace-core/pkg/logger"
)

// InventoryService owns every mutation of an event's capacity accounting.
// Reservations and releases go through the repository's optimistic
// read-modify-write cycle, so any number of concurrent purchases against
// the same event settle to exactly the capacity that existed, never more.
type InventoryService interface {
	// Reserve converts quantity units of available capacity into sold
	// capacity and returns the event as it looked immediately after the
	// accepted write. Fails with ErrInsufficientInventory when capacity
	// is short (no mutation), ErrEventNotFound, ErrEventNotActive, or
	// kvstore.ErrConflict when retries are exhausted under contention.
	Reserve(ctx context.Context, eventID string, quantity int) (*domain.Event, error)

	// Release is the exact inverse of Reserve, used only to compensate a
	// reservation whose downstream issuance failed.
	Release(ctx context.Context, eventID string, quantity int) error
}

type inventoryService struct {
	events repo.EventRepository
	l      logger.Logger
}

func NewInventoryService(events repo.EventRepository, l logger.Logger) InventoryService {
	return &inventoryService{
		events: events,
		l:      l,
	}
}

func (s *inventoryService) Reserve(ctx context.Context, eventID string, quantity int) (*domain.Event, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	ev, err := s.events.Mutate(ctx, eventID, func(ev *domain.Event) error {
		if !ev.IsActive() {
			return ErrEventNotActive
		}
		if ev.AvailableTickets < quantity {
			return ErrInsufficientInventory
		}

		ev.AvailableTickets -= quantity
		ev.TicketsSold += quantity
		ev.Revenue += int64(quantity) * ev.UnitPrice
		return nil
	})
	if err != nil {
		if errors.Is(err, repo.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}

	s.l.Infof(ctx, "Reserved %d tickets for event %s (%d remaining)",
		quantity, eventID, ev.AvailableTickets)

	return ev, nil
}

func (s *inventoryService) Release(ctx context.Context, eventID string, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	ev, err := s.events.Mutate(ctx, eventID, func(ev *domain.Event) error {
		if ev.TicketsSold < quantity {
			// Releasing more than was ever sold would corrupt the
			// accounting; callers only release their own reservation.
			return fmt.Errorf("release of %d exceeds %d sold for event %s",
				quantity, ev.TicketsSold, ev.ID)
		}

		ev.AvailableTickets += quantity
		ev.TicketsSold -= quantity
		ev.Revenue -= int64(quantity) * ev.UnitPrice
		return nil
	})
	if err != nil {
		if errors.Is(err, repo.ErrEventNotFound) {
			return ErrEventNotFound
		}
		return err
	}

	s.l.Infof(ctx, "Released %d tickets for event %s (%d available)",
		quantity, eventID, ev.AvailableTickets)

	return nil
}
