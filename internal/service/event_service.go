package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/proticket/marketplace-core/internal/clock"
	"github.com/proticket/marketplace-core/internal/domain"
	repo "github.com/proticket/marketplace-core/internal/repository/kv"
	"github.com/proticket/marketplace-core/pkg/logger"
)

// EventService is the organizer back-office: event creation, edits and
// deletion. Capacity accounting fields are owned by the inventory ledger
// and are never written here except at creation time.
type EventService interface {
	CreateEvent(ctx context.Context, in CreateEventInput) (*domain.Event, error)
	GetEvent(ctx context.Context, eventID string) (*domain.Event, error)
	ListEvents(ctx context.Context) ([]domain.Event, error)
	ListOrganizerEvents(ctx context.Context, organizerID string) ([]domain.Event, error)
	UpdateEvent(ctx context.Context, in UpdateEventInput) (*domain.Event, error)
	DeleteEvent(ctx context.Context, eventID, userID, userRole string) error
}

type eventService struct {
	events repo.EventRepository
	clk    clock.Clock
	l      logger.Logger
}

func NewEventService(events repo.EventRepository, clk clock.Clock, l logger.Logger) EventService {
	return &eventService{
		events: events,
		clk:    clk,
		l:      l,
	}
}

func (s *eventService) CreateEvent(ctx context.Context, in CreateEventInput) (*domain.Event, error) {
	role, err := domain.ParseRole(in.OrganizerRole)
	if err != nil {
		return nil, ErrValidation
	}
	if !role.CanCreateEvents() {
		return nil, ErrNotAuthorized
	}

	if in.Title == "" || in.OrganizerID == "" {
		return nil, ErrValidation
	}
	if in.Capacity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if in.UnitPrice < 0 {
		return nil, ErrValidation
	}

	now := s.clk.Now()
	ev := domain.Event{
		ID:               uuid.New().String(),
		Title:            in.Title,
		Description:      in.Description,
		Location:         in.Location,
		Category:         in.Category,
		StartsAt:         in.StartsAt,
		UnitPrice:        in.UnitPrice,
		Capacity:         in.Capacity,
		AvailableTickets: in.Capacity,
		TicketsSold:      0,
		Revenue:          0,
		Status:           domain.EventStatusActive,
		OrganizerID:      in.OrganizerID,
		OrganizerName:    in.OrganizerName,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.events.Create(ctx, &ev); err != nil {
		return nil, err
	}

	if err := s.events.AddToOrganizerIndex(ctx, in.OrganizerID, ev.ID); err != nil {
		s.l.Errorf(ctx, "eventService.CreateEvent: failed to index event %s: %v", ev.ID, err)
	}

	s.l.Info(ctx, "Event created",
		"event_id", ev.ID,
		"organizer_id", ev.OrganizerID,
		"capacity", ev.Capacity,
	)

	return &ev, nil
}

func (s *eventService) GetEvent(ctx context.Context, eventID string) (*domain.Event, error) {
	ev, err := s.events.Get(ctx, eventID)
	if err != nil {
		if errors.Is(err, repo.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return ev, nil
}

func (s *eventService) ListEvents(ctx context.Context) ([]domain.Event, error) {
	return s.events.List(ctx)
}

func (s *eventService) ListOrganizerEvents(ctx context.Context, organizerID string) ([]domain.Event, error) {
	return s.events.ListByOrganizer(ctx, organizerID)
}

func (s *eventService) UpdateEvent(ctx context.Context, in UpdateEventInput) (*domain.Event, error) {
	role, err := domain.ParseRole(in.UserRole)
	if err != nil {
		return nil, ErrValidation
	}

	var status domain.EventStatus
	if in.Status != nil {
		status = domain.EventStatus(*in.Status)
		if status != domain.EventStatusActive && status != domain.EventStatusClosed {
			return nil, ErrValidation
		}
	}

	ev, err := s.events.Mutate(ctx, in.EventID, func(ev *domain.Event) error {
		if !role.CanManageEvent(in.UserID, ev.OrganizerID) {
			return ErrNotAuthorized
		}

		// Identity, ownership, accounting fields and pricing stay as
		// they are; price immutability is what keeps revenue equal to
		// ticketsSold * unitPrice.
		if in.Title != nil {
			ev.Title = *in.Title
		}
		if in.Description != nil {
			ev.Description = *in.Description
		}
		if in.Location != nil {
			ev.Location = *in.Location
		}
		if in.Category != nil {
			ev.Category = *in.Category
		}
		if in.Status != nil {
			ev.Status = status
		}
		ev.UpdatedAt = s.clk.Now()

		return nil
	})
	if err != nil {
		if errors.Is(err, repo.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}

	return ev, nil
}

func (s *eventService) DeleteEvent(ctx context.Context, eventID, userID, userRole string) error {
	role, err := domain.ParseRole(userRole)
	if err != nil {
		return ErrValidation
	}

	ev, err := s.events.Get(ctx, eventID)
	if err != nil {
		if errors.Is(err, repo.ErrEventNotFound) {
			return ErrEventNotFound
		}
		return err
	}

	if !role.CanManageEvent(userID, ev.OrganizerID) {
		return ErrNotAuthorized
	}
	if ev.HasSales() {
		return ErrEventHasSales
	}

	if err := s.events.Delete(ctx, eventID); err != nil {
		return err
	}

	if err := s.events.RemoveFromOrganizerIndex(ctx, ev.OrganizerID, eventID); err != nil {
		s.l.Errorf(ctx, "eventService.DeleteEvent: failed to unindex event %s: %v", eventID, err)
	}

	s.l.Info(ctx, "Event deleted",
		"event_id", eventID,
		"organizer_id", ev.OrganizerID,
	)

	return nil
}
