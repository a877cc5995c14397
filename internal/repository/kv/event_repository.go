package repository

import (
	"context"
	"encoding/json"
	"errors"
	"slices"

	"github.com/proticket/marketplace-core/internal/domain"
	"github.com/proticket/marketplace-core/pkg/kvstore"
	"github.com/proticket/marketplace-core/pkg/logger"
)

var (
	ErrEventExists   = errors.New("event already exists")
	ErrEventNotFound = errors.New("event not found")
)

type EventRepository interface {
	Create(ctx context.Context, ev *domain.Event) error
	Get(ctx context.Context, eventID string) (*domain.Event, error)
	// Mutate runs the bounded optimistic read-modify-write cycle on one
	// event record. fn sees the current state and edits it in place; a
	// rejected conditional write reruns the whole cycle. Returns
	// kvstore.ErrConflict when the retry budget runs out.
	Mutate(ctx context.Context, eventID string, fn func(ev *domain.Event) error) (*domain.Event, error)
	Delete(ctx context.Context, eventID string) error
	List(ctx context.Context) ([]domain.Event, error)
	ListByOrganizer(ctx context.Context, organizerID string) ([]domain.Event, error)
	AddToOrganizerIndex(ctx context.Context, organizerID, eventID string) error
	RemoveFromOrganizerIndex(ctx context.Context, organizerID, eventID string) error
}

type kvEventRepository struct {
	store kvstore.Store
	retry kvstore.RetryConfig
	l     logger.Logger
}

func NewEventRepository(store kvstore.Store, retry kvstore.RetryConfig, l logger.Logger) EventRepository {
	return &kvEventRepository{
		store: store,
		retry: retry,
		l:     l,
	}
}

func (r *kvEventRepository) Create(ctx context.Context, ev *domain.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	if err := r.store.CompareAndSet(ctx, eventKey(ev.ID), data, 0); err != nil {
		if errors.Is(err, kvstore.ErrVersionMismatch) {
			return ErrEventExists
		}
		r.l.Errorf(ctx, "kvEventRepository.Create: %v", err)
		return err
	}

	return nil
}

func (r *kvEventRepository) Get(ctx context.Context, eventID string) (*domain.Event, error) {
	var ev domain.Event
	if _, err := kvstore.GetJSON(ctx, r.store, eventKey(eventID), &ev); err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		r.l.Errorf(ctx, "kvEventRepository.Get: %v", err)
		return nil, err
	}

	return &ev, nil
}

func (r *kvEventRepository) Mutate(ctx context.Context, eventID string, fn func(ev *domain.Event) error) (*domain.Event, error) {
	var result domain.Event

	err := kvstore.Update(ctx, r.store, eventKey(eventID), r.retry, func(ev *domain.Event, found bool) error {
		if !found {
			return ErrEventNotFound
		}
		if err := fn(ev); err != nil {
			return err
		}
		result = *ev
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *kvEventRepository) Delete(ctx context.Context, eventID string) error {
	return r.store.Delete(ctx, eventKey(eventID))
}

func (r *kvEventRepository) List(ctx context.Context) ([]domain.Event, error) {
	recs, err := r.store.ScanPrefix(ctx, eventPrefix)
	if err != nil {
		r.l.Errorf(ctx, "kvEventRepository.List: %v", err)
		return nil, err
	}

	events := make([]domain.Event, 0, len(recs))
	for _, rec := range recs {
		var ev domain.Event
		if err := json.Unmarshal(rec.Value, &ev); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	return events, nil
}

func (r *kvEventRepository) ListByOrganizer(ctx context.Context, organizerID string) ([]domain.Event, error) {
	var ids []string
	if _, err := kvstore.GetJSON(ctx, r.store, organizerEventsKey(organizerID), &ids); err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, nil
		}
		r.l.Errorf(ctx, "kvEventRepository.ListByOrganizer: %v", err)
		return nil, err
	}

	events := make([]domain.Event, 0, len(ids))
	for _, id := range ids {
		ev, err := r.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrEventNotFound) {
				continue
			}
			return nil, err
		}
		events = append(events, *ev)
	}

	return events, nil
}

func (r *kvEventRepository) AddToOrganizerIndex(ctx context.Context, organizerID, eventID string) error {
	return kvstore.Update(ctx, r.store, organizerEventsKey(organizerID), r.retry, func(ids *[]string, _ bool) error {
		if !slices.Contains(*ids, eventID) {
			*ids = append(*ids, eventID)
		}
		return nil
	})
}

func (r *kvEventRepository) RemoveFromOrganizerIndex(ctx context.Context, organizerID, eventID string) error {
	return kvstore.Update(ctx, r.store, organizerEventsKey(organizerID), r.retry, func(ids *[]string, _ bool) error {
		*ids = slices.DeleteFunc(*ids, func(id string) bool { return id == eventID })
		return nil
	})
}
