package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"github.com/proticket/marketplace-core/internal/domain"
	"github.com/proticket/marketplace-core/pkg/kvstore"
	"github.com/proticket/marketplace-core/pkg/logger"
)

var ErrTicketExists = errors.New("ticket already exists")

type TicketRepository interface {
	Create(ctx context.Context, t *domain.Ticket) error
	ListByOrder(ctx context.Context, orderID string) ([]domain.Ticket, error)
	// DeleteByOrder removes every ticket of an order, used when a failed
	// issuance is rolled back.
	DeleteByOrder(ctx context.Context, orderID string) error
}

type kvTicketRepository struct {
	store kvstore.Store
	l     logger.Logger
}

func NewTicketRepository(store kvstore.Store, l logger.Logger) TicketRepository {
	return &kvTicketRepository{
		store: store,
		l:     l,
	}
}

func (r *kvTicketRepository) Create(ctx context.Context, t *domain.Ticket) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}

	if err := r.store.CompareAndSet(ctx, ticketKey(t.OrderID, t.SequenceInOrder), data, 0); err != nil {
		if errors.Is(err, kvstore.ErrVersionMismatch) {
			return ErrTicketExists
		}
		r.l.Errorf(ctx, "kvTicketRepository.Create: %v", err)
		return err
	}

	return nil
}

func (r *kvTicketRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.Ticket, error) {
	recs, err := r.store.ScanPrefix(ctx, ticketOrderPrefix(orderID))
	if err != nil {
		r.l.Errorf(ctx, "kvTicketRepository.ListByOrder: %v", err)
		return nil, err
	}

	tickets := make([]domain.Ticket, 0, len(recs))
	for _, rec := range recs {
		var t domain.Ticket
		if err := json.Unmarshal(rec.Value, &t); err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}

	// SCAN returns keys in arbitrary order.
	sort.Slice(tickets, func(i, j int) bool {
		return tickets[i].SequenceInOrder < tickets[j].SequenceInOrder
	})

	return tickets, nil
}

func (r *kvTicketRepository) DeleteByOrder(ctx context.Context, orderID string) error {
	recs, err := r.store.ScanPrefix(ctx, ticketOrderPrefix(orderID))
	if err != nil {
		r.l.Errorf(ctx, "kvTicketRepository.DeleteByOrder: %v", err)
		return err
	}

	for _, rec := range recs {
		if err := r.store.Delete(ctx, rec.Key); err != nil {
			return err
		}
	}

	return nil
}
