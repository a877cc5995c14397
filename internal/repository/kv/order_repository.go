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
	ErrOrderExists   = errors.New("order already exists")
	ErrOrderNotFound = errors.New("order not found")
	// ErrIdemKeyClaimed is returned by ClaimIdempotencyKey when another
	// submission already holds the key.
	ErrIdemKeyClaimed = errors.New("idempotency key already claimed")
)

type OrderRepository interface {
	Create(ctx context.Context, o *domain.Order) error
	Get(ctx context.Context, orderID string) (*domain.Order, error)
	Mutate(ctx context.Context, orderID string, fn func(o *domain.Order) error) (*domain.Order, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error)
	AddToBuyerIndex(ctx context.Context, buyerID, orderID string) error

	// ClaimIdempotencyKey conditionally creates the (buyer, key) -> order
	// mapping. The claim happens before any inventory is reserved so a
	// double-submitted purchase can reserve at most once.
	ClaimIdempotencyKey(ctx context.Context, buyerID, idemKey, orderID string) error
	// ReleaseIdempotencyKey frees a claim whose reservation never went
	// through, so a later retry of the same intent can proceed.
	ReleaseIdempotencyKey(ctx context.Context, buyerID, idemKey string) error
	GetByIdempotencyKey(ctx context.Context, buyerID, idemKey string) (*domain.Order, error)
}

type kvOrderRepository struct {
	store kvstore.Store
	retry kvstore.RetryConfig
	l     logger.Logger
}

func NewOrderRepository(store kvstore.Store, retry kvstore.RetryConfig, l logger.Logger) OrderRepository {
	return &kvOrderRepository{
		store: store,
		retry: retry,
		l:     l,
	}
}

func (r *kvOrderRepository) Create(ctx context.Context, o *domain.Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return err
	}

	if err := r.store.CompareAndSet(ctx, orderKey(o.ID), data, 0); err != nil {
		if errors.Is(err, kvstore.ErrVersionMismatch) {
			return ErrOrderExists
		}
		r.l.Errorf(ctx, "kvOrderRepository.Create: %v", err)
		return err
	}

	return nil
}

func (r *kvOrderRepository) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	var o domain.Order
	if _, err := kvstore.GetJSON(ctx, r.store, orderKey(orderID), &o); err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		r.l.Errorf(ctx, "kvOrderRepository.Get: %v", err)
		return nil, err
	}

	return &o, nil
}

func (r *kvOrderRepository) Mutate(ctx context.Context, orderID string, fn func(o *domain.Order) error) (*domain.Order, error) {
	var result domain.Order

	err := kvstore.Update(ctx, r.store, orderKey(orderID), r.retry, func(o *domain.Order, found bool) error {
		if !found {
			return ErrOrderNotFound
		}
		if err := fn(o); err != nil {
			return err
		}
		result = *o
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *kvOrderRepository) ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error) {
	var ids []string
	if _, err := kvstore.GetJSON(ctx, r.store, buyerOrdersKey(buyerID), &ids); err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, nil
		}
		r.l.Errorf(ctx, "kvOrderRepository.ListByBuyer: %v", err)
		return nil, err
	}

	orders := make([]domain.Order, 0, len(ids))
	for _, id := range ids {
		o, err := r.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrOrderNotFound) {
				continue
			}
			return nil, err
		}
		orders = append(orders, *o)
	}

	return orders, nil
}

func (r *kvOrderRepository) AddToBuyerIndex(ctx context.Context, buyerID, orderID string) error {
	return kvstore.Update(ctx, r.store, buyerOrdersKey(buyerID), r.retry, func(ids *[]string, _ bool) error {
		if !slices.Contains(*ids, orderID) {
			*ids = append(*ids, orderID)
		}
		return nil
	})
}

func (r *kvOrderRepository) ClaimIdempotencyKey(ctx context.Context, buyerID, idemKey, orderID string) error {
	data, err := json.Marshal(orderID)
	if err != nil {
		return err
	}

	if err := r.store.CompareAndSet(ctx, orderIdemKey(buyerID, idemKey), data, 0); err != nil {
		if errors.Is(err, kvstore.ErrVersionMismatch) {
			return ErrIdemKeyClaimed
		}
		r.l.Errorf(ctx, "kvOrderRepository.ClaimIdempotencyKey: %v", err)
		return err
	}

	return nil
}

func (r *kvOrderRepository) ReleaseIdempotencyKey(ctx context.Context, buyerID, idemKey string) error {
	return r.store.Delete(ctx, orderIdemKey(buyerID, idemKey))
}

func (r *kvOrderRepository) GetByIdempotencyKey(ctx context.Context, buyerID, idemKey string) (*domain.Order, error) {
	var orderID string
	if _, err := kvstore.GetJSON(ctx, r.store, orderIdemKey(buyerID, idemKey), &orderID); err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		r.l.Errorf(ctx, "kvOrderRepository.GetByIdempotencyKey: %v", err)
		return nil, err
	}

	return r.Get(ctx, orderID)
}
