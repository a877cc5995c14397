package repository

import (
	"context"
	"errors"

	"github.com/proticket/marketplace-core/internal/domain"
	"github.com/proticket/marketplace-core/pkg/kvstore"
	"github.com/proticket/marketplace-core/pkg/logger"
)

type LoginAttemptRepository interface {
	// Get returns the record for identity, or a zero record when none
	// exists yet.
	Get(ctx context.Context, identity string) (*domain.LoginAttemptRecord, error)
	// Mutate applies fn under the optimistic-update discipline. A missing
	// record starts from the zero value, so the first failure for an
	// identity creates it.
	Mutate(ctx context.Context, identity string, fn func(rec *domain.LoginAttemptRecord) error) error
	// Reset unconditionally overwrites the record with a clear state.
	Reset(ctx context.Context, rec *domain.LoginAttemptRecord) error
}

type kvLoginAttemptRepository struct {
	store kvstore.Store
	retry kvstore.RetryConfig
	l     logger.Logger
}

func NewLoginAttemptRepository(store kvstore.Store, retry kvstore.RetryConfig, l logger.Logger) LoginAttemptRepository {
	return &kvLoginAttemptRepository{
		store: store,
		retry: retry,
		l:     l,
	}
}

func (r *kvLoginAttemptRepository) Get(ctx context.Context, identity string) (*domain.LoginAttemptRecord, error) {
	var rec domain.LoginAttemptRecord
	if _, err := kvstore.GetJSON(ctx, r.store, loginAttemptsKey(identity), &rec); err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return &domain.LoginAttemptRecord{Identity: identity}, nil
		}
		r.l.Errorf(ctx, "kvLoginAttemptRepository.Get: %v", err)
		return nil, err
	}

	return &rec, nil
}

func (r *kvLoginAttemptRepository) Mutate(ctx context.Context, identity string, fn func(rec *domain.LoginAttemptRecord) error) error {
	return kvstore.Update(ctx, r.store, loginAttemptsKey(identity), r.retry, func(rec *domain.LoginAttemptRecord, found bool) error {
		if !found {
			rec.Identity = identity
		}
		return fn(rec)
	})
}

func (r *kvLoginAttemptRepository) Reset(ctx context.Context, rec *domain.LoginAttemptRecord) error {
	if err := kvstore.SetJSON(ctx, r.store, loginAttemptsKey(rec.Identity), rec); err != nil {
		r.l.Errorf(ctx, "kvLoginAttemptRepository.Reset: %v", err)
		return err
	}
	return nil
}
