package service

import (
	"context"
	"math"

	"github.com/proticket/marketplace-core/config"
	"github.com/proticket/marketplace-core/internal/clock"
	"github.com/proticket/marketplace-core/internal/domain"
	repo "github.com/proticket/marketplace-core/internal/repository/kv"
	"github.com/proticket/marketplace-core/pkg/logger"
)

// LockoutService throttles brute-force authentication: consecutive failed
// attempts for one identity are counted with the same optimistic-update
// discipline as the inventory ledger, and once the threshold is reached
// the identity is locked for a fixed window.
//
// Policy: failures arriving while an unexpired lock is active neither
// extend nor renew the lock, and the counter stays capped at the
// threshold. The first failure after the lock expires starts a fresh
// window at count 1.
type LockoutService interface {
	CheckAllowed(ctx context.Context, identity string) (*CheckLoginOutput, error)
	RecordFailure(ctx context.Context, identity string) error
	ResetOnSuccess(ctx context.Context, identity string) error
}

type lockoutService struct {
	attempts repo.LoginAttemptRepository
	cfg      config.LockoutConfig
	clk      clock.Clock
	l        logger.Logger
}

func NewLockoutService(
	attempts repo.LoginAttemptRepository,
	cfg config.LockoutConfig,
	clk clock.Clock,
	l logger.Logger,
) LockoutService {
	return &lockoutService{
		attempts: attempts,
		cfg:      cfg,
		clk:      clk,
		l:        l,
	}
}

func (s *lockoutService) CheckAllowed(ctx context.Context, identity string) (*CheckLoginOutput, error) {
	rec, err := s.attempts.Get(ctx, identity)
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()
	if rec.LockedTill(now) {
		remaining := int(math.Ceil(rec.LockedUntil.Sub(now).Minutes()))
		return &CheckLoginOutput{
			Allowed:          false,
			RemainingMinutes: remaining,
		}, nil
	}

	// An expired lock reads as clear without forcing a reset write; the
	// record is rewritten on the next failure or success anyway.
	return &CheckLoginOutput{Allowed: true}, nil
}

func (s *lockoutService) RecordFailure(ctx context.Context, identity string) error {
	now := s.clk.Now()
	var locked bool

	err := s.attempts.Mutate(ctx, identity, func(rec *domain.LoginAttemptRecord) error {
		if rec.LockedTill(now) {
			// Already locked, the attempt was rejected upstream; do not
			// extend the window or grow the counter.
			return nil
		}

		if rec.LockedUntil != nil {
			// Lock expired: this failure opens a fresh window.
			rec.FailureCount = 0
			rec.LockedUntil = nil
		}

		rec.FailureCount++
		if rec.FailureCount >= s.cfg.FailureThreshold {
			rec.FailureCount = s.cfg.FailureThreshold
			until := now.Add(s.cfg.LockDuration)
			rec.LockedUntil = &until
			locked = true
		}
		rec.UpdatedAt = now

		return nil
	})
	if err != nil {
		return err
	}

	if locked {
		s.l.Warnf(ctx, "Identity %s locked out for %s after %d failed attempts",
			identity, s.cfg.LockDuration, s.cfg.FailureThreshold)
	}

	return nil
}

func (s *lockoutService) ResetOnSuccess(ctx context.Context, identity string) error {
	return s.attempts.Reset(ctx, &domain.LoginAttemptRecord{
		Identity:  identity,
		UpdatedAt: s.clk.Now(),
	})
}
