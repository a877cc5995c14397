package service

import (
	"context"
	"testing"
	"time"

	"github.com/proticket/marketplace-core/config"
)

func lockoutCfg() config.LockoutConfig {
	return config.LockoutConfig{
		FailureThreshold: 5,
		LockDuration:     10 * time.Minute,
	}
}

func TestLockoutThreshold(t *testing.T) {
	f := newFixture(t)
	svc := f.lockoutService(t, lockoutCfg())
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if err := svc.RecordFailure(ctx, "dana@example.com"); err != nil {
			t.Fatalf("failure %d: %v", i+1, err)
		}
	}

	out, err := svc.CheckAllowed(ctx, "dana@example.com")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !out.Allowed {
		t.Fatal("identity locked before reaching the threshold")
	}

	if err := svc.RecordFailure(ctx, "dana@example.com"); err != nil {
		t.Fatalf("fifth failure: %v", err)
	}

	out, err = svc.CheckAllowed(ctx, "dana@example.com")
	if err != nil {
		t.Fatalf("check after lock: %v", err)
	}
	if out.Allowed {
		t.Fatal("fifth failure did not lock the identity")
	}
	if out.RemainingMinutes != 10 {
		t.Errorf("expected 10 remaining minutes, got %d", out.RemainingMinutes)
	}
}

func TestLockoutRemainingMinutesCountsDown(t *testing.T) {
	f := newFixture(t)
	svc := f.lockoutService(t, lockoutCfg())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := svc.RecordFailure(ctx, "dana@example.com"); err != nil {
			t.Fatalf("failure %d: %v", i+1, err)
		}
	}

	f.clk.Advance(6*time.Minute + 30*time.Second)

	out, err := svc.CheckAllowed(ctx, "dana@example.com")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if out.Allowed {
		t.Fatal("lock expired early")
	}
	// 3m30s left rounds up to 4 whole minutes.
	if out.RemainingMinutes != 4 {
		t.Errorf("expected 4 remaining minutes, got %d", out.RemainingMinutes)
	}
}

func TestFailuresDuringLockDoNotExtendIt(t *testing.T) {
	f := newFixture(t)
	svc := f.lockoutService(t, lockoutCfg())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := svc.RecordFailure(ctx, "dana@example.com"); err != nil {
			t.Fatalf("failure %d: %v", i+1, err)
		}
	}

	rec, err := f.attempts.Get(ctx, "dana@example.com")
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	lockedUntil := *rec.LockedUntil

	f.clk.Advance(5 * time.Minute)
	if err := svc.RecordFailure(ctx, "dana@example.com"); err != nil {
		t.Fatalf("failure during lock: %v", err)
	}

	rec, err = f.attempts.Get(ctx, "dana@example.com")
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if !rec.LockedUntil.Equal(lockedUntil) {
		t.Errorf("lock window moved from %v to %v", lockedUntil, rec.LockedUntil)
	}
	if rec.FailureCount != 5 {
		t.Errorf("counter grew past the threshold: %d", rec.FailureCount)
	}
}

func TestExpiredLockStartsFreshWindow(t *testing.T) {
	f := newFixture(t)
	svc := f.lockoutService(t, lockoutCfg())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := svc.RecordFailure(ctx, "dana@example.com"); err != nil {
			t.Fatalf("failure %d: %v", i+1, err)
		}
	}

	f.clk.Advance(10*time.Minute + time.Second)

	out, err := svc.CheckAllowed(ctx, "dana@example.com")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !out.Allowed {
		t.Fatal("expired lock still blocks")
	}

	// The next failure counts from one, not from the capped five.
	if err := svc.RecordFailure(ctx, "dana@example.com"); err != nil {
		t.Fatalf("failure after expiry: %v", err)
	}

	rec, err := f.attempts.Get(ctx, "dana@example.com")
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if rec.FailureCount != 1 {
		t.Errorf("expected fresh count 1, got %d", rec.FailureCount)
	}
	if rec.LockedUntil != nil {
		t.Error("fresh window should not carry a lock")
	}
}

func TestSuccessfulLoginResetsCounter(t *testing.T) {
	f := newFixture(t)
	svc := f.lockoutService(t, lockoutCfg())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := svc.RecordFailure(ctx, "dana@example.com"); err != nil {
			t.Fatalf("failure %d: %v", i+1, err)
		}
	}

	if err := svc.ResetOnSuccess(ctx, "dana@example.com"); err != nil {
		t.Fatalf("reset: %v", err)
	}

	rec, err := f.attempts.Get(ctx, "dana@example.com")
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if rec.FailureCount != 0 || rec.LockedUntil != nil {
		t.Errorf("reset left residue: %+v", rec)
	}

	// Full threshold is required again after the reset.
	for i := 0; i < 4; i++ {
		if err := svc.RecordFailure(ctx, "dana@example.com"); err != nil {
			t.Fatalf("failure %d: %v", i+1, err)
		}
	}
	out, err := svc.CheckAllowed(ctx, "dana@example.com")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !out.Allowed {
		t.Fatal("locked before reaching the threshold after a reset")
	}
}

func TestUnknownIdentityIsAllowed(t *testing.T) {
	f := newFixture(t)
	svc := f.lockoutService(t, lockoutCfg())

	out, err := svc.CheckAllowed(context.Background(), "never-seen@example.com")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !out.Allowed || out.RemainingMinutes != 0 {
		t.Errorf("unexpected output for unknown identity: %+v", out)
	}
}

func TestLockoutIdentitiesAreIndependent(t *testing.T) {
	f := newFixture(t)
	svc := f.lockoutService(t, lockoutCfg())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := svc.RecordFailure(ctx, "dana@example.com"); err != nil {
			t.Fatalf("failure %d: %v", i+1, err)
		}
	}

	out, err := svc.CheckAllowed(ctx, "sam@example.com")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !out.Allowed {
		t.Fatal("lock leaked across identities")
	}
}
