package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/proticket/marketplace-core/internal/domain"
	"github.com/proticket/marketplace-core/pkg/kvstore"
	"github.com/proticket/marketplace-core/pkg/logger"
)

func newOrderRepo(t *testing.T) OrderRepository {
	t.Helper()
	return NewOrderRepository(
		kvstore.NewMemoryStore(),
		kvstore.RetryConfig{Attempts: 5, Backoff: time.Millisecond},
		logger.InitializeTestZapLogger(),
	)
}

func TestClaimIdempotencyKey(t *testing.T) {
	r := newOrderRepo(t)
	ctx := context.Background()

	if err := r.ClaimIdempotencyKey(ctx, "buyer-1", "k1", "order-a"); err != nil {
		t.Fatalf("first claim: %v", err)
	}

	// The same (buyer, key) pair can be claimed once.
	err := r.ClaimIdempotencyKey(ctx, "buyer-1", "k1", "order-b")
	if !errors.Is(err, ErrIdemKeyClaimed) {
		t.Fatalf("expected ErrIdemKeyClaimed, got %v", err)
	}

	// A different buyer using the same key is unrelated.
	if err := r.ClaimIdempotencyKey(ctx, "buyer-2", "k1", "order-c"); err != nil {
		t.Fatalf("claim by other buyer: %v", err)
	}

	// Releasing frees the pair for a fresh claim.
	if err := r.ReleaseIdempotencyKey(ctx, "buyer-1", "k1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := r.ClaimIdempotencyKey(ctx, "buyer-1", "k1", "order-d"); err != nil {
		t.Fatalf("re-claim after release: %v", err)
	}
}

func TestGetByIdempotencyKey(t *testing.T) {
	r := newOrderRepo(t)
	ctx := context.Background()

	if _, err := r.GetByIdempotencyKey(ctx, "buyer-1", "k1"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound for unclaimed key, got %v", err)
	}

	o := domain.Order{
		ID:             "order-a",
		EventID:        "event-1",
		BuyerID:        "buyer-1",
		Quantity:       2,
		IdempotencyKey: "k1",
		Status:         domain.OrderStatusConfirmed,
	}
	if err := r.Create(ctx, &o); err != nil {
		t.Fatalf("create order: %v", err)
	}
	if err := r.ClaimIdempotencyKey(ctx, "buyer-1", "k1", o.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}

	got, err := r.GetByIdempotencyKey(ctx, "buyer-1", "k1")
	if err != nil {
		t.Fatalf("get by key: %v", err)
	}
	if got.ID != o.ID || got.Quantity != 2 {
		t.Errorf("unexpected order %+v", got)
	}
}

func TestOrderCreateIsConditional(t *testing.T) {
	r := newOrderRepo(t)
	ctx := context.Background()

	o := domain.Order{ID: "order-a", Status: domain.OrderStatusConfirmed}
	if err := r.Create(ctx, &o); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := r.Create(ctx, &o); !errors.Is(err, ErrOrderExists) {
		t.Fatalf("expected ErrOrderExists, got %v", err)
	}
}

func TestBuyerIndexDeduplicates(t *testing.T) {
	r := newOrderRepo(t)
	ctx := context.Background()

	o := domain.Order{ID: "order-a", BuyerID: "buyer-1", Status: domain.OrderStatusConfirmed}
	if err := r.Create(ctx, &o); err != nil {
		t.Fatalf("create: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := r.AddToBuyerIndex(ctx, "buyer-1", "order-a"); err != nil {
			t.Fatalf("index %d: %v", i, err)
		}
	}

	orders, err := r.ListByBuyer(ctx, "buyer-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(orders))
	}
}
