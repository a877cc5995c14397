package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/proticket/marketplace-core/config"
	"github.com/proticket/marketplace-core/internal/clock"
	"github.com/proticket/marketplace-core/internal/delivery/kafka/producer"
	"github.com/proticket/marketplace-core/internal/domain"
	repo "github.com/proticket/marketplace-core/internal/repository/kv"
	"github.com/proticket/marketplace-core/pkg/kvstore"
	"github.com/proticket/marketplace-core/pkg/logger"
)

// testRetry is generous enough that optimistic-update tests settle on
// contention instead of exhausting their budget.
func testRetry() kvstore.RetryConfig {
	return kvstore.RetryConfig{Attempts: 100, Backoff: time.Millisecond}
}

type fixture struct {
	store    *kvstore.MemoryStore
	clk      *clock.Fixed
	events   repo.EventRepository
	orders   repo.OrderRepository
	tickets  repo.TicketRepository
	attempts repo.LoginAttemptRepository
	inv      InventoryService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	l := logger.InitializeTestZapLogger()
	store := kvstore.NewMemoryStore()
	retry := testRetry()

	f := &fixture{
		store:    store,
		clk:      clock.NewFixed(time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC)),
		events:   repo.NewEventRepository(store, retry, l),
		orders:   repo.NewOrderRepository(store, retry, l),
		tickets:  repo.NewTicketRepository(store, l),
		attempts: repo.NewLoginAttemptRepository(store, retry, l),
	}
	f.inv = NewInventoryService(f.events, l)

	return f
}

func (f *fixture) orderService(t *testing.T) OrderService {
	t.Helper()
	return NewOrderService(
		f.orders, f.tickets, f.events, f.inv,
		producer.NewNoopProducer(), "test-qr-secret", f.clk,
		logger.InitializeTestZapLogger(),
	)
}

func (f *fixture) eventService(t *testing.T) EventService {
	t.Helper()
	return NewEventService(f.events, f.clk, logger.InitializeTestZapLogger())
}

func (f *fixture) lockoutService(t *testing.T, cfg config.LockoutConfig) LockoutService {
	t.Helper()
	return NewLockoutService(f.attempts, cfg, f.clk, logger.InitializeTestZapLogger())
}

// seedEvent stores an active event with the given capacity split already
// applied, accounting fields consistent.
func (f *fixture) seedEvent(t *testing.T, capacity, sold int, unitPrice int64) *domain.Event {
	t.Helper()

	now := f.clk.Now()
	ev := domain.Event{
		ID:               uuid.New().String(),
		Title:            "Midnight Symphony",
		UnitPrice:        unitPrice,
		Capacity:         capacity,
		AvailableTickets: capacity - sold,
		TicketsSold:      sold,
		Revenue:          int64(sold) * unitPrice,
		Status:           domain.EventStatusActive,
		OrganizerID:      "org-1",
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := f.events.Create(context.Background(), &ev); err != nil {
		t.Fatalf("seed event: %v", err)
	}

	return &ev
}

func (f *fixture) getEvent(t *testing.T, eventID string) *domain.Event {
	t.Helper()

	ev, err := f.events.Get(context.Background(), eventID)
	if err != nil {
		t.Fatalf("get event %s: %v", eventID, err)
	}
	return ev
}
