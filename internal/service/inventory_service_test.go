package service

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/proticket/marketplace-core/internal/domain"
	"github.com/proticket/marketplace-core/pkg/kvstore"
)

func TestReserveUpdatesAccounting(t *testing.T) {
	f := newFixture(t)
	ev := f.seedEvent(t, 500, 50, 2500)

	snapshot, err := f.inv.Reserve(context.Background(), ev.ID, 10)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if snapshot.AvailableTickets != 440 {
		t.Errorf("available: expected 440, got %d", snapshot.AvailableTickets)
	}
	if snapshot.TicketsSold != 60 {
		t.Errorf("sold: expected 60, got %d", snapshot.TicketsSold)
	}
	if snapshot.Revenue != 60*2500 {
		t.Errorf("revenue: expected %d, got %d", int64(60*2500), snapshot.Revenue)
	}
	if !snapshot.Accounted() {
		t.Error("accounting invariant broken after reserve")
	}

	stored := f.getEvent(t, ev.ID)
	if stored.AvailableTickets != 440 || stored.TicketsSold != 60 {
		t.Errorf("stored state diverges from snapshot: %+v", stored)
	}
}

func TestReserveInsufficientInventoryLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	ev := f.seedEvent(t, 10, 8, 100)

	_, err := f.inv.Reserve(context.Background(), ev.ID, 3)
	if !errors.Is(err, ErrInsufficientInventory) {
		t.Fatalf("expected ErrInsufficientInventory, got %v", err)
	}

	stored := f.getEvent(t, ev.ID)
	if stored.AvailableTickets != 2 || stored.TicketsSold != 8 {
		t.Errorf("rejected reservation mutated state: %+v", stored)
	}
}

func TestReserveValidation(t *testing.T) {
	f := newFixture(t)
	ev := f.seedEvent(t, 10, 0, 100)

	t.Run("zero quantity", func(t *testing.T) {
		if _, err := f.inv.Reserve(context.Background(), ev.ID, 0); !errors.Is(err, ErrInvalidQuantity) {
			t.Fatalf("expected ErrInvalidQuantity, got %v", err)
		}
	})

	t.Run("negative quantity", func(t *testing.T) {
		if _, err := f.inv.Reserve(context.Background(), ev.ID, -1); !errors.Is(err, ErrInvalidQuantity) {
			t.Fatalf("expected ErrInvalidQuantity, got %v", err)
		}
	})

	t.Run("unknown event", func(t *testing.T) {
		if _, err := f.inv.Reserve(context.Background(), "nope", 1); !errors.Is(err, ErrEventNotFound) {
			t.Fatalf("expected ErrEventNotFound, got %v", err)
		}
	})

	t.Run("closed event", func(t *testing.T) {
		closed := f.seedEvent(t, 10, 0, 100)
		_, err := f.events.Mutate(context.Background(), closed.ID, func(ev *domain.Event) error {
			ev.Status = domain.EventStatusClosed
			return nil
		})
		if err != nil {
			t.Fatalf("close event: %v", err)
		}

		if _, err := f.inv.Reserve(context.Background(), closed.ID, 1); !errors.Is(err, ErrEventNotActive) {
			t.Fatalf("expected ErrEventNotActive, got %v", err)
		}
	})
}

func TestReserveReleaseRoundTrip(t *testing.T) {
	f := newFixture(t)
	ev := f.seedEvent(t, 100, 20, 500)

	if _, err := f.inv.Reserve(context.Background(), ev.ID, 5); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := f.inv.Release(context.Background(), ev.ID, 5); err != nil {
		t.Fatalf("release: %v", err)
	}

	stored := f.getEvent(t, ev.ID)
	if stored.AvailableTickets != 80 || stored.TicketsSold != 20 || stored.Revenue != 20*500 {
		t.Errorf("round trip did not restore state: %+v", stored)
	}
	if !stored.Accounted() {
		t.Error("accounting invariant broken after round trip")
	}
}

func TestReleaseMoreThanSoldFails(t *testing.T) {
	f := newFixture(t)
	ev := f.seedEvent(t, 100, 3, 500)

	if err := f.inv.Release(context.Background(), ev.ID, 4); err == nil {
		t.Fatal("expected error releasing more than sold")
	}

	stored := f.getEvent(t, ev.ID)
	if stored.TicketsSold != 3 {
		t.Errorf("rejected release mutated state: %+v", stored)
	}
}

// Many buyers race for fewer tickets than there are buyers. Exactly
// capacity wins, everyone else is turned away, and the accounting still
// adds up afterwards.
func TestConcurrentReservationsNeverOversell(t *testing.T) {
	f := newFixture(t)

	const capacity = 30
	const buyers = 50

	ev := f.seedEvent(t, capacity, 0, 750)

	results := make(chan error, buyers)
	var g errgroup.Group
	for i := 0; i < buyers; i++ {
		g.Go(func() error {
			_, err := f.inv.Reserve(context.Background(), ev.ID, 1)
			results <- err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}
	close(results)

	var won, turnedAway int
	for err := range results {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrInsufficientInventory):
			turnedAway++
		case errors.Is(err, kvstore.ErrConflict):
			// Acceptable under extreme contention, but should not eat
			// into the sold count below.
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	stored := f.getEvent(t, ev.ID)
	if stored.TicketsSold != won {
		t.Errorf("sold %d but %d reservations succeeded", stored.TicketsSold, won)
	}
	if stored.TicketsSold > capacity {
		t.Errorf("oversold: %d tickets for capacity %d", stored.TicketsSold, capacity)
	}
	if won != capacity {
		t.Errorf("expected all %d tickets to sell, sold %d", capacity, won)
	}
	if !stored.Accounted() {
		t.Errorf("accounting invariant broken: %+v", stored)
	}
}
