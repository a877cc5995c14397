package domain

import (
	"testing"
	"time"
)

func TestLoginAttemptState(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	future := now.Add(5 * time.Minute)
	past := now.Add(-5 * time.Minute)

	tests := []struct {
		name string
		rec  LoginAttemptRecord
		want LockoutState
	}{
		{"fresh record", LoginAttemptRecord{}, LockoutStateClear},
		{"some failures", LoginAttemptRecord{FailureCount: 3}, LockoutStateWarning},
		{"active lock", LoginAttemptRecord{FailureCount: 5, LockedUntil: &future}, LockoutStateLocked},
		{"expired lock", LoginAttemptRecord{FailureCount: 5, LockedUntil: &past}, LockoutStateClear},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.State(now); got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestEventAccounted(t *testing.T) {
	ev := Event{Capacity: 100, AvailableTickets: 70, TicketsSold: 30, UnitPrice: 500, Revenue: 15000}
	if !ev.Accounted() {
		t.Fatal("consistent event reported as unaccounted")
	}

	ev.Revenue++
	if ev.Accounted() {
		t.Fatal("revenue drift not detected")
	}

	ev.Revenue--
	ev.AvailableTickets--
	if ev.Accounted() {
		t.Fatal("capacity drift not detected")
	}
}
