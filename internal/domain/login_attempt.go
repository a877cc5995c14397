package domain

import "time"

// LoginAttemptRecord tracks consecutive failed logins for one identity.
// FailureCount never exceeds the lockout threshold; LockedUntil is set
// exactly when the threshold is reached.
type LoginAttemptRecord struct {
	Identity     string     `json:"identity"`
	FailureCount int        `json:"failure_count"`
	LockedUntil  *time.Time `json:"locked_until,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type LockoutState string

const (
	LockoutStateClear   LockoutState = "clear"
	LockoutStateWarning LockoutState = "warning"
	LockoutStateLocked  LockoutState = "locked"
)

// State classifies the record at instant now. An expired lock reads as
// clear even before any reset write lands.
func (r *LoginAttemptRecord) State(now time.Time) LockoutState {
	if r.LockedTill(now) {
		return LockoutStateLocked
	}
	if r.LockedUntil == nil && r.FailureCount > 0 {
		return LockoutStateWarning
	}
	return LockoutStateClear
}

func (r *LoginAttemptRecord) LockedTill(now time.Time) bool {
	return r.LockedUntil != nil && r.LockedUntil.After(now)
}
