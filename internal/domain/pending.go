package domain

import "time"

// ConfirmAction enumerates the mutations that can be parked behind an
// explicit user confirmation.
type ConfirmAction string

const (
	// ConfirmToggle re-runs a toggle that was proposed too soon after the
	// previous status change.
	ConfirmToggle ConfirmAction = "toggle"
	// ConfirmCompleteTransition commits a transition-completion claim that
	// arrived before the minimum window elapsed.
	ConfirmCompleteTransition ConfirmAction = "complete_transition"
)

// PendingConfirmation is a two-step commit: the proposed action waits for an
// explicit !sim/!nao from the same user. At most one exists per user; a new
// proposal replaces any stale one.
type PendingConfirmation struct {
	UserID    string        `json:"user_id"`
	Action    ConfirmAction `json:"action"`
	Endpoint  Endpoint      `json:"endpoint,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// Expired reports whether the confirmation is older than ttl at instant now.
// The store evicts on TTL as well; this check covers clock-based tests and
// entries read just before eviction.
func (c PendingConfirmation) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(c.CreatedAt) > ttl
}

// PendingTransition exists only while one endpoint is closing down with cars
// still clearing. It lives under a single store key, which is what prevents
// two endpoints from transitioning at the same time.
type PendingTransition struct {
	Endpoint  Endpoint  `json:"endpoint"`
	StartedBy string    `json:"started_by"`
	StartedAt time.Time `json:"started_at"`
}
