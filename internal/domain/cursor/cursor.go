package cursor

import (
	"context"
	"time"
)

// Cursor is the per-subscription bookmark into a ledger's event log. Position
// is opaque to everything except the gateway that produced it, and it only
// advances: past an event once its handler has succeeded or been given up on.
type Cursor struct {
	SubscriptionKey     string
	Position            string
	ConsecutiveFailures int
	UpdatedAt           time.Time
}

// Repository persists listener cursors.
type Repository interface {
	// Get returns the cursor for key, or (nil, nil) on first poll.
	Get(ctx context.Context, key string) (*Cursor, error)

	// Commit durably upserts the cursor. The listener does not look at the
	// next event until this returns.
	Commit(ctx context.Context, c *Cursor) error
}
