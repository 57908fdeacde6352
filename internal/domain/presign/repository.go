package presign

import (
	"context"
	"errors"
	"time"
)

// ErrPoolEmpty: no fresh available slot exists right now.
var ErrPoolEmpty = errors.New("no presign slot available")

// Repository persists presign slots. Allocate must be a single indivisible
// store operation: candidate selection and the status flip happen together,
// so two concurrent calls can never receive the same slot.
type Repository interface {
	// Insert seeds slots in bulk.
	Insert(ctx context.Context, slots []*Slot) error

	// Allocate claims the oldest available slot whose freshness deadline is
	// after now. Returns ErrPoolEmpty when none qualifies.
	Allocate(ctx context.Context, now time.Time) (*Slot, error)

	// Release returns an allocated slot to the pool. Idempotent: releasing a
	// slot that is already available or gone is a no-op.
	Release(ctx context.Context, slotID string) error

	// Consume drops a slot that was spent on an attestation request.
	Consume(ctx context.Context, slotID string) error

	// ExpireStale marks available slots past their freshness deadline.
	ExpireStale(ctx context.Context, now time.Time) (int, error)

	// ReclaimAbandoned returns still-fresh slots allocated before cutoff to
	// the pool. Bounds the leak from sessions that never released.
	ReclaimAbandoned(ctx context.Context, cutoff, now time.Time) (int, error)

	CountAvailable(ctx context.Context, now time.Time) (int, error)
}
