package presign

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sealbridge/orchestrator/internal/domain/fault"
	domainpresign "github.com/sealbridge/orchestrator/internal/domain/presign"
	"github.com/sealbridge/orchestrator/internal/infrastructure/sqlite"
	"github.com/sealbridge/orchestrator/internal/observability"
)

func newTestPool(t *testing.T, allocTTL time.Duration) *Pool {
	t.Helper()
	db, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "orchestrator.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPool(sqlite.NewPresignRepository(db), allocTTL, time.Minute, observability.NopMetrics(), zerolog.Nop())
}

func seedPool(t *testing.T, p *Pool, n int, ttl time.Duration) {
	t.Helper()
	now := time.Now().UTC()
	slots := make([]*domainpresign.Slot, 0, n)
	for i := 0; i < n; i++ {
		slots = append(slots, &domainpresign.Slot{
			SlotID:    fmt.Sprintf("slot-%03d", i),
			Status:    domainpresign.StatusAvailable,
			CreatedAt: now.Add(time.Duration(i) * time.Millisecond),
			ExpiresAt: now.Add(ttl),
		})
	}
	require.NoError(t, p.Seed(context.Background(), slots))
}

func TestAllocateEmptyPoolIsResourceFailure(t *testing.T) {
	p := newTestPool(t, time.Minute)

	_, err := p.Allocate(context.Background())
	require.Error(t, err)
	assert.True(t, fault.IsResource(err))
	assert.ErrorIs(t, err, domainpresign.ErrPoolEmpty)
}

func TestAllocateReleaseCycle(t *testing.T) {
	p := newTestPool(t, time.Minute)
	ctx := context.Background()
	seedPool(t, p, 1, time.Hour)

	slot, err := p.Allocate(ctx)
	require.NoError(t, err)

	_, err = p.Allocate(ctx)
	assert.True(t, fault.IsResource(err))

	require.NoError(t, p.Release(ctx, slot.SlotID))
	again, err := p.Allocate(ctx)
	require.NoError(t, err)
	assert.Equal(t, slot.SlotID, again.SlotID)
}

func TestSweepReclaimsAbandonedAllocation(t *testing.T) {
	p := newTestPool(t, 0) // zero TTL: any allocation is immediately abandoned
	ctx := context.Background()
	seedPool(t, p, 1, time.Hour)

	slot, err := p.Allocate(ctx)
	require.NoError(t, err)

	// NewPool replaced the zero TTL with a default; shrink it for the test.
	p.allocTTL = -time.Second
	p.sweep(ctx)

	again, err := p.Allocate(ctx)
	require.NoError(t, err)
	assert.Equal(t, slot.SlotID, again.SlotID)
}

func TestSweepRetiresExpiredSlots(t *testing.T) {
	p := newTestPool(t, time.Minute)
	ctx := context.Background()
	seedPool(t, p, 2, -time.Second)

	p.sweep(ctx)

	avail, err := p.Available(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, avail)
}
