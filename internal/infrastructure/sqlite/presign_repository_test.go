package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sealbridge/orchestrator/internal/domain/presign"
)

func openPresignRepo(t *testing.T) *PresignRepository {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "orchestrator.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPresignRepository(db)
}

func seedSlots(t *testing.T, repo *PresignRepository, n int, ttl time.Duration) {
	t.Helper()
	now := time.Now().UTC()
	slots := make([]*presign.Slot, 0, n)
	for i := 0; i < n; i++ {
		slots = append(slots, &presign.Slot{
			SlotID:    fmt.Sprintf("slot-%03d", i),
			Status:    presign.StatusAvailable,
			CreatedAt: now.Add(time.Duration(i) * time.Millisecond),
			ExpiresAt: now.Add(ttl),
		})
	}
	require.NoError(t, repo.Insert(context.Background(), slots))
}

func TestAllocateOldestFirst(t *testing.T) {
	repo := openPresignRepo(t)
	seedSlots(t, repo, 3, time.Hour)

	slot, err := repo.Allocate(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, "slot-000", slot.SlotID)
	assert.Equal(t, presign.StatusAllocated, slot.Status)
	require.NotNil(t, slot.AllocatedAt)
}

func TestAllocateNeverHandsOutExpired(t *testing.T) {
	repo := openPresignRepo(t)
	seedSlots(t, repo, 2, -time.Minute)

	_, err := repo.Allocate(context.Background(), time.Now().UTC())
	assert.ErrorIs(t, err, presign.ErrPoolEmpty)
}

func TestNoDoubleAllocationUnderConcurrency(t *testing.T) {
	repo := openPresignRepo(t)
	const slots = 4
	const callers = 10
	seedSlots(t, repo, slots, time.Hour)

	var mu sync.Mutex
	seen := make(map[string]int)
	empty := 0

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			slot, err := repo.Allocate(context.Background(), time.Now().UTC())
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if errors.Is(err, presign.ErrPoolEmpty) {
					empty++
					return
				}
				t.Errorf("unexpected allocate error: %v", err)
				return
			}
			seen[slot.SlotID]++
		}()
	}
	wg.Wait()

	assert.Equal(t, slots, len(seen))
	assert.Equal(t, callers-slots, empty)
	for id, count := range seen {
		assert.Equal(t, 1, count, "slot %s handed out twice", id)
	}
}

func TestReleaseIdempotent(t *testing.T) {
	repo := openPresignRepo(t)
	ctx := context.Background()
	seedSlots(t, repo, 1, time.Hour)

	slot, err := repo.Allocate(ctx, time.Now().UTC())
	require.NoError(t, err)

	require.NoError(t, repo.Release(ctx, slot.SlotID))
	require.NoError(t, repo.Release(ctx, slot.SlotID))
	require.NoError(t, repo.Release(ctx, "never-existed"))

	// The released slot can be claimed again.
	again, err := repo.Allocate(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, slot.SlotID, again.SlotID)
}

func TestConsumeRemovesSlot(t *testing.T) {
	repo := openPresignRepo(t)
	ctx := context.Background()
	seedSlots(t, repo, 1, time.Hour)

	slot, err := repo.Allocate(ctx, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, repo.Consume(ctx, slot.SlotID))

	_, err = repo.Allocate(ctx, time.Now().UTC())
	assert.ErrorIs(t, err, presign.ErrPoolEmpty)
}

func TestExpireStaleAndReclaimAbandoned(t *testing.T) {
	repo := openPresignRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()
	seedSlots(t, repo, 2, time.Hour)

	slot, err := repo.Allocate(ctx, now)
	require.NoError(t, err)

	// Nothing abandoned yet: allocation is recent.
	n, err := repo.ReclaimAbandoned(ctx, now.Add(-time.Minute), now)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// Once the allocation ages past the cutoff the slot returns to the pool.
	n, err = repo.ReclaimAbandoned(ctx, now.Add(time.Minute), now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	avail, err := repo.CountAvailable(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 2, avail)

	// Stale slots are swept regardless of stored status.
	n, err = repo.ExpireStale(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = repo.Allocate(ctx, now.Add(2*time.Hour))
	assert.ErrorIs(t, err, presign.ErrPoolEmpty)
	_ = slot
}
