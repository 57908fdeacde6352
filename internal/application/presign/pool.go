// Package presign manages the pool of presign capabilities consumed by
// attestation requests.
package presign

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/sealbridge/orchestrator/internal/domain/fault"
	"github.com/sealbridge/orchestrator/internal/domain/presign"
	"github.com/sealbridge/orchestrator/internal/observability"
)

// Pool wraps the slot repository with allocation semantics and the background
// sweep that keeps the pool honest after crashes.
type Pool struct {
	repo     presign.Repository
	allocTTL time.Duration
	interval time.Duration
	metrics  *observability.Metrics
	logger   zerolog.Logger
}

func NewPool(repo presign.Repository, allocTTL, sweepInterval time.Duration, metrics *observability.Metrics, logger zerolog.Logger) *Pool {
	if allocTTL <= 0 {
		allocTTL = 10 * time.Minute
	}
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	return &Pool{
		repo:     repo,
		allocTTL: allocTTL,
		interval: sweepInterval,
		metrics:  metrics,
		logger:   logger.With().Str("service", "presign_pool").Logger(),
	}
}

// Allocate claims the oldest fresh slot. An empty pool is a resource failure:
// the caller keeps the session alive and retries later.
func (p *Pool) Allocate(ctx context.Context) (*presign.Slot, error) {
	slot, err := p.repo.Allocate(ctx, time.Now().UTC())
	if err != nil {
		if errors.Is(err, presign.ErrPoolEmpty) {
			return nil, fault.E(fault.KindResource, "presign.Allocate", err)
		}
		return nil, err
	}
	p.logger.Debug().Str("slot_id", slot.SlotID).Msg("presign slot allocated")
	return slot, nil
}

// Release returns an allocated slot to the pool. Safe to call more than once
// and for slots that no longer exist.
func (p *Pool) Release(ctx context.Context, slotID string) error {
	return p.repo.Release(ctx, slotID)
}

// Consume removes a slot whose capability was spent on the coordination
// ledger.
func (p *Pool) Consume(ctx context.Context, slotID string) error {
	return p.repo.Consume(ctx, slotID)
}

// Seed loads externally provisioned slots into the pool.
func (p *Pool) Seed(ctx context.Context, slots []*presign.Slot) error {
	return p.repo.Insert(ctx, slots)
}

// Available reports the number of fresh, unallocated slots.
func (p *Pool) Available(ctx context.Context) (int, error) {
	return p.repo.CountAvailable(ctx, time.Now().UTC())
}

// Run sweeps the pool until the context ends: expired slots are retired,
// allocations older than the allocation TTL are returned to the pool, and the
// availability gauge is refreshed.
func (p *Pool) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	p.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sweep(ctx)
		}
	}
}

func (p *Pool) sweep(ctx context.Context) {
	now := time.Now().UTC()

	expired, err := p.repo.ExpireStale(ctx, now)
	if err != nil {
		p.logger.Error().Err(err).Msg("presign expiry sweep failed")
	} else if expired > 0 {
		p.logger.Info().Int("count", expired).Msg("expired stale presign slots")
	}

	reclaimed, err := p.repo.ReclaimAbandoned(ctx, now.Add(-p.allocTTL), now)
	if err != nil {
		p.logger.Error().Err(err).Msg("presign reclaim sweep failed")
	} else if reclaimed > 0 {
		p.logger.Warn().Int("count", reclaimed).Msg("reclaimed abandoned presign allocations")
	}

	if avail, err := p.repo.CountAvailable(ctx, now); err == nil {
		p.metrics.PresignAvailable.Set(float64(avail))
	}
}
