// Package treasury keeps the orchestrator's fee balance on the coordination
// ledger above its low-water mark.
package treasury

import (
	"context"
	"math/big"
	"time"

	"github.com/rs/zerolog"

	"github.com/sealbridge/orchestrator/internal/application/txqueue"
	"github.com/sealbridge/orchestrator/internal/observability"
)

// Funder is the coordination-ledger surface the manager needs.
type Funder interface {
	TreasuryBalance(ctx context.Context) (*big.Int, error)
	TopUpFees(ctx context.Context, amount *big.Int) (string, error)
}

// Config tunes the balance watcher.
type Config struct {
	LowWater    *big.Int
	TopUpAmount *big.Int
	Interval    time.Duration
}

// Manager periodically checks the fee balance and tops it up through the
// coordination transaction queue. A failed top-up is logged and retried on the
// next tick; it never takes the process down.
type Manager struct {
	funder  Funder
	queue   *txqueue.Queue
	cfg     Config
	metrics *observability.Metrics
	logger  zerolog.Logger
}

func NewManager(funder Funder, queue *txqueue.Queue, cfg Config, metrics *observability.Metrics, logger zerolog.Logger) *Manager {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &Manager{
		funder:  funder,
		queue:   queue,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger.With().Str("service", "treasury").Logger(),
	}
}

// Run watches the balance until the context ends.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	m.CheckOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckOnce(ctx)
		}
	}
}

// CheckOnce runs a single balance check and, if needed, one top-up.
func (m *Manager) CheckOnce(ctx context.Context) {
	balance, err := m.funder.TreasuryBalance(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("treasury balance check failed")
		return
	}
	if m.cfg.LowWater == nil || balance.Cmp(m.cfg.LowWater) >= 0 {
		return
	}
	m.logger.Info().Str("balance", balance.String()).Str("low_water", m.cfg.LowWater.String()).
		Msg("treasury below low-water mark, topping up")

	_, err = m.queue.Enqueue(ctx, func(ctx context.Context) (interface{}, error) {
		return m.funder.TopUpFees(ctx, m.cfg.TopUpAmount)
	})
	if err != nil {
		m.metrics.TreasuryTopUps.WithLabelValues("failed").Inc()
		m.logger.Error().Err(err).Msg("treasury top-up failed, will retry next tick")
		return
	}
	m.metrics.TreasuryTopUps.WithLabelValues("submitted").Inc()
	m.logger.Info().Str("amount", m.cfg.TopUpAmount.String()).Msg("treasury top-up submitted")
}
