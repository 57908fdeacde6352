// Package listener drives the per-ledger event subscriptions. Each
// subscription polls its gateway from a durable cursor and hands matching
// events to a handler; delivery is at-least-once across crashes, so handlers
// are expected to be idempotent.
package listener

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/sealbridge/orchestrator/internal/domain/chain"
	"github.com/sealbridge/orchestrator/internal/domain/cursor"
	"github.com/sealbridge/orchestrator/internal/observability"
)

// Handler processes one event. Returning an error leaves the cursor in place
// so the event is redelivered on the next cycle.
type Handler func(ctx context.Context, ev chain.Event) error

// FetchFunc pages events from a ledger gateway strictly after the given
// cursor position, oldest first.
type FetchFunc func(ctx context.Context, after string, limit int) ([]chain.Event, error)

// Subscription binds one ledger event stream to a handler.
type Subscription struct {
	Key       string
	Fetch     FetchFunc
	Handler   Handler
	Filter    string
	Interval  time.Duration
	BatchSize int
}

// Listener runs subscriptions against the durable cursor store.
type Listener struct {
	cursors       cursor.Repository
	failureBudget int
	metrics       *observability.Metrics
	logger        zerolog.Logger
}

func New(cursors cursor.Repository, failureBudget int, metrics *observability.Metrics, logger zerolog.Logger) *Listener {
	if failureBudget <= 0 {
		failureBudget = 5
	}
	return &Listener{
		cursors:       cursors,
		failureBudget: failureBudget,
		metrics:       metrics,
		logger:        logger.With().Str("service", "listener").Logger(),
	}
}

// Run polls the subscription until the context ends. Cycles never overlap:
// the next poll starts only after the previous one returned.
func (l *Listener) Run(ctx context.Context, sub Subscription) {
	interval := sub.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	logger := l.logger.With().Str("subscription", sub.Key).Logger()
	logger.Info().Dur("interval", interval).Msg("subscription started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	l.PollOnce(ctx, sub)
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("subscription stopped")
			return
		case <-ticker.C:
			l.PollOnce(ctx, sub)
		}
	}
}

// PollOnce runs a single poll cycle: fetch events past the cursor, process
// them in order, and commit the cursor after each per-event decision. A
// handler failure ends the cycle so the failed event is redelivered first
// next time; once the same event has failed failureBudget consecutive cycles
// it is abandoned and the cursor advances past it.
func (l *Listener) PollOnce(ctx context.Context, sub Subscription) {
	logger := l.logger.With().Str("subscription", sub.Key).Logger()

	cur, err := l.cursors.Get(ctx, sub.Key)
	if err != nil {
		logger.Error().Err(err).Msg("cursor load failed")
		return
	}
	after := ""
	failures := 0
	if cur != nil {
		after = cur.Position
		failures = cur.ConsecutiveFailures
	}

	batch := sub.BatchSize
	if batch <= 0 {
		batch = 50
	}
	events, err := sub.Fetch(ctx, after, batch)
	if err != nil {
		logger.Warn().Err(err).Str("after", after).Msg("event fetch failed")
		return
	}

	for _, ev := range events {
		if ctx.Err() != nil {
			return
		}

		match, ferr := EvaluateFilter(sub.Filter, ev)
		if ferr != nil {
			logger.Error().Err(ferr).Str("position", ev.Position).Msg("filter evaluation failed, skipping event")
			match = false
		}
		if !match {
			if err := l.commit(ctx, sub.Key, ev.Position, 0); err != nil {
				logger.Error().Err(err).Msg("cursor commit failed")
				return
			}
			failures = 0
			l.metrics.ListenerEvents.WithLabelValues(sub.Key, "filtered").Inc()
			continue
		}

		if herr := sub.Handler(ctx, ev); herr != nil {
			failures++
			if failures >= l.failureBudget {
				logger.Warn().Err(herr).Str("position", ev.Position).Int("failures", failures).
					Msg("event abandoned after exhausting retry budget")
				if err := l.commit(ctx, sub.Key, ev.Position, 0); err != nil {
					logger.Error().Err(err).Msg("cursor commit failed")
					return
				}
				failures = 0
				l.metrics.ListenerEvents.WithLabelValues(sub.Key, "abandoned").Inc()
				continue
			}
			logger.Warn().Err(herr).Str("position", ev.Position).Int("failures", failures).
				Msg("event handling failed, will redeliver")
			if err := l.commit(ctx, sub.Key, after, failures); err != nil {
				logger.Error().Err(err).Msg("cursor commit failed")
			}
			l.metrics.ListenerEvents.WithLabelValues(sub.Key, "failed").Inc()
			return
		}

		if err := l.commit(ctx, sub.Key, ev.Position, 0); err != nil {
			logger.Error().Err(err).Msg("cursor commit failed")
			return
		}
		after = ev.Position
		failures = 0
		l.metrics.ListenerEvents.WithLabelValues(sub.Key, "handled").Inc()
	}
}

func (l *Listener) commit(ctx context.Context, key, position string, failures int) error {
	return l.cursors.Commit(ctx, &cursor.Cursor{
		SubscriptionKey:     key,
		Position:            position,
		ConsecutiveFailures: failures,
	})
}
