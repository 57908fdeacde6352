package gateway

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/sealbridge/orchestrator/internal/domain/fault"
)

// RetryPolicy bounds how often a transient failure is retried at the gateway
// layer before it escapes to the caller.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy suits interactive RPC calls.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 250 * time.Millisecond, MaxDelay: 5 * time.Second}
}

// Retry runs fn, retrying with exponential backoff while the failure is
// classified transient. Conclusive, conflict, validation and resource
// failures return immediately.
func Retry(ctx context.Context, p RetryPolicy, logger zerolog.Logger, op string, fn func(context.Context) error) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	delay := p.BaseDelay
	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err = fn(ctx)
		if err == nil || !fault.IsTransient(err) {
			return err
		}
		if attempt == p.MaxAttempts {
			break
		}
		logger.Debug().Err(err).Str("op", op).Int("attempt", attempt).Msg("transient failure, retrying")
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fault.E(fault.KindTransient, op, ctx.Err())
		case <-timer.C:
		}
		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return err
}
