package listener

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sealbridge/orchestrator/internal/domain/chain"
	"github.com/sealbridge/orchestrator/internal/infrastructure/sqlite"
	"github.com/sealbridge/orchestrator/internal/observability"
)

func newTestListener(t *testing.T, budget int) (*Listener, *sqlite.CursorRepository) {
	t.Helper()
	db, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "orchestrator.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	cursors := sqlite.NewCursorRepository(db)
	return New(cursors, budget, observability.NopMetrics(), zerolog.Nop()), cursors
}

// sequenceFetch serves events with sequence > after from a fixed log.
func sequenceFetch(log []chain.Event) FetchFunc {
	return func(_ context.Context, after string, limit int) ([]chain.Event, error) {
		var afterSeq uint64
		if after != "" {
			afterSeq, _ = strconv.ParseUint(after, 10, 64)
		}
		var out []chain.Event
		for _, ev := range log {
			if ev.Sequence > afterSeq {
				out = append(out, ev)
			}
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		return out, nil
	}
}

func seqEvent(seq uint64, typ string) chain.Event {
	return chain.Event{
		Position:   strconv.FormatUint(seq, 10),
		Sequence:   seq,
		Type:       typ,
		Attributes: map[string]string{},
	}
}

func TestPollAdvancesCursorPerEvent(t *testing.T) {
	l, cursors := newTestListener(t, 5)
	log := []chain.Event{seqEvent(1, "seal_initiated"), seqEvent(2, "seal_initiated")}

	var handled []uint64
	sub := Subscription{
		Key:   "near.locks",
		Fetch: sequenceFetch(log),
		Handler: func(_ context.Context, ev chain.Event) error {
			handled = append(handled, ev.Sequence)
			return nil
		},
	}
	l.PollOnce(context.Background(), sub)

	assert.Equal(t, []uint64{1, 2}, handled)
	cur, err := cursors.Get(context.Background(), "near.locks")
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, "2", cur.Position)
	assert.Equal(t, 0, cur.ConsecutiveFailures)

	// Nothing is redelivered once committed.
	l.PollOnce(context.Background(), sub)
	assert.Equal(t, []uint64{1, 2}, handled)
}

func TestFailedEventIsRedeliveredThenAbandoned(t *testing.T) {
	const budget = 3
	l, cursors := newTestListener(t, budget)
	log := []chain.Event{seqEvent(1, "seal_initiated"), seqEvent(2, "seal_initiated")}

	var attempts []uint64
	sub := Subscription{
		Key:   "near.locks",
		Fetch: sequenceFetch(log),
		Handler: func(_ context.Context, ev chain.Event) error {
			attempts = append(attempts, ev.Sequence)
			if ev.Sequence == 1 {
				return errors.New("poison event")
			}
			return nil
		},
	}
	ctx := context.Background()

	// Two failing cycles: the poison event is redelivered, the cursor stays put
	// and the failure count is durable.
	l.PollOnce(ctx, sub)
	l.PollOnce(ctx, sub)
	cur, err := cursors.Get(ctx, "near.locks")
	require.NoError(t, err)
	assert.Equal(t, "", cur.Position)
	assert.Equal(t, 2, cur.ConsecutiveFailures)
	assert.Equal(t, []uint64{1, 1}, attempts)

	// Third cycle exhausts the budget: the event is abandoned, the cursor
	// advances, and the event behind it is processed in the same cycle.
	l.PollOnce(ctx, sub)
	cur, err = cursors.Get(ctx, "near.locks")
	require.NoError(t, err)
	assert.Equal(t, "2", cur.Position)
	assert.Equal(t, 0, cur.ConsecutiveFailures)
	assert.Equal(t, []uint64{1, 1, 1, 2}, attempts)
}

func TestFilterSkipsNonMatchingEvents(t *testing.T) {
	l, cursors := newTestListener(t, 5)
	log := []chain.Event{seqEvent(1, "fee_collected"), seqEvent(2, "seal_initiated")}

	var handled []uint64
	sub := Subscription{
		Key:    "near.locks",
		Filter: `type == "seal_initiated"`,
		Fetch:  sequenceFetch(log),
		Handler: func(_ context.Context, ev chain.Event) error {
			handled = append(handled, ev.Sequence)
			return nil
		},
	}
	l.PollOnce(context.Background(), sub)

	assert.Equal(t, []uint64{2}, handled)
	cur, err := cursors.Get(context.Background(), "near.locks")
	require.NoError(t, err)
	assert.Equal(t, "2", cur.Position)
}

func TestFetchFailureLeavesCursorUntouched(t *testing.T) {
	l, cursors := newTestListener(t, 5)
	sub := Subscription{
		Key: "near.locks",
		Fetch: func(context.Context, string, int) ([]chain.Event, error) {
			return nil, errors.New("gateway down")
		},
		Handler: func(context.Context, chain.Event) error { return nil },
	}
	l.PollOnce(context.Background(), sub)

	cur, err := cursors.Get(context.Background(), "near.locks")
	require.NoError(t, err)
	assert.Nil(t, cur)
}

func TestEvaluateFilterExpressions(t *testing.T) {
	ev := chain.Event{
		Type:       "seal_initiated",
		Sequence:   10,
		Attributes: map[string]string{"nft_contract": "nft.collection.near"},
	}

	ok, err := EvaluateFilter("", ev)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = EvaluateFilter(`type == "seal_initiated" && nft_contract == "nft.collection.near"`, ev)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = EvaluateFilter(`sequence > 100`, ev)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = EvaluateFilter(`sequence >`, ev)
	assert.Error(t, err)
}
