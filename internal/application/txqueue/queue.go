// Package txqueue serializes ledger calls that touch a shared on-chain object.
// The coordination and destination ledgers lock such objects per transaction,
// so two concurrent calls against the same object would abort each other;
// funnelling them through a single worker per object removes the contention.
package txqueue

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// ErrShuttingDown is returned for operations still queued when the queue stops.
var ErrShuttingDown = errors.New("txqueue: shutting down")

// Operation is one ledger call. It runs alone with respect to every other
// operation enqueued for the same object.
type Operation func(ctx context.Context) (interface{}, error)

type job struct {
	ctx    context.Context
	op     Operation
	result chan outcome
}

type outcome struct {
	value interface{}
	err   error
}

// Queue owns a single worker goroutine that executes operations for one shared
// object strictly in submission order.
type Queue struct {
	object string
	jobs   chan job
	done   chan struct{}
	logger zerolog.Logger

	closeOnce sync.Once
}

func New(object string, depth int, logger zerolog.Logger) *Queue {
	if depth <= 0 {
		depth = 64
	}
	q := &Queue{
		object: object,
		jobs:   make(chan job, depth),
		done:   make(chan struct{}),
		logger: logger.With().Str("component", "txqueue").Str("object", object).Logger(),
	}
	go q.run()
	return q
}

func (q *Queue) Object() string { return q.object }

// Depth reports the number of operations waiting in the queue.
func (q *Queue) Depth() int { return len(q.jobs) }

// Enqueue submits op and blocks until it has executed or the caller's context
// is cancelled. A failed operation never blocks the ones queued behind it.
func (q *Queue) Enqueue(ctx context.Context, op Operation) (interface{}, error) {
	j := job{ctx: ctx, op: op, result: make(chan outcome, 1)}
	select {
	case q.jobs <- j:
	case <-q.done:
		return nil, ErrShuttingDown
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case out := <-j.result:
		return out.value, out.err
	case <-ctx.Done():
		// The worker will still run the operation; the caller just stopped
		// waiting for it.
		return nil, ctx.Err()
	}
}

// Close stops the worker after the current operation finishes. Queued
// operations fail with ErrShuttingDown.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.done) })
}

func (q *Queue) run() {
	for {
		// Shutdown takes priority over pending work.
		select {
		case <-q.done:
			q.drain()
			return
		default:
		}
		select {
		case <-q.done:
			q.drain()
			return
		case j := <-q.jobs:
			q.execute(j)
		}
	}
}

func (q *Queue) execute(j job) {
	if err := j.ctx.Err(); err != nil {
		j.result <- outcome{err: err}
		return
	}
	value, err := j.op(j.ctx)
	if err != nil {
		q.logger.Debug().Err(err).Msg("queued operation failed")
	}
	j.result <- outcome{value: value, err: err}
}

func (q *Queue) drain() {
	for {
		select {
		case j := <-q.jobs:
			j.result <- outcome{err: ErrShuttingDown}
		default:
			return
		}
	}
}

// Registry hands out one Queue per shared object id.
type Registry struct {
	mu     sync.Mutex
	queues map[string]*Queue
	depth  int
	logger zerolog.Logger
}

func NewRegistry(depth int, logger zerolog.Logger) *Registry {
	return &Registry{
		queues: make(map[string]*Queue),
		depth:  depth,
		logger: logger,
	}
}

// For returns the queue serializing operations on the given object, creating
// it on first use.
func (r *Registry) For(object string) *Queue {
	r.mu.Lock()
	defer r.mu.Unlock()
	if q, ok := r.queues[object]; ok {
		return q
	}
	q := New(object, r.depth, r.logger)
	r.queues[object] = q
	return q
}

// Depths reports the current queue depth per object.
func (r *Registry) Depths() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.queues))
	for object, q := range r.queues {
		out[object] = q.Depth()
	}
	return out
}

// Close stops every queue.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range r.queues {
		q.Close()
	}
}
