// Package persist writes reconciled inputs to the history store without
// blocking the session controller.
package persist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/user/deckster/internal/types"
)

// ErrStopped is returned by Enqueue once Stop has been called.
var ErrStopped = errors.New("persist queue stopped")

const laneSize = 256

// Queue keeps one FIFO lane per session so writes for a session land in
// order, while a weighted semaphore caps the number of writes in flight
// across all sessions.
type Queue struct {
	store     types.HistoryStore
	retry     *RetryPolicy
	lanes     map[types.SessionID]chan *types.PersistRequest
	semaphore *semaphore.Weighted
	processor func(context.Context, *types.PersistRequest) error
	onError   func(*PersistError)
	logger    *slog.Logger
	pending   atomic.Int64
	written   atomic.Int64
	failed    atomic.Int64

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
}

var _ types.Persister = (*Queue)(nil)

// NewQueue creates a Queue that allows up to maxConcurrent writes at once.
func NewQueue(store types.HistoryStore, maxConcurrent int64) *Queue {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	q := &Queue{
		store:     store,
		retry:     DefaultRetryPolicy(),
		lanes:     make(map[types.SessionID]chan *types.PersistRequest),
		semaphore: semaphore.NewWeighted(maxConcurrent),
		logger:    slog.Default().With("component", "persist"),
	}
	q.processor = q.write
	return q
}

// SetRetryPolicy replaces the default policy. Call before Start.
func (q *Queue) SetRetryPolicy(p *RetryPolicy) {
	q.retry = p
}

// OnError registers a callback for requests that failed permanently.
func (q *Queue) OnError(fn func(*PersistError)) {
	q.onError = fn
}

// Start initialises the queue's context. Must be called before Enqueue.
func (q *Queue) Start(ctx context.Context) {
	q.ctx, q.cancel = context.WithCancel(ctx)
}

// Stop closes all lanes and waits for queued writes to drain. Writes still
// waiting on a retry delay are abandoned.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	for _, lane := range q.lanes {
		close(lane)
	}
	q.mu.Unlock()
	q.wg.Wait()
	if q.cancel != nil {
		q.cancel()
	}
}

// Enqueue hands a request to its session lane and returns immediately.
func (q *Queue) Enqueue(req *types.PersistRequest) error {
	if req == nil || req.ID == "" {
		return fmt.Errorf("enqueue persist request: missing id")
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped || q.ctx == nil {
		return ErrStopped
	}

	lane, exists := q.lanes[req.SessionID]
	if !exists {
		lane = make(chan *types.PersistRequest, laneSize)
		q.lanes[req.SessionID] = lane
		q.wg.Add(1)
		go q.processLane(lane)
	}

	select {
	case lane <- req:
		q.pending.Add(1)
		return nil
	default:
		return fmt.Errorf("persist queue full for session %s", req.SessionID)
	}
}

func (q *Queue) processLane(lane chan *types.PersistRequest) {
	defer q.wg.Done()
	for req := range lane {
		if err := q.semaphore.Acquire(q.ctx, 1); err != nil {
			q.pending.Add(-1)
			continue
		}
		if err := q.processor(q.ctx, req); err != nil {
			q.failed.Add(1)
			perr := &PersistError{ID: req.ID, SessionID: req.SessionID, Err: err}
			q.logger.Error("persist failed", "message_id", string(req.ID), "session_id", string(req.SessionID), "error", err)
			if q.onError != nil {
				q.onError(perr)
			}
		} else {
			q.written.Add(1)
		}
		q.semaphore.Release(1)
		q.pending.Add(-1)
	}
}

func (q *Queue) write(ctx context.Context, req *types.PersistRequest) error {
	return q.retry.Execute(ctx, func() error {
		return q.store.Persist(ctx, req)
	})
}

// WaitIdle blocks until every enqueued request has been written or has
// failed, or the timeout expires. Returns true if idle.
func (q *Queue) WaitIdle(timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if q.pending.Load() == 0 {
			return true
		}
		select {
		case <-deadline:
			return false
		case <-time.After(20 * time.Millisecond):
		}
	}
}

// Counts returns the number of requests written and permanently failed.
func (q *Queue) Counts() (written, failed int64) {
	return q.written.Load(), q.failed.Load()
}
