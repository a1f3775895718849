package recompute

import (
	"context"
	"errors"
	"sync"
	"time"

	infralogger "github.com/jonesrussell/site-portfolio/infrastructure/logger"
	"github.com/jonesrussell/site-portfolio/internal/metrics"
)

const defaultTaskTimeout = 30 * time.Second

// ErrQueueClosed is returned by Close when called twice.
var ErrQueueClosed = errors.New("recompute queue closed")

// Task is one scheduled recompute.
type Task interface {
	Recompute(ctx context.Context, backlinkSiteID string) (int, error)
}

// Queue runs single-site recomputes on one worker goroutine. Delivery is
// at-most-once: Enqueue never blocks, a full buffer drops the task, and a
// failed recompute is only logged and counted.
type Queue struct {
	tasks   chan string
	worker  Task
	metrics *metrics.Metrics
	logger  infralogger.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewQueue starts the worker. size is the buffer length.
func NewQueue(worker Task, size int, m *metrics.Metrics, log infralogger.Logger) *Queue {
	if size < 1 {
		size = 1
	}
	if log == nil {
		log = infralogger.NewNop()
	}
	q := &Queue{
		tasks:   make(chan string, size),
		worker:  worker,
		metrics: m,
		logger:  log,
		timeout: defaultTaskTimeout,
		done:    make(chan struct{}),
	}
	go q.run()
	return q
}

// Enqueue schedules a recompute of backlinkSiteID and reports whether it was
// accepted. Call it only after the triggering write committed.
func (q *Queue) Enqueue(backlinkSiteID string) bool {
	if q == nil {
		return false
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.drop(backlinkSiteID, "queue closed")
		return false
	}

	select {
	case q.tasks <- backlinkSiteID:
		q.metrics.SetRecomputeQueueDepth(len(q.tasks))
		return true
	default:
		q.drop(backlinkSiteID, "queue full")
		return false
	}
}

func (q *Queue) drop(id, reason string) {
	q.metrics.RecomputeOutcome(metrics.OutcomeDropped)
	q.logger.Warn("Importance recompute dropped",
		infralogger.String("backlink_site_id", id),
		infralogger.String("reason", reason),
	)
}

// Close stops accepting tasks and waits until the buffered ones ran or ctx
// is done.
func (q *Queue) Close(ctx context.Context) error {
	if q == nil {
		return nil
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) run() {
	defer close(q.done)
	for id := range q.tasks {
		q.metrics.SetRecomputeQueueDepth(len(q.tasks))
		q.process(id)
	}
}

func (q *Queue) process(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	score, err := q.worker.Recompute(ctx, id)
	if err != nil {
		q.metrics.RecomputeOutcome(metrics.OutcomeFailed)
		q.logger.Error("Importance recompute failed",
			infralogger.String("backlink_site_id", id),
			infralogger.Error(err),
		)
		return
	}
	q.metrics.RecomputeOutcome(metrics.OutcomeSuccess)
	q.logger.Debug("Importance recomputed",
		infralogger.String("backlink_site_id", id),
		infralogger.Int("score", score),
	)
}
