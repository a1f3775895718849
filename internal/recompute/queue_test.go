package recompute_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/site-portfolio/internal/metrics"
	"github.com/jonesrussell/site-portfolio/internal/recompute"
	"github.com/jonesrussell/site-portfolio/internal/testhelpers"
)

// blockingTask parks every call until release is closed.
type blockingTask struct {
	started chan string
	release chan struct{}

	mu   sync.Mutex
	seen []string
	err  error
}

func newBlockingTask() *blockingTask {
	return &blockingTask{started: make(chan string, 16), release: make(chan struct{})}
}

func (b *blockingTask) Recompute(ctx context.Context, id string) (int, error) {
	b.started <- id
	select {
	case <-b.release:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seen = append(b.seen, id)
	return 50, b.err
}

func (b *blockingTask) processed() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.seen...)
}

func TestQueue_FullQueueDropsWithoutBlocking(t *testing.T) {
	task := newBlockingTask()
	m := metrics.NewMetrics(prometheus.NewRegistry())
	q := recompute.NewQueue(task, 1, m, testhelpers.NewTestLogger())

	require.True(t, q.Enqueue("first"))
	select {
	case <-task.started:
	case <-time.After(time.Second):
		t.Fatal("worker did not pick up the first task")
	}

	require.True(t, q.Enqueue("second"))

	done := make(chan bool)
	go func() { done <- q.Enqueue("third") }()
	select {
	case accepted := <-done:
		assert.False(t, accepted)
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}
	assert.InDelta(t, 1, testutil.ToFloat64(m.RecomputeTasksTotal.WithLabelValues(metrics.OutcomeDropped)), 0)

	close(task.release)
	require.NoError(t, q.Close(context.Background()))

	assert.Equal(t, []string{"first", "second"}, task.processed())
	assert.InDelta(t, 2, testutil.ToFloat64(m.RecomputeTasksTotal.WithLabelValues(metrics.OutcomeSuccess)), 0)
}

func TestQueue_CloseDrains(t *testing.T) {
	task := newBlockingTask()
	close(task.release)
	q := recompute.NewQueue(task, 8, nil, nil)

	for _, id := range []string{"a", "b", "c"} {
		require.True(t, q.Enqueue(id))
	}
	require.NoError(t, q.Close(context.Background()))

	assert.Equal(t, []string{"a", "b", "c"}, task.processed())
	assert.False(t, q.Enqueue("late"))
	assert.ErrorIs(t, q.Close(context.Background()), recompute.ErrQueueClosed)
}

func TestQueue_CloseHonorsContext(t *testing.T) {
	task := newBlockingTask()
	q := recompute.NewQueue(task, 1, nil, nil)
	require.True(t, q.Enqueue("stuck"))
	<-task.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Close(ctx), context.DeadlineExceeded)

	close(task.release)
}

func TestQueue_FailureIsCounted(t *testing.T) {
	task := newBlockingTask()
	task.err = errors.New("boom")
	close(task.release)
	m := metrics.NewMetrics(prometheus.NewRegistry())
	q := recompute.NewQueue(task, 2, m, nil)

	require.True(t, q.Enqueue("x"))
	require.NoError(t, q.Close(context.Background()))

	assert.InDelta(t, 1, testutil.ToFloat64(m.RecomputeTasksTotal.WithLabelValues(metrics.OutcomeFailed)), 0)
}

func TestQueue_NilIsSafe(t *testing.T) {
	var q *recompute.Queue
	assert.False(t, q.Enqueue("x"))
	assert.NoError(t, q.Close(context.Background()))
}
