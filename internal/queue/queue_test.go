package queue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	return New(client), s
}

func TestEnqueue_IdempotentJobID(t *testing.T) {
	q, s := newTestQueue(t)
	defer s.Close()
	ctx := context.Background()

	id1, err := q.Enqueue(ctx, "execute", map[string]string{"a": "1"}, EnqueueOptions{JobID: "exec-123"})
	require.NoError(t, err)

	id2, err := q.Enqueue(ctx, "execute", map[string]string{"a": "2"}, EnqueueOptions{JobID: "exec-123"})
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	job, err := q.GetJob(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, `{"a":"1"}`, string(job.Payload))
}

func TestEnqueue_Delay(t *testing.T) {
	q, s := newTestQueue(t)
	defer s.Close()
	ctx := context.Background()

	_, err := q.Enqueue(ctx, "execute", map[string]string{}, EnqueueOptions{Delay: time.Minute})
	require.NoError(t, err)

	length, err := q.client.LLen(ctx, waitingKey("execute")).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), length)

	count, err := q.client.ZCard(ctx, delayedKey("execute")).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestWorker_ProcessesJobOnce(t *testing.T) {
	q, s := newTestQueue(t)
	defer s.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var processed int32
	q.Worker(ctx, "execute", 2, func(ctx context.Context, job *Job) error {
		atomic.AddInt32(&processed, 1)
		return nil
	})

	_, err := q.Enqueue(ctx, "execute", map[string]string{"x": "y"}, EnqueueOptions{})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&processed) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWorker_RetriesThenFails(t *testing.T) {
	q, s := newTestQueue(t)
	defer s.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var attempts int32
	q.Worker(ctx, "execute", 1, func(ctx context.Context, job *Job) error {
		atomic.AddInt32(&attempts, 1)
		return assert.AnError
	})

	jobID, err := q.Enqueue(ctx, "execute", map[string]string{}, EnqueueOptions{Attempts: 2})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&attempts) >= 1
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&attempts) >= 2
	}, 3*time.Second, 10*time.Millisecond)

	job, err := q.GetJob(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, job.Status)
}

func TestBackoffDelay_Exponential(t *testing.T) {
	assert.Equal(t, time.Second, backoffDelay(1))
	assert.Equal(t, 2*time.Second, backoffDelay(2))
	assert.Equal(t, 4*time.Second, backoffDelay(3))
}

func TestUpsertRepeatable_ReplacesExisting(t *testing.T) {
	q, s := newTestQueue(t)
	defer s.Close()

	err := q.UpsertRepeatable("schedule-trigger:1", "scheduled-execution", "0 * * * * *", nil, func() (interface{}, error) {
		return map[string]string{}, nil
	})
	require.NoError(t, err)
	assert.True(t, q.HasRepeatable("schedule-trigger:1"))

	err = q.UpsertRepeatable("schedule-trigger:1", "scheduled-execution", "0 30 * * * *", nil, func() (interface{}, error) {
		return map[string]string{}, nil
	})
	require.NoError(t, err)
	assert.True(t, q.HasRepeatable("schedule-trigger:1"))

	q.RemoveRepeatable("schedule-trigger:1")
	assert.False(t, q.HasRepeatable("schedule-trigger:1"))
}
