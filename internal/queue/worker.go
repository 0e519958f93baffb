package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// promotePollInterval is how often the delayed-job promoter checks each
// registered job name's ZSET for entries whose ready time has passed.
const promotePollInterval = 500 * time.Millisecond

// popTimeout bounds how long a worker blocks waiting for a job before
// checking ctx.Done() again.
const popTimeout = 2 * time.Second

// promoteScript atomically moves every member of the delayed ZSET whose
// score is <= now into the waiting list, so a worker's BRPOPLPUSH can pick
// it up. Lua keeps the read-then-move pair atomic against concurrent
// promoters (every promoter loop for the same job name, across engine
// instances).
var promoteScript = redis.NewScript(`
local delayed = KEYS[1]
local waiting = KEYS[2]
local now = ARGV[1]
local ready = redis.call('ZRANGEBYSCORE', delayed, '-inf', now)
for _, id in ipairs(ready) do
	redis.call('ZREM', delayed, id)
	redis.call('RPUSH', waiting, id)
end
return #ready
`)

// Worker spawns concurrency goroutines, each blocking-popping jobs named
// jobName and running handler. It also starts one promoter goroutine for
// jobName's delayed set. Worker returns immediately; cancel the ctx passed
// in, which every goroutine honors, to shut the pool down.
func (q *Queue) Worker(ctx context.Context, jobName string, concurrency int, handler Handler) {
	if concurrency < 1 {
		concurrency = 1
	}

	go q.promoteLoop(ctx, jobName)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.workerLoop(ctx, jobName, handler)
		}()
	}
}

func (q *Queue) promoteLoop(ctx context.Context, jobName string) {
	ticker := time.NewTicker(promotePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now().UnixMilli()
			if err := promoteScript.Run(ctx, q.client, []string{delayedKey(jobName), waitingKey(jobName)}, now).Err(); err != nil {
				q.log.Warn("delayed job promotion failed", "job_name", jobName, "error", err)
			}
		}
	}
}

func (q *Queue) workerLoop(ctx context.Context, jobName string, handler Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		jobID, err := q.client.BRPopLPush(ctx, waitingKey(jobName), processingKey(jobName), popTimeout).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			q.log.Error("queue pop failed", "job_name", jobName, "error", err)
			time.Sleep(time.Second)
			continue
		}

		q.processOne(ctx, jobName, jobID, handler)
	}
}

func (q *Queue) processOne(ctx context.Context, jobName, jobID string, handler Handler) {
	defer q.client.LRem(ctx, processingKey(jobName), 0, jobID)

	job, err := q.GetJob(ctx, jobID)
	if err != nil {
		q.log.Error("processing job with missing record", "job_id", jobID, "error", err)
		return
	}
	job.Attempts++
	job.Status = StatusActive

	handlerErr := handler(ctx, job)
	if handlerErr == nil {
		job.Status = StatusCompleted
		q.finish(ctx, job, completedListKey, completedRetention)
		return
	}

	job.Error = handlerErr.Error()
	if job.Attempts >= job.MaxAttempts {
		job.Status = StatusFailed
		q.finish(ctx, job, failedListKey, failedRetention)
		return
	}

	job.Status = StatusWaiting
	q.requeueWithBackoff(ctx, job)
}

func (q *Queue) finish(ctx context.Context, job *Job, listKey string, retain int) {
	q.saveJob(ctx, job)

	// Ids pushed out of the retention window lose their job record too.
	evicted, err := q.client.LRange(ctx, listKey, int64(retain-1), -1).Result()
	if err != nil {
		q.log.Warn("failed to read job retention list", "job_id", job.ID, "error", err)
	}

	pipe := q.client.TxPipeline()
	pipe.LPush(ctx, listKey, job.ID)
	pipe.LTrim(ctx, listKey, 0, int64(retain-1))
	for _, id := range evicted {
		if id != job.ID {
			pipe.HDel(ctx, jobsHashKey, id)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		q.log.Warn("failed to record job retention entry", "job_id", job.ID, "error", err)
	}
}

func (q *Queue) requeueWithBackoff(ctx context.Context, job *Job) {
	q.saveJob(ctx, job)

	delay := backoffDelay(job.Attempts)
	readyAt := float64(time.Now().Add(delay).UnixMilli())
	if err := q.client.ZAdd(ctx, delayedKey(job.Name), redis.Z{Score: readyAt, Member: job.ID}).Err(); err != nil {
		q.log.Error("failed to schedule job retry", "job_id", job.ID, "error", err)
	}
}

// backoffDelay implements the job-level retry policy: exponential
// backoff starting at 1s.
func backoffDelay(attempt int) time.Duration {
	delay := time.Duration(defaultInitialBackoffSec) * time.Second
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

func (q *Queue) saveJob(ctx context.Context, job *Job) {
	raw, err := json.Marshal(job)
	if err != nil {
		q.log.Error("failed to marshal job record", "job_id", job.ID, "error", err)
		return
	}
	if err := q.client.HSet(ctx, jobsHashKey, job.ID, raw).Err(); err != nil {
		q.log.Error("failed to persist job record", "job_id", job.ID, "error", err)
	}
}
