// Package queue implements the engine's durable job queue: a Redis-backed
// FIFO with atomic pop+ack, delayed re-enqueue, and cron-driven repeatable
// jobs.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/wflowhq/engine/internal/infrastructure/logger"
)

// cronLocation is the internal cron.Cron's location: repeatable
// registrations made without a timezone fire in it.
var cronLocation = time.UTC

// Status is a job record's terminal or transient state, kept only for the
// completed/failed retention windows.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Job is a single unit of work, identified by ID. Two Enqueue calls with
// the same ID are idempotent: the second is a no-op.
type Job struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Payload     json.RawMessage `json:"payload"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"maxAttempts"`
	Status      Status          `json:"status"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// EnqueueOptions controls idempotency, delay, and the job-level retry
// policy. This is distinct from a node's own retry config: it guards
// against the worker process crashing mid-job, not against action
// failures.
type EnqueueOptions struct {
	JobID             string
	Delay             time.Duration
	Attempts          int
	InitialBackoffSec int
}

const (
	defaultAttempts          = 3
	defaultInitialBackoffSec = 1
	completedRetention       = 1000
	failedRetention          = 5000
)

// Handler processes one job's payload. Returning an error marks the job's
// attempt as failed; the queue retries per the job's backoff policy until
// attempts are exhausted, at which point the job's record is kept with
// status failed and its id is pushed onto the failed retention list.
type Handler func(ctx context.Context, job *Job) error

// Queue is a Redis-backed FIFO-per-jobName queue with delayed re-enqueue
// and cron-driven repeatable registrations.
type Queue struct {
	client *redis.Client
	cron   *cron.Cron
	log    *logger.Logger

	entries map[string]cron.EntryID
}

// New creates a Queue bound to an already-connected Redis client.
func New(client *redis.Client) *Queue {
	return &Queue{
		client:  client,
		cron:    cron.New(cron.WithSeconds(), cron.WithLocation(cronLocation)),
		log:     logger.Default(),
		entries: make(map[string]cron.EntryID),
	}
}

func waitingKey(jobName string) string   { return "queue:" + jobName + ":waiting" }
func processingKey(jobName string) string { return "queue:" + jobName + ":processing" }
func delayedKey(jobName string) string   { return "queue:" + jobName + ":delayed" }

const jobsHashKey = "queue:jobs"
const completedListKey = "queue:completed"
const failedListKey = "queue:failed"

// Enqueue adds a job to jobName's waiting list. If opts.JobID is set and a
// job with that ID already exists, Enqueue is a no-op and returns the
// existing ID.
func (q *Queue) Enqueue(ctx context.Context, jobName string, payload interface{}, opts EnqueueOptions) (string, error) {
	jobID := opts.JobID
	if jobID == "" {
		jobID = uuid.NewString()
	}

	exists, err := q.client.HExists(ctx, jobsHashKey, jobID).Result()
	if err != nil {
		return "", fmt.Errorf("failed to check job idempotency: %w", err)
	}
	if exists {
		return jobID, nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job payload: %w", err)
	}

	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}

	job := &Job{
		ID:          jobID,
		Name:        jobName,
		Payload:     raw,
		MaxAttempts: attempts,
		Status:      StatusWaiting,
		CreatedAt:   time.Now().UTC(),
	}

	jobJSON, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job record: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, jobsHashKey, jobID, jobJSON)
	if opts.Delay > 0 {
		readyAt := float64(time.Now().Add(opts.Delay).UnixMilli())
		pipe.ZAdd(ctx, delayedKey(jobName), redis.Z{Score: readyAt, Member: jobID})
	} else {
		pipe.RPush(ctx, waitingKey(jobName), jobID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}

	return jobID, nil
}

// GetJob looks up a job record by ID, regardless of which list it
// currently lives in.
func (q *Queue) GetJob(ctx context.Context, jobID string) (*Job, error) {
	raw, err := q.client.HGet(ctx, jobsHashKey, jobID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

// RemoveJob deletes a job's record and purges it from the waiting and
// delayed sets of the job's own name — used by execution cancellation on a
// still-PENDING execution.
func (q *Queue) RemoveJob(ctx context.Context, jobID string) error {
	job, err := q.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return nil
		}
		return err
	}

	pipe := q.client.TxPipeline()
	pipe.LRem(ctx, waitingKey(job.Name), 0, jobID)
	pipe.ZRem(ctx, delayedKey(job.Name), jobID)
	pipe.HDel(ctx, jobsHashKey, jobID)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to remove job: %w", err)
	}
	return nil
}

// ErrJobNotFound is returned by GetJob when jobID has no record, either
// because it was never enqueued or because it already completed and aged
// out of retention.
var ErrJobNotFound = errors.New("job not found")
