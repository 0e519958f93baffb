package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wflowhq/engine/internal/queue"
	"github.com/wflowhq/engine/pkg/models"
)

// runningSet tracks the cancel function of every execution this engine
// instance is currently driving. Ownership is exclusive per execution
// (jobId = executionId, atomic pop+ack), so at most one entry per id.
type runningSet struct {
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func newRunningSet() *runningSet {
	return &runningSet{cancels: make(map[string]context.CancelFunc)}
}

func (s *runningSet) add(executionID string, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels[executionID] = cancel
}

func (s *runningSet) remove(executionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cancels, executionID)
}

func (s *runningSet) cancel(executionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.cancels[executionID]; ok {
		cancel()
		return true
	}
	return false
}

// ErrNotCancellable is returned by Cancel for an execution already in a
// terminal state.
var ErrNotCancellable = fmt.Errorf("execution is not in a cancellable state")

// Cancel stops a PENDING or RUNNING execution:
//
//   - PENDING: the queued job is removed and the execution is finalised as
//     FAILED directly — the worker never sees it, so no step logs exist.
//   - RUNNING on this instance: the worker's context is cancelled; the
//     signal is observed between node retries and between nodes, and the
//     worker itself finalises the row.
//   - RUNNING elsewhere (another engine instance owns the job): the row is
//     finalised here; the remote worker reloads the row before writing its
//     final status and leaves an already-terminal status in place.
func (o *Orchestrator) Cancel(ctx context.Context, executionID string) error {
	execution, err := o.executions.FindByID(ctx, executionID)
	if err != nil {
		return err
	}

	switch execution.Status {
	case models.ExecutionStatusPending:
		if err := o.queue.RemoveJob(ctx, executionID); err != nil {
			o.log.Warn("failed to remove queued job on cancel", "execution_id", executionID, "error", err)
		}
		finishedAt := time.Now().UTC()
		return o.executions.UpdateStatus(ctx, executionID, models.ExecutionStatusFailed, nil, CancelledByUserError, &finishedAt)

	case models.ExecutionStatusRunning:
		if o.running.cancel(executionID) {
			return nil
		}
		finishedAt := time.Now().UTC()
		return o.executions.UpdateStatus(ctx, executionID, models.ExecutionStatusFailed, nil, CancelledByUserError, &finishedAt)

	default:
		return ErrNotCancellable
	}
}

// Replay creates a fresh PENDING execution reusing a finished execution's
// original input, and enqueues it normally.
func (o *Orchestrator) Replay(ctx context.Context, executionID string) (*models.Execution, error) {
	original, err := o.executions.FindByID(ctx, executionID)
	if err != nil {
		return nil, err
	}

	replay := &models.Execution{
		ID:          o.newID(),
		WorkflowID:  original.WorkflowID,
		Status:      models.ExecutionStatusPending,
		Input:       original.Input,
		TriggeredBy: "replay:" + original.ID,
	}
	if err := o.executions.Create(ctx, replay); err != nil {
		return nil, err
	}

	payload := ExecutePayload{ExecutionID: replay.ID, WorkflowID: replay.WorkflowID}
	if _, err := o.queue.Enqueue(ctx, "execute", payload, queue.EnqueueOptions{JobID: replay.ID}); err != nil {
		return nil, err
	}
	return replay, nil
}
