// Package scheduler keeps one repeatable job-queue registration alive per
// active SCHEDULE trigger. Each cron fire enqueues a "scheduled-execution"
// job the orchestrator picks up.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/wflowhq/engine/internal/infrastructure/cache"
	"github.com/wflowhq/engine/internal/infrastructure/logger"
	"github.com/wflowhq/engine/internal/queue"
	"github.com/wflowhq/engine/internal/storage"
	"github.com/wflowhq/engine/pkg/models"
)

// ScheduledExecutionJob is the jobName queue.Worker registers for the
// Orchestrator to consume
const ScheduledExecutionJob = "scheduled-execution"

// Scheduler registers and tears down cron-driven repeatable jobs for
// SCHEDULE triggers.
type Scheduler struct {
	queue        *queue.Queue
	triggerRepo  *storage.TriggerRepository
	workflowRepo *storage.WorkflowRepository
	cache        *cache.RedisCache
	log          *logger.Logger
}

// New creates a Scheduler wired to the engine's queue and repositories.
func New(q *queue.Queue, triggerRepo *storage.TriggerRepository, workflowRepo *storage.WorkflowRepository, c *cache.RedisCache) *Scheduler {
	return &Scheduler{queue: q, triggerRepo: triggerRepo, workflowRepo: workflowRepo, cache: c, log: logger.Default()}
}

func registrationKey(triggerID string) string {
	return "schedule-trigger:" + triggerID
}

// Start enumerates every SCHEDULE trigger whose workflow is active and
// registers it, then starts the queue's internal cron driver.
func (s *Scheduler) Start(ctx context.Context) error {
	triggers, err := s.triggerRepo.FindActiveSchedules(ctx)
	if err != nil {
		return fmt.Errorf("failed to load active schedule triggers: %w", err)
	}

	for _, trigger := range triggers {
		if err := s.Register(ctx, trigger); err != nil {
			s.log.Error("failed to register schedule trigger at startup", "trigger_id", trigger.ID, "error", err)
		}
	}

	s.queue.StartCron()
	return nil
}

// Register upserts a repeatable job for trigger. Called at startup, on
// trigger create/update, and on resume.
func (s *Scheduler) Register(ctx context.Context, trigger *models.Trigger) error {
	if !trigger.IsSchedule() {
		return nil
	}

	cronPattern, _ := trigger.Config["cron"].(string)
	if cronPattern == "" {
		return fmt.Errorf("schedule trigger %s has no cron pattern", trigger.ID)
	}

	var loc *time.Location
	if tz, _ := trigger.Config["timezone"].(string); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("invalid timezone %q: %w", tz, err)
		}
		loc = l
	}

	workflow, err := s.workflowRepo.FindByID(ctx, trigger.WorkflowID)
	if err != nil {
		return fmt.Errorf("failed to load workflow for schedule trigger: %w", err)
	}

	triggerID := trigger.ID
	workflowID := trigger.WorkflowID
	ownerID := workflow.OwnerID

	factory := func() (interface{}, error) {
		return map[string]interface{}{
			"triggerId":   triggerID,
			"workflowId":  workflowID,
			"ownerId":     ownerID,
			"isScheduled": true,
		}, nil
	}

	key := registrationKey(triggerID)
	if err := s.queue.UpsertRepeatable(key, ScheduledExecutionJob, cronPattern, loc, factory); err != nil {
		return err
	}

	if next, ok := s.queue.NextFire(key); ok {
		trigger.NextRun = &next
		if s.cache != nil {
			state, err := LoadTriggerState(ctx, s.cache, triggerID)
			if err != nil {
				state = NewTriggerState(triggerID)
			}
			state.SetNextExecution(next)
			if err := state.Save(ctx, s.cache); err != nil {
				s.log.Warn("failed to persist trigger state", "trigger_id", triggerID, "error", err)
			}
		}
	}

	return nil
}

// Pause removes trigger's live repeatable registration without deleting
// the underlying trigger row, so Resume can re-register it later.
func (s *Scheduler) Pause(triggerID string) {
	s.queue.RemoveRepeatable(registrationKey(triggerID))
}

// Resume is an alias for Register, read more clearly at call sites that
// react to a trigger being re-enabled.
func (s *Scheduler) Resume(ctx context.Context, trigger *models.Trigger) error {
	return s.Register(ctx, trigger)
}

// Remove tears down trigger's registration, used on trigger delete or
// workflow deactivation.
func (s *Scheduler) Remove(triggerID string) {
	s.queue.RemoveRepeatable(registrationKey(triggerID))
}

// NextFire returns the next scheduled fire time for triggerID, if it has
// a live registration.
func (s *Scheduler) NextFire(triggerID string) (time.Time, bool) {
	return s.queue.NextFire(registrationKey(triggerID))
}

// Stop stops the queue's cron driver, waiting for in-flight fires to
// finish or ctx to be cancelled.
func (s *Scheduler) Stop(ctx context.Context) {
	s.queue.StopCron(ctx)
}
