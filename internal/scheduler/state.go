package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wflowhq/engine/internal/infrastructure/cache"
)

// TriggerState tracks a schedule trigger's firing history in Redis.
type TriggerState struct {
	TriggerID      string     `json:"triggerId"`
	LastExecuted   *time.Time `json:"lastExecuted,omitempty"`
	NextExecution  *time.Time `json:"nextExecution,omitempty"`
	ExecutionCount int64      `json:"executionCount"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// NewTriggerState creates a fresh, never-yet-fired state record.
func NewTriggerState(triggerID string) *TriggerState {
	return &TriggerState{TriggerID: triggerID, UpdatedAt: time.Now().UTC()}
}

// MarkExecuted records a firing at the current time.
func (s *TriggerState) MarkExecuted() {
	now := time.Now().UTC()
	s.LastExecuted = &now
	s.ExecutionCount++
	s.UpdatedAt = now
}

// SetNextExecution records the schedule's next computed fire time, for
// next-fire-computation display
func (s *TriggerState) SetNextExecution(next time.Time) {
	s.NextExecution = &next
	s.UpdatedAt = time.Now().UTC()
}

func triggerStateKey(triggerID string) string {
	return fmt.Sprintf("trigger:%s:state", triggerID)
}

// Save persists the state to Redis with no expiration.
func (s *TriggerState) Save(ctx context.Context, c *cache.RedisCache) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger state: %w", err)
	}
	return c.Set(ctx, triggerStateKey(s.TriggerID), data, 0)
}

// LoadTriggerState reads a trigger's state from Redis.
func LoadTriggerState(ctx context.Context, c *cache.RedisCache, triggerID string) (*TriggerState, error) {
	raw, err := c.Get(ctx, triggerStateKey(triggerID))
	if err != nil {
		return nil, fmt.Errorf("failed to load trigger state: %w", err)
	}
	var state TriggerState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trigger state: %w", err)
	}
	return &state, nil
}

// DeleteTriggerState removes a trigger's state record.
func DeleteTriggerState(ctx context.Context, c *cache.RedisCache, triggerID string) error {
	return c.Delete(ctx, triggerStateKey(triggerID))
}
