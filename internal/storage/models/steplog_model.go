package models

import (
	"time"

	"github.com/uptrace/bun"
)

// StepLogModel is the bun-mapped row for a single node's execution record
// within an execution. A node that retries updates this row in place (one
// row per (execution_id, node_id) pair) rather than inserting a new row
// per attempt.
type StepLogModel struct {
	bun.BaseModel `bun:"table:step_logs,alias:sl"`

	ID                  string                 `bun:"id,pk,type:text"`
	ExecutionID         string                 `bun:"execution_id,notnull,type:text"`
	NodeID              string                 `bun:"node_id,notnull"`
	NodeName            string                 `bun:"node_name"`
	Status              string                 `bun:"status,notnull,default:'pending'"`
	Input               JSONColumn[interface{}] `bun:"input,type:jsonb"`
	Output              JSONColumn[interface{}] `bun:"output,type:jsonb"`
	Error               string                 `bun:"error"`
	DurationMs          int64                  `bun:"duration_ms"`
	RetryAttempts       int                    `bun:"retry_attempts"`
	RetriedSuccessfully bool                   `bun:"retried_successfully"`
	CreatedAt           time.Time              `bun:"created_at,notnull,default:current_timestamp"`
}

// BeforeInsert stamps CreatedAt.
func (s *StepLogModel) BeforeInsert(ctx interface{}) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	return nil
}
