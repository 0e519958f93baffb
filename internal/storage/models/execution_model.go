package models

import (
	"time"

	"github.com/uptrace/bun"
)

// ExecutionModel is the bun-mapped row for a workflow execution.
type ExecutionModel struct {
	bun.BaseModel `bun:"table:executions,alias:ex"`

	ID          string                 `bun:"id,pk,type:text"`
	WorkflowID  string                 `bun:"workflow_id,notnull,type:text"`
	Status      string                 `bun:"status,notnull,default:'PENDING'"`
	Input       JSONBMap               `bun:"input,type:jsonb,default:'{}'"`
	Output      JSONColumn[interface{}] `bun:"output,type:jsonb"`
	Error       string                 `bun:"error"`
	TriggeredBy string                 `bun:"triggered_by"`
	StartedAt   time.Time              `bun:"started_at,notnull,default:current_timestamp"`
	FinishedAt  *time.Time             `bun:"finished_at"`
}

// BeforeInsert stamps StartedAt and normalizes nil jsonb maps.
func (e *ExecutionModel) BeforeInsert(ctx interface{}) error {
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now().UTC()
	}
	if e.Input == nil {
		e.Input = make(JSONBMap)
	}
	return nil
}
