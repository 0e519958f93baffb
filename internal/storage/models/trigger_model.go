package models

import (
	"time"

	"github.com/uptrace/bun"
)

// TriggerModel is the bun-mapped row for a workflow trigger
// (WEBHOOK/SCHEDULE/EMAIL).
type TriggerModel struct {
	bun.BaseModel `bun:"table:triggers,alias:t"`

	ID         string                 `bun:"id,pk,type:text"`
	WorkflowID string                 `bun:"workflow_id,notnull,type:text"`
	Name       string                 `bun:"name"`
	Type       string                 `bun:"type,notnull"`
	Config     JSONBMap               `bun:"config,type:jsonb,notnull,default:'{}'"`
	Enabled    bool                   `bun:"enabled,notnull,default:true"`
	CreatedAt  time.Time              `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt  time.Time              `bun:"updated_at,notnull,default:current_timestamp"`
	LastRun    *time.Time             `bun:"last_run"`
	NextRun    *time.Time             `bun:"next_run"`
	Metadata   JSONBMap               `bun:"metadata,type:jsonb,default:'{}'"`
}

// BeforeInsert stamps timestamps and normalizes nil jsonb maps.
func (t *TriggerModel) BeforeInsert(ctx interface{}) error {
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Config == nil {
		t.Config = make(JSONBMap)
	}
	if t.Metadata == nil {
		t.Metadata = make(JSONBMap)
	}
	return nil
}

// BeforeUpdate bumps UpdatedAt on every save.
func (t *TriggerModel) BeforeUpdate(ctx interface{}) error {
	t.UpdatedAt = time.Now().UTC()
	return nil
}
