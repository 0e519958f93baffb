package models

import (
	"time"

	"github.com/uptrace/bun"
	"github.com/wflowhq/engine/pkg/models"
)

// WorkflowModel is the bun-mapped row for a stored workflow. Definition is
// kept as a single jsonb column rather than normalized node/edge tables,
// because the definition is the unit the graph traverser and step
// executor operate on as a whole.
type WorkflowModel struct {
	bun.BaseModel `bun:"table:workflows,alias:w"`

	ID                string                                   `bun:"id,pk,type:text"`
	OwnerID           string                                   `bun:"owner_id,type:text"`
	Name              string                                   `bun:"name,notnull"`
	Description       string                                   `bun:"description"`
	Status            string                                   `bun:"status,notnull,default:'draft'"`
	Definition        JSONColumn[models.WorkflowDefinition]     `bun:"definition,type:jsonb,notnull"`
	NotificationEmail string                                   `bun:"notification_email"`
	CreatedAt         time.Time                                `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt         time.Time                                `bun:"updated_at,notnull,default:current_timestamp"`
}

// BeforeInsert stamps creation timestamps.
func (w *WorkflowModel) BeforeInsert(ctx interface{}) error {
	now := time.Now().UTC()
	w.CreatedAt = now
	w.UpdatedAt = now
	return nil
}

// BeforeUpdate bumps UpdatedAt on every save.
func (w *WorkflowModel) BeforeUpdate(ctx interface{}) error {
	w.UpdatedAt = time.Now().UTC()
	return nil
}
