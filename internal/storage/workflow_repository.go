package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	storagemodels "github.com/wflowhq/engine/internal/storage/models"
	"github.com/wflowhq/engine/pkg/models"
)

// WorkflowRepository persists Workflow entities through bun, with the
// definition stored as a single jsonb column.
type WorkflowRepository struct {
	db *bun.DB
}

// NewWorkflowRepository creates a new WorkflowRepository.
func NewWorkflowRepository(db *bun.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

// Create inserts a new workflow row.
func (r *WorkflowRepository) Create(ctx context.Context, wf *models.Workflow) error {
	row := storagemodels.WorkflowFromDomain(wf)
	if _, err := r.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create workflow: %w", err)
	}
	wf.CreatedAt = row.CreatedAt
	wf.UpdatedAt = row.UpdatedAt
	return nil
}

// Update replaces an existing workflow row by ID.
func (r *WorkflowRepository) Update(ctx context.Context, wf *models.Workflow) error {
	row := storagemodels.WorkflowFromDomain(wf)
	res, err := r.db.NewUpdate().
		Model(row).
		Column("name", "description", "status", "definition", "notification_email", "updated_at").
		Where("id = ?", row.ID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update workflow: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrWorkflowNotFound
	}
	wf.UpdatedAt = row.UpdatedAt
	return nil
}

// Delete removes a workflow row by ID. Triggers and executions cascade per
// the foreign keys in migrations/20240101000001 and 20240101000002.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.NewDelete().Model((*storagemodels.WorkflowModel)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrWorkflowNotFound
	}
	return nil
}

// FindByID retrieves a workflow by ID.
func (r *WorkflowRepository) FindByID(ctx context.Context, id string) (*models.Workflow, error) {
	row := new(storagemodels.WorkflowModel)
	err := r.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrWorkflowNotFound
		}
		return nil, fmt.Errorf("failed to find workflow: %w", err)
	}
	return row.ToDomain(), nil
}

// FindAll retrieves every workflow belonging to ownerID (all owners if
// ownerID is empty), newest first, paginated.
func (r *WorkflowRepository) FindAll(ctx context.Context, ownerID string, limit, offset int) ([]*models.Workflow, error) {
	var rows []*storagemodels.WorkflowModel
	q := r.db.NewSelect().Model(&rows).OrderExpr("created_at DESC")
	if ownerID != "" {
		q = q.Where("owner_id = ?", ownerID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	out := make([]*models.Workflow, len(rows))
	for i, row := range rows {
		out[i] = row.ToDomain()
	}
	return out, nil
}

// ActiveScheduleWorkflowIDs returns the ids of every active workflow,
// whatever kinds of trigger it has.
func (r *WorkflowRepository) ActiveScheduleWorkflowIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.NewSelect().
		Model((*storagemodels.WorkflowModel)(nil)).
		Column("id").
		Where("status = ?", string(models.WorkflowStatusActive)).
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list active workflows: %w", err)
	}
	return ids, nil
}
