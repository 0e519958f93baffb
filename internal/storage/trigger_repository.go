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

// TriggerRepository persists Trigger entities.
type TriggerRepository struct {
	db *bun.DB
}

// NewTriggerRepository creates a new TriggerRepository.
func NewTriggerRepository(db *bun.DB) *TriggerRepository {
	return &TriggerRepository{db: db}
}

// Create inserts a new trigger row. At most one trigger may exist per
// workflow; callers check for an existing one first to surface a 409
// Conflict rather than relying on a unique constraint violation.
func (r *TriggerRepository) Create(ctx context.Context, t *models.Trigger) error {
	row := storagemodels.TriggerFromDomain(t)
	if _, err := r.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create trigger: %w", err)
	}
	t.CreatedAt = row.CreatedAt
	t.UpdatedAt = row.UpdatedAt
	return nil
}

// Update replaces an existing trigger row by ID.
func (r *TriggerRepository) Update(ctx context.Context, t *models.Trigger) error {
	row := storagemodels.TriggerFromDomain(t)
	res, err := r.db.NewUpdate().
		Model(row).
		Column("name", "type", "config", "enabled", "updated_at", "last_run", "next_run", "metadata").
		Where("id = ?", row.ID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update trigger: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrTriggerNotFound
	}
	t.UpdatedAt = row.UpdatedAt
	return nil
}

// Delete removes a trigger row by ID.
func (r *TriggerRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.NewDelete().Model((*storagemodels.TriggerModel)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete trigger: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrTriggerNotFound
	}
	return nil
}

// FindByID retrieves a trigger by ID.
func (r *TriggerRepository) FindByID(ctx context.Context, id string) (*models.Trigger, error) {
	row := new(storagemodels.TriggerModel)
	if err := r.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrTriggerNotFound
		}
		return nil, fmt.Errorf("failed to find trigger: %w", err)
	}
	return row.ToDomain(), nil
}

// FindByWorkflowID retrieves the trigger owned by a workflow, if any (at
// most one).
func (r *TriggerRepository) FindByWorkflowID(ctx context.Context, workflowID string) (*models.Trigger, error) {
	row := new(storagemodels.TriggerModel)
	err := r.db.NewSelect().Model(row).Where("workflow_id = ?", workflowID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrTriggerNotFound
		}
		return nil, fmt.Errorf("failed to find trigger: %w", err)
	}
	return row.ToDomain(), nil
}

// FindAll retrieves every trigger, optionally filtered by type, paginated.
func (r *TriggerRepository) FindAll(ctx context.Context, triggerType string, limit, offset int) ([]*models.Trigger, error) {
	var rows []*storagemodels.TriggerModel
	q := r.db.NewSelect().Model(&rows).OrderExpr("created_at DESC")
	if triggerType != "" {
		q = q.Where("type = ?", triggerType)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list triggers: %w", err)
	}
	out := make([]*models.Trigger, len(rows))
	for i, row := range rows {
		out[i] = row.ToDomain()
	}
	return out, nil
}

// FindByToken looks up a WEBHOOK trigger by its config.token field, for
// webhook ingress lookup.
func (r *TriggerRepository) FindByToken(ctx context.Context, token string) (*models.Trigger, error) {
	row := new(storagemodels.TriggerModel)
	err := r.db.NewSelect().
		Model(row).
		Where("type = ?", string(models.TriggerTypeWebhook)).
		Where("config->>'token' = ?", token).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrTriggerNotFound
		}
		return nil, fmt.Errorf("failed to find trigger by token: %w", err)
	}
	return row.ToDomain(), nil
}

// FindByEmailAddress looks up an EMAIL trigger by its config.address field.
func (r *TriggerRepository) FindByEmailAddress(ctx context.Context, address string) (*models.Trigger, error) {
	row := new(storagemodels.TriggerModel)
	err := r.db.NewSelect().
		Model(row).
		Where("type = ?", string(models.TriggerTypeEmail)).
		Where("config->>'address' = ?", address).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrTriggerNotFound
		}
		return nil, fmt.Errorf("failed to find trigger by email address: %w", err)
	}
	return row.ToDomain(), nil
}

// FindActiveSchedules returns every enabled SCHEDULE trigger whose owning
// workflow is active — the set the scheduler registers at startup
//.
func (r *TriggerRepository) FindActiveSchedules(ctx context.Context) ([]*models.Trigger, error) {
	var rows []*storagemodels.TriggerModel
	err := r.db.NewSelect().
		Model(&rows).
		Join("JOIN workflows AS w ON w.id = t.workflow_id").
		Where("t.type = ?", string(models.TriggerTypeSchedule)).
		Where("t.enabled = true").
		Where("w.status = ?", string(models.WorkflowStatusActive)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active schedule triggers: %w", err)
	}
	out := make([]*models.Trigger, len(rows))
	for i, row := range rows {
		out[i] = row.ToDomain()
	}
	return out, nil
}

// MarkTriggered bumps last_run to now for id.
func (r *TriggerRepository) MarkTriggered(ctx context.Context, id string) error {
	_, err := r.db.NewUpdate().
		Model((*storagemodels.TriggerModel)(nil)).
		Set("last_run = now()").
		Set("updated_at = now()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to mark trigger triggered: %w", err)
	}
	return nil
}
