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

// StepLogRepository persists StepLog rows. A node that retries writes the
// same logical step record repeatedly; Upsert keeps only the latest
// attempt per (execution_id, node_id) rather than accumulating one row
// per try.
type StepLogRepository struct {
	db *bun.DB
}

// NewStepLogRepository creates a new StepLogRepository.
func NewStepLogRepository(db *bun.DB) *StepLogRepository {
	return &StepLogRepository{db: db}
}

// Upsert inserts a step log, or, if one already exists for this
// (execution_id, node_id), overwrites it in place so the row always
// reflects the node's latest attempt.
func (r *StepLogRepository) Upsert(ctx context.Context, sl *models.StepLog) error {
	row := storagemodels.StepLogFromDomain(sl)

	existing := new(storagemodels.StepLogModel)
	err := r.db.NewSelect().
		Model(existing).
		Column("id").
		Where("execution_id = ?", sl.ExecutionID).
		Where("node_id = ?", sl.NodeID).
		Scan(ctx)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := r.db.NewInsert().Model(row).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert step log: %w", err)
		}
		sl.ID = row.ID
		sl.CreatedAt = row.CreatedAt
		return nil
	case err != nil:
		return fmt.Errorf("failed to look up step log: %w", err)
	}

	row.ID = existing.ID
	_, err = r.db.NewUpdate().
		Model(row).
		Column("node_name", "status", "input", "output", "error", "duration_ms", "retry_attempts", "retried_successfully").
		Where("id = ?", row.ID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update step log: %w", err)
	}
	sl.ID = row.ID
	return nil
}

// FindByExecutionID returns every step log for an execution, in the order
// the nodes were first recorded.
func (r *StepLogRepository) FindByExecutionID(ctx context.Context, executionID string) ([]*models.StepLog, error) {
	var rows []*storagemodels.StepLogModel
	err := r.db.NewSelect().
		Model(&rows).
		Where("execution_id = ?", executionID).
		OrderExpr("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list step logs: %w", err)
	}
	out := make([]*models.StepLog, len(rows))
	for i, row := range rows {
		out[i] = row.ToDomain()
	}
	return out, nil
}

// DeleteByExecutionID removes every step log for an execution, used when
// replaying an execution.
func (r *StepLogRepository) DeleteByExecutionID(ctx context.Context, executionID string) error {
	_, err := r.db.NewDelete().
		Model((*storagemodels.StepLogModel)(nil)).
		Where("execution_id = ?", executionID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete step logs: %w", err)
	}
	return nil
}
