package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	storagemodels "github.com/wflowhq/engine/internal/storage/models"
	"github.com/wflowhq/engine/pkg/models"
)

// ExecutionRepository persists Execution entities.
type ExecutionRepository struct {
	db *bun.DB
}

// NewExecutionRepository creates a new ExecutionRepository.
func NewExecutionRepository(db *bun.DB) *ExecutionRepository {
	return &ExecutionRepository{db: db}
}

// Create inserts a new execution row.
func (r *ExecutionRepository) Create(ctx context.Context, ex *models.Execution) error {
	row := storagemodels.ExecutionFromDomain(ex)
	if _, err := r.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create execution: %w", err)
	}
	ex.StartedAt = row.StartedAt
	return nil
}

// UpdateStatus transitions an execution's status and, for terminal states,
// its output/error/finishedAt.
func (r *ExecutionRepository) UpdateStatus(ctx context.Context, id string, status models.ExecutionStatus, output interface{}, errMsg string, finishedAt *time.Time) error {
	q := r.db.NewUpdate().
		Model((*storagemodels.ExecutionModel)(nil)).
		Set("status = ?", string(status)).
		Set("error = ?", errMsg)

	if output != nil {
		col := storagemodels.JSONColumn[interface{}]{Data: output}
		q = q.Set("output = ?", col)
	}
	if finishedAt != nil {
		q = q.Set("finished_at = ?", *finishedAt)
	}

	res, err := q.Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update execution status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrExecutionNotFound
	}
	return nil
}

// FindByID retrieves an execution by ID, without step logs.
func (r *ExecutionRepository) FindByID(ctx context.Context, id string) (*models.Execution, error) {
	row := new(storagemodels.ExecutionModel)
	if err := r.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrExecutionNotFound
		}
		return nil, fmt.Errorf("failed to find execution: %w", err)
	}
	return row.ToDomain(), nil
}

// ExecutionFilter narrows the List query's
// GET /executions?workflowId&status&startedAfter&startedBefore&skip&take.
type ExecutionFilter struct {
	WorkflowID    string
	Status        models.ExecutionStatus
	StartedAfter  *time.Time
	StartedBefore *time.Time
	Skip          int
	Take          int
}

// FindAll lists executions matching filter, newest first.
func (r *ExecutionRepository) FindAll(ctx context.Context, filter ExecutionFilter) ([]*models.Execution, error) {
	var rows []*storagemodels.ExecutionModel
	q := r.db.NewSelect().Model(&rows).OrderExpr("started_at DESC")
	q = applyExecutionFilter(q, filter)
	if filter.Take > 0 {
		q = q.Limit(filter.Take)
	}
	if filter.Skip > 0 {
		q = q.Offset(filter.Skip)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	out := make([]*models.Execution, len(rows))
	for i, row := range rows {
		out[i] = row.ToDomain()
	}
	return out, nil
}

// Count returns the number of executions matching filter (ignoring
// Skip/Take), for pagination totals.
func (r *ExecutionRepository) Count(ctx context.Context, filter ExecutionFilter) (int, error) {
	q := r.db.NewSelect().Model((*storagemodels.ExecutionModel)(nil))
	q = applyExecutionFilter(q, filter)
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count executions: %w", err)
	}
	return count, nil
}

func applyExecutionFilter(q *bun.SelectQuery, filter ExecutionFilter) *bun.SelectQuery {
	if filter.WorkflowID != "" {
		q = q.Where("workflow_id = ?", filter.WorkflowID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if filter.StartedAfter != nil {
		q = q.Where("started_at >= ?", *filter.StartedAfter)
	}
	if filter.StartedBefore != nil {
		q = q.Where("started_at <= ?", *filter.StartedBefore)
	}
	return q
}

// Stats is the aggregate GET /executions/stats returns.
type Stats struct {
	Total          int64
	Pending        int64
	Running        int64
	Success        int64
	Failed         int64
	AvgDurationSec float64
}

// Stats computes per-status counts and the average finished-execution
// duration, for the stats endpoint. Each count runs against a fresh query:
// bun's Where mutates the query in place, so a shared base would
// accumulate contradictory status predicates.
func (r *ExecutionRepository) Stats(ctx context.Context, workflowID string) (*Stats, error) {
	stats := &Stats{}
	var err error
	if stats.Total, err = r.countByStatus(ctx, workflowID, ""); err != nil {
		return nil, err
	}
	if stats.Pending, err = r.countByStatus(ctx, workflowID, string(models.ExecutionStatusPending)); err != nil {
		return nil, err
	}
	if stats.Running, err = r.countByStatus(ctx, workflowID, string(models.ExecutionStatusRunning)); err != nil {
		return nil, err
	}
	if stats.Success, err = r.countByStatus(ctx, workflowID, string(models.ExecutionStatusSuccess)); err != nil {
		return nil, err
	}
	if stats.Failed, err = r.countByStatus(ctx, workflowID, string(models.ExecutionStatusFailed)); err != nil {
		return nil, err
	}

	avgQuery := r.db.NewSelect().
		Model((*storagemodels.ExecutionModel)(nil)).
		ColumnExpr("COALESCE(AVG(EXTRACT(EPOCH FROM (finished_at - started_at))), 0)").
		Where("finished_at IS NOT NULL")
	if workflowID != "" {
		avgQuery = avgQuery.Where("workflow_id = ?", workflowID)
	}
	if err := avgQuery.Scan(ctx, &stats.AvgDurationSec); err != nil {
		return nil, fmt.Errorf("failed to compute average duration: %w", err)
	}

	return stats, nil
}

func (r *ExecutionRepository) countByStatus(ctx context.Context, workflowID, status string) (int64, error) {
	q := r.db.NewSelect().Model((*storagemodels.ExecutionModel)(nil))
	if workflowID != "" {
		q = q.Where("workflow_id = ?", workflowID)
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}
	n, err := q.Count(ctx)
	return int64(n), err
}
