package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wflowhq/engine/internal/infrastructure/logger"
	"github.com/wflowhq/engine/internal/orchestrator"
	"github.com/wflowhq/engine/internal/storage"
	"github.com/wflowhq/engine/pkg/models"
)

// ExecutionHandlers implements the /api/executions surface.
type ExecutionHandlers struct {
	executions   *storage.ExecutionRepository
	stepLogs     *storage.StepLogRepository
	orchestrator *orchestrator.Orchestrator
	log          *logger.Logger
}

// NewExecutionHandlers creates ExecutionHandlers.
func NewExecutionHandlers(executions *storage.ExecutionRepository, stepLogs *storage.StepLogRepository, orch *orchestrator.Orchestrator) *ExecutionHandlers {
	return &ExecutionHandlers{
		executions:   executions,
		stepLogs:     stepLogs,
		orchestrator: orch,
		log:          logger.Default(),
	}
}

// HandleList implements GET /executions with the
// workflowId/status/startedAfter/startedBefore/skip/take filters.
func (h *ExecutionHandlers) HandleList(c *gin.Context) {
	filter := storage.ExecutionFilter{
		WorkflowID: c.Query("workflowId"),
		Status:     models.ExecutionStatus(c.Query("status")),
	}
	if v := c.Query("startedAfter"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid startedAfter timestamp")
			return
		}
		filter.StartedAfter = &t
	}
	if v := c.Query("startedBefore"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid startedBefore timestamp")
			return
		}
		filter.StartedBefore = &t
	}
	filter.Skip, _ = strconv.Atoi(c.DefaultQuery("skip", "0"))
	filter.Take, _ = strconv.Atoi(c.DefaultQuery("take", "50"))

	executions, err := h.executions.FindAll(c.Request.Context(), filter)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	total, err := h.executions.Count(c.Request.Context(), filter)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"executions": executions, "total": total})
}

// HandleGet implements GET /executions/:id, step logs included.
func (h *ExecutionHandlers) HandleGet(c *gin.Context) {
	execution, err := h.executions.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondDomainError(c, err)
		return
	}

	logs, err := h.stepLogs.FindByExecutionID(c.Request.Context(), execution.ID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	execution.StepLogs = logs

	c.JSON(http.StatusOK, execution)
}

// HandleReplay implements POST /executions/:id/replay: a fresh execution
// reusing the original's input.
func (h *ExecutionHandlers) HandleReplay(c *gin.Context) {
	replay, err := h.orchestrator.Replay(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, replay)
}

// HandleCancel implements POST /executions/:id/cancel. Only PENDING and
// RUNNING executions are cancellable; anything else is a 400.
func (h *ExecutionHandlers) HandleCancel(c *gin.Context) {
	err := h.orchestrator.Cancel(c.Request.Context(), c.Param("id"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": "execution cancelled"})
	case errors.Is(err, orchestrator.ErrNotCancellable):
		respondError(c, http.StatusBadRequest, err.Error())
	default:
		respondDomainError(c, err)
	}
}

// HandleStats implements GET /executions/stats.
func (h *ExecutionHandlers) HandleStats(c *gin.Context) {
	stats, err := h.executions.Stats(c.Request.Context(), c.Query("workflowId"))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total":       stats.Total,
		"pending":     stats.Pending,
		"running":     stats.Running,
		"success":     stats.Success,
		"failed":      stats.Failed,
		"avgDuration": stats.AvgDurationSec,
	})
}
