package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wflowhq/engine/internal/idgen"
	"github.com/wflowhq/engine/internal/infrastructure/logger"
	"github.com/wflowhq/engine/internal/ingress"
	"github.com/wflowhq/engine/internal/queue"
	"github.com/wflowhq/engine/internal/scheduler"
	"github.com/wflowhq/engine/internal/storage"
	"github.com/wflowhq/engine/pkg/models"
)

// WorkflowHandlers implements the /api/workflows surface.
type WorkflowHandlers struct {
	workflows  *storage.WorkflowRepository
	triggers   *storage.TriggerRepository
	executions *storage.ExecutionRepository
	scheduler  *scheduler.Scheduler
	queue      *queue.Queue
	log        *logger.Logger
}

// NewWorkflowHandlers creates WorkflowHandlers.
func NewWorkflowHandlers(workflows *storage.WorkflowRepository, triggers *storage.TriggerRepository, executions *storage.ExecutionRepository, sched *scheduler.Scheduler, q *queue.Queue) *WorkflowHandlers {
	return &WorkflowHandlers{
		workflows:  workflows,
		triggers:   triggers,
		executions: executions,
		scheduler:  sched,
		queue:      q,
		log:        logger.Default(),
	}
}

type workflowRequest struct {
	Name              string                    `json:"name" binding:"required"`
	Description       string                    `json:"description"`
	IsActive          bool                      `json:"is_active"`
	Definition        models.WorkflowDefinition `json:"definition" binding:"required"`
	NotificationEmail string                    `json:"notification_email"`
}

// HandleList implements GET /workflows.
func (h *WorkflowHandlers) HandleList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("take", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))

	workflows, err := h.workflows.FindAll(c.Request.Context(), c.Query("ownerId"), limit, offset)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"workflows": workflows, "count": len(workflows)})
}

// HandleGet implements GET /workflows/:id.
func (h *WorkflowHandlers) HandleGet(c *gin.Context) {
	workflow, err := h.workflows.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, workflow)
}

// HandleCreate implements POST /workflows.
func (h *WorkflowHandlers) HandleCreate(c *gin.Context) {
	var req workflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	status := models.WorkflowStatusInactive
	if req.IsActive {
		status = models.WorkflowStatusActive
	}

	workflow := &models.Workflow{
		ID:                idgen.New(),
		Name:              req.Name,
		Description:       req.Description,
		Status:            status,
		Definition:        req.Definition,
		NotificationEmail: req.NotificationEmail,
	}
	if err := workflow.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.workflows.Create(c.Request.Context(), workflow); err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, workflow)
}

// HandleUpdate implements PUT /workflows/:id.
func (h *WorkflowHandlers) HandleUpdate(c *gin.Context) {
	existing, err := h.workflows.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondDomainError(c, err)
		return
	}

	var req workflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	existing.Name = req.Name
	existing.Description = req.Description
	existing.Definition = req.Definition
	existing.NotificationEmail = req.NotificationEmail
	if err := existing.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.workflows.Update(c.Request.Context(), existing); err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, existing)
}

// HandleDelete implements DELETE /workflows/:id. The workflow's trigger is
// removed with it: the schedule registration is torn down and the trigger
// row cascades away with the workflow.
func (h *WorkflowHandlers) HandleDelete(c *gin.Context) {
	id := c.Param("id")

	if trigger, err := h.triggers.FindByWorkflowID(c.Request.Context(), id); err == nil && trigger.IsSchedule() {
		h.scheduler.Remove(trigger.ID)
	}

	if err := h.workflows.Delete(c.Request.Context(), id); err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "workflow deleted"})
}

// HandleActivate implements POST /workflows/:id/activate: flips the status
// and resumes the workflow's SCHEDULE trigger registration if it has one.
func (h *WorkflowHandlers) HandleActivate(c *gin.Context) {
	h.toggle(c, true)
}

// HandleDeactivate implements POST /workflows/:id/deactivate.
func (h *WorkflowHandlers) HandleDeactivate(c *gin.Context) {
	h.toggle(c, false)
}

func (h *WorkflowHandlers) toggle(c *gin.Context, active bool) {
	workflow, err := h.workflows.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondDomainError(c, err)
		return
	}

	if active {
		workflow.Status = models.WorkflowStatusActive
	} else {
		workflow.Status = models.WorkflowStatusInactive
	}
	if err := h.workflows.Update(c.Request.Context(), workflow); err != nil {
		respondDomainError(c, err)
		return
	}

	if trigger, err := h.triggers.FindByWorkflowID(c.Request.Context(), workflow.ID); err == nil && trigger.IsSchedule() {
		if active {
			if err := h.scheduler.Resume(c.Request.Context(), trigger); err != nil {
				h.log.Error("failed to resume schedule trigger", "trigger_id", trigger.ID, "error", err)
			}
		} else {
			h.scheduler.Pause(trigger.ID)
		}
	}

	c.JSON(http.StatusOK, workflow)
}

// HandleTest implements POST /workflows/:id/test: materialises a PENDING
// execution with a caller-supplied (or empty) input and enqueues it, the
// same path an ingress firing takes.
func (h *WorkflowHandlers) HandleTest(c *gin.Context) {
	workflow, err := h.workflows.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondDomainError(c, err)
		return
	}

	var input map[string]interface{}
	if err := c.ShouldBindJSON(&input); err != nil || input == nil {
		input = map[string]interface{}{}
	}
	input["isTest"] = true
	input["timestamp"] = time.Now().UTC().Format(time.RFC3339)

	execution := &models.Execution{
		ID:          idgen.New(),
		WorkflowID:  workflow.ID,
		Status:      models.ExecutionStatusPending,
		Input:       input,
		TriggeredBy: "test",
	}
	if err := h.executions.Create(c.Request.Context(), execution); err != nil {
		respondDomainError(c, err)
		return
	}

	payload := map[string]interface{}{
		"executionId": execution.ID,
		"workflowId":  workflow.ID,
	}
	if _, err := h.queue.Enqueue(c.Request.Context(), ingress.ExecuteJob, payload, queue.EnqueueOptions{JobID: execution.ID}); err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"execution_id": execution.ID})
}
