package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wflowhq/engine/internal/idgen"
	"github.com/wflowhq/engine/internal/infrastructure/logger"
	"github.com/wflowhq/engine/internal/ingress"
	"github.com/wflowhq/engine/internal/scheduler"
	"github.com/wflowhq/engine/internal/storage"
	"github.com/wflowhq/engine/pkg/models"
)

// TriggerHandlers implements the /api/triggers surface.
type TriggerHandlers struct {
	triggers      *storage.TriggerRepository
	workflows     *storage.WorkflowRepository
	scheduler     *scheduler.Scheduler
	apiBaseURL    string
	inboundDomain string
	log           *logger.Logger
}

// NewTriggerHandlers creates TriggerHandlers. apiBaseURL builds webhook
// URLs; inboundDomain builds email trigger addresses.
func NewTriggerHandlers(triggers *storage.TriggerRepository, workflows *storage.WorkflowRepository, sched *scheduler.Scheduler, apiBaseURL, inboundDomain string) *TriggerHandlers {
	return &TriggerHandlers{
		triggers:      triggers,
		workflows:     workflows,
		scheduler:     sched,
		apiBaseURL:    apiBaseURL,
		inboundDomain: inboundDomain,
		log:           logger.Default(),
	}
}

type createTriggerRequest struct {
	WorkflowID string                 `json:"workflow_id" binding:"required"`
	Name       string                 `json:"name" binding:"required"`
	Type       models.TriggerType     `json:"type" binding:"required"`
	Config     map[string]interface{} `json:"config"`
}

// HandleCreate implements POST /triggers: one trigger per workflow, 409 on
// a second. Webhook triggers get a generated token, email triggers a
// generated inbound address; schedule triggers are cron-validated and, if
// the workflow is active, registered immediately.
func (h *TriggerHandlers) HandleCreate(c *gin.Context) {
	var req createTriggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	workflow, err := h.workflows.FindByID(c.Request.Context(), req.WorkflowID)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	if _, err := h.triggers.FindByWorkflowID(c.Request.Context(), req.WorkflowID); err == nil {
		respondError(c, http.StatusConflict, "workflow already has a trigger")
		return
	}

	trigger := &models.Trigger{
		ID:         idgen.New(),
		WorkflowID: req.WorkflowID,
		Name:       req.Name,
		Type:       req.Type,
		Config:     req.Config,
		Enabled:    true,
	}
	if trigger.Config == nil {
		trigger.Config = map[string]interface{}{}
	}
	if err := trigger.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	var webhookURL string
	switch trigger.Type {
	case models.TriggerTypeWebhook:
		token, err := ingress.NewWebhookToken()
		if err != nil {
			respondDomainError(c, err)
			return
		}
		trigger.Config["token"] = token
		webhookURL = h.apiBaseURL + "/webhooks/" + token

	case models.TriggerTypeEmail:
		address, err := ingress.NewEmailAddress(h.inboundDomain)
		if err != nil {
			respondDomainError(c, err)
			return
		}
		trigger.Config["address"] = address

	case models.TriggerTypeSchedule:
		pattern, _ := trigger.Config["cron"].(string)
		if err := scheduler.ValidateCron(pattern); err != nil {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}
		tz, _ := trigger.Config["timezone"].(string)
		if next, err := scheduler.NextFireTime(pattern, tz, time.Now()); err == nil {
			trigger.NextRun = &next
		}
	}

	if err := h.triggers.Create(c.Request.Context(), trigger); err != nil {
		respondDomainError(c, err)
		return
	}

	if trigger.IsSchedule() && workflow.IsActive() {
		if err := h.scheduler.Register(c.Request.Context(), trigger); err != nil {
			h.log.Error("failed to register schedule trigger", "trigger_id", trigger.ID, "error", err)
		}
	}

	resp := gin.H{"trigger": trigger}
	if webhookURL != "" {
		resp["webhook_url"] = webhookURL
	}
	if address, ok := trigger.Config["address"].(string); ok && trigger.IsEmail() {
		resp["email_address"] = address
	}
	c.JSON(http.StatusCreated, resp)
}

// HandleDelete implements DELETE /triggers/:id, tearing down any live
// schedule registration with the row.
func (h *TriggerHandlers) HandleDelete(c *gin.Context) {
	trigger, err := h.triggers.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondDomainError(c, err)
		return
	}

	if trigger.IsSchedule() {
		h.scheduler.Remove(trigger.ID)
	}
	if err := h.triggers.Delete(c.Request.Context(), trigger.ID); err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "trigger deleted"})
}

// HandleGet implements GET /triggers/:id, with the next scheduled fire for
// schedule triggers.
func (h *TriggerHandlers) HandleGet(c *gin.Context) {
	trigger, err := h.triggers.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	if trigger.IsSchedule() {
		if next, ok := h.scheduler.NextFire(trigger.ID); ok {
			trigger.NextRun = &next
		}
	}
	c.JSON(http.StatusOK, trigger)
}
