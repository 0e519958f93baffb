package ingress

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wflowhq/engine/internal/idgen"
	"github.com/wflowhq/engine/internal/infrastructure/logger"
	"github.com/wflowhq/engine/internal/queue"
	"github.com/wflowhq/engine/internal/storage"
	"github.com/wflowhq/engine/pkg/models"
)

// redactedHeaders names the request headers stripped from the
// triggerData recorded for a webhook firing.
var redactedHeaders = map[string]bool{
	"authorization": true,
	"cookie":        true,
	"x-api-key":     true,
	"x-auth-token":  true,
}

const redactedValue = "[REDACTED]"

// ExecuteJob is the jobName the orchestrator consumes for ingress-created
// executions.
const ExecuteJob = "execute"

// WebhookHandler implements POST /webhooks/:token.
type WebhookHandler struct {
	triggers   *storage.TriggerRepository
	workflows  *storage.WorkflowRepository
	executions *storage.ExecutionRepository
	queue      *queue.Queue
	log        *logger.Logger
}

// NewWebhookHandler creates a WebhookHandler wired to the repositories and
// queue it needs to validate a trigger and enqueue an execution.
func NewWebhookHandler(triggers *storage.TriggerRepository, workflows *storage.WorkflowRepository, executions *storage.ExecutionRepository, q *queue.Queue) *WebhookHandler {
	return &WebhookHandler{triggers: triggers, workflows: workflows, executions: executions, queue: q, log: logger.Default()}
}

// Handle implements the webhook ingress flow: trigger lookup, active
// check, signature verification, then execution creation and enqueue.
func (h *WebhookHandler) Handle(c *gin.Context) {
	token := c.Param("token")

	trigger, err := h.triggers.FindByToken(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "webhook not found"})
		return
	}

	workflow, err := h.workflows.FindByID(c.Request.Context(), trigger.WorkflowID)
	if err != nil || workflow.Status != models.WorkflowStatusActive {
		c.JSON(http.StatusForbidden, gin.H{"error": "workflow is not active"})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	if secret, _ := trigger.Config["secret"].(string); secret != "" {
		signature := c.GetHeader("x-webhook-signature")
		if signature == "" {
			signature = c.GetHeader("x-hub-signature-256")
		}
		if !VerifySignature(body, secret, signature) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
			return
		}
	}

	triggerData := buildTriggerData(c, body)

	execution := &models.Execution{
		ID:          idgen.New(),
		WorkflowID:  workflow.ID,
		Status:      models.ExecutionStatusPending,
		Input:       triggerData,
		TriggeredBy: "webhook:" + trigger.ID,
	}
	if err := h.executions.Create(c.Request.Context(), execution); err != nil {
		h.log.Error("failed to create execution for webhook", "trigger_id", trigger.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start execution"})
		return
	}

	payload := map[string]interface{}{
		"executionId": execution.ID,
		"workflowId":  workflow.ID,
	}
	if _, err := h.queue.Enqueue(c.Request.Context(), ExecuteJob, payload, queue.EnqueueOptions{JobID: execution.ID}); err != nil {
		h.log.Error("failed to enqueue webhook execution", "execution_id", execution.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start execution"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"execution_id": execution.ID, "message": "workflow execution started"})
}

// VerifySignature computes "sha256=" + HMAC-SHA256(body, secret) and
// compares it against the received signature in constant time.
func VerifySignature(body []byte, secret, received string) bool {
	if received == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(received)) == 1
}

func buildTriggerData(c *gin.Context, body []byte) map[string]interface{} {
	headers := make(map[string]string, len(c.Request.Header))
	for key, values := range c.Request.Header {
		if len(values) == 0 {
			continue
		}
		if redactedHeaders[strings.ToLower(key)] {
			headers[key] = redactedValue
			continue
		}
		headers[key] = values[0]
	}

	query := make(map[string]string, len(c.Request.URL.Query()))
	for key, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			query[key] = values[0]
		}
	}

	return map[string]interface{}{
		"body":      parseBody(body, c.GetHeader("Content-Type")),
		"headers":   headers,
		"query":     query,
		"method":    c.Request.Method,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
}

func parseBody(body []byte, contentType string) interface{} {
	if len(body) == 0 {
		return nil
	}
	if strings.Contains(contentType, "application/json") {
		var parsed interface{}
		if err := json.Unmarshal(body, &parsed); err == nil {
			return parsed
		}
	}
	return string(body)
}
