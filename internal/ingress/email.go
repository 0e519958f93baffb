package ingress

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mailgun/mailgun-go/v4"

	"github.com/wflowhq/engine/internal/idgen"
	"github.com/wflowhq/engine/internal/infrastructure/logger"
	"github.com/wflowhq/engine/internal/queue"
	"github.com/wflowhq/engine/internal/storage"
	"github.com/wflowhq/engine/pkg/models"
)

// InboundEmail is the provider-independent shape every email parser
// reduces its payload to before trigger lookup.
type InboundEmail struct {
	From        string             `json:"from"`
	To          string             `json:"to"`
	Subject     string             `json:"subject"`
	Text        string             `json:"text,omitempty"`
	HTML        string             `json:"html,omitempty"`
	Attachments []EmailAttachment  `json:"attachments,omitempty"`
}

// EmailAttachment is one inbound attachment's metadata. Bodies are not
// stored — only what the provider already inlined in the webhook payload.
type EmailAttachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

// EmailHandler implements POST /webhooks/email: a content-type-driven
// parser for SendGrid inbound-parse (multipart), Mailgun routes (JSON),
// and a generic JSON fallback. Form-encoded bodies are not parsed.
type EmailHandler struct {
	triggers   *storage.TriggerRepository
	workflows  *storage.WorkflowRepository
	executions *storage.ExecutionRepository
	queue      *queue.Queue
	mailgun    mailgun.Mailgun // optional, for webhook signature checks
	log        *logger.Logger
}

// NewEmailHandler creates an EmailHandler. mg may be nil when no Mailgun
// signing key is configured — signature verification is then skipped.
func NewEmailHandler(triggers *storage.TriggerRepository, workflows *storage.WorkflowRepository, executions *storage.ExecutionRepository, q *queue.Queue, mg mailgun.Mailgun) *EmailHandler {
	return &EmailHandler{
		triggers:   triggers,
		workflows:  workflows,
		executions: executions,
		queue:      q,
		mailgun:    mg,
		log:        logger.Default(),
	}
}

// Handle parses the inbound email, locates the trigger by recipient
// address, and starts an execution. Unknown addresses and inactive
// workflows answer 200 {success:false} so the provider stops retrying.
func (h *EmailHandler) Handle(c *gin.Context) {
	email, err := h.parse(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	if email.To == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "missing recipient address"})
		return
	}

	trigger, err := h.triggers.FindByEmailAddress(c.Request.Context(), email.To)
	if err != nil {
		h.log.Warn("inbound email for unknown address", "to", email.To)
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}

	workflow, err := h.workflows.FindByID(c.Request.Context(), trigger.WorkflowID)
	if err != nil || !workflow.IsActive() {
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}

	triggerData := map[string]interface{}{
		"from":      email.From,
		"to":        email.To,
		"subject":   email.Subject,
		"text":      email.Text,
		"html":      email.HTML,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if len(email.Attachments) > 0 {
		attachments := make([]interface{}, len(email.Attachments))
		for i, a := range email.Attachments {
			attachments[i] = map[string]interface{}{
				"filename":    a.Filename,
				"contentType": a.ContentType,
				"size":        a.Size,
			}
		}
		triggerData["attachments"] = attachments
	}

	execution := &models.Execution{
		ID:          idgen.New(),
		WorkflowID:  workflow.ID,
		Status:      models.ExecutionStatusPending,
		Input:       triggerData,
		TriggeredBy: "email:" + trigger.ID,
	}
	if err := h.executions.Create(c.Request.Context(), execution); err != nil {
		h.log.Error("failed to create execution for inbound email", "trigger_id", trigger.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to start execution"})
		return
	}

	payload := map[string]interface{}{
		"executionId": execution.ID,
		"workflowId":  workflow.ID,
	}
	if _, err := h.queue.Enqueue(c.Request.Context(), ExecuteJob, payload, queue.EnqueueOptions{JobID: execution.ID}); err != nil {
		h.log.Error("failed to enqueue email execution", "execution_id", execution.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to start execution"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "execution_id": execution.ID})
}

// parse picks a provider parser by Content-Type: multipart form data is
// SendGrid's inbound-parse format, JSON is Mailgun's route format or the
// generic fallback (distinguished by Mailgun's field names).
func (h *EmailHandler) parse(c *gin.Context) (*InboundEmail, error) {
	mediaType, _, err := mime.ParseMediaType(c.GetHeader("Content-Type"))
	if err != nil {
		mediaType = ""
	}

	switch {
	case strings.HasPrefix(mediaType, "multipart/"):
		return parseSendgrid(c)
	default:
		return h.parseJSON(c)
	}
}

// sendgridEnvelope is the "envelope" form field SendGrid's inbound parse
// posts alongside the display headers: the SMTP-level sender/recipients,
// which are authoritative when the To: header is a display name.
type sendgridEnvelope struct {
	To   []string `json:"to"`
	From string   `json:"from"`
}

func parseSendgrid(c *gin.Context) (*InboundEmail, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, err
	}

	field := func(name string) string {
		if vs := form.Value[name]; len(vs) > 0 {
			return vs[0]
		}
		return ""
	}

	email := &InboundEmail{
		From:    field("from"),
		To:      field("to"),
		Subject: field("subject"),
		Text:    field("text"),
		HTML:    field("html"),
	}

	// The envelope's SMTP addresses win over display-form headers.
	if raw := field("envelope"); raw != "" {
		var env sendgridEnvelope
		if err := json.Unmarshal([]byte(raw), &env); err == nil {
			if len(env.To) > 0 {
				email.To = env.To[0]
			}
			if env.From != "" {
				email.From = env.From
			}
		}
	}

	email.From = extractAddress(email.From)
	email.To = extractAddress(email.To)

	for name, files := range form.File {
		if !strings.HasPrefix(name, "attachment") {
			continue
		}
		for _, f := range files {
			email.Attachments = append(email.Attachments, EmailAttachment{
				Filename:    f.Filename,
				ContentType: f.Header.Get("Content-Type"),
				Size:        f.Size,
			})
		}
	}

	return email, nil
}

// mailgunPayload covers Mailgun's route-forward JSON plus the generic
// fallback's field names; whichever set is populated wins.
type mailgunPayload struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	BodyPlain string `json:"body-plain"`
	BodyHTML  string `json:"body-html"`

	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html"`

	Signature struct {
		Timestamp string `json:"timestamp"`
		Token     string `json:"token"`
		Signature string `json:"signature"`
	} `json:"signature"`
}

func (h *EmailHandler) parseJSON(c *gin.Context) (*InboundEmail, error) {
	var payload mailgunPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		return nil, err
	}

	if payload.Signature.Signature != "" && h.mailgun != nil {
		verified, err := h.mailgun.VerifyWebhookSignature(mailgun.Signature{
			TimeStamp: payload.Signature.Timestamp,
			Token:     payload.Signature.Token,
			Signature: payload.Signature.Signature,
		})
		if err != nil || !verified {
			return nil, models.ErrSignatureInvalid
		}
	}

	email := &InboundEmail{
		From:    payload.Sender,
		To:      payload.Recipient,
		Subject: payload.Subject,
		Text:    payload.BodyPlain,
		HTML:    payload.BodyHTML,
	}
	if email.From == "" {
		email.From = payload.From
	}
	if email.To == "" {
		email.To = payload.To
	}
	if email.Text == "" {
		email.Text = payload.Text
	}
	if email.HTML == "" {
		email.HTML = payload.HTML
	}

	email.From = extractAddress(email.From)
	email.To = extractAddress(email.To)
	return email, nil
}

// extractAddress reduces `Display Name <user@host>` to `user@host`,
// lower-cased, so trigger lookup matches the stored generated address.
func extractAddress(raw string) string {
	raw = strings.TrimSpace(raw)
	if open := strings.LastIndex(raw, "<"); open >= 0 {
		if close := strings.LastIndex(raw, ">"); close > open {
			raw = raw[open+1 : close]
		}
	}
	return strings.ToLower(strings.TrimSpace(raw))
}
