package models

import "time"

// Trigger is a stored entry point that starts a workflow execution: a
// webhook endpoint, a cron schedule, or an inbound email address.
type Trigger struct {
	ID          string                 `json:"id"`
	WorkflowID  string                 `json:"workflow_id"`
	Name        string                 `json:"name,omitempty"`
	Type        TriggerType            `json:"type"`
	Config      map[string]interface{} `json:"config"`
	Enabled     bool                   `json:"enabled"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	LastRun     *time.Time             `json:"last_run,omitempty"`
	NextRun     *time.Time             `json:"next_run,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// TriggerType is the ingress mechanism that starts an execution.
type TriggerType string

const (
	TriggerTypeWebhook  TriggerType = "WEBHOOK"
	TriggerTypeSchedule TriggerType = "SCHEDULE"
	TriggerTypeEmail    TriggerType = "EMAIL"
)

// WebhookConfig is the Config payload for a WEBHOOK trigger.
type WebhookConfig struct {
	Token  string `json:"token"`  // opaque path segment identifying this trigger
	Secret string `json:"secret"` // HMAC signing secret, never returned by reads
}

// ScheduleConfig is the Config payload for a SCHEDULE trigger.
type ScheduleConfig struct {
	Cron     string `json:"cron"`
	Timezone string `json:"timezone,omitempty"`
}

// EmailConfig is the Config payload for an EMAIL trigger.
type EmailConfig struct {
	Address string `json:"address"` // generated inbound address, e.g. wf-<token>@ingest.example
}

// Validate checks the trigger's identifying fields and, per type, its config.
func (t *Trigger) Validate() error {
	if t.WorkflowID == "" {
		return &ValidationError{Field: "workflow_id", Message: "workflow ID is required"}
	}
	if t.Name == "" {
		return &ValidationError{Field: "name", Message: "trigger name is required"}
	}
	if t.Type == "" {
		return &ValidationError{Field: "type", Message: "trigger type is required"}
	}

	switch t.Type {
	case TriggerTypeWebhook:
		return t.validateWebhook()
	case TriggerTypeSchedule:
		return t.validateSchedule()
	case TriggerTypeEmail:
		return nil
	default:
		return &ValidationError{Field: "type", Message: "invalid trigger type: " + string(t.Type)}
	}
}

func (t *Trigger) validateWebhook() error {
	// Token/secret are assigned by the ingress adapter on creation, not
	// supplied by the caller, so an empty config is valid at this layer.
	return nil
}

func (t *Trigger) validateSchedule() error {
	schedule, ok := t.Config["cron"].(string)
	if !ok || schedule == "" {
		return &ValidationError{Field: "config.cron", Message: "cron schedule is required"}
	}
	return nil
}

// MarkTriggered records a firing: bumps LastRun to now.
func (t *Trigger) MarkTriggered(at time.Time) {
	t.LastRun = &at
	t.UpdatedAt = at
}

// IsWebhook reports whether this is a WEBHOOK trigger.
func (t *Trigger) IsWebhook() bool { return t.Type == TriggerTypeWebhook }

// IsSchedule reports whether this is a SCHEDULE trigger.
func (t *Trigger) IsSchedule() bool { return t.Type == TriggerTypeSchedule }

// IsEmail reports whether this is an EMAIL trigger.
func (t *Trigger) IsEmail() bool { return t.Type == TriggerTypeEmail }
