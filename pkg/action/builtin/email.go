package builtin

import (
	"context"
	"fmt"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/wflowhq/engine/pkg/action"
	"github.com/wflowhq/engine/pkg/action/config"
)

// EmailAction sends a sendEmail node via SendGrid. The credential is
// mandatory: a missing or undecryptable credentialId is an action
// failure.
type EmailAction struct {
	*action.BaseAction
	fromAddress string
}

// NewEmailAction builds an EmailAction that sends from fromAddress
// (NOTIFICATION_FROM_EMAIL or a workflow-scoped sender).
func NewEmailAction(fromAddress string) *EmailAction {
	return &EmailAction{
		BaseAction:  action.NewBaseAction("sendEmail"),
		fromAddress: fromAddress,
	}
}

func (a *EmailAction) Execute(ctx context.Context, services action.Services, cfg map[string]interface{}, input interface{}) action.Result {
	c, err := config.ParseConfig[config.EmailConfig](cfg)
	if err != nil {
		return action.Result{Error: err.Error()}
	}
	if err := c.Validate(); err != nil {
		return action.Result{Error: err.Error()}
	}

	cred, ok := services.GetCredential(ctx, c.CredentialID)
	if !ok {
		return action.Result{Error: "Failed to decrypt data"}
	}
	apiKey, _ := cred["apiKey"].(string)
	if apiKey == "" {
		return action.Result{Error: "email credential missing apiKey"}
	}

	from := mail.NewEmail("", a.fromAddress)
	to := mail.NewEmail("", c.To)
	message := mail.NewSingleEmail(from, c.Subject, to, c.Body, "")

	client := sendgrid.NewSendClient(apiKey)
	resp, err := client.SendWithContext(ctx, message)
	if err != nil {
		return action.Result{Error: fmt.Sprintf("failed to send email: %v", err)}
	}
	if resp.StatusCode >= 400 {
		return action.Result{Error: fmt.Sprintf("sendgrid returned %d: %s", resp.StatusCode, resp.Body)}
	}

	return action.Result{
		Success: true,
		Output: map[string]interface{}{
			"status": resp.StatusCode,
			"sentAt": time.Now().UTC().Format(time.RFC3339),
		},
	}
}

func (a *EmailAction) Validate(cfg map[string]interface{}) error {
	c, err := config.ParseConfig[config.EmailConfig](cfg)
	if err != nil {
		return err
	}
	return c.Validate()
}
