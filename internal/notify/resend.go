// Package notify sends workflow failure notification emails through the
// Resend HTTP API.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"time"

	"github.com/wflowhq/engine/pkg/models"
)

const resendEndpoint = "https://api.resend.com/emails"

// ResendNotifier sends execution-failure emails via Resend.
type ResendNotifier struct {
	apiKey   string
	from     string
	endpoint string
	client   *http.Client
}

// NewResendNotifier builds a notifier sending from the configured address
// (NOTIFICATION_FROM_EMAIL).
func NewResendNotifier(apiKey, from string) *ResendNotifier {
	return &ResendNotifier{
		apiKey:   apiKey,
		from:     from,
		endpoint: resendEndpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// WithEndpoint overrides the Resend API URL, for tests.
func (n *ResendNotifier) WithEndpoint(endpoint string) *ResendNotifier {
	n.endpoint = endpoint
	return n
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// NotifyFailure emails workflow.NotificationEmail about a failed execution.
func (n *ResendNotifier) NotifyFailure(ctx context.Context, workflow *models.Workflow, execution *models.Execution) error {
	if workflow.NotificationEmail == "" {
		return nil
	}

	body := resendRequest{
		From:    n.from,
		To:      []string{workflow.NotificationEmail},
		Subject: fmt.Sprintf("Workflow %q failed", workflow.Name),
		HTML:    failureHTML(workflow, execution),
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+n.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("resend returned %d: %s", resp.StatusCode, msg)
	}
	return nil
}

func failureHTML(workflow *models.Workflow, execution *models.Execution) string {
	finished := ""
	if execution.FinishedAt != nil {
		finished = execution.FinishedAt.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf(
		"<h2>Workflow execution failed</h2>"+
			"<p><strong>Workflow:</strong> %s</p>"+
			"<p><strong>Execution:</strong> %s</p>"+
			"<p><strong>Error:</strong> %s</p>"+
			"<p><strong>Finished:</strong> %s</p>",
		html.EscapeString(workflow.Name),
		html.EscapeString(execution.ID),
		html.EscapeString(execution.Error),
		html.EscapeString(finished),
	)
}
