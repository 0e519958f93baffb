package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wflowhq/engine/pkg/models"
)

func testWorkflowAndExecution() (*models.Workflow, *models.Execution) {
	finished := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	wf := &models.Workflow{
		ID:                "wf-1",
		Name:              "Nightly <sync>",
		NotificationEmail: "ops@example.com",
	}
	ex := &models.Execution{
		ID:         "ex-1",
		WorkflowID: "wf-1",
		Status:     models.ExecutionStatusFailed,
		Error:      "telegram: chat not found",
		FinishedAt: &finished,
	}
	return wf, ex
}

func TestNotifyFailure_SendsResendRequest(t *testing.T) {
	var got resendRequest
	var auth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	wf, ex := testWorkflowAndExecution()
	n := NewResendNotifier("rk-test", "noreply@example.com").WithEndpoint(server.URL)
	require.NoError(t, n.NotifyFailure(context.Background(), wf, ex))

	assert.Equal(t, "Bearer rk-test", auth)
	assert.Equal(t, "noreply@example.com", got.From)
	assert.Equal(t, []string{"ops@example.com"}, got.To)
	assert.Contains(t, got.Subject, "Nightly <sync>")
	assert.Contains(t, got.HTML, "telegram: chat not found")
	// HTML-escape the workflow name, it is user-controlled.
	assert.Contains(t, got.HTML, "Nightly &lt;sync&gt;")
}

func TestNotifyFailure_ProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"invalid from"}`))
	}))
	defer server.Close()

	wf, ex := testWorkflowAndExecution()
	n := NewResendNotifier("rk-test", "bad").WithEndpoint(server.URL)
	err := n.NotifyFailure(context.Background(), wf, ex)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
}

func TestNotifyFailure_NoRecipientIsNoop(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	wf, ex := testWorkflowAndExecution()
	wf.NotificationEmail = ""
	n := NewResendNotifier("rk-test", "noreply@example.com").WithEndpoint(server.URL)
	require.NoError(t, n.NotifyFailure(context.Background(), wf, ex))
	assert.False(t, called)
}
