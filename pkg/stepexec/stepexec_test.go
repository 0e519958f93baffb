package stepexec

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wflowhq/engine/pkg/action"
	"github.com/wflowhq/engine/pkg/action/builtin"
	"github.com/wflowhq/engine/pkg/models"
)

type noServices struct{}

func (noServices) GetCredential(ctx context.Context, credentialID string) (map[string]interface{}, bool) {
	return nil, false
}

// flakyAction fails the first N-1 calls then succeeds.
type flakyAction struct {
	failures int
	calls    int
}

func (f *flakyAction) Execute(ctx context.Context, services action.Services, cfg map[string]interface{}, input interface{}) action.Result {
	f.calls++
	if f.calls <= f.failures {
		return action.Result{Success: false, Error: "not yet"}
	}
	return action.Result{Success: true, Output: "done"}
}

func (f *flakyAction) Validate(cfg map[string]interface{}) error { return nil }

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func TestExecute_SucceedsFirstTry(t *testing.T) {
	registry := action.NewRegistry()
	require.NoError(t, registry.Register("transform", builtin.NewTransformAction()))

	exec := New(registry, noServices{}).WithSleep(noSleep)
	execCtx := models.NewExecutionContext(map[string]interface{}{"x": 42})
	node := &models.Node{ID: "n1", Type: "transform", Data: map[string]interface{}{"expression": "{{trigger.x}}"}}

	result := exec.Execute(context.Background(), execCtx, node)
	require.True(t, result.Success)
	assert.Equal(t, 42, result.Output)
	assert.Equal(t, 0, result.RetryAttempts)
	assert.False(t, result.RetriedSuccessfully)
}

func TestExecute_RetriesUntilSuccess(t *testing.T) {
	registry := action.NewRegistry()
	flaky := &flakyAction{failures: 2}
	require.NoError(t, registry.Register("flaky", flaky))

	exec := New(registry, noServices{}).WithSleep(noSleep)
	execCtx := models.NewExecutionContext(nil)
	node := &models.Node{
		ID:   "n1",
		Type: "flaky",
		Data: map[string]interface{}{
			"retry": map[string]interface{}{"maxAttempts": 5},
		},
	}

	result := exec.Execute(context.Background(), execCtx, node)
	require.True(t, result.Success)
	assert.Equal(t, "done", result.Output)
	assert.Equal(t, 2, result.RetryAttempts)
	assert.True(t, result.RetriedSuccessfully)
	assert.Equal(t, 3, flaky.calls)
}

func TestExecute_ExhaustsRetriesAndFails(t *testing.T) {
	registry := action.NewRegistry()
	flaky := &flakyAction{failures: 100}
	require.NoError(t, registry.Register("flaky", flaky))

	exec := New(registry, noServices{}).WithSleep(noSleep)
	execCtx := models.NewExecutionContext(nil)
	node := &models.Node{
		ID:   "n1",
		Type: "flaky",
		Data: map[string]interface{}{
			"retry": map[string]interface{}{"maxAttempts": 2},
		},
	}

	result := exec.Execute(context.Background(), execCtx, node)
	assert.False(t, result.Success)
	assert.Equal(t, "not yet", result.Error)
	assert.Equal(t, 2, result.RetryAttempts)
	assert.Equal(t, 3, flaky.calls)
}

func TestExecute_DefaultRetryDisabled(t *testing.T) {
	registry := action.NewRegistry()
	flaky := &flakyAction{failures: 1}
	require.NoError(t, registry.Register("flaky", flaky))

	exec := New(registry, noServices{}).WithSleep(noSleep)
	execCtx := models.NewExecutionContext(nil)
	node := &models.Node{ID: "n1", Type: "flaky"}

	result := exec.Execute(context.Background(), execCtx, node)
	assert.False(t, result.Success)
	assert.Equal(t, 0, result.RetryAttempts)
	assert.Equal(t, 1, flaky.calls)
}

func TestExecute_CancellationStopsRetries(t *testing.T) {
	registry := action.NewRegistry()
	flaky := &flakyAction{failures: 100}
	require.NoError(t, registry.Register("flaky", flaky))

	ctx, cancel := context.WithCancel(context.Background())
	cancelAfterFirst := func(c context.Context, d time.Duration) error {
		cancel()
		return c.Err()
	}

	exec := New(registry, noServices{}).WithSleep(cancelAfterFirst)
	execCtx := models.NewExecutionContext(nil)
	node := &models.Node{
		ID:   "n1",
		Type: "flaky",
		Data: map[string]interface{}{
			"retry": map[string]interface{}{"maxAttempts": 5},
		},
	}

	result := exec.Execute(ctx, execCtx, node)
	assert.False(t, result.Success)
	assert.Equal(t, "cancelled", result.Error)
	assert.Equal(t, 1, flaky.calls)
}

func TestBackoffDelay(t *testing.T) {
	retry := models.RetryConfig{InitialDelayMs: 1000, BackoffMultiplier: 2, MaxDelayMs: 30000}
	assert.Equal(t, 1000*time.Millisecond, backoffDelay(retry, 1))
	assert.Equal(t, 2000*time.Millisecond, backoffDelay(retry, 2))
	assert.Equal(t, 4000*time.Millisecond, backoffDelay(retry, 3))
	assert.Equal(t, 30000*time.Millisecond, backoffDelay(retry, 10))
}

func TestExecute_UnknownNodeType(t *testing.T) {
	registry := action.NewRegistry()
	exec := New(registry, noServices{}).WithSleep(noSleep)
	execCtx := models.NewExecutionContext(nil)
	node := &models.Node{ID: "n1", Type: "doesNotExist"}

	result := exec.Execute(context.Background(), execCtx, node)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}
