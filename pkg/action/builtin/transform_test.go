package builtin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wflowhq/engine/pkg/models"
)

func TestTransformAction_PassthroughTypedValue(t *testing.T) {
	a := NewTransformAction()

	// Simulates the step executor having already resolved "{{trigger.x}}"
	// to its native int value before dispatch.
	result := a.Execute(context.Background(), stubServices{}, map[string]interface{}{"expression": 42}, nil)
	require.True(t, result.Success)
	assert.Equal(t, 42, result.Output)
}

func TestTransformAction_BareDotPath(t *testing.T) {
	a := NewTransformAction()

	execCtx := models.NewExecutionContext(map[string]interface{}{"x": 42})
	cfg := map[string]interface{}{
		"expression":          "trigger.x",
		ExecutionContextKey:   execCtx,
	}

	result := a.Execute(context.Background(), stubServices{}, cfg, nil)
	require.True(t, result.Success)
	assert.Equal(t, 42, result.Output)
}

func TestTransformAction_ExpressionFallback(t *testing.T) {
	a := NewTransformAction()

	execCtx := models.NewExecutionContext(map[string]interface{}{"price": 100.0})
	cfg := map[string]interface{}{
		"expression":        "trigger.price * 2",
		ExecutionContextKey: execCtx,
	}

	result := a.Execute(context.Background(), stubServices{}, cfg, nil)
	require.True(t, result.Success)
	assert.Equal(t, 200.0, result.Output)
}

func TestTransformAction_Validate(t *testing.T) {
	a := NewTransformAction()
	assert.Error(t, a.Validate(map[string]interface{}{}))
	assert.NoError(t, a.Validate(map[string]interface{}{"expression": "trigger.x"}))
}
