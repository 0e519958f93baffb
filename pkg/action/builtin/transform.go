package builtin

import (
	"context"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/wflowhq/engine/pkg/action"
	"github.com/wflowhq/engine/pkg/models"
	"github.com/wflowhq/engine/pkg/template"
)

// TransformAction evaluates a transform node's "expression" field against
// the execution context.
//
// By the time Execute runs, the step executor has already resolved
// "{{...}}" references in the node's Data via pkg/template. A
// lone-reference expression like "{{trigger.price}}" therefore arrives here
// already resolved to its native type (an int stays an int) — Execute just
// passes that through. A bare expression with no braces, e.g.
// "trigger.price * 2", arrives here unresolved (it contains no "{{}}")
// and is evaluated with expr-lang against the full context.
type TransformAction struct {
	*action.BaseAction
}

func NewTransformAction() *TransformAction {
	return &TransformAction{BaseAction: action.NewBaseAction("transform")}
}

// ExecutionContextKey is the config key the step executor stashes the raw
// models.ExecutionContext under so this action can fall back to evaluating
// a bare expression against the full context, not just its own input.
const ExecutionContextKey = "__executionContext"

func (a *TransformAction) Execute(ctx context.Context, services action.Services, cfg map[string]interface{}, input interface{}) action.Result {
	raw, ok := cfg["expression"]
	if !ok {
		return action.Result{Error: "expression is required"}
	}

	// Already resolved to a non-string native value: pass it through
	// unchanged.
	exprStr, isString := raw.(string)
	if !isString {
		return action.Result{Success: true, Output: raw}
	}

	execCtx, _ := cfg[ExecutionContextKey].(models.ExecutionContext)

	if execCtx != nil {
		if value, ok := template.Lookup(execCtx, exprStr); ok {
			return action.Result{Success: true, Output: value}
		}
	}

	env := make(map[string]interface{}, len(execCtx)+1)
	for k, v := range execCtx {
		env[k] = v
	}
	env["input"] = input

	program, err := expr.Compile(exprStr, expr.Env(env))
	if err != nil {
		return action.Result{Error: fmt.Sprintf("failed to compile expression: %v", err)}
	}
	output, err := expr.Run(program, env)
	if err != nil {
		return action.Result{Error: fmt.Sprintf("failed to evaluate expression: %v", err)}
	}
	return action.Result{Success: true, Output: output}
}

func (a *TransformAction) Validate(cfg map[string]interface{}) error {
	if _, ok := cfg["expression"]; !ok {
		return fmt.Errorf("expression is required")
	}
	return nil
}
