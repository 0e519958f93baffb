package builtin

import (
	"context"
	"fmt"

	"github.com/wflowhq/engine/pkg/action"
	"github.com/wflowhq/engine/pkg/condition"
)

// ConditionAction evaluates a condition node's boolean expression,
// after the step executor has already resolved its "{{...}}" references.
// It returns an unsuccessful Result only when "expression" is missing or
// not a string: the evaluator itself never errors, it just yields false on
// any parse failure.
type ConditionAction struct {
	*action.BaseAction
}

func NewConditionAction() *ConditionAction {
	return &ConditionAction{BaseAction: action.NewBaseAction("condition")}
}

func (a *ConditionAction) Execute(ctx context.Context, services action.Services, cfg map[string]interface{}, input interface{}) action.Result {
	exprStr, ok := cfg["expression"].(string)
	if !ok {
		return action.Result{Error: "expression is required"}
	}

	result := condition.Evaluate(exprStr)
	return action.Result{
		Success: true,
		Output:  map[string]interface{}{"result": result},
	}
}

func (a *ConditionAction) Validate(cfg map[string]interface{}) error {
	if _, ok := cfg["expression"]; !ok {
		return fmt.Errorf("expression is required")
	}
	return nil
}
