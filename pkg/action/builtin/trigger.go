package builtin

import (
	"context"

	"github.com/wflowhq/engine/pkg/action"
)

// TriggerAction is the pass-through registered for every trigger node kind
// (webhookTrigger, scheduleTrigger, emailTrigger). It hands back the
// execution's trigger payload unchanged
type TriggerAction struct {
	*action.BaseAction
}

func NewTriggerAction(nodeType string) *TriggerAction {
	return &TriggerAction{BaseAction: action.NewBaseAction(nodeType)}
}

func (a *TriggerAction) Execute(ctx context.Context, services action.Services, cfg map[string]interface{}, input interface{}) action.Result {
	return action.Result{Success: true, Output: input}
}

func (a *TriggerAction) Validate(cfg map[string]interface{}) error {
	return nil
}
