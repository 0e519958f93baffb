package builtin

import (
	"github.com/wflowhq/engine/pkg/action"
	"github.com/wflowhq/engine/pkg/models"
)

// RegisterBuiltins registers every built-in Action against registry, keyed
// by their node-type strings. fromAddress is the
// sender used by the sendEmail action (NOTIFICATION_FROM_EMAIL).
func RegisterBuiltins(registry *action.Registry, fromAddress string) error {
	actions := map[string]action.Action{
		models.NodeTypeWebhookTrigger:  NewTriggerAction(models.NodeTypeWebhookTrigger),
		models.NodeTypeScheduleTrigger: NewTriggerAction(models.NodeTypeScheduleTrigger),
		models.NodeTypeEmailTrigger:    NewTriggerAction(models.NodeTypeEmailTrigger),
		models.NodeTypeCondition:       NewConditionAction(),
		models.NodeTypeTransform:       NewTransformAction(),
		models.NodeTypeHTTPRequest:     NewHTTPAction(),
		models.NodeTypeSendEmail:       NewEmailAction(fromAddress),
		models.NodeTypeSendTelegram:    NewTelegramAction(),
		models.NodeTypeDatabaseQuery:   NewDatabaseAction(),
		models.NodeTypeAIRequest:       NewAIAction(),
	}

	for nodeType, a := range actions {
		if err := registry.Register(nodeType, a); err != nil {
			return err
		}
	}
	return nil
}
