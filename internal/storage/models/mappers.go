package models

import (
	"github.com/wflowhq/engine/pkg/models"
)

// ToDomain converts a WorkflowModel row into the domain Workflow the engine
// operates on. The inverse, FromDomain, is used by the repository on write.
func (w *WorkflowModel) ToDomain() *models.Workflow {
	return &models.Workflow{
		ID:                w.ID,
		OwnerID:           w.OwnerID,
		Name:              w.Name,
		Description:       w.Description,
		Status:            models.WorkflowStatus(w.Status),
		Definition:        w.Definition.Data,
		NotificationEmail: w.NotificationEmail,
		CreatedAt:         w.CreatedAt,
		UpdatedAt:         w.UpdatedAt,
	}
}

// WorkflowFromDomain builds a WorkflowModel row from a domain Workflow.
func WorkflowFromDomain(wf *models.Workflow) *WorkflowModel {
	return &WorkflowModel{
		ID:                wf.ID,
		OwnerID:           wf.OwnerID,
		Name:              wf.Name,
		Description:       wf.Description,
		Status:            string(wf.Status),
		Definition:        JSONColumn[models.WorkflowDefinition]{Data: wf.Definition},
		NotificationEmail: wf.NotificationEmail,
		CreatedAt:         wf.CreatedAt,
		UpdatedAt:         wf.UpdatedAt,
	}
}

// ToDomain converts a TriggerModel row into the domain Trigger.
func (t *TriggerModel) ToDomain() *models.Trigger {
	return &models.Trigger{
		ID:         t.ID,
		WorkflowID: t.WorkflowID,
		Name:       t.Name,
		Type:       models.TriggerType(t.Type),
		Config:     map[string]interface{}(t.Config),
		Enabled:    t.Enabled,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
		LastRun:    t.LastRun,
		NextRun:    t.NextRun,
		Metadata:   map[string]interface{}(t.Metadata),
	}
}

// TriggerFromDomain builds a TriggerModel row from a domain Trigger.
func TriggerFromDomain(tr *models.Trigger) *TriggerModel {
	return &TriggerModel{
		ID:         tr.ID,
		WorkflowID: tr.WorkflowID,
		Name:       tr.Name,
		Type:       string(tr.Type),
		Config:     JSONBMap(tr.Config),
		Enabled:    tr.Enabled,
		CreatedAt:  tr.CreatedAt,
		UpdatedAt:  tr.UpdatedAt,
		LastRun:    tr.LastRun,
		NextRun:    tr.NextRun,
		Metadata:   JSONBMap(tr.Metadata),
	}
}

// ToDomain converts an ExecutionModel row into the domain Execution. StepLogs
// is left nil — callers that need step logs load them separately and attach
// them, since they live in their own table.
func (e *ExecutionModel) ToDomain() *models.Execution {
	return &models.Execution{
		ID:          e.ID,
		WorkflowID:  e.WorkflowID,
		Status:      models.ExecutionStatus(e.Status),
		Input:       map[string]interface{}(e.Input),
		Output:      e.Output.Data,
		Error:       e.Error,
		TriggeredBy: e.TriggeredBy,
		StartedAt:   e.StartedAt,
		FinishedAt:  e.FinishedAt,
	}
}

// ExecutionFromDomain builds an ExecutionModel row from a domain Execution.
func ExecutionFromDomain(ex *models.Execution) *ExecutionModel {
	return &ExecutionModel{
		ID:          ex.ID,
		WorkflowID:  ex.WorkflowID,
		Status:      string(ex.Status),
		Input:       JSONBMap(ex.Input),
		Output:      JSONColumn[interface{}]{Data: ex.Output},
		Error:       ex.Error,
		TriggeredBy: ex.TriggeredBy,
		StartedAt:   ex.StartedAt,
		FinishedAt:  ex.FinishedAt,
	}
}

// ToDomain converts a StepLogModel row into the domain StepLog.
func (s *StepLogModel) ToDomain() *models.StepLog {
	return &models.StepLog{
		ID:                  s.ID,
		ExecutionID:         s.ExecutionID,
		NodeID:              s.NodeID,
		NodeName:            s.NodeName,
		Status:              models.StepStatus(s.Status),
		Input:               s.Input.Data,
		Output:              s.Output.Data,
		Error:               s.Error,
		DurationMs:          s.DurationMs,
		RetryAttempts:       s.RetryAttempts,
		RetriedSuccessfully: s.RetriedSuccessfully,
		CreatedAt:           s.CreatedAt,
	}
}

// StepLogFromDomain builds a StepLogModel row from a domain StepLog.
func StepLogFromDomain(sl *models.StepLog) *StepLogModel {
	return &StepLogModel{
		ID:                  sl.ID,
		ExecutionID:         sl.ExecutionID,
		NodeID:              sl.NodeID,
		NodeName:            sl.NodeName,
		Status:              string(sl.Status),
		Input:               JSONColumn[interface{}]{Data: sl.Input},
		Output:              JSONColumn[interface{}]{Data: sl.Output},
		Error:               sl.Error,
		DurationMs:          sl.DurationMs,
		RetryAttempts:       sl.RetryAttempts,
		RetriedSuccessfully: sl.RetriedSuccessfully,
		CreatedAt:           sl.CreatedAt,
	}
}

// ToDomain converts a CredentialModel row into the domain Credential.
func (c *CredentialModel) ToDomain() *models.Credential {
	return &models.Credential{
		ID:        c.ID,
		OwnerID:   c.OwnerID,
		Name:      c.Name,
		Type:      models.CredentialType(c.Type),
		Data:      c.Data,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// CredentialFromDomain builds a CredentialModel row from a domain Credential.
func CredentialFromDomain(cr *models.Credential) *CredentialModel {
	return &CredentialModel{
		ID:        cr.ID,
		OwnerID:   cr.OwnerID,
		Name:      cr.Name,
		Type:      string(cr.Type),
		Data:      cr.Data,
		CreatedAt: cr.CreatedAt,
		UpdatedAt: cr.UpdatedAt,
	}
}
