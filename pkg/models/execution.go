package models

import "time"

// Execution is a single run of a workflow from a trigger firing to a
// terminal status.
type Execution struct {
	ID          string                 `json:"id"`
	WorkflowID  string                 `json:"workflow_id"`
	Status      ExecutionStatus        `json:"status"`
	Input       map[string]interface{} `json:"input,omitempty"`
	Output      interface{}            `json:"output,omitempty"`
	Error       string                 `json:"error,omitempty"`
	StepLogs    []*StepLog             `json:"step_logs,omitempty"`
	TriggeredBy string                 `json:"triggered_by,omitempty"`
	StartedAt   time.Time              `json:"started_at"`
	FinishedAt  *time.Time             `json:"finished_at,omitempty"`
}

// ExecutionStatus is the state-machine status of an Execution.
type ExecutionStatus string

const (
	ExecutionStatusPending ExecutionStatus = "PENDING"
	ExecutionStatusRunning ExecutionStatus = "RUNNING"
	ExecutionStatusSuccess ExecutionStatus = "SUCCESS"
	ExecutionStatusFailed  ExecutionStatus = "FAILED"
	ExecutionStatusPaused  ExecutionStatus = "PAUSED"
)

// IsTerminal reports whether no further transitions happen from this status.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusSuccess || s == ExecutionStatusFailed
}

// validExecutionTransitions encodes the allowed state machine
// edges. PAUSED is reachable only from RUNNING and resumes back to RUNNING;
// every other terminal transition originates in RUNNING.
var validExecutionTransitions = map[ExecutionStatus]map[ExecutionStatus]bool{
	ExecutionStatusPending: {ExecutionStatusRunning: true},
	ExecutionStatusRunning: {
		ExecutionStatusSuccess: true,
		ExecutionStatusFailed:  true,
		ExecutionStatusPaused:  true,
	},
	ExecutionStatusPaused: {ExecutionStatusRunning: true},
}

// CanTransition reports whether moving from s to next is legal.
func (s ExecutionStatus) CanTransition(next ExecutionStatus) bool {
	return validExecutionTransitions[s][next]
}

// StepLog is the per-node execution record within an Execution.
type StepLog struct {
	ID             string                 `json:"id"`
	ExecutionID    string                 `json:"execution_id"`
	NodeID         string                 `json:"node_id"`
	NodeName       string                 `json:"node_name,omitempty"`
	Status         StepStatus             `json:"status"`
	Input          interface{}            `json:"input,omitempty"`
	Output         interface{}            `json:"output,omitempty"`
	Error          string                 `json:"error,omitempty"`
	DurationMs     int64                  `json:"duration_ms,omitempty"`
	RetryAttempts  int                    `json:"retry_attempts,omitempty"`
	RetriedSuccessfully bool              `json:"retried_successfully,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

// StepStatus is the status of a single StepLog.
type StepStatus string

const (
	StepStatusPending StepStatus = "pending"
	StepStatusRunning StepStatus = "running"
	StepStatusSuccess StepStatus = "success"
	StepStatusError   StepStatus = "error"
	StepStatusSkipped StepStatus = "skipped"
)

// IsTerminal reports whether the step log will not change further.
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StepStatusSuccess, StepStatusError, StepStatusSkipped:
		return true
	default:
		return false
	}
}

// Duration returns the execution's wall-clock duration. If the execution has
// not finished, it returns the elapsed time so far.
func (e *Execution) Duration() time.Duration {
	if e.FinishedAt == nil {
		return time.Since(e.StartedAt)
	}
	return e.FinishedAt.Sub(e.StartedAt)
}

// GetStepLog returns the step log for a given node ID, if present.
func (e *Execution) GetStepLog(nodeID string) (*StepLog, error) {
	for _, sl := range e.StepLogs {
		if sl.NodeID == nodeID {
			return sl, nil
		}
	}
	return nil, ErrNodeNotFound
}

// FailedSteps returns every step log whose status is error.
func (e *Execution) FailedSteps() []*StepLog {
	var failed []*StepLog
	for _, sl := range e.StepLogs {
		if sl.Status == StepStatusError {
			failed = append(failed, sl)
		}
	}
	return failed
}

// ExecutionContext is the namespaced lookup table template resolution
// and condition evaluation read from while an execution runs. It is keyed
// by "trigger" for the data that started the execution, and by node id
// for each node's resolved output.
type ExecutionContext map[string]interface{}

// TriggerKey is the reserved ExecutionContext key holding trigger payload.
const TriggerKey = "trigger"

// NewExecutionContext seeds a context with the trigger payload.
func NewExecutionContext(triggerData map[string]interface{}) ExecutionContext {
	ctx := make(ExecutionContext, 1)
	ctx[TriggerKey] = triggerData
	return ctx
}

// SetNodeOutput records a node's resolved output for downstream templates.
func (c ExecutionContext) SetNodeOutput(nodeID string, output interface{}) {
	c[nodeID] = output
}

// GetNodeOutput retrieves a previously recorded node output.
func (c ExecutionContext) GetNodeOutput(nodeID string) (interface{}, bool) {
	v, ok := c[nodeID]
	return v, ok
}
