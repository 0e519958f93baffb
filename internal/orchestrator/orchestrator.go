// Package orchestrator implements the execution orchestrator: the job
// handler that owns an execution from PENDING to a terminal status. It initialises the execution context, walks the topological plan,
// runs each node through the step executor, persists step logs, fans
// progress events out on the bus, and finalises the execution row.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wflowhq/engine/internal/infrastructure/logger"
	"github.com/wflowhq/engine/internal/progress"
	"github.com/wflowhq/engine/internal/queue"
	"github.com/wflowhq/engine/internal/storage"
	"github.com/wflowhq/engine/pkg/graph"
	"github.com/wflowhq/engine/pkg/models"
	"github.com/wflowhq/engine/pkg/stepexec"
)

// CancelledByUserError is the execution error recorded when a user cancels
// a pending or running execution.
const CancelledByUserError = "Execution cancelled by user"

// ErrorNotifier dispatches the failure notification email a workflow's
// NotificationEmail asks for. Implementations must be safe for concurrent
// use by multiple workers.
type ErrorNotifier interface {
	NotifyFailure(ctx context.Context, workflow *models.Workflow, execution *models.Execution) error
}

// ExecutePayload is the job payload both ingress adapters enqueue under
// the "execute" job name.
type ExecutePayload struct {
	ExecutionID string `json:"executionId"`
	WorkflowID  string `json:"workflowId"`
}

// ScheduledPayload is the payload the Scheduler's repeatable registrations
// produce under the "scheduled-execution" job name.
type ScheduledPayload struct {
	TriggerID   string `json:"triggerId"`
	WorkflowID  string `json:"workflowId"`
	OwnerID     string `json:"ownerId"`
	IsScheduled bool   `json:"isScheduled"`
}

// Orchestrator runs executions picked up from the job queue.
type Orchestrator struct {
	workflows  *storage.WorkflowRepository
	executions *storage.ExecutionRepository
	stepLogs   *storage.StepLogRepository
	triggers   *storage.TriggerRepository
	executor   *stepexec.Executor
	queue      *queue.Queue
	bus        *progress.Bus
	notifier   ErrorNotifier
	running    *runningSet
	newID      func() string
	log        *logger.Logger
}

// Config wires an Orchestrator's collaborators. Notifier may be nil when
// no outbound email provider is configured.
type Config struct {
	Workflows  *storage.WorkflowRepository
	Executions *storage.ExecutionRepository
	StepLogs   *storage.StepLogRepository
	Triggers   *storage.TriggerRepository
	Executor   *stepexec.Executor
	Queue      *queue.Queue
	Bus        *progress.Bus
	Notifier   ErrorNotifier
	NewID      func() string
}

// New creates an Orchestrator.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		workflows:  cfg.Workflows,
		executions: cfg.Executions,
		stepLogs:   cfg.StepLogs,
		triggers:   cfg.Triggers,
		executor:   cfg.Executor,
		queue:      cfg.Queue,
		bus:        cfg.Bus,
		notifier:   cfg.Notifier,
		running:    newRunningSet(),
		newID:      cfg.NewID,
		log:        logger.Default(),
	}
}

// HandleExecute is the queue handler for "execute" jobs: executions
// already materialised by an ingress adapter or a replay.
func (o *Orchestrator) HandleExecute(ctx context.Context, job *queue.Job) error {
	var payload ExecutePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("malformed execute payload: %w", err)
	}

	execution, err := o.executions.FindByID(ctx, payload.ExecutionID)
	if err != nil {
		return fmt.Errorf("failed to load execution %s: %w", payload.ExecutionID, err)
	}
	if execution.Status.IsTerminal() {
		// Replayed delivery after a crash that already finalised the row.
		return nil
	}

	workflow, err := o.workflows.FindByID(ctx, execution.WorkflowID)
	if err != nil {
		return fmt.Errorf("failed to load workflow %s: %w", execution.WorkflowID, err)
	}

	return o.run(ctx, workflow, execution)
}

// HandleScheduled is the queue handler for "scheduled-execution" jobs. The
// workflow is reloaded at fire time; a missing or deactivated workflow is
// a benign no-op — no execution is created.
func (o *Orchestrator) HandleScheduled(ctx context.Context, job *queue.Job) error {
	var payload ScheduledPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("malformed scheduled-execution payload: %w", err)
	}

	workflow, err := o.workflows.FindByID(ctx, payload.WorkflowID)
	if err != nil || !workflow.IsActive() {
		o.log.Info("skipping scheduled execution for missing or inactive workflow",
			"workflow_id", payload.WorkflowID, "trigger_id", payload.TriggerID)
		return nil
	}

	input := map[string]interface{}{
		"triggerId":   payload.TriggerID,
		"workflowId":  payload.WorkflowID,
		"isScheduled": true,
		"scheduledAt": time.Now().UTC().Format(time.RFC3339),
	}

	execution := &models.Execution{
		ID:          o.newID(),
		WorkflowID:  workflow.ID,
		Status:      models.ExecutionStatusPending,
		Input:       input,
		TriggeredBy: "schedule:" + payload.TriggerID,
	}
	if err := o.executions.Create(ctx, execution); err != nil {
		return fmt.Errorf("failed to create scheduled execution: %w", err)
	}

	if o.triggers != nil {
		if err := o.triggers.MarkTriggered(ctx, payload.TriggerID); err != nil {
			o.log.Warn("failed to record trigger firing", "trigger_id", payload.TriggerID, "error", err)
		}
	}

	return o.run(ctx, workflow, execution)
}

// run drives one execution through its node plan. Action failures
// are data: they finalise the execution as FAILED and run returns nil so
// the queue does not retry the job. Only infrastructure errors (storage
// writes failing) propagate out to the queue's own retry policy.
func (o *Orchestrator) run(ctx context.Context, workflow *models.Workflow, execution *models.Execution) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	o.running.add(execution.ID, cancel)
	defer o.running.remove(execution.ID)

	if err := o.executions.UpdateStatus(ctx, execution.ID, models.ExecutionStatusRunning, nil, "", nil); err != nil {
		return fmt.Errorf("failed to mark execution running: %w", err)
	}

	startedAt := time.Now().UTC()
	o.emitExecutionStart(workflow, execution, startedAt)

	execCtx := models.NewExecutionContext(execution.Input)
	if len(workflow.Definition.Variables) > 0 {
		execCtx["variables"] = workflow.Definition.Variables
	}
	skip := make(map[string]bool)
	var lastOutput interface{} = execution.Input

	plan := graph.Build(&workflow.Definition)
	if plan.HasCycle(&workflow.Definition) {
		o.log.Warn("workflow definition contains a cycle; unreachable nodes dropped",
			"workflow_id", workflow.ID, "execution_id", execution.ID,
			"planned", len(plan.Steps), "defined", len(workflow.Definition.Nodes))
	}

	for i, step := range plan.Steps {
		node, err := workflow.Definition.GetNode(step.NodeID)
		if err != nil {
			return fmt.Errorf("plan references unknown node %s: %w", step.NodeID, err)
		}

		if skip[step.NodeID] {
			o.recordSkipped(ctx, execution, node)
			continue
		}

		if runCtx.Err() != nil {
			return o.finalizeFailure(ctx, workflow, execution, startedAt, CancelledByUserError)
		}

		stepLog := &models.StepLog{
			ExecutionID: execution.ID,
			NodeID:      node.ID,
			NodeName:    node.Name,
			Status:      models.StepStatusRunning,
			Input:       o.stepInput(execCtx, node, step),
		}
		if err := o.stepLogs.Upsert(ctx, stepLog); err != nil {
			return fmt.Errorf("failed to record step start: %w", err)
		}
		o.emitStepStart(execution, node)

		result := o.executor.Execute(runCtx, execCtx, node)

		errMsg := result.Error
		if !result.Success && runCtx.Err() != nil {
			errMsg = CancelledByUserError
		}

		stepLog.Output = result.Output
		stepLog.Error = errMsg
		stepLog.DurationMs = result.DurationMs
		stepLog.RetryAttempts = result.RetryAttempts
		stepLog.RetriedSuccessfully = result.RetriedSuccessfully
		if result.Success {
			stepLog.Status = models.StepStatusSuccess
		} else {
			stepLog.Status = models.StepStatusError
		}
		if err := o.stepLogs.Upsert(ctx, stepLog); err != nil {
			return fmt.Errorf("failed to record step result: %w", err)
		}
		o.emitStepComplete(execution, node, stepLog)

		if !result.Success {
			return o.finalizeFailure(ctx, workflow, execution, startedAt, errMsg)
		}

		execCtx.SetNodeOutput(node.ID, result.Output)
		lastOutput = result.Output

		if node.Type == models.NodeTypeCondition {
			for id := range plan.SkipSet(node.ID, conditionResult(result.Output)) {
				skip[id] = true
			}
		}

		o.log.Debug("execution progress",
			"execution_id", execution.ID,
			"progress", (i+1)*100/len(plan.Steps))
	}

	if current, err := o.executions.FindByID(ctx, execution.ID); err == nil && current.Status.IsTerminal() {
		return nil
	}
	finishedAt := time.Now().UTC()
	if err := o.executions.UpdateStatus(ctx, execution.ID, models.ExecutionStatusSuccess, lastOutput, "", &finishedAt); err != nil {
		return fmt.Errorf("failed to finalize execution: %w", err)
	}
	o.emitExecutionComplete(workflow, execution, models.ExecutionStatusSuccess, lastOutput, "", startedAt, finishedAt)
	return nil
}

// stepInput is the audit snapshot recorded on a step log before the node
// runs: the trigger payload for trigger nodes, the first dependency's
// output when present, otherwise the full context.
func (o *Orchestrator) stepInput(execCtx models.ExecutionContext, node *models.Node, step graph.PlanStep) interface{} {
	if models.IsTriggerNodeType(node.Type) {
		return execCtx[models.TriggerKey]
	}
	for _, dep := range step.DependsOn {
		if out, ok := execCtx.GetNodeOutput(dep); ok {
			return out
		}
		break
	}
	return map[string]interface{}(execCtx)
}

func (o *Orchestrator) recordSkipped(ctx context.Context, execution *models.Execution, node *models.Node) {
	stepLog := &models.StepLog{
		ExecutionID: execution.ID,
		NodeID:      node.ID,
		NodeName:    node.Name,
		Status:      models.StepStatusSkipped,
		DurationMs:  0,
	}
	if err := o.stepLogs.Upsert(ctx, stepLog); err != nil {
		o.log.Error("failed to record skipped step", "execution_id", execution.ID, "node_id", node.ID, "error", err)
	}
	o.emitStepComplete(execution, node, stepLog)
}

func (o *Orchestrator) finalizeFailure(ctx context.Context, workflow *models.Workflow, execution *models.Execution, startedAt time.Time, errMsg string) error {
	if current, err := o.executions.FindByID(ctx, execution.ID); err == nil && current.Status.IsTerminal() {
		return nil
	}
	finishedAt := time.Now().UTC()
	if err := o.executions.UpdateStatus(ctx, execution.ID, models.ExecutionStatusFailed, nil, errMsg, &finishedAt); err != nil {
		return fmt.Errorf("failed to finalize failed execution: %w", err)
	}
	o.emitExecutionComplete(workflow, execution, models.ExecutionStatusFailed, nil, errMsg, startedAt, finishedAt)

	if o.notifier != nil && workflow.NotificationEmail != "" {
		execution.Status = models.ExecutionStatusFailed
		execution.Error = errMsg
		execution.FinishedAt = &finishedAt
		if err := o.notifier.NotifyFailure(ctx, workflow, execution); err != nil {
			o.log.Warn("failure notification email not sent",
				"execution_id", execution.ID, "to", workflow.NotificationEmail, "error", err)
		}
	}
	return nil
}

// conditionResult extracts the boolean a condition action wraps in its
// {"result": bool} output.
func conditionResult(output interface{}) bool {
	if m, ok := output.(map[string]interface{}); ok {
		if b, ok := m["result"].(bool); ok {
			return b
		}
	}
	return false
}

func (o *Orchestrator) emitExecutionStart(workflow *models.Workflow, execution *models.Execution, startedAt time.Time) {
	name := workflow.Name
	o.bus.Notify(progress.Event{
		Type:         progress.EventExecutionStart,
		ExecutionID:  execution.ID,
		WorkflowID:   workflow.ID,
		WorkflowName: &name,
		StartedAt:    &startedAt,
	})
}

func (o *Orchestrator) emitStepStart(execution *models.Execution, node *models.Node) {
	nodeID, nodeName := node.ID, node.Name
	o.bus.Notify(progress.Event{
		Type:        progress.EventStepStart,
		ExecutionID: execution.ID,
		WorkflowID:  execution.WorkflowID,
		NodeID:      &nodeID,
		NodeName:    &nodeName,
		Status:      string(models.StepStatusRunning),
	})
}

func (o *Orchestrator) emitStepComplete(execution *models.Execution, node *models.Node, sl *models.StepLog) {
	nodeID, nodeName := node.ID, node.Name
	event := progress.Event{
		Type:        progress.EventStepComplete,
		ExecutionID: execution.ID,
		WorkflowID:  execution.WorkflowID,
		NodeID:      &nodeID,
		NodeName:    &nodeName,
		Status:      string(sl.Status),
		Output:      sl.Output,
	}
	if sl.Error != "" {
		errMsg := sl.Error
		event.Error = &errMsg
	}
	duration := sl.DurationMs
	event.DurationMs = &duration
	if sl.RetryAttempts > 0 {
		retries := sl.RetryAttempts
		event.RetryCount = &retries
	}
	o.bus.Notify(event)
}

func (o *Orchestrator) emitExecutionComplete(workflow *models.Workflow, execution *models.Execution, status models.ExecutionStatus, output interface{}, errMsg string, startedAt, finishedAt time.Time) {
	total := finishedAt.Sub(startedAt).Milliseconds()
	event := progress.Event{
		Type:          progress.EventExecutionComplete,
		ExecutionID:   execution.ID,
		WorkflowID:    workflow.ID,
		Status:        string(status),
		Output:        output,
		FinishedAt:    &finishedAt,
		TotalDuration: &total,
	}
	if errMsg != "" {
		event.Error = &errMsg
	}
	o.bus.Notify(event)
}
