// Package stepexec runs a single node: it resolves the node's
// configuration against the running execution context, dispatches to the
// registered action, and wraps the attempt in the node's
// exponential-backoff retry policy.
package stepexec

import (
	"context"
	"time"

	"github.com/wflowhq/engine/pkg/action"
	"github.com/wflowhq/engine/pkg/action/builtin"
	"github.com/wflowhq/engine/pkg/models"
	"github.com/wflowhq/engine/pkg/template"
)

// Result is what one node execution (including any retries) produced.
type Result struct {
	Success             bool
	Output              interface{}
	Error               string
	DurationMs          int64
	RetryAttempts       int
	RetriedSuccessfully bool
}

// Executor dispatches one node at a time via a shared action registry.
type Executor struct {
	registry *action.Registry
	services action.Services
	sleep    func(context.Context, time.Duration) error
}

// New builds an Executor bound to registry and services (credential
// lookup). A custom sleep function can be injected for tests that need to
// assert on retry timing without real delays.
func New(registry *action.Registry, services action.Services) *Executor {
	return &Executor{registry: registry, services: services, sleep: contextSleep}
}

// WithSleep overrides the retry backoff sleep implementation, for tests.
func (e *Executor) WithSleep(sleep func(context.Context, time.Duration) error) *Executor {
	e.sleep = sleep
	return e
}

// Execute runs node to completion, retrying per its declared RetryConfig
// (or the default) until success or attempts are exhausted. ctx
// cancellation is observed between attempts: a cancellation mid-retry
// aborts further attempts and returns a "cancelled" failure rather than
// the last action error.
func (e *Executor) Execute(ctx context.Context, execCtx models.ExecutionContext, node *models.Node) Result {
	retry := models.ParseRetryConfig(node.Data)

	var last attemptResult
	attempt := 0

	for {
		select {
		case <-ctx.Done():
			return Result{Success: false, Error: "cancelled", RetryAttempts: attempt}
		default:
		}

		last = e.runOnce(ctx, execCtx, node)
		if last.success || attempt >= retry.MaxAttempts {
			break
		}

		delay := backoffDelay(retry, attempt+1)
		if err := e.sleep(ctx, delay); err != nil {
			return Result{Success: false, Error: "cancelled", RetryAttempts: attempt}
		}
		attempt++
	}

	return Result{
		Success:             last.success,
		Output:              last.output,
		Error:               last.errMsg,
		DurationMs:          last.durationMs,
		RetryAttempts:       attempt,
		RetriedSuccessfully: last.success && attempt > 0,
	}
}

type attemptResult struct {
	success    bool
	output     interface{}
	errMsg     string
	durationMs int64
}

// runOnce resolves node.Data against execCtx and dispatches a single
// attempt through the action registry.
func (e *Executor) runOnce(ctx context.Context, execCtx models.ExecutionContext, node *models.Node) attemptResult {
	start := time.Now()

	act, err := e.registry.Get(node.Type)
	if err != nil {
		return attemptResult{errMsg: err.Error(), durationMs: sinceMs(start)}
	}

	engine := template.NewEngine(execCtx)
	resolved := engine.ResolveMap(node.Data)
	resolved[builtin.ExecutionContextKey] = execCtx

	input := nodeInput(execCtx, node)

	result := act.Execute(ctx, e.services, resolved, input)
	return attemptResult{
		success:    result.Success,
		output:     result.Output,
		errMsg:     result.Error,
		durationMs: sinceMs(start),
	}
}

// nodeInput is the value trigger actions hand back unchanged: the trigger
// payload.
func nodeInput(execCtx models.ExecutionContext, node *models.Node) interface{} {
	if models.IsTriggerNodeType(node.Type) {
		trigger, _ := execCtx[models.TriggerKey]
		return trigger
	}
	return execCtx
}

func sinceMs(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}

// backoffDelay computes delay_i = min(initialDelayMs * backoffMultiplier^(i-1), maxDelayMs)
// where i is the 1-based upcoming attempt index
func backoffDelay(retry models.RetryConfig, i int) time.Duration {
	delay := retry.InitialDelayMs
	for n := 1; n < i; n++ {
		delay *= retry.BackoffMultiplier
		if delay > retry.MaxDelayMs {
			delay = retry.MaxDelayMs
			break
		}
	}
	if delay > retry.MaxDelayMs {
		delay = retry.MaxDelayMs
	}
	return time.Duration(delay) * time.Millisecond
}

// contextSleep sleeps for d unless ctx is cancelled first.
func contextSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
