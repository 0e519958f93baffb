// Package progress implements the execution progress bus:
// publish-subscribe with per-execution rooms over gorilla/websocket, fed
// by an observer fan-out core.
package progress

import "time"

// EventType names one of the server→room progress events.
type EventType string

const (
	EventExecutionStart    EventType = "execution:start"
	EventStepStart         EventType = "step:start"
	EventStepComplete      EventType = "step:complete"
	EventExecutionComplete EventType = "execution:complete"
)

// Event is the uniform shape every progress notification carries.
// Optional fields are pointers so omission is distinguishable from a zero
// value in the JSON the websocket transport emits.
type Event struct {
	Type        EventType `json:"type"`
	ExecutionID string    `json:"executionId"`
	WorkflowID  string    `json:"workflowId,omitempty"`

	WorkflowName *string    `json:"workflowName,omitempty"`
	NodeID       *string    `json:"nodeId,omitempty"`
	NodeName     *string    `json:"nodeName,omitempty"`
	Status       string     `json:"status,omitempty"`
	Output       any        `json:"output,omitempty"`
	Error        *string    `json:"error,omitempty"`
	DurationMs   *int64     `json:"duration,omitempty"`
	RetryCount   *int       `json:"retryAttempts,omitempty"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
	TotalDuration *int64    `json:"totalDuration,omitempty"`
}

// Observer receives every Event notified through a Bus unless its Filter
// excludes it.
type Observer interface {
	OnEvent(event Event) error
	Name() string
	Filter() EventFilter
}

// EventFilter decides whether an Observer should see a given Event.
type EventFilter interface {
	ShouldNotify(event Event) bool
}

// ExecutionIDFilter passes only events for one execution — the shape a
// single websocket room's observer would use if rooms were implemented as
// filtered subscriptions rather than as explicit membership sets.
type ExecutionIDFilter struct {
	executionID string
}

// NewExecutionIDFilter creates a filter scoped to executionID.
func NewExecutionIDFilter(executionID string) EventFilter {
	return &ExecutionIDFilter{executionID: executionID}
}

// ShouldNotify returns true only for events belonging to executionID.
func (f *ExecutionIDFilter) ShouldNotify(event Event) bool {
	return event.ExecutionID == f.executionID
}
