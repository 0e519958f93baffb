// Package action provides the Action interface and registry for node
// execution.
//
// An Action is a typed handler for one node kind: trigger kinds are
// registered as pass-through actions that hand back the context's trigger
// value unchanged; condition and transform are pure functions with no
// external I/O; every other kind is I/O-bound and receives a Services
// handle for credential lookup. Adding a new node kind requires only a new
// registration — the step executor is closed to modification.
package action

import (
	"context"
	"fmt"

	"github.com/wflowhq/engine/pkg/models"
)

// Result is the uniform shape every Action returns, regardless of node kind.
type Result struct {
	Success bool
	Output  interface{}
	Error   string
}

// Services is the handle an I/O-bound Action uses to reach engine-owned
// collaborators it must not embed itself: credential lookup today, nothing
// else — no DB handle, no HTTP client, those are internal to each Action.
type Services interface {
	// GetCredential returns the decrypted payload for credentialId, already
	// JSON-unmarshaled into a map. ok is false if the id is empty, not
	// found, or fails to decrypt — callers decide whether a
	// missing credential degrades gracefully (HTTP auth) or is mandatory
	// (Telegram, DB, AI, Email).
	GetCredential(ctx context.Context, credentialID string) (map[string]interface{}, bool)
}

// Action is the interface every node kind's handler implements.
type Action interface {
	// Execute runs the action against already-template-resolved config and
	// the node's recorded input snapshot. It returns no error value: every
	// failure, including a config that fails to parse or validate, is
	// reported through Result.Success and Result.Error.
	Execute(ctx context.Context, services Services, config map[string]interface{}, input interface{}) Result

	// Validate checks a node's configuration shape, independent of any
	// runtime context, used at workflow-save time and before dispatch.
	Validate(config map[string]interface{}) error
}

// ActionFunc adapts a pair of functions to the Action interface.
type ActionFunc struct {
	ExecuteFn  func(ctx context.Context, services Services, config map[string]interface{}, input interface{}) Result
	ValidateFn func(config map[string]interface{}) error
}

func (f *ActionFunc) Execute(ctx context.Context, services Services, config map[string]interface{}, input interface{}) Result {
	return f.ExecuteFn(ctx, services, config, input)
}

func (f *ActionFunc) Validate(config map[string]interface{}) error {
	if f.ValidateFn == nil {
		return nil
	}
	return f.ValidateFn(config)
}

// Registry maps a node type to the Action that executes it.
type Registry struct {
	actions map[string]Action
}

// NewRegistry creates an empty action registry.
func NewRegistry() *Registry {
	return &Registry{actions: make(map[string]Action)}
}

// Register binds typ to action, replacing any prior registration.
func (r *Registry) Register(typ string, a Action) error {
	if typ == "" {
		return fmt.Errorf("node type cannot be empty")
	}
	if a == nil {
		return fmt.Errorf("action cannot be nil")
	}
	r.actions[typ] = a
	return nil
}

// Get retrieves the Action registered for typ.
func (r *Registry) Get(typ string) (Action, error) {
	a, ok := r.actions[typ]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrExecutorNotFound, typ)
	}
	return a, nil
}

// Has reports whether typ has a registered Action.
func (r *Registry) Has(typ string) bool {
	_, ok := r.actions[typ]
	return ok
}

// List returns every registered node type.
func (r *Registry) List() []string {
	types := make([]string, 0, len(r.actions))
	for typ := range r.actions {
		types = append(types, typ)
	}
	return types
}

// BaseAction provides the config-extraction helpers every concrete Action
// shares, the way pkg/executor.BaseExecutor did before every node kind's
// config had a typed Parse function in pkg/action/config.
type BaseAction struct {
	NodeType string
}

func NewBaseAction(nodeType string) *BaseAction {
	return &BaseAction{NodeType: nodeType}
}

func (b *BaseAction) GetString(config map[string]interface{}, key string) (string, error) {
	val, ok := config[key]
	if !ok {
		return "", fmt.Errorf("field not found: %s", key)
	}
	str, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("field %s is not a string", key)
	}
	return str, nil
}

func (b *BaseAction) GetStringDefault(config map[string]interface{}, key, defaultValue string) string {
	val, ok := config[key]
	if !ok {
		return defaultValue
	}
	str, ok := val.(string)
	if !ok {
		return defaultValue
	}
	return str
}

func (b *BaseAction) GetMap(config map[string]interface{}, key string) (map[string]interface{}, error) {
	val, ok := config[key]
	if !ok {
		return nil, fmt.Errorf("field not found: %s", key)
	}
	m, ok := val.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("field %s is not a map", key)
	}
	return m, nil
}

func (b *BaseAction) GetFloatDefault(config map[string]interface{}, key string, defaultValue float64) float64 {
	val, ok := config[key]
	if !ok {
		return defaultValue
	}
	switch v := val.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return defaultValue
	}
}

func (b *BaseAction) ValidateRequired(config map[string]interface{}, fields ...string) error {
	for _, field := range fields {
		if _, ok := config[field]; !ok {
			return fmt.Errorf("required field missing: %s", field)
		}
	}
	return nil
}
