package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Workflow is a stored automation: a definition plus the triggers that fire it.
type Workflow struct {
	ID                string             `json:"id"`
	OwnerID           string             `json:"owner_id,omitempty"`
	Name              string             `json:"name"`
	Description       string             `json:"description,omitempty"`
	Status            WorkflowStatus     `json:"status"`
	Definition        WorkflowDefinition `json:"definition"`
	NotificationEmail string             `json:"notification_email,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// IsActive reports whether the workflow's triggers should be live. Only an
// active workflow's triggers fire.
func (w *Workflow) IsActive() bool {
	return w.Status == WorkflowStatusActive
}

// WorkflowStatus is the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusDraft    WorkflowStatus = "draft"
	WorkflowStatusActive   WorkflowStatus = "active"
	WorkflowStatusInactive WorkflowStatus = "inactive"
	WorkflowStatusArchived WorkflowStatus = "archived"
)

// WorkflowDefinition is the DAG shape of a workflow: nodes, edges between
// them, and workflow-level variables available to every node's template
// resolution as {{variables.x}}.
type WorkflowDefinition struct {
	Nodes     []*Node                `json:"nodes"`
	Edges     []*Edge                `json:"edges"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

// Node is a single step in the workflow graph.
type Node struct {
	ID   string                 `json:"id"`
	Name string                 `json:"name"`
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

// Edge is a directed connection between two nodes. SourceHandle distinguishes
// the branch a condition node's edge is attached to: "true", "false", or ""
// for an edge leaving a node with no branching semantics.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"source_handle,omitempty"`
}

// Validate checks structural well-formedness: non-empty name, at least one
// node, unique node IDs, and edges that reference existing nodes. It does not
// check for cycles — that is the graph traverser's job, since a cycle is only meaningful in
// the context of building an execution plan.
func (w *Workflow) Validate() error {
	if w.Name == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}

	if len(w.Definition.Nodes) == 0 {
		return &ValidationError{Field: "definition.nodes", Message: "at least one node is required"}
	}

	nodeIDs := make(map[string]bool, len(w.Definition.Nodes))
	for _, node := range w.Definition.Nodes {
		if err := node.Validate(); err != nil {
			return err
		}
		if nodeIDs[node.ID] {
			return &ValidationError{Field: "definition.nodes", Message: fmt.Sprintf("duplicate node id: %s", node.ID)}
		}
		nodeIDs[node.ID] = true
	}

	for _, edge := range w.Definition.Edges {
		if err := edge.Validate(); err != nil {
			return err
		}
		if !nodeIDs[edge.Source] {
			return &ValidationError{Field: "definition.edges", Message: fmt.Sprintf("edge references unknown source node: %s", edge.Source)}
		}
		if !nodeIDs[edge.Target] {
			return &ValidationError{Field: "definition.edges", Message: fmt.Sprintf("edge references unknown target node: %s", edge.Target)}
		}
	}

	return nil
}

// Validate checks that a node carries the minimum identifying fields.
func (n *Node) Validate() error {
	if n.ID == "" {
		return &ValidationError{Field: "id", Message: "node id is required"}
	}
	if n.Type == "" {
		return &ValidationError{Field: "type", Message: "node type is required"}
	}
	if !IsKnownNodeType(n.Type) {
		return &ValidationError{Field: "type", Message: fmt.Sprintf("unknown node type: %s", n.Type)}
	}
	return nil
}

// Validate checks that an edge has both endpoints and is not a self-loop.
func (e *Edge) Validate() error {
	if e.ID == "" {
		return &ValidationError{Field: "id", Message: "edge id is required"}
	}
	if e.Source == "" {
		return &ValidationError{Field: "source", Message: "edge source is required"}
	}
	if e.Target == "" {
		return &ValidationError{Field: "target", Message: "edge target is required"}
	}
	if e.Source == e.Target {
		return &ValidationError{Field: "edge", Message: "self-loop edges are not allowed"}
	}
	return nil
}

// GetNode returns a node by ID.
func (d *WorkflowDefinition) GetNode(nodeID string) (*Node, error) {
	for _, node := range d.Nodes {
		if node.ID == nodeID {
			return node, nil
		}
	}
	return nil, ErrNodeNotFound
}

// OutgoingEdges returns every edge whose source is nodeID.
func (d *WorkflowDefinition) OutgoingEdges(nodeID string) []*Edge {
	var out []*Edge
	for _, e := range d.Edges {
		if e.Source == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// IncomingEdges returns every edge whose target is nodeID.
func (d *WorkflowDefinition) IncomingEdges(nodeID string) []*Edge {
	var in []*Edge
	for _, e := range d.Edges {
		if e.Target == nodeID {
			in = append(in, e)
		}
	}
	return in
}

// Clone returns a deep copy of the workflow via a JSON round trip — every
// field here is JSON-serializable and the workflow tree is shallow enough
// that this is cheaper to write correctly than hand-rolled recursive copying.
func (w *Workflow) Clone() (*Workflow, error) {
	data, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	var clone Workflow
	if err := json.Unmarshal(data, &clone); err != nil {
		return nil, err
	}
	return &clone, nil
}

// Node type constants recognized by the action registry. A node whose
// Type is outside this set fails workflow validation before it ever reaches
// the graph traverser.
const (
	NodeTypeWebhookTrigger = "webhookTrigger"
	NodeTypeScheduleTrigger = "scheduleTrigger"
	NodeTypeEmailTrigger   = "emailTrigger"
	NodeTypeCondition      = "condition"
	NodeTypeTransform      = "transform"
	NodeTypeHTTPRequest    = "httpRequest"
	NodeTypeSendEmail      = "sendEmail"
	NodeTypeSendTelegram   = "sendTelegram"
	NodeTypeDatabaseQuery  = "databaseQuery"
	NodeTypeAIRequest      = "aiRequest"
)

var knownNodeTypes = map[string]bool{
	NodeTypeWebhookTrigger:  true,
	NodeTypeScheduleTrigger: true,
	NodeTypeEmailTrigger:    true,
	NodeTypeCondition:       true,
	NodeTypeTransform:       true,
	NodeTypeHTTPRequest:     true,
	NodeTypeSendEmail:       true,
	NodeTypeSendTelegram:    true,
	NodeTypeDatabaseQuery:   true,
	NodeTypeAIRequest:       true,
}

// IsKnownNodeType reports whether typ is one of the node kinds the engine
// knows how to validate and execute.
func IsKnownNodeType(typ string) bool {
	return knownNodeTypes[typ]
}

// IsTriggerNodeType reports whether typ starts a workflow rather than being
// executed mid-graph.
func IsTriggerNodeType(typ string) bool {
	switch typ {
	case NodeTypeWebhookTrigger, NodeTypeScheduleTrigger, NodeTypeEmailTrigger:
		return true
	default:
		return false
	}
}
