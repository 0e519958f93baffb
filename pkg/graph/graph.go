// Package graph builds an execution plan from a workflow's node/edge
// graph: a stable topological ordering via Kahn's algorithm, plus the
// branch skip-set a condition node's result implies.
package graph

import (
	"github.com/wflowhq/engine/pkg/models"
)

// PlanStep is one node in the execution plan, in the order it should run.
type PlanStep struct {
	NodeID    string
	Type      string
	DependsOn []string // incoming-edge sources, not a spanning tree
}

// Plan is a stable topological ordering of a workflow's nodes.
type Plan struct {
	Steps []PlanStep

	adjacency map[string][]*models.Edge // source -> outgoing edges
	incoming  map[string][]string       // target -> incoming sources
}

// Build computes a topological execution plan over def using Kahn's
// algorithm. Nodes are seeded into the queue in their original definition
// order so that, for a fixed input, the emitted order is deterministic.
//
// If the graph contains a cycle, the nodes reachable from it never reach
// in-degree zero and are silently dropped from the plan, matching the
// traverser's documented cycle policy.
func Build(def *models.WorkflowDefinition) *Plan {
	inDegree := make(map[string]int, len(def.Nodes))
	nodeByID := make(map[string]*models.Node, len(def.Nodes))
	adjacency := make(map[string][]*models.Edge)
	incoming := make(map[string][]string)

	for _, n := range def.Nodes {
		inDegree[n.ID] = 0
		nodeByID[n.ID] = n
	}
	for _, e := range def.Edges {
		adjacency[e.Source] = append(adjacency[e.Source], e)
		incoming[e.Target] = append(incoming[e.Target], e.Source)
		if _, ok := inDegree[e.Target]; ok {
			inDegree[e.Target]++
		}
	}

	queue := make([]string, 0, len(def.Nodes))
	for _, n := range def.Nodes {
		if inDegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	var steps []PlanStep
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		n := nodeByID[id]
		steps = append(steps, PlanStep{
			NodeID:    id,
			Type:      n.Type,
			DependsOn: incoming[id],
		})

		for _, e := range adjacency[id] {
			inDegree[e.Target]--
			if inDegree[e.Target] == 0 {
				queue = append(queue, e.Target)
			}
		}
	}

	return &Plan{Steps: steps, adjacency: adjacency, incoming: incoming}
}

// HasCycle reports whether the source graph contained a cycle: some nodes
// never reached in-degree zero and were dropped from the plan.
func (p *Plan) HasCycle(def *models.WorkflowDefinition) bool {
	return len(p.Steps) < len(def.Nodes)
}

// SkipSet computes the set of node ids to skip after a condition node
// resolves to result, per the diamond-merge-safe rule: drop every
// descendant reachable only through the branch not taken, but never drop a
// node also reachable through the branch taken.
func (p *Plan) SkipSet(conditionNodeID string, result bool) map[string]bool {
	taken := branchHandle(result)
	notTaken := branchHandle(!result)

	var keepEdges, dropEdges []*models.Edge
	outgoing := p.adjacency[conditionNodeID]

	for _, e := range outgoing {
		if e.SourceHandle == taken {
			keepEdges = append(keepEdges, e)
		}
	}
	// If no edge is explicitly tagged for the taken branch, treat every
	// edge without an opposing tag as a default/keep edge.
	if len(keepEdges) == 0 {
		for _, e := range outgoing {
			if e.SourceHandle != notTaken {
				keepEdges = append(keepEdges, e)
			}
		}
	}
	for _, e := range outgoing {
		if e.SourceHandle == notTaken {
			dropEdges = append(dropEdges, e)
		}
	}

	skip := make(map[string]bool)
	for _, e := range dropEdges {
		for id := range p.descendants(e.Target) {
			skip[id] = true
		}
		skip[e.Target] = true
	}

	for _, e := range keepEdges {
		delete(skip, e.Target)
		for id := range p.descendants(e.Target) {
			delete(skip, id)
		}
	}

	return skip
}

func branchHandle(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// descendants returns every node reachable from start via any outgoing
// edge, not including start itself.
func (p *Plan) descendants(start string) map[string]bool {
	visited := make(map[string]bool)
	queue := []string{start}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		for _, e := range p.adjacency[id] {
			if !visited[e.Target] {
				visited[e.Target] = true
				queue = append(queue, e.Target)
			}
		}
	}

	return visited
}
