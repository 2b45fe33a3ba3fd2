package scheduler

import (
	"fmt"

	"github.com/flowgraph/flowgraph/pkg/expression"
	"github.com/flowgraph/flowgraph/pkg/models"
)

// Validate checks a definition for defects knowable before execution: graph
// integrity, branch labeling, cycles, node configs, and cross-branch data
// dependencies. Run refuses to dispatch anything from a definition that fails
// here.
func (s *Scheduler) Validate(def *models.WorkflowDefinition) error {
	if def.Graph == nil || len(def.Graph.Nodes) == 0 {
		return configErrorf("definition %s has no graph", def.ID)
	}

	if err := s.validateGraph(def.Graph, true); err != nil {
		return err
	}

	foreachKeys := make(map[string]struct{})

	collect := func(g *models.Graph) {
		for _, n := range g.Nodes {
			if n.Type == models.NodeTypeForEach {
				foreachKeys[n.NodeKey] = struct{}{}
			}
		}
	}

	collect(def.Graph)

	for _, body := range def.Subgraphs {
		collect(body)
	}

	for key := range foreachKeys {
		body, ok := def.Body(key)
		if !ok {
			return configErrorf("foreach node '%s' has no body sub-graph", key)
		}

		if err := s.validateGraph(body, false); err != nil {
			return fmt.Errorf("foreach '%s' body: %w", key, err)
		}

		if _, err := bodyEntry(body); err != nil {
			return fmt.Errorf("foreach '%s' body: %w", key, err)
		}

		if _, err := bodyTail(body); err != nil {
			return fmt.Errorf("foreach '%s' body: %w", key, err)
		}
	}

	for key := range def.Subgraphs {
		if _, ok := foreachKeys[key]; !ok {
			return configErrorf("sub-graph '%s' is not owned by any foreach node", key)
		}
	}

	return nil
}

// validateGraph checks one graph. The top-level graph needs exactly one start
// and at least one end; foreach bodies are fragments and must contain neither.
func (s *Scheduler) validateGraph(g *models.Graph, topLevel bool) error {
	keys := make(map[string]struct{}, len(g.Nodes))

	var starts, ends int

	for _, n := range g.Nodes {
		if _, dup := keys[n.NodeKey]; dup {
			return configErrorf("duplicate node key '%s'", n.NodeKey)
		}

		keys[n.NodeKey] = struct{}{}

		switch n.Type {
		case models.NodeTypeStart:
			starts++
		case models.NodeTypeEnd:
			ends++
		}

		if _, err := s.registry.Executor(n.Type); err != nil {
			return configErrorf("node '%s': %v", n.NodeKey, err)
		}

		if err := s.registry.ValidateConfig(n); err != nil {
			return configErrorf("%v", err)
		}

		if _, err := s.registry.TimeoutFor(n); err != nil {
			return configErrorf("%v", err)
		}
	}

	if topLevel {
		if starts != 1 {
			return configErrorf("graph must have exactly one start node, found %d", starts)
		}

		if ends == 0 {
			return configErrorf("graph has no end node")
		}
	} else if starts+ends > 0 {
		return configErrorf("body sub-graphs must not contain start or end nodes")
	}

	for _, c := range g.Connections {
		if _, ok := keys[c.SourceNodeKey]; !ok {
			return configErrorf("connection source '%s' does not exist", c.SourceNodeKey)
		}

		if _, ok := keys[c.TargetNodeKey]; !ok {
			return configErrorf("connection target '%s' does not exist", c.TargetNodeKey)
		}
	}

	for _, n := range g.Nodes {
		for _, next := range n.NextNodeKeys {
			if _, ok := keys[next]; !ok {
				return configErrorf("node '%s' advances to unknown node '%s'", n.NodeKey, next)
			}

			if !hasEdge(g, n.NodeKey, next) {
				return configErrorf("node '%s' advances to '%s' without a connection", n.NodeKey, next)
			}
		}

		if n.Type == models.NodeTypeCondition {
			for _, label := range []string{"true", "false"} {
				if _, ok := g.OutgoingByLabel(n.NodeKey, label); !ok {
					return configErrorf("condition '%s' has no connection labeled '%s'", n.NodeKey, label)
				}
			}
		}

		if n.Type == models.NodeTypeFork && len(g.Outgoing(n.NodeKey)) < 2 {
			return configErrorf("fork '%s' needs at least two outgoing connections", n.NodeKey)
		}
	}

	if cycleKey, ok := findCycle(g); ok {
		return configErrorf("graph has a cycle through '%s'; loops must use foreach bodies", cycleKey)
	}

	return validateDataDependencies(g, keys)
}

// validateDataDependencies rejects variable references that reach across
// branches. A node may only read outputs of its graph ancestors; anything
// else would race with the referenced node's completion. References to keys
// outside this graph are left to run-time resolution (a body node reading a
// node that ran before the loop).
func validateDataDependencies(g *models.Graph, keys map[string]struct{}) error {
	for _, n := range g.Nodes {
		refs := expression.NodeReferences(n.InputDesigns)
		if len(refs) == 0 {
			continue
		}

		up := ancestors(g, n.NodeKey)

		for _, ref := range refs {
			if _, inGraph := keys[ref]; !inGraph {
				continue
			}

			if _, ok := up[ref]; !ok {
				return configErrorf("node '%s' reads '%s', which is not one of its ancestors", n.NodeKey, ref)
			}
		}
	}

	return nil
}

func hasEdge(g *models.Graph, source, target string) bool {
	for _, c := range g.Outgoing(source) {
		if c.TargetNodeKey == target {
			return true
		}
	}

	return false
}

// ancestors returns every node key reachable by walking edges backwards.
func ancestors(g *models.Graph, key string) map[string]struct{} {
	up := make(map[string]struct{})
	stack := []string{key}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, c := range g.Incoming(current) {
			if _, seen := up[c.SourceNodeKey]; seen {
				continue
			}

			up[c.SourceNodeKey] = struct{}{}
			stack = append(stack, c.SourceNodeKey)
		}
	}

	return up
}

// findCycle runs a three-color depth-first search over the connection edges.
func findCycle(g *models.Graph) (string, bool) {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make(map[string]int, len(g.Nodes))

	var visit func(key string) (string, bool)

	visit = func(key string) (string, bool) {
		color[key] = gray

		for _, c := range g.Outgoing(key) {
			switch color[c.TargetNodeKey] {
			case gray:
				return c.TargetNodeKey, true
			case white:
				if k, found := visit(c.TargetNodeKey); found {
					return k, true
				}
			}
		}

		color[key] = black

		return "", false
	}

	for _, n := range g.Nodes {
		if color[n.NodeKey] == white {
			if k, found := visit(n.NodeKey); found {
				return k, true
			}
		}
	}

	return "", false
}

// bodyEntry returns the single zero-in-degree node of a foreach body.
func bodyEntry(g *models.Graph) (string, error) {
	var entries []string

	for _, n := range g.Nodes {
		if len(g.Incoming(n.NodeKey)) == 0 {
			entries = append(entries, n.NodeKey)
		}
	}

	if len(entries) != 1 {
		return "", configErrorf("body must have exactly one entry node, found %d", len(entries))
	}

	return entries[0], nil
}

// bodyTail returns the single zero-out-degree node of a foreach body. Its
// output becomes the iteration's aggregated result.
func bodyTail(g *models.Graph) (string, error) {
	var tails []string

	for _, n := range g.Nodes {
		if len(g.Outgoing(n.NodeKey)) == 0 {
			tails = append(tails, n.NodeKey)
		}
	}

	if len(tails) != 1 {
		return "", configErrorf("body must have exactly one tail node, found %d", len(tails))
	}

	return tails[0], nil
}
