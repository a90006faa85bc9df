package workflow

import "fmt"

// ValidationError describes why a workflow graph cannot be executed.
type ValidationError struct {
	WorkflowID string
	Reason     string
}

func (e *ValidationError) Error() string {
	if e.WorkflowID != "" {
		return fmt.Sprintf("workflow %s invalid: %s", e.WorkflowID, e.Reason)
	}
	return fmt.Sprintf("workflow invalid: %s", e.Reason)
}

func (w *Workflow) invalid(format string, args ...interface{}) error {
	return &ValidationError{WorkflowID: w.ID, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks the structural rules every workflow must satisfy before a
// run starts: exactly one Start node, at least one End node reachable from
// it, no edges into Start or out of End, every ForEach matched with exactly
// one EndLoop, and no cycles once loop regions are collapsed. The first
// violation found is returned.
func (w *Workflow) Validate() error {
	if len(w.Nodes) == 0 {
		return w.invalid("graph has no nodes")
	}

	ids := make(map[string]bool, len(w.Nodes))
	var starts, ends []string
	for _, n := range w.Nodes {
		if n.ID == "" {
			return w.invalid("node with empty id")
		}
		if ids[n.ID] {
			return w.invalid("duplicate node id %q", n.ID)
		}
		ids[n.ID] = true
		switch n.Kind {
		case KindStart:
			starts = append(starts, n.ID)
		case KindEnd:
			ends = append(ends, n.ID)
		}
	}

	if len(starts) != 1 {
		return w.invalid("graph must have exactly one start node, found %d", len(starts))
	}
	if len(ends) == 0 {
		return w.invalid("graph has no end node")
	}

	for _, e := range w.Edges {
		if !ids[e.From] {
			return w.invalid("edge references unknown node %q", e.From)
		}
		if !ids[e.To] {
			return w.invalid("edge references unknown node %q", e.To)
		}
		if to := w.NodeByID(e.To); to.Kind == KindStart {
			return w.invalid("start node %q has an incoming edge from %q", e.To, e.From)
		}
		if from := w.NodeByID(e.From); from.Kind == KindEnd {
			return w.invalid("end node %q has an outgoing edge to %q", e.From, e.To)
		}
	}

	// Loop pairing. Each ForEach must resolve to exactly one EndLoop, and no
	// EndLoop may be claimed as the match of two different regions or left
	// unclaimed.
	regions, err := w.LoopRegions()
	if err != nil {
		return w.invalid("%v", err)
	}
	claimed := make(map[string]string)
	for _, r := range regions {
		if prev, ok := claimed[r.EndLoop]; ok {
			return w.invalid("endloop node %q matches both foreach %q and foreach %q", r.EndLoop, prev, r.ForEach)
		}
		claimed[r.EndLoop] = r.ForEach
	}
	for _, n := range w.Nodes {
		if n.Kind == KindEndLoop && claimed[n.ID] == "" {
			return w.invalid("endloop node %q has no matching foreach", n.ID)
		}
	}

	// Acyclicity of the collapsed graph, and of each region interior.
	if _, err := w.CollapsedOrder(); err != nil {
		return w.invalid("%v", err)
	}
	for _, r := range regions {
		if _, err := w.OrderWithin(r); err != nil {
			return w.invalid("loop %q interior: %v", r.ForEach, err)
		}
	}

	// Reachability of an End node from Start over the collapsed skeleton.
	start := w.StartNode()
	reach := map[string]bool{start.ID: true}
	queue := []string{start.ID}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, s := range w.Successors(cur) {
			if !reach[s] {
				reach[s] = true
				queue = append(queue, s)
			}
		}
	}
	endReachable := false
	for _, id := range ends {
		if reach[id] {
			endReachable = true
			break
		}
	}
	if !endReachable {
		return w.invalid("no end node is reachable from start node %q", start.ID)
	}

	return nil
}
