package workflow

import "fmt"

// LoopRegion pairs a ForEach node with its matching EndLoop and the interior
// nodes strictly between them. Interior preserves node declaration order and
// includes any nested ForEach/EndLoop pairs.
type LoopRegion struct {
	ForEach  string
	EndLoop  string
	Interior []string
}

// Contains reports whether the given node id is part of the region interior.
func (r LoopRegion) Contains(id string) bool {
	for _, n := range r.Interior {
		if n == id {
			return true
		}
	}
	return false
}

// Successors returns the ids of nodes directly downstream of the given node,
// in edge declaration order.
func (w *Workflow) Successors(id string) []string {
	var out []string
	for _, e := range w.Edges {
		if e.From == id {
			out = append(out, e.To)
		}
	}
	return out
}

// Predecessors returns the ids of nodes directly upstream of the given node,
// in edge declaration order.
func (w *Workflow) Predecessors(id string) []string {
	var out []string
	for _, e := range w.Edges {
		if e.To == id {
			out = append(out, e.From)
		}
	}
	return out
}

// declIndex maps node ids to their declaration position, the deterministic
// tie-break for topological ordering.
func (w *Workflow) declIndex() map[string]int {
	idx := make(map[string]int, len(w.Nodes))
	for i, n := range w.Nodes {
		idx[n.ID] = i
	}
	return idx
}

type loopVisit struct {
	id    string
	depth int
}

// matchEndLoop walks forward from a ForEach node, tracking nesting depth, and
// returns the matching EndLoop plus the interior node set. Inner ForEach
// nodes increment the depth; EndLoop nodes at depth zero are the match.
func (w *Workflow) matchEndLoop(forEachID string) (string, map[string]bool, error) {
	interior := make(map[string]bool)
	candidates := make(map[string]bool)
	seen := make(map[loopVisit]bool)

	var stack []loopVisit
	for _, s := range w.Successors(forEachID) {
		stack = append(stack, loopVisit{id: s, depth: 0})
	}

	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[v] {
			continue
		}
		seen[v] = true

		node := w.NodeByID(v.id)
		if node == nil {
			return "", nil, fmt.Errorf("edge references unknown node %q", v.id)
		}

		switch node.Kind {
		case KindEndLoop:
			if v.depth == 0 {
				candidates[v.id] = true
				continue // stop at the match; what follows is top-level
			}
			interior[v.id] = true
			for _, s := range w.Successors(v.id) {
				stack = append(stack, loopVisit{id: s, depth: v.depth - 1})
			}
		case KindForEach:
			interior[v.id] = true
			for _, s := range w.Successors(v.id) {
				stack = append(stack, loopVisit{id: s, depth: v.depth + 1})
			}
		default:
			interior[v.id] = true
			for _, s := range w.Successors(v.id) {
				stack = append(stack, loopVisit{id: s, depth: v.depth})
			}
		}
	}

	if len(candidates) != 1 {
		return "", nil, fmt.Errorf("foreach node %q has %d matching endloop nodes, want exactly 1", forEachID, len(candidates))
	}
	for id := range candidates {
		return id, interior, nil
	}
	return "", nil, nil // unreachable
}

// LoopRegions pairs every ForEach node with its matching EndLoop. Regions are
// returned in ForEach declaration order; nested regions appear both as their
// own entry and inside the enclosing region's interior.
func (w *Workflow) LoopRegions() ([]LoopRegion, error) {
	var regions []LoopRegion
	for _, n := range w.Nodes {
		if n.Kind != KindForEach {
			continue
		}
		end, interiorSet, err := w.matchEndLoop(n.ID)
		if err != nil {
			return nil, err
		}
		var interior []string
		for _, cand := range w.Nodes {
			if interiorSet[cand.ID] {
				interior = append(interior, cand.ID)
			}
		}
		regions = append(regions, LoopRegion{ForEach: n.ID, EndLoop: end, Interior: interior})
	}
	return regions, nil
}

// CollapsedOrder returns the top-level topological order of the workflow with
// every loop region collapsed: interior nodes are omitted and each
// ForEach/EndLoop pair is linked by a synthetic edge so the pair schedules as
// one unit. Returns an error if the collapsed graph contains a cycle.
func (w *Workflow) CollapsedOrder() ([]string, error) {
	regions, err := w.LoopRegions()
	if err != nil {
		return nil, err
	}

	interior := make(map[string]bool)
	for _, r := range regions {
		for _, id := range r.Interior {
			interior[id] = true
		}
	}

	subset := make(map[string]bool, len(w.Nodes))
	for _, n := range w.Nodes {
		if !interior[n.ID] {
			subset[n.ID] = true
		}
	}

	var synthetic []Edge
	for _, r := range regions {
		if subset[r.ForEach] {
			synthetic = append(synthetic, Edge{From: r.ForEach, To: r.EndLoop})
		}
	}

	return w.kahnOrder(subset, synthetic)
}

// OrderWithin returns the topological order of a loop region's interior, with
// nested regions collapsed the same way CollapsedOrder collapses top-level
// ones. The ForEach and EndLoop delimiting the region are not included.
func (w *Workflow) OrderWithin(region LoopRegion) ([]string, error) {
	regions, err := w.LoopRegions()
	if err != nil {
		return nil, err
	}

	inRegion := make(map[string]bool, len(region.Interior))
	for _, id := range region.Interior {
		inRegion[id] = true
	}

	// Collapse regions nested inside this one. A region's own ForEach and
	// EndLoop are not part of its interior, so directly nested pairs survive
	// the subtraction and schedule as single units, while deeper pairs fall
	// away with the interior that contains them.
	nestedInterior := make(map[string]bool)
	for _, r := range regions {
		if !inRegion[r.ForEach] {
			continue
		}
		for _, id := range r.Interior {
			nestedInterior[id] = true
		}
	}

	subset := make(map[string]bool)
	for _, id := range region.Interior {
		if !nestedInterior[id] {
			subset[id] = true
		}
	}

	var synthetic []Edge
	for _, r := range regions {
		if subset[r.ForEach] {
			synthetic = append(synthetic, Edge{From: r.ForEach, To: r.EndLoop})
		}
	}

	return w.kahnOrder(subset, synthetic)
}

// kahnOrder runs Kahn's algorithm over the node subset, considering only
// edges with both endpoints in the subset plus the given synthetic edges.
// Ties break by node declaration order so walks are deterministic.
func (w *Workflow) kahnOrder(subset map[string]bool, synthetic []Edge) ([]string, error) {
	edges := make([]Edge, 0, len(w.Edges)+len(synthetic))
	for _, e := range w.Edges {
		if subset[e.From] && subset[e.To] {
			edges = append(edges, e)
		}
	}
	edges = append(edges, synthetic...)

	indeg := make(map[string]int, len(subset))
	for id := range subset {
		indeg[id] = 0
	}
	for _, e := range edges {
		indeg[e.To]++
	}

	decl := w.declIndex()
	order := make([]string, 0, len(subset))
	remaining := len(subset)

	for remaining > 0 {
		next := ""
		for id, d := range indeg {
			if d != 0 {
				continue
			}
			if next == "" || decl[id] < decl[next] {
				next = id
			}
		}
		if next == "" {
			return nil, fmt.Errorf("workflow graph contains a cycle outside loop regions")
		}
		order = append(order, next)
		delete(indeg, next)
		remaining--
		for _, e := range edges {
			if e.From == next {
				if _, ok := indeg[e.To]; ok {
					indeg[e.To]--
				}
			}
		}
	}

	return order, nil
}
