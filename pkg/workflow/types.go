// Package workflow defines the node/edge graph model executed by the engine,
// along with graph validation, loop-region pairing, and the collapsed
// topological ordering used to schedule a run.
package workflow

// NodeKind identifies the type of work a node performs.
type NodeKind string

const (
	KindStart        NodeKind = "start"
	KindEnd          NodeKind = "end"
	KindCodeExec     NodeKind = "code"
	KindHTTP         NodeKind = "http"
	KindFileOp       NodeKind = "file"
	KindCondition    NodeKind = "condition"
	KindDBQuery      NodeKind = "database"
	KindLLM          NodeKind = "llm"
	KindEmbedding    NodeKind = "embedding"
	KindForEach      NodeKind = "foreach"
	KindEndLoop      NodeKind = "endloop"
	KindMarkdownView NodeKind = "markdown_view"
	KindHTMLView     NodeKind = "html_view"
)

// IsControl reports whether nodes of this kind are handled by the engine
// itself rather than dispatched through the executor registry.
func (k NodeKind) IsControl() bool {
	switch k {
	case KindStart, KindEnd, KindCondition, KindForEach, KindEndLoop:
		return true
	}
	return false
}

// Node is one typed unit of work in a workflow graph. Config is read-only to
// the engine; Start, End, and EndLoop nodes carry no config.
type Node struct {
	ID     string                 `json:"id"`
	Kind   NodeKind               `json:"kind"`
	Config map[string]interface{} `json:"config,omitempty"`

	// Skip short-circuits execution: the node's input passes through
	// unchanged and its executor is never invoked.
	Skip bool `json:"skipDuringExecution,omitempty"`
}

// Edge is a directed connection from one node's output to another's input.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Workflow is a node/edge graph handed to the engine as an already-parsed
// structure. It is immutable for the duration of one run.
type Workflow struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// NodeByID returns the node with the given id, or nil.
func (w *Workflow) NodeByID(id string) *Node {
	for i := range w.Nodes {
		if w.Nodes[i].ID == id {
			return &w.Nodes[i]
		}
	}
	return nil
}

// StartNode returns the workflow's start node, or nil if absent.
func (w *Workflow) StartNode() *Node {
	for i := range w.Nodes {
		if w.Nodes[i].Kind == KindStart {
			return &w.Nodes[i]
		}
	}
	return nil
}
