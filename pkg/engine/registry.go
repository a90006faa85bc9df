package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/wehubfusion/Daedalus/pkg/workflow"
)

// NodeExecutor performs the work of one node kind. Execute receives the node
// with its config already template-resolved (except CodeExec) and the
// upstream output as input.
type NodeExecutor interface {
	Kind() workflow.NodeKind
	Execute(ctx context.Context, node workflow.Node, input interface{}) (interface{}, error)
}

// Registry maps node kinds to executors. Control kinds (Start, End,
// Condition, ForEach, EndLoop) are handled by the engine and never dispatch
// here.
type Registry struct {
	executors map[workflow.NodeKind]NodeExecutor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[workflow.NodeKind]NodeExecutor)}
}

// Register adds an executor, rejecting duplicates and control kinds.
func (r *Registry) Register(executor NodeExecutor) error {
	if executor == nil {
		return fmt.Errorf("executor cannot be nil")
	}
	kind := executor.Kind()
	if kind.IsControl() {
		return fmt.Errorf("kind %s is engine-owned and cannot have an executor", kind)
	}
	if _, exists := r.executors[kind]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateExecutor, kind)
	}
	r.executors[kind] = executor
	return nil
}

// Has reports whether an executor is registered for the kind.
func (r *Registry) Has(kind workflow.NodeKind) bool {
	_, ok := r.executors[kind]
	return ok
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []workflow.NodeKind {
	kinds := make([]workflow.NodeKind, 0, len(r.executors))
	for k := range r.executors {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Execute dispatches a node to its executor. Config templates are resolved
// against the input first, except for CodeExec where braces are code syntax.
// Executor panics are recovered and returned as errors so a misbehaving
// executor can never take down a run.
func (r *Registry) Execute(ctx context.Context, node workflow.Node, input interface{}) (output interface{}, err error) {
	executor, ok := r.executors[node.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoExecutor, node.Kind)
	}

	if node.Kind != workflow.KindCodeExec && node.Config != nil {
		resolved, _ := ResolveValue(node.Config, input).(map[string]interface{})
		node.Config = resolved
	}

	defer func() {
		if rec := recover(); rec != nil {
			output = nil
			err = fmt.Errorf("executor for %s panicked: %v", node.Kind, rec)
		}
	}()

	return executor.Execute(ctx, node, input)
}
