package engine

import (
	"errors"
	"fmt"

	"github.com/wehubfusion/Daedalus/pkg/workflow"
)

var (
	// ErrNilWorkflow is returned by Run when no workflow is provided.
	ErrNilWorkflow = errors.New("workflow cannot be nil")

	// ErrNilRegistry is returned by New when no registry is provided.
	ErrNilRegistry = errors.New("executor registry cannot be nil")

	// ErrNoExecutor is returned when a node kind has no registered executor.
	ErrNoExecutor = errors.New("no executor registered for node kind")

	// ErrDuplicateExecutor is returned when two executors claim the same kind.
	ErrDuplicateExecutor = errors.New("executor already registered for node kind")

	// ErrUnknownOperator is returned for an unrecognized condition operator.
	ErrUnknownOperator = errors.New("unknown comparison operator")
)

// NodeError wraps an executor failure with the node it occurred on. ItemIndex
// is -1 outside loop iterations.
type NodeError struct {
	NodeID    string
	Kind      workflow.NodeKind
	ItemIndex int
	Cause     error
}

func (e *NodeError) Error() string {
	if e.ItemIndex >= 0 {
		return fmt.Sprintf("node %s (%s) item %d: %v", e.NodeID, e.Kind, e.ItemIndex, e.Cause)
	}
	return fmt.Sprintf("node %s (%s): %v", e.NodeID, e.Kind, e.Cause)
}

func (e *NodeError) Unwrap() error { return e.Cause }
