package engine

import (
	"time"

	"github.com/wehubfusion/Daedalus/pkg/workflow"
)

// Status is the terminal outcome of one node execution.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusSkipped Status = "skipped"
)

// Record captures the execution of a single node: its outcome, output, and
// timing. Executor failures land in Error; they never abort the run.
type Record struct {
	NodeID     string            `json:"node_id"`
	Kind       workflow.NodeKind `json:"kind"`
	Status     Status            `json:"status"`
	Output     interface{}       `json:"output,omitempty"`
	Error      string            `json:"error,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	DurationMs int64             `json:"duration_ms"`

	// Iterations is populated on EndLoop records only: one trace per loop
	// iteration, in item order.
	Iterations []IterationTrace `json:"iterations,omitempty"`
}

// IterationTrace holds the per-node records produced by one loop iteration.
type IterationTrace struct {
	Index   int      `json:"index"`
	Status  Status   `json:"status"`
	Error   string   `json:"error,omitempty"`
	Records []Record `json:"records,omitempty"`
}
