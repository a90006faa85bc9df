// Package engine executes workflow graphs: it walks nodes in collapsed
// topological order, resolves config templates, dispatches work through an
// executor registry, evaluates condition branching, and drives ForEach loop
// regions. A run always completes and returns one record per node; only
// graph validation can abort it.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/workflow"
)

// Engine runs workflows against a registry of node executors. Safe for
// concurrent use; each Run carries its own state.
type Engine struct {
	registry *Registry
	cfg      Config
	logger   *zap.Logger
	tracer   trace.Tracer
}

// New creates an engine. The registry is required; Config zero values are
// filled with defaults.
func New(registry *Registry, cfg Config) (*Engine, error) {
	if registry == nil {
		return nil, ErrNilRegistry
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer("daedalus/engine")
	}
	return &Engine{registry: registry, cfg: cfg, logger: logger, tracer: tracer}, nil
}

// Run executes the workflow from its start node with the given initial input
// and returns the execution record of every node reached by the walk. The
// error is non-nil only when the graph fails validation; executor failures
// are reported through the records.
func (e *Engine) Run(ctx context.Context, wf *workflow.Workflow, input interface{}) ([]Record, error) {
	if wf == nil {
		return nil, ErrNilWorkflow
	}
	if err := wf.Validate(); err != nil {
		return nil, err
	}

	order, err := wf.CollapsedOrder()
	if err != nil {
		return nil, err
	}
	regionList, err := wf.LoopRegions()
	if err != nil {
		return nil, err
	}
	regions := make(map[string]workflow.LoopRegion, len(regionList))
	for _, r := range regionList {
		regions[r.ForEach] = r
	}

	runID := uuid.NewString()
	logger := e.logger.With(zap.String("run_id", runID), zap.String("workflow_id", wf.ID))

	ctx, span := e.tracer.Start(ctx, "workflow.run", trace.WithAttributes(
		attribute.String("workflow.id", wf.ID),
		attribute.String("run.id", runID),
	))
	defer span.End()

	logger.Info("workflow run started",
		zap.Int("nodes", len(wf.Nodes)),
		zap.Int("edges", len(wf.Edges)))

	s := &session{engine: e, wf: wf, regions: regions, runID: runID, logger: logger}
	records, _ := s.walk(ctx, order, input, -1)

	var succeeded, failed, skipped int
	for _, r := range records {
		switch r.Status {
		case StatusSuccess:
			succeeded++
		case StatusError:
			failed++
		case StatusSkipped:
			skipped++
		}
	}
	span.SetAttributes(
		attribute.Int("run.succeeded", succeeded),
		attribute.Int("run.failed", failed),
		attribute.Int("run.skipped", skipped),
	)
	logger.Info("workflow run completed",
		zap.Int("succeeded", succeeded),
		zap.Int("failed", failed),
		zap.Int("skipped", skipped))

	return records, nil
}

// session is the per-run state shared by the top-level walk and every loop
// iteration walk.
type session struct {
	engine  *Engine
	wf      *workflow.Workflow
	regions map[string]workflow.LoopRegion
	runID   string
	logger  *zap.Logger
}

// walk executes the given node order. Nodes with no predecessor inside the
// order receive entryInput; all others receive the output of their first
// feeding predecessor in edge declaration order. itemIndex is -1 at the top
// level and the loop item index inside an iteration.
func (s *session) walk(ctx context.Context, order []string, entryInput interface{}, itemIndex int) ([]Record, map[string]interface{}) {
	scope := make(map[string]bool, len(order))
	for _, id := range order {
		scope[id] = true
	}

	outputs := make(map[string]interface{})
	handled := make(map[string]bool)
	notTaken := make(map[workflow.Edge]bool)
	var records []Record

	for _, id := range order {
		if handled[id] {
			continue
		}
		node := s.wf.NodeByID(id)

		input, fed, hasPreds := s.inputFor(id, scope, outputs, notTaken)
		if !hasPreds {
			input, fed = entryInput, true
		}

		if !fed {
			// Every feeding edge failed, was skipped without pass-through, or
			// was not taken by a condition.
			records = append(records, skippedRecord(node))
			if node.Kind == workflow.KindForEach {
				region := s.regions[id]
				records = append(records, skippedRecord(s.wf.NodeByID(region.EndLoop)))
				handled[region.EndLoop] = true
			}
			continue
		}

		switch node.Kind {
		case workflow.KindForEach:
			region := s.regions[id]
			feRec, elRec := s.runLoop(ctx, node, region, input)
			records = append(records, feRec, elRec)
			outputs[id] = feRec.Output
			outputs[region.EndLoop] = elRec.Output
			handled[region.EndLoop] = true

		case workflow.KindEndLoop:
			// Reached only if its ForEach was outside this order, which
			// validation rules out. Record it skipped rather than guessing.
			records = append(records, skippedRecord(node))

		default:
			rec, out, target := s.executeNode(ctx, node, input, itemIndex)
			records = append(records, rec)
			if rec.Status == StatusSuccess || (rec.Status == StatusSkipped && node.Skip) {
				outputs[id] = out
			}
			if node.Kind == workflow.KindCondition && rec.Status == StatusSuccess && target != "" {
				for _, e := range s.wf.Edges {
					if e.From == id && e.To != target {
						notTaken[e] = true
					}
				}
			}
		}
	}

	return records, outputs
}

// inputFor selects the node's input: the output of the first predecessor in
// edge declaration order that produced one, over a taken edge. fed is false
// when predecessors exist but none feeds; hasPreds is false when the node
// has no predecessor inside the scope.
func (s *session) inputFor(id string, scope map[string]bool, outputs map[string]interface{}, notTaken map[workflow.Edge]bool) (interface{}, bool, bool) {
	hasPreds := false
	for _, e := range s.wf.Edges {
		if e.To != id || !scope[e.From] {
			continue
		}
		hasPreds = true
		if notTaken[e] {
			continue
		}
		if out, ok := outputs[e.From]; ok {
			return out, true, true
		}
	}
	return nil, false, hasPreds
}

// executeNode runs one non-loop node and returns its record, its feeding
// output, and, for condition nodes, the routing target.
func (s *session) executeNode(ctx context.Context, node *workflow.Node, input interface{}, itemIndex int) (Record, interface{}, string) {
	started := time.Now()
	rec := Record{NodeID: node.ID, Kind: node.Kind, StartedAt: started}
	var out interface{}
	var target string

	ctx, span := s.engine.tracer.Start(ctx, "workflow.node", trace.WithAttributes(
		attribute.String("node.id", node.ID),
		attribute.String("node.kind", string(node.Kind)),
	))

	switch node.Kind {
	case workflow.KindStart, workflow.KindEnd:
		out = input
		rec.Status = StatusSuccess
		rec.Output = out

	case workflow.KindCondition:
		output, tgt, err := evaluateCondition(node, input)
		if err != nil {
			rec.Status = StatusError
			rec.Error = (&NodeError{NodeID: node.ID, Kind: node.Kind, ItemIndex: itemIndex, Cause: err}).Error()
		} else {
			out = output
			target = tgt
			rec.Status = StatusSuccess
			rec.Output = out
		}

	default:
		if node.Skip {
			rec.Status = StatusSkipped
			rec.Output = input
			out = input
		} else {
			output, err := s.engine.registry.Execute(ctx, *node, input)
			if err != nil {
				rec.Status = StatusError
				rec.Error = (&NodeError{NodeID: node.ID, Kind: node.Kind, ItemIndex: itemIndex, Cause: err}).Error()
				s.logger.Warn("node execution failed",
					zap.String("node_id", node.ID),
					zap.String("kind", string(node.Kind)),
					zap.Error(err))
			} else {
				out = output
				rec.Status = StatusSuccess
				rec.Output = out
			}
		}
	}

	rec.DurationMs = time.Since(started).Milliseconds()
	span.SetAttributes(attribute.String("node.status", string(rec.Status)))
	span.End()

	s.logger.Debug("node executed",
		zap.String("node_id", node.ID),
		zap.String("kind", string(node.Kind)),
		zap.String("status", string(rec.Status)),
		zap.Int64("duration_ms", rec.DurationMs))

	return rec, out, target
}

func skippedRecord(node *workflow.Node) Record {
	return Record{
		NodeID:    node.ID,
		Kind:      node.Kind,
		Status:    StatusSkipped,
		StartedAt: time.Now(),
	}
}
