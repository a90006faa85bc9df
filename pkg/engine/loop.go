package engine

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/concurrency"
	"github.com/wehubfusion/Daedalus/pkg/workflow"
)

// loopConfig is the ForEach node configuration.
type loopConfig struct {
	// ItemsKey names the top-level (or dotted) key of the input holding the
	// item array. Empty means the input itself must be an array.
	ItemsKey string `json:"items_key"`

	// Mode is "serial" (default) or "parallel".
	Mode string `json:"mode"`

	// MaxConcurrency bounds parallel iterations; 0 uses the engine default.
	MaxConcurrency int `json:"max_concurrency"`
}

// iterationResult is the outcome of one loop iteration.
type iterationResult struct {
	index   int
	item    interface{}
	output  interface{}
	status  Status
	err     string
	records []Record
}

// runLoop executes a ForEach/EndLoop region over the extracted items and
// produces both delimiter records. Iteration failures are tolerated: they
// count into the aggregate and the loop continues.
func (s *session) runLoop(ctx context.Context, node *workflow.Node, region workflow.LoopRegion, input interface{}) (Record, Record) {
	started := time.Now()
	feRec := Record{NodeID: node.ID, Kind: workflow.KindForEach, StartedAt: started}

	var cfg loopConfig
	if node.Config != nil {
		if raw, err := json.Marshal(node.Config); err == nil {
			_ = json.Unmarshal(raw, &cfg)
		}
	}

	items := extractItems(input, cfg.ItemsKey)
	interiorOrder, err := s.wf.OrderWithin(region)
	if err != nil {
		// Validation has already ordered the interior; this cannot fail here.
		interiorOrder = nil
	}

	feRec.Status = StatusSuccess
	feRec.Output = map[string]interface{}{
		"items": items,
		"total": len(items),
	}
	feRec.DurationMs = time.Since(started).Milliseconds()

	s.logger.Debug("loop started",
		zap.String("foreach", node.ID),
		zap.String("endloop", region.EndLoop),
		zap.Int("items", len(items)),
		zap.String("mode", cfg.Mode))

	elStarted := time.Now()
	results := make([]iterationResult, len(items))

	if cfg.Mode == "parallel" && len(items) > 0 {
		maxConcurrency := cfg.MaxConcurrency
		if maxConcurrency <= 0 {
			maxConcurrency = s.engine.cfg.MaxConcurrency
		}
		limiter := concurrency.NewLimiter(maxConcurrency)
		var wg sync.WaitGroup
		for i, item := range items {
			if err := limiter.Acquire(ctx); err != nil {
				results[i] = iterationResult{index: i, item: item, status: StatusError, err: err.Error()}
				continue
			}
			wg.Add(1)
			go func(i int, item interface{}) {
				defer wg.Done()
				defer limiter.Release()
				results[i] = s.runIteration(ctx, region, interiorOrder, item, input, i)
			}(i, item)
		}
		wg.Wait()
	} else {
		for i, item := range items {
			results[i] = s.runIteration(ctx, region, interiorOrder, item, input, i)
		}
	}

	resultList := make([]interface{}, 0, len(results))
	aggregated := make([]interface{}, 0, len(results))
	traces := make([]IterationTrace, 0, len(results))
	successful, failed := 0, 0

	for _, r := range results {
		entry := map[string]interface{}{
			"item":   r.item,
			"output": r.output,
			"status": string(r.status),
		}
		if r.err != "" {
			entry["error"] = r.err
		}
		resultList = append(resultList, entry)

		if r.status == StatusSuccess {
			successful++
			aggregated = append(aggregated, r.output)
		} else {
			failed++
		}
		traces = append(traces, IterationTrace{
			Index:   r.index,
			Status:  r.status,
			Error:   r.err,
			Records: r.records,
		})
	}

	aggregate := map[string]interface{}{
		"results":            resultList,
		"aggregated_outputs": aggregated,
		"items":              items,
		"total":              len(items),
		"successful":         successful,
		"failed":             failed,
	}

	elRec := Record{
		NodeID:     region.EndLoop,
		Kind:       workflow.KindEndLoop,
		Status:     StatusSuccess,
		Output:     aggregate,
		StartedAt:  elStarted,
		DurationMs: time.Since(elStarted).Milliseconds(),
		Iterations: traces,
	}

	s.logger.Debug("loop completed",
		zap.String("foreach", node.ID),
		zap.Int("successful", successful),
		zap.Int("failed", failed))

	return feRec, elRec
}

// runIteration executes the region interior once for a single item. The item
// is deep-copied so iterations never share state, and the loop's own input is
// injected under _workflow_context (copy-in only).
func (s *session) runIteration(ctx context.Context, region workflow.LoopRegion, interiorOrder []string, item interface{}, loopInput interface{}, index int) iterationResult {
	res := iterationResult{index: index, item: item}

	merged := make(map[string]interface{})
	if obj, ok := deepCopy(item).(map[string]interface{}); ok {
		for k, v := range obj {
			merged[k] = v
		}
	} else {
		merged["item"] = deepCopy(item)
	}
	merged["_workflow_context"] = deepCopy(loopInput)

	if len(interiorOrder) == 0 {
		res.status = StatusSuccess
		res.output = merged
		return res
	}

	records, outputs := s.walk(ctx, interiorOrder, merged, index)
	res.records = records

	res.status = StatusSuccess
	for _, r := range records {
		if r.Status == StatusError {
			res.status = StatusError
			res.err = r.Error
			break
		}
	}

	// The iteration output is what would have fed the EndLoop: the first
	// feeding predecessor in edge declaration order.
	for _, pred := range s.wf.Predecessors(region.EndLoop) {
		if out, ok := outputs[pred]; ok {
			res.output = out
			break
		}
	}

	return res
}

// extractItems pulls the iteration items from the loop input: the array at
// items_key when set, else the input itself when it is an array, else no
// items (an empty loop is a valid run).
func extractItems(input interface{}, itemsKey string) []interface{} {
	if itemsKey != "" {
		v, found := LookupPath(input, itemsKey)
		if !found {
			return nil
		}
		arr, _ := v.([]interface{})
		return arr
	}
	arr, _ := input.([]interface{})
	return arr
}
