// Package code executes a node's JavaScript in a sandboxed goja VM. Scripts
// see the upstream output as the global `input`; the value of the final
// expression becomes the node output.
package code

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/workflow"
)

// ErrUnsupportedLanguage is returned for language tags other than JavaScript.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// ErrTimeout is returned when a script exceeds its time budget.
var ErrTimeout = errors.New("script execution timed out")

const interruptReason = "execution deadline exceeded"

// Executor runs JavaScript node code.
type Executor struct {
	cfg    Config
	pool   chan *goja.Runtime
	logger *zap.Logger
}

// New creates the executor with a warm VM pool.
func New(cfg Config) (*Executor, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	pool := make(chan *goja.Runtime, cfg.PoolSize)
	for i := 0; i < cfg.PoolSize; i++ {
		pool <- newSandboxedVM()
	}
	return &Executor{cfg: cfg, pool: pool, logger: logger}, nil
}

func (e *Executor) Kind() workflow.NodeKind { return workflow.KindCodeExec }

// Execute runs the node's script. The VM used is discarded afterwards and a
// fresh one returned to the pool, so scripts never observe each other's
// globals.
func (e *Executor) Execute(ctx context.Context, node workflow.Node, input interface{}) (interface{}, error) {
	script, _ := node.Config["code"].(string)
	if strings.TrimSpace(script) == "" {
		return nil, fmt.Errorf("code node %s has no code", node.ID)
	}
	if language, ok := node.Config["language"].(string); ok && language != "" {
		switch strings.ToLower(language) {
		case "javascript", "js":
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, language)
		}
	}

	timeout := e.cfg.DefaultTimeout
	if ms, ok := node.Config["timeout_ms"].(float64); ok && ms > 0 {
		timeout = time.Duration(ms) * time.Millisecond
		if timeout > MaxTimeout {
			timeout = MaxTimeout
		}
	}

	vm := e.acquire()
	defer e.release()

	if err := vm.Set("input", input); err != nil {
		return nil, fmt.Errorf("binding input: %w", err)
	}

	watchDone := make(chan struct{})
	timer := time.AfterFunc(timeout, func() { vm.Interrupt(interruptReason) })
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-watchDone:
		}
	}()

	started := time.Now()
	value, err := vm.RunString(script)
	timer.Stop()
	close(watchDone)

	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.logger.Warn("script interrupted",
				zap.String("node_id", node.ID),
				zap.Duration("timeout", timeout))
			return nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}
		return nil, fmt.Errorf("script error: %w", err)
	}

	e.logger.Debug("script executed",
		zap.String("node_id", node.ID),
		zap.Duration("took", time.Since(started)))

	return normalize(value.Export()), nil
}

// acquire takes a VM from the pool, creating one if the pool is exhausted.
func (e *Executor) acquire() *goja.Runtime {
	select {
	case vm := <-e.pool:
		return vm
	default:
		return newSandboxedVM()
	}
}

// release refills the pool with a fresh VM. The used one is dropped.
func (e *Executor) release() {
	select {
	case e.pool <- newSandboxedVM():
	default:
	}
}

// normalize converts goja's exported value into the JSON value shapes the
// rest of the engine works with.
func normalize(v interface{}) interface{} {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Sprintf("%v", v)
	}
	return out
}
