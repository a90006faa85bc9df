// Package fileops performs file operations for file nodes, confined to a
// sandbox root directory. Any path resolving outside the root is rejected.
package fileops

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/workflow"
)

var (
	// ErrPathOutsideRoot is returned for paths escaping the sandbox root.
	ErrPathOutsideRoot = errors.New("path resolves outside the sandbox root")

	// ErrUnknownOperation is returned for unrecognized operations.
	ErrUnknownOperation = errors.New("unknown file operation")
)

// Config controls the file executor.
type Config struct {
	// Root is the directory all node paths are resolved under. Required.
	Root string

	// Logger is optional.
	Logger *zap.Logger
}

// Executor performs file node operations.
type Executor struct {
	root   string
	logger *zap.Logger
}

// New creates the executor, creating the root directory if needed.
func New(cfg Config) (*Executor, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("sandbox root is required")
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving sandbox root: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating sandbox root: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{root: root, logger: logger}, nil
}

func (e *Executor) Kind() workflow.NodeKind { return workflow.KindFileOp }

// Execute performs the configured operation: read, write, append, delete,
// list, or exists. Content encoding is utf-8 or base64.
func (e *Executor) Execute(_ context.Context, node workflow.Node, _ interface{}) (interface{}, error) {
	operation, _ := node.Config["operation"].(string)
	relPath, _ := node.Config["path"].(string)
	content, _ := node.Config["content"].(string)
	encoding, _ := node.Config["encoding"].(string)
	if encoding == "" {
		encoding = "utf-8"
	}

	path, err := e.resolve(relPath)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("file operation",
		zap.String("node_id", node.ID),
		zap.String("operation", operation),
		zap.String("path", relPath))

	switch strings.ToLower(operation) {
	case "read":
		return e.read(path, encoding)
	case "write":
		return e.write(path, content, encoding, false)
	case "append":
		return e.write(path, content, encoding, true)
	case "delete":
		return e.delete(path)
	case "list":
		return e.list(path)
	case "exists":
		_, err := os.Stat(path)
		return map[string]interface{}{"exists": err == nil}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, operation)
	}
}

// resolve joins a node path onto the root and rejects escapes.
func (e *Executor) resolve(relPath string) (string, error) {
	if relPath == "" {
		return "", fmt.Errorf("path is required")
	}
	full := filepath.Clean(filepath.Join(e.root, relPath))
	if full != e.root && !strings.HasPrefix(full, e.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %q", ErrPathOutsideRoot, relPath)
	}
	return full, nil
}

func (e *Executor) read(path, encoding string) (interface{}, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	var content string
	if encoding == "base64" {
		content = base64.StdEncoding.EncodeToString(raw)
	} else {
		content = string(raw)
	}
	return map[string]interface{}{
		"content": content,
		"size":    len(raw),
	}, nil
}

func (e *Executor) write(path, content, encoding string, appendMode bool) (interface{}, error) {
	var raw []byte
	if encoding == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(content)
		if err != nil {
			return nil, fmt.Errorf("decoding base64 content: %w", err)
		}
		raw = decoded
	} else {
		raw = []byte(content)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating parent directory: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	n, err := f.Write(raw)
	if err != nil {
		return nil, fmt.Errorf("writing file: %w", err)
	}
	return map[string]interface{}{
		"bytes_written": n,
		"success":       true,
	}, nil
}

func (e *Executor) delete(path string) (interface{}, error) {
	err := os.Remove(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]interface{}{"deleted": false}, nil
		}
		return nil, fmt.Errorf("deleting file: %w", err)
	}
	return map[string]interface{}{"deleted": true}, nil
}

func (e *Executor) list(path string) (interface{}, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("listing directory: %w", err)
	}
	files := make([]interface{}, 0, len(entries))
	for _, entry := range entries {
		files = append(files, entry.Name())
	}
	return map[string]interface{}{
		"files": files,
		"count": len(files),
	}, nil
}
