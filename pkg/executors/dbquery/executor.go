// Package dbquery runs SQL against sqlite database files for database nodes.
// Database files live under a fixed root directory; the driver is the pure-Go
// modernc sqlite port so no cgo is involved.
package dbquery

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	_ "modernc.org/sqlite"

	"github.com/wehubfusion/Daedalus/pkg/workflow"
)

var (
	// ErrPathOutsideRoot is returned for database paths escaping the root.
	ErrPathOutsideRoot = errors.New("database path resolves outside the root")

	// ErrUnknownOperation is returned for operations other than query/execute.
	ErrUnknownOperation = errors.New("unknown database operation")
)

// Config controls the database executor.
type Config struct {
	// Root is the directory database files are resolved under. Required.
	Root string

	// Logger is optional.
	Logger *zap.Logger
}

// Executor runs database node queries.
type Executor struct {
	root   string
	logger *zap.Logger
}

// New creates the executor, creating the root directory if needed.
func New(cfg Config) (*Executor, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("database root is required")
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving database root: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating database root: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{root: root, logger: logger}, nil
}

func (e *Executor) Kind() workflow.NodeKind { return workflow.KindDBQuery }

// Execute runs the configured SQL. Operation "query" returns rows, "execute"
// returns the write summary; when unset it is inferred from the statement.
func (e *Executor) Execute(ctx context.Context, node workflow.Node, _ interface{}) (interface{}, error) {
	database, _ := node.Config["database"].(string)
	if database == "" {
		return nil, fmt.Errorf("database node %s has no database", node.ID)
	}
	query, _ := node.Config["query"].(string)
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("database node %s has no query", node.ID)
	}

	operation, _ := node.Config["operation"].(string)
	operation = strings.ToLower(strings.TrimSpace(operation))
	if operation == "" {
		operation = inferOperation(query)
	}

	var params []interface{}
	if list, ok := node.Config["params"].([]interface{}); ok {
		params = list
	}

	path := filepath.Clean(filepath.Join(e.root, database))
	if path != e.root && !strings.HasPrefix(path, e.root+string(os.PathSeparator)) {
		return nil, fmt.Errorf("%w: %q", ErrPathOutsideRoot, database)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	e.logger.Debug("database operation",
		zap.String("node_id", node.ID),
		zap.String("operation", operation),
		zap.String("database", database))

	switch operation {
	case "query":
		return e.query(ctx, db, query, params)
	case "execute":
		return e.exec(ctx, db, query, params)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, operation)
	}
}

func inferOperation(query string) string {
	head := strings.ToUpper(strings.TrimSpace(query))
	for _, prefix := range []string{"SELECT", "WITH", "PRAGMA", "EXPLAIN"} {
		if strings.HasPrefix(head, prefix) {
			return "query"
		}
	}
	return "execute"
}

func (e *Executor) query(ctx context.Context, db *sql.DB, query string, params []interface{}) (interface{}, error) {
	rows, err := db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	out := make([]interface{}, 0)
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			if raw, ok := values[i].([]byte); ok {
				row[col] = string(raw)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	return map[string]interface{}{
		"rows":  out,
		"count": len(out),
	}, nil
}

func (e *Executor) exec(ctx context.Context, db *sql.DB, query string, params []interface{}) (interface{}, error) {
	result, err := db.ExecContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("statement failed: %w", err)
	}
	affected, _ := result.RowsAffected()
	lastID, _ := result.LastInsertId()
	return map[string]interface{}{
		"rows_affected": affected,
		"last_row_id":   lastID,
	}, nil
}
