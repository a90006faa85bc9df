// Package registry assembles the built-in node executors into an engine
// registry.
package registry

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/engine"
	"github.com/wehubfusion/Daedalus/pkg/executors/code"
	"github.com/wehubfusion/Daedalus/pkg/executors/dbquery"
	"github.com/wehubfusion/Daedalus/pkg/executors/embedding"
	"github.com/wehubfusion/Daedalus/pkg/executors/fileops"
	"github.com/wehubfusion/Daedalus/pkg/executors/httpcall"
	"github.com/wehubfusion/Daedalus/pkg/executors/llm"
	"github.com/wehubfusion/Daedalus/pkg/executors/view"
)

// Config selects and configures the built-in executors.
type Config struct {
	// SandboxRoot is the directory for file nodes. Empty disables them.
	SandboxRoot string

	// DatabaseRoot is the directory for database nodes. Empty disables them.
	DatabaseRoot string

	// CodePoolSize is the JavaScript VM pool size; 0 uses the default.
	CodePoolSize int

	// HTTPClient is shared by the http, llm, and embedding executors. Nil
	// means a default client.
	HTTPClient *http.Client

	// LLMAPIKey is the fallback key for llm and embedding nodes.
	LLMAPIKey string

	// Logger is passed to every executor. Optional.
	Logger *zap.Logger
}

// New builds a registry with every executor the config enables.
func New(cfg Config) (*engine.Registry, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	registry := engine.NewRegistry()

	codeExec, err := code.New(code.Config{PoolSize: cfg.CodePoolSize, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("code executor: %w", err)
	}

	executors := []engine.NodeExecutor{
		codeExec,
		httpcall.New(httpcall.Config{Client: cfg.HTTPClient, Logger: logger}),
		llm.New(llm.Config{Client: cfg.HTTPClient, APIKey: cfg.LLMAPIKey, Logger: logger}),
		embedding.New(embedding.Config{Client: cfg.HTTPClient, APIKey: cfg.LLMAPIKey, Logger: logger}),
		view.NewMarkdown(),
		view.NewHTML(),
	}

	if cfg.SandboxRoot != "" {
		fileExec, err := fileops.New(fileops.Config{Root: cfg.SandboxRoot, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("file executor: %w", err)
		}
		executors = append(executors, fileExec)
	}
	if cfg.DatabaseRoot != "" {
		dbExec, err := dbquery.New(dbquery.Config{Root: cfg.DatabaseRoot, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("database executor: %w", err)
		}
		executors = append(executors, dbExec)
	}

	for _, executor := range executors {
		if err := registry.Register(executor); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
