// Package httpcall performs HTTP requests for http nodes. Non-2xx responses
// are data, not errors: the status code lands in the output and downstream
// nodes decide what to do with it.
package httpcall

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/engine"
	"github.com/wehubfusion/Daedalus/pkg/workflow"
)

// DefaultTimeout applies when a node sets no timeout.
const DefaultTimeout = 30 * time.Second

// MaxResponseBytes caps how much of a response body is read.
const MaxResponseBytes = 10 << 20

// Config controls the HTTP executor.
type Config struct {
	// Client is the HTTP client to use. Nil means a default client; the
	// per-request timeout comes from the node config either way.
	Client *http.Client

	// Logger is optional.
	Logger *zap.Logger
}

// Executor performs http node requests.
type Executor struct {
	client *http.Client
	logger *zap.Logger
}

// New creates the executor.
func New(cfg Config) *Executor {
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{client: client, logger: logger}
}

func (e *Executor) Kind() workflow.NodeKind { return workflow.KindHTTP }

// Execute issues the request described by the node config: method, url,
// headers, params (query string), body, timeout (seconds).
func (e *Executor) Execute(ctx context.Context, node workflow.Node, input interface{}) (interface{}, error) {
	rawURL, _ := node.Config["url"].(string)
	if rawURL == "" {
		return nil, fmt.Errorf("http node %s has no url", node.ID)
	}

	method, _ := node.Config["method"].(string)
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodGet
	}

	timeout := DefaultTimeout
	if secs, ok := node.Config["timeout"].(float64); ok && secs > 0 {
		timeout = time.Duration(secs * float64(time.Second))
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if params, ok := node.Config["params"].(map[string]interface{}); ok {
		query := target.Query()
		for k, v := range params {
			query.Set(k, engine.Stringify(v))
		}
		target.RawQuery = query.Encode()
	}

	var body io.Reader
	contentType := ""
	switch b := node.Config["body"].(type) {
	case nil:
	case string:
		if b != "" {
			body = strings.NewReader(b)
		}
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(raw)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if headers, ok := node.Config["headers"].(map[string]interface{}); ok {
		for k, v := range headers {
			req.Header.Set(k, engine.Stringify(v))
		}
	}

	started := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	e.logger.Debug("http request completed",
		zap.String("node_id", node.ID),
		zap.String("method", method),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(started)))

	var data interface{}
	if len(raw) == 0 {
		data = nil
	} else if err := json.Unmarshal(raw, &data); err != nil {
		data = string(raw)
	}

	respHeaders := make(map[string]interface{}, len(resp.Header))
	for k := range resp.Header {
		respHeaders[k] = resp.Header.Get(k)
	}

	return map[string]interface{}{
		"status_code": resp.StatusCode,
		"headers":     respHeaders,
		"data":        data,
		"url":         target.String(),
		"method":      method,
	}, nil
}
