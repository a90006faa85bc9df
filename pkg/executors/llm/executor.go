// Package llm calls an OpenAI-compatible chat-completions API for llm nodes.
// The provider selects a default base URL; base_url overrides it, which is
// how self-hosted gateways are reached.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/workflow"
)

// DefaultTimeout applies when a node sets no timeout.
const DefaultTimeout = 60 * time.Second

// ErrUnknownProvider is returned when neither provider nor base_url resolve
// to an endpoint.
var ErrUnknownProvider = errors.New("unknown llm provider")

// providerBaseURLs maps provider names to their OpenAI-compatible API roots.
var providerBaseURLs = map[string]string{
	"openai": "https://api.openai.com/v1",
	"ollama": "http://localhost:11434/v1",
}

// BaseURLFor resolves the API root for a provider/base_url pair.
func BaseURLFor(provider, baseURL string) (string, error) {
	if baseURL != "" {
		return strings.TrimRight(baseURL, "/"), nil
	}
	if url, ok := providerBaseURLs[strings.ToLower(provider)]; ok {
		return url, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
}

// Config controls the llm executor.
type Config struct {
	// Client is the HTTP client to use. Nil means a default client.
	Client *http.Client

	// APIKey is the fallback key when a node config carries none.
	APIKey string

	// Logger is optional.
	Logger *zap.Logger
}

// Executor performs llm node completions.
type Executor struct {
	client *http.Client
	apiKey string
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
	return &Executor{client: client, apiKey: cfg.APIKey, logger: logger}
}

func (e *Executor) Kind() workflow.NodeKind { return workflow.KindLLM }

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Execute sends the node's prompt. The user prompt (already template
// resolved) gets the node input appended as compact JSON so the model always
// sees the upstream data.
func (e *Executor) Execute(ctx context.Context, node workflow.Node, input interface{}) (interface{}, error) {
	provider, _ := node.Config["provider"].(string)
	baseURL, _ := node.Config["base_url"].(string)
	root, err := BaseURLFor(provider, baseURL)
	if err != nil {
		return nil, err
	}

	model, _ := node.Config["model"].(string)
	if model == "" {
		return nil, fmt.Errorf("llm node %s has no model", node.ID)
	}

	user, _ := node.Config["user"].(string)
	if input != nil {
		raw, err := json.Marshal(input)
		if err == nil {
			user = user + "\n\nInput:\n" + string(raw)
		}
	}

	messages := []map[string]interface{}{}
	if system, ok := node.Config["system"].(string); ok && system != "" {
		messages = append(messages, map[string]interface{}{"role": "system", "content": system})
	}
	messages = append(messages, map[string]interface{}{"role": "user", "content": user})

	payload := map[string]interface{}{
		"model":    model,
		"messages": messages,
	}
	if temperature, ok := node.Config["temperature"].(float64); ok {
		payload["temperature"] = temperature
	}
	if maxTokens, ok := node.Config["max_tokens"].(float64); ok && maxTokens > 0 {
		payload["max_tokens"] = int(maxTokens)
	}

	timeout := DefaultTimeout
	if secs, ok := node.Config["timeout"].(float64); ok && secs > 0 {
		timeout = time.Duration(secs * float64(time.Second))
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	apiKey, _ := node.Config["api_key"].(string)
	if apiKey == "" {
		apiKey = e.apiKey
	}

	started := time.Now()
	var parsed chatResponse
	if err := PostJSON(ctx, e.client, root+"/chat/completions", apiKey, payload, &parsed); err != nil {
		return nil, err
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("llm request failed: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("llm response has no choices")
	}

	e.logger.Debug("completion finished",
		zap.String("node_id", node.ID),
		zap.String("model", model),
		zap.Int("tokens", parsed.Usage.TotalTokens),
		zap.Duration("took", time.Since(started)))

	respModel := parsed.Model
	if respModel == "" {
		respModel = model
	}
	return map[string]interface{}{
		"content":       parsed.Choices[0].Message.Content,
		"model":         respModel,
		"provider":      provider,
		"tokens_used":   parsed.Usage.TotalTokens,
		"finish_reason": parsed.Choices[0].FinishReason,
	}, nil
}

// PostJSON sends an authorized JSON POST and decodes the response into out.
// Shared with the embedding executor.
func PostJSON(ctx context.Context, client *http.Client, url, apiKey string, payload interface{}, out interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
