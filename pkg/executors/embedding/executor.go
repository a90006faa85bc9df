// Package embedding computes text embeddings for embedding nodes over the
// OpenAI-compatible embeddings endpoint.
package embedding

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/engine"
	"github.com/wehubfusion/Daedalus/pkg/executors/llm"
	"github.com/wehubfusion/Daedalus/pkg/workflow"
)

// DefaultTimeout applies to every embeddings request.
const DefaultTimeout = 30 * time.Second

// Config controls the embedding executor.
type Config struct {
	// Client is the HTTP client to use. Nil means a default client.
	Client *http.Client

	// APIKey is the fallback key when a node config carries none.
	APIKey string

	// Logger is optional.
	Logger *zap.Logger
}

// Executor performs embedding node requests.
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

func (e *Executor) Kind() workflow.NodeKind { return workflow.KindEmbedding }

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Execute embeds the text selected by input_field (dotted path into the
// input), or the whole input stringified when no field is set. A string
// array embeds element-wise.
func (e *Executor) Execute(ctx context.Context, node workflow.Node, input interface{}) (interface{}, error) {
	provider, _ := node.Config["provider"].(string)
	baseURL, _ := node.Config["base_url"].(string)
	root, err := llm.BaseURLFor(provider, baseURL)
	if err != nil {
		return nil, err
	}
	model, _ := node.Config["model"].(string)
	if model == "" {
		return nil, fmt.Errorf("embedding node %s has no model", node.ID)
	}

	source := input
	if field, ok := node.Config["input_field"].(string); ok && field != "" {
		value, found := engine.LookupPath(input, field)
		if !found {
			return nil, fmt.Errorf("input_field %q not found in input", field)
		}
		source = value
	}

	texts, isArray := collectTexts(source)
	if len(texts) == 0 {
		return nil, fmt.Errorf("embedding node %s has no text to embed", node.ID)
	}

	var requestInput interface{} = texts[0]
	if isArray {
		requestInput = texts
	}
	payload := map[string]interface{}{
		"model": model,
		"input": requestInput,
	}

	apiKey, _ := node.Config["api_key"].(string)
	if apiKey == "" {
		apiKey = e.apiKey
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	var parsed embeddingResponse
	if err := llm.PostJSON(ctx, e.client, root+"/embeddings", apiKey, payload, &parsed); err != nil {
		return nil, err
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("embedding request failed: %s", parsed.Error.Message)
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("embedding response has no data")
	}

	e.logger.Debug("embedding finished",
		zap.String("node_id", node.ID),
		zap.String("model", model),
		zap.Int("texts", len(texts)))

	if isArray {
		vectors := make([]interface{}, 0, len(parsed.Data))
		for _, d := range parsed.Data {
			vectors = append(vectors, toValue(d.Embedding))
		}
		return map[string]interface{}{
			"embedding_array": vectors,
			"dim":             len(parsed.Data[0].Embedding),
			"count":           len(vectors),
		}, nil
	}
	return map[string]interface{}{
		"embedding": toValue(parsed.Data[0].Embedding),
		"dim":       len(parsed.Data[0].Embedding),
		"text":      texts[0],
	}, nil
}

// collectTexts normalizes the embed source to strings, reporting whether the
// source was an array.
func collectTexts(source interface{}) ([]string, bool) {
	switch t := source.(type) {
	case []interface{}:
		texts := make([]string, 0, len(t))
		for _, item := range t {
			texts = append(texts, engine.Stringify(item))
		}
		return texts, true
	case nil:
		return nil, false
	default:
		return []string{engine.Stringify(t)}, false
	}
}

func toValue(vector []float64) []interface{} {
	out := make([]interface{}, len(vector))
	for i, f := range vector {
		out[i] = f
	}
	return out
}
