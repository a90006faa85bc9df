package httpcall

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wehubfusion/Daedalus/pkg/workflow"
)

func httpNode(config map[string]interface{}) workflow.Node {
	return workflow.Node{ID: "call", Kind: workflow.KindHTTP, Config: config}
}

func TestExecuteGetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "42", r.URL.Query().Get("id"))
		assert.Equal(t, "token", r.Header.Get("X-Auth"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"Ada"}`))
	}))
	defer server.Close()

	e := New(Config{})
	out, err := e.Execute(context.Background(), httpNode(map[string]interface{}{
		"url":     server.URL,
		"params":  map[string]interface{}{"id": float64(42)},
		"headers": map[string]interface{}{"X-Auth": "token"},
	}), nil)
	require.NoError(t, err)

	result := out.(map[string]interface{})
	assert.Equal(t, 200, result["status_code"])
	assert.Equal(t, map[string]interface{}{"name": "Ada"}, result["data"])
	assert.Equal(t, "GET", result["method"])
}

func TestExecutePostJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Ada", body["name"])
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	e := New(Config{})
	out, err := e.Execute(context.Background(), httpNode(map[string]interface{}{
		"url":    server.URL,
		"method": "post",
		"body":   map[string]interface{}{"name": "Ada"},
	}), nil)
	require.NoError(t, err)
	assert.Equal(t, 201, out.(map[string]interface{})["status_code"])
}

func TestExecuteNon2xxIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	e := New(Config{})
	out, err := e.Execute(context.Background(), httpNode(map[string]interface{}{"url": server.URL}), nil)
	require.NoError(t, err)

	result := out.(map[string]interface{})
	assert.Equal(t, 403, result["status_code"])
	assert.Equal(t, "nope\n", result["data"])
}

func TestExecuteTimeoutIsAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	e := New(Config{})
	_, err := e.Execute(context.Background(), httpNode(map[string]interface{}{
		"url":     server.URL,
		"timeout": 0.05,
	}), nil)
	assert.Error(t, err)
}

func TestExecuteMissingURL(t *testing.T) {
	e := New(Config{})
	_, err := e.Execute(context.Background(), httpNode(map[string]interface{}{}), nil)
	assert.Error(t, err)
}

func TestExecuteStringBodyPassedVerbatim(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := make([]byte, 32)
		n, _ := r.Body.Read(raw)
		assert.Equal(t, "plain payload", string(raw[:n]))
	}))
	defer server.Close()

	e := New(Config{})
	_, err := e.Execute(context.Background(), httpNode(map[string]interface{}{
		"url":    server.URL,
		"method": "PUT",
		"body":   "plain payload",
	}), nil)
	require.NoError(t, err)
}
