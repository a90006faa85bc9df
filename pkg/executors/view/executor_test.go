package view

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wehubfusion/Daedalus/pkg/workflow"
)

func TestMarkdownRendersHTML(t *testing.T) {
	e := NewMarkdown()
	out, err := e.Execute(context.Background(), workflow.Node{
		ID:     "md",
		Kind:   workflow.KindMarkdownView,
		Config: map[string]interface{}{"content": "# Title\n\nsome *emphasis*"},
	}, nil)
	require.NoError(t, err)

	result := out.(map[string]interface{})
	assert.Equal(t, "markdown", result["format"])
	assert.Contains(t, result["html"], "<h1>Title</h1>")
	assert.Contains(t, result["html"], "<em>emphasis</em>")
}

func TestMarkdownFallsBackToInput(t *testing.T) {
	e := NewMarkdown()
	out, err := e.Execute(context.Background(), workflow.Node{
		ID: "md", Kind: workflow.KindMarkdownView,
	}, "plain text input")
	require.NoError(t, err)
	assert.Contains(t, out.(map[string]interface{})["html"], "plain text input")
}

func TestMarkdownSupportsTables(t *testing.T) {
	e := NewMarkdown()
	out, err := e.Execute(context.Background(), workflow.Node{
		ID:     "md",
		Kind:   workflow.KindMarkdownView,
		Config: map[string]interface{}{"content": "| a | b |\n|---|---|\n| 1 | 2 |"},
	}, nil)
	require.NoError(t, err)
	assert.Contains(t, out.(map[string]interface{})["html"], "<table>")
}

func TestHTMLSanitizesScript(t *testing.T) {
	e := NewHTML()
	out, err := e.Execute(context.Background(), workflow.Node{
		ID:     "html",
		Kind:   workflow.KindHTMLView,
		Config: map[string]interface{}{"content": `<p>fine</p><script>alert("xss")</script>`},
	}, nil)
	require.NoError(t, err)

	result := out.(map[string]interface{})
	assert.Equal(t, "html", result["format"])
	assert.Contains(t, result["sanitized"], "<p>fine</p>")
	assert.NotContains(t, result["sanitized"], "<script>")
}

func TestHTMLKeepsSafeMarkup(t *testing.T) {
	e := NewHTML()
	out, err := e.Execute(context.Background(), workflow.Node{
		ID:     "html",
		Kind:   workflow.KindHTMLView,
		Config: map[string]interface{}{"content": `<a href="https://example.com">link</a>`},
	}, nil)
	require.NoError(t, err)
	assert.Contains(t, out.(map[string]interface{})["sanitized"], `href="https://example.com"`)
}
