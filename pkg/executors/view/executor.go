// Package view renders node content for display surfaces: markdown_view
// renders markdown to HTML, html_view sanitizes untrusted HTML.
package view

import (
	"bytes"
	"context"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/wehubfusion/Daedalus/pkg/engine"
	"github.com/wehubfusion/Daedalus/pkg/workflow"
)

// contentFor picks the text to render: the node's content config (already
// template resolved) or the stringified input.
func contentFor(node workflow.Node, input interface{}) string {
	if content, ok := node.Config["content"].(string); ok && content != "" {
		return content
	}
	if input == nil {
		return ""
	}
	return engine.Stringify(input)
}

// Markdown renders markdown content to HTML.
type Markdown struct {
	md goldmark.Markdown
}

// NewMarkdown creates the markdown executor with GitHub-flavored extensions.
func NewMarkdown() *Markdown {
	return &Markdown{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
	}
}

func (m *Markdown) Kind() workflow.NodeKind { return workflow.KindMarkdownView }

func (m *Markdown) Execute(_ context.Context, node workflow.Node, input interface{}) (interface{}, error) {
	content := contentFor(node, input)
	var buf bytes.Buffer
	if err := m.md.Convert([]byte(content), &buf); err != nil {
		return nil, fmt.Errorf("rendering markdown: %w", err)
	}
	return map[string]interface{}{
		"content": content,
		"html":    buf.String(),
		"format":  "markdown",
	}, nil
}

// HTML sanitizes HTML content for safe embedding.
type HTML struct {
	policy *bluemonday.Policy
}

// NewHTML creates the html executor with the user-generated-content policy.
func NewHTML() *HTML {
	return &HTML{policy: bluemonday.UGCPolicy()}
}

func (h *HTML) Kind() workflow.NodeKind { return workflow.KindHTMLView }

func (h *HTML) Execute(_ context.Context, node workflow.Node, input interface{}) (interface{}, error) {
	content := contentFor(node, input)
	return map[string]interface{}{
		"content":   content,
		"sanitized": h.policy.Sanitize(content),
		"format":    "html",
	}, nil
}
