package render

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"
)

var markdownEngine = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		extension.Strikethrough,
		extension.TaskList,
		extension.Linkify,
		extension.Typographer,
	),
	goldmark.WithRendererOptions(
		htmlrenderer.WithHardWraps(),
		htmlrenderer.WithXHTML(),
		// raw HTML is passed through and cleaned by the sanitizer
		htmlrenderer.WithUnsafe(),
	),
)

// policy is safe for concurrent use once built.
var policy = newPolicy()

func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("span", "code", "pre", "div")
	p.AllowAttrs("id").Matching(bluemonday.Paragraph).OnElements("h2", "h3")
	return p
}

// Sanitize cleans user supplied markup.
func Sanitize(markup string) string {
	return policy.Sanitize(markup)
}

// markdownHTML renders markdown text to HTML. A conversion failure falls back to
// the escaped source.
func markdownHTML(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	var out bytes.Buffer
	if err := markdownEngine.Convert([]byte(text), &out); err != nil {
		return "<p>" + template.HTMLEscapeString(text) + "</p>"
	}
	return out.String()
}

func (c *Context) clean(markup string) string {
	if !c.Options.Sanitize {
		return markup
	}
	return Sanitize(markup)
}

func esc(s string) string { return template.HTMLEscapeString(s) }

func placeholder(kind, message string) string {
	return `<div class="block-placeholder block-placeholder-` + kind + `">` + esc(message) + `</div>`
}
