package render

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/mx-space/blockdraft/internal/models"
)

// RenderBlock renders block i of blocks. Decode errors and panics are
// contained to the block and replaced by a placeholder.
func RenderBlock(blocks []models.Block, i int, opts Options) (out template.HTML) {
	if i < 0 || i >= len(blocks) {
		return ""
	}
	b := blocks[i]
	defer func() {
		if r := recover(); r != nil {
			out = template.HTML(placeholder("error", fmt.Sprintf("Failed to render %s block", b.Type)))
		}
	}()

	content, err := Decode(b)
	if err != nil {
		return template.HTML(placeholder("error", fmt.Sprintf("Invalid %s block", b.Type)))
	}
	ctx := &Context{Blocks: blocks, Index: i, Options: opts}
	return template.HTML(content.render(ctx))
}

// RenderDocument renders every block inside its own section, top to bottom.
func RenderDocument(blocks []models.Block, opts Options) template.HTML {
	var sb strings.Builder
	for i, b := range blocks {
		fmt.Fprintf(&sb, `<section class="block block-%s" id="%s">`, esc(string(b.Type)), Anchor(i))
		sb.WriteString(string(RenderBlock(blocks, i, opts)))
		sb.WriteString(`</section>`)
	}
	return template.HTML(sb.String())
}
