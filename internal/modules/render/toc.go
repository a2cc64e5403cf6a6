package render

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/mx-space/blockdraft/internal/models"
)

// TOCEntry is one line of a table of contents.
type TOCEntry struct {
	Text   string `json:"text"`
	Level  int    `json:"level"`
	Index  int    `json:"index"`
	Anchor string `json:"anchor"`
}

// ExtractTOC lists heading blocks (level 2) and the h2/h3 headings of text
// blocks, written as markdown or inline HTML, in document order. TOC blocks are never scanned,
// and entries without text are dropped.
func ExtractTOC(blocks []models.Block) []TOCEntry {
	entries := []TOCEntry{}
	for i, b := range blocks {
		switch b.Type {
		case models.BlockHeading:
			if text := HeadingText(b); text != "" {
				entries = append(entries, TOCEntry{Text: text, Level: 2, Index: i, Anchor: Anchor(i)})
			}
		case models.BlockText:
			for _, h := range embeddedHeadings(markdownHTML(b.Data)) {
				h.Index = i
				h.Anchor = Anchor(i)
				entries = append(entries, h)
			}
		}
	}
	return entries
}

func embeddedHeadings(markup string) []TOCEntry {
	if !strings.Contains(markup, "<h") && !strings.Contains(markup, "<H") {
		return nil
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
	})
	if err != nil {
		return nil
	}
	var out []TOCEntry
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.DataAtom == atom.H2 || n.DataAtom == atom.H3) {
			if text := strings.Join(strings.Fields(textOf(n)), " "); text != "" {
				level := 2
				if n.DataAtom == atom.H3 {
					level = 3
				}
				out = append(out, TOCEntry{Text: text, Level: level})
			}
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return out
}

func textOf(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		sb.WriteString(textOf(child))
	}
	return sb.String()
}

type tocContent struct{ title string }

func (tocContent) Type() models.BlockType { return models.BlockTOC }

func (t tocContent) render(c *Context) string {
	entries := ExtractTOC(c.Blocks)
	if len(entries) == 0 {
		return placeholder("toc", "No headings")
	}
	title := t.title
	if title == "" {
		title = "Contents"
	}
	var sb strings.Builder
	sb.WriteString(`<nav class="toc-block"><p class="toc-title">` + esc(title) + `</p><ul>`)
	for _, e := range entries {
		fmt.Fprintf(&sb, `<li class="toc-level-%d"><a href="#%s">%s</a></li>`, e.Level, e.Anchor, esc(e.Text))
	}
	sb.WriteString(`</ul></nav>`)
	return sb.String()
}
