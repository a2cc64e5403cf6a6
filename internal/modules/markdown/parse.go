package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/mx-space/blockdraft/internal/models"
)

var parser = goldmark.New(goldmark.WithExtensions(extension.GFM)).Parser()

// FrontMatter is the YAML header of an imported or exported document.
type FrontMatter struct {
	ID          string `yaml:"id,omitempty"`
	Title       string `yaml:"title,omitempty"`
	Description string `yaml:"description,omitempty"`
	Status      string `yaml:"status,omitempty"`
	Version     int    `yaml:"version,omitempty"`
	Date        string `yaml:"date,omitempty"`
}

// Document is a markdown file split into its header and blocks.
type Document struct {
	FrontMatter FrontMatter
	Blocks      []models.Block
}

// Parse converts a markdown document into blocks. A leading level-one
// heading becomes the title when the front matter has none, and is dropped
// when it repeats the front matter title.
func Parse(source string) (Document, error) {
	fm, body, err := splitFrontMatter(source)
	if err != nil {
		return Document{}, err
	}

	src := []byte(body)
	root := parser.Parse(text.NewReader(src))
	doc := Document{FrontMatter: fm, Blocks: []models.Block{}}

	var pending []string
	flush := func() {
		if len(pending) == 0 {
			return
		}
		doc.Blocks = append(doc.Blocks, models.Block{Type: models.BlockText, Data: strings.Join(pending, "\n\n")})
		pending = nil
	}
	emit := func(b models.Block) {
		flush()
		doc.Blocks = append(doc.Blocks, b)
	}

	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			content := inlineText(node, src)
			switch {
			case node.Level == 1 && len(doc.Blocks) == 0 && len(pending) == 0 &&
				(doc.FrontMatter.Title == "" || doc.FrontMatter.Title == content):
				doc.FrontMatter.Title = content
			case node.Level <= 2:
				emit(models.Block{Type: models.BlockHeading, Data: content})
			default:
				pending = append(pending, rawSource(node, src))
			}
		case *ast.FencedCodeBlock:
			emit(models.Block{
				Type:     models.BlockCode,
				Data:     linesOf(node, src),
				Language: string(node.Language(src)),
			})
		case *ast.CodeBlock:
			emit(models.Block{Type: models.BlockCode, Data: linesOf(node, src)})
		case *ast.ThematicBreak:
			emit(models.Block{Type: models.BlockDivider})
		case *ast.Blockquote:
			emit(models.Block{Type: models.BlockQuote, Data: stripQuote(rawSource(node, src))})
		case *extast.Table:
			b, err := tableBlock(node, src)
			if err != nil {
				return Document{}, err
			}
			emit(b)
		case *ast.Paragraph:
			if img, ok := soleImage(node); ok {
				b, err := imageBlock(img, src)
				if err != nil {
					return Document{}, err
				}
				emit(b)
				continue
			}
			pending = append(pending, rawSource(node, src))
		default:
			if raw := rawSource(n, src); strings.TrimSpace(raw) != "" {
				pending = append(pending, raw)
			}
		}
	}
	flush()
	return doc, nil
}

func splitFrontMatter(source string) (FrontMatter, string, error) {
	var fm FrontMatter
	normalized := strings.ReplaceAll(source, "\r\n", "\n")
	if !strings.HasPrefix(normalized, "---\n") {
		return fm, normalized, nil
	}
	rest := normalized[len("---\n"):]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return fm, normalized, nil
	}
	header := rest[:end]
	body := strings.TrimPrefix(rest[end+len("\n---"):], "\n")
	if err := yaml.Unmarshal([]byte(header), &fm); err != nil {
		return fm, "", fmt.Errorf("parse front matter: %w", err)
	}
	fm.Title = strings.TrimSpace(fm.Title)
	return fm, body, nil
}

func inlineText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := child.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(buf.String())
}

func linesOf(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(src))
	}
	return strings.TrimRight(buf.String(), "\n")
}

// rawSource returns the full source lines a block spans, list markers and
// quote prefixes included.
func rawSource(n ast.Node, src []byte) string {
	start, stop := -1, -1
	widen := func(s, e int) {
		if start < 0 || s < start {
			start = s
		}
		if e > stop {
			stop = e
		}
	}
	_ = ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := child.(*ast.Text); ok {
			widen(t.Segment.Start, t.Segment.Stop)
			return ast.WalkContinue, nil
		}
		if child.Type() == ast.TypeBlock {
			lines := child.Lines()
			if lines.Len() > 0 {
				widen(lines.At(0).Start, lines.At(lines.Len()-1).Stop)
			}
		}
		return ast.WalkContinue, nil
	})
	if start < 0 {
		return ""
	}
	for start > 0 && src[start-1] != '\n' {
		start--
	}
	for stop < len(src) && src[stop] != '\n' {
		stop++
	}
	return strings.TrimRight(string(src[start:stop]), "\n ")
}

func stripQuote(raw string) string {
	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		line = strings.TrimLeft(line, " ")
		line = strings.TrimPrefix(line, ">")
		lines[i] = strings.TrimPrefix(line, " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func soleImage(p *ast.Paragraph) (*ast.Image, bool) {
	if p.ChildCount() != 1 {
		return nil, false
	}
	img, ok := p.FirstChild().(*ast.Image)
	return img, ok
}

func imageBlock(img *ast.Image, src []byte) (models.Block, error) {
	data, err := models.EncodePayload(models.ImagePayload{
		URL:     string(img.Destination),
		Alt:     inlineText(img, src),
		Caption: string(img.Title),
	})
	if err != nil {
		return models.Block{}, err
	}
	return models.Block{Type: models.BlockImage, Data: data}, nil
}

func tableBlock(t *extast.Table, src []byte) (models.Block, error) {
	var rows [][]string
	header := false
	for r := t.FirstChild(); r != nil; r = r.NextSibling() {
		if _, ok := r.(*extast.TableHeader); ok {
			header = true
		}
		var row []string
		for c := r.FirstChild(); c != nil; c = c.NextSibling() {
			row = append(row, inlineText(c, src))
		}
		rows = append(rows, row)
	}

	cols := 0
	for _, row := range rows {
		if len(row) > cols {
			cols = len(row)
		}
	}
	for i := range rows {
		for len(rows[i]) < cols {
			rows[i] = append(rows[i], "")
		}
	}

	data, err := models.EncodePayload(models.TablePayload{
		Rows:   len(rows),
		Cols:   cols,
		Data:   rows,
		Header: header,
	})
	if err != nil {
		return models.Block{}, err
	}
	return models.Block{Type: models.BlockTable, Data: data}, nil
}
