package render

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mx-space/blockdraft/internal/models"
	"github.com/mx-space/blockdraft/internal/modules/registry"
)

// Content is the decoded, render-ready form of one block. The set of
// implementations is closed to this package; Decode has one case per block
// type.
type Content interface {
	Type() models.BlockType
	render(c *Context) string
}

// Options tunes rendering.
type Options struct {
	// Sanitize runs user markup through the UGC policy. On by default.
	Sanitize bool
	// HighlightStyle is the chroma style for the code stylesheet.
	HighlightStyle string
}

// DefaultOptions are the options used by the HTTP handlers.
func DefaultOptions() Options {
	return Options{Sanitize: true, HighlightStyle: "github"}
}

// Context is what a block renderer may look at: the whole sequence and its
// own position. Renderers must treat Blocks as read-only.
type Context struct {
	Blocks  []models.Block
	Index   int
	Options Options
}

// Block returns the block being rendered.
func (c *Context) Block() models.Block { return c.Blocks[c.Index] }

// Anchor is the fragment id of the block being rendered.
func (c *Context) Anchor() string { return Anchor(c.Index) }

// Next returns the block after the current one.
func (c *Context) Next() (models.Block, bool) {
	if c.Index+1 < len(c.Blocks) {
		return c.Blocks[c.Index+1], true
	}
	return models.Block{}, false
}

// Prev returns the block before the current one.
func (c *Context) Prev() (models.Block, bool) {
	if c.Index > 0 && c.Index-1 < len(c.Blocks) {
		return c.Blocks[c.Index-1], true
	}
	return models.Block{}, false
}

// Anchor is the fragment id used for block i.
func Anchor(i int) string { return fmt.Sprintf("block-%d", i) }

// Decode turns a block into its render-ready content. Payload problems that
// have a dedicated empty state (table, gallery, video) are not errors.
func Decode(b models.Block) (Content, error) {
	switch b.Type {
	case models.BlockText:
		return textContent{markdown: b.Data}, nil
	case models.BlockHeading:
		return headingContent{text: HeadingText(b)}, nil
	case models.BlockImage:
		img, err := registry.DecodeImage(b.Data)
		if err != nil {
			return nil, err
		}
		return imageContent{img}, nil
	case models.BlockTable:
		return decodeTable(b.Data), nil
	case models.BlockCode:
		return codeContent{source: b.Data, language: b.Language, highlighted: b.Highlighted}, nil
	case models.BlockQuote:
		return quoteContent{markdown: b.Data, cite: strings.TrimSpace(b.Name)}, nil
	case models.BlockDivider:
		return ruleContent{kind: models.BlockDivider}, nil
	case models.BlockSeparator:
		return ruleContent{kind: models.BlockSeparator, label: strings.TrimSpace(b.Data)}, nil
	case models.BlockTOC:
		return tocContent{title: strings.TrimSpace(b.Name)}, nil
	case models.BlockNotice:
		return noticeContent{level: noticeLevel(b.Name), markdown: b.Data}, nil
	case models.BlockTimeline:
		tl, err := models.DecodePayload[models.TimelinePayload](b.Data)
		if err != nil && !errors.Is(err, models.ErrEmptyPayload) {
			return nil, err
		}
		return timelineContent{tl}, nil
	case models.BlockSpacing:
		return spacingContent{height: registry.SpacingHeight(b.Data)}, nil
	case models.BlockExcerpt:
		return excerptContent{markdown: b.Data}, nil
	case models.BlockShortcode:
		return parseShortcode(b.Data), nil
	case models.BlockLinkPreview:
		lp, err := registry.DecodeLinkPreview(b.Data)
		if err != nil {
			return nil, err
		}
		return linkPreviewContent{lp}, nil
	case models.BlockVideo:
		return decodeVideo(b.Data), nil
	case models.BlockGallery:
		return decodeGallery(b.Data), nil
	default:
		return unknownContent{tag: string(b.Type)}, nil
	}
}

// HeadingText is the displayed text of a heading: trimmed data, else trimmed
// name, else empty.
func HeadingText(b models.Block) string {
	if s := strings.TrimSpace(b.Data); s != "" {
		return s
	}
	return strings.TrimSpace(b.Name)
}

type unknownContent struct{ tag string }

func (unknownContent) Type() models.BlockType { return "" }

func (u unknownContent) render(*Context) string {
	return placeholder("unknown", "Unknown block type: "+u.tag)
}
