package models

import (
	"strings"
	"time"
)

// BlockType tags one content block. The set is closed: every value below must
// have a preview case in the render package.
type BlockType string

const (
	BlockText        BlockType = "text"
	BlockHeading     BlockType = "heading"
	BlockImage       BlockType = "image"
	BlockTable       BlockType = "table"
	BlockCode        BlockType = "code"
	BlockQuote       BlockType = "quote"
	BlockDivider     BlockType = "divider"
	BlockSeparator   BlockType = "separator"
	BlockTOC         BlockType = "toc"
	BlockNotice      BlockType = "notice"
	BlockTimeline    BlockType = "timeline"
	BlockSpacing     BlockType = "spacing"
	BlockExcerpt     BlockType = "excerpt"
	BlockShortcode   BlockType = "shortcode"
	BlockLinkPreview BlockType = "link-preview"
	BlockVideo       BlockType = "video"
	BlockGallery     BlockType = "gallery"
)

var allBlockTypes = []BlockType{
	BlockText,
	BlockHeading,
	BlockImage,
	BlockTable,
	BlockCode,
	BlockQuote,
	BlockDivider,
	BlockSeparator,
	BlockTOC,
	BlockNotice,
	BlockTimeline,
	BlockSpacing,
	BlockExcerpt,
	BlockShortcode,
	BlockLinkPreview,
	BlockVideo,
	BlockGallery,
}

// AllBlockTypes returns the closed set of block types in declaration order.
func AllBlockTypes() []BlockType {
	out := make([]BlockType, len(allBlockTypes))
	copy(out, allBlockTypes)
	return out
}

// Valid reports whether t belongs to the closed set.
func (t BlockType) Valid() bool {
	for _, known := range allBlockTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseBlockType normalizes a tag coming from a client. Legacy aliases are
// accepted ("hr", "table-of-contents", "linkpreview").
func ParseBlockType(raw string) (BlockType, bool) {
	tag := BlockType(strings.ToLower(strings.TrimSpace(raw)))
	switch tag {
	case "hr":
		tag = BlockDivider
	case "table-of-contents", "tableofcontents":
		tag = BlockTOC
	case "linkpreview", "link_preview":
		tag = BlockLinkPreview
	}
	return tag, tag.Valid()
}

// Block is one content unit. Data is always plain text; structured types keep
// their payload JSON-encoded in Data.
type Block struct {
	Type BlockType `json:"type"`
	Data string    `json:"data"`
	Name string    `json:"name,omitempty"`

	// Code block extras. Highlighted is a cached rendering of Data and is
	// never read back as content.
	Language    string `json:"language,omitempty"`
	Highlighted string `json:"highlighted,omitempty"`
}

// Clone returns an independent copy of the block.
func (b Block) Clone() Block { return b }

// HasContent reports whether the block counts as real content: non-blank
// data, or any type other than plain text.
func (b Block) HasContent() bool {
	if b.Type != BlockText {
		return true
	}
	return strings.TrimSpace(b.Data) != ""
}

// CloneBlocks copies a block sequence so callers never share a backing array.
func CloneBlocks(blocks []Block) []Block {
	if blocks == nil {
		return []Block{}
	}
	out := make([]Block, len(blocks))
	copy(out, blocks)
	return out
}

// Document is an ordered block sequence plus its identity.
type Document struct {
	ID           *string   `json:"id"`
	Blocks       []Block   `json:"blocks"`
	LastModified time.Time `json:"lastModified"`
}

// Snapshot is the local cache entry for one document.
type Snapshot struct {
	ID           *string `json:"id"`
	Blocks       []Block `json:"blocks"`
	LastModified string  `json:"lastModified"`
}

// SnapshotOf converts a document to its cache representation.
func SnapshotOf(doc Document) Snapshot {
	return Snapshot{
		ID:           doc.ID,
		Blocks:       CloneBlocks(doc.Blocks),
		LastModified: doc.LastModified.UTC().Format(time.RFC3339Nano),
	}
}

// Document converts a cache snapshot back. An unparsable timestamp yields the
// zero time.
func (s Snapshot) Document() Document {
	modified, _ := time.Parse(time.RFC3339Nano, s.LastModified)
	return Document{
		ID:           s.ID,
		Blocks:       CloneBlocks(s.Blocks),
		LastModified: modified,
	}
}

// StringPtr returns nil for a blank identity.
func StringPtr(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
