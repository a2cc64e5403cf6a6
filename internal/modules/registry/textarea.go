package registry

import (
	"strings"

	"github.com/mx-space/blockdraft/internal/models"
)

// TextAreaEditor is the generic editor: the working value is the raw data string.
type TextAreaEditor struct {
	BlockType models.BlockType
}

func (e TextAreaEditor) Type() models.BlockType { return e.BlockType }

func (e TextAreaEditor) Default(initial string) models.Block {
	return models.Block{Type: e.BlockType, Data: initial}
}

func (e TextAreaEditor) Decode(b models.Block) (any, error) { return b.Data, nil }

func (e TextAreaEditor) Encode(v any, b models.Block) (models.Block, error) {
	s, ok := v.(string)
	if !ok {
		return b, valueError(e.BlockType, "string", v)
	}
	b.Data = s
	return b, nil
}

// HeadingEditor edits the heading text; surrounding whitespace is dropped.
type HeadingEditor struct{}

func (HeadingEditor) Type() models.BlockType { return models.BlockHeading }

func (HeadingEditor) Default(initial string) models.Block {
	return models.Block{Type: models.BlockHeading, Data: strings.TrimSpace(initial)}
}

func (HeadingEditor) Decode(b models.Block) (any, error) { return b.Data, nil }

func (HeadingEditor) Encode(v any, b models.Block) (models.Block, error) {
	s, ok := v.(string)
	if !ok {
		return b, valueError(models.BlockHeading, "string", v)
	}
	b.Data = strings.TrimSpace(s)
	return b, nil
}
