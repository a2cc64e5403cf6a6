package registry

import (
	"strconv"
	"strings"

	"github.com/mx-space/blockdraft/internal/models"
)

// VideoEditor edits the video URL.
type VideoEditor struct{}

func (VideoEditor) Type() models.BlockType { return models.BlockVideo }

func (VideoEditor) Default(initial string) models.Block {
	return models.Block{Type: models.BlockVideo, Data: strings.TrimSpace(initial)}
}

func (VideoEditor) Decode(b models.Block) (any, error) { return strings.TrimSpace(b.Data), nil }

func (VideoEditor) Encode(v any, b models.Block) (models.Block, error) {
	s, ok := v.(string)
	if !ok {
		return b, valueError(models.BlockVideo, "string", v)
	}
	b.Data = strings.TrimSpace(s)
	return b, nil
}

// Spacing presets, in pixels.
const (
	SpacingSmall  = 16
	SpacingMedium = 32
	SpacingLarge  = 64
)

// SpacingEditor edits the vertical gap of a spacing block. The working value
// is the height in pixels.
type SpacingEditor struct{}

func (SpacingEditor) Type() models.BlockType { return models.BlockSpacing }

func (SpacingEditor) Default(initial string) models.Block {
	return models.Block{Type: models.BlockSpacing, Data: strconv.Itoa(SpacingHeight(initial))}
}

func (SpacingEditor) Decode(b models.Block) (any, error) { return SpacingHeight(b.Data), nil }

func (SpacingEditor) Encode(v any, b models.Block) (models.Block, error) {
	px, ok := v.(int)
	if !ok {
		return b, valueError(models.BlockSpacing, "int", v)
	}
	if px < 0 {
		px = 0
	}
	b.Data = strconv.Itoa(px)
	return b, nil
}

// SpacingHeight parses a preset name or a pixel count; anything else is medium.
func SpacingHeight(data string) int {
	data = strings.ToLower(strings.TrimSpace(data))
	switch data {
	case "small", "sm":
		return SpacingSmall
	case "medium", "md", "":
		return SpacingMedium
	case "large", "lg":
		return SpacingLarge
	}
	px, err := strconv.Atoi(strings.TrimSuffix(data, "px"))
	if err != nil || px < 0 {
		return SpacingMedium
	}
	return px
}
