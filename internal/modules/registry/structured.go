package registry

import (
	"errors"
	"strings"

	"github.com/mx-space/blockdraft/internal/models"
)

const (
	defaultTableRows = 3
	defaultTableCols = 3
)

// TableEditor edits a models.TablePayload.
type TableEditor struct{}

func (TableEditor) Type() models.BlockType { return models.BlockTable }

func (TableEditor) Default(initial string) models.Block {
	if t, err := models.DecodePayload[models.TablePayload](initial); err == nil && t.Valid() {
		return models.Block{Type: models.BlockTable, Data: initial}
	}
	data, _ := models.EncodePayload(models.NewTablePayload(defaultTableRows, defaultTableCols))
	return models.Block{Type: models.BlockTable, Data: data}
}

// Decode treats empty data as a fresh default grid.
func (TableEditor) Decode(b models.Block) (any, error) {
	t, err := models.DecodePayload[models.TablePayload](b.Data)
	if errors.Is(err, models.ErrEmptyPayload) {
		return models.NewTablePayload(defaultTableRows, defaultTableCols), nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (TableEditor) Encode(v any, b models.Block) (models.Block, error) {
	t, ok := v.(models.TablePayload)
	if !ok {
		return b, valueError(models.BlockTable, "TablePayload", v)
	}
	data, err := models.EncodePayload(ResizeTable(t, t.Rows, t.Cols))
	if err != nil {
		return b, err
	}
	b.Data = data
	return b, nil
}

// ResizeTable reshapes the grid to rows x cols, keeping overlapping cells.
func ResizeTable(t models.TablePayload, rows, cols int) models.TablePayload {
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}
	out := models.NewTablePayload(rows, cols)
	out.Header = t.Header
	for r := 0; r < rows && r < len(t.Data); r++ {
		copy(out.Data[r], t.Data[r])
	}
	return out
}

// GalleryEditor edits a models.GalleryPayload.
type GalleryEditor struct{}

func (GalleryEditor) Type() models.BlockType { return models.BlockGallery }

// Default always yields a fully populated settings object so previews never
// see a zero mode or interval.
func (GalleryEditor) Default(initial string) models.Block {
	g := models.DefaultGalleryPayload()
	if parsed, err := models.DecodePayload[models.GalleryPayload](initial); err == nil {
		g = NormalizeGallery(parsed)
	}
	data, _ := models.EncodePayload(g)
	return models.Block{Type: models.BlockGallery, Data: data}
}

func (GalleryEditor) Decode(b models.Block) (any, error) {
	g, err := models.DecodePayload[models.GalleryPayload](b.Data)
	if errors.Is(err, models.ErrEmptyPayload) {
		return models.DefaultGalleryPayload(), nil
	}
	if err != nil {
		return nil, err
	}
	return NormalizeGallery(g), nil
}

func (GalleryEditor) Encode(v any, b models.Block) (models.Block, error) {
	g, ok := v.(models.GalleryPayload)
	if !ok {
		return b, valueError(models.BlockGallery, "GalleryPayload", v)
	}
	data, err := models.EncodePayload(NormalizeGallery(g))
	if err != nil {
		return b, err
	}
	b.Data = data
	return b, nil
}

// NormalizeGallery fills unset settings from the defaults.
func NormalizeGallery(g models.GalleryPayload) models.GalleryPayload {
	def := models.DefaultGalleryPayload().Settings
	s := &g.Settings
	switch s.Mode {
	case models.GalleryGrid, models.GallerySlider, models.GalleryLightbox, models.GalleryMasonry,
		models.GalleryCollage, models.GalleryThumbnails, models.GallerySlideshow, models.GalleryFullscreen:
	default:
		s.Mode = def.Mode
	}
	if s.Columns <= 0 {
		s.Columns = def.Columns
	}
	if s.Gap < 0 {
		s.Gap = def.Gap
	}
	if s.AspectRatio == "" {
		s.AspectRatio = def.AspectRatio
	}
	if s.Interval <= 0 {
		s.Interval = def.Interval
	}
	if s.Captions == nil {
		s.Captions = []string{}
	}
	if g.Images == nil {
		g.Images = []models.GalleryImage{}
	}
	return g
}

// TimelineEditor edits a models.TimelinePayload.
type TimelineEditor struct{}

func (TimelineEditor) Type() models.BlockType { return models.BlockTimeline }

func (TimelineEditor) Default(initial string) models.Block {
	if _, err := models.DecodePayload[models.TimelinePayload](initial); err == nil {
		return models.Block{Type: models.BlockTimeline, Data: initial}
	}
	data, _ := models.EncodePayload(models.TimelinePayload{Items: []models.TimelineItem{}})
	return models.Block{Type: models.BlockTimeline, Data: data}
}

func (TimelineEditor) Decode(b models.Block) (any, error) {
	t, err := models.DecodePayload[models.TimelinePayload](b.Data)
	if errors.Is(err, models.ErrEmptyPayload) {
		return models.TimelinePayload{Items: []models.TimelineItem{}}, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (TimelineEditor) Encode(v any, b models.Block) (models.Block, error) {
	t, ok := v.(models.TimelinePayload)
	if !ok {
		return b, valueError(models.BlockTimeline, "TimelinePayload", v)
	}
	if t.Items == nil {
		t.Items = []models.TimelineItem{}
	}
	data, err := models.EncodePayload(t)
	if err != nil {
		return b, err
	}
	b.Data = data
	return b, nil
}

// LinkPreviewEditor edits a models.LinkPreviewPayload. A bare URL in the
// stored data decodes as a payload with only the URL set.
type LinkPreviewEditor struct{}

func (LinkPreviewEditor) Type() models.BlockType { return models.BlockLinkPreview }

func (LinkPreviewEditor) Default(initial string) models.Block {
	return models.Block{Type: models.BlockLinkPreview, Data: strings.TrimSpace(initial)}
}

func (LinkPreviewEditor) Decode(b models.Block) (any, error) {
	return DecodeLinkPreview(b.Data)
}

func (LinkPreviewEditor) Encode(v any, b models.Block) (models.Block, error) {
	p, ok := v.(models.LinkPreviewPayload)
	if !ok {
		return b, valueError(models.BlockLinkPreview, "LinkPreviewPayload", v)
	}
	p.URL = strings.TrimSpace(p.URL)
	data, err := models.EncodePayload(p)
	if err != nil {
		return b, err
	}
	b.Data = data
	return b, nil
}

// DecodeLinkPreview accepts either a JSON payload or a bare URL.
func DecodeLinkPreview(data string) (models.LinkPreviewPayload, error) {
	data = strings.TrimSpace(data)
	if !strings.HasPrefix(data, "{") {
		return models.LinkPreviewPayload{URL: data}, nil
	}
	return models.DecodePayload[models.LinkPreviewPayload](data)
}

// ImageEditor edits a models.ImagePayload. A bare URL is accepted as well.
type ImageEditor struct{}

func (ImageEditor) Type() models.BlockType { return models.BlockImage }

func (ImageEditor) Default(initial string) models.Block {
	return models.Block{Type: models.BlockImage, Data: strings.TrimSpace(initial)}
}

func (ImageEditor) Decode(b models.Block) (any, error) {
	return DecodeImage(b.Data)
}

func (ImageEditor) Encode(v any, b models.Block) (models.Block, error) {
	p, ok := v.(models.ImagePayload)
	if !ok {
		return b, valueError(models.BlockImage, "ImagePayload", v)
	}
	p.URL = strings.TrimSpace(p.URL)
	data, err := models.EncodePayload(p)
	if err != nil {
		return b, err
	}
	b.Data = data
	return b, nil
}

// DecodeImage accepts either a JSON payload or a bare URL.
func DecodeImage(data string) (models.ImagePayload, error) {
	data = strings.TrimSpace(data)
	if !strings.HasPrefix(data, "{") {
		return models.ImagePayload{URL: data}, nil
	}
	return models.DecodePayload[models.ImagePayload](data)
}
