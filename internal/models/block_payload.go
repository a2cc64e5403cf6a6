package models

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrEmptyPayload is returned when a structured block has no data at all.
var ErrEmptyPayload = errors.New("empty payload")

// EncodePayload serializes a structured payload into block data.
func EncodePayload(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// DecodePayload parses block data into a structured payload.
func DecodePayload[T any](data string) (T, error) {
	var out T
	if strings.TrimSpace(data) == "" {
		return out, ErrEmptyPayload
	}
	err := json.Unmarshal([]byte(data), &out)
	return out, err
}

// TablePayload is the data of a table block.
type TablePayload struct {
	Rows   int        `json:"rows"`
	Cols   int        `json:"cols"`
	Data   [][]string `json:"data"`
	Header bool       `json:"header,omitempty"`
}

// Valid checks the grid shape against the declared dimensions.
func (t TablePayload) Valid() bool {
	if t.Rows <= 0 || t.Cols <= 0 || len(t.Data) != t.Rows {
		return false
	}
	for _, row := range t.Data {
		if len(row) != t.Cols {
			return false
		}
	}
	return true
}

// NewTablePayload returns an empty rows x cols grid.
func NewTablePayload(rows, cols int) TablePayload {
	grid := make([][]string, rows)
	for i := range grid {
		grid[i] = make([]string, cols)
	}
	return TablePayload{Rows: rows, Cols: cols, Data: grid}
}

// GalleryMode selects the gallery layout.
type GalleryMode string

const (
	GalleryGrid       GalleryMode = "grid"
	GallerySlider     GalleryMode = "slider"
	GalleryLightbox   GalleryMode = "lightbox"
	GalleryMasonry    GalleryMode = "masonry"
	GalleryCollage    GalleryMode = "collage"
	GalleryThumbnails GalleryMode = "thumbnails"
	GallerySlideshow  GalleryMode = "slideshow"
	GalleryFullscreen GalleryMode = "fullscreen"
)

// AspectRatio is the symbolic image ratio used by gallery layouts.
type AspectRatio string

const (
	AspectSquare    AspectRatio = "square"
	AspectLandscape AspectRatio = "landscape"
	AspectPortrait  AspectRatio = "portrait"
	AspectWide      AspectRatio = "wide"
	AspectAuto      AspectRatio = "auto"
)

// CSS maps the symbolic ratio to a CSS aspect-ratio value.
func (a AspectRatio) CSS() string {
	switch a {
	case AspectSquare:
		return "1 / 1"
	case AspectLandscape:
		return "4 / 3"
	case AspectPortrait:
		return "3 / 4"
	case AspectWide:
		return "16 / 9"
	default:
		return "auto"
	}
}

// GalleryImage is one picture of a gallery.
type GalleryImage struct {
	URL string `json:"url"`
	Alt string `json:"alt,omitempty"`
}

// GallerySettings holds the display options of a gallery block.
type GallerySettings struct {
	Mode         GalleryMode `json:"mode"`
	Columns      int         `json:"columns"`
	Gap          int         `json:"gap"`
	AspectRatio  AspectRatio `json:"aspectRatio"`
	Autoplay     bool        `json:"autoplay"`
	Interval     int         `json:"interval"`
	ShowCaptions bool        `json:"showCaptions"`
	Captions     []string    `json:"captions"`
	Rounded      bool        `json:"rounded"`
}

// GalleryPayload is the data of a gallery block.
type GalleryPayload struct {
	Images   []GalleryImage  `json:"images"`
	Settings GallerySettings `json:"settings"`
}

// DefaultGalleryPayload is the fully populated payload a new gallery starts with.
func DefaultGalleryPayload() GalleryPayload {
	return GalleryPayload{
		Images: []GalleryImage{},
		Settings: GallerySettings{
			Mode:         GalleryGrid,
			Columns:      3,
			Gap:          8,
			AspectRatio:  AspectSquare,
			Autoplay:     false,
			Interval:     3000,
			ShowCaptions: false,
			Captions:     []string{},
			Rounded:      true,
		},
	}
}

// Caption returns the caption aligned with image i, or "".
func (s GallerySettings) Caption(i int) string {
	if !s.ShowCaptions || i < 0 || i >= len(s.Captions) {
		return ""
	}
	return strings.TrimSpace(s.Captions[i])
}

// TimelineItem is one entry of a timeline block.
type TimelineItem struct {
	Date        string `json:"date"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// TimelinePayload is the data of a timeline block.
type TimelinePayload struct {
	Items []TimelineItem `json:"items"`
}

// LinkPreviewPayload is the data of a link-preview block. A bare URL in Data
// is accepted as well.
type LinkPreviewPayload struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
}

// ImagePayload is the data of an image block. A bare URL in Data is accepted
// as well.
type ImagePayload struct {
	URL     string `json:"url"`
	Alt     string `json:"alt,omitempty"`
	Caption string `json:"caption,omitempty"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
}
