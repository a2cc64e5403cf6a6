package render

import (
	"fmt"
	"strings"

	"github.com/mx-space/blockdraft/internal/models"
	"github.com/mx-space/blockdraft/internal/modules/registry"
)

type galleryContent struct {
	gallery models.GalleryPayload
	ok      bool
}

func (galleryContent) Type() models.BlockType { return models.BlockGallery }

// decodeGallery never fails; malformed or missing JSON renders the empty
// gallery state.
func decodeGallery(data string) galleryContent {
	g, err := models.DecodePayload[models.GalleryPayload](data)
	if err != nil {
		return galleryContent{}
	}
	g = registry.NormalizeGallery(g)
	images := g.Images[:0:0]
	for _, img := range g.Images {
		if safeURL(img.URL) {
			images = append(images, img)
		}
	}
	g.Images = images
	return galleryContent{gallery: g, ok: true}
}

func (g galleryContent) render(c *Context) string {
	if !g.ok || len(g.gallery.Images) == 0 {
		return placeholder("gallery", "No images in gallery")
	}
	s := g.gallery.Settings
	var sb strings.Builder
	fmt.Fprintf(&sb, `<div class="gallery-block gallery-%s%s" style="--gallery-gap:%dpx;--gallery-columns:%d;--gallery-ratio:%s"`,
		s.Mode, roundedClass(s.Rounded), s.Gap, s.Columns, s.AspectRatio.CSS())

	switch s.Mode {
	case models.GallerySlider, models.GallerySlideshow:
		// slideshows always advance; sliders only when asked to
		autoplay := s.Autoplay || s.Mode == models.GallerySlideshow
		fmt.Fprintf(&sb, ` data-autoplay="%t" data-interval="%d">`, autoplay, s.Interval)
		g.slides(&sb, s)
	case models.GalleryLightbox:
		sb.WriteString(`>`)
		g.lightbox(&sb, c, s)
	case models.GalleryThumbnails:
		sb.WriteString(`>`)
		g.thumbnails(&sb, s)
	case models.GalleryCollage:
		sb.WriteString(`>`)
		g.collage(&sb, s)
	case models.GalleryFullscreen:
		sb.WriteString(` data-fullscreen="true">`)
		for i, img := range g.gallery.Images {
			sb.WriteString(`<section class="gallery-fullscreen-item">`)
			figure(&sb, img, s.Caption(i), "")
			sb.WriteString(`</section>`)
		}
	default:
		// grid and masonry share markup; layout differs in CSS only
		sb.WriteString(`>`)
		for i, img := range g.gallery.Images {
			figure(&sb, img, s.Caption(i), "gallery-item")
		}
	}
	sb.WriteString(`</div>`)
	return sb.String()
}

func (g galleryContent) slides(sb *strings.Builder, s models.GallerySettings) {
	sb.WriteString(`<div class="gallery-track">`)
	for i, img := range g.gallery.Images {
		class := "gallery-slide"
		if i == 0 {
			class += " active"
		}
		figure(sb, img, s.Caption(i), class)
	}
	sb.WriteString(`</div>`)
	sb.WriteString(`<div class="gallery-dots">`)
	for i := range g.gallery.Images {
		fmt.Fprintf(sb, `<button type="button" data-slide="%d" aria-label="Slide %d"></button>`, i, i+1)
	}
	sb.WriteString(`</div>`)
}

func (g galleryContent) lightbox(sb *strings.Builder, c *Context, s models.GallerySettings) {
	sb.WriteString(`<div class="gallery-lightbox-grid">`)
	for i, img := range g.gallery.Images {
		fmt.Fprintf(sb, `<a class="gallery-item" href="#%s-lightbox-%d">`, c.Anchor(), i)
		figure(sb, img, s.Caption(i), "")
		sb.WriteString(`</a>`)
	}
	sb.WriteString(`</div>`)
	for i, img := range g.gallery.Images {
		fmt.Fprintf(sb, `<div class="gallery-lightbox-overlay" id="%s-lightbox-%d" role="dialog"><a class="gallery-lightbox-close" href="#%s" aria-label="Close">&times;</a>`,
			c.Anchor(), i, c.Anchor())
		figure(sb, img, s.Caption(i), "gallery-lightbox-image")
		sb.WriteString(`</div>`)
	}
}

func (g galleryContent) thumbnails(sb *strings.Builder, s models.GallerySettings) {
	images := g.gallery.Images
	sb.WriteString(`<div class="gallery-main">`)
	figure(sb, images[0], s.Caption(0), "gallery-main-image")
	sb.WriteString(`</div><div class="gallery-thumbs">`)
	for i, img := range images {
		class := "gallery-thumb"
		if i == 0 {
			class += " active"
		}
		fmt.Fprintf(sb, `<button type="button" class="%s" data-index="%d"><img src="%s" alt="%s" loading="lazy" /></button>`,
			class, i, esc(img.URL), esc(img.Alt))
	}
	sb.WriteString(`</div>`)
}

// collage features the first image and lays out the rest around it.
func (g galleryContent) collage(sb *strings.Builder, s models.GallerySettings) {
	for i, img := range g.gallery.Images {
		class := "gallery-item"
		if i == 0 {
			class += " gallery-feature"
		}
		figure(sb, img, s.Caption(i), class)
	}
}

func figure(sb *strings.Builder, img models.GalleryImage, caption, class string) {
	if class != "" {
		fmt.Fprintf(sb, `<figure class="%s">`, class)
	} else {
		sb.WriteString(`<figure>`)
	}
	fmt.Fprintf(sb, `<img src="%s" alt="%s" loading="lazy" />`, esc(img.URL), esc(img.Alt))
	if caption != "" {
		sb.WriteString(`<figcaption>` + esc(caption) + `</figcaption>`)
	}
	sb.WriteString(`</figure>`)
}

func roundedClass(rounded bool) string {
	if rounded {
		return " gallery-rounded"
	}
	return ""
}
