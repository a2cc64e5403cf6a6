package render

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/mx-space/blockdraft/internal/models"
)

// textContent holds markdown; inline HTML passes through the sanitizer.
type textContent struct{ markdown string }

func (textContent) Type() models.BlockType { return models.BlockText }

func (t textContent) render(c *Context) string {
	if strings.TrimSpace(t.markdown) == "" {
		return `<div class="text-block text-block-empty"></div>`
	}
	return `<div class="text-block">` + c.clean(markdownHTML(t.markdown)) + `</div>`
}

type headingContent struct{ text string }

func (headingContent) Type() models.BlockType { return models.BlockHeading }

func (h headingContent) render(c *Context) string {
	return fmt.Sprintf(`<h2 id="%s-heading" class="heading-block">%s</h2>`, c.Anchor(), esc(h.text))
}

type imageContent struct{ img models.ImagePayload }

func (imageContent) Type() models.BlockType { return models.BlockImage }

func (i imageContent) render(*Context) string {
	if !safeURL(i.img.URL) {
		return placeholder("image", "No image")
	}
	var sb strings.Builder
	sb.WriteString(`<figure class="image-block">`)
	fmt.Fprintf(&sb, `<img src="%s" alt="%s" loading="lazy"`, esc(i.img.URL), esc(i.img.Alt))
	if i.img.Width > 0 && i.img.Height > 0 {
		fmt.Fprintf(&sb, ` width="%d" height="%d"`, i.img.Width, i.img.Height)
	}
	sb.WriteString(` />`)
	if caption := strings.TrimSpace(i.img.Caption); caption != "" {
		sb.WriteString(`<figcaption>` + esc(caption) + `</figcaption>`)
	}
	sb.WriteString(`</figure>`)
	return sb.String()
}

type codeContent struct {
	source      string
	language    string
	highlighted string
}

func (codeContent) Type() models.BlockType { return models.BlockCode }

// render prefers the cached highlighted markup; without it the raw source is
// escaped.
func (cc codeContent) render(c *Context) string {
	lang := strings.TrimSpace(cc.language)
	if lang == "" {
		lang = "plaintext"
	}
	body := esc(cc.source)
	if strings.TrimSpace(cc.highlighted) != "" {
		body = c.clean(cc.highlighted)
	}
	return fmt.Sprintf(`<pre class="code-block"><code class="language-%s">%s</code></pre>`, esc(lang), body)
}

type quoteContent struct {
	markdown string
	cite     string
}

func (quoteContent) Type() models.BlockType { return models.BlockQuote }

func (q quoteContent) render(c *Context) string {
	var sb strings.Builder
	sb.WriteString(`<blockquote class="quote-block">`)
	sb.WriteString(c.clean(markdownHTML(q.markdown)))
	if q.cite != "" {
		sb.WriteString(`<cite>` + esc(q.cite) + `</cite>`)
	}
	sb.WriteString(`</blockquote>`)
	return sb.String()
}

type ruleContent struct {
	kind  models.BlockType
	label string
}

func (r ruleContent) Type() models.BlockType { return r.kind }

func (r ruleContent) render(*Context) string {
	if r.kind == models.BlockSeparator {
		if r.label != "" {
			return `<div class="separator-block" role="separator"><span>` + esc(r.label) + `</span></div>`
		}
		return `<div class="separator-block" role="separator"><span>* * *</span></div>`
	}
	return `<hr class="divider-block" />`
}

var noticeLevels = map[string]bool{"info": true, "warning": true, "error": true, "success": true}

func noticeLevel(name string) string {
	level := strings.ToLower(strings.TrimSpace(name))
	if !noticeLevels[level] {
		return "info"
	}
	return level
}

type noticeContent struct {
	level    string
	markdown string
}

func (noticeContent) Type() models.BlockType { return models.BlockNotice }

func (n noticeContent) render(c *Context) string {
	return fmt.Sprintf(`<aside class="notice-block notice-%s" role="note">%s</aside>`, n.level, c.clean(markdownHTML(n.markdown)))
}

type excerptContent struct{ markdown string }

func (excerptContent) Type() models.BlockType { return models.BlockExcerpt }

func (e excerptContent) render(c *Context) string {
	if strings.TrimSpace(e.markdown) == "" {
		return `<div class="excerpt-block excerpt-empty"></div>`
	}
	return `<div class="excerpt-block">` + c.clean(markdownHTML(e.markdown)) + `</div>`
}

type timelineContent struct{ payload models.TimelinePayload }

func (timelineContent) Type() models.BlockType { return models.BlockTimeline }

func (t timelineContent) render(*Context) string {
	if len(t.payload.Items) == 0 {
		return placeholder("timeline", "No timeline entries")
	}
	var sb strings.Builder
	sb.WriteString(`<ol class="timeline-block">`)
	for _, item := range t.payload.Items {
		sb.WriteString(`<li class="timeline-item">`)
		fmt.Fprintf(&sb, `<time>%s</time><strong>%s</strong>`, esc(item.Date), esc(item.Title))
		if d := strings.TrimSpace(item.Description); d != "" {
			sb.WriteString(`<p>` + esc(d) + `</p>`)
		}
		sb.WriteString(`</li>`)
	}
	sb.WriteString(`</ol>`)
	return sb.String()
}

type spacingContent struct{ height int }

func (spacingContent) Type() models.BlockType { return models.BlockSpacing }

// render collapses runs of spacing blocks: only the last block of a run
// renders, with the largest height of the run.
func (s spacingContent) render(c *Context) string {
	if next, ok := c.Next(); ok && next.Type == models.BlockSpacing {
		return ""
	}
	height := s.height
	for i := c.Index - 1; i >= 0 && c.Blocks[i].Type == models.BlockSpacing; i-- {
		if prev, err := Decode(c.Blocks[i]); err == nil {
			if sp, ok := prev.(spacingContent); ok && sp.height > height {
				height = sp.height
			}
		}
	}
	return fmt.Sprintf(`<div class="spacing-block" style="height:%dpx" aria-hidden="true"></div>`, height)
}

type linkPreviewContent struct{ link models.LinkPreviewPayload }

func (linkPreviewContent) Type() models.BlockType { return models.BlockLinkPreview }

func (l linkPreviewContent) render(*Context) string {
	if !safeURL(l.link.URL) {
		return placeholder("link-preview", "No link")
	}
	title := strings.TrimSpace(l.link.Title)
	if title == "" {
		title = hostOf(l.link.URL)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, `<a class="link-preview-block" href="%s" target="_blank" rel="noopener noreferrer">`, esc(l.link.URL))
	if safeURL(l.link.Image) {
		fmt.Fprintf(&sb, `<img src="%s" alt="" loading="lazy" />`, esc(l.link.Image))
	}
	sb.WriteString(`<span class="link-preview-title">` + esc(title) + `</span>`)
	if d := strings.TrimSpace(l.link.Description); d != "" {
		sb.WriteString(`<span class="link-preview-description">` + esc(d) + `</span>`)
	}
	sb.WriteString(`<span class="link-preview-host">` + esc(hostOf(l.link.URL)) + `</span></a>`)
	return sb.String()
}

// safeURL accepts absolute http(s) URLs and site-relative paths.
func safeURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	if strings.HasPrefix(raw, "/") && !strings.HasPrefix(raw, "//") {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func hostOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return raw
	}
	return strings.TrimPrefix(u.Host, "www.")
}
