package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mx-space/blockdraft/internal/models"
	"github.com/mx-space/blockdraft/internal/modules/registry"
)

func renderOne(b models.Block) string {
	return string(RenderBlock([]models.Block{b}, 0, DefaultOptions()))
}

func TestEveryBlockTypeHasPreview(t *testing.T) {
	reg := registry.Default()
	for _, bt := range models.AllBlockTypes() {
		t.Run(string(bt), func(t *testing.T) {
			content, err := Decode(reg.NewBlock(bt, ""))
			require.NoError(t, err)
			assert.Equal(t, bt, content.Type())

			out := renderOne(reg.NewBlock(bt, ""))
			assert.NotContains(t, out, "Unknown block type")
			assert.NotContains(t, out, "block-placeholder-error")
		})
	}
}

func TestUnknownBlockType(t *testing.T) {
	out := renderOne(models.Block{Type: "carousel", Data: "x"})
	assert.Contains(t, out, "Unknown block type: carousel")
}

func TestTable(t *testing.T) {
	out := renderOne(models.Block{Type: models.BlockTable, Data: `{"rows":2,"cols":2,"data":[["a","b"],["c","d"]]}`})
	assert.Equal(t, 2, strings.Count(out, "<tr>"))
	assert.Equal(t, 4, strings.Count(out, "<td>"))
	assert.Contains(t, out, "<td>d</td>")

	withHeader := renderOne(models.Block{Type: models.BlockTable, Data: `{"rows":2,"cols":1,"header":true,"data":[["h"],["v"]]}`})
	assert.Contains(t, withHeader, "<th>h</th>")
	assert.Contains(t, withHeader, "<td>v</td>")

	for _, data := range []string{"not json", "", `{"rows":2,"cols":2,"data":[["a","b"]]}`, `{"rows":0,"cols":0,"data":[]}`} {
		out := renderOne(models.Block{Type: models.BlockTable, Data: data})
		assert.Contains(t, out, "No table defined", data)
	}
}

func TestTableEscapesCells(t *testing.T) {
	out := renderOne(models.Block{Type: models.BlockTable, Data: `{"rows":1,"cols":1,"data":[["<script>x</script>"]]}`})
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "&lt;script&gt;")
}

func TestExtractTOC(t *testing.T) {
	blocks := []models.Block{
		{Type: models.BlockHeading, Data: "Intro"},
		{Type: models.BlockText, Data: "<h2>Sub</h2>"},
		{Type: models.BlockTOC, Data: "<h2>Ignored</h2>"},
	}
	entries := ExtractTOC(blocks)
	require.Len(t, entries, 2)
	assert.Equal(t, TOCEntry{Text: "Intro", Level: 2, Index: 0, Anchor: "block-0"}, entries[0])
	assert.Equal(t, TOCEntry{Text: "Sub", Level: 2, Index: 1, Anchor: "block-1"}, entries[1])
}

func TestExtractTOCFallbacksAndLevels(t *testing.T) {
	blocks := []models.Block{
		{Type: models.BlockHeading, Data: "  ", Name: " Named "},
		{Type: models.BlockHeading},
		{Type: models.BlockText, Data: `<p>x</p><h3>Deep <em>one</em></h3><div><h2>Nested</h2></div><h4>skip</h4>`},
	}
	entries := ExtractTOC(blocks)
	require.Len(t, entries, 3)
	assert.Equal(t, "Named", entries[0].Text)
	assert.Equal(t, "Deep one", entries[1].Text)
	assert.Equal(t, 3, entries[1].Level)
	assert.Equal(t, "Nested", entries[2].Text)
	assert.Equal(t, 2, entries[2].Index)
}

func TestTextBlocksAreMarkdown(t *testing.T) {
	blocks := []models.Block{
		{Type: models.BlockText, Data: "Intro with **bold**.\n\n- one\n- two\n\n### Details"},
	}
	out := string(RenderBlock(blocks, 0, DefaultOptions()))
	assert.Contains(t, out, "<strong>bold</strong>")
	assert.Contains(t, out, "<li>one</li>")
	assert.Contains(t, out, "<h3>Details</h3>")
	assert.NotContains(t, out, "**")

	entries := ExtractTOC(blocks)
	require.Len(t, entries, 1)
	assert.Equal(t, TOCEntry{Text: "Details", Level: 3, Index: 0, Anchor: "block-0"}, entries[0])
}

func TestTOCBlockRender(t *testing.T) {
	blocks := []models.Block{
		{Type: models.BlockTOC},
		{Type: models.BlockHeading, Data: "First"},
	}
	out := string(RenderBlock(blocks, 0, DefaultOptions()))
	assert.Contains(t, out, `href="#block-1"`)
	assert.Contains(t, out, "First")

	empty := string(RenderBlock(blocks[:1], 0, DefaultOptions()))
	assert.Contains(t, empty, "No headings")
}

func TestHeadingFallback(t *testing.T) {
	assert.Contains(t, renderOne(models.Block{Type: models.BlockHeading, Data: " Title "}), ">Title</h2>")
	assert.Contains(t, renderOne(models.Block{Type: models.BlockHeading, Name: "Label"}), ">Label</h2>")
	assert.Contains(t, renderOne(models.Block{Type: models.BlockHeading}), "></h2>")
}

func TestGallery(t *testing.T) {
	payload := func(mode models.GalleryMode) string {
		g := models.DefaultGalleryPayload()
		g.Settings.Mode = mode
		g.Settings.ShowCaptions = true
		g.Settings.Captions = []string{"one"}
		g.Images = []models.GalleryImage{{URL: "https://img.example/1.png"}, {URL: "https://img.example/2.png"}}
		data, err := models.EncodePayload(g)
		require.NoError(t, err)
		return data
	}

	seen := map[string]bool{}
	for _, mode := range []models.GalleryMode{
		models.GalleryGrid, models.GallerySlider, models.GalleryLightbox, models.GalleryMasonry,
		models.GalleryCollage, models.GalleryThumbnails, models.GallerySlideshow, models.GalleryFullscreen,
	} {
		out := renderOne(models.Block{Type: models.BlockGallery, Data: payload(mode)})
		assert.Contains(t, out, "gallery-"+string(mode))
		captions := 1
		if mode == models.GalleryLightbox {
			// thumbnail and overlay
			captions = 2
		}
		assert.Equal(t, captions, strings.Count(out, "<figcaption>one</figcaption>"), mode)
		assert.False(t, seen[out], "mode %s renders like another mode", mode)
		seen[out] = true
	}

	slider := renderOne(models.Block{Type: models.BlockGallery, Data: payload(models.GallerySlider)})
	assert.Contains(t, slider, `data-autoplay="false"`)
	assert.Contains(t, slider, `data-interval="3000"`)

	slideshow := renderOne(models.Block{Type: models.BlockGallery, Data: payload(models.GallerySlideshow)})
	assert.Contains(t, slideshow, `data-autoplay="true"`)

	lightbox := renderOne(models.Block{Type: models.BlockGallery, Data: payload(models.GalleryLightbox)})
	assert.Equal(t, 2, strings.Count(lightbox, "gallery-lightbox-overlay"))

	grid := renderOne(models.Block{Type: models.BlockGallery, Data: payload(models.GalleryGrid)})
	assert.Contains(t, grid, "--gallery-ratio:1 / 1")
}

func TestGalleryMalformedDegrades(t *testing.T) {
	for _, data := range []string{"", "{oops", `{"images":[]}`, `{"images":[{"url":"javascript:alert(1)"}]}`} {
		out := renderOne(models.Block{Type: models.BlockGallery, Data: data})
		assert.Contains(t, out, "No images in gallery", data)
	}
}

func TestMatchVideo(t *testing.T) {
	tests := []struct {
		url   string
		kind  VideoKind
		embed string
	}{
		{"", VideoEmpty, ""},
		{"   ", VideoEmpty, ""},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", VideoYouTube, "https://www.youtube-nocookie.com/embed/dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", VideoYouTube, "https://www.youtube-nocookie.com/embed/dQw4w9WgXcQ"},
		{"https://youtube.com/shorts/abcdefghijk", VideoYouTube, "https://www.youtube-nocookie.com/embed/abcdefghijk"},
		{"https://vimeo.com/76979871", VideoVimeo, "https://player.vimeo.com/video/76979871"},
		{"https://www.bilibili.com/video/BV1GJ411x7h7", VideoBilibili, "https://player.bilibili.com/player.html?bvid=BV1GJ411x7h7"},
		{"https://www.bilibili.com/video/av170001", VideoBilibili, "https://player.bilibili.com/player.html?aid=170001"},
		{"https://cdn.example.com/clip.MP4?token=1", VideoFile, "https://cdn.example.com/clip.MP4?token=1"},
		{"https://example.com/embed/42", VideoIframe, "https://example.com/embed/42"},
		{"javascript:alert(1)", VideoUnsupported, ""},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			v := MatchVideo(tt.url)
			assert.Equal(t, tt.kind, v.Kind)
			assert.Equal(t, tt.embed, v.Embed)
		})
	}
}

func TestVideoEmptyStateDiffersFromUnrecognized(t *testing.T) {
	empty := renderOne(models.Block{Type: models.BlockVideo})
	bad := renderOne(models.Block{Type: models.BlockVideo, Data: "ftp://x/y"})
	file := renderOne(models.Block{Type: models.BlockVideo, Data: "https://x.example/a.webm"})

	assert.Contains(t, empty, "No video URL")
	assert.Contains(t, bad, "Unsupported video URL")
	assert.Contains(t, file, `type="video/webm"`)
}

func TestCode(t *testing.T) {
	raw := renderOne(models.Block{Type: models.BlockCode, Data: "a < b", Language: "go"})
	assert.Contains(t, raw, `class="language-go"`)
	assert.Contains(t, raw, "a &lt; b")

	cached := renderOne(models.Block{Type: models.BlockCode, Data: "ignored", Highlighted: `<span class="kw">func</span>`})
	assert.Contains(t, cached, `<span class="kw">func</span>`)
	assert.Contains(t, cached, `class="language-plaintext"`)
	assert.NotContains(t, cached, "ignored")
}

func TestTextIsSanitized(t *testing.T) {
	out := renderOne(models.Block{Type: models.BlockText, Data: `<p onclick="x()">hi</p><script>alert(1)</script>`})
	assert.Contains(t, out, "<p>hi</p>")
	assert.NotContains(t, out, "script")
	assert.NotContains(t, out, "onclick")

	raw := string(RenderBlock([]models.Block{{Type: models.BlockText, Data: "<b onclick=\"x\">y</b>"}}, 0, Options{}))
	assert.Contains(t, raw, "onclick")
}

func TestNotice(t *testing.T) {
	out := renderOne(models.Block{Type: models.BlockNotice, Name: "Warning", Data: "**careful**"})
	assert.Contains(t, out, "notice-warning")
	assert.Contains(t, out, "<strong>careful</strong>")

	assert.Contains(t, renderOne(models.Block{Type: models.BlockNotice, Name: "shout"}), "notice-info")
}

func TestSpacingRunsCollapse(t *testing.T) {
	blocks := []models.Block{
		{Type: models.BlockSpacing, Data: "large"},
		{Type: models.BlockSpacing, Data: "small"},
		{Type: models.BlockText, Data: "x"},
	}
	assert.Empty(t, string(RenderBlock(blocks, 0, DefaultOptions())))
	assert.Contains(t, string(RenderBlock(blocks, 1, DefaultOptions())), "height:64px")
}

func TestShortcode(t *testing.T) {
	out := renderOne(models.Block{Type: models.BlockShortcode, Data: `[button href="/go" label='Go now']`})
	assert.Contains(t, out, `data-shortcode="button"`)
	assert.Contains(t, out, `data-href="/go"`)
	assert.Contains(t, out, `data-label="Go now"`)

	raw := renderOne(models.Block{Type: models.BlockShortcode, Data: "not a shortcode"})
	assert.Contains(t, raw, "shortcode-raw")
}

func TestMalformedBlockDoesNotStopDocument(t *testing.T) {
	blocks := []models.Block{
		{Type: models.BlockImage, Data: "{broken"},
		{Type: models.BlockTimeline, Data: "[not an object"},
		{Type: models.BlockHeading, Data: "Still here"},
	}
	before := models.CloneBlocks(blocks)

	out := string(RenderDocument(blocks, DefaultOptions()))
	assert.Contains(t, out, "Invalid image block")
	assert.Contains(t, out, "Invalid timeline block")
	assert.Contains(t, out, "Still here")
	assert.Equal(t, 3, strings.Count(out, "<section"))
	assert.Contains(t, out, `id="block-2"`)
	assert.Equal(t, before, blocks)
}

func TestRenderBlockOutOfRange(t *testing.T) {
	assert.Empty(t, string(RenderBlock(nil, 0, DefaultOptions())))
}

func TestToMarkdown(t *testing.T) {
	blocks := []models.Block{
		{Type: models.BlockHeading, Data: "Intro"},
		{Type: models.BlockText, Data: "<p>Hello <strong>world</strong></p>"},
		{Type: models.BlockCode, Data: "x := 1", Language: "go"},
		{Type: models.BlockTOC},
		{Type: models.BlockDivider},
	}
	out, err := ToMarkdown(blocks)
	require.NoError(t, err)
	assert.Contains(t, out, "## Intro")
	assert.Contains(t, out, "Hello **world**")
	assert.Contains(t, out, "```go\nx := 1\n```")

	empty, err := ToMarkdown(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
