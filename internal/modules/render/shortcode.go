package render

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/mx-space/blockdraft/internal/models"
)

var (
	shortcodePattern = regexp.MustCompile(`^\[\s*([A-Za-z][\w-]*)((?:\s+[\w-]+\s*=\s*(?:"[^"]*"|'[^']*'|[^\s\]]+))*)\s*/?\]$`)
	shortcodeAttr    = regexp.MustCompile(`([\w-]+)\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s\]]+))`)
)

type shortcodeContent struct {
	raw   string
	name  string
	attrs map[string]string
}

func (shortcodeContent) Type() models.BlockType { return models.BlockShortcode }

// parseShortcode reads `[name key="value" ...]`. Anything else is kept raw
// and shown as text.
func parseShortcode(data string) shortcodeContent {
	raw := strings.TrimSpace(data)
	m := shortcodePattern.FindStringSubmatch(raw)
	if m == nil {
		return shortcodeContent{raw: raw}
	}
	attrs := map[string]string{}
	for _, a := range shortcodeAttr.FindAllStringSubmatch(m[2], -1) {
		attrs[strings.ToLower(a[1])] = a[2] + a[3] + a[4]
	}
	return shortcodeContent{raw: raw, name: strings.ToLower(m[1]), attrs: attrs}
}

func (s shortcodeContent) render(*Context) string {
	if s.raw == "" {
		return placeholder("shortcode", "Empty shortcode")
	}
	if s.name == "" {
		return `<div class="shortcode-block shortcode-raw"><code>` + esc(s.raw) + `</code></div>`
	}
	keys := make([]string, 0, len(s.attrs))
	for k := range s.attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	fmt.Fprintf(&sb, `<div class="shortcode-block" data-shortcode="%s"`, esc(s.name))
	for _, k := range keys {
		fmt.Fprintf(&sb, ` data-%s="%s"`, esc(k), esc(s.attrs[k]))
	}
	sb.WriteString(`><code>` + esc(s.raw) + `</code></div>`)
	return sb.String()
}
