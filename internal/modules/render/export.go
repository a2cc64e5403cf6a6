package render

import (
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"

	"github.com/mx-space/blockdraft/internal/models"
)

var converter = newConverter()

func newConverter() *md.Converter {
	conv := md.NewConverter("", true, nil)
	conv.Use(plugin.GitHubFlavored())
	return conv
}

// ToMarkdown exports a block sequence as a markdown document. Headings and
// code keep their source; every other block goes through its preview and is
// converted back from HTML.
func ToMarkdown(blocks []models.Block) (string, error) {
	parts := make([]string, 0, len(blocks))
	opts := DefaultOptions()
	for i, b := range blocks {
		var part string
		switch b.Type {
		case models.BlockHeading:
			if text := HeadingText(b); text != "" {
				part = "## " + text
			}
		case models.BlockCode:
			lang := strings.TrimSpace(b.Language)
			if lang == "plaintext" {
				lang = ""
			}
			fence := "```"
			for strings.Contains(b.Data, fence) {
				fence += "`"
			}
			part = fence + lang + "\n" + strings.TrimRight(b.Data, "\n") + "\n" + fence
		case models.BlockTOC:
			// regenerated by the reader
			continue
		default:
			out, err := converter.ConvertString(string(RenderBlock(blocks, i, opts)))
			if err != nil {
				return "", fmt.Errorf("convert block %d (%s): %w", i, b.Type, err)
			}
			part = strings.TrimSpace(out)
		}
		if part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return "", nil
	}
	return strings.Join(parts, "\n\n") + "\n", nil
}
