package markdown

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mx-space/blockdraft/internal/models"
	"github.com/mx-space/blockdraft/internal/modules/render"
)

// ExportOptions mirror the export query flags.
type ExportOptions struct {
	ShowTitle   bool
	FrontMatter bool
}

// Export renders one draft as a markdown file.
func Export(d *models.DraftModel, opts ExportOptions) (string, error) {
	body, err := render.ToMarkdown(d.Blocks)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	if opts.FrontMatter {
		header, err := yaml.Marshal(FrontMatter{
			ID:          d.ID,
			Title:       d.Title,
			Description: d.Description,
			Status:      string(d.Status),
			Version:     d.Version,
			Date:        d.CreatedAt.UTC().Format(time.RFC3339),
		})
		if err != nil {
			return "", fmt.Errorf("encode front matter: %w", err)
		}
		sb.WriteString("---\n")
		sb.Write(header)
		sb.WriteString("---\n\n")
	}
	if opts.ShowTitle && strings.TrimSpace(d.Title) != "" {
		sb.WriteString("# " + strings.TrimSpace(d.Title) + "\n\n")
	}
	sb.WriteString(body)
	return sb.String(), nil
}

// Archive bundles drafts into a zip with one markdown file per draft.
func Archive(drafts []models.DraftModel, opts ExportOptions) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)
	for i := range drafts {
		content, err := Export(&drafts[i], opts)
		if err != nil {
			return nil, fmt.Errorf("export draft %s: %w", drafts[i].ID, err)
		}
		f, err := w.Create(fmt.Sprintf("drafts/%s.md", drafts[i].ID))
		if err != nil {
			return nil, err
		}
		if _, err := f.Write([]byte(content)); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
