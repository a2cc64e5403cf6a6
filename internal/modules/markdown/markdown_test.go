package markdown

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/mx-space/blockdraft/internal/database"
	"github.com/mx-space/blockdraft/internal/middleware"
	"github.com/mx-space/blockdraft/internal/models"
	"github.com/mx-space/blockdraft/internal/modules/draft"
	"github.com/mx-space/blockdraft/internal/modules/render"
	"github.com/mx-space/blockdraft/internal/pkg/jwt"
)

const sample = "---\ntitle: From YAML\ndescription: short\n---\n\n" +
	"Intro paragraph.\n\n" +
	"## Setup\n\n" +
	"- one\n- two\n\n" +
	"### Details\n\n" +
	"```go\nfmt.Println(1)\n```\n\n" +
	"> quoted\n> text\n\n" +
	"---\n\n" +
	"![alt text](https://example.com/a.png \"Caption\")\n\n" +
	"| a | b |\n|---|---|\n| 1 | 2 |\n"

func TestParseMapsNodesToBlocks(t *testing.T) {
	doc, err := Parse(sample)
	require.NoError(t, err)
	assert.Equal(t, "From YAML", doc.FrontMatter.Title)
	assert.Equal(t, "short", doc.FrontMatter.Description)

	types := make([]models.BlockType, len(doc.Blocks))
	for i, b := range doc.Blocks {
		types[i] = b.Type
	}
	assert.Equal(t, []models.BlockType{
		models.BlockText,
		models.BlockHeading,
		models.BlockText,
		models.BlockCode,
		models.BlockQuote,
		models.BlockDivider,
		models.BlockImage,
		models.BlockTable,
	}, types)

	assert.Equal(t, "Intro paragraph.", doc.Blocks[0].Data)
	assert.Equal(t, "Setup", doc.Blocks[1].Data)
	assert.Equal(t, "- one\n- two\n\n### Details", doc.Blocks[2].Data)
	assert.Equal(t, "fmt.Println(1)", doc.Blocks[3].Data)
	assert.Equal(t, "go", doc.Blocks[3].Language)
	assert.Equal(t, "quoted\ntext", doc.Blocks[4].Data)

	img, err := models.DecodePayload[models.ImagePayload](doc.Blocks[6].Data)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a.png", img.URL)
	assert.Equal(t, "alt text", img.Alt)
	assert.Equal(t, "Caption", img.Caption)

	table, err := models.DecodePayload[models.TablePayload](doc.Blocks[7].Data)
	require.NoError(t, err)
	assert.True(t, table.Valid())
	assert.True(t, table.Header)
	assert.Equal(t, [][]string{{"a", "b"}, {"1", "2"}}, table.Data)
}

func TestParseLeadingHeadingBecomesTitle(t *testing.T) {
	doc, err := Parse("# Title\n\n# Second\n\nbody")
	require.NoError(t, err)
	assert.Equal(t, "Title", doc.FrontMatter.Title)
	require.Len(t, doc.Blocks, 2)
	assert.Equal(t, models.BlockHeading, doc.Blocks[0].Type)
	assert.Equal(t, "Second", doc.Blocks[0].Data)
}

func TestImportedTextPreviewsAsMarkdown(t *testing.T) {
	doc, err := Parse("Intro with **bold**.\n\n- one\n- two\n\n### Details")
	require.NoError(t, err)

	out := string(render.RenderDocument(doc.Blocks, render.DefaultOptions()))
	assert.Contains(t, out, "<strong>bold</strong>")
	assert.Contains(t, out, "<li>one")
	assert.NotContains(t, out, "### Details")

	var headings []string
	for _, e := range render.ExtractTOC(doc.Blocks) {
		headings = append(headings, e.Text)
	}
	assert.Contains(t, headings, "Details")
}

func TestParseEmptyAndBrokenFrontMatter(t *testing.T) {
	doc, err := Parse("")
	require.NoError(t, err)
	assert.Empty(t, doc.Blocks)

	_, err = Parse("---\ntitle: [unclosed\n---\nbody")
	assert.Error(t, err)
}

func TestExportWithFrontMatterRoundTrips(t *testing.T) {
	d := &models.DraftModel{
		Base:    models.Base{ID: "01HF53Z4RCVPRANKFBZYMS72QW", CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
		Title:   "Hello",
		Status:  models.DraftStatusDraft,
		Version: 3,
		Blocks: models.BlockList{
			{Type: models.BlockHeading, Data: "Intro"},
			{Type: models.BlockCode, Data: "x := 1", Language: "go"},
		},
	}
	out, err := Export(d, ExportOptions{FrontMatter: true, ShowTitle: true})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "---\n"))
	assert.Contains(t, out, "# Hello\n\n## Intro")
	assert.Contains(t, out, "```go\nx := 1\n```")

	back, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, d.ID, back.FrontMatter.ID)
	assert.Equal(t, 3, back.FrontMatter.Version)
	require.Len(t, back.Blocks, 2)
	assert.Equal(t, "Intro", back.Blocks[0].Data)
	assert.Equal(t, "x := 1", back.Blocks[1].Data)
}

func TestArchiveHasOneFilePerDraft(t *testing.T) {
	drafts := []models.DraftModel{
		{Base: models.Base{ID: "a"}, Blocks: models.BlockList{{Type: models.BlockText, Data: "one"}}},
		{Base: models.Base{ID: "b"}, Blocks: models.BlockList{{Type: models.BlockText, Data: "two"}}},
	}
	raw, err := Archive(drafts, ExportOptions{})
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	assert.Equal(t, "drafts/a.md", zr.File[0].Name)

	f, err := zr.File[1].Open()
	require.NoError(t, err)
	defer f.Close()
	content, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "two", strings.TrimSpace(string(content)))
}

func TestImportHandlerCreatesDrafts(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db, err := database.Open(sqlite.Open("file::memory:"), logger.Silent)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	svc := draft.NewService(db, nil)
	router := gin.New()
	NewHandler(svc, nil).RegisterRoutes(router.Group("/api/v2"), middleware.Auth())
	token, err := jwt.Sign("user-1", time.Hour)
	require.NoError(t, err)

	body, err := json.Marshal(map[string]any{
		"data": []map[string]string{
			{"text": sample},
			{"title": "Override", "text": "plain"},
			{"text": "---\ntitle: [broken\n---\n"},
		},
	})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v2/markdown/import", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out struct {
		Imported int      `json:"imported"`
		IDs      []string `json:"ids"`
		Failed   []struct {
			Index int `json:"index"`
		} `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, 2, out.Imported)
	require.Len(t, out.Failed, 1)
	assert.Equal(t, 2, out.Failed[0].Index)

	first, err := svc.Load(req.Context(), out.IDs[0])
	require.NoError(t, err)
	assert.Equal(t, "From YAML", first.Title)
	assert.Len(t, first.Blocks, 8)

	second, err := svc.Load(req.Context(), out.IDs[1])
	require.NoError(t, err)
	assert.Equal(t, "Override", second.Title)
}
