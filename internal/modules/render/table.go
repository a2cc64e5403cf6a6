package render

import (
	"strings"

	"github.com/mx-space/blockdraft/internal/models"
)

type tableContent struct {
	table models.TablePayload
	ok    bool
}

func (tableContent) Type() models.BlockType { return models.BlockTable }

// decodeTable never fails: a payload that does not describe a rows x cols
// grid renders the empty state.
func decodeTable(data string) tableContent {
	t, err := models.DecodePayload[models.TablePayload](data)
	if err != nil || !t.Valid() {
		return tableContent{}
	}
	return tableContent{table: t, ok: true}
}

func (t tableContent) render(*Context) string {
	if !t.ok {
		return placeholder("table", "No table defined")
	}
	var sb strings.Builder
	sb.WriteString(`<div class="table-block"><table>`)
	rows := t.table.Data
	if t.table.Header && len(rows) > 0 {
		sb.WriteString(`<thead><tr>`)
		for _, cell := range rows[0] {
			sb.WriteString(`<th>` + esc(cell) + `</th>`)
		}
		sb.WriteString(`</tr></thead>`)
		rows = rows[1:]
	}
	sb.WriteString(`<tbody>`)
	for _, row := range rows {
		sb.WriteString(`<tr>`)
		for _, cell := range row {
			sb.WriteString(`<td>` + esc(cell) + `</td>`)
		}
		sb.WriteString(`</tr>`)
	}
	sb.WriteString(`</tbody></table></div>`)
	return sb.String()
}
