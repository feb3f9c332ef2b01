package output

import (
	"github.com/jedib0t/go-pretty/v6/table"
)

// Table writes rows under headers. Text mode draws a box, every other mode
// except JSON emits a markdown table. In JSON mode rows become objects keyed
// by header.
func (r *Renderer) Table(headers []string, rows [][]any) error {
	if r.EffectiveMode() == ModeJSON {
		objs := make([]map[string]any, 0, len(rows))
		for _, row := range rows {
			obj := make(map[string]any, len(headers))
			for i, h := range headers {
				if i < len(row) {
					obj[h] = row[i]
				}
			}
			objs = append(objs, obj)
		}
		return r.JSON(objs)
	}

	t := table.NewWriter()
	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	t.AppendHeader(header)
	for _, row := range rows {
		t.AppendRow(table.Row(row))
	}

	if r.EffectiveMode() == ModeText {
		t.SetStyle(table.StyleLight)
		r.Println(t.Render())
		return nil
	}
	r.Println(t.RenderMarkdown())
	return nil
}
