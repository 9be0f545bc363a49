package output

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Table writes rows under headers: a light box table in text mode and a
// pipe table in markdown mode.
func (r *Renderer) Table(headers []string, rows [][]string) {
	if r.EffectiveMode() == ModeMarkdown {
		r.markdownTable(headers, rows)
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.w)
	t.SetStyle(table.StyleLight)
	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	t.AppendHeader(header)
	for _, row := range rows {
		tr := make(table.Row, len(row))
		for i, cell := range row {
			tr[i] = cell
		}
		t.AppendRow(tr)
	}
	t.Render()
}

func (r *Renderer) markdownTable(headers []string, rows [][]string) {
	r.Printf("| %s |\n", strings.Join(escapeCells(headers), " | "))
	sep := make([]string, len(headers))
	for i := range sep {
		sep[i] = "---"
	}
	r.Printf("| %s |\n", strings.Join(sep, " | "))
	for _, row := range rows {
		r.Printf("| %s |\n", strings.Join(escapeCells(row), " | "))
	}
	r.Println()
}

func escapeCells(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		c = strings.ReplaceAll(c, "|", `\|`)
		out[i] = strings.ReplaceAll(c, "\n", " ")
	}
	return out
}
