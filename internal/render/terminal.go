package render

import (
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/SwapnilGautama/HaloQuality/internal/question"
)

// Terminal draws results as text tables.
type Terminal struct {
	w     io.Writer
	style table.Style
}

// NewTerminal returns a renderer writing to w.
func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w, style: table.StyleLight}
}

// Render writes a run result. NoData prints its message only.
func (t *Terminal) Render(res *question.Result) error {
	if res.Empty() {
		_, err := fmt.Fprintf(t.w, "%s: %s\n", res.NoData.ID, res.NoData.Message)
		return err
	}
	p := res.Payload

	if p.Insights != "" {
		fmt.Fprintf(t.w, "%s\n\n", PlainText(p.Insights))
	}
	for _, c := range p.Cards {
		t.card(c)
	}
	for _, tbl := range p.Tables {
		if m, ok := TableMatrix(tbl); ok {
			t.matrix(tbl.Title, m)
			continue
		}
		t.table(tbl)
	}
	for _, c := range p.Charts {
		rows, ok := ChartRows(p, c)
		if !ok {
			continue
		}
		if c.Type == question.ChartHeatmap {
			t.matrix(c.Title, ChartMatrix(c, rows))
			continue
		}
		t.series(c, rows)
	}
	return nil
}

func (t *Terminal) writer(title string) table.Writer {
	w := table.NewWriter()
	w.SetOutputMirror(t.w)
	w.SetStyle(t.style)
	if title != "" {
		w.SetTitle(title)
	}
	return w
}

func (t *Terminal) card(c question.Card) {
	w := t.writer(c.Title)
	keys := make([]string, 0, len(c.Data))
	for k := range c.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		w.AppendRow(table.Row{k, FormatCell(c.Data[k])})
	}
	w.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	w.Render()
	fmt.Fprintln(t.w)
}

func (t *Terminal) table(tbl question.Table) {
	w := t.writer(tbl.Title)
	header := make(table.Row, len(tbl.Data.Columns))
	for i, c := range tbl.Data.Columns {
		header[i] = c
	}
	w.AppendHeader(header)
	for _, r := range tbl.Data.Rows {
		row := make(table.Row, len(tbl.Data.Columns))
		for i, c := range tbl.Data.Columns {
			row[i] = FormatCell(r[c])
		}
		w.AppendRow(row)
	}
	if len(tbl.Data.Rows) == 0 {
		w.AppendRow(table.Row{"(no rows)"})
	}
	w.Render()
	fmt.Fprintln(t.w)
}

func (t *Terminal) matrix(title string, m Matrix) {
	w := t.writer(title)
	header := table.Row{m.RowDimension}
	for _, c := range m.Columns {
		header = append(header, c)
	}
	w.AppendHeader(header)
	for _, r := range m.Rows {
		row := table.Row{r.Label}
		for _, c := range r.Cells {
			row = append(row, FormatCell(c))
		}
		w.AppendRow(row)
	}
	w.Render()
	fmt.Fprintln(t.w)
}

func (t *Terminal) series(c question.Chart, rows []question.Row) {
	w := t.writer(c.Title)
	w.AppendHeader(table.Row{c.X, c.Y})
	for _, r := range rows {
		w.AppendRow(table.Row{FormatCell(r[c.X]), FormatCell(r[c.Y])})
	}
	w.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	w.Render()
	fmt.Fprintln(t.w)
}
