package server

import (
	"fmt"
	"html/template"
	"sort"
	"strings"

	"github.com/SwapnilGautama/HaloQuality/internal/question"
	"github.com/SwapnilGautama/HaloQuality/internal/render"
)

// pageView is what view.html draws. It is built from any payload without
// knowing which question produced it.
type pageView struct {
	ID       string
	Title    string
	Query    template.URL
	Params   question.RawParams
	NoData   *question.NoData
	Insights string
	Cards    []cardView
	Tables   []tableView
	Charts   []chartView
}

type field struct {
	Name  string
	Value string
}

type cardView struct {
	Title  string
	Fields []field
}

type tableView struct {
	Name    string
	Title   string
	Columns []string
	Rows    [][]string
	Matrix  *matrixView
}

type chartView struct {
	Title  string
	Type   string
	X      string
	Y      string
	Points []point
	Matrix *matrixView
}

type point struct {
	Label string
	Value string
	Width float64
}

type matrixView struct {
	RowDimension string
	Columns      []string
	Rows         []matrixRowView
}

type matrixRowView struct {
	Label string
	Cells []cellView
}

type cellView struct {
	Text string
	Heat template.CSS
}

func buildView(title string, rawQuery template.URL, raw question.RawParams, res *question.Result) pageView {
	if res.Empty() {
		return pageView{ID: res.NoData.ID, Title: title, Query: rawQuery, Params: raw, NoData: res.NoData}
	}
	p := res.Payload
	v := pageView{ID: p.ID, Title: title, Query: rawQuery, Params: raw, Insights: p.Insights}

	for _, c := range p.Cards {
		cv := cardView{Title: c.Title}
		keys := make([]string, 0, len(c.Data))
		for k := range c.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			cv.Fields = append(cv.Fields, field{Name: k, Value: render.FormatCell(c.Data[k])})
		}
		v.Cards = append(v.Cards, cv)
	}

	for _, t := range p.Tables {
		tv := tableView{Name: t.Name, Title: t.Title, Columns: t.Data.Columns}
		if m, ok := render.TableMatrix(t); ok {
			tv.Matrix = heat(m)
		}
		for _, r := range t.Data.Rows {
			cells := make([]string, len(t.Data.Columns))
			for i, c := range t.Data.Columns {
				cells[i] = render.FormatCell(r[c])
			}
			tv.Rows = append(tv.Rows, cells)
		}
		v.Tables = append(v.Tables, tv)
	}

	for _, c := range p.Charts {
		rows, ok := render.ChartRows(p, c)
		if !ok {
			continue
		}
		cv := chartView{Title: c.Title, Type: c.Type, X: c.X, Y: c.Y}
		if cv.Title == "" {
			cv.Title = c.Name
		}
		if c.Type == question.ChartHeatmap {
			cv.Matrix = heat(render.ChartMatrix(c, rows))
		} else {
			cv.Points = points(c, rows)
		}
		v.Charts = append(v.Charts, cv)
	}
	return v
}

// points lays out bar widths as a percentage of the largest value.
func points(c question.Chart, rows []question.Row) []point {
	max := 0.0
	for _, r := range rows {
		if f, ok := render.Number(r[c.Y]); ok && f > max {
			max = f
		}
	}
	out := make([]point, 0, len(rows))
	for _, r := range rows {
		pt := point{Label: render.FormatCell(r[c.X]), Value: render.FormatCell(r[c.Y])}
		if f, ok := render.Number(r[c.Y]); ok && max > 0 && f > 0 {
			pt.Width = f / max * 100
		}
		out = append(out, pt)
	}
	return out
}

func heat(m render.Matrix) *matrixView {
	max := m.Max()
	mv := &matrixView{RowDimension: m.RowDimension, Columns: m.Columns}
	for _, r := range m.Rows {
		rv := matrixRowView{Label: r.Label}
		for _, c := range r.Cells {
			cell := cellView{Text: render.FormatCell(c)}
			if f, ok := render.Number(c); ok && max > 0 {
				cell.Heat = template.CSS(fmt.Sprintf("background-color: rgba(192, 57, 43, %.2f)", f/max))
			}
			rv.Cells = append(rv.Cells, cell)
		}
		mv.Rows = append(mv.Rows, rv)
	}
	return mv
}

// trimCSV extracts the table name from a "{name}.csv" path segment.
func trimCSV(file string) (string, bool) {
	name, ok := strings.CutSuffix(file, ".csv")
	return name, ok && name != ""
}
