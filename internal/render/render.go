// Package render holds the generic payload presentation helpers shared by
// the terminal and HTML renderers. Nothing here knows which question
// produced a payload.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/SwapnilGautama/HaloQuality/internal/question"
)

// Placeholder is drawn for missing or non-finite numbers.
const Placeholder = "—"

// FormatCell renders one payload value for display.
func FormatCell(v any) string {
	switch n := v.(type) {
	case nil:
		return Placeholder
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return Placeholder
		}
		if n == math.Trunc(n) && math.Abs(n) < 1e15 {
			return strconv.FormatFloat(n, 'f', 0, 64)
		}
		return strconv.FormatFloat(n, 'f', 2, 64)
	case float32:
		return FormatCell(float64(n))
	case int:
		return strconv.Itoa(n)
	case int64:
		return strconv.FormatInt(n, 10)
	case string:
		return n
	}
	return fmt.Sprint(v)
}

// Number extracts a finite float from a payload value.
func Number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case float64:
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Matrix is a heatmap laid out as labelled rows of cells.
type Matrix struct {
	RowDimension string
	Columns      []string
	Rows         []MatrixRow
}

// MatrixRow is one labelled heatmap row.
type MatrixRow struct {
	Label string
	Cells []any
}

// Max returns the largest finite cell value.
func (m Matrix) Max() float64 {
	max := 0.0
	for _, r := range m.Rows {
		for _, c := range r.Cells {
			if f, ok := Number(c); ok && f > max {
				max = f
			}
		}
	}
	return max
}

// TableMatrix lays out a wide heatmap table: the declared row dimension
// labels rows and every other column is a matrix column. Tables without a
// row dimension are not heatmaps.
func TableMatrix(t question.Table) (Matrix, bool) {
	if t.RowDimension == "" {
		return Matrix{}, false
	}
	m := Matrix{RowDimension: t.RowDimension}
	for _, c := range t.Data.Columns {
		if c != t.RowDimension {
			m.Columns = append(m.Columns, c)
		}
	}
	for _, r := range t.Data.Rows {
		row := MatrixRow{Label: FormatCell(r[t.RowDimension])}
		for _, c := range m.Columns {
			row.Cells = append(row.Cells, r[c])
		}
		m.Rows = append(m.Rows, row)
	}
	return m, true
}

// ChartMatrix pivots the long-form rows of a heatmap chart: rows come from
// the row dimension, columns from X and cells from Value. Order follows
// first appearance.
func ChartMatrix(c question.Chart, rows []question.Row) Matrix {
	rowDim := c.RowDimension
	if rowDim == "" {
		rowDim = c.Y
	}
	m := Matrix{RowDimension: rowDim}
	colIdx := make(map[string]int)
	rowIdx := make(map[string]int)
	cells := make(map[[2]int]any)
	for _, r := range rows {
		col := FormatCell(r[c.X])
		if _, ok := colIdx[col]; !ok {
			colIdx[col] = len(m.Columns)
			m.Columns = append(m.Columns, col)
		}
		lbl := FormatCell(r[rowDim])
		if _, ok := rowIdx[lbl]; !ok {
			rowIdx[lbl] = len(m.Rows)
			m.Rows = append(m.Rows, MatrixRow{Label: lbl})
		}
		cells[[2]int{rowIdx[lbl], colIdx[col]}] = r[c.Value]
	}
	for i := range m.Rows {
		m.Rows[i].Cells = make([]any, len(m.Columns))
		for j := range m.Columns {
			m.Rows[i].Cells[j] = cells[[2]int{i, j}]
		}
	}
	return m
}

// ChartRows resolves the dataRef of c and orders its rows for drawing. A
// chart whose dataRef is missing yields false and should not be drawn.
func ChartRows(p *question.Payload, c question.Chart) ([]question.Row, bool) {
	rows, ok := p.DataRefs[c.DataRef]
	if !ok {
		return nil, false
	}
	return c.Ordered(rows), true
}

// WriteCSV exports a table: a header of column names, then one line per row
// with each cell JSON-encoded and joined by commas. Missing cells are "".
func WriteCSV(w io.Writer, t question.Table) error {
	if _, err := io.WriteString(w, strings.Join(t.Data.Columns, ",")+"\n"); err != nil {
		return err
	}
	for _, r := range t.Data.Rows {
		cells := make([]string, len(t.Data.Columns))
		for i, c := range t.Data.Columns {
			v := r[c]
			if v == nil {
				v = ""
			}
			b, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("encoding %s: %w", c, err)
			}
			cells[i] = string(b)
		}
		if _, err := io.WriteString(w, strings.Join(cells, ",")+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// PlainText strips the markdown emphasis used in insights.
func PlainText(md string) string {
	return strings.ReplaceAll(md, "**", "")
}
