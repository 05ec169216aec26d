package question

import (
	"fmt"
	"sort"
	"strings"
)

// Version is stamped on every payload so renderers can detect shape changes.
const Version = "1"

// Row is a generic field/value bag. It only appears at the payload boundary.
// A nil value is a missing number and renders as a placeholder.
type Row map[string]any

// Payload is the renderer-agnostic result of one question run. It is built
// fresh per request and not modified after Run returns it.
type Payload struct {
	ID       string           `json:"id"`
	Version  string           `json:"version"`
	Params   Params           `json:"params"`
	Insights string           `json:"insights"`
	Cards    []Card           `json:"cards"`
	Tables   []Table          `json:"tables"`
	Charts   []Chart          `json:"charts"`
	DataRefs map[string][]Row `json:"dataRefs"`
}

// Card is a single-row summary.
type Card struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	Data  Row    `json:"data"`
}

// Table is a named column/row block.
type Table struct {
	Name  string    `json:"name"`
	Title string    `json:"title"`
	Data  TableData `json:"data"`
	// SortBy names the dimensions rows may be sorted on.
	SortBy []string `json:"sortBy,omitempty"`
	// RowDimension is set on heatmap tables: the column whose values label
	// the matrix rows. Every other column is a matrix column.
	RowDimension string `json:"rowDimension,omitempty"`
}

// TableData holds column order and the rows keyed by column.
type TableData struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Chart types.
const (
	ChartBar     = "bar"
	ChartLine    = "line"
	ChartHeatmap = "heatmap"
)

// Chart describes a plot over the rows of a dataRef.
type Chart struct {
	Name    string `json:"name"`
	Title   string `json:"title,omitempty"`
	Type    string `json:"type"`
	X       string `json:"x"`
	Y       string `json:"y"`
	DataRef string `json:"dataRef"`
	Sort    string `json:"sort,omitempty"`
	// Value and RowDimension are used by heatmaps: Y names the row
	// dimension and Value the cell metric.
	Value        string `json:"value,omitempty"`
	RowDimension string `json:"rowDimension,omitempty"`
}

// NoData is the empty outcome: the inputs did not overlap, so there is
// nothing to draw.
type NoData struct {
	ID      string `json:"id"`
	Version string `json:"version"`
	Params  Params `json:"params"`
	NoData  bool   `json:"noData"`
	Message string `json:"message"`
}

// Result is what a run produces: exactly one of Payload or NoData is set.
type Result struct {
	Payload *Payload
	NoData  *NoData
}

// Empty reports whether the run ended in NoData.
func (r *Result) Empty() bool { return r.NoData != nil }

// Value returns whichever of Payload or NoData is set, for encoding.
func (r *Result) Value() any {
	if r.NoData != nil {
		return r.NoData
	}
	return r.Payload
}

// Validate checks the structural invariants renderers rely on: table and
// chart names are unique and every chart references an existing dataRef.
func (p *Payload) Validate() error {
	tables := make(map[string]bool, len(p.Tables))
	for _, t := range p.Tables {
		if tables[t.Name] {
			return fmt.Errorf("duplicate table %q", t.Name)
		}
		tables[t.Name] = true
	}
	charts := make(map[string]bool, len(p.Charts))
	for _, c := range p.Charts {
		if charts[c.Name] {
			return fmt.Errorf("duplicate chart %q", c.Name)
		}
		charts[c.Name] = true
		if _, ok := p.DataRefs[c.DataRef]; !ok {
			return fmt.Errorf("chart %q references missing dataRef %q", c.Name, c.DataRef)
		}
	}
	return nil
}

// Table returns the table with the given name.
func (p *Payload) Table(name string) (Table, bool) {
	for _, t := range p.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// Card returns the card with the given name.
func (p *Payload) Card(name string) (Card, bool) {
	for _, c := range p.Cards {
		if c.Name == name {
			return c, true
		}
	}
	return Card{}, false
}

// Descending reports whether a sort token asks for descending order. Any
// token starting with "desc", in any case, does.
func Descending(sort string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(sort)), "desc")
}

// Ordered returns a sorted copy of rows for drawing the chart: descending by
// the Y value when the sort token says so, otherwise ascending by X.
func (c Chart) Ordered(rows []Row) []Row {
	out := make([]Row, len(rows))
	copy(out, rows)
	if Descending(c.Sort) {
		sort.SliceStable(out, func(i, j int) bool {
			return number(out[i][c.Y]) > number(out[j][c.Y])
		})
		return out
	}
	sort.SliceStable(out, func(i, j int) bool {
		return fmt.Sprint(out[i][c.X]) < fmt.Sprint(out[j][c.X])
	})
	return out
}

// number converts a row value to float64 for ordering. Missing values sort
// as zero.
func number(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	}
	return 0
}
