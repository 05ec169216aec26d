package render

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SwapnilGautama/HaloQuality/internal/question"
)

func TestFormatCell(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, Placeholder},
		{math.NaN(), Placeholder},
		{math.Inf(1), Placeholder},
		{250.0, "250"},
		{666.666, "666.67"},
		{12, "12"},
		{int64(7), "7"},
		{"Retail", "Retail"},
		{true, "true"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatCell(tt.in), "%v", tt.in)
	}
}

func TestTableMatrix(t *testing.T) {
	_, ok := TableMatrix(question.Table{Name: "plain"})
	assert.False(t, ok)

	m, ok := TableMatrix(question.Table{
		Name:         "reasons_heatmap",
		RowDimension: "portfolio",
		Data: question.TableData{
			Columns: []string{"portfolio", "Delay", "Other"},
			Rows: []question.Row{
				{"portfolio": "Retail", "Delay": 3, "Other": nil},
				{"portfolio": "Wealth", "Delay": 1, "Other": 5},
			},
		},
	})
	require.True(t, ok)
	assert.Equal(t, []string{"Delay", "Other"}, m.Columns)
	require.Len(t, m.Rows, 2)
	assert.Equal(t, "Retail", m.Rows[0].Label)
	assert.Equal(t, []any{3, nil}, m.Rows[0].Cells)
	assert.Equal(t, 5.0, m.Max())
}

func TestChartMatrix(t *testing.T) {
	c := question.Chart{Type: question.ChartHeatmap, X: "reason", Y: "month", Value: "share_pct", RowDimension: "month"}
	m := ChartMatrix(c, []question.Row{
		{"month": "2025-06", "reason": "Delay", "share_pct": 60.0},
		{"month": "2025-06", "reason": "Other", "share_pct": 40.0},
		{"month": "2025-07", "reason": "Delay", "share_pct": 100.0},
	})
	assert.Equal(t, "month", m.RowDimension)
	assert.Equal(t, []string{"Delay", "Other"}, m.Columns)
	require.Len(t, m.Rows, 2)
	assert.Equal(t, []any{100.0, nil}, m.Rows[1].Cells)
}

func TestChartRowsMissingRef(t *testing.T) {
	p := &question.Payload{DataRefs: map[string][]question.Row{}}
	_, ok := ChartRows(p, question.Chart{Name: "c", DataRef: "gone"})
	assert.False(t, ok)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, question.Table{Data: question.TableData{
		Columns: []string{"month", "complaints_per_1000"},
		Rows: []question.Row{
			{"month": "2025-05", "complaints_per_1000": 250.0},
			{"month": "2025-06"},
		},
	}})
	require.NoError(t, err)
	assert.Equal(t, "month,complaints_per_1000\n\"2025-05\",250\n\"2025-06\",\"\"\n", buf.String())
}

func TestTerminalRender(t *testing.T) {
	p := &question.Payload{
		ID:       "complaints_per_1000",
		Insights: "Rate rose to **666.67**.",
		Cards: []question.Card{{Name: "headline", Title: "Headline", Data: question.Row{
			"complaints_per_1000": 666.67, "complaints_per_1000_delta": nil,
		}}},
		Tables: []question.Table{{Name: "rates", Title: "Rates", Data: question.TableData{
			Columns: []string{"month", "complaints_per_1000"},
			Rows:    []question.Row{{"month": "2025-05", "complaints_per_1000": 250.0}},
		}}},
		Charts: []question.Chart{
			{Name: "rate_trend", Title: "Trend", Type: question.ChartLine, X: "month", Y: "complaints_per_1000", DataRef: "rate_series"},
			{Name: "orphan", Title: "Orphan chart", Type: question.ChartBar, X: "month", Y: "x", DataRef: "missing"},
		},
		DataRefs: map[string][]question.Row{"rate_series": {{"month": "2025-05", "complaints_per_1000": 250.0}}},
	}

	var buf bytes.Buffer
	require.NoError(t, NewTerminal(&buf).Render(&question.Result{Payload: p}))
	out := buf.String()
	assert.Contains(t, out, "Rate rose to 666.67.")
	assert.Contains(t, out, "Headline")
	assert.Contains(t, out, Placeholder)
	assert.Contains(t, out, "Trend")
	assert.NotContains(t, out, "Orphan chart")
}

func TestTerminalRenderNoData(t *testing.T) {
	var buf bytes.Buffer
	res := &question.Result{NoData: &question.NoData{ID: "reason_mix", NoData: true, Message: "No overlapping months."}}
	require.NoError(t, NewTerminal(&buf).Render(res))
	assert.True(t, strings.HasPrefix(buf.String(), "reason_mix: No overlapping months."))
}
