package question

import (
	"fmt"
	"sort"
	"strings"

	"github.com/SwapnilGautama/HaloQuality/internal/dataset"
	"github.com/SwapnilGautama/HaloQuality/internal/month"
)

const noOverlap = "No overlapping months between cases and complaints for the selected filters."

func missingMonth(m string) string {
	return fmt.Sprintf("No data for %s in the selected window.", month.Display(m))
}

// ratePerThousand is the monthly complaints per 1,000 cases series.
type ratePerThousand struct{}

func (ratePerThousand) ID() string         { return "complaints_per_1000" }
func (ratePerThousand) Title() string      { return "Complaints per 1,000 cases" }
func (ratePerThousand) Datasets() []string { return []string{dataset.Cases, dataset.Complaints} }

func (q ratePerThousand) Compute(in *Input) (*Payload, string) {
	totals := join(uniqueCases(in.Cases.Records, nil), complaintCounts(in.Complaints.Records, nil))
	if len(totals) == 0 {
		return nil, noOverlap
	}
	focus, ok := focusMonth(in.Params.Month, joinedMonths(totals))
	if !ok {
		return nil, missingMonth(in.Params.Month)
	}
	byKey := indexJoined(totals)
	cur := byKey[groupKey{month: focus}]
	prev, hasPrev := byKey[groupKey{month: month.Prev(focus)}]

	headline := headlineCard("headline", q.Title(), cur, prev, hasPrev)

	dims := in.GroupBy
	grouped := join(uniqueCases(in.Cases.Records, dims), complaintCounts(in.Complaints.Records, dims))
	rows := make([]Row, 0, len(grouped))
	for _, j := range grouped {
		row := Row{colMonth: j.key.month, colUniqueCases: j.cases, colComplaints: j.complaints, colRate: j.rate}
		putDims(row, dims, j.key)
		rows = append(rows, row)
	}

	series := make([]Row, 0, len(totals))
	for _, j := range totals {
		series = append(series, Row{colMonth: j.key.month, colUniqueCases: j.cases, colComplaints: j.complaints, colRate: j.rate})
	}

	return &Payload{
		Insights: rateInsight(cur, len(totals), headline.Data[colRate+"_delta"]),
		Cards:    []Card{headline},
		Tables: []Table{{
			Name:   "rates",
			Title:  "Complaints per 1,000 cases by month",
			Data:   TableData{Columns: columns([]string{colMonth}, dims, colUniqueCases, colComplaints, colRate), Rows: rows},
			SortBy: columns([]string{colMonth}, dims),
		}},
		Charts: []Chart{{
			Name: "rate_trend", Title: "Complaints per 1,000 cases", Type: ChartLine,
			X: colMonth, Y: colRate, DataRef: "rate_series",
		}},
		DataRefs: map[string][]Row{"rate_series": series},
	}, ""
}

func headlineCard(name, title string, cur, prev joined, hasPrev bool) Card {
	return Card{Name: name, Title: title, Data: Row{
		colMonth:                 cur.key.month,
		colComplaints:            cur.complaints,
		colUniqueCases:           cur.cases,
		colRate:                  cur.rate,
		colComplaints + "_delta":  deltaInt(cur.complaints, prev.complaints, hasPrev),
		colUniqueCases + "_delta": deltaInt(cur.cases, prev.cases, hasPrev),
		colRate + "_delta":        deltaFloat(cur.rate, prev.rate, hasPrev),
	}}
}

// volumeQuestion counts one dataset per month with month-on-month change.
// Cases are counted as distinct ids, complaints as rows.
type volumeQuestion struct {
	id      string
	title   string
	dataset string
	metric  string
	noun    string
}

func (q volumeQuestion) ID() string         { return q.id }
func (q volumeQuestion) Title() string      { return q.title }
func (q volumeQuestion) Datasets() []string { return []string{q.dataset} }

func (q volumeQuestion) count(in *Input, dims []string) counts {
	if q.dataset == dataset.Cases {
		return uniqueCases(in.Cases.Records, dims)
	}
	return complaintCounts(in.Complaints.Records, dims)
}

func (q volumeQuestion) Compute(in *Input) (*Payload, string) {
	totals := q.count(in, nil)
	if len(totals) == 0 {
		return nil, fmt.Sprintf("No %s in the selected window.", q.noun)
	}
	focus, ok := focusMonth(in.Params.Month, totals.months())
	if !ok {
		return nil, missingMonth(in.Params.Month)
	}
	cur := totals[groupKey{month: focus}]
	prev, hasPrev := totals[groupKey{month: month.Prev(focus)}]
	headline := Card{Name: "headline", Title: q.title, Data: Row{
		colMonth:                focus,
		q.metric:                cur,
		q.metric + "_delta":     deltaInt(cur, prev, hasPrev),
		q.metric + "_delta_pct": pctChange(cur, prev, hasPrev),
	}}

	dims := in.GroupBy
	grouped := q.count(in, dims)
	rows := make([]Row, 0, len(grouped))
	for _, k := range grouped.keys() {
		n := grouped[k]
		p, ok := grouped[groupKey{month: month.Prev(k.month), dims: k.dims}]
		row := Row{colMonth: k.month, q.metric: n, colMoMChange: deltaInt(n, p, ok), colMoMPct: pctChange(n, p, ok)}
		putDims(row, dims, k)
		rows = append(rows, row)
	}

	series := make([]Row, 0, len(totals))
	for _, k := range totals.keys() {
		n := totals[k]
		p, ok := totals[groupKey{month: month.Prev(k.month)}]
		series = append(series, Row{colMonth: k.month, q.metric: n, colMoMPct: pctChange(n, p, ok)})
	}

	ref := q.metric + "_series"
	return &Payload{
		Insights: volumeInsight(q.noun, focus, cur, headline.Data[q.metric+"_delta"], headline.Data[q.metric+"_delta_pct"]),
		Cards:    []Card{headline},
		Tables: []Table{{
			Name:   q.metric,
			Title:  q.title,
			Data:   TableData{Columns: columns([]string{colMonth}, dims, q.metric, colMoMChange, colMoMPct), Rows: rows},
			SortBy: columns([]string{colMonth}, dims),
		}},
		Charts: []Chart{{
			Name: "volume_trend", Title: q.title, Type: ChartBar,
			X: colMonth, Y: q.metric, DataRef: ref,
		}},
		DataRefs: map[string][]Row{ref: series},
	}, ""
}

// complaintAnalysis breaks the focus month down by the grouping dimensions
// and compares each group with the prior month.
type complaintAnalysis struct{}

func (complaintAnalysis) ID() string         { return "complaint_analysis" }
func (complaintAnalysis) Title() string      { return "Complaint analysis" }
func (complaintAnalysis) Datasets() []string { return []string{dataset.Cases, dataset.Complaints} }

func (q complaintAnalysis) Compute(in *Input) (*Payload, string) {
	totals := join(uniqueCases(in.Cases.Records, nil), complaintCounts(in.Complaints.Records, nil))
	if len(totals) == 0 {
		return nil, noOverlap
	}
	focus, ok := focusMonth(in.Params.Month, joinedMonths(totals))
	if !ok {
		return nil, missingMonth(in.Params.Month)
	}
	byMonth := indexJoined(totals)
	cur := byMonth[groupKey{month: focus}]
	prior := month.Prev(focus)
	prevTotal, hasPrev := byMonth[groupKey{month: prior}]

	dims := in.GroupBy
	grouped := join(uniqueCases(in.Cases.Records, dims), complaintCounts(in.Complaints.Records, dims))
	idx := indexJoined(grouped)

	drivers, bars := []Row{}, []Row{}
	var top Row
	topLabel := ""
	for _, j := range grouped {
		if j.key.month != focus {
			continue
		}
		p, ok := idx[groupKey{month: prior, dims: j.key.dims}]
		lbl := label(j.key.values(len(dims)))
		row := Row{
			colLabel:                 lbl,
			colComplaints:            j.complaints,
			colUniqueCases:           j.cases,
			colRate:                  j.rate,
			"prior_complaints":       valueOrNil(p.complaints, ok),
			"prior_rate":             valueOrNil(p.rate, ok),
			colComplaints + "_delta": deltaInt(j.complaints, p.complaints, ok),
			colRate + "_delta":       deltaFloat(j.rate, p.rate, ok),
		}
		putDims(row, dims, j.key)
		drivers = append(drivers, row)
		bars = append(bars, Row{colLabel: lbl, colComplaints: j.complaints, colRate: j.rate})
		if top == nil || j.complaints > top[colComplaints].(int) {
			top, topLabel = row, lbl
		}
	}

	rowDim := dataset.DimMonth
	if len(dims) > 0 {
		rowDim = dims[0]
	}

	return &Payload{
		Insights: analysisInsight(cur, top, topLabel, len(drivers)),
		Cards:    []Card{headlineCard("headline", q.Title(), cur, prevTotal, hasPrev)},
		Tables: []Table{
			{
				Name:  "drivers",
				Title: fmt.Sprintf("Drivers, %s vs %s", month.Display(focus), month.Display(prior)),
				Data: TableData{
					Columns: columns(dims, nil, colComplaints, colUniqueCases, colRate,
						"prior_complaints", "prior_rate", colComplaints+"_delta", colRate+"_delta"),
					Rows: drivers,
				},
				SortBy: dims,
			},
			reasonMatrix(in.Complaints.Records, focus, rowDim),
		},
		Charts: []Chart{{
			Name: "drivers_bar", Title: "Complaints by driver", Type: ChartBar,
			X: colLabel, Y: colComplaints, DataRef: "drivers", Sort: "desc",
		}},
		DataRefs: map[string][]Row{"drivers": bars},
	}, ""
}

// reasonMatrix builds a wide heatmap table of focus-month complaints: one
// row per rowDim value and one column per reason.
func reasonMatrix(recs []dataset.Complaint, focus, rowDim string) Table {
	cells := make(map[string]map[string]int)
	reasonTotals := make(map[string]int)
	for _, c := range recs {
		if c.Month != focus {
			continue
		}
		rv := c.Dim(rowDim)
		if cells[rv] == nil {
			cells[rv] = make(map[string]int)
		}
		cells[rv][c.Reason]++
		reasonTotals[c.Reason]++
	}

	reasons := make([]string, 0, len(reasonTotals))
	for r := range reasonTotals {
		reasons = append(reasons, r)
	}
	sort.Slice(reasons, func(i, j int) bool {
		a, b := reasons[i], reasons[j]
		if reasonTotals[a] != reasonTotals[b] {
			return reasonTotals[a] > reasonTotals[b]
		}
		return a < b
	})

	groups := make([]string, 0, len(cells))
	for g := range cells {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	rows := make([]Row, 0, len(groups))
	for _, g := range groups {
		row := Row{rowDim: g}
		for _, r := range reasons {
			row[r] = cells[g][r]
		}
		rows = append(rows, row)
	}

	return Table{
		Name:         "reasons_heatmap",
		Title:        fmt.Sprintf("Complaint reasons by %s, %s", rowDim, month.Display(focus)),
		Data:         TableData{Columns: append([]string{rowDim}, reasons...), Rows: rows},
		SortBy:       []string{rowDim},
		RowDimension: rowDim,
	}
}

// reasonMix is the share of each complaint reason within each group for the
// focus month.
type reasonMix struct{}

func (reasonMix) ID() string         { return "reason_mix" }
func (reasonMix) Title() string      { return "Complaint reason mix" }
func (reasonMix) Datasets() []string { return []string{dataset.Complaints} }

func (q reasonMix) Compute(in *Input) (*Payload, string) {
	recs := in.Complaints.Records
	months := distinctMonths(recs)
	if len(months) == 0 {
		return nil, "No complaints in the selected window."
	}
	focus, ok := focusMonth(in.Params.Month, months)
	if !ok {
		return nil, missingMonth(in.Params.Month)
	}

	// Every non-reason dimension keys a group. The heatmap needs one row
	// label: the month with no dims, the dim itself with one, else a joined
	// label column.
	var dims []string
	for _, d := range in.GroupBy {
		if d != dataset.DimReason {
			dims = append(dims, d)
		}
	}
	rowDim := dataset.DimMonth
	lead := []string{rowDim}
	switch {
	case len(dims) == 1:
		rowDim, lead = dims[0], dims
	case len(dims) > 1:
		rowDim, lead = colLabel, columns(dims, nil, colLabel)
	}

	type cell struct{ group, reason string }
	tally := make(map[cell]int)
	groupTotals := make(map[string]int)
	byReason := map[string]map[string]int{focus: {}, month.Prev(focus): {}}
	monthTotals := make(map[string]int)
	for _, c := range recs {
		if mt, ok := byReason[c.Month]; ok {
			mt[c.Reason]++
			monthTotals[c.Month]++
		}
		if c.Month != focus {
			continue
		}
		g := keyOf(c, dims).dims
		tally[cell{g, c.Reason}]++
		groupTotals[g]++
	}

	keys := make([]cell, 0, len(tally))
	for k := range tally {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.group != b.group {
			return a.group < b.group
		}
		if tally[a] != tally[b] {
			return tally[a] > tally[b]
		}
		return a.reason < b.reason
	})

	rows := make([]Row, 0, len(keys))
	for _, k := range keys {
		row := Row{
			colReason:     k.reason,
			colComplaints: tally[k],
			colShare:      round(float64(tally[k])/float64(groupTotals[k.group])*100, 1),
		}
		gk := groupKey{month: focus, dims: k.group}
		switch len(dims) {
		case 0:
			row[colMonth] = focus
		case 1:
			putDims(row, dims, gk)
		default:
			putDims(row, dims, gk)
			row[colLabel] = label(gk.values(len(dims)))
		}
		rows = append(rows, row)
	}

	topReason, topN := "", 0
	for r, n := range byReason[focus] {
		if n > topN || (n == topN && r < topReason) {
			topReason, topN = r, n
		}
	}
	share := round(float64(topN)/float64(monthTotals[focus])*100, 1)
	prevShare, hasPrev := 0.0, monthTotals[month.Prev(focus)] > 0
	if hasPrev {
		prevShare = round(float64(byReason[month.Prev(focus)][topReason])/float64(monthTotals[month.Prev(focus)])*100, 1)
	}

	return &Payload{
		Insights: reasonInsight(focus, topReason, topN, share, len(groupTotals)),
		Cards: []Card{{Name: "top_reason", Title: "Top complaint reason", Data: Row{
			colMonth:            focus,
			colReason:           topReason,
			colComplaints:       topN,
			colShare:            share,
			colShare + "_delta": deltaFloat(share, prevShare, hasPrev),
		}}},
		Tables: []Table{{
			Name:   "reason_mix",
			Title:  fmt.Sprintf("Complaint reasons by %s, %s", strings.Join(lead, ", "), month.Display(focus)),
			Data:   TableData{Columns: columns(lead, nil, colReason, colComplaints, colShare), Rows: rows},
			SortBy: columns(lead, nil, colReason),
		}},
		Charts: []Chart{{
			Name: "reason_heatmap", Title: "Reason share (%)", Type: ChartHeatmap,
			X: colReason, Y: rowDim, Value: colShare, RowDimension: rowDim, DataRef: "reason_mix",
		}},
		DataRefs: map[string][]Row{"reason_mix": cloneRows(rows)},
	}, ""
}

func cloneRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		c := make(Row, len(r))
		for k, v := range r {
			c[k] = v
		}
		out[i] = c
	}
	return out
}
