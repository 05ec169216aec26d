package question

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/SwapnilGautama/HaloQuality/internal/dataset"
	"github.com/SwapnilGautama/HaloQuality/internal/month"
)

const (
	colRank   = "rank"
	colStatus = "status"
	colScore  = "severity_score"
	colAlerts = "alerts"
)

const defaultTopN = 10

// groupsOf splits joined buckets into the focus and prior month, keyed by
// their dimension values.
func groupsOf(rows []joined, focus, prior string) (cur, prev map[string]joined) {
	cur, prev = make(map[string]joined), make(map[string]joined)
	for _, j := range rows {
		switch j.key.month {
		case focus:
			cur[j.key.dims] = j
		case prior:
			prev[j.key.dims] = j
		}
	}
	return cur, prev
}

// leadColumns names the group columns of a ranked table: the dimensions, or
// the "All" label when there are none.
func leadColumns(dims []string) []string {
	if len(dims) == 0 {
		return []string{colLabel}
	}
	return dims
}

// rank orders rows by the by column, largest first with ties broken by
// label, numbers them from 1 and keeps the first n.
func rank(rows []Row, by string, n int) []Row {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i][by].(float64), rows[j][by].(float64)
		if a != b {
			return a > b
		}
		return rows[i][colLabel].(string) < rows[j][colLabel].(string)
	})
	if n > 0 && len(rows) > n {
		rows = rows[:n]
	}
	for i, r := range rows {
		r[colRank] = i + 1
	}
	return rows
}

func sharePct(n, total int) any {
	if total <= 0 {
		return nil
	}
	return round(float64(n)/float64(total)*100, 1)
}

// topContributors ranks the focus-month groups by their complaint rate and
// by how much that rate moved against the prior month.
type topContributors struct{}

func (topContributors) ID() string         { return "top_contributors" }
func (topContributors) Title() string      { return "Top contributors" }
func (topContributors) Datasets() []string { return []string{dataset.Cases, dataset.Complaints} }

func (q topContributors) Compute(in *Input) (*Payload, string) {
	dims := in.GroupBy
	grouped := join(uniqueCases(in.Cases.Records, dims), complaintCounts(in.Complaints.Records, dims))
	if len(grouped) == 0 {
		return nil, noOverlap
	}
	focus, ok := focusMonth(in.Params.Month, joinedMonths(grouped))
	if !ok {
		return nil, missingMonth(in.Params.Month)
	}
	prior := month.Prev(focus)
	cur, prev := groupsOf(grouped, focus, prior)
	topN := in.Params.TopN
	if topN == 0 {
		topN = defaultTopN
	}

	totalCases, totalComplaints := 0, 0
	for _, j := range cur {
		totalCases += j.cases
		totalComplaints += j.complaints
	}

	level := make([]Row, 0, len(cur))
	for _, j := range cur {
		row := Row{
			colLabel:                     label(j.key.values(len(dims))),
			colComplaints:                j.complaints,
			colUniqueCases:               j.cases,
			colRate:                      j.rate,
			colComplaints + "_share_pct":  sharePct(j.complaints, totalComplaints),
			colUniqueCases + "_share_pct": sharePct(j.cases, totalCases),
		}
		putDims(row, dims, j.key)
		level = append(level, row)
	}
	level = rank(level, colRate, topN)

	// Groups present in only one of the two months count as zero in the
	// other.
	groups := make(map[string]bool, len(cur)+len(prev))
	for g := range cur {
		groups[g] = true
	}
	for g := range prev {
		groups[g] = true
	}
	change := make([]Row, 0, len(groups))
	for g := range groups {
		c, p := cur[g], prev[g]
		k := groupKey{month: focus, dims: g}
		delta := round(c.rate-p.rate, 2)
		var weighted any
		if totalCases > 0 {
			weighted = round(delta*float64(c.cases)/float64(totalCases), 2)
		}
		row := Row{
			colLabel:                 label(k.values(len(dims))),
			colRate:                  c.rate,
			"prior_rate":             p.rate,
			colRate + "_delta":       delta,
			"weighted_rate_delta":    weighted,
			colComplaints:            c.complaints,
			"prior_complaints":       p.complaints,
			colComplaints + "_delta": c.complaints - p.complaints,
		}
		putDims(row, dims, k)
		change = append(change, row)
	}
	change = rank(change, colRate+"_delta", topN)

	lead := leadColumns(dims)
	levelBars := make([]Row, 0, len(level))
	for _, r := range level {
		levelBars = append(levelBars, Row{colLabel: r[colLabel], colRate: r[colRate]})
	}
	changeBars := make([]Row, 0, len(change))
	for _, r := range change {
		changeBars = append(changeBars, Row{colLabel: r[colLabel], colRate + "_delta": r[colRate+"_delta"]})
	}

	top, mover := level[0], change[0]
	return &Payload{
		Insights: contributorInsight(focus, top, mover),
		Cards: []Card{{Name: "top_mover", Title: "Largest rate increase", Data: Row{
			colMonth:           focus,
			colLabel:           mover[colLabel],
			colRate:            mover[colRate],
			colRate + "_delta": mover[colRate+"_delta"],
		}}},
		Tables: []Table{
			{
				Name:  "by_level",
				Title: fmt.Sprintf("Highest complaints per 1,000 cases, %s", month.Display(focus)),
				Data: TableData{
					Columns: columns([]string{colRank}, lead, colComplaints, colUniqueCases, colRate,
						colComplaints+"_share_pct", colUniqueCases+"_share_pct"),
					Rows: level,
				},
				SortBy: []string{colRank},
			},
			{
				Name:  "by_change",
				Title: fmt.Sprintf("Largest rate increases, %s vs %s", month.Display(focus), month.Display(prior)),
				Data: TableData{
					Columns: columns([]string{colRank}, lead, colRate, "prior_rate", colRate+"_delta",
						"weighted_rate_delta", colComplaints, "prior_complaints", colComplaints+"_delta"),
					Rows: change,
				},
				SortBy: []string{colRank},
			},
		},
		Charts: []Chart{
			{
				Name: "level_bar", Title: "Complaints per 1,000 cases", Type: ChartBar,
				X: colLabel, Y: colRate, DataRef: "level", Sort: "desc",
			},
			{
				Name: "change_bar", Title: "Change in complaints per 1,000 cases", Type: ChartBar,
				X: colLabel, Y: colRate + "_delta", DataRef: "change", Sort: "desc",
			},
		},
		DataRefs: map[string][]Row{"level": levelBars, "change": changeBars},
	}, ""
}

// Thresholds are the watchlist alert rules.
type Thresholds struct {
	// RateLevel flags groups at or above this many complaints per 1,000.
	RateLevel float64
	// RateDelta flags month-on-month rises of at least this much.
	RateDelta float64
	// Z flags groups whose rate or rate change is this many standard
	// deviations from the mean across groups.
	Z float64
}

// DefaultThresholds are the watchlist rules used by Default.
var DefaultThresholds = Thresholds{RateLevel: 200, RateDelta: 20, Z: 2}

const (
	statusRed   = "Red"
	statusAmber = "Amber"
	statusGreen = "Green"
)

var statusOrder = map[string]int{statusRed: 0, statusAmber: 1, statusGreen: 2}

// watchlist flags focus-month groups whose complaint rate is high, rising
// or out of line with the other groups.
type watchlist struct {
	th Thresholds
}

func (watchlist) ID() string         { return "watchlist" }
func (watchlist) Title() string      { return "Watchlist" }
func (watchlist) Datasets() []string { return []string{dataset.Cases, dataset.Complaints} }

type watchEntry struct {
	row      Row
	label    string
	status   string
	score    int
	delta    float64
	hasDelta bool
}

func (q watchlist) Compute(in *Input) (*Payload, string) {
	dims := in.GroupBy
	grouped := join(uniqueCases(in.Cases.Records, dims), complaintCounts(in.Complaints.Records, dims))
	if len(grouped) == 0 {
		return nil, noOverlap
	}
	focus, ok := focusMonth(in.Params.Month, joinedMonths(grouped))
	if !ok {
		return nil, missingMonth(in.Params.Month)
	}
	prior := month.Prev(focus)
	idx := indexJoined(grouped)

	var cur []joined
	for _, j := range grouped {
		if j.key.month == focus {
			cur = append(cur, j)
		}
	}

	rates := make([]float64, len(cur))
	deltas := make([]float64, len(cur))
	all := make([]bool, len(cur))
	hasPrior := make([]bool, len(cur))
	for i, j := range cur {
		p, ok := idx[groupKey{month: prior, dims: j.key.dims}]
		rates[i], all[i] = j.rate, true
		if ok {
			deltas[i], hasPrior[i] = round(j.rate-p.rate, 2), true
		}
	}
	rateZ := zScores(rates, all)
	deltaZ := zScores(deltas, hasPrior)

	entries := make([]watchEntry, 0, len(cur))
	for i, j := range cur {
		p, ok := idx[groupKey{month: prior, dims: j.key.dims}]
		var flags []string
		score, severe := 0, false
		if j.rate >= q.th.RateLevel {
			flags = append(flags, fmt.Sprintf("High complaints/1k (≥ %g)", q.th.RateLevel))
			score += 3
			severe = true
		}
		if ok && deltas[i] >= q.th.RateDelta {
			flags = append(flags, fmt.Sprintf("Spike in complaints/1k (+%g)", q.th.RateDelta))
			score += 3
			severe = true
		}
		if z, ok := rateZ[i].(float64); ok && math.Abs(z) >= q.th.Z {
			flags = append(flags, fmt.Sprintf("Rate outlier (|z| ≥ %g)", q.th.Z))
			score += 2
		}
		if z, ok := deltaZ[i].(float64); ok && math.Abs(z) >= q.th.Z {
			flags = append(flags, fmt.Sprintf("Delta outlier (|z| ≥ %g)", q.th.Z))
			score += 2
		}

		status := statusGreen
		switch {
		case severe || score >= 5:
			status = statusRed
		case score >= 2:
			status = statusAmber
		}

		lbl := label(j.key.values(len(dims)))
		row := Row{
			colLabel:                  lbl,
			colStatus:                 status,
			colScore:                  score,
			colAlerts:                 strings.Join(flags, ", "),
			colRate:                   j.rate,
			"prior_rate":              valueOrNil(p.rate, ok),
			colRate + "_delta":        deltaFloat(j.rate, p.rate, ok),
			"rate_z":                  rateZ[i],
			"rate_delta_z":            deltaZ[i],
			colComplaints:             j.complaints,
			"prior_complaints":        valueOrNil(p.complaints, ok),
			colComplaints + "_delta":  deltaInt(j.complaints, p.complaints, ok),
			colUniqueCases:            j.cases,
			"prior_unique_cases":      valueOrNil(p.cases, ok),
			colUniqueCases + "_delta": deltaInt(j.cases, p.cases, ok),
		}
		putDims(row, dims, j.key)
		entries = append(entries, watchEntry{row: row, label: lbl, status: status, score: score, delta: deltas[i], hasDelta: ok})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if statusOrder[a.status] != statusOrder[b.status] {
			return statusOrder[a.status] < statusOrder[b.status]
		}
		if a.score != b.score {
			return a.score > b.score
		}
		if a.hasDelta != b.hasDelta {
			return a.hasDelta
		}
		if a.delta != b.delta {
			return a.delta > b.delta
		}
		return a.label < b.label
	})

	counts := map[string]int{}
	rows := make([]Row, 0, len(entries))
	bars := make([]Row, 0, len(entries))
	for _, e := range entries {
		counts[e.status]++
		rows = append(rows, e.row)
		bars = append(bars, Row{colLabel: e.label, colRate: e.row[colRate], colStatus: e.status})
	}

	return &Payload{
		Insights: watchlistInsight(focus, entries, counts),
		Cards: []Card{{Name: "summary", Title: "Watchlist", Data: Row{
			colMonth:               focus,
			"red":                  counts[statusRed],
			"amber":                counts[statusAmber],
			"green":                counts[statusGreen],
			"rate_level_threshold": q.th.RateLevel,
			"rate_delta_threshold": q.th.RateDelta,
			"z_threshold":          q.th.Z,
		}}},
		Tables: []Table{{
			Name:  "watchlist",
			Title: fmt.Sprintf("Watchlist, %s vs %s", month.Display(focus), month.Display(prior)),
			Data: TableData{
				Columns: columns(leadColumns(dims), nil, colStatus, colScore, colAlerts,
					colRate, "prior_rate", colRate+"_delta", "rate_z", "rate_delta_z",
					colComplaints, "prior_complaints", colComplaints+"_delta",
					colUniqueCases, "prior_unique_cases", colUniqueCases+"_delta"),
				Rows: rows,
			},
			SortBy: []string{colStatus, colScore},
		}},
		Charts: []Chart{{
			Name: "watchlist_bar", Title: "Complaints per 1,000 cases", Type: ChartBar,
			X: colLabel, Y: colRate, DataRef: "watchlist", Sort: "desc",
		}},
		DataRefs: map[string][]Row{"watchlist": bars},
	}, ""
}

// zScores standardizes the present values with the population standard
// deviation. Absent values, and every value when the spread is zero, are nil.
func zScores(vals []float64, present []bool) []any {
	out := make([]any, len(vals))
	sum, n := 0.0, 0
	for i, v := range vals {
		if present[i] {
			sum += v
			n++
		}
	}
	if n == 0 {
		return out
	}
	mean := sum / float64(n)
	ss := 0.0
	for i, v := range vals {
		if present[i] {
			ss += (v - mean) * (v - mean)
		}
	}
	sd := math.Sqrt(ss / float64(n))
	if sd == 0 {
		return out
	}
	for i, v := range vals {
		if present[i] {
			out[i] = round((v-mean)/sd, 2)
		}
	}
	return out
}
