package question

import (
	"math"
	"sort"
	"strings"

	"github.com/SwapnilGautama/HaloQuality/internal/dataset"
)

// Column names shared by payload rows.
const (
	colMonth       = "month"
	colLabel       = "label"
	colUniqueCases = "unique_cases"
	colComplaints  = "complaints"
	colRate        = "complaints_per_1000"
	colReason      = "reason"
	colShare       = "share_pct"
	colMoMChange   = "mom_change"
	colMoMPct      = "mom_pct"
)

const dimSep = "\x1f"

// record is satisfied by dataset.Case and dataset.Complaint.
type record interface {
	Dim(name string) string
}

// groupKey identifies one aggregation bucket: a month plus the values of
// the grouping dimensions, joined with dimSep.
type groupKey struct {
	month string
	dims  string
}

func keyOf(r record, dims []string) groupKey {
	vals := make([]string, len(dims))
	for i, d := range dims {
		vals[i] = r.Dim(d)
	}
	return groupKey{month: r.Dim(dataset.DimMonth), dims: strings.Join(vals, dimSep)}
}

func (k groupKey) values(n int) []string {
	if n == 0 {
		return nil
	}
	return strings.Split(k.dims, dimSep)
}

func (k groupKey) less(o groupKey) bool {
	if k.month != o.month {
		return k.month < o.month
	}
	return k.dims < o.dims
}

type counts map[groupKey]int

func (c counts) keys() []groupKey {
	out := make([]groupKey, 0, len(c))
	for k := range c {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].less(out[j]) })
	return out
}

func (c counts) months() []string {
	seen := make(map[string]bool)
	var out []string
	for k := range c {
		if !seen[k.month] {
			seen[k.month] = true
			out = append(out, k.month)
		}
	}
	sort.Strings(out)
	return out
}

// uniqueCases counts distinct case ids per bucket. A case id seen more than
// once in a month is counted once, in the bucket of its first row.
func uniqueCases(recs []dataset.Case, dims []string) counts {
	seen := make(map[[2]string]bool, len(recs))
	out := make(counts)
	for _, c := range recs {
		id := [2]string{c.Month, c.ID}
		if seen[id] {
			continue
		}
		seen[id] = true
		out[keyOf(c, dims)]++
	}
	return out
}

// complaintCounts counts rows per bucket; every row is one complaint.
func complaintCounts(recs []dataset.Complaint, dims []string) counts {
	out := make(counts)
	for _, c := range recs {
		out[keyOf(c, dims)]++
	}
	return out
}

// joined is one bucket present on both sides of the case/complaint join.
type joined struct {
	key        groupKey
	cases      int
	complaints int
	rate       float64
}

// join inner-joins case and complaint counts. Buckets present on only one
// side are dropped, so cases is never zero in the output.
func join(cases, complaints counts) []joined {
	var out []joined
	for _, k := range complaints.keys() {
		n, ok := cases[k]
		if !ok || n == 0 {
			continue
		}
		c := complaints[k]
		out = append(out, joined{key: k, cases: n, complaints: c, rate: rate(c, n)})
	}
	return out
}

func joinedMonths(rows []joined) []string {
	var out []string
	for _, r := range rows {
		if len(out) == 0 || out[len(out)-1] != r.key.month {
			out = append(out, r.key.month)
		}
	}
	return out
}

func indexJoined(rows []joined) map[groupKey]joined {
	out := make(map[groupKey]joined, len(rows))
	for _, r := range rows {
		out[r.key] = r
	}
	return out
}

// rate is complaints per 1,000 cases, rounded to two decimals.
func rate(complaints, cases int) float64 {
	if cases <= 0 {
		return 0
	}
	return round(float64(complaints)/float64(cases)*1000, 2)
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

// Deltas are nil when there is no prior value, so they encode as null.

func deltaInt(cur, prev int, ok bool) any {
	if !ok {
		return nil
	}
	return cur - prev
}

func deltaFloat(cur, prev float64, ok bool) any {
	if !ok {
		return nil
	}
	return round(cur-prev, 2)
}

func pctChange(cur, prev int, ok bool) any {
	if !ok || prev == 0 {
		return nil
	}
	return round(float64(cur-prev)/float64(prev)*100, 2)
}

func valueOrNil[T int | float64](v T, ok bool) any {
	if !ok {
		return nil
	}
	return v
}

// focusMonth picks the month a summary is about: the requested month if it
// is among months, else the latest of months.
func focusMonth(requested string, months []string) (string, bool) {
	if requested != "" {
		for _, m := range months {
			if m == requested {
				return m, true
			}
		}
		return "", false
	}
	if len(months) == 0 {
		return "", false
	}
	return months[len(months)-1], true
}

// putDims copies the bucket's dimension values into row.
func putDims(row Row, dims []string, k groupKey) {
	for i, v := range k.values(len(dims)) {
		row[dims[i]] = v
	}
}

// label joins dimension values for display.
func label(vals []string) string {
	if len(vals) == 0 {
		return "All"
	}
	parts := make([]string, len(vals))
	for i, v := range vals {
		if v == "" {
			v = "(blank)"
		}
		parts[i] = v
	}
	return strings.Join(parts, " / ")
}

func columns(lead []string, dims []string, tail ...string) []string {
	out := make([]string, 0, len(lead)+len(dims)+len(tail))
	out = append(out, lead...)
	out = append(out, dims...)
	return append(out, tail...)
}

// distinctMonths returns the sorted months present in recs.
func distinctMonths[T record](recs []T) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range recs {
		m := r.Dim(dataset.DimMonth)
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out
}

func keep[T record](recs []T, pred func(T) bool) []T {
	out := make([]T, 0, len(recs))
	for _, r := range recs {
		if pred(r) {
			out = append(out, r)
		}
	}
	return out
}
