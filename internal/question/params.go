package question

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/SwapnilGautama/HaloQuality/internal/dataset"
	"github.com/SwapnilGautama/HaloQuality/internal/month"
)

// RawParams are request parameters as received, before validation.
type RawParams struct {
	Month     string
	GroupBy   string
	Portfolio string
	Process   string
	Start     string
	End       string
	LastN     string
	TopN      string
}

// RawFromQuery reads RawParams from URL query values.
func RawFromQuery(v url.Values) RawParams {
	return RawParams{
		Month:     v.Get("month"),
		GroupBy:   v.Get("group_by"),
		Portfolio: v.Get("portfolio"),
		Process:   v.Get("process"),
		Start:     v.Get("start"),
		End:       v.Get("end"),
		LastN:     v.Get("last_n"),
		TopN:      v.Get("top_n"),
	}
}

// Query encodes the parameters back into URL query form, omitting blanks.
func (r RawParams) Query() url.Values {
	v := url.Values{}
	set := func(k, val string) {
		if strings.TrimSpace(val) != "" {
			v.Set(k, strings.TrimSpace(val))
		}
	}
	set("month", r.Month)
	set("group_by", r.GroupBy)
	set("portfolio", r.Portfolio)
	set("process", r.Process)
	set("start", r.Start)
	set("end", r.End)
	set("last_n", r.LastN)
	set("top_n", r.TopN)
	return v
}

// MonthRange is an explicit inclusive month selection and its expansion.
type MonthRange struct {
	Start  string   `json:"start"`
	End    string   `json:"end"`
	Months []string `json:"months"`
}

// Params is the validated form of RawParams.
type Params struct {
	Month     string      `json:"month,omitempty"`
	Portfolio string      `json:"portfolio,omitempty"`
	Process   string      `json:"process,omitempty"`
	Range     *MonthRange `json:"month_range,omitempty"`
	LastN     int         `json:"last_n,omitempty"`
	TopN      int         `json:"top_n,omitempty"`
	GroupBy   []string    `json:"group_by"`
}

// Normalize validates raw parameters. All failures wrap ErrInvalidParameter.
func Normalize(raw RawParams) (Params, error) {
	p := Params{
		Portfolio: dataset.StandardPortfolio(raw.Portfolio),
		Process:   strings.TrimSpace(raw.Process),
		GroupBy:   ParseGroupBy(raw.GroupBy),
	}

	if m := strings.TrimSpace(raw.Month); m != "" {
		if !month.Valid(m) {
			return Params{}, invalid("month", m, "expected YYYY-MM")
		}
		p.Month = m
	}

	start, end := strings.TrimSpace(raw.Start), strings.TrimSpace(raw.End)
	switch {
	case start != "" && end != "":
		if !month.Valid(start) {
			return Params{}, invalid("start", start, "expected YYYY-MM")
		}
		if !month.Valid(end) {
			return Params{}, invalid("end", end, "expected YYYY-MM")
		}
		months, err := month.Range(start, end)
		if err != nil {
			return Params{}, invalid("month_range", start+".."+end, "start is after end")
		}
		p.Range = &MonthRange{Start: start, End: end, Months: months}
	case start != "":
		return Params{}, invalid("month_range", start, "end is required when start is given")
	case end != "":
		return Params{}, invalid("month_range", end, "start is required when end is given")
	}

	if n := strings.TrimSpace(raw.LastN); n != "" {
		v, err := strconv.Atoi(n)
		if err != nil {
			return Params{}, invalid("last_n", n, "expected an integer")
		}
		if v <= 0 {
			return Params{}, invalid("last_n", n, "must be positive")
		}
		if p.Range != nil {
			return Params{}, invalid("last_n", n, "cannot be combined with start/end")
		}
		p.LastN = v
	}

	if n := strings.TrimSpace(raw.TopN); n != "" {
		v, err := strconv.Atoi(n)
		if err != nil {
			return Params{}, invalid("top_n", n, "expected an integer")
		}
		if v <= 0 {
			return Params{}, invalid("top_n", n, "must be positive")
		}
		p.TopN = v
	}
	return p, nil
}

// ParseGroupBy splits a comma-separated dimension list, trimming entries and
// dropping empty ones. Order is preserved.
func ParseGroupBy(csv string) []string {
	out := []string{}
	for _, part := range strings.Split(csv, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// matchText reports whether value passes a text filter. An empty filter
// matches everything; comparison folds case.
func matchText(filter, value string) bool {
	if filter == "" {
		return true
	}
	return strings.EqualFold(filter, strings.TrimSpace(value))
}
