package dataset

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Fields are the canonical columns every normalized record carries.
type Fields struct {
	Month     string
	Portfolio string
	Process   string
	attrs     map[string]string
}

// Case is one row of the cases dataset. The same ID may appear on several
// rows when a case is updated.
type Case struct {
	Fields
	ID string
}

// Complaint is one row of the complaints dataset; one row is one complaint.
type Complaint struct {
	Fields
	Reason string
}

// CaseSet is the normalized cases dataset.
type CaseSet struct {
	Records      []Case
	HasPortfolio bool
	HasProcess   bool
	Skipped      int
	columns      map[string]bool
}

// ComplaintSet is the normalized complaints dataset.
type ComplaintSet struct {
	Records      []Complaint
	HasPortfolio bool
	HasProcess   bool
	Skipped      int
	columns      map[string]bool
}

// Dimension names with a canonical meaning. Anything else is looked up in
// the raw columns of the row.
const (
	DimMonth     = "month"
	DimPortfolio = "portfolio"
	DimProcess   = "process"
	DimReason    = "reason"
)

// Dim returns the value of a grouping dimension for the record.
func (f Fields) Dim(name string) string {
	switch {
	case normKey(name) == DimMonth:
		return f.Month
	case isPortfolioDim(name):
		return f.Portfolio
	case isProcessDim(name):
		return f.Process
	}
	return f.attrs[normKey(name)]
}

// HasDim reports whether records in the set carry the grouping dimension.
func (s *CaseSet) HasDim(name string) bool {
	return hasDim(name, s.HasPortfolio, s.HasProcess, s.columns)
}

// HasDim reports whether records in the set carry the grouping dimension.
// Every complaint has a reason.
func (s *ComplaintSet) HasDim(name string) bool {
	if normKey(name) == DimReason {
		return true
	}
	return hasDim(name, s.HasPortfolio, s.HasProcess, s.columns)
}

func hasDim(name string, portfolio, process bool, columns map[string]bool) bool {
	switch {
	case normKey(name) == DimMonth:
		return true
	case isPortfolioDim(name):
		return portfolio
	case isProcessDim(name):
		return process
	}
	return columns[normKey(name)]
}

func isPortfolioDim(name string) bool {
	return normKey(name) == DimPortfolio || CaseAliases.matches(FieldPortfolio, name)
}

func isProcessDim(name string) bool {
	return normKey(name) == DimProcess || CaseAliases.matches(FieldProcess, name) || ComplaintAliases.matches(FieldProcess, name)
}

// Dim returns the value of a grouping dimension, including the derived reason.
func (c Complaint) Dim(name string) string {
	if normKey(name) == DimReason {
		return c.Reason
	}
	return c.Fields.Dim(name)
}

// NormalizeCases resolves the cases table into typed records. Rows without
// a case id or a parseable date are skipped.
func NormalizeCases(t *Table) (*CaseSet, error) {
	base, err := resolveBase(t, CaseAliases)
	if err != nil {
		return nil, err
	}
	idCol, ok := CaseAliases.Resolve(t, FieldCaseID)
	if !ok {
		return nil, CaseAliases.missing(t.Name, FieldCaseID)
	}

	set := &CaseSet{HasPortfolio: base.portfolio >= 0, HasProcess: base.process >= 0, columns: columnKeys(t)}
	for r := range t.Rows {
		fields, ok := base.fields(t, r)
		id := t.Cell(r, idCol)
		if !ok || id == "" {
			set.Skipped++
			continue
		}
		set.Records = append(set.Records, Case{Fields: fields, ID: id})
	}
	return set, nil
}

// NormalizeComplaints resolves the complaints table into typed records and
// assigns each complaint a reason category.
func NormalizeComplaints(t *Table) (*ComplaintSet, error) {
	base, err := resolveBase(t, ComplaintAliases)
	if err != nil {
		return nil, err
	}
	rcaCol, hasRCA := ComplaintAliases.Resolve(t, FieldRCA)
	textCols := ComplaintAliases.ResolveAll(t, FieldReason)

	set := &ComplaintSet{HasPortfolio: base.portfolio >= 0, HasProcess: base.process >= 0, columns: columnKeys(t)}
	for r := range t.Rows {
		fields, ok := base.fields(t, r)
		if !ok {
			set.Skipped++
			continue
		}
		reason := ""
		if hasRCA {
			reason = t.Cell(r, rcaCol)
		}
		if reason == "" {
			reason = Categorize(firstNonEmpty(t, r, textCols))
		}
		set.Records = append(set.Records, Complaint{Fields: fields, Reason: reason})
	}
	return set, nil
}

type baseColumns struct {
	month     int
	date      int
	portfolio int
	process   int
}

func resolveBase(t *Table, a Aliases) (*baseColumns, error) {
	b := &baseColumns{month: -1, date: -1, portfolio: -1, process: -1}
	if i, ok := a.Resolve(t, FieldMonth); ok {
		b.month = i
	}
	if i, ok := a.Resolve(t, FieldDate); ok {
		b.date = i
	}
	if b.month < 0 && b.date < 0 {
		return nil, a.missing(t.Name, FieldDate, FieldMonth)
	}
	if i, ok := a.Resolve(t, FieldPortfolio); ok {
		b.portfolio = i
	}
	if i, ok := a.Resolve(t, FieldProcess); ok {
		b.process = i
	}
	return b, nil
}

func (b *baseColumns) fields(t *Table, r int) (Fields, bool) {
	m, ok := "", false
	if b.month >= 0 {
		m, ok = monthOf(t.Cell(r, b.month))
	}
	if !ok && b.date >= 0 {
		m, ok = monthOf(t.Cell(r, b.date))
	}
	if !ok {
		return Fields{}, false
	}

	attrs := make(map[string]string, len(t.Columns))
	for i, c := range t.Columns {
		attrs[normKey(c)] = t.Cell(r, i)
	}
	f := Fields{Month: m, attrs: attrs}
	if b.portfolio >= 0 {
		f.Portfolio = StandardPortfolio(t.Cell(r, b.portfolio))
	}
	if b.process >= 0 {
		f.Process = strings.TrimSpace(t.Cell(r, b.process))
	}
	return f, true
}

// WithRecords returns a copy of the set holding recs instead.
func (s *CaseSet) WithRecords(recs []Case) *CaseSet {
	out := *s
	out.Records = recs
	return &out
}

// WithRecords returns a copy of the set holding recs instead.
func (s *ComplaintSet) WithRecords(recs []Complaint) *ComplaintSet {
	out := *s
	out.Records = recs
	return &out
}

func columnKeys(t *Table) map[string]bool {
	out := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		out[normKey(c)] = true
	}
	return out
}

func firstNonEmpty(t *Table, r int, cols []int) string {
	for _, c := range cols {
		v := t.Cell(r, c)
		switch strings.ToLower(v) {
		case "", "nan", "none", "na", "null":
			continue
		}
		return v
	}
	return ""
}

var (
	spaces         = regexp.MustCompile(`\s+`)
	portfolioFixes = strings.NewReplacer(
		"leatherhead - baes", "baes leatherhead",
		"baes-leatherhead", "baes leatherhead",
		"north west", "northwest",
	)
)

// StandardPortfolio canonicalizes a portfolio label: whitespace collapsed,
// known spelling variants merged, title cased.
func StandardPortfolio(s string) string {
	s = strings.ToLower(spaces.ReplaceAllString(strings.TrimSpace(s), " "))
	if s == "" {
		return ""
	}
	// Casers are stateful, so each call gets its own.
	return cases.Title(language.English).String(portfolioFixes.Replace(s))
}
