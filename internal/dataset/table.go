// Package dataset holds the tabular snapshots questions are computed from and
// turns raw tables into typed case and complaint records.
package dataset

import (
	"regexp"
	"strings"
)

// Well-known dataset names.
const (
	Cases      = "cases"
	Complaints = "complaints"
)

// Table is an immutable grid of string cells with a header row. Rows may be
// shorter than Columns; missing trailing cells read as "".
type Table struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Index returns the position of the column whose normalized name matches
// name, or -1.
func (t *Table) Index(name string) int {
	want := normKey(name)
	for i, c := range t.Columns {
		if normKey(c) == want {
			return i
		}
	}
	return -1
}

// Cell returns the trimmed value at (row, col), or "" when out of range.
func (t *Table) Cell(row, col int) string {
	if col < 0 || row < 0 || row >= len(t.Rows) || col >= len(t.Rows[row]) {
		return ""
	}
	return strings.TrimSpace(t.Rows[row][col])
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// normKey folds a column or dimension name so that "Create Date",
// "Create_Date" and "create-date" compare equal.
func normKey(s string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "")
}
