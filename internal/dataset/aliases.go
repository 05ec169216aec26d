package dataset

import (
	"errors"
	"fmt"
	"strings"
)

// Field is a logical column family that may appear under several names.
type Field string

const (
	FieldMonth     Field = "month"
	FieldDate      Field = "date"
	FieldCaseID    Field = "case_id"
	FieldPortfolio Field = "portfolio"
	FieldProcess   Field = "process"
	FieldRCA       Field = "rca"
	FieldReason    Field = "reason_text"
)

// Aliases lists, per logical field, the column names tried in order.
type Aliases map[Field][]string

// CaseAliases resolves the columns of the cases dataset.
var CaseAliases = Aliases{
	FieldMonth:     {"month"},
	FieldDate:      {"Create Date", "Create_Date", "Created", "Created On", "Report_Date", "Report Date"},
	FieldCaseID:    {"Case ID", "CaseID", "Case_Id", "case_id"},
	FieldPortfolio: {"Portfolio_std", "Portfolio"},
	FieldProcess:   {"Process_std", "ProcessName", "Process Name", "Process", "Case Type", "Parent_Case_Type"},
}

// ComplaintAliases resolves the columns of the complaints dataset.
var ComplaintAliases = Aliases{
	FieldMonth:     {"month"},
	FieldDate:      {"Report Date", "Report_Date", "ReportDate", "Report Dt", "Date Complaint Received - DD/MM/YY", "Date", "Reported On"},
	FieldPortfolio: {"Portfolio_std", "Portfolio"},
	FieldProcess:   {"Process_std", "ProcessName", "Process Name", "Process", "Parent_Case_Type", "Parent Case Type", "Case Type"},
	FieldRCA:       {"RCA1", "RCA 1", "Root Cause 1", "Primary Cause", "Primary Category"},
	FieldReason: {
		"Complaint Reason - Why is the member complaining ?",
		"Current Activity Reason",
		"Root Cause",
		"Process Category",
		"Event Type",
		"Comments",
		"Description",
	},
}

// Resolve returns the index of the first alias of f present in t.
func (a Aliases) Resolve(t *Table, f Field) (int, bool) {
	for _, name := range a[f] {
		if i := t.Index(name); i >= 0 {
			return i, true
		}
	}
	return -1, false
}

// ResolveAll returns the indexes of every alias of f present in t, in alias order.
func (a Aliases) ResolveAll(t *Table, f Field) []int {
	var out []int
	for _, name := range a[f] {
		if i := t.Index(name); i >= 0 {
			out = append(out, i)
		}
	}
	return out
}

// matches reports whether name is one of the aliases of f.
func (a Aliases) matches(f Field, name string) bool {
	key := normKey(name)
	for _, alias := range a[f] {
		if normKey(alias) == key {
			return true
		}
	}
	return false
}

// ErrSchema marks a dataset that lacks every known alias of a required field.
var ErrSchema = errors.New("schema error")

// SchemaError names the dataset and the column family that could not be resolved.
type SchemaError struct {
	Dataset string
	Field   Field
	Tried   []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("dataset %q has no %s column (tried %s)", e.Dataset, e.Field, strings.Join(e.Tried, ", "))
}

// Is lets errors.Is match ErrSchema.
func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema
}

func (a Aliases) missing(dataset string, fields ...Field) *SchemaError {
	var tried []string
	for _, f := range fields {
		tried = append(tried, a[f]...)
	}
	return &SchemaError{Dataset: dataset, Field: fields[0], Tried: tried}
}
