// Package pipeline runs the dataset import: read source spreadsheets,
// validate their schema, store the snapshot and report coverage.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/SwapnilGautama/HaloQuality/internal/database"
	"github.com/SwapnilGautama/HaloQuality/internal/dataset"
	"github.com/SwapnilGautama/HaloQuality/internal/ingest"
	"github.com/SwapnilGautama/HaloQuality/internal/logger"
	"github.com/SwapnilGautama/HaloQuality/internal/month"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	Steps   []StepResult
	Imports []database.Import
}

// Failed reports whether any step failed.
func (r *Result) Failed() bool {
	for _, s := range r.Steps {
		if s.Err != nil {
			return true
		}
	}
	return false
}

// Pipeline orchestrates the 4-step import.
type Pipeline struct {
	sources map[string][]string
	db      *database.DB
	log     logger.Logger
}

// New creates a new pipeline reading the given sources per dataset name.
func New(sources map[string][]string, db *database.DB, log logger.Logger) *Pipeline {
	if log == nil {
		log = logger.NewNop()
	}
	return &Pipeline{sources: sources, db: db, log: log}
}

// loaded is one dataset carried between steps.
type loaded struct {
	table   *dataset.Table
	files   []string
	skipped int
	months  []string
}

// Run executes the full import. A failing step stops the run, so a dataset
// with schema drift never replaces the stored snapshot.
func (p *Pipeline) Run(ctx context.Context) *Result {
	r := &Result{}

	// Step 1: Read
	batch, step := p.runRead(ctx)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	// Step 2: Validate
	step = p.runValidate(batch)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	// Step 3: Store
	imports, step := p.runStore(ctx, batch)
	r.Imports = imports
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	// Step 4: Report
	r.Steps = append(r.Steps, p.runReport(batch))
	return r
}

// DryRun reads and validates the sources without storing anything.
func (p *Pipeline) DryRun(ctx context.Context) *Result {
	r := &Result{}
	batch, step := p.runRead(ctx)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}
	step = p.runValidate(batch)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}
	r.Steps = append(r.Steps, StepResult{Name: "Store", Summary: "[dry-run] nothing stored"})
	r.Steps = append(r.Steps, p.runReport(batch))
	return r
}

func (p *Pipeline) names() []string {
	names := make([]string, 0, len(p.sources))
	for n := range p.sources {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (p *Pipeline) runRead(ctx context.Context) (map[string]*loaded, StepResult) {
	p.log.Info("Step 1/4: Reading source files")
	batch := make(map[string]*loaded)
	var parts []string
	for _, name := range p.names() {
		if err := ctx.Err(); err != nil {
			return nil, StepResult{Name: "Read", Err: err}
		}
		t, files, err := ingest.ReadDataset(name, p.sources[name])
		if errors.Is(err, ingest.ErrNoFiles) {
			p.log.Warn("No source files for dataset", logger.String("dataset", name))
			parts = append(parts, fmt.Sprintf("%s: no files", name))
			continue
		}
		if err != nil {
			return nil, StepResult{Name: "Read", Err: fmt.Errorf("%s: %w", name, err)}
		}
		batch[name] = &loaded{table: t, files: files}
		parts = append(parts, fmt.Sprintf("%s: %d rows from %d files", name, t.Len(), len(files)))
	}
	if len(batch) == 0 {
		return nil, StepResult{Name: "Read", Err: ingest.ErrNoFiles}
	}
	return batch, StepResult{Name: "Read", Summary: strings.Join(parts, "; ")}
}

func (p *Pipeline) runValidate(batch map[string]*loaded) StepResult {
	p.log.Info("Step 2/4: Validating schema")
	var parts []string
	for _, name := range sortedKeys(batch) {
		l := batch[name]
		switch name {
		case dataset.Cases:
			set, err := dataset.NormalizeCases(l.table)
			if err != nil {
				return StepResult{Name: "Validate", Err: err}
			}
			l.skipped, l.months = set.Skipped, months(set.Records)
		case dataset.Complaints:
			set, err := dataset.NormalizeComplaints(l.table)
			if err != nil {
				return StepResult{Name: "Validate", Err: err}
			}
			l.skipped, l.months = set.Skipped, months(set.Records)
		default:
			return StepResult{Name: "Validate", Err: fmt.Errorf("unknown dataset %q", name)}
		}
		if l.skipped > 0 {
			p.log.Warn("Rows without a usable date or id",
				logger.String("dataset", name),
				logger.Int("skipped", l.skipped),
			)
		}
		parts = append(parts, fmt.Sprintf("%s: %d skipped", name, l.skipped))
	}
	return StepResult{Name: "Validate", Summary: strings.Join(parts, "; ")}
}

func (p *Pipeline) runStore(ctx context.Context, batch map[string]*loaded) ([]database.Import, StepResult) {
	p.log.Info("Step 3/4: Storing snapshot")
	if err := ctx.Err(); err != nil {
		return nil, StepResult{Name: "Store", Err: err}
	}
	tables := make([]database.TableImport, 0, len(batch))
	for _, name := range sortedKeys(batch) {
		l := batch[name]
		tables = append(tables, database.TableImport{Table: l.table, Sources: l.files, Skipped: l.skipped})
	}
	saved, err := p.db.SaveTables(tables)
	if err != nil {
		return nil, StepResult{Name: "Store", Err: err}
	}
	imports := make([]database.Import, 0, len(saved))
	for _, imp := range saved {
		imports = append(imports, *imp)
	}
	return imports, StepResult{Name: "Store", Summary: fmt.Sprintf("Stored %d datasets in %s", len(imports), p.db.Path())}
}

func (p *Pipeline) runReport(batch map[string]*loaded) StepResult {
	p.log.Info("Step 4/4: Reporting coverage")
	var parts []string
	for _, name := range sortedKeys(batch) {
		ms := batch[name].months
		if len(ms) == 0 {
			parts = append(parts, fmt.Sprintf("%s: no months", name))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s to %s", name, month.Display(ms[0]), month.Display(ms[len(ms)-1])))
	}
	if c, ok := batch[dataset.Cases]; ok {
		if q, ok := batch[dataset.Complaints]; ok {
			parts = append(parts, fmt.Sprintf("%d overlapping months", len(overlap(c.months, q.months))))
		}
	}
	return StepResult{Name: "Report", Summary: strings.Join(parts, "; ")}
}

func sortedKeys(batch map[string]*loaded) []string {
	keys := make([]string, 0, len(batch))
	for k := range batch {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func months[T interface{ Dim(string) string }](recs []T) []string {
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

func overlap(a, b []string) []string {
	in := make(map[string]bool, len(a))
	for _, m := range a {
		in[m] = true
	}
	var out []string
	for _, m := range b {
		if in[m] {
			out = append(out, m)
		}
	}
	return out
}
