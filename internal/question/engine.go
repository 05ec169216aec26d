package question

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/SwapnilGautama/HaloQuality/internal/dataset"
	"github.com/SwapnilGautama/HaloQuality/internal/logger"
)

// Source supplies raw tables by dataset name. *dataset.Snapshot implements it.
type Source interface {
	Get(name string) (*dataset.Table, error)
}

// Run outcomes, as reported to the Observer.
const (
	OutcomeOK      = "ok"
	OutcomeNoData  = "no_data"
	OutcomeInvalid = "invalid"
	OutcomeUnknown = "unknown"
	OutcomeSchema  = "schema_error"
	OutcomeError   = "error"
)

// Observer is notified once per run.
type Observer interface {
	ObserveRun(id, outcome string, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveRun(string, string, time.Duration) {}

// Input is what a question's Compute receives: validated parameters, the
// effective grouping dimensions and its datasets, already filtered and
// restricted to the time window. Sets the question did not ask for are nil.
type Input struct {
	Params     Params
	GroupBy    []string
	Cases      *dataset.CaseSet
	Complaints *dataset.ComplaintSet
}

// Engine runs questions through the shared pipeline: load and normalize,
// filter, select the time window, then the question's own aggregation and
// shaping.
type Engine struct {
	registry       *Registry
	log            logger.Logger
	observer       Observer
	defaultGroupBy []string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger runs are reported to.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithObserver sets the run observer, typically metrics.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithDefaultGroupBy sets the dimensions used when a request names none.
// Defaults a question's datasets do not carry are skipped.
func WithDefaultGroupBy(dims []string) Option {
	return func(e *Engine) { e.defaultGroupBy = dims }
}

// NewEngine returns an engine over the questions in reg.
func NewEngine(reg *Registry, opts ...Option) *Engine {
	e := &Engine{registry: reg, log: logger.NewNop(), observer: nopObserver{}}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Registry returns the questions the engine can run.
func (e *Engine) Registry() *Registry { return e.registry }

// Run executes question id against src. Errors wrap ErrUnknownQuestion,
// ErrInvalidParameter or ErrSchema; an empty outcome is a Result with
// NoData set and a nil error.
func (e *Engine) Run(ctx context.Context, src Source, id string, raw RawParams) (*Result, error) {
	start := time.Now()
	res, err := e.run(ctx, src, id, raw)
	elapsed := time.Since(start)

	outcome := Outcome(res, err)
	metricID := id
	if outcome == OutcomeUnknown {
		metricID = "unknown"
	}
	e.observer.ObserveRun(metricID, outcome, elapsed)

	fields := []logger.Field{
		logger.String("question", id),
		logger.String("outcome", outcome),
		logger.Duration("elapsed", elapsed),
	}
	switch outcome {
	case OutcomeOK, OutcomeNoData:
		e.log.Info("Question run", fields...)
	case OutcomeError:
		e.log.Error("Question run failed", append(fields, logger.Error(err))...)
	default:
		// Schema errors are reported by the caller, which knows the request.
		e.log.Debug("Question not answered", append(fields, logger.Error(err))...)
	}
	return res, err
}

// Outcome classifies the result of a run.
func Outcome(res *Result, err error) string {
	switch {
	case err == nil && res != nil && res.Empty():
		return OutcomeNoData
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrUnknownQuestion):
		return OutcomeUnknown
	case errors.Is(err, ErrInvalidParameter):
		return OutcomeInvalid
	case errors.Is(err, ErrSchema):
		return OutcomeSchema
	}
	return OutcomeError
}

func (e *Engine) run(ctx context.Context, src Source, id string, raw RawParams) (*Result, error) {
	q, err := e.registry.Get(id)
	if err != nil {
		return nil, err
	}
	params, err := Normalize(raw)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	in := &Input{Params: params}
	for _, name := range q.Datasets() {
		t, err := src.Get(name)
		if errors.Is(err, dataset.ErrNotLoaded) {
			return noData(q, params, fmt.Sprintf("The %s dataset has not been loaded.", name)), nil
		}
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", name, err)
		}
		if err := in.load(name, t); err != nil {
			return nil, err
		}
	}

	if in.GroupBy, err = e.groupBy(params.GroupBy, in); err != nil {
		return nil, err
	}
	in.Params.GroupBy = in.GroupBy
	in.filter()
	in.window()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, reason := q.Compute(in)
	if p == nil {
		return noData(q, in.Params, reason), nil
	}
	p.ID = q.ID()
	p.Version = Version
	p.Params = in.Params
	if p.DataRefs == nil {
		p.DataRefs = map[string][]Row{}
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("question %s: %w", q.ID(), err)
	}
	return &Result{Payload: p}, nil
}

func noData(q Question, p Params, reason string) *Result {
	if reason == "" {
		reason = "No data for the selected filters."
	}
	return &Result{NoData: &NoData{ID: q.ID(), Version: Version, Params: p, NoData: true, Message: reason}}
}

func (in *Input) load(name string, t *dataset.Table) error {
	switch name {
	case dataset.Cases:
		set, err := dataset.NormalizeCases(t)
		if err != nil {
			return fmt.Errorf("normalizing %s: %w", name, err)
		}
		in.Cases = set
	case dataset.Complaints:
		set, err := dataset.NormalizeComplaints(t)
		if err != nil {
			return fmt.Errorf("normalizing %s: %w", name, err)
		}
		in.Complaints = set
	default:
		return fmt.Errorf("no normalizer for dataset %q", name)
	}
	return nil
}

// hasDim reports whether every loaded dataset carries dim.
func (in *Input) hasDim(dim string) bool {
	if in.Cases != nil && !in.Cases.HasDim(dim) {
		return false
	}
	if in.Complaints != nil && !in.Complaints.HasDim(dim) {
		return false
	}
	return true
}

// groupBy resolves the effective grouping dimensions. Requested dimensions
// must exist in every dataset; defaults that do not are dropped.
func (e *Engine) groupBy(requested []string, in *Input) ([]string, error) {
	if len(requested) > 0 {
		for _, d := range requested {
			if !in.hasDim(d) {
				return nil, invalid("group_by", d, "dimension is not present in the question's datasets")
			}
		}
		return requested, nil
	}
	out := []string{}
	for _, d := range e.defaultGroupBy {
		if in.hasDim(d) {
			out = append(out, d)
		}
	}
	return out, nil
}

// filter applies the portfolio and process filters to each dataset that has
// the column. Datasets without it are left as they are.
func (in *Input) filter() {
	p := in.Params
	if in.Cases != nil {
		s := in.Cases
		s = s.WithRecords(keep(s.Records, func(c dataset.Case) bool {
			return (!s.HasPortfolio || matchText(p.Portfolio, c.Portfolio)) &&
				(!s.HasProcess || matchText(p.Process, c.Process))
		}))
		in.Cases = s
	}
	if in.Complaints != nil {
		s := in.Complaints
		s = s.WithRecords(keep(s.Records, func(c dataset.Complaint) bool {
			return (!s.HasPortfolio || matchText(p.Portfolio, c.Portfolio)) &&
				(!s.HasProcess || matchText(p.Process, c.Process))
		}))
		in.Complaints = s
	}
}

// window restricts every dataset to the selected months: the explicit range,
// or the last N months common to all datasets. With neither, it does nothing.
func (in *Input) window() {
	var allowed map[string]bool
	switch {
	case in.Params.Range != nil:
		allowed = setOf(in.Params.Range.Months)
	case in.Params.LastN > 0:
		common := in.commonMonths()
		if len(common) > in.Params.LastN {
			common = common[len(common)-in.Params.LastN:]
		}
		allowed = setOf(common)
	default:
		return
	}

	if in.Cases != nil {
		in.Cases = in.Cases.WithRecords(keep(in.Cases.Records, func(c dataset.Case) bool { return allowed[c.Month] }))
	}
	if in.Complaints != nil {
		in.Complaints = in.Complaints.WithRecords(keep(in.Complaints.Records, func(c dataset.Complaint) bool { return allowed[c.Month] }))
	}
}

// commonMonths is the sorted intersection of months across loaded datasets.
func (in *Input) commonMonths() []string {
	var sets [][]string
	if in.Cases != nil {
		sets = append(sets, distinctMonths(in.Cases.Records))
	}
	if in.Complaints != nil {
		sets = append(sets, distinctMonths(in.Complaints.Records))
	}
	if len(sets) == 0 {
		return nil
	}
	common := setOf(sets[0])
	for _, s := range sets[1:] {
		next := setOf(s)
		for m := range common {
			if !next[m] {
				delete(common, m)
			}
		}
	}
	out := make([]string, 0, len(common))
	for m := range common {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

func setOf(xs []string) map[string]bool {
	out := make(map[string]bool, len(xs))
	for _, x := range xs {
		out[x] = true
	}
	return out
}
