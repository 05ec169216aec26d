// Package question runs the fixed catalogue of quality questions over a
// dataset snapshot and shapes each answer into a renderer-agnostic payload.
package question

import "fmt"

// Question is one fixed analytical computation. The engine runs the shared
// load, filter and window stages and hands the result to Compute.
type Question interface {
	ID() string
	Title() string
	// Datasets lists the datasets the question reads, in join order.
	Datasets() []string
	// Compute aggregates and shapes the filtered input. It returns a
	// non-empty reason instead of a payload when there is nothing to show.
	Compute(in *Input) (*Payload, string)
}

// Registry maps question ids to questions. It is filled once at startup and
// only read afterwards.
type Registry struct {
	order []string
	byID  map[string]Question
}

// NewRegistry registers qs in the given order. Duplicate ids panic since
// they are a programming error.
func NewRegistry(qs ...Question) *Registry {
	r := &Registry{byID: make(map[string]Question, len(qs))}
	for _, q := range qs {
		if _, dup := r.byID[q.ID()]; dup {
			panic(fmt.Sprintf("question %q registered twice", q.ID()))
		}
		r.order = append(r.order, q.ID())
		r.byID[q.ID()] = q
	}
	return r
}

// Default returns the registry of every built-in question.
func Default() *Registry {
	return NewRegistry(
		ratePerThousand{},
		volumeQuestion{
			id: "unique_cases_mom", title: "Unique cases month on month",
			dataset: "cases", metric: colUniqueCases, noun: "unique cases",
		},
		volumeQuestion{
			id: "complaint_volume", title: "Complaint volume",
			dataset: "complaints", metric: colComplaints, noun: "complaints",
		},
		complaintAnalysis{},
		reasonMix{},
		topContributors{},
		watchlist{th: DefaultThresholds},
	)
}

// List returns the registered ids in registration order.
func (r *Registry) List() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Get returns the question registered under id.
func (r *Registry) Get(id string) (Question, error) {
	q, ok := r.byID[id]
	if !ok {
		return nil, unknown(id)
	}
	return q, nil
}

// Info is the listing entry for one question.
type Info struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Datasets []string `json:"datasets"`
}

// Describe lists id, title and datasets for every question, in order.
func (r *Registry) Describe() []Info {
	out := make([]Info, 0, len(r.order))
	for _, id := range r.order {
		q := r.byID[id]
		out = append(out, Info{ID: id, Title: q.Title(), Datasets: q.Datasets()})
	}
	return out
}
