package dataset

import (
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"
)

// ErrNotLoaded is returned when a snapshot has no table under a name.
var ErrNotLoaded = errors.New("dataset not loaded")

// Snapshot is an immutable set of named tables. Nothing mutates a snapshot
// after NewSnapshot returns, so concurrent readers need no locking.
type Snapshot struct {
	tables   map[string]*Table
	loadedAt time.Time
}

// NewSnapshot builds a snapshot from tables. Later tables with the same name
// replace earlier ones.
func NewSnapshot(tables ...*Table) *Snapshot {
	s := &Snapshot{tables: make(map[string]*Table, len(tables)), loadedAt: time.Now()}
	for _, t := range tables {
		if t != nil {
			s.tables[t.Name] = t
		}
	}
	return s
}

// Get returns the table stored under name.
func (s *Snapshot) Get(name string) (*Table, error) {
	if s != nil {
		if t, ok := s.tables[name]; ok {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotLoaded, name)
}

// Names lists the tables in the snapshot, sorted.
func (s *Snapshot) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.tables))
	for n := range s.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// RowCounts returns the number of rows per table.
func (s *Snapshot) RowCounts() map[string]int {
	out := make(map[string]int)
	if s == nil {
		return out
	}
	for n, t := range s.tables {
		out[n] = t.Len()
	}
	return out
}

// LoadedAt reports when the snapshot was built.
func (s *Snapshot) LoadedAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.loadedAt
}

// Store hands out the current snapshot. Reloads replace the whole snapshot
// with Swap; a request that already holds a snapshot keeps reading it.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// NewStore returns a store serving initial (which may be nil).
func NewStore(initial *Snapshot) *Store {
	s := &Store{}
	if initial == nil {
		initial = NewSnapshot()
	}
	s.current.Store(initial)
	return s
}

// Snapshot returns the snapshot in effect right now.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Swap installs next and returns the snapshot it replaced.
func (s *Store) Swap(next *Snapshot) *Snapshot {
	if next == nil {
		next = NewSnapshot()
	}
	return s.current.Swap(next)
}
