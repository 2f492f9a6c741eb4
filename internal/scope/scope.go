// Package scope keeps recorded queries per logical unit of work.
//
// A logical unit is whatever the host's identity function says it is; for the
// HTTP toolbar it is one request, identified by a server-generated scope id.
// The Registry maps that id to a private Scope holding pending statement
// timers and the ordered list of recorded entries.
package scope

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"sqlpanel/internal/domain"
)

// ErrNoPendingTimer is returned by StopTimer when no timer was started for
// the statement.
var ErrNoPendingTimer = errors.New("no pending timer for statement")

// IdentityFunc returns a stable identifier for the logical unit active in
// ctx. It must return distinct ids for units that may run concurrently and
// "" when no unit is active.
type IdentityFunc func(ctx context.Context) string

// Scope is the per-unit bag of in-flight timers and recorded statements.
type Scope struct {
	generation uint64

	mu         sync.Mutex
	pending    map[uint64]time.Time
	statements []domain.QueryEntry
}

func newScope(generation uint64) *Scope {
	return &Scope{generation: generation, pending: make(map[uint64]time.Time)}
}

// Generation distinguishes this scope from earlier scopes of the same unit
// id that were dropped.
func (s *Scope) Generation() uint64 { return s.generation }

// StartTimer records the start time of statement id.
func (s *Scope) StartTimer(id uint64, start time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[id] = start
}

// StopTimer removes and returns the start time of statement id.
func (s *Scope) StopTimer(id uint64) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start, ok := s.pending[id]
	if !ok {
		return time.Time{}, fmt.Errorf("%w %d", ErrNoPendingTimer, id)
	}
	delete(s.pending, id)
	return start, nil
}

// DropTimer forgets statement id without recording anything.
func (s *Scope) DropTimer(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
}

// Append adds a recorded statement.
func (s *Scope) Append(entry domain.QueryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statements = append(s.statements, entry)
}

// Entries returns a copy of the recorded statements.
func (s *Scope) Entries() []domain.QueryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.QueryEntry(nil), s.statements...)
}

// take removes and returns the recorded statements. It reports whether
// statements are still in flight.
func (s *Scope) take() ([]domain.QueryEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.statements
	s.statements = nil
	return out, len(s.pending) > 0
}

// Registry maps logical-unit ids to scopes.
type Registry struct {
	identity IdentityFunc

	mu          sync.Mutex
	scopes      map[string]*Scope
	generations uint64
}

// NewRegistry creates a Registry using identity to find the active unit.
func NewRegistry(identity IdentityFunc) *Registry {
	return &Registry{identity: identity, scopes: make(map[string]*Scope)}
}

// Current returns the scope of the unit active in ctx, creating it on first
// use. It returns false when no unit is active.
func (r *Registry) Current(ctx context.Context) (*Scope, bool) {
	id := r.identity(ctx)
	if id == "" {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	sc, ok := r.scopes[id]
	if !ok {
		r.generations++
		sc = newScope(r.generations)
		r.scopes[id] = sc
	}
	return sc, true
}

// Lookup returns the scope of the unit active in ctx without creating it.
func (r *Registry) Lookup(ctx context.Context) (*Scope, bool) {
	id := r.identity(ctx)
	if id == "" {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	sc, ok := r.scopes[id]
	return sc, ok
}

// Snapshot returns the statements recorded so far for the unit active in
// ctx without clearing them.
func (r *Registry) Snapshot(ctx context.Context) []domain.QueryEntry {
	id := r.identity(ctx)
	if id == "" {
		return nil
	}

	r.mu.Lock()
	sc, ok := r.scopes[id]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return sc.Entries()
}

// Take returns the statements recorded for the unit active in ctx and clears
// them. A second Take before new statements are recorded returns nothing.
// The scope itself is dropped unless statements are still in flight, in which
// case their timers are kept for the pending post-execution hooks.
func (r *Registry) Take(ctx context.Context) []domain.QueryEntry {
	id := r.identity(ctx)
	if id == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	sc, ok := r.scopes[id]
	if !ok {
		return nil
	}
	entries, inFlight := sc.take()
	if !inFlight {
		delete(r.scopes, id)
	}
	return entries
}

// ClearCurrent drops the scope of the unit active in ctx, in-flight timers
// included.
func (r *Registry) ClearCurrent(ctx context.Context) {
	id := r.identity(ctx)
	if id == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.scopes, id)
}

// Len returns the number of live scopes.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.scopes)
}
