// Package recorder captures statements executed through an instrumented
// database driver into the active request scope.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/qustavo/sqlhooks/v2"

	"sqlpanel/internal/callsite"
	"sqlpanel/internal/domain"
	"sqlpanel/internal/scope"
	"sqlpanel/internal/signer"
	"sqlpanel/internal/sqlfmt"
)

// ErrMissingTimer is returned by After when a tracked statement has no
// pending start time. It means the before hook did not run for it.
var ErrMissingTimer = errors.New("statement finished without a start time")

var (
	_ sqlhooks.Hooks     = (*Recorder)(nil)
	_ sqlhooks.OnErrorer = (*Recorder)(nil)
)

type pendingKey struct{}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// Recorder implements the driver hooks.
type Recorder struct {
	registry *scope.Registry
	signer   *signer.Signer
	resolver *callsite.Resolver
	logger   *slog.Logger
	now      func() time.Time

	seq atomic.Uint64
}

// New creates a Recorder writing into registry.
func New(registry *scope.Registry, s *signer.Signer, resolver *callsite.Resolver, logger *slog.Logger, opts ...Option) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		registry: registry,
		signer:   s,
		resolver: resolver,
		logger:   logger.With("component", "recorder"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// pending identifies a started statement and the generation of the scope it
// started in.
type pending struct {
	id         uint64
	generation uint64
}

// Before starts the timer of a statement. The returned context carries the
// statement id for After.
func (r *Recorder) Before(ctx context.Context, _ string, _ ...interface{}) (context.Context, error) {
	if domain.RecordingDisabled(ctx) {
		return ctx, nil
	}
	sc, ok := r.registry.Current(ctx)
	if !ok {
		return ctx, nil
	}
	id := r.seq.Add(1)
	sc.StartTimer(id, r.now())
	return context.WithValue(ctx, pendingKey{}, pending{id: id, generation: sc.Generation()}), nil
}

// After stops the timer and appends a QueryEntry to the current scope. A
// statement whose scope was dropped while it ran is discarded; no scope is
// created for it.
func (r *Recorder) After(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	p, tracked := ctx.Value(pendingKey{}).(pending)
	if !tracked {
		return ctx, nil
	}
	sc, ok := r.registry.Lookup(ctx)
	if !ok || sc.Generation() != p.generation {
		return ctx, nil
	}

	start, err := sc.StopTimer(p.id)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrMissingTimer, err)
		r.logger.Error("query recording failed", "error", err, "sql", query)
		return ctx, err
	}
	duration := r.now().Sub(start)
	if duration < 0 {
		duration = 0
	}

	params := []any(args)
	entry := domain.QueryEntry{
		Duration:  duration.Seconds(),
		SQL:       sqlfmt.Format(query, params),
		StartedAt: start,
	}
	if sqlfmt.IsSelect(query) {
		if token, ok := r.signer.Sign(query, params); ok {
			entry.SignedQuery = &token
		}
	}
	site := r.resolver.Caller()
	entry.Context = site.Label()
	entry.ContextLong = site.LongLabel()

	sc.Append(entry)
	return ctx, nil
}

// OnError forgets the timer of a failed statement. The error is returned
// unchanged.
func (r *Recorder) OnError(ctx context.Context, err error, _ string, _ ...interface{}) error {
	p, tracked := ctx.Value(pendingKey{}).(pending)
	if !tracked {
		return err
	}
	if sc, ok := r.registry.Lookup(ctx); ok && sc.Generation() == p.generation {
		sc.DropTimer(p.id)
	}
	return err
}
