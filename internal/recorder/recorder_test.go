package recorder_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlpanel/internal/callsite"
	internaldb "sqlpanel/internal/db"
	"sqlpanel/internal/domain"
	"sqlpanel/internal/recorder"
	"sqlpanel/internal/scope"
	"sqlpanel/internal/signer"
)

type unitKey struct{}

func withUnit(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, unitKey{}, id)
}

func unitFromContext(ctx context.Context) string {
	id, _ := ctx.Value(unitKey{}).(string)
	return id
}

// fakeClock advances by step on every call after the first.
type fakeClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

type fixture struct {
	registry *scope.Registry
	signer   *signer.Signer
	rec      *recorder.Recorder
}

func newFixture(t *testing.T, opts ...recorder.Option) fixture {
	t.Helper()
	s, err := signer.New("test-secret", "")
	require.NoError(t, err)
	reg := scope.NewRegistry(unitFromContext)
	rec := recorder.New(reg, s, callsite.NewResolver(callsite.DefaultExcluded...), nil, opts...)
	return fixture{registry: reg, signer: s, rec: rec}
}

func TestRecorder_RecordsDurationFromClock(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0), step: 37 * time.Millisecond}
	f := newFixture(t, recorder.WithClock(clock.Now))
	ctx := withUnit(context.Background(), "req")

	ctx, err := f.rec.Before(ctx, "SELECT 1")
	require.NoError(t, err)
	_, err = f.rec.After(ctx, "SELECT 1")
	require.NoError(t, err)

	entries := f.registry.Take(ctx)
	require.Len(t, entries, 1)
	assert.InDelta(t, 0.037, entries[0].Duration, 1e-9)
	assert.Equal(t, time.Unix(1000, 0), entries[0].StartedAt)
	assert.Equal(t, "SELECT 1", entries[0].SQL)
}

func TestRecorder_RecordsWallClockDuration(t *testing.T) {
	f := newFixture(t)
	ctx := withUnit(context.Background(), "req")

	ctx, err := f.rec.Before(ctx, "SELECT 1")
	require.NoError(t, err)
	time.Sleep(37 * time.Millisecond)
	_, err = f.rec.After(ctx, "SELECT 1")
	require.NoError(t, err)

	entries := f.registry.Take(ctx)
	require.Len(t, entries, 1)
	assert.GreaterOrEqual(t, entries[0].Duration, 0.037)
}

func TestRecorder_SignsSelectOnly(t *testing.T) {
	f := newFixture(t)
	ctx := withUnit(context.Background(), "req")

	run := func(query string, args ...interface{}) {
		c, err := f.rec.Before(ctx, query, args...)
		require.NoError(t, err)
		_, err = f.rec.After(c, query, args...)
		require.NoError(t, err)
	}
	run("  select * from users where id = ?", int64(7))
	run("UPDATE users SET visit_count = visit_count + 1 WHERE id = ?", int64(7))

	entries := f.registry.Take(ctx)
	require.Len(t, entries, 2)

	require.NotNil(t, entries[0].SignedQuery)
	stmt, params, err := f.signer.Verify(*entries[0].SignedQuery)
	require.NoError(t, err)
	assert.Equal(t, "  select * from users where id = ?", stmt)
	assert.Equal(t, []any{int64(7)}, params)
	assert.Equal(t, "select * from users where id = 7", entries[0].SQL)

	assert.Nil(t, entries[1].SignedQuery)
	assert.False(t, entries[1].Rerunnable())
	assert.Equal(t, "UPDATE users SET visit_count = visit_count + 1 WHERE id = 7", entries[1].SQL)
}

func TestRecorder_UnserializableParamsAreNotSigned(t *testing.T) {
	f := newFixture(t)
	ctx := withUnit(context.Background(), "req")

	c, err := f.rec.Before(ctx, "SELECT ?", struct{}{})
	require.NoError(t, err)
	_, err = f.rec.After(c, "SELECT ?", struct{}{})
	require.NoError(t, err)

	entries := f.registry.Take(ctx)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].SignedQuery)
}

func TestRecorder_ResolvesCallSite(t *testing.T) {
	f := newFixture(t)
	ctx := withUnit(context.Background(), "req")

	c, err := f.rec.Before(ctx, "SELECT 1")
	require.NoError(t, err)
	_, err = f.rec.After(c, "SELECT 1")
	require.NoError(t, err)

	entries := f.registry.Take(ctx)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Context, "recorder_test.go:")
	assert.Contains(t, entries[0].Context, "(TestRecorder_ResolvesCallSite)")
	assert.Contains(t, entries[0].ContextLong, "sqlpanel/internal/recorder_test.TestRecorder_ResolvesCallSite")
}

func TestRecorder_MissingTimer(t *testing.T) {
	f := newFixture(t)
	ctx := withUnit(context.Background(), "req")

	c, err := f.rec.Before(ctx, "SELECT 1")
	require.NoError(t, err)
	_, err = f.rec.After(c, "SELECT 1")
	require.NoError(t, err)

	// A second After for the same statement has no timer left.
	_, err = f.rec.After(c, "SELECT 1")
	require.ErrorIs(t, err, recorder.ErrMissingTimer)
	assert.Len(t, f.registry.Take(ctx), 1)
}

func TestRecorder_ScopeClearedWhileInFlight(t *testing.T) {
	f := newFixture(t)
	ctx := withUnit(context.Background(), "req")

	c, err := f.rec.Before(ctx, "SELECT 1")
	require.NoError(t, err)
	f.registry.ClearCurrent(ctx)

	_, err = f.rec.After(c, "SELECT 1")
	require.NoError(t, err, "a finished unit must not fail the application's query")
	assert.Equal(t, 0, f.registry.Len(), "the dropped scope is not recreated")
	assert.Empty(t, f.registry.Take(ctx))
}

func TestRecorder_StatementFromDroppedScopeIsDiscarded(t *testing.T) {
	f := newFixture(t)
	ctx := withUnit(context.Background(), "req")

	old, err := f.rec.Before(ctx, "SELECT 'old'")
	require.NoError(t, err)
	f.registry.ClearCurrent(ctx)

	fresh, err := f.rec.Before(ctx, "SELECT 'new'")
	require.NoError(t, err)
	_, err = f.rec.After(old, "SELECT 'old'")
	require.NoError(t, err)
	_, err = f.rec.After(fresh, "SELECT 'new'")
	require.NoError(t, err)

	entries := f.registry.Take(ctx)
	require.Len(t, entries, 1)
	assert.Equal(t, "SELECT 'new'", entries[0].SQL)
	assert.Equal(t, 0, f.registry.Len())
}

func TestRecorder_FailedStatementAfterScopeCleared(t *testing.T) {
	f := newFixture(t)
	ctx := withUnit(context.Background(), "req")
	boom := errors.New("boom")

	c, err := f.rec.Before(ctx, "SELECT nope")
	require.NoError(t, err)
	f.registry.ClearCurrent(ctx)

	assert.Same(t, boom, f.rec.OnError(c, boom, "SELECT nope"))
	assert.Equal(t, 0, f.registry.Len())
}

func TestRecorder_InFlightStatementSurvivesTake(t *testing.T) {
	f := newFixture(t)
	ctx := withUnit(context.Background(), "req")

	first, err := f.rec.Before(ctx, "SELECT 1")
	require.NoError(t, err)
	_, err = f.rec.After(first, "SELECT 1")
	require.NoError(t, err)

	slow, err := f.rec.Before(ctx, "SELECT 2")
	require.NoError(t, err)
	require.Len(t, f.registry.Take(ctx), 1)

	_, err = f.rec.After(slow, "SELECT 2")
	require.NoError(t, err)
	entries := f.registry.Take(ctx)
	require.Len(t, entries, 1)
	assert.Equal(t, "SELECT 2", entries[0].SQL)
}

func TestRecorder_NoActiveUnitIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.rec.Before(ctx, "SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, ctx, c)
	_, err = f.rec.After(c, "SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, 0, f.registry.Len())
}

func TestRecorder_RecordingDisabled(t *testing.T) {
	f := newFixture(t)
	ctx := domain.WithoutRecording(withUnit(context.Background(), "req"))

	c, err := f.rec.Before(ctx, "SELECT 1")
	require.NoError(t, err)
	_, err = f.rec.After(c, "SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, 0, f.registry.Len())
}

func TestRecorder_OnErrorDropsTimer(t *testing.T) {
	f := newFixture(t)
	ctx := withUnit(context.Background(), "req")
	boom := errors.New("boom")

	c, err := f.rec.Before(ctx, "SELECT nope")
	require.NoError(t, err)
	got := f.rec.OnError(c, boom, "SELECT nope")
	assert.Same(t, boom, got)

	assert.Empty(t, f.registry.Take(ctx))
	assert.Equal(t, 0, f.registry.Len(), "no timer may remain in flight")
}

func TestRecorder_OverlappingStatements(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0), step: 10 * time.Millisecond}
	f := newFixture(t, recorder.WithClock(clock.Now))
	ctx := withUnit(context.Background(), "req")

	outer, err := f.rec.Before(ctx, "SELECT 'outer'") // t=0
	require.NoError(t, err)
	inner, err := f.rec.Before(ctx, "SELECT 'inner'") // t=10
	require.NoError(t, err)
	_, err = f.rec.After(inner, "SELECT 'inner'") // t=20
	require.NoError(t, err)
	_, err = f.rec.After(outer, "SELECT 'outer'") // t=30
	require.NoError(t, err)

	entries := f.registry.Take(ctx)
	require.Len(t, entries, 2)
	assert.Equal(t, "SELECT 'inner'", entries[0].SQL)
	assert.InDelta(t, 0.010, entries[0].Duration, 1e-9)
	assert.Equal(t, "SELECT 'outer'", entries[1].SQL)
	assert.InDelta(t, 0.030, entries[1].Duration, 1e-9)
}

func TestRecorder_ThroughInstrumentedDriver(t *testing.T) {
	f := newFixture(t)
	db := internaldb.OpenTestSQLite(t, f.rec)
	ctx := withUnit(context.Background(), "req")

	var one int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT 1").Scan(&one))
	_, err := db.ExecContext(ctx, "UPDATE users SET visit_count = visit_count + 1 WHERE id = ?", 1)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "SELECT * FROM no_such_table")
	require.Error(t, err)

	entries := f.registry.Take(ctx)
	require.Len(t, entries, 2)

	assert.Contains(t, entries[0].SQL, "SELECT 1")
	require.NotNil(t, entries[0].SignedQuery)
	assert.GreaterOrEqual(t, entries[0].Duration, 0.0)
	assert.True(t, strings.Contains(entries[0].Context, "recorder_test.go:"), entries[0].Context)

	assert.Contains(t, entries[1].SQL, "UPDATE users")
	assert.Nil(t, entries[1].SignedQuery)

	assert.Equal(t, 0, f.registry.Len())
}
