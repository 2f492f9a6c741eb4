package domain

import "time"

// QueryEntry is one recorded statement execution within a request scope.
type QueryEntry struct {
	// Duration is the elapsed time in seconds between the pre- and
	// post-execution hooks.
	Duration float64
	// SQL is the statement with parameters interpolated. Display only.
	SQL string
	// SignedQuery carries the signed (statement, parameters) pair. It is nil
	// for statements that are not read-only or whose parameters could not be
	// serialized, meaning the entry cannot be re-executed.
	SignedQuery *string
	Context     string
	ContextLong string
	StartedAt   time.Time
}

// Rerunnable reports whether the entry carries a signed query.
func (e QueryEntry) Rerunnable() bool {
	return e.SignedQuery != nil && *e.SignedQuery != ""
}

// DurationMillis returns the duration in milliseconds.
func (e QueryEntry) DurationMillis() float64 {
	return e.Duration * 1000
}
