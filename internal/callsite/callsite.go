// Package callsite attributes a query to the application code that issued it.
package callsite

import (
	"fmt"
	"runtime"
	"strings"
)

// Unknown is the label returned when no frame qualifies.
const Unknown = "<unknown>"

const maxDepth = 128

// DefaultExcluded lists packages that never count as application code: the
// Go runtime, database/sql and the drivers underneath it, and the recorder
// itself.
var DefaultExcluded = []string{
	"runtime",
	"database/sql",
	"github.com/qustavo/sqlhooks/v2",
	"github.com/mattn/go-sqlite3",
	"github.com/duckdb/duckdb-go/v2",
	"sqlpanel/internal/callsite",
	"sqlpanel/internal/recorder",
}

// FrameSource yields stack frames with the semantics of *runtime.Frames.
type FrameSource interface {
	Next() (runtime.Frame, bool)
}

// Site is a resolved call site.
type Site struct {
	File     string
	Line     int
	Function string // fully qualified, e.g. "example.com/app/store.(*Repo).List"
}

// Known reports whether the site was resolved.
func (s Site) Known() bool { return s.Function != "" }

// Label formats the site as "<file>:<line> (<function>)" using the function
// name without its package path.
func (s Site) Label() string {
	if !s.Known() {
		return Unknown
	}
	_, name := splitFunction(s.Function)
	return fmt.Sprintf("%s:%d (%s)", s.File, s.Line, name)
}

// LongLabel is Label with the fully qualified function name.
func (s Site) LongLabel() string {
	if !s.Known() {
		return Unknown
	}
	return fmt.Sprintf("%s:%d (%s)", s.File, s.Line, s.Function)
}

// Resolver finds the first stack frame outside a set of excluded packages.
type Resolver struct {
	excluded []string
}

// NewResolver creates a Resolver skipping the given package paths. A frame
// is skipped when its package equals an entry or lives below it.
func NewResolver(excluded ...string) *Resolver {
	clean := make([]string, 0, len(excluded))
	seen := make(map[string]struct{}, len(excluded))
	for _, pkg := range excluded {
		pkg = strings.TrimSuffix(strings.TrimSpace(pkg), "/")
		if pkg == "" {
			continue
		}
		if _, dup := seen[pkg]; dup {
			continue
		}
		seen[pkg] = struct{}{}
		clean = append(clean, pkg)
	}
	return &Resolver{excluded: clean}
}

// Excluded returns the package paths the resolver skips.
func (r *Resolver) Excluded() []string {
	return append([]string(nil), r.excluded...)
}

// Resolve returns the label of the first non-excluded frame above the caller.
func (r *Resolver) Resolve() string {
	return r.caller(3).Label()
}

// ResolveLong is Resolve with the fully qualified function name.
func (r *Resolver) ResolveLong() string {
	return r.caller(3).LongLabel()
}

// Caller returns the first non-excluded frame above the caller.
func (r *Resolver) Caller() Site {
	return r.caller(3)
}

// ResolveFrames returns the label of the first non-excluded frame of src.
func (r *Resolver) ResolveFrames(src FrameSource) string {
	return r.Find(src).Label()
}

// caller walks the stack; skip follows runtime.Callers.
func (r *Resolver) caller(skip int) Site {
	pcs := make([]uintptr, maxDepth)
	n := runtime.Callers(skip, pcs)
	if n == 0 {
		return Site{}
	}
	return r.Find(runtime.CallersFrames(pcs[:n]))
}

// Find returns the first frame from src whose package is not excluded. The
// zero Site is returned when src is exhausted.
func (r *Resolver) Find(src FrameSource) Site {
	for {
		frame, more := src.Next()
		if frame.Function != "" && !r.isExcluded(frame.Function) {
			return Site{File: frame.File, Line: frame.Line, Function: frame.Function}
		}
		if !more {
			return Site{}
		}
	}
}

func (r *Resolver) isExcluded(function string) bool {
	pkg, _ := splitFunction(function)
	for _, prefix := range r.excluded {
		if pkg == prefix || strings.HasPrefix(pkg, prefix+"/") {
			return true
		}
	}
	return false
}

// splitFunction splits a qualified function name into its package path and
// the remaining name. The linker escapes dots in the last path element as
// %2e; they are restored here.
func splitFunction(function string) (pkg, name string) {
	slash := strings.LastIndex(function, "/")
	dot := strings.Index(function[slash+1:], ".")
	if dot < 0 {
		return strings.ReplaceAll(function, "%2e", "."), ""
	}
	cut := slash + 1 + dot
	return strings.ReplaceAll(function[:cut], "%2e", "."), function[cut+1:]
}
