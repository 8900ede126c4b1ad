// Package trace is an optional function-call listener for
// internal/interp.Executor, kept separate from the hot dispatch loop the
// way the teacher keeps its fine-grained WASI-call logging
// (internal/logging) out of internal/engine/interpreter. Unlike the
// teacher's version, this one has no WASI log-scopes or memory-formatted
// value writers: it logs the plain numeric ABI the interpreter core itself
// uses (spec.md §4.6's GoFunc shape), since this module has no host ABI
// layered on top of it.
package trace

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/migwasm/migwasm/internal/wasm"
)

// Listener observes function entry and exit at the interp.Executor call
// boundary (spec.md §4.5 Call Protocol). Before/After are invoked on the
// hot path only when a Listener is actually attached, so the zero cost of
// "not tracing" is a single nil check.
type Listener interface {
	Before(fn *wasm.Function, params []uint64)
	After(fn *wasm.Function, results []uint64)
}

// LogrusListener renders each call as one logrus debug line. Intended for
// `cmd/migwasm run --trace`, not for production hot paths.
type LogrusListener struct {
	Log   *logrus.Logger
	depth int
}

func NewLogrusListener(log *logrus.Logger) *LogrusListener {
	return &LogrusListener{Log: log}
}

func (l *LogrusListener) Before(fn *wasm.Function, params []uint64) {
	l.Log.Debugf("%s%s(%s)", indent(l.depth), fn.DebugName, formatVals(params))
	l.depth++
}

func (l *LogrusListener) After(fn *wasm.Function, results []uint64) {
	if l.depth > 0 {
		l.depth--
	}
	l.Log.Debugf("%s%s -> (%s)", indent(l.depth), fn.DebugName, formatVals(results))
}

func indent(depth int) string {
	b := make([]byte, depth*2)
	for i := range b {
		b[i] = ' '
	}
	return string(b)
}

func formatVals(vals []uint64) string {
	s := ""
	for i, v := range vals {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%#x", v)
	}
	return s
}
