package compiler

import (
	"errors"

	"go.uber.org/atomic"
)

// Stats counts compilation outcomes across every Compile/CompileAll call
// that shares it, the same plain-struct-of-atomics shape the pack's log
// agent uses for its own running counters (agentimpl.started) rather than
// a mutex-guarded struct — these fields are incremented far more often
// than they're read.
type Stats struct {
	Succeeded atomic.Int64
	Failed    atomic.Int64
	Cancelled atomic.Int64
}

// NewStats returns a zeroed Stats ready to be passed to Compile/CompileAll
// via Options.Stats.
func NewStats() *Stats { return &Stats{} }

func (s *Stats) recordSuccess() {
	if s != nil {
		s.Succeeded.Inc()
	}
}

func (s *Stats) recordFailure(err error) {
	if s == nil {
		return
	}
	var ce *CompileError
	if errors.As(err, &ce) && ce.Kind == ErrCancelled {
		s.Cancelled.Inc()
		return
	}
	s.Failed.Inc()
}

// Snapshot returns a point-in-time copy of the three counters.
func (s *Stats) Snapshot() (succeeded, failed, cancelled int64) {
	if s == nil {
		return 0, 0, 0
	}
	return s.Succeeded.Load(), s.Failed.Load(), s.Cancelled.Load()
}
