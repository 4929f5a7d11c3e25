// Package budget tracks how long each decoding-round phase (pre-process,
// mid-process, post-process) takes against a soft time budget.
//
// The core library never enforces these budgets itself — a slow pre-process
// callback still runs to completion — but a host wiring the core in is
// expected to notice when a sequence's callbacks are eating into the
// decoding loop's latency, which is what [Tracker] is for: it logs overruns
// and keeps running statistics a host can expose or alert on.
//
// Tracker is safe for concurrent use.
package budget

import (
	"log/slog"
	"sync"
	"time"
)

// Phase names one of the three callback steps a decoding round drives.
type Phase string

const (
	PhasePre  Phase = "pre_process"
	PhaseMid  Phase = "mid_process"
	PhasePost Phase = "post_process"
)

// Limits holds the soft time budget for each phase. The zero value disables
// overrun logging for that phase (a limit of zero never trips).
type Limits struct {
	// Pre is the budget for pre-process. Default: 1ms.
	Pre time.Duration

	// Mid is the budget for mid-process, which does the actual constraint
	// evaluation and is given the most headroom. Default: 20ms.
	Mid time.Duration

	// Post is the budget for post-process. Default: 1ms.
	Post time.Duration
}

// DefaultLimits returns the budget used when a [Tracker] is constructed with
// a zero-value [Limits].
func DefaultLimits() Limits {
	return Limits{
		Pre:  time.Millisecond,
		Mid:  20 * time.Millisecond,
		Post: time.Millisecond,
	}
}

// Stats is a point-in-time snapshot of a [Tracker]'s accounting.
type Stats struct {
	Calls    map[Phase]int
	Overruns map[Phase]int
	Worst    map[Phase]time.Duration
}

// Tracker accumulates per-phase timing statistics for one sequence (or
// whatever unit of work a host chooses to name).
type Tracker struct {
	name   string
	limits Limits

	mu       sync.Mutex
	calls    map[Phase]int
	overruns map[Phase]int
	worst    map[Phase]time.Duration
}

// NewTracker creates a [Tracker]. A zero-value limits uses [DefaultLimits].
func NewTracker(name string, limits Limits) *Tracker {
	if limits == (Limits{}) {
		limits = DefaultLimits()
	}
	return &Tracker{
		name:     name,
		limits:   limits,
		calls:    make(map[Phase]int),
		overruns: make(map[Phase]int),
		worst:    make(map[Phase]time.Duration),
	}
}

// Track runs fn, timing it, and records the elapsed duration against phase's
// budget. It returns the elapsed duration so callers can use it for their
// own tracing spans.
func (t *Tracker) Track(phase Phase, fn func()) time.Duration {
	start := time.Now()
	fn()
	elapsed := time.Since(start)
	t.record(phase, elapsed)
	return elapsed
}

// Record is Track's non-closure counterpart, for callers that already
// measured elapsed time themselves.
func (t *Tracker) Record(phase Phase, elapsed time.Duration) {
	t.record(phase, elapsed)
}

func (t *Tracker) record(phase Phase, elapsed time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.calls[phase]++
	if elapsed > t.worst[phase] {
		t.worst[phase] = elapsed
	}

	limit := t.limitFor(phase)
	if limit > 0 && elapsed > limit {
		t.overruns[phase]++
		slog.Warn("decoding phase exceeded its time budget",
			"tracker", t.name,
			"phase", phase,
			"elapsed", elapsed,
			"limit", limit,
		)
	}
}

func (t *Tracker) limitFor(phase Phase) time.Duration {
	switch phase {
	case PhasePre:
		return t.limits.Pre
	case PhaseMid:
		return t.limits.Mid
	case PhasePost:
		return t.limits.Post
	default:
		return 0
	}
}

// Stats returns a snapshot of the tracker's current accounting.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Stats{
		Calls:    make(map[Phase]int, len(t.calls)),
		Overruns: make(map[Phase]int, len(t.overruns)),
		Worst:    make(map[Phase]time.Duration, len(t.worst)),
	}
	for k, v := range t.calls {
		s.Calls[k] = v
	}
	for k, v := range t.overruns {
		s.Overruns[k] = v
	}
	for k, v := range t.worst {
		s.Worst[k] = v
	}
	return s
}
