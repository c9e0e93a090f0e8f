// Package trace records scheduling events and draws them as a timeline.
package trace

import (
	"sort"
	"sync"

	"github.com/practos/practos/internal/kernel"
)

// DefaultLimit is the number of events a Recorder keeps when none is given.
const DefaultLimit = 1 << 16

// IdleRow is the Thread of spans spent in the idle loop.
const IdleRow = kernel.NoThread

// Span is an interval a thread spent in one state.
type Span struct {
	Thread int
	State  kernel.State
	Start  uint64
	End    uint64
}

// Recorder is a kernel.Observer that keeps the first events it sees.
type Recorder struct {
	mu      sync.Mutex
	events  []kernel.Event
	limit   int
	dropped uint64
}

// NewRecorder returns a recorder keeping at most limit events.
func NewRecorder(limit int) *Recorder {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Recorder{limit: limit}
}

// Observe implements kernel.Observer.
func (r *Recorder) Observe(e kernel.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) >= r.limit {
		r.dropped++
		return
	}
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []kernel.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]kernel.Event(nil), r.events...)
}

// Dropped is the number of events that did not fit.
func (r *Recorder) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Spans folds the events into per-thread state intervals. Intervals still
// open are closed at end; a halt closes everything.
func (r *Recorder) Spans(end uint64) []Span {
	events := r.Events()
	var spans []Span
	open := make(map[int]Span)

	closeSpan := func(thread int, at uint64) {
		s, ok := open[thread]
		if !ok {
			return
		}
		delete(open, thread)
		if at > s.Start {
			s.End = at
			spans = append(spans, s)
		}
	}

	for _, e := range events {
		switch e.Kind {
		case kernel.EventState, kernel.EventSwitch, kernel.EventExit:
			if s, ok := open[e.Thread]; ok && s.State == e.State {
				continue
			}
			closeSpan(e.Thread, e.Time)
			if e.State == kernel.Running {
				closeSpan(IdleRow, e.Time)
			}
			if e.State != kernel.Terminated {
				open[e.Thread] = Span{Thread: e.Thread, State: e.State, Start: e.Time}
			}
		case kernel.EventIdle:
			if _, ok := open[IdleRow]; !ok {
				open[IdleRow] = Span{Thread: IdleRow, State: kernel.Running, Start: e.Time}
			}
		case kernel.EventHalt:
			end = e.Time
		}
		if e.Kind == kernel.EventHalt {
			break
		}
	}
	for thread := range open {
		closeSpan(thread, end)
	}

	sort.Slice(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		return spans[i].Thread < spans[j].Thread
	})
	return spans
}
