package kernel

import (
	"github.com/practos/practos/internal/mmu"
)

// EventKind classifies scheduling events.
type EventKind int

const (
	EventState EventKind = iota
	EventSwitch
	EventIdle
	EventExit
	EventHalt
)

var eventNames = [...]string{"state", "switch", "idle", "exit", "halt"}

func (e EventKind) String() string { return eventNames[e] }

// Event is a scheduling event. Time is the system timer in microseconds.
type Event struct {
	Time   uint64
	Kind   EventKind
	Thread int
	State  State
}

// Observer receives events synchronously from trap context and must not
// call back into the kernel.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

func (k *Kernel) emit(e Event) {
	if k.observer == nil {
		return
	}
	e.Time = k.now()
	k.observer.Observe(e)
}

// ThreadInfo describes one live thread.
type ThreadInfo struct {
	ID     int    `json:"id"`
	State  string `json:"state"`
	Table  int    `json:"table"`
	Stack  int    `json:"stack_slot"`
	WakeAt uint64 `json:"wake_at,omitempty"`
	PC     uint32 `json:"pc"`
	SP     uint32 `json:"sp"`
}

// TableInfo describes one address space in use.
type TableInfo struct {
	Index int    `json:"index"`
	Refs  uint32 `json:"refs"`
}

// Snapshot is a consistent copy of the scheduler state.
type Snapshot struct {
	Now      uint64       `json:"now"`
	Current  int          `json:"current"`
	Idle     bool         `json:"idle"`
	Halted   bool         `json:"halted"`
	Waiter   int          `json:"waiter"`
	RunQueue []int        `json:"run_queue"`
	Sleeping []int        `json:"sleeping"`
	Threads  []ThreadInfo `json:"threads"`
	Tables   []TableInfo  `json:"tables"`
	Stats    Stats        `json:"stats"`
}

// Snapshot copies the scheduler state.
func (k *Kernel) Snapshot() Snapshot {
	s := Snapshot{
		Now:      k.now(),
		Current:  k.head,
		Idle:     k.idle,
		Halted:   k.halted,
		Waiter:   k.waiter,
		RunQueue: k.RunQueue(),
		Sleeping: k.Sleeping(),
		Stats:    k.stats,
	}
	if s.Idle {
		s.Current = NoThread
	}
	for i := range k.tcbs {
		t := &k.tcbs[i]
		if t.state == Terminated {
			continue
		}
		s.Threads = append(s.Threads, ThreadInfo{
			ID:     i,
			State:  t.state.String(),
			Table:  t.table,
			Stack:  t.stack,
			WakeAt: t.wakeAt,
			PC:     t.ctx.PC,
			SP:     t.ctx.SP,
		})
	}
	for i := 0; i < mmu.MaxTables; i++ {
		if refs := k.mm.RefCount(i); refs > 0 {
			s.Tables = append(s.Tables, TableInfo{Index: i, Refs: refs})
		}
	}
	return s
}
