package kernel

import (
	"fmt"
	"testing"

	"github.com/practos/practos/internal/arm"
	"github.com/practos/practos/internal/testrunner/assert"
)

func TestBootEntersIdleThenRunsInit(t *testing.T) {
	r := newRig(t)
	r.boot([]byte("hello"))

	assert.True(t, r.k.Idle())
	assert.EqualHex(t, r.f.LR, r.idleAddr())
	assert.EqualHex(t, r.f.SPSR, arm.UserPSR)
	assert.Equal(t, r.k.State(0), Ready)

	r.tick()
	assert.False(t, r.k.Idle())
	assert.Equal(t, r.k.State(0), Running)
	assert.Equal(t, r.k.Current(), 0)
	assert.EqualHex(t, r.f.LR, entry(0))
	assert.EqualHex(t, r.f.SPSR, arm.UserPSR)
	assert.EqualHex(t, r.f.ULR, r.exitAddr())
	assert.EqualHex(t, r.f.R[0], uint32(0x700000-5))
	assert.EqualHex(t, r.f.USP, uint32(0x700000-8))
	assert.Equal(t, string(r.readUser(0, r.f.R[0], 5)), "hello")
	assert.Equal(t, r.mm.Active(), 0)
}

func TestRoundRobinRotation(t *testing.T) {
	r := newRig(t)
	r.boot(nil)
	assert.NoError(t, r.k.CreateThread(nil, entry(1), nil, true))
	assert.NoError(t, r.k.CreateThread(nil, entry(2), nil, true))
	assert.Equal(t, len(r.k.RunQueue()), 3)

	for i := 0; i < 7; i++ {
		r.tick()
		assert.EqualHex(t, r.running(), entry(i%3), fmt.Sprintf("tick %d", i))
		assert.Equal(t, r.mm.Active(), i%3)
	}
}

func TestSoleThreadKeepsRunning(t *testing.T) {
	r := newRig(t)
	r.boot(nil)
	r.tick()
	switches := r.k.Stats().Switches
	activations := r.mm.Activations()

	r.f.R[7] = 0x77
	r.f.LR = entry(0) + 0x40
	for i := 0; i < 3; i++ {
		r.tick()
	}
	assert.EqualHex(t, r.f.R[7], uint32(0x77))
	assert.EqualHex(t, r.f.LR, entry(0)+0x40)
	assert.Equal(t, r.k.Stats().Switches, switches)
	assert.Equal(t, r.mm.Activations(), activations)
}

func TestPreemptedContextIsRestored(t *testing.T) {
	r := newRig(t)
	r.boot(nil)
	assert.NoError(t, r.k.CreateThread(nil, entry(1), nil, true))
	r.tick()

	r.f.R[4] = 0xAAAA
	r.f.USP = 0x6FFF80
	r.f.ULR = 0x500123
	r.f.LR = entry(0) + 0x20
	r.f.SPSR = arm.UserPSR | 1<<arm.BitZ

	r.tick()
	assert.EqualHex(t, r.running(), entry(1))
	r.f.R[4] = 0xBBBB

	r.tick()
	assert.EqualHex(t, r.f.R[4], uint32(0xAAAA))
	assert.EqualHex(t, r.f.USP, uint32(0x6FFF80))
	assert.EqualHex(t, r.f.ULR, uint32(0x500123))
	assert.EqualHex(t, r.f.LR, entry(0)+0x20)
	assert.EqualHex(t, r.f.SPSR, arm.UserPSR|1<<arm.BitZ)
}

func TestSleepWakesAfterDeadline(t *testing.T) {
	r := newRig(t)
	r.boot(nil)
	assert.NoError(t, r.k.CreateThread(nil, entry(1), nil, true))
	r.tick()

	assert.Equal(t, r.svc(uint8(SysSleep), 25), Resumed)
	assert.EqualHex(t, r.running(), entry(1))
	assert.Equal(t, r.k.State(0), Waiting)
	assert.Len(t, r.k.Sleeping(), 1)
	assert.Len(t, r.k.RunQueue(), 1)

	r.tick()
	r.tick()
	assert.EqualHex(t, r.running(), entry(1))
	assert.Equal(t, r.k.State(0), Waiting)

	r.tick()
	assert.Equal(t, r.k.State(0), Running)
	assert.EqualHex(t, r.running(), r.svcAddr(uint8(SysSleep))+4)
	assert.EqualHex(t, r.f.R[0], uint32(25))
	assert.Len(t, r.k.Sleeping(), 0)
}

func TestIdleTimerTargetsEarliestSleeper(t *testing.T) {
	r := newRig(t)
	r.boot(nil)
	assert.NoError(t, r.k.CreateThread(nil, entry(1), nil, true))
	r.tick()
	start := r.clock.Now()

	r.svc(uint8(SysSleep), 7)
	r.svc(uint8(SysSleep), 3)
	assert.True(t, r.k.Idle())
	assert.EqualHex(t, r.f.LR, r.idleAddr())

	next, ok := r.timer.NextDeadline()
	assert.True(t, ok)
	assert.Equal(t, next, start+3000)

	r.tick()
	assert.False(t, r.k.Idle())
	assert.Equal(t, r.k.State(1), Running)
	assert.Equal(t, r.k.State(0), Waiting)

	r.tick()
	assert.Equal(t, r.k.State(0), Running)
	assert.EqualHex(t, r.running(), r.svcAddr(uint8(SysSleep))+4)
}

func TestSleepZeroReturnsImmediately(t *testing.T) {
	r := newRig(t)
	r.boot(nil)
	r.tick()

	assert.Equal(t, r.svc(uint8(SysSleep), 0), Resumed)
	assert.Equal(t, r.k.State(0), Running)
	assert.EqualHex(t, r.running(), r.svcAddr(uint8(SysSleep))+4)
	assert.Len(t, r.k.Sleeping(), 0)
}

func TestRunQueueInsertsBeforeHead(t *testing.T) {
	r := newRig(t)
	r.boot(nil)
	r.tick()

	// Created from the running thread: queued last, then scheduled.
	r.svc(uint8(SysCreateThread), entry(1), 0, 0, 1)
	assert.EqualHex(t, r.running(), entry(1))
	r.svc(uint8(SysCreateThread), entry(2), 0, 0, 1)

	// Thread 2 is queued last in the rotation thread 1 started.
	assert.EqualHex(t, r.running(), r.svcAddr(uint8(SysCreateThread))+4)
	assert.Equal(t, r.k.Current(), 0)
	q := r.k.RunQueue()
	assert.Len(t, q, 3)
	assert.Equal(t, q[0], 0)
	assert.Equal(t, q[1], 2)
	assert.Equal(t, q[2], 1)
}

func TestObserverSeesSwitches(t *testing.T) {
	r := newRig(t)
	var events []Event
	r.k.SetObserver(ObserverFunc(func(e Event) { events = append(events, e) }))
	r.boot(nil)
	r.tick()
	r.svc(uint8(SysSleep), 1)

	var kinds []EventKind
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	assert.True(t, len(kinds) >= 4)
	assert.Equal(t, kinds[0], EventState)
	assert.Equal(t, events[0].State, Ready)

	var sawSwitch, sawIdle bool
	for _, e := range events {
		if e.Kind == EventSwitch && e.Thread == 0 {
			sawSwitch = true
			assert.Equal(t, e.Time, uint64(11000))
		}
		if e.Kind == EventIdle {
			sawIdle = true
		}
	}
	assert.True(t, sawSwitch)
	assert.True(t, sawIdle)
	assert.Equal(t, events[len(events)-1].Kind, EventIdle)
}
