package kernel

import (
	"testing"

	"github.com/practos/practos/internal/testrunner/assert"
)

func TestReadCharFromBuffer(t *testing.T) {
	r := newRig(t)
	r.boot(nil)
	r.tick()

	assert.Equal(t, r.input('x'), Resumed)
	assert.EqualHex(t, r.running(), entry(0))
	assert.True(t, r.uart.Available())

	dest := r.scratch()
	assert.Equal(t, r.svc(uint8(SysReadChar), dest), Resumed)
	assert.EqualHex(t, r.f.R[0], CharDelivered)
	assert.Equal(t, string(r.readUser(0, dest, 1)), "x")
	assert.False(t, r.uart.Available())
}

func TestReadCharBlocksUntilInput(t *testing.T) {
	r := newRig(t)
	r.boot(nil)
	assert.NoError(t, r.k.CreateThread(nil, entry(1), nil, true))
	r.tick()

	dest := r.scratch()
	r.svc(uint8(SysReadChar), dest)
	assert.Equal(t, r.k.Waiter(), 0)
	assert.Equal(t, r.k.State(0), Waiting)
	assert.EqualHex(t, r.running(), entry(1))
	// The waiter's r0 still holds the destination.
	assert.EqualHex(t, r.k.Context(0).R[0], dest)

	// Thread 1 is not disturbed by the blocked read.
	r.tick()
	assert.EqualHex(t, r.running(), entry(1))

	r.input('q')
	assert.Equal(t, r.k.Current(), 0)
	assert.Equal(t, r.k.Waiter(), NoThread)
	assert.Equal(t, r.k.State(1), Ready)
	assert.EqualHex(t, r.f.R[0], CharDelivered)
	assert.EqualHex(t, r.running(), r.svcAddr(uint8(SysReadChar))+4)
	assert.Equal(t, string(r.readUser(0, dest, 1)), "q")
	assert.Equal(t, r.mm.Active(), 0)
	assert.False(t, r.uart.Available())

	// The reader runs first, then the preempted thread.
	r.tick()
	assert.EqualHex(t, r.running(), entry(1))
}

func TestReadCharWakesFromIdle(t *testing.T) {
	r := newRig(t)
	r.boot(nil)
	r.tick()

	dest := r.scratch()
	r.svc(uint8(SysReadChar), dest)
	assert.True(t, r.k.Idle())

	r.input('!')
	assert.False(t, r.k.Idle())
	assert.Equal(t, r.k.State(0), Running)
	assert.Equal(t, string(r.readUser(0, dest, 1)), "!")
}

func TestSecondReaderIsBusy(t *testing.T) {
	r := newRig(t)
	r.boot(nil)
	assert.NoError(t, r.k.CreateThread(nil, entry(1), nil, true))
	r.tick()

	r.svc(uint8(SysReadChar), r.scratch())
	assert.EqualHex(t, r.running(), entry(1))

	assert.Equal(t, r.svc(uint8(SysReadChar), r.scratch()), Resumed)
	assert.EqualHex(t, r.f.R[0], CharBusy)
	assert.Equal(t, r.k.State(1), Running)
	assert.Equal(t, r.k.Waiter(), 0)
}

func TestReadCharToUnmappedAddressKillsCaller(t *testing.T) {
	r := newRig(t)
	r.boot(nil)
	assert.NoError(t, r.k.CreateThread(nil, entry(1), nil, true))
	r.tick()

	// The guard page below the stack.
	guard := r.f.USP - 0x1800
	assert.Equal(t, r.svc(uint8(SysReadChar), guard), ThreadTerminated)
	assert.Equal(t, r.k.State(0), Terminated)
	assert.Equal(t, r.k.Waiter(), NoThread)
	assert.Contains(t, r.console.String(), "Data Abort")
	assert.Contains(t, r.console.String(), "Translation fault on Page")
}

func TestInputForVanishedDestinationAbortsWaiter(t *testing.T) {
	r := newRig(t)
	r.boot(nil)
	assert.NoError(t, r.k.CreateThread(nil, entry(1), nil, false))
	r.tick()
	assert.EqualHex(t, r.running(), entry(0))
	dest := r.scratch()

	// Thread 1 reads into the stack of thread 0, which then exits.
	r.tick()
	assert.EqualHex(t, r.running(), entry(1))
	assert.Equal(t, r.svc(uint8(SysReadChar), dest), Resumed)
	assert.Equal(t, r.k.Waiter(), 1)
	assert.Equal(t, r.svc(uint8(SysExit)), ThreadTerminated)
	assert.True(t, r.k.Idle())

	assert.Equal(t, r.input('z'), Resumed)
	assert.Equal(t, r.k.State(1), Terminated)
	assert.Equal(t, r.k.Waiter(), NoThread)
	assert.True(t, r.k.Idle())
	assert.Equal(t, r.k.Stats().Faults, uint64(1))
	assert.Equal(t, r.k.Stats().Exited, uint64(2))
	assert.Contains(t, r.console.String(), "Data Abort")
	assert.Contains(t, r.console.String(), "Fault occurred in current thread. Thread is terminated.")

	b, ok := r.uart.Next()
	assert.True(t, ok, "undelivered input stays buffered")
	assert.Equal(t, b, byte('z'))
}

func TestInputOverflowIsDropped(t *testing.T) {
	r := newRig(t)
	r.boot(nil)
	r.tick()

	for _, b := range []byte("0123456789") {
		r.input(b)
	}
	assert.Equal(t, r.uart.Dropped(), 2)

	var got []byte
	for i := 0; i < 8; i++ {
		dest := r.scratch()
		r.svc(uint8(SysReadChar), dest)
		got = append(got, r.readUser(0, dest, 1)...)
	}
	assert.Equal(t, string(got), "01234567")
}

func TestWriteCharTransmits(t *testing.T) {
	r := newRig(t)
	r.boot(nil)
	r.tick()

	for _, c := range "ok\n" {
		r.svc(uint8(SysWriteChar), uint32(c))
	}
	assert.Equal(t, r.tx.String(), "ok\n")
	assert.Equal(t, r.k.State(0), Running)
}
