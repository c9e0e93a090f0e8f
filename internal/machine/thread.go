package machine

import (
	"runtime"
	"time"

	"github.com/practos/practos/internal/arm"
	"github.com/practos/practos/internal/kernel"
	"github.com/practos/practos/internal/mmu"
)

// Thread is a program's handle on the CPU. Its methods are the only way a
// program reaches memory and the kernel; a method that makes the kernel
// terminate the thread does not return.
type Thread struct {
	m      *Machine
	key    threadKey
	entry  uint32
	pc     uint32
	arg    uint32
	resume chan struct{}
}

func (t *Thread) start(p Program) {
	p(t)
	t.ret()
}

// ret returns from the entry function to the address in the user link
// register, which the kernel points at the exit stub. A thread that
// survives the instruction found there exits.
func (t *Thread) ret() {
	t.m.mu.Lock()
	lr := t.m.frame.ULR
	t.m.mu.Unlock()
	t.execute(lr)
	t.Exit()
}

// step advances the program counter within the program's slot of user
// text and returns the address of the current instruction.
func (t *Thread) step() uint32 {
	pc := t.pc
	t.pc = t.entry + (t.pc-t.entry+4)%programSize
	return pc
}

// trap hands the CPU to the machine loop and blocks until the kernel
// resumes this thread. The caller holds mu, which trap releases.
func (t *Thread) trap(kind arm.TrapKind, lr uint32) {
	t.m.frame.LR = lr
	t.m.frame.SPSR = arm.UserPSR
	t.m.mu.Unlock()
	t.m.req <- request{t: t, kind: kind}
	t.park()
}

func (t *Thread) park() {
	if _, ok := <-t.resume; !ok {
		runtime.Goexit()
	}
}

// abort raises a fault for an access the MMU refused. It does not return.
func (t *Thread) abort(kind arm.TrapKind, pc uint32, fault *mmu.Fault) {
	t.m.RecordFault(kind, fault.FSR(), fault.Addr)
	t.trap(kind, arm.TrapLR(kind, pc))
	// A user fault always terminates the thread.
	runtime.Goexit()
}

// Arg returns the value of r0 at entry: the address of the argument block.
func (t *Thread) Arg() uint32 { return t.arg }

// Args reads the argument block, which runs from Arg to the top of the
// thread's stack page.
func (t *Thread) Args() []byte {
	n := (mmu.PageSize - t.arg%mmu.PageSize) % mmu.PageSize
	out := make([]byte, n)
	for i := range out {
		out[i] = t.Load8(t.arg + uint32(i))
	}
	return out
}

// SP returns the user stack pointer.
func (t *Thread) SP() uint32 { return t.key.sp }

// Syscall issues "svc code" with args in r0-r3 and returns r0.
func (t *Thread) Syscall(code uint8, args ...uint32) uint32 {
	t.m.mu.Lock()
	for i := range 4 {
		t.m.frame.R[i] = 0
	}
	copy(t.m.frame.R[:4], args)
	t.step()
	t.trap(arm.TrapSVC, arm.TrapLR(arm.TrapSVC, t.m.stubAddr(code)))

	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	return t.m.frame.R[0]
}

// Exit terminates the thread.
func (t *Thread) Exit() {
	t.Syscall(uint8(kernel.SysExit))
	runtime.Goexit()
}

// Spawn starts the program at entry as a new thread, or as a new process,
// passing a copy of args. The block is staged below the scratch word.
func (t *Thread) Spawn(entry uint32, args []byte, process bool) {
	ptr := arm.AlignSP(t.SP() - 2*arm.StackAlign - uint32(len(args)))
	for i, b := range args {
		t.Store8(ptr+uint32(i), b)
	}
	var proc uint32
	if process {
		proc = 1
	}
	t.Syscall(uint8(kernel.SysCreateThread), entry, ptr, uint32(len(args)), proc)
}

// Sleep blocks for at least ms milliseconds.
func (t *Thread) Sleep(ms uint32) {
	t.Syscall(uint8(kernel.SysSleep), ms)
}

// ReadChar blocks until a byte of console input is available. ok is false
// when another thread is already waiting for input.
func (t *Thread) ReadChar() (b byte, ok bool) {
	scratch := t.SP() - arm.StackAlign
	if t.Syscall(uint8(kernel.SysReadChar), scratch) != kernel.CharDelivered {
		return 0, false
	}
	return t.Load8(scratch), true
}

// WriteChar transmits b.
func (t *Thread) WriteChar(b byte) {
	t.Syscall(uint8(kernel.SysWriteChar), uint32(b))
}

// Print transmits s.
func (t *Thread) Print(s string) {
	for i := 0; i < len(s); i++ {
		t.WriteChar(s[i])
	}
}

// access translates addr for a data access of size bytes, aborting the
// thread on a fault. It returns with mu held.
func (t *Thread) access(addr, size uint32, kind mmu.AccessKind) uint32 {
	t.m.mu.Lock()
	pc := t.step()
	if addr%size != 0 {
		t.abort(arm.TrapDataAbort, pc, &mmu.Fault{Status: arm.StatusAlignment, Addr: addr, Write: kind == mmu.Write})
	}
	phys, fault := t.m.translate(addr, kind)
	if fault != nil {
		t.abort(arm.TrapDataAbort, pc, fault)
	}
	return phys
}

// Load8 reads a byte.
func (t *Thread) Load8(addr uint32) byte {
	phys := t.access(addr, 1, mmu.Read)
	defer t.m.mu.Unlock()
	return t.m.mem.Load8(phys)
}

// Load32 reads an aligned word.
func (t *Thread) Load32(addr uint32) uint32 {
	phys := t.access(addr, 4, mmu.Read)
	defer t.m.mu.Unlock()
	return t.m.mem.Load32(phys)
}

// Store8 writes a byte.
func (t *Thread) Store8(addr uint32, v byte) {
	phys := t.access(addr, 1, mmu.Write)
	defer t.m.mu.Unlock()
	t.m.mem.Store8(phys, v)
}

// Store32 writes an aligned word.
func (t *Thread) Store32(addr, v uint32) {
	phys := t.access(addr, 4, mmu.Write)
	defer t.m.mu.Unlock()
	t.m.mem.Store32(phys, v)
}

// Jump branches to addr. A loaded program there takes over the thread;
// anything else is fetched and executed as a single instruction. Jump
// does not return.
func (t *Thread) Jump(addr uint32) {
	t.m.mu.Lock()
	p, ok := t.m.programs[addr]
	t.m.mu.Unlock()
	if ok {
		t.entry, t.pc = addr, addr
		p(t)
		t.ret()
	}
	t.execute(addr)
	t.Exit()
}

// execute fetches the instruction at pc. Only SVC is decoded; every other
// instruction is undefined.
func (t *Thread) execute(pc uint32) {
	t.m.mu.Lock()
	phys, fault := t.m.translate(pc, mmu.Execute)
	if fault != nil {
		t.abort(arm.TrapPrefetchAbort, pc, fault)
	}
	insn := t.m.mem.Load32(phys)
	if insn&0x0F000000 == 0x0F000000 {
		t.trap(arm.TrapSVC, arm.TrapLR(arm.TrapSVC, pc))
		return
	}
	t.trap(arm.TrapUndefined, arm.TrapLR(arm.TrapUndefined, pc))
}

// Undefined executes an undefined instruction.
func (t *Thread) Undefined() {
	t.execute(t.m.layout.UserTextStart + udfOffset)
	t.Exit()
}

// Work burns us microseconds of CPU time and gives pending interrupts a
// chance to preempt the thread.
func (t *Thread) Work(us uint32) {
	if t.m.manual != nil {
		t.m.manual.Advance(uint64(us))
	} else if us > 0 {
		time.Sleep(time.Duration(us) * time.Microsecond)
	}
	t.m.mu.Lock()
	t.m.frame.LR = t.step()
	t.m.frame.SPSR = arm.UserPSR
	t.m.mu.Unlock()
	t.m.req <- request{t: t, poll: true}
	t.park()
}
