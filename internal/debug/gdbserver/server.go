// Package gdbserver is a read-only GDB remote serial protocol stub for the
// kernel. Every live thread control block is reported as a GDB thread;
// registers come from the saved context, or from the CPU for the running
// thread, and memory is read through the selected thread's address space.
package gdbserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/practos/practos/internal/arm"
	"github.com/practos/practos/internal/cli"
	"github.com/practos/practos/internal/kernel"
	"github.com/practos/practos/internal/mmu"
)

// Target gives the server consistent access to the kernel and the CPU
// frame.
type Target interface {
	InspectCPU(fn func(k *kernel.Kernel, f arm.Frame))
}

// Register numbers in the order of the target description.
const (
	regSP   = 13
	regLR   = 14
	regPC   = 15
	regCPSR = 16
	numRegs = 17
)

// maxRead bounds a single memory read.
const maxRead = 0x1000

const targetXML = `<?xml version="1.0"?>` +
	`<!DOCTYPE target SYSTEM "gdb-target.dtd">` +
	`<target version="1.0">` +
	`<architecture>arm</architecture>` +
	`<feature name="org.gnu.gdb.arm.core">` +
	`<reg name="r0" bitsize="32" type="uint32"/>` +
	`<reg name="r1" bitsize="32" type="uint32"/>` +
	`<reg name="r2" bitsize="32" type="uint32"/>` +
	`<reg name="r3" bitsize="32" type="uint32"/>` +
	`<reg name="r4" bitsize="32" type="uint32"/>` +
	`<reg name="r5" bitsize="32" type="uint32"/>` +
	`<reg name="r6" bitsize="32" type="uint32"/>` +
	`<reg name="r7" bitsize="32" type="uint32"/>` +
	`<reg name="r8" bitsize="32" type="uint32"/>` +
	`<reg name="r9" bitsize="32" type="uint32"/>` +
	`<reg name="r10" bitsize="32" type="uint32"/>` +
	`<reg name="r11" bitsize="32" type="uint32"/>` +
	`<reg name="r12" bitsize="32" type="uint32"/>` +
	`<reg name="sp" bitsize="32" type="data_ptr"/>` +
	`<reg name="lr" bitsize="32"/>` +
	`<reg name="pc" bitsize="32" type="code_ptr"/>` +
	`<reg name="cpsr" bitsize="32" regnum="16"/>` +
	`</feature></target>`

// Server implements a minimal GDB RSP server over TCP/pipe. Sessions never
// stop or modify the target.
type Server struct {
	target Target
	log    *cli.Logger

	mu sync.Mutex
	// When true, do not send acknowledgements ('+') for received packets
	noAck bool
	// selected is the thread for g, p and m; NoThread follows the current one.
	selected int
}

// NewServer creates a server inspecting target. log may be nil.
func NewServer(target Target, log *cli.Logger) *Server {
	if log == nil {
		log = cli.Discard()
	}
	return &Server{target: target, log: log, selected: kernel.NoThread}
}

// Serve accepts sessions on ln until ctx is done. Sessions are served one
// at a time.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	s.log.Info("gdb stub listening on %s", ln.Addr())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		s.log.Info("gdb attached from %s", conn.RemoteAddr())
		if err := s.HandleConn(conn); err != nil && !errors.Is(err, io.EOF) {
			s.log.Warn("gdb session: %v", err)
		}
	}
}

// HandleConn serves a single RSP session over conn.
func (s *Server) HandleConn(conn net.Conn) error {
	defer conn.Close()
	s.mu.Lock()
	s.noAck = false
	s.selected = kernel.NoThread
	s.mu.Unlock()

	r := bufio.NewReader(conn)
	for {
		pkt, err := readPacket(r)
		if err != nil {
			return err
		}
		s.mu.Lock()
		noAck := s.noAck
		s.mu.Unlock()
		if !noAck {
			if _, err := conn.Write([]byte("+")); err != nil {
				return err
			}
		}
		resp := s.dispatch(pkt)
		if err := writePacket(conn, resp); err != nil {
			return err
		}
		if pkt == "D" || pkt == "k" {
			return nil
		}
	}
}

func (s *Server) dispatch(cmd string) string {
	switch {
	case cmd == "?":
		return s.stopReply()
	case strings.HasPrefix(cmd, "qSupported"):
		return "PacketSize=4000;QStartNoAckMode+;qXfer:features:read+"
	case strings.HasPrefix(cmd, "QStartNoAckMode"):
		s.mu.Lock()
		s.noAck = true
		s.mu.Unlock()
		return "OK"
	case strings.HasPrefix(cmd, "qAttached"):
		return "1"
	case strings.HasPrefix(cmd, "qOffsets"):
		return "Text=0;Data=0;Bss=0"
	case strings.HasPrefix(cmd, "qSymbol"):
		return "OK"
	case strings.HasPrefix(cmd, "qXfer:features:read:target.xml:"):
		return xferChunk(cmd, []byte(targetXML))
	case strings.HasPrefix(cmd, "qC"):
		return fmt.Sprintf("QC%x", s.currentID())
	case strings.HasPrefix(cmd, "qfThreadInfo"):
		return s.threadList()
	case strings.HasPrefix(cmd, "qsThreadInfo"):
		return "l"
	case strings.HasPrefix(cmd, "qRcmd,"):
		return s.monitor(cmd[len("qRcmd,"):])
	case strings.HasPrefix(cmd, "Hg"):
		return s.selectThread(cmd[2:])
	case strings.HasPrefix(cmd, "H"):
		return "OK"
	case strings.HasPrefix(cmd, "T"):
		return s.threadAlive(cmd[1:])
	case cmd == "g":
		return s.readRegisters()
	case strings.HasPrefix(cmd, "p"):
		return s.readRegister(cmd[1:])
	case strings.HasPrefix(cmd, "m"):
		return s.readMemory(cmd[1:])
	case strings.HasPrefix(cmd, "G"), strings.HasPrefix(cmd, "P"),
		strings.HasPrefix(cmd, "M"), strings.HasPrefix(cmd, "X"):
		// The target is read-only.
		return "E01"
	case cmd == "D", cmd == "k":
		return "OK"
	default:
		// Execution control, breakpoints and everything else are unsupported.
		return ""
	}
}

// ============================================================================
// Threads
// ============================================================================

// GDB thread ids are TCB indices plus one; zero and -1 mean "any".
func threadID(i int) int { return i + 1 }

func liveThreads(k *kernel.Kernel) []int {
	var out []int
	for i := 0; i < kernel.MaxThreads; i++ {
		if k.State(i) != kernel.Terminated {
			out = append(out, i)
		}
	}
	return out
}

// running returns the thread on the CPU, or NoThread while idle.
func running(k *kernel.Kernel) int {
	if k.Idle() {
		return kernel.NoThread
	}
	return k.Current()
}

// resolve returns the thread the next register or memory access refers
// to: the selected one, else the running one, else the first live one.
func (s *Server) resolve(k *kernel.Kernel) int {
	s.mu.Lock()
	sel := s.selected
	s.mu.Unlock()
	if sel != kernel.NoThread && k.State(sel) != kernel.Terminated {
		return sel
	}
	if cur := running(k); cur != kernel.NoThread {
		return cur
	}
	if live := liveThreads(k); len(live) > 0 {
		return live[0]
	}
	return kernel.NoThread
}

func (s *Server) currentID() int {
	id := 0
	s.target.InspectCPU(func(k *kernel.Kernel, _ arm.Frame) {
		if i := s.resolve(k); i != kernel.NoThread {
			id = threadID(i)
		}
	})
	return id
}

func (s *Server) stopReply() string {
	if id := s.currentID(); id != 0 {
		return fmt.Sprintf("T05thread:%x;", id)
	}
	return "S05"
}

func (s *Server) threadList() string {
	var ids []string
	s.target.InspectCPU(func(k *kernel.Kernel, _ arm.Frame) {
		for _, i := range liveThreads(k) {
			ids = append(ids, strconv.FormatInt(int64(threadID(i)), 16))
		}
	})
	if len(ids) == 0 {
		return "l"
	}
	return "m" + strings.Join(ids, ",")
}

func parseThreadID(s string) (int, bool) {
	id, err := strconv.ParseInt(s, 16, 32)
	if err != nil {
		return 0, false
	}
	return int(id), true
}

func (s *Server) selectThread(arg string) string {
	id, ok := parseThreadID(arg)
	if !ok {
		return "E01"
	}
	if id <= 0 {
		s.mu.Lock()
		s.selected = kernel.NoThread
		s.mu.Unlock()
		return "OK"
	}
	i := id - 1
	if i >= kernel.MaxThreads {
		return "E01"
	}
	alive := false
	s.target.InspectCPU(func(k *kernel.Kernel, _ arm.Frame) {
		alive = k.State(i) != kernel.Terminated
	})
	if !alive {
		return "E01"
	}
	s.mu.Lock()
	s.selected = i
	s.mu.Unlock()
	return "OK"
}

func (s *Server) threadAlive(arg string) string {
	id, ok := parseThreadID(arg)
	if !ok || id <= 0 || id > kernel.MaxThreads {
		return "E01"
	}
	alive := false
	s.target.InspectCPU(func(k *kernel.Kernel, _ arm.Frame) {
		alive = k.State(id-1) != kernel.Terminated
	})
	if !alive {
		return "E01"
	}
	return "OK"
}

// ============================================================================
// Registers and memory
// ============================================================================

// registers returns r0-r12, sp, lr, pc and cpsr of thread i.
func registers(k *kernel.Kernel, f arm.Frame, i int) [numRegs]uint32 {
	var regs [numRegs]uint32
	if i == running(k) {
		copy(regs[:arm.NumRegisters], f.R[:])
		regs[regSP], regs[regLR], regs[regPC], regs[regCPSR] = f.USP, f.ULR, f.LR, f.SPSR
		return regs
	}
	c := k.Context(i)
	copy(regs[:arm.NumRegisters], c.R[:])
	regs[regSP], regs[regLR], regs[regPC], regs[regCPSR] = c.SP, c.LR, c.PC, c.CPSR
	return regs
}

func (s *Server) selectedRegisters() ([numRegs]uint32, bool) {
	var (
		regs [numRegs]uint32
		ok   bool
	)
	s.target.InspectCPU(func(k *kernel.Kernel, f arm.Frame) {
		if i := s.resolve(k); i != kernel.NoThread {
			regs, ok = registers(k, f, i), true
		}
	})
	return regs, ok
}

func (s *Server) readRegisters() string {
	regs, ok := s.selectedRegisters()
	if !ok {
		return "E01"
	}
	buf := make([]byte, 0, numRegs*4)
	for _, v := range regs {
		buf = binary.LittleEndian.AppendUint32(buf, v)
	}
	return hex.EncodeToString(buf)
}

func (s *Server) readRegister(arg string) string {
	n, err := strconv.ParseUint(arg, 16, 32)
	if err != nil || n >= numRegs {
		return "E01"
	}
	regs, ok := s.selectedRegisters()
	if !ok {
		return "E01"
	}
	return hex.EncodeToString(binary.LittleEndian.AppendUint32(nil, regs[n]))
}

// readMemory implements 'm addr,length'. Addresses in the user window go
// through the selected thread's table; the rest of the map is read with
// kernel permissions.
func (s *Server) readMemory(arg string) string {
	parts := strings.SplitN(arg, ",", 2)
	if len(parts) != 2 {
		return "E01"
	}
	addr, err1 := strconv.ParseUint(parts[0], 16, 32)
	n, err2 := strconv.ParseUint(parts[1], 16, 32)
	if err1 != nil || err2 != nil || n > maxRead {
		return "E01"
	}

	var (
		buf []byte
		ok  bool
	)
	s.target.InspectCPU(func(k *kernel.Kernel, _ arm.Frame) {
		table := mmu.NoTable
		if i := s.resolve(k); i != kernel.NoThread {
			table = k.Table(i)
		}
		buf, ok = readVirtual(k.MemoryManager(), table, uint32(addr), uint32(n))
	})
	if !ok {
		return "E01"
	}
	return hex.EncodeToString(buf)
}

func readVirtual(mm *mmu.Manager, table int, addr, n uint32) ([]byte, bool) {
	l := mm.Layout()
	out := make([]byte, n)
	for off := uint32(0); off < n; {
		virt := addr + off
		var (
			phys  uint32
			fault *mmu.Fault
		)
		if virt >= l.UserRAM && virt <= l.UserRAMEnd() {
			if table == mmu.NoTable {
				return nil, false
			}
			phys, fault = mm.Translate(table, virt, mmu.Read)
		} else {
			phys, fault = mm.Walk(virt, mmu.Read, false)
		}
		if fault != nil {
			return nil, false
		}
		chunk := min(mmu.PageSize-virt%mmu.PageSize, n-off)
		mm.Memory().Read(phys, out[off:off+chunk])
		off += chunk
	}
	return out, true
}

// ============================================================================
// Monitor commands
// ============================================================================

// monitor runs a "monitor" command and returns its hex-encoded output.
func (s *Server) monitor(hexCmd string) string {
	raw, err := hex.DecodeString(hexCmd)
	if err != nil {
		return "E01"
	}
	fields := strings.Fields(string(raw))
	if len(fields) == 0 {
		return "E01"
	}

	var out bytes.Buffer
	s.target.InspectCPU(func(k *kernel.Kernel, _ arm.Frame) {
		switch fields[0] {
		case "threads":
			writeThreads(&out, k)
		case "runqueue":
			fmt.Fprintf(&out, "run queue: %v\n", k.RunQueue())
			fmt.Fprintf(&out, "sleeping:  %v\n", k.Sleeping())
			fmt.Fprintf(&out, "waiter:    %d\n", k.Waiter())
		case "l2":
			n := -1
			if len(fields) == 2 {
				n, err = strconv.Atoi(fields[1])
			}
			if err != nil || n < 0 || n >= mmu.MaxTables {
				fmt.Fprintln(&out, "usage: l2 <table>")
				return
			}
			k.MemoryManager().Dump(&out, n)
		case "stats":
			fmt.Fprintf(&out, "%+v\n", k.Stats())
		default:
			fmt.Fprintf(&out, "unknown command %q; try threads, runqueue, l2 <n>, stats\n", fields[0])
		}
	})
	return hex.EncodeToString(out.Bytes())
}

func writeThreads(w io.Writer, k *kernel.Kernel) {
	cur := running(k)
	fmt.Fprintln(w, "  id  tcb  state       table  pc          sp")
	for _, i := range liveThreads(k) {
		mark := " "
		if i == cur {
			mark = "*"
		}
		c := k.Context(i)
		fmt.Fprintf(w, "%s %3d  %3d  %-10s  %5d  0x%08x  0x%08x\n",
			mark, threadID(i), i, k.State(i), k.Table(i), c.PC, c.SP)
	}
}

// ============================================================================
// Packet framing
// ============================================================================

// xferChunk serves data via qXfer semantics: cmd ends in OFFSET,LENGTH.
func xferChunk(cmd string, data []byte) string {
	lastColon := strings.LastIndex(cmd, ":")
	if lastColon < 0 || lastColon+1 >= len(cmd) {
		return "E01"
	}
	parts := strings.SplitN(cmd[lastColon+1:], ",", 2)
	if len(parts) != 2 {
		return "E01"
	}
	off, err1 := strconv.ParseUint(parts[0], 16, 64)
	ln, err2 := strconv.ParseUint(parts[1], 16, 64)
	if err1 != nil || err2 != nil {
		return "E01"
	}
	if off >= uint64(len(data)) {
		return "l"
	}
	end := min(off+ln, uint64(len(data)))
	marker := "m"
	if end == uint64(len(data)) {
		marker = "l"
	}
	return marker + string(data[off:end])
}

// readPacket reads one "$payload#xx" packet, skipping acknowledgements
// and anything else before the '$'. The checksum is not verified.
func readPacket(r *bufio.Reader) (string, error) {
	if _, err := r.ReadString('$'); err != nil {
		return "", err
	}
	data, err := r.ReadString('#')
	if err != nil {
		return "", err
	}
	var csum [2]byte
	if _, err := io.ReadFull(r, csum[:]); err != nil {
		return "", err
	}
	return strings.TrimSuffix(data, "#"), nil
}

func writePacket(w io.Writer, payload string) error {
	sum := byte(0)
	for i := 0; i < len(payload); i++ {
		sum += payload[i]
	}
	_, err := fmt.Fprintf(w, "$%s#%02x", payload, sum)
	return err
}
