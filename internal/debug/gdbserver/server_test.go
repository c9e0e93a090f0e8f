package gdbserver

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/practos/practos/internal/arm"
	"github.com/practos/practos/internal/kernel"
	"github.com/practos/practos/internal/machine"
	"github.com/practos/practos/internal/testrunner/assert"
)

// bootedMachine returns a machine that has booted init with "hi" and
// holds a second process, without running either.
func bootedMachine(t *testing.T) (*machine.Machine, uint32, uint32) {
	t.Helper()
	m := machine.New(machine.Options{
		Kernel:  kernel.Config{Quantum: 1000},
		Globals: []byte{0x2a},
	})
	t.Cleanup(m.Close)
	first := m.Load("first", func(t *machine.Thread) {})
	second := m.Load("second", func(t *machine.Thread) {})
	assert.NoError(t, m.Boot("first", []byte("hi")))
	m.Inspect(func(k *kernel.Kernel) {
		assert.NoError(t, k.CreateThread(nil, second, nil, true))
	})
	return m, first, second
}

func le32(v uint32) string {
	return hex.EncodeToString(binary.LittleEndian.AppendUint32(nil, v))
}

func encodeRSP(payload string) []byte {
	sum := byte(0)
	for i := 0; i < len(payload); i++ {
		sum += payload[i]
	}
	return []byte(fmt.Sprintf("$%s#%02x", payload, sum))
}

// readReply reads optional ack and one RSP packet payload
func readReply(r *bufio.Reader) (ack bool, payload string, err error) {
	b, err := r.ReadByte()
	if err != nil {
		return false, "", err
	}
	if b != '+' {
		if err := r.UnreadByte(); err != nil {
			return false, "", err
		}
	} else {
		ack = true
	}
	if _, err := r.ReadString('$'); err != nil {
		return ack, "", err
	}
	data, err := r.ReadString('#')
	if err != nil {
		return ack, "", err
	}
	csum := make([]byte, 2)
	if _, err := r.Read(csum); err != nil {
		return ack, "", err
	}
	return ack, strings.TrimSuffix(data, "#"), nil
}

// session is a client connected to a server over an in-memory pipe.
type session struct {
	t *testing.T
	w *bufio.Writer
	r *bufio.Reader
}

func newSession(t *testing.T, target Target) *session {
	t.Helper()
	srv := NewServer(target, nil)
	c1, c2 := net.Pipe()
	t.Cleanup(func() {
		c1.Close()
		c2.Close()
	})
	go func() { _ = srv.HandleConn(c1) }()
	return &session{t: t, w: bufio.NewWriter(c2), r: bufio.NewReader(c2)}
}

func (s *session) send(cmd string) (bool, string) {
	s.t.Helper()
	if _, err := s.w.Write(encodeRSP(cmd)); err != nil {
		s.t.Fatal(err)
	}
	if err := s.w.Flush(); err != nil {
		s.t.Fatal(err)
	}
	ack, payload, err := readReply(s.r)
	if err != nil {
		s.t.Fatal(err)
	}
	return ack, payload
}

func (s *session) ask(cmd string) string {
	s.t.Helper()
	_, payload := s.send(cmd)
	return payload
}

func TestRSP_QSupported_NoAckMode(t *testing.T) {
	m, _, _ := bootedMachine(t)
	s := newSession(t, m)

	ack, payload := s.send("qSupported:multiprocess+")
	assert.True(t, ack, "expected ack for qSupported")
	assert.True(t, strings.HasPrefix(payload, "PacketSize="), fmt.Sprintf("unexpected payload %q", payload))
	assert.Contains(t, payload, "qXfer:features:read+")

	ack, payload = s.send("QStartNoAckMode")
	assert.True(t, ack, "expected ack for QStartNoAckMode")
	assert.Equal(t, payload, "OK")

	ack, payload = s.send("g")
	assert.False(t, ack, "did not expect ack after no-ack mode")
	assert.Len(t, payload, 17*8)
}

func TestRSP_TargetDescription(t *testing.T) {
	m, _, _ := bootedMachine(t)
	s := newSession(t, m)

	full := s.ask("qXfer:features:read:target.xml:0,ffff")
	assert.True(t, strings.HasPrefix(full, "l<?xml"), fmt.Sprintf("got %q", full))
	assert.Contains(t, full, "org.gnu.gdb.arm.core")
	assert.Contains(t, full, `name="cpsr"`)

	chunk := s.ask("qXfer:features:read:target.xml:0,10")
	assert.Equal(t, chunk, "m"+full[1:17])
	assert.Equal(t, s.ask(fmt.Sprintf("qXfer:features:read:target.xml:%x,10", len(full))), "l")
	assert.Equal(t, s.ask("qXfer:features:read:target.xml:zz"), "E01")
}

func TestRSP_Threads(t *testing.T) {
	m, _, _ := bootedMachine(t)
	s := newSession(t, m)

	assert.Equal(t, s.ask("?"), "T05thread:1;")
	assert.Equal(t, s.ask("qC"), "QC1")
	assert.Equal(t, s.ask("qfThreadInfo"), "m1,2")
	assert.Equal(t, s.ask("qsThreadInfo"), "l")
	assert.Equal(t, s.ask("T2"), "OK")
	assert.Equal(t, s.ask("T3"), "E01")
	assert.Equal(t, s.ask("T0"), "E01")

	assert.Equal(t, s.ask("Hg2"), "OK")
	assert.Equal(t, s.ask("qC"), "QC2")
	assert.Equal(t, s.ask("Hg9"), "E01")
	assert.Equal(t, s.ask("Hg0"), "OK")
	assert.Equal(t, s.ask("qC"), "QC1")
	assert.Equal(t, s.ask("Hc-1"), "OK")
}

func TestRSP_RegistersFromSavedContext(t *testing.T) {
	m, first, _ := bootedMachine(t)
	s := newSession(t, m)

	regs := s.ask("g")
	reg := func(n int) string { return regs[n*8 : n*8+8] }
	assert.Equal(t, reg(0), le32(0x006FFFFE), "r0 points at the arguments")
	assert.Equal(t, reg(regSP), le32(0x006FFFF8))
	assert.Equal(t, reg(regLR), le32(0x00500004), "lr is the exit stub")
	assert.Equal(t, reg(regPC), le32(first))
	assert.Equal(t, reg(regCPSR), le32(arm.UserPSR))

	assert.Equal(t, s.ask("pf"), le32(first))
	assert.Equal(t, s.ask("p11"), "E01")

	assert.Equal(t, s.ask("Hg2"), "OK")
	assert.Equal(t, s.ask("p0"), le32(0x00700000))
	assert.Equal(t, s.ask("pd"), le32(0x00700000))
}

func TestRSP_MemoryRead(t *testing.T) {
	m, _, _ := bootedMachine(t)
	s := newSession(t, m)

	assert.Equal(t, s.ask("m6ffffe,2"), hex.EncodeToString([]byte("hi")))
	assert.Equal(t, s.ask("m600000,4"), le32(0x2a), "globals are copied into the process")
	assert.Equal(t, s.ask("m500000,4"), le32(arm.BranchSelf), "idle loop")
	assert.Equal(t, s.ask("m0,4"), "E01", "section 0 is unmapped")
	assert.Equal(t, s.ask("m600000,2000"), "E01", "too large")
	assert.Equal(t, s.ask("m6ffffe"), "E01")

	// The same address in another process.
	assert.Equal(t, s.ask("Hg2"), "OK")
	assert.Equal(t, s.ask("m6ffffe,2"), "0000")
	assert.Equal(t, s.ask("m600000,1"), "2a")
}

func TestRSP_ReadOnly(t *testing.T) {
	m, first, _ := bootedMachine(t)
	s := newSession(t, m)

	assert.Equal(t, s.ask("M6ffffe,1:00"), "E01")
	assert.Equal(t, s.ask("G"+strings.Repeat("00", 17*4)), "E01")
	assert.Equal(t, s.ask("P0=00000000"), "E01")
	assert.Equal(t, s.ask("c"), "")
	assert.Equal(t, s.ask("s"), "")
	assert.Equal(t, s.ask("Z0,500000,4"), "")

	assert.Equal(t, s.ask("m6ffffe,2"), hex.EncodeToString([]byte("hi")))
	assert.Equal(t, s.ask("pf"), le32(first))
}

func TestRSP_MonitorCommands(t *testing.T) {
	m, _, _ := bootedMachine(t)
	s := newSession(t, m)

	rcmd := func(cmd string) string {
		t.Helper()
		out, err := hex.DecodeString(s.ask("qRcmd," + hex.EncodeToString([]byte(cmd))))
		assert.NoError(t, err)
		return string(out)
	}

	threads := rcmd("threads")
	assert.Contains(t, threads, "ready")
	assert.Equal(t, strings.Count(threads, "\n"), 3)

	assert.Contains(t, rcmd("runqueue"), "run queue: [0 1]")
	assert.Contains(t, rcmd("l2 1"), "L2 1, refs 1")
	assert.Contains(t, rcmd("l2 99"), "usage")
	assert.Contains(t, rcmd("stats"), "Created:2")
	assert.Contains(t, rcmd("frobnicate"), "unknown command")
	assert.Equal(t, s.ask("qRcmd,zz"), "E01")
}

func TestRSP_DetachEndsSession(t *testing.T) {
	m, _, _ := bootedMachine(t)
	srv := NewServer(m, nil)
	c1, c2 := net.Pipe()
	defer c2.Close()

	done := make(chan error, 1)
	go func() { done <- srv.HandleConn(c1) }()

	w := bufio.NewWriter(c2)
	r := bufio.NewReader(c2)
	_, _ = w.Write(encodeRSP("D"))
	assert.NoError(t, w.Flush())
	_, payload, err := readReply(r)
	assert.NoError(t, err)
	assert.Equal(t, payload, "OK")

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("session did not end after detach")
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	m, _, _ := bootedMachine(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("no loopback listener: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewServer(m, nil).Serve(ctx, ln) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	assert.NoError(t, err)
	_, err = conn.Write(encodeRSP("qC"))
	assert.NoError(t, err)
	_, payload, err := readReply(bufio.NewReader(conn))
	assert.NoError(t, err)
	assert.Equal(t, payload, "QC1")
	conn.Close()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}
}
