package machine

import (
	"encoding/binary"
	"strconv"
)

// Demo program names.
const (
	DemoMain    = "main"
	DemoProcess = "demo_process"
	DemoThread  = "demo_thread"
)

// Offsets of the demo's user globals from the start of user RAM.
const (
	globalCounter = 0x0
	globalChar    = 0x4
)

// demoLimit is the counter value the demo threads stop at.
const demoLimit = 117

// DemoGlobals is the initial globals image for LoadDemo: a shared counter
// starting at 100.
func DemoGlobals() []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b[globalCounter:], 100)
	return b
}

// LoadDemo loads the demo programs and returns the name of the init
// program. Init reads the console and starts a process for every key.
// A process started with a letter spawns two threads; every process then
// counts the shared counter of its address space up to the limit, one
// line per step, alongside its threads.
func LoadDemo(m *Machine) string {
	ram := m.layout.UserRAM

	thread := m.Load(DemoThread, func(t *Thread) {
		id := t.Args()[0]
		demoCount(t, ram, id)
	})

	process := m.Load(DemoProcess, func(t *Thread) {
		c := t.Args()[0]
		t.Store8(ram+globalChar, c)
		if isLetter(c) {
			t.Spawn(thread, []byte{1}, false)
			t.Sleep(166)
			t.Spawn(thread, []byte{2}, false)
			t.Sleep(166)
		}
		demoCount(t, ram, 3)
	})

	m.Load(DemoMain, func(t *Thread) {
		for {
			c, ok := t.ReadChar()
			if !ok {
				t.Sleep(10)
				continue
			}
			t.Spawn(process, []byte{c}, true)
		}
	})
	return DemoMain
}

func demoCount(t *Thread, ram uint32, id byte) {
	local := 0
	for {
		global := t.Load32(ram + globalCounter)
		if global >= demoLimit {
			return
		}
		global++
		local++
		t.Store32(ram+globalCounter, global)

		line := []byte{t.Load8(ram + globalChar), ':'}
		line = strconv.AppendUint(line, uint64(global), 10)
		line = append(line, " ("...)
		line = strconv.AppendUint(line, uint64(id), 10)
		line = append(line, ':')
		line = strconv.AppendInt(line, int64(local), 10)
		line = append(line, ")\n"...)
		t.Print(string(line))
		t.Work(50)
		t.Sleep(500)
	}
}

func isLetter(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
