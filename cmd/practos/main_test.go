package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/practos/practos/internal/cli"
	"github.com/practos/practos/internal/config"
	"github.com/practos/practos/internal/machine"
	"github.com/practos/practos/internal/testrunner/assert"
)

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func TestDemoOnManualClock(t *testing.T) {
	cfg := config.Default()
	cfg.Clock = config.ClockManual
	cfg.QuantumMicros = 1000
	assert.NoError(t, cfg.Validate())

	var out syncBuffer
	m, initProg := newMachine(cfg, &out, cli.Discard())
	t.Cleanup(m.Close)
	assert.Equal(t, initProg, machine.DemoMain)
	assert.NoError(t, m.Boot(initProg, nil))

	m.Feed([]byte("x"))
	m.CloseInput()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	assert.ErrorIs(t, m.Run(ctx), machine.ErrStalled)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, lines, 17)
	assert.True(t, strings.HasPrefix(lines[0], "x:101 ("), "first line: "+lines[0])

	s := summarize(m)
	assert.Equal(t, s.Kernel.Created, uint64(4))
	assert.Equal(t, s.Kernel.Exited, uint64(3))
	assert.Equal(t, s.Live, 1, "the reader is left")
	assert.False(t, s.Halted)
}

func TestPrintSummary(t *testing.T) {
	s := Summary{Live: 2}
	s.Kernel.Created = 5
	s.Machine.Traps = 9

	var human bytes.Buffer
	assert.NoError(t, printSummary(&human, s, false))
	assert.Contains(t, human.String(), "threads created 5, exited 0, live 2")

	var js bytes.Buffer
	assert.NoError(t, printSummary(&js, s, true))
	var back Summary
	assert.NoError(t, json.Unmarshal(js.Bytes(), &back))
	assert.Equal(t, back, s)
}
