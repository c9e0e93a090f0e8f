package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/practos/practos/internal/testrunner/assert"
)

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, LevelWarn)
	l.now = func() time.Time { return time.Date(2026, 1, 1, 12, 30, 5, 0, time.UTC) }

	l.Debug("hidden %d", 1)
	l.Info("hidden")
	l.Warn("No free L2 table")
	l.Error("boom")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
	assert.Equal(t, lines[0], "[WARN] 12:30:05: No free L2 table")
	assert.Equal(t, lines[1], "[ERROR] 12:30:05: boom")
}

func TestLoggerWithSharesLevel(t *testing.T) {
	var buf bytes.Buffer
	root := NewLogger(&buf, LevelInfo)
	sched := root.With("sched")

	sched.Debug("switch")
	assert.Equal(t, buf.Len(), 0)

	root.SetLevel(LevelDebug)
	sched.Debug("switch %d -> %d", 0, 1)
	assert.Contains(t, buf.String(), "[DEBUG]")
	assert.Contains(t, buf.String(), "[sched] switch 0 -> 1")
	assert.Equal(t, sched.Level(), LevelDebug)
}

func TestParseLevel(t *testing.T) {
	for _, name := range []string{"error", "WARN", "Info", "debug"} {
		lvl, err := ParseLevel(name)
		assert.NoError(t, err)
		assert.Equal(t, strings.ToUpper(name), lvl.String())
	}
	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestCheckABI(t *testing.T) {
	assert.NoError(t, CheckABI(""))
	assert.NoError(t, CheckABI(">=1.0.0, <2.0.0"))
	assert.NoError(t, CheckABI("^1"))
	assert.Error(t, CheckABI(">=2.0.0"))
	assert.Error(t, CheckABI("not a constraint"))
}

func TestVersionInfo(t *testing.T) {
	info := GetVersionInfo()
	assert.Equal(t, info.Version, Version)
	assert.Equal(t, info.Syscalls, 5)
}
