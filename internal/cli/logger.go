package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Level is a log verbosity.
type Level int32

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

var levelNames = [...]string{"ERROR", "WARN", "INFO", "DEBUG"}

func (l Level) String() string {
	if l < LevelError || l > LevelDebug {
		return fmt.Sprintf("Level(%d)", int32(l))
	}
	return levelNames[l]
}

// ParseLevel accepts the names used in configuration files.
func ParseLevel(s string) (Level, error) {
	for i, n := range levelNames {
		if strings.EqualFold(s, n) {
			return Level(i), nil
		}
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Logger writes "[LEVEL] hh:mm:ss: msg" lines. Loggers derived with With
// share the output, lock and level of their parent, so SetLevel on any of
// them applies to all.
type Logger struct {
	out    io.Writer
	mu     *sync.Mutex
	level  *atomic.Int32
	prefix string
	now    func() time.Time
}

// NewLogger creates a new logger instance
func NewLogger(out io.Writer, level Level) *Logger {
	l := &Logger{
		out:   out,
		mu:    &sync.Mutex{},
		level: &atomic.Int32{},
		now:   time.Now,
	}
	l.level.Store(int32(level))
	return l
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return NewLogger(io.Discard, LevelError)
}

// With returns a logger that tags every line with component.
func (l *Logger) With(component string) *Logger {
	c := *l
	c.prefix = l.prefix + "[" + component + "] "
	return &c
}

// SetLevel changes the verbosity of this logger and every logger sharing it.
func (l *Logger) SetLevel(level Level) { l.level.Store(int32(level)) }

// Level returns the current verbosity.
func (l *Logger) Level() Level { return Level(l.level.Load()) }

// Enabled reports whether messages at level are written.
func (l *Logger) Enabled(level Level) bool { return level <= l.Level() }

func (l *Logger) log(level Level, format string, args ...interface{}) {
	if !l.Enabled(level) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "[%s] %s: %s%s\n", level, l.now().Format("15:04:05"), l.prefix, msg)
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) { l.log(LevelInfo, format, args...) }

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) { l.log(LevelDebug, format, args...) }

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) { l.log(LevelWarn, format, args...) }

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) { l.log(LevelError, format, args...) }
