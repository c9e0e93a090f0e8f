// Package console connects a host terminal to the simulated UART. The
// terminal is put in raw mode so that every key press reaches the kernel
// as a receive interrupt; Ctrl-] detaches.
package console

import (
	"context"
	"errors"
	"io"
	"os"

	tty "github.com/mattn/go-tty"

	"github.com/practos/practos/internal/cli"
)

// Escape is the key that ends a console session.
const Escape = 0x1d

// ErrDetached is returned by Run when the escape key is pressed.
var ErrDetached = errors.New("console: detached")

// Sink receives console input.
type Sink interface {
	Feed(p []byte)
}

// Console is an open host terminal.
type Console struct {
	log     *cli.Logger
	tty     *tty.TTY
	restore func() error
	in      io.Reader
	out     io.Writer
}

// Open opens device, or the controlling terminal when device is empty, in
// raw mode. Without a terminal it falls back to stdin and stdout in line
// mode.
func Open(device string, log *cli.Logger) (*Console, error) {
	if log == nil {
		log = cli.Discard()
	}
	var (
		t   *tty.TTY
		err error
	)
	if device == "" {
		t, err = tty.Open()
	} else {
		t, err = tty.OpenDevice(device)
	}
	if err != nil {
		if device != "" {
			return nil, err
		}
		log.Debug("no terminal (%v), using stdio", err)
		return &Console{log: log, in: os.Stdin, out: os.Stdout}, nil
	}

	restore, err := t.Raw()
	if err != nil {
		t.Close()
		return nil, err
	}
	return &Console{
		log:     log,
		tty:     t,
		restore: restore,
		in:      t.Input(),
		out:     &crlfWriter{w: t.Output()},
	}, nil
}

// Output is where the UART transmits to.
func (c *Console) Output() io.Writer { return c.out }

// Run forwards input to sink until ctx is done, the input ends or the
// escape key is pressed.
func (c *Console) Run(ctx context.Context, sink Sink) error {
	if c.tty != nil {
		c.log.Info("console attached, Ctrl-] to detach")
	}
	return Pump(ctx, c.in, sink)
}

// Close restores the terminal.
func (c *Console) Close() error {
	if c.tty == nil {
		return nil
	}
	var err error
	if c.restore != nil {
		err = c.restore()
	}
	return errors.Join(err, c.tty.Close())
}

// Pump copies r to sink a read at a time. Input up to the escape key is
// delivered before Pump returns ErrDetached; the end of r is not an error.
func Pump(ctx context.Context, r io.Reader, sink Sink) error {
	buf := make([]byte, 64)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			for i, b := range chunk {
				if b == Escape {
					if i > 0 {
						sink.Feed(chunk[:i])
					}
					return ErrDetached
				}
			}
			sink.Feed(chunk)
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// crlfWriter turns "\n" into "\r\n" for a terminal in raw mode.
type crlfWriter struct {
	w io.Writer
}

func (c *crlfWriter) Write(p []byte) (int, error) {
	start := 0
	for i, b := range p {
		if b != '\n' {
			continue
		}
		if _, err := c.w.Write(p[start:i]); err != nil {
			return start, err
		}
		if _, err := c.w.Write([]byte("\r\n")); err != nil {
			return i, err
		}
		start = i + 1
	}
	if _, err := c.w.Write(p[start:]); err != nil {
		return start, err
	}
	return len(p), nil
}
