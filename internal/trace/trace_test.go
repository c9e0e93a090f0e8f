package trace

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"
	"time"

	"github.com/practos/practos/internal/kernel"
	"github.com/practos/practos/internal/machine"
	"github.com/practos/practos/internal/testrunner/assert"
)

func ev(at uint64, kind kernel.EventKind, thread int, s kernel.State) kernel.Event {
	return kernel.Event{Time: at, Kind: kind, Thread: thread, State: s}
}

// twoThreads is thread 0 running, being preempted by thread 1, and both
// exiting, with idle phases around them.
func twoThreads() *Recorder {
	r := NewRecorder(0)
	for _, e := range []kernel.Event{
		ev(0, kernel.EventState, 0, kernel.Ready),
		ev(0, kernel.EventIdle, kernel.NoThread, 0),
		ev(100, kernel.EventState, 0, kernel.Running),
		ev(100, kernel.EventSwitch, 0, kernel.Running),
		ev(150, kernel.EventState, 1, kernel.Ready),
		ev(300, kernel.EventState, 0, kernel.Ready),
		ev(300, kernel.EventState, 1, kernel.Running),
		ev(300, kernel.EventSwitch, 1, kernel.Running),
		ev(400, kernel.EventExit, 1, kernel.Terminated),
		ev(400, kernel.EventState, 0, kernel.Running),
		ev(400, kernel.EventSwitch, 0, kernel.Running),
		ev(450, kernel.EventState, 0, kernel.Waiting),
		ev(450, kernel.EventIdle, kernel.NoThread, 0),
	} {
		r.Observe(e)
	}
	return r
}

func TestSpans(t *testing.T) {
	spans := twoThreads().Spans(500)
	want := []Span{
		{Thread: IdleRow, State: kernel.Running, Start: 0, End: 100},
		{Thread: 0, State: kernel.Ready, Start: 0, End: 100},
		{Thread: 0, State: kernel.Running, Start: 100, End: 300},
		{Thread: 1, State: kernel.Ready, Start: 150, End: 300},
		{Thread: 0, State: kernel.Ready, Start: 300, End: 400},
		{Thread: 1, State: kernel.Running, Start: 300, End: 400},
		{Thread: 0, State: kernel.Running, Start: 400, End: 450},
		{Thread: IdleRow, State: kernel.Running, Start: 450, End: 500},
		{Thread: 0, State: kernel.Waiting, Start: 450, End: 500},
	}
	assert.Len(t, spans, len(want))
	for i := range want {
		assert.Equal(t, spans[i], want[i], fmt.Sprintf("span %d", i))
	}
}

func TestHaltClosesSpans(t *testing.T) {
	r := NewRecorder(0)
	r.Observe(ev(10, kernel.EventState, 0, kernel.Running))
	r.Observe(ev(20, kernel.EventHalt, 0, 0))
	r.Observe(ev(30, kernel.EventState, 0, kernel.Ready))

	spans := r.Spans(1000)
	assert.Len(t, spans, 1)
	assert.Equal(t, spans[0], Span{Thread: 0, State: kernel.Running, Start: 10, End: 20})
}

func TestRecorderLimit(t *testing.T) {
	r := NewRecorder(2)
	for i := range 5 {
		r.Observe(ev(uint64(i), kernel.EventIdle, kernel.NoThread, 0))
	}
	assert.Len(t, r.Events(), 2)
	assert.Equal(t, r.Dropped(), uint64(3))
}

func TestRenderColoursRows(t *testing.T) {
	r := twoThreads()
	var buf bytes.Buffer
	assert.NoError(t, r.Render(&buf, 500))

	img, err := png.Decode(&buf)
	assert.NoError(t, err)
	c := newChart(r.Spans(500))
	assert.Equal(t, img.Bounds().Dx(), chartWidth)
	assert.Equal(t, img.Bounds().Dy(), c.height())
	assert.Len(t, c.order, 3)
	assert.Equal(t, c.order[0], IdleRow, "idle row first")

	at := func(thread int, t uint64) color.RGBA {
		x := int(c.x(t))
		y := int(c.y(thread)) + rowH/2
		r, g, b, a := img.At(x, y).RGBA()
		return color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), uint8(a >> 8)}
	}
	assert.Equal(t, at(0, 200), colorRunning)
	assert.Equal(t, at(1, 200), colorReady)
	assert.Equal(t, at(1, 350), colorRunning)
	assert.Equal(t, at(0, 475), colorWaiting)
	assert.Equal(t, at(IdleRow, 50), colorIdle)
}

func TestSavePNGEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.png")
	assert.NoError(t, NewRecorder(0).SavePNG(path, 0))
}

func TestRecordsMachineRun(t *testing.T) {
	rec := NewRecorder(0)
	m := machine.New(machine.Options{Kernel: kernel.Config{Quantum: 1000}})
	t.Cleanup(m.Close)
	m.Load("init", func(t *machine.Thread) { t.Sleep(5) })
	m.Inspect(func(k *kernel.Kernel) { k.SetObserver(rec) })
	assert.NoError(t, m.Boot("init", nil))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	assert.NoError(t, m.Run(ctx))

	var sleeping, exited bool
	for _, s := range rec.Spans(m.Clock().Now()) {
		if s.Thread == 0 && s.State == kernel.Waiting {
			sleeping = s.End-s.Start >= 5000
		}
	}
	for _, e := range rec.Events() {
		exited = exited || e.Kind == kernel.EventExit
	}
	assert.True(t, sleeping, "thread 0 sleeps for 5ms")
	assert.True(t, exited)
}
