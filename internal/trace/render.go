package trace

import (
	"fmt"
	"image/color"
	"io"
	"sort"

	"github.com/fogleman/gg"

	"github.com/practos/practos/internal/kernel"
)

// Chart geometry in pixels.
const (
	chartWidth  = 1200
	labelWidth  = 90
	rightMargin = 20
	headerH     = 30
	rowH        = 22
	rowGap      = 4
	footerH     = 50
)

var (
	colorRunning = color.RGBA{0x3c, 0xb3, 0x4a, 0xff}
	colorReady   = color.RGBA{0xf2, 0xc1, 0x2e, 0xff}
	colorWaiting = color.RGBA{0x4a, 0x7f, 0xd9, 0xff}
	colorIdle    = color.RGBA{0xa0, 0xa0, 0xa0, 0xff}
	colorGrid    = color.RGBA{0xe0, 0xe0, 0xe0, 0xff}
)

func spanColor(s Span) color.Color {
	if s.Thread == IdleRow {
		return colorIdle
	}
	switch s.State {
	case kernel.Running:
		return colorRunning
	case kernel.Ready:
		return colorReady
	default:
		return colorWaiting
	}
}

// chart maps time and rows onto the image.
type chart struct {
	t0, t1 uint64
	rows   map[int]int
	order  []int
}

func newChart(spans []Span) chart {
	c := chart{rows: make(map[int]int)}
	if len(spans) == 0 {
		c.t1 = 1
		return c
	}
	c.t0 = spans[0].Start
	for _, s := range spans {
		c.t0 = min(c.t0, s.Start)
		c.t1 = max(c.t1, s.End)
		if _, ok := c.rows[s.Thread]; !ok {
			c.rows[s.Thread] = 0
			c.order = append(c.order, s.Thread)
		}
	}
	if c.t1 <= c.t0 {
		c.t1 = c.t0 + 1
	}
	// The idle row sorts first because IdleRow is negative.
	sort.Ints(c.order)
	for i, thread := range c.order {
		c.rows[thread] = i
	}
	return c
}

func (c chart) height() int {
	return headerH + len(c.order)*(rowH+rowGap) + footerH
}

func (c chart) x(t uint64) float64 {
	span := float64(chartWidth - labelWidth - rightMargin)
	return labelWidth + span*float64(t-c.t0)/float64(c.t1-c.t0)
}

func (c chart) y(thread int) float64 {
	return float64(headerH + c.rows[thread]*(rowH+rowGap))
}

// Render draws the timeline up to end as a PNG: one row per thread plus
// one for the idle loop, coloured by state.
func (r *Recorder) Render(w io.Writer, end uint64) error {
	return r.draw(end).EncodePNG(w)
}

// SavePNG renders the timeline to a file.
func (r *Recorder) SavePNG(path string, end uint64) error {
	return r.draw(end).SavePNG(path)
}

func (r *Recorder) draw(end uint64) *gg.Context {
	spans := r.Spans(end)
	c := newChart(spans)
	dc := gg.NewContext(chartWidth, c.height())
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	dc.SetRGB(0, 0, 0)
	dc.DrawString(fmt.Sprintf("scheduling timeline, %d spans, %.1f ms", len(spans), float64(c.t1-c.t0)/1000), 10, 20)

	// Time grid, ten divisions.
	bottom := float64(c.height() - footerH)
	dc.SetLineWidth(1)
	for i := 0; i <= 10; i++ {
		t := c.t0 + (c.t1-c.t0)*uint64(i)/10
		x := c.x(t)
		dc.SetColor(colorGrid)
		dc.DrawLine(x, headerH, x, bottom)
		dc.Stroke()
		dc.SetRGB(0.3, 0.3, 0.3)
		dc.DrawStringAnchored(fmt.Sprintf("%.0f", float64(t-c.t0)/1000), x, bottom+12, 0.5, 0.5)
	}

	for _, thread := range c.order {
		label := fmt.Sprintf("thread %d", thread)
		if thread == IdleRow {
			label = "idle"
		}
		dc.SetRGB(0, 0, 0)
		dc.DrawStringAnchored(label, labelWidth-8, c.y(thread)+rowH/2, 1, 0.5)
	}

	for _, s := range spans {
		x0, x1 := c.x(s.Start), c.x(s.End)
		dc.SetColor(spanColor(s))
		dc.DrawRectangle(x0, c.y(s.Thread), max(x1-x0, 1), rowH)
		dc.Fill()
	}

	legend := []struct {
		name string
		col  color.Color
	}{
		{"running", colorRunning},
		{"ready", colorReady},
		{"waiting", colorWaiting},
		{"idle", colorIdle},
	}
	ly := float64(c.height() - 20)
	for i, l := range legend {
		lx := float64(labelWidth + i*110)
		dc.SetColor(l.col)
		dc.DrawRectangle(lx, ly-6, 12, 12)
		dc.Fill()
		dc.SetRGB(0, 0, 0)
		dc.DrawStringAnchored(l.name, lx+18, ly, 0, 0.5)
	}
	return dc
}
