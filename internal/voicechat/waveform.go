package voicechat

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultFrameRate is the redraw rate when none is configured.
const DefaultFrameRate = 60

// Point is a surface coordinate; the origin is the top-left corner.
type Point struct {
	X, Y float64
}

// DrawSurface is where the waveform is painted.
type DrawSurface interface {
	Size() (width, height float64)
	Clear()
	StrokePolyline(points []Point)
}

// FrameClock paces the renderer.
type FrameClock interface {
	Frames() <-chan time.Time
	Stop()
}

type tickerClock struct {
	ticker *time.Ticker
}

// NewTickerClock returns a clock firing fps times per second.
func NewTickerClock(fps int) FrameClock {
	if fps <= 0 {
		fps = DefaultFrameRate
	}
	return &tickerClock{ticker: time.NewTicker(time.Second / time.Duration(fps))}
}

func (c *tickerClock) Frames() <-chan time.Time { return c.ticker.C }
func (c *tickerClock) Stop()                    { c.ticker.Stop() }

// WaveformRenderer paints the tap's window once per frame until stopped.
type WaveformRenderer struct {
	tap     *SampleTap
	surface DrawSurface
	clock   FrameClock

	samples []float32
	points  []Point
	frames  atomic.Int64

	startOnce sync.Once
	stopOnce  sync.Once
	quit      chan struct{}
	done      chan struct{}
}

// NewWaveformRenderer creates a renderer; nothing is drawn before Start.
func NewWaveformRenderer(tap *SampleTap, surface DrawSurface, clock FrameClock) *WaveformRenderer {
	return &WaveformRenderer{
		tap:     tap,
		surface: surface,
		clock:   clock,
		samples: make([]float32, tap.Size()),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start draws the first frame immediately and then one per clock tick.
func (r *WaveformRenderer) Start() {
	r.startOnce.Do(func() {
		go r.loop()
	})
}

// Stop ends the loop. When it returns no frame is being drawn and none will
// be drawn again.
func (r *WaveformRenderer) Stop() {
	r.stopOnce.Do(func() {
		close(r.quit)
		started := true
		r.startOnce.Do(func() { started = false })
		if started {
			<-r.done
		}
		r.clock.Stop()
	})
}

// Frames returns the number of frames drawn so far.
func (r *WaveformRenderer) Frames() int64 { return r.frames.Load() }

func (r *WaveformRenderer) loop() {
	defer close(r.done)

	if !r.drawFrame() {
		return
	}
	for {
		select {
		case <-r.quit:
			return
		case <-r.clock.Frames():
			select {
			case <-r.quit:
				return
			default:
			}
			if !r.drawFrame() {
				return
			}
		}
	}
}

// drawFrame reports false when the tap is gone.
func (r *WaveformRenderer) drawFrame() bool {
	n, ok := r.tap.Read(r.samples)
	if !ok {
		return false
	}
	width, height := r.surface.Size()
	r.points = waveformPoints(r.samples[:n], width, height, r.points[:0])

	r.surface.Clear()
	r.surface.StrokePolyline(r.points)
	r.frames.Add(1)
	return true
}

// waveformPoints spreads samples across width. A sample of 0 sits on the
// centre line; the trace closes on the right edge at mid height.
func waveformPoints(samples []float32, width, height float64, dst []Point) []Point {
	if len(samples) == 0 {
		return append(dst, Point{0, height / 2}, Point{width, height / 2})
	}
	slice := width / float64(len(samples))
	x := 0.0
	for _, s := range samples {
		v := 1 + float64(s)
		dst = append(dst, Point{X: x, Y: v * height / 2})
		x += slice
	}
	return append(dst, Point{X: width, Y: height / 2})
}
