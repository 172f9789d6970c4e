// Package termui renders the voice chat in a terminal: the live waveform,
// the transcript and a status line, driven by single-key commands.
package termui

import (
	"math"
	"strings"
	"sync"

	"github.com/nishchay-veer/chat-lingo/internal/voicechat"
)

const inkRune = '•'

// Canvas is a character grid implementing voicechat.DrawSurface. One surface
// unit is one cell.
type Canvas struct {
	mu     sync.Mutex
	cols   int
	rows   int
	cells  [][]rune
	onDraw func()
}

// NewCanvas creates a blank canvas. onDraw, if set, runs after every stroke.
func NewCanvas(cols, rows int, onDraw func()) *Canvas {
	c := &Canvas{cols: cols, rows: rows, onDraw: onDraw}
	c.cells = make([][]rune, rows)
	for i := range c.cells {
		c.cells[i] = make([]rune, cols)
	}
	c.clearLocked()
	return c
}

func (c *Canvas) Size() (float64, float64) {
	return float64(c.cols), float64(c.rows)
}

func (c *Canvas) Clear() {
	c.mu.Lock()
	c.clearLocked()
	c.mu.Unlock()
}

func (c *Canvas) clearLocked() {
	for _, row := range c.cells {
		for i := range row {
			row[i] = ' '
		}
	}
}

// StrokePolyline draws straight segments between consecutive points.
func (c *Canvas) StrokePolyline(points []voicechat.Point) {
	c.mu.Lock()
	for i := 1; i < len(points); i++ {
		c.segmentLocked(points[i-1], points[i])
	}
	if len(points) == 1 {
		c.plotLocked(points[0].X, points[0].Y)
	}
	c.mu.Unlock()

	if c.onDraw != nil {
		c.onDraw()
	}
}

func (c *Canvas) segmentLocked(a, b voicechat.Point) {
	steps := int(math.Ceil(math.Max(math.Abs(b.X-a.X), math.Abs(b.Y-a.Y))))
	if steps == 0 {
		c.plotLocked(a.X, a.Y)
		return
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		c.plotLocked(a.X+(b.X-a.X)*t, a.Y+(b.Y-a.Y)*t)
	}
}

// plotLocked inks the cell containing (x, y); points on the right or bottom
// edge land in the last column or row.
func (c *Canvas) plotLocked(x, y float64) {
	col := clampCell(x, c.cols)
	row := clampCell(y, c.rows)
	if col < 0 || row < 0 {
		return
	}
	c.cells[row][col] = inkRune
}

func clampCell(v float64, n int) int {
	if n == 0 || math.IsNaN(v) {
		return -1
	}
	i := int(math.Floor(v))
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// Lines returns the grid as text rows.
func (c *Canvas) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, c.rows)
	for i, row := range c.cells {
		out[i] = strings.TrimRight(string(row), " ")
	}
	return out
}
