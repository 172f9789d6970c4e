package termui

import (
	"bufio"
	"io"
	"strings"
	"sync"

	"github.com/nishchay-veer/chat-lingo/internal/voicechat"
)

const (
	clearScreen = "\033[H\033[2J"
	helpLine    = "space: record/stop   esc: close   q: quit"

	// transcriptRows is how many messages stay on screen.
	transcriptRows = 12
)

// Status lines shown for each dialog phase.
var phaseStatus = map[voicechat.Phase]string{
	voicechat.PhaseClosed:     "Press space to talk to your tutor",
	voicechat.PhaseReady:      "Start Speaking",
	voicechat.PhaseRecording:  "Listening...",
	voicechat.PhaseProcessing: "Processing your speech...",
}

// Screen owns the terminal. Every update redraws the whole frame.
type Screen struct {
	out   io.Writer
	title string

	mu       sync.Mutex
	canvas   *Canvas
	phase    voicechat.Phase
	messages []voicechat.Message
	notice   string
}

// NewScreen creates a screen with a waveform canvas of cols x rows cells.
func NewScreen(out io.Writer, title string, cols, rows int) *Screen {
	s := &Screen{out: out, title: title}
	s.canvas = NewCanvas(cols, rows, s.Render)
	return s
}

// Canvas is the waveform surface to hand to the capture session.
func (s *Screen) Canvas() *Canvas { return s.canvas }

// SetPhase updates the status line. Leaving the recording phase blanks the
// waveform.
func (s *Screen) SetPhase(p voicechat.Phase) {
	s.mu.Lock()
	s.phase = p
	if p != voicechat.PhaseRecording {
		s.canvas.Clear()
	}
	if p == voicechat.PhaseRecording {
		s.notice = ""
	}
	s.mu.Unlock()
	s.Render()
}

// SetTranscript replaces the transcript shown; it matches
// TranscriptStore.OnChange.
func (s *Screen) SetTranscript(msgs []voicechat.Message) {
	s.mu.Lock()
	s.messages = msgs
	s.mu.Unlock()
	s.Render()
}

// Notify shows a notice until the next recording starts.
func (s *Screen) Notify(n voicechat.Notice) {
	s.mu.Lock()
	s.notice = n.Message
	s.mu.Unlock()
	s.Render()
}

// Render draws the current frame.
func (s *Screen) Render() {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := bufio.NewWriter(s.out)
	w.WriteString(clearScreen)
	w.WriteString(s.title + "\r\n")
	w.WriteString(strings.Repeat("─", len([]rune(s.title))) + "\r\n\r\n")

	for _, line := range FormatTranscript(s.messages, transcriptRows) {
		w.WriteString(line + "\r\n")
	}
	w.WriteString("\r\n")

	if s.phase == voicechat.PhaseRecording {
		for _, line := range s.canvas.Lines() {
			w.WriteString(line + "\r\n")
		}
	}
	w.WriteString(phaseStatus[s.phase] + "\r\n")
	if s.notice != "" {
		w.WriteString("! " + s.notice + "\r\n")
	}
	w.WriteString("\r\n" + helpLine + "\r\n")
	w.Flush()
}
