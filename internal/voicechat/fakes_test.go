package voicechat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

type fakeStream struct {
	sampleRate int
	value      int16
	failAfter  int32 // fail the read after this many frames; 0 never fails
	reads      atomic.Int32
	released   atomic.Int32
}

func (s *fakeStream) ReadFrame(frame []int16) error {
	n := s.reads.Add(1)
	if s.failAfter > 0 && n > s.failAfter {
		return errors.New("device unplugged")
	}
	for i := range frame {
		frame[i] = s.value
	}
	time.Sleep(time.Millisecond)
	return nil
}

func (s *fakeStream) SampleRate() int { return s.sampleRate }

func (s *fakeStream) Release() error {
	s.released.Add(1)
	return nil
}

type fakeDevice struct {
	stream   *fakeStream
	err      error
	acquires atomic.Int32
}

func (d *fakeDevice) Acquire(ctx context.Context) (MediaStream, error) {
	d.acquires.Add(1)
	if d.err != nil {
		return nil, d.err
	}
	return d.stream, nil
}

type fakeRecorder struct {
	mu        sync.Mutex
	samples   int
	finalized int
}

func (r *fakeRecorder) Write(frame []int16) error {
	r.mu.Lock()
	r.samples += len(frame)
	r.mu.Unlock()
	return nil
}

func (r *fakeRecorder) Finalize() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finalized++
	return []byte("RIFF-audio"), nil
}

type fakeSurface struct {
	mu      sync.Mutex
	clears  int
	strokes [][]Point
	width   float64
	height  float64
}

func (s *fakeSurface) Size() (float64, float64) { return s.width, s.height }

func (s *fakeSurface) Clear() {
	s.mu.Lock()
	s.clears++
	s.mu.Unlock()
}

func (s *fakeSurface) StrokePolyline(points []Point) {
	cp := make([]Point, len(points))
	copy(cp, points)
	s.mu.Lock()
	s.strokes = append(s.strokes, cp)
	s.mu.Unlock()
}

func (s *fakeSurface) strokeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.strokes)
}

// manualClock fires only when tick is called.
type manualClock struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func newManualClock() *manualClock {
	return &manualClock{ch: make(chan time.Time)}
}

func (c *manualClock) Frames() <-chan time.Time { return c.ch }
func (c *manualClock) Stop()                    { c.stopped.Store(true) }

// tick delivers one frame, or gives up when nobody is listening.
func (c *manualClock) tick() bool {
	select {
	case c.ch <- time.Now():
		return true
	case <-time.After(50 * time.Millisecond):
		return false
	}
}

type fakeSTT struct {
	text  string
	err   error
	calls atomic.Int32
	// block, when set, is waited on before returning
	block chan struct{}
}

func (f *fakeSTT) Transcribe(ctx context.Context, audio []byte, languageHint string) (string, error) {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
	return f.text, f.err
}

type fakeChat struct {
	reply      string
	err        error
	calls      atomic.Int32
	lastPrompt string
	lastUser   string
}

func (f *fakeChat) Complete(ctx context.Context, systemPrompt, userText string) (string, error) {
	f.calls.Add(1)
	f.lastPrompt = systemPrompt
	f.lastUser = userText
	return f.reply, f.err
}

type fakeTTS struct {
	audio     []byte
	err       error
	calls     atomic.Int32
	lastVoice VoiceConfig
}

func (f *fakeTTS) Synthesize(ctx context.Context, text string, voice VoiceConfig) ([]byte, error) {
	f.calls.Add(1)
	f.lastVoice = voice
	return f.audio, f.err
}

type fakeLessons struct {
	title string
}

func (f fakeLessons) Resolve(ctx context.Context, lessonID int64) (Lesson, error) {
	if f.title == "" {
		return Lesson{}, ErrLessonNotFound
	}
	return Lesson{ID: lessonID, Title: f.title}, nil
}

type fakePlayer struct {
	err    error
	played atomic.Int32
	// hold keeps Play running until its context is cancelled
	hold      bool
	cancelled atomic.Bool
}

func (p *fakePlayer) Play(ctx context.Context, audio []byte) error {
	p.played.Add(1)
	if p.hold {
		<-ctx.Done()
		p.cancelled.Store(true)
		return ctx.Err()
	}
	return p.err
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []Notice
}

func (n *recordingNotifier) Notify(notice Notice) {
	n.mu.Lock()
	n.notices = append(n.notices, notice)
	n.mu.Unlock()
}

func (n *recordingNotifier) all() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notice, len(n.notices))
	copy(out, n.notices)
	return out
}

// snapshotEmitter records every transcript state the store passes through.
type snapshotEmitter struct {
	*TranscriptStore
	mu     sync.Mutex
	events []Message
}

func newSnapshotEmitter() *snapshotEmitter {
	return &snapshotEmitter{TranscriptStore: NewTranscriptStore()}
}

func (e *snapshotEmitter) Append(m Message) {
	e.mu.Lock()
	e.events = append(e.events, m)
	e.mu.Unlock()
	e.TranscriptStore.Append(m)
}

func (e *snapshotEmitter) emitted() []Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Message, len(e.events))
	copy(out, e.events)
	return out
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}
