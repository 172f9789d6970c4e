package voicechat

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
)

// Phase is the state of the recording dialog.
type Phase int

const (
	PhaseClosed Phase = iota
	PhaseReady
	PhaseRecording
	PhaseProcessing
)

func (p Phase) String() string {
	switch p {
	case PhaseClosed:
		return "closed"
	case PhaseReady:
		return "ready"
	case PhaseRecording:
		return "recording"
	case PhaseProcessing:
		return "processing"
	}
	return "unknown"
}

var (
	// ErrNotRecording is returned by StopRecording without a live recording.
	ErrNotRecording = errors.New("not recording")
	// ErrDialogClosed is returned by StartRecording before Open.
	ErrDialogClosed = errors.New("recording dialog is closed")
)

// ConversationConfig wires a Conversation.
type ConversationConfig struct {
	LessonID     int64
	Device       AudioInputDevice
	Capture      CaptureOptions
	Orchestrator *Orchestrator
	Transcript   *TranscriptStore
	Notifier     Notifier
	// OnPhase is called after every phase change, outside the lock.
	OnPhase func(Phase)
	Logger  *log.Logger
}

// Conversation is the lesson page session: it owns the transcript and the
// recording dialog, and allows one recording or turn at a time.
type Conversation struct {
	lessonID   int64
	device     AudioInputDevice
	captureCfg CaptureOptions
	orch       *Orchestrator
	transcript *TranscriptStore
	notifier   Notifier
	onPhase    func(Phase)
	logger     *log.Logger

	mu         sync.Mutex
	phase      Phase
	capture    *CaptureSession
	captureGen uint64
	turnActive bool
	teardown   chan struct{}

	turns sync.WaitGroup
}

// NewConversation creates a conversation with a closed dialog.
func NewConversation(cfg ConversationConfig) (*Conversation, error) {
	if cfg.Device == nil || cfg.Orchestrator == nil {
		return nil, errors.New("voicechat: conversation needs a device and an orchestrator")
	}
	c := &Conversation{
		lessonID:   cfg.LessonID,
		device:     cfg.Device,
		captureCfg: cfg.Capture,
		orch:       cfg.Orchestrator,
		transcript: cfg.Transcript,
		notifier:   cfg.Notifier,
		onPhase:    cfg.OnPhase,
		logger:     cfg.Logger,
	}
	if c.logger == nil {
		c.logger = log.New(io.Discard, "", 0)
	}
	if c.transcript == nil {
		c.transcript = NewTranscriptStore()
	}
	if c.notifier == nil {
		c.notifier = logNotifier{logger: c.logger}
	}
	return c, nil
}

// Transcript returns the conversation transcript.
func (c *Conversation) Transcript() *TranscriptStore { return c.transcript }

// Phase returns the dialog phase.
func (c *Conversation) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Busy reports whether a recording or a turn is in flight.
func (c *Conversation) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase == PhaseRecording || c.turnActive
}

// Open shows the recording dialog.
func (c *Conversation) Open() {
	c.mu.Lock()
	changed := c.phase == PhaseClosed
	if changed {
		c.phase = c.idlePhaseLocked()
	}
	phase := c.phase
	c.mu.Unlock()
	if changed {
		c.phaseChanged(phase)
	}
}

// StartRecording acquires the microphone and starts a capture session.
// It returns ErrBusy while another recording or turn is in flight and
// ErrDialogClosed until Open is called.
func (c *Conversation) StartRecording(ctx context.Context) error {
	c.mu.Lock()
	if c.phase == PhaseRecording || c.turnActive {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.phase == PhaseClosed {
		c.mu.Unlock()
		return ErrDialogClosed
	}
	c.phase = PhaseRecording
	c.captureGen++
	gen := c.captureGen
	c.mu.Unlock()
	c.phaseChanged(PhaseRecording)

	opts := c.captureCfg
	opts.Logger = c.logger
	opts.OnFailure = func(err error) { c.captureFailed(gen, err) }

	session, err := StartCapture(ctx, c.device, opts)
	if err != nil {
		c.mu.Lock()
		if c.captureGen == gen && c.phase == PhaseRecording {
			c.phase = PhaseReady
		}
		phase := c.phase
		c.mu.Unlock()
		c.phaseChanged(phase)

		kind := ErrCaptureFailed
		if errors.Is(err, ErrPermissionDenied) {
			kind = ErrPermissionDenied
		}
		c.notifier.Notify(noticeFor(kind, err))
		return err
	}

	c.mu.Lock()
	if c.captureGen != gen || c.phase != PhaseRecording {
		// dismissed, or the device failed, while the microphone was acquired
		dismissed := c.phase == PhaseClosed
		c.mu.Unlock()
		_, _ = session.Stop()
		if dismissed {
			return ErrTornDown
		}
		return ErrCaptureFailed
	}
	c.capture = session
	c.mu.Unlock()
	return nil
}

// StopRecording ends the capture session and hands the recording to the
// orchestrator. The turn runs in the background; Wait blocks until it ends.
func (c *Conversation) StopRecording(ctx context.Context) error {
	c.mu.Lock()
	session := c.capture
	if c.phase != PhaseRecording || session == nil {
		c.mu.Unlock()
		return ErrNotRecording
	}
	c.capture = nil
	c.phase = PhaseProcessing
	c.turnActive = true
	teardown := make(chan struct{})
	c.teardown = teardown
	c.mu.Unlock()
	c.phaseChanged(PhaseProcessing)

	audio, err := session.Stop()
	if err != nil || len(audio) == 0 {
		c.finishTurn(teardown, false)
		if err != nil {
			c.notifier.Notify(noticeFor(ErrCaptureFailed, err))
			return err
		}
		return nil
	}

	c.turns.Add(1)
	go func() {
		defer c.turns.Done()
		err := c.orch.RunTurn(ctx, Turn{
			LessonID: c.lessonID,
			Audio:    audio,
			TornDown: teardown,
		}, c.transcript)
		c.finishTurn(teardown, err == nil)
	}()
	return nil
}

// Toggle starts a recording when idle and stops it when recording.
func (c *Conversation) Toggle(ctx context.Context) error {
	if c.Phase() == PhaseRecording {
		return c.StopRecording(ctx)
	}
	return c.StartRecording(ctx)
}

// Dismiss closes the dialog. A live recording is torn down and discarded;
// a turn in flight is marked torn down and finishes quietly.
func (c *Conversation) Dismiss() {
	c.mu.Lock()
	session := c.capture
	c.capture = nil
	if c.phase == PhaseRecording {
		c.captureGen++
	}
	if c.teardown != nil {
		close(c.teardown)
		c.teardown = nil
	}
	changed := c.phase != PhaseClosed
	c.phase = PhaseClosed
	c.mu.Unlock()

	if session != nil {
		if _, err := session.Stop(); err != nil {
			c.logger.Printf("voicechat: discard recording: %v", err)
		}
	}
	if changed {
		c.phaseChanged(PhaseClosed)
	}
}

// Wait blocks until no turn is in flight.
func (c *Conversation) Wait() {
	c.turns.Wait()
}

// Close dismisses the dialog and waits for a turn in flight.
func (c *Conversation) Close() {
	c.Dismiss()
	c.Wait()
}

func (c *Conversation) finishTurn(teardown chan struct{}, succeeded bool) {
	c.mu.Lock()
	c.turnActive = false
	if c.teardown == teardown {
		c.teardown = nil
	}
	changed := false
	if c.phase == PhaseProcessing {
		changed = true
		if succeeded {
			c.phase = PhaseClosed
		} else {
			c.phase = PhaseReady
		}
	}
	phase := c.phase
	c.mu.Unlock()
	if changed {
		c.phaseChanged(phase)
	}
}

func (c *Conversation) captureFailed(gen uint64, err error) {
	c.mu.Lock()
	changed := false
	if c.captureGen == gen && c.phase == PhaseRecording {
		c.capture = nil
		c.phase = PhaseReady
		changed = true
	}
	c.mu.Unlock()
	if changed {
		c.phaseChanged(PhaseReady)
	}
	c.notifier.Notify(noticeFor(ErrCaptureFailed, err))
}

func (c *Conversation) idlePhaseLocked() Phase {
	if c.turnActive {
		return PhaseProcessing
	}
	return PhaseReady
}

func (c *Conversation) phaseChanged(p Phase) {
	if c.onPhase != nil {
		c.onPhase(p)
	}
}
