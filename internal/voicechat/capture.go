package voicechat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
)

const (
	// DefaultTapSize matches an analyser with fftSize 2048.
	DefaultTapSize   = 1024
	DefaultFrameSize = 800
)

// MediaStream is an acquired microphone stream.
type MediaStream interface {
	// ReadFrame fills frame with the next block of 16-bit PCM samples,
	// blocking until they are available.
	ReadFrame(frame []int16) error
	SampleRate() int
	// Release gives the microphone back. It must be safe to call once the
	// reader has returned.
	Release() error
}

// AudioInputDevice hands out exclusive microphone streams. A refused request
// returns an error wrapping ErrPermissionDenied.
type AudioInputDevice interface {
	Acquire(ctx context.Context) (MediaStream, error)
}

// Recorder encodes captured frames into a single blob.
type Recorder interface {
	Write(frame []int16) error
	Finalize() ([]byte, error)
}

// RecorderFactory creates the encoder for one capture session.
type RecorderFactory func(sampleRate int) (Recorder, error)

// CaptureOptions configures StartCapture.
type CaptureOptions struct {
	NewRecorder RecorderFactory
	FrameSize   int
	TapSize     int

	// Surface, when set, gets a live waveform for the length of the session.
	Surface DrawSurface
	// NewClock overrides the renderer's frame clock.
	NewClock func() FrameClock
	FrameRate int

	// OnFailure is called once if the device fails mid-capture. All resources
	// are released before it runs.
	OnFailure func(error)
	Logger    *log.Logger
}

type captureState int

const (
	captureLive captureState = iota
	captureStopped
	captureAborted
)

// CaptureSession owns the microphone stream, the recorder and the analysis
// tap of one recording.
type CaptureSession struct {
	stream    MediaStream
	recorder  Recorder
	tap       *SampleTap
	renderer  *WaveformRenderer
	onFailure func(error)
	logger    *log.Logger

	mu    sync.Mutex
	state captureState

	stop      chan struct{}
	graphDone chan struct{}
}

// StartCapture acquires the microphone and starts recording.
func StartCapture(ctx context.Context, device AudioInputDevice, opts CaptureOptions) (*CaptureSession, error) {
	if opts.NewRecorder == nil {
		return nil, errors.New("voicechat: capture needs a recorder factory")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	frameSize := opts.FrameSize
	if frameSize <= 0 {
		frameSize = DefaultFrameSize
	}
	tapSize := opts.TapSize
	if tapSize <= 0 {
		tapSize = DefaultTapSize
	}

	stream, err := device.Acquire(ctx)
	if err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: acquire: %w", ErrCaptureFailed, err)
	}

	recorder, err := opts.NewRecorder(stream.SampleRate())
	if err != nil {
		if relErr := stream.Release(); relErr != nil {
			logger.Printf("voicechat: release after recorder failure: %v", relErr)
		}
		return nil, fmt.Errorf("%w: recorder: %w", ErrCaptureFailed, err)
	}

	s := &CaptureSession{
		stream:    stream,
		recorder:  recorder,
		tap:       NewSampleTap(tapSize),
		onFailure: opts.OnFailure,
		logger:    logger,
		stop:      make(chan struct{}),
		graphDone: make(chan struct{}),
	}

	if opts.Surface != nil {
		var clock FrameClock
		if opts.NewClock != nil {
			clock = opts.NewClock()
		} else {
			clock = NewTickerClock(opts.FrameRate)
		}
		s.renderer = NewWaveformRenderer(s.tap, opts.Surface, clock)
		s.renderer.Start()
	}

	go s.runGraph(frameSize)
	return s, nil
}

// Tap returns the analysis tap of the session.
func (s *CaptureSession) Tap() *SampleTap { return s.tap }

// Live reports whether the session still holds the microphone.
func (s *CaptureSession) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == captureLive
}

// Stop ends the recording and returns the encoded audio. Every hardware
// handle is released when it returns. Calling Stop on a session that is
// already stopped or aborted returns (nil, nil).
func (s *CaptureSession) Stop() ([]byte, error) {
	s.mu.Lock()
	if s.state != captureLive {
		s.mu.Unlock()
		return nil, nil
	}
	s.state = captureStopped
	s.mu.Unlock()

	if s.renderer != nil {
		s.renderer.Stop()
	}
	close(s.stop)
	<-s.graphDone
	s.tap.Release()

	audio, encErr := s.recorder.Finalize()
	if err := s.stream.Release(); err != nil {
		s.logger.Printf("voicechat: release microphone: %v", err)
	}
	if encErr != nil {
		return nil, fmt.Errorf("%w: finalize: %w", ErrCaptureFailed, encErr)
	}
	return audio, nil
}

// runGraph moves frames from the stream to the tap and the recorder. It is
// the only writer of the tap.
func (s *CaptureSession) runGraph(frameSize int) {
	defer close(s.graphDone)

	frame := make([]int16, frameSize)
	for {
		select {
		case <-s.stop:
			return
		default:
		}

		if err := s.stream.ReadFrame(frame); err != nil {
			s.abort(err)
			return
		}
		s.tap.Write(frame)
		if err := s.recorder.Write(frame); err != nil {
			s.abort(err)
			return
		}
	}
}

// abort runs on the graph goroutine after a device or encoder error.
func (s *CaptureSession) abort(cause error) {
	s.mu.Lock()
	if s.state != captureLive {
		// Stop is already tearing the session down
		s.mu.Unlock()
		return
	}
	s.state = captureAborted
	s.mu.Unlock()

	if s.renderer != nil {
		s.renderer.Stop()
	}
	s.tap.Release()
	if err := s.stream.Release(); err != nil {
		s.logger.Printf("voicechat: release microphone after failure: %v", err)
	}

	s.logger.Printf("voicechat: capture aborted: %v", cause)
	if s.onFailure != nil {
		s.onFailure(fmt.Errorf("%w: %w", ErrCaptureFailed, cause))
	}
}

// SampleTap holds the most recent window of samples, normalized to [-1, 1].
// It has one writer (the audio graph) and one reader (the renderer).
type SampleTap struct {
	mu       sync.Mutex
	window   []float32
	released bool
}

// NewSampleTap creates a silent tap of size samples.
func NewSampleTap(size int) *SampleTap {
	return &SampleTap{window: make([]float32, size)}
}

// Size returns the window length.
func (t *SampleTap) Size() int { return len(t.window) }

// Write shifts frame into the window.
func (t *SampleTap) Write(frame []int16) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.released {
		return
	}

	n := len(t.window)
	if len(frame) >= n {
		frame = frame[len(frame)-n:]
	} else {
		copy(t.window, t.window[len(frame):])
	}
	offset := n - len(frame)
	for i, v := range frame {
		t.window[offset+i] = float32(v) / 32768
	}
}

// Read copies the window into dst. It returns false once the tap has been
// released.
func (t *SampleTap) Read(dst []float32) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.released {
		return 0, false
	}
	return copy(dst, t.window), true
}

// Release drops the window. Reads after Release return false.
func (t *SampleTap) Release() {
	t.mu.Lock()
	t.released = true
	t.window = nil
	t.mu.Unlock()
}
