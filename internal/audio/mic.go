// Package audio connects the voice chat to local hardware: a PortAudio
// microphone, a WAV recorder and an MP3 speaker.
package audio

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/nishchay-veer/chat-lingo/internal/voicechat"
)

// DefaultSampleRate is the capture rate the transcription services handle best.
const DefaultSampleRate = 16000

// Microphone opens the default input device. portaudio.Initialize must have
// been called by the program before Acquire.
type Microphone struct {
	SampleRate int
	// FramesPerBuffer is the PortAudio buffer size; 0 uses voicechat.DefaultFrameSize.
	FramesPerBuffer int
	Logger          *log.Logger
}

// Acquire opens and starts a mono 16-bit input stream.
func (m *Microphone) Acquire(ctx context.Context) (voicechat.MediaStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rate := m.SampleRate
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	frames := m.FramesPerBuffer
	if frames <= 0 {
		frames = voicechat.DefaultFrameSize
	}

	dev, err := portaudio.DefaultInputDevice()
	if err != nil {
		return nil, classifyOpenError(fmt.Errorf("default input device: %w", err))
	}

	buf := make([]int16, frames)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(rate), len(buf), buf)
	if err != nil {
		return nil, classifyOpenError(fmt.Errorf("open stream: %w", err))
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, classifyOpenError(fmt.Errorf("start stream: %w", err))
	}

	if m.Logger != nil {
		m.Logger.Printf("audio: microphone %q open at %d Hz", dev.Name, rate)
	}
	return &micStream{stream: stream, buf: buf, rate: rate, pos: len(buf)}, nil
}

// classifyOpenError reports a device the OS refuses to hand out as a
// permission problem; anything else stays a plain error.
func classifyOpenError(err error) error {
	if errors.Is(err, portaudio.DeviceUnavailable) || errors.Is(err, portaudio.InvalidDevice) {
		return fmt.Errorf("%w: %w", voicechat.ErrPermissionDenied, err)
	}
	return err
}

// micStream adapts a blocking PortAudio stream to arbitrary frame sizes.
type micStream struct {
	stream *portaudio.Stream
	buf    []int16
	pos    int // next unread sample in buf
	rate   int

	closeOnce sync.Once
	closeErr  error
}

func (s *micStream) ReadFrame(frame []int16) error {
	n := 0
	for n < len(frame) {
		if s.pos == len(s.buf) {
			if err := s.stream.Read(); err != nil && !errors.Is(err, portaudio.InputOverflowed) {
				return fmt.Errorf("read microphone: %w", err)
			}
			s.pos = 0
		}
		c := copy(frame[n:], s.buf[s.pos:])
		s.pos += c
		n += c
	}
	return nil
}

func (s *micStream) SampleRate() int { return s.rate }

func (s *micStream) Release() error {
	s.closeOnce.Do(func() {
		stopErr := s.stream.Stop()
		closeErr := s.stream.Close()
		s.closeErr = errors.Join(stopErr, closeErr)
	})
	return s.closeErr
}
