package audio

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"

	"github.com/nishchay-veer/chat-lingo/internal/voicechat"
)

// WAVRecorder buffers 16-bit mono PCM and encodes it as a WAV file on Finalize.
type WAVRecorder struct {
	mu        sync.Mutex
	rate      int
	samples   []int16
	finalized bool
}

// NewWAVRecorder is a voicechat.RecorderFactory.
func NewWAVRecorder(sampleRate int) (voicechat.Recorder, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("audio: invalid sample rate %d", sampleRate)
	}
	return &WAVRecorder{rate: sampleRate}, nil
}

var errRecorderFinalized = errors.New("audio: recorder already finalized")

func (r *WAVRecorder) Write(frame []int16) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return errRecorderFinalized
	}
	r.samples = append(r.samples, frame...)
	return nil
}

// Finalize returns the recording as a complete WAV file.
func (r *WAVRecorder) Finalize() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return nil, errRecorderFinalized
	}
	r.finalized = true

	format := beep.Format{SampleRate: beep.SampleRate(r.rate), NumChannels: 1, Precision: 2}
	var out seekBuffer
	if err := wav.Encode(&out, &pcmStreamer{samples: r.samples}, format); err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	r.samples = nil
	return out.buf, nil
}

// pcmStreamer plays back recorded samples as a beep.Streamer.
type pcmStreamer struct {
	samples []int16
	pos     int
}

func (s *pcmStreamer) Stream(out [][2]float64) (int, bool) {
	if s.pos >= len(s.samples) {
		return 0, false
	}
	n := 0
	for n < len(out) && s.pos < len(s.samples) {
		v := float64(s.samples[s.pos]) / 32768
		out[n][0], out[n][1] = v, v
		n++
		s.pos++
	}
	return n, true
}

func (s *pcmStreamer) Err() error { return nil }

// seekBuffer is an in-memory io.WriteSeeker; wav.Encode seeks back to patch
// the header sizes.
type seekBuffer struct {
	buf []byte
	off int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if end := b.off + len(p); end > len(b.buf) {
		b.buf = append(b.buf, make([]byte, end-len(b.buf))...)
	}
	n := copy(b.buf[b.off:], p)
	b.off += n
	return n, nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(b.off) + offset
	case io.SeekEnd:
		abs = int64(len(b.buf)) + offset
	default:
		return 0, fmt.Errorf("seek: invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, errors.New("seek: negative position")
	}
	b.off = int(abs)
	return abs, nil
}
