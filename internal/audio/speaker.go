package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
)

// Speaker plays MP3 replies through the default output device.
type Speaker struct {
	Logger *log.Logger

	mu   sync.Mutex
	rate beep.SampleRate // rate the speaker was last initialised with
}

// Play decodes audio and blocks until it has played or ctx is done.
func (s *Speaker) Play(ctx context.Context, audio []byte) error {
	streamer, format, err := mp3.Decode(io.NopCloser(bytes.NewReader(audio)))
	if err != nil {
		return fmt.Errorf("decode mp3: %w", err)
	}
	defer streamer.Close()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rate != format.SampleRate {
		if err := speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
			return fmt.Errorf("init speaker: %w", err)
		}
		s.rate = format.SampleRate
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(streamer, beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		if s.Logger != nil {
			s.Logger.Printf("audio: playback interrupted after %s", format.SampleRate.D(streamer.Position()).Round(time.Millisecond))
		}
		return ctx.Err()
	}
}
