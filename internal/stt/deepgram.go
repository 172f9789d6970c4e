package stt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

const deepgramWSURL = "wss://api.deepgram.com/v1/listen"

// deepgramChunkSize is how much audio goes into one websocket frame.
const deepgramChunkSize = 8 * 1024

// DeepgramClient transcribes a finished recording over Deepgram's streaming
// API: the audio is sent in chunks, the stream is closed, and the final
// segments are joined.
type DeepgramClient struct {
	apiKey string
	model  string
	url    string
	dialer *websocket.Dialer
	logger *log.Logger
}

// DeepgramConfig holds configuration for the Deepgram client.
type DeepgramConfig struct {
	APIKey string
	Model  string // e.g., "nova-2"
	URL    string // overrides the websocket endpoint, for tests
	Logger *log.Logger
}

// deepgramResponse represents a Deepgram WebSocket response.
type deepgramResponse struct {
	Type    string `json:"type"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
	IsFinal bool `json:"is_final"`
}

// NewDeepgramClient creates a new Deepgram client.
func NewDeepgramClient(cfg DeepgramConfig) *DeepgramClient {
	model := cfg.Model
	if model == "" {
		model = "nova-2"
	}
	wsURL := cfg.URL
	if wsURL == "" {
		wsURL = deepgramWSURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &DeepgramClient{
		apiKey: cfg.APIKey,
		model:  model,
		url:    wsURL,
		dialer: websocket.DefaultDialer,
		logger: logger,
	}
}

// Transcribe streams audio to Deepgram and returns the joined final transcript.
// Containerized audio (WAV) is detected by the service, so no encoding is set.
func (c *DeepgramClient) Transcribe(ctx context.Context, audio []byte, languageHint string) (string, error) {
	q := url.Values{}
	q.Set("model", c.model)
	q.Set("punctuate", "true")
	if lang := twoLetterLanguage(languageHint); lang != "" {
		q.Set("language", lang)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+c.apiKey)

	conn, _, err := c.dialer.DialContext(ctx, c.url+"?"+q.Encode(), headers)
	if err != nil {
		return "", fmt.Errorf("failed to connect to Deepgram: %w", err)
	}

	s := &deepgramSession{conn: conn, logger: c.logger, done: make(chan struct{})}
	s.wg.Add(1)
	go s.readLoop()
	defer s.close()

	stop := context.AfterFunc(ctx, func() { s.close() })
	defer stop()

	for off := 0; off < len(audio); off += deepgramChunkSize {
		end := min(off+deepgramChunkSize, len(audio))
		if err := s.write(websocket.BinaryMessage, audio[off:end]); err != nil {
			return "", fmt.Errorf("failed to send audio: %w", err)
		}
	}
	if err := s.write(websocket.TextMessage, []byte(`{"type": "CloseStream"}`)); err != nil {
		return "", fmt.Errorf("failed to close stream: %w", err)
	}

	s.wg.Wait()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.err != nil {
		return "", s.err
	}
	return strings.Join(s.segments, " "), nil
}

// deepgramSession is one websocket connection. readLoop owns segments and err
// until wg is done.
type deepgramSession struct {
	conn      *websocket.Conn
	logger    *log.Logger
	mu        sync.Mutex // serializes writes
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	segments []string
	err      error
}

func (s *deepgramSession) write(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.done:
		return errors.New("connection is closed")
	default:
	}
	return s.conn.WriteMessage(messageType, data)
}

func (s *deepgramSession) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// readLoop collects final segments until the server closes the stream.
func (s *deepgramSession) readLoop() {
	defer s.wg.Done()

	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code == websocket.CloseNormalClosure {
				return
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return
			}
			s.err = fmt.Errorf("read error: %w", err)
			return
		}

		var resp deepgramResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			s.logger.Printf("deepgram: failed to parse response: %v", err)
			continue
		}

		// Metadata arrives last, after the final results.
		if resp.Type == "Metadata" {
			return
		}
		if resp.Type != "Results" || !resp.IsFinal || len(resp.Channel.Alternatives) == 0 {
			continue
		}
		if text := strings.TrimSpace(resp.Channel.Alternatives[0].Transcript); text != "" {
			s.segments = append(s.segments, text)
		}
	}
}
