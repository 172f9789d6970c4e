// Package tutorclient runs the provider half of a turn against a chat-lingo
// server's voice-chat route instead of the providers themselves.
package tutorclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nishchay-veer/chat-lingo/internal/voicechat"
)

const turnIDHeader = "X-Turn-ID"

// Client implements voicechat.LessonContextProvider, SpeechToText,
// ChatCompletion and TextToSpeech for one lesson.
type Client struct {
	baseURL    string
	token      string
	lessonID   int64
	httpClient *http.Client
}

type Config struct {
	BaseURL    string // e.g. "http://localhost:8080"
	Token      string // bearer token, when the server requires one
	LessonID   int64
	HTTPClient *http.Client
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tutor api: %d %s", e.Status, e.Message)
}

func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		lessonID:   cfg.LessonID,
		httpClient: httpClient,
	}
}

type voiceChatRequest struct {
	Audio       string          `json:"audio,omitempty"`
	Text        string          `json:"text,omitempty"`
	LessonID    int64           `json:"lessonId"`
	ProcessType voicechat.Stage `json:"processType"`
}

type voiceChatResponse struct {
	UserText string `json:"userText"`
	Text     string `json:"text"`
	AudioURL string `json:"audioUrl"`
	Error    string `json:"error"`
}

// Resolve fetches the lesson. A 404 maps to voicechat.ErrLessonNotFound.
func (c *Client) Resolve(ctx context.Context, lessonID int64) (voicechat.Lesson, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api/lessons/%d", c.baseURL, lessonID), nil)
	if err != nil {
		return voicechat.Lesson{}, fmt.Errorf("failed to create request: %w", err)
	}
	var lesson voicechat.Lesson
	if err := c.do(req, &lesson); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return voicechat.Lesson{}, fmt.Errorf("lesson %d: %w", lessonID, voicechat.ErrLessonNotFound)
		}
		return voicechat.Lesson{}, err
	}
	return lesson, nil
}

// Transcribe sends the recording with processType "transcribe". The server
// applies its own language setting.
func (c *Client) Transcribe(ctx context.Context, audio []byte, _ string) (string, error) {
	resp, err := c.voiceChat(ctx, voiceChatRequest{
		Audio:       base64.StdEncoding.EncodeToString(audio),
		ProcessType: voicechat.StageTranscribe,
	})
	if err != nil {
		return "", err
	}
	return resp.UserText, nil
}

// Complete asks for a reply with processType "complete". The server builds
// the tutor prompt from the lesson, so systemPrompt is not sent.
func (c *Client) Complete(ctx context.Context, _ string, userText string) (string, error) {
	resp, err := c.voiceChat(ctx, voiceChatRequest{
		Text:        userText,
		ProcessType: voicechat.StageComplete,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// Synthesize asks for speech with processType "synthesize" and decodes the
// returned data URL. The server's voice is used.
func (c *Client) Synthesize(ctx context.Context, text string, _ voicechat.VoiceConfig) ([]byte, error) {
	resp, err := c.voiceChat(ctx, voiceChatRequest{
		Text:        text,
		ProcessType: voicechat.StageSynthesize,
	})
	if err != nil {
		return nil, err
	}
	return DecodeAudioURL(resp.AudioURL)
}

// DecodeAudioURL decodes a "data:<mime>;base64,<payload>" URL.
func DecodeAudioURL(u string) ([]byte, error) {
	rest, ok := strings.CutPrefix(u, "data:")
	if !ok {
		return nil, fmt.Errorf("not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("unsupported data URL encoding")
	}
	audio, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("empty audio")
	}
	return audio, nil
}

func (c *Client) voiceChat(ctx context.Context, body voiceChatRequest) (*voiceChatResponse, error) {
	body.LessonID = c.lessonID
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/voice-chat", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if id := voicechat.TurnIDFromContext(ctx); id != "" {
		req.Header.Set(turnIDHeader, id)
	}

	var resp voiceChatResponse
	if err := c.do(req, &resp); err != nil {
		return nil, fmt.Errorf("%s: %w", body.ProcessType, err)
	}
	return &resp, nil
}

func (c *Client) do(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var body struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &body) == nil && body.Error != "" {
			msg = body.Error
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
