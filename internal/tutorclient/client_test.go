package tutorclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nishchay-veer/chat-lingo/internal/httpapi"
	"github.com/nishchay-veer/chat-lingo/internal/store"
	"github.com/nishchay-veer/chat-lingo/internal/voicechat"
)

func TestClientSendsBearerAndTurnID(t *testing.T) {
	type seen struct {
		auth, turnID string
		body         voiceChatRequest
	}
	got := make(chan seen, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body voiceChatRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
			return
		}
		got <- seen{auth: r.Header.Get("Authorization"), turnID: r.Header.Get(turnIDHeader), body: body}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"Bonjour!"}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL + "/", Token: "tok", LessonID: 9})
	ctx := voicechat.ContextWithTurnID(context.Background(), "turn-1")

	reply, err := c.Complete(ctx, "ignored prompt", "Salut")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if reply != "Bonjour!" {
		t.Errorf("reply = %q, want Bonjour!", reply)
	}

	s := <-got
	if s.auth != "Bearer tok" {
		t.Errorf("Authorization = %q", s.auth)
	}
	if s.turnID != "turn-1" {
		t.Errorf("X-Turn-ID = %q, want turn-1", s.turnID)
	}
	if s.body.LessonID != 9 || s.body.ProcessType != voicechat.StageComplete || s.body.Text != "Salut" {
		t.Errorf("body = %+v", s.body)
	}
}

func TestClientAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Internal server error"}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, LessonID: 1})
	_, err := c.Transcribe(context.Background(), []byte("RIFF"), "eng")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusInternalServerError || apiErr.Message != "Internal server error" {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestDecodeAudioURL(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("ID3"))

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"mpeg data url", "data:audio/mpeg;base64," + payload, "ID3", false},
		{"not a data url", "https://example.com/a.mp3", "", true},
		{"not base64", "data:audio/mpeg," + payload, "", true},
		{"bad payload", "data:audio/mpeg;base64,%%%", "", true},
		{"empty payload", "data:audio/mpeg;base64,", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeAudioURL(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if string(got) != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

type memLessons map[int64]store.Lesson

func (m memLessons) GetLesson(_ context.Context, id int64) (*store.Lesson, error) {
	l, ok := m[id]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (m memLessons) ListLessons(context.Context, int) ([]store.Lesson, error) {
	return nil, nil
}

type stubSTT struct{}

func (stubSTT) Transcribe(_ context.Context, audio []byte, _ string) (string, error) {
	if string(audio) != "RIFF-audio" {
		return "", errors.New("unexpected audio")
	}
	return "How are you?", nil
}

type stubChat struct{ prompt chan string }

func (s stubChat) Complete(_ context.Context, systemPrompt, _ string) (string, error) {
	s.prompt <- systemPrompt
	return "I'm doing well, thanks!", nil
}

type stubTTS struct{}

func (stubTTS) Synthesize(context.Context, string, voicechat.VoiceConfig) ([]byte, error) {
	return []byte("ID3-mp3"), nil
}

func TestClientAgainstRouter(t *testing.T) {
	const secret = "test-secret"
	chat := stubChat{prompt: make(chan string, 1)}
	handler := httpapi.NewRouter(httpapi.RouterConfig{JWTSecret: secret},
		log.New(io.Discard, "", 0),
		httpapi.Services{
			Lessons: memLessons{3: {ID: 3, Title: "At the cafe"}},
			STT:     stubSTT{},
			Chat:    chat,
			TTS:     stubTTS{},
		}, nil, nil)
	srv := httptest.NewServer(handler)
	defer srv.Close()

	token, _, err := httpapi.IssueToken(secret, "learner", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	c := New(Config{BaseURL: srv.URL, Token: token, LessonID: 3})
	ctx := context.Background()

	lesson, err := c.Resolve(ctx, 3)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if lesson.Title != "At the cafe" {
		t.Errorf("title = %q", lesson.Title)
	}

	if _, err := c.Resolve(ctx, 4); !errors.Is(err, voicechat.ErrLessonNotFound) {
		t.Errorf("Resolve(4) err = %v, want ErrLessonNotFound", err)
	}

	text, err := c.Transcribe(ctx, []byte("RIFF-audio"), "eng")
	if err != nil || text != "How are you?" {
		t.Fatalf("Transcribe = %q, %v", text, err)
	}

	reply, err := c.Complete(ctx, "", text)
	if err != nil || reply != "I'm doing well, thanks!" {
		t.Fatalf("Complete = %q, %v", reply, err)
	}
	if p := <-chat.prompt; p != voicechat.SystemPrompt("At the cafe") {
		t.Errorf("server prompt = %q", p)
	}

	audio, err := c.Synthesize(ctx, reply, voicechat.VoiceConfig{})
	if err != nil || string(audio) != "ID3-mp3" {
		t.Fatalf("Synthesize = %q, %v", audio, err)
	}

	unauthenticated := New(Config{BaseURL: srv.URL, LessonID: 3})
	var apiErr *APIError
	if _, err := unauthenticated.Resolve(ctx, 3); !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Errorf("unauthenticated Resolve err = %v, want 401", err)
	}
}
