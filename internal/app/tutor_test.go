package app

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/nishchay-veer/chat-lingo/internal/tutorclient"
	"github.com/nishchay-veer/chat-lingo/internal/voicechat"
)

func TestStaticLessonResolve(t *testing.T) {
	l := staticLesson{ID: 2, Title: "Ordering food"}

	got, err := l.Resolve(context.Background(), 2)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Title != "Ordering food" {
		t.Errorf("title = %q", got.Title)
	}

	if _, err := l.Resolve(context.Background(), 3); !errors.Is(err, voicechat.ErrLessonNotFound) {
		t.Errorf("err = %v, want ErrLessonNotFound", err)
	}
}

func TestNewPipelineModes(t *testing.T) {
	logger := log.New(io.Discard, "", 0)

	t.Run("remote", func(t *testing.T) {
		cfg := TutorConfig{APIURL: "http://localhost:8080", LessonID: 1}
		cfg.JWTSecret = "secret"
		p, err := NewPipeline(cfg, logger)
		if err != nil {
			t.Fatalf("NewPipeline: %v", err)
		}
		defer p.Close()
		if p.Mode != "remote" {
			t.Errorf("Mode = %q, want remote", p.Mode)
		}
		if _, ok := p.STT.(*tutorclient.Client); !ok {
			t.Errorf("STT = %T, want *tutorclient.Client", p.STT)
		}
	})

	t.Run("direct without keys", func(t *testing.T) {
		cfg := TutorConfig{LessonID: 1}
		if _, err := NewPipeline(cfg, logger); err == nil {
			t.Error("direct mode without provider keys should fail")
		}
	})

	t.Run("direct with static lesson", func(t *testing.T) {
		cfg := TutorConfig{LessonID: 5, LessonTitle: "Travel"}
		cfg.OpenAIAPIKey = "sk-test"
		cfg.ElevenLabsAPIKey = "xi-test"
		cfg.STTProvider = "elevenlabs"
		p, err := NewPipeline(cfg, logger)
		if err != nil {
			t.Fatalf("NewPipeline: %v", err)
		}
		defer p.Close()
		lesson, err := p.Lessons.Resolve(context.Background(), 5)
		if err != nil || lesson.Title != "Travel" {
			t.Errorf("Resolve = %+v, %v", lesson, err)
		}
	})
}
