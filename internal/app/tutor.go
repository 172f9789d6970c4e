package app

import (
	"context"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nishchay-veer/chat-lingo/internal/httpapi"
	"github.com/nishchay-veer/chat-lingo/internal/store"
	"github.com/nishchay-veer/chat-lingo/internal/tutorclient"
	"github.com/nishchay-veer/chat-lingo/internal/voicechat"
)

// Pipeline holds the services the terminal client runs turns against.
type Pipeline struct {
	Lessons voicechat.LessonContextProvider
	STT     voicechat.SpeechToText
	Chat    voicechat.ChatCompletion
	TTS     voicechat.TextToSpeech
	Voice   voicechat.VoiceConfig
	Mode    string // "remote" or "direct"

	db *pgxpool.Pool
}

// staticLesson serves one configured lesson when no database is available.
type staticLesson voicechat.Lesson

func (l staticLesson) Resolve(_ context.Context, lessonID int64) (voicechat.Lesson, error) {
	if lessonID != l.ID {
		return voicechat.Lesson{}, voicechat.ErrLessonNotFound
	}
	return voicechat.Lesson(l), nil
}

// NewPipeline builds the turn services for the terminal client. With
// TUTOR_API_URL set every call goes through the server; otherwise the
// providers are called directly and lessons come from DATABASE_URL when set.
func NewPipeline(cfg TutorConfig, logger *log.Logger) (*Pipeline, error) {
	httpClient := newHTTPClient()

	if cfg.Remote() {
		token := cfg.APIToken
		if token == "" && cfg.JWTSecret != "" {
			t, _, err := httpapi.IssueToken(cfg.JWTSecret, "tutor-cli", time.Hour)
			if err != nil {
				return nil, err
			}
			token = t
		}
		c := tutorclient.New(tutorclient.Config{
			BaseURL:    cfg.APIURL,
			Token:      token,
			LessonID:   cfg.LessonID,
			HTTPClient: httpClient,
		})
		logger.Printf("tutor: remote mode via %s", cfg.APIURL)
		return &Pipeline{Lessons: c, STT: c, Chat: c, TTS: c, Voice: cfg.Voice(), Mode: "remote"}, nil
	}

	p, err := newProviders(cfg.Config, httpClient, logger)
	if err != nil {
		return nil, err
	}
	pipe := &Pipeline{STT: p.stt, Chat: p.chat, TTS: p.tts, Voice: cfg.Voice(), Mode: "direct"}

	if cfg.DatabaseURL != "" {
		db, err := connectDB(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		pipe.db = db
		pipe.Lessons = store.New(db)
	} else {
		pipe.Lessons = staticLesson{ID: cfg.LessonID, Title: cfg.LessonTitle}
	}
	return pipe, nil
}

func (p *Pipeline) Close() error {
	if p.db != nil {
		p.db.Close()
	}
	return nil
}
