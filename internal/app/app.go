package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nishchay-veer/chat-lingo/internal/eventlog"
	"github.com/nishchay-veer/chat-lingo/internal/httpapi"
	"github.com/nishchay-veer/chat-lingo/internal/llm"
	"github.com/nishchay-veer/chat-lingo/internal/notifications"
	"github.com/nishchay-veer/chat-lingo/internal/store"
	"github.com/nishchay-veer/chat-lingo/internal/stt"
	"github.com/nishchay-veer/chat-lingo/internal/tts"
	"github.com/nishchay-veer/chat-lingo/internal/voicechat"
)

type App struct {
	cfg        Config
	logger     *log.Logger
	db         *pgxpool.Pool
	store      *store.Store
	eventLog   *eventlog.Logger
	alerts     *notifications.Discord
	httpClient *http.Client // Shared HTTP client with connection pooling for providers
	providers  providers
}

// providers are the three remote services a turn calls.
type providers struct {
	stt  voicechat.SpeechToText
	chat voicechat.ChatCompletion
	tts  voicechat.TextToSpeech
}

func New(cfg Config, logger *log.Logger) (*App, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	db, err := connectDB(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	s := store.New(db)
	el := eventlog.New(db)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	httpClient := newHTTPClient()
	p, err := newProviders(cfg, httpClient, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &App{
		cfg:        cfg,
		logger:     logger,
		db:         db,
		store:      s,
		eventLog:   el,
		alerts:     notifications.NewDiscord(cfg.DiscordWebhookURL, logger),
		httpClient: httpClient,
		providers:  p,
	}, nil
}

func connectDB(url string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// newHTTPClient keeps TCP connections alive to reduce latency for repeated
// provider calls.
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

func newProviders(cfg Config, httpClient *http.Client, logger *log.Logger) (providers, error) {
	if cfg.OpenAIAPIKey == "" {
		return providers{}, errors.New("OPENAI_API_KEY is required")
	}
	if cfg.ElevenLabsAPIKey == "" {
		return providers{}, errors.New("ELEVENLABS_API_KEY is required")
	}

	speech, err := stt.New(stt.Config{
		Provider:         cfg.STTProvider,
		ElevenLabsAPIKey: cfg.ElevenLabsAPIKey,
		DeepgramAPIKey:   cfg.DeepgramAPIKey,
		HTTPClient:       httpClient,
		Logger:           logger,
	})
	if err != nil {
		return providers{}, err
	}

	chat := llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:     cfg.OpenAIAPIKey,
		Model:      cfg.OpenAIModel,
		HTTPClient: httpClient,
	})

	voice := cfg.Voice()
	synth := tts.NewElevenLabsClient(tts.ElevenLabsConfig{
		APIKey:     cfg.ElevenLabsAPIKey,
		VoiceID:    voice.VoiceID,
		ModelID:    voice.ModelID,
		Stability:  voice.Stability,
		Similarity: voice.SimilarityBoost,
		HTTPClient: httpClient,
	})

	logger.Printf("providers: stt=%s llm=%s tts voice=%s", cfg.STTProvider, chat.Model(), voice.VoiceID)
	return providers{stt: speech, chat: chat, tts: synth}, nil
}

func (a *App) Router(requests *httpapi.RequestRegistry) http.Handler {
	routerCfg := httpapi.RouterConfig{
		JWTSecret:    a.cfg.JWTSecret,
		LanguageHint: a.cfg.STTLanguage,
		Voice:        a.cfg.Voice(),
		STTProvider:  a.cfg.STTProvider,
		MaxBodyBytes: a.cfg.MaxBodyBytes,
		LogRequests:  a.cfg.Debug(),
	}
	svc := httpapi.Services{
		Lessons: a.store,
		STT:     a.providers.stt,
		Chat:    a.providers.chat,
		TTS:     a.providers.tts,
		Alerts:  a.alerts,
	}
	return httpapi.NewRouter(routerCfg, a.logger, svc, a.eventLog, requests)
}

func (a *App) Close() error {
	a.eventLog.Flush()
	a.alerts.Flush()
	if a.db != nil {
		a.db.Close()
	}
	return nil
}
