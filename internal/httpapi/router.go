package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/nishchay-veer/chat-lingo/internal/eventlog"
	"github.com/nishchay-veer/chat-lingo/internal/notifications"
	"github.com/nishchay-veer/chat-lingo/internal/store"
	"github.com/nishchay-veer/chat-lingo/internal/voicechat"
)

type RouterConfig struct {
	// JWT Authentication; an empty secret leaves /api open
	JWTSecret string

	// Voice settings
	LanguageHint string
	Voice        voicechat.VoiceConfig

	// STTProvider names the speech-to-text backend, for cost estimates
	STTProvider string

	// MaxBodyBytes bounds a voice-chat request (base64 audio included)
	MaxBodyBytes int64

	// LogRequests writes one access line per request
	LogRequests bool
}

// LessonStore is the lesson lookup the routes need; *store.Store satisfies it.
type LessonStore interface {
	GetLesson(ctx context.Context, id int64) (*store.Lesson, error)
	ListLessons(ctx context.Context, limit int) ([]store.Lesson, error)
}

// Services are the providers behind the voice-chat route.
type Services struct {
	Lessons LessonStore
	STT     voicechat.SpeechToText
	Chat    voicechat.ChatCompletion
	TTS     voicechat.TextToSpeech

	// Alerts, when set, hears about provider failures.
	Alerts *notifications.Discord
}

type Router struct {
	cfg      RouterConfig
	logger   *log.Logger
	svc      Services
	eventLog *eventlog.Logger
	requests *RequestRegistry
	mux      *http.ServeMux
}

func NewRouter(cfg RouterConfig, logger *log.Logger, svc Services, eventLog *eventlog.Logger, requests *RequestRegistry) http.Handler {
	if cfg.LanguageHint == "" {
		cfg.LanguageHint = voicechat.DefaultLanguageHint
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 32 << 20
	}
	if requests == nil {
		requests = NewRequestRegistry()
	}

	r := &Router{
		cfg:      cfg,
		logger:   logger,
		svc:      svc,
		eventLog: eventLog,
		requests: requests,
		mux:      http.NewServeMux(),
	}

	r.routes()
	h := withSentryRecovery(withCORS(r.mux))
	if cfg.LogRequests {
		h = r.withRequestLog(h)
	}
	return h
}

func (r *Router) routes() {
	// Health checks
	r.mux.HandleFunc("GET /healthz", r.handleHealthz)
	r.mux.HandleFunc("GET /readyz", r.handleReadyz)

	// Protected API endpoints
	r.mux.HandleFunc("POST /api/voice-chat", r.withAuth(r.withTracking(r.handleVoiceChat)))
	r.mux.HandleFunc("GET /api/lessons", r.withAuth(r.handleListLessons))
	r.mux.HandleFunc("GET /api/lessons/{id}", r.withAuth(r.handleGetLesson))
}

func (r *Router) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Router) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if r.requests.IsDraining() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("draining"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// withTracking registers the request so shutdown can wait for it.
func (r *Router) withTracking(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if !r.requests.Add() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Server is shutting down"})
			return
		}
		defer r.requests.Done()
		next(w, req)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (r *Router) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)
		r.logger.Printf("http: %s %s %d %s turn=%s", req.Method, req.URL.Path, rec.status,
			time.Since(start).Round(time.Millisecond), rec.Header().Get(turnIDHeader))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func withSentryRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				hub := sentry.CurrentHub().Clone()
				hub.Scope().SetRequest(req)
				hub.RecoverWithContext(req.Context(), err)
				hub.Flush(2 * time.Second)
				http.Error(w, `{"error": "Internal server error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, req)
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization,"+turnIDHeader)
		w.Header().Set("Access-Control-Expose-Headers", turnIDHeader)
		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, req)
	})
}

// captureError sends an error to Sentry with request context
func captureError(req *http.Request, err error, msg string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetRequest(req)
		scope.SetExtra("message", msg)
		if id := voicechat.TurnIDFromContext(req.Context()); id != "" {
			scope.SetTag("turn_id", id)
		}
		sentry.CaptureException(err)
	})
}
