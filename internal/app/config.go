package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/nishchay-veer/chat-lingo/internal/stt"
	"github.com/nishchay-veer/chat-lingo/internal/voicechat"
)

type Config struct {
	HTTPAddr    string
	DatabaseURL string
	LogLevel    string
	SentryDSN   string

	// Voice AI providers
	STTProvider      string // "elevenlabs" or "deepgram"
	DeepgramAPIKey   string
	OpenAIAPIKey     string
	OpenAIModel      string
	ElevenLabsAPIKey string

	// Voice settings
	STTLanguage   string  // ISO 639-2 hint, e.g. "eng"
	TTSVoiceID    string  // ElevenLabs voice ID
	TTSModelID    string  // ElevenLabs model ID
	TTSStability  float64 // 0.0-1.0
	TTSSimilarity float64 // 0.0-1.0

	// JWT Authentication
	JWTSecret string
	JWTExpiry time.Duration

	// Request limits
	MaxBodyBytes int64

	// Operator alerts
	DiscordWebhookURL string
}

// TutorConfig configures the terminal client.
type TutorConfig struct {
	Config

	// Remote mode: talk to a running server instead of the providers.
	APIURL   string
	APIToken string

	LessonID    int64
	LessonTitle string // used in direct mode without a database
	SampleRate  int
	FrameRate   int
}

// Remote reports whether the client should use the HTTP route.
func (c TutorConfig) Remote() bool { return c.APIURL != "" }

// loadDotEnv reads a local .env if present; real env vars win.
func loadDotEnv() {
	_ = godotenv.Load()
}

func LoadConfigFromEnv() Config {
	loadDotEnv()

	jwtExpiry, err := time.ParseDuration(getenv("JWT_EXPIRY", "24h"))
	if err != nil {
		jwtExpiry = 24 * time.Hour
	}

	return Config{
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		DatabaseURL: getenv("DATABASE_URL", ""),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		SentryDSN:   getenv("SENTRY_DSN", ""),

		// Voice AI providers
		STTProvider:      getenv("STT_PROVIDER", stt.ProviderElevenLabs),
		DeepgramAPIKey:   getenv("DEEPGRAM_API_KEY", ""),
		OpenAIAPIKey:     getenv("OPENAI_API_KEY", ""),
		OpenAIModel:      getenv("OPENAI_MODEL", ""),
		ElevenLabsAPIKey: getenv("ELEVENLABS_API_KEY", ""),

		// Voice settings
		STTLanguage:   getenv("STT_LANGUAGE", voicechat.DefaultLanguageHint),
		TTSVoiceID:    getenv("TTS_VOICE_ID", voicechat.DefaultVoice.VoiceID),
		TTSModelID:    getenv("TTS_MODEL_ID", voicechat.DefaultVoice.ModelID),
		TTSStability:  getenvFloatClamped("TTS_STABILITY", voicechat.DefaultVoice.Stability, 0, 1),
		TTSSimilarity: getenvFloatClamped("TTS_SIMILARITY", voicechat.DefaultVoice.SimilarityBoost, 0, 1),

		// JWT Authentication
		JWTSecret: os.Getenv("JWT_SECRET"),
		JWTExpiry: jwtExpiry,

		MaxBodyBytes: int64(getenvIntClamped("MAX_BODY_MB", 32, 1, 256)) << 20,

		DiscordWebhookURL: getenv("DISCORD_WEBHOOK_URL", ""),
	}
}

func LoadTutorConfigFromEnv() TutorConfig {
	cfg := LoadConfigFromEnv()
	lessonID, err := strconv.ParseInt(getenv("LESSON_ID", "1"), 10, 64)
	if err != nil || lessonID <= 0 {
		lessonID = 1
	}

	return TutorConfig{
		Config:      cfg,
		APIURL:      getenv("TUTOR_API_URL", ""),
		APIToken:    getenv("TUTOR_API_TOKEN", ""),
		LessonID:    lessonID,
		LessonTitle: getenv("LESSON_TITLE", "Everyday conversation"),
		SampleRate:  getenvIntClamped("SAMPLE_RATE", 16000, 8000, 48000),
		FrameRate:   getenvIntClamped("FRAME_RATE", voicechat.DefaultFrameRate, 1, 120),
	}
}

// Debug reports whether LOG_LEVEL asks for request-level logging.
func (c Config) Debug() bool { return strings.EqualFold(c.LogLevel, "debug") }

// Voice returns the configured synthesis voice.
func (c Config) Voice() voicechat.VoiceConfig {
	return voicechat.VoiceConfig{
		VoiceID:         c.TTSVoiceID,
		ModelID:         c.TTSModelID,
		Stability:       c.TTSStability,
		SimilarityBoost: c.TTSSimilarity,
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// getenvIntClamped parses an int env var and clamps it to [min, max].
// Unset or invalid values return def.
func getenvIntClamped(k string, def, min, max int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}

// getenvFloatClamped parses a float env var and clamps it to [min, max].
// Unset or invalid values return def.
func getenvFloatClamped(k string, def, min, max float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	if f < min {
		return min
	}
	if f > max {
		return max
	}
	return f
}
