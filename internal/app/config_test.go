package app

import (
	"testing"
	"time"

	"github.com/nishchay-veer/chat-lingo/internal/voicechat"
)

func TestLoadConfigFromEnvBounds(t *testing.T) {
	tests := []struct {
		name           string
		env            map[string]string
		wantStability  float64
		wantSimilarity float64
		wantBodyBytes  int64
	}{
		{
			name:           "in range",
			env:            map[string]string{"TTS_STABILITY": "0.25", "TTS_SIMILARITY": "0.9", "MAX_BODY_MB": "8"},
			wantStability:  0.25,
			wantSimilarity: 0.9,
			wantBodyBytes:  8 << 20,
		},
		{
			name:           "below range clamps to the floor",
			env:            map[string]string{"TTS_STABILITY": "-0.4", "TTS_SIMILARITY": "-1", "MAX_BODY_MB": "0"},
			wantStability:  0,
			wantSimilarity: 0,
			wantBodyBytes:  1 << 20,
		},
		{
			name:           "above range clamps to the ceiling",
			env:            map[string]string{"TTS_STABILITY": "3", "TTS_SIMILARITY": "1.01", "MAX_BODY_MB": "4096"},
			wantStability:  1,
			wantSimilarity: 1,
			wantBodyBytes:  256 << 20,
		},
		{
			name:           "garbage keeps the defaults",
			env:            map[string]string{"TTS_STABILITY": "calm", "TTS_SIMILARITY": "", "MAX_BODY_MB": "lots"},
			wantStability:  voicechat.DefaultVoice.Stability,
			wantSimilarity: voicechat.DefaultVoice.SimilarityBoost,
			wantBodyBytes:  32 << 20,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg := LoadConfigFromEnv()
			if cfg.TTSStability != tt.wantStability {
				t.Errorf("TTSStability = %v, want %v", cfg.TTSStability, tt.wantStability)
			}
			if cfg.TTSSimilarity != tt.wantSimilarity {
				t.Errorf("TTSSimilarity = %v, want %v", cfg.TTSSimilarity, tt.wantSimilarity)
			}
			if cfg.MaxBodyBytes != tt.wantBodyBytes {
				t.Errorf("MaxBodyBytes = %d, want %d", cfg.MaxBodyBytes, tt.wantBodyBytes)
			}
		})
	}
}

func TestConfigDebug(t *testing.T) {
	for level, want := range map[string]bool{"debug": true, "DEBUG": true, "info": false, "": false} {
		if got := (Config{LogLevel: level}).Debug(); got != want {
			t.Errorf("Debug() with LOG_LEVEL=%q = %v, want %v", level, got, want)
		}
	}
}

func TestLoadConfigFromEnvDefaults(t *testing.T) {
	for _, key := range []string{
		"HTTP_ADDR", "DATABASE_URL", "LOG_LEVEL", "STT_PROVIDER", "STT_LANGUAGE",
		"TTS_VOICE_ID", "TTS_MODEL_ID", "TTS_STABILITY", "TTS_SIMILARITY",
		"JWT_EXPIRY", "MAX_BODY_MB",
	} {
		t.Setenv(key, "")
	}

	cfg := LoadConfigFromEnv()

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8080")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.STTProvider != "elevenlabs" {
		t.Errorf("STTProvider = %q, want elevenlabs", cfg.STTProvider)
	}
	if cfg.STTLanguage != "eng" {
		t.Errorf("STTLanguage = %q, want eng", cfg.STTLanguage)
	}
	if cfg.JWTExpiry != 24*time.Hour {
		t.Errorf("JWTExpiry = %v, want 24h", cfg.JWTExpiry)
	}
	if cfg.MaxBodyBytes != 32<<20 {
		t.Errorf("MaxBodyBytes = %d, want %d", cfg.MaxBodyBytes, 32<<20)
	}

	// TTS defaults
	if got := cfg.Voice(); got != voicechat.DefaultVoice {
		t.Errorf("Voice() = %+v, want %+v", got, voicechat.DefaultVoice)
	}
}

func TestLoadConfigFromEnvCustomValues(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("STT_PROVIDER", "deepgram")
	t.Setenv("TTS_VOICE_ID", "voice-123")
	t.Setenv("TTS_STABILITY", "0.7")
	t.Setenv("TTS_SIMILARITY", "1.5")
	t.Setenv("JWT_EXPIRY", "not-a-duration")

	cfg := LoadConfigFromEnv()

	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9090")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	if cfg.STTProvider != "deepgram" {
		t.Errorf("STTProvider = %q, want deepgram", cfg.STTProvider)
	}
	if cfg.TTSVoiceID != "voice-123" {
		t.Errorf("TTSVoiceID = %q, want voice-123", cfg.TTSVoiceID)
	}
	if cfg.TTSStability != 0.7 {
		t.Errorf("TTSStability = %f, want %f", cfg.TTSStability, 0.7)
	}
	if cfg.TTSSimilarity != 1.0 {
		t.Errorf("TTSSimilarity = %f, want clamped 1.0", cfg.TTSSimilarity)
	}
	if cfg.JWTExpiry != 24*time.Hour {
		t.Errorf("JWTExpiry = %v, want fallback 24h", cfg.JWTExpiry)
	}
}

func TestLoadTutorConfigFromEnv(t *testing.T) {
	tests := []struct {
		name       string
		env        map[string]string
		wantRemote bool
		wantLesson int64
		wantRate   int
	}{
		{
			name:       "direct defaults",
			env:        map[string]string{"TUTOR_API_URL": "", "LESSON_ID": "", "SAMPLE_RATE": ""},
			wantRemote: false,
			wantLesson: 1,
			wantRate:   16000,
		},
		{
			name:       "remote with lesson",
			env:        map[string]string{"TUTOR_API_URL": "http://localhost:8080", "LESSON_ID": "42", "SAMPLE_RATE": "44100"},
			wantRemote: true,
			wantLesson: 42,
			wantRate:   44100,
		},
		{
			name:       "invalid lesson falls back",
			env:        map[string]string{"TUTOR_API_URL": "", "LESSON_ID": "-3", "SAMPLE_RATE": "1000"},
			wantRemote: false,
			wantLesson: 1,
			wantRate:   8000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg := LoadTutorConfigFromEnv()
			if cfg.Remote() != tt.wantRemote {
				t.Errorf("Remote() = %v, want %v", cfg.Remote(), tt.wantRemote)
			}
			if cfg.LessonID != tt.wantLesson {
				t.Errorf("LessonID = %d, want %d", cfg.LessonID, tt.wantLesson)
			}
			if cfg.SampleRate != tt.wantRate {
				t.Errorf("SampleRate = %d, want %d", cfg.SampleRate, tt.wantRate)
			}
		})
	}
}
