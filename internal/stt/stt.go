// Package stt turns a finished recording into text.
package stt

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/nishchay-veer/chat-lingo/internal/voicechat"
)

// Provider names accepted by New.
const (
	ProviderElevenLabs = "elevenlabs"
	ProviderDeepgram   = "deepgram"
)

// Config selects and configures a speech-to-text provider.
type Config struct {
	Provider         string
	ElevenLabsAPIKey string
	DeepgramAPIKey   string
	HTTPClient       *http.Client
	Logger           *log.Logger
}

// New returns the configured provider.
func New(cfg Config) (voicechat.SpeechToText, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderElevenLabs:
		if cfg.ElevenLabsAPIKey == "" {
			return nil, errors.New("stt: ELEVENLABS_API_KEY is required for the elevenlabs provider")
		}
		return NewElevenLabsClient(ElevenLabsConfig{APIKey: cfg.ElevenLabsAPIKey, HTTPClient: cfg.HTTPClient}), nil
	case ProviderDeepgram:
		if cfg.DeepgramAPIKey == "" {
			return nil, errors.New("stt: DEEPGRAM_API_KEY is required for the deepgram provider")
		}
		return NewDeepgramClient(DeepgramConfig{APIKey: cfg.DeepgramAPIKey, Logger: cfg.Logger}), nil
	}
	return nil, fmt.Errorf("stt: unknown provider %q", cfg.Provider)
}

// iso639_1 maps the three-letter hints used by ElevenLabs to the two-letter
// codes Deepgram expects.
var iso639_1 = map[string]string{
	"eng": "en",
	"spa": "es",
	"fra": "fr",
	"deu": "de",
	"ita": "it",
	"por": "pt",
	"nld": "nl",
	"jpn": "ja",
	"kor": "ko",
	"zho": "zh",
	"ces": "cs",
	"pol": "pl",
	"rus": "ru",
	"hin": "hi",
}

func twoLetterLanguage(hint string) string {
	hint = strings.ToLower(strings.TrimSpace(hint))
	if code, ok := iso639_1[hint]; ok {
		return code
	}
	return hint
}
