// Package costs estimates what a voice-chat turn costs in provider usage.
package costs

import (
	"bytes"
	"math"
	"os"
	"strconv"
	"unicode/utf8"

	"github.com/faiface/beep/wav"
)

// Pricing constants in cents per unit. They can be overridden via
// environment variables.
var (
	// ElevenLabsSTTCentsPerMinute is Scribe speech-to-text.
	// Default: $0.40/hour = 0.667 cents/min
	ElevenLabsSTTCentsPerMinute = getEnvFloat("COST_ELEVENLABS_STT_CENTS_PER_MIN", 0.667)

	// DeepgramCentsPerMinute is Deepgram Nova-2 streaming STT.
	// Default: $0.0043/min = 0.43 cents/min
	DeepgramCentsPerMinute = getEnvFloat("COST_DEEPGRAM_CENTS_PER_MIN", 0.43)

	// OpenAICentsPerThousandInputTokens is GPT-4 Turbo input.
	// Default: $10/1M = 1 cent/1K tokens
	OpenAICentsPerThousandInputTokens = getEnvFloat("COST_OPENAI_INPUT_CENTS_PER_1K", 1.0)

	// OpenAICentsPerThousandOutputTokens is GPT-4 Turbo output.
	// Default: $30/1M = 3 cents/1K tokens
	OpenAICentsPerThousandOutputTokens = getEnvFloat("COST_OPENAI_OUTPUT_CENTS_PER_1K", 3.0)

	// ElevenLabsCentsPerThousandChars is ElevenLabs TTS.
	// Default: $0.18/1K chars = 18 cents/1K chars
	ElevenLabsCentsPerThousandChars = getEnvFloat("COST_ELEVENLABS_CENTS_PER_1K_CHARS", 18.0)
)

// TurnMetrics is the provider usage of one turn or one stage of it.
type TurnMetrics struct {
	STTProvider     string  // "elevenlabs" or "deepgram"
	STTSeconds      float64 // audio sent to STT
	LLMInputTokens  int
	LLMOutputTokens int
	TTSCharacters   int
}

// TurnCosts holds the estimate in cents, rounded to 1/1000 cent.
type TurnCosts struct {
	STTCents   float64 `json:"stt_cents"`
	LLMCents   float64 `json:"llm_cents"`
	TTSCents   float64 `json:"tts_cents"`
	TotalCents float64 `json:"total_cents"`
}

// CalculateTurnCosts computes the costs for a turn based on usage metrics.
func CalculateTurnCosts(m TurnMetrics) TurnCosts {
	sttRate := ElevenLabsSTTCentsPerMinute
	if m.STTProvider == "deepgram" {
		sttRate = DeepgramCentsPerMinute
	}
	sttCents := (m.STTSeconds / 60.0) * sttRate

	// LLM costs: per 1K tokens
	llmInputCents := (float64(m.LLMInputTokens) / 1000.0) * OpenAICentsPerThousandInputTokens
	llmOutputCents := (float64(m.LLMOutputTokens) / 1000.0) * OpenAICentsPerThousandOutputTokens

	// TTS costs: per 1K characters
	ttsCents := (float64(m.TTSCharacters) / 1000.0) * ElevenLabsCentsPerThousandChars

	c := TurnCosts{
		STTCents: roundMilli(sttCents),
		LLMCents: roundMilli(llmInputCents + llmOutputCents),
		TTSCents: roundMilli(ttsCents),
	}
	c.TotalCents = roundMilli(c.STTCents + c.LLMCents + c.TTSCents)
	return c
}

// EstimateTokens approximates the token count of text at four characters
// per token.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}

// AudioSeconds returns the duration of a WAV recording. Other formats,
// which the server cannot measure, report 0.
func AudioSeconds(audio []byte) float64 {
	if len(audio) < 12 || string(audio[:4]) != "RIFF" || string(audio[8:12]) != "WAVE" {
		return 0
	}
	s, format, err := wav.Decode(bytes.NewReader(audio))
	if err != nil {
		return 0
	}
	defer s.Close()
	if format.SampleRate <= 0 {
		return 0
	}
	return format.SampleRate.D(s.Len()).Seconds()
}

// roundMilli rounds to three decimal places.
func roundMilli(f float64) float64 {
	return math.Round(f*1000) / 1000
}

// getEnvFloat returns an environment variable as float64, or the default if not set.
func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
