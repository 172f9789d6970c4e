package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/nishchay-veer/chat-lingo/internal/voicechat"
)

const elevenLabsAPIURL = "https://api.elevenlabs.io"

// ElevenLabsClient implements the Client interface using ElevenLabs' API.
type ElevenLabsClient struct {
	apiKey       string
	voiceID      string
	modelID      string
	stability    float64
	similarity   float64
	outputFormat string
	baseURL      string
	httpClient   *http.Client
}

// ElevenLabsConfig holds configuration for the ElevenLabs client.
type ElevenLabsConfig struct {
	APIKey       string
	VoiceID      string  // ElevenLabs voice ID
	ModelID      string  // e.g., "eleven_multilingual_v2"
	Stability    float64 // 0.0-1.0, -1 uses the default
	Similarity   float64 // 0.0-1.0, -1 uses the default
	OutputFormat string  // e.g., "mp3_44100_128"
	BaseURL      string  // overrides the API host, for tests
	HTTPClient   *http.Client
}

// NewElevenLabsClient creates a new ElevenLabs client.
func NewElevenLabsClient(cfg ElevenLabsConfig) *ElevenLabsClient {
	def := voicechat.DefaultVoice

	voiceID := cfg.VoiceID
	if voiceID == "" {
		voiceID = def.VoiceID
	}
	modelID := cfg.ModelID
	if modelID == "" {
		modelID = def.ModelID
	}
	// -1 is the "use default" sentinel since 0.0 is a valid setting
	stability := cfg.Stability
	if stability < 0 {
		stability = def.Stability
	}
	similarity := cfg.Similarity
	if similarity < 0 {
		similarity = def.SimilarityBoost
	}
	outputFormat := cfg.OutputFormat
	if outputFormat == "" {
		outputFormat = "mp3_44100_128"
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = elevenLabsAPIURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &ElevenLabsClient{
		apiKey:       cfg.APIKey,
		voiceID:      voiceID,
		modelID:      modelID,
		stability:    stability,
		similarity:   similarity,
		outputFormat: outputFormat,
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   httpClient,
	}
}

// Voice returns the client's default voice settings.
func (c *ElevenLabsClient) Voice() voicechat.VoiceConfig {
	return voicechat.VoiceConfig{
		VoiceID:         c.voiceID,
		ModelID:         c.modelID,
		Stability:       c.stability,
		SimilarityBoost: c.similarity,
	}
}

// ttsRequest represents an ElevenLabs TTS request.
type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// resolve fills zero fields of voice from the client defaults.
func (c *ElevenLabsClient) resolve(voice voicechat.VoiceConfig) voicechat.VoiceConfig {
	if voice == (voicechat.VoiceConfig{}) {
		return c.Voice()
	}
	if voice.VoiceID == "" {
		voice.VoiceID = c.voiceID
	}
	if voice.ModelID == "" {
		voice.ModelID = c.modelID
	}
	return voice
}

// Synthesize converts text to speech and returns MP3 audio.
func (c *ElevenLabsClient) Synthesize(ctx context.Context, text string, voice voicechat.VoiceConfig) ([]byte, error) {
	voice = c.resolve(voice)
	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s",
		c.baseURL, url.PathEscape(voice.VoiceID), url.QueryEscape(c.outputFormat))

	req := ttsRequest{
		Text:    text,
		ModelID: voice.ModelID,
		VoiceSettings: voiceSettings{
			Stability:       voice.Stability,
			SimilarityBoost: voice.SimilarityBoost,
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")
	httpReq.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ElevenLabs API error: %s - %s", resp.Status, string(respBody))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("ElevenLabs API returned no audio")
	}
	return audio, nil
}
