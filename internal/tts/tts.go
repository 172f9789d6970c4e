// Package tts speaks the tutor's replies.
package tts

import (
	"context"

	"github.com/nishchay-veer/chat-lingo/internal/voicechat"
)

// Client defines the interface for text-to-speech providers.
type Client interface {
	// Synthesize converts text to speech and returns MP3 audio. Zero fields
	// of voice fall back to the client's configured defaults.
	Synthesize(ctx context.Context, text string, voice voicechat.VoiceConfig) ([]byte, error)
}
