package voicechat

import (
	"context"
	"fmt"
	"strings"
)

// Lesson is the context a turn is held in.
type Lesson struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// LessonContextProvider resolves a lesson id. Unknown ids return an error
// wrapping ErrLessonNotFound.
type LessonContextProvider interface {
	Resolve(ctx context.Context, lessonID int64) (Lesson, error)
}

// SpeechToText transcribes one finished recording.
type SpeechToText interface {
	Transcribe(ctx context.Context, audio []byte, languageHint string) (string, error)
}

// ChatCompletion produces one reply for one user utterance.
type ChatCompletion interface {
	Complete(ctx context.Context, systemPrompt, userText string) (string, error)
}

// TextToSpeech synthesizes a reply to encoded audio.
type TextToSpeech interface {
	Synthesize(ctx context.Context, text string, voice VoiceConfig) ([]byte, error)
}

// Player plays synthesized audio and blocks until playback ends.
type Player interface {
	Play(ctx context.Context, audio []byte) error
}

// VoiceConfig selects the synthesis voice.
type VoiceConfig struct {
	VoiceID         string  `json:"voiceId"`
	ModelID         string  `json:"modelId"`
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarityBoost"`
}

// DefaultVoice is the tutor voice.
var DefaultVoice = VoiceConfig{
	VoiceID:         "pNInz6obpgDQGcFmaJgB",
	ModelID:         "eleven_multilingual_v2",
	Stability:       0.5,
	SimilarityBoost: 0.75,
}

// DefaultLanguageHint is passed to speech-to-text (ISO 639-2).
const DefaultLanguageHint = "eng"

// Stage names one remote call of a turn.
type Stage string

const (
	StageTranscribe Stage = "transcribe"
	StageRespond    Stage = "respond"
	StageComplete   Stage = "complete"
	StageSynthesize Stage = "synthesize"
)

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	switch s {
	case StageTranscribe, StageRespond, StageComplete, StageSynthesize:
		return true
	}
	return false
}

// TurnRequest is one remote call of a turn.
type TurnRequest struct {
	LessonID int64  `json:"lessonId"`
	Audio    []byte `json:"-"`
	Text     string `json:"text,omitempty"`
	Stage    Stage  `json:"processType"`
}

// SystemPrompt is the fixed tutor instruction for a lesson.
func SystemPrompt(lessonTitle string) string {
	return strings.Join([]string{
		fmt.Sprintf("You are a language learning assistant helping with a lesson about \"%s\".", lessonTitle),
		"Respond conversationally and naturally, but keep responses concise (max 2-3 sentences).",
		"If you notice any language errors, provide gentle corrections.",
		"Stay focused on the lesson topic.",
	}, "\n")
}
