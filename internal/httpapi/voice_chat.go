package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/nishchay-veer/chat-lingo/internal/costs"
	"github.com/nishchay-veer/chat-lingo/internal/eventlog"
	"github.com/nishchay-veer/chat-lingo/internal/store"
	"github.com/nishchay-veer/chat-lingo/internal/voicechat"
)

const turnIDHeader = "X-Turn-ID"

// Error bodies returned by POST /api/voice-chat.
const (
	msgMissingFields      = "Missing required fields"
	msgLessonNotFound     = "Lesson not found"
	msgInvalidProcessType = "Invalid process type"
	msgInvalidAudio       = "Invalid audio encoding"
	msgInternal           = "Internal server error"
)

type voiceChatRequest struct {
	Audio       string          `json:"audio"`
	Text        string          `json:"text"`
	LessonID    int64           `json:"lessonId"`
	ProcessType voicechat.Stage `json:"processType"`
}

type voiceChatResponse struct {
	UserText string `json:"userText,omitempty"`
	Text     string `json:"text,omitempty"`
	AudioURL string `json:"audioUrl,omitempty"`
}

// audioDataURL wraps synthesized mp3 bytes for the browser client.
func audioDataURL(audio []byte) string {
	return "data:audio/mpeg;base64," + base64.StdEncoding.EncodeToString(audio)
}

// decodeAudio accepts raw base64 or a data: URL.
func decodeAudio(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		i := strings.Index(s, ",")
		if i < 0 {
			return nil, errors.New("malformed data URL")
		}
		s = s[i+1:]
	}
	return base64.StdEncoding.DecodeString(s)
}

func (r *Router) handleVoiceChat(w http.ResponseWriter, req *http.Request) {
	turnID := req.Header.Get(turnIDHeader)
	if _, err := uuid.Parse(turnID); err != nil {
		turnID = uuid.NewString()
	}
	w.Header().Set(turnIDHeader, turnID)
	ctx := voicechat.ContextWithTurnID(req.Context(), turnID)
	req = req.WithContext(ctx)

	req.Body = http.MaxBytesReader(w, req.Body, r.cfg.MaxBodyBytes)
	var body voiceChatRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if body.LessonID == 0 || (body.Audio == "" && body.Text == "") {
		writeError(w, http.StatusBadRequest, msgMissingFields)
		return
	}

	lesson, err := r.svc.Lessons.GetLesson(ctx, body.LessonID)
	if err != nil {
		r.logger.Printf("voice-chat: turn=%s get lesson %d: %v", turnID, body.LessonID, err)
		captureError(req, err, "get lesson failed")
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	if lesson == nil {
		r.eventLog.LogAsync(turnID, body.LessonID, eventlog.EventLessonNotFound, nil)
		writeError(w, http.StatusNotFound, msgLessonNotFound)
		return
	}

	if !body.ProcessType.Valid() {
		writeError(w, http.StatusBadRequest, msgInvalidProcessType)
		return
	}

	r.eventLog.LogAsync(turnID, lesson.ID, eventlog.EventTurnStarted, map[string]any{
		"stage":   string(body.ProcessType),
		"subject": subjectFromContext(ctx),
	})

	switch body.ProcessType {
	case voicechat.StageTranscribe:
		r.transcribe(w, req, lesson, body)
	case voicechat.StageRespond:
		r.respond(w, req, lesson, body, true)
	case voicechat.StageComplete:
		r.respond(w, req, lesson, body, false)
	case voicechat.StageSynthesize:
		r.synthesize(w, req, lesson, body)
	}
}

func (r *Router) transcribe(w http.ResponseWriter, req *http.Request, lesson *store.Lesson, body voiceChatRequest) {
	ctx := req.Context()
	turnID := voicechat.TurnIDFromContext(ctx)
	if body.Audio == "" {
		writeError(w, http.StatusBadRequest, msgMissingFields)
		return
	}
	audio, err := decodeAudio(body.Audio)
	if err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidAudio)
		return
	}

	text, err := r.svc.STT.Transcribe(ctx, audio, r.cfg.LanguageHint)
	if err != nil {
		r.logger.Printf("voice-chat: turn=%s transcription failed: %v", turnID, err)
		r.eventLog.LogAsync(turnID, lesson.ID, eventlog.EventTranscriptionError, map[string]any{"error": err.Error()})
		r.svc.Alerts.NotifyProviderFailure(string(voicechat.StageTranscribe), turnID, lesson.ID, err)
		captureError(req, err, "transcription failed")
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	seconds := costs.AudioSeconds(audio)
	r.eventLog.LogAsync(turnID, lesson.ID, eventlog.EventTranscribed, map[string]any{
		"audio_bytes":   len(audio),
		"audio_seconds": seconds,
		"chars":         len(text),
		"cost":          costs.CalculateTurnCosts(costs.TurnMetrics{STTProvider: r.cfg.STTProvider, STTSeconds: seconds}),
	})
	writeJSON(w, http.StatusOK, voiceChatResponse{UserText: text})
}

// respond completes the user's text and, when speak is set, synthesizes the
// reply in the same request.
func (r *Router) respond(w http.ResponseWriter, req *http.Request, lesson *store.Lesson, body voiceChatRequest, speak bool) {
	ctx := req.Context()
	turnID := voicechat.TurnIDFromContext(ctx)
	if strings.TrimSpace(body.Text) == "" {
		writeError(w, http.StatusBadRequest, msgMissingFields)
		return
	}

	prompt := voicechat.SystemPrompt(lesson.Title)
	reply, err := r.svc.Chat.Complete(ctx, prompt, body.Text)
	if err == nil && strings.TrimSpace(reply) == "" {
		err = errors.New("empty completion")
	}
	if err != nil {
		r.logger.Printf("voice-chat: turn=%s completion failed: %v", turnID, err)
		r.eventLog.LogAsync(turnID, lesson.ID, eventlog.EventCompletionError, map[string]any{"error": err.Error()})
		r.svc.Alerts.NotifyProviderFailure(string(voicechat.StageComplete), turnID, lesson.ID, err)
		captureError(req, err, "completion failed")
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	cost := costs.CalculateTurnCosts(costs.TurnMetrics{
		LLMInputTokens:  costs.EstimateTokens(prompt) + costs.EstimateTokens(body.Text),
		LLMOutputTokens: costs.EstimateTokens(reply),
	})
	r.eventLog.LogAsync(turnID, lesson.ID, eventlog.EventCompleted, map[string]any{
		"chars": len(reply),
		"cost":  cost,
	})

	resp := voiceChatResponse{Text: reply}
	if speak {
		audio, ok := r.synthesizeReply(req, lesson, reply)
		if !ok {
			writeError(w, http.StatusInternalServerError, msgInternal)
			return
		}
		resp.AudioURL = audioDataURL(audio)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (r *Router) synthesize(w http.ResponseWriter, req *http.Request, lesson *store.Lesson, body voiceChatRequest) {
	if strings.TrimSpace(body.Text) == "" {
		writeError(w, http.StatusBadRequest, msgMissingFields)
		return
	}
	audio, ok := r.synthesizeReply(req, lesson, body.Text)
	if !ok {
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	writeJSON(w, http.StatusOK, voiceChatResponse{AudioURL: audioDataURL(audio)})
}

func (r *Router) synthesizeReply(req *http.Request, lesson *store.Lesson, text string) ([]byte, bool) {
	ctx := req.Context()
	turnID := voicechat.TurnIDFromContext(ctx)
	audio, err := r.svc.TTS.Synthesize(ctx, text, r.cfg.Voice)
	if err == nil && len(audio) == 0 {
		err = errors.New("empty audio")
	}
	if err != nil {
		r.logger.Printf("voice-chat: turn=%s synthesis failed: %v", turnID, err)
		r.eventLog.LogAsync(turnID, lesson.ID, eventlog.EventSynthesisError, map[string]any{"error": err.Error()})
		r.svc.Alerts.NotifyProviderFailure(string(voicechat.StageSynthesize), turnID, lesson.ID, err)
		captureError(req, err, "synthesis failed")
		return nil, false
	}
	r.eventLog.LogAsync(turnID, lesson.ID, eventlog.EventSynthesized, map[string]any{
		"audio_bytes": len(audio),
		"cost":        costs.CalculateTurnCosts(costs.TurnMetrics{TTSCharacters: utf8.RuneCountInString(text)}),
	})
	return audio, true
}
