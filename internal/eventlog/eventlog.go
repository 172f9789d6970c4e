package eventlog

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EventType represents the type of voice chat event
type EventType string

const (
	EventTurnStarted        EventType = "turn_started"
	EventTranscribed        EventType = "transcribed"
	EventTranscriptionError EventType = "transcription_error"
	EventCompleted          EventType = "completed"
	EventCompletionError    EventType = "completion_error"
	EventSynthesized        EventType = "synthesized"
	EventSynthesisError     EventType = "synthesis_error"
	EventLessonNotFound     EventType = "lesson_not_found"
)

// Logger provides async event logging to the database
type Logger struct {
	db      *pgxpool.Pool
	pending sync.WaitGroup
}

// New creates a new event logger. A nil pool disables logging.
func New(db *pgxpool.Pool) *Logger {
	return &Logger{db: db}
}

// Log writes an event to the database synchronously
func (l *Logger) Log(ctx context.Context, turnID string, lessonID int64, eventType EventType, data map[string]any) error {
	if l == nil || l.db == nil || turnID == "" {
		return nil // Silently skip if no DB or turn ID
	}

	dataJSON, err := json.Marshal(data)
	if err != nil || data == nil {
		dataJSON = []byte("{}")
	}

	_, err = l.db.Exec(ctx, `
		INSERT INTO voice_chat_events (turn_id, lesson_id, event_type, event_data)
		VALUES ($1, $2, $3, $4)
	`, turnID, lessonID, string(eventType), dataJSON)

	return err
}

// LogAsync logs an event without blocking the caller
func (l *Logger) LogAsync(turnID string, lessonID int64, eventType EventType, data map[string]any) {
	if l == nil || l.db == nil || turnID == "" {
		return
	}

	l.pending.Add(1)
	go func() {
		defer l.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = l.Log(ctx, turnID, lessonID, eventType, data)
	}()
}

// Flush waits for async writes started before the call.
func (l *Logger) Flush() {
	if l == nil {
		return
	}
	l.pending.Wait()
}
