// Package voicechat runs spoken conversation turns with a lesson tutor:
// microphone capture with a live waveform, the transcribe → respond →
// synthesize pipeline, and the transcript shown while it runs.
package voicechat

import (
	"sync"
	"time"
)

// PendingText is the placeholder shown while the tutor reply is produced.
const PendingText = "Thinking..."

// Message is one transcript line.
type Message struct {
	Text      string    `json:"text"`
	IsUser    bool      `json:"isUser"`
	Timestamp time.Time `json:"timestamp"`
	IsPending bool      `json:"isPending,omitempty"`
}

// Emitter receives transcript emissions from the orchestrator.
type Emitter interface {
	Append(m Message)
	DiscardPending() bool
}

// TranscriptStore is the ordered message sequence of one conversation.
//
// A non-pending message that arrives while the last element is pending takes
// its slot instead of being appended. Only a trailing pending message can be
// withdrawn; every other slot is final once written.
type TranscriptStore struct {
	mu       sync.Mutex
	messages []Message
	onChange func([]Message)
}

// NewTranscriptStore creates an empty store.
func NewTranscriptStore() *TranscriptStore {
	return &TranscriptStore{}
}

// OnChange registers fn to be called with a snapshot after every mutation.
// fn runs outside the store lock.
func (s *TranscriptStore) OnChange(fn func([]Message)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Append adds m to the transcript, replacing a trailing pending placeholder
// when m is final.
func (s *TranscriptStore) Append(m Message) {
	s.mu.Lock()
	n := len(s.messages)
	if n > 0 && s.messages[n-1].IsPending && !m.IsPending {
		s.messages[n-1] = m
	} else {
		s.messages = append(s.messages, m)
	}
	snapshot, fn := s.snapshotLocked()
	s.mu.Unlock()

	if fn != nil {
		fn(snapshot)
	}
}

// DiscardPending withdraws a trailing pending placeholder. Final messages are
// never removed. It reports whether a placeholder was withdrawn.
func (s *TranscriptStore) DiscardPending() bool {
	s.mu.Lock()
	n := len(s.messages)
	if n == 0 || !s.messages[n-1].IsPending {
		s.mu.Unlock()
		return false
	}
	s.messages = s.messages[:n-1]
	snapshot, fn := s.snapshotLocked()
	s.mu.Unlock()

	if fn != nil {
		fn(snapshot)
	}
	return true
}

// Messages returns a copy of the transcript in conversation order.
func (s *TranscriptStore) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of messages.
func (s *TranscriptStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// Last returns the last message, if any.
func (s *TranscriptStore) Last() (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return Message{}, false
	}
	return s.messages[len(s.messages)-1], true
}

func (s *TranscriptStore) snapshotLocked() ([]Message, func([]Message)) {
	if s.onChange == nil {
		return nil, nil
	}
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out, s.onChange
}
