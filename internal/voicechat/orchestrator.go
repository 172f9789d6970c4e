package voicechat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TurnState is the orchestrator's position within a turn.
type TurnState int

const (
	StateIdle TurnState = iota
	StateTranscribing
	StateAwaitingReply
	StateSynthesizing
	StatePlaying
	StateErrored
)

func (s TurnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTranscribing:
		return "transcribing"
	case StateAwaitingReply:
		return "awaiting_reply"
	case StateSynthesizing:
		return "synthesizing"
	case StatePlaying:
		return "playing"
	case StateErrored:
		return "errored"
	}
	return fmt.Sprintf("TurnState(%d)", int(s))
}

// active reports whether a turn occupies the orchestrator.
func (s TurnState) active() bool {
	return s != StateIdle && s != StateErrored
}

type turnIDKey struct{}

// ContextWithTurnID tags ctx with the id of the turn it serves.
func ContextWithTurnID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, turnIDKey{}, id)
}

// TurnIDFromContext returns the turn id set by ContextWithTurnID.
func TurnIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(turnIDKey{}).(string)
	return id
}

// Turn is one spoken exchange submitted to the orchestrator.
type Turn struct {
	ID       string
	LessonID int64
	Audio    []byte
	// TornDown is closed when the dialog that started the turn goes away.
	// Stages already waiting on a service finish, but nothing after them runs
	// and nothing more is emitted.
	TornDown <-chan struct{}
}

func (t Turn) tornDown(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	if t.TornDown == nil {
		return false
	}
	select {
	case <-t.TornDown:
		return true
	default:
		return false
	}
}

// playbackContext is cancelled when ctx ends or the turn is torn down.
func (t Turn) playbackContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	if t.TornDown != nil {
		go func() {
			select {
			case <-t.TornDown:
				cancel()
			case <-ctx.Done():
			}
		}()
	}
	return ctx, cancel
}

// OrchestratorConfig wires the orchestrator to its collaborators.
type OrchestratorConfig struct {
	STT     SpeechToText
	Chat    ChatCompletion
	TTS     TextToSpeech
	Lessons LessonContextProvider
	Player  Player

	Notifier     Notifier
	Voice        VoiceConfig
	LanguageHint string
	Logger       *log.Logger
	Now          func() time.Time
}

// Orchestrator drives the transcribe, respond and synthesize stages of a turn
// and emits the transcript lines they produce.
type Orchestrator struct {
	stt      SpeechToText
	chat     ChatCompletion
	tts      TextToSpeech
	lessons  LessonContextProvider
	player   Player
	notifier Notifier
	voice    VoiceConfig
	language string
	logger   *log.Logger
	now      func() time.Time

	mu    sync.Mutex
	state TurnState
}

// NewOrchestrator validates cfg and fills in defaults.
func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if cfg.STT == nil || cfg.Chat == nil || cfg.TTS == nil || cfg.Lessons == nil || cfg.Player == nil {
		return nil, errors.New("voicechat: orchestrator needs speech-to-text, chat, text-to-speech, lessons and a player")
	}
	o := &Orchestrator{
		stt:      cfg.STT,
		chat:     cfg.Chat,
		tts:      cfg.TTS,
		lessons:  cfg.Lessons,
		player:   cfg.Player,
		notifier: cfg.Notifier,
		voice:    cfg.Voice,
		language: cfg.LanguageHint,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}
	if o.logger == nil {
		o.logger = log.New(io.Discard, "", 0)
	}
	if o.notifier == nil {
		o.notifier = logNotifier{logger: o.logger}
	}
	if o.voice.VoiceID == "" {
		o.voice = DefaultVoice
	}
	if o.language == "" {
		o.language = DefaultLanguageHint
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o, nil
}

// State returns the current turn state.
func (o *Orchestrator) State() TurnState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s TurnState) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// begin claims the orchestrator for a new turn.
func (o *Orchestrator) begin() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.active() {
		return false
	}
	o.state = StateTranscribing
	return true
}

// RunTurn turns one recording into a transcript exchange and a spoken reply.
// Lines are emitted in the order user, pending placeholder, final reply.
// Every failure fires exactly one notice; a torn-down turn fires none and
// returns ErrTornDown.
func (o *Orchestrator) RunTurn(ctx context.Context, turn Turn, emit Emitter) error {
	if !o.begin() {
		return ErrBusy
	}
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	ctx = ContextWithTurnID(ctx, turn.ID)
	started := o.now()
	if turn.tornDown(ctx) {
		return o.abandon(turn, emit, false)
	}

	userText, err := o.stt.Transcribe(ctx, turn.Audio, o.language)
	if turn.tornDown(ctx) {
		return o.abandon(turn, emit, false)
	}
	userText = strings.TrimSpace(userText)
	if err == nil && userText == "" {
		err = errors.New("empty transcript")
	}
	if err != nil {
		return o.fail(turn, ErrTranscriptionFailed, err, emit, false)
	}
	emit.Append(Message{Text: userText, IsUser: true, Timestamp: o.now()})

	o.setState(StateAwaitingReply)
	emit.Append(Message{Text: PendingText, Timestamp: o.now(), IsPending: true})

	lesson, err := o.lessons.Resolve(ctx, turn.LessonID)
	if turn.tornDown(ctx) {
		return o.abandon(turn, emit, true)
	}
	if err != nil {
		return o.fail(turn, ErrCompletionFailed, fmt.Errorf("resolve lesson %d: %w", turn.LessonID, err), emit, true)
	}

	reply, err := o.chat.Complete(ctx, SystemPrompt(lesson.Title), userText)
	if turn.tornDown(ctx) {
		return o.abandon(turn, emit, true)
	}
	reply = strings.TrimSpace(reply)
	if err == nil && reply == "" {
		err = errors.New("empty reply")
	}
	if err != nil {
		return o.fail(turn, ErrCompletionFailed, err, emit, true)
	}

	o.setState(StateSynthesizing)
	audio, err := o.tts.Synthesize(ctx, reply, o.voice)
	if turn.tornDown(ctx) {
		return o.abandon(turn, emit, true)
	}
	if err == nil && len(audio) == 0 {
		err = errors.New("empty audio")
	}
	if err != nil {
		// the reply exists, so the placeholder resolves to it without audio
		emit.Append(Message{Text: reply, Timestamp: o.now()})
		return o.fail(turn, ErrSynthesisFailed, err, emit, false)
	}
	emit.Append(Message{Text: reply, Timestamp: o.now()})

	o.setState(StatePlaying)
	playCtx, stop := turn.playbackContext(ctx)
	err = o.player.Play(playCtx, audio)
	stop()
	if turn.tornDown(ctx) {
		return o.abandon(turn, emit, false)
	}
	if err != nil {
		o.logger.Printf("voicechat: turn %s: playback failed: %v", turn.ID, err)
		o.notifier.Notify(noticeFor(ErrPlaybackFailed, err))
	}

	o.setState(StateIdle)
	o.logger.Printf("voicechat: turn %s completed in %s", turn.ID, o.now().Sub(started).Round(time.Millisecond))
	return nil
}

// fail ends the turn in StateErrored with one notice.
func (o *Orchestrator) fail(turn Turn, kind, cause error, emit Emitter, placeholder bool) error {
	if placeholder {
		emit.DiscardPending()
	}
	o.setState(StateErrored)
	o.logger.Printf("voicechat: turn %s: %v: %v", turn.ID, kind, cause)
	o.notifier.Notify(noticeFor(kind, cause))
	return fmt.Errorf("%w: %w", kind, cause)
}

// abandon ends a torn-down turn quietly.
func (o *Orchestrator) abandon(turn Turn, emit Emitter, placeholder bool) error {
	if placeholder {
		emit.DiscardPending()
	}
	o.setState(StateIdle)
	o.logger.Printf("voicechat: turn %s torn down", turn.ID)
	return ErrTornDown
}
