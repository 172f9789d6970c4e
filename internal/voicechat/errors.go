package voicechat

import (
	"errors"
	"fmt"
	"log"
)

// ErrProcessingFailed is wrapped by every failure after transcription.
var ErrProcessingFailed = errors.New("processing failed")

var (
	ErrPermissionDenied    = errors.New("microphone permission denied")
	ErrCaptureFailed       = errors.New("audio capture failed")
	ErrTranscriptionFailed = errors.New("transcription failed")
	ErrCompletionFailed    = fmt.Errorf("completion failed: %w", ErrProcessingFailed)
	ErrSynthesisFailed     = fmt.Errorf("synthesis failed: %w", ErrProcessingFailed)
	ErrPlaybackFailed      = errors.New("playback failed")

	// ErrBusy is returned when a recording or turn is already active.
	ErrBusy = errors.New("a recording or turn is already in progress")
	// ErrTornDown is returned by a turn whose dialog was dismissed.
	ErrTornDown = errors.New("turn torn down")
	// ErrLessonNotFound is returned by LessonContextProvider implementations.
	ErrLessonNotFound = errors.New("lesson not found")
)

// User-facing notice texts.
const (
	noticeMicrophone = "Unable to access microphone. Please check your permissions."
	noticeCapture    = "Recording stopped unexpectedly. Please try again."
	noticeProcessing = "Failed to process your speech. Please try again."
	noticePlayback   = "Could not play the tutor's reply."
)

// Notice is a single user-visible failure report.
type Notice struct {
	Kind    error
	Message string
	Err     error
}

// Notifier surfaces notices to the user.
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// noticeFor builds the notice for a taxonomy error.
func noticeFor(kind, cause error) Notice {
	msg := noticeProcessing
	switch {
	case errors.Is(kind, ErrPermissionDenied):
		msg = noticeMicrophone
	case errors.Is(kind, ErrCaptureFailed):
		msg = noticeCapture
	case errors.Is(kind, ErrPlaybackFailed):
		msg = noticePlayback
	}
	return Notice{Kind: kind, Message: msg, Err: cause}
}

// logNotifier is used when the caller does not supply a Notifier.
type logNotifier struct {
	logger *log.Logger
}

func (n logNotifier) Notify(notice Notice) {
	n.logger.Printf("voicechat: notice: %s (%v)", notice.Message, notice.Err)
}
