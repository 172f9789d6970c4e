// Command tutor holds a spoken conversation with the AI tutor in a terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gordonklaus/portaudio"

	"github.com/nishchay-veer/chat-lingo/internal/app"
	"github.com/nishchay-veer/chat-lingo/internal/audio"
	"github.com/nishchay-veer/chat-lingo/internal/termui"
	"github.com/nishchay-veer/chat-lingo/internal/voicechat"
)

const (
	waveCols = 64
	waveRows = 9
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tutor: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := app.LoadTutorConfigFromEnv()

	// The screen owns stdout, so the log goes to a file.
	logger, closeLog, err := openLog(os.Getenv("TUTOR_LOG"))
	if err != nil {
		return err
	}
	defer closeLog()

	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: getEnvironment(),
		})
		if err != nil {
			logger.Printf("sentry init failed: %v", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("init audio: %w", err)
	}
	defer portaudio.Terminate()

	pipe, err := app.NewPipeline(cfg, logger)
	if err != nil {
		return err
	}
	defer pipe.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lookupCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	lesson, err := pipe.Lessons.Resolve(lookupCtx, cfg.LessonID)
	cancel()
	if err != nil {
		return fmt.Errorf("load lesson %d: %w", cfg.LessonID, err)
	}

	screen := termui.NewScreen(os.Stdout, "Lesson: "+lesson.Title, waveCols, waveRows)
	notifier := voicechat.NotifierFunc(func(n voicechat.Notice) {
		screen.Notify(n)
		logger.Printf("notice: %s: %v", n.Message, n.Err)
		if cfg.SentryDSN != "" && n.Err != nil {
			sentry.WithScope(func(scope *sentry.Scope) {
				scope.SetTag("mode", pipe.Mode)
				scope.SetTag("lesson_id", fmt.Sprint(lesson.ID))
				scope.SetExtra("notice", n.Message)
				sentry.CaptureException(n.Err)
			})
		}
	})

	orch, err := voicechat.NewOrchestrator(voicechat.OrchestratorConfig{
		STT:          pipe.STT,
		Chat:         pipe.Chat,
		TTS:          pipe.TTS,
		Lessons:      pipe.Lessons,
		Player:       &audio.Speaker{Logger: logger},
		Notifier:     notifier,
		Voice:        pipe.Voice,
		LanguageHint: cfg.STTLanguage,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	transcript := voicechat.NewTranscriptStore()
	transcript.OnChange(screen.SetTranscript)

	conv, err := voicechat.NewConversation(voicechat.ConversationConfig{
		LessonID: lesson.ID,
		Device:   &audio.Microphone{SampleRate: cfg.SampleRate, Logger: logger},
		Capture: voicechat.CaptureOptions{
			NewRecorder: audio.NewWAVRecorder,
			Surface:     screen.Canvas(),
			FrameRate:   cfg.FrameRate,
		},
		Orchestrator: orch,
		Transcript:   transcript,
		Notifier:     notifier,
		OnPhase:      screen.SetPhase,
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	defer conv.Close()

	actions, err := termui.ListenKeys(ctx)
	if err != nil {
		return err
	}
	screen.Render()
	logger.Printf("tutor: lesson %d %q, %s mode", lesson.ID, lesson.Title, pipe.Mode)

	for {
		select {
		case <-ctx.Done():
			return nil
		case action, ok := <-actions:
			if !ok {
				return nil
			}
			switch action {
			case termui.ActionToggle:
				if conv.Phase() == voicechat.PhaseClosed {
					conv.Open()
					continue
				}
				if err := conv.Toggle(ctx); err != nil && !errors.Is(err, voicechat.ErrBusy) {
					logger.Printf("tutor: toggle: %v", err)
				}
			case termui.ActionDismiss:
				conv.Dismiss()
			case termui.ActionQuit:
				return nil
			}
		}
	}
}

func openLog(path string) (*log.Logger, func(), error) {
	if path == "" {
		path = "tutor.log"
	}
	if path == "-" {
		return log.New(io.Discard, "", 0), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log: %w", err)
	}
	return log.New(f, "", log.LstdFlags), func() { _ = f.Close() }, nil
}

func getEnvironment() string {
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		return env
	}
	return "development"
}
