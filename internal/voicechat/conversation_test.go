package voicechat

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type conversationFixture struct {
	*orchestratorFixture
	device *fakeDevice
	stream *fakeStream
	conv   *Conversation

	mu     sync.Mutex
	phases []Phase
}

func newConversationFixture(t *testing.T, deviceErr error) *conversationFixture {
	t.Helper()
	f := &conversationFixture{orchestratorFixture: newOrchestratorFixture(t)}
	f.stream = &fakeStream{sampleRate: 16000, value: 500}
	f.device = &fakeDevice{stream: f.stream, err: deviceErr}

	conv, err := NewConversation(ConversationConfig{
		LessonID:     3,
		Device:       f.device,
		Capture:      CaptureOptions{NewRecorder: newRecorderFactory(&fakeRecorder{})},
		Orchestrator: f.orch,
		Notifier:     f.notifier,
		OnPhase: func(p Phase) {
			f.mu.Lock()
			f.phases = append(f.phases, p)
			f.mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("NewConversation: %v", err)
	}
	f.conv = conv
	t.Cleanup(conv.Close)
	return f
}

func (f *conversationFixture) seenPhases() []Phase {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Phase, len(f.phases))
	copy(out, f.phases)
	return out
}

func TestConversation_FullTurn(t *testing.T) {
	f := newConversationFixture(t, nil)
	ctx := context.Background()

	f.conv.Open()
	if err := f.conv.Toggle(ctx); err != nil {
		t.Fatalf("start recording: %v", err)
	}
	if f.conv.Phase() != PhaseRecording {
		t.Fatalf("phase = %v, want recording", f.conv.Phase())
	}
	if !waitFor(func() bool { return f.stream.reads.Load() > 0 }) {
		t.Fatal("microphone was never read")
	}
	if err := f.conv.Toggle(ctx); err != nil {
		t.Fatalf("stop recording: %v", err)
	}
	f.conv.Wait()

	msgs := f.conv.Transcript().Messages()
	if len(msgs) != 2 {
		t.Fatalf("transcript has %d messages, want 2: %+v", len(msgs), msgs)
	}
	if !msgs[0].IsUser || msgs[1].IsUser || msgs[1].IsPending {
		t.Errorf("transcript = %+v", msgs)
	}
	if f.stream.released.Load() != 1 {
		t.Errorf("microphone released %d times, want 1", f.stream.released.Load())
	}
	if f.conv.Phase() != PhaseClosed {
		t.Errorf("phase = %v, want closed after a successful turn", f.conv.Phase())
	}

	want := []Phase{PhaseReady, PhaseRecording, PhaseProcessing, PhaseClosed}
	got := f.seenPhases()
	if len(got) != len(want) {
		t.Fatalf("phases = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("phase %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestConversation_PermissionDenied(t *testing.T) {
	f := newConversationFixture(t, ErrPermissionDenied)
	f.conv.Open()

	err := f.conv.StartRecording(context.Background())
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
	if f.conv.Phase() != PhaseReady {
		t.Errorf("phase = %v, want ready", f.conv.Phase())
	}
	if f.conv.Transcript().Len() != 0 {
		t.Error("transcript should be unchanged")
	}
	notices := f.notifier.all()
	if len(notices) != 1 {
		t.Fatalf("got %d notices, want 1", len(notices))
	}
	if notices[0].Message != "Unable to access microphone. Please check your permissions." {
		t.Errorf("notice message = %q", notices[0].Message)
	}
	if f.stt.calls.Load() != 0 {
		t.Error("nothing should be transcribed")
	}
}

func TestConversation_StartWhileBusy(t *testing.T) {
	f := newConversationFixture(t, nil)
	ctx := context.Background()
	f.conv.Open()

	if err := f.conv.StartRecording(ctx); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if err := f.conv.StartRecording(ctx); !errors.Is(err, ErrBusy) {
		t.Errorf("second StartRecording err = %v, want ErrBusy", err)
	}
	if f.device.acquires.Load() != 1 {
		t.Errorf("microphone acquired %d times, want 1", f.device.acquires.Load())
	}

	f.stt.block = make(chan struct{})
	if err := f.conv.StopRecording(ctx); err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
	if !waitFor(func() bool { return f.stt.calls.Load() == 1 }) {
		t.Fatal("turn never started")
	}
	if err := f.conv.StartRecording(ctx); !errors.Is(err, ErrBusy) {
		t.Errorf("StartRecording during a turn err = %v, want ErrBusy", err)
	}
	if !f.conv.Busy() {
		t.Error("Busy() = false during a turn")
	}
	close(f.stt.block)
	f.conv.Wait()

	if f.conv.Busy() {
		t.Error("Busy() = true after the turn")
	}
}

func TestConversation_StartBeforeOpen(t *testing.T) {
	f := newConversationFixture(t, nil)

	if err := f.conv.StartRecording(context.Background()); !errors.Is(err, ErrDialogClosed) {
		t.Fatalf("err = %v, want ErrDialogClosed", err)
	}
	if f.device.acquires.Load() != 0 {
		t.Errorf("microphone acquired %d times, want 0", f.device.acquires.Load())
	}
	if f.conv.Phase() != PhaseClosed {
		t.Errorf("phase = %v, want closed", f.conv.Phase())
	}
	if n := len(f.seenPhases()); n != 0 {
		t.Errorf("saw %d phase changes, want 0", n)
	}
}

func TestConversation_StopWithoutRecording(t *testing.T) {
	f := newConversationFixture(t, nil)
	if err := f.conv.StopRecording(context.Background()); !errors.Is(err, ErrNotRecording) {
		t.Errorf("err = %v, want ErrNotRecording", err)
	}
}

func TestConversation_DismissWhileRecording(t *testing.T) {
	f := newConversationFixture(t, nil)
	f.conv.Open()

	if err := f.conv.StartRecording(context.Background()); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	f.conv.Dismiss()

	if f.stream.released.Load() != 1 {
		t.Errorf("microphone released %d times, want 1", f.stream.released.Load())
	}
	if f.conv.Phase() != PhaseClosed {
		t.Errorf("phase = %v, want closed", f.conv.Phase())
	}
	if f.stt.calls.Load() != 0 {
		t.Error("a dismissed recording must not be transcribed")
	}
	if f.conv.Transcript().Len() != 0 {
		t.Error("transcript should be unchanged")
	}
}

func TestConversation_DismissDuringTurn(t *testing.T) {
	f := newConversationFixture(t, nil)
	ctx := context.Background()
	f.stt.block = make(chan struct{})
	f.conv.Open()

	if err := f.conv.StartRecording(ctx); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if err := f.conv.StopRecording(ctx); err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
	if !waitFor(func() bool { return f.stt.calls.Load() == 1 }) {
		t.Fatal("turn never started")
	}

	f.conv.Dismiss()
	close(f.stt.block)
	f.conv.Wait()

	if n := f.conv.Transcript().Len(); n != 0 {
		t.Errorf("transcript has %d messages after teardown, want 0", n)
	}
	if n := len(f.notifier.all()); n != 0 {
		t.Errorf("got %d notices after teardown, want 0", n)
	}
	if f.conv.Phase() != PhaseClosed {
		t.Errorf("phase = %v, want closed", f.conv.Phase())
	}
}

func TestConversation_TurnFailureKeepsDialogOpen(t *testing.T) {
	f := newConversationFixture(t, nil)
	ctx := context.Background()
	f.chat.err = errors.New("rate limited")
	f.conv.Open()

	if err := f.conv.StartRecording(ctx); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if err := f.conv.StopRecording(ctx); err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
	f.conv.Wait()

	if f.conv.Phase() != PhaseReady {
		t.Errorf("phase = %v, want ready", f.conv.Phase())
	}
	if n := len(f.notifier.all()); n != 1 {
		t.Errorf("got %d notices, want 1", n)
	}
}
