package calling

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/cuboid-ai/callingbot/internal/voice"
	"github.com/cuboid-ai/callingbot/pkg/provider/stt"
	sttmock "github.com/cuboid-ai/callingbot/pkg/provider/stt/mock"
	ttsmock "github.com/cuboid-ai/callingbot/pkg/provider/tts/mock"
)

func newTestSession(recognition *sttmock.Session) *Session {
	speaker := voice.NewSpeaker("call-1", &ttsmock.Synthesizer{Audio: []byte("a")},
		func(context.Context, []byte) error { return nil })
	_, cancel := context.WithCancel(context.Background())
	var handle stt.SessionHandle
	if recognition != nil {
		handle = recognition
	}
	return newSession("call-1", speaker, handle, cancel)
}

func TestSession_Defaults(t *testing.T) {
	t.Parallel()

	sess := newTestSession(sttmock.NewSession("call-1"))
	if sess.Muted() {
		t.Error("new session should not be muted")
	}
	if !sess.AudioActive() {
		t.Error("session with recognition should report audio active")
	}
	if sess.StartedAt().IsZero() {
		t.Error("startedAt not set")
	}

	sess.SetMuted(true)
	if !sess.Muted() {
		t.Error("SetMuted(true) not reflected")
	}
}

func TestSession_NoRecognition(t *testing.T) {
	t.Parallel()

	sess := newTestSession(nil)
	if sess.AudioActive() {
		t.Error("session without recognition should not report audio active")
	}
	if err := sess.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestSession_HistoryTrimming(t *testing.T) {
	t.Parallel()

	sess := newTestSession(nil)

	// 21 turns produce 42 raw entries; trims must keep the length bounded.
	for i := 1; i <= 21; i++ {
		sess.AppendTurn(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}

	if got := sess.HistoryLen(); got > historyMax {
		t.Errorf("history length = %d, want <= %d", got, historyMax)
	}

	// The newest entries survive, the oldest are gone (FIFO).
	ctxt := sess.RecentContext()
	if !strings.Contains(ctxt, "assistant: a21") {
		t.Errorf("context missing newest entry: %q", ctxt)
	}
	if strings.Contains(ctxt, "user: q1\n") || strings.HasPrefix(ctxt, "user: q1") {
		t.Errorf("context still holds oldest entry: %q", ctxt)
	}
}

func TestSession_RecentContext(t *testing.T) {
	t.Parallel()

	sess := newTestSession(nil)
	sess.AppendTurn("one", "1")
	sess.AppendTurn("two", "2")
	sess.AppendTurn("three", "3")

	// Six entries total; the context is the last five joined in order.
	got := sess.RecentContext()
	want := "assistant: 1\nuser: two\nassistant: 2\nuser: three\nassistant: 3"
	if got != want {
		t.Errorf("RecentContext = %q, want %q", got, want)
	}
}

func TestSession_RecentContextShortHistory(t *testing.T) {
	t.Parallel()

	sess := newTestSession(nil)
	if got := sess.RecentContext(); got != "" {
		t.Errorf("empty history context = %q, want empty", got)
	}

	sess.AppendTurn("hello", "hi")
	if got := sess.RecentContext(); got != "user: hello\nassistant: hi" {
		t.Errorf("context = %q", got)
	}
}

func TestSession_CloseIdempotent(t *testing.T) {
	t.Parallel()

	recognition := sttmock.NewSession("call-1")
	sess := newTestSession(recognition)

	if err := sess.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if !recognition.Closed() {
		t.Error("recognition not closed on teardown")
	}

	// A second Close must be a no-op, not a double release.
	if err := sess.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
