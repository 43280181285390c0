package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	brainmock "github.com/cuboid-ai/callingbot/internal/brain/mock"
	"github.com/cuboid-ai/callingbot/internal/calling"
	"github.com/cuboid-ai/callingbot/internal/health"
	sigmock "github.com/cuboid-ai/callingbot/internal/signaling/mock"
	"github.com/cuboid-ai/callingbot/internal/transcript"
	sttmock "github.com/cuboid-ai/callingbot/pkg/provider/stt/mock"
	ttsmock "github.com/cuboid-ai/callingbot/pkg/provider/tts/mock"
)

type serverFixture struct {
	handler   http.Handler
	orch      *calling.Orchestrator
	signaling *sigmock.Client
	store     *transcript.MemStore
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	f := &serverFixture{
		signaling: &sigmock.Client{},
		store:     transcript.NewMemStore(),
	}

	orch, err := calling.New(calling.Config{
		Signaling:     f.signaling,
		Recognizer:    &sttmock.Recognizer{},
		Synthesizer:   &ttsmock.Synthesizer{Audio: []byte("a")},
		Responder:     &brainmock.Responder{},
		Recorder:      f.store,
		GreetingDelay: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("calling.New: %v", err)
	}
	f.orch = orch

	srv, err := New(Config{
		Addr:         ":0",
		Orchestrator: orch,
		Transcripts:  f.store,
		Health:       health.New(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.handler = srv.Handler()
	return f
}

func (f *serverFixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, field := range []string{"Addr", "Orchestrator"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error does not mention %s: %v", field, err)
		}
	}
}

func TestNotifications_CreatedAnswersCall(t *testing.T) {
	t.Parallel()

	f := newServerFixture(t)
	rec := f.do("POST", "/api/calling", `{
		"value": [
			{"changeType": "created", "resource": "/communications/calls/call-1"}
		]
	}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["handled"] != float64(1) {
		t.Errorf("handled = %v, want 1", body["handled"])
	}
	if got := len(f.signaling.ActionsOf("answer")); got != 1 {
		t.Errorf("answer actions = %d, want 1", got)
	}
	if got := f.orch.ActiveCallCount(); got != 1 {
		t.Errorf("active calls = %d, want 1", got)
	}
}

func TestNotifications_MultipleInOneEnvelope(t *testing.T) {
	t.Parallel()

	f := newServerFixture(t)
	rec := f.do("POST", "/api/calling", `{
		"value": [
			{"changeType": "created", "resource": "/communications/calls/call-1"},
			{"changeType": "created", "resource": "/communications/calls/call-2"},
			{"changeType": "deleted", "resource": "/communications/calls/call-1"}
		]
	}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := f.orch.ActiveCallCount(); got != 1 {
		t.Errorf("active calls = %d, want 1", got)
	}
}

func TestNotifications_MalformedBody(t *testing.T) {
	t.Parallel()

	f := newServerFixture(t)
	rec := f.do("POST", "/api/calling", `{not json`)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestNotifications_EmptyEnvelope(t *testing.T) {
	t.Parallel()

	f := newServerFixture(t)
	rec := f.do("POST", "/api/calling", `{"value": []}`)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestStatus(t *testing.T) {
	t.Parallel()

	f := newServerFixture(t)
	f.do("POST", "/api/calling", `{"value":[{"changeType":"created","resource":"/communications/calls/call-1"}]}`)

	rec := f.do("GET", "/api/calling/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "running" {
		t.Errorf("status field = %v, want running", body["status"])
	}
	if body["activeCalls"] != float64(1) {
		t.Errorf("activeCalls = %v, want 1", body["activeCalls"])
	}
	if _, err := time.Parse(time.RFC3339, body["timestamp"].(string)); err != nil {
		t.Errorf("timestamp not RFC3339: %v", body["timestamp"])
	}
}

func TestHangup_TrackedCall(t *testing.T) {
	t.Parallel()

	f := newServerFixture(t)
	f.do("POST", "/api/calling", `{"value":[{"changeType":"created","resource":"/communications/calls/call-1"}]}`)

	rec := f.do("POST", "/api/calling/call-1/hangup", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	if got := len(f.signaling.ActionsOf("hangup")); got != 1 {
		t.Errorf("hangup actions = %d, want 1", got)
	}
	if got := f.orch.ActiveCallCount(); got != 0 {
		t.Errorf("active calls = %d, want 0", got)
	}
}

func TestHangup_UnknownCall(t *testing.T) {
	t.Parallel()

	f := newServerFixture(t)
	rec := f.do("POST", "/api/calling/nope/hangup", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestTranscript_ReturnsEntries(t *testing.T) {
	t.Parallel()

	f := newServerFixture(t)
	ctx := context.Background()
	if err := f.store.Record(ctx, "call-1", "alice", "what is the deadline?"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := f.store.Record(ctx, "call-1", "assistant", "The deadline is Friday."); err != nil {
		t.Fatalf("Record: %v", err)
	}

	rec := f.do("GET", "/api/calling/call-1/transcript", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		CallID  string             `json:"callId"`
		Entries []transcript.Entry `json:"entries"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.CallID != "call-1" {
		t.Errorf("callId = %q", body.CallID)
	}
	if len(body.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(body.Entries))
	}
	if body.Entries[0].Speaker != "alice" || body.Entries[1].Speaker != "assistant" {
		t.Errorf("entry order = %q, %q", body.Entries[0].Speaker, body.Entries[1].Speaker)
	}
}

func TestTranscript_LimitParam(t *testing.T) {
	t.Parallel()

	f := newServerFixture(t)
	ctx := context.Background()
	for _, text := range []string{"one", "two", "three"} {
		if err := f.store.Record(ctx, "call-1", "alice", text); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	rec := f.do("GET", "/api/calling/call-1/transcript?limit=1", "")
	var body struct {
		Entries []transcript.Entry `json:"entries"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Entries) != 1 || body.Entries[0].Text != "three" {
		t.Errorf("entries = %v, want newest only", body.Entries)
	}

	if rec := f.do("GET", "/api/calling/call-1/transcript?limit=bogus", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bogus limit status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestTranscript_EmptyCall(t *testing.T) {
	t.Parallel()

	f := newServerFixture(t)
	rec := f.do("GET", "/api/calling/quiet/transcript", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"entries":[]`) {
		t.Errorf("body = %s, want empty entries array", rec.Body.String())
	}
}

func TestTranscript_StoreNotConfigured(t *testing.T) {
	t.Parallel()

	orch, err := calling.New(calling.Config{
		Signaling:   &sigmock.Client{},
		Recognizer:  &sttmock.Recognizer{},
		Synthesizer: &ttsmock.Synthesizer{},
		Responder:   &brainmock.Responder{},
	})
	if err != nil {
		t.Fatalf("calling.New: %v", err)
	}
	srv, err := New(Config{Addr: ":0", Orchestrator: orch})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/calling/call-1/transcript", nil))
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotImplemented)
	}
}

func TestProbeAndMetricsRoutes(t *testing.T) {
	t.Parallel()

	f := newServerFixture(t)
	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rec := f.do("GET", path, "")
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want %d", path, rec.Code, http.StatusOK)
		}
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	f := newServerFixture(t)
	srv, err := New(Config{
		Addr:            "127.0.0.1:0",
		Orchestrator:    f.orch,
		ShutdownTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
