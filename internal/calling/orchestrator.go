package calling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cuboid-ai/callingbot/internal/brain"
	"github.com/cuboid-ai/callingbot/internal/observe"
	"github.com/cuboid-ai/callingbot/internal/signaling"
	"github.com/cuboid-ai/callingbot/internal/voice"
	"github.com/cuboid-ai/callingbot/pkg/provider/stt"
	"github.com/cuboid-ai/callingbot/pkg/provider/tts"
)

// ErrCallNotFound is returned by [Orchestrator.Hangup] when the call is not
// in the active registry.
var ErrCallNotFound = errors.New("orchestrator: call not found")

const (
	// DefaultGreetingDelay is the settle time between audio initialisation
	// and the scripted greeting.
	DefaultGreetingDelay = 2 * time.Second

	// recognitionSampleRate is the audio sample rate of the call media path.
	recognitionSampleRate = 16000
)

// Config assembles the collaborators and tuning knobs for an [Orchestrator].
// Everything is explicit configuration injected at startup; nothing is read
// from the process environment at call time.
type Config struct {
	// Signaling performs answer/reject/hangup actions. Required.
	Signaling signaling.Client

	// Recognizer opens per-call speech recognition streams. Required.
	Recognizer stt.Recognizer

	// Synthesizer renders response text as audio. Required.
	Synthesizer tts.Synthesizer

	// Responder is the reasoning backend. Required.
	Responder brain.Responder

	// Recorder persists transcript turns. Optional.
	Recorder voice.Recorder

	// Detector is the wake-phrase detector. Defaults to the standard phrase.
	Detector *voice.Detector

	// CallbackURI is the address the signaling service posts follow-up
	// notifications to.
	CallbackURI string

	// Voice is the TTS voice used on all calls.
	Voice string

	// GreetingDelay overrides [DefaultGreetingDelay].
	GreetingDelay time.Duration

	// PlaybackCap bounds the estimated playback wait per response.
	PlaybackCap time.Duration

	// Player builds the media sink for one call. When nil, synthesized audio
	// is dropped after synthesis (the media host integration point).
	Player func(callID string) voice.PlayFunc

	// Language is the recognition language hint. Empty lets the provider
	// auto-detect.
	Language string
}

// Orchestrator is the top-level coordinator: it consumes signaling
// notifications, drives session creation and teardown, and wires each call's
// recognition stream through the voice pipeline. The orchestrator exclusively
// owns the active-session registry.
//
// All exported methods are safe for concurrent use.
type Orchestrator struct {
	cfg      Config
	pipeline *voice.Pipeline

	mu       sync.Mutex
	sessions map[string]*Session
}

// New creates an Orchestrator from cfg. The four collaborator fields are
// required; all reported problems come back in one error.
func New(cfg Config) (*Orchestrator, error) {
	var errs []error
	if cfg.Signaling == nil {
		errs = append(errs, errors.New("orchestrator: Signaling must not be nil"))
	}
	if cfg.Recognizer == nil {
		errs = append(errs, errors.New("orchestrator: Recognizer must not be nil"))
	}
	if cfg.Synthesizer == nil {
		errs = append(errs, errors.New("orchestrator: Synthesizer must not be nil"))
	}
	if cfg.Responder == nil {
		errs = append(errs, errors.New("orchestrator: Responder must not be nil"))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if cfg.Detector == nil {
		cfg.Detector = voice.NewDetector(voice.DefaultWakePhrase)
	}
	if cfg.GreetingDelay <= 0 {
		cfg.GreetingDelay = DefaultGreetingDelay
	}

	o := &Orchestrator{
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}

	pipelineOpts := []voice.PipelineOption{}
	if cfg.Recorder != nil {
		pipelineOpts = append(pipelineOpts, voice.WithRecorder(cfg.Recorder))
	}
	o.pipeline = voice.NewPipeline(cfg.Detector, voice.NewInterpreter(o.Hangup), cfg.Responder, pipelineOpts...)

	return o, nil
}

// ProcessNotification drives the lifecycle state machine for one signaling
// event. Every notification runs under a recovery boundary: a panic while
// handling one event is logged and does not propagate, so a single malformed
// event cannot take down the notification stream or affect other calls.
func (o *Orchestrator) ProcessNotification(ctx context.Context, n Notification) {
	changeType := ParseChangeType(n.ChangeType)
	callID := ExtractCallID(n.Resource)

	defer func() {
		if r := recover(); r != nil {
			slog.Error("orchestrator: recovered from panic while handling notification",
				"change_type", n.ChangeType,
				"call_id", callID,
				"panic", r,
			)
			observe.DefaultMetrics().RecordNotification(ctx, changeType.String(), "panic")
		}
	}()

	switch changeType {
	case ChangeCreated:
		o.handleIncomingCall(ctx, callID)
		observe.DefaultMetrics().RecordNotification(ctx, "created", "handled")

	case ChangeUpdated:
		if _, tracked := o.lookup(callID); tracked {
			// State/media refresh hook; nothing mandatory happens here.
			slog.Debug("orchestrator: call updated", "call_id", callID)
		} else {
			slog.Warn("orchestrator: update for untracked call", "call_id", callID)
		}
		observe.DefaultMetrics().RecordNotification(ctx, "updated", "handled")

	case ChangeDeleted:
		o.endCall(callID)
		observe.DefaultMetrics().RecordNotification(ctx, "deleted", "handled")

	default:
		slog.Info("orchestrator: ignoring unrecognised change type",
			"change_type", n.ChangeType, "call_id", callID)
		observe.DefaultMetrics().RecordNotification(ctx, "unknown", "ignored")
	}
}

// handleIncomingCall answers a new call and brings up its session:
// answer → register → audio init → settle delay → greeting. When the answer
// fails the call is rejected as busy; a reject failure is logged and dropped
// (the remote party times out naturally).
func (o *Orchestrator) handleIncomingCall(ctx context.Context, callID string) {
	if _, tracked := o.lookup(callID); tracked {
		slog.Warn("orchestrator: created notification for already-tracked call", "call_id", callID)
		return
	}

	start := time.Now()
	err := o.cfg.Signaling.Answer(ctx, callID, o.cfg.CallbackURI, []string{signaling.ModalityAudio})
	observe.DefaultMetrics().SignalingDuration.Record(ctx, time.Since(start).Seconds(),
		signalingAttr("answer"))
	if err != nil {
		slog.Warn("orchestrator: answer failed, rejecting call", "call_id", callID, "error", err)
		observe.DefaultMetrics().RecordProviderError(ctx, "signaling", "answer")
		if rejectErr := o.cfg.Signaling.Reject(ctx, callID, signaling.RejectBusy); rejectErr != nil {
			// No retry: a second failure means the remote party will time
			// out on their own.
			slog.Warn("orchestrator: reject also failed, dropping call",
				"call_id", callID, "error", rejectErr)
		}
		return
	}

	// The call outlives the notification request; derive a call-scoped
	// context that keeps ctx's values but not its deadline.
	callCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	speakerOpts := []voice.SpeakerOption{voice.WithVoice(o.cfg.Voice)}
	if o.cfg.PlaybackCap > 0 {
		speakerOpts = append(speakerOpts, voice.WithPlaybackCap(o.cfg.PlaybackCap))
	}
	speaker := voice.NewSpeaker(callID, o.cfg.Synthesizer, o.player(callID), speakerOpts...)

	recognition, err := o.cfg.Recognizer.StartSession(callCtx, callID, stt.SessionConfig{
		SampleRate: recognitionSampleRate,
		Channels:   1,
		Language:   o.cfg.Language,
	})
	if err != nil {
		// The call stays up without recognition; participants still hear
		// the greeting and an operator can hang up.
		slog.Warn("orchestrator: audio initialisation failed", "call_id", callID, "error", err)
		observe.DefaultMetrics().RecordProviderError(ctx, "stt", "start_session")
		recognition = nil
	}

	sess := newSession(callID, speaker, recognition, cancel)

	o.mu.Lock()
	o.sessions[callID] = sess
	o.mu.Unlock()
	observe.DefaultMetrics().ActiveCalls.Add(ctx, 1)

	slog.Info("orchestrator: call answered", "call_id", callID)

	if recognition != nil {
		go o.consumeFinals(callCtx, sess, recognition)
	}
	go o.greet(callCtx, sess)
}

// consumeFinals feeds one call's recognition finals through the pipeline.
// Finals are processed sequentially, preserving arrival order within the
// call.
func (o *Orchestrator) consumeFinals(ctx context.Context, sess *Session, recognition stt.SessionHandle) {
	for {
		select {
		case final, ok := <-recognition.Finals():
			if !ok {
				return
			}
			o.pipeline.ProcessFinal(ctx, sess, sess.Speaker(), final.Speaker, final.Text)
		case <-ctx.Done():
			return
		}
	}
}

// greet speaks the scripted join announcement after the settle delay.
func (o *Orchestrator) greet(ctx context.Context, sess *Session) {
	select {
	case <-time.After(o.cfg.GreetingDelay):
	case <-ctx.Done():
		return
	}
	sess.Speaker().Speak(ctx, voice.Greeting)
}

// endCall tears a session down and removes it from the registry. Ending an
// untracked call is a logged no-op.
func (o *Orchestrator) endCall(callID string) {
	o.mu.Lock()
	sess, ok := o.sessions[callID]
	if ok {
		delete(o.sessions, callID)
	}
	o.mu.Unlock()

	if !ok {
		slog.Debug("orchestrator: end for untracked call", "call_id", callID)
		return
	}

	if err := sess.Close(); err != nil {
		slog.Warn("orchestrator: session teardown error", "call_id", callID, "error", err)
	}
	observe.DefaultMetrics().ActiveCalls.Add(context.Background(), -1)
	slog.Info("orchestrator: call ended",
		"call_id", callID,
		"duration", time.Since(sess.StartedAt()),
	)
}

// Hangup terminates a tracked call: it issues the hangup action to the
// signaling collaborator and follows the regular teardown path. Returns
// [ErrCallNotFound] for untracked calls.
func (o *Orchestrator) Hangup(ctx context.Context, callID string) error {
	if _, tracked := o.lookup(callID); !tracked {
		return fmt.Errorf("%w: %s", ErrCallNotFound, callID)
	}

	start := time.Now()
	err := o.cfg.Signaling.Hangup(ctx, callID)
	observe.DefaultMetrics().SignalingDuration.Record(ctx, time.Since(start).Seconds(),
		signalingAttr("hangup"))
	if err != nil {
		// Clean up defensively; the signaling side may have lost the call
		// already.
		slog.Warn("orchestrator: hangup action failed", "call_id", callID, "error", err)
		observe.DefaultMetrics().RecordProviderError(ctx, "signaling", "hangup")
	}

	o.endCall(callID)
	return nil
}

// ActiveCallCount returns the number of currently answered calls.
func (o *Orchestrator) ActiveCallCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sessions)
}

// Session returns the tracked session for callID, if any.
func (o *Orchestrator) Session(callID string) (*Session, bool) {
	return o.lookup(callID)
}

// Shutdown ends every active call. Used on process teardown.
func (o *Orchestrator) Shutdown(ctx context.Context) {
	o.mu.Lock()
	ids := make([]string, 0, len(o.sessions))
	for id := range o.sessions {
		ids = append(ids, id)
	}
	o.mu.Unlock()

	for _, id := range ids {
		if err := o.Hangup(ctx, id); err != nil && !errors.Is(err, ErrCallNotFound) {
			slog.Warn("orchestrator: shutdown hangup failed", "call_id", id, "error", err)
		}
	}
}

// lookup fetches a session from the registry.
func (o *Orchestrator) lookup(callID string) (*Session, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	sess, ok := o.sessions[callID]
	return sess, ok
}

// signalingAttr labels a SignalingDuration sample with the action name.
func signalingAttr(action string) metric.RecordOption {
	return metric.WithAttributes(attribute.String("action", action))
}

// player returns the media sink for one call, falling back to a drop-only
// sink when no media host is wired.
func (o *Orchestrator) player(callID string) voice.PlayFunc {
	if o.cfg.Player != nil {
		return o.cfg.Player(callID)
	}
	return func(_ context.Context, audio []byte) error {
		slog.Debug("orchestrator: no media sink configured, dropping audio",
			"call_id", callID, "bytes", len(audio))
		return nil
	}
}
