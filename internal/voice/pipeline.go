package voice

import (
	"context"
	"log/slog"
	"time"

	"github.com/cuboid-ai/callingbot/internal/brain"
	"github.com/cuboid-ai/callingbot/internal/observe"
)

// defaultSpeakerTag labels utterances when the recogniser provides no
// speaker attribution.
const defaultSpeakerTag = "unknown"

// Session is the per-call mutable state the pipeline operates on. The call
// owner creates the session and hands it to the pipeline by reference; the
// pipeline mutates the mute flag and conversation history, nothing else.
type Session interface {
	// ID returns the call identifier.
	ID() string

	// Muted reports whether brain-bound content is currently suppressed.
	Muted() bool

	// SetMuted updates the mute flag.
	SetMuted(muted bool)

	// AppendTurn records one user/assistant exchange in the rolling history.
	AppendTurn(utterance, response string)

	// RecentContext returns the most recent history entries joined in order,
	// used as conversational context for the reasoning backend.
	RecentContext() string
}

// Recorder persists transcript turns for later retrieval. Implementations
// must be safe for concurrent use.
type Recorder interface {
	Record(ctx context.Context, callID, speaker, text string) error
}

// PipelineOption is a functional option for configuring a [Pipeline].
type PipelineOption func(*Pipeline)

// WithRecorder attaches a transcript recorder. Recording failures are logged
// and never interrupt the conversation.
func WithRecorder(r Recorder) PipelineOption {
	return func(p *Pipeline) {
		p.recorder = r
	}
}

// Pipeline routes recognition finals through wake-phrase detection, command
// handling, and the reasoning backend, and speaks the response back into the
// call.
//
// Pipeline holds no per-call state; per-call ordering comes from the caller,
// which delivers each call's finals sequentially. Distinct calls may be
// processed concurrently.
type Pipeline struct {
	detector *Detector
	interp   *Interpreter
	brain    brain.Responder
	recorder Recorder
}

// NewPipeline creates a Pipeline from its three stages.
func NewPipeline(detector *Detector, interp *Interpreter, responder brain.Responder, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		detector: detector,
		interp:   interp,
		brain:    responder,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// ProcessFinal runs one recognition final through the pipeline for the given
// call. Text without the wake phrase is ignored; a positive detection stops
// any in-flight playback before the utterance is handled. Control commands
// execute even while muted; muted sessions drop all brain-bound content.
func (p *Pipeline) ProcessFinal(ctx context.Context, sess Session, spk *Speaker, speaker, text string) {
	utterance, detected := p.detector.Detect(text)
	if !detected {
		return
	}

	// The user addressing the bot preempts whatever it is currently saying.
	spk.StopCurrent()

	if p.interp.Handle(ctx, sess, spk, utterance) {
		return
	}

	if sess.Muted() {
		slog.Debug("voice: dropping utterance while muted", "call_id", sess.ID())
		return
	}
	if utterance == "" {
		// Wake word alone, nothing to answer.
		return
	}
	if speaker == "" {
		speaker = defaultSpeakerTag
	}

	slog.Info("voice: routing utterance to brain",
		"call_id", sess.ID(),
		"speaker", speaker,
	)

	start := time.Now()
	resp, err := p.brain.Respond(ctx, brain.Request{
		MeetingID: sess.ID(),
		Speaker:   speaker,
		Utterance: utterance,
		History:   sess.RecentContext(),
	})
	observe.DefaultMetrics().BrainDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		// Only context cancellation surfaces here; backend failures come
		// back as the spoken fallback.
		slog.Debug("voice: brain request cancelled", "call_id", sess.ID(), "error", err)
		return
	}
	if resp.Fallback {
		observe.DefaultMetrics().RecordProviderError(ctx, "brain", "respond")
	}

	spk.Speak(ctx, resp.Speech)
	sess.AppendTurn(utterance, resp.Speech)
	observe.DefaultMetrics().RecordUtterance(ctx, sess.ID())

	p.record(ctx, sess.ID(), speaker, utterance)
	p.record(ctx, sess.ID(), "assistant", resp.Speech)
}

// record writes one transcript line, absorbing failures.
func (p *Pipeline) record(ctx context.Context, callID, speaker, text string) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.Record(ctx, callID, speaker, text); err != nil {
		slog.Warn("voice: transcript write failed", "call_id", callID, "error", err)
	}
}
