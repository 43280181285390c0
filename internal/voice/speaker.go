package voice

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cuboid-ai/callingbot/internal/observe"
	"github.com/cuboid-ai/callingbot/pkg/provider/tts"
)

// playbackBytesPerSecond is the byte rate assumed when estimating how long a
// synthesized buffer takes to play: 16 kHz, 16-bit, mono PCM. The estimate is
// a pacing placeholder, not a measured duration.
const playbackBytesPerSecond = 32000

// DefaultPlaybackCap bounds the estimated playback wait for a single
// synthesized response.
const DefaultPlaybackCap = 20 * time.Second

// PlayFunc delivers synthesized audio to the call media path. The audio is an
// opaque buffer; the media collaborator owns framing and codec concerns.
type PlayFunc func(ctx context.Context, audio []byte) error

// SpeakerOption is a functional option for configuring a [Speaker].
type SpeakerOption func(*Speaker)

// WithVoice sets the provider voice used for synthesis.
func WithVoice(voice string) SpeakerOption {
	return func(s *Speaker) {
		s.voice = voice
	}
}

// WithPlaybackCap overrides the upper bound on the estimated playback wait.
func WithPlaybackCap(limit time.Duration) SpeakerOption {
	return func(s *Speaker) {
		if limit > 0 {
			s.playbackCap = limit
		}
	}
}

// Speaker serializes speech synthesis and playback for one call. At most one
// synthesis is in flight at any instant; a new Speak cancels the previous one
// (barge-in, latest wins). Synthesis and playback failures are absorbed and
// logged — the call keeps listening.
//
// Speaker is safe for concurrent use.
type Speaker struct {
	callID      string
	synth       tts.Synthesizer
	voice       string
	play        PlayFunc
	playbackCap time.Duration

	mu      sync.Mutex
	current *synthOp
}

// synthOp is the cancellation handle for one in-flight synthesis.
type synthOp struct {
	cancel context.CancelFunc
}

// NewSpeaker creates a Speaker for the given call. synth performs synthesis
// and play delivers the resulting audio to the call.
func NewSpeaker(callID string, synth tts.Synthesizer, play PlayFunc, opts ...SpeakerOption) *Speaker {
	s := &Speaker{
		callID:      callID,
		synth:       synth,
		play:        play,
		playbackCap: DefaultPlaybackCap,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Speak cancels any in-flight synthesis for this call and starts synthesizing
// and playing text. The returned channel is closed when playback (estimated)
// completes, fails, or is cancelled by a newer Speak.
//
// Empty or whitespace-only text is a no-op: the returned channel is already
// closed and any in-flight synthesis keeps playing.
func (s *Speaker) Speak(ctx context.Context, text string) <-chan struct{} {
	done := make(chan struct{})
	if strings.TrimSpace(text) == "" {
		close(done)
		return done
	}

	opCtx, cancel := context.WithCancel(ctx)
	op := &synthOp{cancel: cancel}

	s.mu.Lock()
	if s.current != nil {
		s.current.cancel()
		observe.DefaultMetrics().RecordBargeIn(ctx, s.callID)
		slog.Debug("speaker: barge-in, cancelling previous synthesis", "call_id", s.callID)
	}
	s.current = op
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer s.release(op)
		s.run(opCtx, text)
	}()
	return done
}

// run synthesizes text and plays it, then waits for the estimated playback
// duration so consecutive responses do not pile onto the media path.
func (s *Speaker) run(ctx context.Context, text string) {
	start := time.Now()
	audio, err := s.synth.Synthesize(ctx, text, s.voice)
	observe.DefaultMetrics().TTSDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			slog.Debug("speaker: synthesis cancelled", "call_id", s.callID)
			return
		}
		slog.Warn("speaker: synthesis failed", "call_id", s.callID, "error", err)
		observe.DefaultMetrics().RecordProviderError(ctx, "tts", "synthesize")
		return
	}

	// The engine may hand back completed audio even after it was asked to
	// stop; a cancelled operation's audio must never reach the call.
	if ctx.Err() != nil {
		slog.Debug("speaker: synthesis cancelled", "call_id", s.callID)
		return
	}

	if err := s.play(ctx, audio); err != nil {
		if ctx.Err() == nil {
			slog.Warn("speaker: playback failed", "call_id", s.callID, "error", err)
		}
		return
	}

	select {
	case <-time.After(estimatePlayback(len(audio), s.playbackCap)):
	case <-ctx.Done():
	}
}

// release clears the current-operation handle if it still belongs to op.
func (s *Speaker) release(op *synthOp) {
	s.mu.Lock()
	defer s.mu.Unlock()
	op.cancel()
	if s.current == op {
		s.current = nil
	}
}

// StopCurrent cancels any in-flight synthesis or playback. Cancellation is
// cooperative: no further audio from the cancelled operation reaches the call
// once a new Speak has started.
func (s *Speaker) StopCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.cancel()
		s.current = nil
	}
}

// estimatePlayback derives an approximate playback duration from the audio
// byte length, bounded by limit.
func estimatePlayback(audioLen int, limit time.Duration) time.Duration {
	d := time.Duration(audioLen) * time.Second / playbackBytesPerSecond
	if d > limit {
		return limit
	}
	return d
}
