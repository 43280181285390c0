package voice

import (
	"context"
	"log/slog"
	"strings"
)

// Scripted lines spoken by the bot. Command confirmations are voiced so
// participants get immediate feedback without looking at a screen.
const (
	// Greeting is announced shortly after the bot joins a call.
	Greeting = "Hi all — Cuboid here. I'll stay on mute unless you say 'Cuboid'. If you'd like me to go quiet, say 'Cuboid, mute'."

	// MuteConfirmation acknowledges the mute command.
	MuteConfirmation = "I'm now muted. Say 'Cuboid, unmute' to reactivate me."

	// UnmuteConfirmation acknowledges the unmute command.
	UnmuteConfirmation = "I'm back and listening for your questions."

	// Farewell is spoken before the bot hangs up on the leave command.
	Farewell = "Thanks everyone, I'll leave you to it. Have a productive meeting!"
)

// Command is a recognised control command.
type Command int

const (
	// CommandNone means the utterance is not a control command and should be
	// routed to the reasoning backend.
	CommandNone Command = iota

	// CommandMute suppresses forwarding of utterances to the backend.
	CommandMute

	// CommandUnmute reactivates forwarding.
	CommandUnmute

	// CommandLeave makes the bot say goodbye and hang up the call.
	CommandLeave
)

// String returns the human-readable name of the command.
func (c Command) String() string {
	switch c {
	case CommandMute:
		return "mute"
	case CommandUnmute:
		return "unmute"
	case CommandLeave:
		return "leave"
	default:
		return "none"
	}
}

// ParseCommand classifies a wake-stripped utterance against the fixed command
// set. The utterance is lowercased and trimmed of surrounding whitespace and
// trailing punctuation before matching (recognisers like to append periods).
func ParseCommand(utterance string) Command {
	normalized := strings.ToLower(strings.TrimSpace(utterance))
	normalized = strings.TrimRight(normalized, ".,!?")
	switch normalized {
	case "mute":
		return CommandMute
	case "unmute":
		return CommandUnmute
	case "leave":
		return CommandLeave
	default:
		return CommandNone
	}
}

// HangupFunc asks the call owner to hang up the given call. Used by the leave
// command after the farewell has played.
type HangupFunc func(ctx context.Context, callID string) error

// Interpreter executes control commands against a call session.
//
// Interpreter holds no per-call state and is safe for concurrent use.
type Interpreter struct {
	hangup HangupFunc
}

// NewInterpreter creates an Interpreter. hangup is invoked on the leave
// command once the farewell has (estimatedly) finished playing.
func NewInterpreter(hangup HangupFunc) *Interpreter {
	return &Interpreter{hangup: hangup}
}

// Handle classifies utterance and, if it is a control command, executes it
// against sess and spk. Returns true when the utterance was handled as a
// command; false means the caller should route it to the reasoning backend.
//
// Commands are executed regardless of the session's mute state, so "unmute"
// is always reachable.
func (i *Interpreter) Handle(ctx context.Context, sess Session, spk *Speaker, utterance string) bool {
	cmd := ParseCommand(utterance)
	if cmd == CommandNone {
		return false
	}

	slog.Info("voice: executing command", "call_id", sess.ID(), "command", cmd.String())

	switch cmd {
	case CommandMute:
		sess.SetMuted(true)
		spk.Speak(ctx, MuteConfirmation)

	case CommandUnmute:
		sess.SetMuted(false)
		spk.Speak(ctx, UnmuteConfirmation)

	case CommandLeave:
		// Let the farewell play out (the speaker caps the wait) before
		// asking for the hangup.
		select {
		case <-spk.Speak(ctx, Farewell):
		case <-ctx.Done():
		}
		if i.hangup != nil {
			if err := i.hangup(ctx, sess.ID()); err != nil {
				slog.Warn("voice: hangup after leave command failed",
					"call_id", sess.ID(), "error", err)
			}
		}
	}
	return true
}
