// Package llmbrain provides a [brain.Responder] that talks to an LLM provider
// directly through github.com/mozilla-ai/any-llm-go, for deployments without
// a dedicated brain endpoint.
//
// Usage:
//
//	r, err := llmbrain.New("openai", "gpt-4o-mini", []anyllmlib.Option{anyllmlib.WithAPIKey("sk-...")})
package llmbrain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/cuboid-ai/callingbot/internal/brain"
)

// systemPromptFmt shapes the model into a meeting voice assistant. The
// maxVoiceSecs constraint is surfaced as a word budget because models do not
// reason about audio durations.
const systemPromptFmt = "You are Cuboid, a helpful voice assistant sitting in a meeting call. " +
	"Answer the speaker's question concisely, in plain spoken English with no markup. " +
	"Keep the answer short enough to speak aloud in at most %d seconds."

// Responder implements brain.Responder by sending utterances to an LLM.
type Responder struct {
	backend      anyllmlib.Provider
	model        string
	maxVoiceSecs int
}

// Option configures a [Responder] during construction.
type Option func(*Responder)

// WithMaxVoiceSecs sets the spoken-response duration hint. The default is 20.
func WithMaxVoiceSecs(secs int) Option {
	return func(r *Responder) {
		r.maxVoiceSecs = secs
	}
}

// New creates a Responder backed by the named LLM provider.
//
// providerName is one of: "openai", "anthropic", "gemini", "ollama",
// "deepseek", "mistral", "groq", "llamacpp", "llamafile". model is the
// specific model to use (e.g., "gpt-4o-mini"). llmOpts are any-llm-go options
// such as anyllmlib.WithAPIKey or anyllmlib.WithBaseURL.
func New(providerName, model string, llmOpts []anyllmlib.Option, opts ...Option) (*Responder, error) {
	if providerName == "" {
		return nil, fmt.Errorf("llmbrain: providerName must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("llmbrain: model must not be empty")
	}

	backend, err := createBackend(providerName, llmOpts...)
	if err != nil {
		return nil, fmt.Errorf("llmbrain: create %q backend: %w", providerName, err)
	}

	r := &Responder{backend: backend, model: model, maxVoiceSecs: 20}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Respond implements [brain.Responder]. LLM failures are absorbed into the
// fallback response; the error is non-nil only when ctx was cancelled.
func (r *Responder) Respond(ctx context.Context, req brain.Request) (brain.Response, error) {
	if err := ctx.Err(); err != nil {
		return brain.Response{}, fmt.Errorf("llmbrain: %w", err)
	}

	messages := []anyllmlib.Message{
		{Role: anyllmlib.RoleSystem, Content: fmt.Sprintf(systemPromptFmt, r.maxVoiceSecs)},
	}
	if history := strings.TrimSpace(req.History); history != "" {
		messages = append(messages, anyllmlib.Message{
			Role:    anyllmlib.RoleSystem,
			Content: "Recent conversation:\n" + history,
		})
	}
	messages = append(messages, anyllmlib.Message{
		Role:    anyllmlib.RoleUser,
		Content: req.Utterance,
		Name:    sanitizeSpeaker(req.Speaker),
	})

	resp, err := r.backend.Completion(ctx, anyllmlib.CompletionParams{
		Model:    r.model,
		Messages: messages,
	})
	if err != nil || len(resp.Choices) == 0 {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return brain.Response{}, fmt.Errorf("llmbrain: %w", ctxErr)
		}
		slog.Warn("llm brain request failed, using fallback",
			"call_id", req.MeetingID, "error", err)
		return brain.Fallback(), nil
	}

	speech := strings.TrimSpace(resp.Choices[0].Message.ContentString())
	if speech == "" {
		slog.Warn("llm brain returned empty completion, using fallback", "call_id", req.MeetingID)
		return brain.Fallback(), nil
	}
	return brain.Response{Speech: speech}, nil
}

// sanitizeSpeaker converts a free-form speaker tag into a name value the
// OpenAI-compatible APIs accept (no spaces).
func sanitizeSpeaker(speaker string) string {
	speaker = strings.TrimSpace(speaker)
	if speaker == "" {
		return ""
	}
	return strings.ReplaceAll(speaker, " ", "_")
}

// createBackend creates the underlying any-llm-go provider for the given name.
func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "deepseek":
		return deepseek.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	case "llamacpp":
		return llamacpp.New(opts...)
	case "llamafile":
		return llamafile.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: openai, anthropic, gemini, ollama, deepseek, mistral, groq, llamacpp, llamafile", providerName)
	}
}
