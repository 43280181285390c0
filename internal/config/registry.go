package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cuboid-ai/callingbot/internal/brain"
	"github.com/cuboid-ai/callingbot/pkg/provider/tts"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tts   map[string]func(ProviderEntry) (tts.Synthesizer, error)
	brain map[BrainBackend]func(BrainConfig) (brain.Responder, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		tts:   make(map[string]func(ProviderEntry) (tts.Synthesizer, error)),
		brain: make(map[BrainBackend]func(BrainConfig) (brain.Responder, error)),
	}
}

// RegisterTTS registers a TTS provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterTTS(name string, factory func(ProviderEntry) (tts.Synthesizer, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = factory
}

// RegisterBrain registers a brain backend factory under backend.
func (r *Registry) RegisterBrain(backend BrainBackend, factory func(BrainConfig) (brain.Responder, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.brain[backend] = factory
}

// CreateTTS instantiates a TTS provider using the factory registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Synthesizer, error) {
	r.mu.RLock()
	factory, ok := r.tts[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: tts/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateBrain instantiates the reasoning backend selected by cfg.Backend.
func (r *Registry) CreateBrain(cfg BrainConfig) (brain.Responder, error) {
	r.mu.RLock()
	factory, ok := r.brain[cfg.Backend]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: brain/%q", ErrProviderNotRegistered, cfg.Backend)
	}
	return factory(cfg)
}
