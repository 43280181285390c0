package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"tts": {"azure", "elevenlabs"},
	"llm": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills in the documented default values for fields left unset.
func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Brain.Backend == "" {
		cfg.Brain.Backend = BrainHTTP
	}
	if cfg.Brain.Timeout == 0 {
		cfg.Brain.Timeout = Duration(30_000_000_000) // 30s
	}
	if cfg.Brain.MaxVoiceSecs == 0 {
		cfg.Brain.MaxVoiceSecs = 20
	}
	if cfg.Voice.WakePhrase == "" {
		cfg.Voice.WakePhrase = "cuboid"
	}
	if cfg.Voice.GreetingDelay == 0 {
		cfg.Voice.GreetingDelay = Duration(2_000_000_000) // 2s
	}
	if cfg.Voice.PlaybackCap == 0 {
		cfg.Voice.PlaybackCap = Duration(20_000_000_000) // 20s
	}
	if cfg.Speech.Voice == "" {
		cfg.Speech.Voice = "en-GB-LibbyNeural"
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Brain
	if !cfg.Brain.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("brain.backend %q is invalid; valid values: http, llm", cfg.Brain.Backend))
	}
	switch cfg.Brain.Backend {
	case BrainHTTP:
		if cfg.Brain.URL == "" {
			errs = append(errs, errors.New("brain.url is required for the http backend"))
		}
	case BrainLLM:
		if cfg.Brain.LLM.Name == "" {
			errs = append(errs, errors.New("brain.llm.name is required for the llm backend"))
		} else {
			validateProviderName("llm", cfg.Brain.LLM.Name)
		}
		if cfg.Brain.LLM.Model == "" {
			errs = append(errs, errors.New("brain.llm.model is required for the llm backend"))
		}
	}
	if cfg.Brain.MaxVoiceSecs < 0 {
		errs = append(errs, fmt.Errorf("brain.max_voice_secs %d must not be negative", cfg.Brain.MaxVoiceSecs))
	}

	// Speech
	validateProviderName("tts", cfg.Speech.TTS.Name)
	if cfg.Speech.TTS.Name == "" {
		slog.Warn("speech.tts is not configured; the bot will not be able to speak")
	}
	for i, fb := range cfg.Speech.Fallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("speech.fallbacks[%d].name must not be empty", i))
			continue
		}
		validateProviderName("tts", fb.Name)
	}

	// Signaling availability warnings
	if cfg.Signaling.ClientID == "" || cfg.Signaling.ClientSecret == "" {
		slog.Warn("signaling credentials are not configured; answer/reject/hangup actions will fail")
	}
	if cfg.Signaling.CallbackURI == "" {
		slog.Warn("signaling.callback_uri is empty; answered calls will not deliver notifications")
	}

	// Transcript availability
	if cfg.Transcript.PostgresDSN == "" {
		slog.Warn("transcript.postgres_dsn is empty; call transcripts will be kept in memory only")
	}

	return errors.Join(errs...)
}

// validateProviderName warns when name is not one of the known provider names
// for the given kind. Unknown names are permitted; the registry is extensible.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if !slices.Contains(known, name) {
		slog.Warn("unrecognised provider name", "kind", kind, "name", name, "known", known)
	}
}
