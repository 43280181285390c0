// Command callingbot is the main entry point for the Cuboid calling bot
// server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/cuboid-ai/callingbot/internal/brain"
	"github.com/cuboid-ai/callingbot/internal/brain/llmbrain"
	"github.com/cuboid-ai/callingbot/internal/calling"
	"github.com/cuboid-ai/callingbot/internal/config"
	"github.com/cuboid-ai/callingbot/internal/health"
	"github.com/cuboid-ai/callingbot/internal/observe"
	"github.com/cuboid-ai/callingbot/internal/resilience"
	"github.com/cuboid-ai/callingbot/internal/server"
	"github.com/cuboid-ai/callingbot/internal/signaling/graphapi"
	"github.com/cuboid-ai/callingbot/internal/transcript"
	transcriptpg "github.com/cuboid-ai/callingbot/internal/transcript/postgres"
	"github.com/cuboid-ai/callingbot/internal/voice"
	"github.com/cuboid-ai/callingbot/pkg/provider/tts"
	"github.com/cuboid-ai/callingbot/pkg/provider/tts/azure"
	"github.com/cuboid-ai/callingbot/pkg/provider/tts/elevenlabs"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "callingbot: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "callingbot: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("callingbot starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "callingbot",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	synth, err := reg.CreateTTS(cfg.Speech.TTS)
	if err != nil {
		slog.Error("failed to create tts provider", "name", cfg.Speech.TTS.Name, "err", err)
		return 1
	}
	slog.Info("provider created", "kind", "tts", "name", cfg.Speech.TTS.Name)

	if len(cfg.Speech.Fallbacks) > 0 {
		failover := voice.NewFailoverSynthesizer(cfg.Speech.TTS.Name, synth, resilience.FallbackConfig{})
		for _, entry := range cfg.Speech.Fallbacks {
			fb, err := reg.CreateTTS(entry)
			if err != nil {
				slog.Error("failed to create tts fallback provider", "name", entry.Name, "err", err)
				return 1
			}
			failover.AddFallback(entry.Name, fb)
			slog.Info("provider created", "kind", "tts-fallback", "name", entry.Name)
		}
		synth = failover
	}

	responder, err := reg.CreateBrain(cfg.Brain)
	if err != nil {
		slog.Error("failed to create brain backend", "backend", cfg.Brain.Backend, "err", err)
		return 1
	}
	slog.Info("brain backend created", "backend", cfg.Brain.Backend)

	// ── Transcript store ──────────────────────────────────────────────────────
	var (
		store transcript.Store
		pool  *pgxpool.Pool
	)
	if dsn := cfg.Transcript.PostgresDSN; dsn != "" {
		pool, err = pgxpool.New(ctx, dsn)
		if err != nil {
			slog.Error("failed to connect to postgres", "err", err)
			return 1
		}
		defer pool.Close()

		pg := transcriptpg.New(pool)
		if err := pg.Migrate(ctx); err != nil {
			slog.Error("failed to migrate transcript schema", "err", err)
			return 1
		}
		store = pg
		slog.Info("transcript store ready", "backend", "postgres")
	} else {
		store = transcript.NewMemStore()
		slog.Info("transcript store ready", "backend", "memory")
	}

	// ── Signaling client ──────────────────────────────────────────────────────
	sig, err := graphapi.New(graphapi.Config{
		TenantID:     cfg.Signaling.TenantID,
		ClientID:     cfg.Signaling.ClientID,
		ClientSecret: cfg.Signaling.ClientSecret,
		BaseURL:      cfg.Signaling.BaseURL,
	})
	if err != nil {
		slog.Error("failed to create signaling client", "err", err)
		return 1
	}

	// ── Wake-phrase detector ──────────────────────────────────────────────────
	var detectorOpts []voice.DetectorOption
	if cfg.Voice.PhoneticMatching {
		detectorOpts = append(detectorOpts, voice.WithPhoneticMatcher(voice.NewPhoneticMatcher()))
	}
	detector := voice.NewDetector(cfg.Voice.WakePhrase, detectorOpts...)

	// ── Orchestrator ──────────────────────────────────────────────────────────
	orch, err := calling.New(calling.Config{
		Signaling:     sig,
		Recognizer:    mediaPendingRecognizer{},
		Synthesizer:   synth,
		Responder:     responder,
		Recorder:      store,
		Detector:      detector,
		CallbackURI:   cfg.Signaling.CallbackURI,
		Voice:         cfg.Speech.Voice,
		GreetingDelay: cfg.Voice.GreetingDelay.Std(),
		PlaybackCap:   cfg.Voice.PlaybackCap.Std(),
	})
	if err != nil {
		slog.Error("failed to initialise orchestrator", "err", err)
		return 1
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	srvCfg := server.Config{
		Addr:         cfg.Server.ListenAddr,
		Orchestrator: orch,
		Transcripts:  store,
		Health:       health.New(buildCheckers(cfg, pool)...),
	}
	if cfg.Server.TLS != nil {
		srvCfg.CertFile = cfg.Server.TLS.CertFile
		srvCfg.KeyFile = cfg.Server.TLS.KeyFile
	}
	srv, err := server.New(srvCfg)
	if err != nil {
		slog.Error("failed to initialise server", "err", err)
		return 1
	}

	printStartupSummary(cfg)
	slog.Info("server ready — press Ctrl+C to shut down")

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	orch.Shutdown(shutdownCtx)

	if err := shutdownTelemetry(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown error", "err", err)
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires the built-in TTS and brain factories into
// reg. Each factory receives its config block and constructs the provider
// from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("azure", func(entry config.ProviderEntry) (tts.Synthesizer, error) {
		var opts []azure.Option
		if outputFmt := optString(entry.Options, "output_format"); outputFmt != "" {
			opts = append(opts, azure.WithOutputFormat(outputFmt))
		}
		return azure.New(entry.APIKey, optString(entry.Options, "region"), opts...)
	})

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Synthesizer, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if outputFmt := optString(entry.Options, "output_format"); outputFmt != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(outputFmt))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	// ── Brain ─────────────────────────────────────────────────────────────────

	reg.RegisterBrain(config.BrainHTTP, func(cfg config.BrainConfig) (brain.Responder, error) {
		breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name: "brain",
		})
		return brain.NewHTTPClient(cfg.URL,
			brain.WithTimeout(cfg.Timeout.Std()),
			brain.WithMaxVoiceSecs(cfg.MaxVoiceSecs),
			brain.WithCircuitBreaker(breaker),
		)
	})

	reg.RegisterBrain(config.BrainLLM, func(cfg config.BrainConfig) (brain.Responder, error) {
		var llmOpts []anyllmlib.Option
		if cfg.LLM.APIKey != "" {
			llmOpts = append(llmOpts, anyllmlib.WithAPIKey(cfg.LLM.APIKey))
		}
		if cfg.LLM.BaseURL != "" {
			llmOpts = append(llmOpts, anyllmlib.WithBaseURL(cfg.LLM.BaseURL))
		}
		return llmbrain.New(cfg.LLM.Name, cfg.LLM.Model, llmOpts,
			llmbrain.WithMaxVoiceSecs(cfg.MaxVoiceSecs))
	})
}

// buildCheckers assembles the readiness probes from the configured
// dependencies.
func buildCheckers(cfg *config.Config, pool *pgxpool.Pool) []health.Checker {
	checkers := []health.Checker{
		{Name: "signaling", Check: func(context.Context) error {
			if cfg.Signaling.ClientID == "" || cfg.Signaling.ClientSecret == "" {
				return errors.New("credentials not configured")
			}
			return nil
		}},
		{Name: "brain", Check: func(context.Context) error {
			if cfg.Brain.Backend == config.BrainHTTP && cfg.Brain.URL == "" {
				return errors.New("endpoint not configured")
			}
			return nil
		}},
	}
	if pool != nil {
		checkers = append(checkers, health.Checker{
			Name:  "transcript",
			Check: pool.Ping,
		})
	}
	return checkers
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║       Callingbot — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printEntry("Brain", string(cfg.Brain.Backend))
	printEntry("TTS", cfg.Speech.TTS.Name)
	printEntry("Voice", cfg.Speech.Voice)
	printEntry("Wake phrase", cfg.Voice.WakePhrase)
	if cfg.Transcript.PostgresDSN != "" {
		printEntry("Transcripts", "postgres")
	} else {
		printEntry("Transcripts", "memory")
	}
	printEntry("Listen addr", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printEntry(kind, value string) {
	if value == "" {
		value = "(not configured)"
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
