// Package server exposes the bot's HTTP surface: the signaling callback
// endpoint, call administration, transcript retrieval, probes, and metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/cuboid-ai/callingbot/internal/calling"
	"github.com/cuboid-ai/callingbot/internal/health"
	"github.com/cuboid-ai/callingbot/internal/observe"
	"github.com/cuboid-ai/callingbot/internal/transcript"
)

const (
	// defaultShutdownTimeout bounds graceful drain on stop.
	defaultShutdownTimeout = 15 * time.Second

	// defaultTranscriptLimit is how many entries the transcript endpoint
	// returns when the request does not name a limit.
	defaultTranscriptLimit = 50
)

// Config assembles the HTTP server's collaborators.
type Config struct {
	// Addr is the listen address, e.g. ":8080". Required.
	Addr string

	// Orchestrator handles notifications and call administration. Required.
	Orchestrator *calling.Orchestrator

	// Transcripts serves the transcript endpoint. Optional; without it the
	// endpoint reports the store as unconfigured.
	Transcripts transcript.Store

	// Health serves the probe endpoints. Optional.
	Health *health.Handler

	// CertFile and KeyFile enable TLS when both are set.
	CertFile string
	KeyFile  string

	// ShutdownTimeout overrides [defaultShutdownTimeout].
	ShutdownTimeout time.Duration
}

// Server is the bot's HTTP front end.
type Server struct {
	cfg  Config
	http *http.Server
}

// New creates a Server from cfg.
func New(cfg Config) (*Server, error) {
	var errs []error
	if cfg.Addr == "" {
		errs = append(errs, errors.New("server: Addr must not be empty"))
	}
	if cfg.Orchestrator == nil {
		errs = append(errs, errors.New("server: Orchestrator must not be nil"))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	s := &Server{cfg: cfg}
	s.http = &http.Server{
		Addr:    cfg.Addr,
		Handler: s.Handler(),
	}
	return s, nil
}

// Handler returns the full route tree wrapped in the observability
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/calling", s.handleNotifications)
	mux.HandleFunc("GET /api/calling/status", s.handleStatus)
	mux.HandleFunc("POST /api/calling/{callId}/hangup", s.handleHangup)
	mux.HandleFunc("GET /api/calling/{callId}/transcript", s.handleTranscript)
	mux.Handle("GET /metrics", promhttp.Handler())
	if s.cfg.Health != nil {
		s.cfg.Health.Register(mux)
	}
	return observe.Middleware(observe.DefaultMetrics())(mux)
}

// Run serves until ctx is cancelled, then drains in-flight requests under the
// shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		tls := s.cfg.CertFile != "" && s.cfg.KeyFile != ""
		slog.Info("server: listening", "addr", s.cfg.Addr, "tls", tls)

		var err error
		if tls {
			err = s.http.ListenAndServeTLS(s.cfg.CertFile, s.cfg.KeyFile)
		} else {
			err = s.http.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// handleNotifications accepts the signaling callback payload. Each
// notification in the envelope runs through the lifecycle machine; the
// endpoint only rejects payloads it cannot decode.
func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	var env calling.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		http.Error(w, "invalid notification payload", http.StatusBadRequest)
		return
	}

	for _, n := range env.Value {
		s.cfg.Orchestrator.ProcessNotification(r.Context(), n)
	}
	writeJSON(w, http.StatusOK, map[string]any{"handled": len(env.Value)})
}

// handleStatus reports the bot's liveness and active-call count.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "running",
		"activeCalls": s.cfg.Orchestrator.ActiveCallCount(),
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleHangup terminates a tracked call on operator request.
func (s *Server) handleHangup(w http.ResponseWriter, r *http.Request) {
	callID := r.PathValue("callId")

	err := s.cfg.Orchestrator.Hangup(r.Context(), callID)
	if errors.Is(err, calling.ErrCallNotFound) {
		http.Error(w, "call not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "hangup failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"callId": callID, "status": "ended"})
}

// handleTranscript returns a call's recent transcript entries.
func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Transcripts == nil {
		http.Error(w, "transcript store not configured", http.StatusNotImplemented)
		return
	}

	callID := r.PathValue("callId")
	limit := defaultTranscriptLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := s.cfg.Transcripts.Recent(r.Context(), callID, limit)
	if err != nil {
		observe.Logger(r.Context()).Error("transcript lookup failed", "call_id", callID, "error", err)
		http.Error(w, "transcript lookup failed", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []transcript.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"callId": callID, "entries": entries})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("server: response encode failed", "error", err)
	}
}
