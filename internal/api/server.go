package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"vidpipe/internal/logging"
	"vidpipe/internal/pipeline"
)

// Controller is the daemon surface the HTTP handlers call into.
type Controller interface {
	Status(ctx context.Context) DaemonStatus
	TriggerCycle(ctx context.Context) (TriggerResponse, error)
	QueueSnapshot(ctx context.Context, history int) (QueueListResponse, error)
}

// Server exposes the daemon over HTTP on a local bind address.
type Server struct {
	bind   string
	logger *slog.Logger
	ctrl   Controller

	listener net.Listener
	server   *http.Server
}

// NewServer configures the HTTP surface. A blank bind address disables the
// server; callers get nil and may skip Start/Stop on it.
func NewServer(bind string, ctrl Controller, logger *slog.Logger) *Server {
	bind = strings.TrimSpace(bind)
	if bind == "" || ctrl == nil {
		return nil
	}

	mux := http.NewServeMux()
	srv := &Server{
		bind:   bind,
		logger: logger,
		ctrl:   ctrl,
	}

	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/trigger", srv.handleTrigger)
	mux.HandleFunc("/api/queue", srv.handleQueue)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

// Start begins listening. The server shuts down when ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Stop shuts the server down without waiting for the context.
func (s *Server) Stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.ctrl.Status(r.Context()))
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	result, err := s.ctrl.TriggerCycle(r.Context())
	if err != nil && result.Outcome == "" {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, statusForOutcome(result.Outcome), result)
}

// statusForOutcome maps cycle outcomes onto HTTP codes. Every response body
// still carries the outcome string; the code exists for curl-level checks.
func statusForOutcome(outcome string) int {
	switch pipeline.CycleOutcome(outcome) {
	case pipeline.OutcomeCompleted, pipeline.OutcomeFailed, pipeline.OutcomeNothingToDo:
		return http.StatusOK
	case pipeline.OutcomeBusy:
		return http.StatusConflict
	case pipeline.OutcomeStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	history := 0
	if value := strings.TrimSpace(r.URL.Query().Get("history")); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid history value")
			return
		}
		history = parsed
	}
	snapshot, err := s.ctrl.QueueSnapshot(r.Context(), history)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
