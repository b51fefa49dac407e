package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/Arlo-O/FinalDelivery-Project-FCS/internal/events"
	"github.com/Arlo-O/FinalDelivery-Project-FCS/internal/render"
	"github.com/Arlo-O/FinalDelivery-Project-FCS/internal/runner"
	"github.com/Arlo-O/FinalDelivery-Project-FCS/internal/storage/postgres"
	"github.com/Arlo-O/FinalDelivery-Project-FCS/internal/traffic"
)

// History lists stored episodes. The Postgres client satisfies it.
type History interface {
	RecentEpisodes(ctx context.Context, limit int) ([]postgres.EpisodeRow, error)
}

// Server exposes a simulation session over HTTP.
type Server struct {
	session   *runner.Session
	bus       *events.Bus
	auth      *AuthConfig
	tls       *TLSConfig
	history   History
	readiness *Readiness
	startTime time.Time
}

// Options configures optional server features.
type Options struct {
	Auth    *AuthConfig
	TLS     *TLSConfig
	History History
}

// NewServer creates a server for session. Events are read from bus.
func NewServer(session *runner.Session, bus *events.Bus, opts Options) *Server {
	return &Server{
		session:   session,
		bus:       bus,
		auth:      opts.Auth,
		tls:       opts.TLS,
		history:   opts.History,
		readiness: &Readiness{},
		startTime: time.Now(),
	}
}

// Readiness returns the dependency status tracker.
func (s *Server) Readiness() *Readiness {
	return s.readiness
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/ready", s.readyHandler)
	mux.HandleFunc("/state", s.stateHandler)
	mux.HandleFunc("/render", s.renderHandler)
	mux.HandleFunc("/events", s.eventsHandler)
	mux.HandleFunc("/history", s.historyHandler)
	mux.HandleFunc("/metrics", s.metricsHandler)
	mux.HandleFunc("/ws", s.wsEventsHandler)
	mux.HandleFunc("/ui", s.uiHandler)
	mux.HandleFunc("/control/reset", s.auth.RequireAnyRole(s.resetHandler))
	mux.HandleFunc("/control/step", s.auth.RequireAnyRole(s.stepHandler))
	return mux
}

type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Hostname  string `json:"hostname"`
	Timestamp string `json:"ts"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	host, _ := os.Hostname()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Service:   "trafficsim",
		Hostname:  host,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) stateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, ControlResponse{Error: "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, s.session.View())
}

func (s *Server) renderHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := render.Render(w, s.session.View()); err != nil {
		log.Printf("render failed: %v", err)
	}
}

func (s *Server) eventsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.bus.RecentEvents(queryInt(r, "limit", 0)))
}

// HistoryResponse pairs stored episodes with their summary.
type HistoryResponse struct {
	Summary  runner.Summary        `json:"summary"`
	Episodes []postgres.EpisodeRow `json:"episodes"`
}

func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusServiceUnavailable, ControlResponse{Error: "episode history not configured"})
		return
	}
	rows, err := s.history.RecentEpisodes(r.Context(), queryInt(r, "limit", 100))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ControlResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Summary: runner.Summarize(rows), Episodes: rows})
}

// StepRequest carries one action code per intersection.
type StepRequest struct {
	Actions []int `json:"actions"`
}

// ControlResponse is returned by the control endpoints. Reset fills
// Observation; step fills Result.
type ControlResponse struct {
	OK          bool                `json:"ok"`
	Error       string              `json:"error,omitempty"`
	Result      *traffic.StepResult `json:"result,omitempty"`
	Observation traffic.Observation `json:"observation,omitempty"`
}

func (s *Server) resetHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, ControlResponse{Error: "method not allowed"})
		return
	}

	obs := s.session.Reset()
	view := s.session.View()
	s.bus.Emit("info", "session.reset", "", map[string]interface{}{
		"episode": view.Episode,
		"remote":  r.RemoteAddr,
	})
	writeJSON(w, http.StatusOK, ControlResponse{OK: true, Observation: obs})
}

func (s *Server) stepHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, ControlResponse{Error: "method not allowed"})
		return
	}

	var req StepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ControlResponse{Error: "invalid JSON"})
		return
	}

	actions := make([]traffic.Action, len(req.Actions))
	for i, a := range req.Actions {
		actions[i] = traffic.Action(a)
	}

	res, err := s.session.Step(actions)
	switch {
	case errors.Is(err, traffic.ErrInvalidAction), errors.Is(err, traffic.ErrActionCount):
		s.bus.Emit("warn", "action.invalid", err.Error(), map[string]interface{}{
			"actions": req.Actions,
			"remote":  r.RemoteAddr,
		})
		writeJSON(w, http.StatusBadRequest, ControlResponse{Error: err.Error()})
		return
	case errors.Is(err, traffic.ErrEpisodeDone):
		writeJSON(w, http.StatusConflict, ControlResponse{Error: err.Error()})
		return
	case err != nil:
		s.bus.Emit("error", "system.error", "step failed", map[string]interface{}{
			"error": err.Error(),
		})
		writeJSON(w, http.StatusInternalServerError, ControlResponse{Error: err.Error()})
		return
	}

	s.bus.Emit("info", "session.step", "", map[string]interface{}{
		"step":    res.Info.Step,
		"actions": req.Actions,
		"reward":  res.Reward,
		"done":    res.Done,
	})
	writeJSON(w, http.StatusOK, ControlResponse{OK: true, Result: &res})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func queryInt(r *http.Request, key string, def int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil {
		return v
	}
	return def
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
// TLS is used when configured.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.Handler(),
	}

	useTLS := false
	if s.tls.Enabled() {
		cfg, err := s.tls.Load()
		if err != nil {
			return err
		}
		srv.TLSConfig = cfg
		useTLS = true
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("API listening on %s (tls=%v)\n", srv.Addr, useTLS)
		var err error
		if useTLS {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.bus.CloseAllSubscribers()
		return srv.Shutdown(shutdownCtx)
	}
}
