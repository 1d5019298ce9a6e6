// Package server exposes the webhook and ops endpoints over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/consultorio-rincon/voice-frontdesk/calendar"
	"github.com/consultorio-rincon/voice-frontdesk/config"
	"github.com/consultorio-rincon/voice-frontdesk/handlers"
)

// Server routes inbound traffic to the webhook pipeline and serves the ops
// surface.
type Server struct {
	cfg    *config.Config
	pipe   *handlers.Pipeline
	book   *calendar.Book
	log    zerolog.Logger
	router *mux.Router
}

// New builds the server and its routes.
func New(cfg *config.Config, pipe *handlers.Pipeline, book *calendar.Book, log zerolog.Logger) *Server {
	s := &Server{
		cfg:  cfg,
		pipe: pipe,
		book: book,
		log:  log,
	}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/appointments", s.handleAppointments).Methods(http.MethodGet)
	r.HandleFunc("/webhook", s.handleWebhook).Methods(http.MethodPost)
	s.router = r

	return s
}

// Router exposes the handler, mostly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.ListenAddress,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.Error().Err(err).Msg("shutdown error")
		}
	}()

	s.log.Info().Str("address", s.cfg.ListenAddress).Msg("voice front desk listening")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info().Msg("voice front desk stopped")
	return nil
}

// handleWebhook is the single collapsed entry point for every provider
// callback. It always answers 200 with a body; a malformed or unknown
// inbound shape must not leave the caller's line hanging on a 5xx.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.log.Warn().Err(err).Msg("reading webhook body failed")
		body = nil
	}
	defer r.Body.Close()

	out := s.pipe.Handle(r.Context(), r.Header.Get("Content-Type"), body, r.URL.Query())

	w.Header().Set("Content-Type", out.ContentType)
	w.WriteHeader(http.StatusOK)
	w.Write(out.Body)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{
		"message": "API del Consultorio Médico - " + s.cfg.DoctorName + " - Voice Front Desk",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"status": "healthy"})
}

func (s *Server) handleAppointments(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]any{"appointments": s.book.Appointments()})
}

func (s *Server) writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error().Err(err).Msg("encoding response failed")
	}
}
