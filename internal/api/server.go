// Package api serves the local stats and consent endpoints plus Prometheus
// metrics.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/llehouerou/adspeed/internal/log"
	"github.com/llehouerou/adspeed/internal/session"
	"github.com/llehouerou/adspeed/internal/state"
)

// StatusSource reports the running session, if any.
type StatusSource interface {
	Status() (session.Status, bool)
}

// Config configures the server.
type Config struct {
	Store state.Interface
	// Session is optional; without it /api/session answers 404.
	Session StatusSource
	// RateLimit is the number of mutating requests allowed per minute and
	// client.
	RateLimit int
}

// Server is the HTTP handler.
type Server struct {
	router  chi.Router
	store   state.Interface
	session StatusSource
	limit   int
	log     zerolog.Logger
}

// New creates the server and registers its routes.
func New(cfg Config) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		store:   cfg.Store,
		session: cfg.Session,
		limit:   cfg.RateLimit,
		log:     log.WithComponent("api"),
	}
	if s.limit <= 0 {
		s.limit = 30
	}
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.requestLog)
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
		r.Get("/consent", s.handleGetConsent)
		r.Get("/session", s.handleSession)

		r.Group(func(r chi.Router) {
			r.Use(rateLimit(s.limit, time.Minute))
			r.Post("/stats/reset", s.handleReset)
			r.Put("/consent", s.handlePutConsent)
		})
	})
}

func rateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		}),
	)
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str(log.FieldPath, r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	c, err := s.store.Counters()
	if err != nil {
		s.log.Error().Err(err).Msg("reading counters")
		writeError(w, http.StatusInternalServerError, "could not read counters")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	if err := s.store.ResetCounters(); err != nil {
		s.log.Error().Err(err).Msg("resetting counters")
		writeError(w, http.StatusInternalServerError, "could not reset counters")
		return
	}
	s.log.Info().Msg("counters reset")
	writeJSON(w, http.StatusOK, state.Counters{})
}

type consentBody struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) handleGetConsent(w http.ResponseWriter, _ *http.Request) {
	enabled, err := s.store.Consent()
	if err != nil {
		s.log.Error().Err(err).Msg("reading consent")
		writeError(w, http.StatusInternalServerError, "could not read consent")
		return
	}
	writeJSON(w, http.StatusOK, consentBody{Enabled: &enabled})
}

func (s *Server) handlePutConsent(w http.ResponseWriter, r *http.Request) {
	var body consentBody
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil || body.Enabled == nil {
		writeError(w, http.StatusBadRequest, `expected {"enabled": true|false}`)
		return
	}
	if err := s.store.SetConsent(*body.Enabled); err != nil {
		s.log.Error().Err(err).Msg("saving consent")
		writeError(w, http.StatusInternalServerError, "could not save consent")
		return
	}
	s.log.Info().Bool("enabled", *body.Enabled).Msg("consent updated")
	writeJSON(w, http.StatusOK, body)
}

var errNoSession = errors.New("no active session")

func (s *Server) handleSession(w http.ResponseWriter, _ *http.Request) {
	if s.session == nil {
		writeError(w, http.StatusNotFound, errNoSession.Error())
		return
	}
	st, ok := s.session.Status()
	if !ok {
		writeError(w, http.StatusNotFound, errNoSession.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
