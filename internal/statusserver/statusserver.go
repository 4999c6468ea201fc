// Package statusserver exposes a read-only view of the streaming
// supervisor's registry over HTTP: health, registry stats, and individual
// stream lifecycle state. It keeps the chi.Router + middleware.Logger +
// middleware.Recoverer shape and the New/routes/ServeHTTP structure used
// elsewhere in this codebase's ancestry, but it never forwards a model
// call: every handler is a GET that reads the
// supervisor's accessors (GetStats/ListStreams/GetStreamInfo) and never
// touches StartStream, keeping it out of the model-traffic path entirely.
package statusserver

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/howard-nolan/gemini-client/internal/errs"
	"github.com/howard-nolan/gemini-client/internal/streaming"
)

// Registry is the subset of *streaming.Supervisor this server reads. A
// narrow interface (rather than the concrete type) keeps it explicit that
// nothing here can start or stop a stream.
type Registry interface {
	GetStats() streaming.Stats
	ListStreams() []streaming.Info
	GetStreamInfo(id string) (streaming.Info, error)
}

// Server is the read-only operator status server.
type Server struct {
	router   chi.Router
	registry Registry
}

// New builds a Server wired to registry, with routes and middleware set up.
func New(registry Registry) *Server {
	s := &Server{registry: registry}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/streams", s.handleListStreams)
	r.Get("/streams/stats", s.handleStats)
	r.Get("/streams/{id}", s.handleStreamInfo)

	s.router = r
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListStreams(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.ListStreams())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.GetStats())
}

func (s *Server) handleStreamInfo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	info, err := s.registry.GetStreamInfo(id)
	if err != nil {
		status := http.StatusInternalServerError
		if apiErr, ok := err.(*errs.Error); ok && apiErr.Kind == errs.StreamNotFound {
			status = http.StatusNotFound
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
