// Package web provides the HTTP status page and output control endpoints.
package web

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/sweeney/battery-controller/internal/softswitch"
	"github.com/sweeney/battery-controller/internal/status"
)

// OutputSetter switches a logical output on or off. The daemon implementation
// also publishes the change and refreshes the tracker before returning.
type OutputSetter interface {
	Switch(id softswitch.OutputID, on bool) error
}

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	outputs    OutputSetter
}

// New creates a Server that reads state from the given tracker. If outputs
// is nil the control endpoints are not mounted.
func New(addr string, tracker *status.Tracker, outputs OutputSetter) *Server {
	s := &Server{tracker: tracker, outputs: outputs}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.routes(),
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/index.html", s.handleIndex)
	r.Get("/index.json", s.handleJSON)
	if s.outputs != nil {
		r.Post("/outputs/{id}/{action}", s.handleOutput)
	}
	return r
}

// Handler returns the router. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap, s.outputs != nil)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleOutput(w http.ResponseWriter, r *http.Request) {
	id, err := softswitch.ParseOutputID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var on bool
	switch chi.URLParam(r, "action") {
	case "on":
		on = true
	case "off":
	default:
		http.Error(w, "action must be on or off", http.StatusBadRequest)
		return
	}

	if err := s.outputs.Switch(id, on); err != nil {
		log.Warnf("web: switch %s %s: %v", id, status.OnOff(on), err)
		code := http.StatusInternalServerError
		if errors.Is(err, softswitch.ErrInvalidOutput) {
			code = http.StatusBadRequest
		}
		http.Error(w, err.Error(), code)
		return
	}

	s.handleJSON(w, r)
}
