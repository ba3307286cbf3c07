package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"playground-transcript-feed/internal/app"
)

// NewRouter constructs the HTTP router for the service.
func NewRouter(application *app.Application) http.Handler {
	h := newHandlers(application)

	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if !application.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// API routes
	r.Route("/v1/rooms", func(r chi.Router) {
		r.Get("/", h.listRooms)
		r.Route("/{room}", func(r chi.Router) {
			r.Post("/events", h.ingestEvent)
			r.Get("/feed", h.getFeed)
			r.Post("/chat", h.sendChat)
			r.Delete("/", h.deleteRoom)
			r.Get("/ws", h.streamFeed)

			r.Get("/panel", h.getPanel)
			r.Post("/panel/{title}/toggle", h.togglePanelItem)
			r.Put("/panel/{title}/track", h.setPanelTrack)
		})
	})

	return r
}
