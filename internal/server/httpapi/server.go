package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrijs2005/sealbox/internal/logging"
)

// Server wraps the HTTP listener around a Handler.
type Server struct {
	srv *http.Server
	log logging.Logger
}

func NewServer(addr string, handler *Handler, log logging.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:         addr,
			Handler:      router(handler),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		log: log.With("module", "httpserver"),
	}
}

func router(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/livez", handleLiveness)

	r.Route("/api", func(r chi.Router) {
		// Share channel: capability token only, no auth.
		r.Get("/shared/{token}", h.handleShared)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware)

			r.Route("/letters", func(r chi.Router) {
				r.Post("/", h.handleCreateLetter)
				r.Get("/", h.handleListLetters)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.handleGetLetter)
					r.Patch("/schedule", h.handleUpdateSchedule)
					r.Delete("/", h.handleDeleteLetter)
					r.Post("/code", h.handleRegenerateCode)
					r.Post("/token", h.handleCreateToken)
					r.Post("/token/revoke", h.handleRevokeToken)
					r.Post("/token/rotate", h.handleRotateToken)
				})
			})
		})
	})

	return r
}

func handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"alive"}`))
}

// ListenAndServe blocks until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.log.Info(ctx, "starting HTTP server", "addr", s.srv.Addr)

	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info(ctx, "shutting down HTTP server")
	return s.srv.Shutdown(ctx)
}
