package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ours334/player/internal/library"
	"github.com/ours334/player/internal/shared"
)

// Server is the HTTP layer. It owns no business logic; every route is a thin
// caller into [library.Library].
type Server struct {
	cfg    *shared.Config
	logger *log.Logger
	lib    *library.Library
	http   *http.Server
}

// New wires the router.
func New(cfg *shared.Config, lib *library.Library, logger *log.Logger) *Server {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	s := &Server{cfg: cfg, logger: logger, lib: lib}

	router := chi.NewRouter()
	router.Use(s.requestID)
	router.Use(s.logRequests)
	router.Use(middleware.Recoverer)

	router.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/logout", s.handleLogout)
		r.Get("/auth/me", s.handleMe)

		r.Post("/admin/users", s.handleCreateUser)

		r.Route("/library", func(r chi.Router) {
			r.Use(s.requireSession)
			r.Get("/favorites", s.handleListFavorites)
			r.Post("/favorites", s.handleAddFavorite)
			r.Delete("/favorites", s.handleRemoveFavorite)
			r.Get("/playlist", s.handleListPlaylist)
			r.Post("/playlist/items", s.handleAddPlaylistItem)
			r.Delete("/playlist/items", s.handleRemovePlaylistItem)
			r.Patch("/playlist/items/reorder", s.handleReorderPlaylist)
		})

		r.Post("/playback/log", s.handlePlaybackLog)
		r.Get("/playback/stats", s.handlePlaybackStats)

		r.Get("/audio", s.handleAudio)
		r.Get("/lyrics", s.handleLyrics)
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

type contextKey string

const (
	requestIDKey   contextKey = "request_id"
	sessionUserKey contextKey = "session_user"
)

// requestID tags every request with a correlation id, echoed in the
// X-Request-Id header.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = shared.GenerateID()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(wrapped, r)

		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.Status(),
			"duration", time.Since(start),
			"request_id", r.Context().Value(requestIDKey),
		)
	})
}
