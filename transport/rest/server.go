package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

type Server struct {
	logger  *slog.Logger
	router  *chi.Mux
	rooms   roomManager
	auth    authService
	metrics http.Handler
}

// New - builds the REST router. metrics serves /metrics when not nil.
func New(logger *slog.Logger, rooms roomManager, auth authService, metrics http.Handler) *Server {
	server := &Server{
		logger:  logger.With("component", "rest"),
		router:  chi.NewRouter(),
		rooms:   rooms,
		auth:    auth,
		metrics: metrics,
	}

	server.routes()

	return server
}

func (that *Server) routes() {
	that.router.Use(chimw.RequestID)
	that.router.Use(chimw.RealIP)
	that.router.Use(chimw.Recoverer)
	that.router.Use(chimw.Timeout(10 * time.Second))

	that.router.Get("/ping", pingHandler)

	if that.metrics != nil {
		that.router.Handle("/metrics", that.metrics)
	}

	that.router.Route("/rooms", func(r chi.Router) {
		r.Get("/", that.listRooms)
		r.With(that.requireAuth).Get("/{roomID}", that.getRoom)
		r.With(that.requireAuth).Post("/", that.createRoom)
	})

	that.router.Get("/users/{userID}/history", that.gameHistory)
}

// Router - exposes the router, used by tests.
func (that *Server) Router() http.Handler {
	return that.router
}

// Start - starts HTTP server and stops it when ctx is done.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      that.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shut down HTTP server", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}
