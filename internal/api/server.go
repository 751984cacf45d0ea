// Package api serves the web app dashboard and an HTTP bridge to the chat
// dispatcher and engine.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Veraticus/fintracker/internal/chat"
	"github.com/Veraticus/fintracker/internal/engine"
	"github.com/Veraticus/fintracker/internal/report"
	"github.com/Veraticus/fintracker/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Options configure the HTTP server.
type Options struct {
	Now            func() time.Time
	Fallback       *time.Location
	Addr           string
	Version        string
	AllowedOrigins []string
}

// Server exposes the engine over HTTP.
type Server struct {
	engine     *engine.Engine
	dispatcher *chat.Dispatcher
	storage    service.Storage
	reports    *report.Builder
	router     *gin.Engine
	now        func() time.Time
	opts       Options
}

// NewServer wires the routes.
func NewServer(eng *engine.Engine, dispatcher *chat.Dispatcher, storage service.Storage, opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Fallback == nil {
		opts.Fallback = time.UTC
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		engine:     eng,
		dispatcher: dispatcher,
		storage:    storage,
		reports:    report.NewBuilder(storage, eng.Taxonomy(), opts.Fallback),
		now:        opts.Now,
		opts:       opts,
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig(s.opts.AllowedOrigins)))
	router.Use(requestID())
	router.Use(requestLogger())

	router.GET("/health", s.health)

	api := router.Group("/api")
	{
		api.GET("/dashboard", s.dashboard)
		api.GET("/groups/:group/pending", s.listPending)
		api.POST("/groups/:group/expenses", s.createExpense)
		api.POST("/groups/:group/classify", s.classify)
		api.POST("/pending/:id/resolve", s.resolvePending)
		api.POST("/pending/:id/discard", s.discardPending)
		api.POST("/chat/messages", s.chatMessage)
		api.POST("/chat/callbacks", s.chatCallback)
	}
	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", requestIDHeader},
		ExposeHeaders: []string{"Content-Length", requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	return cfg
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", s.opts.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown failed: %w", err)
		}
		return nil
	}
}
