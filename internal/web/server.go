package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sbr-consolidate/internal/config"
	"github.com/sbr-consolidate/internal/store"
	"github.com/sbr-consolidate/internal/web/handlers"
	"github.com/sbr-consolidate/internal/web/middleware"
)

// Server exposes the re-scrape feed to the scraping workers.
type Server struct {
	config     config.WebConfig
	store      *store.Store
	httpServer *http.Server
	router     *mux.Router
}

// NewServer creates a new web server instance
func NewServer(cfg config.WebConfig, s *store.Store) *Server {
	server := &Server{config: cfg, store: s}
	server.setupRoutes()

	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      server.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	apiHandler := &handlers.APIHandler{Store: s.store}

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/rescrape", apiHandler.GetRescrapeTasks).Methods(http.MethodGet)
	api.HandleFunc("/rescrape.csv", apiHandler.GetRescrapeCSV).Methods(http.MethodGet)
	api.HandleFunc("/stats", apiHandler.GetStats).Methods(http.MethodGet)
	api.HandleFunc("/health", apiHandler.Health).Methods(http.MethodGet)

	s.router.Use(middleware.CORS())
	s.router.Use(middleware.RequestLogging())
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("web: listening", zap.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return eris.Wrap(err, "web: serve")
		}
		return nil
	case <-ctx.Done():
	}

	zap.L().Info("web: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "web: shutdown")
	}
	zap.L().Info("web: stopped")
	return nil
}
