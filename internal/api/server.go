// Package api exposes the behaviour engine over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// Server hosts the JSON API for entity analyses and the overview.
type Server struct {
	logger  *slog.Logger
	httpSrv *http.Server
}

// NewServer builds the router and wraps it with CORS. allowedOrigins may be
// empty to deny cross-origin requests.
func NewServer(logger *slog.Logger, address string, allowedOrigins []string, handler *Handler) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", handler.Health).Methods(http.MethodGet)

	apiRouter := router.PathPrefix("/api/v1/behavior").Subrouter()
	apiRouter.HandleFunc("/entity/{type}/{id}", handler.AnalyzeEntity).Methods(http.MethodGet)
	apiRouter.HandleFunc("/overview", handler.AnalyzeOverview).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})

	return &Server{
		logger: logger,
		httpSrv: &http.Server{
			Addr:         address,
			Handler:      c.Handler(router),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start blocks serving requests until Shutdown is called or the listener
// fails.
func (s *Server) Start() error {
	s.logger.Info("http server listening", slog.String("address", s.httpSrv.Addr))
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpSrv.Shutdown(ctx)
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return s.httpSrv.Addr
}
