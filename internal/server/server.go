package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"agroai/internal/config"
	"agroai/internal/handler"
	"agroai/internal/middleware"
	"agroai/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

type Server struct {
	router *gin.Engine
	http   *http.Server
	logger *zap.Logger
}

func NewServer(cfg *config.Config, auth service.AuthService, gateway service.Gateway, logger *zap.Logger) *Server {
	router := gin.New()
	router.Use(middleware.Recovery(logger), middleware.RequestLogger(logger))

	handler.NewHandler(auth, gateway, cfg.Server.MaxUploadMB<<20, logger).RegisterRoutes(router)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         7200,
	})

	return &Server{
		router: router,
		logger: logger,
		http: &http.Server{
			Addr:         ":" + cfg.Server.Port,
			Handler:      corsHandler.Handler(router),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Handler returns the full handler chain.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server starting", zap.String("address", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("Server exited")
	return nil
}
