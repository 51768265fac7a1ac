package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"agroai/internal/config"
	"agroai/internal/diagnosis"
	"agroai/internal/repository"
	"agroai/internal/server"
	"agroai/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig(config.Path())
	if err != nil {
		// No logger yet.
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, logger)
	stop()
	if err != nil {
		logger.Error("AgroAI stopped", zap.Error(err))
	}
	_ = logger.Sync() // Flushes buffer, if any
	if err != nil {
		os.Exit(1)
	}
}

// run wires the application and serves until ctx is done. Resources opened
// here are released before it returns.
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	db, err := repository.NewDB(cfg.Database.Driver, cfg.Database.URL, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := repository.MigrateDB(db, logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	denylist, closeDenylist, err := server.NewDenylist(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize token denylist: %w", err)
	}
	defer closeDenylist()

	users := repository.NewUserRepository(db, logger)
	tokens := service.NewTokenManager([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL, cfg.Auth.Issuer)
	auth, err := service.NewAuthService(users, service.NewPasswordHasher(service.DefaultArgon2Params), tokens, denylist, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize auth service: %w", err)
	}

	provider, err := server.NewProvider(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize AI provider: %w", err)
	}
	defer provider.Close()

	archive, err := server.NewArchive(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize image archive: %w", err)
	}

	gateway := service.NewGateway(provider, diagnosis.NewNormalizer(diagnosis.LabelStrategy{}), archive, cfg.Gateway.Timeout, logger)

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := server.NewServer(cfg, auth, gateway, logger)

	logger.Info("AgroAI is running",
		zap.String("port", cfg.Server.Port),
		zap.String("provider", provider.Name()),
		zap.String("database", cfg.Database.Driver))

	if err := srv.Run(ctx, cfg.Server.ShutdownTimeout); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Log.Development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
