package server

import (
	"context"
	"fmt"

	"agroai/internal/chatapi"
	"agroai/internal/config"
	"agroai/internal/gemini"
	"agroai/internal/llm"
	"agroai/internal/repository"
	"agroai/internal/service"
	"agroai/internal/storage"

	"go.uber.org/zap"
)

// NewProvider builds the configured provider wrapped in the rate limiter.
func NewProvider(ctx context.Context, cfg *config.Config, logger *zap.Logger) (llm.Provider, error) {
	var (
		provider llm.Provider
		err      error
	)

	switch typ := llm.ProviderType(cfg.Provider.Type); typ {
	case llm.ProviderGemini:
		provider, err = gemini.NewClient(ctx, gemini.Config{
			APIKey:          cfg.Provider.APIKey,
			ModelName:       cfg.Provider.ModelName,
			VisionModelName: cfg.Provider.VisionModelName,
		}, logger)
	case llm.ProviderGroq, llm.ProviderOpenRouter:
		provider, err = chatapi.NewClient(chatapi.Config{
			Provider:        typ,
			APIKey:          cfg.Provider.APIKey,
			BaseURL:         cfg.Provider.BaseURL,
			ModelName:       cfg.Provider.ModelName,
			VisionModelName: cfg.Provider.VisionModelName,
		}, logger)
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", typ)
	}
	if err != nil {
		return nil, err
	}

	return llm.NewRateLimitedProvider(provider, cfg.Provider.RequestsPerMinute, logger), nil
}

// NewDenylist returns the configured revocation backend and a cleanup func. The
// "none" backend yields a nil denylist.
func NewDenylist(ctx context.Context, cfg *config.Config, logger *zap.Logger) (service.TokenDenylist, func(), error) {
	switch cfg.Revocation.Backend {
	case "none":
		logger.Warn("Token revocation disabled, tokens stay valid until expiry")
		return nil, func() {}, nil
	case "memory":
		return service.NewMemoryDenylist(), func() {}, nil
	case "redis":
		r := cfg.Revocation.Redis
		rdb, err := repository.NewRedisClient(ctx, r.Addr, r.Password, r.DB)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		logger.Info("Redis token denylist enabled", zap.String("addr", r.Addr))
		return repository.NewRedisDenylist(rdb), func() { _ = rdb.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unsupported revocation backend: %s", cfg.Revocation.Backend)
}

// NewArchive returns the image archive, or nil when it is disabled.
func NewArchive(ctx context.Context, cfg *config.Config, logger *zap.Logger) (service.ImageArchive, error) {
	if !cfg.Archive.Enabled {
		return nil, nil
	}
	a := cfg.Archive
	store, err := storage.NewMinioStore(ctx, a.Endpoint, a.AccessKey, a.SecretKey, a.Bucket, a.UseSSL)
	if err != nil {
		return nil, err
	}
	logger.Info("Image archive enabled", zap.String("endpoint", a.Endpoint), zap.String("bucket", a.Bucket))
	return store, nil
}
