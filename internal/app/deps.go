package app

import (
	"context"
	"fmt"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/channels"
	"github.com/vidtube/backend/internal/config"
	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/handlers"
	"github.com/vidtube/backend/internal/media"
	"github.com/vidtube/backend/internal/middleware"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/storage"
)

// cleanupFunc releases resources acquired while wiring dependencies. It must
// be called during shutdown, after the HTTP server has drained.
type cleanupFunc func(context.Context) error

// buildDependencies wires together concrete implementations used by the HTTP
// handlers. The user repository doubles as the credential store backing token
// issuance, so a refresh token persisted during login is the same row the
// middleware reads back.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config) (handlers.Dependencies, cleanupFunc, error) {
	users := repositories.NewPostgresUserRepository(pool)

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		AccessSecret:  cfg.Auth.AccessTokenSecret,
		RefreshSecret: cfg.Auth.RefreshTokenSecret,
		AccessTTL:     cfg.Auth.AccessTokenTTL,
		RefreshTTL:    cfg.Auth.RefreshTokenTTL,
		Issuer:        cfg.Auth.Issuer,
	}, users)
	if err != nil {
		return handlers.Dependencies{}, nil, fmt.Errorf("configure token service: %w", err)
	}

	store, err := storage.NewS3Store(ctx, cfg.ObjectStore)
	if err != nil {
		return handlers.Dependencies{}, nil, fmt.Errorf("configure object store: %w", err)
	}

	uploader := media.NewUploader(store)
	janitor := media.NewJanitor(uploader, media.JanitorConfig{}, nil)

	profiles := channels.NewCachingReader(users, cfg.ProfileCacheTTL)

	deps := handlers.Dependencies{
		Users:         users,
		Tokens:        tokens,
		Media:         uploader,
		Janitor:       janitor,
		Profiles:      profiles,
		Invalidator:   profiles,
		Subscriptions: repositories.NewPostgresSubscriptionRepository(pool),
		Watches:       repositories.NewPostgresVideoRepository(pool),
		LoginLimiter:  middleware.NewIPRateLimiter(cfg.LoginRateLimit),
		SignupLimiter: middleware.NewIPRateLimiter(cfg.SignupRateLimit),
		RequireAuth:   auth.RequireAuth(tokens, users),
	}

	cleanup := func(context.Context) error {
		janitor.Close()
		return nil
	}

	return deps, cleanup, nil
}
