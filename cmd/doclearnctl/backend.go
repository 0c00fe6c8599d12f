package main

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/doclearn/doclearn/internal/logging"
	"github.com/doclearn/doclearn/internal/server"
	"github.com/doclearn/doclearn/internal/server/avatars"
	"github.com/doclearn/doclearn/internal/server/cache"
	"github.com/doclearn/doclearn/internal/server/config"
	"github.com/doclearn/doclearn/internal/server/moderation"
	"github.com/doclearn/doclearn/internal/server/repositories/repomanager"
	"github.com/doclearn/doclearn/internal/server/services"
)

// moderator is the part of the moderation service the CLI drives.
type moderator interface {
	ListPending(ctx context.Context, moderatorID string, q services.PendingQuery) (*services.PendingPage, error)
	Diff(ctx context.Context, moderatorID, userID string) ([]moderation.FieldDiff, error)
	ApproveAll(ctx context.Context, moderatorID, userID, comment string) (*moderation.Outcome, error)
	RejectAll(ctx context.Context, moderatorID, userID, comment string) (*moderation.Outcome, error)
	ApproveSpecific(ctx context.Context, moderatorID, userID string, fields []string, comment string) (*moderation.Outcome, error)
}

// avatarWriter is the part of the profile service the avatar command uses.
type avatarWriter interface {
	AvatarUploadURL(ctx context.Context, userID string) (string, string, error)
	Submit(ctx context.Context, userID string, payload moderation.Payload) (*moderation.SubmitResult, error)
}

type backend struct {
	admin   moderator
	avatars avatarWriter
	migrate func(ctx context.Context) error
	close   func() error
}

type opener func(ctx context.Context, cfg *config.Config) (*backend, error)

// openBackend connects to postgres and redis the way the server does.
func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	logger, err := logging.New(cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db connect error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	rdb := cache.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	publisher := server.NewPublisher(cfg, logger)

	deps := services.Deps{
		DB:              db,
		Repos:           rm,
		Events:          publisher,
		Logger:          logger,
		TxRetryAttempts: cfg.TxRetryAttempts,
	}
	catalog := cache.NewCatalogCache(cache.NewCache(rdb), services.NewCatalogService(deps), cfg.CatalogCacheTTL, logger)
	engine := server.NewEngine(cfg, catalog, logger)

	var signer services.AvatarSigner
	if s, err := avatars.NewSigner(ctx, avatars.Settings{
		Region:       cfg.S3Region,
		AccessKey:    cfg.S3RootUser,
		SecretKey:    cfg.S3RootPassword,
		Bucket:       cfg.S3Bucket,
		BaseEndpoint: cfg.S3BaseEndpoint,
		URLTTL:       cfg.AvatarURLTTL,
	}); err == nil {
		signer = s
	} else {
		logger.Warn(ctx, "avatar storage disabled", "error", err)
	}

	return &backend{
		admin:   services.NewAdminModerationService(deps, engine),
		avatars: services.NewProfileService(deps, engine, signer),
		migrate: func(ctx context.Context) error { return rm.RunMigrations(ctx, db) },
		close: func() error {
			_ = publisher.Close()
			_ = rdb.Close()
			return db.Close()
		},
	}, nil
}
