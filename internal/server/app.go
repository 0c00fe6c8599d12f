// Package server wires the doclearn components together and runs the HTTP
// API and the gRPC health endpoint until the process is signalled.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/doclearn/doclearn/internal/logging"
	"github.com/doclearn/doclearn/internal/server/avatars"
	"github.com/doclearn/doclearn/internal/server/cache"
	"github.com/doclearn/doclearn/internal/server/config"
	"github.com/doclearn/doclearn/internal/server/events"
	"github.com/doclearn/doclearn/internal/server/httpapi"
	"github.com/doclearn/doclearn/internal/server/metrics"
	"github.com/doclearn/doclearn/internal/server/moderation"
	"github.com/doclearn/doclearn/internal/server/repositories/repomanager"
	"github.com/doclearn/doclearn/internal/server/services"
	"github.com/doclearn/doclearn/internal/server/verification"

	gs "github.com/doclearn/doclearn/internal/server/grpc"
)

const tokenPurgeInterval = time.Hour

type App struct {
	config    *config.Config
	logger    logging.Logger
	db        *sql.DB
	redis     *redis.Client
	publisher events.Publisher
	users     *services.UserService
	http      *httpapi.Server
	health    *gs.HealthServer
}

// NewPublisher returns a kafka publisher when brokers are configured and a
// log publisher otherwise.
func NewPublisher(c *config.Config, logger logging.Logger) events.Publisher {
	if len(c.KafkaBrokers) == 0 {
		return events.NewLogPublisher(logger)
	}
	return events.NewKafkaPublisher(events.NewKafkaWriter(c.KafkaBrokers, c.KafkaTopic, logger), logger)
}

// NewEngine builds the moderation engine over catalog.
func NewEngine(c *config.Config, catalog moderation.Catalog, logger logging.Logger) *moderation.Engine {
	n := moderation.NewNormalizer(catalog, logger, c.StrictSpecializations)
	return moderation.NewEngine(n, moderation.WithRejectCommentMinLength(c.RejectCommentMinLength))
}

func NewApp(c *config.Config) (*App, error) {
	ctx := context.Background()

	logger, err := logging.New(c.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	rdb := cache.NewClient(c.RedisAddr, c.RedisPassword, c.RedisDB)
	kv := cache.NewCache(rdb)

	m := metrics.New()
	publisher := NewPublisher(c, logger)

	deps := services.Deps{
		DB:              db,
		Repos:           rm,
		Events:          publisher,
		Metrics:         m,
		Logger:          logger,
		TxRetryAttempts: c.TxRetryAttempts,
	}

	catalog := services.NewCatalogService(deps)
	engine := NewEngine(c, cache.NewCatalogCache(kv, catalog, c.CatalogCacheTTL, logger), logger)

	var signer services.AvatarSigner
	s, err := avatars.NewSigner(ctx, avatars.Settings{
		Region:       c.S3Region,
		AccessKey:    c.S3RootUser,
		SecretKey:    c.S3RootPassword,
		Bucket:       c.S3Bucket,
		BaseEndpoint: c.S3BaseEndpoint,
		URLTTL:       c.AvatarURLTTL,
	})
	if err != nil {
		logger.Warn(ctx, "avatar storage disabled", "error", err)
	} else {
		signer = s
	}

	profiles := services.NewProfileService(deps, engine, signer)
	admin := services.NewAdminModerationService(deps, engine)
	users := services.NewUserService(deps, verification.NewStore(kv, c.VerificationCodeTTL), services.NewLogMailer(logger), services.TokenSettings{
		Secret:          []byte(c.SecretKey),
		AccessValidity:  c.AccessTokenValidityDuration,
		RefreshValidity: c.RefreshTokenValidityDuration,
	})

	h := httpapi.NewHandler(profiles, admin, users, catalog, logger)
	router := httpapi.NewRouter(h, httpapi.RouterConfig{
		Secret:          []byte(c.SecretKey),
		AllowedOrigins:  c.CORSAllowedOrigins,
		AdminRateLimit:  c.AdminRateLimit,
		AdminRateWindow: c.AdminRateWindow,
		RateCounter:     kv,
		RateObserver:    m,
		Metrics:         m.Handler(),
	}, logger)

	health := gs.NewHealthServer(c.EndpointAddrGRPC, logger, 0, map[string]gs.Check{
		"database": db.PingContext,
		"cache":    kv.Ping,
	})

	return &App{
		config:    c,
		logger:    logger,
		db:        db,
		redis:     rdb,
		publisher: publisher,
		users:     users,
		http:      httpapi.NewServer(c.EndpointAddrHTTP, router, logger),
		health:    health,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.http.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.health.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// purgeTokens removes expired refresh tokens until ctx is done.
func (app *App) purgeTokens(ctx context.Context) {
	ticker := time.NewTicker(tokenPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := app.users.PurgeExpiredTokens(ctx); err != nil {
				app.logger.Warn(ctx, "refresh token purge failed", "error", err)
			}
		}
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.purgeTokens(ctx)
	}()

	wg.Wait()

	app.close(context.Background())
}

func (app *App) close(ctx context.Context) {
	if err := app.publisher.Close(); err != nil {
		app.logger.Warn(ctx, "event publisher close failed", "error", err)
	}
	if err := app.redis.Close(); err != nil {
		app.logger.Warn(ctx, "redis close failed", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Warn(ctx, "db close failed", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
