package router

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"admindash/internal/api/v1/handler"
	"admindash/internal/config"
	"admindash/internal/dashboard"
	"admindash/internal/middleware"
	"admindash/internal/pubsub"
	"admindash/internal/repository"
	"admindash/internal/service"
	"admindash/internal/storage"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// New wires every dependency and returns the root handler. cleanup releases them in
// reverse order and must be called after the HTTP server has stopped.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (http.Handler, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (http.Handler, func(), error) {
		cleanup()
		return nil, nil, err
	}

	loc, err := cfg.Location()
	if err != nil {
		return fail(err)
	}

	// 1. Database pool
	pool, err := newPool(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, pool.Close)
	logger.Info().Msg("Database connection successful")

	// 2. Avatar presigning (optional)
	var avatars dashboard.AvatarSigner
	if cfg.StorageEnabled() {
		s3Client, err := storage.NewS3Client(ctx, cfg)
		if err != nil {
			return fail(err)
		}
		avatars = storage.NewAvatarSigner(s3.NewPresignClient(s3Client), cfg.S3Bucket, cfg.AvatarURLTTL())
	} else {
		logger.Warn().Msg("Storage not configured; avatar URLs are served as stored")
	}

	// 3. Validator
	validate := validator.New(validator.WithRequiredStructEnabled())

	// 4. Pub/Sub publisher
	publisher, err := pubsub.NewPublisher(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, func() {
		if err := publisher.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close Pub/Sub publisher")
		}
	})

	// 5. Stripe key, from Secret Manager when configured
	var secrets service.SecretManagerService
	if cfg.StripeSecretName != "" {
		svc, client, err := service.NewSecretManagerService(ctx, cfg)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() { _ = client.Close() })
		secrets = svc
	}
	stripeKey, err := service.ResolveStripeKey(ctx, cfg, secrets)
	if err != nil {
		return fail(err)
	}
	if stripeKey == "" {
		logger.Warn().Msg("Stripe key not configured; subscription stats will fail")
	}

	// 6. Repositories & services
	userRepo := repository.NewUserRepo(pool)
	presenceRepo := repository.NewPresenceRepo(pool)
	messageRepo := repository.NewMessageRepo(pool)
	activityRepo := repository.NewActivityRepo(pool)
	subRepo := repository.NewSubscriptionRepo(pool)
	dlqRepo := repository.NewDLQRepository(pool)

	statsSvc := service.NewStripeStatsService(service.NewStripeSubscriptionLister(stripeKey), subRepo, cfg.StripeTierPrices, logger)
	statsFn := service.NewSubscriptionStatsFunction(statsSvc, cfg.JWTSecret)
	reminderSvc := service.NewReminderService(publisher, cfg.PubSubReminderTopic, logger)
	presenceSvc := service.NewPresenceService(presenceRepo, logger)
	dlqSvc := service.NewDLQService(dlqRepo, logger)

	// 7. Per-admin dashboards
	manager := dashboard.NewManager(dashboard.Sources{
		Users:     userRepo,
		Presence:  presenceRepo,
		Messages:  messageRepo,
		Activity:  activityRepo,
		Stats:     statsFn,
		Reminders: reminderSvc,
		Avatars:   avatars,
	}, dashboard.Options{
		Location:     loc,
		FetchTimeout: cfg.FetchTimeout(),
		Logger:       logger,
	}, cfg.SessionIdleTimeout())
	manager.Run(ctx)
	closers = append(closers, manager.Close)
	sessions := handler.ManagerSessions(manager)

	dashboardHandler := handler.NewDashboardHandler(sessions, logger)
	messageHandler := handler.NewMessageHandler(sessions, validate, logger)
	trialHandler := handler.NewTrialHandler(sessions, validate, logger)
	presenceHandler := handler.NewPresenceHandler(presenceSvc, validate, logger)
	dlqHandler := handler.NewDLQHandler(dlqSvc, logger)

	// 8. Middleware
	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret, logger)
	adminOnly := middleware.AdminMiddleware(userRepo, logger)
	adminMiddleware := func(next http.Handler) http.Handler {
		return authMiddleware(adminOnly(next))
	}
	pubsubAuthMiddleware := middleware.PubSubAuthMiddleware(middleware.PushAuth{
		Emulator:       cfg.PubSubEmulatorHost != "",
		Audience:       cfg.DLQEndpointURL,
		ServiceAccount: cfg.PubSubPushServiceAccountEmail,
	}, logger)

	// 9. Routes
	apiV1Mux := http.NewServeMux()
	dashboardHandler.RegisterRoutes(apiV1Mux, adminMiddleware)
	messageHandler.RegisterRoutes(apiV1Mux, adminMiddleware)
	trialHandler.RegisterRoutes(apiV1Mux, adminMiddleware)
	presenceHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	dlqHandler.RegisterRoutes(apiV1Mux, pubsubAuthMiddleware)

	mux := http.NewServeMux()
	mux.Handle("/v1/", http.StripPrefix("/v1", apiV1Mux))
	mux.Handle("GET /metrics", promhttp.Handler())

	// Redirect /api/* to /v1/* for backward compatibility
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/")
		http.Redirect(w, r, "/v1/"+rest, http.StatusMovedPermanently)
	})

	// 10. CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	return middleware.LoggerMiddleware(logger)(c.Handler(mux)), cleanup, nil
}

func newPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DBConnectionString)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	// The hosted pooler runs in transaction mode and rejects prepared statements.
	if cfg.Environment != "development" {
		poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}
	poolCfg.MaxConns = 25
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}
