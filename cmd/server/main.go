package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dennisdiepolder/monti/okr/internal/aggregator"
	"github.com/dennisdiepolder/monti/okr/internal/alerts"
	"github.com/dennisdiepolder/monti/okr/internal/api"
	"github.com/dennisdiepolder/monti/okr/internal/auth"
	"github.com/dennisdiepolder/monti/okr/internal/cache"
	"github.com/dennisdiepolder/monti/okr/internal/config"
	"github.com/dennisdiepolder/monti/okr/internal/facts"
	"github.com/dennisdiepolder/monti/okr/internal/metrics"
	"github.com/dennisdiepolder/monti/okr/internal/okr"
	"github.com/dennisdiepolder/monti/okr/internal/period"
	"github.com/dennisdiepolder/monti/okr/internal/scorecard"
	"github.com/dennisdiepolder/monti/okr/internal/scoring"
	"github.com/dennisdiepolder/monti/okr/internal/targets"
	"github.com/dennisdiepolder/monti/okr/pkg/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Configure logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("log_level", cfg.LogLevel).
		Str("data_source", cfg.DataSource).
		Str("cache_backend", cfg.CacheBackend).
		Msg("starting OKR scorecard server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dynamoCfg := facts.LoadDynamoConfig()

	source, closeSource, err := buildSource(ctx, cfg, dynamoCfg, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize fact source")
	}
	defer closeSource()

	store, err := buildCacheStore(ctx, cfg, dynamoCfg, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize cache")
	}

	defaults, err := targets.LoadDefaults(cfg.TargetsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load target defaults")
	}

	reader := facts.NewReader(source, log.Logger)
	periods := period.NewResolver(log.Logger)
	service := okr.NewService(okr.Components{
		Reader:  reader,
		Periods: periods,
		Aggregator: aggregator.NewAggregator(reader, periods, aggregator.Options{
			ResolvedKeywords: cfg.ResolvedKeywords,
		}, log.Logger),
		Builder: scorecard.NewBuilder(scorecard.Options{
			ParticipationDeductionMinutes: cfg.ParticipationDeductionMinutes,
		}),
		Scorer: scoring.NewScorer(cfg.Thresholds, nil),
		Alerts: alerts.NewGenerator(cfg.Thresholds),
		Cache:  cache.NewFacade(store, log.Logger),
	}, okr.Options{
		Defaults:      defaults,
		CacheTTL:      cfg.CacheTTL,
		TrendLookback: cfg.TrendLookback,
	}, log.Logger)

	authenticator := auth.NewAuthenticator(auth.Options{
		SkipAuth:        cfg.SkipAuth,
		Env:             cfg.Env,
		VerifySignature: cfg.VerifySignature,
		Issuer:          cfg.OIDCIssuer,
	}, log.Logger)

	r := newRouter(cfg, service, periods, authenticator, log.Logger)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Msgf("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")
	cancel()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// newRouter mounts the public, authenticated and admin routes
func newRouter(cfg *config.Config, service *okr.Service, periods *period.Resolver, authenticator *auth.Authenticator, logger zerolog.Logger) http.Handler {
	okrHandler := api.NewOKRHandler(service, logger)
	periodsHandler := api.NewPeriodsHandler(periods, logger)
	adminHandler := api.NewAdminHandler(service, logger)

	r := chi.NewRouter()

	// Add middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(api.Instrument)

	// Register public routes (no auth required)
	r.Get("/health", healthHandler)
	r.Get("/metrics", metrics.Get().Handler())

	// Add auth middleware for protected routes
	r.Route("/api", func(r chi.Router) {
		r.Use(authenticator.Middleware)
		r.Get("/okr", okrHandler.GetOKR)
		r.Get("/okr/trend", okrHandler.GetTrend)
		r.Get("/periods", periodsHandler.GetPeriods)

		r.With(auth.RequireRole(auth.RoleAdmin)).Delete("/okr/cache", adminHandler.InvalidateCache)
	})

	return r
}

// buildSource opens the configured fact source. The returned func releases it.
func buildSource(ctx context.Context, cfg *config.Config, dynamoCfg facts.DynamoConfig, logger zerolog.Logger) (facts.Source, func(), error) {
	noop := func() {}

	switch cfg.DataSource {
	case config.DataSourceDynamo:
		if dynamoCfg.Mode == facts.DynamoModeNone {
			return nil, noop, fmt.Errorf("DATA_SOURCE=dynamo requires DYNAMO_MODE local or aws")
		}
		client, err := facts.NewDynamoClient(ctx, dynamoCfg)
		if err != nil {
			return nil, noop, err
		}
		src, err := facts.NewDynamoDBSource(ctx, client, dynamoCfg, logger)
		if err != nil {
			return nil, noop, err
		}
		return src, noop, nil

	case config.DataSourcePostgres:
		db, err := facts.OpenPostgres(cfg.PostgresDSN)
		if err != nil {
			return nil, noop, err
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, noop, fmt.Errorf("failed to reach postgres: %w", err)
		}
		return facts.NewPostgresSource(db, cfg.PostgresPrefix, logger), func() { db.Close() }, nil

	default:
		if cfg.FixturesFile == "" {
			logger.Warn().Msg("no FIXTURES_FILE set, serving an empty in-memory source")
			return facts.NewMemorySource(), noop, nil
		}
		src, err := facts.LoadMemorySource(cfg.FixturesFile)
		if err != nil {
			return nil, noop, err
		}
		return src, noop, nil
	}
}

// buildCacheStore assembles the cache tiers: the configured hot store, then
// the DynamoDB property store when enabled.
func buildCacheStore(ctx context.Context, cfg *config.Config, dynamoCfg facts.DynamoConfig, logger zerolog.Logger) (cache.Store, error) {
	var tiers []cache.Store

	switch cfg.CacheBackend {
	case config.CacheRedis:
		store := cache.NewRedisStore(redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}))
		if err := store.Ping(ctx); err != nil {
			// the cache is advisory, keep serving without it
			logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable at startup")
		}
		tiers = append(tiers, store)
	case config.CacheMemory:
		tiers = append(tiers, cache.NewMemoryStore())
	}

	if cfg.PropertyStore == "dynamo" {
		if dynamoCfg.Mode == facts.DynamoModeNone {
			return nil, fmt.Errorf("PROPERTY_STORE=dynamo requires DYNAMO_MODE local or aws")
		}
		client, err := facts.NewDynamoClient(ctx, dynamoCfg)
		if err != nil {
			return nil, err
		}
		if dynamoCfg.Mode == facts.DynamoModeLocal {
			if err := facts.CreateTablesIfNotExist(ctx, client, dynamoCfg, logger); err != nil {
				return nil, err
			}
		}
		tiers = append(tiers, cache.NewDynamoPropertyStore(client, dynamoCfg.PropertiesTable, logger))
	}

	switch len(tiers) {
	case 0:
		return cache.NoopStore{}, nil
	case 1:
		return tiers[0], nil
	default:
		return cache.NewTiered(cfg.CacheTTL, logger, tiers...), nil
	}
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","service":"okr-scorecard"}`)
}
