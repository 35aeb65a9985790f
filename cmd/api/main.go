package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sparrowretail/shelfline-backend/api/routes"
	"github.com/sparrowretail/shelfline-backend/internal/fulfillment"
	"github.com/sparrowretail/shelfline-backend/internal/identity"
	"github.com/sparrowretail/shelfline-backend/internal/ledger"
	"github.com/sparrowretail/shelfline-backend/internal/policy"
	"github.com/sparrowretail/shelfline-backend/internal/snapshot"
	"github.com/sparrowretail/shelfline-backend/internal/summary"
	"github.com/sparrowretail/shelfline-backend/pkg/config"
	"github.com/sparrowretail/shelfline-backend/pkg/db"
	"github.com/sparrowretail/shelfline-backend/pkg/embed"
	"github.com/sparrowretail/shelfline-backend/pkg/instance"
	"github.com/sparrowretail/shelfline-backend/pkg/logger"
	"github.com/sparrowretail/shelfline-backend/pkg/metrics"
	"github.com/sparrowretail/shelfline-backend/pkg/migrate"
	"github.com/sparrowretail/shelfline-backend/pkg/outbox"
	"github.com/sparrowretail/shelfline-backend/pkg/redis"
	"github.com/sparrowretail/shelfline-backend/pkg/vectorstore"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		// A missing lock backend degrades to per-process locking only.
		logg.Warn(logg.WithField(context.Background(), "error", err.Error()), "redis unavailable, tenant locks are process-local")
		redisClient = nil
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	storeMetrics := metrics.NewStoreMetrics(registry)
	fulfillMetrics := metrics.NewFulfillmentMetrics(registry)
	policyMetrics := metrics.NewPolicyMetrics(registry)

	var store *vectorstore.Client
	if cfg.VectorStore.Configured() {
		store, err = vectorstore.NewClient(cfg.VectorStore, logg, storeMetrics)
		if err != nil {
			logg.Error(context.Background(), "failed to build store client", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(context.Background(), "vector store not configured, running degraded")
	}

	embedder, err := embed.NewHTTPEmbedder(cfg.AI)
	if err != nil {
		if !errors.Is(err, embed.ErrNotConfigured) {
			logg.Error(context.Background(), "failed to build embedder", err)
			os.Exit(1)
		}
		logg.Warn(context.Background(), "embedding service not configured, using placeholder vectors")
		embedder = nil
	}
	resolver := identity.NewResolver(embedder, cfg.VectorStore.VectorDim)

	cache := snapshot.NewCache()
	loader, err := snapshot.NewLoader(store, cache, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build snapshot loader", err)
		os.Exit(1)
	}

	policyRepo, err := policy.NewRepository(dbClient.DB())
	if err != nil {
		logg.Error(context.Background(), "failed to build policy repository", err)
		os.Exit(1)
	}
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	policyEngine, err := policy.NewEngine(policyRepo, dbClient, outboxService, store, resolver, cfg.Policy, cfg.FeatureFlags, logg, policyMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to build policy engine", err)
		os.Exit(1)
	}

	ledgerService, err := ledger.NewService(store, cache, resolver, policyEngine, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build ledger service", err)
		os.Exit(1)
	}

	fulfillEngine, err := newFulfillment(cache, ledgerService, redisClient, policyEngine, logg, fulfillMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to build fulfillment engine", err)
		os.Exit(1)
	}

	summaryService, err := summary.NewService(cache)
	if err != nil {
		logg.Error(context.Background(), "failed to build summary service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	deps := routes.Deps{
		Config:       cfg,
		Logger:       logg,
		DB:           dbClient,
		Store:        store,
		Cache:        cache,
		Loader:       loader,
		Ledger:       ledgerService,
		Fulfillment:  fulfillEngine,
		Summaries:    summaryService,
		PolicyEngine: policyEngine,
		PolicyRepo:   policyRepo,
		Metrics:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}
	if redisClient != nil {
		deps.Redis = redisClient
	}
	router := routes.NewRouter(deps)

	server := &http.Server{Addr: addr, Handler: router}
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

// newFulfillment exists to keep the nil redis case out of the wiring above:
// a nil *redis.Client must become a nil locker interface.
func newFulfillment(cache *snapshot.Cache, stock ledger.Service, redisClient *redis.Client, sink ledger.EventSink, logg *logger.Logger, m *metrics.FulfillmentMetrics) (fulfillment.Engine, error) {
	if redisClient == nil {
		return fulfillment.NewEngine(cache, stock, nil, sink, logg, m)
	}
	return fulfillment.NewEngine(cache, stock, redisClient, sink, logg, m)
}
