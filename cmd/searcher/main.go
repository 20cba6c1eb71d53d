package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/talfrim/searchengine/internal/analytics"
	"github.com/talfrim/searchengine/internal/docstore"
	"github.com/talfrim/searchengine/internal/index"
	"github.com/talfrim/searchengine/internal/search"
	"github.com/talfrim/searchengine/internal/search/cache"
	"github.com/talfrim/searchengine/internal/search/handler"
	"github.com/talfrim/searchengine/internal/search/semantic"
	"github.com/talfrim/searchengine/internal/search/tokenizer"
	"github.com/talfrim/searchengine/pkg/config"
	"github.com/talfrim/searchengine/pkg/health"
	"github.com/talfrim/searchengine/pkg/kafka"
	"github.com/talfrim/searchengine/pkg/logger"
	"github.com/talfrim/searchengine/pkg/metrics"
	"github.com/talfrim/searchengine/pkg/middleware"
	"github.com/talfrim/searchengine/pkg/postgres"
	pkgredis "github.com/talfrim/searchengine/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "data_dir", cfg.Index.DataDir)

	m := metrics.New()
	var metricsShutdown func(context.Context) error
	if cfg.Metrics.Enabled {
		metricsShutdown = metrics.StartServer(cfg.Metrics.Port)
	}

	mode := index.Unstemmed
	if cfg.Index.Stemming {
		mode = index.Stemmed
	}

	stopWords, err := tokenizer.LoadStopWords(cfg.Search.StopWordsFile)
	if err != nil {
		slog.Error("failed to load stop words", "path", cfg.Search.StopWordsFile, "error", err)
		os.Exit(1)
	}
	tok := tokenizer.New(mode, stopWords)

	// The service can start without a dictionary; queries fail with a
	// conflict until one is built or reloaded.
	var dict *index.Dictionary
	dict, err = index.Load(cfg.Index.DataDir, mode)
	if err != nil {
		slog.Warn("no dictionary loaded at startup", "variant", mode.String(), "error", err)
		dict = nil
	} else {
		slog.Info("dictionary loaded",
			"variant", mode.String(),
			"terms", dict.TermCount(),
			"documents", dict.DocCount(),
		)
	}

	store, err := docstore.Open(cfg.DocStore.Dir, cfg.DocStore.Partitions, cfg.DocStore.Preload)
	if err != nil {
		slog.Warn("document store unavailable, results will carry no metadata",
			"dir", cfg.DocStore.Dir, "error", err)
		store = nil
	}

	var expander semantic.Expander
	if cfg.Search.ExpansionFile != "" {
		exp, err := semantic.LoadStatic(cfg.Search.ExpansionFile)
		if err != nil {
			slog.Warn("semantic expansion table unavailable", "path", cfg.Search.ExpansionFile, "error", err)
		} else {
			expander = exp
		}
	}

	svc, err := search.NewService(
		cfg.Index.DataDir, dict, store, tok, expander,
		cfg.Ranking, cfg.Search.ScoringConcurrency, m,
	)
	if err != nil {
		slog.Error("failed to create search service", "error", err)
		os.Exit(1)
	}
	svc.SetStopWords(stopWords)
	defer svc.Close()

	var queryCache *cache.QueryCache
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, search caching disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
		queryCache = cache.New(redisClient, cfg.Redis)
		slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
	defer analyticsProducer.Close()
	collector := analytics.NewCollector(analyticsProducer, 10000)
	collector.Start(ctx)
	defer collector.Close()
	slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.AnalyticsEvents)

	var (
		analyticsStore *analytics.Store
		recorder       *analytics.Recorder
	)
	if pgClient, err := postgres.New(cfg.Postgres); err != nil {
		slog.Warn("postgres unavailable, analytics persistence disabled", "error", err)
	} else {
		defer pgClient.Close()
		analyticsStore = analytics.NewStore(pgClient)
		recorder = analytics.NewRecorder(analyticsStore, 256)
		recorder.Start(ctx, 30*time.Second)
	}

	// The consumer and the aggregator reference each other; the handler
	// closure resolves the aggregator lazily to break the cycle.
	var aggregator *analytics.Aggregator
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents,
		func(ctx context.Context, key, value []byte) error {
			return analytics.HandleEvent(aggregator, recorder)(ctx, key, value)
		})
	aggregator = analytics.NewAggregator(consumer)
	go func() {
		if err := aggregator.Start(ctx); err != nil && ctx.Err() == nil {
			slog.Error("analytics aggregator error", "error", err)
		}
	}()
	analyticsH := analytics.NewHandler(aggregator, analyticsStore)

	if analyticsStore != nil {
		analyticsStore.StartPeriodicSave(ctx, aggregator, 5*time.Minute)
	}

	checker := health.NewChecker()
	checker.Register("dictionary", func(ctx context.Context) health.ComponentHealth {
		if svc.Loaded() {
			return health.ComponentHealth{
				Status:  health.StatusUp,
				Message: fmt.Sprintf("%s variant active", svc.Mode()),
			}
		}
		return health.ComponentHealth{Status: health.StatusDown, Message: "no dictionary loaded"}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	h := handler.New(svc, queryCache, collector, m, cfg.Search.DefaultLimit, cfg.Search.MaxResults)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("POST /api/v1/index/reset", h.Reset)
	mux.HandleFunc("POST /api/v1/index/reload", h.Reload)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
	mux.HandleFunc("GET /api/v1/analytics/snapshot", analyticsH.Snapshot)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if metricsShutdown != nil {
			if err := metricsShutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}
