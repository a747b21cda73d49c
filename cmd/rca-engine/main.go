package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lumenstack/lumen-rca/internal/api"
	"github.com/lumenstack/lumen-rca/internal/cache"
	"github.com/lumenstack/lumen-rca/internal/config"
	"github.com/lumenstack/lumen-rca/internal/engine"
	"github.com/lumenstack/lumen-rca/internal/evidence"
	"github.com/lumenstack/lumen-rca/internal/metrics"
	"github.com/lumenstack/lumen-rca/internal/reasoning"
	"github.com/lumenstack/lumen-rca/internal/repo"
	"github.com/lumenstack/lumen-rca/internal/store"
	"github.com/lumenstack/lumen-rca/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting lumen-rca", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cacheProvider cache.Provider = cache.NoopProvider{}
	if cfg.Cache.Enabled && cfg.Cache.Addr != "" {
		provider, err := cache.NewValkeyProvider(cache.ValkeyConfig{
			Addr:         cfg.Cache.Addr,
			Username:     cfg.Cache.Username,
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			DialTimeout:  cfg.Cache.DialTimeout,
			ReadTimeout:  cfg.Cache.ReadTimeout,
			WriteTimeout: cfg.Cache.WriteTimeout,
			MaxRetries:   cfg.Cache.MaxRetries,
			TLS:          cfg.Cache.TLS,
		})
		if err != nil {
			logger.Warn("valkey cache unavailable", slog.Any("error", err))
		} else {
			cacheProvider = provider
			defer provider.Close()
		}
	}

	var records store.RecordStore
	if cfg.Storage.DatabaseURL != "" {
		pool, err := repo.NewPostgresPool(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to postgres", slog.Any("error", err))
			os.Exit(1)
		}
		defer pool.Close()

		analysisRepo := repo.NewAnalysisRepo(pool)
		if err := analysisRepo.EnsureSchema(ctx); err != nil {
			logger.Error("failed to ensure schema", slog.Any("error", err))
			os.Exit(1)
		}
		records = analysisRepo
	} else {
		logger.Warn("no database configured, using in-memory record store")
		records = store.NewMemoryStore()
	}

	blobs := repo.NewBlobStoreClient(
		cfg.Clients.Blob.BaseURL,
		cfg.Clients.Blob.SourcePath,
		cfg.Clients.Blob.ArtifactPath,
		cfg.Clients.Blob.Timeout,
	)
	logs := repo.NewLogStoreClient(
		cfg.Clients.Logs.BaseURL,
		cfg.Clients.Logs.QueryPath,
		cfg.Clients.Logs.Timeout,
	)
	docs := repo.NewDocIndexClient(
		cfg.Clients.Docs.BaseURL,
		cfg.Clients.Docs.SearchPath,
		cfg.Clients.Docs.APIKey,
		cfg.Clients.Docs.Timeout,
		cacheProvider,
		cfg.Cache.KnowledgeTTL,
	)

	tools := engine.ToolSet{
		Source:    evidence.NewSourceRetriever(utils.ComponentLogger(logger, "source"), blobs, cfg.Evidence.SourceMaxBytes),
		Logs:      evidence.NewLogWindowExtractor(utils.ComponentLogger(logger, "logs"), logs, cfg.Clients.Logs.Window, cfg.Evidence.LogMaxLines),
		Knowledge: evidence.NewKnowledgeSearcher(utils.ComponentLogger(logger, "knowledge"), docs, cfg.Clients.Docs.TopK),
	}

	decider, err := reasoning.NewGeminiDecider(ctx, utils.ComponentLogger(logger, "reasoning"), cfg.Reasoning.APIKey, cfg.Reasoning.Model)
	if err != nil {
		logger.Error("failed to create reasoning client", slog.Any("error", err))
		os.Exit(1)
	}

	orchestrator := engine.NewOrchestrator(utils.ComponentLogger(logger, "engine"), decider, tools, records, cfg)

	handler := api.NewHandler(
		utils.ComponentLogger(logger, "api"),
		orchestrator,
		records,
		cacheProvider,
		orchestrator.Latency(),
		cfg.Cache.DedupeTTL,
	)
	server, err := api.NewServer(cfg.Server, handler.Router())
	if err != nil {
		logger.Error("failed to create HTTP server", slog.Any("error", err))
		os.Exit(1)
	}

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("HTTP server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tracker := orchestrator.Latency()
				if tracker.Count() == 0 {
					continue
				}
				logger.Info("analysis latency",
					slog.Int("samples", tracker.Count()),
					slog.Duration("p50", tracker.Percentile(50)),
					slog.Duration("p95", tracker.Percentile(95)),
					slog.Float64("mean_steps", tracker.MeanSteps()),
				)
			}
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	server.Shutdown(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("lumen-rca stopped")
}
