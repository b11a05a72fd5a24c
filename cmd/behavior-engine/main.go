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

	"github.com/vantasec/dlp-behavior/internal/api"
	"github.com/vantasec/dlp-behavior/internal/cache"
	"github.com/vantasec/dlp-behavior/internal/config"
	"github.com/vantasec/dlp-behavior/internal/engine"
	"github.com/vantasec/dlp-behavior/internal/metrics"
	"github.com/vantasec/dlp-behavior/internal/patterns"
	"github.com/vantasec/dlp-behavior/internal/repo"
	"github.com/vantasec/dlp-behavior/internal/services"
	"github.com/vantasec/dlp-behavior/internal/utils"
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
	logger.Info("starting dlp-behavior", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	var cacheProvider cache.Provider = cache.NoopProvider{}
	var valkeyCloser cache.Provider
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
			logger.Warn("valkey cache unavailable, falling back to in-memory", slog.Any("error", err))
			cacheProvider = cache.NewMemoryProvider()
		} else {
			cacheProvider = provider
			valkeyCloser = provider
		}
	} else if cfg.Cache.Enabled {
		cacheProvider = cache.NewMemoryProvider()
	}
	if valkeyCloser != nil {
		defer valkeyCloser.Close()
	}

	coreClient := repo.NewDLPCoreClient(
		cfg.Clients.Core.BaseURL,
		cfg.Clients.Core.IncidentsPath,
		cfg.Clients.Core.ResultsPath,
		cfg.Clients.Core.Timeout,
		cacheProvider,
		cfg.Cache.IncidentsTTL,
	)

	var explainer engine.ExplanationProvider
	if cfg.Explainer.Enabled && cfg.Explainer.Endpoint != "" {
		explainer = repo.NewExplainerClient(cfg.Explainer.Endpoint, cfg.Explainer.APIKey, cfg.Explainer.Timeout)
	}

	analyzer := engine.NewAnalyzer(logger, coreClient, explainer, coreClient, engine.Options{
		OverviewWorkers: cfg.Analysis.OverviewWorkers,
		TopResults:      cfg.Analysis.TopResults,
	})

	overviewTTL := time.Duration(0)
	if cfg.Cache.Enabled {
		overviewTTL = cfg.Cache.OverviewTTL
	}
	service := services.NewBehaviorService(logger, analyzer, cacheProvider, overviewTTL)

	handler := api.NewHandler(logger, service, cfg.Analysis.DefaultLookbackDays)
	server := api.NewServer(logger, cfg.Server.Address, cfg.Server.AllowedOrigins, handler)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	if cfg.Analysis.PatternInterval > 0 && cfg.Clients.Core.BaseURL != "" {
		miner := patterns.NewMiner(logger, coreClient)
		go runPatternMining(ctx, logger, miner, coreClient, cfg.Analysis.PatternInterval)
	}

	go func() {
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("http server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown", slog.Any("error", err))
	}

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("dlp-behavior stopped")
}

// runPatternMining periodically mines stored analysis results into risk
// patterns until the context is cancelled.
func runPatternMining(ctx context.Context, logger *slog.Logger, miner *patterns.Miner, client *repo.DLPCoreClient, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			since := time.Now().UTC().Add(-24 * time.Hour)
			results, err := client.ListAnalyses(ctx, "", since)
			if err != nil {
				logger.Warn("pattern mining skipped", slog.Any("error", err))
				continue
			}
			mined, err := miner.Mine(ctx, results)
			if err != nil {
				logger.Warn("pattern mining failed", slog.Any("error", err))
				continue
			}
			if len(mined) > 0 {
				logger.Info("risk patterns mined", slog.Int("patterns", len(mined)))
			}
		}
	}
}
