package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nocturna/skyglow-etl/internal/adapter/cmr"
	"github.com/nocturna/skyglow-etl/internal/adapter/granulefile"
	httpadapter "github.com/nocturna/skyglow-etl/internal/adapter/http"
	kafkaadapter "github.com/nocturna/skyglow-etl/internal/adapter/kafka"
	"github.com/nocturna/skyglow-etl/internal/analysis"
	"github.com/nocturna/skyglow-etl/internal/config"
	"github.com/nocturna/skyglow-etl/internal/observability"
	"github.com/nocturna/skyglow-etl/internal/pipeline"
	"github.com/nocturna/skyglow-etl/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	store, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	catalogClient := cmr.NewClient(cfg.CMRToken, cfg.CMRTimeout(), metrics, logger)
	catalog := cmr.NewCachedCatalog(catalogClient, cfg.CatalogCacheSize, metrics)

	reader := granulefile.NewReader(logger)
	processor := pipeline.NewProcessor(cfg.Correction, cfg.Brightness(), cfg.RadianceBand(), cfg.CloudConfidenceThreshold, logger)

	// Kafka publishing is feature-flagged; the store stays the source of truth.
	var publisher pipeline.SamplePublisher
	var kafkaWriter *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		kafkaWriter = kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaSinkTopic, logger)
		publisher = kafkaWriter
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaSinkTopic)
	} else {
		logger.Info("kafka publishing disabled")
	}

	orchestrator := pipeline.NewOrchestrator(catalog, reader, processor, store, publisher, logger, metrics, pipeline.OrchestratorConfig{
		WindowMonths:        cfg.WindowMonths,
		SearchPadDays:       cfg.SearchPadDays,
		CloudCeilingPercent: cfg.CloudCeilingPercent,
		SyntheticFallback:   cfg.SyntheticFallback,
	})

	assembler := analysis.NewAssembler(cfg.Trend, cfg.Change, cfg.GeoJSONSampleRate)
	reporter := pipeline.NewReporter(store, assembler, logger, metrics, cfg.WindowMonths)

	srv := httpadapter.NewServer(cfg.HTTPAddr, orchestrator, store, cfg.Regions, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Run the backfill pass, then generate reports. The server keeps serving
	// afterwards so the reports stay queryable until shutdown.
	go func() {
		summary, err := orchestrator.Run(ctx, cfg.Regions)
		if err != nil {
			logger.Error("backfill pass interrupted", "error", err)
			return
		}
		logFailures(logger, summary)

		if _, err := reporter.GenerateReports(ctx, cfg.Regions); err != nil {
			logger.Error("report generation interrupted", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaWriter != nil {
		if err := kafkaWriter.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

func logFailures(logger *slog.Logger, summary pipeline.Summary) {
	if len(summary.Failed) == 0 {
		return
	}
	logger.Warn("backfill pass had failed months",
		"run_id", summary.RunID,
		"failed", summary.Failed)
}
