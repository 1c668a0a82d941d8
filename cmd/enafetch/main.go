package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/enatools/enafetch/internal/cleanup"
	"github.com/enatools/enafetch/internal/config"
	"github.com/enatools/enafetch/internal/download"
	"github.com/enatools/enafetch/internal/ena"
	"github.com/enatools/enafetch/internal/export"
	"github.com/enatools/enafetch/internal/ledger"
	"github.com/enatools/enafetch/internal/ledger/sqlite"
	"github.com/enatools/enafetch/internal/logctx"
	"github.com/enatools/enafetch/internal/notifier"
	"github.com/enatools/enafetch/internal/telemetry"
)

var errDownloadsFailed = errors.New("one or more downloads failed")

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	handler := logctx.NewTraceHandler(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	logger := slog.New(handler)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("enafetch starting...", "log_level", cfg.LogLevel, "accession_type", cfg.AccessionType)

	if err := run(logctx.WithLogger(ctx, logger), cfg); err != nil {
		if errors.Is(err, errDownloadsFailed) {
			os.Exit(1)
		}

		slog.Error("fatal error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logctx.LoggerFromContext(ctx)

	// =========================================================================
	// Start Telemetry
	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:     cfg.Metrics.Enabled,
		ServiceName: "enafetch",
	})
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown telemetry", "err", err)
		}
	}()

	if cfg.Metrics.Enabled {
		r := chi.NewRouter()
		r.Handle("/metrics", tel.Handler())
		r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		go func() {
			logger.Info("serving metrics", "host", cfg.Metrics.BindAddress)

			if err := http.ListenAndServe(cfg.Metrics.BindAddress, r); err != nil {
				logger.Error("metrics server error", "err", err)
			}
		}()
	}

	// =========================================================================
	// Resolve Accessions
	accessions, err := config.ReadAccessions(cfg.Input)
	if err != nil {
		return err
	}

	accType := ena.AccessionType(cfg.AccessionType)

	accessions = ena.FilterAccessions(ctx, accessions, accType)
	if len(accessions) == 0 {
		return fmt.Errorf("%w: no valid accessions in %s", config.ErrInvalid, cfg.Input)
	}

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	portal := ena.NewClient(cfg.PortalBaseURL, cfg.HTTPTimeout, cfg.Retries, tel)

	logger.Info("retrieving metadata", "accessions", len(accessions))

	result, err := portal.Search(ctx, accessions, accType)
	if err != nil {
		return fmt.Errorf("failed to retrieve metadata: %w", err)
	}

	if len(result.Runs) == 0 {
		return fmt.Errorf("no runs found for the given accessions")
	}

	// =========================================================================
	// Write Metadata Exports
	if cfg.WriteMetadata {
		if err := export.WriteTSV(ctx, cfg.OutputDir, result); err != nil {
			return err
		}
	}

	if cfg.WriteExcel {
		if err := export.WriteExcel(ctx, cfg.OutputDir, result); err != nil {
			return err
		}
	}

	if !cfg.DownloadFiles {
		return nil
	}

	// =========================================================================
	// Start Download Engine
	targets := ena.Targets(ctx, result, ena.TargetOptions{
		OutputDir: cfg.OutputDir,
		ByStudy:   cfg.CreateStudyFolders,
		FileType:  cfg.FileType,
	})

	if removed, err := cleanup.RemovePartials(ctx, cfg.OutputDir); err != nil {
		logger.Warn("failed to clean stale partial files", "removed", removed, "err", err)
	}

	led, err := sqlite.Open(cfg.LedgerFile())
	if err != nil {
		return err
	}
	defer led.Close()

	scheduler := download.NewScheduler(
		ledger.NewInstrumented(led, tel),
		download.NewHTTPFetcher(cfg.HTTPTimeout),
		download.NewLimiter(cfg.RateLimit, cfg.RateBurst),
		tel,
	)

	report, err := scheduler.Run(ctx, download.Job{
		Targets:     targets,
		MaxParallel: cfg.MaxParallel,
		Policy: download.RetryPolicy{
			MaxRetries:             cfg.Retries,
			Backoff:                cfg.RetryBackoff,
			MaxBackoff:             cfg.RetryMaxBackoff,
			SeparateChecksumBudget: cfg.ChecksumSeparateBudget,
		},
	})
	if err != nil {
		return err
	}

	notifyReport(ctx, cfg, report)

	logger.Info("job finished", "summary", report.Summary())

	if report.HasFailures() {
		for _, id := range report.FailedIDs {
			logger.Error("download failed entirely", "target", id)
		}

		return fmt.Errorf("%w: %d file(s)", errDownloadsFailed, report.Failed)
	}

	return nil
}

func notifyReport(ctx context.Context, cfg *config.Config, report *download.Report) {
	if cfg.DiscordWebhookURL == "" {
		return
	}

	logger := logctx.LoggerFromContext(ctx)

	var notif notifier.Notifier = notifier.NewDiscordNotifier(cfg.DiscordWebhookURL)

	message := "✅ enafetch finished: " + report.Summary()
	if report.HasFailures() {
		message = "❌ enafetch finished with failures: " + report.Summary()
	}

	if err := notif.Notify(context.WithoutCancel(ctx), message); err != nil {
		logger.Error("failed to send notification", "err", err)
	}
}
