package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/propease/announce/internal/api"
	"github.com/propease/announce/internal/config"
	"github.com/propease/announce/internal/db"
	"github.com/propease/announce/internal/dispatch"
	"github.com/propease/announce/internal/metrics"
	"github.com/propease/announce/internal/models"
	"github.com/propease/announce/internal/repository"
	"github.com/propease/announce/internal/sender"
	"github.com/propease/announce/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dispatch service",
	Long:  `Start the HTTP API and the background continuation worker.`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	database, err := db.New(cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		m := metrics.New()
		metrics.SetGlobal(m)

		metricsSrv := metrics.NewServer(m, cfg.Metrics.ListenAddr, cfg.Metrics.Path, logger)
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
		defer metricsSrv.Shutdown(context.Background())
	}

	announcements := repository.NewAnnouncementRepository(database.DB)
	audience := repository.NewAudienceRepository(database.DB)
	jobs := repository.NewJobRepository(database.DB)

	senders := sender.NewSenders(
		sender.NewClient(cfg.Senders.Email.URL, cfg.Senders.Email.APIKey, cfg.Senders.Email.RatePerSecond),
		sender.NewClient(cfg.Senders.SMS.URL, cfg.Senders.SMS.APIKey, cfg.Senders.SMS.RatePerSecond),
		sender.NewClient(cfg.Senders.WhatsApp.URL, cfg.Senders.WhatsApp.APIKey, cfg.Senders.WhatsApp.RatePerSecond),
	)

	resolver := dispatch.NewResolver(audience, logger)
	batch := dispatch.NewBatchProcessor(dispatch.NewChannelDispatcher(senders), cfg.Dispatch.Concurrency, logger)
	dispatcher := dispatch.NewDispatcher(announcements, jobs, resolver, batch, cfg.Dispatch.BatchSize, logger)

	var bg *worker.Worker
	if cfg.Worker.Enabled {
		bg = worker.New(&taskSource{announcements: announcements, jobs: jobs}, dispatcher, worker.Config{
			PollInterval: cfg.Worker.PollInterval,
			ClaimLease:   cfg.Worker.ClaimLease,
		}, logger)
		bg.Start()
		defer bg.Stop()
	}

	srv := api.NewServer(dispatcher, announcements, jobs, &cfg.Server, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// taskSource adapts the repositories to the worker's claim interface
type taskSource struct {
	announcements *repository.AnnouncementRepository
	jobs          *repository.JobRepository
}

func (s *taskSource) ClaimTask(ctx context.Context, workerID string, lease time.Duration) (*models.BackgroundTask, error) {
	return s.jobs.ClaimTask(ctx, workerID, lease)
}

func (s *taskSource) ClaimScheduled(ctx context.Context) (string, error) {
	return s.announcements.ClaimScheduled(ctx)
}

func (s *taskSource) SetAnnouncementStatus(ctx context.Context, id, status string) error {
	return s.announcements.SetStatus(ctx, id, status, nil)
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: parseLogLevel(cfg.Level),
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: parseLogLevel(cfg.Level),
		})
	}
	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
