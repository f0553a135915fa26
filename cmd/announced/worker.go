package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/propease/announce/internal/config"
	"github.com/propease/announce/internal/db"
	"github.com/propease/announce/internal/dispatch"
	"github.com/propease/announce/internal/repository"
	"github.com/propease/announce/internal/sender"
	"github.com/propease/announce/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run only the background worker",
	Long:  `Run the continuation and scheduled-send worker without the HTTP API, for scaling drain capacity separately.`,
	RunE:  runWorker,
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging)

	database, err := db.New(cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	if err != nil {
		return err
	}
	defer database.Close()

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

	bg := worker.New(&taskSource{announcements: announcements, jobs: jobs}, dispatcher, worker.Config{
		PollInterval: cfg.Worker.PollInterval,
		ClaimLease:   cfg.Worker.ClaimLease,
	}, logger)
	bg.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)

	bg.Stop()
	return nil
}
