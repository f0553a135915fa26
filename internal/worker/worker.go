package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/propease/announce/internal/dispatch"
	"github.com/propease/announce/internal/metrics"
	"github.com/propease/announce/internal/models"
)

// TaskSource claims resumable work: background tasks left by dispatch
// runs whose audience exceeded one batch, and announcements whose
// scheduled send time has arrived. SetAnnouncementStatus settles a
// claimed announcement whose dispatch could not start.
type TaskSource interface {
	ClaimTask(ctx context.Context, workerID string, lease time.Duration) (*models.BackgroundTask, error)
	ClaimScheduled(ctx context.Context) (string, error)
	SetAnnouncementStatus(ctx context.Context, id, status string) error
}

// Runner is the dispatch pipeline the worker drives
type Runner interface {
	Dispatch(ctx context.Context, announcementID string) (*dispatch.Outcome, error)
	Drain(ctx context.Context, task *models.BackgroundTask) error
}

// Config holds worker configuration
type Config struct {
	PollInterval time.Duration
	ClaimLease   time.Duration
}

// Worker drains announcement dispatch work in the background
type Worker struct {
	id     string
	source TaskSource
	runner Runner
	cfg    Config
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new worker
func New(source TaskSource, runner Runner, cfg Config, logger *slog.Logger) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.ClaimLease <= 0 {
		cfg.ClaimLease = 5 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.New().String()

	return &Worker{
		id:     id,
		source: source,
		runner: runner,
		cfg:    cfg,
		logger: logger.With("component", "worker", "worker_id", id),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start starts the worker
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
	w.logger.Info("worker started", "poll_interval", w.cfg.PollInterval, "claim_lease", w.cfg.ClaimLease)
}

// Stop stops the worker gracefully
func (w *Worker) Stop() {
	w.logger.Info("stopping worker...")
	w.cancel()
	w.wg.Wait()
	w.logger.Info("worker stopped")
}

func (w *Worker) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.startScheduledSends()
			w.drainTasks()
		}
	}
}

// startScheduledSends dispatches announcements whose scheduled time has
// arrived. Each claim is atomic, so concurrent workers never dispatch
// the same announcement twice.
func (w *Worker) startScheduledSends() {
	for {
		select {
		case <-w.ctx.Done():
			return
		default:
		}

		id, err := w.source.ClaimScheduled(w.ctx)
		if err != nil {
			w.logger.Error("failed to claim scheduled announcement", "error", err)
			return
		}
		if id == "" {
			return
		}

		w.logger.Info("starting scheduled send", "announcement_id", id)
		if _, err := w.runner.Dispatch(w.ctx, id); err != nil {
			w.logger.Error("scheduled send failed", "announcement_id", id, "error", err)

			// The claim already moved the announcement to sending, so
			// it must not be left stranded there. An empty audience
			// cannot succeed on retry; everything else goes back to
			// scheduled for the next poll.
			status := models.AnnouncementScheduled
			if errors.Is(err, dispatch.ErrNoTargets) || errors.Is(err, dispatch.ErrNoRecipients) {
				status = models.AnnouncementCancelled
			}
			if err := w.source.SetAnnouncementStatus(w.ctx, id, status); err != nil {
				w.logger.Error("failed to settle announcement after failed scheduled send", "announcement_id", id, "error", err)
			}

			// A rescheduled announcement is claimable again right away;
			// end the pass so the retry waits for the next poll.
			return
		}
	}
}

// drainTasks claims and drains pending background tasks until none are
// claimable.
func (w *Worker) drainTasks() {
	for {
		select {
		case <-w.ctx.Done():
			return
		default:
		}

		task, err := w.source.ClaimTask(w.ctx, w.id, w.cfg.ClaimLease)
		if err != nil {
			w.logger.Error("failed to claim task", "error", err)
			return
		}
		if task == nil {
			return
		}
		metrics.IncTasksClaimed()

		w.logger.Info("claimed background task",
			"task_id", task.ID,
			"job_id", task.JobID,
			"announcement_id", task.AnnouncementID,
			"remaining", task.RemainingCount,
		)

		if err := w.runner.Drain(w.ctx, task); err != nil {
			// The task stays in_progress; another worker reclaims it
			// once the lease expires.
			w.logger.Error("task drain failed", "task_id", task.ID, "error", err)
			return
		}
	}
}
