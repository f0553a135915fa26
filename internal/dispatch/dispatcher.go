package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/propease/announce/internal/metrics"
	"github.com/propease/announce/internal/models"
)

var (
	ErrNotFound     = errors.New("announcement not found")
	ErrNoTargets    = errors.New("no targets for this announcement")
	ErrNoRecipients = errors.New("no tenant contacts found for this announcement")
	ErrAlreadySent  = errors.New("announcement has already been sent")
	ErrCancelled    = errors.New("announcement is cancelled")

	errTenantNotFound = errors.New("tenant not found")
)

// AnnouncementStore loads announcements and their targets, and records
// status transitions.
type AnnouncementStore interface {
	GetByID(ctx context.Context, id string) (*models.Announcement, error)
	GetTargets(ctx context.Context, announcementID string) ([]models.Target, error)
	SetStatus(ctx context.Context, id, status string, issueDate *time.Time) error
}

// JobStore is the durable bookkeeping side of a dispatch run. Failures
// here are fatal for the run: without the job record the continuation
// worker cannot resume.
type JobStore interface {
	CreateJob(ctx context.Context, job *models.Job) error
	RecordBatch(ctx context.Context, jobID string, processed, success, failure int, lastID string) error
	CompleteJob(ctx context.Context, jobID string) error
	CreateTask(ctx context.Context, task *models.BackgroundTask) error
	UpdateTaskProgress(ctx context.Context, taskID string, remaining, nextIndex int) error
	FinishTask(ctx context.Context, taskID, status string) error
}

// Outcome is the aggregate result of an accepted dispatch run's first
// batch. Sent/Failed are per-tenant counts; Failures carries the
// per-message and per-target failure details.
type Outcome struct {
	Announcement *models.Announcement
	JobID        string
	TotalTenants int
	Processed    int
	Sent         int
	Failed       int
	Remaining    int
	Failures     []MessageResult
}

// Dispatcher orchestrates a dispatch run: resolve the audience, process
// the first batch, record job progress, and either finish the run or
// hand the tail to the background task queue.
type Dispatcher struct {
	announcements AnnouncementStore
	jobs          JobStore
	resolver      *Resolver
	batch         *BatchProcessor
	batchSize     int
	logger        *slog.Logger
}

func NewDispatcher(announcements AnnouncementStore, jobs JobStore, resolver *Resolver, batch *BatchProcessor, batchSize int, logger *slog.Logger) *Dispatcher {
	if batchSize < 1 {
		batchSize = 50
	}
	return &Dispatcher{
		announcements: announcements,
		jobs:          jobs,
		resolver:      resolver,
		batch:         batch,
		batchSize:     batchSize,
		logger:        logger.With("component", "dispatch"),
	}
}

// Dispatch runs the first batch of a send and returns immediately with
// aggregate stats. Delivery failures are reported in the outcome, not
// as errors; only structural problems (missing announcement, empty
// audience, job bookkeeping) surface as errors.
func (d *Dispatcher) Dispatch(ctx context.Context, announcementID string) (*Outcome, error) {
	a, err := d.announcements.GetByID(ctx, announcementID)
	if err != nil {
		return nil, fmt.Errorf("failed to load announcement: %w", err)
	}
	if a == nil {
		return nil, ErrNotFound
	}

	switch a.Status {
	case models.AnnouncementSent:
		return nil, ErrAlreadySent
	case models.AnnouncementCancelled:
		return nil, ErrCancelled
	}

	targets, err := d.announcements.GetTargets(ctx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load targets: %w", err)
	}
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}

	contacts, resolutionFailures := d.resolver.Resolve(ctx, targets)
	if len(contacts) == 0 {
		return nil, ErrNoRecipients
	}

	job := &models.Job{AnnouncementID: a.ID, TotalTenants: len(contacts)}
	if err := d.jobs.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	metrics.IncJobsStarted()

	size := d.batchSize
	if size > len(contacts) {
		size = len(contacts)
	}
	batch := contacts[:size]

	start := time.Now()
	res := d.batch.Process(ctx, a, batch)
	metrics.ObserveBatchDuration(time.Since(start))

	lastID := batch[len(batch)-1].ID
	if err := d.jobs.RecordBatch(ctx, job.ID, len(batch), res.SuccessTenants, res.FailureTenants, lastID); err != nil {
		return nil, err
	}

	remaining := len(contacts) - size
	if remaining > 0 {
		task := &models.BackgroundTask{
			JobID:          job.ID,
			AnnouncementID: a.ID,
			RemainingCount: remaining,
			NextBatchIndex: size,
		}
		if err := d.jobs.CreateTask(ctx, task); err != nil {
			return nil, err
		}
		if err := d.announcements.SetStatus(ctx, a.ID, models.AnnouncementSending, nil); err != nil {
			return nil, err
		}
	} else {
		if err := d.jobs.CompleteJob(ctx, job.ID); err != nil {
			return nil, err
		}
		metrics.IncJobsCompleted()
		now := time.Now()
		if err := d.announcements.SetStatus(ctx, a.ID, models.AnnouncementSent, &now); err != nil {
			return nil, err
		}
	}

	d.logger.Info("dispatch batch processed",
		"announcement_id", a.ID,
		"job_id", job.ID,
		"total_tenants", len(contacts),
		"processed", len(batch),
		"sent", res.SuccessTenants,
		"failed", res.FailureTenants,
		"remaining", remaining,
	)

	return &Outcome{
		Announcement: a,
		JobID:        job.ID,
		TotalTenants: len(contacts),
		Processed:    len(batch),
		Sent:         res.SuccessTenants,
		Failed:       res.FailureTenants,
		Remaining:    remaining,
		Failures:     append(resolutionFailures, res.Failed...),
	}, nil
}

// Drain processes a claimed background task to completion: it
// re-resolves the audience (resolution is deterministic for a given
// target list), continues from the task's cursor, and finishes the job
// and the announcement once the audience is exhausted. A cancelled or
// deleted announcement aborts the task.
func (d *Dispatcher) Drain(ctx context.Context, task *models.BackgroundTask) error {
	a, err := d.announcements.GetByID(ctx, task.AnnouncementID)
	if err != nil {
		return fmt.Errorf("failed to load announcement: %w", err)
	}
	if a == nil || a.Status == models.AnnouncementCancelled {
		// Nothing left to deliver. Close the task and the job so the
		// run does not linger as resumable work.
		if err := d.jobs.FinishTask(ctx, task.ID, models.TaskCancelled); err != nil {
			return err
		}
		return d.jobs.CompleteJob(ctx, task.JobID)
	}

	targets, err := d.announcements.GetTargets(ctx, a.ID)
	if err != nil {
		return fmt.Errorf("failed to load targets: %w", err)
	}

	contacts, failures := d.resolver.Resolve(ctx, targets)
	if len(failures) > 0 && len(contacts) < task.NextBatchIndex {
		// A failed target makes the short audience indistinguishable
		// from a genuine shrink. Leave the task in_progress so the
		// lease retries it rather than completing an undelivered run.
		return fmt.Errorf("audience re-resolution incomplete: %d of %d targets failed", len(failures), len(targets))
	}

	idx := task.NextBatchIndex
	if idx > len(contacts) {
		// Audience shrank since the run started; drain what is left.
		idx = len(contacts)
	}

	for idx < len(contacts) {
		if err := ctx.Err(); err != nil {
			// Leave the task in_progress; the claim lease lets another
			// worker pick it up.
			return err
		}

		end := idx + d.batchSize
		if end > len(contacts) {
			end = len(contacts)
		}
		batch := contacts[idx:end]

		start := time.Now()
		res := d.batch.Process(ctx, a, batch)
		metrics.ObserveBatchDuration(time.Since(start))

		if err := d.jobs.RecordBatch(ctx, task.JobID, len(batch), res.SuccessTenants, res.FailureTenants, batch[len(batch)-1].ID); err != nil {
			return err
		}

		idx = end
		if remaining := len(contacts) - idx; remaining > 0 {
			if err := d.jobs.UpdateTaskProgress(ctx, task.ID, remaining, idx); err != nil {
				return err
			}
		}

		d.logger.Info("continuation batch processed",
			"announcement_id", a.ID,
			"job_id", task.JobID,
			"processed", len(batch),
			"sent", res.SuccessTenants,
			"failed", res.FailureTenants,
			"remaining", len(contacts)-idx,
		)
	}

	if err := d.jobs.FinishTask(ctx, task.ID, models.TaskCompleted); err != nil {
		return err
	}
	if err := d.jobs.CompleteJob(ctx, task.JobID); err != nil {
		return err
	}
	metrics.IncJobsCompleted()

	now := time.Now()
	return d.announcements.SetStatus(ctx, a.ID, models.AnnouncementSent, &now)
}
