package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/propease/announce/internal/models"
)

type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

// CreateJob creates a new dispatch job with status processing
func (r *JobRepository) CreateJob(ctx context.Context, job *models.Job) error {
	job.ID = uuid.New().String()
	job.Status = models.JobProcessing
	job.StartedAt = time.Now()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO announcement_jobs (id, announcement_id, total_tenants, processed_count, success_count, failure_count, last_processed_id, status, started_at)
		VALUES ($1, $2, $3, 0, 0, 0, '', $4, $5)`,
		job.ID, job.AnnouncementID, job.TotalTenants, job.Status, job.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// GetJob returns a job by ID, or nil when it does not exist
func (r *JobRepository) GetJob(ctx context.Context, id string) (*models.Job, error) {
	job := &models.Job{}
	var completedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, `
		SELECT id, announcement_id, total_tenants, processed_count, success_count, failure_count, last_processed_id, status, started_at, completed_at
		FROM announcement_jobs
		WHERE id = $1`, id,
	).Scan(&job.ID, &job.AnnouncementID, &job.TotalTenants, &job.ProcessedCount,
		&job.SuccessCount, &job.FailureCount, &job.LastProcessedID, &job.Status,
		&job.StartedAt, &completedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}
	return job, nil
}

// LatestJobForAnnouncement returns the most recent job of an
// announcement, or nil when none exists.
func (r *JobRepository) LatestJobForAnnouncement(ctx context.Context, announcementID string) (*models.Job, error) {
	job := &models.Job{}
	var completedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, `
		SELECT id, announcement_id, total_tenants, processed_count, success_count, failure_count, last_processed_id, status, started_at, completed_at
		FROM announcement_jobs
		WHERE announcement_id = $1
		ORDER BY started_at DESC
		LIMIT 1`, announcementID,
	).Scan(&job.ID, &job.AnnouncementID, &job.TotalTenants, &job.ProcessedCount,
		&job.SuccessCount, &job.FailureCount, &job.LastProcessedID, &job.Status,
		&job.StartedAt, &completedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}
	return job, nil
}

// RecordBatch advances a job's counters after one processed batch. The
// added counts are deltas; the stored columns accumulate the totals.
func (r *JobRepository) RecordBatch(ctx context.Context, jobID string, processed, success, failure int, lastID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE announcement_jobs
		SET processed_count = processed_count + $2,
			success_count = success_count + $3,
			failure_count = failure_count + $4,
			last_processed_id = $5
		WHERE id = $1`,
		jobID, processed, success, failure, lastID,
	)
	if err != nil {
		return fmt.Errorf("failed to record batch: %w", err)
	}
	return nil
}

// CompleteJob marks a job completed
func (r *JobRepository) CompleteJob(ctx context.Context, jobID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE announcement_jobs SET status = $2, completed_at = $3 WHERE id = $1`,
		jobID, models.JobCompleted, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	return nil
}

// CreateTask records the unprocessed tail of a dispatch run
func (r *JobRepository) CreateTask(ctx context.Context, task *models.BackgroundTask) error {
	task.ID = uuid.New().String()
	task.Status = models.TaskPending
	task.CreatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO announcement_background_tasks (id, job_id, announcement_id, remaining_count, next_batch_index, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		task.ID, task.JobID, task.AnnouncementID, task.RemainingCount, task.NextBatchIndex, task.Status, task.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create background task: %w", err)
	}
	return nil
}

// ClaimTask atomically claims the oldest claimable background task for
// workerID and returns it, or nil when nothing is claimable. A task is
// claimable when pending, or when in_progress but its claim is older
// than lease (the previous worker is presumed dead).
func (r *JobRepository) ClaimTask(ctx context.Context, workerID string, lease time.Duration) (*models.BackgroundTask, error) {
	task := &models.BackgroundTask{Status: models.TaskInProgress, ClaimedBy: workerID}
	var claimedAt time.Time

	err := r.db.QueryRowContext(ctx, `
		UPDATE announcement_background_tasks
		SET status = 'in_progress', claimed_by = $1, claimed_at = now()
		WHERE id = (
			SELECT id FROM announcement_background_tasks
			WHERE status = 'pending'
				OR (status = 'in_progress' AND claimed_at < now() - ($2 * interval '1 second'))
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, job_id, announcement_id, remaining_count, next_batch_index, claimed_at, created_at`,
		workerID, int64(lease.Seconds()),
	).Scan(&task.ID, &task.JobID, &task.AnnouncementID, &task.RemainingCount,
		&task.NextBatchIndex, &claimedAt, &task.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	task.ClaimedAt = &claimedAt
	return task, nil
}

// UpdateTaskProgress moves a task's cursor forward while its batches
// are being drained, refreshing the claim timestamp.
func (r *JobRepository) UpdateTaskProgress(ctx context.Context, taskID string, remaining, nextIndex int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE announcement_background_tasks
		SET remaining_count = $2, next_batch_index = $3, claimed_at = now()
		WHERE id = $1`,
		taskID, remaining, nextIndex,
	)
	if err != nil {
		return fmt.Errorf("failed to update task progress: %w", err)
	}
	return nil
}

// FinishTask marks a task completed or cancelled
func (r *JobRepository) FinishTask(ctx context.Context, taskID, status string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE announcement_background_tasks SET status = $2, completed_at = $3 WHERE id = $1`,
		taskID, status, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to finish task: %w", err)
	}
	return nil
}
