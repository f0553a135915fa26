package models

import "time"

// Job statuses
const (
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobFailed     = "failed"
)

// Background task statuses
const (
	TaskPending    = "pending"
	TaskInProgress = "in_progress"
	TaskCompleted  = "completed"
	TaskCancelled  = "cancelled"
)

// Job tracks one dispatch run of an announcement
type Job struct {
	ID              string     `json:"id"`
	AnnouncementID  string     `json:"announcement_id"`
	TotalTenants    int        `json:"total_tenants"`
	ProcessedCount  int        `json:"processed_count"`
	SuccessCount    int        `json:"success_count"`
	FailureCount    int        `json:"failure_count"`
	LastProcessedID string     `json:"last_processed_id,omitempty"`
	Status          string     `json:"status"` // processing, completed, failed
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// BackgroundTask represents the unprocessed tail of a dispatch run's
// audience. It exists only when the audience exceeds one batch and is
// consumed by the drain worker.
type BackgroundTask struct {
	ID             string     `json:"id"`
	JobID          string     `json:"job_id"`
	AnnouncementID string     `json:"announcement_id"`
	RemainingCount int        `json:"remaining_count"`
	NextBatchIndex int        `json:"next_batch_index"`
	Status         string     `json:"status"` // pending, in_progress, completed, cancelled
	ClaimedBy      string     `json:"claimed_by,omitempty"`
	ClaimedAt      *time.Time `json:"claimed_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
