package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/propease/announce/internal/models"
)

type AnnouncementRepository struct {
	db *sql.DB
}

func NewAnnouncementRepository(db *sql.DB) *AnnouncementRepository {
	return &AnnouncementRepository{db: db}
}

// GetByID returns an announcement by ID, or nil when it does not exist
func (r *AnnouncementRepository) GetByID(ctx context.Context, id string) (*models.Announcement, error) {
	a := &models.Announcement{}
	var methods pq.StringArray
	var scheduledAt, issueDate sql.NullTime

	err := r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, title, content, type, communication_method,
			status, scheduled_at, issue_date, created_at, updated_at
		FROM announcements
		WHERE id = $1`, id,
	).Scan(&a.ID, &a.OrganizationID, &a.Title, &a.Content, &a.Type, &methods,
		&a.Status, &scheduledAt, &issueDate, &a.CreatedAt, &a.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	a.Methods = []string(methods)
	if scheduledAt.Valid {
		a.ScheduledAt = &scheduledAt.Time
	}
	if issueDate.Valid {
		a.IssueDate = &issueDate.Time
	}

	return a, nil
}

// GetTargets returns an announcement's targets in authoring order
func (r *AnnouncementRepository) GetTargets(ctx context.Context, announcementID string) ([]models.Target, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, announcement_id, target_type, target_id, COALESCE(property_id, ''), target_name, created_at
		FROM announcement_targets
		WHERE announcement_id = $1
		ORDER BY created_at, id`, announcementID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	targets := []models.Target{}
	for rows.Next() {
		var t models.Target
		if err := rows.Scan(&t.ID, &t.AnnouncementID, &t.TargetType, &t.TargetID, &t.PropertyID, &t.TargetName, &t.CreatedAt); err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}

	return targets, rows.Err()
}

// SetStatus updates an announcement's status. A non-nil issueDate is
// stamped alongside the transition to sent.
func (r *AnnouncementRepository) SetStatus(ctx context.Context, id, status string, issueDate *time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE announcements
		SET status = $2, issue_date = COALESCE($3, issue_date), updated_at = $4
		WHERE id = $1`,
		id, status, issueDate, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update announcement status: %w", err)
	}
	return nil
}

// ClaimScheduled atomically moves one due scheduled announcement to
// sending and returns its ID. Returns empty string when none is due.
func (r *AnnouncementRepository) ClaimScheduled(ctx context.Context) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `
		UPDATE announcements SET status = 'sending', updated_at = now()
		WHERE id = (
			SELECT id FROM announcements
			WHERE status = 'scheduled' AND scheduled_at <= now()
			ORDER BY scheduled_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id`,
	).Scan(&id)

	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return id, nil
}
