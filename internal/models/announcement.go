package models

import "time"

// Announcement statuses
const (
	AnnouncementDraft     = "draft"
	AnnouncementScheduled = "scheduled"
	AnnouncementSending   = "sending"
	AnnouncementSent      = "sent"
	AnnouncementCancelled = "cancelled"
)

// Channel names accepted in communication_method
const (
	ChannelEmail    = "email"
	ChannelSMS      = "sms"
	ChannelWhatsApp = "whatsapp"
)

// Target types
const (
	TargetProperty = "property"
	TargetTenant   = "tenant"
)

// Announcement represents an organization-wide announcement
type Announcement struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	Title          string     `json:"title"`
	Content        string     `json:"content"`
	Type           string     `json:"type"` // e.g. "general", "community event", "maintenance notice"
	Methods        []string   `json:"communication_method"`
	Status         string     `json:"status"` // draft, scheduled, sending, sent, cancelled
	ScheduledAt    *time.Time `json:"scheduled_at,omitempty"`
	IssueDate      *time.Time `json:"issue_date,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Target represents one audience entry of an announcement. A property
// target means "every tenant with an active lease on any unit of the
// property"; a tenant target names one tenant directly.
type Target struct {
	ID             string    `json:"id"`
	AnnouncementID string    `json:"announcement_id"`
	TargetType     string    `json:"target_type"` // property, tenant
	TargetID       string    `json:"target_id"`
	PropertyID     string    `json:"property_id,omitempty"`
	TargetName     string    `json:"target_name"`
	CreatedAt      time.Time `json:"created_at"`
}
