package repository

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/propease/announce/internal/models"
)

// AudienceRepository reads the property schema the dispatch pipeline
// resolves audiences from. All of it is read-only here: the rows are
// owned by the main PropEase application.
type AudienceRepository struct {
	db *sql.DB
}

func NewAudienceRepository(db *sql.DB) *AudienceRepository {
	return &AudienceRepository{db: db}
}

// UnitIDs returns the IDs of all units of a property
func (r *AudienceRepository) UnitIDs(ctx context.Context, propertyID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM units WHERE property_id = $1 ORDER BY id`, propertyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanIDs(rows)
}

// ActiveLeaseTenantIDs returns the distinct tenant IDs holding an
// active lease on any of the given units.
func (r *AudienceRepository) ActiveLeaseTenantIDs(ctx context.Context, unitIDs []string) ([]string, error) {
	if len(unitIDs) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT tenant_id FROM leases
		WHERE status = 'Active' AND unit_id = ANY($1)
		ORDER BY tenant_id`, pq.Array(unitIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanIDs(rows)
}

// TenantsByIDs returns contact rows for the given tenant IDs, ordered
// by ID so resolution is deterministic across invocations.
func (r *AudienceRepository) TenantsByIDs(ctx context.Context, ids []string) ([]models.TenantContact, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, COALESCE(first_name, ''), COALESCE(last_name, ''),
			COALESCE(email, ''), COALESCE(phone_number, ''), COALESCE(whatsapp_number, '')
		FROM tenants
		WHERE id = ANY($1)
		ORDER BY id`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := []models.TenantContact{}
	for rows.Next() {
		var c models.TenantContact
		if err := rows.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.PhoneNumber, &c.WhatsAppNumber); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}

	return contacts, rows.Err()
}

// TenantByID returns one tenant contact row, or nil when absent
func (r *AudienceRepository) TenantByID(ctx context.Context, id string) (*models.TenantContact, error) {
	c := &models.TenantContact{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, COALESCE(first_name, ''), COALESCE(last_name, ''),
			COALESCE(email, ''), COALESCE(phone_number, ''), COALESCE(whatsapp_number, '')
		FROM tenants
		WHERE id = $1`, id,
	).Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.PhoneNumber, &c.WhatsAppNumber)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func scanIDs(rows *sql.Rows) ([]string, error) {
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
