package dispatch

import (
	"context"
	"log/slog"

	"github.com/propease/announce/internal/metrics"
	"github.com/propease/announce/internal/models"
)

// AudienceStore is the slice of the property schema audience resolution
// reads from.
type AudienceStore interface {
	UnitIDs(ctx context.Context, propertyID string) ([]string, error)
	ActiveLeaseTenantIDs(ctx context.Context, unitIDs []string) ([]string, error)
	TenantsByIDs(ctx context.Context, ids []string) ([]models.TenantContact, error)
	TenantByID(ctx context.Context, id string) (*models.TenantContact, error)
}

// Resolver turns an announcement's targets into a deduplicated list of
// tenant contacts.
type Resolver struct {
	store  AudienceStore
	logger *slog.Logger
}

func NewResolver(store AudienceStore, logger *slog.Logger) *Resolver {
	return &Resolver{
		store:  store,
		logger: logger.With("component", "audience"),
	}
}

// Resolve processes targets in order and returns the deduplicated
// audience plus any resolution-level failures. A failing target
// contributes zero tenants but never aborts the remaining targets, and
// a target that simply matches nobody is not a failure. Duplicate
// tenants keep their first occurrence, so the output order is stable
// for a given target list.
func (r *Resolver) Resolve(ctx context.Context, targets []models.Target) ([]models.TenantContact, []MessageResult) {
	var contacts []models.TenantContact
	var failures []MessageResult
	seen := make(map[string]bool)

	for _, t := range targets {
		var resolved []models.TenantContact
		var err error

		switch t.TargetType {
		case models.TargetProperty:
			resolved, err = r.resolveProperty(ctx, t)
		case models.TargetTenant:
			resolved, err = r.resolveTenant(ctx, t)
		default:
			r.logger.Warn("unknown target type", "target_type", t.TargetType, "target", t.TargetName)
			continue
		}

		if err != nil {
			r.logger.Warn("target resolution failed", "target", t.TargetName, "error", err)
			metrics.IncResolutionFailures()
			failures = append(failures, MessageResult{
				Method:    MethodResolution,
				Recipient: t.TargetName,
				Error:     err.Error(),
			})
			continue
		}

		for _, c := range resolved {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			contacts = append(contacts, c)
		}
	}

	return contacts, failures
}

func (r *Resolver) resolveProperty(ctx context.Context, t models.Target) ([]models.TenantContact, error) {
	propertyID := t.PropertyID
	if propertyID == "" {
		propertyID = t.TargetID
	}

	unitIDs, err := r.store.UnitIDs(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if len(unitIDs) == 0 {
		return nil, nil
	}

	tenantIDs, err := r.store.ActiveLeaseTenantIDs(ctx, unitIDs)
	if err != nil {
		return nil, err
	}
	if len(tenantIDs) == 0 {
		return nil, nil
	}

	return r.store.TenantsByIDs(ctx, tenantIDs)
}

func (r *Resolver) resolveTenant(ctx context.Context, t models.Target) ([]models.TenantContact, error) {
	contact, err := r.store.TenantByID(ctx, t.TargetID)
	if err != nil {
		return nil, err
	}
	if contact == nil {
		return nil, errTenantNotFound
	}
	return []models.TenantContact{*contact}, nil
}
