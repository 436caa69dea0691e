// Package profiles persists business-card profiles.
package profiles

import (
	"context"

	"github.com/dmitrijs2005/xtouch/internal/server/models"
)

// Unique index names, as created by the migrations. They appear in
// common.UniqueViolationError.Constraint.
const (
	SlugConstraint  = "profiles_profile_slug_key"
	OwnerConstraint = "profiles_user_id_key"
)

// Repository defines persistence operations for profiles. Lookups return
// common.ErrorNotFound when no row matches.
type Repository interface {
	Create(ctx context.Context, p *models.Profile) (*models.Profile, error)
	// Update overwrites every mutable column of the profile identified by
	// p.ID and owned by p.UserID.
	Update(ctx context.Context, p *models.Profile) error
	GetByID(ctx context.Context, id string) (*models.Profile, error)
	GetByUserID(ctx context.Context, userID string) (*models.Profile, error)
	GetBySlug(ctx context.Context, slug string) (*models.Profile, error)
	// SlugsWithPrefix returns base and every "base-*" slug in use, ignoring
	// the profile excludeID (when non-empty).
	SlugsWithPrefix(ctx context.Context, base string, excludeID string) ([]string, error)
	DeleteByUserID(ctx context.Context, userID string) error
}
