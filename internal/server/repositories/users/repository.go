// Package users declares the account repository contract and its
// PostgreSQL implementation.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/xtouch/internal/server/models"
)

// Repository defines persistence operations for user accounts. Lookups
// return common.ErrorNotFound when no row matches; a duplicate email on
// Create is reported as *common.UniqueViolationError.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByConfirmationToken(ctx context.Context, token string) (*models.User, error)
	GetByResetToken(ctx context.Context, token string) (*models.User, error)

	// MarkVerified sets email_verified and clears the confirmation token.
	MarkVerified(ctx context.Context, id string) error
	SetResetToken(ctx context.Context, id string, token string, expires time.Time) error
	// UpdatePassword stores a new hash and clears the reset token.
	UpdatePassword(ctx context.Context, id string, passwordHash string) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	SetActive(ctx context.Context, id string, active bool) error
	Delete(ctx context.Context, id string) error
}
