package models

import "time"

// User is an account row. Token and timestamp pointers are nil when the
// column is NULL.
type User struct {
	ID                  string
	Email               string
	PasswordHash        string
	EmailVerified       bool
	ConfirmationToken   *string
	ConfirmationExpires *time.Time
	ResetToken          *string
	ResetExpires        *time.Time
	IsActive            bool
	LastLogin           *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
