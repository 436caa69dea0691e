// Package common contains shared constants and sentinel errors used across
// xtouch components.
package common

import "time"

const (
	// AuthorizationHeaderName carries the bearer access token.
	AuthorizationHeaderName = "Authorization"

	// RequestIDHeaderName is echoed back on every response.
	RequestIDHeaderName = "X-Request-ID"

	// ConfirmationTokenValidity is how long a registration confirmation link stays usable.
	ConfirmationTokenValidity = 24 * time.Hour

	// ResetTokenValidity is how long a password reset link stays usable.
	ResetTokenValidity = 15 * time.Minute
)
