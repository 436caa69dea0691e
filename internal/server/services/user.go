// Package services contains server-side business logic. This file implements
// UserService: registration, email confirmation, password reset, login and
// refresh-token rotation, deactivation and account deletion.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dmitrijs2005/xtouch/internal/common"
	"github.com/dmitrijs2005/xtouch/internal/dbx"
	"github.com/dmitrijs2005/xtouch/internal/logging"
	"github.com/dmitrijs2005/xtouch/internal/server/auth"
	"github.com/dmitrijs2005/xtouch/internal/server/config"
	"github.com/dmitrijs2005/xtouch/internal/server/mailer"
	"github.com/dmitrijs2005/xtouch/internal/server/models"
	"github.com/dmitrijs2005/xtouch/internal/server/repositories/repomanager"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 72

	// verificationTokenBytes sizes confirmation and reset tokens.
	verificationTokenBytes = 20
	refreshTokenBytes      = 32
)

var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// UserService provides account operations.
type UserService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	mailer                       mailer.Mailer
	templates                    *mailer.Templates
	log                          logging.Logger
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	now                          func() time.Time
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, mail mailer.Mailer, tpl *mailer.Templates,
	log logging.Logger, cfg *config.Config) *UserService {
	return &UserService{
		db:                           db,
		repomanager:                  m,
		mailer:                       mail,
		templates:                    tpl,
		log:                          log.With("module", "users"),
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		now:                          time.Now,
	}
}

// Register creates an unverified account and emails a confirmation link.
// A failed email is logged; the account still exists.
func (s *UserService) Register(ctx context.Context, email, password string) (*models.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("%w: hash password: %v", common.ErrorInternal, err)
	}
	token, err := common.MakeRandHexString(verificationTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: confirmation token: %v", common.ErrorInternal, err)
	}
	expires := s.now().Add(common.ConfirmationTokenValidity)

	user, err := s.repomanager.Users(s.db).Create(ctx, &models.User{
		Email:               email,
		PasswordHash:        hash,
		ConfirmationToken:   &token,
		ConfirmationExpires: &expires,
	})
	if err != nil {
		if errors.Is(err, common.ErrorConflict) {
			return nil, fmt.Errorf("%w: email already registered", common.ErrorConflict)
		}
		return nil, err
	}

	s.log.Info(ctx, "user registered", "user_id", user.ID)

	msg, err := s.templates.Welcome(email, displayName(email), token)
	if err == nil {
		err = s.mailer.Send(ctx, msg)
	}
	if err != nil {
		s.log.Error(ctx, "welcome email failed", "user_id", user.ID, "error", err)
	}

	return user, nil
}

// ConfirmEmail marks the account owning token as verified.
func (s *UserService) ConfirmEmail(ctx context.Context, token string) error {
	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByConfirmationToken(ctx, token)
	if err != nil {
		return err
	}
	if user.ConfirmationExpires != nil && s.now().After(*user.ConfirmationExpires) {
		return common.ErrTokenExpired
	}

	return repo.MarkVerified(ctx, user.ID)
}

// ForgotPassword issues a 15 minute reset token and emails the reset link.
func (s *UserService) ForgotPassword(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	token, err := common.MakeRandHexString(verificationTokenBytes)
	if err != nil {
		return fmt.Errorf("%w: reset token: %v", common.ErrorInternal, err)
	}
	if err := repo.SetResetToken(ctx, user.ID, token, s.now().Add(common.ResetTokenValidity)); err != nil {
		return err
	}

	msg, err := s.templates.ResetPassword(user.Email, displayName(user.Email), token)
	if err == nil {
		err = s.mailer.Send(ctx, msg)
	}
	if err != nil {
		s.log.Error(ctx, "reset email failed", "user_id", user.ID, "error", err)
	}
	return nil
}

// ResetPassword sets a new password for the account owning the reset token.
func (s *UserService) ResetPassword(ctx context.Context, token, password, confirm string) error {
	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByResetToken(ctx, token)
	if err != nil {
		return err
	}
	if user.ResetExpires == nil || s.now().After(*user.ResetExpires) {
		return common.ErrTokenExpired
	}
	if password != confirm {
		return common.NewValidationError("confirmPassword", "passwords do not match")
	}
	if err := validatePassword(password); err != nil {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("%w: hash password: %v", common.ErrorInternal, err)
	}
	return repo.UpdatePassword(ctx, user.ID, hash)
}

// Login verifies credentials and returns a new TokenPair. Unknown emails,
// wrong passwords and deactivated accounts are indistinguishable.
func (s *UserService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, err
	}

	ok, err := auth.CheckPassword(user.PasswordHash, password)
	if err != nil {
		return nil, fmt.Errorf("%w: check password: %v", common.ErrorInternal, err)
	}
	if !ok || !user.IsActive {
		return nil, common.ErrorUnauthorized
	}

	var pair *TokenPair
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Users(tx).UpdateLastLogin(ctx, user.ID, s.now()); err != nil {
			return err
		}
		var genErr error
		pair, genErr = s.generateTokenPair(ctx, user.ID, user.Email, tx)
		return genErr
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// RefreshToken validates a refresh token, rotates it transactionally, and
// returns a fresh TokenPair. Expired tokens yield ErrRefreshTokenExpired.
func (s *UserService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	token, err := s.repomanager.RefreshTokens(s.db).Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, err
	}
	if token.Expires.Before(s.now()) {
		return nil, common.ErrRefreshTokenExpired
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, common.ErrorUnauthorized
	}

	var pair *TokenPair
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.RefreshTokens(tx).Delete(ctx, refreshToken); err != nil {
			return err
		}
		var genErr error
		pair, genErr = s.generateTokenPair(ctx, user.ID, user.Email, tx)
		return genErr
	}); err != nil {
		return nil, err
	}
	return pair, nil
}

// Deactivate disables login for the account and revokes its refresh tokens.
func (s *UserService) Deactivate(ctx context.Context, userID string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Users(tx).SetActive(ctx, userID, false); err != nil {
			return err
		}
		return s.repomanager.RefreshTokens(tx).DeleteByUserID(ctx, userID)
	})
}

// Delete removes the account together with its profile and refresh tokens.
// The photo blob, if any, is left in storage.
func (s *UserService) Delete(ctx context.Context, userID string) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Profiles(tx).DeleteByUserID(ctx, userID); err != nil {
			return err
		}
		if err := s.repomanager.RefreshTokens(tx).DeleteByUserID(ctx, userID); err != nil {
			return err
		}
		return s.repomanager.Users(tx).Delete(ctx, userID)
	})
	if err != nil {
		return err
	}
	s.log.Info(ctx, "user deleted", "user_id", userID)
	return nil
}

func (s *UserService) generateTokenPair(ctx context.Context, userID, email string, tx dbx.DBTX) (*TokenPair, error) {
	access, err := auth.GenerateToken(userID, email, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, fmt.Errorf("%w: sign access token: %v", common.ErrorInternal, err)
	}
	refresh, err := common.MakeRandHexString(refreshTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: refresh token: %v", common.ErrorInternal, err)
	}
	if err := s.repomanager.RefreshTokens(tx).Create(ctx, userID, refresh, s.refreshTokenValidityDuration); err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !emailPattern.MatchString(email) {
		return "", common.NewValidationError("email", "invalid email address")
	}
	return email, nil
}

func validatePassword(password string) error {
	if n := len(password); n < minPasswordLength || n > maxPasswordLength {
		return common.NewValidationError("password",
			fmt.Sprintf("must be between %d and %d characters", minPasswordLength, maxPasswordLength))
	}
	return nil
}

// displayName greets a user by the local part of their email address.
func displayName(email string) string {
	name, _, _ := strings.Cut(email, "@")
	return name
}
