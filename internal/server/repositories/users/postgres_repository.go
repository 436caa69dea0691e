package users

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/xtouch/internal/common"
	"github.com/dmitrijs2005/xtouch/internal/dbx"
	"github.com/dmitrijs2005/xtouch/internal/server/models"
)

const userColumns = `id, email, password_hash, email_verified,
		confirmation_token, confirmation_expires, reset_token, reset_expires,
		is_active, last_login, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (email, password_hash, confirmation_token, confirmation_expires)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, email_verified, is_active, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		user.Email, user.PasswordHash, user.ConfirmationToken, user.ConfirmationExpires).
		Scan(&user.ID, &user.EmailVerified, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, dbx.TranslateError("users.create", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, "users.get_by_id", `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, "users.get_by_email", `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *PostgresRepository) GetByConfirmationToken(ctx context.Context, token string) (*models.User, error) {
	return r.getOne(ctx, "users.get_by_confirmation_token", `SELECT `+userColumns+` FROM users WHERE confirmation_token = $1`, token)
}

func (r *PostgresRepository) GetByResetToken(ctx context.Context, token string) (*models.User, error) {
	return r.getOne(ctx, "users.get_by_reset_token", `SELECT `+userColumns+` FROM users WHERE reset_token = $1`, token)
}

func (r *PostgresRepository) MarkVerified(ctx context.Context, id string) error {
	query :=
		`UPDATE users
		 SET email_verified = TRUE, confirmation_token = NULL, confirmation_expires = NULL, updated_at = now()
		 WHERE id = $1`
	return r.execOne(ctx, "users.mark_verified", query, id)
}

func (r *PostgresRepository) SetResetToken(ctx context.Context, id string, token string, expires time.Time) error {
	query :=
		`UPDATE users
		 SET reset_token = $2, reset_expires = $3, updated_at = now()
		 WHERE id = $1`
	return r.execOne(ctx, "users.set_reset_token", query, id, token, expires)
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	query :=
		`UPDATE users
		 SET password_hash = $2, reset_token = NULL, reset_expires = NULL, updated_at = now()
		 WHERE id = $1`
	return r.execOne(ctx, "users.update_password", query, id, passwordHash)
}

func (r *PostgresRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE users SET last_login = $2 WHERE id = $1`
	return r.execOne(ctx, "users.update_last_login", query, id, at)
}

func (r *PostgresRepository) SetActive(ctx context.Context, id string, active bool) error {
	query := `UPDATE users SET is_active = $2, updated_at = now() WHERE id = $1`
	return r.execOne(ctx, "users.set_active", query, id, active)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	return r.execOne(ctx, "users.delete", `DELETE FROM users WHERE id = $1`, id)
}

func (r *PostgresRepository) getOne(ctx context.Context, op, query string, arg any) (*models.User, error) {
	u := &models.User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.EmailVerified,
		&u.ConfirmationToken, &u.ConfirmationExpires, &u.ResetToken, &u.ResetExpires,
		&u.IsActive, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, dbx.TranslateError(op, err)
	}
	return u, nil
}

// execOne runs an UPDATE/DELETE addressed by primary key and reports
// common.ErrorNotFound when no row was affected.
func (r *PostgresRepository) execOne(ctx context.Context, op, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return dbx.TranslateError(op, err)
	}
	return requireAffected(op, res)
}

func requireAffected(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return common.NewStorageError(op, err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
