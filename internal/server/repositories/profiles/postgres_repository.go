package profiles

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/dmitrijs2005/xtouch/internal/common"
	"github.com/dmitrijs2005/xtouch/internal/dbx"
	"github.com/dmitrijs2005/xtouch/internal/server/models"
)

const profileColumns = `id, user_id, email, profile_slug, first_name, last_name, phone_number,
		position, company, company_address, about, social_media,
		primary_colour, card_colour, profile_photo, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, p *models.Profile) (*models.Profile, error) {
	social, err := encodeSocial(p.SocialMedia)
	if err != nil {
		return nil, common.NewStorageError("profiles.create", err)
	}

	query :=
		`INSERT INTO profiles (user_id, email, profile_slug, first_name, last_name, phone_number,
		     position, company, company_address, about, social_media,
		     primary_colour, card_colour, profile_photo)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 RETURNING id, created_at, updated_at`

	err = r.db.QueryRowContext(ctx, query,
		p.UserID, p.Email, p.Slug, p.FirstName, p.LastName, p.PhoneNumber,
		p.Position, p.Company, p.CompanyAddress, p.About, social,
		p.PrimaryColour, p.CardColour, photoValue(p.PhotoKey),
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, dbx.TranslateError("profiles.create", err)
	}

	return p, nil
}

func (r *PostgresRepository) Update(ctx context.Context, p *models.Profile) error {
	social, err := encodeSocial(p.SocialMedia)
	if err != nil {
		return common.NewStorageError("profiles.update", err)
	}

	query :=
		`UPDATE profiles
		 SET email = $3, profile_slug = $4, first_name = $5, last_name = $6, phone_number = $7,
		     position = $8, company = $9, company_address = $10, about = $11, social_media = $12,
		     primary_colour = $13, card_colour = $14, profile_photo = $15, updated_at = now()
		 WHERE id = $1 AND user_id = $2
		 RETURNING updated_at`

	err = r.db.QueryRowContext(ctx, query,
		p.ID, p.UserID, p.Email, p.Slug, p.FirstName, p.LastName, p.PhoneNumber,
		p.Position, p.Company, p.CompanyAddress, p.About, social,
		p.PrimaryColour, p.CardColour, photoValue(p.PhotoKey),
	).Scan(&p.UpdatedAt)
	if err != nil {
		return dbx.TranslateError("profiles.update", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	return r.getOne(ctx, "profiles.get_by_id", `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
}

func (r *PostgresRepository) GetByUserID(ctx context.Context, userID string) (*models.Profile, error) {
	return r.getOne(ctx, "profiles.get_by_user", `SELECT `+profileColumns+` FROM profiles WHERE user_id = $1`, userID)
}

func (r *PostgresRepository) GetBySlug(ctx context.Context, slug string) (*models.Profile, error) {
	return r.getOne(ctx, "profiles.get_by_slug", `SELECT `+profileColumns+` FROM profiles WHERE profile_slug = $1`, slug)
}

func (r *PostgresRepository) SlugsWithPrefix(ctx context.Context, base string, excludeID string) ([]string, error) {
	// Slugs only contain [a-z0-9-], so base needs no LIKE escaping.
	query :=
		`SELECT profile_slug FROM profiles
		 WHERE (profile_slug = $1 OR profile_slug LIKE $1 || '-%')
		   AND ($2 = '' OR id::text <> $2)`

	rows, err := r.db.QueryContext(ctx, query, base, excludeID)
	if err != nil {
		return nil, dbx.TranslateError("profiles.slugs", err)
	}
	defer rows.Close()

	var slugs []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, dbx.TranslateError("profiles.slugs", err)
		}
		slugs = append(slugs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.TranslateError("profiles.slugs", err)
	}
	return slugs, nil
}

func (r *PostgresRepository) DeleteByUserID(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM profiles WHERE user_id = $1`, userID); err != nil {
		return dbx.TranslateError("profiles.delete_by_user", err)
	}
	return nil
}

func (r *PostgresRepository) getOne(ctx context.Context, op, query string, arg any) (*models.Profile, error) {
	p := &models.Profile{}
	var (
		social []byte
		photo  sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&p.ID, &p.UserID, &p.Email, &p.Slug, &p.FirstName, &p.LastName, &p.PhoneNumber,
		&p.Position, &p.Company, &p.CompanyAddress, &p.About, &social,
		&p.PrimaryColour, &p.CardColour, &photo, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, dbx.TranslateError(op, err)
	}
	if len(social) > 0 {
		if err := json.Unmarshal(social, &p.SocialMedia); err != nil {
			return nil, common.NewStorageError(op, err)
		}
	}
	p.PhotoKey = photo.String
	return p, nil
}

func encodeSocial(links []models.SocialLink) (string, error) {
	if links == nil {
		links = []models.SocialLink{}
	}
	b, err := json.Marshal(links)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func photoValue(key string) sql.NullString {
	return sql.NullString{String: key, Valid: key != ""}
}
