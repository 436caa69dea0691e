package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/xtouch/internal/common"
	"github.com/dmitrijs2005/xtouch/internal/logging"
	"github.com/dmitrijs2005/xtouch/internal/server/blobstore"
	"github.com/dmitrijs2005/xtouch/internal/server/config"
	"github.com/dmitrijs2005/xtouch/internal/server/imaging"
	"github.com/dmitrijs2005/xtouch/internal/server/mailer"
	"github.com/dmitrijs2005/xtouch/internal/server/models"
	"github.com/dmitrijs2005/xtouch/internal/server/repositories/profiles"
	"github.com/dmitrijs2005/xtouch/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/xtouch/internal/server/slug"
	"github.com/dmitrijs2005/xtouch/internal/server/throttle"
	"github.com/google/uuid"
)

const (
	// maxSlugAttempts bounds how often a write is retried after losing a
	// slug race to a concurrent writer.
	maxSlugAttempts = 5

	maxContactMessageLength = 2000
)

// ProfileInput carries the editable fields of a profile.
type ProfileInput struct {
	Email          string
	FirstName      string
	LastName       string
	PhoneNumber    string
	Position       string
	Company        string
	CompanyAddress string
	About          string
	SocialMedia    []models.SocialLink
	PrimaryColour  string
	CardColour     string
}

// Image is an uploaded photo as received from the client.
type Image struct {
	Data        []byte
	ContentType string
}

// ProfileRef identifies a stored profile.
type ProfileRef struct {
	ProfileID string `json:"profileId"`
	Slug      string `json:"slug"`
}

// PublicProfile is the read model of a profile. PhotoURL is signed per call
// and is empty when the profile has no photo.
type PublicProfile struct {
	ID             string              `json:"id"`
	Slug           string              `json:"slug"`
	Email          string              `json:"email"`
	FirstName      string              `json:"firstName"`
	LastName       string              `json:"lastName"`
	PhoneNumber    string              `json:"phoneNumber"`
	Position       string              `json:"position"`
	Company        string              `json:"company"`
	CompanyAddress string              `json:"companyAddress"`
	About          string              `json:"about"`
	SocialMedia    []models.SocialLink `json:"socialMedia"`
	PrimaryColour  string              `json:"primaryColour"`
	CardColour     string              `json:"cardColour"`
	PhotoURL       string              `json:"photoUrl"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

// ContactInput is what a visitor submits to exchange contact details with a
// profile owner.
type ContactInput struct {
	Name    string
	Email   string
	Phone   string
	Message string
}

// ProfileService manages business-card profiles and their photos.
type ProfileService struct {
	db               *sql.DB
	repomanager      repomanager.RepositoryManager
	store            blobstore.Store
	normalizer       *imaging.Normalizer
	limiter          throttle.Limiter
	mailer           mailer.Mailer
	templates        *mailer.Templates
	log              logging.Logger
	photoURLValidity time.Duration
	newKey           func() (string, error)
}

func NewProfileService(db *sql.DB, m repomanager.RepositoryManager, store blobstore.Store, limiter throttle.Limiter,
	mail mailer.Mailer, tpl *mailer.Templates, log logging.Logger, cfg *config.Config) *ProfileService {
	return &ProfileService{
		db:               db,
		repomanager:      m,
		store:            store,
		normalizer:       imaging.NewNormalizer(cfg.PhotoMaxSide, cfg.PhotoJPEGQuality),
		limiter:          limiter,
		mailer:           mail,
		templates:        tpl,
		log:              log.With("module", "profiles"),
		photoURLValidity: cfg.PhotoURLValidityDuration,
		newKey:           blobstore.NewKey,
	}
}

// CreateProfile stores the first and only profile of ownerUserID. The photo,
// when given, is normalized and uploaded before the record is written.
func (s *ProfileService) CreateProfile(ctx context.Context, ownerUserID string, in ProfileInput, img *Image) (*ProfileRef, error) {
	in, err := validateProfileInput(in)
	if err != nil {
		return nil, err
	}

	owner, err := s.repomanager.Users(s.db).GetByID(ctx, ownerUserID)
	if err != nil {
		return nil, err
	}

	repo := s.repomanager.Profiles(s.db)
	if _, err := repo.GetByUserID(ctx, ownerUserID); err == nil {
		return nil, fmt.Errorf("%w: user already has a profile", common.ErrorConflict)
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	photoKey, err := s.storePhoto(ctx, img)
	if err != nil {
		return nil, err
	}

	p := profileFromInput(in)
	p.UserID = owner.ID
	p.PhotoKey = photoKey
	if p.Email == "" {
		p.Email = owner.Email
	}

	allocator := slug.NewAllocator(repo, 0)
	for attempt := 1; ; attempt++ {
		p.Slug, err = allocator.Allocate(ctx, p.FirstName, p.LastName, "")
		if err != nil {
			return nil, err
		}

		created, err := repo.Create(ctx, p)
		if err == nil {
			s.log.Info(ctx, "profile created", "profile_id", created.ID, "slug", created.Slug)
			return &ProfileRef{ProfileID: created.ID, Slug: created.Slug}, nil
		}

		var uv *common.UniqueViolationError
		if !errors.As(err, &uv) {
			return nil, err
		}
		if uv.Constraint != profiles.SlugConstraint {
			return nil, fmt.Errorf("%w: user already has a profile", common.ErrorConflict)
		}
		if attempt == maxSlugAttempts {
			return nil, fmt.Errorf("%w: slug %q still taken after %d attempts", common.ErrorConflict, p.Slug, attempt)
		}
		s.log.Debug(ctx, "slug taken, retrying", "slug", p.Slug, "attempt", attempt)
	}
}

// UpdateProfile overwrites the owner's profile. The slug is recomputed only
// when the name changes, and the photo key only when a new image is given.
func (s *ProfileService) UpdateProfile(ctx context.Context, ownerUserID, profileID string, in ProfileInput, img *Image) (*ProfileRef, error) {
	in, err := validateProfileInput(in)
	if err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(profileID); err != nil {
		return nil, fmt.Errorf("%w: profile %q", common.ErrorNotFound, profileID)
	}

	repo := s.repomanager.Profiles(s.db)
	current, err := repo.GetByID(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if current.UserID != ownerUserID {
		return nil, fmt.Errorf("%w: profile %q", common.ErrorNotFound, profileID)
	}

	photoKey, err := s.storePhoto(ctx, img)
	if err != nil {
		return nil, err
	}

	p := profileFromInput(in)
	p.ID = current.ID
	p.UserID = current.UserID
	p.Slug = current.Slug
	p.PhotoKey = current.PhotoKey
	if photoKey != "" {
		p.PhotoKey = photoKey
	}
	if p.Email == "" {
		p.Email = current.Email
	}

	reallocate := slug.Base(p.FirstName, p.LastName) != slug.Base(current.FirstName, current.LastName)
	allocator := slug.NewAllocator(repo, 0)
	for attempt := 1; ; attempt++ {
		if reallocate {
			p.Slug, err = allocator.Allocate(ctx, p.FirstName, p.LastName, p.ID)
			if err != nil {
				return nil, err
			}
		}

		err = repo.Update(ctx, p)
		if err == nil {
			s.log.Info(ctx, "profile updated", "profile_id", p.ID, "slug", p.Slug)
			return &ProfileRef{ProfileID: p.ID, Slug: p.Slug}, nil
		}

		var uv *common.UniqueViolationError
		if !errors.As(err, &uv) || uv.Constraint != profiles.SlugConstraint {
			return nil, err
		}
		if attempt == maxSlugAttempts {
			return nil, fmt.Errorf("%w: slug %q still taken after %d attempts", common.ErrorConflict, p.Slug, attempt)
		}
		s.log.Debug(ctx, "slug taken, retrying", "slug", p.Slug, "attempt", attempt)
		reallocate = true
	}
}

// GetProfileBySlug returns the public card for slug, matched case-insensitively.
func (s *ProfileService) GetProfileBySlug(ctx context.Context, profileSlug string) (*PublicProfile, error) {
	p, err := s.repomanager.Profiles(s.db).GetBySlug(ctx, strings.ToLower(strings.TrimSpace(profileSlug)))
	if err != nil {
		return nil, err
	}
	return s.publicProfile(ctx, p)
}

// GetProfileByOwner returns the card owned by ownerUserID.
func (s *ProfileService) GetProfileByOwner(ctx context.Context, ownerUserID string) (*PublicProfile, error) {
	p, err := s.repomanager.Profiles(s.db).GetByUserID(ctx, ownerUserID)
	if err != nil {
		return nil, err
	}
	return s.publicProfile(ctx, p)
}

// ExchangeContact emails the visitor's details to the owner of profileID.
// Each (profile, sender email) pair is throttled; a throttle backend
// failure lets the message through.
func (s *ProfileService) ExchangeContact(ctx context.Context, profileID string, in ContactInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Message = strings.TrimSpace(in.Message)
	if in.Name == "" {
		return common.NewValidationError("name", "required")
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return err
	}
	if len(in.Message) > maxContactMessageLength {
		return common.NewValidationError("message",
			fmt.Sprintf("must be at most %d characters", maxContactMessageLength))
	}
	if _, err := uuid.Parse(profileID); err != nil {
		return fmt.Errorf("%w: profile %q", common.ErrorNotFound, profileID)
	}

	p, err := s.repomanager.Profiles(s.db).GetByID(ctx, profileID)
	if err != nil {
		return err
	}

	allowed, err := s.limiter.Allow(ctx, p.ID+":"+email)
	if err != nil {
		s.log.Warn(ctx, "contact throttle unavailable", "profile_id", p.ID, "error", err)
	} else if !allowed {
		return fmt.Errorf("%w: too many messages to this profile", common.ErrorThrottled)
	}

	msg, err := s.templates.ExchangeContact(p.Email, p.FirstName, mailer.ContactDetails{
		SenderName:  in.Name,
		SenderEmail: email,
		SenderPhone: in.Phone,
		Message:     in.Message,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("%w: send contact email: %v", common.ErrorInternal, err)
	}

	s.log.Info(ctx, "contact exchanged", "profile_id", p.ID)
	return nil
}

// storePhoto normalizes and uploads img, returning its new key. A nil img
// yields an empty key.
func (s *ProfileService) storePhoto(ctx context.Context, img *Image) (string, error) {
	if img == nil {
		return "", nil
	}

	data, contentType, err := s.normalizer.Normalize(img.Data, img.ContentType)
	if err != nil {
		return "", err
	}

	key, err := s.newKey()
	if err != nil {
		return "", err
	}
	if err := s.store.Put(ctx, key, data, contentType); err != nil {
		return "", err
	}

	s.log.Debug(ctx, "photo stored", "key", key, "content_type", contentType, "bytes", len(data))
	return key, nil
}

func (s *ProfileService) publicProfile(ctx context.Context, p *models.Profile) (*PublicProfile, error) {
	out := &PublicProfile{
		ID:             p.ID,
		Slug:           p.Slug,
		Email:          p.Email,
		FirstName:      p.FirstName,
		LastName:       p.LastName,
		PhoneNumber:    p.PhoneNumber,
		Position:       p.Position,
		Company:        p.Company,
		CompanyAddress: p.CompanyAddress,
		About:          p.About,
		SocialMedia:    p.SocialMedia,
		PrimaryColour:  p.PrimaryColour,
		CardColour:     p.CardColour,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
	if out.SocialMedia == nil {
		out.SocialMedia = []models.SocialLink{}
	}
	if p.PhotoKey != "" {
		url, err := s.store.SignedURL(ctx, p.PhotoKey, s.photoURLValidity)
		if err != nil {
			return nil, err
		}
		out.PhotoURL = url
	}
	return out, nil
}

func validateProfileInput(in ProfileInput) (ProfileInput, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)

	switch {
	case in.FirstName == "":
		return in, common.NewValidationError("firstName", "required")
	case in.LastName == "":
		return in, common.NewValidationError("lastName", "required")
	case in.PhoneNumber == "":
		return in, common.NewValidationError("phoneNumber", "required")
	}

	if strings.TrimSpace(in.Email) != "" {
		email, err := normalizeEmail(in.Email)
		if err != nil {
			return in, err
		}
		in.Email = email
	} else {
		in.Email = ""
	}

	in.SocialMedia = NormalizeSocialLinks(in.SocialMedia)
	return in, nil
}

// NormalizeSocialLinks lower-cases and trims platforms, drops entries with
// an empty platform or URL, and keeps only the last entry per platform.
func NormalizeSocialLinks(links []models.SocialLink) []models.SocialLink {
	seen := make(map[string]struct{}, len(links))
	out := make([]models.SocialLink, 0, len(links))
	for i := len(links) - 1; i >= 0; i-- {
		platform := strings.ToLower(strings.TrimSpace(links[i].Platform))
		url := strings.TrimSpace(links[i].URL)
		if platform == "" || url == "" {
			continue
		}
		if _, dup := seen[platform]; dup {
			continue
		}
		seen[platform] = struct{}{}
		out = append(out, models.SocialLink{Platform: platform, URL: url})
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func profileFromInput(in ProfileInput) *models.Profile {
	return &models.Profile{
		Email:          in.Email,
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		PhoneNumber:    in.PhoneNumber,
		Position:       strings.TrimSpace(in.Position),
		Company:        strings.TrimSpace(in.Company),
		CompanyAddress: strings.TrimSpace(in.CompanyAddress),
		About:          strings.TrimSpace(in.About),
		SocialMedia:    in.SocialMedia,
		PrimaryColour:  strings.TrimSpace(in.PrimaryColour),
		CardColour:     strings.TrimSpace(in.CardColour),
	}
}
