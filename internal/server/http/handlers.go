// Package http exposes the xtouch services over a gin JSON API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/xtouch/internal/common"
	"github.com/dmitrijs2005/xtouch/internal/logging"
	"github.com/dmitrijs2005/xtouch/internal/server/models"
	"github.com/dmitrijs2005/xtouch/internal/server/services"
	"github.com/gin-gonic/gin"
)

const photoField = "profilePhoto"

// UserService is the account API the handlers depend on.
type UserService interface {
	Register(ctx context.Context, email, password string) (*models.User, error)
	ConfirmEmail(ctx context.Context, token string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password, confirm string) error
	Login(ctx context.Context, email, password string) (*services.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Deactivate(ctx context.Context, userID string) error
	Delete(ctx context.Context, userID string) error
}

// ProfileService is the profile API the handlers depend on.
type ProfileService interface {
	CreateProfile(ctx context.Context, ownerUserID string, in services.ProfileInput, img *services.Image) (*services.ProfileRef, error)
	UpdateProfile(ctx context.Context, ownerUserID, profileID string, in services.ProfileInput, img *services.Image) (*services.ProfileRef, error)
	GetProfileBySlug(ctx context.Context, slug string) (*services.PublicProfile, error)
	GetProfileByOwner(ctx context.Context, ownerUserID string) (*services.PublicProfile, error)
	ExchangeContact(ctx context.Context, profileID string, in services.ContactInput) error
}

type Handler struct {
	users          UserService
	profiles       ProfileService
	log            logging.Logger
	maxUploadBytes int64
}

func NewHandler(us UserService, ps ProfileService, log logging.Logger, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	return &Handler{users: us, profiles: ps, log: log, maxUploadBytes: maxUploadBytes}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type resetRequest struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type contactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// socialLinkRequest accepts both "url" and the older "link" key.
type socialLinkRequest struct {
	Platform string `json:"platform"`
	URL      string `json:"url"`
	Link     string `json:"link"`
}

func (h *Handler) Health(c *gin.Context) {
	respondOK(c, http.StatusOK, nil)
}

func (h *Handler) Register(c *gin.Context) {
	var req credentialsRequest
	if !h.bindJSON(c, &req) {
		return
	}
	user, err := h.users.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusCreated, gin.H{"userId": user.ID, "email": user.Email})
}

// ConfirmEmail is opened from the welcome email, so it answers with a page.
func (h *Handler) ConfirmEmail(c *gin.Context) {
	err := h.users.ConfirmEmail(c.Request.Context(), c.Param("token"))
	if err != nil {
		code := StatusFor(err)
		if code >= http.StatusInternalServerError {
			h.log.Error(c.Request.Context(), "confirm email failed", "error", err)
		}
		c.Data(code, "text/html; charset=utf-8", confirmationErrorPage)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", confirmationSuccessPage)
}

func (h *Handler) ForgotPassword(c *gin.Context) {
	var req emailRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if err := h.users.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, nil)
}

func (h *Handler) ResetPassword(c *gin.Context) {
	var req resetRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if err := h.users.ResetPassword(c.Request.Context(), c.Param("token"), req.Password, req.ConfirmPassword); err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, nil)
}

func (h *Handler) Login(c *gin.Context) {
	var req credentialsRequest
	if !h.bindJSON(c, &req) {
		return
	}
	pair, err := h.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"accessToken": pair.AccessToken, "refreshToken": pair.RefreshToken})
}

func (h *Handler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !h.bindJSON(c, &req) {
		return
	}
	pair, err := h.users.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"accessToken": pair.AccessToken, "refreshToken": pair.RefreshToken})
}

func (h *Handler) Deactivate(c *gin.Context) {
	if err := h.users.Deactivate(c.Request.Context(), UserID(c)); err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, nil)
}

func (h *Handler) DeleteAccount(c *gin.Context) {
	if err := h.users.Delete(c.Request.Context(), UserID(c)); err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, nil)
}

func (h *Handler) GetOwnProfile(c *gin.Context) {
	p, err := h.profiles.GetProfileByOwner(c.Request.Context(), UserID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"data": p, "url": p.PhotoURL})
}

func (h *Handler) GetPublicProfile(c *gin.Context) {
	p, err := h.profiles.GetProfileBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"data": p, "url": p.PhotoURL})
}

func (h *Handler) CreateProfile(c *gin.Context) {
	in, img, err := h.readProfileForm(c)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	ref, err := h.profiles.CreateProfile(c.Request.Context(), UserID(c), in, img)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusCreated, gin.H{"data": ref})
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	in, img, err := h.readProfileForm(c)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	ref, err := h.profiles.UpdateProfile(c.Request.Context(), UserID(c), c.Param("id"), in, img)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"data": ref})
}

func (h *Handler) ExchangeContact(c *gin.Context) {
	var req contactRequest
	if !h.bindJSON(c, &req) {
		return
	}
	err := h.profiles.ExchangeContact(c.Request.Context(), c.Param("id"), services.ContactInput{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Message: req.Message,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, nil)
}

func (h *Handler) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, h.log, common.NewValidationError("body", "malformed JSON"))
		return false
	}
	return true
}

// readProfileForm parses a multipart (or urlencoded) profile form. The photo
// is optional.
func (h *Handler) readProfileForm(c *gin.Context) (services.ProfileInput, *services.Image, error) {
	var in services.ProfileInput

	if c.Request.ContentLength > h.maxUploadBytes {
		return in, nil, fmt.Errorf("%w: limit is %d bytes", errUploadTooLarge, h.maxUploadBytes)
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	if err := c.Request.ParseMultipartForm(h.maxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		if isTooLarge(err) {
			return in, nil, fmt.Errorf("%w: limit is %d bytes", errUploadTooLarge, h.maxUploadBytes)
		}
		return in, nil, common.NewValidationError("form", "malformed form data")
	}

	form := c.Request.PostFormValue
	in = services.ProfileInput{
		Email:          form("email"),
		FirstName:      form("firstName"),
		LastName:       form("lastName"),
		PhoneNumber:    form("phoneNumber"),
		Position:       form("position"),
		Company:        form("company"),
		CompanyAddress: form("companyAddress"),
		About:          form("about"),
		PrimaryColour:  form("primaryColour"),
		CardColour:     form("cardColour"),
	}

	links, err := parseSocialMedia(form("socialMedia"))
	if err != nil {
		return in, nil, err
	}
	in.SocialMedia = links

	img, err := readPhoto(c.Request)
	if err != nil {
		return in, nil, err
	}
	return in, img, nil
}

func readPhoto(r *http.Request) (*services.Image, error) {
	file, header, err := r.FormFile(photoField)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, common.NewValidationError(photoField, "unreadable upload")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		if isTooLarge(err) {
			return nil, errUploadTooLarge
		}
		return nil, common.NewValidationError(photoField, "unreadable upload")
	}
	return &services.Image{Data: data, ContentType: header.Header.Get("Content-Type")}, nil
}

func parseSocialMedia(raw string) ([]models.SocialLink, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var items []socialLinkRequest
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, common.NewValidationError("socialMedia", "must be a JSON list of {platform, url}")
	}
	links := make([]models.SocialLink, 0, len(items))
	for _, it := range items {
		url := it.URL
		if url == "" {
			url = it.Link
		}
		links = append(links, models.SocialLink{Platform: it.Platform, URL: url})
	}
	return links, nil
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large")
}

var confirmationSuccessPage = []byte(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Xclusive Touch</title></head>
<body><h1>Email confirmed</h1><p>Your email address has been verified. You can now log in.</p></body></html>`)

var confirmationErrorPage = []byte(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Xclusive Touch</title></head>
<body><h1>Confirmation failed</h1><p>This confirmation link is invalid or has expired.</p></body></html>`)
