package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/xtouch/internal/common"
	"github.com/dmitrijs2005/xtouch/internal/dbx"
	"github.com/dmitrijs2005/xtouch/internal/server/mailer"
	"github.com/dmitrijs2005/xtouch/internal/server/models"
	profilesrepo "github.com/dmitrijs2005/xtouch/internal/server/repositories/profiles"
	refreshtokensrepo "github.com/dmitrijs2005/xtouch/internal/server/repositories/refreshtokens"
	usersrepo "github.com/dmitrijs2005/xtouch/internal/server/repositories/users"
	"github.com/google/uuid"
)

var errBoom = errors.New("boom")

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

// --- users ---

type fakeUsersRepo struct {
	mu    sync.Mutex
	users map[string]*models.User

	createErr error
	getErr    error
	updateErr error
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{users: map[string]*models.User{}}
}

func (f *fakeUsersRepo) put(u *models.User) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	f.users[u.ID] = u
	return u
}

func (f *fakeUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	for _, existing := range f.users {
		if existing.Email == u.Email {
			f.mu.Unlock()
			return nil, &common.UniqueViolationError{Constraint: "users_email_key"}
		}
	}
	f.mu.Unlock()
	cp := *u
	cp.IsActive = true
	return f.put(&cp), nil
}

func (f *fakeUsersRepo) find(match func(*models.User) bool) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.ID == id })
}

func (f *fakeUsersRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.Email == email })
}

func (f *fakeUsersRepo) GetByConfirmationToken(_ context.Context, token string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.ConfirmationToken != nil && *u.ConfirmationToken == token })
}

func (f *fakeUsersRepo) GetByResetToken(_ context.Context, token string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.ResetToken != nil && *u.ResetToken == token })
}

func (f *fakeUsersRepo) update(id string, fn func(*models.User)) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	fn(u)
	return nil
}

func (f *fakeUsersRepo) MarkVerified(_ context.Context, id string) error {
	return f.update(id, func(u *models.User) {
		u.EmailVerified = true
		u.ConfirmationToken = nil
		u.ConfirmationExpires = nil
	})
}

func (f *fakeUsersRepo) SetResetToken(_ context.Context, id, token string, expires time.Time) error {
	return f.update(id, func(u *models.User) {
		u.ResetToken = &token
		u.ResetExpires = &expires
	})
}

func (f *fakeUsersRepo) UpdatePassword(_ context.Context, id, hash string) error {
	return f.update(id, func(u *models.User) {
		u.PasswordHash = hash
		u.ResetToken = nil
		u.ResetExpires = nil
	})
}

func (f *fakeUsersRepo) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	return f.update(id, func(u *models.User) { u.LastLogin = &at })
}

func (f *fakeUsersRepo) SetActive(_ context.Context, id string, active bool) error {
	return f.update(id, func(u *models.User) { u.IsActive = active })
}

func (f *fakeUsersRepo) Delete(_ context.Context, id string) error {
	return f.update(id, func(u *models.User) { delete(f.users, u.ID) })
}

// --- refresh tokens ---

type fakeRefreshRepo struct {
	mu     sync.Mutex
	tokens map[string]models.RefreshToken

	findErr   error
	delErr    error
	createErr error
}

func newFakeRefreshRepo() *fakeRefreshRepo {
	return &fakeRefreshRepo{tokens: map[string]models.RefreshToken{}}
}

func (f *fakeRefreshRepo) Create(_ context.Context, userID, token string, validity time.Duration) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[token] = models.RefreshToken{UserID: userID, Token: token, Expires: time.Now().Add(validity)}
	return nil
}

func (f *fakeRefreshRepo) Find(_ context.Context, token string) (*models.RefreshToken, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rt, ok := f.tokens[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &rt, nil
}

func (f *fakeRefreshRepo) Delete(_ context.Context, token string) error {
	if f.delErr != nil {
		return f.delErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tokens, token)
	return nil
}

func (f *fakeRefreshRepo) DeleteByUserID(_ context.Context, userID string) error {
	if f.delErr != nil {
		return f.delErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, v := range f.tokens {
		if v.UserID == userID {
			delete(f.tokens, k)
		}
	}
	return nil
}

func (f *fakeRefreshRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tokens)
}

// --- profiles ---

// fakeProfilesRepo enforces the same unique indexes as the migrations.
// raceSlugs makes the next N Create/Update calls fail with a slug violation
// regardless of content, imitating a concurrent writer.
type fakeProfilesRepo struct {
	mu       sync.Mutex
	profiles map[string]*models.Profile

	raceSlugs int
	createErr error
	updateErr error
	getErr    error
	deleted   []string

	createCalls int
	updateCalls int
}

func newFakeProfilesRepo() *fakeProfilesRepo {
	return &fakeProfilesRepo{profiles: map[string]*models.Profile{}}
}

func (f *fakeProfilesRepo) checkUnique(p *models.Profile) error {
	if f.raceSlugs > 0 {
		f.raceSlugs--
		return &common.UniqueViolationError{Constraint: profilesrepo.SlugConstraint}
	}
	for _, other := range f.profiles {
		if other.ID == p.ID {
			continue
		}
		if other.UserID == p.UserID {
			return &common.UniqueViolationError{Constraint: profilesrepo.OwnerConstraint}
		}
		if other.Slug == p.Slug {
			return &common.UniqueViolationError{Constraint: profilesrepo.SlugConstraint}
		}
	}
	return nil
}

func (f *fakeProfilesRepo) Create(_ context.Context, p *models.Profile) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	if err := f.checkUnique(p); err != nil {
		return nil, err
	}
	cp := *p
	cp.ID = uuid.NewString()
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	f.profiles[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeProfilesRepo) Update(_ context.Context, p *models.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	if f.updateErr != nil {
		return f.updateErr
	}
	cur, ok := f.profiles[p.ID]
	if !ok || cur.UserID != p.UserID {
		return common.ErrorNotFound
	}
	if err := f.checkUnique(p); err != nil {
		return err
	}
	cp := *p
	cp.CreatedAt = cur.CreatedAt
	cp.UpdatedAt = time.Now()
	f.profiles[p.ID] = &cp
	return nil
}

func (f *fakeProfilesRepo) get(match func(*models.Profile) bool) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, p := range f.profiles {
		if match(p) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeProfilesRepo) GetByID(_ context.Context, id string) (*models.Profile, error) {
	return f.get(func(p *models.Profile) bool { return p.ID == id })
}

func (f *fakeProfilesRepo) GetByUserID(_ context.Context, userID string) (*models.Profile, error) {
	return f.get(func(p *models.Profile) bool { return p.UserID == userID })
}

func (f *fakeProfilesRepo) GetBySlug(_ context.Context, slug string) (*models.Profile, error) {
	return f.get(func(p *models.Profile) bool { return p.Slug == slug })
}

func (f *fakeProfilesRepo) SlugsWithPrefix(_ context.Context, base, excludeID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, p := range f.profiles {
		if p.ID == excludeID {
			continue
		}
		if p.Slug == base || strings.HasPrefix(p.Slug, base+"-") {
			out = append(out, p.Slug)
		}
	}
	return out, nil
}

func (f *fakeProfilesRepo) DeleteByUserID(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, p := range f.profiles {
		if p.UserID == userID {
			delete(f.profiles, id)
			f.deleted = append(f.deleted, id)
		}
	}
	return nil
}

// --- manager ---

type fakeRepoManager struct {
	u *fakeUsersRepo
	r *fakeRefreshRepo
	p *fakeProfilesRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{u: newFakeUsersRepo(), r: newFakeRefreshRepo(), p: newFakeProfilesRepo()}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error        { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) usersrepo.Repository                 { return m.u }
func (m *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokensrepo.Repository { return m.r }
func (m *fakeRepoManager) Profiles(dbx.DBTX) profilesrepo.Repository           { return m.p }

// --- mail ---

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg mailer.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeMailer) messages() []mailer.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mailer.Message(nil), f.sent...)
}

// --- blobs ---

type fakeStore struct {
	mu      sync.Mutex
	objects map[string]fakeObject
	putErr  error
	signErr error
}

type fakeObject struct {
	data        []byte
	contentType string
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string]fakeObject{}}
}

func (f *fakeStore) Put(_ context.Context, key string, data []byte, contentType string) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = fakeObject{data: data, contentType: contentType}
	return nil
}

func (f *fakeStore) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	if f.signErr != nil {
		return "", f.signErr
	}
	return "https://blobs.test/" + key + "?ttl=" + ttl.String(), nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

func (f *fakeStore) get(key string) (fakeObject, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.objects[key]
	return o, ok
}

// --- throttle ---

type fakeLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (f *fakeLimiter) Allow(_ context.Context, key string) (bool, error) {
	f.keys = append(f.keys, key)
	return f.allow, f.err
}
