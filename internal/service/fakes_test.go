package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"taskhub/internal/auth"
	apperrors "taskhub/internal/errors"
	"taskhub/internal/model"
	"taskhub/internal/repository"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }
func (c *fakeClock) Set(t time.Time)         { c.t = t }

// fakeUserRepo keeps users in memory with the same visibility rules as the gorm repository.
type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[uuid.UUID]model.User
	writes int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[uuid.UUID]model.User{}}
}

func (r *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return apperrors.ErrUserAlreadyExists
		}
	}
	r.users[user.ID] = *user
	r.writes++
	return nil
}

func (r *fakeUserRepo) Save(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = *user
	r.writes++
	return nil
}

func (r *fakeUserRepo) UpdateFields(_ context.Context, id uuid.UUID, fields map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(fields) == 0 {
		return nil
	}
	u, ok := r.users[id]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	for k, v := range fields {
		switch k {
		case "name":
			u.Name = v.(string)
		case "surname":
			u.Surname = v.(string)
		case "email":
			u.Email = v.(string)
		case "role":
			u.Role = v.(model.Role)
		case "active":
			u.Active = v.(bool)
		case "current_token":
			u.CurrentToken = optString(v)
		case "password_reset_token":
			u.PasswordResetToken = optString(v)
		case "password_reset_expires":
			u.PasswordResetExpires = optTime(v)
		}
	}
	r.users[id] = u
	r.writes++
	return nil
}

func (r *fakeUserRepo) FindByID(_ context.Context, id uuid.UUID, opts repository.FindOptions) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	return r.visible(u, ok, opts)
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string, opts repository.FindOptions) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	email = model.NormalizeEmail(email)
	for _, u := range r.users {
		if u.Email == email {
			return r.visible(u, true, opts)
		}
	}
	return nil, apperrors.ErrUserNotFound
}

func (r *fakeUserRepo) FindByResetTokenHash(_ context.Context, hash string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.PasswordResetToken != nil && *u.PasswordResetToken == hash {
			return r.visible(u, true, repository.FindOptions{WithPassword: true})
		}
	}
	return nil, apperrors.ErrUserNotFound
}

func (r *fakeUserRepo) ConsumeResetToken(_ context.Context, hash string, now time.Time, fields map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, u := range r.users {
		if u.PasswordResetToken == nil || *u.PasswordResetToken != hash {
			continue
		}
		if !u.Active || u.PasswordResetExpires == nil || !now.Before(*u.PasswordResetExpires) {
			break
		}
		if v, ok := fields["password_hash"].(string); ok {
			u.PasswordHash = v
		}
		if v, ok := fields["password_changed_at"].(time.Time); ok {
			u.PasswordChangedAt = &v
		}
		u.PasswordResetToken = nil
		u.PasswordResetExpires = nil
		r.users[id] = u
		r.writes++
		return nil
	}
	return apperrors.ErrInvalidOrExpiredToken
}

func (r *fakeUserRepo) List(_ context.Context, filter repository.ListFilter) ([]model.User, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.User
	for _, u := range r.users {
		if !u.Active || !strings.Contains(strings.ToLower(u.Name), strings.ToLower(filter.Key)) {
			continue
		}
		u.PasswordHash = ""
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, int64(len(out)), nil
}

func (r *fakeUserRepo) visible(u model.User, ok bool, opts repository.FindOptions) (*model.User, error) {
	if !ok || (!u.Active && !opts.IncludeInactive) {
		return nil, apperrors.ErrUserNotFound
	}
	if !opts.WithPassword {
		u.PasswordHash = ""
	}
	return &u, nil
}

func (r *fakeUserRepo) get(id uuid.UUID) model.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id]
}

func (r *fakeUserRepo) writeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}

func optString(v interface{}) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

func optTime(v interface{}) *time.Time {
	t, ok := v.(time.Time)
	if !ok {
		return nil
	}
	return &t
}

type fakeTokenStore struct {
	mu       sync.Mutex
	sessions map[string]bool
	revoked  map[string]time.Duration
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{sessions: map[string]bool{}, revoked: map[string]time.Duration{}}
}

func (s *fakeTokenStore) MarkSessionActive(_ context.Context, userID string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[userID] = true
	return nil
}

func (s *fakeTokenStore) ClearSession(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	return nil
}

func (s *fakeTokenStore) ActiveSessions(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *fakeTokenStore) RevokeToken(_ context.Context, tokenID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[tokenID] = ttl
	return nil
}

func (s *fakeTokenStore) IsTokenRevoked(_ context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.revoked[tokenID]
	return ok, nil
}

type sentMail struct {
	To, Subject, Body string
}

type recordingMailer struct {
	sent []sentMail
	err  error
}

func (m *recordingMailer) Send(_ context.Context, to, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

// harness wires the auth service against in-memory collaborators sharing one clock.
type harness struct {
	svc    AuthService
	users  *fakeUserRepo
	store  *fakeTokenStore
	mail   *recordingMailer
	clock  *fakeClock
	tokens *auth.JWTService
	hasher *auth.PasswordHasher
}

var epoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		users:  newFakeUserRepo(),
		store:  newFakeTokenStore(),
		mail:   &recordingMailer{},
		clock:  &fakeClock{t: epoch},
		hasher: auth.NewPasswordHasher(4),
	}
	h.tokens = auth.NewJWTService("scenario-secret", time.Hour).WithClock(h.clock.Now)
	h.svc = NewAuthService(AuthDeps{
		Users:  h.users,
		Hasher: h.hasher,
		Tokens: h.tokens,
		Store:  h.store,
		Mailer: h.mail,
		Now:    h.clock.Now,
	})
	return h
}

func (h *harness) seedUser(t *testing.T, email, password string, role model.Role) *model.User {
	t.Helper()
	hash, err := h.hasher.Hash(password)
	require.NoError(t, err)
	u := &model.User{
		ID:           uuid.New(),
		Name:         "Test",
		Surname:      "User",
		Email:        model.NormalizeEmail(email),
		Role:         role,
		PasswordHash: hash,
		Active:       true,
	}
	require.NoError(t, h.users.Create(context.Background(), u))
	return u
}
