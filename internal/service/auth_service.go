package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskhub/internal/auth"
	apperrors "taskhub/internal/errors"
	"taskhub/internal/mailer"
	"taskhub/internal/metrics"
	"taskhub/internal/model"
	"taskhub/internal/repository"
)

// DefaultResetTokenTTL is how long a password reset token stays usable.
const DefaultResetTokenTTL = 10 * time.Minute

// Session is the result of every operation that logs a user in.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *model.User
}

// SignupInput carries the fields of a self-service registration.
type SignupInput struct {
	Name            string
	Surname         string
	Email           string
	Password        string
	PasswordConfirm string
}

// AuthService handles authentication operations.
type AuthService interface {
	Signup(ctx context.Context, in SignupInput, profileURL string) (*Session, error)
	Login(ctx context.Context, email, password string) (*Session, error)
	Logout(ctx context.Context, token string) error
	// Authenticate resolves a raw token to its active user. It never writes to the store.
	Authenticate(ctx context.Context, token string) (*model.User, error)
	UpdatePassword(ctx context.Context, userID uuid.UUID, current, password, confirm string) (*Session, error)
	// ForgotPassword mails a reset link built by resetURL. Unknown emails succeed silently.
	ForgotPassword(ctx context.Context, email string, resetURL func(token string) string) error
	ResetPassword(ctx context.Context, token, password, confirm string) (*Session, error)
	ActiveSessions(ctx context.Context) ([]string, error)
}

// AuthDeps groups the collaborators of the auth service.
type AuthDeps struct {
	Users         repository.UserRepository
	Hasher        *auth.PasswordHasher
	Tokens        *auth.JWTService
	Store         auth.TokenStoreInterface
	Mailer        mailer.Mailer
	Metrics       *metrics.AuthMetrics
	Logger        *slog.Logger
	ResetTokenTTL time.Duration
	// Now defaults to time.Now. Tests pass the same clock to Tokens.
	Now func() time.Time
}

type authService struct {
	users     repository.UserRepository
	tokens    *auth.JWTService
	store     auth.TokenStoreInterface
	mailer    mailer.Mailer
	metrics   *metrics.AuthMetrics
	logger    *slog.Logger
	hasher    *auth.PasswordHasher
	passwords passwordWriter
	resetTTL  time.Duration
	now       func() time.Time
}

// NewAuthService creates a new authentication service.
func NewAuthService(d AuthDeps) AuthService {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := d.ResetTokenTTL
	if ttl <= 0 {
		ttl = DefaultResetTokenTTL
	}
	return &authService{
		users:     d.Users,
		tokens:    d.Tokens,
		store:     d.Store,
		mailer:    d.Mailer,
		metrics:   d.Metrics,
		logger:    logger,
		hasher:    d.Hasher,
		passwords: passwordWriter{hasher: d.Hasher, store: d.Store, now: now},
		resetTTL:  ttl,
		now:       now,
	}
}

// Signup registers a user with the default role and logs them in.
func (s *authService) Signup(ctx context.Context, in SignupInput, profileURL string) (*Session, error) {
	if err := confirmPassword(in.Password, in.PasswordConfirm); err != nil {
		return nil, err
	}

	email := model.NormalizeEmail(in.Email)
	existing, err := s.users.FindByEmail(ctx, email, repository.FindOptions{IncludeInactive: true})
	if err == nil && existing != nil {
		return nil, apperrors.ErrUserAlreadyExists
	}
	if err != nil && !errors.Is(err, apperrors.ErrUserNotFound) {
		return nil, fmt.Errorf("check user existence: %w", err)
	}

	user := &model.User{
		ID:      uuid.New(),
		Name:    strings.TrimSpace(in.Name),
		Surname: strings.TrimSpace(in.Surname),
		Email:   email,
		Role:    model.RoleUser,
		Active:  true,
	}
	if err := s.passwords.set(user, in.Password, true); err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrUserAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	subject := "Welcome to taskhub"
	if err := s.mailer.Send(ctx, user.Email, subject, mailer.WelcomeBody(user.Name, profileURL)); err != nil {
		s.logger.WarnContext(ctx, "welcome email not sent", slog.String("user_id", user.ID.String()), slog.Any("error", err))
	}

	return s.startSession(ctx, user)
}

// Login checks credentials and issues a token. Unknown email and wrong password fail identically.
func (s *authService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.FindByEmail(ctx, email, repository.FindOptions{WithPassword: true})
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			s.metrics.Login("invalid_credentials")
			return nil, apperrors.ErrInvalidCredentials
		}
		s.metrics.Login("error")
		return nil, fmt.Errorf("find user: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.metrics.Login("invalid_credentials")
		return nil, apperrors.ErrInvalidCredentials
	}

	session, err := s.startSession(ctx, user)
	if err != nil {
		s.metrics.Login("error")
		return nil, err
	}
	s.metrics.Login("success")
	return session, nil
}

// Logout revokes token until its natural expiry. Missing or unverifiable tokens are ignored.
func (s *authService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	info, err := s.tokens.Verify(token)
	if err != nil {
		return nil
	}

	if err := s.store.RevokeToken(ctx, info.TokenID, info.ExpiresAt.Sub(s.now())); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	if err := s.store.ClearSession(ctx, info.UserID.String()); err != nil {
		s.logger.WarnContext(ctx, "clear session presence", slog.String("user_id", info.UserID.String()), slog.Any("error", err))
	}
	if err := s.users.UpdateFields(ctx, info.UserID, map[string]interface{}{"current_token": nil}); err != nil {
		s.logger.WarnContext(ctx, "clear current token", slog.String("user_id", info.UserID.String()), slog.Any("error", err))
	}
	return nil
}

func (s *authService) Authenticate(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		s.metrics.ResolveFailure("missing")
		return nil, apperrors.ErrUnauthenticated
	}

	info, err := s.tokens.Verify(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			s.metrics.ResolveFailure("expired")
		} else {
			s.metrics.ResolveFailure("invalid")
		}
		return nil, apperrors.ErrUnauthenticated
	}

	revoked, err := s.store.IsTokenRevoked(ctx, info.TokenID)
	if err != nil {
		s.logger.WarnContext(ctx, "revocation check failed", slog.Any("error", err))
	}
	if revoked {
		s.metrics.ResolveFailure("revoked")
		return nil, apperrors.ErrUnauthenticated
	}

	user, err := s.users.FindByID(ctx, info.UserID, repository.FindOptions{})
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			s.metrics.ResolveFailure("user_gone")
			return nil, apperrors.ErrUnauthenticated
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	if user.ChangedPasswordAfter(info.IssuedAt) {
		s.metrics.ResolveFailure("password_changed")
		return nil, apperrors.ErrUnauthenticated
	}
	return user, nil
}

// UpdatePassword re-verifies the current password, stores the new one and issues a fresh token.
// Every token issued before the change stops resolving.
func (s *authService) UpdatePassword(ctx context.Context, userID uuid.UUID, current, password, confirm string) (*Session, error) {
	if err := confirmPassword(password, confirm); err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, userID, repository.FindOptions{WithPassword: true})
	if err != nil {
		return nil, err
	}
	if !s.hasher.Verify(current, user.PasswordHash) {
		return nil, apperrors.ErrInvalidCredentials
	}

	if err := s.passwords.set(user, password, false); err != nil {
		return nil, err
	}
	if err := s.users.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("save password: %w", err)
	}
	s.retireCurrent(ctx, user)
	return s.startSession(ctx, user)
}

func (s *authService) ForgotPassword(ctx context.Context, email string, resetURL func(token string) string) error {
	user, err := s.users.FindByEmail(ctx, email, repository.FindOptions{})
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			s.logger.DebugContext(ctx, "password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("find user: %w", err)
	}

	plain, hash, err := auth.NewResetToken()
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	expires := s.now().Add(s.resetTTL)
	if err := s.users.UpdateFields(ctx, user.ID, map[string]interface{}{
		"password_reset_token":   hash,
		"password_reset_expires": expires,
	}); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}
	s.metrics.PasswordReset("requested")

	subject := fmt.Sprintf("Your password reset token (valid for %d min)", int(s.resetTTL.Minutes()))
	body := mailer.PasswordResetBody(user.Name, resetURL(plain))
	if err := s.mailer.Send(ctx, user.Email, subject, body); err != nil {
		s.metrics.PasswordReset("delivery_failed")
		s.logger.ErrorContext(ctx, "password reset email failed", slog.String("user_id", user.ID.String()), slog.Any("error", err))
		if clearErr := s.users.UpdateFields(ctx, user.ID, map[string]interface{}{
			"password_reset_token":   nil,
			"password_reset_expires": nil,
		}); clearErr != nil {
			s.logger.ErrorContext(ctx, "roll back reset token", slog.String("user_id", user.ID.String()), slog.Any("error", clearErr))
		}
		return fmt.Errorf("%w: %v", apperrors.ErrEmailDelivery, err)
	}
	return nil
}

// ResetPassword consumes a reset token. It is usable once, while now is before its expiry;
// of two concurrent resets with the same token only one succeeds.
func (s *authService) ResetPassword(ctx context.Context, token, password, confirm string) (*Session, error) {
	if err := confirmPassword(password, confirm); err != nil {
		return nil, err
	}

	digest := auth.HashResetToken(token)
	user, err := s.users.FindByResetTokenHash(ctx, digest)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			s.metrics.PasswordReset("rejected")
			return nil, apperrors.ErrInvalidOrExpiredToken
		}
		return nil, fmt.Errorf("find reset token: %w", err)
	}
	now := s.now()
	if user.PasswordResetExpires == nil || !now.Before(*user.PasswordResetExpires) {
		s.metrics.PasswordReset("rejected")
		return nil, apperrors.ErrInvalidOrExpiredToken
	}

	if err := s.passwords.set(user, password, false); err != nil {
		return nil, err
	}
	err = s.users.ConsumeResetToken(ctx, digest, now, map[string]interface{}{
		"password_hash":       user.PasswordHash,
		"password_changed_at": *user.PasswordChangedAt,
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidOrExpiredToken) {
			s.metrics.PasswordReset("rejected")
			return nil, err
		}
		return nil, fmt.Errorf("consume reset token: %w", err)
	}
	user.PasswordResetToken = nil
	user.PasswordResetExpires = nil
	s.metrics.PasswordReset("completed")
	s.retireCurrent(ctx, user)
	return s.startSession(ctx, user)
}

func (s *authService) ActiveSessions(ctx context.Context) ([]string, error) {
	return s.store.ActiveSessions(ctx)
}

func (s *authService) retireCurrent(ctx context.Context, user *model.User) {
	if err := s.passwords.retireCurrent(ctx, user); err != nil {
		s.logger.WarnContext(ctx, "revoke previous token", slog.String("user_id", user.ID.String()), slog.Any("error", err))
	}
}

// startSession issues a token for user. Persisting the token and marking presence are best effort.
func (s *authService) startSession(ctx context.Context, user *model.User) (*Session, error) {
	token, info, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	if err := s.users.UpdateFields(ctx, user.ID, map[string]interface{}{"current_token": token}); err != nil {
		s.logger.WarnContext(ctx, "persist current token", slog.String("user_id", user.ID.String()), slog.Any("error", err))
	}
	if err := s.store.MarkSessionActive(ctx, user.ID.String(), info.ExpiresAt.Sub(s.now())); err != nil {
		s.logger.WarnContext(ctx, "mark session active", slog.String("user_id", user.ID.String()), slog.Any("error", err))
	}

	return &Session{Token: token, ExpiresAt: info.ExpiresAt, User: user.Sanitized()}, nil
}
