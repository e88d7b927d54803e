package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskhub/internal/auth"
	"taskhub/internal/cache"
	apperrors "taskhub/internal/errors"
	"taskhub/internal/model"
	"taskhub/internal/repository"
)

const userCacheTTL = 5 * time.Minute

// ProfileUpdate is a self-service profile change. Nil fields are left untouched.
// Password fields are only carried so they can be rejected.
type ProfileUpdate struct {
	Name            *string
	Surname         *string
	Email           *string
	Password        string
	PasswordConfirm string
}

// AdminUpdate is a profile change made by an administrator.
type AdminUpdate struct {
	Name    *string
	Surname *string
	Email   *string
	Role    *string
	Active  *bool
}

// CreateUserInput is an administrator-created account.
type CreateUserInput struct {
	Name            string
	Surname         string
	Email           string
	Role            string
	Password        string
	PasswordConfirm string
}

// UserPage is one page of the user listing.
type UserPage struct {
	Users       []model.User `json:"users"`
	Total       int64        `json:"total"`
	CurrentPage int          `json:"current_page"`
	Limit       int          `json:"limit"`
	TotalPages  int          `json:"total_pages"`
}

// UserService exposes user management operations.
type UserService interface {
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	ListUsers(ctx context.Context, filter repository.ListFilter) (*UserPage, error)
	UpdateMe(ctx context.Context, id uuid.UUID, in ProfileUpdate) (*model.User, error)
	DeactivateMe(ctx context.Context, id uuid.UUID) error

	CreateUser(ctx context.Context, in CreateUserInput) (*model.User, error)
	UpdateUser(ctx context.Context, id uuid.UUID, in AdminUpdate) (*model.User, error)
	SetPassword(ctx context.Context, id uuid.UUID, password, confirm string) error
	DeactivateUser(ctx context.Context, id uuid.UUID) error
}

type userService struct {
	repo      repository.UserRepository
	cache     *cache.Client
	store     auth.TokenStoreInterface
	passwords passwordWriter
	logger    *slog.Logger
}

// NewUserService builds a UserService with repository and cache.
func NewUserService(repo repository.UserRepository, cache *cache.Client, store auth.TokenStoreInterface, hasher *auth.PasswordHasher, logger *slog.Logger) UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &userService{
		repo:      repo,
		cache:     cache,
		store:     store,
		passwords: passwordWriter{hasher: hasher, store: store, now: time.Now},
		logger:    logger,
	}
}

func (s *userService) cacheKey(id uuid.UUID) string {
	return fmt.Sprintf("user:%s", id)
}

func (s *userService) forget(ctx context.Context, id uuid.UUID) {
	_ = s.cache.Delete(ctx, s.cacheKey(id))
}

func (s *userService) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	if data, _ := s.cache.Get(ctx, s.cacheKey(id)); data != nil {
		var cached model.User
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
	}

	user, err := s.repo.FindByID(ctx, id, repository.FindOptions{})
	if err != nil {
		return nil, err
	}
	user = user.Sanitized()

	if payload, err := json.Marshal(user); err == nil {
		_ = s.cache.Set(ctx, s.cacheKey(id), payload, userCacheTTL)
	}
	return user, nil
}

func (s *userService) ListUsers(ctx context.Context, filter repository.ListFilter) (*UserPage, error) {
	filter = filter.Normalize()
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	for i := range users {
		users[i] = *users[i].Sanitized()
	}
	pages := int((total + int64(filter.Limit) - 1) / int64(filter.Limit))
	return &UserPage{
		Users:       users,
		Total:       total,
		CurrentPage: filter.Page,
		Limit:       filter.Limit,
		TotalPages:  pages,
	}, nil
}

// UpdateMe changes name, surname or email. Requests carrying password fields are rejected
// before anything is read or written.
func (s *userService) UpdateMe(ctx context.Context, id uuid.UUID, in ProfileUpdate) (*model.User, error) {
	if in.Password != "" || in.PasswordConfirm != "" {
		return nil, apperrors.ErrPasswordFieldsNotAllowed
	}
	return s.update(ctx, id, AdminUpdate{Name: in.Name, Surname: in.Surname, Email: in.Email})
}

func (s *userService) DeactivateMe(ctx context.Context, id uuid.UUID) error {
	return s.DeactivateUser(ctx, id)
}

func (s *userService) CreateUser(ctx context.Context, in CreateUserInput) (*model.User, error) {
	if err := confirmPassword(in.Password, in.PasswordConfirm); err != nil {
		return nil, err
	}
	role := model.RoleUser
	if in.Role != "" {
		r, err := model.ParseRole(in.Role)
		if err != nil {
			return nil, err
		}
		role = r
	}

	email := model.NormalizeEmail(in.Email)
	if _, err := s.repo.FindByEmail(ctx, email, repository.FindOptions{IncludeInactive: true}); err == nil {
		return nil, apperrors.ErrUserAlreadyExists
	} else if !errors.Is(err, apperrors.ErrUserNotFound) {
		return nil, fmt.Errorf("check user existence: %w", err)
	}

	user := &model.User{
		ID:      uuid.New(),
		Name:    strings.TrimSpace(in.Name),
		Surname: strings.TrimSpace(in.Surname),
		Email:   email,
		Role:    role,
		Active:  true,
	}
	if err := s.passwords.set(user, in.Password, true); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrUserAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.logger.InfoContext(ctx, "user created", slog.String("user_id", user.ID.String()), slog.String("role", string(role)))
	return user.Sanitized(), nil
}

func (s *userService) UpdateUser(ctx context.Context, id uuid.UUID, in AdminUpdate) (*model.User, error) {
	return s.update(ctx, id, in)
}

// SetPassword replaces the password of any user, active or not. Their existing tokens stop resolving.
func (s *userService) SetPassword(ctx context.Context, id uuid.UUID, password, confirm string) error {
	if err := confirmPassword(password, confirm); err != nil {
		return err
	}
	user, err := s.repo.FindByID(ctx, id, repository.FindOptions{IncludeInactive: true, WithPassword: true})
	if err != nil {
		return err
	}
	if err := s.passwords.set(user, password, false); err != nil {
		return err
	}
	if err := s.repo.Save(ctx, user); err != nil {
		return fmt.Errorf("save password: %w", err)
	}
	if err := s.passwords.retireCurrent(ctx, user); err != nil {
		s.logger.WarnContext(ctx, "revoke previous token", slog.String("user_id", id.String()), slog.Any("error", err))
	}
	s.clearPresence(ctx, id)
	return nil
}

// DeactivateUser hides a user from every default lookup. Users are never hard deleted.
func (s *userService) DeactivateUser(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.UpdateFields(ctx, id, map[string]interface{}{"active": false}); err != nil {
		return err
	}
	s.forget(ctx, id)
	s.clearPresence(ctx, id)
	return nil
}

func (s *userService) update(ctx context.Context, id uuid.UUID, in AdminUpdate) (*model.User, error) {
	fields := map[string]interface{}{}
	if in.Name != nil {
		fields["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Surname != nil {
		fields["surname"] = strings.TrimSpace(*in.Surname)
	}
	if in.Email != nil {
		fields["email"] = model.NormalizeEmail(*in.Email)
	}
	if in.Role != nil {
		role, err := model.ParseRole(*in.Role)
		if err != nil {
			return nil, err
		}
		fields["role"] = role
	}
	if in.Active != nil {
		fields["active"] = *in.Active
	}

	if err := s.repo.UpdateFields(ctx, id, fields); err != nil {
		return nil, err
	}
	s.forget(ctx, id)
	if in.Active != nil && !*in.Active {
		s.clearPresence(ctx, id)
	}

	user, err := s.repo.FindByID(ctx, id, repository.FindOptions{IncludeInactive: true})
	if err != nil {
		return nil, err
	}
	return user.Sanitized(), nil
}

func (s *userService) clearPresence(ctx context.Context, id uuid.UUID) {
	if err := s.store.ClearSession(ctx, id.String()); err != nil {
		s.logger.WarnContext(ctx, "clear session presence", slog.String("user_id", id.String()), slog.Any("error", err))
	}
}
