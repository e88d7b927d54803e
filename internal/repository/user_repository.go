package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "taskhub/internal/errors"
	"taskhub/internal/model"
)

const (
	// DefaultPageSize is used when a list request carries no limit.
	DefaultPageSize = 12
	// MaxPageSize caps list requests.
	MaxPageSize = 100

	passwordHashColumn = "password_hash"
)

// FindOptions widens the default projection of user lookups.
type FindOptions struct {
	// IncludeInactive also returns deactivated users.
	IncludeInactive bool
	// WithPassword loads the password hash, which is excluded by default.
	WithPassword bool
}

// ListFilter selects a page of active users.
type ListFilter struct {
	Key   string
	Page  int
	Limit int
}

// Normalize applies paging defaults and bounds.
func (f ListFilter) Normalize() ListFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	f.Key = strings.TrimSpace(f.Key)
	return f
}

// UserRepository is the credential store. Lookups exclude inactive users and the password
// hash unless FindOptions says otherwise; missing records yield errors.ErrUserNotFound.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	// Save writes every column of user. Callers must pass a record loaded WithPassword.
	Save(ctx context.Context, user *model.User) error
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	FindByID(ctx context.Context, id uuid.UUID, opts FindOptions) (*model.User, error)
	FindByEmail(ctx context.Context, email string, opts FindOptions) (*model.User, error)
	FindByResetTokenHash(ctx context.Context, hash string) (*model.User, error)
	// ConsumeResetToken applies fields to the active user whose reset token hash is still valid
	// at now and clears the token in the same statement. It fails with
	// errors.ErrInvalidOrExpiredToken when no such user exists, so a token is consumed once.
	ConsumeResetToken(ctx context.Context, hash string, now time.Time, fields map[string]interface{}) error
	List(ctx context.Context, filter ListFilter) ([]model.User, int64, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository builds a GORM-backed repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperrors.ErrUserAlreadyExists
		}
		return err
	}
	return nil
}

func (r *userRepository) Save(ctx context.Context, user *model.User) error {
	if user.PasswordHash == "" {
		return fmt.Errorf("save user %s: record loaded without password hash", user.ID)
	}
	return r.db.WithContext(ctx).Save(user).Error
}

func (r *userRepository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return apperrors.ErrUserAlreadyExists
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID, opts FindOptions) (*model.User, error) {
	return r.first(r.scope(ctx, opts).Where("id = ?", id))
}

func (r *userRepository) FindByEmail(ctx context.Context, email string, opts FindOptions) (*model.User, error) {
	return r.first(r.scope(ctx, opts).Where("email = ?", model.NormalizeEmail(email)))
}

// FindByResetTokenHash loads the full record of the active user holding the reset token hash.
// Expiry is checked by the caller.
func (r *userRepository) FindByResetTokenHash(ctx context.Context, hash string) (*model.User, error) {
	return r.first(r.scope(ctx, FindOptions{WithPassword: true}).Where("password_reset_token = ?", hash))
}

func (r *userRepository) ConsumeResetToken(ctx context.Context, hash string, now time.Time, fields map[string]interface{}) error {
	updates := make(map[string]interface{}, len(fields)+2)
	for k, v := range fields {
		updates[k] = v
	}
	updates["password_reset_token"] = nil
	updates["password_reset_expires"] = nil

	res := r.db.WithContext(ctx).Model(&model.User{}).
		Where("password_reset_token = ? AND password_reset_expires > ? AND active = ?", hash, now, true).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrInvalidOrExpiredToken
	}
	return nil
}

func (r *userRepository) List(ctx context.Context, filter ListFilter) ([]model.User, int64, error) {
	filter = filter.Normalize()

	q := r.scope(ctx, FindOptions{}).Model(&model.User{})
	if filter.Key != "" {
		q = q.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(filter.Key)+"%")
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []model.User
	err := q.Order("role ASC").Order("created_at DESC").
		Offset((filter.Page - 1) * filter.Limit).
		Limit(filter.Limit).
		Find(&users).Error
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *userRepository) scope(ctx context.Context, opts FindOptions) *gorm.DB {
	q := r.db.WithContext(ctx)
	if !opts.WithPassword {
		q = q.Omit(passwordHashColumn)
	}
	if !opts.IncludeInactive {
		q = q.Where("active = ?", true)
	}
	return q
}

func (r *userRepository) first(q *gorm.DB) (*model.User, error) {
	var user model.User
	if err := q.First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}
