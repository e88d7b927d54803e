package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is an account of the project management backend.
// Security fields are never serialized; use Sanitized before handing a user to callers.
type User struct {
	ID      uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	Name    string    `json:"name" gorm:"size:255;not null"`
	Surname string    `json:"surname" gorm:"size:255;not null"`
	Email   string    `json:"email" gorm:"uniqueIndex;size:255;not null"`
	Photo   string    `json:"photo,omitempty" gorm:"size:255"`
	Role    Role      `json:"role" gorm:"size:20;not null;default:'user';index"`

	PasswordHash         string     `json:"-" gorm:"size:255;not null"`
	PasswordChangedAt    *time.Time `json:"-" gorm:"precision:3"`
	PasswordResetToken   *string    `json:"-" gorm:"size:64;index"`
	PasswordResetExpires *time.Time `json:"-"`
	CurrentToken         *string    `json:"-" gorm:"type:text"`

	Active    bool      `json:"-" gorm:"not null;default:true;index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate sets UUID before creating the record.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Sanitized returns a copy without password hash, reset token, change timestamp or session token.
func (u *User) Sanitized() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.PasswordHash = ""
	c.PasswordChangedAt = nil
	c.PasswordResetToken = nil
	c.PasswordResetExpires = nil
	c.CurrentToken = nil
	return &c
}

// ChangedPasswordAfter reports whether the password changed after a token issued at issuedAt.
func (u *User) ChangedPasswordAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return u.PasswordChangedAt.After(issuedAt)
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
