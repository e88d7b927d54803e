package service

import (
	"context"
	"fmt"
	"time"

	"taskhub/internal/auth"
	apperrors "taskhub/internal/errors"
	"taskhub/internal/model"
)

// passwordWriter is the only place a password hash is written onto a user.
type passwordWriter struct {
	hasher *auth.PasswordHasher
	store  auth.TokenStoreInterface
	now    func() time.Time
}

// set hashes plaintext onto user. Existing users also get PasswordChangedAt, which invalidates
// every token issued before now; new users keep it nil.
func (w passwordWriter) set(user *model.User, plaintext string, isNew bool) error {
	hash, err := w.hasher.Hash(plaintext)
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	user.PasswordHash = hash
	if !isNew {
		// Stored columns keep milliseconds, the precision of the token issue time.
		changed := w.now().Truncate(time.Millisecond)
		user.PasswordChangedAt = &changed
	}
	return nil
}

// retireCurrent revokes the token last issued to user. A token issued in the same millisecond
// as a password change is not caught by PasswordChangedAt.
func (w passwordWriter) retireCurrent(ctx context.Context, user *model.User) error {
	if w.store == nil || user.CurrentToken == nil || *user.CurrentToken == "" {
		return nil
	}
	id, expires, err := auth.TokenIDOf(*user.CurrentToken)
	if err != nil {
		return nil
	}
	return w.store.RevokeToken(ctx, id, expires.Sub(w.now()))
}

func confirmPassword(password, confirm string) error {
	if password != confirm {
		return apperrors.ErrPasswordMismatch
	}
	return nil
}
