package auth

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"taskhub/internal/cache"
)

const (
	sessionKeyPrefix      = "session:user:"
	revokedTokenKeyPrefix = "blacklist:token:"
)

// TokenStoreInterface defines the interface for token storage operations.
type TokenStoreInterface interface {
	MarkSessionActive(ctx context.Context, userID string, ttl time.Duration) error
	ClearSession(ctx context.Context, userID string) error
	ActiveSessions(ctx context.Context) ([]string, error)
	RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error
	IsTokenRevoked(ctx context.Context, tokenID string) (bool, error)
}

// TokenStore keeps session presence and revoked token ids in Redis.
// Presence is advisory; revocation fails open when Redis is unavailable.
type TokenStore struct {
	cache *cache.Client
}

// Ensure TokenStore implements TokenStoreInterface
var _ TokenStoreInterface = (*TokenStore)(nil)

// NewTokenStore creates a new token store.
func NewTokenStore(cache *cache.Client) *TokenStore {
	return &TokenStore{cache: cache}
}

// MarkSessionActive records that userID holds a live token for ttl.
func (s *TokenStore) MarkSessionActive(ctx context.Context, userID string, ttl time.Duration) error {
	return s.cache.Set(ctx, sessionKeyPrefix+userID, []byte(time.Now().UTC().Format(time.RFC3339)), ttl)
}

// ClearSession drops the presence entry of userID.
func (s *TokenStore) ClearSession(ctx context.Context, userID string) error {
	return s.cache.Delete(ctx, sessionKeyPrefix+userID)
}

// ActiveSessions lists user ids with a presence entry, sorted.
func (s *TokenStore) ActiveSessions(ctx context.Context) ([]string, error) {
	keys, err := s.cache.Keys(ctx, sessionKeyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, strings.TrimPrefix(k, sessionKeyPrefix))
	}
	sort.Strings(ids)
	return ids, nil
}

// RevokeToken blacklists a token id until it would have expired anyway.
func (s *TokenStore) RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	if tokenID == "" || ttl <= 0 {
		return nil
	}
	return s.cache.Set(ctx, revokedTokenKeyPrefix+tokenID, []byte("1"), ttl)
}

// IsTokenRevoked checks if a token id is blacklisted.
func (s *TokenStore) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	data, err := s.cache.Get(ctx, revokedTokenKeyPrefix+tokenID)
	if err != nil {
		return false, nil
	}
	return data != nil, nil
}
