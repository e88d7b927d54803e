package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenExpiry is the validity window of issued tokens when none is configured.
const DefaultTokenExpiry = 90 * 24 * time.Hour

var (
	// ErrTokenInvalid is returned for tokens with a bad signature, algorithm or shape.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is returned for well-signed tokens past their expiry.
	ErrTokenExpired = errors.New("token expired")
)

// Claims represents JWT claims. IssuedAtMillis carries the issue time at the precision
// password changes are recorded with; the registered iat only holds whole seconds.
type Claims struct {
	UserID         uuid.UUID `json:"id"`
	IssuedAtMillis int64     `json:"iat_ms,omitempty"`
	jwt.RegisteredClaims
}

// TokenInfo is the verified content of a token.
type TokenInfo struct {
	UserID    uuid.UUID
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// JWTService handles JWT token generation and validation.
type JWTService struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// NewJWTService creates a new JWT service with the given secret and validity window.
func NewJWTService(secret string, expiry time.Duration) *JWTService {
	if expiry <= 0 {
		expiry = DefaultTokenExpiry
	}
	return &JWTService{
		secret: []byte(secret),
		expiry: expiry,
		now:    time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (s *JWTService) WithClock(now func() time.Time) *JWTService {
	s.now = now
	return s
}

// Issue signs a token binding userID and the issue time.
func (s *JWTService) Issue(userID uuid.UUID) (string, TokenInfo, error) {
	now := s.now()
	info := TokenInfo{
		UserID:    userID,
		TokenID:   uuid.NewString(),
		IssuedAt:  now.Truncate(time.Millisecond),
		ExpiresAt: now.Add(s.expiry).Truncate(time.Second),
	}
	claims := &Claims{
		UserID:         userID,
		IssuedAtMillis: info.IssuedAt.UnixMilli(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        info.TokenID,
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(info.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(info.IssuedAt),
			NotBefore: jwt.NewNumericDate(info.IssuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", TokenInfo{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, info, nil
}

// Verify checks signature and expiry. It returns ErrTokenExpired or ErrTokenInvalid on failure.
func (s *JWTService) Verify(tokenString string) (TokenInfo, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return TokenInfo{}, ErrTokenExpired
		}
		return TokenInfo{}, ErrTokenInvalid
	}
	if !token.Valid || claims.UserID == uuid.Nil || claims.IssuedAt == nil {
		return TokenInfo{}, ErrTokenInvalid
	}

	issuedAt := claims.IssuedAt.Time
	if claims.IssuedAtMillis > 0 {
		issuedAt = time.UnixMilli(claims.IssuedAtMillis)
	}
	return TokenInfo{
		UserID:    claims.UserID,
		TokenID:   claims.ID,
		IssuedAt:  issuedAt,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// TokenIDOf reads the id and expiry of a token without checking its signature.
// Only use it on tokens this service issued and stored itself.
func TokenIDOf(tokenString string) (string, time.Time, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return "", time.Time{}, ErrTokenInvalid
	}
	if claims.ID == "" || claims.ExpiresAt == nil {
		return "", time.Time{}, ErrTokenInvalid
	}
	return claims.ID, claims.ExpiresAt.Time, nil
}
