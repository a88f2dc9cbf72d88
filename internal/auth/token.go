package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/videotube/accounts/types"
)

// TokenConfig holds the secrets and lifetimes for both token kinds.
// Access and refresh tokens are signed with independent secrets so a leak
// of one cannot forge the other.
type TokenConfig struct {
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
}

// Validate checks that the config can be used to sign tokens.
func (c TokenConfig) Validate() error {
	switch {
	case strings.TrimSpace(c.AccessSecret) == "":
		return fmt.Errorf("%w: access token secret is required", ErrConfig)
	case strings.TrimSpace(c.RefreshSecret) == "":
		return fmt.Errorf("%w: refresh token secret is required", ErrConfig)
	case c.AccessSecret == c.RefreshSecret:
		return fmt.Errorf("%w: access and refresh secrets must differ", ErrConfig)
	case c.AccessTTL <= 0:
		return fmt.Errorf("%w: access token expiry must be positive", ErrConfig)
	case c.RefreshTTL <= 0:
		return fmt.Errorf("%w: refresh token expiry must be positive", ErrConfig)
	}
	return nil
}

// AccessClaims is the payload of an access token.
type AccessClaims struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a refresh token. It only identifies the user.
type RefreshClaims struct {
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 access and refresh tokens.
type TokenManager struct {
	accessSecret  []byte
	accessTTL     time.Duration
	refreshSecret []byte
	refreshTTL    time.Duration
	clock         Clock
}

// NewTokenManager validates cfg and returns a TokenManager reading time from clock.
func NewTokenManager(cfg TokenConfig, clock Clock) (*TokenManager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &TokenManager{
		accessSecret:  []byte(cfg.AccessSecret),
		accessTTL:     cfg.AccessTTL,
		refreshSecret: []byte(cfg.RefreshSecret),
		refreshTTL:    cfg.RefreshTTL,
		clock:         clock,
	}, nil
}

// IssueAccessToken signs a short-lived token carrying the user's identity.
func (m *TokenManager) IssueAccessToken(user types.User) (string, time.Time, error) {
	now := m.clock.Now()
	exp := now.Add(m.accessTTL)
	claims := AccessClaims{
		Username:         user.Username,
		Email:            user.Email,
		FullName:         user.FullName,
		RegisteredClaims: registeredClaims(user.ID, now, exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.accessSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, exp, nil
}

// IssueRefreshToken signs a long-lived token carrying only the user ID.
func (m *TokenManager) IssueRefreshToken(userID string) (string, time.Time, error) {
	now := m.clock.Now()
	exp := now.Add(m.refreshTTL)
	claims := RefreshClaims{RegisteredClaims: registeredClaims(userID, now, exp)}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.refreshSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, exp, nil
}

// VerifyAccessToken checks signature and expiry against the access secret.
func (m *TokenManager) VerifyAccessToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := m.parse(tokenString, claims, m.accessSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyRefreshToken checks signature and expiry against the refresh secret.
func (m *TokenManager) VerifyRefreshToken(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := m.parse(tokenString, claims, m.refreshSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

func (m *TokenManager) parse(tokenString string, claims jwt.Claims, secret []byte) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.clock.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpired
		}
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if !token.Valid {
		return ErrInvalidSignature
	}
	subject, err := claims.GetSubject()
	if err != nil || strings.TrimSpace(subject) == "" {
		return fmt.Errorf("%w: missing subject", ErrInvalidSignature)
	}
	return nil
}

func registeredClaims(subject string, now, exp time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   subject,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
}
