package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/videotube/accounts/internal/auth"
	"github.com/videotube/accounts/internal/events"
	"github.com/videotube/accounts/internal/store"
	"github.com/videotube/accounts/types"
)

const msgRefreshReused = "refresh token has expired or already been used"

// LoginInput identifies the account by username or email.
type LoginInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ChangePasswordInput carries the current password and the new one twice.
type ChangePasswordInput struct {
	OldPassword     string `json:"oldPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// Session is a freshly issued token pair.
type Session struct {
	User                  types.User `json:"user"`
	AccessToken           string     `json:"accessToken"`
	AccessTokenExpiresAt  time.Time  `json:"-"`
	RefreshToken          string     `json:"refreshToken"`
	RefreshTokenExpiresAt time.Time  `json:"-"`
}

// SessionService logs users in and out and rotates refresh tokens.
// Each account holds at most one live refresh token; presenting it again
// after a rotation is rejected.
type SessionService struct {
	users    UserRepository
	sessions SessionStore
	hasher   PasswordHasher
	tokens   Tokens
	options
}

// NewSessionService constructs a SessionService. users and sessions are
// usually the same store.
func NewSessionService(users UserRepository, sessions SessionStore, hasher PasswordHasher, tokens Tokens, opts ...Option) *SessionService {
	return &SessionService{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		tokens:   tokens,
		options:  buildOptions(opts),
	}
}

// Login verifies the password of the account named by username or email,
// issues a token pair and stores its refresh token.
func (s *SessionService) Login(ctx context.Context, in LoginInput) (Session, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	if username == "" && email == "" {
		return Session{}, validation("username or email is required")
	}
	if in.Password == "" {
		return Session{}, validation("password is required")
	}

	identity, err := s.users.GetByUsernameOrEmail(ctx, username, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.metrics.AuthEvent("login", "unknown_user")
			return Session{}, newError(ErrNotFound, "user does not exist", err)
		}
		return Session{}, internal(err)
	}

	ok, err := s.hasher.Verify(in.Password, identity.PasswordHash)
	if err != nil {
		return Session{}, internal(err)
	}
	if !ok {
		s.metrics.AuthEvent("login", "bad_password")
		return Session{}, newError(ErrInvalidCredentials, "invalid user credentials", nil)
	}

	session, err := s.issue(identity.User)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.SetRefreshToken(ctx, identity.ID, &session.RefreshToken); err != nil {
		return Session{}, internal(err)
	}

	s.metrics.AuthEvent("login", "success")
	s.events.Publish(ctx, events.New(events.UserLoggedIn, identity.ID))
	s.logger.InfoContext(ctx, "user logged in", slog.String("user_id", identity.ID))
	return session, nil
}

// Refresh exchanges the presented refresh token for a new pair. The stored
// token is replaced with a compare-and-swap, so of two concurrent refreshes
// with the same token exactly one succeeds.
func (s *SessionService) Refresh(ctx context.Context, presented string) (Session, error) {
	if strings.TrimSpace(presented) == "" {
		return Session{}, newError(ErrUnauthorized, "unauthorized request", nil)
	}

	claims, err := s.tokens.VerifyRefreshToken(presented)
	if err != nil {
		s.metrics.AuthEvent("refresh", "invalid")
		return Session{}, newError(ErrUnauthorized, "invalid refresh token", err)
	}

	identity, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.metrics.AuthEvent("refresh", "invalid")
			return Session{}, newError(ErrUnauthorized, "invalid refresh token", err)
		}
		return Session{}, internal(err)
	}

	stored, err := s.sessions.GetRefreshToken(ctx, identity.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return Session{}, internal(err)
	}
	if stored == nil || *stored != presented {
		return Session{}, s.rejectRefresh(ctx, identity.ID)
	}

	session, err := s.issue(identity.User)
	if err != nil {
		return Session{}, err
	}

	swapped, err := s.sessions.SwapRefreshToken(ctx, identity.ID, presented, session.RefreshToken)
	if err != nil {
		return Session{}, internal(err)
	}
	if !swapped {
		return Session{}, s.rejectRefresh(ctx, identity.ID)
	}

	s.metrics.AuthEvent("refresh", "success")
	s.events.Publish(ctx, events.New(events.SessionRefreshed, identity.ID))
	return session, nil
}

func (s *SessionService) rejectRefresh(ctx context.Context, userID string) error {
	s.metrics.AuthEvent("refresh", "reused")
	s.events.Publish(ctx, events.New(events.SessionRefreshRejected, userID))
	s.logger.WarnContext(ctx, "stale refresh token presented", slog.String("user_id", userID))
	return newError(ErrUnauthorized, msgRefreshReused, nil)
}

// Logout clears the stored refresh token. Access tokens already issued stay
// valid until they expire. Logging out twice, or for an account that no
// longer exists, succeeds.
func (s *SessionService) Logout(ctx context.Context, userID string) error {
	if err := s.sessions.SetRefreshToken(ctx, userID, nil); err != nil && !errors.Is(err, store.ErrNotFound) {
		return internal(err)
	}
	s.metrics.AuthEvent("logout", "success")
	s.events.Publish(ctx, events.New(events.UserLoggedOut, userID))
	return nil
}

// ChangePassword replaces the password after checking the old one.
// The current refresh token is left in place.
func (s *SessionService) ChangePassword(ctx context.Context, userID string, in ChangePasswordInput) error {
	if in.NewPassword != in.ConfirmPassword {
		return validation("new password and confirm password must match")
	}
	if in.NewPassword == "" {
		return validation("new password is required")
	}

	identity, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return newError(ErrNotFound, "user does not exist", err)
		}
		return internal(err)
	}

	ok, err := s.hasher.Verify(in.OldPassword, identity.PasswordHash)
	if err != nil {
		return internal(err)
	}
	if !ok {
		s.metrics.AuthEvent("change_password", "bad_password")
		return newError(ErrInvalidCredentials, "invalid old password", nil)
	}

	hashed, err := hashPassword(s.hasher, in.NewPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, userID, hashed); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return newError(ErrNotFound, "user does not exist", err)
		}
		return internal(err)
	}

	s.metrics.AuthEvent("change_password", "success")
	s.events.Publish(ctx, events.New(events.PasswordChanged, userID))
	return nil
}

// Authenticate resolves an access token to its account. Every failure is
// reported as ErrUnauthorized.
func (s *SessionService) Authenticate(ctx context.Context, accessToken string) (types.User, error) {
	if strings.TrimSpace(accessToken) == "" {
		return types.User{}, newError(ErrUnauthorized, "unauthorized request", nil)
	}

	claims, err := s.tokens.VerifyAccessToken(accessToken)
	if err != nil {
		message := "invalid access token"
		if errors.Is(err, auth.ErrExpired) {
			message = "access token expired"
		}
		return types.User{}, newError(ErrUnauthorized, message, err)
	}

	identity, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.ErrorContext(ctx, "load user for access token", slog.Any("error", err))
		}
		return types.User{}, newError(ErrUnauthorized, "invalid access token", err)
	}
	return identity.User, nil
}

func (s *SessionService) issue(user types.User) (Session, error) {
	access, accessExp, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return Session{}, internal(err)
	}
	refresh, refreshExp, err := s.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return Session{}, internal(err)
	}
	return Session{
		User:                  user,
		AccessToken:           access,
		AccessTokenExpiresAt:  accessExp,
		RefreshToken:          refresh,
		RefreshTokenExpiresAt: refreshExp,
	}, nil
}

func hashPassword(hasher PasswordHasher, plain string) (string, error) {
	hashed, err := hasher.Hash(plain)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return "", newError(ErrValidation, "password is too long", err)
		}
		return "", internal(err)
	}
	return hashed, nil
}
