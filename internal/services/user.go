package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/videotube/accounts/internal/events"
	"github.com/videotube/accounts/internal/store"
	"github.com/videotube/accounts/types"
)

// RegisterInput carries a new account. Avatar and CoverImage are URLs of
// media already hosted by the caller.
type RegisterInput struct {
	Username   string
	Email      string
	FullName   string
	Password   string
	Avatar     string
	CoverImage string
}

// normalized returns the input with username, email and full name trimmed and lowercased.
func (in RegisterInput) normalized() RegisterInput {
	in.Username = normalize(in.Username)
	in.Email = normalize(in.Email)
	in.FullName = normalize(in.FullName)
	return in
}

// UserService encapsulates account use-cases.
type UserService struct {
	repo   UserRepository
	hasher PasswordHasher
	options
}

// NewUserService constructs a UserService backed by repo.
func NewUserService(repo UserRepository, hasher PasswordHasher, opts ...Option) *UserService {
	return &UserService{repo: repo, hasher: hasher, options: buildOptions(opts)}
}

// ValidateRegistration checks required fields and uniqueness without
// persisting anything, so callers can reject a request before uploading media.
func (s *UserService) ValidateRegistration(ctx context.Context, in RegisterInput) error {
	in = in.normalized()
	if in.Username == "" || in.Email == "" || in.FullName == "" || strings.TrimSpace(in.Password) == "" {
		return validation("all fields are required")
	}

	_, err := s.repo.GetByUsernameOrEmail(ctx, in.Username, in.Email)
	switch {
	case err == nil:
		return newError(ErrConflict, "user with email or username already exists", nil)
	case errors.Is(err, store.ErrNotFound):
		return nil
	default:
		return internal(err)
	}
}

// Register creates an account. Avatar and cover image are URLs of
// already uploaded images.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (types.User, error) {
	if err := s.ValidateRegistration(ctx, in); err != nil {
		return types.User{}, err
	}
	if strings.TrimSpace(in.Avatar) == "" {
		return types.User{}, validation("avatar file is required")
	}
	in = in.normalized()

	hashed, err := hashPassword(s.hasher, in.Password)
	if err != nil {
		return types.User{}, err
	}

	identity, err := s.repo.Create(ctx, types.Identity{
		User: types.User{
			Username:     in.Username,
			Email:        in.Email,
			FullName:     in.FullName,
			Avatar:       in.Avatar,
			CoverImage:   in.CoverImage,
			WatchHistory: []string{},
		},
		PasswordHash: hashed,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, newError(ErrConflict, "user with email or username already exists", err)
		}
		return types.User{}, internal(err)
	}

	s.metrics.AuthEvent("register", "success")
	s.events.Publish(ctx, events.New(events.UserRegistered, identity.ID))
	s.logger.InfoContext(ctx, "user registered", slog.String("user_id", identity.ID))
	return identity.User, nil
}

// Current returns the account with the given id.
func (s *UserService) Current(ctx context.Context, id string) (types.User, error) {
	identity, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, notFoundOr(err, "user does not exist")
	}
	return identity.User, nil
}

// UpdateDetails replaces the full name and email.
func (s *UserService) UpdateDetails(ctx context.Context, id, fullName, email string) (types.User, error) {
	fullName, email = normalize(fullName), normalize(email)
	if fullName == "" || email == "" {
		return types.User{}, validation("all fields are required")
	}

	identity, err := s.repo.UpdateDetails(ctx, id, fullName, email)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, newError(ErrConflict, "email is already in use", err)
		}
		return types.User{}, notFoundOr(err, "user does not exist")
	}
	return identity.User, nil
}

// UpdateAvatar stores a new avatar URL.
func (s *UserService) UpdateAvatar(ctx context.Context, id, url string) (types.User, error) {
	if strings.TrimSpace(url) == "" {
		return types.User{}, validation("avatar file is missing")
	}
	identity, err := s.repo.UpdateAvatar(ctx, id, url)
	if err != nil {
		return types.User{}, notFoundOr(err, "user does not exist")
	}
	return identity.User, nil
}

// UpdateCoverImage stores a new cover image URL.
func (s *UserService) UpdateCoverImage(ctx context.Context, id, url string) (types.User, error) {
	if strings.TrimSpace(url) == "" {
		return types.User{}, validation("cover image file is missing")
	}
	identity, err := s.repo.UpdateCoverImage(ctx, id, url)
	if err != nil {
		return types.User{}, notFoundOr(err, "user does not exist")
	}
	return identity.User, nil
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// notFoundOr maps store.ErrNotFound to ErrNotFound with message and anything else to ErrInternal.
func notFoundOr(err error, message string) error {
	if errors.Is(err, store.ErrNotFound) {
		return newError(ErrNotFound, message, err)
	}
	return internal(err)
}
