package services

import (
	"context"
	"time"

	"github.com/videotube/accounts/internal/auth"
	"github.com/videotube/accounts/types"
)

// UserRepository defines persistence operations for accounts.
// Implementations return store.ErrNotFound and store.ErrConflict.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.Identity, error)
	// GetByUsernameOrEmail matches on whichever of username and email is non-empty.
	GetByUsernameOrEmail(ctx context.Context, username, email string) (types.Identity, error)
	Create(ctx context.Context, identity types.Identity) (types.Identity, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateDetails(ctx context.Context, id, fullName, email string) (types.Identity, error)
	UpdateAvatar(ctx context.Context, id, url string) (types.Identity, error)
	UpdateCoverImage(ctx context.Context, id, url string) (types.Identity, error)
}

// SessionStore reads and writes the single live refresh token of an account.
type SessionStore interface {
	GetRefreshToken(ctx context.Context, id string) (*string, error)
	// SetRefreshToken overwrites unconditionally; nil clears the session.
	SetRefreshToken(ctx context.Context, id string, token *string) error
	// SwapRefreshToken stores next only if the stored token still equals
	// expected, atomically with respect to other calls for the same id.
	SwapRefreshToken(ctx context.Context, id, expected, next string) (bool, error)
}

// ChannelRepository serves the subscription graph and watch history.
type ChannelRepository interface {
	ChannelProfile(ctx context.Context, username, viewerID string) (types.ChannelProfile, error)
	Subscribe(ctx context.Context, subscriberID, channelID string) error
	Unsubscribe(ctx context.Context, subscriberID, channelID string) error
	WatchHistory(ctx context.Context, userID string) ([]string, error)
	RecordWatch(ctx context.Context, userID, videoID string) error
}

// PasswordHasher hashes new passwords and checks presented ones.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hashed string) (bool, error)
}

// Tokens issues and verifies access and refresh tokens.
type Tokens interface {
	IssueAccessToken(user types.User) (string, time.Time, error)
	IssueRefreshToken(userID string) (string, time.Time, error)
	VerifyAccessToken(token string) (*auth.AccessClaims, error)
	VerifyRefreshToken(token string) (*auth.RefreshClaims, error)
}
