package types

import "time"

// User is the public view of an account.
// It never carries credentials or session state.
type User struct {
	// ID is the unique identifier of the user.
	ID string `json:"id"`

	// Username is the unique, lowercase login name chosen by the user.
	Username string `json:"username"`

	// Email is the user's unique, lowercase email address.
	Email string `json:"email"`

	// FullName is the user's display name.
	FullName string `json:"fullName"`

	// Avatar is the URL of the hosted avatar image.
	Avatar string `json:"avatar"`

	// CoverImage is the URL of the hosted cover image, if any.
	CoverImage string `json:"coverImage"`

	// WatchHistory lists watched video IDs, most recent first.
	WatchHistory []string `json:"watchHistory"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updatedAt"`
}

// Identity is a stored account together with its credentials.
// It must not leave the service layer; callers get Identity.User.
type Identity struct {
	User

	// PasswordHash stores the hashed representation of the user's password.
	PasswordHash string `json:"-"`

	// RefreshToken is the single live refresh token, nil when logged out.
	RefreshToken *string `json:"-"`
}
