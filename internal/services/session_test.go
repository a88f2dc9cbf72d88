package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/videotube/accounts/internal/events"
)

func TestLogin_StoresIssuedRefreshToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.register(t, "alice", "pw1")

	session, err := f.sessions.Login(ctx, LoginInput{Username: "alice", Password: "pw1"})
	require.NoError(t, err)
	assert.NotEmpty(t, session.AccessToken)
	assert.NotEmpty(t, session.RefreshToken)
	assert.Equal(t, alice.ID, session.User.ID)

	stored, err := f.store.GetRefreshToken(ctx, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, session.RefreshToken, *stored)

	claims, err := f.tokens.VerifyAccessToken(session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, claims.Subject)
	assert.Equal(t, "alice", claims.Username)

	assert.Contains(t, f.events.list(), events.UserLoggedIn)
}

func TestLogin_NormalizesIdentifier(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "Alice", "pw1")

	_, err := f.sessions.Login(ctx, LoginInput{Username: "Alice", Password: "pw1"})
	require.NoError(t, err)

	_, err = f.sessions.Login(ctx, LoginInput{Email: " ALICE@example.com ", Password: "pw1"})
	require.NoError(t, err)
}

func TestLogin_Failures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "alice", "pw1")

	tests := []struct {
		name string
		in   LoginInput
		kind error
	}{
		{"no identifier", LoginInput{Password: "pw1"}, ErrValidation},
		{"no password", LoginInput{Username: "alice"}, ErrValidation},
		{"unknown user", LoginInput{Username: "bob", Password: "pw1"}, ErrNotFound},
		{"wrong password", LoginInput{Username: "alice", Password: "pw2"}, ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.sessions.Login(ctx, tt.in)
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}

func TestRefresh_RotatesAndRejectsReuse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.register(t, "alice", "pw1")

	first, err := f.sessions.Login(ctx, LoginInput{Username: "alice", Password: "pw1"})
	require.NoError(t, err)

	second, err := f.sessions.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	stored, err := f.store.GetRefreshToken(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, second.RefreshToken, *stored)

	_, err = f.sessions.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, msgRefreshReused, MessageOf(err))

	third, err := f.sessions.Refresh(ctx, second.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, third.AccessToken)

	assert.Contains(t, f.events.list(), events.SessionRefreshRejected)
}

func TestRefresh_Invalid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "alice", "pw1")

	session, err := f.sessions.Login(ctx, LoginInput{Username: "alice", Password: "pw1"})
	require.NoError(t, err)

	for name, token := range map[string]string{
		"empty":        "",
		"garbage":      "not-a-token",
		"access token": session.AccessToken,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.sessions.Refresh(ctx, token)
			assert.ErrorIs(t, err, ErrUnauthorized)
		})
	}
}

type unreadableSessions struct {
	SessionStore
}

func (unreadableSessions) GetRefreshToken(context.Context, string) (*string, error) {
	return nil, errors.New("session store unavailable")
}

func TestRefresh_ReadsStoredTokenFromSessionStore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "alice", "pw1")

	session, err := f.sessions.Login(ctx, LoginInput{Username: "alice", Password: "pw1"})
	require.NoError(t, err)

	sessions := NewSessionService(f.store, unreadableSessions{SessionStore: f.store}, f.hasher, f.tokens)
	_, err = sessions.Refresh(ctx, session.RefreshToken)
	assert.ErrorIs(t, err, ErrInternal)
}

func TestRefresh_ExpiredToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.register(t, "alice", "pw1")

	session, err := f.sessions.Login(ctx, LoginInput{Username: "alice", Password: "pw1"})
	require.NoError(t, err)

	f.clock.Advance(testRefreshTTL + time.Second)

	_, err = f.sessions.Refresh(ctx, session.RefreshToken)
	assert.ErrorIs(t, err, ErrUnauthorized)

	stored, err := f.store.GetRefreshToken(ctx, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, session.RefreshToken, *stored, "an expired presentation must not rotate the stored token")
}

func TestRefresh_ConcurrentSameTokenSingleWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "alice", "pw1")

	session, err := f.sessions.Login(ctx, LoginInput{Username: "alice", Password: "pw1"})
	require.NoError(t, err)

	const callers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		denied  int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.sessions.Refresh(ctx, session.RefreshToken)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case KindOf(err) == ErrUnauthorized:
				denied++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	assert.Equal(t, callers-1, denied)
}

func TestLogout_IsIdempotentAndEndsRefresh(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.register(t, "alice", "pw1")

	session, err := f.sessions.Login(ctx, LoginInput{Username: "alice", Password: "pw1"})
	require.NoError(t, err)

	require.NoError(t, f.sessions.Logout(ctx, alice.ID))
	require.NoError(t, f.sessions.Logout(ctx, alice.ID))
	require.NoError(t, f.sessions.Logout(ctx, "missing"))

	stored, err := f.store.GetRefreshToken(ctx, alice.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)

	_, err = f.sessions.Refresh(ctx, session.RefreshToken)
	assert.ErrorIs(t, err, ErrUnauthorized)

	user, err := f.sessions.Authenticate(ctx, session.AccessToken)
	require.NoError(t, err, "access tokens stay valid until expiry")
	assert.Equal(t, alice.ID, user.ID)

	f.clock.Advance(testAccessTTL + time.Second)
	_, err = f.sessions.Authenticate(ctx, session.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, "access token expired", MessageOf(err))
}

func TestChangePassword_MismatchedConfirmation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.register(t, "alice", "pw1")

	err := f.sessions.ChangePassword(ctx, alice.ID, ChangePasswordInput{
		OldPassword:     "pw1",
		NewPassword:     "pw2",
		ConfirmPassword: "pw3",
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.sessions.Login(ctx, LoginInput{Username: "alice", Password: "pw1"})
	assert.NoError(t, err, "password must be unchanged")
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.register(t, "alice", "pw1")

	err := f.sessions.ChangePassword(ctx, alice.ID, ChangePasswordInput{
		OldPassword:     "wrong",
		NewPassword:     "pw2",
		ConfirmPassword: "pw2",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	err = f.sessions.ChangePassword(ctx, alice.ID, ChangePasswordInput{
		OldPassword:     "pw1",
		NewPassword:     strings.Repeat("x", 80),
		ConfirmPassword: strings.Repeat("x", 80),
	})
	assert.ErrorIs(t, err, ErrValidation)

	err = f.sessions.ChangePassword(ctx, alice.ID, ChangePasswordInput{
		OldPassword:     "pw1",
		NewPassword:     "pw2",
		ConfirmPassword: "pw2",
	})
	require.NoError(t, err)

	_, err = f.sessions.Login(ctx, LoginInput{Username: "alice", Password: "pw1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.sessions.Login(ctx, LoginInput{Username: "alice", Password: "pw2"})
	assert.NoError(t, err)
	assert.Contains(t, f.events.list(), events.PasswordChanged)
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.register(t, "alice", "pw1")

	session, err := f.sessions.Login(ctx, LoginInput{Username: "alice", Password: "pw1"})
	require.NoError(t, err)

	user, err := f.sessions.Authenticate(ctx, session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, user.ID)
	assert.Equal(t, alice.Username, user.Username)

	for name, token := range map[string]string{
		"empty":         "",
		"garbage":       "abc",
		"refresh token": session.RefreshToken,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.sessions.Authenticate(ctx, token)
			assert.ErrorIs(t, err, ErrUnauthorized)
		})
	}
}
