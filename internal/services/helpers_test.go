package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/videotube/accounts/internal/auth"
	"github.com/videotube/accounts/internal/events"
	"github.com/videotube/accounts/internal/store"
	"github.com/videotube/accounts/types"
	"golang.org/x/crypto/bcrypt"
)

type recordedEvents struct {
	mu    sync.Mutex
	types []string
}

func (r *recordedEvents) Publish(_ context.Context, e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, e.Type)
}

func (r *recordedEvents) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.types...)
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

const (
	testAccessTTL  = 15 * time.Minute
	testRefreshTTL = 24 * time.Hour
)

type fixture struct {
	clock    *manualClock
	store    *store.MemoryStore
	hasher   *auth.Hasher
	tokens   *auth.TokenManager
	events   *recordedEvents
	sessions *SessionService
	users    *UserService
	channels *ChannelService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	hasher, err := auth.NewHasher(bcrypt.MinCost)
	require.NoError(t, err)
	clock := &manualClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	tokens, err := auth.NewTokenManager(auth.TokenConfig{
		AccessSecret:  "access-secret",
		AccessTTL:     testAccessTTL,
		RefreshSecret: "refresh-secret",
		RefreshTTL:    testRefreshTTL,
	}, clock)
	require.NoError(t, err)

	f := &fixture{
		clock:  clock,
		store:  store.NewMemoryStore(),
		hasher: hasher,
		tokens: tokens,
		events: &recordedEvents{},
	}
	f.sessions = NewSessionService(f.store, f.store, hasher, tokens, WithEvents(f.events))
	f.users = NewUserService(f.store, hasher, WithEvents(f.events))
	f.channels = NewChannelService(f.store, f.store)
	return f
}

// register creates an account through the service so inputs are normalized like production.
func (f *fixture) register(t *testing.T, username, password string) types.User {
	t.Helper()
	user, err := f.users.Register(context.Background(), RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		FullName: username,
		Password: password,
		Avatar:   "https://media.example.com/" + username + ".png",
	})
	require.NoError(t, err)
	return user
}
