package store

import (
	"context"
	"sync"
	"time"

	"github.com/videotube/accounts/types"
)

// MemoryStore keeps users, sessions and subscriptions in process memory.
// It backs tests and the "memory" database backend; all state is lost on exit.
type MemoryStore struct {
	mu            sync.Mutex
	users         map[string]*types.Identity
	subscriptions map[string]map[string]struct{} // subscriber -> channels
	now           func() time.Time
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         map[string]*types.Identity{},
		subscriptions: map[string]map[string]struct{}{},
		now:           time.Now,
	}
}

func (m *MemoryStore) GetByID(ctx context.Context, id string) (types.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	identity, ok := m.users[id]
	if !ok {
		return types.Identity{}, ErrNotFound
	}
	return cloneIdentity(identity), nil
}

func (m *MemoryStore) GetByUsernameOrEmail(ctx context.Context, username, email string) (types.Identity, error) {
	username, email = normalize(username), normalize(email)

	m.mu.Lock()
	defer m.mu.Unlock()

	if identity := m.findLocked(username, email); identity != nil {
		return cloneIdentity(identity), nil
	}
	return types.Identity{}, ErrNotFound
}

func (m *MemoryStore) Create(ctx context.Context, identity types.Identity) (types.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.findLocked(identity.Username, identity.Email) != nil {
		return types.Identity{}, ErrConflict
	}

	now := m.now()
	identity.ID = newID()
	identity.CreatedAt = now
	identity.UpdatedAt = now
	if identity.WatchHistory == nil {
		identity.WatchHistory = []string{}
	}
	stored := cloneIdentity(&identity)
	m.users[identity.ID] = &stored
	return cloneIdentity(&stored), nil
}

func (m *MemoryStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return m.update(id, func(identity *types.Identity) error {
		identity.PasswordHash = passwordHash
		return nil
	})
}

func (m *MemoryStore) UpdateDetails(ctx context.Context, id, fullName, email string) (types.Identity, error) {
	var out types.Identity
	err := m.update(id, func(identity *types.Identity) error {
		for otherID, other := range m.users {
			if otherID != id && other.Email == email {
				return ErrConflict
			}
		}
		identity.FullName = fullName
		identity.Email = email
		out = cloneIdentity(identity)
		return nil
	})
	return out, err
}

func (m *MemoryStore) UpdateAvatar(ctx context.Context, id, url string) (types.Identity, error) {
	var out types.Identity
	err := m.update(id, func(identity *types.Identity) error {
		identity.Avatar = url
		out = cloneIdentity(identity)
		return nil
	})
	return out, err
}

func (m *MemoryStore) UpdateCoverImage(ctx context.Context, id, url string) (types.Identity, error) {
	var out types.Identity
	err := m.update(id, func(identity *types.Identity) error {
		identity.CoverImage = url
		out = cloneIdentity(identity)
		return nil
	})
	return out, err
}

func (m *MemoryStore) GetRefreshToken(ctx context.Context, id string) (*string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	identity, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneString(identity.RefreshToken), nil
}

func (m *MemoryStore) SetRefreshToken(ctx context.Context, id string, token *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	identity, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	identity.RefreshToken = cloneString(token)
	return nil
}

// SwapRefreshToken replaces the stored token with next only if it still equals expected.
func (m *MemoryStore) SwapRefreshToken(ctx context.Context, id, expected, next string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	identity, ok := m.users[id]
	if !ok || identity.RefreshToken == nil || *identity.RefreshToken != expected {
		return false, nil
	}
	identity.RefreshToken = &next
	return true, nil
}

func (m *MemoryStore) ChannelProfile(ctx context.Context, username, viewerID string) (types.ChannelProfile, error) {
	username = normalize(username)

	m.mu.Lock()
	defer m.mu.Unlock()

	channel := m.findLocked(username, "")
	if channel == nil {
		return types.ChannelProfile{}, ErrNotFound
	}

	profile := types.ChannelProfile{
		User:                      cloneIdentity(channel).User,
		ChannelsSubscribedToCount: int64(len(m.subscriptions[channel.ID])),
	}
	for subscriber, channels := range m.subscriptions {
		if _, ok := channels[channel.ID]; ok {
			profile.SubscribersCount++
			if subscriber == viewerID {
				profile.IsSubscribed = true
			}
		}
	}
	return profile, nil
}

func (m *MemoryStore) Subscribe(ctx context.Context, subscriberID, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[subscriberID]; !ok {
		return ErrNotFound
	}
	if _, ok := m.users[channelID]; !ok {
		return ErrNotFound
	}
	channels, ok := m.subscriptions[subscriberID]
	if !ok {
		channels = map[string]struct{}{}
		m.subscriptions[subscriberID] = channels
	}
	channels[channelID] = struct{}{}
	return nil
}

func (m *MemoryStore) Unsubscribe(ctx context.Context, subscriberID, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.subscriptions[subscriberID], channelID)
	return nil
}

func (m *MemoryStore) WatchHistory(ctx context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	identity, ok := m.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]string{}, identity.WatchHistory...), nil
}

func (m *MemoryStore) RecordWatch(ctx context.Context, userID, videoID string) error {
	return m.update(userID, func(identity *types.Identity) error {
		identity.WatchHistory = prependUnique(identity.WatchHistory, videoID)
		return nil
	})
}

func (m *MemoryStore) update(id string, fn func(*types.Identity) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	identity, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	if err := fn(identity); err != nil {
		return err
	}
	identity.UpdatedAt = m.now()
	return nil
}

func (m *MemoryStore) findLocked(username, email string) *types.Identity {
	for _, identity := range m.users {
		if username != "" && identity.Username == username {
			return identity
		}
		if email != "" && identity.Email == email {
			return identity
		}
	}
	return nil
}

func cloneIdentity(identity *types.Identity) types.Identity {
	out := *identity
	out.WatchHistory = append([]string{}, identity.WatchHistory...)
	out.RefreshToken = cloneString(identity.RefreshToken)
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
