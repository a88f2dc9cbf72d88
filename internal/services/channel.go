package services

import (
	"context"
	"errors"
	"strings"

	"github.com/videotube/accounts/internal/store"
	"github.com/videotube/accounts/types"
)

// ChannelService serves channel pages, subscriptions and watch history.
type ChannelService struct {
	users    UserRepository
	channels ChannelRepository
	options
}

// NewChannelService constructs a ChannelService.
func NewChannelService(users UserRepository, channels ChannelRepository, opts ...Option) *ChannelService {
	return &ChannelService{users: users, channels: channels, options: buildOptions(opts)}
}

// Profile returns the channel page for username. viewerID may be empty for
// anonymous viewers.
func (s *ChannelService) Profile(ctx context.Context, username, viewerID string) (types.ChannelProfile, error) {
	username = normalize(username)
	if username == "" {
		return types.ChannelProfile{}, validation("username is missing")
	}
	profile, err := s.channels.ChannelProfile(ctx, username, viewerID)
	if err != nil {
		return types.ChannelProfile{}, notFoundOr(err, "channel does not exist")
	}
	return profile, nil
}

// Subscribe makes subscriberID follow the channel. Subscribing twice is a no-op.
func (s *ChannelService) Subscribe(ctx context.Context, subscriberID, channelUsername string) error {
	channelID, err := s.resolveChannel(ctx, subscriberID, channelUsername)
	if err != nil {
		return err
	}
	if err := s.channels.Subscribe(ctx, subscriberID, channelID); err != nil {
		return notFoundOr(err, "channel does not exist")
	}
	return nil
}

// Unsubscribe removes the subscription if there is one.
func (s *ChannelService) Unsubscribe(ctx context.Context, subscriberID, channelUsername string) error {
	channelID, err := s.resolveChannel(ctx, subscriberID, channelUsername)
	if err != nil {
		return err
	}
	if err := s.channels.Unsubscribe(ctx, subscriberID, channelID); err != nil {
		return internal(err)
	}
	return nil
}

func (s *ChannelService) resolveChannel(ctx context.Context, subscriberID, channelUsername string) (string, error) {
	channelUsername = normalize(channelUsername)
	if channelUsername == "" {
		return "", validation("username is missing")
	}
	channel, err := s.users.GetByUsernameOrEmail(ctx, channelUsername, "")
	if err != nil {
		return "", notFoundOr(err, "channel does not exist")
	}
	if channel.ID == subscriberID {
		return "", validation("cannot subscribe to your own channel")
	}
	return channel.ID, nil
}

// WatchHistory returns watched video ids, most recent first.
func (s *ChannelService) WatchHistory(ctx context.Context, userID string) ([]string, error) {
	history, err := s.channels.WatchHistory(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, "user does not exist")
	}
	return history, nil
}

// RecordWatch moves videoID to the front of the watch history.
func (s *ChannelService) RecordWatch(ctx context.Context, userID, videoID string) error {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return validation("video id is required")
	}
	if err := s.channels.RecordWatch(ctx, userID, videoID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return newError(ErrNotFound, "user does not exist", err)
		}
		return internal(err)
	}
	return nil
}
