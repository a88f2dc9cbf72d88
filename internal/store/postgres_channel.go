package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/videotube/accounts/types"
)

func (r *PostgresStore) ChannelProfile(ctx context.Context, username, viewerID string) (types.ChannelProfile, error) {
	const query = `
		SELECT u.id, u.username, u.email, u.full_name, u.avatar, u.cover_image, u.watch_history,
			u.password_hash, u.refresh_token, u.created_at, u.updated_at,
			(SELECT COUNT(*) FROM subscriptions s WHERE s.channel_id = u.id),
			(SELECT COUNT(*) FROM subscriptions s WHERE s.subscriber_id = u.id),
			EXISTS (SELECT 1 FROM subscriptions s WHERE s.channel_id = u.id AND s.subscriber_id = $2)
		FROM users u
		WHERE u.username = $1`

	var (
		profile types.ChannelProfile
		refresh sql.NullString
		history pq.StringArray
		hash    string
	)
	err := r.db.QueryRowContext(ctx, query, normalize(username), viewerID).Scan(
		&profile.ID,
		&profile.Username,
		&profile.Email,
		&profile.FullName,
		&profile.Avatar,
		&profile.CoverImage,
		&history,
		&hash,
		&refresh,
		&profile.CreatedAt,
		&profile.UpdatedAt,
		&profile.SubscribersCount,
		&profile.ChannelsSubscribedToCount,
		&profile.IsSubscribed,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.ChannelProfile{}, ErrNotFound
		}
		return types.ChannelProfile{}, err
	}
	profile.WatchHistory = []string(history)
	if profile.WatchHistory == nil {
		profile.WatchHistory = []string{}
	}
	return profile, nil
}

func (r *PostgresStore) Subscribe(ctx context.Context, subscriberID, channelID string) error {
	const query = `
		INSERT INTO subscriptions (subscriber_id, channel_id)
		VALUES ($1, $2)
		ON CONFLICT (subscriber_id, channel_id) DO NOTHING`
	_, err := r.db.ExecContext(ctx, query, subscriberID, channelID)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23503" {
		return ErrNotFound
	}
	return err
}

func (r *PostgresStore) Unsubscribe(ctx context.Context, subscriberID, channelID string) error {
	const query = `DELETE FROM subscriptions WHERE subscriber_id = $1 AND channel_id = $2`
	_, err := r.db.ExecContext(ctx, query, subscriberID, channelID)
	return err
}

func (r *PostgresStore) WatchHistory(ctx context.Context, userID string) ([]string, error) {
	var history pq.StringArray
	err := r.db.QueryRowContext(ctx, `SELECT watch_history FROM users WHERE id = $1`, userID).Scan(&history)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if history == nil {
		return []string{}, nil
	}
	return []string(history), nil
}

func (r *PostgresStore) RecordWatch(ctx context.Context, userID, videoID string) error {
	const query = `
		UPDATE users
		SET watch_history = array_prepend($1::text, array_remove(watch_history, $1::text)),
			updated_at = NOW()
		WHERE id = $2`
	return r.exec(ctx, query, videoID, userID)
}
