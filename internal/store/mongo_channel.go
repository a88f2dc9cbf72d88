package store

import (
	"context"
	"fmt"
	"time"

	"github.com/videotube/accounts/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type channelDocument struct {
	User                      userDocument `bson:",inline"`
	SubscribersCount          int64        `bson:"subscribersCount"`
	ChannelsSubscribedToCount int64        `bson:"channelsSubscribedToCount"`
	IsSubscribed              bool         `bson:"isSubscribed"`
}

func (r *MongoStore) ChannelProfile(ctx context.Context, username, viewerID string) (types.ChannelProfile, error) {
	viewer, err := primitive.ObjectIDFromHex(viewerID)
	if err != nil {
		viewer = primitive.NilObjectID
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"username": normalize(username)}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         subscriptionsCollection,
			"localField":   "_id",
			"foreignField": "channel",
			"as":           "subscribers",
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         subscriptionsCollection,
			"localField":   "_id",
			"foreignField": "subscriber",
			"as":           "subscribedTo",
		}}},
		{{Key: "$addFields", Value: bson.M{
			"subscribersCount":          bson.M{"$size": "$subscribers"},
			"channelsSubscribedToCount": bson.M{"$size": "$subscribedTo"},
			"isSubscribed":              bson.M{"$in": bson.A{viewer, "$subscribers.subscriber"}},
		}}},
		{{Key: "$project", Value: bson.M{
			"subscribers":  0,
			"subscribedTo": 0,
			"password":     0,
			"refreshToken": 0,
		}}},
	}

	cursor, err := r.users.Aggregate(ctx, pipeline)
	if err != nil {
		return types.ChannelProfile{}, fmt.Errorf("aggregate channel: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []channelDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return types.ChannelProfile{}, fmt.Errorf("decode channel: %w", err)
	}
	if len(docs) == 0 {
		return types.ChannelProfile{}, ErrNotFound
	}

	doc := docs[0]
	return types.ChannelProfile{
		User:                      doc.User.user(),
		SubscribersCount:          doc.SubscribersCount,
		ChannelsSubscribedToCount: doc.ChannelsSubscribedToCount,
		IsSubscribed:              doc.IsSubscribed,
	}, nil
}

func (r *MongoStore) Subscribe(ctx context.Context, subscriberID, channelID string) error {
	subscriber, err := objectID(subscriberID)
	if err != nil {
		return err
	}
	channel, err := objectID(channelID)
	if err != nil {
		return err
	}

	n, err := r.users.CountDocuments(ctx, bson.M{"_id": bson.M{"$in": bson.A{subscriber, channel}}})
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if n != 2 {
		return ErrNotFound
	}

	filter := bson.M{"subscriber": subscriber, "channel": channel}
	update := bson.M{"$setOnInsert": bson.M{"createdAt": time.Now().UTC()}}
	_, err = r.subscriptions.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

func (r *MongoStore) Unsubscribe(ctx context.Context, subscriberID, channelID string) error {
	subscriber, err := objectID(subscriberID)
	if err != nil {
		return nil
	}
	channel, err := objectID(channelID)
	if err != nil {
		return nil
	}
	if _, err := r.subscriptions.DeleteOne(ctx, bson.M{"subscriber": subscriber, "channel": channel}); err != nil {
		return fmt.Errorf("unsubscribe: %w", err)
	}
	return nil
}

func (r *MongoStore) WatchHistory(ctx context.Context, userID string) ([]string, error) {
	identity, err := r.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return identity.WatchHistory, nil
}

// RecordWatch moves videoID to the front of the history in a single pipeline update.
func (r *MongoStore) RecordWatch(ctx context.Context, userID, videoID string) error {
	oid, err := objectID(userID)
	if err != nil {
		return err
	}

	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"watchHistory": bson.M{"$concatArrays": bson.A{
				bson.A{videoID},
				bson.M{"$filter": bson.M{
					"input": bson.M{"$ifNull": bson.A{"$watchHistory", bson.A{}}},
					"cond":  bson.M{"$ne": bson.A{"$$this", videoID}},
				}},
			}},
			"updatedAt": time.Now().UTC(),
		}}},
	}
	res, err := r.users.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("record watch: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
