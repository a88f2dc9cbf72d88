package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/videotube/accounts/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

const usersNS = "accounts.users"

func newMockMongo(t *testing.T) *mtest.T {
	return mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock).DatabaseName("accounts"))
}

func updated(matched int32) bson.D {
	return mtest.CreateSuccessResponse(
		bson.E{Key: "n", Value: matched},
		bson.E{Key: "nModified", Value: matched},
	)
}

func userDoc(id primitive.ObjectID, username string, extra ...bson.E) bson.D {
	doc := bson.D{
		{Key: "_id", Value: id},
		{Key: "username", Value: username},
		{Key: "email", Value: username + "@example.com"},
		{Key: "fullName", Value: "Alice Liddell"},
		{Key: "watchHistory", Value: bson.A{}},
		{Key: "password", Value: "hash"},
	}
	return append(doc, extra...)
}

func TestMongoStore_SwapRefreshToken(t *testing.T) {
	mt := newMockMongo(t)
	id := primitive.NewObjectID()

	mt.Run("second swap with the same token loses", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(updated(1), updated(0))

		won, err := s.SwapRefreshToken(context.Background(), id.Hex(), "old", "next-a")
		require.NoError(mt, err)
		assert.True(mt, won)

		won, err = s.SwapRefreshToken(context.Background(), id.Hex(), "old", "next-b")
		require.NoError(mt, err)
		assert.False(mt, won)

		for _, next := range []string{"next-a", "next-b"} {
			evt := mt.GetStartedEvent()
			require.NotNil(mt, evt)
			assert.Equal(mt, "update", evt.CommandName)
			assert.Equal(mt, "old", evt.Command.Lookup("updates", "0", "q", "refreshToken").StringValue())
			assert.Equal(mt, id, evt.Command.Lookup("updates", "0", "q", "_id").ObjectID())
			assert.Equal(mt, next, evt.Command.Lookup("updates", "0", "u", "$set", "refreshToken").StringValue())
		}
	})

	mt.Run("malformed id never matches", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)

		won, err := s.SwapRefreshToken(context.Background(), "not-an-id", "old", "next")
		require.NoError(mt, err)
		assert.False(mt, won)
		assert.Nil(mt, mt.GetStartedEvent())
	})
}

func TestMongoStore_SetRefreshToken(t *testing.T) {
	mt := newMockMongo(t)
	id := primitive.NewObjectID()

	mt.Run("nil clears the field", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(updated(1))

		require.NoError(mt, s.SetRefreshToken(context.Background(), id.Hex(), nil))

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		_, err := evt.Command.LookupErr("updates", "0", "u", "$unset", "refreshToken")
		assert.NoError(mt, err)
	})

	mt.Run("token is set", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(updated(1))

		require.NoError(mt, s.SetRefreshToken(context.Background(), id.Hex(), ptr("tok")))

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, "tok", evt.Command.Lookup("updates", "0", "u", "$set", "refreshToken").StringValue())
	})

	mt.Run("unknown user", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(updated(0))

		err := s.SetRefreshToken(context.Background(), id.Hex(), ptr("tok"))
		assert.ErrorIs(mt, err, ErrNotFound)
	})
}

func TestMongoStore_GetByUsernameOrEmail(t *testing.T) {
	mt := newMockMongo(t)
	id := primitive.NewObjectID()

	mt.Run("found", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, usersNS, mtest.FirstBatch,
			userDoc(id, "alice", bson.E{Key: "refreshToken", Value: "stored"})))

		identity, err := s.GetByUsernameOrEmail(context.Background(), " Alice ", "")
		require.NoError(mt, err)
		assert.Equal(mt, id.Hex(), identity.ID)
		assert.Equal(mt, "alice", identity.Username)
		assert.Equal(mt, "hash", identity.PasswordHash)
		require.NotNil(mt, identity.RefreshToken)
		assert.Equal(mt, "stored", *identity.RefreshToken)
		assert.Equal(mt, []string{}, identity.WatchHistory)

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, "find", evt.CommandName)
		or := evt.Command.Lookup("filter", "$or")
		require.Equal(mt, bsontype.Array, or.Type)
		values, err := or.Array().Values()
		require.NoError(mt, err)
		require.Len(mt, values, 1)
		assert.Equal(mt, "alice", values[0].Document().Lookup("username").StringValue())
	})

	mt.Run("no match", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, usersNS, mtest.FirstBatch))

		_, err := s.GetByUsernameOrEmail(context.Background(), "", "nobody@example.com")
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("no identifiers skips the query", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)

		_, err := s.GetByUsernameOrEmail(context.Background(), " ", "")
		assert.ErrorIs(mt, err, ErrNotFound)
		assert.Nil(mt, mt.GetStartedEvent())
	})
}

func TestMongoStore_Create(t *testing.T) {
	mt := newMockMongo(t)

	mt.Run("inserted", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		identity, err := s.Create(context.Background(), types.Identity{
			User:         types.User{Username: "alice", Email: "alice@example.com", FullName: "Alice"},
			PasswordHash: "hash",
		})
		require.NoError(mt, err)
		assert.NotEmpty(mt, identity.ID)
		assert.Equal(mt, []string{}, identity.WatchHistory)
		assert.False(mt, identity.CreatedAt.IsZero())

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, "insert", evt.CommandName)
		assert.Equal(mt, "alice", evt.Command.Lookup("documents", "0", "username").StringValue())
		_, err = evt.Command.LookupErr("documents", "0", "refreshToken")
		assert.Error(mt, err)
	})

	mt.Run("duplicate key", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: accounts.users index: username_1",
		}))

		_, err := s.Create(context.Background(), types.Identity{
			User: types.User{Username: "alice", Email: "alice@example.com"},
		})
		assert.ErrorIs(mt, err, ErrConflict)
	})
}

func TestMongoStore_UpdateDetails(t *testing.T) {
	mt := newMockMongo(t)
	id := primitive.NewObjectID()

	mt.Run("returns the updated document", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "value", Value: userDoc(id, "alice")},
		))

		identity, err := s.UpdateDetails(context.Background(), id.Hex(), "Alice Liddell", "alice@example.com")
		require.NoError(mt, err)
		assert.Equal(mt, "Alice Liddell", identity.FullName)

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, "findAndModify", evt.CommandName)
		assert.True(mt, evt.Command.Lookup("new").Boolean())
		assert.Equal(mt, "alice@example.com", evt.Command.Lookup("update", "$set", "email").StringValue())
	})

	mt.Run("missing user", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))

		_, err := s.UpdateDetails(context.Background(), id.Hex(), "x", "x@example.com")
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("email taken", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    11000,
			Name:    "DuplicateKey",
			Message: "E11000 duplicate key error collection: accounts.users index: email_1",
		}))

		_, err := s.UpdateDetails(context.Background(), id.Hex(), "x", "bob@example.com")
		assert.ErrorIs(mt, err, ErrConflict)
	})
}

func TestMongoStore_ChannelProfile(t *testing.T) {
	mt := newMockMongo(t)
	channel := primitive.NewObjectID()
	viewer := primitive.NewObjectID()

	mt.Run("decodes counts", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, usersNS, mtest.FirstBatch,
			userDoc(channel, "alice",
				bson.E{Key: "subscribersCount", Value: int32(2)},
				bson.E{Key: "channelsSubscribedToCount", Value: int32(1)},
				bson.E{Key: "isSubscribed", Value: true},
			)))

		profile, err := s.ChannelProfile(context.Background(), "Alice", viewer.Hex())
		require.NoError(mt, err)
		assert.Equal(mt, channel.Hex(), profile.ID)
		assert.Equal(mt, int64(2), profile.SubscribersCount)
		assert.Equal(mt, int64(1), profile.ChannelsSubscribedToCount)
		assert.True(mt, profile.IsSubscribed)

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, "aggregate", evt.CommandName)
		assert.Equal(mt, "alice", evt.Command.Lookup("pipeline", "0", "$match", "username").StringValue())
		assert.Equal(mt, viewer, evt.Command.Lookup("pipeline", "3", "$addFields", "isSubscribed", "$in", "0").ObjectID())
		assert.Equal(mt, int64(0), evt.Command.Lookup("pipeline", "4", "$project", "password").AsInt64())
	})

	mt.Run("unknown channel", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, usersNS, mtest.FirstBatch))

		_, err := s.ChannelProfile(context.Background(), "nobody", "")
		assert.ErrorIs(mt, err, ErrNotFound)
	})
}

func TestMongoStore_Subscribe(t *testing.T) {
	mt := newMockMongo(t)
	subscriber := primitive.NewObjectID()
	channel := primitive.NewObjectID()

	count := func(n int32) bson.D {
		return mtest.CreateCursorResponse(0, usersNS, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: 1}, {Key: "n", Value: n}})
	}

	mt.Run("upserts when both users exist", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(count(2), updated(1))

		require.NoError(mt, s.Subscribe(context.Background(), subscriber.Hex(), channel.Hex()))

		assert.Equal(mt, "aggregate", mt.GetStartedEvent().CommandName)
		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, "update", evt.CommandName)
		assert.Equal(mt, subscriptionsCollection, evt.Command.Lookup("update").StringValue())
		assert.True(mt, evt.Command.Lookup("updates", "0", "upsert").Boolean())
		assert.Equal(mt, channel, evt.Command.Lookup("updates", "0", "q", "channel").ObjectID())
	})

	mt.Run("missing channel", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(count(1))

		err := s.Subscribe(context.Background(), subscriber.Hex(), channel.Hex())
		assert.ErrorIs(mt, err, ErrNotFound)
		assert.Equal(mt, "aggregate", mt.GetStartedEvent().CommandName)
		assert.Nil(mt, mt.GetStartedEvent())
	})
}

func TestMongoStore_RecordWatch(t *testing.T) {
	mt := newMockMongo(t)
	id := primitive.NewObjectID()

	mt.Run("pipeline update", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(updated(1))

		require.NoError(mt, s.RecordWatch(context.Background(), id.Hex(), "v1"))

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		u := evt.Command.Lookup("updates", "0", "u")
		require.Equal(mt, bsontype.Array, u.Type)
		head := evt.Command.Lookup("updates", "0", "u", "0", "$set", "watchHistory", "$concatArrays", "0", "0")
		assert.Equal(mt, "v1", head.StringValue())
	})

	mt.Run("unknown user", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(updated(0))

		err := s.RecordWatch(context.Background(), id.Hex(), "v1")
		assert.ErrorIs(mt, err, ErrNotFound)
	})
}

func TestMongoStore_EnsureIndexes(t *testing.T) {
	mt := newMockMongo(t)

	mt.Run("creates unique indexes", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(), mtest.CreateSuccessResponse())

		require.NoError(mt, s.EnsureIndexes(context.Background()))

		users := mt.GetStartedEvent()
		require.NotNil(mt, users)
		assert.Equal(mt, "createIndexes", users.CommandName)
		assert.Equal(mt, usersCollection, users.Command.Lookup("createIndexes").StringValue())
		assert.True(mt, users.Command.Lookup("indexes", "0", "unique").Boolean())
		assert.True(mt, users.Command.Lookup("indexes", "1", "unique").Boolean())

		subs := mt.GetStartedEvent()
		require.NotNil(mt, subs)
		assert.Equal(mt, subscriptionsCollection, subs.Command.Lookup("createIndexes").StringValue())
		assert.Equal(mt, "subscriber_1_channel_1", subs.Command.Lookup("indexes", "0", "name").StringValue())
	})
}
