package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/videotube/accounts/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection         = "users"
	subscriptionsCollection = "subscriptions"
)

type userDocument struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Username     string             `bson:"username"`
	Email        string             `bson:"email"`
	FullName     string             `bson:"fullName"`
	Avatar       string             `bson:"avatar"`
	CoverImage   string             `bson:"coverImage"`
	WatchHistory []string           `bson:"watchHistory"`
	Password     string             `bson:"password"`
	RefreshToken *string            `bson:"refreshToken,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt"`
}

func (d userDocument) user() types.User {
	history := d.WatchHistory
	if history == nil {
		history = []string{}
	}
	return types.User{
		ID:           d.ID.Hex(),
		Username:     d.Username,
		Email:        d.Email,
		FullName:     d.FullName,
		Avatar:       d.Avatar,
		CoverImage:   d.CoverImage,
		WatchHistory: history,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func (d userDocument) identity() types.Identity {
	return types.Identity{
		User:         d.user(),
		PasswordHash: d.Password,
		RefreshToken: d.RefreshToken,
	}
}

// MongoStore handles persistence for users, sessions and subscriptions on MongoDB.
type MongoStore struct {
	users         *mongo.Collection
	subscriptions *mongo.Collection
}

// NewMongoStore uses the users and subscriptions collections of db.
// Call EnsureIndexes once before serving.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		users:         db.Collection(usersCollection),
		subscriptions: db.Collection(subscriptionsCollection),
	}
}

// objectID parses a hex id. Ids that cannot exist in the collection report ErrNotFound.
func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ErrNotFound
	}
	return oid, nil
}

func (r *MongoStore) findOne(ctx context.Context, filter any) (types.Identity, error) {
	var doc userDocument
	if err := r.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.Identity{}, ErrNotFound
		}
		return types.Identity{}, fmt.Errorf("find user: %w", err)
	}
	return doc.identity(), nil
}

func (r *MongoStore) GetByID(ctx context.Context, id string) (types.Identity, error) {
	oid, err := objectID(id)
	if err != nil {
		return types.Identity{}, err
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *MongoStore) GetByUsernameOrEmail(ctx context.Context, username, email string) (types.Identity, error) {
	username, email = normalize(username), normalize(email)

	var or bson.A
	if username != "" {
		or = append(or, bson.M{"username": username})
	}
	if email != "" {
		or = append(or, bson.M{"email": email})
	}
	if len(or) == 0 {
		return types.Identity{}, ErrNotFound
	}
	return r.findOne(ctx, bson.M{"$or": or})
}

func (r *MongoStore) Create(ctx context.Context, identity types.Identity) (types.Identity, error) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	doc := userDocument{
		ID:           primitive.NewObjectID(),
		Username:     identity.Username,
		Email:        identity.Email,
		FullName:     identity.FullName,
		Avatar:       identity.Avatar,
		CoverImage:   identity.CoverImage,
		WatchHistory: identity.WatchHistory,
		Password:     identity.PasswordHash,
		RefreshToken: identity.RefreshToken,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if doc.WatchHistory == nil {
		doc.WatchHistory = []string{}
	}

	if _, err := r.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return types.Identity{}, ErrConflict
		}
		return types.Identity{}, fmt.Errorf("insert user: %w", err)
	}
	return doc.identity(), nil
}

func (r *MongoStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	_, err := r.updateUser(ctx, id, bson.M{"$set": bson.M{
		"password":  passwordHash,
		"updatedAt": time.Now().UTC(),
	}})
	return err
}

func (r *MongoStore) UpdateDetails(ctx context.Context, id, fullName, email string) (types.Identity, error) {
	return r.updateUser(ctx, id, bson.M{"$set": bson.M{
		"fullName":  fullName,
		"email":     email,
		"updatedAt": time.Now().UTC(),
	}})
}

func (r *MongoStore) UpdateAvatar(ctx context.Context, id, url string) (types.Identity, error) {
	return r.updateUser(ctx, id, bson.M{"$set": bson.M{
		"avatar":    url,
		"updatedAt": time.Now().UTC(),
	}})
}

func (r *MongoStore) UpdateCoverImage(ctx context.Context, id, url string) (types.Identity, error) {
	return r.updateUser(ctx, id, bson.M{"$set": bson.M{
		"coverImage": url,
		"updatedAt":  time.Now().UTC(),
	}})
}

func (r *MongoStore) updateUser(ctx context.Context, id string, update any) (types.Identity, error) {
	oid, err := objectID(id)
	if err != nil {
		return types.Identity{}, err
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc userDocument
	err = r.users.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&doc)
	if err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			return types.Identity{}, ErrNotFound
		case mongo.IsDuplicateKeyError(err):
			return types.Identity{}, ErrConflict
		}
		return types.Identity{}, fmt.Errorf("update user: %w", err)
	}
	return doc.identity(), nil
}

func (r *MongoStore) GetRefreshToken(ctx context.Context, id string) (*string, error) {
	identity, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return identity.RefreshToken, nil
}

// SetRefreshToken overwrites the stored token; nil removes the field.
func (r *MongoStore) SetRefreshToken(ctx context.Context, id string, token *string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}

	update := bson.M{"$unset": bson.M{"refreshToken": ""}}
	if token != nil {
		update = bson.M{"$set": bson.M{"refreshToken": *token}}
	}
	res, err := r.users.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SwapRefreshToken matches on the expected token inside the filter, so the
// document-level write lock decides which of two concurrent swaps wins.
func (r *MongoStore) SwapRefreshToken(ctx context.Context, id, expected, next string) (bool, error) {
	oid, err := objectID(id)
	if err != nil {
		return false, nil
	}

	res, err := r.users.UpdateOne(ctx,
		bson.M{"_id": oid, "refreshToken": expected},
		bson.M{"$set": bson.M{"refreshToken": next}},
	)
	if err != nil {
		return false, fmt.Errorf("swap refresh token: %w", err)
	}
	return res.MatchedCount == 1, nil
}
