package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/udxhq/udx-backend/internal/apperr"
)

type UserRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{collection: db.Collection("users")}
}

func (r *UserRepository) Create(ctx context.Context, u *User) (*User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Active = true
	u.CreatedAt = time.Now().UTC()
	if _, err := r.collection.InsertOne(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	var u User
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) ListByOrg(ctx context.Context, orgID string, limit int64) ([]*User, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	cur, err := r.collection.Find(ctx, bson.M{"org_id": orgID}, options.Find().SetLimit(limit))
	if err != nil {
		return nil, err
	}
	users := make([]*User, 0)
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateProfile replaces the mutable profile fields only.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, u *User) error {
	update := bson.M{"$set": bson.M{
		"display_name":     u.DisplayName,
		"bio":              u.Bio,
		"locale":           u.Locale,
		"primary_gameplay": u.PrimaryGameplay,
		"sc_handle":        u.SCHandle,
		"updated_at":       time.Now().UTC(),
	}}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// SetLoggedIn tracks the persisted login flag alongside the realtime status
// broadcast.
func (r *UserRepository) SetLoggedIn(ctx context.Context, id string, loggedIn bool) error {
	update := bson.M{"$set": bson.M{"logged_in": loggedIn}}
	if loggedIn {
		now := time.Now().UTC()
		update = bson.M{"$set": bson.M{"logged_in": true, "last_login_at": now}}
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
