package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/udxhq/udx-backend/internal/apperr"
)

type OrgRepository struct {
	collection *mongo.Collection
}

func NewOrgRepository(db *mongo.Database) *OrgRepository {
	return &OrgRepository{collection: db.Collection("organizations")}
}

func (r *OrgRepository) Create(ctx context.Context, o *Organization) (*Organization, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	o.CreatedAt = time.Now().UTC()
	if _, err := r.collection.InsertOne(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *OrgRepository) GetByID(ctx context.Context, id string) (*Organization, error) {
	var o Organization
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&o)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrgRepository) GetBySlug(ctx context.Context, slug string) (*Organization, error) {
	var o Organization
	err := r.collection.FindOne(ctx, bson.M{"slug": slug}).Decode(&o)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrgRepository) UpdateProfile(ctx context.Context, id string, o *Organization) error {
	update := bson.M{"$set": bson.M{
		"name":        o.Name,
		"description": o.Description,
		"tagline":     o.Tagline,
		"website":     o.Website,
		"is_public":   o.IsPublic,
		"updated_at":  time.Now().UTC(),
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

func (r *OrgRepository) Delete(ctx context.Context, id string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
