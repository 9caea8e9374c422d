package audit

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"sealed_socket/internal/model"
)

const DefaultCollection = "auth_attempts"

type (
	AuditRepo struct {
		collection *mongo.Collection
	}
)

func NewAuditRepo(db *mongo.Database, collection string) *AuditRepo {
	if collection == "" {
		collection = DefaultCollection
	}
	return &AuditRepo{
		collection: db.Collection(collection),
	}
}

func (r *AuditRepo) Record(ctx context.Context, attempt *model.AuthAttempt) (primitive.ObjectID, error) {
	res, err := r.collection.InsertOne(ctx, attempt)
	if err != nil {
		return primitive.NilObjectID, err
	}

	id := res.InsertedID.(primitive.ObjectID)
	attempt.ID = id
	return id, nil
}

// ListByRemoteID returns the newest attempts for id first. limit <= 0
// returns them all.
func (r *AuditRepo) ListByRemoteID(ctx context.Context, id string, limit int64) ([]*model.AuthAttempt, error) {
	filter := bson.M{
		"remote_id": id,
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cur, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var attempts []*model.AuthAttempt
	if err := cur.All(ctx, &attempts); err != nil {
		return nil, err
	}
	return attempts, nil
}
