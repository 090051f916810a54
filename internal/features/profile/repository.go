package profile

import (
	"context"
	"time"

	"go-deskmigrate/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ProfileRepository interface {
	Create(ctx context.Context, p *ImportProfile) error
	Get(ctx context.Context, id primitive.ObjectID) (*ImportProfile, error)
	GetByHex(ctx context.Context, id string) (*ImportProfile, error)
	List(ctx context.Context) ([]ImportProfile, error)
	Update(ctx context.Context, id primitive.ObjectID, p *ImportProfile) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type ProfileRepositoryImpl struct {
	collection *mongo.Collection
}

func NewProfileRepository(db *database.MongodbDB) ProfileRepository {
	return &ProfileRepositoryImpl{
		collection: db.DB.Collection("import_profiles"),
	}
}

func (r *ProfileRepositoryImpl) Create(ctx context.Context, p *ImportProfile) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := r.collection.InsertOne(ctx, p)
	return err
}

func (r *ProfileRepositoryImpl) Get(ctx context.Context, id primitive.ObjectID) (*ImportProfile, error) {
	var p ImportProfile
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProfileRepositoryImpl) GetByHex(ctx context.Context, id string) (*ImportProfile, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, objID)
}

func (r *ProfileRepositoryImpl) List(ctx context.Context) ([]ImportProfile, error) {
	cursor, err := r.collection.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var profiles []ImportProfile
	if err := cursor.All(ctx, &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *ProfileRepositoryImpl) Update(ctx context.Context, id primitive.ObjectID, p *ImportProfile) error {
	p.ID = id
	p.UpdatedAt = time.Now()
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": id}, p)
	return err
}

func (r *ProfileRepositoryImpl) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}
