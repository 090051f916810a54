package mapping

import (
	"context"
	"time"

	"go-deskmigrate/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MappingRepository interface {
	Create(ctx context.Context, m *Mapping) error
	Get(ctx context.Context, id string) (*Mapping, error)
	ListByProfile(ctx context.Context, profileID string, activeOnly bool) ([]Mapping, error)
	Update(ctx context.Context, id string, m *Mapping) error
	Delete(ctx context.Context, id string) error
}

type MappingRepositoryImpl struct {
	collection *mongo.Collection
}

func NewMappingRepository(db *database.MongodbDB) MappingRepository {
	return &MappingRepositoryImpl{
		collection: db.DB.Collection("import_mappings"),
	}
}

func (r *MappingRepositoryImpl) Create(ctx context.Context, m *Mapping) error {
	if err := ParseMapping(m); err != nil {
		return err
	}
	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
	m.CreatedAt = time.Now()
	m.UpdatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, m)
	return err
}

func (r *MappingRepositoryImpl) Get(ctx context.Context, id string) (*Mapping, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	var m Mapping
	if err := r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ListByProfile returns a profile's mappings in import order
func (r *MappingRepositoryImpl) ListByProfile(ctx context.Context, profileID string, activeOnly bool) ([]Mapping, error) {
	objID, err := primitive.ObjectIDFromHex(profileID)
	if err != nil {
		return nil, err
	}

	filter := bson.M{"profile_id": objID}
	if activeOnly {
		filter["is_active"] = true
	}

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "import_order", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var mappings []Mapping
	if err := cursor.All(ctx, &mappings); err != nil {
		return nil, err
	}
	return mappings, nil
}

func (r *MappingRepositoryImpl) Update(ctx context.Context, id string, m *Mapping) error {
	if err := ParseMapping(m); err != nil {
		return err
	}
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	m.UpdatedAt = time.Now()
	_, err = r.collection.ReplaceOne(ctx, bson.M{"_id": objID}, m)
	return err
}

func (r *MappingRepositoryImpl) Delete(ctx context.Context, id string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	_, err = r.collection.DeleteOne(ctx, bson.M{"_id": objID})
	return err
}
