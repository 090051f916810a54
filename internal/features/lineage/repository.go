package lineage

import (
	"context"
	"time"

	"go-deskmigrate/internal/database"
	"go-deskmigrate/internal/features/dedupe"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type LineageRepository interface {
	Create(ctx context.Context, rec *ImportRecord) error
	Find(ctx context.Context, profileID primitive.ObjectID, sourceTable, sourceID string) (*ImportRecord, error)
	MarkUpdated(ctx context.Context, id primitive.ObjectID, sourceData map[string]interface{}) error
	ListByDestinationTable(ctx context.Context, profileID primitive.ObjectID, destinationTable string, limit int64) ([]ImportRecord, error)
	CountByProfile(ctx context.Context, profileID primitive.ObjectID) (int64, error)
	EnsureIndexes(ctx context.Context) error
}

type LineageRepositoryImpl struct {
	collection *mongo.Collection
}

func NewLineageRepository(db *database.MongodbDB) LineageRepository {
	return &LineageRepositoryImpl{
		collection: db.DB.Collection("import_records"),
	}
}

// EnsureIndexes creates the uniqueness guard of the ledger. The unique
// index makes concurrent double-imports of the same source row a write
// conflict instead of a silent duplicate.
func (r *LineageRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "profile_id", Value: 1},
				{Key: "source_table", Value: 1},
				{Key: "source_id", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "profile_id", Value: 1},
				{Key: "destination_table", Value: 1},
				{Key: "imported_at", Value: -1},
			},
		},
	})
	return err
}

func (r *LineageRepositoryImpl) Create(ctx context.Context, rec *ImportRecord) error {
	if rec.ID.IsZero() {
		rec.ID = primitive.NewObjectID()
	}
	if rec.ImportStatus == "" {
		rec.ImportStatus = StatusImported
	}
	now := time.Now()
	rec.ImportedAt = now
	rec.UpdatedAt = now

	_, err := r.collection.InsertOne(ctx, rec)
	return err
}

func (r *LineageRepositoryImpl) Find(ctx context.Context, profileID primitive.ObjectID, sourceTable, sourceID string) (*ImportRecord, error) {
	var rec ImportRecord
	err := r.collection.FindOne(ctx, bson.M{
		"profile_id":   profileID,
		"source_table": sourceTable,
		"source_id":    sourceID,
	}).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// MarkUpdated replaces the snapshot and flips the status to "updated"
func (r *LineageRepositoryImpl) MarkUpdated(ctx context.Context, id primitive.ObjectID, sourceData map[string]interface{}) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"import_status": StatusUpdated,
			"source_data":   sourceData,
			"updated_at":    time.Now(),
		},
	})
	return err
}

func (r *LineageRepositoryImpl) ListByDestinationTable(ctx context.Context, profileID primitive.ObjectID, destinationTable string, limit int64) ([]ImportRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "imported_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := r.collection.Find(ctx, bson.M{
		"profile_id":        profileID,
		"destination_table": destinationTable,
	}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []ImportRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *LineageRepositoryImpl) CountByProfile(ctx context.Context, profileID primitive.ObjectID) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"profile_id": profileID})
}

// PriorSource adapts the ledger to the duplicate detector's contract
type PriorSource struct {
	repo LineageRepository
}

func NewPriorSource(repo LineageRepository) *PriorSource {
	return &PriorSource{repo: repo}
}

func (s *PriorSource) Prior(ctx context.Context, profileID, destinationTable string, limit int64) ([]dedupe.PriorRecord, error) {
	objID, err := primitive.ObjectIDFromHex(profileID)
	if err != nil {
		return nil, err
	}

	records, err := s.repo.ListByDestinationTable(ctx, objID, destinationTable, limit)
	if err != nil {
		return nil, err
	}

	prior := make([]dedupe.PriorRecord, 0, len(records))
	for _, rec := range records {
		prior = append(prior, dedupe.PriorRecord{
			DestinationID: rec.DestinationID,
			Fields:        rec.SourceData,
		})
	}
	return prior, nil
}
