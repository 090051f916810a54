package schedule

import (
	"context"
	"time"

	"go-deskmigrate/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type ScheduleRepository interface {
	Create(ctx context.Context, s *Schedule) error
	Get(ctx context.Context, id string) (*Schedule, error)
	List(ctx context.Context, activeOnly bool) ([]Schedule, error)
	Update(ctx context.Context, id string, s *Schedule) error
	Delete(ctx context.Context, id string) error
	RecordRun(ctx context.Context, id primitive.ObjectID, jobID string, nextRun *time.Time) error
}

type ScheduleRepositoryImpl struct {
	collection *mongo.Collection
}

func NewScheduleRepository(db *database.MongodbDB) ScheduleRepository {
	return &ScheduleRepositoryImpl{
		collection: db.DB.Collection("import_schedules"),
	}
}

func (r *ScheduleRepositoryImpl) Create(ctx context.Context, s *Schedule) error {
	if s.ID.IsZero() {
		s.ID = primitive.NewObjectID()
	}
	now := time.Now()
	s.CreatedAt = now
	s.UpdatedAt = now

	_, err := r.collection.InsertOne(ctx, s)
	return err
}

func (r *ScheduleRepositoryImpl) Get(ctx context.Context, id string) (*Schedule, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	var s Schedule
	if err := r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *ScheduleRepositoryImpl) List(ctx context.Context, activeOnly bool) ([]Schedule, error) {
	filter := bson.M{}
	if activeOnly {
		filter["active"] = true
	}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var schedules []Schedule
	if err := cursor.All(ctx, &schedules); err != nil {
		return nil, err
	}
	return schedules, nil
}

func (r *ScheduleRepositoryImpl) Update(ctx context.Context, id string, s *Schedule) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	s.ID = objID
	s.UpdatedAt = time.Now()
	_, err = r.collection.ReplaceOne(ctx, bson.M{"_id": objID}, s)
	return err
}

func (r *ScheduleRepositoryImpl) Delete(ctx context.Context, id string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	_, err = r.collection.DeleteOne(ctx, bson.M{"_id": objID})
	return err
}

func (r *ScheduleRepositoryImpl) RecordRun(ctx context.Context, id primitive.ObjectID, jobID string, nextRun *time.Time) error {
	now := time.Now()
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"last_run":    now,
			"last_job_id": jobID,
			"next_run":    nextRun,
			"updated_at":  now,
		},
	})
	return err
}
