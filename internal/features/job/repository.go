package job

import (
	"context"
	"fmt"
	"time"

	"go-deskmigrate/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type JobRepository interface {
	Create(ctx context.Context, j *ImportJob) error
	Get(ctx context.Context, id primitive.ObjectID) (*ImportJob, error)
	List(ctx context.Context, profileID *primitive.ObjectID, limit int64) ([]ImportJob, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to JobStatus, failureReason string) error
	SaveProgress(ctx context.Context, j *ImportJob) error
	RequestCancel(ctx context.Context, id primitive.ObjectID) error
	CancelRequested(ctx context.Context, id primitive.ObjectID) (bool, error)
}

type JobRepositoryImpl struct {
	collection *mongo.Collection
}

func NewJobRepository(db *database.MongodbDB) JobRepository {
	return &JobRepositoryImpl{
		collection: db.DB.Collection("import_jobs"),
	}
}

func (r *JobRepositoryImpl) Create(ctx context.Context, j *ImportJob) error {
	if j.ID.IsZero() {
		j.ID = primitive.NewObjectID()
	}
	if j.Status == "" {
		j.Status = StatusPending
	}
	now := time.Now()
	j.CreatedAt = now
	j.UpdatedAt = now

	_, err := r.collection.InsertOne(ctx, j)
	return err
}

func (r *JobRepositoryImpl) Get(ctx context.Context, id primitive.ObjectID) (*ImportJob, error) {
	var j ImportJob
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&j); err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *JobRepositoryImpl) List(ctx context.Context, profileID *primitive.ObjectID, limit int64) ([]ImportJob, error) {
	filter := bson.M{}
	if profileID != nil {
		filter["profile_id"] = *profileID
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var jobs []ImportJob
	if err := cursor.All(ctx, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// UpdateStatus performs a guarded transition: the filter includes the
// expected current status, so a concurrent transition loses cleanly.
func (r *JobRepositoryImpl) UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to JobStatus, failureReason string) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("illegal job transition %s -> %s", from, to)
	}

	now := time.Now()
	set := bson.M{
		"status":     to,
		"updated_at": now,
	}
	if to == StatusRunning {
		set["started_at"] = now
	}
	if to.IsTerminal() {
		set["completed_at"] = now
	}
	if failureReason != "" {
		set["failure_reason"] = failureReason
	}

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id, "status": from}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("job %s is no longer in status %s", id.Hex(), from)
	}
	return nil
}

// SaveProgress persists counters, progress, phase and the error log
func (r *JobRepositoryImpl) SaveProgress(ctx context.Context, j *ImportJob) error {
	j.UpdatedAt = time.Now()
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": j.ID}, bson.M{
		"$set": bson.M{
			"total_records":    j.TotalRecords,
			"counters":         j.Counters,
			"progress":         j.Progress,
			"current_phase":    j.CurrentPhase,
			"errors":           j.Errors,
			"errors_truncated": j.ErrorsTruncated,
			"updated_at":       j.UpdatedAt,
		},
	})
	return err
}

func (r *JobRepositoryImpl) RequestCancel(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{
		"_id":    id,
		"status": bson.M{"$in": []JobStatus{StatusPending, StatusRunning}},
	}, bson.M{
		"$set": bson.M{"cancel_requested": true, "updated_at": time.Now()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("job %s is not cancellable", id.Hex())
	}
	return nil
}

// CancelRequested is polled by the worker between rows
func (r *JobRepositoryImpl) CancelRequested(ctx context.Context, id primitive.ObjectID) (bool, error) {
	var j struct {
		CancelRequested bool `bson:"cancel_requested"`
	}
	err := r.collection.FindOne(ctx, bson.M{"_id": id},
		options.FindOne().SetProjection(bson.M{"cancel_requested": 1})).Decode(&j)
	if err != nil {
		return false, err
	}
	return j.CancelRequested, nil
}
