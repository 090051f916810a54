package job

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// JobStatus is the lifecycle state of an import job
type JobStatus string

const (
	StatusPending             JobStatus = "pending"
	StatusRunning             JobStatus = "running"
	StatusCompleted           JobStatus = "completed"
	StatusCompletedWithErrors JobStatus = "completed_with_errors"
	StatusFailed              JobStatus = "failed"
	StatusCancelled           JobStatus = "cancelled"
)

// IsTerminal reports whether the status admits no further transitions
func (s JobStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCompletedWithErrors, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// maxStoredErrors bounds the per-job error log so a pathological run
// cannot grow the job document without limit
const maxStoredErrors = 100

// JobError is one recorded per-record failure
type JobError struct {
	SourceTable string    `json:"source_table" bson:"source_table"`
	SourceID    string    `json:"source_id" bson:"source_id"`
	Message     string    `json:"message" bson:"message"`
	Kind        string    `json:"kind" bson:"kind"` // validation, transformation, schema, connection
	OccurredAt  time.Time `json:"occurred_at" bson:"occurred_at"`
}

// Counters accumulate per-row outcomes. processed is the sum of the
// other four; it only ever grows.
type Counters struct {
	Processed int `json:"processed" bson:"processed"`
	Imported  int `json:"imported" bson:"imported"`
	Updated   int `json:"updated" bson:"updated"`
	Skipped   int `json:"skipped" bson:"skipped"`
	Failed    int `json:"failed" bson:"failed"`
}

// ImportJob is the persistent record of one import run
type ImportJob struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ProfileID primitive.ObjectID `json:"profile_id" bson:"profile_id"`
	Status    JobStatus          `json:"status" bson:"status"`

	TotalRecords int      `json:"total_records" bson:"total_records"`
	Counters     Counters `json:"counters" bson:"counters"`
	Progress     float64  `json:"progress" bson:"progress"` // 0..100, monotonic
	CurrentPhase string   `json:"current_phase" bson:"current_phase"`

	Errors          []JobError `json:"errors,omitempty" bson:"errors,omitempty"`
	ErrorsTruncated bool       `json:"errors_truncated" bson:"errors_truncated"`
	FailureReason   string     `json:"failure_reason,omitempty" bson:"failure_reason,omitempty"`

	CancelRequested bool `json:"cancel_requested" bson:"cancel_requested"`

	StartedAt   *time.Time `json:"started_at,omitempty" bson:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" bson:"updated_at"`
}

// RecordError appends to the bounded error log
func (j *ImportJob) RecordError(e JobError) {
	if len(j.Errors) >= maxStoredErrors {
		j.ErrorsTruncated = true
		return
	}
	j.Errors = append(j.Errors, e)
}

// AdvanceProgress raises Progress to p, never lowering it
func (j *ImportJob) AdvanceProgress(p float64) {
	if p > 100 {
		p = 100
	}
	if p > j.Progress {
		j.Progress = p
	}
}

// validTransitions encodes the state machine. Terminal states have no
// outgoing edges.
var validTransitions = map[JobStatus][]JobStatus{
	StatusPending: {StatusRunning, StatusCancelled, StatusFailed},
	StatusRunning: {StatusCompleted, StatusCompletedWithErrors, StatusFailed, StatusCancelled},
}

// CanTransition reports whether from -> to is a legal status change
func CanTransition(from, to JobStatus) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
