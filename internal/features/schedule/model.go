package schedule

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Schedule triggers a recurring import of one profile on a cron
// expression. Each firing starts a normal import job; the lineage
// ledger makes repeated runs cheap.
type Schedule struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ProfileID primitive.ObjectID `json:"profile_id" bson:"profile_id"`
	Name      string             `json:"name" bson:"name"`
	Cron      string             `json:"cron" bson:"cron"`
	Active    bool               `json:"active" bson:"active"`

	LastRun   *time.Time `json:"last_run,omitempty" bson:"last_run,omitempty"`
	LastJobID string     `json:"last_job_id,omitempty" bson:"last_job_id,omitempty"`
	NextRun   *time.Time `json:"next_run,omitempty" bson:"next_run,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}
