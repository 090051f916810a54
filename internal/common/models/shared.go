package models

import (
	"time"
)

type ContextKey string

const (
	JobIDKey ContextKey = "job_id"
)

// Log is the persisted shape of an application log line
type Log struct {
	Message      string    `bson:"message" json:"message"`
	JobID        string    `bson:"job_id,omitempty" json:"job_id,omitempty"`
	Caller       string    `bson:"caller,omitempty" json:"caller,omitempty"`
	LogLevelId   int       `bson:"log_level_id" json:"log_level_id"`
	AppId        string    `bson:"app_id" json:"app_id"`
	CreatedOnUtc time.Time `bson:"created_on_utc" json:"created_on_utc"`
}
