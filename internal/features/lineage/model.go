package lineage

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Import statuses recorded per lineage row
const (
	StatusImported = "imported"
	StatusUpdated  = "updated"
)

// ImportRecord is one row of the lineage ledger. The triple
// (profile_id, source_table, source_id) is unique: a source row maps to
// at most one destination row per profile, forever. SourceData is the
// snapshot of the source row at import time, used to decide on rerun
// whether the destination needs updating.
type ImportRecord struct {
	ID               primitive.ObjectID     `json:"id" bson:"_id,omitempty"`
	ProfileID        primitive.ObjectID     `json:"profile_id" bson:"profile_id"`
	SourceTable      string                 `json:"source_table" bson:"source_table"`
	SourceID         string                 `json:"source_id" bson:"source_id"`
	DestinationTable string                 `json:"destination_table" bson:"destination_table"`
	DestinationID    string                 `json:"destination_id" bson:"destination_id"`
	ImportStatus     string                 `json:"import_status" bson:"import_status"`
	SourceData       map[string]interface{} `json:"source_data" bson:"source_data"`
	ImportedAt       time.Time              `json:"imported_at" bson:"imported_at"`
	UpdatedAt        time.Time              `json:"updated_at" bson:"updated_at"`
}
