package models

import "time"

const (
	ImportCompleted = "completed"
	ImportPartial   = "partial"
)

// RowError records a failed record of a bulk import by its input position.
type RowError struct {
	Row   int    `bson:"row" json:"row"`
	Error string `bson:"error" json:"error"`
}

// ImportBatch is the audit record of one bulk import call.
type ImportBatch struct {
	ImportID       string     `bson:"import_id" json:"import_id"`
	ImportedBy     string     `bson:"imported_by" json:"imported_by"`
	RecordsCount   int64      `bson:"records_count" json:"records_count"`
	RecordsSuccess int64      `bson:"records_success" json:"records_success"`
	RecordsFailed  int64      `bson:"records_failed" json:"records_failed"`
	Errors         []RowError `bson:"errors" json:"errors"`
	Status         string     `bson:"status" json:"status"`
	CreatedAt      time.Time  `bson:"created_at" json:"created_at"`
	CompletedAt    time.Time  `bson:"completed_at" json:"completed_at"`
}
