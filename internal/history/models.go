package history

import "time"

// Upload statuses recorded in history.
const (
	StatusSuccess  = "success"
	StatusFailed   = "failed"
	StatusRejected = "rejected"
)

// UploadRecord represents one processed upload in the database.
type UploadRecord struct {
	ID              int64
	Archive         string // committed archive name, empty if staging failed
	Release         string // release directory name, empty unless deployed
	SizeBytes       int64
	Status          string // success, failed, rejected
	StartedAt       time.Time
	DurationSeconds *float64 // nullable
	ErrorMessage    *string  // nullable
}
