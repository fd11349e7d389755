package domain

import "time"

// OrphanedBlob is a blob whose record is gone but whose deletion failed.
// Housekeeping retries it until it succeeds.
type OrphanedBlob struct {
	Key           string
	Attempts      int
	LastError     string
	CreatedAt     time.Time
	NextAttemptAt time.Time
}
