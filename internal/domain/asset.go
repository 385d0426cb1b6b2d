package domain

import "time"

// Asset is a finalized artifact belonging to a job.
type Asset struct {
	ID         string
	JobID      string
	BrandID    string
	StorageKey string
	URL        string
	MIME       string
	Bytes      int64
	Attempt    int
	Score      float64
	CreatedAt  time.Time
}
