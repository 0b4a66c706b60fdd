package domain

import "time"

// JobStatus enumerates generation job lifecycle states.
type JobStatus string

const (
	JobStatusProcessing JobStatus = "Processing"
	JobStatusCompleted  JobStatus = "Completed"
	JobStatusFailed     JobStatus = "Failed"
)

// GenerationJob is the durable record of one render submitted to the
// prediction provider. A job is only created once the provider has accepted
// the submission, so PredictionID is always set for persisted rows; the
// reconciler skips any row where it is empty.
type GenerationJob struct {
	ID           string
	ProjectID    string
	ClothingPath string
	ModelAssetID string
	PredictionID string
	Status       JobStatus
	ResultPath   string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Terminal reports whether the job reached a final state.
func (j *GenerationJob) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
