// Package models defines server-side data models persisted in the database
// and exchanged over the HTTP API.
package models

import "time"

// JobStatus is the lifecycle state of a processing job.
//
// Transitions are forward-only:
//
//	pending → processing → completed
//	                     → failed
//
// completed and failed are terminal. Admitted jobs start in "processing":
// from the server's perspective the batch is already in flight once it has
// been queued, there is no separate "queued" state.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// statusRank orders statuses along the forward-only lifecycle. Terminal
// states share the highest rank so neither can replace the other.
var statusRank = map[JobStatus]int{
	JobStatusPending:    0,
	JobStatusProcessing: 1,
	JobStatusCompleted:  2,
	JobStatusFailed:     2,
}

// Valid reports whether s is a known job status.
func (s JobStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// CanTransition reports whether a job may move from status from to status to.
// Setting the same status again is allowed (idempotent worker retries).
func CanTransition(from, to JobStatus) bool {
	fromRank, ok := statusRank[from]
	if !ok {
		return false
	}
	toRank, ok := statusRank[to]
	if !ok {
		return false
	}
	if from == to {
		return true
	}
	if fromRank == toRank {
		// completed and failed are distinct terminal states
		return false
	}
	return toRank > fromRank
}

// JobFile is one successfully uploaded file attached to a job. JSON field
// names follow the queue wire format consumed by the AI worker.
type JobFile struct {
	// StorageKey is the object-storage key of the uploaded file.
	StorageKey string `json:"s3Key"`
	// StorageURL is a publicly addressable read URL for the object.
	StorageURL string `json:"s3Url"`
	// OriginalName is the client-declared file name.
	OriginalName string `json:"originalName"`
}

// Job is the durable record representing one admitted batch's processing
// lifecycle. The full document is persisted as a JSONB blob keyed by JobID.
type Job struct {
	// JobID is generated at confirmation time and immutable afterwards.
	JobID string `json:"jobId"`
	// BatchID correlates the job with the upload admission round-trip.
	BatchID string `json:"batchId"`
	// Type identifies the processing pipeline (currently always image_processing).
	Type string `json:"type"`
	// Files holds one entry per successfully uploaded file, in manifest order.
	Files []JobFile `json:"files"`
	// Metadata carries arbitrary client-supplied context passed to the worker.
	Metadata map[string]any `json:"metadata"`
	// Status is the current lifecycle state.
	Status JobStatus `json:"status"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

// JobTypeImageProcessing is the job type enqueued by batch admission.
const JobTypeImageProcessing = "image_processing"
