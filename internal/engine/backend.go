package engine

import (
	"context"

	"fieldsync/internal/job"
)

// MediaType discriminates uploaded media on the wire.
type MediaType string

const (
	MediaPhoto MediaType = "photo"
	MediaVideo MediaType = "video"
)

// TimeSummary is the server's authoritative time-tracking record for a job.
// ActiveSessionStart is the raw timestamp string as transmitted; parsing it
// is the tracker's concern because the server may omit the timezone.
type TimeSummary struct {
	TotalMinutes       int    `json:"total_minutes"`
	ActiveSessionStart string `json:"active_session_start,omitempty"`
	SessionCount       int    `json:"session_count"`
}

// Backend is the REST collaborator owning jobs and their persistence.
// Mutating calls return only an error; reconciliation happens through
// GetJob and TimeSummary fetches.
type Backend interface {
	// Ping verifies the backend is reachable. Used by the connectivity probe.
	Ping(ctx context.Context) error

	// GetJob fetches the full job aggregate including doors, line items and
	// the time-tracking summary.
	GetJob(ctx context.Context, jobID string) (*job.Job, error)

	// StartJob, PauseJob, ResumeJob and CompleteJob perform the timing
	// transitions, each with an optional signature and signer fields.
	StartJob(ctx context.Context, jobID string, signer job.Signer) error
	PauseJob(ctx context.Context, jobID string, signer job.Signer) error
	ResumeJob(ctx context.Context, jobID string, signer job.Signer) error
	CompleteJob(ctx context.Context, jobID string, signer job.Signer) error

	// ToggleLineItem sets a line item's completion to the requested value.
	// Sending the desired value (not a flip) keeps replays last-write-wins.
	ToggleLineItem(ctx context.Context, jobID, itemID string, completed bool) error

	// CompleteDoor signs off a door with the given signature and signer fields.
	CompleteDoor(ctx context.Context, jobID, doorID string, signer job.Signer) error

	// TimeSummary fetches the time-tracking summary for a job.
	TimeSummary(ctx context.Context, jobID string) (*TimeSummary, error)
}

// Uploader stores captured media and returns the resulting MediaInfo with
// server-issued identifier and URLs.
type Uploader interface {
	UploadPhoto(ctx context.Context, jobID, doorID string, data []byte) (*job.MediaInfo, error)
	UploadVideo(ctx context.Context, jobID, doorID string, data []byte) (*job.MediaInfo, error)
}

// BlobStore persists media payloads referenced by queued changes until they
// are replayed. Keys are engine-issued identifiers.
type BlobStore interface {
	Put(key string, data []byte) error
	Get(key string) ([]byte, error)
	Delete(key string) error
}
