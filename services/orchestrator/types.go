package orchestrator

import (
	"time"

	"github.com/google/uuid"
)

// SubmitRequest is a conversion request as received from the UI.
type SubmitRequest struct {
	AppName     string `json:"app_name"`
	SourceType  string `json:"source_type"`
	SourceURL   string `json:"source_url,omitempty"`
	Framework   string `json:"framework"`
	TargetOS    string `json:"target_os"`
	WrapperMode string `json:"wrapper_mode,omitempty"`
}

// Build is the client-visible build record.
type Build struct {
	ID           uuid.UUID  `json:"id"`
	AppName      string     `json:"app_name"`
	Framework    string     `json:"framework"`
	TargetOS     string     `json:"target_os"`
	SourceType   string     `json:"source_type"`
	SourceURL    string     `json:"source_url,omitempty"`
	WrapperMode  string     `json:"wrapper_mode"`
	Status       string     `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CIRunID      *int64     `json:"ci_run_id,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Artifact is one stored installer file belonging to a build.
type Artifact struct {
	ID          uuid.UUID `json:"id"`
	BuildID     uuid.UUID `json:"build_id"`
	FileType    string    `json:"file_type"`
	FileName    string    `json:"file_name"`
	FileSize    string    `json:"file_size"`
	StoragePath string    `json:"storage_path"`
	DownloadURL string    `json:"download_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// StatusResult is the outcome of a status check.
type StatusResult struct {
	Status       string     `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	Artifacts    []Artifact `json:"artifacts"`
	RunID        *int64     `json:"ci_run_id,omitempty"`
	RunURL       string     `json:"ci_run_url,omitempty"`
}
