package orchestrator

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Build lifecycle statuses. Transitions only move forward; completed and
// failed are terminal.
const (
	StatusPreparing  = "preparing"
	StatusQueued     = "queued"
	StatusExtracting = "extracting"
	StatusBuilding   = "building"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Terminal reports whether a status can no longer change.
func Terminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

type buildModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	AppName       string
	Framework     string
	TargetOS      string
	SourceType    string
	SourceURL     *string
	WrapperMode   string
	Status        string
	ErrorMessage  *string
	ProjectConfig datatypes.JSONMap
	CIRunID       *int64
	CompletedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (buildModel) TableName() string { return "builds" }

func (m *buildModel) toAPI() Build {
	b := Build{
		ID:          m.ID,
		AppName:     m.AppName,
		Framework:   m.Framework,
		TargetOS:    m.TargetOS,
		SourceType:  m.SourceType,
		WrapperMode: m.WrapperMode,
		Status:      m.Status,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if m.SourceURL != nil {
		b.SourceURL = *m.SourceURL
	}
	if m.ErrorMessage != nil {
		b.ErrorMessage = *m.ErrorMessage
	}
	b.CIRunID = m.CIRunID
	b.CompletedAt = m.CompletedAt
	return b
}

type artifactModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	BuildID     uuid.UUID `gorm:"type:uuid"`
	FileType    string
	FileName    string
	FileSize    string
	StoragePath string
	DownloadURL *string
	CreatedAt   time.Time
}

func (artifactModel) TableName() string { return "build_artifacts" }

func (m *artifactModel) toAPI() Artifact {
	a := Artifact{
		ID:          m.ID,
		BuildID:     m.BuildID,
		FileType:    m.FileType,
		FileName:    m.FileName,
		FileSize:    m.FileSize,
		StoragePath: m.StoragePath,
		CreatedAt:   m.CreatedAt,
	}
	if m.DownloadURL != nil {
		a.DownloadURL = *m.DownloadURL
	}
	return a
}
