package models

import (
	"time"

	"github.com/google/uuid"
)

// Upload captures metadata for a file accepted into the pipeline.
type Upload struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	SessionID       uuid.UUID `gorm:"column:session_id;type:uuid;not null;index"`
	FileName        string    `gorm:"column:file_name;not null"`
	MimeType        string    `gorm:"column:mime_type;not null"`
	SizeBytes       int64     `gorm:"column:size_bytes;not null"`
	DurationMinutes int       `gorm:"column:duration_minutes;not null"`
	DurationSeconds float64   `gorm:"column:duration_seconds;not null"`
	Estimated       bool      `gorm:"column:estimated;not null;default:false"`
	CostCents       int64     `gorm:"column:cost_cents;not null"`
	StoragePath     string    `gorm:"column:storage_path;not null"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
}
