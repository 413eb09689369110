package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/transcribefree/backend/pkg/enums"
)

// ProcessingJob records one transcription attempt's progress.
type ProcessingJob struct {
	ID                   uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	SessionID            uuid.UUID       `gorm:"column:session_id;type:uuid;not null;index"`
	UploadID             uuid.UUID       `gorm:"column:upload_id;type:uuid;not null"`
	Status               enums.JobStatus `gorm:"column:status;not null;default:'pending'"`
	Progress             int             `gorm:"column:progress;not null;default:0"`
	EstimatedSecondsLeft int             `gorm:"column:estimated_seconds_left;not null;default:0"`
	Transcript           *string         `gorm:"column:transcript"`
	Confidence           *float64        `gorm:"column:confidence"`
	Language             *string         `gorm:"column:language"`
	SegmentsJSON         *string         `gorm:"column:segments_json"`
	ProcessingTimeMS     *int64          `gorm:"column:processing_time_ms"`
	MediaDurationSeconds *float64        `gorm:"column:media_duration_seconds"`
	FailureReason        *string         `gorm:"column:failure_reason"`
	StartedAt            time.Time       `gorm:"column:started_at;autoCreateTime"`
	CompletedAt          *time.Time      `gorm:"column:completed_at"`
}
