package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/transcribefree/backend/pkg/enums"
)

// WorkflowSession tracks one client's walk through the transcription funnel.
type WorkflowSession struct {
	ID             uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	CurrentStep    enums.WorkflowStep `gorm:"column:current_step;not null;default:'upload'"`
	CompletedSteps int                `gorm:"column:completed_steps;not null;default:0"`
	PaymentRef     *string            `gorm:"column:payment_ref"`
	CreatedAt      time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time          `gorm:"column:updated_at;autoUpdateTime"`

	Upload *Upload        `gorm:"foreignKey:SessionID"`
	Job    *ProcessingJob `gorm:"foreignKey:SessionID"`
}
