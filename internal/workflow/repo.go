package workflow

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/transcribefree/backend/pkg/db/models"
)

// Repository persists workflow sessions and their attachments.
type Repository interface {
	CreateSession(ctx context.Context, session *models.WorkflowSession) (*models.WorkflowSession, error)
	FindSessionByID(ctx context.Context, id uuid.UUID) (*models.WorkflowSession, error)
	UpdateSession(ctx context.Context, session *models.WorkflowSession) error
	CreateUpload(ctx context.Context, upload *models.Upload) (*models.Upload, error)
	DeleteUploadsBySession(ctx context.Context, sessionID uuid.UUID) error
	CreateJob(ctx context.Context, job *models.ProcessingJob) (*models.ProcessingJob, error)
	UpdateJob(ctx context.Context, job *models.ProcessingJob) error
	DeleteJobsBySession(ctx context.Context, sessionID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a workflow repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateSession(ctx context.Context, session *models.WorkflowSession) (*models.WorkflowSession, error) {
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

func (r *repository) FindSessionByID(ctx context.Context, id uuid.UUID) (*models.WorkflowSession, error) {
	var session models.WorkflowSession
	err := r.db.WithContext(ctx).
		Preload("Upload").
		Preload("Job").
		Where("id = ?", id).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repository) UpdateSession(ctx context.Context, session *models.WorkflowSession) error {
	return r.db.WithContext(ctx).Save(session).Error
}

func (r *repository) CreateUpload(ctx context.Context, upload *models.Upload) (*models.Upload, error) {
	if err := r.db.WithContext(ctx).Create(upload).Error; err != nil {
		return nil, err
	}
	return upload, nil
}

func (r *repository) DeleteUploadsBySession(ctx context.Context, sessionID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&models.Upload{}).Error
}

func (r *repository) CreateJob(ctx context.Context, job *models.ProcessingJob) (*models.ProcessingJob, error) {
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return nil, err
	}
	return job, nil
}

func (r *repository) UpdateJob(ctx context.Context, job *models.ProcessingJob) error {
	return r.db.WithContext(ctx).Save(job).Error
}

func (r *repository) DeleteJobsBySession(ctx context.Context, sessionID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&models.ProcessingJob{}).Error
}
