package workflow

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/transcribefree/backend/pkg/db/models"
	"github.com/transcribefree/backend/pkg/enums"
)

func setupWorkflowTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.WorkflowSession{},
		&models.Upload{},
		&models.ProcessingJob{},
	))
	return db
}

func seedSession(t *testing.T, repo Repository) *models.WorkflowSession {
	t.Helper()
	session, err := repo.CreateSession(context.Background(), &models.WorkflowSession{
		ID:          uuid.New(),
		CurrentStep: enums.WorkflowStepUpload,
	})
	require.NoError(t, err)
	return session
}

func TestRepositorySessionRoundTrip(t *testing.T) {
	repo := NewRepository(setupWorkflowTestDB(t))
	session := seedSession(t, repo)

	found, err := repo.FindSessionByID(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, found.ID)
	assert.Equal(t, enums.WorkflowStepUpload, found.CurrentStep)
	assert.Nil(t, found.Upload)
	assert.Nil(t, found.Job)

	found.CurrentStep = enums.WorkflowStepPreview
	found.CompletedSteps = 1
	require.NoError(t, repo.UpdateSession(context.Background(), found))

	again, err := repo.FindSessionByID(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.WorkflowStepPreview, again.CurrentStep)
	assert.Equal(t, 1, again.CompletedSteps)
}

func TestRepositoryFindMissingSession(t *testing.T) {
	repo := NewRepository(setupWorkflowTestDB(t))

	_, err := repo.FindSessionByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryPreloadsUploadAndJob(t *testing.T) {
	repo := NewRepository(setupWorkflowTestDB(t))
	session := seedSession(t, repo)

	upload, err := repo.CreateUpload(context.Background(), &models.Upload{
		ID:              uuid.New(),
		SessionID:       session.ID,
		FileName:        "meeting.mp3",
		MimeType:        "audio/mpeg",
		SizeBytes:       4096,
		DurationMinutes: 40,
		DurationSeconds: 2400,
		Estimated:       true,
		CostCents:       720,
		StoragePath:     "/tmp/meeting.mp3",
	})
	require.NoError(t, err)

	job, err := repo.CreateJob(context.Background(), &models.ProcessingJob{
		ID:        uuid.New(),
		SessionID: session.ID,
		UploadID:  upload.ID,
		Status:    enums.JobStatusPending,
	})
	require.NoError(t, err)

	found, err := repo.FindSessionByID(context.Background(), session.ID)
	require.NoError(t, err)
	require.NotNil(t, found.Upload)
	require.NotNil(t, found.Job)
	assert.Equal(t, upload.ID, found.Upload.ID)
	assert.Equal(t, "meeting.mp3", found.Upload.FileName)
	assert.Equal(t, job.ID, found.Job.ID)

	job.Status = enums.JobStatusCompleted
	job.Progress = 100
	require.NoError(t, repo.UpdateJob(context.Background(), job))

	updated, err := repo.FindSessionByID(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.JobStatusCompleted, updated.Job.Status)
	assert.Equal(t, 100, updated.Job.Progress)
}

func TestRepositoryDeleteBySession(t *testing.T) {
	repo := NewRepository(setupWorkflowTestDB(t))
	session := seedSession(t, repo)

	upload, err := repo.CreateUpload(context.Background(), &models.Upload{
		ID:          uuid.New(),
		SessionID:   session.ID,
		FileName:    "clip.wav",
		MimeType:    "audio/wav",
		SizeBytes:   2048,
		CostCents:   50,
		StoragePath: "/tmp/clip.wav",
	})
	require.NoError(t, err)

	_, err = repo.CreateJob(context.Background(), &models.ProcessingJob{
		ID:        uuid.New(),
		SessionID: session.ID,
		UploadID:  upload.ID,
		Status:    enums.JobStatusPending,
	})
	require.NoError(t, err)

	require.NoError(t, repo.DeleteJobsBySession(context.Background(), session.ID))
	require.NoError(t, repo.DeleteUploadsBySession(context.Background(), session.ID))

	found, err := repo.FindSessionByID(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Nil(t, found.Upload)
	assert.Nil(t, found.Job)
}
