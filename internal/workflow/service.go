package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/transcribefree/backend/internal/conversion"
	"github.com/transcribefree/backend/internal/duration"
	"github.com/transcribefree/backend/internal/transcription"
	"github.com/transcribefree/backend/internal/validation"
	"github.com/transcribefree/backend/pkg/config"
	"github.com/transcribefree/backend/pkg/db/models"
	"github.com/transcribefree/backend/pkg/enums"
	pkgerrors "github.com/transcribefree/backend/pkg/errors"
	"github.com/transcribefree/backend/pkg/logger"
)

// Estimator produces a duration estimate for uploaded media.
type Estimator interface {
	Estimate(ctx context.Context, media io.ReadSeeker, contentType string, sizeBytes int64) duration.Estimate
}

// Pricer maps estimated minutes to a price.
type Pricer interface {
	Cost(minutes float64) decimal.Decimal
	CostCents(minutes float64) int64
}

// Converter prepares media for the transcription API.
type Converter interface {
	Convert(ctx context.Context, name, contentType string, payload []byte, opts conversion.Options) conversion.Result
}

// Transcriber runs the transcription client with its fallback policy.
type Transcriber interface {
	Transcribe(ctx context.Context, file *conversion.File, preview bool) (*transcription.Result, error)
}

// Service drives the five-step transcription funnel: Upload, Preview,
// Payment, Processing, Download. Steps are strictly linear; the only way
// back is an explicit file removal, which resets the session to Upload.
type Service interface {
	Create(ctx context.Context) (*SessionState, error)
	Get(ctx context.Context, id uuid.UUID) (*SessionState, error)
	Upload(ctx context.Context, id uuid.UUID, input UploadInput) (*SessionState, error)
	GeneratePreview(ctx context.Context, id uuid.UUID) (*transcription.Preview, error)
	ContinueToPayment(ctx context.Context, id uuid.UUID) (*SessionState, error)
	ConfirmPayment(ctx context.Context, id uuid.UUID, paymentRef string) (*SessionState, error)
	Process(ctx context.Context, id uuid.UUID) (*SessionState, error)
	ReportProgress(ctx context.Context, id uuid.UUID, progress, estimatedSecondsLeft int) (*SessionState, error)
	RemoveFile(ctx context.Context, id uuid.UUID) (*SessionState, error)
	Result(ctx context.Context, id uuid.UUID) (*transcription.Result, *models.Upload, error)
}

// UploadInput is the accepted-file payload for the Upload step.
type UploadInput struct {
	FileName          string
	ContentType       string
	Payload           []byte
	ConstrainedClient bool
}

// UploadState is the persisted-upload projection in session state.
type UploadState struct {
	FileName        string  `json:"fileName"`
	MimeType        string  `json:"mimeType"`
	SizeBytes       int64   `json:"sizeBytes"`
	DurationMinutes int     `json:"durationMinutes"`
	DurationSeconds float64 `json:"durationSeconds"`
	Estimated       bool    `json:"estimated"`
	Cost            string  `json:"cost"`
	CostCents       int64   `json:"costCents"`
}

// JobState is the processing-job projection in session state.
type JobState struct {
	ID                   uuid.UUID       `json:"id"`
	Status               enums.JobStatus `json:"status"`
	Progress             int             `json:"progress"`
	EstimatedSecondsLeft int             `json:"estimatedSecondsLeft"`
	FailureReason        string          `json:"failureReason,omitempty"`
}

// SessionState is the client-facing view of a workflow session.
type SessionState struct {
	ID              uuid.UUID          `json:"id"`
	CurrentStep     enums.WorkflowStep `json:"currentStep"`
	CompletedSteps  int                `json:"completedSteps"`
	ProgressPercent int                `json:"progressPercent"`
	Upload          *UploadState       `json:"upload,omitempty"`
	Job             *JobState          `json:"job,omitempty"`
}

type service struct {
	repo        Repository
	blobs       BlobStore
	estimator   Estimator
	pricer      Pricer
	converter   Converter
	transcriber Transcriber
	logg        *logger.Logger
	media       config.MediaConfig
}

// NewService wires the funnel's collaborators together.
func NewService(
	repo Repository,
	blobs BlobStore,
	estimator Estimator,
	pricer Pricer,
	converter Converter,
	transcriber Transcriber,
	logg *logger.Logger,
	media config.MediaConfig,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("workflow repository required")
	}
	if blobs == nil {
		return nil, fmt.Errorf("blob store required")
	}
	if estimator == nil {
		return nil, fmt.Errorf("duration estimator required")
	}
	if pricer == nil {
		return nil, fmt.Errorf("pricer required")
	}
	if converter == nil {
		return nil, fmt.Errorf("converter required")
	}
	if transcriber == nil {
		return nil, fmt.Errorf("transcriber required")
	}
	if logg == nil {
		logg = logger.New(logger.Options{ServiceName: "workflow"})
	}
	return &service{
		repo:        repo,
		blobs:       blobs,
		estimator:   estimator,
		pricer:      pricer,
		converter:   converter,
		transcriber: transcriber,
		logg:        logg,
		media:       media,
	}, nil
}

func (s *service) Create(ctx context.Context) (*SessionState, error) {
	session := &models.WorkflowSession{
		ID:          uuid.New(),
		CurrentStep: enums.WorkflowStepUpload,
	}
	if _, err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist session")
	}
	return s.state(session), nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*SessionState, error) {
	session, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.state(session), nil
}

// Upload runs the validate -> estimate -> price pipeline, persists the
// accepted file, and advances the session from Upload to Preview.
func (s *service) Upload(ctx context.Context, id uuid.UUID, input UploadInput) (*SessionState, error) {
	session, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.CurrentStep != enums.WorkflowStepUpload {
		return nil, stepConflict(session.CurrentStep, enums.WorkflowStepUpload)
	}

	check := validation.ValidateFile(input.FileName, input.ContentType, int64(len(input.Payload)))
	if !check.Valid {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, check.Error)
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"session_id": session.ID.String(),
		"file_name":  input.FileName,
	})

	estimate := s.estimator.Estimate(ctx, bytes.NewReader(input.Payload), input.ContentType, int64(len(input.Payload)))
	costCents := s.pricer.CostCents(float64(estimate.Minutes))

	storagePath, err := s.blobs.Save(ctx, session.ID, input.FileName, input.Payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store upload payload")
	}

	upload := &models.Upload{
		ID:              uuid.New(),
		SessionID:       session.ID,
		FileName:        input.FileName,
		MimeType:        input.ContentType,
		SizeBytes:       int64(len(input.Payload)),
		DurationMinutes: estimate.Minutes,
		DurationSeconds: estimate.Seconds,
		Estimated:       estimate.Estimated,
		CostCents:       costCents,
		StoragePath:     storagePath,
	}
	if _, err := s.repo.CreateUpload(ctx, upload); err != nil {
		_ = s.blobs.Remove(ctx, storagePath)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist upload")
	}

	session.Upload = upload
	if err := s.advance(ctx, session); err != nil {
		return nil, err
	}
	s.logg.Info(ctx, fmt.Sprintf("upload accepted (%d minutes, %d cents)", estimate.Minutes, costCents))
	return s.state(session), nil
}

// GeneratePreview converts the stored payload if needed and runs a preview
// transcription. It never blocks the funnel: the transcriber's fallback
// policy guarantees a transcript for everything but format rejections.
func (s *service) GeneratePreview(ctx context.Context, id uuid.UUID) (*transcription.Preview, error) {
	session, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Upload == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no file uploaded yet")
	}

	file, err := s.preparedFile(ctx, session)
	if err != nil {
		return nil, err
	}
	result, err := s.transcriber.Transcribe(ctx, file, true)
	if err != nil {
		return nil, err
	}
	preview := transcription.PreviewProjection(result)
	return &preview, nil
}

func (s *service) ContinueToPayment(ctx context.Context, id uuid.UUID) (*SessionState, error) {
	session, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.CurrentStep != enums.WorkflowStepPreview {
		return nil, stepConflict(session.CurrentStep, enums.WorkflowStepPreview)
	}
	if err := s.advance(ctx, session); err != nil {
		return nil, err
	}
	return s.state(session), nil
}

// ConfirmPayment records the processor's confirmation and opens the
// Processing step with a pending job. The funnel never advances past
// Payment without a reference.
func (s *service) ConfirmPayment(ctx context.Context, id uuid.UUID, paymentRef string) (*SessionState, error) {
	session, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.CurrentStep != enums.WorkflowStepPayment {
		return nil, stepConflict(session.CurrentStep, enums.WorkflowStepPayment)
	}
	if paymentRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference is required")
	}
	if session.Upload == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no file uploaded yet")
	}

	session.PaymentRef = &paymentRef
	job := &models.ProcessingJob{
		ID:        uuid.New(),
		SessionID: session.ID,
		UploadID:  session.Upload.ID,
		Status:    enums.JobStatusPending,
	}
	if _, err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create processing job")
	}
	session.Job = job
	if err := s.advance(ctx, session); err != nil {
		return nil, err
	}
	return s.state(session), nil
}

// Process runs the paid full transcription. Success stores the transcript,
// completes the job at 100, and advances to Download. Failure marks the job
// failed (terminal); the user retries from Upload.
func (s *service) Process(ctx context.Context, id uuid.UUID) (*SessionState, error) {
	session, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.CurrentStep != enums.WorkflowStepProcessing {
		return nil, stepConflict(session.CurrentStep, enums.WorkflowStepProcessing)
	}
	job := session.Job
	if job == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no processing job for session")
	}
	if job.Status.Terminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("job already %s", job.Status))
	}

	ctx = s.logg.WithJobID(ctx, job.ID.String())

	job.Status = enums.JobStatusProcessing
	if err := s.repo.UpdateJob(ctx, job); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update processing job")
	}

	file, err := s.preparedFile(ctx, session)
	if err != nil {
		return s.failJob(ctx, session, job, err)
	}
	started := time.Now()
	result, err := s.transcriber.Transcribe(ctx, file, false)
	if err != nil {
		return s.failJob(ctx, session, job, err)
	}

	segments, marshalErr := json.Marshal(result.Segments)
	if marshalErr != nil {
		return s.failJob(ctx, session, job, pkgerrors.Wrap(pkgerrors.CodeInternal, marshalErr, "encode segments"))
	}
	segmentsJSON := string(segments)
	processingMS := time.Since(started).Milliseconds()
	now := time.Now()

	job.Status = enums.JobStatusCompleted
	job.Progress = 100
	job.EstimatedSecondsLeft = 0
	job.Transcript = &result.Transcript
	job.Confidence = &result.Confidence
	job.Language = &result.Language
	job.SegmentsJSON = &segmentsJSON
	job.ProcessingTimeMS = &processingMS
	job.MediaDurationSeconds = &result.DurationSeconds
	job.CompletedAt = &now
	if err := s.repo.UpdateJob(ctx, job); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete processing job")
	}

	if err := s.advance(ctx, session); err != nil {
		return nil, err
	}
	s.logg.Info(ctx, "transcription complete")
	return s.state(session), nil
}

// ReportProgress applies the monotonic reducer to simulated or real
// progress updates. Running jobs are capped below 100; only completion
// reaches it.
func (s *service) ReportProgress(ctx context.Context, id uuid.UUID, progress, estimatedSecondsLeft int) (*SessionState, error) {
	session, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	job := session.Job
	if job == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no processing job for session")
	}
	if job.Status.Terminal() {
		return s.state(session), nil
	}

	job.Progress = ActiveProgress(job.Progress, progress)
	if estimatedSecondsLeft >= 0 {
		job.EstimatedSecondsLeft = estimatedSecondsLeft
	}
	if err := s.repo.UpdateJob(ctx, job); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update job progress")
	}
	return s.state(session), nil
}

// RemoveFile is the single backwards transition: it releases the stored
// payload, drops the upload and job, and resets the session to Upload.
func (s *service) RemoveFile(ctx context.Context, id uuid.UUID) (*SessionState, error) {
	session, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if session.Upload != nil {
		if err := s.blobs.Remove(ctx, session.Upload.StoragePath); err != nil {
			s.logg.Warn(ctx, fmt.Sprintf("release upload payload: %v", err))
		}
	}
	if err := s.repo.DeleteJobsBySession(ctx, session.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete processing jobs")
	}
	if err := s.repo.DeleteUploadsBySession(ctx, session.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete upload")
	}

	session.Upload = nil
	session.Job = nil
	session.PaymentRef = nil
	session.CurrentStep = enums.WorkflowStepUpload
	session.CompletedSteps = 0
	if err := s.repo.UpdateSession(ctx, session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reset session")
	}
	return s.state(session), nil
}

// Result returns the completed transcription for export.
func (s *service) Result(ctx context.Context, id uuid.UUID) (*transcription.Result, *models.Upload, error) {
	session, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	job := session.Job
	if job == nil || job.Status != enums.JobStatusCompleted || job.Transcript == nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeStateConflict, "transcription is not complete yet")
	}

	result := &transcription.Result{
		Transcript: *job.Transcript,
		Language:   stringOr(job.Language, "en"),
	}
	if job.Confidence != nil {
		result.Confidence = *job.Confidence
	}
	if job.ProcessingTimeMS != nil {
		result.ProcessingTimeMS = *job.ProcessingTimeMS
	}
	if job.MediaDurationSeconds != nil {
		result.DurationSeconds = *job.MediaDurationSeconds
	}
	if job.SegmentsJSON != nil && *job.SegmentsJSON != "" {
		if err := json.Unmarshal([]byte(*job.SegmentsJSON), &result.Segments); err != nil {
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode segments")
		}
	}
	return result, session.Upload, nil
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.WorkflowSession, error) {
	session, err := s.repo.FindSessionByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "session not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session")
	}
	return session, nil
}

// advance completes the current step and moves to its single successor.
func (s *service) advance(ctx context.Context, session *models.WorkflowSession) error {
	next, err := session.CurrentStep.Next()
	if err != nil {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "workflow is already complete")
	}
	session.CompletedSteps = session.CurrentStep.Index() + 1
	session.CurrentStep = next
	if err := s.repo.UpdateSession(ctx, session); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance session")
	}
	return nil
}

// preparedFile loads the payload and applies the conversion shim.
func (s *service) preparedFile(ctx context.Context, session *models.WorkflowSession) (*conversion.File, error) {
	upload := session.Upload
	payload, err := s.blobs.Load(ctx, upload.StoragePath)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load upload payload")
	}

	if !validation.NeedsConversion(upload.MimeType) {
		return &conversion.File{
			Payload:      payload,
			Name:         upload.FileName,
			DeclaredType: upload.MimeType,
		}, nil
	}

	opts := conversion.OptimalOptions(upload.SizeBytes, s.media.FastModeBytes, false)
	timeout := s.media.ReencodeTimeout
	if opts.FastMode && s.media.FastReencodeTimeout > 0 {
		timeout = s.media.FastReencodeTimeout
	}
	convCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		convCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result := s.converter.Convert(convCtx, upload.FileName, upload.MimeType, payload, opts)
	if !result.Success {
		return nil, pkgerrors.New(pkgerrors.CodeUnsupportedFormat, result.Guidance()).
			WithDetails(result.Error)
	}
	return result.File, nil
}

func (s *service) failJob(ctx context.Context, session *models.WorkflowSession, job *models.ProcessingJob, cause error) (*SessionState, error) {
	reason := cause.Error()
	if typed := pkgerrors.As(cause); typed != nil {
		reason = typed.Message()
	}
	job.Status = enums.JobStatusFailed
	job.FailureReason = &reason
	now := time.Now()
	job.CompletedAt = &now
	if err := s.repo.UpdateJob(ctx, job); err != nil {
		s.logg.Error(ctx, "record job failure", err)
	}
	return nil, cause
}

func (s *service) state(session *models.WorkflowSession) *SessionState {
	state := &SessionState{
		ID:              session.ID,
		CurrentStep:     session.CurrentStep,
		CompletedSteps:  session.CompletedSteps,
		ProgressPercent: OverallProgress(session.CompletedSteps),
	}
	if session.Upload != nil {
		cost := decimal.NewFromInt(session.Upload.CostCents).Div(decimal.NewFromInt(100))
		state.Upload = &UploadState{
			FileName:        session.Upload.FileName,
			MimeType:        session.Upload.MimeType,
			SizeBytes:       session.Upload.SizeBytes,
			DurationMinutes: session.Upload.DurationMinutes,
			DurationSeconds: session.Upload.DurationSeconds,
			Estimated:       session.Upload.Estimated,
			Cost:            cost.StringFixed(2),
			CostCents:       session.Upload.CostCents,
		}
	}
	if session.Job != nil {
		state.Job = &JobState{
			ID:                   session.Job.ID,
			Status:               session.Job.Status,
			Progress:             session.Job.Progress,
			EstimatedSecondsLeft: session.Job.EstimatedSecondsLeft,
			FailureReason:        stringOr(session.Job.FailureReason, ""),
		}
	}
	return state
}

func stepConflict(current, wanted enums.WorkflowStep) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict,
		fmt.Sprintf("session is at the %s step; this operation requires %s", current, wanted))
}

func stringOr(value *string, fallback string) string {
	if value == nil {
		return fallback
	}
	return *value
}
