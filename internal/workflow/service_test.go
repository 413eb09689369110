package workflow

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/transcribefree/backend/internal/conversion"
	"github.com/transcribefree/backend/internal/duration"
	"github.com/transcribefree/backend/internal/pricing"
	"github.com/transcribefree/backend/internal/transcription"
	"github.com/transcribefree/backend/pkg/config"
	"github.com/transcribefree/backend/pkg/db/models"
	"github.com/transcribefree/backend/pkg/enums"
	pkgerrors "github.com/transcribefree/backend/pkg/errors"
)

type memRepo struct {
	sessions map[uuid.UUID]*models.WorkflowSession
	uploads  map[uuid.UUID]*models.Upload
	jobs     map[uuid.UUID]*models.ProcessingJob
}

func newMemRepo() *memRepo {
	return &memRepo{
		sessions: map[uuid.UUID]*models.WorkflowSession{},
		uploads:  map[uuid.UUID]*models.Upload{},
		jobs:     map[uuid.UUID]*models.ProcessingJob{},
	}
}

func (r *memRepo) CreateSession(_ context.Context, session *models.WorkflowSession) (*models.WorkflowSession, error) {
	r.sessions[session.ID] = session
	return session, nil
}

func (r *memRepo) FindSessionByID(_ context.Context, id uuid.UUID) (*models.WorkflowSession, error) {
	session, ok := r.sessions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	session.Upload = nil
	session.Job = nil
	for _, upload := range r.uploads {
		if upload.SessionID == id {
			session.Upload = upload
		}
	}
	for _, job := range r.jobs {
		if job.SessionID == id {
			session.Job = job
		}
	}
	return session, nil
}

func (r *memRepo) UpdateSession(_ context.Context, session *models.WorkflowSession) error {
	r.sessions[session.ID] = session
	return nil
}

func (r *memRepo) CreateUpload(_ context.Context, upload *models.Upload) (*models.Upload, error) {
	r.uploads[upload.ID] = upload
	return upload, nil
}

func (r *memRepo) DeleteUploadsBySession(_ context.Context, sessionID uuid.UUID) error {
	for id, upload := range r.uploads {
		if upload.SessionID == sessionID {
			delete(r.uploads, id)
		}
	}
	return nil
}

func (r *memRepo) CreateJob(_ context.Context, job *models.ProcessingJob) (*models.ProcessingJob, error) {
	r.jobs[job.ID] = job
	return job, nil
}

func (r *memRepo) UpdateJob(_ context.Context, job *models.ProcessingJob) error {
	r.jobs[job.ID] = job
	return nil
}

func (r *memRepo) DeleteJobsBySession(_ context.Context, sessionID uuid.UUID) error {
	for id, job := range r.jobs {
		if job.SessionID == sessionID {
			delete(r.jobs, id)
		}
	}
	return nil
}

type memBlobs struct {
	blobs   map[string][]byte
	removed []string
}

func newMemBlobs() *memBlobs {
	return &memBlobs{blobs: map[string][]byte{}}
}

func (b *memBlobs) Save(_ context.Context, sessionID uuid.UUID, fileName string, payload []byte) (string, error) {
	path := sessionID.String() + "/" + fileName
	b.blobs[path] = payload
	return path, nil
}

func (b *memBlobs) Load(_ context.Context, path string) ([]byte, error) {
	payload, ok := b.blobs[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return payload, nil
}

func (b *memBlobs) Remove(_ context.Context, path string) error {
	delete(b.blobs, path)
	b.removed = append(b.removed, path)
	return nil
}

// estimatorAdapter satisfies the Estimator interface with a canned estimate.
type estimatorAdapter struct {
	estimate duration.Estimate
}

func (e estimatorAdapter) Estimate(_ context.Context, _ io.ReadSeeker, _ string, _ int64) duration.Estimate {
	return e.estimate
}

type stubTranscriber struct {
	result   *transcription.Result
	err      error
	previews int
	fulls    int
}

func (s *stubTranscriber) Transcribe(_ context.Context, _ *conversion.File, preview bool) (*transcription.Result, error) {
	if preview {
		s.previews++
	} else {
		s.fulls++
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type fixture struct {
	svc         Service
	repo        *memRepo
	blobs       *memBlobs
	transcriber *stubTranscriber
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newMemRepo()
	blobs := newMemBlobs()
	transcriber := &stubTranscriber{
		result: &transcription.Result{
			Transcript:      "hello from the recording",
			Confidence:      0.95,
			DurationSeconds: 90,
			Language:        "en",
			Segments: []transcription.Segment{
				{Start: 0, End: 45, Text: "hello from"},
				{Start: 45, End: 90, Text: "the recording"},
			},
		},
	}
	svc, err := NewService(
		repo,
		blobs,
		estimatorAdapter{duration.Estimate{Minutes: 40, Seconds: 2400, Estimated: true}},
		pricing.NewCalculator(config.PricingConfig{RatePerMinuteCents: 18, MinimumChargeCents: 50}),
		conversion.NewShim(),
		transcriber,
		nil,
		config.MediaConfig{FastModeBytes: 10 << 20},
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &fixture{svc: svc, repo: repo, blobs: blobs, transcriber: transcriber}
}

func (f *fixture) uploadedSession(t *testing.T) uuid.UUID {
	t.Helper()
	state, err := f.svc.Create(context.Background())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err = f.svc.Upload(context.Background(), state.ID, UploadInput{
		FileName:    "meeting.mp3",
		ContentType: "audio/mpeg",
		Payload:     make([]byte, 4096),
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	return state.ID
}

func (f *fixture) paidSession(t *testing.T) uuid.UUID {
	t.Helper()
	id := f.uploadedSession(t)
	if _, err := f.svc.ContinueToPayment(context.Background(), id); err != nil {
		t.Fatalf("ContinueToPayment: %v", err)
	}
	if _, err := f.svc.ConfirmPayment(context.Background(), id, "pi_test_123"); err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	return id
}

func TestCreateStartsAtUpload(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	state, err := f.svc.Create(context.Background())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if state.CurrentStep != enums.WorkflowStepUpload {
		t.Fatalf("current step = %s, want upload", state.CurrentStep)
	}
	if state.CompletedSteps != 0 || state.ProgressPercent != 0 {
		t.Fatalf("fresh session should have no progress, got %d/%d%%", state.CompletedSteps, state.ProgressPercent)
	}
}

func TestUploadAdvancesToPreview(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	created, _ := f.svc.Create(context.Background())
	state, err := f.svc.Upload(context.Background(), created.ID, UploadInput{
		FileName:    "meeting.mp3",
		ContentType: "audio/mpeg",
		Payload:     make([]byte, 4096),
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if state.CurrentStep != enums.WorkflowStepPreview {
		t.Fatalf("current step = %s, want preview", state.CurrentStep)
	}
	if state.CompletedSteps != 1 || state.ProgressPercent != 20 {
		t.Fatalf("completed=%d progress=%d, want 1 and 20", state.CompletedSteps, state.ProgressPercent)
	}
	if state.Upload == nil {
		t.Fatal("expected upload state")
	}
	if state.Upload.DurationMinutes != 40 {
		t.Fatalf("duration minutes = %d, want 40", state.Upload.DurationMinutes)
	}
	if state.Upload.CostCents != 720 {
		t.Fatalf("cost cents = %d, want 720", state.Upload.CostCents)
	}
	if state.Upload.Cost != "7.20" {
		t.Fatalf("cost = %q, want 7.20", state.Upload.Cost)
	}
	if len(f.blobs.blobs) != 1 {
		t.Fatalf("expected one stored blob, have %d", len(f.blobs.blobs))
	}
}

func TestUploadRejectsForbiddenExtension(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	created, _ := f.svc.Create(context.Background())
	_, err := f.svc.Upload(context.Background(), created.ID, UploadInput{
		FileName:    "payload.exe",
		ContentType: "application/octet-stream",
		Payload:     make([]byte, 4096),
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(f.blobs.blobs) != 0 {
		t.Fatal("rejected file must not be stored")
	}
}

func TestUploadOutOfOrderConflicts(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	id := f.uploadedSession(t)
	_, err := f.svc.Upload(context.Background(), id, UploadInput{
		FileName:    "again.mp3",
		ContentType: "audio/mpeg",
		Payload:     make([]byte, 4096),
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestGetUnknownSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.svc.Get(context.Background(), uuid.New())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGeneratePreviewUsesPreviewMode(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	id := f.uploadedSession(t)
	preview, err := f.svc.GeneratePreview(context.Background(), id)
	if err != nil {
		t.Fatalf("GeneratePreview: %v", err)
	}
	if f.transcriber.previews != 1 || f.transcriber.fulls != 0 {
		t.Fatalf("previews=%d fulls=%d, want 1 and 0", f.transcriber.previews, f.transcriber.fulls)
	}
	if !strings.Contains(preview.Text, "hello from") {
		t.Fatalf("preview text = %q", preview.Text)
	}

	// Preview does not advance the funnel.
	state, err := f.svc.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if state.CurrentStep != enums.WorkflowStepPreview {
		t.Fatalf("current step = %s, want preview", state.CurrentStep)
	}
}

func TestConfirmPaymentRequiresReference(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	id := f.uploadedSession(t)
	if _, err := f.svc.ContinueToPayment(context.Background(), id); err != nil {
		t.Fatalf("ContinueToPayment: %v", err)
	}
	_, err := f.svc.ConfirmPayment(context.Background(), id, "")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestConfirmPaymentOpensProcessing(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	id := f.paidSession(t)
	state, err := f.svc.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if state.CurrentStep != enums.WorkflowStepProcessing {
		t.Fatalf("current step = %s, want processing", state.CurrentStep)
	}
	if state.Job == nil || state.Job.Status != enums.JobStatusPending {
		t.Fatalf("expected pending job, got %+v", state.Job)
	}
}

func TestConfirmPaymentWrongStep(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	id := f.uploadedSession(t)
	_, err := f.svc.ConfirmPayment(context.Background(), id, "pi_test_123")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestProcessCompletesAndAdvances(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	id := f.paidSession(t)
	state, err := f.svc.Process(context.Background(), id)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if state.CurrentStep != enums.WorkflowStepDownload {
		t.Fatalf("current step = %s, want download", state.CurrentStep)
	}
	if state.ProgressPercent != 80 {
		t.Fatalf("overall progress = %d, want 80", state.ProgressPercent)
	}
	if state.Job.Status != enums.JobStatusCompleted || state.Job.Progress != 100 {
		t.Fatalf("job = %+v, want completed at 100", state.Job)
	}
	if f.transcriber.fulls != 1 {
		t.Fatalf("full transcriptions = %d, want 1", f.transcriber.fulls)
	}

	result, upload, err := f.svc.Result(context.Background(), id)
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if result.Transcript != "hello from the recording" {
		t.Fatalf("transcript = %q", result.Transcript)
	}
	if len(result.Segments) != 2 {
		t.Fatalf("segments = %d, want 2", len(result.Segments))
	}
	if upload == nil || upload.FileName != "meeting.mp3" {
		t.Fatalf("upload = %+v", upload)
	}
}

func TestProcessFailureIsTerminal(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.transcriber.err = pkgerrors.New(pkgerrors.CodeDependency, "Transcription service unavailable")

	id := f.paidSession(t)
	_, err := f.svc.Process(context.Background(), id)
	if err == nil {
		t.Fatal("expected error")
	}

	state, getErr := f.svc.Get(context.Background(), id)
	if getErr != nil {
		t.Fatalf("Get: %v", getErr)
	}
	if state.Job.Status != enums.JobStatusFailed {
		t.Fatalf("job status = %s, want failed", state.Job.Status)
	}
	if state.Job.FailureReason != "Transcription service unavailable" {
		t.Fatalf("failure reason = %q", state.Job.FailureReason)
	}
	if state.CurrentStep != enums.WorkflowStepProcessing {
		t.Fatalf("failed job must not advance, step = %s", state.CurrentStep)
	}

	// A terminal job cannot be reprocessed.
	_, err = f.svc.Process(context.Background(), id)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestReportProgressCapsBelowCompletion(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	id := f.paidSession(t)
	state, err := f.svc.ReportProgress(context.Background(), id, 150, 30)
	if err != nil {
		t.Fatalf("ReportProgress: %v", err)
	}
	if state.Job.Progress != 99 {
		t.Fatalf("progress = %d, want cap at 99", state.Job.Progress)
	}
	if state.Job.EstimatedSecondsLeft != 30 {
		t.Fatalf("estimated seconds left = %d, want 30", state.Job.EstimatedSecondsLeft)
	}

	// Progress never moves backwards.
	state, err = f.svc.ReportProgress(context.Background(), id, 40, 20)
	if err != nil {
		t.Fatalf("ReportProgress: %v", err)
	}
	if state.Job.Progress != 99 {
		t.Fatalf("progress regressed to %d", state.Job.Progress)
	}
}

func TestRemoveFileResetsSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	id := f.paidSession(t)
	state, err := f.svc.RemoveFile(context.Background(), id)
	if err != nil {
		t.Fatalf("RemoveFile: %v", err)
	}

	if state.CurrentStep != enums.WorkflowStepUpload {
		t.Fatalf("current step = %s, want upload", state.CurrentStep)
	}
	if state.CompletedSteps != 0 || state.Upload != nil || state.Job != nil {
		t.Fatalf("session not reset: %+v", state)
	}
	if len(f.blobs.blobs) != 0 {
		t.Fatal("stored payload not released")
	}
	if len(f.blobs.removed) != 1 {
		t.Fatalf("removed calls = %d, want 1", len(f.blobs.removed))
	}

	// The funnel restarts cleanly after removal.
	if _, err := f.svc.Upload(context.Background(), id, UploadInput{
		FileName:    "retake.mp3",
		ContentType: "audio/mpeg",
		Payload:     make([]byte, 4096),
	}); err != nil {
		t.Fatalf("Upload after reset: %v", err)
	}
}

func TestResultBeforeCompletionConflicts(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	id := f.paidSession(t)
	_, _, err := f.svc.Result(context.Background(), id)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}
