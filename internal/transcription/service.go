package transcription

import (
	"bytes"
	"context"
	"io"
	"math/rand"
	"strings"
	"time"

	"github.com/transcribefree/backend/internal/conversion"
	"github.com/transcribefree/backend/internal/validation"
	"github.com/transcribefree/backend/pkg/config"
	"github.com/transcribefree/backend/pkg/enums"
	errs "github.com/transcribefree/backend/pkg/errors"
	"github.com/transcribefree/backend/pkg/logger"
	"github.com/transcribefree/backend/pkg/metrics"
	"github.com/transcribefree/backend/pkg/openai"
)

const (
	modePreview = "preview"
	modeFull    = "full"
)

// WhisperClient is the transcription API boundary.
type WhisperClient interface {
	Transcribe(ctx context.Context, media io.Reader, fileName, mimeType string) (*openai.Transcription, error)
	Configured() bool
}

// Event is the analytics payload emitted around transcription attempts.
type Event struct {
	Type            enums.AnalyticsEventType
	FileName        string
	FileType        string
	FileSizeBytes   int64
	DurationSeconds float64
	Error           string
}

// EventRecorder receives pipeline analytics events. Implementations must be
// non-blocking; failures are swallowed by the service.
type EventRecorder interface {
	Record(event Event)
}

// NopRecorder discards events.
type NopRecorder struct{}

func (NopRecorder) Record(Event) {}

// Service runs transcriptions against the Whisper client with the demo
// fallback policy: previews never dead-end on auth, network, or timeout
// failures, while paid full runs surface structured errors.
type Service struct {
	client         WhisperClient
	recorder       EventRecorder
	metrics        *metrics.TranscriptionMetrics
	logg           *logger.Logger
	previewTimeout time.Duration
	fullTimeout    time.Duration
	rng            func() float64
}

// NewService builds the transcription service. recorder and m may be nil.
func NewService(client WhisperClient, recorder EventRecorder, m *metrics.TranscriptionMetrics, logg *logger.Logger, cfg config.OpenAIConfig) *Service {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	if logg == nil {
		logg = logger.New(logger.Options{ServiceName: "transcription"})
	}
	previewTimeout := cfg.PreviewTimeout
	if previewTimeout <= 0 {
		previewTimeout = 5 * time.Second
	}
	fullTimeout := cfg.FullTimeout
	if fullTimeout <= 0 {
		fullTimeout = 5 * time.Minute
	}
	return &Service{
		client:         client,
		recorder:       recorder,
		metrics:        m,
		logg:           logg,
		previewTimeout: previewTimeout,
		fullTimeout:    fullTimeout,
		rng:            rand.Float64,
	}
}

// Transcribe submits the (possibly shimmed) file and applies the preview or
// full failure policy.
func (s *Service) Transcribe(ctx context.Context, file *conversion.File, preview bool) (*Result, error) {
	ctx = s.logg.WithFileName(ctx, file.Name)
	mode := modeFull
	timeout := s.fullTimeout
	if preview {
		mode = modePreview
		timeout = s.previewTimeout
	}
	started := time.Now()

	s.recorder.Record(Event{
		Type:          enums.AnalyticsEventTranscriptionStarted,
		FileName:      file.Name,
		FileType:      file.DeclaredType,
		FileSizeBytes: int64(len(file.Payload)),
	})

	if check := validation.ValidateForTranscription(int64(len(file.Payload))); !check.Valid {
		err := errs.New(errs.CodeValidation, check.Error)
		s.fail(mode, "validation", file, err)
		return nil, err
	}

	if !s.client.Configured() {
		s.logg.Info(ctx, "no transcription credentials, serving demo transcript")
		return s.demo(ctx, file, preview, mode, started), nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := s.client.Transcribe(reqCtx, bytes.NewReader(file.Payload), file.Name, file.APIContentType())
	if err != nil {
		return s.handleFailure(ctx, file, preview, mode, started, err)
	}

	result := &Result{
		Transcript:       strings.TrimSpace(raw.Text),
		Confidence:       0.95,
		ProcessingTimeMS: time.Since(started).Milliseconds(),
		DurationSeconds:  raw.Duration,
		Language:         raw.Language,
	}
	for _, segment := range raw.Segments {
		result.Segments = append(result.Segments, Segment{
			Start: segment.Start,
			End:   segment.End,
			Text:  strings.TrimSpace(segment.Text),
		})
	}
	if preview {
		truncatePreview(result)
	}

	s.metrics.IncSuccess(mode)
	s.metrics.ObserveDuration(mode, time.Since(started))
	s.recorder.Record(Event{
		Type:            enums.AnalyticsEventTranscriptionCompleted,
		FileName:        file.Name,
		FileType:        file.DeclaredType,
		FileSizeBytes:   int64(len(file.Payload)),
		DurationSeconds: result.DurationSeconds,
	})
	return result, nil
}

// handleFailure applies the fallback policy per failure kind. Preview
// requests recover via the demo transcript for everything except format
// rejections; full requests surface structured errors since real money is
// involved.
func (s *Service) handleFailure(ctx context.Context, file *conversion.File, preview bool, mode string, started time.Time, err error) (*Result, error) {
	apiErr := openai.AsAPIError(err)
	if apiErr == nil {
		apiErr = &openai.APIError{Kind: openai.FailureUnknown, Message: err.Error()}
	}

	switch apiErr.Kind {
	case openai.FailureFormat:
		structured := formatError(file, apiErr)
		s.fail(mode, string(apiErr.Kind), file, structured)
		return nil, structured
	case openai.FailureAuth, openai.FailureNetwork, openai.FailureTimeout, openai.FailureUnknown:
		if preview {
			s.logg.Warn(ctx, "preview transcription failed, serving demo transcript: "+apiErr.Error())
			s.metrics.IncFailure(mode, string(apiErr.Kind))
			return s.demo(ctx, file, preview, mode, started), nil
		}
	}

	var structured *errs.Error
	switch apiErr.Kind {
	case openai.FailureAuth:
		structured = errs.Wrap(errs.CodeInternal, apiErr, "the transcription service is not configured correctly; please contact support")
	case openai.FailureTimeout:
		structured = errs.Wrap(errs.CodeTimeout, apiErr, "the transcription service timed out; please try again")
	case openai.FailureNetwork:
		structured = errs.Wrap(errs.CodeDependency, apiErr, "the transcription service is unreachable; please try again")
	default:
		structured = errs.Wrap(errs.CodeDependency, apiErr, "transcription failed unexpectedly; please try again")
	}
	s.fail(mode, string(apiErr.Kind), file, structured)
	return nil, structured
}

func (s *Service) demo(ctx context.Context, file *conversion.File, preview bool, mode string, started time.Time) *Result {
	result := generateDemoResult(file.Name, preview, s.rng)
	s.metrics.IncDemoFallback(mode)
	s.metrics.ObserveDuration(mode, time.Since(started))
	s.recorder.Record(Event{
		Type:            enums.AnalyticsEventTranscriptionCompleted,
		FileName:        file.Name,
		FileType:        file.DeclaredType,
		FileSizeBytes:   int64(len(file.Payload)),
		DurationSeconds: result.DurationSeconds,
	})
	return result
}

func (s *Service) fail(mode, kind string, file *conversion.File, err error) {
	s.metrics.IncFailure(mode, kind)
	s.recorder.Record(Event{
		Type:          enums.AnalyticsEventTranscriptionFailed,
		FileName:      file.Name,
		FileType:      file.DeclaredType,
		FileSizeBytes: int64(len(file.Payload)),
		Error:         err.Error(),
	})
}

// formatError builds the user-actionable rejection for format failures,
// with dedicated remediation for the common MOV/codec case.
func formatError(file *conversion.File, apiErr *openai.APIError) *errs.Error {
	if file.DeclaredType == "video/quicktime" || strings.HasSuffix(strings.ToLower(file.Name), ".mov") {
		return errs.Wrap(errs.CodeUnsupportedFormat, apiErr,
			"this MOV file uses a codec the transcription service cannot read").
			WithDetails("Convert the file to MP4 (for example with HandBrake or QuickTime's export) and upload it again.")
	}
	return errs.Wrap(errs.CodeUnsupportedFormat, apiErr,
		"the transcription service rejected this file's format").
		WithDetails("Convert the file to MP3, WAV, or MP4 and try again.")
}

// truncatePreview limits a preview to the word cap and the 15 second
// segment window, matching what the UI shows before payment.
func truncatePreview(result *Result) {
	result.Transcript = truncateWords(result.Transcript, PreviewWordLimit)
	var kept []Segment
	for _, segment := range result.Segments {
		if segment.Start <= PreviewWindowSeconds {
			kept = append(kept, segment)
		}
	}
	result.Segments = kept
}
