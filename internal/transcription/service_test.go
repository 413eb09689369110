package transcription

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/transcribefree/backend/internal/conversion"
	"github.com/transcribefree/backend/internal/validation"
	"github.com/transcribefree/backend/pkg/config"
	"github.com/transcribefree/backend/pkg/enums"
	errs "github.com/transcribefree/backend/pkg/errors"
	"github.com/transcribefree/backend/pkg/openai"
)

type stubWhisper struct {
	configured bool
	result     *openai.Transcription
	err        error
	calls      int
}

func (s *stubWhisper) Transcribe(ctx context.Context, media io.Reader, fileName, mimeType string) (*openai.Transcription, error) {
	s.calls++
	return s.result, s.err
}

func (s *stubWhisper) Configured() bool { return s.configured }

type captureRecorder struct {
	events []Event
}

func (c *captureRecorder) Record(event Event) {
	c.events = append(c.events, event)
}

func newTestService(client *stubWhisper, recorder EventRecorder) *Service {
	svc := NewService(client, recorder, nil, nil, config.OpenAIConfig{})
	svc.rng = func() float64 { return 0.5 }
	return svc
}

func mediaFile(name, contentType string) *conversion.File {
	return &conversion.File{
		Payload:      []byte("media-bytes"),
		Name:         name,
		DeclaredType: contentType,
	}
}

func TestTranscribeUnconfiguredServesDemo(t *testing.T) {
	t.Parallel()
	client := &stubWhisper{configured: false}
	svc := newTestService(client, nil)

	result, err := svc.Transcribe(context.Background(), mediaFile("meeting_notes.mp3", "audio/mpeg"), true)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if !result.DemoFallback {
		t.Fatal("expected demo fallback result")
	}
	if client.calls != 0 {
		t.Fatal("unconfigured client should not be called")
	}
	if !strings.Contains(result.Transcript, "meeting") {
		t.Fatalf("meeting keyword should select the meeting transcript, got %q", result.Transcript[:40])
	}
	if result.Confidence < 0.87 || result.Confidence > 0.95 {
		t.Fatalf("confidence = %v, want within [0.87, 0.95]", result.Confidence)
	}
}

func TestTranscribePreviewAuthFailureServesDemo(t *testing.T) {
	t.Parallel()
	client := &stubWhisper{
		configured: true,
		err:        &openai.APIError{Kind: openai.FailureAuth, Status: 500, Message: "API configuration error"},
	}
	recorder := &captureRecorder{}
	svc := newTestService(client, recorder)

	result, err := svc.Transcribe(context.Background(), mediaFile("clip.mp3", "audio/mpeg"), true)
	if err != nil {
		t.Fatalf("preview must never dead-end on auth failure, got %v", err)
	}
	if !result.DemoFallback {
		t.Fatal("expected demo fallback")
	}

	var sawCompleted bool
	for _, event := range recorder.events {
		if event.Type == enums.AnalyticsEventTranscriptionFailed {
			t.Fatal("demo fallback should not emit a failed event")
		}
		if event.Type == enums.AnalyticsEventTranscriptionCompleted {
			sawCompleted = true
		}
	}
	if !sawCompleted {
		t.Fatal("expected a completed event")
	}
}

func TestTranscribePreviewTimeoutServesDemo(t *testing.T) {
	t.Parallel()
	client := &stubWhisper{
		configured: true,
		err:        &openai.APIError{Kind: openai.FailureTimeout, Message: "deadline exceeded"},
	}
	svc := newTestService(client, nil)

	result, err := svc.Transcribe(context.Background(), mediaFile("clip.mp3", "audio/mpeg"), true)
	if err != nil {
		t.Fatalf("preview timeout must fall back, got %v", err)
	}
	if !result.DemoFallback {
		t.Fatal("expected demo fallback")
	}
}

func TestTranscribeFullFormatFailureSurfaces(t *testing.T) {
	t.Parallel()
	client := &stubWhisper{
		configured: true,
		err:        &openai.APIError{Kind: openai.FailureFormat, Status: 400, Message: "unsupported codec"},
	}
	svc := newTestService(client, nil)

	_, err := svc.Transcribe(context.Background(), mediaFile("video.mp4", "video/mp4"), false)
	if err == nil {
		t.Fatal("full-run format failure must surface")
	}
	typed := errs.As(err)
	if typed == nil || typed.Code() != errs.CodeUnsupportedFormat {
		t.Fatalf("expected unsupported-format error, got %v", err)
	}
	if errs.Retryable(err) {
		t.Fatal("format rejection must not be retryable")
	}
}

func TestTranscribeFullFormatFailureMOVRemediation(t *testing.T) {
	t.Parallel()
	client := &stubWhisper{
		configured: true,
		err:        &openai.APIError{Kind: openai.FailureFormat, Status: 400, Message: "unsupported codec"},
	}
	svc := newTestService(client, nil)

	_, err := svc.Transcribe(context.Background(), mediaFile("clip.mov", "video/quicktime"), false)
	typed := errs.As(err)
	if typed == nil {
		t.Fatalf("expected structured error, got %v", err)
	}
	if !strings.Contains(typed.Message(), "MOV") {
		t.Fatalf("MOV failure should get dedicated remediation, got %q", typed.Message())
	}
}

func TestTranscribeFullNetworkFailureRetryable(t *testing.T) {
	t.Parallel()
	client := &stubWhisper{
		configured: true,
		err:        &openai.APIError{Kind: openai.FailureNetwork, Message: "connection refused"},
	}
	recorder := &captureRecorder{}
	svc := newTestService(client, recorder)

	_, err := svc.Transcribe(context.Background(), mediaFile("talk.mp3", "audio/mpeg"), false)
	if err == nil {
		t.Fatal("full-run network failure must surface")
	}
	if !errs.Retryable(err) {
		t.Fatal("network failure should be retryable")
	}

	var sawFailed bool
	for _, event := range recorder.events {
		if event.Type == enums.AnalyticsEventTranscriptionFailed {
			sawFailed = true
		}
	}
	if !sawFailed {
		t.Fatal("expected a failed analytics event")
	}
}

func TestTranscribeOversizedRejected(t *testing.T) {
	t.Parallel()
	client := &stubWhisper{configured: true}
	svc := newTestService(client, nil)

	file := mediaFile("big.mp3", "audio/mpeg")
	file.Payload = make([]byte, validation.MaxTranscriptionBytes+1)

	_, err := svc.Transcribe(context.Background(), file, false)
	typed := errs.As(err)
	if typed == nil || typed.Code() != errs.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if client.calls != 0 {
		t.Fatal("oversized file should never reach the API")
	}
}

func TestTranscribePreviewTruncation(t *testing.T) {
	t.Parallel()
	longText := strings.Repeat("word ", 120)
	client := &stubWhisper{
		configured: true,
		result: &openai.Transcription{
			Text:     longText,
			Language: "en",
			Duration: 300,
			Segments: []openai.Segment{
				{Start: 0, End: 10, Text: "early"},
				{Start: 14, End: 20, Text: "edge"},
				{Start: 40, End: 50, Text: "late"},
			},
		},
	}
	svc := newTestService(client, nil)

	result, err := svc.Transcribe(context.Background(), mediaFile("talk.mp3", "audio/mpeg"), true)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got := len(strings.Fields(strings.TrimSuffix(result.Transcript, "..."))); got > PreviewWordLimit {
		t.Fatalf("preview has %d words, want <= %d", got, PreviewWordLimit)
	}
	if !strings.HasSuffix(result.Transcript, "...") {
		t.Fatal("truncated preview should end with ellipsis")
	}
	if len(result.Segments) != 2 {
		t.Fatalf("expected 2 segments inside the preview window, got %d", len(result.Segments))
	}
	for _, segment := range result.Segments {
		if segment.Start > PreviewWindowSeconds {
			t.Fatalf("segment at %v exceeds the preview window", segment.Start)
		}
	}
}

func TestTranscribeFullKeepsAllSegments(t *testing.T) {
	t.Parallel()
	client := &stubWhisper{
		configured: true,
		result: &openai.Transcription{
			Text:     "full transcript",
			Language: "en",
			Duration: 120,
			Segments: []openai.Segment{
				{Start: 0, End: 30, Text: "a"},
				{Start: 30, End: 60, Text: "b"},
				{Start: 60, End: 120, Text: "c"},
			},
		},
	}
	svc := newTestService(client, nil)

	result, err := svc.Transcribe(context.Background(), mediaFile("talk.mp3", "audio/mpeg"), false)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(result.Segments) != 3 {
		t.Fatalf("segments = %d, want 3", len(result.Segments))
	}
}

func TestPreviewProjection(t *testing.T) {
	t.Parallel()
	result := &Result{
		Transcript: "hello there",
		Confidence: 0.91,
		Segments: []Segment{
			{Start: 0, End: 7, Text: "hello"},
			{Start: 7, End: 15, Text: "there"},
		},
	}
	preview := PreviewProjection(result)
	if preview.ConfidencePercent != 91 {
		t.Fatalf("confidence percent = %v, want 91", preview.ConfidencePercent)
	}
	if len(preview.Lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(preview.Lines))
	}
	if preview.Lines[0].Timestamp != "00:00" || preview.Lines[1].Timestamp != "00:07" {
		t.Fatalf("unexpected timestamps %+v", preview.Lines)
	}
}
