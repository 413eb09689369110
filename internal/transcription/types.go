package transcription

import "fmt"

const (
	// PreviewWordLimit caps preview transcripts to roughly fifteen seconds
	// of speech.
	PreviewWordLimit = 50
	// PreviewWindowSeconds bounds which segments appear in a preview.
	PreviewWindowSeconds = 15
)

// Segment is one timed slice of a transcript. Start is always <= End and
// segment lists are ordered by Start ascending.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Result is a completed transcription and its metadata.
type Result struct {
	Transcript       string    `json:"transcript"`
	Confidence       float64   `json:"confidence"`
	ProcessingTimeMS int64     `json:"processingTime"`
	DurationSeconds  float64   `json:"duration"`
	Language         string    `json:"language"`
	Segments         []Segment `json:"segments,omitempty"`
	SpeakerCount     int       `json:"speakerCount,omitempty"`
	DemoFallback     bool      `json:"demoFallback,omitempty"`
}

// WordCount counts whitespace-separated words in the transcript.
func (r *Result) WordCount() int {
	count := 0
	inWord := false
	for _, c := range r.Transcript {
		if c == ' ' || c == '\n' || c == '\t' || c == '\r' {
			inWord = false
			continue
		}
		if !inWord {
			count++
			inWord = true
		}
	}
	return count
}

// PreviewLine is one (speaker, text, timestamp) tuple in a preview.
type PreviewLine struct {
	Speaker   string `json:"speaker"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// Preview is the lighter-weight projection of a short transcription shown
// before payment.
type Preview struct {
	Text              string        `json:"text"`
	ConfidencePercent float64       `json:"confidencePercent"`
	Lines             []PreviewLine `json:"lines"`
}

// PreviewProjection renders a Result into the UI-facing preview shape.
func PreviewProjection(result *Result) Preview {
	preview := Preview{
		Text:              result.Transcript,
		ConfidencePercent: result.Confidence * 100,
	}
	for i, segment := range result.Segments {
		preview.Lines = append(preview.Lines, PreviewLine{
			Speaker:   fmt.Sprintf("Speaker %d", i%2+1),
			Text:      segment.Text,
			Timestamp: formatClock(segment.Start),
		})
	}
	return preview
}

func formatClock(seconds float64) string {
	total := int(seconds)
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%02d:%02d", minutes, secs)
}
