package export

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/transcribefree/backend/internal/transcription"
	errs "github.com/transcribefree/backend/pkg/errors"
)

// Format names an export rendering.
type Format string

const (
	FormatTXT    Format = "txt"
	FormatSRT    Format = "srt"
	FormatVTT    Format = "vtt"
	FormatJSON   Format = "json"
	FormatReport Format = "report"
)

// defaultSpanSeconds backs the synthetic segment when neither segments nor a
// known duration are available.
const defaultSpanSeconds = 5 * 60

// ParseFormat validates a raw format string.
func ParseFormat(value string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(value))) {
	case FormatTXT:
		return FormatTXT, nil
	case FormatSRT:
		return FormatSRT, nil
	case FormatVTT:
		return FormatVTT, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatReport:
		return FormatReport, nil
	}
	return "", errs.New(errs.CodeValidation, fmt.Sprintf("unknown export format %q; use txt, srt, vtt, json, or report", value))
}

// FileMeta describes the source file for metadata-bearing exports.
type FileMeta struct {
	Name            string
	SizeBytes       int64
	DurationMinutes int
	ContentType     string
}

// Rendered is one export output ready for download.
type Rendered struct {
	Content     []byte
	ContentType string
	Extension   string
}

// Render produces the requested representation of a transcription result.
func Render(format Format, result *transcription.Result, meta FileMeta) (*Rendered, error) {
	switch format {
	case FormatTXT:
		return &Rendered{
			Content:     []byte(result.Transcript),
			ContentType: "text/plain; charset=utf-8",
			Extension:   ".txt",
		}, nil
	case FormatSRT:
		return &Rendered{
			Content:     []byte(GenerateSRT(exportSegments(result))),
			ContentType: "text/plain; charset=utf-8",
			Extension:   ".srt",
		}, nil
	case FormatVTT:
		return &Rendered{
			Content:     []byte(GenerateVTT(exportSegments(result))),
			ContentType: "text/vtt; charset=utf-8",
			Extension:   ".vtt",
		}, nil
	case FormatJSON:
		content, err := renderJSON(result, meta)
		if err != nil {
			return nil, errs.Wrap(errs.CodeInternal, err, "failed to render JSON export")
		}
		return &Rendered{
			Content:     content,
			ContentType: "application/json",
			Extension:   ".json",
		}, nil
	case FormatReport:
		return &Rendered{
			Content:     []byte(renderReport(result, meta)),
			ContentType: "text/plain; charset=utf-8",
			Extension:   "_report.txt",
		}, nil
	}
	return nil, errs.New(errs.CodeValidation, fmt.Sprintf("unknown export format %q", format))
}

// exportSegments returns the result's segments, or one synthetic segment
// spanning the known duration (default span when unknown) so subtitle
// exports never fail outright.
func exportSegments(result *transcription.Result) []transcription.Segment {
	if len(result.Segments) > 0 {
		return result.Segments
	}
	if strings.TrimSpace(result.Transcript) == "" {
		return nil
	}
	span := result.DurationSeconds
	if span <= 0 {
		span = defaultSpanSeconds
	}
	return []transcription.Segment{{Start: 0, End: span, Text: result.Transcript}}
}

// GenerateSRT renders segments as SubRip subtitles (HH:MM:SS,mmm).
func GenerateSRT(segments []transcription.Segment) string {
	var b strings.Builder
	for i, segment := range segments {
		end := segment.End
		if end <= segment.Start {
			end = segment.Start + 5
		}
		fmt.Fprintf(&b, "%d\n", i+1)
		fmt.Fprintf(&b, "%s --> %s\n", formatSRTTime(segment.Start), formatSRTTime(end))
		fmt.Fprintf(&b, "%s\n\n", strings.TrimSpace(segment.Text))
	}
	return b.String()
}

// GenerateVTT renders segments as WebVTT (HH:MM:SS.mmm with header).
func GenerateVTT(segments []transcription.Segment) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for _, segment := range segments {
		end := segment.End
		if end <= segment.Start {
			end = segment.Start + 5
		}
		fmt.Fprintf(&b, "%s --> %s\n", formatVTTTime(segment.Start), formatVTTTime(end))
		fmt.Fprintf(&b, "%s\n\n", strings.TrimSpace(segment.Text))
	}
	return b.String()
}

// ParseSRT parses SubRip content back into segments.
func ParseSRT(content string) ([]transcription.Segment, error) {
	var segments []transcription.Segment
	blocks := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n\n")
	for _, block := range blocks {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) < 3 {
			continue
		}
		// lines[0] is the cue index, lines[1] the timing line.
		parts := strings.Split(lines[1], " --> ")
		if len(parts) != 2 {
			return nil, errs.New(errs.CodeValidation, fmt.Sprintf("malformed SRT timing line %q", lines[1]))
		}
		start, err := parseSRTTime(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, err
		}
		end, err := parseSRTTime(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, err
		}
		segments = append(segments, transcription.Segment{
			Start: start,
			End:   end,
			Text:  strings.Join(lines[2:], "\n"),
		})
	}
	return segments, nil
}

func formatSRTTime(seconds float64) string {
	h, m, s, ms := splitTime(seconds)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

func formatVTTTime(seconds float64) string {
	h, m, s, ms := splitTime(seconds)
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

func splitTime(seconds float64) (int, int, int, int) {
	if seconds < 0 {
		seconds = 0
	}
	totalMS := int(math.Round(seconds * 1000))
	whole := totalMS / 1000
	return whole / 3600, (whole % 3600) / 60, whole % 60, totalMS % 1000
}

func parseSRTTime(value string) (float64, error) {
	var h, m, s, ms int
	if _, err := fmt.Sscanf(value, "%02d:%02d:%02d,%03d", &h, &m, &s, &ms); err != nil {
		return 0, errs.New(errs.CodeValidation, fmt.Sprintf("malformed SRT timestamp %q", value))
	}
	return float64(h*3600+m*60+s) + float64(ms)/1000, nil
}

type jsonMetadata struct {
	Filename     string  `json:"filename"`
	FileSize     int64   `json:"fileSize,omitempty"`
	Duration     int     `json:"duration,omitempty"`
	Confidence   float64 `json:"confidence"`
	SpeakerCount int     `json:"speakerCount,omitempty"`
	ExportedAt   string  `json:"exportedAt"`
	Version      string  `json:"version"`
}

type jsonTranscript struct {
	FullText  string                  `json:"fullText"`
	Segments  []transcription.Segment `json:"segments"`
	WordCount int                     `json:"wordCount"`
}

type jsonExport struct {
	Metadata   jsonMetadata   `json:"metadata"`
	Transcript jsonTranscript `json:"transcript"`
}

func renderJSON(result *transcription.Result, meta FileMeta) ([]byte, error) {
	segments := result.Segments
	if segments == nil {
		segments = []transcription.Segment{}
	}
	payload := jsonExport{
		Metadata: jsonMetadata{
			Filename:     meta.Name,
			FileSize:     meta.SizeBytes,
			Duration:     meta.DurationMinutes,
			Confidence:   result.Confidence,
			SpeakerCount: result.SpeakerCount,
			ExportedAt:   time.Now().UTC().Format(time.RFC3339),
			Version:      "1.0",
		},
		Transcript: jsonTranscript{
			FullText:  result.Transcript,
			Segments:  segments,
			WordCount: result.WordCount(),
		},
	}
	return json.MarshalIndent(payload, "", "  ")
}

func renderReport(result *transcription.Result, meta FileMeta) string {
	var b strings.Builder
	b.WriteString("TRANSCRIPTION REPORT\n")
	b.WriteString("===================\n\n")

	b.WriteString("File Information:\n")
	fmt.Fprintf(&b, "- Name: %s\n", valueOrUnknown(meta.Name))
	fmt.Fprintf(&b, "- Size: %s\n", sizeOrUnknown(meta.SizeBytes))
	fmt.Fprintf(&b, "- Duration: %s\n", durationOrUnknown(meta.DurationMinutes))
	fmt.Fprintf(&b, "- Type: %s\n\n", valueOrUnknown(meta.ContentType))

	b.WriteString("Transcription Details:\n")
	if result.Confidence > 0 {
		fmt.Fprintf(&b, "- Accuracy: %.1f%%\n", result.Confidence*100)
	} else {
		b.WriteString("- Accuracy: Unknown\n")
	}
	if result.SpeakerCount > 0 {
		fmt.Fprintf(&b, "- Speakers Detected: %d\n", result.SpeakerCount)
	} else {
		b.WriteString("- Speakers Detected: Unknown\n")
	}
	fmt.Fprintf(&b, "- Word Count: %d\n", result.WordCount())
	fmt.Fprintf(&b, "- Generated: %s\n\n", time.Now().Format("1/2/2006, 3:04:05 PM"))

	b.WriteString("TRANSCRIPT:\n")
	b.WriteString("-----------\n\n")
	if strings.TrimSpace(result.Transcript) != "" {
		b.WriteString(result.Transcript)
	} else {
		b.WriteString("No transcript available")
	}
	b.WriteString("\n")

	if len(result.Segments) > 0 {
		b.WriteString("\nTIMESTAMPED SEGMENTS:\n")
		b.WriteString("---------------------\n\n")
		for _, segment := range result.Segments {
			end := segment.End
			if end <= segment.Start {
				end = segment.Start + 5
			}
			fmt.Fprintf(&b, "[%s - %s] %s\n", formatShortTime(segment.Start), formatShortTime(end), segment.Text)
		}
	}

	b.WriteString("\n---\nGenerated by TranscribeFree.online\nVisit: https://transcribefree.online\n")
	return b.String()
}

func formatShortTime(seconds float64) string {
	whole := int(seconds)
	return fmt.Sprintf("%02d:%02d", whole/60, whole%60)
}

func valueOrUnknown(value string) string {
	if value == "" {
		return "Unknown"
	}
	return value
}

func sizeOrUnknown(bytes int64) string {
	if bytes <= 0 {
		return "Unknown"
	}
	return FormatFileSize(bytes)
}

func durationOrUnknown(minutes int) string {
	if minutes <= 0 {
		return "Unknown"
	}
	return FormatDuration(minutes)
}

// FormatFileSize renders a byte count for display.
func FormatFileSize(bytes int64) string {
	if bytes == 0 {
		return "0 Bytes"
	}
	units := []string{"Bytes", "KB", "MB", "GB"}
	value := float64(bytes)
	idx := 0
	for value >= 1024 && idx < len(units)-1 {
		value /= 1024
		idx++
	}
	return fmt.Sprintf("%s %s", trimZeros(value), units[idx])
}

// FormatDuration renders minutes as "N mins" or "Xh Ym".
func FormatDuration(minutes int) string {
	if minutes < 60 {
		if minutes == 1 {
			return "1 min"
		}
		return fmt.Sprintf("%d mins", minutes)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

func trimZeros(value float64) string {
	s := fmt.Sprintf("%.2f", value)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
