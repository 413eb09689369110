package validation

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

// Reason codes for structured rejections.
type Reason string

const (
	ReasonForbiddenExtension Reason = "forbidden_extension"
	ReasonTooSmall           Reason = "too_small"
	ReasonTooLarge           Reason = "too_large"
	ReasonUnsupportedFormat  Reason = "unsupported_format"
)

// Result is the outcome of file-acceptability checks. When Valid is false,
// Error always carries a human-readable explanation.
type Result struct {
	Valid  bool
	Error  string
	Reason Reason
}

// SupportedAudioTypes are content types the transcription API ingests
// directly.
var SupportedAudioTypes = []string{
	"audio/mpeg",
	"audio/wav",
	"audio/wave",
	"audio/x-wav",
	"audio/mp4",
	"audio/m4a",
	"audio/aac",
	"audio/ogg",
	"audio/webm",
	"audio/flac",
	"audio/x-flac",
}

// SupportedVideoTypes are video containers the transcription API ingests
// directly.
var SupportedVideoTypes = []string{
	"video/mp4",
	"video/webm",
	"video/ogg",
}

// ConversionRequiredVideoTypes are video containers that need the conversion
// shim before transcription.
var ConversionRequiredVideoTypes = []string{
	"video/quicktime",
	"video/x-msvideo",
	"video/x-ms-wmv",
}

// ConversionRequiredAudioTypes are audio containers that need a local
// re-encode before transcription.
var ConversionRequiredAudioTypes = []string{
	"audio/x-aiff",
	"audio/aiff",
	"audio/x-ms-wma",
}

// SupportedExtensions is the extension fallback used when the declared
// content type is missing or unrecognized.
var SupportedExtensions = []string{
	".mp3", ".wav", ".m4a", ".aac", ".ogg", ".webm", ".flac",
	".mp4", ".mov", ".avi",
}

// ForbiddenExtensions are document/code extensions that indicate a user
// mistake rather than a format limitation. They win over any declared
// content type.
var ForbiddenExtensions = []string{
	".json", ".txt", ".js", ".html", ".css", ".md", ".pdf", ".doc", ".docx",
}

const (
	// MinFileBytes is the floor below which a file is treated as empty or
	// corrupt.
	MinFileBytes = 100
	// MaxFileBytes is the general upload ceiling (2 GiB).
	MaxFileBytes = 2 * 1024 * 1024 * 1024
	// MaxTranscriptionBytes is the stricter ceiling applied before handing
	// media to the transcription API (25 MiB).
	MaxTranscriptionBytes = 25 * 1024 * 1024
)

var (
	supportedTypeSet          = buildSet(SupportedAudioTypes, SupportedVideoTypes, ConversionRequiredVideoTypes, ConversionRequiredAudioTypes)
	conversionRequiredTypeSet = buildSet(ConversionRequiredVideoTypes, ConversionRequiredAudioTypes)
	supportedExtensionSet     = buildSet(SupportedExtensions)
	forbiddenExtensionSet     = buildSet(ForbiddenExtensions)
)

func buildSet(lists ...[]string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, list := range lists {
		for _, value := range list {
			set[value] = struct{}{}
		}
	}
	return set
}

// ValidateFile checks a file's name, declared content type, and byte size
// against the supported-format tables. It never panics; every rejection is a
// structured Result.
func ValidateFile(name, contentType string, sizeBytes int64) Result {
	ext := Extension(name)

	if _, forbidden := forbiddenExtensionSet[ext]; forbidden {
		return Result{
			Error:  fmt.Sprintf("Cannot transcribe %q files. Please upload audio or video files only.", ext),
			Reason: ReasonForbiddenExtension,
		}
	}

	if sizeBytes < MinFileBytes {
		return Result{
			Error:  fmt.Sprintf("File is too small (%d bytes). Please upload a valid audio or video file.", sizeBytes),
			Reason: ReasonTooSmall,
		}
	}

	if sizeBytes > MaxFileBytes {
		sizeMB := sizeBytes / (1024 * 1024)
		return Result{
			Error:  fmt.Sprintf("File size (%dMB) exceeds the 2GB limit. Please compress your file or upload a smaller one.", sizeMB),
			Reason: ReasonTooLarge,
		}
	}

	mediaType := normalizeContentType(contentType)
	_, supportedType := supportedTypeSet[mediaType]
	_, supportedExt := supportedExtensionSet[ext]
	if !supportedType && !supportedExt {
		return Result{
			Error:  fmt.Sprintf("Unsupported file format %q. Please upload audio files (MP3, WAV, M4A, AAC, FLAC) or video files (MP4, MOV, AVI).", ext),
			Reason: ReasonUnsupportedFormat,
		}
	}

	return Result{Valid: true}
}

// ValidateForTranscription applies the stricter size ceiling used at the
// transcription API boundary.
func ValidateForTranscription(sizeBytes int64) Result {
	if sizeBytes > MaxTranscriptionBytes {
		sizeMB := sizeBytes / (1024 * 1024)
		return Result{
			Error:  fmt.Sprintf("File size (%dMB) exceeds the 25MB limit for transcription. Please compress or trim your file.", sizeMB),
			Reason: ReasonTooLarge,
		}
	}
	return Result{Valid: true}
}

// NeedsConversion reports whether the declared content type requires the
// conversion shim before transcription.
func NeedsConversion(contentType string) bool {
	_, ok := conversionRequiredTypeSet[normalizeContentType(contentType)]
	return ok
}

// Extension returns the lower-cased extension of name, including the dot.
func Extension(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

func normalizeContentType(value string) string {
	clean := strings.TrimSpace(value)
	if clean == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(clean)
	if err != nil {
		return strings.ToLower(clean)
	}
	return strings.ToLower(mediaType)
}
