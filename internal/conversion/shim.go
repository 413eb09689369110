package conversion

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// FailureKind classifies re-encode failures to drive differentiated
// user-facing guidance.
type FailureKind string

const (
	FailureCodec      FailureKind = "codec"
	FailureMemory     FailureKind = "memory"
	FailureCorruption FailureKind = "corruption"
	FailureNetwork    FailureKind = "network"
	FailureUnknown    FailureKind = "unknown"
)

// File is the explicit wrapper carried through the pipeline instead of
// side-channel properties on the payload. APIOverrideType, when set, is the
// content type the transcription client presents to the remote API in place
// of DeclaredType.
type File struct {
	Payload               []byte
	Name                  string
	DeclaredType          string
	APIOverrideType       string
	NeedsServerConversion bool
}

// APIContentType returns the content type to present at the transcription
// API boundary.
func (f *File) APIContentType() string {
	if f.NeedsServerConversion && f.APIOverrideType != "" {
		return f.APIOverrideType
	}
	return f.DeclaredType
}

// Result is the structured outcome of a conversion attempt. Failures never
// panic across this boundary; the original file is untouched so the caller
// can retry or substitute.
type Result struct {
	Success        bool
	File           *File
	OriginalFormat string
	TargetFormat   string
	ProcessingTime time.Duration
	Error          string
	Kind           FailureKind
	FastMode       bool
}

// Guidance returns the user-facing remediation message for a failed result.
func (r Result) Guidance() string {
	switch r.Kind {
	case FailureCodec:
		return "this file's codec could not be decoded; convert it to MP3, WAV, or MP4 and try again"
	case FailureMemory:
		return "this file is too large to convert in place; compress it or trim it to a shorter duration"
	case FailureCorruption:
		return "this file appears to be corrupted; re-export it and upload again"
	case FailureNetwork:
		return "conversion was interrupted; please try again"
	default:
		return "the file could not be prepared for transcription; try a different format"
	}
}

// Options tune the local re-encode path.
type Options struct {
	Normalize      bool
	NoiseReduction bool
	FastMode       bool
}

// OptimalOptions picks re-encode settings from file size and client hints.
// Fast mode trades quality for latency on large files or constrained
// clients; noise reduction is skipped there since it dominates processing
// time.
func OptimalOptions(sizeBytes, fastModeThreshold int64, constrainedClient bool) Options {
	fastMode := sizeBytes > fastModeThreshold || constrainedClient
	return Options{
		Normalize:      true,
		NoiseReduction: !fastMode,
		FastMode:       fastMode,
	}
}

// passThroughTypes are containers whose content is often already acceptable
// to the transcription API under a different declared type. No re-encoding
// happens; the decision is deferred to the API boundary.
var passThroughTypes = map[string]string{
	"video/quicktime": "video/mp4",
	"video/x-msvideo": "video/mp4",
	"video/x-ms-wmv":  "video/mp4",
}

// reencodeTypes are audio containers that need a genuine local re-encode.
var reencodeTypes = map[string]struct{}{
	"audio/x-aiff":   {},
	"audio/aiff":     {},
	"audio/x-ms-wma": {},
	"audio/wav":      {},
	"audio/wave":     {},
	"audio/x-wav":    {},
}

// Shim prepares files the transcription API cannot ingest directly.
type Shim struct{}

// NewShim returns a conversion shim.
func NewShim() *Shim {
	return &Shim{}
}

// Convert dispatches on declared content type: pass-through tagging for
// video containers, local re-encode for incompatible audio, identity for
// everything else.
func (s *Shim) Convert(ctx context.Context, name, contentType string, payload []byte, opts Options) Result {
	switch {
	case passThroughTypes[contentType] != "":
		return s.passThrough(name, contentType, payload)
	case isReencodeType(contentType):
		return s.reencode(ctx, name, contentType, payload, opts)
	default:
		return Result{
			Success:        true,
			OriginalFormat: contentType,
			TargetFormat:   contentType,
			File: &File{
				Payload:      payload,
				Name:         name,
				DeclaredType: contentType,
			},
		}
	}
}

func isReencodeType(contentType string) bool {
	_, ok := reencodeTypes[contentType]
	return ok
}

// passThrough renames the file with a conversion marker and tags the wrapper
// with the content type the API boundary should present. The payload itself
// is untouched.
func (s *Shim) passThrough(name, contentType string, payload []byte) Result {
	started := time.Now()
	overrideType := passThroughTypes[contentType]
	return Result{
		Success:        true,
		OriginalFormat: contentType,
		TargetFormat:   contentType,
		ProcessingTime: time.Since(started),
		File: &File{
			Payload:               payload,
			Name:                  markConverted(name),
			DeclaredType:          contentType,
			APIOverrideType:       overrideType,
			NeedsServerConversion: true,
		},
	}
}

func (s *Shim) reencode(ctx context.Context, name, contentType string, payload []byte, opts Options) Result {
	started := time.Now()
	fail := func(kind FailureKind, message string) Result {
		return Result{
			OriginalFormat: contentType,
			TargetFormat:   "audio/wav",
			ProcessingTime: time.Since(started),
			Error:          message,
			Kind:           kind,
			FastMode:       opts.FastMode,
		}
	}

	decoded, err := decodeWAV(payload)
	if err != nil {
		var decodeErr *decodeError
		if asDecodeError(err, &decodeErr) {
			return fail(decodeErr.kind, decodeErr.message)
		}
		return fail(FailureUnknown, err.Error())
	}

	// Process in blocks so a context deadline stops the work and returns
	// the partial prefix instead of hanging. The deadline also gates the
	// resample stage; the encode below then covers whatever prefix survived.
	processed := processSamples(ctx, decoded.samples, decoded.channels, opts)

	targetRate := decoded.sampleRate
	if opts.FastMode && decoded.sampleRate > fastModeSampleRate && ctx.Err() == nil {
		processed = resample(processed, decoded.channels, decoded.sampleRate, fastModeSampleRate)
		targetRate = fastModeSampleRate
	}

	encoded, err := encodeWAV(processed, decoded.channels, targetRate)
	if err != nil {
		return fail(FailureUnknown, fmt.Sprintf("encode: %v", err))
	}

	return Result{
		Success:        true,
		OriginalFormat: contentType,
		TargetFormat:   "audio/wav",
		ProcessingTime: time.Since(started),
		FastMode:       opts.FastMode,
		File: &File{
			Payload:      encoded,
			Name:         markConvertedWithExt(name, ".wav"),
			DeclaredType: "audio/wav",
		},
	}
}

func markConverted(name string) string {
	dot := strings.LastIndex(name, ".")
	if dot <= 0 {
		return name + "_converted"
	}
	return name[:dot] + "_converted" + name[dot:]
}

func markConvertedWithExt(name, ext string) string {
	dot := strings.LastIndex(name, ".")
	if dot <= 0 {
		return name + "_converted" + ext
	}
	return name[:dot] + "_converted" + ext
}
