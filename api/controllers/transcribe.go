package controllers

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/transcribefree/backend/api/responses"
	"github.com/transcribefree/backend/internal/conversion"
	"github.com/transcribefree/backend/internal/transcription"
	"github.com/transcribefree/backend/internal/validation"
	"github.com/transcribefree/backend/pkg/config"
	pkgerrors "github.com/transcribefree/backend/pkg/errors"
	"github.com/transcribefree/backend/pkg/logger"
)

// Transcriber runs a transcription attempt against prepared media.
type Transcriber interface {
	Transcribe(ctx context.Context, file *conversion.File, preview bool) (*transcription.Result, error)
}

// Converter prepares incompatible containers before transcription.
type Converter interface {
	Convert(ctx context.Context, name, contentType string, payload []byte, opts conversion.Options) conversion.Result
}

// Transcribe accepts a multipart upload and returns the transcript. The
// is_preview field selects the truncated fast path with its demo fallback.
// Containers the transcription API cannot ingest directly run through the
// conversion shim first, so a quicktime upload reaches the API tagged as mp4.
func Transcribe(svc Transcriber, converter Converter, logg *logger.Logger, media config.MediaConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		payload, header, err := readUpload(r, media.MaxUploadBytes)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		contentType := header.contentType
		check := validation.ValidateFile(header.fileName, contentType, int64(len(payload)))
		if !check.Valid {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, check.Error))
			return
		}

		preview, _ := strconv.ParseBool(r.FormValue("is_preview"))
		file := &conversion.File{
			Payload:      payload,
			Name:         header.fileName,
			DeclaredType: contentType,
		}
		if validation.NeedsConversion(contentType) {
			opts := conversion.OptimalOptions(int64(len(payload)), media.FastModeBytes, false)
			timeout := media.ReencodeTimeout
			if opts.FastMode && media.FastReencodeTimeout > 0 {
				timeout = media.FastReencodeTimeout
			}
			convCtx := ctx
			if timeout > 0 {
				var cancel context.CancelFunc
				convCtx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			converted := converter.Convert(convCtx, header.fileName, contentType, payload, opts)
			if !converted.Success {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnsupportedFormat, converted.Guidance()).
					WithDetails(converted.Error))
				return
			}
			file = converted.File
		}

		result, err := svc.Transcribe(ctx, file, preview)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if preview {
			responses.WriteSuccess(w, map[string]any{
				"result":  result,
				"preview": transcription.PreviewProjection(result),
			})
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type uploadHeader struct {
	fileName    string
	contentType string
}

// readUpload pulls the multipart "file" part into memory, bounded by the
// configured upload ceiling.
func readUpload(r *http.Request, maxBytes int64) ([]byte, *uploadHeader, error) {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(nil, r.Body, maxBytes+1)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart request")
	}

	part, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "file field is required")
	}
	defer part.Close()

	payload, err := io.ReadAll(part)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "failed to read uploaded file")
	}

	contentType := header.Header.Get("Content-Type")
	return payload, &uploadHeader{fileName: header.Filename, contentType: contentType}, nil
}
