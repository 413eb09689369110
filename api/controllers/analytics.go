package controllers

import (
	"net/http"

	"github.com/transcribefree/backend/api/responses"
	"github.com/transcribefree/backend/api/validators"
	"github.com/transcribefree/backend/internal/analytics"
	"github.com/transcribefree/backend/pkg/enums"
	pkgerrors "github.com/transcribefree/backend/pkg/errors"
	"github.com/transcribefree/backend/pkg/logger"
)

type analyticsEventRequest struct {
	Type            string  `json:"type" validate:"required"`
	FileName        string  `json:"fileName"`
	FileType        string  `json:"fileType"`
	DurationMinutes float64 `json:"durationMinutes" validate:"gte=0"`
	Cost            float64 `json:"cost" validate:"gte=0"`
	ErrorType       string  `json:"errorType"`
	Error           string  `json:"error"`
}

// AnalyticsIngest records one pipeline event into the in-memory store.
func AnalyticsIngest(store analytics.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req analyticsEventRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		eventType, err := enums.ParseAnalyticsEventType(req.Type)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown event type"))
			return
		}

		store.Record(analytics.Event{
			Type:            eventType,
			FileName:        req.FileName,
			FileType:        req.FileType,
			DurationMinutes: req.DurationMinutes,
			Cost:            req.Cost,
			ErrorType:       req.ErrorType,
			Error:           req.Error,
		})
		responses.WriteSuccess(w, map[string]bool{"recorded": true})
	}
}

// AnalyticsSnapshot serves the aggregated dashboard view.
func AnalyticsSnapshot(store analytics.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, store.Snapshot())
	}
}
