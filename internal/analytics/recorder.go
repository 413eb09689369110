package analytics

import (
	"github.com/transcribefree/backend/internal/transcription"
)

// Recorder adapts the Store to the transcription service's fire-and-forget
// event interface.
type Recorder struct {
	store Store
}

// NewRecorder wraps a store for use by the transcription pipeline.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// Record translates and stores the event. It never blocks and never fails.
func (r *Recorder) Record(event transcription.Event) {
	if r == nil || r.store == nil {
		return
	}
	r.store.Record(Event{
		Type:            event.Type,
		FileName:        event.FileName,
		FileType:        event.FileType,
		DurationMinutes: event.DurationSeconds / 60,
		Error:           event.Error,
	})
}
