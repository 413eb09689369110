package analytics

import (
	"math"
	"sync"
	"time"

	"github.com/transcribefree/backend/pkg/enums"
)

// Event is one pipeline analytics event.
type Event struct {
	Type            enums.AnalyticsEventType
	FileName        string
	FileType        string
	DurationMinutes float64
	Cost            float64
	ErrorType       string
	Error           string
}

// Activity is one entry in the recent-activity feed.
type Activity struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	FileName  string    `json:"fileName"`
	FileType  string    `json:"fileType"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Duration  float64   `json:"duration,omitempty"`
	Cost      float64   `json:"cost,omitempty"`
}

// Snapshot is the aggregated view served to dashboards.
type Snapshot struct {
	TotalTranscriptions      int64            `json:"totalTranscriptions"`
	SuccessfulTranscriptions int64            `json:"successfulTranscriptions"`
	FailedTranscriptions     int64            `json:"failedTranscriptions"`
	SuccessRate              float64          `json:"successRate"`
	TotalMinutesProcessed    float64          `json:"totalMinutesProcessed"`
	TotalRevenue             float64          `json:"totalRevenue"`
	AvgProcessingTime        float64          `json:"avgProcessingTime"`
	FormatStats              map[string]int64 `json:"formatStats"`
	ErrorStats               map[string]int64 `json:"errorStats"`
	RecentActivity           []Activity       `json:"recentActivity"`
	UptimeSeconds            int64            `json:"uptime"`
	Timestamp                time.Time        `json:"timestamp"`
}

// Store accumulates analytics events. State lives for the process lifetime
// only and resets on start; there is no cross-request identity.
type Store interface {
	Record(event Event)
	Snapshot() Snapshot
}

// MemoryStore is the in-memory Store implementation.
type MemoryStore struct {
	mu sync.Mutex

	startedAt time.Time
	now       func() time.Time

	total      int64
	successful int64
	failed     int64
	minutes    float64
	revenue    float64

	formatStats map[string]int64
	errorStats  map[string]int64
	recent      []Activity
	recentLimit int
}

// NewMemoryStore builds a fresh store. recentLimit caps the activity feed;
// zero uses the default of 50.
func NewMemoryStore(recentLimit int) *MemoryStore {
	if recentLimit <= 0 {
		recentLimit = 50
	}
	return &MemoryStore{
		startedAt:   time.Now(),
		now:         time.Now,
		formatStats: make(map[string]int64),
		errorStats:  make(map[string]int64),
		recentLimit: recentLimit,
	}
}

// Record folds an event into the aggregates. Unknown event types are
// dropped silently so emitters never fail.
func (s *MemoryStore) Record(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fileName := orUnknown(event.FileName)
	fileType := orUnknown(event.FileType)

	switch event.Type {
	case enums.AnalyticsEventTranscriptionStarted:
		s.total++
		s.push(Activity{
			Timestamp: s.now(),
			Action:    "Transcription Started",
			FileName:  fileName,
			FileType:  fileType,
			Status:    "processing",
		})
	case enums.AnalyticsEventTranscriptionCompleted:
		s.successful++
		s.minutes += event.DurationMinutes
		s.revenue += event.Cost
		s.formatStats[fileType]++
		s.push(Activity{
			Timestamp: s.now(),
			Action:    "Transcription Completed",
			FileName:  fileName,
			FileType:  fileType,
			Status:    "success",
			Duration:  event.DurationMinutes,
			Cost:      event.Cost,
		})
	case enums.AnalyticsEventTranscriptionFailed:
		s.failed++
		errorType := event.ErrorType
		if errorType == "" {
			errorType = "Unknown Error"
		}
		s.errorStats[errorType]++
		s.push(Activity{
			Timestamp: s.now(),
			Action:    "Transcription Failed",
			FileName:  fileName,
			FileType:  fileType,
			Status:    "error",
			Error:     event.Error,
		})
	}
}

// Snapshot returns a copy of the current aggregates.
func (s *MemoryStore) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	successRate := 0.0
	avgProcessing := 0.0
	if s.total > 0 {
		successRate = math.Round(float64(s.successful)/float64(s.total)*100*100) / 100
		avgProcessing = math.Round(s.minutes/float64(s.total)*100) / 100
	}

	formatStats := make(map[string]int64, len(s.formatStats))
	for k, v := range s.formatStats {
		formatStats[k] = v
	}
	errorStats := make(map[string]int64, len(s.errorStats))
	for k, v := range s.errorStats {
		errorStats[k] = v
	}
	recent := make([]Activity, len(s.recent))
	copy(recent, s.recent)

	now := s.now()
	return Snapshot{
		TotalTranscriptions:      s.total,
		SuccessfulTranscriptions: s.successful,
		FailedTranscriptions:     s.failed,
		SuccessRate:              successRate,
		TotalMinutesProcessed:    s.minutes,
		TotalRevenue:             s.revenue,
		AvgProcessingTime:        avgProcessing,
		FormatStats:              formatStats,
		ErrorStats:               errorStats,
		RecentActivity:           recent,
		UptimeSeconds:            int64(now.Sub(s.startedAt).Seconds()),
		Timestamp:                now,
	}
}

func (s *MemoryStore) push(activity Activity) {
	s.recent = append([]Activity{activity}, s.recent...)
	if len(s.recent) > s.recentLimit {
		s.recent = s.recent[:s.recentLimit]
	}
}

func orUnknown(value string) string {
	if value == "" {
		return "Unknown"
	}
	return value
}
