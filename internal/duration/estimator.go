package duration

import (
	"context"
	"io"
	"math"
	"strings"
	"time"
)

const (
	// DefaultProbeTimeout bounds metadata probing so corrupt containers
	// cannot hang the pipeline.
	DefaultProbeTimeout = 15 * time.Second

	audioBytesPerMinute = 128 * 1024
	videoBytesPerMinute = 2 * 1024 * 1024
)

// Estimate is a duration estimate for an uploaded media file. Minutes is
// ceiling-rounded for pricing; Seconds keeps the fractional value for
// display. Estimated reports whether the size heuristic was used instead of
// container metadata.
type Estimate struct {
	Minutes   int
	Seconds   float64
	Estimated bool
}

// Prober reads container metadata and reports the media duration in seconds.
type Prober interface {
	Probe(ctx context.Context, media io.ReadSeeker, contentType string) (float64, error)
}

// Estimator produces duration estimates, preferring probed metadata and
// falling back to a byte-size heuristic.
type Estimator struct {
	prober  Prober
	timeout time.Duration
}

// NewEstimator builds an Estimator. A nil prober skips probing entirely and
// always uses the heuristic. A zero timeout uses DefaultProbeTimeout.
func NewEstimator(prober Prober, timeout time.Duration) *Estimator {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Estimator{prober: prober, timeout: timeout}
}

// Estimate probes media for its real duration, bounded by the configured
// timeout. Probe errors, timeouts, and non-finite or non-positive results all
// fall back to the size heuristic, so an estimate is always produced.
func (e *Estimator) Estimate(ctx context.Context, media io.ReadSeeker, contentType string, sizeBytes int64) Estimate {
	if e.prober != nil && media != nil {
		if seconds, ok := e.probe(ctx, media, contentType); ok {
			return Estimate{
				Minutes: minutesForPricing(seconds),
				Seconds: seconds,
			}
		}
	}
	return HeuristicEstimate(contentType, sizeBytes)
}

func (e *Estimator) probe(ctx context.Context, media io.ReadSeeker, contentType string) (float64, bool) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type probeResult struct {
		seconds float64
		err     error
	}
	done := make(chan probeResult, 1)
	go func() {
		seconds, err := e.prober.Probe(ctx, media, contentType)
		done <- probeResult{seconds: seconds, err: err}
	}()

	select {
	case <-ctx.Done():
		return 0, false
	case result := <-done:
		if result.err != nil {
			return 0, false
		}
		if math.IsNaN(result.seconds) || math.IsInf(result.seconds, 0) || result.seconds <= 0 {
			return 0, false
		}
		return result.seconds, true
	}
}

// HeuristicEstimate estimates duration from byte size alone: audio at
// 128 KiB per minute, video at 2 MiB per minute, unknown types treated as
// audio. The result is never below one minute.
func HeuristicEstimate(contentType string, sizeBytes int64) Estimate {
	bytesPerMinute := int64(audioBytesPerMinute)
	if strings.HasPrefix(contentType, "video/") {
		bytesPerMinute = videoBytesPerMinute
	}
	minutes := int(math.Round(float64(sizeBytes) / float64(bytesPerMinute)))
	if minutes < 1 {
		minutes = 1
	}
	return Estimate{
		Minutes:   minutes,
		Seconds:   float64(minutes) * 60,
		Estimated: true,
	}
}

func minutesForPricing(seconds float64) int {
	minutes := int(math.Ceil(seconds / 60))
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}
