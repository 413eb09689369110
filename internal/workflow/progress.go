package workflow

import "github.com/transcribefree/backend/pkg/enums"

// maxActiveProgress caps job progress while work is still running; 100 is
// reserved for the completed status.
const maxActiveProgress = 99

// NextProgress is the monotonic progress reducer: the result never moves
// backwards and never exceeds 100.
func NextProgress(previous, incoming int) int {
	if incoming < previous {
		return previous
	}
	if incoming > 100 {
		return 100
	}
	if incoming < 0 {
		return clampProgress(previous)
	}
	return incoming
}

// ActiveProgress applies NextProgress and then the running cap, for jobs
// that have not completed yet.
func ActiveProgress(previous, incoming int) int {
	next := NextProgress(previous, incoming)
	if next > maxActiveProgress {
		return maxActiveProgress
	}
	return next
}

// OverallProgress is the funnel-level percentage: completed steps over the
// total step count.
func OverallProgress(completedSteps int) int {
	total := enums.StepCount()
	if completedSteps <= 0 {
		return 0
	}
	if completedSteps >= total {
		return 100
	}
	return completedSteps * 100 / total
}

func clampProgress(value int) int {
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}
