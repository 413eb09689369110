package enums

import "fmt"

// WorkflowStep identifies one stage of the transcription funnel.
type WorkflowStep string

const (
	WorkflowStepUpload     WorkflowStep = "upload"
	WorkflowStepPreview    WorkflowStep = "preview"
	WorkflowStepPayment    WorkflowStep = "payment"
	WorkflowStepProcessing WorkflowStep = "processing"
	WorkflowStepDownload   WorkflowStep = "download"
)

// workflowStepOrder fixes the linear progression of the funnel.
var workflowStepOrder = []WorkflowStep{
	WorkflowStepUpload,
	WorkflowStepPreview,
	WorkflowStepPayment,
	WorkflowStepProcessing,
	WorkflowStepDownload,
}

// String returns the literal string for the step.
func (w WorkflowStep) String() string {
	return string(w)
}

// IsValid reports whether the step is known.
func (w WorkflowStep) IsValid() bool {
	for _, candidate := range workflowStepOrder {
		if candidate == w {
			return true
		}
	}
	return false
}

// Index returns the zero-based position of the step in the funnel.
func (w WorkflowStep) Index() int {
	for i, candidate := range workflowStepOrder {
		if candidate == w {
			return i
		}
	}
	return -1
}

// Next returns the successor step. The final step has no successor.
func (w WorkflowStep) Next() (WorkflowStep, error) {
	idx := w.Index()
	if idx < 0 {
		return "", fmt.Errorf("unknown workflow step %q", w)
	}
	if idx == len(workflowStepOrder)-1 {
		return "", fmt.Errorf("workflow step %q has no successor", w)
	}
	return workflowStepOrder[idx+1], nil
}

// StepCount is the total number of funnel steps.
func StepCount() int {
	return len(workflowStepOrder)
}

// WorkflowSteps returns the ordered funnel steps.
func WorkflowSteps() []WorkflowStep {
	steps := make([]WorkflowStep, len(workflowStepOrder))
	copy(steps, workflowStepOrder)
	return steps
}
