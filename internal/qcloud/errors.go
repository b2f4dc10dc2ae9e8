package qcloud

import "fmt"

// Stage identifies where in the submit/poll/retrieve sequence a failure was
// captured. It is recorded alongside the message so a failed scale can be
// diagnosed from the report without re-running.
type Stage string

const (
	StageConfigure Stage = "configure"
	StageSubmit    Stage = "submit"
	StagePoll      Stage = "poll"
	StageResult    Stage = "result"
)

// Category is the closed set of failure classes. Whether a failure is worth
// retrying is a static property of its category, never inferred from message
// text.
type Category int

const (
	// CategoryConfiguration covers invalid shots, unknown options, or an
	// oversized circuit caught before any network interaction.
	CategoryConfiguration Category = iota
	// CategorySubmission covers transient network and queueing faults.
	CategorySubmission
	// CategoryRouting covers backend rejection of the circuit as unmappable
	// onto the physical topology.
	CategoryRouting
	// CategoryDepth covers backend rejection for exceeding the depth/layer
	// ceiling. Retrying the same circuit cannot succeed.
	CategoryDepth
	// CategoryExecution covers jobs the backend accepted but reported as
	// failed or canceled.
	CategoryExecution
	// CategoryPollTimeout means no terminal state arrived inside the polling
	// window; the remote job may still be running but is abandoned.
	CategoryPollTimeout
	// CategoryResult covers missing or malformed probability payloads from a
	// nominally finished job.
	CategoryResult
)

func (c Category) String() string {
	switch c {
	case CategoryConfiguration:
		return "configuration"
	case CategorySubmission:
		return "submission"
	case CategoryRouting:
		return "routing_rejection"
	case CategoryDepth:
		return "depth_overflow"
	case CategoryExecution:
		return "execution"
	case CategoryPollTimeout:
		return "poll_timeout"
	case CategoryResult:
		return "result"
	default:
		return fmt.Sprintf("unknown(%d)", int(c))
	}
}

// Retryable reports whether a bounded retry is worthwhile for this category.
// Only transient submission faults qualify; everything else is terminal.
func (c Category) Retryable() bool {
	return c == CategorySubmission
}

// PipelineError is a captured backend-interaction failure. It travels inside
// an Outcome rather than aborting the caller, preserving the stage and the
// backend's message verbatim.
type PipelineError struct {
	Stage    Stage
	Category Category
	Message  string
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s [%s]: %s", e.Stage, e.Category, e.Message)
}

func newError(stage Stage, cat Category, format string, args ...interface{}) *PipelineError {
	return &PipelineError{Stage: stage, Category: cat, Message: fmt.Sprintf(format, args...)}
}
