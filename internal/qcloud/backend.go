// Package qcloud talks to the remote quantum execution service: option
// validation, job submission with bounded retries, status polling, and
// probability retrieval. The service itself is reached only through the
// narrow Backend interface so tests (and dry runs) can substitute a
// deterministic fake.
package qcloud

import (
	"context"
	"fmt"

	"qscan/internal/circuit"
)

// JobHandle identifies a submitted job for later polling.
type JobHandle string

// JobStatus is the remote job lifecycle as reported by the service.
type JobStatus int

const (
	StatusQueued JobStatus = iota
	StatusRunning
	StatusFinished
	StatusFailed
	StatusCanceled
)

func (s JobStatus) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusRunning:
		return "running"
	case StatusFinished:
		return "finished"
	case StatusFailed:
		return "failed"
	case StatusCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Terminal reports whether the status ends the polling loop.
func (s JobStatus) Terminal() bool {
	return s == StatusFinished || s == StatusFailed || s == StatusCanceled
}

// Backend is the injected capability for one quantum execution service
// session. Implementations must return *PipelineError for failures they can
// classify; anything else is treated as a transient submission fault.
//
// Probabilities are keyed by measured bitstring, leftmost character being the
// most significant channel.
type Backend interface {
	// Submit queues one circuit for execution and returns a pollable handle.
	Submit(ctx context.Context, c *circuit.Circuit, shots int, opts Options) (JobHandle, error)
	// Status reports the current lifecycle state of the job.
	Status(ctx context.Context, h JobHandle) (JobStatus, error)
	// Result retrieves the measured probability distribution of a finished job.
	Result(ctx context.Context, h JobHandle) (map[string]float64, error)
	// Name identifies the physical backend, e.g. "origin_wukong".
	Name() string
}

// Outcome is the result of one submission: exactly one of Probs or Err is
// populated.
type Outcome struct {
	Probs map[string]float64
	Err   *PipelineError
}

// OK reports whether the submission produced a usable distribution.
func (o Outcome) OK() bool { return o.Err == nil }

func success(probs map[string]float64) Outcome { return Outcome{Probs: probs} }

func failure(err *PipelineError) Outcome { return Outcome{Err: err} }
