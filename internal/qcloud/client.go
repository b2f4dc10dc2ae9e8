package qcloud

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"qscan/internal/circuit"
)

// Shot-count bounds accepted by the service.
const (
	MinShots = 1
	MaxShots = 100000
)

// ClientConfig centralizes the timing and retry knobs for one backend
// session. The shortest timeout in the chain wins: a context deadline
// tighter than PollWindow ends polling early.
type ClientConfig struct {
	// PollInterval is the fixed delay between status queries.
	PollInterval time.Duration
	// PollWindow is the total time allowed for a job to reach a terminal
	// state. After it elapses the job is abandoned and recorded as a
	// poll-timeout failure; no remote cancellation is attempted.
	PollWindow time.Duration
	// MaxRetries bounds retries of transient submission and poll faults.
	MaxRetries int
	// RetryBackoffBase is the first retry delay; each subsequent retry
	// doubles it up to RetryBackoffMax.
	RetryBackoffBase time.Duration
	// RetryBackoffMax caps the exponential backoff.
	RetryBackoffMax time.Duration
	// MaxDepth is the backend's gate-depth ceiling, checked locally before
	// submission. Zero disables the pre-check.
	MaxDepth int
}

// DefaultClientConfig mirrors the parameters used on the production device:
// 2s polling, a 15 minute window, and a 500-gate depth ceiling.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PollInterval:     2 * time.Second,
		PollWindow:       15 * time.Minute,
		MaxRetries:       3,
		RetryBackoffBase: 1 * time.Second,
		RetryBackoffMax:  30 * time.Second,
		MaxDepth:         500,
	}
}

// Client drives one Backend session. It is not safe for concurrent use and
// does not need to be: the pipeline keeps at most one job in flight.
type Client struct {
	backend Backend
	cfg     ClientConfig
	logger  *zap.Logger
}

// NewClient wraps a backend session. A nil logger disables logging.
func NewClient(backend Backend, cfg ClientConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{backend: backend, cfg: cfg, logger: logger}
}

// Backend exposes the underlying session, e.g. for its name.
func (c *Client) Backend() Backend { return c.backend }

// Config returns the effective client configuration, recorded in run
// metadata as the constraints the run honored.
func (c *Client) Config() ClientConfig { return c.cfg }

// Run submits one circuit and sees it through to a terminal outcome. Every
// failure mode, from bad configuration through exhausted retries to a
// malformed result payload, comes back inside the Outcome rather than as a
// returned error, so one scale's trouble never escapes to the caller.
func (c *Client) Run(ctx context.Context, circ *circuit.Circuit, shots int, opts Options) Outcome {
	if perr := opts.Validate(); perr != nil {
		return failure(perr)
	}
	if shots < MinShots || shots > MaxShots {
		return failure(newError(StageConfigure, CategoryConfiguration,
			"shots %d outside [%d, %d]", shots, MinShots, MaxShots))
	}
	if c.cfg.MaxDepth > 0 && circ.Depth() > c.cfg.MaxDepth {
		return failure(newError(StageConfigure, CategoryDepth,
			"circuit depth %d exceeds backend limit %d", circ.Depth(), c.cfg.MaxDepth))
	}

	handle, perr := c.submit(ctx, circ, shots, opts)
	if perr != nil {
		return failure(perr)
	}
	c.logger.Debug("job submitted",
		zap.String("backend", c.backend.Name()),
		zap.String("job", string(handle)),
		zap.Int("shots", shots))

	if perr := c.poll(ctx, handle); perr != nil {
		return failure(perr)
	}

	probs, err := c.backend.Result(ctx, handle)
	if err != nil {
		return failure(classify(err, StageResult, CategoryResult))
	}
	if len(probs) == 0 {
		return failure(newError(StageResult, CategoryResult, "empty probability payload"))
	}
	return success(probs)
}

// submit pushes the job with bounded exponential backoff on transient faults.
// Terminal rejections (routing, depth) are surfaced immediately: resubmitting
// an unmappable circuit cannot succeed.
func (c *Client) submit(ctx context.Context, circ *circuit.Circuit, shots int, opts Options) (JobHandle, *PipelineError) {
	for attempt := 0; ; attempt++ {
		handle, err := c.backend.Submit(ctx, circ, shots, opts)
		if err == nil {
			return handle, nil
		}
		perr := classify(err, StageSubmit, CategorySubmission)
		if !perr.Category.Retryable() || attempt >= c.cfg.MaxRetries {
			return "", perr
		}
		delay := c.backoff(attempt)
		c.logger.Warn("submission fault, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.String("error", perr.Message))
		if err := sleepCtx(ctx, delay); err != nil {
			return "", newError(StageSubmit, CategorySubmission, "submission abandoned: %v", err)
		}
	}
}

// poll waits for a terminal status at a fixed interval, tolerating up to
// MaxRetries consecutive transient status faults.
func (c *Client) poll(ctx context.Context, handle JobHandle) *PipelineError {
	deadline := time.Now().Add(c.cfg.PollWindow)
	faults := 0
	for {
		status, err := c.backend.Status(ctx, handle)
		switch {
		case err != nil:
			perr := classify(err, StagePoll, CategorySubmission)
			if !perr.Category.Retryable() {
				return perr
			}
			faults++
			if faults > c.cfg.MaxRetries {
				return perr
			}
		case status == StatusFinished:
			return nil
		case status.Terminal():
			return newError(StagePoll, CategoryExecution, "job ended with status=%s", status)
		default:
			faults = 0
		}

		if time.Now().After(deadline) {
			return newError(StagePoll, CategoryPollTimeout,
				"no terminal state within %s", c.cfg.PollWindow)
		}
		if err := sleepCtx(ctx, c.cfg.PollInterval); err != nil {
			return newError(StagePoll, CategoryPollTimeout, "polling abandoned: %v", err)
		}
	}
}

func (c *Client) backoff(attempt int) time.Duration {
	delay := c.cfg.RetryBackoffBase << uint(attempt)
	if c.cfg.RetryBackoffMax > 0 && delay > c.cfg.RetryBackoffMax {
		delay = c.cfg.RetryBackoffMax
	}
	return delay
}

// classify turns an arbitrary backend error into a PipelineError. Errors the
// backend already classified pass through untouched; anything else gets the
// caller's stage and fallback category.
func classify(err error, stage Stage, fallback Category) *PipelineError {
	var perr *PipelineError
	if errors.As(err, &perr) {
		return perr
	}
	return newError(stage, fallback, "%v", err)
}

// sleepCtx blocks for d or until the context ends, whichever is first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
