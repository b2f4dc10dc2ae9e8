package qcloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"qscan/internal/circuit"
)

// DefaultEndpoint is the production REST gateway of the quantum cloud
// service.
const DefaultEndpoint = "https://qcloud.originqc.com.cn/api/v1"

// HTTPBackend is the real Backend implementation. The API key travels only
// in the Authorization header; it is never written into any artifact.
type HTTPBackend struct {
	endpoint    string
	backendName string
	apiKey      string
	httpClient  *http.Client
}

// NewHTTPBackend opens a session against the named physical backend. An
// empty endpoint selects the production gateway.
func NewHTTPBackend(endpoint, backendName, apiKey string) *HTTPBackend {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &HTTPBackend{
		endpoint:    strings.TrimRight(endpoint, "/"),
		backendName: backendName,
		apiKey:      apiKey,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (b *HTTPBackend) Name() string { return b.backendName }

type submitRequest struct {
	Backend string          `json:"backend"`
	Shots   int             `json:"shots"`
	Options map[string]bool `json:"options,omitempty"`
	Program string          `json:"program"`
}

type submitResponse struct {
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type resultResponse struct {
	ProbsList []map[string]float64 `json:"probs_list"`
	Message   string               `json:"message"`
}

func (b *HTTPBackend) Submit(ctx context.Context, c *circuit.Circuit, shots int, opts Options) (JobHandle, error) {
	payload, err := json.Marshal(submitRequest{
		Backend: b.backendName,
		Shots:   shots,
		Options: opts,
		Program: OriginIR(c),
	})
	if err != nil {
		return "", newError(StageSubmit, CategorySubmission, "encode submit request: %v", err)
	}

	var resp submitResponse
	if perr := b.do(ctx, http.MethodPost, "/task/submit", bytes.NewReader(payload), &resp, StageSubmit); perr != nil {
		return "", perr
	}
	if resp.JobID == "" {
		return "", newError(StageSubmit, CategorySubmission, "submit accepted but no job id returned: %s", resp.Message)
	}
	return JobHandle(resp.JobID), nil
}

func (b *HTTPBackend) Status(ctx context.Context, h JobHandle) (JobStatus, error) {
	var resp statusResponse
	if perr := b.do(ctx, http.MethodGet, "/task/status/"+string(h), nil, &resp, StagePoll); perr != nil {
		return StatusFailed, perr
	}
	switch strings.ToUpper(resp.Status) {
	case "QUEUED", "WAITING":
		return StatusQueued, nil
	case "RUNNING", "COMPUTING":
		return StatusRunning, nil
	case "FINISHED":
		return StatusFinished, nil
	case "FAILED":
		return StatusFailed, nil
	case "CANCELED", "CANCELLED":
		return StatusCanceled, nil
	default:
		return StatusFailed, newError(StagePoll, CategorySubmission, "unrecognized job status %q", resp.Status)
	}
}

func (b *HTTPBackend) Result(ctx context.Context, h JobHandle) (map[string]float64, error) {
	var resp resultResponse
	if perr := b.do(ctx, http.MethodGet, "/task/result/"+string(h), nil, &resp, StageResult); perr != nil {
		return nil, perr
	}
	if len(resp.ProbsList) == 0 {
		return nil, newError(StageResult, CategoryResult, "empty probs_list: %s", resp.Message)
	}
	return resp.ProbsList[0], nil
}

// do runs one authenticated round trip and decodes the JSON body into out.
// Service-reported rejections are classified here, at the boundary, so the
// Client never needs to inspect message text.
func (b *HTTPBackend) do(ctx context.Context, method, path string, body io.Reader, out interface{}, stage Stage) *PipelineError {
	req, err := http.NewRequestWithContext(ctx, method, b.endpoint+path, body)
	if err != nil {
		return newError(stage, CategorySubmission, "build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+b.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return newError(stage, CategorySubmission, "%v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return classifyHTTP(stage, resp.StatusCode, string(raw))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return newError(stage, CategoryResult, "decode response: %v", err)
	}
	return nil
}

// classifyHTTP maps a non-OK service response to the closed error taxonomy.
// Routing and depth rejections come back as 4xx with recognizable reason
// codes; everything 5xx is treated as transient.
func classifyHTTP(stage Stage, code int, body string) *PipelineError {
	msg := strings.TrimSpace(body)
	lower := strings.ToLower(msg)
	switch {
	case code >= 500:
		return newError(stage, CategorySubmission, "service error %d: %s", code, msg)
	case code == http.StatusTooManyRequests:
		return newError(stage, CategorySubmission, "queue rejection %d: %s", code, msg)
	case strings.Contains(lower, "mapping") || strings.Contains(lower, "routing") || strings.Contains(lower, "compensate"):
		return newError(stage, CategoryRouting, "%s", msg)
	case strings.Contains(lower, "depth") || strings.Contains(lower, "layer"):
		return newError(stage, CategoryDepth, "%s", msg)
	default:
		return newError(stage, CategoryExecution, "service rejected request (%d): %s", code, msg)
	}
}

// OriginIR renders the circuit in the service's textual program format.
func OriginIR(c *circuit.Circuit) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "QINIT %d\n", c.NumQubits)
	fmt.Fprintf(&sb, "CREG %d\n", c.NumQubits)
	for _, g := range c.Gates {
		switch g.Kind {
		case circuit.GateU3:
			fmt.Fprintf(&sb, "U3 q[%d],(%.10g,%.10g,%.10g)\n", g.Qubit, g.Theta, g.Phi, g.Lambda)
		case circuit.GateCZ:
			fmt.Fprintf(&sb, "CZ q[%d],q[%d]\n", g.Control, g.Target)
		case circuit.GateMeasure:
			fmt.Fprintf(&sb, "MEASURE q[%d],c[%d]\n", g.Qubit, g.CBit)
		}
	}
	return sb.String()
}
