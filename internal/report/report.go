// Package report defines the merged run artifact: one metadata block plus one
// record per planned scale, in plan order. The report is the single
// source-of-truth output of a run and is immutable once assembled.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"qscan/internal/decode"
	"qscan/internal/probe"
)

// Status is the terminal state of one scale.
type Status string

const (
	StatusOK              Status = "OK"
	StatusFailed          Status = "FAILED"
	StatusMissingDataset  Status = "MISSING_DATASET"
	StatusSkippedNoTarget Status = "SKIPPED_NO_TARGET"
)

// Timing captures the wall-clock cost of one submission round trip, from
// submit start to outcome return (queueing included).
type Timing struct {
	WallTimeSec float64 `json:"wall_time_sec"`
	SubmitTS    float64 `json:"submit_ts"`
	FinishTS    float64 `json:"finish_ts"`
}

// Result carries the decoded hit statistics and the most probable outcomes.
type Result struct {
	Hit       decode.Hit       `json:"hit"`
	ProbsTopK []decode.Outcome `json:"probs_topk"`
}

// ScaleRecord is the per-scale experiment result. It is created once by the
// runner and never mutated after being appended to the report.
type ScaleRecord struct {
	K           int    `json:"k"`
	DatasetPath string `json:"dataset_path,omitempty"`
	NFile       int    `json:"N_file,omitempty"`
	NFormula    int    `json:"N_formula,omitempty"`

	NbitsMax     int   `json:"nbits_max,omitempty"`
	BlockBits    int   `json:"block_bits,omitempty"`
	BlockID      *int  `json:"block_id,omitempty"`
	LocalTargets []int `json:"local_targets,omitempty"`
	RepTarget    *int  `json:"rep_target,omitempty"`
	M            int   `json:"M"`

	GroverIters int `json:"grover_iters,omitempty"`
	Shots       int `json:"shots,omitempty"`

	Timing *Timing `json:"timing,omitempty"`
	Result *Result `json:"result,omitempty"`

	Status Status `json:"status"`
	// ErrorMessage preserves the captured failure verbatim; Stage says where
	// in the submit/poll/retrieve sequence it happened.
	ErrorMessage string `json:"error_message,omitempty"`
	Stage        string `json:"stage,omitempty"`
}

// ProbeMeta records how the bit-order mapping was obtained, including which
// positions were backfilled with the identity assumption rather than
// calibrated. FallbackPositions is exactly the originally unresolved set.
type ProbeMeta struct {
	Shots             int                      `json:"shots"`
	QubitToChannel    map[int]int              `json:"qubit_to_channel"`
	TopBitstring      map[int]probe.TopOutcome `json:"top_bitstring,omitempty"`
	FallbackPositions []int                    `json:"fallback_positions"`
	FallbackUsed      bool                     `json:"fallback_used"`
}

// Constraints are the hardware-motivated circuit bounds the run honored.
type Constraints struct {
	MaxDepth    int `json:"max_depth"`
	GroverIters int `json:"grover_iters"`
	BlockBits   int `json:"block_bits"`
}

// Meta is the run-level metadata block. Credentials never appear here.
type Meta struct {
	Backend        string          `json:"backend"`
	RunID          string          `json:"run_id"`
	PlanPath       string          `json:"plan_path"`
	GeneratedAt    string          `json:"generated_at"`
	NbitsMax       int             `json:"nbits_max"`
	Probe          ProbeMeta       `json:"probe"`
	OptionsApplied map[string]bool `json:"options_applied"`
	Constraints    Constraints     `json:"constraints"`
}

// Report is the merged run artifact.
type Report struct {
	Meta    Meta          `json:"meta"`
	Records []ScaleRecord `json:"records"`
}

// Write persists the report as indented JSON via a temp file and rename, so
// a crash mid-write never leaves a truncated artifact behind.
func (r *Report) Write(path string) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".report-*.json")
	if err != nil {
		return fmt.Errorf("create temp report: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close report: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace report: %w", err)
	}
	return nil
}

// Load reads a report artifact back, e.g. for offline re-analysis.
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report %s: %w", path, err)
	}
	return &r, nil
}
