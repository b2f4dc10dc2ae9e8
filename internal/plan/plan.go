// Package plan defines the experiment plan artifact: which dataset scales to
// run, which records match the query value, and how they fold into fixed-width
// search blocks. Plans are built offline from the CSV datasets and consumed
// by the runner; the artifact is a flat JSON file.
package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Scale statuses written at plan-build time. An absent dataset is planned
// anyway so the run report keeps one entry per scale.
const (
	StatusPlanned        = ""
	StatusMissingDataset = "MISSING_DATASET"
)

// Scale is one dataset tier of the experiment.
type Scale struct {
	K           int    `json:"k"`
	DatasetPath string `json:"dataset_path"`
	Status      string `json:"status,omitempty"`

	// NFile is the row count actually present in the dataset file; NFormula
	// is the nominal 2^k size of the tier.
	NFile    int `json:"N_file,omitempty"`
	NFormula int `json:"N_formula,omitempty"`

	TargetValue int `json:"target_value,omitempty"`

	// TargetRIDs is the full global hit set for auditing; M is its size.
	TargetRIDs []int `json:"targets,omitempty"`
	M          int   `json:"M"`

	// Block decomposition of the representative target. Low-selectivity
	// datasets usually have M≈1, so one block covers the interesting case
	// within the hardware depth budget.
	BlockBits    int   `json:"block_bits"`
	BlockSize    int   `json:"block_size"`
	BlockID      *int  `json:"block_id,omitempty"`
	LocalTargets []int `json:"local_targets"`
	RepTarget    *int  `json:"rep_target,omitempty"`

	NbitsMax int `json:"nbits_max"`
	Shots    int `json:"shots"`
}

// Plan is the scale-indexed experiment plan.
type Plan struct {
	DatasetDir  string  `json:"dataset_dir"`
	KMin        int     `json:"k_min"`
	KMax        int     `json:"k_max"`
	TargetValue int     `json:"target_value"`
	NbitsMax    int     `json:"nbits_max"`
	Shots       int     `json:"shots"`
	BlockBits   int     `json:"block_bits"`
	BlockSize   int     `json:"block_size"`
	Scales      []Scale `json:"records"`
}

// Load reads a plan artifact from disk.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse plan %s: %w", path, err)
	}
	return &p, nil
}

// Write persists the plan as indented JSON, creating the directory if needed.
func (p *Plan) Write(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create plan directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write plan: %w", err)
	}
	return nil
}
