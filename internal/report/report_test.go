package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"qscan/internal/decode"
)

func sampleReport() *Report {
	blockID := 1
	rep := 5
	return &Report{
		Meta: Meta{
			Backend:     "origin_wukong",
			RunID:       "7a391d2e-0000-4000-8000-000000000000",
			PlanPath:    "results/plan.json",
			GeneratedAt: "2026-08-29 12:00:00",
			NbitsMax:    10,
			Probe: ProbeMeta{
				Shots:             2000,
				QubitToChannel:    map[int]int{0: 0, 1: 2, 2: 1},
				FallbackPositions: []int{3},
				FallbackUsed:      true,
			},
			OptionsApplied: map[string]bool{"compensation": false},
			Constraints:    Constraints{MaxDepth: 500, GroverIters: 1, BlockBits: 4},
		},
		Records: []ScaleRecord{
			{K: 0, Status: StatusMissingDataset, DatasetPath: "dataset/low_selectivity_data_0.csv"},
			{
				K:            1,
				Status:       StatusOK,
				BlockBits:    4,
				BlockID:      &blockID,
				RepTarget:    &rep,
				LocalTargets: []int{1},
				M:            1,
				Shots:        2000,
				Timing:       &Timing{WallTimeSec: 12.5, SubmitTS: 100, FinishTS: 112.5},
				Result: &Result{
					Hit: decode.Hit{PAnyHit: 0.7, Top1Bitstring: "0001", Top1Prob: 0.7, Top1Hit: true},
					ProbsTopK: []decode.Outcome{
						{Bitstring: "0001", Prob: 0.7},
						{Bitstring: "0010", Prob: 0.3},
					},
				},
			},
			{K: 2, Status: StatusSkippedNoTarget, ErrorMessage: "no record matches the query value (M=0), equality oracle undefined"},
		},
	}
}

func TestReportWriteLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "merged.json")
	rep := sampleReport()
	require.NoError(t, rep.Write(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	if diff := cmp.Diff(rep, loaded); diff != "" {
		t.Fatalf("report round trip mismatch (-written +loaded):\n%s", diff)
	}
}

func TestReportWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "merged.json")
	require.NoError(t, sampleReport().Write(path))
	// Overwrite in place.
	require.NoError(t, sampleReport().Write(path))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "merged.json", entries[0].Name())
}

func TestReportArtifactShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "merged.json")
	require.NoError(t, sampleReport().Write(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Contains(t, doc, "meta")
	require.Contains(t, doc, "records")

	text := string(data)
	require.Contains(t, text, `"fallback_positions"`)
	require.Contains(t, text, `"p_any_hit"`)
	require.Contains(t, text, `"wall_time_sec"`)
	// Failed/skipped records keep their diagnostics inline.
	require.Contains(t, text, `"SKIPPED_NO_TARGET"`)
	// Nothing secret belongs in the artifact.
	require.False(t, strings.Contains(strings.ToLower(text), "api_key"))
}
