package plan

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BuildOptions parameterizes plan construction.
type BuildOptions struct {
	DatasetDir  string
	KMin        int
	KMax        int
	TargetValue int
	NbitsMax    int
	Shots       int
	BlockBits   int
}

// DefaultBuildOptions mirrors the standard low-selectivity sweep: scales 0-10,
// ten measured bits, four-bit blocks.
func DefaultBuildOptions(datasetDir string) BuildOptions {
	return BuildOptions{
		DatasetDir:  datasetDir,
		KMin:        0,
		KMax:        10,
		TargetValue: 100,
		NbitsMax:    10,
		Shots:       2000,
		BlockBits:   4,
	}
}

func (o BuildOptions) validate() error {
	if o.BlockBits < 1 {
		return fmt.Errorf("block bits must be >= 1, got %d", o.BlockBits)
	}
	if o.BlockBits > o.NbitsMax {
		return fmt.Errorf("block bits %d exceeds measured width %d", o.BlockBits, o.NbitsMax)
	}
	if o.KMin > o.KMax {
		return fmt.Errorf("scale range [%d, %d] is empty", o.KMin, o.KMax)
	}
	return nil
}

// DatasetPath returns the conventional dataset file for scale k.
func DatasetPath(dir string, k int) string {
	return filepath.Join(dir, fmt.Sprintf("low_selectivity_data_%d.csv", k))
}

// Build scans the per-scale datasets and produces the plan. Datasets are read
// concurrently but each scale lands in its k-ordered slot, so the artifact is
// deterministic. A missing dataset is not an error: the scale is planned with
// MISSING_DATASET so the final report still carries one record for it.
func Build(opts BuildOptions, logger *zap.Logger) (*Plan, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	blockSize := 1 << opts.BlockBits
	mask := blockSize - 1
	scales := make([]Scale, opts.KMax-opts.KMin+1)

	var g errgroup.Group
	g.SetLimit(4)
	for i := range scales {
		k := opts.KMin + i
		slot := &scales[i]
		g.Go(func() error {
			path := DatasetPath(opts.DatasetDir, k)
			if _, err := os.Stat(path); err != nil {
				logger.Warn("dataset missing, planning placeholder",
					zap.Int("k", k), zap.String("path", path))
				*slot = Scale{K: k, DatasetPath: path, Status: StatusMissingDataset}
				return nil
			}

			values, err := ReadValues(path)
			if err != nil {
				return fmt.Errorf("scale %d: %w", k, err)
			}

			var targets []int
			for rid, v := range values {
				if v == opts.TargetValue {
					targets = append(targets, rid)
				}
			}

			s := Scale{
				K:            k,
				DatasetPath:  path,
				NFile:        len(values),
				NFormula:     1 << k,
				TargetValue:  opts.TargetValue,
				TargetRIDs:   targets,
				M:            len(targets),
				BlockBits:    opts.BlockBits,
				BlockSize:    blockSize,
				LocalTargets: []int{},
				NbitsMax:     opts.NbitsMax,
				Shots:        opts.Shots,
			}
			if len(targets) > 0 {
				rep := targets[0]
				blockID := rep >> opts.BlockBits
				s.RepTarget = &rep
				s.BlockID = &blockID
				s.LocalTargets = []int{rep & mask}
			}
			*slot = s

			logger.Debug("scale planned",
				zap.Int("k", k),
				zap.Int("rows", len(values)),
				zap.Int("hits", len(targets)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Plan{
		DatasetDir:  opts.DatasetDir,
		KMin:        opts.KMin,
		KMax:        opts.KMax,
		TargetValue: opts.TargetValue,
		NbitsMax:    opts.NbitsMax,
		Shots:       opts.Shots,
		BlockBits:   opts.BlockBits,
		BlockSize:   blockSize,
		Scales:      scales,
	}, nil
}
