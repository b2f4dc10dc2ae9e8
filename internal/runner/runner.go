// Package runner orchestrates a full experiment run: one bit-order
// calibration, then every planned scale in order, each isolated from the
// others' failures, merged into the single run report.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"qscan/internal/circuit"
	"qscan/internal/decode"
	"qscan/internal/plan"
	"qscan/internal/probe"
	"qscan/internal/qcloud"
	"qscan/internal/report"
)

// Config holds the run-level knobs.
type Config struct {
	// GroverIters is the fixed amplification count. It is depth-bounded
	// configuration, never derived from block size at run time.
	GroverIters int
	// ProbeShots is the shot count for each calibration circuit.
	ProbeShots int
	// ProbsTopK bounds the per-record outcome list kept in the report.
	ProbsTopK int
}

// DefaultConfig matches the production sweeps: one iteration, 2000
// calibration shots, sixteen retained outcomes.
func DefaultConfig() Config {
	return Config{
		GroverIters: 1,
		ProbeShots:  2000,
		ProbsTopK:   16,
	}
}

// Runner drives the pipeline over one backend session. Scales run strictly
// sequentially; the session holds at most one job in flight.
type Runner struct {
	client *qcloud.Client
	cfg    Config
	logger *zap.Logger
}

// New wires a runner to an execution client. A nil logger disables logging.
func New(client *qcloud.Client, cfg Config, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{client: client, cfg: cfg, logger: logger}
}

// Run executes the plan and assembles the merged report. Per-scale failures
// are captured inside their records; Run itself only fails when the pipeline
// cannot start at all (calibration misconfiguration).
func (r *Runner) Run(ctx context.Context, p *plan.Plan, planPath string) (*report.Report, error) {
	probeCfg := probe.DefaultConfig()
	probeCfg.NbitsMax = p.NbitsMax
	probeCfg.Shots = r.cfg.ProbeShots

	prober := probe.NewProber(r.client, probeCfg, r.logger)
	probeRes, err := prober.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("bit-order calibration: %w", err)
	}

	bitOrder, fallback := probeRes.Map.WithIdentityFallback()
	if len(fallback) > 0 {
		r.logger.Warn("bit-order calibration incomplete, identity fallback applied",
			zap.Ints("positions", fallback))
	}

	opts := qcloud.MinimalOptions()
	clientCfg := r.client.Config()

	rep := &report.Report{
		Meta: report.Meta{
			Backend:     r.client.Backend().Name(),
			RunID:       uuid.NewString(),
			PlanPath:    planPath,
			GeneratedAt: time.Now().Format("2006-01-02 15:04:05"),
			NbitsMax:    p.NbitsMax,
			Probe: report.ProbeMeta{
				Shots:             probeRes.Shots,
				QubitToChannel:    bitOrder.ToMap(),
				TopBitstring:      probeRes.TopBitstring,
				FallbackPositions: fallback,
				FallbackUsed:      len(fallback) > 0,
			},
			OptionsApplied: map[string]bool(opts),
			Constraints: report.Constraints{
				MaxDepth:    clientCfg.MaxDepth,
				GroverIters: r.cfg.GroverIters,
				BlockBits:   p.BlockBits,
			},
		},
	}

	for _, scale := range p.Scales {
		rec := r.runScale(ctx, p, scale, bitOrder, opts)
		rep.Records = append(rep.Records, rec)
		r.logger.Info("scale finished",
			zap.Int("k", rec.K),
			zap.String("status", string(rec.Status)))
	}

	return rep, nil
}

// runScale produces exactly one record for the scale, whatever happens.
func (r *Runner) runScale(ctx context.Context, p *plan.Plan, s plan.Scale, bitOrder *probe.BitOrderMap, opts qcloud.Options) report.ScaleRecord {
	if s.Status == plan.StatusMissingDataset {
		return report.ScaleRecord{
			K:           s.K,
			DatasetPath: s.DatasetPath,
			Status:      report.StatusMissingDataset,
		}
	}

	rec := report.ScaleRecord{
		K:            s.K,
		DatasetPath:  s.DatasetPath,
		NFile:        s.NFile,
		NFormula:     s.NFormula,
		NbitsMax:     orDefault(s.NbitsMax, p.NbitsMax),
		BlockBits:    orDefault(s.BlockBits, p.BlockBits),
		BlockID:      s.BlockID,
		LocalTargets: s.LocalTargets,
		RepTarget:    s.RepTarget,
		M:            s.M,
		GroverIters:  r.cfg.GroverIters,
		Shots:        orDefault(s.Shots, p.Shots),
	}

	if s.BlockID == nil || len(s.LocalTargets) == 0 {
		rec.Status = report.StatusSkippedNoTarget
		rec.ErrorMessage = "no record matches the query value (M=0), equality oracle undefined"
		return rec
	}

	circ, err := circuit.Grover(rec.BlockBits, rec.NbitsMax, s.LocalTargets, r.cfg.GroverIters)
	if err != nil {
		rec.Status = report.StatusFailed
		rec.ErrorMessage = err.Error()
		rec.Stage = string(qcloud.StageConfigure)
		return rec
	}

	start := time.Now()
	outcome := r.client.Run(ctx, circ, rec.Shots, opts)
	finish := time.Now()

	rec.Timing = &report.Timing{
		WallTimeSec: finish.Sub(start).Seconds(),
		SubmitTS:    unixSeconds(start),
		FinishTS:    unixSeconds(finish),
	}

	if !outcome.OK() {
		rec.Status = report.StatusFailed
		rec.ErrorMessage = outcome.Err.Message
		rec.Stage = string(outcome.Err.Stage)
		return rec
	}

	hit := decode.AnalyzeHits(outcome.Probs, bitOrder, *s.BlockID, rec.BlockBits, s.TargetRIDs)
	rec.Result = &report.Result{
		Hit:       hit,
		ProbsTopK: decode.TopK(outcome.Probs, r.cfg.ProbsTopK),
	}
	rec.Status = report.StatusOK
	return rec
}

func orDefault(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
