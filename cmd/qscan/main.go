// qscan drives equality-search experiments on a remote quantum backend:
// build a scale-indexed plan from CSV datasets, calibrate the device's
// readout bit order, run one Grover circuit per scale, and merge the decoded
// hit statistics into a single report artifact.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"qscan/internal/config"
	"qscan/internal/plan"
	"qscan/internal/probe"
	"qscan/internal/qcloud"
	"qscan/internal/runner"
)

var (
	// Global flags
	verbose    bool
	apiKey     string
	configPath string

	// Logger
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "qscan",
	Short: "Grover equality-search experiments on quantum cloud hardware",
	Long: `qscan orchestrates block-based Grover equality searches on a remote
quantum processor.

A run calibrates the backend's readout bit order, submits one depth-bounded
search circuit per dataset scale, and reconciles the returned probability
distributions into record-level hit statistics. Scale failures are recorded,
never fatal: the merged report always carries one entry per planned scale.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Build the experiment plan from the per-scale CSV datasets",
	RunE: func(cmd *cobra.Command, args []string) error {
		datasetDir, _ := cmd.Flags().GetString("dataset-dir")
		out, _ := cmd.Flags().GetString("out")

		opts := plan.DefaultBuildOptions(datasetDir)
		opts.KMin, _ = cmd.Flags().GetInt("k-min")
		opts.KMax, _ = cmd.Flags().GetInt("k-max")
		opts.TargetValue, _ = cmd.Flags().GetInt("target-value")
		opts.NbitsMax, _ = cmd.Flags().GetInt("nbits-max")
		opts.Shots, _ = cmd.Flags().GetInt("shots")
		opts.BlockBits, _ = cmd.Flags().GetInt("block-bits")

		p, err := plan.Build(opts, logger)
		if err != nil {
			return err
		}
		if err := p.Write(out); err != nil {
			return err
		}
		fmt.Printf("wrote plan: %s (block_bits=%d, nbits_max=%d)\n", out, opts.BlockBits, opts.NbitsMax)
		return nil
	},
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Infer the backend's measurement bit order",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if v, _ := cmd.Flags().GetString("backend"); v != "" {
			cfg.Backend = v
		}

		client, err := newClient(cfg)
		if err != nil {
			return err
		}

		probeCfg := probe.DefaultConfig()
		probeCfg.NbitsMax, _ = cmd.Flags().GetInt("nbits-max")
		probeCfg.Shots, _ = cmd.Flags().GetInt("shots")

		res, err := probe.NewProber(client, probeCfg, logger).Run(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Println("qubit -> channel (channel 0 = rightmost bit)")
		for q := 0; q < probeCfg.NbitsMax; q++ {
			if ch, ok := res.Map.Channel(q); ok {
				fmt.Printf("  qubit %d -> channel %d\n", q, ch)
			} else {
				fmt.Printf("  qubit %d -> unresolved\n", q)
			}
		}

		if out, _ := cmd.Flags().GetString("out"); out != "" {
			dump := map[string]interface{}{
				"nbits_max":        res.NbitsMax,
				"shots":            res.Shots,
				"qubit_to_channel": res.Map.ToMap(),
				"unresolved":       res.Map.Unresolved(),
				"top_bitstring":    res.TopBitstring,
				"marginals":        res.Marginals,
			}
			data, err := json.MarshalIndent(dump, "", "  ")
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0644); err != nil {
				return err
			}
			fmt.Printf("wrote probe result: %s\n", out)
		}
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the planned experiments and write the merged report",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if v, _ := cmd.Flags().GetString("backend"); v != "" {
			cfg.Backend = v
		}

		planPath, _ := cmd.Flags().GetString("plan")
		out, _ := cmd.Flags().GetString("out")

		p, err := plan.Load(planPath)
		if err != nil {
			return err
		}

		client, err := newClient(cfg)
		if err != nil {
			return err
		}

		runCfg := runner.Config{
			GroverIters: cfg.GroverIters,
			ProbeShots:  cfg.ProbeShots,
			ProbsTopK:   cfg.ProbsTopK,
		}
		rep, err := runner.New(client, runCfg, logger).Run(cmd.Context(), p, planPath)
		if err != nil {
			return err
		}
		if err := rep.Write(out); err != nil {
			return err
		}

		fmt.Printf("wrote merged report: %s\n", out)
		if rep.Meta.Probe.FallbackUsed {
			fmt.Printf("bit-order fallback applied at positions %v\n", rep.Meta.Probe.FallbackPositions)
		}
		return nil
	},
}

// newClient resolves credentials and opens the backend session. A missing
// API key is a pipeline-start failure, not a recordable scale failure.
func newClient(cfg *config.Config) (*qcloud.Client, error) {
	key := apiKey
	if key == "" {
		key = os.Getenv("QSCAN_API_KEY")
	}
	if key == "" {
		return nil, fmt.Errorf("no API key: pass --api-key or set QSCAN_API_KEY")
	}
	backend := qcloud.NewHTTPBackend(cfg.Endpoint, cfg.Backend, key)
	return qcloud.NewClient(backend, cfg.ClientConfig(), logger), nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "quantum cloud API key (or QSCAN_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "qscan.yaml", "path to run configuration")

	planCmd.Flags().String("dataset-dir", "dataset", "directory with low_selectivity_data_<k>.csv files")
	planCmd.Flags().String("out", "results/low_selectivity_plan.json", "plan output path")
	planCmd.Flags().Int("k-min", 0, "smallest scale")
	planCmd.Flags().Int("k-max", 10, "largest scale")
	planCmd.Flags().Int("target-value", 100, "query value to search for")
	planCmd.Flags().Int("nbits-max", 10, "measured register width")
	planCmd.Flags().Int("shots", 2000, "shots per search circuit")
	planCmd.Flags().Int("block-bits", 4, "active search bits per block")

	probeCmd.Flags().String("backend", "", "backend name override")
	probeCmd.Flags().Int("nbits-max", 10, "measured register width")
	probeCmd.Flags().Int("shots", 2000, "shots per calibration circuit")
	probeCmd.Flags().String("out", "", "optional probe result JSON path")

	runCmd.Flags().String("plan", "results/low_selectivity_plan.json", "plan artifact path")
	runCmd.Flags().String("out", "results/low_selectivity_experiment_merged.json", "report output path")
	runCmd.Flags().String("backend", "", "backend name override")

	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(runCmd)
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
