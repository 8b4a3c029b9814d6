package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/curbsim/curbsim/sim"
	"github.com/curbsim/curbsim/sim/input"
	"github.com/curbsim/curbsim/sim/policy"
	"github.com/curbsim/curbsim/sim/telemetry"
	"github.com/curbsim/curbsim/sim/trace"
)

var (
	// Inputs
	scenarioPath string // YAML scenario; flags below override it
	blocksPath   string // block table (.csv, .yaml)
	demandPath   string // historical demand table (.csv, .yaml)
	seed         int64  // engine seed
	logLevel     string // log verbosity level

	// Pricing policy
	policyName      string  // baseline policy name
	price           float64 // constant / base / lower price
	maxPrice        float64 // upper price bound
	targetOccupancy float64 // occupancy-responsive threshold

	// Episodes
	episodeLength int // max steps per episode; 0 runs to the terminal date
	episodes      int // episodes per rollout worker
	workers       int // parallel rollout workers

	// Outputs
	traceLevel  string // none, steps, decisions
	traceOut    string // JSONL trace file
	metricsAddr string // Prometheus listen address
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "curbsim",
	Short: "Curbside parking search simulator for pricing policies",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
		return nil
	},
}

// runCmd simulates one episode under a baseline policy and prints its metrics
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one episode and print parking metrics",
	Run: func(cmd *cobra.Command, args []string) {
		sc := mustScenario(cmd)
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		logrus.Infof("Starting episode: seed=%d policy=%s ep-len=%d", sc.Engine.Seed, sc.Rollout.Policy.Name, sc.Rollout.EpisodeLength)
		res, err := simulate(ctx, sc)
		if err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}
		res.Metrics.Print()

		if res.Trace.Enabled() {
			printTraceSummary(trace.Summarize(res.Trace))
			if sc.Trace.Out != "" {
				if err := writeTrace(res.Trace, sc.Trace.Out); err != nil {
					logrus.Fatalf("Writing trace: %v", err)
				}
				logrus.Infof("Trace written to %s", sc.Trace.Out)
			}
		}
		logrus.Info("Simulation complete.")
	},
}

// runResult bundles the observers of a single episode.
type runResult struct {
	Metrics *sim.Metrics
	Trace   *trace.SimulationTrace
}

// simulate runs one episode of sc. A metrics server is started when
// sc.MetricsAddr is set and stopped when ctx is done.
func simulate(ctx context.Context, sc Scenario) (*runResult, error) {
	reg, table, err := loadInputs(sc)
	if err != nil {
		return nil, err
	}

	res := &runResult{
		Metrics: sim.NewMetrics(reg.TotalCapacity()),
		Trace:   trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevel(sc.Trace.Level)}),
	}
	opts := []sim.Option{sim.WithObserver(res.Metrics), sim.WithObserver(res.Trace)}
	if sc.MetricsAddr != "" {
		collector, err := startTelemetry(ctx, sc.MetricsAddr, reg.TotalCapacity())
		if err != nil {
			return nil, err
		}
		opts = append(opts, sim.WithObserver(collector.Observer(0)))
	}

	eng, err := sim.NewEngine(reg, table, sc.Engine, opts...)
	if err != nil {
		return nil, err
	}
	pol, err := policy.NewPricingPolicy(sc.Rollout.Policy, eng)
	if err != nil {
		return nil, err
	}

	obs := eng.Reset()
	for steps := 0; !eng.Done() && (sc.Rollout.EpisodeLength == 0 || steps < sc.Rollout.EpisodeLength); steps++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		step, err := eng.Step(pol.Price(obs))
		if err != nil {
			return nil, err
		}
		obs = step.Observation
	}
	logrus.Debug(eng.String())
	return res, nil
}

func loadInputs(sc Scenario) (*sim.BlockRegistry, *sim.DemandTable, error) {
	if sc.Blocks == "" {
		return nil, nil, fmt.Errorf("%w: no block table given (--blocks or scenario blocks:)", sim.ErrInvalidConfig)
	}
	records, err := input.LoadBlocks(sc.Blocks)
	if err != nil {
		return nil, nil, err
	}
	reg, err := sim.NewBlockRegistry(records)
	if err != nil {
		return nil, nil, err
	}
	table, err := input.LoadDemand(sc.Demand)
	if err != nil {
		return nil, nil, err
	}
	logrus.Infof("Loaded %d blocks (%d spaces) and %d demand rows", reg.Len(), reg.TotalCapacity(), table.Len())
	return reg, table, nil
}

func startTelemetry(ctx context.Context, addr string, capacity int) (*telemetry.Collector, error) {
	collector, err := telemetry.NewCollector(capacity)
	if err != nil {
		return nil, err
	}
	go func() {
		if err := collector.Serve(ctx, addr); err != nil {
			logrus.Errorf("metrics server: %v", err)
		}
	}()
	return collector, nil
}

func writeTrace(st *trace.SimulationTrace, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := st.WriteJSONL(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printTraceSummary(s *trace.TraceSummary) {
	fmt.Println("=== Trace Summary ===")
	fmt.Printf("Episodes             : %d\n", s.Episodes)
	fmt.Printf("Steps Recorded       : %d\n", s.TotalSteps)
	fmt.Printf("Mean Step Reward     : %.4f\n", s.MeanStepReward)
	if s.Arrivals > 0 {
		fmt.Printf("Decisions Recorded   : %d (parked %d, unparked %d)\n", s.Arrivals, s.ParkedCount, s.UnparkedCount)
		fmt.Printf("Mean Cruising Dist   : %.4f km (max %.4f)\n", s.MeanCruisingDist, s.MaxCruisingDist)
		fmt.Printf("Mean Search Rank     : %.2f\n", s.MeanRank)
		fmt.Printf("Blocks Used          : %d\n", len(s.BlockDistribution))
	}
}

// mustScenario loads --scenario and applies explicitly set flags on top.
func mustScenario(cmd *cobra.Command) Scenario {
	sc, err := LoadScenario(scenarioPath)
	if err != nil {
		logrus.Fatalf("Loading scenario: %v", err)
	}
	applyFlagOverrides(cmd, &sc)
	if err := sc.Validate(); err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}
	return sc
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addPolicyFlags(cmd *cobra.Command) {
	def := policy.DefaultConfig()
	cmd.Flags().StringVar(&policyName, "policy", def.Name, fmt.Sprintf("Pricing policy %v", policy.ValidNames()))
	cmd.Flags().Float64Var(&price, "price", def.Price, "Constant price, or lower/base price for the other policies")
	cmd.Flags().Float64Var(&maxPrice, "max-price", def.MaxPrice, "Upper price bound for uniform-random and occupancy-responsive")
	cmd.Flags().Float64Var(&targetOccupancy, "target-occupancy", def.TargetOccupancy, "Occupied fraction above which occupancy-responsive raises prices")
	cmd.Flags().IntVar(&episodeLength, "ep-len", sim.SlotsPerDay, "Max steps per episode (0 runs to the terminal date)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the run")
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&scenarioPath, "scenario", "", "YAML scenario file")
	rootCmd.PersistentFlags().StringVar(&blocksPath, "blocks", "", "Block table (.csv with BLOCKFACE_ID,LONGITUDE,LATITUDE,SPACE_NUM, or .yaml)")
	rootCmd.PersistentFlags().StringVar(&demandPath, "demand", "", "Historical demand table (.csv with BLOCKFACE_ID,SLOT,DEMAND, or .yaml)")
	rootCmd.PersistentFlags().Int64Var(&seed, "seed", 0, "Seed for the choice, demand and policy streams")

	addPolicyFlags(runCmd)
	runCmd.Flags().StringVar(&traceLevel, "trace-level", string(trace.TraceLevelNone), "Trace verbosity (none, steps, decisions)")
	runCmd.Flags().StringVar(&traceOut, "trace-out", "", "Write the trace as JSON lines to this file")

	addPolicyFlags(rolloutCmd)
	rolloutCmd.Flags().IntVar(&episodes, "episodes", 1, "Episodes per worker")
	rolloutCmd.Flags().IntVar(&workers, "workers", 1, "Parallel workers, each with its own engine")

	blocksCmd.Flags().IntVar(&nearest, "nearest", 3, "Alternatives to list per block")

	rootCmd.AddCommand(runCmd, rolloutCmd, blocksCmd)
}
