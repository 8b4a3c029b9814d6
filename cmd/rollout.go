package cmd

import (
	"context"
	"encoding/json"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/curbsim/curbsim/sim"
	"github.com/curbsim/curbsim/sim/rollout"
)

// rolloutCmd evaluates a baseline policy over parallel workers and prints
// the EvalReport as JSON
var rolloutCmd = &cobra.Command{
	Use:   "rollout",
	Short: "Evaluate a pricing policy over many episodes in parallel",
	Run: func(cmd *cobra.Command, args []string) {
		sc := mustScenario(cmd)
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		logrus.Infof("Starting rollout: %d workers x %d episodes, policy=%s", sc.Rollout.Workers, sc.Rollout.Episodes, sc.Rollout.Policy.Name)
		report, err := evaluate(ctx, sc)
		if err != nil {
			logrus.Fatalf("Rollout failed: %v", err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			logrus.Fatalf("Encoding report: %v", err)
		}
	},
}

// evaluate runs the rollout described by sc.
func evaluate(ctx context.Context, sc Scenario) (*rollout.EvalReport, error) {
	reg, table, err := loadInputs(sc)
	if err != nil {
		return nil, err
	}
	runner, err := rollout.NewRunner(reg, table, sc.Engine, sc.Rollout)
	if err != nil {
		return nil, err
	}
	if sc.MetricsAddr != "" {
		collector, err := startTelemetry(ctx, sc.MetricsAddr, reg.TotalCapacity())
		if err != nil {
			return nil, err
		}
		runner.WithObservers(func(worker int) []sim.StepObserver {
			return []sim.StepObserver{collector.Observer(worker)}
		})
	}
	return runner.Run(ctx)
}
