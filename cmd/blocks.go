package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/curbsim/curbsim/sim"
	"github.com/curbsim/curbsim/sim/input"
)

var nearest int // alternatives listed per block

// blocksCmd prints the block registry and each block's nearest alternatives
var blocksCmd = &cobra.Command{
	Use:   "blocks",
	Short: "Inspect a block table and its distance rankings",
	Run: func(cmd *cobra.Command, args []string) {
		sc := mustScenario(cmd)
		if sc.Blocks == "" {
			logrus.Fatalf("No block table given (--blocks)")
		}
		records, err := input.LoadBlocks(sc.Blocks)
		if err != nil {
			logrus.Fatalf("Loading blocks: %v", err)
		}
		reg, err := sim.NewBlockRegistry(records)
		if err != nil {
			logrus.Fatalf("Building registry: %v", err)
		}
		describeBlocks(os.Stdout, reg, nearest)
	},
}

// describeBlocks writes one line per block followed by its k nearest
// alternatives in search order.
func describeBlocks(w io.Writer, reg *sim.BlockRegistry, k int) {
	fmt.Fprintf(w, "=== Blocks: %d, spaces: %d ===\n", reg.Len(), reg.TotalCapacity())
	for i := 0; i < reg.Len(); i++ {
		b := reg.Block(i)
		fmt.Fprintf(w, "%s\n", b)
		var alts []string
		for rank := 1; rank <= k; rank++ {
			j, ok := reg.CandidateAt(i, rank)
			if !ok {
				break
			}
			alts = append(alts, fmt.Sprintf("%s (%.3f km)", reg.Block(j).ID, reg.Distance(i, j)))
		}
		if len(alts) > 0 {
			fmt.Fprintf(w, "  nearest: %s\n", strings.Join(alts, ", "))
		}
	}
}
