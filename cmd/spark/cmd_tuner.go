package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/logging"
	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/tuner"
)

var tunerForce bool

var tunerCmd = &cobra.Command{
	Use:   "tuner",
	Short: "Auto-tuner: retune per-source boosts from effectiveness",
}

var tunerRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one tuning cycle",
	Run: func(cmd *cobra.Command, args []string) {
		p := newPipeline()
		t := tuner.New(p.Boosts(), cfg.Tuner, cfg.Paths().TunerRuns,
			logs.Get(logging.CategoryTuner), nil)
		report := t.Run(tunerForce)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	},
}

func init() {
	tunerRunCmd.Flags().BoolVar(&tunerForce, "force", false, "run even inside the tuning interval")
	tunerCmd.AddCommand(tunerRunCmd)
}
