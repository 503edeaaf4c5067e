package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/pipeline"
	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/prefetch"
)

// fullStatus composes the pipeline snapshot with worker state for
// dashboards. Read-only: producing it mutates nothing.
type fullStatus struct {
	Pipeline pipeline.StatusReport `json:"pipeline"`
	Worker   prefetch.State        `json:"worker"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show advisory loop status as JSON",
	Run: func(cmd *cobra.Command, args []string) {
		st := fullStatus{
			Pipeline: newPipeline().Status(),
			Worker:   newWorker().StateSnapshot(),
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(st); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	},
}
