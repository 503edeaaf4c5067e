// Command spark is the advisory loop CLI: the hook entry point called
// around agent tool use, the prefetch worker, the auto-tuner, and
// read-only status for dashboards.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/config"
	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/logging"
	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/pipeline"
)

var (
	homeFlag string

	cfg  config.Config
	logs *logging.Registry
)

var rootCmd = &cobra.Command{
	Use:   "spark",
	Short: "Advisory decision and feedback loop for coding agents",
	Long: `spark emits short advisories before agent tool calls, learned from
observed outcomes. State lives under ~/.spark (override with --home or
SPARK_HOME).`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load(homeFlag)
		logs = logging.New(logging.Options{
			Dir:   cfg.Paths().LogsDir,
			Debug: cfg.Debug,
			Level: cfg.LogLevel,
		})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logs.Close()
	},
}

// newPipeline builds the standard pipeline for CLI commands.
func newPipeline(opts ...pipeline.Option) *pipeline.Pipeline {
	return pipeline.New(pipeline.NewContext(cfg, logs, nil), opts...)
}

func main() {
	rootCmd.PersistentFlags().StringVar(&homeFlag, "home", "", "state directory (default ~/.spark)")
	rootCmd.AddCommand(hookCmd, workerCmd, tunerCmd, statusCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
