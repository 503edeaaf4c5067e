package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/logging"
	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/prefetch"
)

var (
	workerMaxJobs  int
	workerMaxTools int
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Prefetch worker: populate the packet cache from the job queue",
}

// newWorker builds the worker over the shared packet cache.
func newWorker() *prefetch.Worker {
	p := newPipeline()
	table := prefetch.LoadPriors(cfg.Paths().PriorsFile)
	return prefetch.NewWorker(p.Cache(), table, cfg.Prefetch, cfg.Paths(),
		logs.Get(logging.CategoryPrefetch), nil)
}

var workerRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Process the queue once and exit",
	Run: func(cmd *cobra.Command, args []string) {
		res := newWorker().ProcessQueue(workerMaxJobs, workerMaxTools)
		fmt.Printf("jobs_processed=%d packets_created=%d\n", res.JobsProcessed, res.PacketsCreated)
	},
}

var workerWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Process the queue continuously until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return newWorker().Watch(ctx)
	},
}

var workerPauseCmd = &cobra.Command{
	Use:   "pause [reason]",
	Short: "Pause queue processing",
	Run: func(cmd *cobra.Command, args []string) {
		reason := "paused by operator"
		if len(args) > 0 {
			reason = strings.Join(args, " ")
		}
		newWorker().Pause(reason)
		fmt.Println("worker paused:", reason)
	},
}

var workerResumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume queue processing",
	Run: func(cmd *cobra.Command, args []string) {
		newWorker().Resume()
		fmt.Println("worker resumed")
	},
}

func init() {
	workerRunCmd.Flags().IntVar(&workerMaxJobs, "max-jobs", 0, "max jobs per pass (0 = config default)")
	workerRunCmd.Flags().IntVar(&workerMaxTools, "max-tools", 0, "max tools per job (0 = config default)")
	workerCmd.AddCommand(workerRunCmd, workerWatchCmd, workerPauseCmd, workerResumeCmd)
}
