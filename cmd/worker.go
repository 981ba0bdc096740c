package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/sitecheck/internal/taskqueue"
)

var workerConcurrency int

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run a task queue worker",
	Long:  "Connects to Temporal and processes discovery and validation tasks until interrupted.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		tc, err := taskqueue.Dial(cfg.Queue)
		if err != nil {
			return err
		}
		defer tc.Close()

		queue := taskqueue.NewQueue(tc, cfg.Queue)
		env, err := initEnv(ctx, queue)
		if err != nil {
			return err
		}
		defer env.Close()

		runner, err := taskqueue.NewRunner(tc, cfg.Queue, &taskqueue.Activities{
			Controller: env.Controller,
			Store:      env.Store,
		}, workerConcurrency)
		if err != nil {
			return err
		}

		return runner.Start(ctx)
	},
}

func init() {
	workerCmd.Flags().IntVar(&workerConcurrency, "concurrency", 0, "max concurrent activities (default 4)")
	rootCmd.AddCommand(workerCmd)
}
