package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue <business-id>",
	Short: "Enqueue one claim onto the task queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, tc, err := initRemoteEnv(ctx)
		if err != nil {
			return err
		}
		defer tc.Close()
		defer env.Close()

		outcome, err := env.Controller.Enqueue(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Outcome: %s\n", outcome)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(enqueueCmd)
}
