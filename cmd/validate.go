package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/sitecheck/internal/claim"
)

var validateURL string

var validateCmd = &cobra.Command{
	Use:   "validate <business-id>",
	Short: "Validate a business's website claim inline",
	Long:  "Runs the full validation pipeline for one business in-process, following any chained rediscovery, and prints the resulting claim state.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		businessID := args[0]

		queue := &inlineQueue{}
		env, err := initEnv(ctx, queue)
		if err != nil {
			return err
		}
		defer env.Close()

		business, err := env.Store.GetBusiness(ctx, businessID)
		if err != nil {
			return err
		}
		if business == nil {
			return eris.Errorf("business %s not found (run import first)", businessID)
		}

		if _, err := env.Controller.EnsureClaim(ctx, *business, validateURL); err != nil {
			return err
		}

		outcome, err := env.Controller.Enqueue(ctx, businessID)
		if err != nil {
			return err
		}
		if outcome != claim.OutcomeSkipped {
			outcome, err = queue.Drain(ctx, env.Controller)
			if err != nil {
				return err
			}
		}

		cl, err := env.Store.GetClaim(ctx, businessID)
		if err != nil {
			return err
		}

		fmt.Printf("Business:  %s (%s)\n", business.Name, business.ID)
		fmt.Printf("Outcome:   %s\n", outcome)
		fmt.Printf("State:     %s\n", cl.State)
		if cl.WebsiteURL != "" {
			fmt.Printf("URL:       %s (%s)\n", cl.WebsiteURL, cl.URLSource)
		}
		if last := cl.Metadata.LastValidation(); last != nil {
			fmt.Printf("Verdict:   %s (confidence %.2f)\n", last.Verdict, last.Confidence)
			if last.InvalidReason != "" {
				fmt.Printf("Reason:    %s\n", last.InvalidReason)
			}
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateURL, "url", "", "seed website URL when the claim does not exist yet")
	rootCmd.AddCommand(validateCmd)
}
