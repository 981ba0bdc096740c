package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/sitecheck/internal/claim"
)

var resetClearAttempts bool

var resetCmd = &cobra.Command{
	Use:   "reset <business-id>",
	Short: "Reset a claim back to a queueable state",
	Long:  "Moves a terminal or errored claim back to pending (when it has a URL) or needs_discovery. --clear-attempts also forgets discovery attempts, permitting another search.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return err
		}

		ctrl := claim.New(st, nil, nil, nil, nil, claim.Config{
			ReviewQualityThreshold: cfg.Pipeline.ReviewQualityThreshold,
			CountryConfidenceMin:   cfg.Discovery.CountryConfidenceMin,
			SupportedCountries:     cfg.Discovery.SupportedCountries,
		})

		cl, err := ctrl.Reset(ctx, args[0], resetClearAttempts)
		if err != nil {
			return err
		}

		fmt.Printf("State: %s\n", cl.State)
		if cl.WebsiteURL != "" {
			fmt.Printf("URL:   %s (%s)\n", cl.WebsiteURL, cl.URLSource)
		}
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetClearAttempts, "clear-attempts", false, "also clear discovery attempt history")
	rootCmd.AddCommand(resetCmd)
}
