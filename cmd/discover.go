package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/sitecheck/internal/model"
)

var discoverForce bool

var discoverCmd = &cobra.Command{
	Use:   "discover <business-id>",
	Short: "Search for a business's website inline",
	Long:  "Runs external search discovery for a business without a website URL, then validates any candidate found, all in-process.",
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

		cl, err := env.Controller.EnsureClaim(ctx, *business, "")
		if err != nil {
			return err
		}
		if cl.State != model.StateNeedsDiscovery && !discoverForce {
			return eris.Errorf("claim is %s, not needs_discovery (use --force to reset first)", cl.State)
		}
		if discoverForce && cl.State != model.StateNeedsDiscovery {
			if _, err := env.Controller.Reset(ctx, businessID, true); err != nil {
				return err
			}
			// A reset claim with a URL goes back to pending, not discovery.
			cl, err = env.Store.GetClaim(ctx, businessID)
			if err != nil {
				return err
			}
			if cl.State != model.StateNeedsDiscovery {
				return eris.Errorf("claim still has URL %s, use validate instead", cl.WebsiteURL)
			}
		}

		if _, err := env.Controller.Enqueue(ctx, businessID); err != nil {
			return err
		}
		outcome, err := queue.Drain(ctx, env.Controller)
		if err != nil {
			return err
		}

		cl, err = env.Store.GetClaim(ctx, businessID)
		if err != nil {
			return err
		}

		fmt.Printf("Business:  %s (%s)\n", business.Name, business.ID)
		fmt.Printf("Outcome:   %s\n", outcome)
		fmt.Printf("State:     %s\n", cl.State)
		if cl.WebsiteURL != "" {
			fmt.Printf("URL:       %s (%s)\n", cl.WebsiteURL, cl.URLSource)
		}
		return nil
	},
}

func init() {
	discoverCmd.Flags().BoolVar(&discoverForce, "force", false, "reset the claim before discovering")
	rootCmd.AddCommand(discoverCmd)
}
