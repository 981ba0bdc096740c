package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/sitecheck/internal/model"
	"github.com/sells-group/sitecheck/internal/store"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status [business-id]",
	Short: "Show claim counts by state, or one claim's state and history",
	Args:  cobra.MaximumNArgs(1),
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

		if len(args) == 1 {
			return claimStatus(cmd, st, args[0])
		}

		counts, err := st.CountByState(ctx)
		if err != nil {
			return err
		}
		dlqDepth, err := st.CountDLQ(ctx)
		if err != nil {
			return err
		}

		if statusJSON {
			out := struct {
				States   map[model.ClaimState]int `json:"states"`
				DLQDepth int                      `json:"dlq_depth"`
			}{counts, dlqDepth}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}

		states := make([]string, 0, len(counts))
		total := 0
		for state, n := range counts {
			states = append(states, string(state))
			total += n
		}
		sort.Strings(states)

		fmt.Println("Claims by state:")
		for _, state := range states {
			fmt.Printf("  %-24s %d\n", state, counts[model.ClaimState(state)])
		}
		fmt.Printf("  %-24s %d\n", "total", total)
		fmt.Printf("\nDead letter queue: %d\n", dlqDepth)
		return nil
	},
}

// claimStatus prints one claim's current state plus its full audit trail.
func claimStatus(cmd *cobra.Command, st store.Store, businessID string) error {
	cl, err := st.GetClaim(cmd.Context(), businessID)
	if err != nil {
		return err
	}
	if cl == nil {
		return eris.Errorf("no claim for business %s", businessID)
	}

	if statusJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cl)
	}

	fmt.Printf("Business: %s\n", cl.BusinessID)
	fmt.Printf("State:    %s\n", cl.State)
	if cl.WebsiteURL != "" {
		fmt.Printf("URL:      %s (%s)\n", cl.WebsiteURL, cl.URLSource)
	}
	if cl.Country != "" {
		fmt.Printf("Country:  %s\n", cl.Country)
	}
	fmt.Printf("Updated:  %s\n", cl.UpdatedAt.Format("2006-01-02 15:04:05"))

	if len(cl.Metadata.DiscoveryAttempts) > 0 {
		fmt.Println("\nDiscovery attempts:")
		methods := make([]string, 0, len(cl.Metadata.DiscoveryAttempts))
		for m := range cl.Metadata.DiscoveryAttempts {
			methods = append(methods, m)
		}
		sort.Strings(methods)
		for _, m := range methods {
			a := cl.Metadata.DiscoveryAttempts[m]
			found := "no result"
			if a.Found {
				found = a.URL
			}
			fmt.Printf("  %s  %-16s %s\n", a.AttemptedAt.Format("2006-01-02 15:04"), m, found)
		}
	}

	if len(cl.Metadata.ValidationHistory) > 0 {
		fmt.Println("\nValidation history:")
		for _, rec := range cl.Metadata.ValidationHistory {
			line := fmt.Sprintf("  %s  %-8s %.2f  %s",
				rec.Timestamp.Format("2006-01-02 15:04"), rec.Verdict, rec.Confidence, rec.URL)
			if rec.InvalidReason != "" {
				line += " (" + string(rec.InvalidReason) + ")"
			}
			if rec.Rescued {
				line += " [rescued]"
			}
			fmt.Println(line)
		}
	}
	return nil
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(statusCmd)
}
