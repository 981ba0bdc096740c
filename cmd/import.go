package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/sitecheck/internal/ingest"
	"github.com/sells-group/sitecheck/internal/model"
	"github.com/sells-group/sitecheck/internal/store"
)

var importFilePath string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import businesses from a feed file",
	Long:  "Parses a CSV or XLSX business feed, upserts the businesses, and creates a website claim for each record that does not have one yet.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		records, err := ingest.ReadFile(importFilePath)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return err
		}

		if ps, ok := st.(*store.PostgresStore); ok {
			businesses := make([]model.Business, len(records))
			for i, rec := range records {
				businesses[i] = rec.Business
			}
			if _, err := ps.BulkUpsertBusinesses(ctx, businesses); err != nil {
				return err
			}
		} else {
			for _, rec := range records {
				if err := st.UpsertBusiness(ctx, rec.Business); err != nil {
					return err
				}
			}
		}

		// Claims are created only when absent; re-importing a feed never
		// resets validation state.
		created := 0
		for _, rec := range records {
			existing, err := st.GetClaim(ctx, rec.Business.ID)
			if err != nil {
				return err
			}
			if existing != nil {
				continue
			}

			claim := &model.WebsiteClaim{
				BusinessID: rec.Business.ID,
				WebsiteURL: rec.WebsiteURL,
				State:      model.StatePending,
				URLSource:  model.SourceFeed,
				Country:    rec.Business.Country,
			}
			if rec.WebsiteURL == "" {
				claim.State = model.StateNeedsDiscovery
				claim.URLSource = ""
			}
			if err := st.CreateClaim(ctx, claim); err != nil {
				return err
			}
			created++
		}

		zap.L().Info("import complete",
			zap.String("file", importFilePath),
			zap.Int("businesses", len(records)),
			zap.Int("claims_created", created),
		)
		fmt.Printf("Imported %d businesses, created %d claims\n", len(records), created)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFilePath, "file", "", "path to CSV or XLSX feed (required)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
