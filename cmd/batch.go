package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/sitecheck/internal/claim"
	"github.com/sells-group/sitecheck/internal/ingest"
	"github.com/sells-group/sitecheck/internal/model"
	"github.com/sells-group/sitecheck/internal/pipeline"
	"github.com/sells-group/sitecheck/internal/store"
)

var (
	batchStates      []string
	batchLimit       int
	batchInline      bool
	batchFile        string
	batchConcurrency int64
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Validate or enqueue claims in bulk",
	Long: "Without --file, lists claims in the given states and enqueues each one " +
		"(to the Temporal queue by default, in-process with --inline). With --file, " +
		"validates every row of a lead feed directly through the pipeline without " +
		"touching claim state, capped at --concurrency in-flight renders.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if batchFile != "" {
			return runBatchFile(cmd)
		}

		var (
			env   *appEnv
			queue *inlineQueue
		)
		if batchInline {
			queue = &inlineQueue{}
			e, err := initEnv(ctx, queue)
			if err != nil {
				return err
			}
			env = e
		} else {
			e, tc, err := initRemoteEnv(ctx)
			if err != nil {
				return err
			}
			defer tc.Close()
			env = e
		}
		defer env.Close()

		outcomes := make(map[claim.Outcome]int)
		enqueued := 0
		for _, state := range batchStates {
			claims, err := env.Store.ListClaims(ctx, store.ClaimFilter{
				State: model.ClaimState(state),
				Limit: batchLimit,
			})
			if err != nil {
				return err
			}

			for _, cl := range claims {
				outcome, err := env.Controller.Enqueue(ctx, cl.BusinessID)
				if err != nil {
					zap.L().Error("batch enqueue failed",
						zap.String("business_id", cl.BusinessID),
						zap.Error(err),
					)
					continue
				}
				outcomes[outcome]++
				if outcome != claim.OutcomeSkipped {
					enqueued++
				}
			}
		}

		if batchInline && queue != nil {
			if _, err := queue.Drain(ctx, env.Controller); err != nil {
				return err
			}
		}

		fmt.Printf("Enqueued %d claims\n", enqueued)
		for outcome, n := range outcomes {
			fmt.Printf("  %-24s %d\n", outcome, n)
		}
		return nil
	},
}

// runBatchFile validates a lead feed straight through the pipeline:
// a dry run over claimed URLs that never writes claim state.
func runBatchFile(cmd *cobra.Command) error {
	ctx := cmd.Context()

	env, err := initEnv(ctx, &inlineQueue{})
	if err != nil {
		return err
	}
	defer env.Close()

	records, err := ingest.ReadFile(batchFile)
	if err != nil {
		return err
	}

	var items []pipeline.BatchItem
	skipped := 0
	for _, rec := range records {
		if rec.WebsiteURL == "" {
			skipped++
			continue
		}
		items = append(items, pipeline.BatchItem{Business: rec.Business, URL: rec.WebsiteURL})
	}

	limit := batchConcurrency
	if limit <= 0 {
		limit = int64(cfg.Render.MaxConcurrent)
	}
	results := env.Pipeline.ValidateBatch(ctx, items, limit)

	verdicts := make(map[model.Verdict]int)
	for _, r := range results {
		if r.Err != nil {
			fmt.Printf("%-36s %-40s error: %v\n", r.Item.Business.ID, r.Item.URL, r.Err)
			continue
		}
		verdicts[r.Result.Verdict]++
		line := fmt.Sprintf("%-36s %-40s %s", r.Item.Business.ID, r.Item.URL, r.Result.Verdict)
		if r.Result.InvalidReason != "" {
			line += " (" + string(r.Result.InvalidReason) + ")"
		}
		fmt.Println(line)
	}

	fmt.Printf("\nValidated %d URLs (%d rows without a URL skipped)\n", len(items), skipped)
	for verdict, n := range verdicts {
		fmt.Printf("  %-10s %d\n", verdict, n)
	}
	return nil
}

func init() {
	batchCmd.Flags().StringSliceVar(&batchStates, "states", []string{"pending", "needs_discovery"}, "claim states to enqueue")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 100, "max claims per state")
	batchCmd.Flags().BoolVar(&batchInline, "inline", false, "run tasks in-process instead of enqueueing to Temporal")
	batchCmd.Flags().StringVar(&batchFile, "file", "", "validate a CSV/XLSX lead feed directly, without claim state")
	batchCmd.Flags().Int64Var(&batchConcurrency, "concurrency", 0, "max concurrent renders in --file mode (default from config)")
	rootCmd.AddCommand(batchCmd)
}
