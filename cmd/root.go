package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/sitecheck/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "sitecheck",
	Short: "Website existence validation and discovery pipeline",
	Long:  "Validates that business records point at real, owned websites: prescreens URLs, renders pages, judges ownership with an LLM, and searches for replacements when a URL is wrong.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
