package cmd

import (
	"github.com/spf13/cobra"

	"github.com/papapumpkin/stratum/internal/stability"
	"github.com/papapumpkin/stratum/internal/ui"
)

var tiersCmd = &cobra.Command{
	Use:   "tiers",
	Short: "Show tracked items grouped by tier",
	Args:  cobra.NoArgs,
	RunE:  runTiers,
}

func init() {
	rootCmd.AddCommand(tiersCmd)
}

func runTiers(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := mustConfig()
	if err != nil {
		return err
	}
	tracker := stability.NewStore(cfg.StatePath(), logger).Load(stability.Config{
		CacheTargetTokens: cfg.CacheTargetTokens,
		Logger:            logger,
	})
	ui.NewWriter(cmd.OutOrStdout()).TierTable(tracker.Items(), tracker.CacheTargetTokens())
	return nil
}
