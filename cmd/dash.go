package cmd

import (
	"github.com/spf13/cobra"

	"github.com/papapumpkin/stratum/internal/tui"
)

var dashCmd = &cobra.Command{
	Use:   "dash",
	Short: "Live dashboard of tiers and transitions",
	Long: `Opens a terminal dashboard that redraws whenever the tracker state file is
saved and shows tier transitions as they are written to the telemetry stream.`,
	Args: cobra.NoArgs,
	RunE: runDash,
}

func init() {
	rootCmd.AddCommand(dashCmd)
}

func runDash(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return tui.Run(tui.Options{
		StatePath:         cfg.StatePath(),
		TelemetryPath:     cfg.TelemetryFile(),
		CacheTargetTokens: cfg.CacheTargetTokens,
	})
}
