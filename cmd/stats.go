package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/stratum/internal/ledger"
	"github.com/papapumpkin/stratum/internal/ui"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarise the turn ledger",
	Long: `Prints turn, promotion and demotion counts from the ledger. With --recent,
also lists the newest turns and their tier changes. With --prune, deletes all
but the newest KEEP turns first.`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().Int("recent", 0, "list the N newest turns")
	statsCmd.Flags().Int("prune", -1, "keep only the newest N turns")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	recent, _ := cmd.Flags().GetInt("recent")
	keep, _ := cmd.Flags().GetInt("prune")

	cfg, _, err := mustConfig()
	if err != nil {
		return err
	}
	ctx, cancel := setupSignalContext(cmd.Context())
	defer cancel()

	lg, err := ledger.Open(ctx, cfg.Ledger.Driver, cfg.LedgerDSN())
	if err != nil {
		return err
	}
	defer lg.Close()

	printer := ui.NewWriter(cmd.OutOrStdout())
	if cmd.Flags().Changed("prune") {
		n, err := lg.Prune(ctx, keep)
		if err != nil {
			return err
		}
		printer.Info(fmt.Sprintf("pruned %d turn(s)", n))
	}

	s, err := lg.Stats(ctx)
	if err != nil {
		return err
	}
	printer.Stats(s)

	if recent > 0 {
		turns, err := lg.RecentTurns(ctx, recent)
		if err != nil {
			return err
		}
		printer.RecentTurns(turns)
	}
	return nil
}
