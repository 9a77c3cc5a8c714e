package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/stratum/internal/ui"
)

var purgeCmd = &cobra.Command{
	Use:   "purge-history",
	Short: "Drop every tracked history item",
	Long: `Removes all history items from the tracker, for when the conversation is
cleared or compacted. Files and symbols keep their tiers.`,
	Args: cobra.NoArgs,
	RunE: runPurge,
}

func init() {
	rootCmd.AddCommand(purgeCmd)
}

func runPurge(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := mustConfig()
	if err != nil {
		return err
	}
	ctx, cancel := setupSignalContext(cmd.Context())
	defer cancel()

	sess, deps, err := openSession(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer deps.Close()

	n, err := sess.PurgeHistory(ctx)
	if err != nil {
		return err
	}
	ui.NewWriter(cmd.ErrOrStderr()).Success(fmt.Sprintf("purged %d history item(s)", n))
	return nil
}
