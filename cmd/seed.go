package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/stratum/internal/refgraph"
	"github.com/papapumpkin/stratum/internal/stability"
	"github.com/papapumpkin/stratum/internal/ui"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed cached tiers from a reference graph",
	Long: `Loads a file reference graph, clusters connected files, ranks the clusters
by PageRank and places them in L1, L2 and L3 before the first turn. Items
already tracked are left where they are.`,
	Args: cobra.NoArgs,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().String("graph", "", "reference graph file (TOML)")
	seedCmd.Flags().String("keys", "symbol", "item kind to seed: file or symbol")
	_ = seedCmd.MarkFlagRequired("graph")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, _ []string) error {
	graphPath, _ := cmd.Flags().GetString("graph")
	kind, _ := cmd.Flags().GetString("keys")

	key, err := seedKeyFunc(kind)
	if err != nil {
		return err
	}
	graph, err := refgraph.LoadFile(graphPath)
	if err != nil {
		return err
	}

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

	n, err := sess.Seed(ctx, refgraph.Assign(graph, refgraph.AssignOptions{Key: key}))
	if err != nil {
		return err
	}
	ui.NewWriter(cmd.ErrOrStderr()).Success(fmt.Sprintf("seeded %d item(s) from %d file(s)", n, graph.Len()))
	return nil
}

func seedKeyFunc(kind string) (func(string) string, error) {
	switch kind {
	case "file":
		return stability.FileKey, nil
	case "symbol", "":
		return stability.SymbolKey, nil
	}
	return nil, fmt.Errorf("unknown key kind %q (want file or symbol)", kind)
}
