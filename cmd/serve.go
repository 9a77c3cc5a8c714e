package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papapumpkin/stratum/internal/mcpserver"
	"github.com/papapumpkin/stratum/internal/session"
	"github.com/papapumpkin/stratum/internal/ui"
	"github.com/papapumpkin/stratum/internal/watch"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve tier state and turn assembly as MCP tools",
	Long: `Starts an MCP server over SSE/HTTP exposing tier_status, tier_changes,
run_turn and purge_history. File changes under the work directory are
collected between turns and demote the affected items.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("port", 8392, "port to listen on (0 picks a free port)")
	serveCmd.Flags().Bool("no-watch", false, "disable filesystem change collection")
	_ = viper.BindPFlag("mcp.port", serveCmd.Flags().Lookup("port"))
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	noWatch, _ := cmd.Flags().GetBool("no-watch")

	cfg, logger, err := mustConfig()
	if err != nil {
		return err
	}
	printer := ui.NewWriter(cmd.ErrOrStderr())

	ctx, cancel := setupSignalContext(cmd.Context())
	defer cancel()

	var collector *watch.Collector
	if !noWatch {
		collector, err = watch.New(cfg.WorkDir, logger)
		if err != nil {
			return err
		}
		if err := collector.Start(); err != nil {
			return err
		}
		defer collector.Stop()
	}

	var changes session.ChangeSource
	if collector != nil {
		changes = collector
	}
	sess, deps, err := openSession(ctx, cfg, logger, changes)
	if err != nil {
		return err
	}
	defer deps.Close()

	srv := mcpserver.NewServer(sess, cfg.MCP.Port, logger)
	if err := srv.Start(ctx); err != nil {
		return err
	}
	printer.Info(fmt.Sprintf("serving MCP on http://%s", srv.Addr()))

	<-ctx.Done()
	printer.Info("shutting down...")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	return srv.Stop(stopCtx)
}
