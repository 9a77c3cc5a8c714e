package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/stratum/internal/prompt"
	"github.com/papapumpkin/stratum/internal/session"
	"github.com/papapumpkin/stratum/internal/ui"
)

var turnCmd = &cobra.Command{
	Use:   "turn",
	Short: "Run one turn and print the tiered message list",
	Long: `Reads a TOML turn description (prompt, selected files, symbols, URLs and
history), updates the stability tracker and prints the assembled messages as
JSON on stdout. Tier changes are reported on stderr.

With --anthropic, the messages are printed as Anthropic Messages API
parameters instead.`,
	RunE: runTurn,
}

func init() {
	turnCmd.Flags().StringP("input", "i", "-", "turn description file (- for stdin)")
	turnCmd.Flags().Bool("anthropic", false, "print Anthropic API parameters")
	rootCmd.AddCommand(turnCmd)
}

func runTurn(cmd *cobra.Command, _ []string) error {
	inputPath, _ := cmd.Flags().GetString("input")
	anthropic, _ := cmd.Flags().GetBool("anthropic")

	in, err := readInput(cmd.InOrStdin(), inputPath)
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

	res, err := sess.Turn(ctx, in)
	if err != nil {
		return err
	}

	if err := writeMessages(cmd.OutOrStdout(), res.Messages, anthropic); err != nil {
		return err
	}

	printer := ui.NewWriter(cmd.ErrOrStderr())
	printer.Changes(res.Changes)
	printer.TurnDone(res.Turn, len(res.Messages), len(res.Changes), res.TierTokens)
	return nil
}

func readInput(stdin io.Reader, path string) (session.Input, error) {
	if path == "-" || path == "" {
		return session.ParseInput(stdin)
	}
	return session.LoadInput(path)
}

func writeMessages(w io.Writer, msgs []prompt.Message, anthropic bool) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if !anthropic {
		if err := enc.Encode(msgs); err != nil {
			return fmt.Errorf("encoding messages: %w", err)
		}
		return nil
	}

	system, messages, err := prompt.ToAnthropic(msgs)
	if err != nil {
		return err
	}
	out := map[string]any{
		"system":   system,
		"messages": messages,
	}
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encoding anthropic params: %w", err)
	}
	return nil
}

