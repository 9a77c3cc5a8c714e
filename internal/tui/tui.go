// Package tui provides the BubbleTea-based live tier dashboard.
package tui

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/papapumpkin/stratum/internal/stability"
)

// Program is an alias for tea.Program, exposed so callers don't need
// to import bubbletea directly.
type Program = tea.Program

// Options configures the dashboard.
type Options struct {
	StatePath         string
	TelemetryPath     string
	CacheTargetTokens int
}

// StateLoader returns a Loader that reads the tracker state file at path.
// A missing or corrupt file loads as an empty tracker.
func StateLoader(path string, target int) Loader {
	return func() ([]stability.TrackedItem, error) {
		t := stability.NewStore(path, nil).Load(stability.Config{CacheTargetTokens: target})
		return t.Items(), nil
	}
}

// NewProgram creates a dashboard program. The program uses the alternate
// screen buffer for a clean TUI experience.
func NewProgram(opts Options, progOpts ...tea.ProgramOption) *Program {
	model := NewModel(StateLoader(opts.StatePath, opts.CacheTargetTokens), opts.CacheTargetTokens)
	allOpts := []tea.ProgramOption{
		tea.WithAltScreen(),
	}
	allOpts = append(allOpts, progOpts...)
	return tea.NewProgram(model, allOpts...)
}

// Run starts the dashboard with its state watcher and telemetry feed and
// blocks until the user quits. A missing telemetry file only disables the
// feed.
func Run(opts Options) error {
	if err := os.MkdirAll(filepath.Dir(opts.StatePath), 0o755); err != nil {
		return fmt.Errorf("tui: create state dir: %w", err)
	}
	p := NewProgram(opts)

	watcher := NewStateWatcher(p, opts.StatePath, StateLoader(opts.StatePath, opts.CacheTargetTokens))
	if err := watcher.Start(); err != nil {
		return err
	}
	defer watcher.Stop()

	if opts.TelemetryPath != "" {
		bridge := NewTelemetryBridge(p, opts.TelemetryPath)
		if err := bridge.Start(); err == nil {
			defer bridge.Stop()
		}
	}

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// WithOutput returns a program option that directs TUI output to the given writer.
// Useful for testing or redirecting output.
func WithOutput(w io.Writer) tea.ProgramOption {
	return tea.WithOutput(w)
}
