// Package cmd provides the stratum CLI.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papapumpkin/stratum/internal/config"
	"github.com/papapumpkin/stratum/internal/ledger"
	"github.com/papapumpkin/stratum/internal/session"
	"github.com/papapumpkin/stratum/internal/telemetry"
	"github.com/papapumpkin/stratum/internal/ui"
)

var rootCmd = &cobra.Command{
	Use:   "stratum",
	Short: "Stability-tiered prompt cache manager",
	Long: `Stratum tracks how stable each piece of prompt context is across turns and
assembles tiered message lists whose cached prefix changes as rarely as possible.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.New().Error(err.Error())
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default .stratum.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("work-dir", "", "repository root (default .)")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("work_dir", rootCmd.PersistentFlags().Lookup("work-dir"))
}

func initConfig() {
	if cfgFile, _ := rootCmd.Flags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".stratum")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
	}

	viper.SetEnvPrefix("STRATUM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// It's fine if no config file is found; we use defaults.
	_ = viper.ReadInConfig()
}

// loadConfig reads the merged configuration. An empty work_dir flag keeps
// the configured value.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = "."
	}
	return cfg, nil
}

// newLogger returns a text logger on stderr, at debug level when verbose.
func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelWarn
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// sessionDeps holds what openSession opened so the caller can close it.
type sessionDeps struct {
	ledger    *ledger.Ledger
	telemetry *telemetry.Emitter
}

func (d sessionDeps) Close() error {
	var errs []error
	if d.ledger != nil {
		errs = append(errs, d.ledger.Close())
	}
	errs = append(errs, d.telemetry.Close())
	return errors.Join(errs...)
}

// openSession wires a Session with its ledger and telemetry stream.
func openSession(ctx context.Context, cfg config.Config, logger *slog.Logger, changes session.ChangeSource) (*session.Session, sessionDeps, error) {
	var deps sessionDeps

	driver := cfg.Ledger.Driver
	if driver == "" {
		driver = ledger.DriverSQLite
	}
	lg, err := ledger.Open(ctx, driver, cfg.LedgerDSN())
	if err != nil {
		return nil, deps, err
	}
	deps.ledger = lg

	em, err := telemetry.NewEmitter(cfg.TelemetryFile())
	if err != nil {
		lg.Close()
		return nil, sessionDeps{}, err
	}
	deps.telemetry = em

	sess := session.Open(session.Options{
		WorkDir:           cfg.WorkDir,
		StatePath:         cfg.StatePath(),
		CacheTargetTokens: cfg.CacheTargetTokens,
		TreeDepth:         cfg.TreeDepth,
		URLContextTokens:  cfg.URLContextTokens,
		SystemPrompt:      cfg.SystemPrompt,
		Ledger:            lg,
		Telemetry:         em,
		Changes:           changes,
		Logger:            logger,
	})
	return sess, deps, nil
}

// setupSignalContext returns a context that is canceled on SIGINT or SIGTERM.
func setupSignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// mustConfig loads the configuration and builds the matching logger.
func mustConfig() (config.Config, *slog.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, newLogger(cfg), nil
}
