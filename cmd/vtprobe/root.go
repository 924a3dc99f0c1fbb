package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vtprobe/vtprobe-go/internal/config"
	"github.com/vtprobe/vtprobe-go/pkg/inspect"
)

// settleTimeout is added to the open timeout when waiting for the preview.
const settleTimeout = 2 * time.Second

var (
	version = "dev"
	cfgFile string
	tagFlag string
	cfg     config.Config
	v       *viper.Viper
)

// flagKeys maps persistent flags to config keys.
var flagKeys = map[string]string{
	"device":          "device_id",
	"profile":         "profile",
	"event-log":       "event_log",
	"log-level":       "log_level",
	"open-timeout":    "open_timeout",
	"deny-permission": "deny_permission",
}

var rootCmd = &cobra.Command{
	Use:   "vtprobe",
	Short: "Camera HAL vendor-tag diagnostic probe",
	Long: `vtprobe reads and writes vendor-specific metadata tags across the three
camera registries (static characteristics, capture results and the pending
capture request) of a simulated camera HAL.

Without a subcommand it starts the interactive shell.`,
	Version:           version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
	RunE:              runShell,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ./vtprobe.yaml or ~/.config/vtprobe/vtprobe.yaml)")
	flags.StringVarP(&tagFlag, "tag", "t", "",
		"tag target, e.g. vendor.gain:int32[] (default: configured tag)")
	flags.String("device", "", "camera device id")
	flags.String("profile", "", "simulated HAL profile (YAML)")
	flags.String("event-log", "", "write a session trace to this .vtlog file")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.Duration("open-timeout", 0, "bound on waiting for the open/close lock")
	flags.Bool("deny-permission", false, "simulate a denied camera permission")

	rootCmd.AddCommand(shellCmd, dumpCmd, readCmd, writeCmd, configCmd, logCmd)
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	v = viper.New()
	flags := cmd.Root().PersistentFlags()
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return err
		}
	}

	loaded, used, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	cfg = loaded
	if used != "" {
		newLogger(cmd.ErrOrStderr()).Debug("Using config file", "path", used)
	}
	return nil
}

// newLogger builds the operational logger at the configured level.
func newLogger(w io.Writer) *slog.Logger {
	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// withApp wires an app for one command and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	logger := newLogger(cmd.ErrOrStderr())

	a, err := newApp(cfg, logger, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if tagFlag != "" {
		if a.spec, err = inspect.ParseTarget(tagFlag, a.spec); err != nil {
			_ = a.Close()
			return err
		}
	}

	runErr := fn(cmd.Context(), a)
	if err := a.Close(); err != nil {
		logger.Warn("Close failed", "error", err)
	}
	return runErr
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
