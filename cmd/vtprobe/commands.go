package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vtprobe/vtprobe-go/cmd/vtprobe/interactive"
	"github.com/vtprobe/vtprobe-go/cmd/vtprobe/logview"
	"github.com/vtprobe/vtprobe-go/internal/config"
	"github.com/vtprobe/vtprobe-go/pkg/tag"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start the interactive shell",
	Args:  cobra.NoArgs,
	RunE:  runShell,
}

func runShell(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		sh, err := interactive.New(interactive.Config{
			Session:       a.session,
			Worker:        a.worker,
			Inspector:     a.inspector,
			Reporter:      a.reporter,
			Simulator:     a.cameras,
			DeviceID:      a.cfg.DeviceID,
			Spec:          a.spec,
			Value:         a.cfg.WriteValue,
			SettleTimeout: a.cfg.OpenTimeout + settleTimeout,
			Out:           cmd.OutOrStdout(),
		})
		if err != nil {
			return err
		}
		return sh.Run(ctx)
	})
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump every static characteristic of every device",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(_ context.Context, a *app) error {
			return a.inspector.DumpAll()
		})
	},
}

var readCmd = &cobra.Command{
	Use:   "read <chars|result|request>",
	Short: "Read the tag from one registry",
	Long: `Read the selected tag (--tag or the configured tag) from one registry.
A lookup failure is part of the report, not a command error.

Reading the capture result or the pending request opens the device and
starts the preview first.`,
	Example: `  vtprobe read chars
  vtprobe read result --tag com.kdiwin.control.source.status:byte
  vtprobe read request --tag com.kdiwin.control.source.window:int32[]`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"chars", "result", "request"},
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := tag.ParseRegistryKind(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			switch kind {
			case tag.StaticCapabilities:
				_, err = a.inspector.ReadStatic(a.cfg.DeviceID, a.spec)
			case tag.DynamicResult:
				if err := a.startPreview(ctx); err != nil {
					return err
				}
				readCtx, cancel := context.WithTimeout(ctx, settleTimeout)
				defer cancel()
				_, err = a.inspector.ReadResult(readCtx, a.spec)
			case tag.MutableRequest:
				if err := a.startPreview(ctx); err != nil {
					return err
				}
				_, err = a.inspector.ReadRequest(a.spec)
			}
			return err
		})
	},
}

var writeCmd = &cobra.Command{
	Use:   "write [value]",
	Short: "Write the tag into the pending capture request",
	Long: `Open the device, start the preview, write the value (or the configured
write value) into the pending request as the selected tag and resubmit
the repeating request.`,
	Example: `  vtprobe write --tag com.kdiwin.control.source.window:int32[] "0, 0, 640, 480"
  vtprobe write --tag com.kdiwin.control.source.input:byte 0x02`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			text := a.cfg.WriteValue
			if len(args) > 0 {
				text = strings.Join(args, " ")
			}
			if err := a.startPreview(ctx); err != nil {
				return err
			}
			_, err := a.inspector.ApplyTag(a.spec, text)
			return err
		})
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or create the configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out, err := yaml.Marshal(v.AllSettings())
		if err != nil {
			return err
		}
		if used := v.ConfigFileUsed(); used != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", used)
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a commented config file with the defaults",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.ConfigName + ".yaml"
		if len(args) > 0 {
			path = args[0]
		} else if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, ".config", config.ConfigName, config.ConfigName+".yaml")
		}
		if err := config.WriteDefaultConfig(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Inspect recorded session traces (.vtlog)",
}

var filterOpts logview.FilterOptions

func addFilterFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&filterOpts.SessionID, "session-id", "", "filter by session trace ID")
	f.StringVar(&filterOpts.DeviceID, "device-id", "", "filter by device ID")
	f.StringVar(&filterOpts.TagName, "tag-name", "", "filter access events by tag name")
	f.StringVar(&filterOpts.TimeStart, "time-start", "", "filter by start time (RFC3339)")
	f.StringVar(&filterOpts.TimeEnd, "time-end", "", "filter by end time (RFC3339)")
	f.StringVar(&filterOpts.Layer, "layer", "", "filter by layer (hal, accessor, session)")
	f.StringVar(&filterOpts.Category, "category", "", "filter by category (state, access, capture, error)")
}

var logViewCmd = &cobra.Command{
	Use:   "view <file.vtlog>",
	Short: "View a trace in human-readable format",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := logview.BuildFilter(filterOpts)
		if err != nil {
			return err
		}
		return logview.RunView(args[0], filter, cmd.OutOrStdout())
	},
}

var logStatsCmd = &cobra.Command{
	Use:   "stats <file.vtlog>",
	Short: "Show statistics about a trace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return logview.RunStats(args[0], cmd.OutOrStdout())
	},
}

var (
	exportFormat string
	exportOutput string
	filterOutput string
)

var logExportCmd = &cobra.Command{
	Use:   "export <file.vtlog>",
	Short: "Export a trace to JSONL or CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := logview.BuildFilter(filterOpts)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if exportOutput != "" {
			f, err := os.Create(exportOutput)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer f.Close()
			w = f
		}
		return logview.RunExport(args[0], exportFormat, filter, w)
	},
}

var logFilterCmd = &cobra.Command{
	Use:   "filter <file.vtlog>",
	Short: "Write the matching events of a trace to a new trace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if filterOutput == "" {
			return errors.New("output file (-o) required")
		}
		filter, err := logview.BuildFilter(filterOpts)
		if err != nil {
			return err
		}
		n, err := logview.RunFilter(args[0], filterOutput, filter)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Filtered %d events to %s\n", n, filterOutput)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configInitCmd)

	addFilterFlags(logViewCmd)
	addFilterFlags(logExportCmd)
	addFilterFlags(logFilterCmd)
	logExportCmd.Flags().StringVar(&exportFormat, "format", "jsonl", "output format (jsonl, csv)")
	logExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default: stdout)")
	logFilterCmd.Flags().StringVarP(&filterOutput, "output", "o", "", "output trace file (required)")
	logCmd.AddCommand(logViewCmd, logStatsCmd, logExportCmd, logFilterCmd)
}
