package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cartolapse/internal/config"
)

// runOverrides are root flags that replace config values for one run.
type runOverrides struct {
	session    string
	workers    int
	format     string
	dumpFrames bool
	logLevel   string
}

func (o runOverrides) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("session") {
		cfg.Session.Name = strings.TrimSpace(o.session)
	}
	if flags.Changed("workers") {
		cfg.Acquisition.Workers = o.workers
	}
	if flags.Changed("format") {
		cfg.Encoder.Format = strings.ToLower(strings.TrimSpace(o.format))
	}
	if flags.Changed("dump-frames") {
		cfg.Timelapse.DumpFrames = o.dumpFrames
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = strings.ToLower(strings.TrimSpace(o.logLevel))
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

func newRootCommand() *cobra.Command {
	var configFlag string
	var overrides runOverrides

	ctx := newCommandContext(&configFlag)

	rootCmd := &cobra.Command{
		Use:           "cartolapse",
		Short:         "Render a zooming time-lapse of a factory build from its saves",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := overrides.apply(cmd, cfg); err != nil {
				return err
			}
			return runPipeline(cmd, cfg)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.Flags().StringVarP(&overrides.session, "session", "s", "", "Session to render (defaults to the most recent)")
	rootCmd.Flags().IntVarP(&overrides.workers, "workers", "w", 0, "Concurrent browser sessions")
	rootCmd.Flags().StringVar(&overrides.format, "format", "", "Animation container: mp4 or gif")
	rootCmd.Flags().BoolVar(&overrides.dumpFrames, "dump-frames", false, "Also write every composited frame as PNG")
	rootCmd.Flags().StringVar(&overrides.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newImportCommand(ctx))
	rootCmd.AddCommand(newCheckCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
