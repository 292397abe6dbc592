package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"cartolapse/internal/config"
	"cartolapse/internal/logging"
	"cartolapse/internal/timelapse"
)

func runPipeline(cmd *cobra.Command, cfg *config.Config) error {
	runID := uuid.NewString()
	logger, logPath, err := logging.NewFromConfig(cfg, runID)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	report, err := timelapse.Run(cmd.Context(), cfg, logger,
		timelapse.WithRunID(runID),
		timelapse.WithLogPath(logPath),
	)
	if err != nil {
		if logPath != "" {
			return fmt.Errorf("%w (log: %s)", err, logPath)
		}
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, summarizeReport(report))
	for _, path := range report.Outputs() {
		fmt.Fprintf(out, "  %s\n", path)
	}
	if report.FramesDir != "" {
		fmt.Fprintf(out, "  frames: %s (%d)\n", report.FramesDir, report.FramesDumped)
	}
	if report.AcquisitionErr != nil {
		fmt.Fprintf(out, "Warning: %v\n", report.AcquisitionErr)
	}
	return nil
}

func summarizeReport(r timelapse.Report) string {
	parts := []string{
		fmt.Sprintf("%d frames", r.Frames),
		fmt.Sprintf("%d acquired", r.Acquired),
		fmt.Sprintf("%d cached", r.Cached),
	}
	if n := len(r.Failures); n > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", n))
	}
	if n := len(r.SkippedFrames); n > 0 {
		parts = append(parts, fmt.Sprintf("%d unreadable", n))
	}
	if r.Imported > 0 {
		parts = append(parts, fmt.Sprintf("%d imported", r.Imported))
	}
	return fmt.Sprintf("Rendered %s: %s in %s",
		r.Session, strings.Join(parts, ", "), r.Elapsed.Round(100*time.Millisecond))
}
