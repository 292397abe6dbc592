package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"cartolapse/internal/checkpoint"
	"cartolapse/internal/config"
	"cartolapse/internal/logging"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	var from string
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Copy the game's save files into the saves directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			src, err := importSource(cfg, from)
			if err != nil {
				return err
			}
			result, err := checkpoint.Import(src, cfg.Paths.SavesDir, overwrite, logging.NewNop())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Imported %d saves from %s into %s\n", len(result.Copied), src, cfg.Paths.SavesDir)
			if len(result.Skipped) > 0 {
				fmt.Fprintf(out, "Skipped %d saves already present (use --overwrite to replace them)\n", len(result.Skipped))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Game save directory (auto-detected when empty)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace saves that already exist")
	return cmd
}

// importSource resolves the directory to import from: the flag, then the
// configured game saves directory, then the platform default.
func importSource(cfg *config.Config, from string) (string, error) {
	if from = strings.TrimSpace(from); from != "" {
		return config.ExpandPath(from)
	}
	if cfg.Paths.GameSavesDir != "" {
		return cfg.Paths.GameSavesDir, nil
	}
	home, _ := os.UserHomeDir()
	src, err := checkpoint.DetectGameSaves(checkpoint.Platform{GOOS: runtime.GOOS, Home: home, Getenv: os.Getenv})
	if err != nil {
		return "", fmt.Errorf("locate game saves (pass --from): %w", err)
	}
	return src, nil
}
