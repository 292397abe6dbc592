package encoder

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	draptolib "github.com/five82/drapto"

	"cartolapse/internal/logging"
	"cartolapse/internal/services"
)

// Archiver produces an archival encode of a finished animation.
type Archiver interface {
	Archive(ctx context.Context, input, outputDir string) (string, error)
}

// DraptoArchiver encodes with the drapto library and logs its progress.
type DraptoArchiver struct {
	Logger *slog.Logger
}

// Archive encodes input into outputDir and returns the output path.
func (a DraptoArchiver) Archive(ctx context.Context, input, outputDir string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", errors.New("input path required")
	}
	if strings.TrimSpace(outputDir) == "" {
		return "", errors.New("output directory required")
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "encoder", "archive", "ensure output directory", err)
	}

	enc, err := draptolib.New(draptolib.WithResponsive())
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "encoder", "archive", "init drapto", err)
	}
	logger := logging.NewComponentLogger(a.Logger, "archive")
	if _, err := enc.EncodeWithReporter(ctx, input, outputDir, newLogReporter(logger)); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "encoder", "archive", filepath.Base(input), err)
	}
	return ArchivePath(input, outputDir), nil
}

// ArchivePath is where drapto writes the archive of input.
func ArchivePath(input, outputDir string) string {
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}
	return filepath.Join(strings.TrimSpace(outputDir), stem+".mkv")
}

var _ Archiver = DraptoArchiver{}
