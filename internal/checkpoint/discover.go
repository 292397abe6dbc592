package checkpoint

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"cartolapse/internal/logging"
	"cartolapse/internal/services"
)

const saveExtension = ".sav"

var (
	sessionFromName   = regexp.MustCompile(`^(.*?)_\d{6}-\d{6}`)
	sessionFromHeader = regexp.MustCompile(`\?sessionName=([^?]*)\?`)
)

// headerScanLimit bounds how far into a save the session header is searched.
const headerScanLimit = 64 * 1024

// Skipped records a save that was excluded from discovery.
type Skipped struct {
	Path   string
	Reason error
}

// Discovery is the result of scanning a saves directory.
type Discovery struct {
	Artifacts []Artifact
	Skipped   []Skipped
}

// Scanner discovers checkpoint artifacts from a saves directory.
type Scanner struct {
	SavesDir string
	Layout   Layout
	Logger   *slog.Logger
}

// Scan lists qualifying saves, derives their artifacts, refreshes raster
// flags from disk, and returns them sorted by image name. Unreadable or empty
// saves are logged and skipped.
func (s Scanner) Scan(ctx context.Context) (Discovery, error) {
	logger := logging.NewComponentLogger(s.Logger, "checkpoint")

	entries, err := os.ReadDir(s.SavesDir)
	if err != nil {
		return Discovery{}, services.Wrap(services.ErrConfiguration, "checkpoint", "scan", "read saves directory", err)
	}

	var result Discovery
	seen := make(map[string]string)
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return Discovery{}, err
		}
		if entry.IsDir() || !QualifyingSave(entry.Name()) {
			continue
		}
		path := filepath.Join(s.SavesDir, entry.Name())
		artifact, err := inspectSave(path)
		if err != nil {
			logging.WarnWithContext(logger, "save skipped", "save_skipped",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "checkpoint excluded from the animation"),
				logging.String(logging.FieldErrorHint, "re-export or remove the damaged save"),
			)
			result.Skipped = append(result.Skipped, Skipped{Path: path, Reason: err})
			continue
		}
		if prior, dup := seen[artifact.ImageName]; dup {
			err := services.Wrap(services.ErrMalformedArtifact, "checkpoint", "scan",
				fmt.Sprintf("image name collides with %s", filepath.Base(prior)), nil)
			logging.WarnWithContext(logger, "save skipped", "save_duplicate",
				logging.String("path", path),
				logging.Artifact(artifact.ImageName),
				logging.Error(err),
			)
			result.Skipped = append(result.Skipped, Skipped{Path: path, Reason: err})
			continue
		}
		seen[artifact.ImageName] = path
		s.Layout.Refresh(&artifact)
		result.Artifacts = append(result.Artifacts, artifact)
	}

	sort.Slice(result.Artifacts, func(i, j int) bool {
		return result.Artifacts[i].ImageName < result.Artifacts[j].ImageName
	})
	logger.Debug("saves scanned",
		logging.String("dir", s.SavesDir),
		logging.Int("artifacts", len(result.Artifacts)),
		logging.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}

// QualifyingSave reports whether a file name is a manual save worth rendering.
// Autosaves and continue saves are excluded.
func QualifyingSave(name string) bool {
	lower := strings.ToLower(name)
	if !strings.HasSuffix(lower, saveExtension) {
		return false
	}
	if strings.Contains(lower, "_autosave_") || strings.HasSuffix(lower, "_continue.sav") {
		return false
	}
	return true
}

func inspectSave(path string) (Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Artifact{}, services.Wrap(services.ErrMalformedArtifact, "checkpoint", "inspect", "stat save", err)
	}
	if info.Size() == 0 {
		return Artifact{}, services.Wrap(services.ErrMalformedArtifact, "checkpoint", "inspect", "save is empty", nil)
	}
	session, err := SessionName(path)
	if err != nil {
		return Artifact{}, err
	}
	return NewArtifact(path, session, info.ModTime()), nil
}

// SessionName derives the session a save belongs to: from the
// `<session>_HHMMSS-HHMMSS` file name pattern when present, otherwise from the
// `?sessionName=<name>?` marker in the save header, otherwise the file stem.
func SessionName(path string) (string, error) {
	base := filepath.Base(path)
	if match := sessionFromName.FindStringSubmatch(base); match != nil && match[1] != "" {
		return match[1], nil
	}

	file, err := os.Open(path)
	if err != nil {
		return "", services.Wrap(services.ErrMalformedArtifact, "checkpoint", "inspect", "open save", err)
	}
	defer file.Close()

	reader := bufio.NewReaderSize(io.LimitReader(file, headerScanLimit), headerScanLimit)
	line, err := reader.ReadSlice('\n')
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return "", services.Wrap(services.ErrMalformedArtifact, "checkpoint", "inspect", "read save header", err)
	}
	if match := sessionFromHeader.FindSubmatch(line); match != nil && len(match[1]) > 0 {
		return string(match[1]), nil
	}
	return strings.TrimSuffix(base, filepath.Ext(base)), nil
}
