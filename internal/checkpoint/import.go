package checkpoint

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cartolapse/internal/fileutil"
	"cartolapse/internal/logging"
	"cartolapse/internal/services"
)

// steamAppID identifies the game's Proton prefix on Linux.
const steamAppID = "526870"

// ImportResult lists what an import copied and left alone.
type ImportResult struct {
	Copied  []string
	Skipped []string
}

// Import copies qualifying saves from src into dst. Existing files are left
// untouched unless overwrite is set. Modification times are preserved so
// image names stay anchored to the original checkpoint time.
func Import(src, dst string, overwrite bool, logger *slog.Logger) (ImportResult, error) {
	logger = logging.NewComponentLogger(logger, "import")

	entries, err := os.ReadDir(src)
	if err != nil {
		return ImportResult{}, services.Wrap(services.ErrConfiguration, "checkpoint", "import", "read game save directory", err)
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return ImportResult{}, fmt.Errorf("create saves directory: %w", err)
	}

	var result ImportResult
	for _, entry := range entries {
		if entry.IsDir() || !QualifyingSave(entry.Name()) {
			continue
		}
		from := filepath.Join(src, entry.Name())
		to := filepath.Join(dst, entry.Name())
		if !overwrite && fileutil.Exists(to) {
			result.Skipped = append(result.Skipped, entry.Name())
			continue
		}
		if err := fileutil.CopyFileVerified(from, to); err != nil {
			return result, fmt.Errorf("import %s: %w", entry.Name(), err)
		}
		logger.Debug("save imported", logging.String("save", entry.Name()))
		result.Copied = append(result.Copied, entry.Name())
	}
	logger.Info("saves imported",
		logging.String("source", src),
		logging.Int("copied", len(result.Copied)),
		logging.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}

// Platform carries the environment used to locate the game's save directory.
type Platform struct {
	GOOS   string
	Home   string
	Getenv func(string) string
}

// GameSaveRoots lists the directories that may hold per-player save folders on
// the given platform, most likely first.
func GameSaveRoots(p Platform) []string {
	getenv := p.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	switch p.GOOS {
	case "windows":
		if local := getenv("LOCALAPPDATA"); local != "" {
			return []string{filepath.Join(local, "FactoryGame", "Saved", "SaveGames")}
		}
		return nil
	case "darwin":
		return []string{
			filepath.Join(p.Home, "Library", "Application Support", "Epic", "FactoryGame", "Saved", "SaveGames"),
		}
	default:
		return []string{
			filepath.Join(p.Home, ".steam", "steam", "steamapps", "compatdata", steamAppID,
				"pfx", "drive_c", "users", "steamuser", "AppData", "Local", "FactoryGame", "Saved", "SaveGames"),
			filepath.Join(p.Home, ".local", "share", "Steam", "steamapps", "compatdata", steamAppID,
				"pfx", "drive_c", "users", "steamuser", "AppData", "Local", "FactoryGame", "Saved", "SaveGames"),
			filepath.Join(p.Home, ".config", "Epic", "FactoryGame", "Saved", "SaveGames"),
		}
	}
}

// ErrGameSavesNotFound is returned when no save directory can be located.
var ErrGameSavesNotFound = errors.New("game save directory not found")

// DetectGameSaves returns the first numeric player folder under the first
// existing save root for the platform.
func DetectGameSaves(p Platform) (string, error) {
	for _, root := range GameSaveRoots(p) {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		var players []string
		for _, entry := range entries {
			if entry.IsDir() && isNumeric(entry.Name()) {
				players = append(players, entry.Name())
			}
		}
		if len(players) == 0 {
			continue
		}
		sort.Strings(players)
		return filepath.Join(root, players[0]), nil
	}
	return "", services.Wrap(services.ErrConfiguration, "checkpoint", "detect game saves",
		"set paths.game_saves_dir", ErrGameSavesNotFound)
}

func isNumeric(value string) bool {
	if value == "" {
		return false
	}
	return strings.IndexFunc(value, func(r rune) bool { return r < '0' || r > '9' }) < 0
}
