package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains input and output directory configuration.
type Paths struct {
	SavesDir     string `toml:"saves_dir"`
	OutputDir    string `toml:"output_dir"`
	LogDir       string `toml:"log_dir"`
	GameSavesDir string `toml:"game_saves_dir"`
}

// Session selects which checkpoint session is rendered when the saves
// directory holds more than one.
type Session struct {
	Name string `toml:"name"`
}

// Acquisition contains configuration for the browser-driven map renderer and
// the worker pool that drives it.
type Acquisition struct {
	MapURL             string  `toml:"map_url"`
	Workers            int     `toml:"workers"`
	MaxRetries         int     `toml:"max_retries"`
	JobTimeoutSeconds  int     `toml:"job_timeout_seconds"`
	LoadTimeoutSeconds int     `toml:"load_timeout_seconds"`
	SettleSeconds      int     `toml:"settle_seconds"`
	Resolution         int     `toml:"resolution"`
	ZoomLevel          float64 `toml:"zoom_level"`
	Headless           bool    `toml:"headless"`
	Stealth            bool    `toml:"stealth"`
	BrowserBin         string  `toml:"browser_bin"`
	RemoteURL          string  `toml:"remote_url"`
}

// Timelapse contains the image analysis and compositing tunables.
type Timelapse struct {
	MapPadding           int     `toml:"map_padding"`
	ZoomPadding          int     `toml:"zoom_padding"`
	OutputSize           int     `toml:"output_size"`
	FrameRate            int     `toml:"frame_rate"`
	BaseTransitionFrames int     `toml:"base_transition_frames"`
	Normalization        float64 `toml:"normalization"`
	InitialHoldSeconds   float64 `toml:"initial_hold_seconds"`
	FinalHoldSeconds     float64 `toml:"final_hold_seconds"`
	DumpFrames           bool    `toml:"dump_frames"`
}

// Encoder contains configuration for the animation container and the
// optional follow-up transcodes.
type Encoder struct {
	Format        string `toml:"format"`
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	CRF           int    `toml:"crf"`
	Preset        string `toml:"preset"`
	TranscodeGIF  bool   `toml:"transcode_gif"`
	ArchiveAV1    bool   `toml:"archive_av1"`
	TimeoutMinute int    `toml:"timeout_minutes"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for cartolapse.
//
// Configuration sections by subsystem:
//   - Paths: saves input, output tree, logs, optional game save import source
//   - Session: which checkpoint session to render
//   - Acquisition: browser renderer and worker pool
//   - Timelapse: region/zoom padding and compositor timing
//   - Encoder: container format and transcodes
//   - Logging: log format, level, and retention
type Config struct {
	Paths       Paths       `toml:"paths"`
	Session     Session     `toml:"session"`
	Acquisition Acquisition `toml:"acquisition"`
	Timelapse   Timelapse   `toml:"timelapse"`
	Encoder     Encoder     `toml:"encoder"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A missing file is not an error: every tunable
// has a compiled-in default.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the input and output tree used by a run.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.SavesDir,
		c.Paths.OutputDir,
		c.Paths.LogDir,
		c.ScreenshotsDir(),
		c.OverlaysDir(),
	}
	if c.Timelapse.DumpFrames {
		dirs = append(dirs, c.FramesDir())
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ScreenshotsDir is where acquired map screenshots are stored.
func (c *Config) ScreenshotsDir() string {
	return filepath.Join(c.Paths.OutputDir, "screenshots")
}

// OverlaysDir is where acquired transparency overlays are stored.
func (c *Config) OverlaysDir() string {
	return filepath.Join(c.Paths.OutputDir, "overlays")
}

// FramesDir is where composited frames are dumped when enabled.
func (c *Config) FramesDir() string {
	return filepath.Join(c.Paths.OutputDir, "frames")
}

// CatalogPath returns the SQLite catalog location.
func (c *Config) CatalogPath() string {
	return filepath.Join(c.Paths.OutputDir, "catalog.db")
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.OutputDir, ".cartolapse.lock")
}

// AnimationPath returns the container path for the given session token.
func (c *Config) AnimationPath(session string) string {
	ext := c.Encoder.Format
	if ext == "" {
		ext = defaultEncoderFormat
	}
	return filepath.Join(c.Paths.OutputDir, fmt.Sprintf("animation-%s.%s", session, ext))
}

// FFmpegBinary returns the ffmpeg executable used by the encoder.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.Encoder.FFmpegBinary); bin != "" {
		return bin
	}
	return "ffmpeg"
}

// JobTimeout returns the hard per-acquisition timeout.
func (c *Config) JobTimeout() time.Duration {
	return time.Duration(c.Acquisition.JobTimeoutSeconds) * time.Second
}

// EncoderTimeout returns the upper bound for a single encoder invocation.
func (c *Config) EncoderTimeout() time.Duration {
	return time.Duration(c.Encoder.TimeoutMinute) * time.Minute
}

// FrameDuration is the display time of one emitted frame outside of holds.
func (c *Config) FrameDuration() time.Duration {
	if c.Timelapse.FrameRate <= 0 {
		return 0
	}
	return time.Second / time.Duration(c.Timelapse.FrameRate)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
