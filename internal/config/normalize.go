package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAcquisition()
	c.normalizeEncoder()
	c.normalizeLogging()
	c.Session.Name = strings.TrimSpace(c.Session.Name)
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.SavesDir) == "" {
		c.Paths.SavesDir = defaultSavesDir
	}
	if c.Paths.SavesDir, err = expandPath(c.Paths.SavesDir); err != nil {
		return fmt.Errorf("paths.saves_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.OutputDir, defaultLogDirName)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.GameSavesDir) == "" {
		if value, ok := os.LookupEnv("CARTOLAPSE_GAME_SAVES"); ok {
			c.Paths.GameSavesDir = value
		}
	}
	if c.Paths.GameSavesDir, err = expandPath(strings.TrimSpace(c.Paths.GameSavesDir)); err != nil {
		return fmt.Errorf("paths.game_saves_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeAcquisition() {
	c.Acquisition.MapURL = strings.TrimSpace(c.Acquisition.MapURL)
	if c.Acquisition.MapURL == "" {
		c.Acquisition.MapURL = defaultMapURL
	}
	c.Acquisition.BrowserBin = strings.TrimSpace(c.Acquisition.BrowserBin)
	c.Acquisition.RemoteURL = strings.TrimSpace(c.Acquisition.RemoteURL)
	if c.Acquisition.RemoteURL == "" {
		if value, ok := os.LookupEnv("CARTOLAPSE_BROWSER_URL"); ok {
			c.Acquisition.RemoteURL = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeEncoder() {
	c.Encoder.Format = strings.ToLower(strings.TrimSpace(c.Encoder.Format))
	if c.Encoder.Format == "" {
		c.Encoder.Format = defaultEncoderFormat
	}
	c.Encoder.Preset = strings.TrimSpace(c.Encoder.Preset)
	if c.Encoder.Preset == "" {
		c.Encoder.Preset = defaultEncoderPreset
	}
	c.Encoder.FFmpegBinary = strings.TrimSpace(c.Encoder.FFmpegBinary)
	if c.Encoder.TimeoutMinute <= 0 {
		c.Encoder.TimeoutMinute = defaultEncoderTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
