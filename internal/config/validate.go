package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAcquisition(); err != nil {
		return err
	}
	if err := c.validateTimelapse(); err != nil {
		return err
	}
	if err := c.validateEncoder(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateAcquisition() error {
	if err := ensurePositiveMap(map[string]int{
		"acquisition.workers":              c.Acquisition.Workers,
		"acquisition.job_timeout_seconds":  c.Acquisition.JobTimeoutSeconds,
		"acquisition.load_timeout_seconds": c.Acquisition.LoadTimeoutSeconds,
		"acquisition.resolution":           c.Acquisition.Resolution,
	}); err != nil {
		return err
	}
	if c.Acquisition.MaxRetries < 0 {
		return errors.New("acquisition.max_retries must not be negative")
	}
	if c.Acquisition.SettleSeconds < 0 {
		return errors.New("acquisition.settle_seconds must not be negative")
	}
	if _, err := url.ParseRequestURI(c.Acquisition.MapURL); err != nil {
		return fmt.Errorf("acquisition.map_url: %w", err)
	}
	return nil
}

func (c *Config) validateTimelapse() error {
	if err := ensurePositiveMap(map[string]int{
		"timelapse.output_size":            c.Timelapse.OutputSize,
		"timelapse.frame_rate":             c.Timelapse.FrameRate,
		"timelapse.base_transition_frames": c.Timelapse.BaseTransitionFrames,
	}); err != nil {
		return err
	}
	if c.Timelapse.MapPadding < 0 || c.Timelapse.ZoomPadding < 0 {
		return errors.New("timelapse.map_padding and timelapse.zoom_padding must not be negative")
	}
	if c.Timelapse.Normalization <= 0 {
		return errors.New("timelapse.normalization must be positive")
	}
	if c.Timelapse.InitialHoldSeconds < 0 || c.Timelapse.FinalHoldSeconds < 0 {
		return errors.New("timelapse hold durations must not be negative")
	}
	return nil
}

func (c *Config) validateEncoder() error {
	switch c.Encoder.Format {
	case "mp4", "gif":
	default:
		return fmt.Errorf("encoder.format must be mp4 or gif, got %q", c.Encoder.Format)
	}
	if c.Encoder.CRF < 0 || c.Encoder.CRF > 51 {
		return errors.New("encoder.crf must be between 0 and 51")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
