package config

const (
	defaultConfigPath  = "~/.config/cartolapse/config.toml"
	projectConfigName  = "cartolapse.toml"
	defaultSavesDir    = "./saves"
	defaultOutputDir   = "./output"
	defaultLogDirName  = "logs"
	defaultMapURL      = "https://satisfactory-calculator.com/en/interactive-map"
	defaultLogFormat   = "console"
	defaultLogLevel    = "info"
	defaultLogKeepDays = 30

	defaultWorkers            = 2
	defaultMaxRetries         = 3
	defaultJobTimeoutSeconds  = 600
	defaultLoadTimeoutSeconds = 300
	defaultSettleSeconds      = 10
	defaultResolution         = 1024 * 8
	defaultZoomLevel          = 4.25

	defaultMapPadding           = 256
	defaultZoomPadding          = 256
	defaultOutputSize           = 2048
	defaultFrameRate            = 30
	defaultBaseTransitionFrames = 8
	defaultNormalization        = 500.0
	defaultInitialHoldSeconds   = 2.0
	defaultFinalHoldSeconds     = 5.0

	defaultEncoderFormat  = "mp4"
	defaultEncoderCRF     = 16
	defaultEncoderPreset  = "veryslow"
	defaultEncoderTimeout = 120
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			SavesDir:  defaultSavesDir,
			OutputDir: defaultOutputDir,
		},
		Acquisition: Acquisition{
			MapURL:             defaultMapURL,
			Workers:            defaultWorkers,
			MaxRetries:         defaultMaxRetries,
			JobTimeoutSeconds:  defaultJobTimeoutSeconds,
			LoadTimeoutSeconds: defaultLoadTimeoutSeconds,
			SettleSeconds:      defaultSettleSeconds,
			Resolution:         defaultResolution,
			ZoomLevel:          defaultZoomLevel,
			Headless:           true,
			Stealth:            true,
		},
		Timelapse: Timelapse{
			MapPadding:           defaultMapPadding,
			ZoomPadding:          defaultZoomPadding,
			OutputSize:           defaultOutputSize,
			FrameRate:            defaultFrameRate,
			BaseTransitionFrames: defaultBaseTransitionFrames,
			Normalization:        defaultNormalization,
			InitialHoldSeconds:   defaultInitialHoldSeconds,
			FinalHoldSeconds:     defaultFinalHoldSeconds,
		},
		Encoder: Encoder{
			Format:        defaultEncoderFormat,
			CRF:           defaultEncoderCRF,
			Preset:        defaultEncoderPreset,
			TranscodeGIF:  true,
			TimeoutMinute: defaultEncoderTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogKeepDays,
		},
	}
}
