package encoder

import (
	"log/slog"

	draptolib "github.com/five82/drapto"

	"cartolapse/internal/logging"
)

// logReporter forwards drapto events to structured logs. Progress records are
// sampled so a long encode logs at most once per ten percent.
type logReporter struct {
	logger  *slog.Logger
	sampler *logging.ProgressSampler
}

func newLogReporter(logger *slog.Logger) *logReporter {
	return &logReporter{logger: logger, sampler: logging.NewProgressSampler(10)}
}

func (r *logReporter) Hardware(s draptolib.HardwareSummary) {
	r.logger.Debug("drapto hardware", logging.String("hostname", s.Hostname))
}

func (r *logReporter) Initialization(s draptolib.InitializationSummary) {
	r.logger.Info("archive encode starting",
		logging.String("input", s.InputFile),
		logging.String("output", s.OutputFile),
		logging.String("resolution", s.Resolution),
	)
}

func (r *logReporter) StageProgress(s draptolib.StageProgress) {
	if r.sampler.ShouldLog(s.Stage, int(s.Percent), 100) {
		r.logger.Info("archive stage", logging.String("stage", s.Stage), logging.Float64("percent", float64(s.Percent)), logging.String("detail", s.Message))
	}
}

func (r *logReporter) CropResult(s draptolib.CropSummary) {
	r.logger.Debug("archive crop", logging.String("crop", s.Crop), logging.Bool("required", s.Required))
}

func (r *logReporter) EncodingConfig(s draptolib.EncodingConfigSummary) {
	r.logger.Debug("archive encoder config", logging.String("encoder", s.Encoder), logging.String("preset", s.Preset), logging.String("quality", s.Quality))
}

func (r *logReporter) EncodingStarted(totalFrames uint64) {
	r.logger.Info("archive encoding", logging.Int64("total_frames", int64(totalFrames)))
}

func (r *logReporter) EncodingProgress(s draptolib.ProgressSnapshot) {
	if r.sampler.ShouldLog("encoding", int(s.Percent), 100) {
		r.logger.Info("archive progress",
			logging.Float64("percent", float64(s.Percent)),
			logging.Float64("fps", float64(s.FPS)),
			logging.Duration("eta", s.ETA),
		)
	}
}

func (r *logReporter) ValidationComplete(s draptolib.ValidationSummary) {
	if s.Passed {
		r.logger.Info("archive validation passed", logging.Int("steps", len(s.Steps)))
		return
	}
	for _, step := range s.Steps {
		if !step.Passed {
			logging.WarnWithContext(r.logger, "archive validation step failed", "archive_validation",
				logging.String("step", step.Name),
				logging.String("details", step.Details),
				logging.String(logging.FieldImpact, "archive copy may be unusable"),
			)
		}
	}
}

func (r *logReporter) EncodingComplete(s draptolib.EncodingOutcome) {
	r.logger.Info("archive encoded",
		logging.String("output", s.OutputPath),
		logging.Int64("original_bytes", int64(s.OriginalSize)),
		logging.Int64("encoded_bytes", int64(s.EncodedSize)),
		logging.Duration("elapsed", s.TotalTime),
	)
}

func (r *logReporter) Warning(message string) {
	logging.WarnWithContext(r.logger, message, "archive_warning")
}

func (r *logReporter) Error(e draptolib.ReporterError) {
	logging.ErrorWithContext(r.logger, e.Title, "archive_error",
		logging.String("detail", e.Message),
		logging.String("context", e.Context),
		logging.String(logging.FieldErrorHint, e.Suggestion),
	)
}

func (r *logReporter) OperationComplete(message string) {
	r.logger.Debug("archive operation complete", logging.String("detail", message))
}

func (r *logReporter) BatchStarted(s draptolib.BatchStartInfo) {
	r.logger.Debug("archive batch started", logging.Int("files", s.TotalFiles))
}

func (r *logReporter) FileProgress(s draptolib.FileProgressContext) {
	r.logger.Debug("archive file", logging.Int("current", s.CurrentFile), logging.Int("total", s.TotalFiles))
}

func (r *logReporter) BatchComplete(s draptolib.BatchSummary) {
	r.logger.Debug("archive batch complete", logging.Int("succeeded", s.SuccessfulCount), logging.Int("total", s.TotalFiles))
}

var _ draptolib.Reporter = (*logReporter)(nil)
