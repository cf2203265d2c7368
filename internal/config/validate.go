package config

import (
	"errors"
	"fmt"
	"slices"
)

var (
	validBackends  = []string{BackendFasterWhisper, BackendWhisperX, BackendScribe, BackendSherpa}
	validFormats   = []string{"lrc", "srt", "txt"}
	validLogLevels = []string{"debug", "info", "warn", "error"}
	validVADMethod = []string{"silero", "pyannote"}
)

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Paths.SessionDB == "" {
		errs = append(errs, errors.New("paths.session_db must be set"))
	}
	if !slices.Contains(validBackends, c.Transcription.Backend) {
		errs = append(errs, fmt.Errorf("transcription.backend %q must be one of %v", c.Transcription.Backend, validBackends))
	}
	if c.Transcription.BeamSize < 1 {
		errs = append(errs, fmt.Errorf("transcription.beam_size must be positive, got %d", c.Transcription.BeamSize))
	}
	if !slices.Contains(validVADMethod, c.WhisperX.VADMethod) {
		errs = append(errs, fmt.Errorf("whisperx.vad_method %q must be one of %v", c.WhisperX.VADMethod, validVADMethod))
	}
	if c.Transcription.Backend == BackendScribe && c.Scribe.APIKey == "" {
		errs = append(errs, errors.New("scribe.api_key (or ELEVENLABS_API_KEY) is required for the scribe backend"))
	}
	if c.Transcription.Backend == BackendSherpa && c.Sherpa.ModelDir == "" {
		errs = append(errs, errors.New("sherpa.model_dir is required for the sherpa backend"))
	}
	if c.Scribe.TimeoutSeconds < 1 {
		errs = append(errs, fmt.Errorf("scribe.timeout_seconds must be positive, got %d", c.Scribe.TimeoutSeconds))
	}
	if c.Sherpa.SampleRate < 1 || c.Sherpa.NumThreads < 1 {
		errs = append(errs, errors.New("sherpa.sample_rate and sherpa.num_threads must be positive"))
	}
	if len(c.Export.Formats) == 0 {
		errs = append(errs, errors.New("export.formats must list at least one format"))
	}
	for _, f := range c.Export.Formats {
		if !slices.Contains(validFormats, f) {
			errs = append(errs, fmt.Errorf("export.formats: unknown format %q", f))
		}
	}
	if c.Batch.MaxConcurrent < 1 {
		errs = append(errs, fmt.Errorf("batch.max_concurrent must be positive, got %d", c.Batch.MaxConcurrent))
	}
	if c.Batch.RateLimitPerMin < 0 {
		errs = append(errs, fmt.Errorf("batch.rate_limit_per_min must not be negative, got %d", c.Batch.RateLimitPerMin))
	}
	if !slices.Contains(validLogLevels, c.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level %q must be one of %v", c.Logging.Level, validLogLevels))
	}

	return errors.Join(errs...)
}
