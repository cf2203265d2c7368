package transcribe

import (
	"fmt"
	"time"

	"lyricsync/internal/config"
)

// Backend names, as accepted by transcription.backend.
const (
	BackendFasterWhisper = config.BackendFasterWhisper
	BackendWhisperX      = config.BackendWhisperX
	BackendScribe        = config.BackendScribe
	BackendSherpa        = config.BackendSherpa
)

// New builds the Producer selected by cfg.Transcription.Backend.
func New(cfg *config.Config, progress ProgressFunc) (Producer, error) {
	t := cfg.Transcription
	switch t.Backend {
	case BackendFasterWhisper, "":
		return NewFasterWhisper(FasterWhisperOptions{
			Python:      t.Python,
			Model:       t.Model,
			Device:      t.Device,
			ComputeType: t.ComputeType,
			BeamSize:    t.BeamSize,
			VADFilter:   t.VADFilter,
			Language:    t.Language,
		}), nil
	case BackendWhisperX:
		return NewWhisperX(WhisperXOptions{
			Command:     cfg.WhisperX.Command,
			Model:       cfg.WhisperX.Model,
			Language:    t.Language,
			VADMethod:   cfg.WhisperX.VADMethod,
			HFToken:     cfg.WhisperX.HFToken,
			CUDAEnabled: cfg.WhisperX.CUDAEnabled,
			ScratchDir:  cfg.Paths.ScratchDir,
		}), nil
	case BackendScribe:
		return NewScribe(ScribeOptions{
			APIKey:   cfg.Scribe.APIKey,
			BaseURL:  cfg.Scribe.BaseURL,
			ModelID:  cfg.Scribe.ModelID,
			Language: t.Language,
			Timeout:  time.Duration(cfg.Scribe.TimeoutSeconds) * time.Second,
			Progress: progress,
		}), nil
	case BackendSherpa:
		vadModel := cfg.Sherpa.VADModel
		if !t.VADFilter {
			vadModel = ""
		}
		return NewSherpa(SherpaOptions{
			ModelDir:   cfg.Sherpa.ModelDir,
			VADModel:   vadModel,
			Language:   t.Language,
			NumThreads: cfg.Sherpa.NumThreads,
			SampleRate: cfg.Sherpa.SampleRate,
			FFmpeg:     cfg.Paths.FFmpeg,
		}), nil
	default:
		return nil, fmt.Errorf("unknown transcription backend %q", t.Backend)
	}
}
