package config

import (
	"fmt"
	"strconv"
	"strings"
)

// envOverrides maps environment variables onto config fields. Later entries
// win when several are set.
var envOverrides = []struct {
	name  string
	apply func(c *Config, value string)
}{
	{"LYRICSYNC_SESSION_DB", func(c *Config, v string) { c.Paths.SessionDB = v }},
	{"LYRICSYNC_BACKEND", func(c *Config, v string) { c.Transcription.Backend = v }},
	{"LYRICSYNC_MODEL", func(c *Config, v string) { c.Transcription.Model = v }},
	{"LYRICSYNC_PYTHON", func(c *Config, v string) { c.Transcription.Python = v }},
	{"LYRICSYNC_VAD_FILTER", func(c *Config, v string) {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Transcription.VADFilter = b
		}
	}},
	{"ELEVENLABS_API_KEY", func(c *Config, v string) { c.Scribe.APIKey = v }},
	{"LYRICSYNC_SCRIBE_API_KEY", func(c *Config, v string) { c.Scribe.APIKey = v }},
	{"HF_TOKEN", func(c *Config, v string) { c.WhisperX.HFToken = v }},
	{"LYRICSYNC_LOG_LEVEL", func(c *Config, v string) { c.Logging.Level = v }},
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	for _, o := range envOverrides {
		if v, ok := lookup(o.name); ok && strings.TrimSpace(v) != "" {
			o.apply(c, strings.TrimSpace(v))
		}
	}
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.SessionDB, err = expandPath(c.Paths.SessionDB); err != nil {
		return fmt.Errorf("paths.session_db: %w", err)
	}
	if c.Paths.ScratchDir, err = expandPath(c.Paths.ScratchDir); err != nil {
		return fmt.Errorf("paths.scratch_dir: %w", err)
	}
	if c.Sherpa.ModelDir, err = expandPath(c.Sherpa.ModelDir); err != nil {
		return fmt.Errorf("sherpa.model_dir: %w", err)
	}
	if c.Sherpa.VADModel, err = expandPath(c.Sherpa.VADModel); err != nil {
		return fmt.Errorf("sherpa.vad_model: %w", err)
	}
	if c.Export.OutputDir, err = expandPath(c.Export.OutputDir); err != nil {
		return fmt.Errorf("export.output_dir: %w", err)
	}

	c.Transcription.Backend = strings.ToLower(strings.TrimSpace(c.Transcription.Backend))
	c.WhisperX.VADMethod = strings.ToLower(strings.TrimSpace(c.WhisperX.VADMethod))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	for i, f := range c.Export.Formats {
		c.Export.Formats[i] = strings.ToLower(strings.TrimSpace(f))
	}
	if c.Paths.FFmpeg == "" {
		c.Paths.FFmpeg = "ffmpeg"
	}
	if c.Paths.FFprobe == "" {
		c.Paths.FFprobe = "ffprobe"
	}
	return nil
}
