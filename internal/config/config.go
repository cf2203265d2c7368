package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths holds file locations.
type Paths struct {
	SessionDB  string `toml:"session_db"`
	ScratchDir string `toml:"scratch_dir"`
	FFmpeg     string `toml:"ffmpeg"`
	FFprobe    string `toml:"ffprobe"`
}

// Transcription selects and tunes the speech recognition backend.
type Transcription struct {
	// Backend is one of "faster-whisper", "whisperx", "scribe", "sherpa".
	Backend     string `toml:"backend"`
	Model       string `toml:"model"`
	Language    string `toml:"language"`
	VADFilter   bool   `toml:"vad_filter"`
	Device      string `toml:"device"`
	ComputeType string `toml:"compute_type"`
	BeamSize    int    `toml:"beam_size"`
	Python      string `toml:"python"`
}

// WhisperX configures the uvx-launched WhisperX backend.
type WhisperX struct {
	Command     string `toml:"command"`
	Model       string `toml:"model"`
	VADMethod   string `toml:"vad_method"`
	CUDAEnabled bool   `toml:"cuda_enabled"`
	HFToken     string `toml:"hf_token"`
}

// Scribe configures the ElevenLabs speech-to-text backend.
type Scribe struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	ModelID        string `toml:"model_id"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Sherpa configures the in-process sherpa-onnx backend.
type Sherpa struct {
	ModelDir   string `toml:"model_dir"`
	VADModel   string `toml:"vad_model"`
	NumThreads int    `toml:"num_threads"`
	SampleRate int    `toml:"sample_rate"`
}

// Export lists the formats written after alignment.
type Export struct {
	Formats   []string `toml:"formats"`
	OutputDir string   `toml:"output_dir"`
}

// Batch tunes multi-file runs.
type Batch struct {
	MaxConcurrent int `toml:"max_concurrent"`
	// RateLimitPerMin caps transcription starts per minute; 0 disables it.
	RateLimitPerMin int `toml:"rate_limit_per_min"`
}

// Logging configures log output.
type Logging struct {
	Level string `toml:"level"`
}

// Config holds the full application configuration.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Transcription Transcription `toml:"transcription"`
	WhisperX      WhisperX      `toml:"whisperx"`
	Scribe        Scribe        `toml:"scribe"`
	Sherpa        Sherpa        `toml:"sherpa"`
	Export        Export        `toml:"export"`
	Batch         Batch         `toml:"batch"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the per-user config file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/lyricsync/config.toml")
}

// Load reads the configuration. A .env file in the working directory is
// loaded first; environment overrides apply after the TOML file. A missing
// config file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, err
	}
	if exists {
		file, err := os.Open(resolved)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		if err := toml.NewDecoder(file).DisallowUnknownFields().Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", resolved, err)
		}
	}

	cfg.applyEnv(os.LookupEnv)
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		if env, ok := os.LookupEnv("LYRICSYNC_CONFIG"); ok {
			path = env
		}
	}
	if path == "" {
		def, err := DefaultConfigPath()
		if err != nil {
			return "", false, err
		}
		path = def
	}
	expanded, err := expandPath(path)
	if err != nil {
		return "", false, err
	}
	info, err := os.Stat(expanded)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("config path %s is a directory", expanded)
	}
	return expanded, true, nil
}

// CreateSample writes the commented sample configuration to path.
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

// ExpandPath resolves a leading ~ and makes the path absolute.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
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
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}
