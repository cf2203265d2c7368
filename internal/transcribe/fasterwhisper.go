package transcribe

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

//go:embed assets/faster_whisper.py
var fasterWhisperScript []byte

// FasterWhisperOptions tunes the faster-whisper helper.
type FasterWhisperOptions struct {
	Python      string
	Model       string
	Device      string
	ComputeType string
	BeamSize    int
	VADFilter   bool
	Language    string
}

// FasterWhisper runs faster-whisper through an embedded Python helper.
type FasterWhisper struct {
	opts FasterWhisperOptions
	run  CommandRunner
}

// NewFasterWhisper returns a faster-whisper backend.
func NewFasterWhisper(opts FasterWhisperOptions) *FasterWhisper {
	if opts.Python == "" {
		opts.Python = "python3"
	}
	if opts.Model == "" {
		opts.Model = "tiny"
	}
	if opts.Device == "" {
		opts.Device = "cpu"
	}
	if opts.ComputeType == "" {
		opts.ComputeType = "float32"
	}
	if opts.BeamSize <= 0 {
		opts.BeamSize = 5
	}
	return &FasterWhisper{opts: opts, run: execRunner}
}

// WithCommandRunner sets a custom command runner (for testing).
func (f *FasterWhisper) WithCommandRunner(run CommandRunner) *FasterWhisper {
	f.run = run
	return f
}

type fasterWhisperOutput struct {
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Words    []Word  `json:"words"`
}

// Transcribe implements Producer.
func (f *FasterWhisper) Transcribe(ctx context.Context, audioPath string) ([]Word, error) {
	script, err := os.CreateTemp("", "lyricsync-faster-whisper-*.py")
	if err != nil {
		return nil, failure(BackendFasterWhisper, fmt.Errorf("write helper script: %w", err))
	}
	defer os.Remove(script.Name())
	if _, err := script.Write(fasterWhisperScript); err != nil {
		script.Close()
		return nil, failure(BackendFasterWhisper, fmt.Errorf("write helper script: %w", err))
	}
	if err := script.Close(); err != nil {
		return nil, failure(BackendFasterWhisper, fmt.Errorf("write helper script: %w", err))
	}

	slog.Info("transcribing", "backend", BackendFasterWhisper, "model", f.opts.Model, "vad", f.opts.VADFilter)

	out, err := f.run(ctx, f.opts.Python, f.buildArgs(script.Name(), audioPath)...)
	if err != nil {
		return nil, failure(BackendFasterWhisper, err)
	}

	var parsed fasterWhisperOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, failure(BackendFasterWhisper, fmt.Errorf("parse helper output: %w", err))
	}
	slog.Debug("faster-whisper finished", "language", parsed.Language, "duration", parsed.Duration, "words", len(parsed.Words))
	return cleanWords(parsed.Words), nil
}

func (f *FasterWhisper) buildArgs(script, audioPath string) []string {
	args := []string{
		script,
		"--audio", audioPath,
		"--model", f.opts.Model,
		"--device", f.opts.Device,
		"--compute-type", f.opts.ComputeType,
		"--beam-size", strconv.Itoa(f.opts.BeamSize),
	}
	if f.opts.VADFilter {
		args = append(args, "--vad")
	}
	if f.opts.Language != "" {
		args = append(args, "--language", f.opts.Language)
	}
	return args
}
