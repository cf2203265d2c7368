package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// WhisperX launch constants.
const (
	whisperXCUDAIndexURL = "https://download.pytorch.org/whl/cu128"
	whisperXPypiIndexURL = "https://pypi.org/simple"
	whisperXBatchSize    = "4"
	whisperXChunkSize    = "15"
	whisperXVADOnset     = "0.08"
	whisperXVADOffset    = "0.07"
	whisperXBeamSize     = "5"

	VADMethodSilero   = "silero"
	VADMethodPyannote = "pyannote"
)

// WhisperXOptions configures the WhisperX backend.
type WhisperXOptions struct {
	Command     string
	Model       string
	Language    string
	VADMethod   string
	HFToken     string
	CUDAEnabled bool
	// ScratchDir receives WhisperX output. Empty means a temporary directory
	// removed after the run.
	ScratchDir string
}

// WhisperX transcribes with whisperx launched through uvx.
type WhisperX struct {
	opts WhisperXOptions
	run  CommandRunner
}

// NewWhisperX returns a WhisperX backend.
func NewWhisperX(opts WhisperXOptions) *WhisperX {
	if opts.Command == "" {
		opts.Command = "uvx"
	}
	if opts.Model == "" {
		opts.Model = "large-v3"
	}
	if opts.VADMethod == "" {
		opts.VADMethod = VADMethodSilero
	}
	return &WhisperX{opts: opts, run: execRunner}
}

// WithCommandRunner sets a custom command runner (for testing).
func (w *WhisperX) WithCommandRunner(run CommandRunner) *WhisperX {
	w.run = run
	return w
}

type whisperXWord struct {
	Word  string   `json:"word"`
	Start *float64 `json:"start"`
	End   *float64 `json:"end"`
}

type whisperXPayload struct {
	Segments []struct {
		Words []whisperXWord `json:"words"`
	} `json:"segments"`
}

// Transcribe implements Producer.
func (w *WhisperX) Transcribe(ctx context.Context, audioPath string) ([]Word, error) {
	outputDir := w.opts.ScratchDir
	if outputDir == "" {
		dir, err := os.MkdirTemp("", "lyricsync-whisperx-*")
		if err != nil {
			return nil, failure(BackendWhisperX, err)
		}
		defer os.RemoveAll(dir)
		outputDir = dir
	} else if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, failure(BackendWhisperX, fmt.Errorf("ensure scratch dir: %w", err))
	}

	slog.Info("transcribing", "backend", BackendWhisperX, "model", w.opts.Model, "vad_method", w.opts.VADMethod, "cuda", w.opts.CUDAEnabled)

	if _, err := w.run(ctx, w.opts.Command, w.buildArgs(audioPath, outputDir)...); err != nil {
		return nil, failure(BackendWhisperX, err)
	}

	baseName := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	data, err := os.ReadFile(filepath.Join(outputDir, baseName+".json"))
	if err != nil {
		return nil, failure(BackendWhisperX, fmt.Errorf("read output: %w", err))
	}
	words, err := parseWhisperX(data)
	if err != nil {
		return nil, failure(BackendWhisperX, err)
	}
	return words, nil
}

func parseWhisperX(data []byte) ([]Word, error) {
	var payload whisperXPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse whisperx json: %w", err)
	}
	var words []Word
	dropped := 0
	for _, seg := range payload.Segments {
		for _, ww := range seg.Words {
			// Alignment leaves numerals and symbols without timing.
			if ww.Start == nil || ww.End == nil {
				dropped++
				continue
			}
			words = append(words, Word{Start: *ww.Start, End: *ww.End, Text: ww.Word})
		}
	}
	if dropped > 0 {
		slog.Debug("dropped untimed words", "count", dropped)
	}
	return cleanWords(words), nil
}

func (w *WhisperX) buildArgs(source, outputDir string) []string {
	args := make([]string, 0, 32)

	if w.opts.CUDAEnabled {
		args = append(args,
			"--index-url", whisperXCUDAIndexURL,
			"--extra-index-url", whisperXPypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", whisperXPypiIndexURL)
	}

	args = append(args,
		"whisperx",
		source,
		"--model", w.opts.Model,
		"--batch_size", whisperXBatchSize,
		"--output_dir", outputDir,
		"--output_format", "json",
		"--chunk_size", whisperXChunkSize,
		"--vad_onset", whisperXVADOnset,
		"--vad_offset", whisperXVADOffset,
		"--beam_size", whisperXBeamSize,
		"--vad_method", w.opts.VADMethod,
	)
	if w.opts.VADMethod == VADMethodPyannote && w.opts.HFToken != "" {
		args = append(args, "--hf_token", w.opts.HFToken)
	}
	if w.opts.Language != "" {
		args = append(args, "--language", w.opts.Language)
	}

	if w.opts.CUDAEnabled {
		args = append(args, "--device", "cuda")
	} else {
		args = append(args, "--device", "cpu", "--compute_type", "float32")
	}
	return args
}
