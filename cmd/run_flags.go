package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"lyricsync/internal/ffmpeg"
	"lyricsync/internal/session"
	"lyricsync/internal/transcribe"
	"lyricsync/internal/worker"
)

// runFlags are shared by align and batch.
type runFlags struct {
	backend   string
	model     string
	noVAD     bool
	formats   []string
	outputDir string
	noSession bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.backend, "backend", "", "transcription backend: faster-whisper, whisperx, scribe, sherpa")
	cmd.Flags().StringVar(&f.model, "model", "", "model name for the faster-whisper backend")
	cmd.Flags().BoolVar(&f.noVAD, "no-vad", false, "disable voice activity filtering")
	cmd.Flags().StringSliceVar(&f.formats, "format", nil, "export formats: lrc, srt, txt (default from config)")
	cmd.Flags().StringVarP(&f.outputDir, "output", "o", "", "export directory (default: next to the input)")
	cmd.Flags().BoolVar(&f.noSession, "no-session", false, "do not save the result as a session")
}

// apply folds command-line overrides into the loaded config.
func (f *runFlags) apply(cmd *cobra.Command) error {
	if cmd.Flags().Changed("backend") {
		cfg.Transcription.Backend = f.backend
	}
	if cmd.Flags().Changed("model") {
		cfg.Transcription.Model = f.model
	}
	if f.noVAD {
		cfg.Transcription.VADFilter = false
	}
	if cmd.Flags().Changed("format") {
		cfg.Export.Formats = f.formats
	}
	if cmd.Flags().Changed("output") {
		cfg.Export.OutputDir = f.outputDir
	}
	return cfg.Validate()
}

// baseOptions builds worker options from the config. The returned func
// closes the session store when one was opened.
func (f *runFlags) baseOptions() (worker.Options, func(), error) {
	producer, err := transcribe.New(cfg, uploadProgress)
	if err != nil {
		return worker.Options{}, nil, err
	}

	media := ffmpeg.New(cfg.Paths.FFmpeg, cfg.Paths.FFprobe)
	if !media.Available() {
		slog.Warn("ffmpeg not found, video inputs will fail", "ffmpeg", cfg.Paths.FFmpeg)
	}

	opts := worker.Options{
		Formats:   cfg.Export.Formats,
		OutputDir: cfg.Export.OutputDir,
		Media:     media,
		Producer:  producer,
		Progress:  worker.TerminalProgress(),
	}
	if quiet {
		opts.Progress = nil
	}

	closeFn := func() {}
	if !f.noSession {
		store, err := session.Open(cfg.Paths.SessionDB)
		if err != nil {
			return worker.Options{}, nil, fmt.Errorf("open session store: %w", err)
		}
		opts.Sessions = store
		closeFn = func() { _ = store.Close() }
	}
	return opts, closeFn, nil
}

func uploadProgress(read, total int64) {
	pct := 0.0
	if total > 0 {
		pct = math.Min(float64(read)/float64(total)*100, 100)
	}
	slog.Debug("upload progress", "percent", fmt.Sprintf("%.1f%%", pct))
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
