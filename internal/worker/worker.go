package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"lyricsync/internal/align"
	"lyricsync/internal/export"
	"lyricsync/internal/ffmpeg"
	"lyricsync/internal/segment"
	"lyricsync/internal/session"
	"lyricsync/internal/transcribe"
)

// Media prepares an input for transcription.
type Media interface {
	ExtractAudio(ctx context.Context, path string) (string, error)
	LogMediaInfo(ctx context.Context, path string) *ffmpeg.MediaInfo
}

// Committer stores a finished alignment.
type Committer interface {
	Create(ctx context.Context, meta session.Meta, segs []segment.Segment) (*session.Session, error)
}

const defaultHeartbeat = 10 * time.Second

// Options configures a single alignment run.
type Options struct {
	InputPath string
	// Lines are the non-empty lyric lines. None aligns in word-only mode.
	Lines []string

	Formats []string
	// OutputDir receives exports; empty writes them next to the input.
	OutputDir string

	Media    Media
	Producer transcribe.Producer
	// Sessions is optional; nil skips the commit.
	Sessions Committer

	Heartbeat time.Duration
	// Progress receives the live line counter; nil disables it.
	Progress io.Writer
}

// Result describes a finished run.
type Result struct {
	InputPath string
	SessionID string
	Mode      string
	Segments  []segment.Segment
	Written   []string
}

// Run extracts audio, transcribes it, aligns the lyrics, commits the result
// and exports it. Export failures are returned joined alongside a non-nil
// Result; any earlier failure returns no Result.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Media == nil || opts.Producer == nil {
		return nil, errors.New("worker requires media tool and producer")
	}
	inputPath := opts.InputPath
	if info, err := os.Stat(inputPath); err != nil {
		return nil, fmt.Errorf("input: %w", err)
	} else if info.IsDir() {
		return nil, fmt.Errorf("input %s is a directory", inputPath)
	}

	slog.Info("processing file", "input", filepath.Base(inputPath))
	opts.Media.LogMediaInfo(ctx, inputPath)

	audioPath, err := opts.Media.ExtractAudio(ctx, inputPath)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	words, err := transcribeWithHeartbeat(ctx, opts.Producer, audioPath, opts.Heartbeat)
	if err != nil {
		return nil, err
	}
	slog.Info("transcription complete", "words", len(words))

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lines := opts.Lines
	mode := session.ModeLyrics
	if len(lines) == 0 {
		mode = session.ModeWords
	}
	obs := newProgress(filepath.Base(inputPath), expectedTotal(lines, words), opts.Progress)
	segs := align.Align(words, lines, obs)
	obs.finish(len(segs))

	res := &Result{InputPath: inputPath, Mode: mode, Segments: segs}

	if opts.Sessions != nil {
		sess, err := opts.Sessions.Create(ctx, session.Meta{
			SourcePath: absPath(inputPath),
			AudioPath:  absPath(audioPath),
			Mode:       mode,
		}, segs)
		if err != nil {
			return nil, fmt.Errorf("commit session: %w", err)
		}
		res.SessionID = sess.ID
		slog.Info("session saved", "id", sess.ID, "segments", len(segs))
	}

	res.Written, err = Export(segs, OutputBase(inputPath, opts.OutputDir), opts.Formats)
	return res, err
}

// Export writes segs as each format to base plus the format's extension.
func Export(segs []segment.Segment, base string, formats []string) ([]string, error) {
	targets, err := export.Targets(base, formats)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(base), 0o755); err != nil {
		return nil, fmt.Errorf("%w: %w", export.ErrExport, err)
	}
	written, err := export.WriteAll(targets, segs)
	for _, path := range written {
		slog.Info("export saved", "path", path)
	}
	return written, err
}

// OutputBase is the export path without extension for an input file.
func OutputBase(inputPath, outputDir string) string {
	base := inputPath[:len(inputPath)-len(filepath.Ext(inputPath))]
	if outputDir == "" {
		return base
	}
	return filepath.Join(outputDir, filepath.Base(base))
}

func expectedTotal(lines []string, words []transcribe.Word) int {
	if len(lines) == 0 {
		return len(words)
	}
	return len(lines)
}

type outcome struct {
	words []transcribe.Word
	err   error
}

// transcribeWithHeartbeat runs the producer on its own goroutine and logs
// elapsed time until it finishes or ctx is done.
func transcribeWithHeartbeat(ctx context.Context, p transcribe.Producer, audioPath string, every time.Duration) ([]transcribe.Word, error) {
	if every <= 0 {
		every = defaultHeartbeat
	}
	done := make(chan outcome, 1)
	go func() {
		words, err := p.Transcribe(ctx, audioPath)
		done <- outcome{words: words, err: err}
	}()

	start := time.Now()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case out := <-done:
			if out.err != nil {
				return nil, out.err
			}
			return out.words, nil
		case <-ticker.C:
			slog.Info("transcribing", "audio", filepath.Base(audioPath), "elapsed", time.Since(start).Round(time.Second))
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
