package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrExtraction marks a failed audio extraction.
var ErrExtraction = errors.New("audio extraction failed")

// SampleRate is the rate of extracted audio, in Hz.
const SampleRate = 16000

// MediaInfo holds duration and codec information from ffprobe.
type MediaInfo struct {
	Duration float64
	Codec    string
}

// Runner executes a command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Tool wraps the ffmpeg and ffprobe binaries.
type Tool struct {
	ffmpeg  string
	ffprobe string
	run     Runner
	probe   Runner
}

// New returns a Tool using the given binaries. Empty names fall back to
// "ffmpeg" and "ffprobe" on the PATH.
func New(ffmpegBinary, ffprobeBinary string) *Tool {
	if ffmpegBinary == "" {
		ffmpegBinary = "ffmpeg"
	}
	if ffprobeBinary == "" {
		ffprobeBinary = "ffprobe"
	}
	return &Tool{
		ffmpeg:  ffmpegBinary,
		ffprobe: ffprobeBinary,
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput() //nolint:gosec
		},
		probe: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output() //nolint:gosec
		},
	}
}

// WithCommandRunner replaces command execution (for testing). run serves
// ffmpeg, probe serves ffprobe.
func (t *Tool) WithCommandRunner(run, probe Runner) *Tool {
	t.run = run
	t.probe = probe
	return t
}

// Available returns true if ffmpeg is on the PATH.
func (t *Tool) Available() bool {
	_, err := exec.LookPath(t.ffmpeg)
	return err == nil
}

// probeOutput mirrors ffprobe JSON structure.
type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecName string `json:"codec_name"`
	} `json:"streams"`
}

// ProbeMedia uses ffprobe to get media duration and audio codec.
func (t *Tool) ProbeMedia(ctx context.Context, path string) (*MediaInfo, error) {
	out, err := t.probe(ctx,
		t.ffprobe,
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=codec_name:format=duration",
		"-of", "json",
		path,
	)
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	var probe probeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return nil, fmt.Errorf("ffprobe JSON parse error: %w", err)
	}
	if len(probe.Streams) == 0 {
		return nil, fmt.Errorf("no audio stream in %s", filepath.Base(path))
	}

	dur, _ := strconv.ParseFloat(probe.Format.Duration, 64)

	codec := "N/A"
	if probe.Streams[0].CodecName != "" {
		codec = probe.Streams[0].CodecName
	}

	return &MediaInfo{Duration: dur, Codec: codec}, nil
}

// AudioPath returns where ExtractAudio writes the audio for videoPath.
func AudioPath(videoPath string) string {
	return strings.TrimSuffix(videoPath, filepath.Ext(videoPath)) + ".wav"
}

// ExtractAudio writes the audio of videoPath as a mono 16 kHz PCM WAV next to
// it and returns that path. An existing WAV is reused without running ffmpeg.
// Audio-only inputs are returned unchanged.
func (t *Tool) ExtractAudio(ctx context.Context, videoPath string) (string, error) {
	if !IsVideoExtension(filepath.Ext(videoPath)) {
		return videoPath, nil
	}

	audioPath := AudioPath(videoPath)
	if info, err := os.Stat(audioPath); err == nil && !info.IsDir() {
		slog.Debug("reusing extracted audio", "audio", filepath.Base(audioPath))
		return audioPath, nil
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: stat %s: %w", ErrExtraction, audioPath, err)
	}

	slog.Info("extracting audio", "input", filepath.Base(videoPath), "output", filepath.Base(audioPath))

	// Write to a temp name so an interrupted run never leaves a WAV that the
	// next run would reuse.
	partial := strings.TrimSuffix(audioPath, ".wav") + ".partial.wav"
	out, err := t.run(ctx,
		t.ffmpeg,
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", videoPath,
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", strconv.Itoa(SampleRate),
		"-c:a", "pcm_s16le",
		partial,
	)
	if err != nil {
		_ = os.Remove(partial)
		return "", fmt.Errorf("%w: %s: %w: %s", ErrExtraction, filepath.Base(videoPath), err, strings.TrimSpace(string(out)))
	}
	if err := os.Rename(partial, audioPath); err != nil {
		_ = os.Remove(partial)
		return "", fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	return audioPath, nil
}

// IsVideoExtension returns true for common video file extensions.
func IsVideoExtension(ext string) bool {
	switch strings.ToLower(ext) {
	case ".mp4", ".mkv", ".mov", ".avi", ".flv", ".webm", ".m4v":
		return true
	}
	return false
}

// IsAudioExtension returns true for audio files the backends accept directly.
func IsAudioExtension(ext string) bool {
	switch strings.ToLower(ext) {
	case ".wav", ".mp3", ".m4a", ".flac", ".ogg", ".aac", ".opus":
		return true
	}
	return false
}

// LogMediaInfo logs file size and media information.
func (t *Tool) LogMediaInfo(ctx context.Context, path string) *MediaInfo {
	stat, err := os.Stat(path)
	if err != nil {
		slog.Warn("cannot stat file", "path", path, "err", err)
		return nil
	}

	sizeMB := float64(stat.Size()) / (1024 * 1024)
	msg := fmt.Sprintf("file size: %.2f MB", sizeMB)

	info, err := t.ProbeMedia(ctx, path)
	if err == nil && info != nil {
		minutes := int(info.Duration) / 60
		seconds := int(info.Duration) % 60
		msg += fmt.Sprintf(" | duration: %02d:%02d | codec: %s", minutes, seconds, info.Codec)
	} else if err != nil {
		slog.Debug("probe failed", "path", filepath.Base(path), "err", err)
	}

	slog.Info(msg)
	return info
}
