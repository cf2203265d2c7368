package ffmpeg

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

type fakeRunner struct {
	calls [][]string
	err   error
	out   []byte
}

func (f *fakeRunner) run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.err != nil {
		return f.out, f.err
	}
	// Last argument is the output file.
	if err := os.WriteFile(args[len(args)-1], []byte("RIFF"), 0o644); err != nil {
		return nil, err
	}
	return f.out, nil
}

func newTestTool(fr *fakeRunner) *Tool {
	return New("ffmpeg", "ffprobe").WithCommandRunner(fr.run, fr.run)
}

func TestExtractAudio(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(video, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}
	fr := &fakeRunner{}
	tool := newTestTool(fr)

	got, err := tool.ExtractAudio(context.Background(), video)
	if err != nil {
		t.Fatalf("ExtractAudio: %v", err)
	}
	if want := filepath.Join(dir, "clip.wav"); got != want {
		t.Errorf("path = %q, want %q", got, want)
	}
	if _, err := os.Stat(got); err != nil {
		t.Errorf("audio not written: %v", err)
	}
	if len(fr.calls) != 1 {
		t.Fatalf("ffmpeg called %d times, want 1", len(fr.calls))
	}
	args := fr.calls[0]
	for _, want := range []string{"-ac", "1", "-ar", "16000", "pcm_s16le", video} {
		if !slices.Contains(args, want) {
			t.Errorf("args %v missing %q", args, want)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "clip.partial.wav")); !os.IsNotExist(err) {
		t.Error("partial file left behind")
	}
}

func TestExtractAudio_Idempotent(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "clip.mkv")
	if err := os.WriteFile(filepath.Join(dir, "clip.wav"), []byte("RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}
	fr := &fakeRunner{}
	got, err := newTestTool(fr).ExtractAudio(context.Background(), video)
	if err != nil {
		t.Fatalf("ExtractAudio: %v", err)
	}
	if got != filepath.Join(dir, "clip.wav") {
		t.Errorf("path = %q", got)
	}
	if len(fr.calls) != 0 {
		t.Errorf("ffmpeg ran %d times for an existing target", len(fr.calls))
	}
}

func TestExtractAudio_Failure(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "broken.mp4")
	fr := &fakeRunner{err: errors.New("exit status 1"), out: []byte("moov atom not found\n")}
	_, err := newTestTool(fr).ExtractAudio(context.Background(), video)
	if !errors.Is(err, ErrExtraction) {
		t.Fatalf("err = %v, want ErrExtraction", err)
	}
	if got := err.Error(); !strings.Contains(got, "moov atom not found") {
		t.Errorf("error %q does not carry ffmpeg output", got)
	}
	if _, err := os.Stat(AudioPath(video)); !os.IsNotExist(err) {
		t.Error("failed extraction left an audio file")
	}
}

func TestExtractAudio_AudioPassthrough(t *testing.T) {
	fr := &fakeRunner{}
	got, err := newTestTool(fr).ExtractAudio(context.Background(), "/music/song.mp3")
	if err != nil || got != "/music/song.mp3" {
		t.Errorf("got %q, %v", got, err)
	}
	if len(fr.calls) != 0 {
		t.Error("ffmpeg ran for an audio input")
	}
}

func TestProbeMedia(t *testing.T) {
	probe := func(_ context.Context, name string, args ...string) ([]byte, error) {
		return []byte(`{"format":{"duration":"185.25"},"streams":[{"codec_name":"aac"}]}`), nil
	}
	tool := New("", "").WithCommandRunner(nil, probe)
	info, err := tool.ProbeMedia(context.Background(), "x.mp4")
	if err != nil {
		t.Fatalf("ProbeMedia: %v", err)
	}
	if info.Duration != 185.25 || info.Codec != "aac" {
		t.Errorf("info = %+v", info)
	}
}

func TestProbeMedia_NoAudio(t *testing.T) {
	probe := func(_ context.Context, name string, args ...string) ([]byte, error) {
		return []byte(`{"format":{"duration":"10"},"streams":[]}`), nil
	}
	if _, err := New("", "").WithCommandRunner(nil, probe).ProbeMedia(context.Background(), "x.mp4"); err == nil {
		t.Error("expected error for media without audio")
	}
}

func TestIsVideoExtension(t *testing.T) {
	for _, ext := range []string{".mp4", ".MKV", ".webm"} {
		if !IsVideoExtension(ext) {
			t.Errorf("IsVideoExtension(%q) = false", ext)
		}
	}
	for _, ext := range []string{".wav", ".mp3", ""} {
		if IsVideoExtension(ext) {
			t.Errorf("IsVideoExtension(%q) = true", ext)
		}
	}
}
