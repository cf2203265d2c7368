package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"lyricsync/internal/export"
	"lyricsync/internal/ffmpeg"
	"lyricsync/internal/segment"
	"lyricsync/internal/session"
	"lyricsync/internal/transcribe"
)

type fakeMedia struct {
	err error
}

func (f fakeMedia) ExtractAudio(_ context.Context, path string) (string, error) {
	if f.err != nil {
		return "", fmt.Errorf("%w: %s", ffmpeg.ErrExtraction, f.err)
	}
	return ffmpeg.AudioPath(path), nil
}

func (fakeMedia) LogMediaInfo(context.Context, string) *ffmpeg.MediaInfo { return nil }

type fakeProducer struct {
	words []transcribe.Word
	err   error
	delay time.Duration
	// failFor makes transcription fail for audio paths containing it.
	failFor string
}

func (f fakeProducer) Transcribe(ctx context.Context, audioPath string) ([]transcribe.Word, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.failFor != "" && strings.Contains(audioPath, f.failFor) {
		return nil, fmt.Errorf("%w: fake: no speech", transcribe.ErrTranscription)
	}
	return f.words, nil
}

type fakeSessions struct {
	mu      sync.Mutex
	created []session.Meta
}

func (f *fakeSessions) Create(_ context.Context, meta session.Meta, segs []segment.Segment) (*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, meta)
	return &session.Session{ID: fmt.Sprintf("sess-%d", len(f.created)), Meta: meta, Segments: segs}, nil
}

var helloWords = []transcribe.Word{
	{Start: 0.0, End: 0.5, Text: "Hello"},
	{Start: 0.5, End: 1.0, Text: "there"},
	{Start: 1.2, End: 1.6, Text: "general"},
	{Start: 1.6, End: 2.4, Text: "kenobi"},
}

func writeInput(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("media"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun_LyricsMode(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "song.mp4")
	outDir := filepath.Join(dir, "out")
	sessions := &fakeSessions{}
	var live bytes.Buffer

	res, err := Run(context.Background(), Options{
		InputPath: input,
		Lines:     []string{"Hello there!", "General Kenobi"},
		Formats:   []string{"lrc", "srt", "txt"},
		OutputDir: outDir,
		Media:     fakeMedia{},
		Producer:  fakeProducer{words: helloWords},
		Sessions:  sessions,
		Progress:  &live,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []segment.Segment{
		{Start: 0.0, End: 1.0, Text: "Hello there!"},
		{Start: 1.2, End: 2.4, Text: "General Kenobi"},
	}
	if !slices.Equal(res.Segments, want) {
		t.Errorf("segments = %+v, want %+v", res.Segments, want)
	}
	if res.Mode != session.ModeLyrics || res.SessionID != "sess-1" {
		t.Errorf("mode/session = %q/%q", res.Mode, res.SessionID)
	}
	if len(sessions.created) != 1 || !strings.HasSuffix(sessions.created[0].AudioPath, "song.wav") {
		t.Errorf("committed = %+v", sessions.created)
	}
	if len(res.Written) != 3 {
		t.Fatalf("written = %v", res.Written)
	}
	lrc, err := os.ReadFile(filepath.Join(outDir, "song.lrc"))
	if err != nil {
		t.Fatal(err)
	}
	if got := string(lrc); got != "[00:00.00]Hello there!\n[00:01.20]General Kenobi\n" {
		t.Errorf("lrc = %q", got)
	}
	if !strings.Contains(live.String(), "song.mp4: 2/2") {
		t.Errorf("live progress = %q", live.String())
	}
}

func TestRun_WordOnlyMode(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "song.wav")

	res, err := Run(context.Background(), Options{
		InputPath: input,
		Formats:   []string{"txt"},
		Media:     fakeMedia{},
		Producer:  fakeProducer{words: helloWords},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Mode != session.ModeWords || len(res.Segments) != len(helloWords) {
		t.Fatalf("res = %+v", res)
	}
	if res.SessionID != "" {
		t.Errorf("session committed without a store: %q", res.SessionID)
	}
	txt, err := os.ReadFile(filepath.Join(dir, "song.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(txt) != "Hello\nthere\ngeneral\nkenobi\n" {
		t.Errorf("txt = %q", txt)
	}
}

func TestRun_ExtractionFailure(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "clip.mkv")
	sessions := &fakeSessions{}

	res, err := Run(context.Background(), Options{
		InputPath: input,
		Formats:   []string{"lrc"},
		Media:     fakeMedia{err: errors.New("no audio stream")},
		Producer:  fakeProducer{words: helloWords},
		Sessions:  sessions,
	})
	if !errors.Is(err, ffmpeg.ErrExtraction) {
		t.Fatalf("err = %v, want ErrExtraction", err)
	}
	if res != nil || len(sessions.created) != 0 {
		t.Error("failed run produced output")
	}
}

func TestRun_TranscriptionFailureCommitsNothing(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "song.wav")
	sessions := &fakeSessions{}

	_, err := Run(context.Background(), Options{
		InputPath: input,
		Formats:   []string{"lrc"},
		Media:     fakeMedia{},
		Producer:  fakeProducer{err: fmt.Errorf("%w: boom", transcribe.ErrTranscription)},
		Sessions:  sessions,
	})
	if !errors.Is(err, transcribe.ErrTranscription) {
		t.Fatalf("err = %v, want ErrTranscription", err)
	}
	if len(sessions.created) != 0 {
		t.Error("session committed after failed transcription")
	}
	if _, err := os.Stat(filepath.Join(dir, "song.lrc")); !os.IsNotExist(err) {
		t.Error("export written after failed transcription")
	}
}

func TestRun_CancelDuringTranscription(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "song.wav")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := Run(ctx, Options{
		InputPath: input,
		Formats:   []string{"lrc"},
		Media:     fakeMedia{},
		Producer:  fakeProducer{words: helloWords, delay: 10 * time.Second},
		Heartbeat: 10 * time.Millisecond,
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
}

func TestRun_HeartbeatWhileTranscribing(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "song.wav")
	res, err := Run(context.Background(), Options{
		InputPath: input,
		Formats:   []string{"txt"},
		Media:     fakeMedia{},
		Producer:  fakeProducer{words: helloWords, delay: 40 * time.Millisecond},
		Heartbeat: 5 * time.Millisecond,
	})
	if err != nil || len(res.Segments) != 4 {
		t.Fatalf("Run = %+v, %v", res, err)
	}
}

func TestRun_ExportFailureKeepsSession(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "song.wav")
	blocker := writeInput(t, dir, "not-a-dir")

	res, err := Run(context.Background(), Options{
		InputPath: input,
		Formats:   []string{"lrc", "srt"},
		OutputDir: filepath.Join(blocker, "out"),
		Media:     fakeMedia{},
		Producer:  fakeProducer{words: helloWords},
		Sessions:  &fakeSessions{},
	})
	if !errors.Is(err, export.ErrExport) {
		t.Fatalf("err = %v, want ErrExport", err)
	}
	if res == nil || res.SessionID == "" {
		t.Fatalf("session lost on export failure: %+v", res)
	}
}

func TestRun_MissingInput(t *testing.T) {
	_, err := Run(context.Background(), Options{
		InputPath: filepath.Join(t.TempDir(), "missing.mp4"),
		Media:     fakeMedia{},
		Producer:  fakeProducer{},
	})
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want ErrNotExist", err)
	}
}

func TestOutputBase(t *testing.T) {
	tests := []struct {
		input, dir, want string
	}{
		{"/music/song.mp4", "", "/music/song"},
		{"/music/song.mp4", "/out", "/out/song"},
		{"/music/noext", "", "/music/noext"},
	}
	for _, tt := range tests {
		if got := OutputBase(tt.input, tt.dir); got != filepath.FromSlash(tt.want) {
			t.Errorf("OutputBase(%q, %q) = %q, want %q", tt.input, tt.dir, got, tt.want)
		}
	}
}

func TestRunBatch(t *testing.T) {
	for _, noAsync := range []bool{true, false} {
		t.Run(fmt.Sprintf("noAsync=%v", noAsync), func(t *testing.T) {
			dir := t.TempDir()
			jobs := []Job{
				{InputPath: writeInput(t, dir, "a.wav"), Lines: []string{"Hello there"}},
				{InputPath: writeInput(t, dir, "bad.wav")},
				{InputPath: writeInput(t, dir, "c.wav")},
			}
			sessions := &fakeSessions{}
			results, err := RunBatch(context.Background(), jobs, BatchOptions{
				Base: Options{
					Formats:  []string{"txt"},
					Media:    fakeMedia{},
					Producer: fakeProducer{words: helloWords, failFor: "bad"},
					Sessions: sessions,
				},
				MaxConcurrent: 2,
				NoAsync:       noAsync,
			})
			if !errors.Is(err, transcribe.ErrTranscription) {
				t.Fatalf("err = %v, want ErrTranscription", err)
			}
			if !strings.Contains(err.Error(), "bad.wav") {
				t.Errorf("error %q does not name the failed input", err)
			}
			if len(results) != 3 || results[0] == nil || results[1] != nil || results[2] == nil {
				t.Fatalf("results = %+v", results)
			}
			if results[0].Mode != session.ModeLyrics || results[2].Mode != session.ModeWords {
				t.Errorf("modes = %q, %q", results[0].Mode, results[2].Mode)
			}
			if len(sessions.created) != 2 {
				t.Errorf("committed %d sessions, want 2", len(sessions.created))
			}
			for _, name := range []string{"a.txt", "c.txt"} {
				if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
					t.Errorf("%s not exported: %v", name, err)
				}
			}
		})
	}
}

func TestProgressCounter(t *testing.T) {
	var buf bytes.Buffer
	p := newProgress("song.mp4", 2, &buf)
	p.OnProgress([]segment.Segment{{Text: "a"}})
	p.OnProgress([]segment.Segment{{Text: "a"}, {Text: "b"}})
	p.finish(2)
	if got, want := buf.String(), "\rsong.mp4: 1/2\rsong.mp4: 2/2\n"; got != want {
		t.Errorf("counter = %q, want %q", got, want)
	}

	silent := newProgress("x", 1, nil)
	silent.OnProgress(nil)
	silent.finish(0)
}
