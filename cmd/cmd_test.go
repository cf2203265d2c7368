package cmd

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"lyricsync/internal/segment"
)

func TestFormatSeconds(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0:00.000"},
		{1.5, "0:01.500"},
		{75.25, "1:15.250"},
		{3600, "60:00.000"},
		{-0.5, "-0:00.500"},
	}
	for _, tt := range tests {
		if got := formatSeconds(tt.in); got != tt.want {
			t.Errorf("formatSeconds(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSegmentTable(t *testing.T) {
	out := segmentTable([]segment.Segment{
		{Start: 0, End: 1, Text: "Hello there"},
		{Start: 75.5, End: 76.5, Text: "La la"},
	})
	for _, want := range []string{"Hello there", "La la", "1:15.500", "1.000", "╭"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestBatchJobs(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("line one\n\nline two\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	old := lyricsDir
	lyricsDir = dir
	t.Cleanup(func() { lyricsDir = old })

	jobs, err := batchJobs([]string{"/music/a.mp4", "/music/b.mp3"})
	if err != nil {
		t.Fatalf("batchJobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("jobs = %+v", jobs)
	}
	if !slices.Equal(jobs[0].Lines, []string{"line one", "line two"}) {
		t.Errorf("lines = %q", jobs[0].Lines)
	}
	if jobs[1].Lines != nil {
		t.Errorf("input without lyrics got %q", jobs[1].Lines)
	}

	if _, err := batchJobs(nil); err == nil {
		t.Error("empty input list accepted")
	}
}
