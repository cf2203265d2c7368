package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("LYRICSYNC_CONFIG", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Transcription.Backend != BackendFasterWhisper {
		t.Errorf("Backend = %q", cfg.Transcription.Backend)
	}
	if cfg.Transcription.Model != "tiny" || !cfg.Transcription.VADFilter || cfg.Transcription.BeamSize != 5 {
		t.Errorf("unexpected transcription defaults: %+v", cfg.Transcription)
	}
	want := filepath.Join(home, ".local", "share", "lyricsync", "sessions.db")
	if cfg.Paths.SessionDB != want {
		t.Errorf("SessionDB = %q, want %q", cfg.Paths.SessionDB, want)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
[transcription]
backend = "WhisperX"
vad_filter = false

[whisperx]
vad_method = "pyannote"

[export]
formats = ["SRT"]

[batch]
max_concurrent = 4
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Transcription.Backend != BackendWhisperX {
		t.Errorf("Backend = %q", cfg.Transcription.Backend)
	}
	if cfg.Transcription.VADFilter {
		t.Error("VADFilter should be false")
	}
	if len(cfg.Export.Formats) != 1 || cfg.Export.Formats[0] != "srt" {
		t.Errorf("Formats = %v", cfg.Export.Formats)
	}
	if cfg.Batch.MaxConcurrent != 4 {
		t.Errorf("MaxConcurrent = %d", cfg.Batch.MaxConcurrent)
	}
	// Untouched sections keep defaults.
	if cfg.Scribe.ModelID != defaultScribeModelID {
		t.Errorf("ModelID = %q", cfg.Scribe.ModelID)
	}
}

func TestLoad_UnknownKey(t *testing.T) {
	path := writeConfig(t, "[transcription]\nbakend = \"x\"\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("LYRICSYNC_BACKEND", "scribe")
	t.Setenv("ELEVENLABS_API_KEY", "")
	t.Setenv("LYRICSYNC_SCRIBE_API_KEY", "secret")
	t.Setenv("LYRICSYNC_VAD_FILTER", "false")

	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Transcription.Backend != BackendScribe || cfg.Scribe.APIKey != "secret" {
		t.Errorf("env overrides not applied: %+v %+v", cfg.Transcription, cfg.Scribe)
	}
	if cfg.Transcription.VADFilter {
		t.Error("LYRICSYNC_VAD_FILTER=false not applied")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Paths.SessionDB = "/tmp/s.db"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	cfg.Transcription.Backend = "vosk"
	cfg.Export.Formats = []string{"vtt"}
	cfg.Batch.MaxConcurrent = 0
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"transcription.backend", "export.formats", "batch.max_concurrent"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestValidate_BackendRequirements(t *testing.T) {
	cfg := Default()
	cfg.Transcription.Backend = BackendScribe
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "api_key") {
		t.Errorf("scribe without key: err = %v", err)
	}
	cfg.Transcription.Backend = BackendSherpa
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "model_dir") {
		t.Errorf("sherpa without model dir: err = %v", err)
	}
}

func TestSampleConfigParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := CreateSample(path); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
}

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	got, err := ExpandPath("~/a/b")
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Join(home, "a", "b") {
		t.Errorf("got %q", got)
	}
	if got, _ := ExpandPath(""); got != "" {
		t.Errorf("empty path expanded to %q", got)
	}
}
