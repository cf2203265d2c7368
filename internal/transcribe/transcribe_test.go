package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"testing"

	"lyricsync/internal/config"
)

func TestFasterWhisper_Transcribe(t *testing.T) {
	var gotName string
	var gotArgs []string
	runner := func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotName, gotArgs = name, args
		if _, err := os.Stat(args[0]); err != nil {
			t.Errorf("helper script missing during run: %v", err)
		}
		return []byte(`{"language":"en","duration":3.0,"words":[
			{"start":0.0,"end":0.5,"text":" Hello"},
			{"start":0.5,"end":1.0,"text":"  "},
			{"start":1.0,"end":1.5,"text":"there "}]}`), nil
	}
	fw := NewFasterWhisper(FasterWhisperOptions{VADFilter: true}).WithCommandRunner(runner)

	words, err := fw.Transcribe(context.Background(), "song.wav")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	want := []Word{{0, 0.5, "Hello"}, {1.0, 1.5, "there"}}
	if !slices.Equal(words, want) {
		t.Errorf("words = %+v, want %+v", words, want)
	}
	if gotName != "python3" {
		t.Errorf("interpreter = %q", gotName)
	}
	joined := strings.Join(gotArgs, " ")
	for _, frag := range []string{"--audio song.wav", "--model tiny", "--device cpu", "--compute-type float32", "--beam-size 5", "--vad"} {
		if !strings.Contains(joined, frag) {
			t.Errorf("args %q missing %q", joined, frag)
		}
	}
	if strings.Contains(joined, "--language") {
		t.Errorf("args %q should not pin a language", joined)
	}
}

func TestFasterWhisper_NoVAD(t *testing.T) {
	fw := NewFasterWhisper(FasterWhisperOptions{Language: "de"})
	args := fw.buildArgs("helper.py", "a.wav")
	if slices.Contains(args, "--vad") {
		t.Errorf("args %v contain --vad", args)
	}
	if !slices.Contains(args, "de") {
		t.Errorf("args %v missing language", args)
	}
}

func TestFasterWhisper_Failure(t *testing.T) {
	runner := func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("exit status 1: ModuleNotFoundError: faster_whisper")
	}
	words, err := NewFasterWhisper(FasterWhisperOptions{}).WithCommandRunner(runner).Transcribe(context.Background(), "a.wav")
	if !errors.Is(err, ErrTranscription) {
		t.Fatalf("err = %v, want ErrTranscription", err)
	}
	if words != nil {
		t.Errorf("partial result returned: %v", words)
	}
}

func TestFasterWhisper_BadJSON(t *testing.T) {
	runner := func(context.Context, string, ...string) ([]byte, error) {
		return []byte("Traceback (most recent call last)"), nil
	}
	_, err := NewFasterWhisper(FasterWhisperOptions{}).WithCommandRunner(runner).Transcribe(context.Background(), "a.wav")
	if !errors.Is(err, ErrTranscription) {
		t.Fatalf("err = %v, want ErrTranscription", err)
	}
}

func argAfter(args []string, flag string) string {
	i := slices.Index(args, flag)
	if i < 0 || i+1 >= len(args) {
		return ""
	}
	return args[i+1]
}

func TestWhisperX_Transcribe(t *testing.T) {
	scratch := t.TempDir()
	var gotArgs []string
	runner := func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotArgs = args
		out := argAfter(args, "--output_dir")
		payload := `{"segments":[{"words":[
			{"word":"Hello","start":0.1,"end":0.4},
			{"word":"1999"},
			{"word":"there","start":0.5,"end":0.9}]}]}`
		return nil, os.WriteFile(filepath.Join(out, "song.json"), []byte(payload), 0o644)
	}
	wx := NewWhisperX(WhisperXOptions{ScratchDir: scratch, VADMethod: VADMethodPyannote, HFToken: "hf_x"}).WithCommandRunner(runner)

	words, err := wx.Transcribe(context.Background(), "/music/song.wav")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	want := []Word{{0.1, 0.4, "Hello"}, {0.5, 0.9, "there"}}
	if !slices.Equal(words, want) {
		t.Errorf("words = %+v, want %+v", words, want)
	}
	if argAfter(gotArgs, "--vad_method") != VADMethodPyannote || argAfter(gotArgs, "--hf_token") != "hf_x" {
		t.Errorf("vad args missing: %v", gotArgs)
	}
	if argAfter(gotArgs, "--device") != "cpu" {
		t.Errorf("device = %q", argAfter(gotArgs, "--device"))
	}
}

func TestWhisperX_CUDAArgs(t *testing.T) {
	wx := NewWhisperX(WhisperXOptions{CUDAEnabled: true})
	args := wx.buildArgs("a.wav", "/tmp/out")
	if args[0] != "--index-url" || args[1] != whisperXCUDAIndexURL {
		t.Errorf("args = %v", args)
	}
	if argAfter(args, "--device") != "cuda" || slices.Contains(args, "--compute_type") {
		t.Errorf("cuda device args wrong: %v", args)
	}
	if argAfter(args, "--vad_method") != VADMethodSilero || slices.Contains(args, "--hf_token") {
		t.Errorf("default vad args wrong: %v", args)
	}
}

func TestWhisperX_MissingOutput(t *testing.T) {
	runner := func(context.Context, string, ...string) ([]byte, error) { return nil, nil }
	_, err := NewWhisperX(WhisperXOptions{}).WithCommandRunner(runner).Transcribe(context.Background(), "a.wav")
	if !errors.Is(err, ErrTranscription) {
		t.Fatalf("err = %v, want ErrTranscription", err)
	}
}

func TestScribe_Transcribe(t *testing.T) {
	audio := filepath.Join(t.TempDir(), "song.wav")
	if err := os.WriteFile(audio, []byte("RIFF....WAVE"), 0o644); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("xi-api-key"); got != "secret" {
			t.Errorf("xi-api-key = %q", got)
		}
		_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil {
			t.Errorf("content type: %v", err)
		}
		mr := multipart.NewReader(r.Body, params["boundary"])
		fields := map[string]string{}
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				t.Errorf("next part: %v", err)
				break
			}
			data, _ := io.ReadAll(part)
			fields[part.FormName()] = string(data)
		}
		if fields["model_id"] != "scribe_v1" || fields["file"] != "RIFF....WAVE" || fields["language_code"] != "en" {
			t.Errorf("fields = %v", fields)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"language_code": "en",
			"words": []map[string]any{
				{"text": "Hello", "start": 0.0, "end": 0.4, "type": "word"},
				{"text": " ", "start": 0.4, "end": 0.5, "type": "spacing"},
				{"text": "(music)", "start": 0.5, "end": 2.0, "type": "audio_event"},
				{"text": "there", "start": 2.0, "end": 2.3, "type": "word"},
			},
		})
	}))
	defer srv.Close()

	var lastRead atomic.Int64
	sc := NewScribe(ScribeOptions{
		APIKey:   "secret",
		BaseURL:  srv.URL,
		Language: "en",
		Progress: func(read, _ int64) { lastRead.Store(read) },
	})
	words, err := sc.Transcribe(context.Background(), audio)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	want := []Word{{0, 0.4, "Hello"}, {2.0, 2.3, "there"}}
	if !slices.Equal(words, want) {
		t.Errorf("words = %+v, want %+v", words, want)
	}
	if lastRead.Load() == 0 {
		t.Error("progress never reported")
	}
}

func TestScribe_HTTPError(t *testing.T) {
	audio := filepath.Join(t.TempDir(), "song.mp3")
	if err := os.WriteFile(audio, []byte("ID3"), 0o644); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		http.Error(w, `{"detail":"invalid api key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewScribe(ScribeOptions{APIKey: "bad", BaseURL: srv.URL}).Transcribe(context.Background(), audio)
	if !errors.Is(err, ErrTranscription) {
		t.Fatalf("err = %v, want ErrTranscription", err)
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error %q lacks status", err)
	}
}

func TestScribeWords_MergesCJKPunctuation(t *testing.T) {
	raw := []scribeToken{
		{Text: "你好", Start: 0, End: 0.5, Type: "word"},
		{Text: "。", Start: 0.5, End: 0.6, Type: "word"},
		{Text: "再见", Start: 1, End: 1.5, Type: "word"},
	}
	got := scribeWords(raw)
	want := []Word{{0, 0.6, "你好。"}, {1, 1.5, "再见"}}
	if !slices.Equal(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestJoinTokens_Timed(t *testing.T) {
	tokens := []string{"▁HE", "LLO", "▁THE", "RE"}
	stamps := []float32{0.0, 0.2, 0.6, 0.8}
	got := joinTokens(tokens, stamps, 10, 11.5)
	want := []Word{{10, 10.6, "HELLO"}, {10.6, 11.5, "THERE"}}
	if len(got) != len(want) {
		t.Fatalf("got %+v", got)
	}
	for i := range want {
		if got[i].Text != want[i].Text || !near(got[i].Start, want[i].Start) || !near(got[i].End, want[i].End) {
			t.Errorf("word %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestJoinTokens_Untimed(t *testing.T) {
	got := joinTokens([]string{" Hello", " wor", "ld"}, nil, 2, 4)
	want := []Word{{2, 3, "Hello"}, {3, 4, "world"}}
	if !slices.Equal(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestJoinTokens_Empty(t *testing.T) {
	if got := joinTokens([]string{" ", ""}, nil, 0, 1); got != nil {
		t.Errorf("got %+v, want nil", got)
	}
}

func near(a, b float64) bool {
	d := a - b
	return d < 1e-6 && d > -1e-6
}

func TestNew(t *testing.T) {
	cfg := config.Default()
	tests := []struct {
		backend string
		want    string
	}{
		{config.BackendFasterWhisper, "*transcribe.FasterWhisper"},
		{config.BackendWhisperX, "*transcribe.WhisperX"},
		{config.BackendScribe, "*transcribe.Scribe"},
		{config.BackendSherpa, "*transcribe.Sherpa"},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			c := cfg
			c.Transcription.Backend = tt.backend
			p, err := New(&c, nil)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if got := typeName(p); got != tt.want {
				t.Errorf("type = %s, want %s", got, tt.want)
			}
		})
	}

	c := cfg
	c.Transcription.Backend = "nope"
	if _, err := New(&c, nil); err == nil {
		t.Error("unknown backend accepted")
	}
}

func typeName(v any) string {
	switch v.(type) {
	case *FasterWhisper:
		return "*transcribe.FasterWhisper"
	case *WhisperX:
		return "*transcribe.WhisperX"
	case *Scribe:
		return "*transcribe.Scribe"
	case *Sherpa:
		return "*transcribe.Sherpa"
	}
	return "?"
}
