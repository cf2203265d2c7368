package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	scribeDefaultURL     = "https://api.elevenlabs.io/v1/speech-to-text"
	scribeDefaultModelID = "scribe_v1"
	scribeUserAgent      = "lyricsync"
)

// ProgressFunc is called with (bytesRead, totalBytes) during upload.
type ProgressFunc func(bytesRead, totalBytes int64)

// progressReader wraps an io.Reader and reports progress.
type progressReader struct {
	reader   io.Reader
	total    int64
	read     int64
	callback ProgressFunc
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	pr.read += int64(n)
	if pr.callback != nil {
		pr.callback(pr.read, pr.total)
	}
	return n, err
}

// ScribeOptions configures the ElevenLabs speech-to-text backend.
type ScribeOptions struct {
	APIKey   string
	BaseURL  string
	ModelID  string
	Language string
	Timeout  time.Duration
	Progress ProgressFunc
	// HTTPClient overrides the default client (for testing).
	HTTPClient *http.Client
}

// Scribe uploads audio to the ElevenLabs speech-to-text API.
type Scribe struct {
	opts   ScribeOptions
	client *http.Client
}

// NewScribe returns a Scribe backend.
func NewScribe(opts ScribeOptions) *Scribe {
	if opts.BaseURL == "" {
		opts.BaseURL = scribeDefaultURL
	}
	if opts.ModelID == "" {
		opts.ModelID = scribeDefaultModelID
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Minute
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Scribe{opts: opts, client: client}
}

// scribeToken is a single token of the ElevenLabs transcript.
type scribeToken struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Type  string  `json:"type"` // "word", "spacing", "audio_event"
}

type scribeResponse struct {
	LanguageCode string        `json:"language_code"`
	Text         string        `json:"text"`
	Words        []scribeToken `json:"words"`
}

// mimeFromExt returns the MIME type for common audio/video extensions.
func mimeFromExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".mp3":
		return "audio/mp3"
	case ".m4a":
		return "audio/m4a"
	case ".wav":
		return "audio/wav"
	case ".flac":
		return "audio/flac"
	case ".ogg":
		return "audio/ogg"
	case ".aac":
		return "audio/aac"
	default:
		return "application/octet-stream"
	}
}

// Transcribe implements Producer.
func (s *Scribe) Transcribe(ctx context.Context, audioPath string) ([]Word, error) {
	resp, err := s.upload(ctx, audioPath)
	if err != nil {
		return nil, failure(BackendScribe, err)
	}
	slog.Debug("scribe finished", "language", resp.LanguageCode, "tokens", len(resp.Words))
	return scribeWords(resp.Words), nil
}

func (s *Scribe) upload(ctx context.Context, filePath string) (*scribeResponse, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	errCh := make(chan error, 1)
	go func() {
		err := writeScribeForm(mw, f, filePath, s.opts.ModelID, s.opts.Language)
		if cerr := mw.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
		errCh <- err
	}()

	// File size plus ~1KB of form overhead.
	body := &progressReader{
		reader:   pr,
		total:    stat.Size() + 1024,
		callback: s.opts.Progress,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.opts.BaseURL, body)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("xi-api-key", s.opts.APIKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", scribeUserAgent)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	slog.Info("uploading", "backend", BackendScribe, "file", filepath.Base(filePath), "model", s.opts.ModelID)

	resp, err := s.client.Do(req)
	if err != nil {
		pr.Close()
		<-errCh
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		pr.Close()
		<-errCh
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	if writeErr := <-errCh; writeErr != nil {
		return nil, fmt.Errorf("multipart write error: %w", writeErr)
	}

	var transcript scribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&transcript); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &transcript, nil
}

func writeScribeForm(mw *multipart.Writer, src io.Reader, filePath, modelID, language string) error {
	fields := [][2]string{
		{"model_id", modelID},
		{"timestamps_granularity", "word"},
		{"tag_audio_events", "false"},
	}
	if language != "" && strings.ToLower(language) != "auto" {
		fields = append(fields, [2]string{"language_code", language})
	}
	for _, kv := range fields {
		if err := mw.WriteField(kv[0], kv[1]); err != nil {
			return err
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filepath.Base(filePath)))
	h.Set("Content-Type", mimeFromExt(filepath.Ext(filePath)))
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, src)
	return err
}

// cjkMergePunctuation is standalone CJK punctuation folded into the
// preceding word.
var cjkMergePunctuation = map[rune]struct{}{
	'\u3002': {}, // 。
	'\uff1f': {}, // ？
	'\uff01': {}, // ！
	'\u300d': {}, // 」
	'\u300c': {}, // 「
	'\u3001': {}, // 、
	'\u30fb': {}, // ・
	'\uff0c': {}, // ，
}

// scribeWords keeps "word" tokens, drops spacing and audio events, and merges
// standalone CJK punctuation into the preceding word.
func scribeWords(raw []scribeToken) []Word {
	words := make([]Word, 0, len(raw))
	for _, t := range raw {
		if t.Type != "" && t.Type != "word" {
			continue
		}
		if r, size := utf8.DecodeRuneInString(t.Text); size == len(t.Text) && size > 0 {
			if _, ok := cjkMergePunctuation[r]; ok && len(words) > 0 {
				prev := &words[len(words)-1]
				prev.Text += t.Text
				prev.End = t.End
				continue
			}
		}
		words = append(words, Word{Start: t.Start, End: t.End, Text: t.Text})
	}
	return cleanWords(words)
}
