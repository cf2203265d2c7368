package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Word is a single transcribed word with start and end times in seconds.
type Word struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Producer turns an audio file into a chronological, non-overlapping word
// stream. Implementations return either the complete stream or an error
// wrapping ErrTranscription, never a partial result.
type Producer interface {
	Transcribe(ctx context.Context, audioPath string) ([]Word, error)
}

// ErrTranscription marks a failed transcription run.
var ErrTranscription = errors.New("transcription failed")

func failure(backend string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrTranscription, backend, err)
}

// CommandRunner executes an external command and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// cleanWords trims surrounding whitespace from every word and drops empty ones.
func cleanWords(words []Word) []Word {
	out := make([]Word, 0, len(words))
	for _, w := range words {
		w.Text = strings.TrimSpace(w.Text)
		if w.Text == "" {
			continue
		}
		out = append(out, w)
	}
	return out
}
