package lyrics

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"
)

// isLineBreak reports whether r ends a line. Besides \n and \r this covers the
// vertical tab, form feed, file/group/record separators, NEL and the Unicode
// line and paragraph separators.
func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', '\x1c', '\x1d', '\x1e', '\u0085', '\u2028', '\u2029':
		return true
	}
	return false
}

// SplitLines splits pasted lyric text into trimmed, non-empty lines in order.
func SplitLines(text string) []string {
	var lines []string
	for _, raw := range strings.FieldsFunc(text, isLineBreak) {
		if line := strings.TrimSpace(raw); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// Read reads lyric lines from r.
func Read(r io.Reader) ([]string, error) {
	var b strings.Builder
	if _, err := io.Copy(&b, bufio.NewReader(r)); err != nil {
		return nil, fmt.Errorf("read lyrics: %w", err)
	}
	return SplitLines(b.String()), nil
}

// ReadFile reads lyric lines from path. "-" reads standard input.
func ReadFile(path string) ([]string, error) {
	if path == "-" {
		return Read(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open lyrics: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// FromClipboard reads lyric lines from the system clipboard.
func FromClipboard() ([]string, error) {
	text, err := clipboard.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read clipboard: %w", err)
	}
	return SplitLines(text), nil
}
