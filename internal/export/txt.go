package export

import (
	"io"

	"lyricsync/internal/segment"
)

// TXT writes segment text only, one line each.
type TXT struct{}

func (TXT) Format() string    { return "txt" }
func (TXT) Extension() string { return ".txt" }

func (TXT) Encode(w io.Writer, segs []segment.Segment) error {
	for _, seg := range segs {
		if _, err := io.WriteString(w, seg.Text+"\n"); err != nil {
			return err
		}
	}
	return nil
}
