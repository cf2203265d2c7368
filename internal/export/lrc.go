package export

import (
	"fmt"
	"io"
	"math"

	"lyricsync/internal/segment"
)

// LRC writes "[MM:SS.ss]text" lines keyed on segment start times.
type LRC struct{}

func (LRC) Format() string    { return "lrc" }
func (LRC) Extension() string { return ".lrc" }

func (LRC) Encode(w io.Writer, segs []segment.Segment) error {
	for _, seg := range segs {
		if _, err := fmt.Fprintf(w, "[%s]%s\n", formatLRCTime(seg.Start), seg.Text); err != nil {
			return err
		}
	}
	return nil
}

// formatLRCTime renders whole minutes (floored) and the remaining seconds with
// two decimals. Seconds are rounded, so 59.999 renders as "60.00".
func formatLRCTime(seconds float64) string {
	minutes := math.Floor(seconds / 60)
	secs := seconds - minutes*60
	return fmt.Sprintf("%02d:%05.2f", int(minutes), secs)
}
