package export

import (
	"fmt"
	"io"
	"math"

	"lyricsync/internal/segment"
)

// SRT writes numbered cues separated by blank lines.
type SRT struct{}

func (SRT) Format() string    { return "srt" }
func (SRT) Extension() string { return ".srt" }

func (SRT) Encode(w io.Writer, segs []segment.Segment) error {
	for i, seg := range segs {
		_, err := fmt.Fprintf(w, "%d\n%s --> %s\n%s\n\n",
			i+1, formatSRTTime(seg.Start), formatSRTTime(seg.End), seg.Text)
		if err != nil {
			return err
		}
	}
	return nil
}

// formatSRTTime converts seconds to SRT time format HH:MM:SS,mmm. Milliseconds
// are truncated. SRT has no negative times, so those clamp to zero.
func formatSRTTime(seconds float64) string {
	totalSec := math.Max(seconds, 0)
	hours := int(totalSec / 3600)
	remainder := math.Mod(totalSec, 3600)
	minutes := int(remainder / 60)
	secs := math.Mod(remainder, 60)
	millis := int(math.Mod(secs, 1) * 1000)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, int(secs), millis)
}
