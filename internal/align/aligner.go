// Package align matches lyric lines against a transcribed word stream.
package align

import (
	"lyricsync/internal/lyrics"
	"lyricsync/internal/segment"
	"lyricsync/internal/transcribe"
)

// FallbackDuration is the length in seconds given to a lyric line that
// matched no transcribed word.
const FallbackDuration = 1.0

// Observer receives a snapshot of the segments produced so far after every
// appended segment. It runs synchronously on the aligning goroutine.
type Observer interface {
	OnProgress(partial []segment.Segment)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(partial []segment.Segment)

// OnProgress calls f(partial).
func (f ObserverFunc) OnProgress(partial []segment.Segment) { f(partial) }

// Cursor is the shared scan position into the word stream. It only moves
// forward.
type Cursor struct {
	Pos int
}

// LineMatch describes the transcript words consumed for one lyric line.
type LineMatch struct {
	Start, End float64
	// Matched holds the indices of the words that matched, in order.
	Matched []int
}

// Found reports whether any word of the line matched.
func (m LineMatch) Found() bool { return len(m.Matched) > 0 }

// Stream is a transcript word stream with every word normalized once.
type Stream struct {
	words []transcribe.Word
	norm  []string
}

// NewStream normalizes words for matching.
func NewStream(words []transcribe.Word) *Stream {
	norm := make([]string, len(words))
	for i, w := range words {
		norm[i] = lyrics.Normalize(w.Text)
	}
	return &Stream{words: words, norm: norm}
}

// Len returns the number of words in the stream.
func (s *Stream) Len() int { return len(s.words) }

// MatchLine scans the stream from cur for each normalized lyric word in turn
// and returns the match together with the advanced cursor. A transcript word
// that does not equal the current lyric word is skipped for good; a lyric word
// for which the stream runs out is skipped.
func (s *Stream) MatchLine(lyricWords []string, cur Cursor) (LineMatch, Cursor) {
	var m LineMatch
	for _, lw := range lyricWords {
		for cur.Pos < len(s.words) {
			i := cur.Pos
			cur.Pos++
			if s.norm[i] != lw {
				continue
			}
			if !m.Found() {
				m.Start = s.words[i].Start
			}
			m.End = s.words[i].End
			m.Matched = append(m.Matched, i)
			break
		}
	}
	return m, cur
}

// Align produces one segment per lyric line, or one segment per word when
// lines is empty. obs may be nil.
func Align(words []transcribe.Word, lines []string, obs Observer) []segment.Segment {
	if len(lines) == 0 {
		return projectWords(words, obs)
	}

	stream := NewStream(words)
	out := make([]segment.Segment, 0, len(lines))
	var cur Cursor
	for _, line := range lines {
		var m LineMatch
		m, cur = stream.MatchLine(lyrics.Words(line), cur)

		seg := segment.Segment{Start: m.Start, End: m.End, Text: line}
		if !m.Found() {
			seg.Start = 0
			if len(out) > 0 {
				seg.Start = out[len(out)-1].End
			}
			seg.End = seg.Start + FallbackDuration
		}
		out = append(out, seg)
		notify(obs, out)
	}
	return out
}

func projectWords(words []transcribe.Word, obs Observer) []segment.Segment {
	out := make([]segment.Segment, 0, len(words))
	for _, w := range words {
		out = append(out, segment.Segment{Start: w.Start, End: w.End, Text: w.Text})
		notify(obs, out)
	}
	return out
}

func notify(obs Observer, segs []segment.Segment) {
	if obs != nil {
		obs.OnProgress(segment.Clone(segs))
	}
}
