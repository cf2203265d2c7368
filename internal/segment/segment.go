package segment

import (
	"errors"
	"fmt"
	"sync"
)

// Segment is one timed unit of lyric or word text. Times are in seconds.
type Segment struct {
	Start float64 `json:"start" yaml:"start"`
	End   float64 `json:"end" yaml:"end"`
	Text  string  `json:"text" yaml:"text"`
}

// Duration returns End - Start. It may be negative after manual edits.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// ErrIndexOutOfRange is returned by edits addressing a segment that does not exist.
var ErrIndexOutOfRange = errors.New("segment index out of range")

// Track owns an ordered segment list for one editing session. All mutators
// are serialized; every successful mutation bumps the version.
type Track struct {
	mu       sync.Mutex
	segments []Segment
	version  int64
}

// NewTrack creates a track holding a copy of segs at the given version.
func NewTrack(segs []Segment, version int64) *Track {
	return &Track{segments: Clone(segs), version: version}
}

// Clone returns a copy of segs that shares no backing array.
func Clone(segs []Segment) []Segment {
	if segs == nil {
		return nil
	}
	out := make([]Segment, len(segs))
	copy(out, segs)
	return out
}

// Len returns the number of segments.
func (t *Track) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.segments)
}

// Version returns the current version.
func (t *Track) Version() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.version
}

// Snapshot returns a read-only copy of the segments for exporters.
func (t *Track) Snapshot() []Segment {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Clone(t.segments)
}

// At returns the segment at index i.
func (t *Track) At(i int) (Segment, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(i); err != nil {
		return Segment{}, err
	}
	return t.segments[i], nil
}

// Replace installs the result of a new alignment run.
func (t *Track) Replace(segs []Segment) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.segments = Clone(segs)
	t.version++
}

// Nudge shifts start and end of segment i by delta seconds. Negative times
// and overlaps with neighbours are allowed.
func (t *Track) Nudge(i int, delta float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(i); err != nil {
		return err
	}
	t.segments[i].Start += delta
	t.segments[i].End += delta
	t.version++
	return nil
}

// Split replaces segment i with two halves split at the temporal midpoint.
// Both halves keep the original text.
func (t *Track) Split(i int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(i); err != nil {
		return err
	}
	seg := t.segments[i]
	mid := (seg.Start + seg.End) / 2
	left := Segment{Start: seg.Start, End: mid, Text: seg.Text}
	right := Segment{Start: mid, End: seg.End, Text: seg.Text}

	t.segments = append(t.segments, Segment{})
	copy(t.segments[i+2:], t.segments[i+1:])
	t.segments[i] = left
	t.segments[i+1] = right
	t.version++
	return nil
}

// Merge joins segment i with segment i+1. Merging the last segment is a no-op
// and reports merged == false.
func (t *Track) Merge(i int) (merged bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(i); err != nil {
		return false, err
	}
	if i == len(t.segments)-1 {
		return false, nil
	}
	a, b := t.segments[i], t.segments[i+1]
	t.segments[i] = Segment{Start: a.Start, End: b.End, Text: a.Text + " " + b.Text}
	t.segments = append(t.segments[:i+1], t.segments[i+2:]...)
	t.version++
	return true, nil
}

func (t *Track) check(i int) error {
	if i < 0 || i >= len(t.segments) {
		return fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, i, len(t.segments))
	}
	return nil
}
