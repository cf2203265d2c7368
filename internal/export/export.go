// Package export writes segment lists as LRC, SRT or plain text files.
package export

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"lyricsync/internal/segment"
)

// ErrExport marks a failed export. Other exports of the same run are unaffected.
var ErrExport = errors.New("export failed")

// Exporter encodes a complete segment list in one file format.
type Exporter interface {
	Format() string
	Extension() string
	Encode(w io.Writer, segs []segment.Segment) error
}

var registry = map[string]Exporter{
	"lrc": LRC{},
	"srt": SRT{},
	"txt": TXT{},
}

// Formats returns the supported format names, sorted.
func Formats() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ByName returns the exporter for a format name such as "srt".
func ByName(name string) (Exporter, error) {
	exp, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown export format %q (supported: %s)", name, strings.Join(Formats(), ", "))
	}
	return exp, nil
}

// ForPath picks the exporter matching the extension of path.
func ForPath(path string) (Exporter, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return nil, fmt.Errorf("cannot infer export format from %q", path)
	}
	return ByName(ext)
}

// WriteFile encodes segs into path. The file is written next to path and
// renamed into place once complete.
func WriteFile(exp Exporter, path string, segs []segment.Segment) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("%w: %s %s: %w", ErrExport, exp.Format(), path, err)
		}
	}()

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	w := bufio.NewWriter(tmp)
	if err := exp.Encode(w, segs); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// Target is one requested export.
type Target struct {
	Exporter Exporter
	Path     string
}

// Targets builds one target per format, named base + extension.
func Targets(base string, formats []string) ([]Target, error) {
	targets := make([]Target, 0, len(formats))
	for _, name := range formats {
		exp, err := ByName(name)
		if err != nil {
			return nil, err
		}
		targets = append(targets, Target{Exporter: exp, Path: base + exp.Extension()})
	}
	return targets, nil
}

// WriteAll runs every target independently and returns the paths written
// together with the joined failures.
func WriteAll(targets []Target, segs []segment.Segment) ([]string, error) {
	var (
		written []string
		errs    []error
	)
	for _, t := range targets {
		if err := WriteFile(t.Exporter, t.Path, segs); err != nil {
			errs = append(errs, err)
			continue
		}
		written = append(written, t.Path)
	}
	return written, errors.Join(errs...)
}
