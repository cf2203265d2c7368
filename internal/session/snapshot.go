package session

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// DumpYAML writes sess as a YAML snapshot.
func DumpYAML(w io.Writer, sess *Session) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(sess); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return enc.Close()
}

// LoadYAML reads a YAML snapshot written by DumpYAML.
func LoadYAML(r io.Reader) (*Session, error) {
	var sess Session
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&sess); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if sess.Mode != ModeLyrics && sess.Mode != ModeWords {
		return nil, fmt.Errorf("decode snapshot: unknown mode %q", sess.Mode)
	}
	return &sess, nil
}

// LoadYAMLFile reads a snapshot from path; "-" reads stdin.
func LoadYAMLFile(path string) (*Session, error) {
	if path == "-" {
		return LoadYAML(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadYAML(f)
}
