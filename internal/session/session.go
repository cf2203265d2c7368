package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"lyricsync/internal/segment"
)

// Alignment modes recorded on a session.
const (
	ModeLyrics = "lyrics"
	ModeWords  = "words"
)

// Meta describes where a session's segments came from.
type Meta struct {
	SourcePath string `yaml:"source_path"`
	AudioPath  string `yaml:"audio_path,omitempty"`
	Mode       string `yaml:"mode"`
}

// Session is a persisted segment list with its provenance.
type Session struct {
	ID        string            `yaml:"id"`
	Meta      `yaml:",inline"`
	Version   int64             `yaml:"version"`
	CreatedAt time.Time         `yaml:"created_at"`
	UpdatedAt time.Time         `yaml:"updated_at"`
	Segments  []segment.Segment `yaml:"segments"`
}

// Track returns an editable track seeded at the session's version.
func (s *Session) Track() *segment.Track {
	return segment.NewTrack(s.Segments, s.Version)
}

// Summary is a session row without its segments.
type Summary struct {
	ID           string
	Meta         Meta
	Version      int64
	SegmentCount int
	UpdatedAt    time.Time
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// Create stores segs as a new session at version 0.
func (s *Store) Create(ctx context.Context, meta Meta, segs []segment.Segment) (*Session, error) {
	now := time.Now().UTC()
	sess := &Session{
		ID:        uuid.NewString(),
		Meta:      meta,
		CreatedAt: now,
		UpdatedAt: now,
		Segments:  segment.Clone(segs),
	}
	if err := s.insert(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Store) insert(ctx context.Context, sess *Session) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sessions (id, source_path, audio_path, mode, version, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sess.ID, sess.SourcePath, sess.AudioPath, sess.Mode, sess.Version,
			formatTime(sess.CreatedAt), formatTime(sess.UpdatedAt),
		); err != nil {
			return err
		}
		return writeSegments(ctx, tx, sess.ID, sess.Segments)
	})
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func writeSegments(ctx context.Context, tx *sql.Tx, id string, segs []segment.Segment) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM segments WHERE session_id = ?`, id); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO segments (session_id, position, start_sec, end_sec, text) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, seg := range segs {
		if _, err := stmt.ExecContext(ctx, id, i, seg.Start, seg.End, seg.Text); err != nil {
			return err
		}
	}
	return nil
}

// Get loads a session and its segments by exact id.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	sess := &Session{ID: id}
	var created, updated string
	err := s.db.QueryRowContext(ctx,
		`SELECT source_path, audio_path, mode, version, created_at, updated_at FROM sessions WHERE id = ?`, id,
	).Scan(&sess.SourcePath, &sess.AudioPath, &sess.Mode, &sess.Version, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess.CreatedAt, err = parseTimeString(created); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if sess.UpdatedAt, err = parseTimeString(updated); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT start_sec, end_sec, text FROM segments WHERE session_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("get segments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var seg segment.Segment
		if err := rows.Scan(&seg.Start, &seg.End, &seg.Text); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		sess.Segments = append(sess.Segments, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get segments: %w", err)
	}
	return sess, nil
}

// List returns all sessions, most recently updated first.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT s.id, s.source_path, s.audio_path, s.mode, s.version, s.updated_at,
               (SELECT COUNT(1) FROM segments g WHERE g.session_id = s.id)
        FROM sessions s
        ORDER BY s.updated_at DESC, s.id`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		var updated string
		if err := rows.Scan(&sum.ID, &sum.Meta.SourcePath, &sum.Meta.AudioPath, &sum.Meta.Mode,
			&sum.Version, &updated, &sum.SegmentCount); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if sum.UpdatedAt, err = parseTimeString(updated); err != nil {
			return nil, fmt.Errorf("parse updated_at: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Save writes track over the stored segments of session id. base is the
// version the track was loaded at; if the stored version moved since,
// ErrVersionConflict is returned and nothing is written. An unmodified track
// is not written.
func (s *Store) Save(ctx context.Context, id string, base int64, track *segment.Track) error {
	next := track.Version()
	if next == base {
		return nil
	}
	segs := track.Snapshot()
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE sessions SET version = ?, updated_at = ? WHERE id = ? AND version = ?`,
			next, formatTime(time.Now()), id, base)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			var exists int
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM sessions WHERE id = ?`, id).Scan(&exists); err != nil {
				return err
			}
			if exists == 0 {
				return fmt.Errorf("%w: %s", ErrNotFound, id)
			}
			return fmt.Errorf("%w: %s", ErrVersionConflict, id)
		}
		return writeSegments(ctx, tx, id, segs)
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Delete removes a session and its segments.
func (s *Store) Delete(ctx context.Context, id string) error {
	var n int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Resolve expands a unique id prefix to the full session id.
func (s *Store) Resolve(ctx context.Context, prefix string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", fmt.Errorf("%w: empty id", ErrNotFound)
	}
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM sessions WHERE id LIKE ? ESCAPE '\' ORDER BY id LIMIT 2`, escaped+"%")
	if err != nil {
		return "", fmt.Errorf("resolve session: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("resolve session: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("resolve session: %w", err)
	}
	switch len(ids) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrNotFound, prefix)
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("%w: %s", ErrAmbiguous, prefix)
	}
}

// Import stores a session read from a snapshot. The snapshot id is kept
// unless another session already uses it, in which case a new id is assigned.
func (s *Store) Import(ctx context.Context, sess *Session) (*Session, error) {
	out := *sess
	out.Segments = segment.Clone(sess.Segments)
	if out.ID == "" {
		out.ID = uuid.NewString()
	} else if _, err := s.Get(ctx, out.ID); err == nil {
		out.ID = uuid.NewString()
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}
	out.UpdatedAt = time.Now().UTC()
	if err := s.insert(ctx, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
