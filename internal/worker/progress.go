package worker

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/time/rate"

	"lyricsync/internal/segment"
)

const progressLogInterval = 2 * time.Second

// progress observes the aligner. It logs at most every progressLogInterval
// and redraws a counter on a terminal.
type progress struct {
	name     string
	total    int
	live     io.Writer
	throttle rate.Sometimes
	drawn    bool
}

func newProgress(name string, total int, w io.Writer) *progress {
	return &progress{
		name:     name,
		total:    total,
		live:     w,
		throttle: rate.Sometimes{First: 1, Interval: progressLogInterval},
	}
}

// OnProgress implements align.Observer.
func (p *progress) OnProgress(partial []segment.Segment) {
	n := len(partial)
	p.throttle.Do(func() {
		slog.Debug("aligning", "file", p.name, "done", n, "total", p.total)
	})
	if p.live != nil {
		fmt.Fprintf(p.live, "\r%s: %d/%d", p.name, n, p.total)
		p.drawn = true
	}
}

func (p *progress) finish(n int) {
	if p.drawn {
		fmt.Fprintln(p.live)
	}
	slog.Info("alignment complete", "file", p.name, "segments", n)
}

// TerminalProgress returns stderr when it is a terminal, nil otherwise.
func TerminalProgress() io.Writer {
	fd := os.Stderr.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return os.Stderr
	}
	return nil
}
