// Package term owns the terminal side of the daemon: the output sink
// encoded events are written to, the line-discipline probe and the
// dimension query.
package term

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/term"

	"conmouse/internal/pointer"
)

// Sink is a scoped writer to a terminal device or standard output.
// Writes are serialized so encoded sequences for one terminal are
// delivered in decision order, and go straight to the descriptor with
// no buffering layer that could delay mouse feedback.
type Sink struct {
	mu       sync.Mutex
	f        *os.File
	path     string
	isStdout bool
}

// OpenSink opens the terminal at path for writing. An empty path or
// "-" selects standard output.
func OpenSink(path string) (*Sink, error) {
	if path == "" || path == "-" {
		return &Sink{f: os.Stdout, path: "stdout", isStdout: true}, nil
	}
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open terminal %s: %w", path, err)
	}
	return &Sink{f: f, path: path}, nil
}

// Path returns the sink's target for logging.
func (s *Sink) Path() string { return s.path }

// Fd returns the underlying descriptor for ioctl-level probes.
func (s *Sink) Fd() int { return int(s.f.Fd()) }

// Write delivers one encoded sequence. The whole sequence goes out in
// a single write so concurrent writers cannot interleave bytes.
func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Write(p)
}

// Size queries the terminal dimensions, falling back to 80x24 when the
// target is not a terminal or the query fails.
func (s *Sink) Size() (width, height int) {
	w, h, err := term.GetSize(int(s.f.Fd()))
	if err != nil || w <= 0 || h <= 0 {
		return pointer.DefaultWidth, pointer.DefaultHeight
	}
	return w, h
}

// IsTerminal reports whether the sink writes to a real terminal.
func (s *Sink) IsTerminal() bool {
	return term.IsTerminal(int(s.f.Fd()))
}

// Close closes the descriptor. Standard output is left open.
func (s *Sink) Close() error {
	if s.isStdout {
		return nil
	}
	return s.f.Close()
}
