// Package session tracks many terminal devices concurrently and
// decides which one is in the foreground, so the pipeline can route
// events to the terminal the user is actually looking at.
package session

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"conmouse/internal/pipeline"
	"conmouse/internal/term"
	"conmouse/internal/tracking"
)

// Session is one monitored terminal: its escape-sequence tracker, its
// output sink and the gate the pipeline consults when this session is
// active.
type Session struct {
	Path    string
	Tracker *tracking.Tracker
	Sink    *term.Sink
	Gate    pipeline.Gate

	mu           sync.Mutex
	scanFd       int
	lastActivity time.Time
	dead         bool
}

// newSession opens the terminal for scanning and writing. The scan
// descriptor is non-blocking so the scanning loop never stalls the
// router.
func newSession(path string, gateFor GateFactory) (*Session, error) {
	scanFd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_NOCTTY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s for scanning: %w", path, err)
	}

	sink, err := term.OpenSink(path)
	if err != nil {
		unix.Close(scanFd)
		return nil, err
	}

	s := &Session{
		Path:         path,
		Tracker:      tracking.NewTracker(),
		Sink:         sink,
		scanFd:       scanFd,
		lastActivity: time.Now(),
	}
	s.Gate = gateFor(s)
	return s, nil
}

// LastActivity returns when this session last produced scanned bytes.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Dead reports whether the session's terminal went away.
func (s *Session) Dead() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dead
}

// scanOnce drains whatever bytes are currently readable into the mode
// tracker. Returns false once the session is unusable; a dead session
// is skipped thereafter but never takes the daemon down.
func (s *Session) scanOnce(buf []byte) bool {
	s.mu.Lock()
	if s.dead {
		s.mu.Unlock()
		return false
	}
	fd := s.scanFd
	s.mu.Unlock()

	for {
		n, err := unix.Read(fd, buf)
		if n > 0 {
			s.Tracker.Feed(buf[:n])
			s.mu.Lock()
			s.lastActivity = time.Now()
			s.mu.Unlock()
			if n == len(buf) {
				continue
			}
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == nil {
			return true
		}
		if err == unix.EINTR {
			continue
		}
		s.mu.Lock()
		s.dead = true
		s.mu.Unlock()
		return false
	}
}

// close releases both descriptors.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scanFd >= 0 {
		unix.Close(s.scanFd)
		s.scanFd = -1
	}
	if s.Sink != nil {
		s.Sink.Close()
	}
}
