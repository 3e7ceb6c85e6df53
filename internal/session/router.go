package session

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"conmouse/internal/pipeline"
)

// GateFactory builds the gating strategy for a newly discovered
// session.
type GateFactory func(s *Session) pipeline.Gate

// Router timing. Discovery is slow because new terminals appear
// rarely; active detection is fast because the user expects the mouse
// to follow a console switch immediately.
const (
	discoveryInterval = 5 * time.Second
	activeInterval    = 1 * time.Second
	scanInterval      = 25 * time.Millisecond
	maxSessions       = 64
)

// activeConsoleFile is the kernel's record of the foreground virtual
// console, e.g. "tty2".
const activeConsoleFile = "/sys/class/tty/tty0/active"

// Router monitors N terminal devices, each with its own mode tracker,
// and tracks the single active one. It implements pipeline.Target, so
// the translation pipeline always writes to the foreground terminal.
type Router struct {
	mu             sync.Mutex
	sessions       map[string]*Session
	active         *Session
	gateFor        GateFactory
	onActiveChange func(path string)

	patterns   []string
	activePath string

	wg sync.WaitGroup
}

// NewRouter builds a router that discovers virtual consoles and
// pseudo-terminals under /dev.
func NewRouter(gateFor GateFactory) *Router {
	return &Router{
		sessions:   make(map[string]*Session),
		gateFor:    gateFor,
		patterns:   []string{"/dev/tty[1-9]", "/dev/tty[1-9][0-9]", "/dev/pts/[0-9]*"},
		activePath: activeConsoleFile,
	}
}

// SetOnActiveChange registers a callback fired exactly once per
// active-terminal change.
func (r *Router) SetOnActiveChange(fn func(path string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onActiveChange = fn
}

// Resolve returns the active session's sink and gate as one consistent
// pairing. Implements pipeline.Target.
func (r *Router) Resolve() (pipeline.Output, pipeline.Gate, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil || r.active.Dead() {
		return nil, nil, false
	}
	return r.active.Sink, r.active.Gate, true
}

// ActivePath returns the active session's terminal path for status
// reporting, or "" when none is active.
func (r *Router) ActivePath() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return ""
	}
	return r.active.Path
}

// SessionCount returns how many terminals are being monitored.
func (r *Router) SessionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Run drives discovery and active detection until the context is
// cancelled, then joins every scanning loop and closes all sessions.
func (r *Router) Run(ctx context.Context) error {
	r.discover(ctx)
	r.detectActive()

	discoveryTick := time.NewTicker(discoveryInterval)
	defer discoveryTick.Stop()
	activeTick := time.NewTicker(activeInterval)
	defer activeTick.Stop()

	for {
		select {
		case <-ctx.Done():
			r.wg.Wait()
			r.closeAll()
			return ctx.Err()
		case <-discoveryTick.C:
			r.discover(ctx)
		case <-activeTick.C:
			r.detectActive()
		}
	}
}

// discover scans for terminal devices that appeared since the last
// pass. Sessions are additive within a run; terminals that vanish are
// marked dead by their scan loop and skipped, not pruned.
func (r *Router) discover(ctx context.Context) {
	var paths []string
	for _, pattern := range r.patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		paths = append(paths, matches...)
	}

	for _, path := range paths {
		r.mu.Lock()
		_, known := r.sessions[path]
		full := len(r.sessions) >= maxSessions
		r.mu.Unlock()
		if known || full {
			continue
		}

		s, err := newSession(path, r.gateFor)
		if err != nil {
			// Usually a permissions problem; the terminal may become
			// accessible later, so it stays eligible for discovery.
			continue
		}

		r.mu.Lock()
		r.sessions[path] = s
		count := len(r.sessions)
		r.mu.Unlock()
		log.Printf("Router: monitoring %s (%d sessions)", path, count)

		r.wg.Add(1)
		go r.scanLoop(ctx, s)
	}
}

// scanLoop is the passive escape-sequence scanner for one session.
func (r *Router) scanLoop(ctx context.Context, s *Session) {
	defer r.wg.Done()
	buf := make([]byte, 4096)
	tick := time.NewTicker(scanInterval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if !s.scanOnce(buf) {
				log.Printf("Router: %s went away, session marked dead", s.Path)
				return
			}
		}
	}
}

// detectActive picks the foreground terminal: the kernel's active
// virtual console when it names a monitored session, otherwise the
// most recently active session.
func (r *Router) detectActive() {
	if s := r.activeConsoleSession(); s != nil {
		r.setActive(s)
		return
	}

	r.mu.Lock()
	var best *Session
	for _, s := range r.sessions {
		if s.Dead() {
			continue
		}
		if best == nil || s.LastActivity().After(best.LastActivity()) {
			best = s
		}
	}
	r.mu.Unlock()
	if best != nil {
		r.setActive(best)
	}
}

// activeConsoleSession resolves the kernel's active-VT record to a
// monitored session, or nil.
func (r *Router) activeConsoleSession() *Session {
	data, err := os.ReadFile(r.activePath)
	if err != nil {
		return nil
	}
	name := strings.TrimSpace(string(data))
	if name == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.sessions["/dev/"+name]
	if s == nil || s.Dead() {
		return nil
	}
	return s
}

// setActive swaps the active session and notifies exactly once per
// change. The sink/gate pairing is updated under the same lock Resolve
// takes, so the pipeline never sees a half-switched target.
func (r *Router) setActive(s *Session) {
	r.mu.Lock()
	if r.active == s {
		r.mu.Unlock()
		return
	}
	r.active = s
	fn := r.onActiveChange
	r.mu.Unlock()

	log.Printf("Router: active terminal now %s", s.Path)
	if fn != nil {
		fn(s.Path)
	}
}

func (r *Router) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		s.close()
	}
	r.active = nil
}
