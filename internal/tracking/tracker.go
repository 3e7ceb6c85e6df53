// Package tracking maintains the mouse-reporting mode state of one
// terminal by watching the escape sequences applications write to it.
package tracking

import (
	"strconv"
	"strings"
	"sync"
)

// DEC private mode numbers that affect mouse reporting
const (
	ModeButtonEvent = 1000
	ModeMotion      = 1002
	ModeAnyMotion   = 1003
	ModeUTF8        = 1005
	ModeSGR         = 1006
	ModeURXVT       = 1015
)

// State holds the mouse-reporting flags of one terminal. The first
// three decide whether tracking is wanted at all; the rest only select
// the wire encoding.
type State struct {
	ButtonEvent bool `json:"button_event"`
	Motion      bool `json:"motion"`
	AnyMotion   bool `json:"any_motion"`
	UTF8        bool `json:"utf8"`
	SGR         bool `json:"sgr"`
	URXVT       bool `json:"urxvt"`
}

// Enabled reports whether any of the semantic tracking modes is on.
// Encoding-only modes (UTF8, SGR, URXVT) do not count.
func (s State) Enabled() bool {
	return s.ButtonEvent || s.Motion || s.AnyMotion
}

// maxPending bounds the unterminated sequence tail carried between
// feeds. A real CSI is a few dozen bytes; a candidate that grows past
// this is garbage, not a split sequence, and is discarded.
const maxPending = 4096

// Tracker consumes terminal output bytes and keeps the State current.
// One Tracker owns the state of one monitored terminal.
type Tracker struct {
	mu       sync.Mutex
	state    State
	pending  []byte
	onChange func(enabled bool)
}

// NewTracker returns a Tracker with all modes off.
func NewTracker() *Tracker {
	return &Tracker{}
}

// SetOnChange registers a callback fired when the composite enabled
// value flips. Individual flag writes that leave the composite value
// unchanged do not fire it.
func (t *Tracker) SetOnChange(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onChange = fn
}

// State returns a copy of the current mode state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Enabled reports whether the terminal currently wants mouse events.
func (t *Tracker) Enabled() bool {
	return t.State().Enabled()
}

// Feed consumes a chunk of terminal output. Escape sequences may be
// split across chunks; an incomplete trailing sequence is carried over
// to the next call.
func (t *Tracker) Feed(data []byte) {
	t.mu.Lock()

	buf := data
	if len(t.pending) > 0 {
		buf = append(t.pending, data...)
		t.pending = nil
	}

	before := t.state.Enabled()
	sequences, rest := splitSequences(buf)
	for _, seq := range sequences {
		t.apply(seq)
	}
	if len(rest) > 0 && len(rest) <= maxPending {
		t.pending = append(t.pending, rest...)
	}
	after := t.state.Enabled()
	fn := t.onChange

	t.mu.Unlock()

	if before != after && fn != nil {
		fn(after)
	}
}

// apply interprets one complete escape sequence. Only DEC private mode
// set/reset sequences (ESC [ ? params h|l) are meaningful; anything
// else is silently ignored.
func (t *Tracker) apply(seq []byte) {
	// seq is ESC '[' ... final
	if len(seq) < 5 || seq[2] != '?' {
		return
	}
	final := seq[len(seq)-1]
	if final != 'h' && final != 'l' {
		return
	}
	set := final == 'h'

	params := string(seq[3 : len(seq)-1])
	for _, p := range strings.Split(params, ";") {
		mode, err := strconv.Atoi(p)
		if err != nil {
			continue
		}
		switch mode {
		case ModeButtonEvent:
			t.state.ButtonEvent = set
		case ModeMotion:
			t.state.Motion = set
		case ModeAnyMotion:
			t.state.AnyMotion = set
		case ModeUTF8:
			t.state.UTF8 = set
		case ModeSGR:
			t.state.SGR = set
		case ModeURXVT:
			t.state.URXVT = set
		}
	}
}
