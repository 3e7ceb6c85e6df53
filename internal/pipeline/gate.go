package pipeline

import (
	"conmouse/internal/term"
	"conmouse/internal/tracking"
)

// Gate decides, per event, whether the terminal the events are destined
// for currently wants mouse data. Implementations must re-evaluate on
// every call: the foreground program can change its mind at any time.
type Gate interface {
	ShouldDeliver() bool
}

// TrackingGate delivers while the terminal's mode tracker says a mouse
// tracking mode is enabled.
type TrackingGate struct {
	Tracker *tracking.Tracker
}

func (g TrackingGate) ShouldDeliver() bool {
	return g.Tracker.Enabled()
}

// RawModeGate probes the terminal's line discipline and delivers while
// canonical processing is off. The probe goes to the kernel on every
// call; nothing is cached.
type RawModeGate struct {
	Fd int
}

func (g RawModeGate) ShouldDeliver() bool {
	raw, err := term.InRawMode(g.Fd)
	return err == nil && raw
}

// GateFunc adapts a plain function to the Gate interface.
type GateFunc func() bool

func (f GateFunc) ShouldDeliver() bool { return f() }
