// Package pointer accumulates cursor position and button state from
// device deltas against known terminal dimensions.
package pointer

import "conmouse/internal/evdev"

// Default terminal dimensions used until a real size is known.
const (
	DefaultWidth  = 80
	DefaultHeight = 24
)

// Tracker holds the pointer position, clamped to the terminal bounds,
// and the pressed state of each logical button. One Tracker belongs to
// one translation pipeline; it is not safe for concurrent use.
type Tracker struct {
	x, y          int
	width, height int
	buttons       [5]bool
}

// NewTracker returns a Tracker at the origin with the given terminal
// size. Non-positive dimensions fall back to the 80x24 default.
func NewTracker(width, height int) *Tracker {
	t := &Tracker{}
	t.SetSize(width, height)
	return t
}

// SetSize updates the terminal dimensions and re-clamps the current
// position. Called on demand, not per event.
func (t *Tracker) SetSize(width, height int) {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	t.width, t.height = width, height
	t.x = clamp(t.x, 0, width-1)
	t.y = clamp(t.y, 0, height-1)
}

// Size returns the current terminal dimensions.
func (t *Tracker) Size() (width, height int) {
	return t.width, t.height
}

// Position returns the current pointer cell.
func (t *Tracker) Position() (x, y int) {
	return t.x, t.y
}

// MoveRelative applies a relative delta, clamping at the bounds.
func (t *Tracker) MoveRelative(dx, dy int) {
	t.x = clamp(t.x+dx, 0, t.width-1)
	t.y = clamp(t.y+dy, 0, t.height-1)
}

// MoveAbsoluteX rescales an absolute device value on the X axis into
// terminal columns: clamp to the device range, scale linearly, clamp to
// the terminal bound.
func (t *Tracker) MoveAbsoluteX(value, devMin, devMax int) {
	t.x = scaleAbsolute(value, devMin, devMax, t.width)
}

// MoveAbsoluteY rescales an absolute device value on the Y axis into
// terminal rows.
func (t *Tracker) MoveAbsoluteY(value, devMin, devMax int) {
	t.y = scaleAbsolute(value, devMin, devMax, t.height)
}

func scaleAbsolute(value, devMin, devMax, terminalMax int) int {
	span := devMax - devMin
	if span <= 0 {
		return 0
	}
	v := clamp(value, devMin, devMax) - devMin
	return clamp(v*terminalMax/span, 0, terminalMax-1)
}

// SetButton records a physical button transition and returns the
// logical button id. Unmapped physical codes are dropped (ok=false, no
// event should be emitted for them).
func (t *Tracker) SetButton(code int, pressed bool) (logical int, ok bool) {
	logical, ok = LogicalButton(code)
	if !ok {
		return 0, false
	}
	t.buttons[logical] = pressed
	return logical, true
}

// HeldButton returns the lowest-numbered pressed logical button, used
// for motion reports while dragging.
func (t *Tracker) HeldButton() (logical int, ok bool) {
	for id, pressed := range t.buttons {
		if pressed {
			return id, true
		}
	}
	return 0, false
}

// LogicalButton maps a physical evdev button code to the fixed logical
// numbering: 0=left, 1=middle, 2=right, 3=side, 4=extra.
func LogicalButton(code int) (int, bool) {
	switch code {
	case evdev.BtnLeft:
		return 0, true
	case evdev.BtnMiddle:
		return 1, true
	case evdev.BtnRight:
		return 2, true
	case evdev.BtnSide:
		return 3, true
	case evdev.BtnExtra:
		return 4, true
	}
	return 0, false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
