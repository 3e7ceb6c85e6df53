package pointer

import (
	"testing"

	"conmouse/internal/evdev"
)

// TestRelativeAccumulation checks that deltas sum with per-step clamping
func TestRelativeAccumulation(t *testing.T) {
	tr := NewTracker(80, 24)

	tr.MoveRelative(10, 5)
	tr.MoveRelative(3, -2)
	x, y := tr.Position()
	if x != 13 || y != 3 {
		t.Errorf("position = (%d,%d), want (13,3)", x, y)
	}
}

// TestRelativeClampBothDirections overshoots the bounds on every side
func TestRelativeClampBothDirections(t *testing.T) {
	tr := NewTracker(80, 24)

	tr.MoveRelative(-1000, -1000)
	if x, y := tr.Position(); x != 0 || y != 0 {
		t.Errorf("position = (%d,%d), want (0,0)", x, y)
	}

	tr.MoveRelative(1000, 1000)
	if x, y := tr.Position(); x != 79 || y != 23 {
		t.Errorf("position = (%d,%d), want (79,23)", x, y)
	}

	// Clamping must happen at every step, not only at the end: a huge
	// negative then small positive delta lands near the low edge.
	tr.MoveRelative(-1000, 0)
	tr.MoveRelative(3, 0)
	if x, _ := tr.Position(); x != 3 {
		t.Errorf("x = %d, want 3 after clamp-then-move", x)
	}
}

// TestAbsoluteScaling checks the linear rescale stays in bounds and is
// monotonically non-decreasing across the whole device range
func TestAbsoluteScaling(t *testing.T) {
	tr := NewTracker(80, 24)
	const devMax = 4095

	prev := -1
	for v := 0; v <= devMax; v += 17 {
		tr.MoveAbsoluteX(v, 0, devMax)
		x, _ := tr.Position()
		if x < 0 || x > 79 {
			t.Fatalf("value %d scaled out of bounds: %d", v, x)
		}
		if x < prev {
			t.Fatalf("scaling not monotonic: value %d gave %d after %d", v, x, prev)
		}
		prev = x
	}

	tr.MoveAbsoluteX(devMax, 0, devMax)
	if x, _ := tr.Position(); x != 79 {
		t.Errorf("device max scaled to %d, want 79", x)
	}
	tr.MoveAbsoluteX(-50, 0, devMax)
	if x, _ := tr.Position(); x != 0 {
		t.Errorf("below-range value scaled to %d, want 0", x)
	}
}

// TestAbsoluteScalingOffsetRange checks devices whose axis does not start at zero
func TestAbsoluteScalingOffsetRange(t *testing.T) {
	tr := NewTracker(100, 24)
	tr.MoveAbsoluteX(500, 500, 1500)
	if x, _ := tr.Position(); x != 0 {
		t.Errorf("range minimum scaled to %d, want 0", x)
	}
	tr.MoveAbsoluteX(1000, 500, 1500)
	if x, _ := tr.Position(); x != 50 {
		t.Errorf("range midpoint scaled to %d, want 50", x)
	}
}

// TestSetSizeReclamps checks that shrinking the terminal pulls the pointer in
func TestSetSizeReclamps(t *testing.T) {
	tr := NewTracker(80, 24)
	tr.MoveRelative(79, 23)
	tr.SetSize(40, 12)
	if x, y := tr.Position(); x != 39 || y != 11 {
		t.Errorf("position = (%d,%d), want (39,11)", x, y)
	}
}

// TestDefaultSize checks the 80x24 fallback
func TestDefaultSize(t *testing.T) {
	tr := NewTracker(0, -1)
	w, h := tr.Size()
	if w != 80 || h != 24 {
		t.Errorf("size = %dx%d, want 80x24", w, h)
	}
}

// TestButtonMapping checks the physical-to-logical button table
func TestButtonMapping(t *testing.T) {
	cases := []struct {
		code    int
		logical int
	}{
		{evdev.BtnLeft, 0},
		{evdev.BtnMiddle, 1},
		{evdev.BtnRight, 2},
		{evdev.BtnSide, 3},
		{evdev.BtnExtra, 4},
	}
	for _, tc := range cases {
		got, ok := LogicalButton(tc.code)
		if !ok || got != tc.logical {
			t.Errorf("LogicalButton(%#x) = %d,%v, want %d,true", tc.code, got, ok, tc.logical)
		}
	}

	if _, ok := LogicalButton(evdev.BtnTouch); ok {
		t.Error("BtnTouch should be dropped, not mapped")
	}
}

// TestHeldButton checks drag-button selection
func TestHeldButton(t *testing.T) {
	tr := NewTracker(80, 24)
	if _, ok := tr.HeldButton(); ok {
		t.Error("no button should be held initially")
	}

	tr.SetButton(evdev.BtnRight, true)
	tr.SetButton(evdev.BtnLeft, true)
	if id, ok := tr.HeldButton(); !ok || id != 0 {
		t.Errorf("held = %d,%v, want lowest pressed id 0", id, ok)
	}

	tr.SetButton(evdev.BtnLeft, false)
	if id, ok := tr.HeldButton(); !ok || id != 2 {
		t.Errorf("held = %d,%v, want 2 after left release", id, ok)
	}
}
