package evdev

// Event types (linux/input-event-codes.h)
const (
	EvSyn = 0x00
	EvKey = 0x01
	EvRel = 0x02
	EvAbs = 0x03
)

// Synchronization codes
const (
	SynReport = 0x00
)

// Relative axes
const (
	RelX      = 0x00
	RelY      = 0x01
	RelWheel  = 0x08
	RelHWheel = 0x06
)

// Absolute axes
const (
	AbsX = 0x00
	AbsY = 0x01
)

// Pointer button codes
const (
	BtnLeft   = 0x110
	BtnRight  = 0x111
	BtnMiddle = 0x112
	BtnSide   = 0x113
	BtnExtra  = 0x114
	BtnTouch  = 0x14a
)

// Key/button state values carried in InputEvent.Value for EvKey events
const (
	KeyRelease = 0
	KeyPress   = 1
	KeyRepeat  = 2
)
