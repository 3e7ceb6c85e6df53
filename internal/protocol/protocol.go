// Package protocol renders mouse actions into terminal mouse-reporting
// wire formats.
package protocol

import (
	"fmt"
	"strings"
)

// Protocol selects the wire encoding. Chosen at startup and fixed for
// the daemon's lifetime.
type Protocol int

const (
	// SGR is the extended encoding (DEC mode 1006): decimal fields,
	// distinct release sequences, no coordinate limit.
	SGR Protocol = iota

	// Normal is the legacy X11 encoding: three bytes offset by 32,
	// release reported as button code 3.
	Normal

	// X10 is the oldest encoding: press only, releases are not emitted.
	X10
)

func (p Protocol) String() string {
	switch p {
	case SGR:
		return "sgr"
	case Normal:
		return "normal"
	case X10:
		return "x10"
	}
	return fmt.Sprintf("protocol(%d)", int(p))
}

// Parse maps a protocol name from the CLI or config to a Protocol.
func Parse(name string) (Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sgr", "":
		return SGR, nil
	case "normal":
		return Normal, nil
	case "x10":
		return X10, nil
	}
	return SGR, fmt.Errorf("unknown protocol %q (want sgr, normal or x10)", name)
}

// Action is what happened to the pointer.
type Action int

const (
	Press Action = iota
	Release
	Motion
	ScrollUp
	ScrollDown
)

func (a Action) String() string {
	switch a {
	case Press:
		return "press"
	case Release:
		return "release"
	case Motion:
		return "motion"
	case ScrollUp:
		return "scroll_up"
	case ScrollDown:
		return "scroll_down"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Logical button ids passed to Encode. The pipeline maps physical
// device codes to these.
const (
	ButtonLeft   = 0
	ButtonMiddle = 1
	ButtonRight  = 2
	ButtonSide   = 3
	ButtonExtra  = 4
)

const (
	motionOffset   = 32
	scrollUpCode   = 64
	scrollDownCode = 65
	legacyRelease  = 3
	legacyMaxCoord = 223
)

// Encode renders one action as a byte sequence. It is pure: the same
// inputs always produce the same bytes. Unsupported action/protocol
// combinations return nil (e.g. release or motion under X10).
func Encode(p Protocol, action Action, button, x, y int) []byte {
	switch p {
	case SGR:
		return encodeSGR(action, button, x, y)
	case Normal:
		return encodeLegacy(action, button, x, y, true)
	case X10:
		return encodeLegacy(action, button, x, y, false)
	}
	return nil
}

func encodeSGR(action Action, button, x, y int) []byte {
	code := button
	final := byte('M')
	switch action {
	case Press:
	case Release:
		final = 'm'
	case Motion:
		code = button + motionOffset
	case ScrollUp:
		code = scrollUpCode
	case ScrollDown:
		code = scrollDownCode
	default:
		return nil
	}
	return []byte(fmt.Sprintf("\x1b[<%d;%d;%d%c", code, x, y, final))
}

// encodeLegacy covers Normal and X10. withRelease distinguishes them:
// Normal maps releases to the reserved button code, X10 drops them
// along with every other action it never defined.
func encodeLegacy(action Action, button, x, y int, withRelease bool) []byte {
	code := button
	switch action {
	case Press:
	case Release:
		if !withRelease {
			return nil
		}
		code = legacyRelease
	case Motion:
		if !withRelease {
			return nil
		}
		code = button + motionOffset
	case ScrollUp:
		if !withRelease {
			return nil
		}
		code = scrollUpCode
	case ScrollDown:
		if !withRelease {
			return nil
		}
		code = scrollDownCode
	default:
		return nil
	}
	return []byte{0x1b, '[', 'M', legacyByte(code), legacyByte(x), legacyByte(y)}
}

// legacyByte offsets a value by 32 for the three-byte tail. Values the
// single byte cannot carry are pinned to the maximum; the coordinate
// clamp upstream keeps positions in range before this ever matters.
func legacyByte(v int) byte {
	if v > legacyMaxCoord {
		v = legacyMaxCoord
	}
	if v < 0 {
		v = 0
	}
	return byte(v + 32)
}
