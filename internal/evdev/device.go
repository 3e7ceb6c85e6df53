// Package evdev provides access to Linux kernel input devices: opening
// device nodes, querying capability bitmaps, decoding the fixed-size
// binary event records and controlling exclusive-grab state.
package evdev

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// InputEvent mirrors the kernel's struct input_event exactly. Field
// order and widths must not change; the record is decoded by casting
// the raw bytes read from the device node.
type InputEvent struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

// EventSize is the wire size of one kernel event record.
const EventSize = int(unsafe.Sizeof(InputEvent{}))

// Capabilities describes what a device reported at open time. Derived
// once per device and immutable thereafter.
type Capabilities struct {
	Name     string `json:"name"`
	Relative bool   `json:"relative"`
	Absolute bool   `json:"absolute"`
	Buttons  bool   `json:"buttons"`
}

// IsPointer reports whether the capability set qualifies the device as
// a pointer: buttons together with either relative or absolute motion.
func (c Capabilities) IsPointer() bool {
	return c.Buttons && (c.Relative || c.Absolute)
}

// AbsInfo is the kernel's struct input_absinfo, reported per absolute axis.
type AbsInfo struct {
	Value      int32
	Min        int32
	Max        int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

// ErrNoData is returned by ReadEvent when no event is currently queued.
// It is a normal poll outcome, not an I/O failure.
var ErrNoData = errors.New("no input event available")

// ErrNotPointer is returned by discovery when a device lacks pointer
// capabilities.
var ErrNotPointer = errors.New("device is not a pointer device")

// ioctl request encoding, after the kernel's _IOC macro
const (
	iocNRShift   = 0
	iocTypeShift = 8
	iocSizeShift = 16
	iocDirShift  = 30

	iocWrite = 1
	iocRead  = 2
)

func ioc(dir, nr, size uint32) uint {
	return uint(dir<<iocDirShift | uint32('E')<<iocTypeShift | nr<<iocNRShift | size<<iocSizeShift)
}

func eviocgName(size int) uint { return ioc(iocRead, 0x06, uint32(size)) }

func eviocgBit(ev, size int) uint { return ioc(iocRead, uint32(0x20+ev), uint32(size)) }
func eviocgAbs(axis int) uint {
	return ioc(iocRead, uint32(0x40+axis), uint32(unsafe.Sizeof(AbsInfo{})))
}
func eviocGrab() uint { return ioc(iocWrite, 0x90, uint32(unsafe.Sizeof(int32(0)))) }

// Device is an open evdev device node. Opened in non-blocking mode; at
// most one Device may hold the exclusive grab on a given node at a time
// and the grab is always released before the descriptor is closed.
type Device struct {
	path    string
	fd      int
	caps    Capabilities
	absX    AbsInfo
	absY    AbsInfo
	hasAbs  bool
	grabbed bool
	readBuf [24]byte
}

// Open opens the device node read-only and non-blocking and queries its
// capabilities once.
func Open(path string) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	d := &Device{path: path, fd: fd}
	if err := d.queryCapabilities(); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("query capabilities of %s: %w", path, err)
	}
	return d, nil
}

// Path returns the device node path this Device was opened from.
func (d *Device) Path() string { return d.path }

// Capabilities returns the capability set queried at open time.
func (d *Device) Capabilities() Capabilities { return d.caps }

// AbsRange returns the reported range for an absolute axis, and whether
// the device reported absolute axes at all.
func (d *Device) AbsRange(axis int) (min, max int32, ok bool) {
	if !d.hasAbs {
		return 0, 0, false
	}
	switch axis {
	case AbsX:
		return d.absX.Min, d.absX.Max, true
	case AbsY:
		return d.absY.Min, d.absY.Max, true
	}
	return 0, 0, false
}

func (d *Device) ioctl(req uint, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(d.fd), uintptr(req), uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

// anyBitSet reports whether any capability bit is set in the bitmap the
// kernel returns for one event-type class.
func anyBitSet(bitmap []byte) bool {
	for _, b := range bitmap {
		if b != 0 {
			return true
		}
	}
	return false
}

func (d *Device) classSupported(ev int) bool {
	// KEY_MAX is the largest code space; one buffer size fits all classes.
	var bits [96]byte
	if err := d.ioctl(eviocgBit(ev, len(bits)), unsafe.Pointer(&bits[0])); err != nil {
		return false
	}
	return anyBitSet(bits[:])
}

func (d *Device) queryCapabilities() error {
	var name [256]byte
	if err := d.ioctl(eviocgName(len(name)), unsafe.Pointer(&name[0])); err != nil {
		return err
	}
	d.caps.Name = unix.ByteSliceToString(name[:])

	d.caps.Relative = d.classSupported(EvRel)
	d.caps.Absolute = d.classSupported(EvAbs)
	d.caps.Buttons = d.classSupported(EvKey)

	if d.caps.Absolute {
		if err := d.ioctl(eviocgAbs(AbsX), unsafe.Pointer(&d.absX)); err == nil {
			d.hasAbs = true
		}
		if err := d.ioctl(eviocgAbs(AbsY), unsafe.Pointer(&d.absY)); err != nil {
			d.absY = d.absX
		}
	}
	return nil
}

// ReadEvent reads and decodes one event record. Returns ErrNoData when
// the non-blocking read has nothing queued; callers must yield briefly
// before retrying rather than busy-spinning.
func (d *Device) ReadEvent() (InputEvent, error) {
	buf := d.readBuf[:EventSize]
	n, err := unix.Read(d.fd, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return InputEvent{}, ErrNoData
		}
		return InputEvent{}, fmt.Errorf("read %s: %w", d.path, err)
	}
	if n != EventSize {
		return InputEvent{}, fmt.Errorf("read %s: short event record (%d bytes)", d.path, n)
	}
	return DecodeEvent(buf)
}

// DecodeEvent interprets one raw kernel event record. The buffer must
// be exactly EventSize bytes in the machine's native layout.
func DecodeEvent(buf []byte) (InputEvent, error) {
	if len(buf) != EventSize {
		return InputEvent{}, fmt.Errorf("decode event: want %d bytes, got %d", EventSize, len(buf))
	}
	return *(*InputEvent)(unsafe.Pointer(&buf[0])), nil
}

// Grab requests or releases exclusive access. Requesting twice is an
// error from the kernel; Device tracks its own state so release happens
// exactly once.
func (d *Device) Grab(exclusive bool) error {
	if exclusive == d.grabbed {
		return nil
	}
	var arg uintptr
	if exclusive {
		arg = 1
	}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(d.fd), uintptr(eviocGrab()), arg)
	if errno != 0 {
		return fmt.Errorf("grab %s (exclusive=%v): %w", d.path, exclusive, errno)
	}
	d.grabbed = exclusive
	return nil
}

// Close releases the grab if held, then closes the descriptor. Safe to
// call on every exit path; the grab is never left behind.
func (d *Device) Close() error {
	if d.fd < 0 {
		return nil
	}
	if d.grabbed {
		if err := d.Grab(false); err != nil {
			// Still close the descriptor; the kernel drops the grab with it.
			unix.Close(d.fd)
			d.fd = -1
			return err
		}
	}
	err := unix.Close(d.fd)
	d.fd = -1
	return err
}
