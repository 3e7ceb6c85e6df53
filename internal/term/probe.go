package term

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// InRawMode reports whether canonical line processing is currently
// disabled on the terminal behind fd. A full-screen program that put
// its terminal into raw mode is presumed to want raw mouse input.
func InRawMode(fd int) (bool, error) {
	tio, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return false, fmt.Errorf("query termios: %w", err)
	}
	return tio.Lflag&unix.ICANON == 0, nil
}
