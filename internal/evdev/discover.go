package evdev

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// DiscoveredDevice describes one probed input device node.
type DiscoveredDevice struct {
	Path         string       `json:"path"`
	Capabilities Capabilities `json:"capabilities"`
}

// ListDevices probes every /dev/input/event* node it can open and
// reports the capabilities of each. Nodes that cannot be opened
// (usually a permissions problem) are skipped, not fatal.
func ListDevices() ([]DiscoveredDevice, error) {
	paths, err := filepath.Glob("/dev/input/event*")
	if err != nil {
		return nil, err
	}
	sortDevicePaths(paths)

	var devices []DiscoveredDevice
	for _, path := range paths {
		d, err := Open(path)
		if err != nil {
			continue
		}
		devices = append(devices, DiscoveredDevice{Path: path, Capabilities: d.Capabilities()})
		d.Close()
	}
	return devices, nil
}

// FindPointer returns the first device node that qualifies as a pointer
// device. Fails when no node qualifies or none could be opened.
func FindPointer() (string, error) {
	devices, err := ListDevices()
	if err != nil {
		return "", err
	}
	for _, dev := range devices {
		if dev.Capabilities.IsPointer() {
			return dev.Path, nil
		}
	}
	return "", fmt.Errorf("no pointer device found among %d input devices: %w", len(devices), ErrNotPointer)
}

// sortDevicePaths orders event nodes by their numeric suffix so event2
// sorts before event10.
func sortDevicePaths(paths []string) {
	num := func(p string) int {
		i := strings.LastIndex(p, "event")
		if i < 0 {
			return 0
		}
		n, _ := strconv.Atoi(p[i+len("event"):])
		return n
	}
	sort.Slice(paths, func(i, j int) bool { return num(paths[i]) < num(paths[j]) })
}
