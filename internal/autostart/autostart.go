// Package autostart installs and removes the daemon's systemd unit.
package autostart

import (
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

const unitName = "conmouse.service"

const unitTemplate = `[Unit]
Description=Console mouse daemon
After=systemd-udevd.service

[Service]
ExecStart={{.ExecutablePath}} --multi
Restart=on-failure
RestartSec=2

[Install]
WantedBy=multi-user.target
`

// unitPath picks the system unit directory for root and the per-user
// one otherwise. The device nodes under /dev/input normally need root,
// but a user in the input group can run the daemon from a user unit.
func unitPath() (string, error) {
	if os.Geteuid() == 0 {
		return filepath.Join("/etc/systemd/system", unitName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "systemd", "user", unitName), nil
}

// Enable writes the systemd unit pointing at the current executable.
// The caller still runs `systemctl enable conmouse` to activate it.
func Enable() error {
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	path, err := unitPath()
	if err != nil {
		return err
	}
	return installTo(path, execPath)
}

func installTo(path, execPath string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	tmpl, err := template.New("unit").Parse(unitTemplate)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return tmpl.Execute(f, struct{ ExecutablePath string }{execPath})
}

// Disable removes the systemd unit
func Disable() error {
	path, err := unitPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// IsEnabled checks whether the systemd unit is installed
func IsEnabled() bool {
	path, err := unitPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}
