// Package config provides configuration management for the console
// mouse daemon.
package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// Config represents the daemon configuration. CLI flags override these
// values for a single run; the file is the persistent form.
type Config struct {
	// General contains the daemon settings
	General GeneralConfig `json:"general"`
}

// GeneralConfig contains the daemon settings
type GeneralConfig struct {
	// DevicePath is the input device node to read; empty means
	// auto-discover the first pointer device
	DevicePath string `json:"device_path,omitempty"`

	// TerminalPath is the terminal to write encoded events to; empty
	// means standard output (single-terminal mode only)
	TerminalPath string `json:"terminal_path,omitempty"`

	// Protocol selects the wire encoding: "sgr", "normal" or "x10"
	Protocol string `json:"protocol"`

	// HonorTracking gates delivery on explicit mouse-tracking escape
	// sequences instead of the raw-mode probe
	HonorTracking bool `json:"honor_tracking"`

	// MultiSession monitors all virtual consoles and pseudo-terminals
	// and routes events to the foreground one
	MultiSession bool `json:"multi_session"`

	// Grab requests exclusive access to the input device
	Grab bool `json:"grab"`

	// APIEnabled enables the HTTP monitor/control server
	APIEnabled bool `json:"api_enabled"`

	// APIPort is the port for the monitor server (default: 18089)
	APIPort int `json:"api_port"`

	// APIToken is an optional authentication token for API requests
	APIToken string `json:"api_token,omitempty"`
}

// DefaultConfig returns a new Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		General: GeneralConfig{
			Protocol:      "sgr",
			HonorTracking: false,
			MultiSession:  false,
			Grab:          true,
			APIEnabled:    false,
			APIPort:       18089,
		},
	}
}

// Manager handles loading and saving configuration
type Manager struct {
	mu         sync.Mutex
	configPath string
	config     *Config
	onChanged  func()
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	return &Manager{
		configPath: configPath,
		config:     DefaultConfig(),
	}, nil
}

// getConfigPath returns the path to the configuration file
func getConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, ".config", "conmouse")

	// Create directory if it doesn't exist
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}

	return filepath.Join(configDir, "config.json"), nil
}

// Load reads the configuration from disk
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.configPath)
	if os.IsNotExist(err) {
		// No config file, use defaults
		return nil
	}
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, m.config); err != nil {
		return err
	}
	if m.onChanged != nil {
		m.onChanged()
	}
	return nil
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return err
	}

	log.Printf("Config: Saving configuration to %s (%d bytes)", m.configPath, len(data))
	return os.WriteFile(m.configPath, data, 0644)
}

// Get returns the current configuration
func (m *Manager) Get() *Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// Set updates the configuration
func (m *Manager) Set(config *Config) {
	m.mu.Lock()
	m.config = config
	m.mu.Unlock()
	if m.onChanged != nil {
		m.onChanged()
	}
}

// RegisterChangeCallback registers a function to be called when config changes
func (m *Manager) RegisterChangeCallback(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChanged = fn
}
