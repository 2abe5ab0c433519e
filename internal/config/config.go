// Package config provides configuration management for input sharing.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Device positions relative to the host screen.
const (
	PositionTop    = "top"
	PositionRight  = "right"
	PositionBottom = "bottom"
	PositionLeft   = "left"
)

// Config represents the application configuration
type Config struct {
	General    GeneralConfig    `json:"general" toml:"general" yaml:"general"`
	Device     DeviceConfig     `json:"device" toml:"device" yaml:"device"`
	EdgePortal EdgePortalConfig `json:"edge_portal" toml:"edge_portal" yaml:"edge_portal"`
	Hotkeys    HotkeyConfig     `json:"hotkeys" toml:"hotkeys" yaml:"hotkeys"`
	API        APIConfig        `json:"api" toml:"api" yaml:"api"`
}

// GeneralConfig holds the sharing behavior toggles.
type GeneralConfig struct {
	// MouseSpeed multiplies pointer deltas before damping
	MouseSpeed float64 `json:"mouse_speed" toml:"mouse_speed" yaml:"mouse_speed"`

	// KeepWakeup sends periodic wake keys while the pointer is idle
	KeepWakeup bool `json:"keep_wakeup" toml:"keep_wakeup" yaml:"keep_wakeup"`

	// ShareKeyboardOnly forwards keys but leaves the pointer local
	ShareKeyboardOnly bool `json:"share_keyboard_only" toml:"share_keyboard_only" yaml:"share_keyboard_only"`

	// SyncClipboard pushes the host clipboard when redirection starts
	SyncClipboard bool `json:"sync_clipboard" toml:"sync_clipboard" yaml:"sync_clipboard"`
}

// DeviceConfig locates the device services.
type DeviceConfig struct {
	// Addr is the control socket, usually forwarded to localhost
	Addr string `json:"device_addr" toml:"device_addr" yaml:"device_addr"`

	// ReporterAddr is the reporter service socket
	ReporterAddr string `json:"reporter_addr" toml:"reporter_addr" yaml:"reporter_addr"`
}

// EdgePortalConfig controls edge-triggered toggling.
type EdgePortalConfig struct {
	EdgeToggling   bool   `json:"edge_toggling" toml:"edge_toggling" yaml:"edge_toggling"`
	DevicePosition string `json:"device_position" toml:"device_position" yaml:"device_position"`

	// TriggerMargin keeps the corners of a left or right edge inert
	TriggerMargin int `json:"trigger_margin" toml:"trigger_margin" yaml:"trigger_margin"`

	// ScreenWidth and ScreenHeight override the detected screen size
	ScreenWidth  int `json:"screen_width,omitempty" toml:"screen_width,omitempty" yaml:"screen_width,omitempty"`
	ScreenHeight int `json:"screen_height,omitempty" toml:"screen_height,omitempty" yaml:"screen_height,omitempty"`
}

// HotkeyConfig holds the global chords.
type HotkeyConfig struct {
	Toggle string `json:"toggle_hotkey" toml:"toggle_hotkey" yaml:"toggle_hotkey"`
	Exit   string `json:"exit_hotkey" toml:"exit_hotkey" yaml:"exit_hotkey"`
}

// APIConfig configures the local control API.
type APIConfig struct {
	Enabled bool `json:"api_enabled" toml:"api_enabled" yaml:"api_enabled"`

	// Port is bound on 127.0.0.1 only
	Port int `json:"api_port" toml:"api_port" yaml:"api_port"`

	// Token is an optional bearer token for API requests
	Token string `json:"api_token,omitempty" toml:"api_token,omitempty" yaml:"api_token,omitempty"`
}

// DefaultConfig returns a new Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		General: GeneralConfig{
			MouseSpeed:    10,
			KeepWakeup:    false,
			SyncClipboard: true,
		},
		Device: DeviceConfig{
			Addr:         "127.0.0.1:27183",
			ReporterAddr: "127.0.0.1:61625",
		},
		EdgePortal: EdgePortalConfig{
			EdgeToggling:   true,
			DevicePosition: PositionLeft,
			TriggerMargin:  50,
		},
		Hotkeys: HotkeyConfig{
			Toggle: "Ctrl+Alt+S",
			Exit:   "Ctrl+Alt+Q",
		},
		API: APIConfig{
			Enabled: true,
			Port:    18080,
		},
	}
}

// Manager handles loading, saving and watching the configuration
type Manager struct {
	mu         sync.Mutex
	configPath string
	config     *Config
	onChanged  []func(Config)

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewManager creates a configuration manager for path. An empty path
// selects config.json in the per-user configuration directory.
func NewManager(path string) (*Manager, error) {
	if path == "" {
		var err error
		if path, err = defaultConfigPath(); err != nil {
			return nil, err
		}
	}
	return &Manager{
		configPath: path,
		config:     DefaultConfig(),
		done:       make(chan struct{}),
	}, nil
}

// defaultConfigPath returns the path to the configuration file
func defaultConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "inputshare")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		configDir = filepath.Join(appData, "inputshare")
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, ".config", "inputshare")
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}

	return filepath.Join(configDir, "config.json"), nil
}

// Path returns the configuration file path.
func (m *Manager) Path() string {
	return m.configPath
}

// Load reads the configuration from disk. A missing file keeps the defaults.
func (m *Manager) Load() error {
	cfg, err := loadFile(m.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %s: %w", m.configPath, err)
	}
	m.apply(cfg)
	return nil
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	cfg := *m.config
	m.mu.Unlock()

	data, err := encode(m.configPath, &cfg)
	if err != nil {
		return err
	}
	log.Printf("Config: Saving configuration to %s (%d bytes)", m.configPath, len(data))
	return os.WriteFile(m.configPath, data, 0644)
}

// Get returns a copy of the current configuration
func (m *Manager) Get() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.config
}

// Set validates and replaces the configuration
func (m *Manager) Set(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.apply(&cfg)
	return nil
}

// Update applies fn to a copy of the configuration and stores the result
// if it validates.
func (m *Manager) Update(fn func(*Config)) error {
	cfg := m.Get()
	fn(&cfg)
	return m.Set(cfg)
}

func (m *Manager) apply(cfg *Config) {
	m.mu.Lock()
	m.config = cfg
	fns := append([]func(Config){}, m.onChanged...)
	m.mu.Unlock()
	for _, fn := range fns {
		fn(*cfg)
	}
}

// RegisterChangeCallback registers a function to be called when config changes
func (m *Manager) RegisterChangeCallback(fn func(Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChanged = append(m.onChanged, fn)
}
