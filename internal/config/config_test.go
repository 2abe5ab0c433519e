package config

import (
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	require.NoError(t, m.Load())
	assert.Equal(t, *DefaultConfig(), m.Get())
}

func TestLoadFormats(t *testing.T) {
	files := map[string]string{
		"config.json": `{"general": {"mouse_speed": 4}, "edge_portal": {"device_position": "top"}}`,
		"config.toml": "[general]\nmouse_speed = 4.0\n\n[edge_portal]\ndevice_position = \"top\"\n",
		"config.yaml": "general:\n  mouse_speed: 4\nedge_portal:\n  device_position: top\n",
	}
	for name, body := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, os.WriteFile(path, []byte(body), 0644))

			m, err := NewManager(path)
			require.NoError(t, err)
			require.NoError(t, m.Load())

			cfg := m.Get()
			assert.Equal(t, 4.0, cfg.General.MouseSpeed)
			assert.Equal(t, PositionTop, cfg.EdgePortal.DevicePosition)
			assert.Equal(t, "127.0.0.1:61625", cfg.Device.ReporterAddr, "unset fields keep defaults")
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	for _, name := range []string{"config.json", "config.toml", "config.yml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			m, err := NewManager(path)
			require.NoError(t, err)
			require.NoError(t, m.Update(func(c *Config) {
				c.General.ShareKeyboardOnly = true
				c.Hotkeys.Toggle = "Ctrl+Shift+F1"
				c.API.Token = "secret"
			}))
			require.NoError(t, m.Save())

			other, err := NewManager(path)
			require.NoError(t, err)
			require.NoError(t, other.Load())
			assert.Equal(t, m.Get(), other.Get())
		})
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"edge_portal": {"device_position": "behind"}}`), 0644))

	m, err := NewManager(path)
	require.NoError(t, err)
	err = m.Load()
	require.Error(t, err)

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, "edge_portal.device_position", verrs[0].Field)
	assert.Equal(t, PositionLeft, m.Get().EdgePortal.DevicePosition, "previous values kept")
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[general\n"), 0644))
	m, err := NewManager(path)
	require.NoError(t, err)
	assert.ErrorContains(t, m.Load(), "decode TOML")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"mouse speed", func(c *Config) { c.General.MouseSpeed = 0 }, "general.mouse_speed"},
		{"device addr", func(c *Config) { c.Device.Addr = "localhost" }, "device.device_addr"},
		{"reporter port", func(c *Config) { c.Device.ReporterAddr = "127.0.0.1:0" }, "device.reporter_addr"},
		{"margin", func(c *Config) { c.EdgePortal.TriggerMargin = -1 }, "edge_portal.trigger_margin"},
		{"screen", func(c *Config) { c.EdgePortal.ScreenWidth = -5 }, "edge_portal.screen_size"},
		{"hotkey", func(c *Config) { c.Hotkeys.Exit = "Ctrl+Bogus" }, "hotkeys.exit_hotkey"},
		{"api port", func(c *Config) { c.API.Port = 70000 }, "api.api_port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs), "got %v", err)
			require.Len(t, verrs, 1)
			assert.Equal(t, tt.field, verrs[0].Field)
		})
	}

	cfg := DefaultConfig()
	cfg.Hotkeys.Toggle = ""
	cfg.API.Enabled = false
	cfg.API.Port = 0
	assert.NoError(t, cfg.Validate(), "empty hotkey and disabled API are allowed")
}

func TestValidateReportsFieldsInOrder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.General.MouseSpeed = -1
	cfg.Device.Addr = "localhost"
	cfg.Device.ReporterAddr = "bad"
	cfg.Hotkeys.Toggle = "Ctrl+Bogus"
	cfg.Hotkeys.Exit = "Ctrl+Hyper"
	cfg.API.Port = 0

	want := []string{
		"general.mouse_speed",
		"device.device_addr",
		"device.reporter_addr",
		"hotkeys.toggle_hotkey",
		"hotkeys.exit_hotkey",
		"api.api_port",
	}
	for i := 0; i < 20; i++ {
		var verrs ValidationErrors
		require.True(t, errors.As(cfg.Validate(), &verrs))
		fields := make([]string, 0, len(verrs))
		for _, e := range verrs {
			fields = append(fields, e.Field)
		}
		require.Equal(t, want, fields)
	}
}

func TestSetNotifiesCallbacks(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)

	var seen []bool
	m.RegisterChangeCallback(func(c Config) { seen = append(seen, c.General.SyncClipboard) })

	require.NoError(t, m.Update(func(c *Config) { c.General.SyncClipboard = false }))
	assert.Error(t, m.Update(func(c *Config) { c.General.MouseSpeed = -1 }))
	assert.Equal(t, []bool{false}, seen, "rejected updates do not notify")
	assert.Equal(t, 10.0, m.Get().General.MouseSpeed)
}

func TestGetReturnsCopy(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	cfg := m.Get()
	cfg.General.MouseSpeed = 99
	assert.Equal(t, 10.0, m.Get().General.MouseSpeed)
}

func TestWatchReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	m, err := NewManager(path)
	require.NoError(t, err)
	require.NoError(t, m.Save())
	require.NoError(t, m.Watch())
	t.Cleanup(func() { m.Close() })

	var speed atomic.Value
	m.RegisterChangeCallback(func(c Config) { speed.Store(c.General.MouseSpeed) })

	require.NoError(t, os.WriteFile(path, []byte(`{"general": {"mouse_speed": 3}}`), 0644))
	assert.Eventually(t, func() bool {
		v, _ := speed.Load().(float64)
		return v == 3
	}, 3*time.Second, 20*time.Millisecond)
}

func TestCloseIsIdempotent(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	require.NoError(t, m.Watch())
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
}
