package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"inputshare/internal/hotkey"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks every field and returns ValidationErrors, or nil.
func (c *Config) Validate() error {
	var errs ValidationErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if c.General.MouseSpeed <= 0 {
		add("general.mouse_speed", "must be positive, got %v", c.General.MouseSpeed)
	}

	for _, f := range []struct{ field, addr string }{
		{"device.device_addr", c.Device.Addr},
		{"device.reporter_addr", c.Device.ReporterAddr},
	} {
		if err := checkHostPort(f.addr); err != nil {
			add(f.field, "%v", err)
		}
	}

	switch c.EdgePortal.DevicePosition {
	case PositionTop, PositionRight, PositionBottom, PositionLeft:
	default:
		add("edge_portal.device_position", "must be top, right, bottom or left, got %q", c.EdgePortal.DevicePosition)
	}
	if c.EdgePortal.TriggerMargin < 0 {
		add("edge_portal.trigger_margin", "must not be negative")
	}
	if c.EdgePortal.ScreenWidth < 0 || c.EdgePortal.ScreenHeight < 0 {
		add("edge_portal.screen_size", "must not be negative")
	}

	for _, f := range []struct{ field, chord string }{
		{"hotkeys.toggle_hotkey", c.Hotkeys.Toggle},
		{"hotkeys.exit_hotkey", c.Hotkeys.Exit},
	} {
		if f.chord == "" {
			continue
		}
		if _, err := hotkey.Parse(f.chord); err != nil {
			add(f.field, "%v", err)
		}
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		add("api.api_port", "must be between 1 and 65535, got %d", c.API.Port)
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func checkHostPort(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if host == "" {
		return fmt.Errorf("missing host in %q", addr)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("invalid port in %q", addr)
	}
	return nil
}
