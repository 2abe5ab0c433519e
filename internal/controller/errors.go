package controller

import "errors"

var (
	// ErrDeviceSend wraps every failure writing to the device channel. It is
	// always fatal for the session.
	ErrDeviceSend = errors.New("device send failed")

	// ErrDebounced is returned by API-facing toggles rejected inside the
	// debounce window.
	ErrDebounced = errors.New("toggle debounced")
)
