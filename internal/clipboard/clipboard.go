// Package clipboard reads and writes the host clipboard and remembers the
// last text received from the device.
package clipboard

import (
	"errors"
	"fmt"
	"sync"

	"github.com/atotto/clipboard"
)

// ErrNoTool is returned when the platform has no usable clipboard backend,
// for example Linux without xclip, xsel or wl-clipboard installed.
var ErrNoTool = errors.New("clipboard: no clipboard tool found")

// Received holds the most recent clipboard text pushed by the device.
type Received struct {
	mu   sync.Mutex
	text string
	set  bool
}

// Store records text from the device.
func (r *Received) Store(text string) {
	r.mu.Lock()
	r.text, r.set = text, true
	r.mu.Unlock()
}

// Last returns the stored text and whether anything was received yet.
func (r *Received) Last() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.text, r.set
}

// System is the host clipboard. The zero value uses the platform clipboard.
type System struct {
	// ReadAll defaults to clipboard.ReadAll.
	ReadAll func() (string, error)
	// WriteAll defaults to clipboard.WriteAll.
	WriteAll func(string) error
	// Unsupported defaults to reporting clipboard.Unsupported.
	Unsupported func() bool
}

func (s *System) unsupported() bool {
	if s.Unsupported != nil {
		return s.Unsupported()
	}
	return clipboard.Unsupported
}

// Read returns the clipboard text. It reports false when the clipboard is
// empty, not text, or cannot be read.
func (s *System) Read() (string, bool) {
	if s.unsupported() {
		return "", false
	}
	read := s.ReadAll
	if read == nil {
		read = clipboard.ReadAll
	}
	text, err := read()
	if err != nil {
		return "", false
	}
	return text, text != ""
}

// Write replaces the clipboard text.
func (s *System) Write(text string) error {
	if s.unsupported() {
		return ErrNoTool
	}
	write := s.WriteAll
	if write == nil {
		write = clipboard.WriteAll
	}
	if err := write(text); err != nil {
		return fmt.Errorf("clipboard: write: %w", err)
	}
	return nil
}
