package controller

import (
	"sync"
	"sync/atomic"
)

// Session is the shared state of one redirection session: the redirection
// flag, the toggle and exit signals and the terminal error.
type Session struct {
	redirecting atomic.Bool
	manualSleep atomic.Bool

	toggle chan struct{}

	exit     chan struct{}
	exitOnce sync.Once

	errMu sync.Mutex
	err   error
}

// NewSession creates a session that is not redirecting.
func NewSession() *Session {
	return &Session{
		toggle: make(chan struct{}, 1),
		exit:   make(chan struct{}),
	}
}

// Redirecting reports whether input is forwarded to the device.
func (s *Session) Redirecting() bool {
	return s.redirecting.Load()
}

func (s *Session) setRedirecting(on bool) {
	s.redirecting.Store(on)
}

// signalToggle sets the toggle signal. Setting an already set signal is a
// no-op; the waiter clears it by receiving.
func (s *Session) signalToggle() {
	select {
	case s.toggle <- struct{}{}:
	default:
	}
}

// Toggled is the toggle signal.
func (s *Session) Toggled() <-chan struct{} {
	return s.toggle
}

// Exit sets the terminal exit signal.
func (s *Session) Exit() {
	s.exitOnce.Do(func() { close(s.exit) })
}

// Done is closed once exit was requested.
func (s *Session) Done() <-chan struct{} {
	return s.exit
}

// Exiting reports whether exit was requested.
func (s *Session) Exiting() bool {
	select {
	case <-s.exit:
		return true
	default:
		return false
	}
}

// fail records err as the terminal error unless one is already set.
func (s *Session) fail(err error) {
	if err == nil {
		return
	}
	s.errMu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.errMu.Unlock()
}

// Err returns the terminal error, nil for a clean exit.
func (s *Session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// ManualSleep reports whether the user put the device to sleep by hand,
// which suppresses keep-awake signals.
func (s *Session) ManualSleep() bool {
	return s.manualSleep.Load()
}

// SetManualSleep updates the manual sleep flag.
func (s *Session) SetManualSleep(on bool) {
	s.manualSleep.Store(on)
}
