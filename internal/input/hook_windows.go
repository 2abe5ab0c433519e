//go:build windows

package input

import (
	"fmt"
	"log"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32                  = windows.NewLazySystemDLL("user32.dll")
	procSetWindowsHookEx    = user32.NewProc("SetWindowsHookExW")
	procCallNextHookEx      = user32.NewProc("CallNextHookEx")
	procUnhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	procGetMessage          = user32.NewProc("GetMessageW")
	procTranslateMessage    = user32.NewProc("TranslateMessage")
	procDispatchMessage     = user32.NewProc("DispatchMessageW")
	procPostThreadMessage   = user32.NewProc("PostThreadMessageW")
	procKeybdEvent          = user32.NewProc("keybd_event")
	procGetCursorPos        = user32.NewProc("GetCursorPos")
	procSetCursorPos        = user32.NewProc("SetCursorPos")
	procGetSystemMetrics    = user32.NewProc("GetSystemMetrics")
	kernel32                = windows.NewLazySystemDLL("kernel32.dll")
	procGetModuleHandle     = kernel32.NewProc("GetModuleHandleW")
	procGetCurrentThreadId  = kernel32.NewProc("GetCurrentThreadId")
)

const (
	whKeyboardLL = 13
	whMouseLL    = 14

	wmQuit        = 0x0012
	wmKeyDown     = 0x0100
	wmKeyUp       = 0x0101
	wmSysKeyDown  = 0x0104
	wmSysKeyUp    = 0x0105
	wmMouseMove   = 0x0200
	wmLButtonDown = 0x0201
	wmLButtonUp   = 0x0202
	wmRButtonDown = 0x0204
	wmRButtonUp   = 0x0205
	wmMButtonDown = 0x0207
	wmMButtonUp   = 0x0208
	wmMouseWheel  = 0x020A
	wmXButtonDown = 0x020B
	wmXButtonUp   = 0x020C

	keyEventFKeyUp = 0x0002
	wheelDelta     = 120

	smCxScreen = 0
	smCyScreen = 1
)

type kbdllHookStruct struct {
	VkCode      uint32
	ScanCode    uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

type msllHookStruct struct {
	Point       struct{ X, Y int32 }
	MouseData   uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

// activeTrap receives the hook callbacks; only one trap can be installed.
var activeTrap atomic.Pointer[Trap]

// Trap is the Windows capture source built on low-level keyboard and
// mouse hooks.
type Trap struct {
	// disp runs the sink off the hook thread; Windows drops hooks that
	// overrun LowLevelHooksTimeout.
	disp     *dispatcher
	suppress atomic.Bool

	mu        sync.Mutex
	threadID  uintptr
	kbdHook   uintptr
	mouseHook uintptr
	stopped   chan struct{}
}

// NewTrap creates a new Windows trap
func NewTrap() *Trap {
	return &Trap{}
}

// Start installs the hooks and pumps messages on a locked OS thread.
func (t *Trap) Start(sink Sink) error {
	if !activeTrap.CompareAndSwap(nil, t) {
		return fmt.Errorf("input: a trap is already running")
	}
	t.disp = newDispatcher(sink, DispatchQueueSize)
	t.stopped = make(chan struct{})
	started := make(chan error, 1)

	// Hooks must be registered in the same thread that runs the message loop
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(t.stopped)

		hMod, _, _ := procGetModuleHandle.Call(0)
		tid, _, _ := procGetCurrentThreadId.Call()

		kbd, _, err := procSetWindowsHookEx.Call(whKeyboardLL, syscall.NewCallback(keyboardHookProc), hMod, 0)
		if kbd == 0 {
			started <- fmt.Errorf("input: set keyboard hook: %w", err)
			return
		}
		mouse, _, err := procSetWindowsHookEx.Call(whMouseLL, syscall.NewCallback(mouseHookProc), hMod, 0)
		if mouse == 0 {
			procUnhookWindowsHookEx.Call(kbd)
			started <- fmt.Errorf("input: set mouse hook: %w", err)
			return
		}

		t.mu.Lock()
		t.threadID, t.kbdHook, t.mouseHook = tid, kbd, mouse
		t.mu.Unlock()
		started <- nil
		log.Println("Trap: Windows hooks installed")

		var msg struct {
			Hwnd    syscall.Handle
			Message uint32
			Wparam  uintptr
			Lparam  uintptr
			Time    uint32
			Pt      struct{ X, Y int32 }
		}
		for {
			ret, _, _ := procGetMessage.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
			if int32(ret) <= 0 {
				break
			}
			procTranslateMessage.Call(uintptr(unsafe.Pointer(&msg)))
			procDispatchMessage.Call(uintptr(unsafe.Pointer(&msg)))
		}

		procUnhookWindowsHookEx.Call(kbd)
		procUnhookWindowsHookEx.Call(mouse)
		log.Println("Trap: Windows hooks removed")
	}()

	if err := <-started; err != nil {
		t.disp.close()
		activeTrap.Store(nil)
		return err
	}
	return nil
}

// Stop ends the message loop and removes the hooks.
func (t *Trap) Stop() error {
	t.mu.Lock()
	tid := t.threadID
	t.threadID = 0
	t.mu.Unlock()
	if tid == 0 {
		return nil
	}
	procPostThreadMessage.Call(tid, wmQuit, 0, 0)
	<-t.stopped
	activeTrap.CompareAndSwap(t, nil)
	t.disp.close()
	return nil
}

// Suppress swallows keyboard events locally while enabled.
func (t *Trap) Suppress(enabled bool) {
	t.suppress.Store(enabled)
}

// Release synthesizes local key-up events.
func (t *Trap) Release(names ...string) error {
	for _, name := range names {
		vk, ok := nameToVK(name)
		if !ok {
			return fmt.Errorf("input: no virtual key for %q", name)
		}
		procKeybdEvent.Call(uintptr(vk), 0, keyEventFKeyUp, 0)
	}
	return nil
}

func (t *Trap) hookHandle(keyboard bool) uintptr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if keyboard {
		return t.kbdHook
	}
	return t.mouseHook
}

func keyboardHookProc(nCode int, wParam uintptr, lParam uintptr) uintptr {
	t := activeTrap.Load()
	if t == nil {
		ret, _, _ := procCallNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
		return ret
	}
	if nCode == 0 {
		kbd := (*kbdllHookStruct)(unsafe.Pointer(lParam))
		if name := vkCodeToName(kbd.VkCode); name != "" {
			switch wParam {
			case wmKeyDown, wmSysKeyDown:
				t.disp.enqueue(event{kind: eventKeyDown, name: name})
			case wmKeyUp, wmSysKeyUp:
				t.disp.enqueue(event{kind: eventKeyUp, name: name})
			}
		}
		if t.suppress.Load() {
			return 1
		}
	}
	ret, _, _ := procCallNextHookEx.Call(t.hookHandle(true), uintptr(nCode), wParam, lParam)
	return ret
}

func mouseHookProc(nCode int, wParam uintptr, lParam uintptr) uintptr {
	t := activeTrap.Load()
	if t == nil {
		ret, _, _ := procCallNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
		return ret
	}
	if nCode == 0 {
		ms := (*msllHookStruct)(unsafe.Pointer(lParam))
		x, y := int(ms.Point.X), int(ms.Point.Y)
		ev := event{kind: eventButton, x: x, y: y}
		switch wParam {
		case wmMouseMove:
			ev.kind = eventMove
		case wmLButtonDown, wmLButtonUp:
			ev.button, ev.pressed = ButtonLeft, wParam == wmLButtonDown
		case wmRButtonDown, wmRButtonUp:
			ev.button, ev.pressed = ButtonRight, wParam == wmRButtonDown
		case wmMButtonDown, wmMButtonUp:
			ev.button, ev.pressed = ButtonMiddle, wParam == wmMButtonDown
		case wmXButtonDown, wmXButtonUp:
			ev.button, ev.pressed = ButtonX2, wParam == wmXButtonDown
			if (ms.MouseData >> 16) == 1 {
				ev.button = ButtonX1
			}
		case wmMouseWheel:
			// wheel up is positive on Windows, HID expects the same sign
			ev.kind = eventScroll
			ev.dy = int(int16(ms.MouseData>>16)) / wheelDelta
		default:
			ret, _, _ := procCallNextHookEx.Call(t.hookHandle(false), uintptr(nCode), wParam, lParam)
			return ret
		}
		t.disp.enqueue(ev)
	}
	ret, _, _ := procCallNextHookEx.Call(t.hookHandle(false), uintptr(nCode), wParam, lParam)
	return ret
}

var vkNames = map[uint32]string{
	0x11: "LCTRL", 0xA2: "LCTRL", 0xA3: "RCTRL",
	0x12: "LALT", 0xA4: "LALT", 0xA5: "RALT",
	0x10: "LSHIFT", 0xA0: "LSHIFT", 0xA1: "RSHIFT",
	0x5B: "LMETA", 0x5C: "RMETA", 0x5D: "MENU",
	0x20: "SPACE", 0x0D: "ENTER", 0x1B: "ESC", 0x08: "BACKSPACE", 0x09: "TAB",
	0x14: "CAPSLOCK", 0x21: "PAGEUP", 0x22: "PAGEDOWN", 0x23: "END", 0x24: "HOME",
	0x25: "LEFT", 0x26: "UP", 0x27: "RIGHT", 0x28: "DOWN",
	0x2C: "PRINTSCREEN", 0x2D: "INSERT", 0x2E: "DELETE", 0x13: "PAUSE", 0x91: "SCROLLLOCK",
	0xBA: ";", 0xBB: "=", 0xBC: ",", 0xBD: "-", 0xBE: ".", 0xBF: "/", 0xC0: "`",
	0xDB: "[", 0xDC: "\\", 0xDD: "]", 0xDE: "'",
	0xAD: "VOLUME_MUTE", 0xAE: "VOLUME_DOWN", 0xAF: "VOLUME_UP",
	0xB0: "MEDIA_NEXT", 0xB1: "MEDIA_PREVIOUS", 0xB3: "MEDIA_PLAY_PAUSE",
	0x5F: "SLEEP",
}

func vkCodeToName(vk uint32) string {
	if name, ok := vkNames[vk]; ok {
		return name
	}
	// Letters A-Z and digits 0-9 share their ASCII codes
	if (vk >= 0x41 && vk <= 0x5A) || (vk >= 0x30 && vk <= 0x39) {
		return string(rune(vk))
	}
	if vk >= 0x70 && vk <= 0x7B {
		return fmt.Sprintf("F%d", vk-0x6F)
	}
	return ""
}

func nameToVK(name string) (uint32, bool) {
	switch name {
	case "CTRL":
		return 0x11, true
	case "ALT":
		return 0x12, true
	case "SHIFT":
		return 0x10, true
	}
	for vk, n := range vkNames {
		if n == name && vk != 0x11 && vk != 0x12 && vk != 0x10 {
			return vk, true
		}
	}
	return 0, false
}

type cursor struct{}

// NewPointer returns the Windows cursor.
func NewPointer() Pointer { return cursor{} }

func (cursor) Position() (int, int, bool) {
	var pt struct{ X, Y int32 }
	ret, _, _ := procGetCursorPos.Call(uintptr(unsafe.Pointer(&pt)))
	if ret == 0 {
		return 0, 0, false
	}
	return int(pt.X), int(pt.Y), true
}

func (cursor) SetPosition(x, y int) error {
	ret, _, err := procSetCursorPos.Call(uintptr(x), uintptr(y))
	if ret == 0 {
		return fmt.Errorf("input: set cursor position: %w", err)
	}
	return nil
}

type systemScreen struct{}

func (systemScreen) Size() (int, int) {
	w, _, _ := procGetSystemMetrics.Call(smCxScreen)
	h, _, _ := procGetSystemMetrics.Call(smCyScreen)
	return int(w), int(h)
}

// NewScreen returns the configured dimensions when both are set, otherwise
// the primary monitor's size.
func NewScreen(width, height int) Screen {
	if width > 0 && height > 0 {
		return FixedScreen{Width: width, Height: height}
	}
	return systemScreen{}
}
