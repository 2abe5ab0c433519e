package input

import "strings"

// Android key codes injected on the device.
const (
	AKeyHome           uint16 = 3
	AKeyBack           uint16 = 4
	AKeyVolumeUp       uint16 = 24
	AKeyVolumeDown     uint16 = 25
	AKeyPower          uint16 = 26
	AKeyNotification   uint16 = 83
	AKeyMediaPlayPause uint16 = 85
	AKeyMediaNext      uint16 = 87
	AKeyMediaPrevious  uint16 = 88
	AKeyVolumeMute     uint16 = 164
	AKeyAppSwitch      uint16 = 187
	AKeyWakeup         uint16 = 224
	AKeySoftSleep      uint16 = 276
)

// HID usage ids referenced outside the table.
const (
	ScancodeUp           uint16 = 0x52
	ScancodeDown         uint16 = 0x51
	ScancodeLeftBracket  uint16 = 0x2F
	ScancodeRightBracket uint16 = 0x30
	ScancodeBackslash    uint16 = 0x31
)

var keyTable = buildKeyTable()

func buildKeyTable() map[string]Key {
	t := make(map[string]Key, 128)
	sc := func(name string, code uint16) { t[name] = Key{Class: ClassScancode, Code: code} }
	mod := func(name string, flag uint8) { t[name] = Key{Class: ClassModifier, Code: uint16(flag)} }
	dev := func(name string, code uint16) { t[name] = Key{Class: ClassDeviceKey, Code: code} }

	for i := 0; i < 26; i++ {
		sc(string(rune('A'+i)), uint16(0x04+i))
	}
	for i := 1; i <= 9; i++ {
		sc(string(rune('0'+i)), uint16(0x1E+i-1))
	}
	sc("0", 0x27)
	for i := 1; i <= 12; i++ {
		sc("F"+itoa(i), uint16(0x3A+i-1))
	}

	sc("ENTER", 0x28)
	sc("ESC", 0x29)
	sc("BACKSPACE", 0x2A)
	sc("TAB", 0x2B)
	sc("SPACE", 0x2C)
	sc("-", 0x2D)
	sc("=", 0x2E)
	sc("[", ScancodeLeftBracket)
	sc("]", ScancodeRightBracket)
	sc("\\", ScancodeBackslash)
	sc(";", 0x33)
	sc("'", 0x34)
	sc("`", 0x35)
	sc(",", 0x36)
	sc(".", 0x37)
	sc("/", 0x38)
	sc("CAPSLOCK", 0x39)
	sc("PRINTSCREEN", 0x46)
	sc("SCROLLLOCK", 0x47)
	sc("PAUSE", 0x48)
	sc("INSERT", 0x49)
	sc("HOME", 0x4A)
	sc("PAGEUP", 0x4B)
	sc("DELETE", 0x4C)
	sc("END", 0x4D)
	sc("PAGEDOWN", 0x4E)
	sc("RIGHT", 0x4F)
	sc("LEFT", 0x50)
	sc("DOWN", ScancodeDown)
	sc("UP", ScancodeUp)
	sc("MENU", 0x65)

	mod("LCTRL", ModLeftCtrl)
	mod("LSHIFT", ModLeftShift)
	mod("LALT", ModLeftAlt)
	mod("LMETA", ModLeftMeta)
	mod("RCTRL", ModRightCtrl)
	mod("RSHIFT", ModRightShift)
	mod("RALT", ModRightAlt)
	mod("RMETA", ModRightMeta)

	dev("MEDIA_PLAY_PAUSE", AKeyMediaPlayPause)
	dev("MEDIA_NEXT", AKeyMediaNext)
	dev("MEDIA_PREVIOUS", AKeyMediaPrevious)
	dev("VOLUME_UP", AKeyVolumeUp)
	dev("VOLUME_DOWN", AKeyVolumeDown)
	dev("VOLUME_MUTE", AKeyVolumeMute)
	dev("SLEEP", AKeySoftSleep)
	dev("WAKEUP", AKeyWakeup)
	return t
}

// aliases maps generic names to their left-hand variant.
var aliases = map[string]string{
	"CTRL":    "LCTRL",
	"CONTROL": "LCTRL",
	"SHIFT":   "LSHIFT",
	"ALT":     "LALT",
	"META":    "LMETA",
	"CMD":     "LMETA",
	"WIN":     "LMETA",
	"ESCAPE":  "ESC",
	"RETURN":  "ENTER",
}

// Lookup resolves a capture key name (case-insensitive) to a Key.
func Lookup(name string) (Key, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if a, ok := aliases[name]; ok {
		name = a
	}
	k, ok := keyTable[name]
	return k, ok
}

func itoa(i int) string {
	if i < 10 {
		return string(rune('0' + i))
	}
	return string(rune('0'+i/10)) + string(rune('0'+i%10))
}
