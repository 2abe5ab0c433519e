// Package protocol defines the byte encodings exchanged with the device
// (control messages, device messages, reporter frames) and the JSON
// messages of the local control API.
package protocol

import (
	"encoding/binary"
	"errors"
	"unicode/utf8"
)

// Control message types sent to the device.
const (
	TypeInjectKeycode uint8 = 0x00
	TypeGetClipboard  uint8 = 0x08
	TypeSetClipboard  uint8 = 0x09
	TypeUHIDCreate    uint8 = 0x0C
	TypeUHIDInput     uint8 = 0x0D
)

// Device message types received from the device.
const (
	DeviceMsgClipboard    uint8 = 0x00
	DeviceMsgAckClipboard uint8 = 0x01
	DeviceMsgUHIDOutput   uint8 = 0x02
)

// Key actions for TypeInjectKeycode.
const (
	ActionDown uint8 = 0
	ActionUp   uint8 = 1
)

// UHID device ids.
const (
	KeyboardID uint16 = 1
	MouseID    uint16 = 2
)

// MaxClipboardBytes bounds clipboard payloads in both directions.
const MaxClipboardBytes = 1 << 18

var (
	ErrShortMessage   = errors.New("protocol: message too short")
	ErrUnknownMessage = errors.New("protocol: unknown message type")
	ErrTooLarge       = errors.New("protocol: payload too large")
)

// InjectKeycode encodes a device key press or release.
//
//	type(1) action(1) keycode(4) repeat(4) metastate(4) = 14 bytes
func InjectKeycode(keycode uint16, action uint8) []byte {
	buf := make([]byte, 14)
	buf[0] = TypeInjectKeycode
	buf[1] = action
	binary.BigEndian.PutUint32(buf[2:6], uint32(keycode))
	return buf
}

// GetClipboard asks the device to start reporting its clipboard.
func GetClipboard() []byte {
	return []byte{TypeGetClipboard, 0}
}

// SetClipboard encodes a clipboard push. Text longer than MaxClipboardBytes
// is truncated at the last rune boundary that fits.
//
//	type(1) sequence(8) paste(1) length(4) text
func SetClipboard(sequence uint64, text string, paste bool) []byte {
	data := []byte(text)
	if len(data) > MaxClipboardBytes {
		n := MaxClipboardBytes
		for n > 0 && !utf8.RuneStart(data[n]) {
			n--
		}
		data = data[:n]
	}
	buf := make([]byte, 14+len(data))
	buf[0] = TypeSetClipboard
	binary.BigEndian.PutUint64(buf[1:9], sequence)
	if paste {
		buf[9] = 1
	}
	binary.BigEndian.PutUint32(buf[10:14], uint32(len(data)))
	copy(buf[14:], data)
	return buf
}

// KeyboardReport encodes the keyboard state: modifier flags plus up to six
// held keys. Extra keys are dropped.
func KeyboardReport(mods uint8, keys []uint16) []byte {
	report := make([]byte, 8)
	report[0] = mods
	for i, k := range keys {
		if i >= 6 {
			break
		}
		report[2+i] = byte(k)
	}
	return uhidInput(KeyboardID, report)
}

// KeyboardEmpty encodes the "all keys released" report.
func KeyboardEmpty() []byte {
	return KeyboardReport(0, nil)
}

// MouseMove encodes a relative pointer move with the current buttons.
func MouseMove(dx, dy int, buttons uint8) []byte {
	return uhidInput(MouseID, []byte{buttons, clamp8(dx), clamp8(dy), 0})
}

// MouseClick encodes a button state change.
func MouseClick(buttons uint8) []byte {
	return uhidInput(MouseID, []byte{buttons, 0, 0, 0})
}

// MouseScroll encodes a vertical wheel step.
func MouseScroll(dy int, buttons uint8) []byte {
	return uhidInput(MouseID, []byte{buttons, 0, 0, clamp8(dy)})
}

// KeyboardCreate registers the virtual HID keyboard on the device.
func KeyboardCreate() []byte {
	return uhidCreate(KeyboardID, "inputshare keyboard", keyboardDescriptor)
}

// MouseCreate registers the virtual HID mouse on the device.
func MouseCreate() []byte {
	return uhidCreate(MouseID, "inputshare mouse", mouseDescriptor)
}

func uhidInput(id uint16, report []byte) []byte {
	buf := make([]byte, 5+len(report))
	buf[0] = TypeUHIDInput
	binary.BigEndian.PutUint16(buf[1:3], id)
	binary.BigEndian.PutUint16(buf[3:5], uint16(len(report)))
	copy(buf[5:], report)
	return buf
}

//	type(1) id(2) vendor(2) product(2) name_len(1) name desc_len(2) desc
func uhidCreate(id uint16, name string, desc []byte) []byte {
	buf := make([]byte, 0, 10+len(name)+len(desc))
	buf = append(buf, TypeUHIDCreate)
	buf = binary.BigEndian.AppendUint16(buf, id)
	buf = binary.BigEndian.AppendUint16(buf, 0) // vendor
	buf = binary.BigEndian.AppendUint16(buf, 0) // product
	buf = append(buf, byte(len(name)))
	buf = append(buf, name...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(desc)))
	buf = append(buf, desc...)
	return buf
}

func clamp8(v int) byte {
	if v > 127 {
		v = 127
	} else if v < -127 {
		v = -127
	}
	return byte(int8(v))
}

// DeviceMessage is a decoded message sent by the device.
type DeviceMessage struct {
	Type     uint8
	Text     string // clipboard
	Sequence uint64 // ack clipboard
	ID       uint16 // uhid output
	Data     []byte // uhid output
}

// DecodeDeviceMessage parses one message from the front of data and returns
// the number of bytes consumed. ErrShortMessage means more bytes are needed.
func DecodeDeviceMessage(data []byte) (*DeviceMessage, int, error) {
	if len(data) < 1 {
		return nil, 0, ErrShortMessage
	}
	msg := &DeviceMessage{Type: data[0]}
	switch msg.Type {
	case DeviceMsgClipboard:
		if len(data) < 5 {
			return nil, 0, ErrShortMessage
		}
		n := int(binary.BigEndian.Uint32(data[1:5]))
		if n > MaxClipboardBytes {
			return nil, 0, ErrTooLarge
		}
		if len(data) < 5+n {
			return nil, 0, ErrShortMessage
		}
		msg.Text = string(data[5 : 5+n])
		return msg, 5 + n, nil
	case DeviceMsgAckClipboard:
		if len(data) < 9 {
			return nil, 0, ErrShortMessage
		}
		msg.Sequence = binary.BigEndian.Uint64(data[1:9])
		return msg, 9, nil
	case DeviceMsgUHIDOutput:
		if len(data) < 5 {
			return nil, 0, ErrShortMessage
		}
		msg.ID = binary.BigEndian.Uint16(data[1:3])
		n := int(binary.BigEndian.Uint16(data[3:5]))
		if len(data) < 5+n {
			return nil, 0, ErrShortMessage
		}
		msg.Data = append([]byte(nil), data[5:5+n]...)
		return msg, 5 + n, nil
	default:
		return nil, 0, ErrUnknownMessage
	}
}

// HID boot keyboard report descriptor: 8 modifier bits, reserved byte,
// 5 LED outputs, 6 key array.
var keyboardDescriptor = []byte{
	0x05, 0x01, 0x09, 0x06, 0xA1, 0x01,
	0x05, 0x07, 0x19, 0xE0, 0x29, 0xE7, 0x15, 0x00, 0x25, 0x01,
	0x75, 0x01, 0x95, 0x08, 0x81, 0x02,
	0x95, 0x01, 0x75, 0x08, 0x81, 0x01,
	0x95, 0x05, 0x75, 0x01, 0x05, 0x08, 0x19, 0x01, 0x29, 0x05, 0x91, 0x02,
	0x95, 0x01, 0x75, 0x03, 0x91, 0x01,
	0x95, 0x06, 0x75, 0x08, 0x15, 0x00, 0x25, 0x65,
	0x05, 0x07, 0x19, 0x00, 0x29, 0x65, 0x81, 0x00,
	0xC0,
}

// HID mouse report descriptor: 3 buttons, relative X/Y and wheel.
var mouseDescriptor = []byte{
	0x05, 0x01, 0x09, 0x02, 0xA1, 0x01,
	0x09, 0x01, 0xA1, 0x00,
	0x05, 0x09, 0x19, 0x01, 0x29, 0x03, 0x15, 0x00, 0x25, 0x01,
	0x95, 0x03, 0x75, 0x01, 0x81, 0x02,
	0x95, 0x01, 0x75, 0x05, 0x81, 0x01,
	0x05, 0x01, 0x09, 0x30, 0x09, 0x31, 0x09, 0x38,
	0x15, 0x81, 0x25, 0x7F, 0x75, 0x08, 0x95, 0x03, 0x81, 0x06,
	0xC0, 0xC0,
}
