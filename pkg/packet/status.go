package packet

import (
	"encoding/binary"
	"fmt"
)

// Mode bits reported by the lamp.
const (
	ModeOn         uint8 = 1 << 0
	ModeColor      uint8 = 1 << 1
	ModeTransition uint8 = 1 << 2
)

// Status is the lamp state carried by a status reply or notification.
type Status struct {
	// Opcode is OpStatusReply or OpNotification.
	Opcode Opcode

	// MeshID is the mesh address of the reporting lamp.
	MeshID uint16

	// Mode is the raw mode byte; see ModeOn, ModeColor, ModeTransition.
	Mode uint8

	WhiteBrightness  uint8
	WhiteTemperature uint8
	ColorBrightness  uint8
	Red              uint8
	Green            uint8
	Blue             uint8
}

// On reports whether the lamp is switched on.
func (s *Status) On() bool { return s.Mode&ModeOn != 0 }

// ColorMode reports whether the lamp shows RGB colour rather than white.
func (s *Status) ColorMode() bool { return s.Mode&ModeColor != 0 }

// TransitionMode reports whether a colour sequence is running.
func (s *Status) TransitionMode() bool { return s.Mode&ModeTransition != 0 }

// String returns a compact description for logs.
func (s *Status) String() string {
	return fmt.Sprintf("%s mesh=%d on=%t color=%t transition=%t white=%d/%d rgb=%d,%d,%d@%d",
		s.Opcode, s.MeshID, s.On(), s.ColorMode(), s.TransitionMode(),
		s.WhiteBrightness, s.WhiteTemperature,
		s.Red, s.Green, s.Blue, s.ColorBrightness)
}

// ParseStatus interprets a decrypted inbound packet as returned by
// DecryptPacket. The opcode sits at offset 7; field offsets differ between
// status replies and unsolicited notifications.
func ParseStatus(decrypted []byte) (*Status, error) {
	if len(decrypted) < PacketSize {
		return nil, ErrMalformedPacket
	}

	s := &Status{Opcode: Opcode(decrypted[HeaderSize])}

	switch s.Opcode {
	case OpStatusReply:
		s.MeshID = binary.LittleEndian.Uint16(decrypted[3:5])
		s.Mode = decrypted[10]
		s.WhiteBrightness = decrypted[11]
		s.WhiteTemperature = decrypted[12]
		s.ColorBrightness = decrypted[13]
		s.Red = decrypted[14]
		s.Green = decrypted[15]
		s.Blue = decrypted[16]
	case OpNotification:
		s.MeshID = uint16(decrypted[19])<<8 | uint16(decrypted[10])
		s.Mode = decrypted[12]
		s.WhiteBrightness = decrypted[13]
		s.WhiteTemperature = decrypted[14]
		s.ColorBrightness = decrypted[15]
		s.Red = decrypted[16]
		s.Green = decrypted[17]
		s.Blue = decrypted[18]
	default:
		return nil, fmt.Errorf("%w: opcode %s", ErrUnknownStatus, s.Opcode)
	}

	return s, nil
}

// NotificationPayload lays out the 13 plaintext bytes of a notification
// packet for s, the inverse of ParseStatus for OpNotification.
func NotificationPayload(s *Status) []byte {
	// Offsets are relative to the decrypted packet minus HeaderSize.
	p := make([]byte, PacketSize-HeaderSize)
	p[0] = byte(OpNotification)
	p[3] = byte(s.MeshID)
	p[5] = s.Mode
	p[6] = s.WhiteBrightness
	p[7] = s.WhiteTemperature
	p[8] = s.ColorBrightness
	p[9] = s.Red
	p[10] = s.Green
	p[11] = s.Blue
	p[12] = byte(s.MeshID >> 8)
	return p
}

// StatusReplyPayload lays out the 13 plaintext bytes of a status reply for
// s. The mesh id of a reply travels in the clear header; see
// MakeStatusPacket.
func StatusReplyPayload(s *Status) []byte {
	p := make([]byte, PacketSize-HeaderSize)
	p[0] = byte(OpStatusReply)
	p[3] = s.Mode
	p[4] = s.WhiteBrightness
	p[5] = s.WhiteTemperature
	p[6] = s.ColorBrightness
	p[7] = s.Red
	p[8] = s.Green
	p[9] = s.Blue
	return p
}

// MakeStatusPacket seals s the way the lamp reports it, choosing the layout
// from s.Opcode. seq fills the first three header bytes.
func MakeStatusPacket(key []byte, address string, seq [SequenceSize]byte, s *Status) ([]byte, error) {
	var header [5]byte
	copy(header[:], seq[:])

	var payload []byte
	switch s.Opcode {
	case OpStatusReply:
		binary.LittleEndian.PutUint16(header[3:5], s.MeshID)
		payload = StatusReplyPayload(s)
	case OpNotification:
		payload = NotificationPayload(s)
	default:
		return nil, fmt.Errorf("%w: opcode %s", ErrUnknownStatus, s.Opcode)
	}

	return MakeNotificationPacket(key, address, header, payload)
}
