package light

import (
	"encoding/binary"
	"time"

	"github.com/backkem/meshlight/pkg/packet"
)

// Level limits accepted by the lamp firmware.
const (
	MinColorBrightness  = 0x0A
	MaxColorBrightness  = 0x64
	MaxWhiteTemperature = 0x7F
	MinWhiteBrightness  = 0x01
	MaxWhiteBrightness  = 0x7F
)

// colorMarker precedes the RGB triple of a colour command.
const colorMarker = 0x04

// Command is an opcode with its argument bytes, addressed when sent.
type Command struct {
	Opcode packet.Opcode
	Data   []byte
}

// Power switches the lamp on or off.
func Power(on bool) Command {
	if on {
		return Command{Opcode: packet.OpPower, Data: []byte{0x01}}
	}
	return Command{Opcode: packet.OpPower, Data: []byte{0x00}}
}

// PowerOn switches the lamp on.
func PowerOn() Command { return Power(true) }

// PowerOff switches the lamp off.
func PowerOff() Command { return Power(false) }

// Color sets the RGB colour and switches to colour mode.
func Color(r, g, b uint8) Command {
	return Command{Opcode: packet.OpColor, Data: []byte{colorMarker, r, g, b}}
}

// ColorBrightness sets the colour brightness, clamped to the firmware range.
func ColorBrightness(level uint8) Command {
	return Command{Opcode: packet.OpColorBrightness, Data: []byte{clamp(level, MinColorBrightness, MaxColorBrightness)}}
}

// WhiteTemperature sets the white colour temperature (0 warm, 0x7F cold).
func WhiteTemperature(temp uint8) Command {
	return Command{Opcode: packet.OpWhiteTemperature, Data: []byte{clamp(temp, 0, MaxWhiteTemperature)}}
}

// WhiteBrightness sets the white brightness and switches to white mode.
func WhiteBrightness(level uint8) Command {
	return Command{Opcode: packet.OpWhiteBrightness, Data: []byte{clamp(level, MinWhiteBrightness, MaxWhiteBrightness)}}
}

// Preset starts one of the built-in colour sequences.
func Preset(n uint8) Command {
	return Command{Opcode: packet.OpPreset, Data: []byte{n}}
}

// LightMode selects the lamp mode byte directly.
func LightMode(mode uint8) Command {
	return Command{Opcode: packet.OpLightMode, Data: []byte{mode}}
}

// SequenceColorDuration sets how long each colour of a sequence is shown.
func SequenceColorDuration(d time.Duration) Command {
	return Command{Opcode: packet.OpSequenceColorDuration, Data: millis(d)}
}

// SequenceFadeDuration sets the fade time between colours of a sequence.
func SequenceFadeDuration(d time.Duration) Command {
	return Command{Opcode: packet.OpSequenceFadeDuration, Data: millis(d)}
}

// MeshAddress assigns a new mesh id to the lamp.
func MeshAddress(id uint16) Command {
	data := make([]byte, 2)
	binary.LittleEndian.PutUint16(data, id)
	return Command{Opcode: packet.OpMeshAddress, Data: data}
}

// MeshReset returns the lamp to the factory mesh.
func MeshReset() Command {
	return Command{Opcode: packet.OpMeshReset, Data: []byte{0x00}}
}

// Time sets the lamp clock.
func Time(t time.Time) Command {
	data := make([]byte, 7)
	binary.LittleEndian.PutUint16(data[0:2], uint16(t.Year()))
	data[2] = byte(t.Month())
	data[3] = byte(t.Day())
	data[4] = byte(t.Hour())
	data[5] = byte(t.Minute())
	data[6] = byte(t.Second())
	return Command{Opcode: packet.OpTime, Data: data}
}

// Alarms sends a raw alarm table entry.
func Alarms(raw []byte) Command {
	return Command{Opcode: packet.OpAlarms, Data: raw}
}

// MeshGroup sends a raw group membership command.
func MeshGroup(raw []byte) Command {
	return Command{Opcode: packet.OpMeshGroup, Data: raw}
}

// StatusQuery asks the lamp to answer with a status reply.
func StatusQuery() Command {
	return Command{Opcode: packet.OpStatusQuery, Data: []byte{0x10}}
}

func clamp(v, lo, hi uint8) uint8 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func millis(d time.Duration) []byte {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, uint32(d.Milliseconds()))
	return data
}
