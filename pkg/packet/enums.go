// Package packet implements the Telink mesh command packet format.
//
// Outbound command packets carry a random sequence, a truncated MIC and an
// encrypted 15-byte payload. Inbound packets (status notifications) carry
// five header bytes, the MIC and the encrypted remainder. Both directions
// derive their nonce from the device hardware address, with different
// conventions; see OutboundNonce and InboundNonce.
package packet

import "fmt"

// Opcode identifies a mesh command.
type Opcode uint8

// Command opcodes.
const (
	OpLightMode             Opcode = 0x33
	OpPreset                Opcode = 0xC8
	OpPower                 Opcode = 0xD0
	OpMeshGroup             Opcode = 0xD7
	OpStatusQuery           Opcode = 0xDA
	OpMeshAddress           Opcode = 0xE0
	OpColor                 Opcode = 0xE2
	OpMeshReset             Opcode = 0xE3
	OpTime                  Opcode = 0xE4
	OpAlarms                Opcode = 0xE5
	OpWhiteTemperature      Opcode = 0xF0
	OpWhiteBrightness       Opcode = 0xF1
	OpColorBrightness       Opcode = 0xF2
	OpSequenceColorDuration Opcode = 0xF5
	OpSequenceFadeDuration  Opcode = 0xF6
)

// Opcodes found in decrypted inbound packets.
const (
	OpStatusReply  Opcode = 0xDB
	OpNotification Opcode = 0xDC
)

var opcodeNames = map[Opcode]string{
	OpLightMode:             "LightMode",
	OpPreset:                "Preset",
	OpPower:                 "Power",
	OpMeshGroup:             "MeshGroup",
	OpStatusQuery:           "StatusQuery",
	OpMeshAddress:           "MeshAddress",
	OpColor:                 "Color",
	OpMeshReset:             "MeshReset",
	OpTime:                  "Time",
	OpAlarms:                "Alarms",
	OpWhiteTemperature:      "WhiteTemperature",
	OpWhiteBrightness:       "WhiteBrightness",
	OpColorBrightness:       "ColorBrightness",
	OpSequenceColorDuration: "SequenceColorDuration",
	OpSequenceFadeDuration:  "SequenceFadeDuration",
	OpStatusReply:           "StatusReply",
	OpNotification:          "Notification",
}

// String returns the opcode name.
func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Opcode(0x%02X)", uint8(o))
}

// IsCommand reports whether o is one of the command opcodes a controller
// may send.
func (o Opcode) IsCommand() bool {
	_, ok := opcodeNames[o]
	return ok && o != OpStatusReply && o != OpNotification
}

// ParseOpcode looks up an opcode by its name (case-sensitive, as returned
// by String).
func ParseOpcode(name string) (Opcode, error) {
	for op, n := range opcodeNames {
		if n == name && op.IsCommand() {
			return op, nil
		}
	}
	return 0, fmt.Errorf("packet: unknown opcode %q", name)
}

// Commands returns all command opcodes in ascending order.
func Commands() []Opcode {
	ops := make([]Opcode, 0, len(opcodeNames))
	for op := Opcode(0); ; op++ {
		if op.IsCommand() {
			ops = append(ops, op)
		}
		if op == 0xFF {
			break
		}
	}
	return ops
}
