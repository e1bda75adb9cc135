package light

import (
	"testing"
	"time"

	"github.com/backkem/meshlight/pkg/packet"
	"github.com/stretchr/testify/assert"
)

func TestCommandBuilders(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		op   packet.Opcode
		data []byte
	}{
		{"power on", PowerOn(), packet.OpPower, []byte{0x01}},
		{"power off", PowerOff(), packet.OpPower, []byte{0x00}},
		{"color", Color(1, 2, 3), packet.OpColor, []byte{0x04, 1, 2, 3}},
		{"color brightness", ColorBrightness(0x40), packet.OpColorBrightness, []byte{0x40}},
		{"color brightness low", ColorBrightness(0), packet.OpColorBrightness, []byte{MinColorBrightness}},
		{"color brightness high", ColorBrightness(0xff), packet.OpColorBrightness, []byte{MaxColorBrightness}},
		{"white temperature", WhiteTemperature(0x20), packet.OpWhiteTemperature, []byte{0x20}},
		{"white temperature high", WhiteTemperature(0x90), packet.OpWhiteTemperature, []byte{MaxWhiteTemperature}},
		{"white brightness low", WhiteBrightness(0), packet.OpWhiteBrightness, []byte{MinWhiteBrightness}},
		{"white brightness high", WhiteBrightness(0x80), packet.OpWhiteBrightness, []byte{MaxWhiteBrightness}},
		{"preset", Preset(3), packet.OpPreset, []byte{3}},
		{"light mode", LightMode(2), packet.OpLightMode, []byte{2}},
		{"sequence color", SequenceColorDuration(1500 * time.Millisecond), packet.OpSequenceColorDuration, []byte{0xdc, 0x05, 0, 0}},
		{"sequence fade", SequenceFadeDuration(70 * time.Second), packet.OpSequenceFadeDuration, []byte{0x70, 0x11, 0x01, 0}},
		{"mesh address", MeshAddress(0x0102), packet.OpMeshAddress, []byte{0x02, 0x01}},
		{"mesh reset", MeshReset(), packet.OpMeshReset, []byte{0x00}},
		{"alarms", Alarms([]byte{9, 8}), packet.OpAlarms, []byte{9, 8}},
		{"mesh group", MeshGroup([]byte{7}), packet.OpMeshGroup, []byte{7}},
		{"status query", StatusQuery(), packet.OpStatusQuery, []byte{0x10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.op, tt.cmd.Opcode)
			assert.Equal(t, tt.data, tt.cmd.Data)
			assert.LessOrEqual(t, len(tt.cmd.Data), packet.MaxDataSize)
		})
	}
}

func TestTimeCommand(t *testing.T) {
	ts := time.Date(2026, time.October, 19, 13, 45, 7, 0, time.UTC)
	cmd := Time(ts)

	assert.Equal(t, packet.OpTime, cmd.Opcode)
	assert.Equal(t, []byte{0xea, 0x07, 10, 19, 13, 45, 7}, cmd.Data)
}
