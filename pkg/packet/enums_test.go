package packet

import "testing"

func TestOpcodeValues(t *testing.T) {
	tests := []struct {
		op   Opcode
		want uint8
	}{
		{OpMeshGroup, 0xD7},
		{OpMeshAddress, 0xE0},
		{OpMeshReset, 0xE3},
		{OpPower, 0xD0},
		{OpLightMode, 0x33},
		{OpPreset, 0xC8},
		{OpWhiteTemperature, 0xF0},
		{OpWhiteBrightness, 0xF1},
		{OpColor, 0xE2},
		{OpColorBrightness, 0xF2},
		{OpSequenceColorDuration, 0xF5},
		{OpSequenceFadeDuration, 0xF6},
		{OpTime, 0xE4},
		{OpAlarms, 0xE5},
	}

	for _, tt := range tests {
		if uint8(tt.op) != tt.want {
			t.Errorf("%s = 0x%02X, want 0x%02X", tt.op, uint8(tt.op), tt.want)
		}
		if !tt.op.IsCommand() {
			t.Errorf("%s is not a command", tt.op)
		}
	}
}

func TestOpcodeString(t *testing.T) {
	if got := OpPower.String(); got != "Power" {
		t.Errorf("String = %q", got)
	}
	if got := Opcode(0x01).String(); got != "Opcode(0x01)" {
		t.Errorf("String = %q", got)
	}
}

func TestParseOpcode(t *testing.T) {
	for _, op := range Commands() {
		got, err := ParseOpcode(op.String())
		if err != nil {
			t.Errorf("ParseOpcode(%q) failed: %v", op, err)
		}
		if got != op {
			t.Errorf("ParseOpcode(%q) = %s", op, got)
		}
	}

	if _, err := ParseOpcode("Notification"); err == nil {
		t.Error("inbound opcode accepted as a command")
	}
	if _, err := ParseOpcode("Dim"); err == nil {
		t.Error("unknown name accepted")
	}
}

func TestCommands(t *testing.T) {
	ops := Commands()
	if len(ops) != 15 {
		t.Fatalf("len = %d, want 15", len(ops))
	}
	for i := 1; i < len(ops); i++ {
		if ops[i-1] >= ops[i] {
			t.Errorf("not ascending at %d: %s, %s", i, ops[i-1], ops[i])
		}
	}
}
