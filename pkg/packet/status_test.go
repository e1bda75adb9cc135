package packet

import (
	"errors"
	"testing"
)

func TestParseStatusReply(t *testing.T) {
	d := make([]byte, PacketSize)
	d[3], d[4] = 0x05, 0x01
	d[7] = byte(OpStatusReply)
	d[10] = ModeOn
	d[11], d[12], d[13] = 0x7f, 0x20, 0x64
	d[14], d[15], d[16] = 1, 2, 3

	s, err := ParseStatus(d)
	if err != nil {
		t.Fatalf("ParseStatus failed: %v", err)
	}
	if s.MeshID != 0x0105 {
		t.Errorf("MeshID = 0x%04X", s.MeshID)
	}
	if !s.On() || s.ColorMode() || s.TransitionMode() {
		t.Errorf("mode flags wrong: %s", s)
	}
	if s.WhiteBrightness != 0x7f || s.WhiteTemperature != 0x20 || s.ColorBrightness != 0x64 {
		t.Errorf("levels wrong: %s", s)
	}
	if s.Red != 1 || s.Green != 2 || s.Blue != 3 {
		t.Errorf("rgb wrong: %s", s)
	}
}

func TestNotificationPayloadRoundTrip(t *testing.T) {
	in := &Status{
		Opcode:           OpNotification,
		MeshID:           0x0203,
		Mode:             ModeOn | ModeTransition,
		WhiteBrightness:  10,
		WhiteTemperature: 20,
		ColorBrightness:  30,
		Red:              40,
		Green:            50,
		Blue:             60,
	}

	d := make([]byte, HeaderSize, PacketSize)
	d = append(d, NotificationPayload(in)...)

	out, err := ParseStatus(d)
	if err != nil {
		t.Fatalf("ParseStatus failed: %v", err)
	}
	if *out != *in {
		t.Errorf("got %+v, want %+v", out, in)
	}
}

func TestParseStatusErrors(t *testing.T) {
	if _, err := ParseStatus(make([]byte, 10)); err != ErrMalformedPacket {
		t.Errorf("got %v, want ErrMalformedPacket", err)
	}

	d := make([]byte, PacketSize)
	d[7] = byte(OpPower)
	if _, err := ParseStatus(d); !errors.Is(err, ErrUnknownStatus) {
		t.Errorf("got %v, want ErrUnknownStatus", err)
	}
}

func TestMakeStatusPacket(t *testing.T) {
	key := testKey

	for _, op := range []Opcode{OpStatusReply, OpNotification} {
		t.Run(op.String(), func(t *testing.T) {
			in := &Status{
				Opcode:           op,
				MeshID:           0x0107,
				Mode:             ModeOn | ModeColor,
				WhiteBrightness:  0x40,
				WhiteTemperature: 0x10,
				ColorBrightness:  0x64,
				Red:              0xff,
				Green:            0x80,
				Blue:             0x01,
			}

			pkt, err := MakeStatusPacket(key, testAddress, [SequenceSize]byte{1, 2, 3}, in)
			if err != nil {
				t.Fatalf("MakeStatusPacket failed: %v", err)
			}
			if len(pkt) != PacketSize {
				t.Fatalf("packet length = %d, want %d", len(pkt), PacketSize)
			}

			plain, err := DecryptPacket(key, testAddress, pkt)
			if err != nil {
				t.Fatalf("DecryptPacket failed: %v", err)
			}
			out, err := ParseStatus(plain)
			if err != nil {
				t.Fatalf("ParseStatus failed: %v", err)
			}
			if *out != *in {
				t.Errorf("got %+v, want %+v", out, in)
			}
		})
	}

	if _, err := MakeStatusPacket(key, testAddress, [SequenceSize]byte{}, &Status{Opcode: OpPower}); !errors.Is(err, ErrUnknownStatus) {
		t.Errorf("got %v, want ErrUnknownStatus", err)
	}
}
