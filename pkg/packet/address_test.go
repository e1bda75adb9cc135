package packet

import (
	"bytes"
	"testing"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		in      string
		want    [AddressSize]byte
		wantErr bool
	}{
		{"A4:C1:38:01:02:03", [AddressSize]byte{0xA4, 0xC1, 0x38, 0x01, 0x02, 0x03}, false},
		{"a4:c1:38:01:02:0f", [AddressSize]byte{0xA4, 0xC1, 0x38, 0x01, 0x02, 0x0F}, false},
		{"", [AddressSize]byte{}, true},
		{"A4:C1:38:01:02", [AddressSize]byte{}, true},
		{"A4:C1:38:01:02:03:04", [AddressSize]byte{}, true},
		{"A4:C1:38:1:02:03", [AddressSize]byte{}, true},
		{"A4:C1:38:01:02:ZZ", [AddressSize]byte{}, true},
		{"A4C138010203", [AddressSize]byte{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAddress(tt.in)
			if tt.wantErr {
				if err != ErrInvalidAddress {
					t.Errorf("got %v, want ErrInvalidAddress", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAddress failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %x, want %x", got, tt.want)
			}
		})
	}
}

func TestNonceConventions(t *testing.T) {
	addr, _ := ParseAddress(testAddress)

	out := OutboundNonce(addr, [SequenceSize]byte{0xaa, 0xbb, 0xcc})
	if want := []byte{0x03, 0x02, 0x01, 0x38, 0x01, 0xaa, 0xbb, 0xcc}; !bytes.Equal(out, want) {
		t.Errorf("OutboundNonce = %x, want %x", out, want)
	}

	in := InboundNonce(addr, []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0xff, 0xff})
	if want := []byte{0x03, 0x02, 0x01, 0x01, 0x02, 0x03, 0x04, 0x05}; !bytes.Equal(in, want) {
		t.Errorf("InboundNonce = %x, want %x", in, want)
	}
}
