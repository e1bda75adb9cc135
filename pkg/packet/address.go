package packet

import (
	"encoding/hex"
	"strings"
)

// ParseAddress parses a hardware address of the form "A4:C1:38:01:02:03".
// Exactly six colon-separated two-digit hex octets are accepted.
func ParseAddress(s string) ([AddressSize]byte, error) {
	var addr [AddressSize]byte

	parts := strings.Split(s, ":")
	if len(parts) != AddressSize {
		return addr, ErrInvalidAddress
	}
	for i, p := range parts {
		if len(p) != 2 {
			return addr, ErrInvalidAddress
		}
		b, err := hex.DecodeString(p)
		if err != nil {
			return addr, ErrInvalidAddress
		}
		addr[i] = b[0]
	}

	return addr, nil
}

// reversed returns the address bytes in little-endian (over-the-air) order.
func reversed(addr [AddressSize]byte) [AddressSize]byte {
	var r [AddressSize]byte
	for i := range addr {
		r[i] = addr[AddressSize-1-i]
	}
	return r
}

// OutboundNonce builds the nonce for a command packet sent to the device:
// the first four reversed address bytes, the marker 0x01 and the sequence.
func OutboundNonce(addr [AddressSize]byte, seq [SequenceSize]byte) []byte {
	r := reversed(addr)
	nonce := make([]byte, 0, 8)
	nonce = append(nonce, r[:4]...)
	nonce = append(nonce, nonceMarker)
	nonce = append(nonce, seq[:]...)
	return nonce
}

// InboundNonce builds the nonce for a packet received from the device:
// the first three reversed address bytes followed by the first five bytes
// of the packet itself.
func InboundNonce(addr [AddressSize]byte, header []byte) []byte {
	r := reversed(addr)
	nonce := make([]byte, 0, 8)
	nonce = append(nonce, r[:3]...)
	nonce = append(nonce, header[:5]...)
	return nonce
}
