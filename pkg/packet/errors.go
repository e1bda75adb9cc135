package packet

import "errors"

// Packet layer errors.
var (
	// Input validation errors
	ErrInvalidAddress  = errors.New("packet: invalid hardware address")
	ErrDataTooLong     = errors.New("packet: command data exceeds 10 bytes")
	ErrMalformedPacket = errors.New("packet: packet too short")

	// Security errors
	ErrChecksumMismatch = errors.New("packet: checksum mismatch")

	// Status errors
	ErrUnknownStatus = errors.New("packet: not a status packet")
)

// Packet format constants.
const (
	// PacketSize is the size of a command or notification packet.
	PacketSize = 20

	// PayloadSize is the size of a command payload before encryption.
	PayloadSize = 15

	// MaxDataSize is the largest command argument that fits in a payload.
	MaxDataSize = 10

	// SequenceSize is the size of the random per-packet sequence.
	SequenceSize = 3

	// HeaderSize is the authenticated but unencrypted prefix of an inbound
	// packet: five nonce bytes followed by the MIC.
	HeaderSize = 7

	// AddressSize is the size of a raw hardware address.
	AddressSize = 6

	// commandHeaderSize is sequence || MIC of an outbound command packet.
	commandHeaderSize = SequenceSize + micSize

	micSize = 2

	// nonceMarker separates address bytes from the sequence in outbound nonces.
	nonceMarker = 0x01
)

// Fixed marker bytes following the opcode of every command payload.
var payloadMarker = [2]byte{0x60, 0x01}
