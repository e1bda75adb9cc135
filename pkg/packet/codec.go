package packet

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/backkem/meshlight/pkg/crypto"
)

// Command is a decoded command payload.
type Command struct {
	DestID uint16
	Opcode Opcode
	Data   []byte
}

// BuildPayload lays out a 15-byte command payload:
// destID (LE) || opcode || 0x60 0x01 || data || zero padding.
func BuildPayload(destID uint16, op Opcode, data []byte) ([]byte, error) {
	if len(data) > MaxDataSize {
		return nil, ErrDataTooLong
	}

	payload := make([]byte, PayloadSize)
	binary.LittleEndian.PutUint16(payload[0:2], destID)
	payload[2] = byte(op)
	copy(payload[3:5], payloadMarker[:])
	copy(payload[5:], data)

	return payload, nil
}

// ParsePayload is the inverse of BuildPayload. Trailing padding is kept in
// Data since the payload carries no length field.
func ParsePayload(payload []byte) (*Command, error) {
	if len(payload) < PayloadSize {
		return nil, ErrMalformedPacket
	}
	if payload[3] != payloadMarker[0] || payload[4] != payloadMarker[1] {
		return nil, fmt.Errorf("%w: missing payload marker", ErrMalformedPacket)
	}

	data := make([]byte, PayloadSize-5)
	copy(data, payload[5:PayloadSize])

	return &Command{
		DestID: binary.LittleEndian.Uint16(payload[0:2]),
		Opcode: Opcode(payload[2]),
		Data:   data,
	}, nil
}

// MakeCommandPacket builds an authenticated, encrypted command packet for
// the device at address. The sequence is drawn from crypto/rand.
//
// The result is sequence(3) || MIC(2) || encrypted payload(15).
func MakeCommandPacket(key []byte, address string, destID uint16, op Opcode, data []byte) ([]byte, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}
	return makeCommandPacket(rand.Reader, key, addr, destID, op, data)
}

func makeCommandPacket(random io.Reader, key []byte, addr [AddressSize]byte, destID uint16, op Opcode, data []byte) ([]byte, error) {
	payload, err := BuildPayload(destID, op, data)
	if err != nil {
		return nil, err
	}

	var seq [SequenceSize]byte
	if _, err := io.ReadFull(random, seq[:]); err != nil {
		return nil, fmt.Errorf("packet: generate sequence: %w", err)
	}

	return sealCommand(key, addr, seq, payload)
}

// sealCommand encrypts payload under the outbound nonce for seq.
func sealCommand(key []byte, addr [AddressSize]byte, seq [SequenceSize]byte, payload []byte) ([]byte, error) {
	nonce := OutboundNonce(addr, seq)

	mic, err := crypto.Checksum(key, nonce, payload)
	if err != nil {
		return nil, err
	}
	enc, err := crypto.CryptPayload(key, nonce, payload)
	if err != nil {
		return nil, err
	}

	pkt := make([]byte, 0, commandHeaderSize+len(enc))
	pkt = append(pkt, seq[:]...)
	pkt = append(pkt, mic[:micSize]...)
	pkt = append(pkt, enc...)
	return pkt, nil
}

// OpenCommandPacket authenticates and decrypts a command packet produced by
// MakeCommandPacket. This is the device side of the outbound convention.
func OpenCommandPacket(key []byte, address string, pkt []byte) (*Command, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}
	payload, err := openCommand(key, addr, pkt)
	if err != nil {
		return nil, err
	}
	return ParsePayload(payload)
}

func openCommand(key []byte, addr [AddressSize]byte, pkt []byte) ([]byte, error) {
	if len(pkt) < PacketSize {
		return nil, ErrMalformedPacket
	}

	var seq [SequenceSize]byte
	copy(seq[:], pkt[:SequenceSize])
	nonce := OutboundNonce(addr, seq)

	payload, err := crypto.CryptPayload(key, nonce, pkt[commandHeaderSize:PacketSize])
	if err != nil {
		return nil, err
	}
	if err := verify(key, nonce, payload, pkt[SequenceSize:commandHeaderSize]); err != nil {
		return nil, err
	}

	return payload, nil
}

// DecryptPacket authenticates and decrypts a packet received from the
// device. The nonce is built from the address and pkt[0:5]; the MIC is
// pkt[5:7] and the ciphertext is everything after it.
//
// On success the seven header bytes are returned followed by the plaintext.
// A packet that fails authentication yields ErrChecksumMismatch and no data.
func DecryptPacket(key []byte, address string, pkt []byte) ([]byte, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}
	return decryptPacket(key, addr, pkt)
}

func decryptPacket(key []byte, addr [AddressSize]byte, pkt []byte) ([]byte, error) {
	if len(pkt) < PacketSize {
		return nil, ErrMalformedPacket
	}

	nonce := InboundNonce(addr, pkt)

	plain, err := crypto.CryptPayload(key, nonce, pkt[HeaderSize:])
	if err != nil {
		return nil, err
	}
	if err := verify(key, nonce, plain, pkt[5:HeaderSize]); err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(pkt))
	out = append(out, pkt[:HeaderSize]...)
	out = append(out, plain...)
	return out, nil
}

// MakeNotificationPacket seals payload the way the device does for inbound
// packets: header(5) || MIC(2) || encrypted payload.
func MakeNotificationPacket(key []byte, address string, header [5]byte, payload []byte) ([]byte, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}

	nonce := InboundNonce(addr, header[:])

	mic, err := crypto.Checksum(key, nonce, payload)
	if err != nil {
		return nil, err
	}
	enc, err := crypto.CryptPayload(key, nonce, payload)
	if err != nil {
		return nil, err
	}

	pkt := make([]byte, 0, HeaderSize+len(enc))
	pkt = append(pkt, header[:]...)
	pkt = append(pkt, mic[:micSize]...)
	pkt = append(pkt, enc...)
	return pkt, nil
}

// verify recomputes the MIC over plain and compares it with the
// transmitted bytes in constant time.
func verify(key, nonce, plain, mic []byte) error {
	check, err := crypto.Checksum(key, nonce, plain)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(check[:micSize], mic) != 1 {
		return ErrChecksumMismatch
	}
	return nil
}

// Codec binds a session key to one device address.
// It is safe for concurrent use; it holds no mutable state.
type Codec struct {
	key    []byte
	addr   [AddressSize]byte
	random io.Reader
}

// NewCodec creates a codec for the device at address using key.
func NewCodec(key []byte, address string) (*Codec, error) {
	if len(key) != crypto.KeySize {
		return nil, crypto.ErrInvalidKeyLength
	}
	addr, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}

	k := make([]byte, crypto.KeySize)
	copy(k, key)

	return &Codec{
		key:    k,
		addr:   addr,
		random: rand.Reader,
	}, nil
}

// Encode builds a command packet for destID.
func (c *Codec) Encode(destID uint16, op Opcode, data []byte) ([]byte, error) {
	return makeCommandPacket(c.random, c.key, c.addr, destID, op, data)
}

// Decrypt authenticates and decrypts an inbound packet. See DecryptPacket.
func (c *Codec) Decrypt(pkt []byte) ([]byte, error) {
	return decryptPacket(c.key, c.addr, pkt)
}

// Open authenticates and decrypts an outbound command packet.
// See OpenCommandPacket.
func (c *Codec) Open(pkt []byte) (*Command, error) {
	payload, err := openCommand(c.key, c.addr, pkt)
	if err != nil {
		return nil, err
	}
	return ParsePayload(payload)
}
