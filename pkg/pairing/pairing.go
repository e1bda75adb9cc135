// Package pairing implements the Telink mesh pairing handshake.
//
// The controller proves knowledge of the mesh name and password by sending
// the credential encrypted under a fresh random, and both sides derive a
// per-connection session key from the credential and the two randoms.
//
// # Protocol Flow
//
//	Controller                              Device
//	----------                              ------
//	NewSession(name, password)
//	pkt = Start()          ---- pair ---->  verify credential
//	                       <--- reply ----  0x0d || responseRandom
//	HandleReply(reply)
//	SessionKey()                            same key
//
// A reply starting with 0x0e means the credentials were rejected. Any other
// status byte is a protocol error. No retries are performed here.
package pairing

import (
	"errors"
	"fmt"
)

// Protocol constants.
const (
	// RandomSize is the size of the session and response randoms.
	RandomSize = 8

	// CredentialSize is the padded size of mesh name, password and their XOR.
	CredentialSize = 16

	// SessionKeySize is the size of the derived session key.
	SessionKeySize = 16

	// PairPacketSize is the size of a pair request.
	PairPacketSize = 1 + RandomSize + 8

	// PairReplySize is the size of a pair reply.
	PairReplySize = 1 + RandomSize

	// MeshChangePacketSize is the size of a mesh credential update packet.
	MeshChangePacketSize = 1 + CredentialSize
)

// Pair characteristic opcodes and status bytes.
const (
	OpPairRequest  byte = 0x0c
	StatusSuccess  byte = 0x0d
	StatusRejected byte = 0x0e

	OpSetMeshName     byte = 0x04
	OpSetMeshPassword byte = 0x05
	OpSetMeshLTK      byte = 0x06
	StatusMeshChanged byte = 0x07
)

// Errors.
var (
	ErrInvalidState       = errors.New("pairing: invalid protocol state")
	ErrInvalidRandom      = errors.New("pairing: random must be 8 bytes")
	ErrCredentialTooLong  = errors.New("pairing: mesh name or password longer than 16 bytes")
	ErrInvalidPairPacket  = errors.New("pairing: invalid pair packet")
	ErrInvalidReply       = errors.New("pairing: invalid pair reply")
	ErrAuthFailed         = errors.New("pairing: mesh name or password rejected")
	ErrProtocol           = errors.New("pairing: unexpected pair reply")
	ErrSessionNotReady    = errors.New("pairing: session not authenticated")
	ErrMeshChangeRejected = errors.New("pairing: mesh change rejected")
)

// ProtocolError reports a pair reply with an unknown status byte.
// It matches ErrProtocol with errors.Is.
type ProtocolError struct {
	// Raw is the reply exactly as received.
	Raw []byte
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("pairing: unexpected pair reply %x", e.Raw)
}

// Is reports whether target is ErrProtocol.
func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocol
}

// pad16 zero-pads s to 16 bytes.
func pad16(s []byte) ([CredentialSize]byte, error) {
	var out [CredentialSize]byte
	if len(s) > CredentialSize {
		return out, ErrCredentialTooLong
	}
	copy(out[:], s)
	return out, nil
}

// MeshCredential returns pad16(name) XOR pad16(password), the long-term
// secret shared by every device in the mesh.
func MeshCredential(name, password string) ([]byte, error) {
	n, err := pad16([]byte(name))
	if err != nil {
		return nil, err
	}
	p, err := pad16([]byte(password))
	if err != nil {
		return nil, err
	}

	cred := make([]byte, CredentialSize)
	for i := range cred {
		cred[i] = n[i] ^ p[i]
	}
	return cred, nil
}
