package pairing

import (
	"bytes"

	"github.com/backkem/meshlight/pkg/crypto"
)

// MakePairPacket builds the pair request:
// 0x0c || sessionRandom || Encrypt(pad16(sessionRandom), credential)[0:8].
func MakePairPacket(name, password string, sessionRandom []byte) ([]byte, error) {
	if len(sessionRandom) != RandomSize {
		return nil, ErrInvalidRandom
	}
	cred, err := MeshCredential(name, password)
	if err != nil {
		return nil, err
	}
	return pairPacket(cred, sessionRandom)
}

// pairPacket assembles 0x0c || sessionRandom || proof.
func pairPacket(cred, sessionRandom []byte) ([]byte, error) {
	proof, err := credentialProof(cred, sessionRandom)
	if err != nil {
		return nil, err
	}

	pkt := make([]byte, 0, PairPacketSize)
	pkt = append(pkt, OpPairRequest)
	pkt = append(pkt, sessionRandom...)
	pkt = append(pkt, proof...)
	return pkt, nil
}

// credentialProof encrypts the credential under the zero-padded random and
// truncates to eight bytes.
func credentialProof(cred, sessionRandom []byte) ([]byte, error) {
	var key [crypto.KeySize]byte
	copy(key[:], sessionRandom)

	enc, err := crypto.Encrypt(key[:], cred)
	if err != nil {
		return nil, err
	}
	return enc[:8], nil
}

// MakeSessionKey derives the session key:
// Encrypt(credential, sessionRandom || responseRandom).
func MakeSessionKey(name, password string, sessionRandom, responseRandom []byte) ([]byte, error) {
	cred, err := MeshCredential(name, password)
	if err != nil {
		return nil, err
	}
	return sessionKey(cred, sessionRandom, responseRandom)
}

func sessionKey(cred, sessionRandom, responseRandom []byte) ([]byte, error) {
	if len(sessionRandom) != RandomSize || len(responseRandom) != RandomSize {
		return nil, ErrInvalidRandom
	}

	plain := make([]byte, 0, 2*RandomSize)
	plain = append(plain, sessionRandom...)
	plain = append(plain, responseRandom...)

	return crypto.Encrypt(cred, plain)
}

// PairReply is the device's answer to a pair request.
type PairReply struct {
	Status     byte
	PeerRandom [RandomSize]byte
}

// ParsePairReply decodes status || peerRandom. Only the length is checked;
// interpreting the status is left to Session.
func ParsePairReply(data []byte) (*PairReply, error) {
	if len(data) < PairReplySize {
		return nil, ErrInvalidReply
	}

	r := &PairReply{Status: data[0]}
	copy(r.PeerRandom[:], data[1:PairReplySize])
	return r, nil
}

// Encode returns the wire form of r.
func (r *PairReply) Encode() []byte {
	out := make([]byte, 0, PairReplySize)
	out = append(out, r.Status)
	return append(out, r.PeerRandom[:]...)
}

// MakeMeshChangePackets builds the three pair-characteristic writes that move
// a paired device to a new mesh: name, password and long-term key, each
// encrypted under the current session key.
func MakeMeshChangePackets(sessionKey []byte, name, password, ltk string) ([][]byte, error) {
	values := []struct {
		op    byte
		value string
	}{
		{OpSetMeshName, name},
		{OpSetMeshPassword, password},
		{OpSetMeshLTK, ltk},
	}

	pkts := make([][]byte, 0, len(values))
	for _, v := range values {
		if len(v.value) > CredentialSize {
			return nil, ErrCredentialTooLong
		}
		enc, err := crypto.Encrypt(sessionKey, []byte(v.value))
		if err != nil {
			return nil, err
		}
		pkts = append(pkts, append([]byte{v.op}, enc...))
	}
	return pkts, nil
}

// CheckMeshChangeReply reports whether the device accepted a mesh change.
func CheckMeshChangeReply(reply []byte) error {
	if len(reply) == 0 || reply[0] != StatusMeshChanged {
		return ErrMeshChangeRejected
	}
	return nil
}

// OpenMeshChangePacket recovers the op and plaintext value of a mesh change
// packet. This is the device side of MakeMeshChangePackets.
func OpenMeshChangePacket(sessionKey []byte, pkt []byte) (byte, string, error) {
	if len(pkt) != MeshChangePacketSize {
		return 0, "", ErrInvalidPairPacket
	}
	plain, err := crypto.Decrypt(sessionKey, pkt[1:])
	if err != nil {
		return 0, "", err
	}
	return pkt[0], string(bytes.TrimRight(plain, "\x00")), nil
}
