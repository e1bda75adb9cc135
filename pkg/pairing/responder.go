package pairing

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"
)

// Responder is the device side of the handshake. It checks pair requests
// against its mesh credential and derives the same session key as the
// controller.
type Responder struct {
	credential []byte
	rand       io.Reader
}

// NewResponder creates a responder for the given mesh credentials.
func NewResponder(name, password string) (*Responder, error) {
	cred, err := MeshCredential(name, password)
	if err != nil {
		return nil, err
	}
	return &Responder{credential: cred, rand: rand.Reader}, nil
}

// SetRandom replaces the random source used for response randoms.
func (r *Responder) SetRandom(rnd io.Reader) {
	r.rand = rnd
}

// HandlePairPacket verifies a pair request. On success it returns the
// 0x0d reply and the session key. A wrong credential yields the 0x0e
// reply, a nil key and no error.
func (r *Responder) HandlePairPacket(pkt []byte) (reply []byte, key []byte, err error) {
	if len(pkt) != PairPacketSize || pkt[0] != OpPairRequest {
		return nil, nil, ErrInvalidPairPacket
	}

	sessionRandom := pkt[1 : 1+RandomSize]
	proof, err := credentialProof(r.credential, sessionRandom)
	if err != nil {
		return nil, nil, err
	}

	if subtle.ConstantTimeCompare(proof, pkt[1+RandomSize:]) != 1 {
		rejected := PairReply{Status: StatusRejected}
		return rejected.Encode(), nil, nil
	}

	accepted := PairReply{Status: StatusSuccess}
	if _, err := io.ReadFull(r.rand, accepted.PeerRandom[:]); err != nil {
		return nil, nil, fmt.Errorf("pairing: generate response random: %w", err)
	}

	key, err = sessionKey(r.credential, sessionRandom, accepted.PeerRandom[:])
	if err != nil {
		return nil, nil, err
	}

	return accepted.Encode(), key, nil
}
