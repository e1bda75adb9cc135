package pairing

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
)

// State represents the pairing state machine.
type State int

const (
	StateInit          State = iota
	StateAwaitingReply       // pair request sent
	StateAuthenticated       // session key available
	StateAuthFailed          // credentials rejected
	StateProtocolError       // unexpected reply
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateAwaitingReply:
		return "AwaitingReply"
	case StateAuthenticated:
		return "Authenticated"
	case StateAuthFailed:
		return "AuthFailed"
	case StateProtocolError:
		return "ProtocolError"
	default:
		return "Unknown"
	}
}

// IsTerminal reports whether no further transitions are possible.
func (s State) IsTerminal() bool {
	return s == StateAuthenticated || s == StateAuthFailed || s == StateProtocolError
}

// Session is one pairing handshake. It is single-use: a reconnect needs a
// new Session and yields a new key.
//
// Usage:
//
//	s, _ := pairing.NewSession(name, password)
//	req, _ := s.Start()
//	// write req to the pair characteristic, read the reply
//	if err := s.HandleReply(reply); err != nil { ... }
//	key, _ := s.SessionKey()
type Session struct {
	state State

	credential []byte

	localRandom [RandomSize]byte
	peerRandom  [RandomSize]byte

	sessionKey []byte
	lastReply  []byte

	// For testing: injectable random source
	rand io.Reader

	mu sync.Mutex
}

// NewSession creates a handshake for the given mesh credentials.
func NewSession(name, password string) (*Session, error) {
	cred, err := MeshCredential(name, password)
	if err != nil {
		return nil, err
	}

	return &Session{
		state:      StateInit,
		credential: cred,
		rand:       rand.Reader,
	}, nil
}

// Start generates the session random and returns the pair request.
// A failing random source aborts the handshake in StateInit.
func (s *Session) Start() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateInit {
		return nil, ErrInvalidState
	}

	if _, err := io.ReadFull(s.rand, s.localRandom[:]); err != nil {
		return nil, fmt.Errorf("pairing: generate session random: %w", err)
	}

	pkt, err := pairPacket(s.credential, s.localRandom[:])
	if err != nil {
		return nil, err
	}

	s.state = StateAwaitingReply

	return pkt, nil
}

// HandleReply processes the device's pair reply.
//
// 0x0d moves to StateAuthenticated and derives the session key. 0x0e moves
// to StateAuthFailed and returns ErrAuthFailed. Any other status moves to
// StateProtocolError and returns a *ProtocolError holding the raw reply.
// A reply too short to carry a status also counts as a protocol error.
func (s *Session) HandleReply(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAwaitingReply {
		return ErrInvalidState
	}

	s.lastReply = append([]byte(nil), data...)

	if len(data) == 0 {
		s.state = StateProtocolError
		return &ProtocolError{Raw: s.lastReply}
	}

	switch data[0] {
	case StatusSuccess:
		reply, err := ParsePairReply(data)
		if err != nil {
			s.state = StateProtocolError
			return &ProtocolError{Raw: s.lastReply}
		}
		key, err := sessionKey(s.credential, s.localRandom[:], reply.PeerRandom[:])
		if err != nil {
			return err
		}
		s.peerRandom = reply.PeerRandom
		s.sessionKey = key
		s.state = StateAuthenticated
		return nil

	case StatusRejected:
		s.state = StateAuthFailed
		return ErrAuthFailed

	default:
		s.state = StateProtocolError
		return &ProtocolError{Raw: s.lastReply}
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SessionKey returns a copy of the derived key.
func (s *Session) SessionKey() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAuthenticated {
		return nil, ErrSessionNotReady
	}
	return append([]byte(nil), s.sessionKey...), nil
}

// LastReply returns the last reply handed to HandleReply, for diagnostics.
func (s *Session) LastReply() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.lastReply...)
}

// SetRandom replaces the random source. Must be called before Start.
func (s *Session) SetRandom(r io.Reader) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rand = r
}
