// Package light drives a Telink mesh lamp over an abstract GATT transport.
//
// A Connection owns the per-connection protocol state: the pairing
// handshake, the derived session key and the packet codec bound to it.
// Transport calls are synchronous request/response; notifications received
// by the transport are handed back through HandleNotification.
package light

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/backkem/meshlight/pkg/capture"
	"github.com/backkem/meshlight/pkg/gatt"
	"github.com/backkem/meshlight/pkg/packet"
	"github.com/backkem/meshlight/pkg/pairing"
	"github.com/pion/logging"
)

// Errors.
var (
	ErrNoTransport = errors.New("light: transport is required")
	ErrNotPaired   = errors.New("light: connection not paired")
)

// Transport moves bytes to and from the lamp's characteristics.
// Implementations block until the operation completes or ctx is done.
type Transport interface {
	Write(ctx context.Context, c gatt.Characteristic, data []byte) error
	Read(ctx context.Context, c gatt.Characteristic) ([]byte, error)
}

// Recorder receives a copy of all traffic, e.g. a *capture.Writer.
type Recorder interface {
	Record(dir capture.Direction, c gatt.Characteristic, data []byte) error
}

// Config configures a Connection.
type Config struct {
	Transport Transport

	// Address is the lamp hardware address, "A4:C1:38:01:02:03".
	Address string

	MeshName     string
	MeshPassword string

	// MeshID is the default destination for Send. Zero addresses the
	// connected lamp.
	MeshID uint16

	// Recorder, if set, receives every read, write and notification.
	Recorder Recorder

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory

	// Rand overrides crypto/rand for the session random. Tests only.
	Rand io.Reader
}

// Connection is one lamp connection.
type Connection struct {
	transport Transport
	address   string
	meshID    uint16
	recorder  Recorder
	random    io.Reader
	log       logging.LeveledLogger

	mu           sync.Mutex
	meshName     string
	meshPassword string
	session      *pairing.Session
	codec        *packet.Codec
}

// NewConnection validates cfg and creates an unpaired connection.
func NewConnection(cfg Config) (*Connection, error) {
	if cfg.Transport == nil {
		return nil, ErrNoTransport
	}
	if _, err := packet.ParseAddress(cfg.Address); err != nil {
		return nil, err
	}
	if _, err := pairing.MeshCredential(cfg.MeshName, cfg.MeshPassword); err != nil {
		return nil, err
	}

	c := &Connection{
		transport:    cfg.Transport,
		address:      cfg.Address,
		meshID:       cfg.MeshID,
		recorder:     cfg.Recorder,
		random:       cfg.Rand,
		meshName:     cfg.MeshName,
		meshPassword: cfg.MeshPassword,
	}

	if cfg.LoggerFactory != nil {
		c.log = cfg.LoggerFactory.NewLogger("light")
	}

	return c, nil
}

// Address returns the lamp hardware address.
func (c *Connection) Address() string {
	return c.address
}

// Pair runs the pairing handshake. Any previous session key is discarded
// first, so a failed Pair leaves the connection unpaired.
func (c *Connection) Pair(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.codec = nil

	session, err := pairing.NewSession(c.meshName, c.meshPassword)
	if err != nil {
		return err
	}
	if c.random != nil {
		session.SetRandom(c.random)
	}
	c.session = session

	if c.log != nil {
		c.log.Infof("pairing with %s", c.address)
	}

	req, err := session.Start()
	if err != nil {
		return err
	}
	if err := c.write(ctx, gatt.Pair, req); err != nil {
		return fmt.Errorf("light: write pair request: %w", err)
	}

	reply, err := c.read(ctx, gatt.Pair)
	if err != nil {
		return fmt.Errorf("light: read pair reply: %w", err)
	}

	if err := session.HandleReply(reply); err != nil {
		if c.log != nil {
			c.log.Warnf("pairing with %s failed in state %s: %v", c.address, session.State(), err)
		}
		return err
	}

	key, err := session.SessionKey()
	if err != nil {
		return err
	}
	codec, err := packet.NewCodec(key, c.address)
	if err != nil {
		return err
	}
	c.codec = codec

	if c.log != nil {
		c.log.Infof("paired with %s", c.address)
	}

	return nil
}

// State returns the state of the current pairing session.
func (c *Connection) State() pairing.State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return pairing.StateInit
	}
	return c.session.State()
}

// SessionKey returns the key negotiated by the last successful Pair.
func (c *Connection) SessionKey() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return nil, ErrNotPaired
	}
	return c.session.SessionKey()
}

// Send sends cmd to the configured mesh id.
func (c *Connection) Send(ctx context.Context, cmd Command) error {
	return c.SendTo(ctx, c.meshID, cmd)
}

// SendTo sends cmd to destID.
func (c *Connection) SendTo(ctx context.Context, destID uint16, cmd Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.codec == nil {
		return ErrNotPaired
	}

	pkt, err := c.codec.Encode(destID, cmd.Opcode, cmd.Data)
	if err != nil {
		return err
	}

	if c.log != nil {
		c.log.Debugf("send %s to %d: % x", cmd.Opcode, destID, cmd.Data)
	}

	return c.write(ctx, gatt.Command, pkt)
}

// EnableNotifications asks the lamp to report state changes.
func (c *Connection) EnableNotifications(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.codec == nil {
		return ErrNotPaired
	}
	return c.write(ctx, gatt.Status, gatt.EnableNotifications)
}

// HandleNotification authenticates and decodes a notification delivered by
// the transport. Packets failing authentication return
// packet.ErrChecksumMismatch and must be dropped.
func (c *Connection) HandleNotification(pkt []byte) (*packet.Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.record(capture.DirectionIn, gatt.Status, pkt)
	return c.decodeStatus(pkt)
}

// ReadStatus reads the status characteristic directly.
func (c *Connection) ReadStatus(ctx context.Context) (*packet.Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.codec == nil {
		return nil, ErrNotPaired
	}

	pkt, err := c.read(ctx, gatt.Status)
	if err != nil {
		return nil, err
	}
	return c.decodeStatus(pkt)
}

func (c *Connection) decodeStatus(pkt []byte) (*packet.Status, error) {
	if c.codec == nil {
		return nil, ErrNotPaired
	}

	plain, err := c.codec.Decrypt(pkt)
	if err != nil {
		if c.log != nil {
			c.log.Warnf("dropping packet from %s: %v", c.address, err)
		}
		return nil, err
	}

	status, err := packet.ParseStatus(plain)
	if err != nil {
		return nil, err
	}

	if c.log != nil {
		c.log.Debugf("status: %s", status)
	}
	return status, nil
}

// ChangeMesh moves the paired lamp to new mesh credentials. On success the
// connection uses the new credentials for the next Pair.
func (c *Connection) ChangeMesh(ctx context.Context, name, password, ltk string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.codec == nil {
		return ErrNotPaired
	}
	if _, err := pairing.MeshCredential(name, password); err != nil {
		return err
	}

	key, err := c.session.SessionKey()
	if err != nil {
		return err
	}
	pkts, err := pairing.MakeMeshChangePackets(key, name, password, ltk)
	if err != nil {
		return err
	}

	for _, pkt := range pkts {
		if err := c.write(ctx, gatt.Pair, pkt); err != nil {
			return fmt.Errorf("light: write mesh change: %w", err)
		}
	}

	reply, err := c.read(ctx, gatt.Pair)
	if err != nil {
		return fmt.Errorf("light: read mesh change reply: %w", err)
	}
	if err := pairing.CheckMeshChangeReply(reply); err != nil {
		return err
	}

	c.meshName = name
	c.meshPassword = password

	if c.log != nil {
		c.log.Infof("%s moved to mesh %q", c.address, name)
	}
	return nil
}

func (c *Connection) write(ctx context.Context, ch gatt.Characteristic, data []byte) error {
	if err := c.transport.Write(ctx, ch, data); err != nil {
		return err
	}
	c.record(capture.DirectionOut, ch, data)
	return nil
}

func (c *Connection) read(ctx context.Context, ch gatt.Characteristic) ([]byte, error) {
	data, err := c.transport.Read(ctx, ch)
	if err != nil {
		return nil, err
	}
	c.record(capture.DirectionIn, ch, data)
	return data, nil
}

func (c *Connection) record(dir capture.Direction, ch gatt.Characteristic, data []byte) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.Record(dir, ch, data); err != nil && c.log != nil {
		c.log.Warnf("capture: %v", err)
	}
}
