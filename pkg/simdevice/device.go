// Package simdevice implements a simulated Telink mesh lamp.
//
// A Device plays the peripheral side of the protocol: it answers pair
// requests, opens command packets and reports its state as encrypted
// status packets. It implements transport.Handler so it can be served over
// any Peripheral, typically one end of a transport.Pipe.
//
// Example usage:
//
//	pipe := transport.NewPipe()
//	dev, _ := simdevice.New(simdevice.Config{Address: "A4:C1:38:01:02:03"})
//	go dev.Serve(ctx, pipe.PeripheralConn(), nil)
package simdevice

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/backkem/meshlight/pkg/gatt"
	"github.com/backkem/meshlight/pkg/packet"
	"github.com/backkem/meshlight/pkg/pairing"
	"github.com/backkem/meshlight/pkg/transport"
	"github.com/pion/logging"
)

// Factory mesh credentials of an unconfigured lamp.
const (
	DefaultMeshName     = "unpaired"
	DefaultMeshPassword = "1234"
)

// BroadcastID addresses every lamp in the mesh.
const BroadcastID uint16 = 0xFFFF

// Errors.
var (
	ErrNotPaired       = errors.New("simdevice: no session")
	ErrNoReply         = errors.New("simdevice: no pending reply")
	ErrUnsupported     = errors.New("simdevice: unsupported operation")
	ErrInvalidArgument = errors.New("simdevice: invalid command data")
)

// Notifier pushes notifications to the connected central.
// *transport.Peripheral satisfies it.
type Notifier interface {
	Notify(ch gatt.Characteristic, data []byte) error
}

// Config configures a Device.
type Config struct {
	// Address is the lamp hardware address. Required.
	Address string

	// MeshName and MeshPassword default to the factory credentials.
	MeshName     string
	MeshPassword string

	// MeshID is the initial mesh address of the lamp.
	MeshID uint16

	// Initial is the initial lamp state. Opcode and MeshID are ignored.
	Initial packet.Status

	// OnStateChange is called after a command changed the lamp state.
	OnStateChange func(s packet.Status)

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory

	// Rand overrides crypto/rand for pair response randoms.
	Rand io.Reader
}

// Device is a simulated lamp.
type Device struct {
	address       string
	onStateChange func(s packet.Status)
	random        io.Reader
	log           logging.LeveledLogger

	mu           sync.Mutex
	meshName     string
	meshPassword string
	responder    *pairing.Responder
	sessionKey   []byte
	pairReply    []byte
	meshChange   meshChange
	notify       bool
	notifier     Notifier
	state        packet.Status
	seq          uint32
	clock        []byte
}

// meshChange collects the three writes of a credential change.
type meshChange struct {
	name     *string
	password *string
}

// New creates a Device.
func New(cfg Config) (*Device, error) {
	if _, err := packet.ParseAddress(cfg.Address); err != nil {
		return nil, err
	}

	name, password := cfg.MeshName, cfg.MeshPassword
	if name == "" && password == "" {
		name, password = DefaultMeshName, DefaultMeshPassword
	}

	d := &Device{
		address:       cfg.Address,
		onStateChange: cfg.OnStateChange,
		random:        cfg.Rand,
		state:         cfg.Initial,
	}
	if d.random == nil {
		d.random = rand.Reader
	}
	d.state.MeshID = cfg.MeshID
	d.state.Opcode = 0

	if cfg.LoggerFactory != nil {
		d.log = cfg.LoggerFactory.NewLogger("simdevice")
	}

	if err := d.setCredentials(name, password); err != nil {
		return nil, err
	}

	return d, nil
}

// setCredentials replaces the mesh credentials. Callers hold mu or own d
// exclusively.
func (d *Device) setCredentials(name, password string) error {
	responder, err := pairing.NewResponder(name, password)
	if err != nil {
		return err
	}
	responder.SetRandom(d.random)

	d.meshName = name
	d.meshPassword = password
	d.responder = responder
	return nil
}

// Address returns the lamp hardware address.
func (d *Device) Address() string {
	return d.address
}

// Credentials returns the current mesh name and password.
func (d *Device) Credentials() (name, password string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.meshName, d.meshPassword
}

// Status returns a copy of the current lamp state.
func (d *Device) Status() packet.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Paired reports whether a session key has been negotiated.
func (d *Device) Paired() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessionKey != nil
}

// Clock returns the raw payload of the last time command, if any.
func (d *Device) Clock() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.clock...)
}

// Attach sets the notifier used for status notifications.
func (d *Device) Attach(n Notifier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notifier = n
}

// Serve serves the device on conn until ctx is done or conn closes.
func (d *Device) Serve(ctx context.Context, conn net.Conn, factory logging.LoggerFactory) error {
	p := transport.NewPeripheral(conn, d, transport.PeripheralConfig{LoggerFactory: factory})
	d.Attach(p)
	return p.Serve(ctx)
}

// HandleWrite implements transport.Handler.
func (d *Device) HandleWrite(ch gatt.Characteristic, data []byte) error {
	switch ch {
	case gatt.Pair:
		return d.handlePairWrite(data)
	case gatt.Command:
		return d.handleCommand(data)
	case gatt.Status:
		return d.handleStatusWrite(data)
	default:
		return fmt.Errorf("%w: write %s", ErrUnsupported, ch)
	}
}

// HandleRead implements transport.Handler.
func (d *Device) HandleRead(ch gatt.Characteristic) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch ch {
	case gatt.Pair:
		if d.pairReply == nil {
			return nil, ErrNoReply
		}
		return d.pairReply, nil
	case gatt.Status:
		if d.sessionKey == nil {
			return nil, ErrNotPaired
		}
		return d.sealStatus(packet.OpStatusReply)
	default:
		return nil, fmt.Errorf("%w: read %s", ErrUnsupported, ch)
	}
}

func (d *Device) handlePairWrite(data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(data) > 0 && data[0] == pairing.OpPairRequest {
		reply, key, err := d.responder.HandlePairPacket(data)
		if err != nil {
			d.pairReply = []byte{pairing.StatusRejected}
			return err
		}

		d.pairReply = reply
		d.sessionKey = key
		d.notify = false
		d.meshChange = meshChange{}

		if d.log != nil {
			if key != nil {
				d.log.Infof("paired, mesh %q", d.meshName)
			} else {
				d.log.Warnf("pair request with wrong credentials rejected")
			}
		}
		return nil
	}

	if d.sessionKey == nil {
		return ErrNotPaired
	}
	return d.handleMeshChange(data)
}

func (d *Device) handleMeshChange(data []byte) error {
	op, value, err := pairing.OpenMeshChangePacket(d.sessionKey, data)
	if err != nil {
		return err
	}

	switch op {
	case pairing.OpSetMeshName:
		d.meshChange.name = &value
	case pairing.OpSetMeshPassword:
		d.meshChange.password = &value
	case pairing.OpSetMeshLTK:
		change := d.meshChange
		d.meshChange = meshChange{}
		if change.name == nil || change.password == nil {
			d.pairReply = []byte{pairing.StatusRejected}
			return fmt.Errorf("%w: incomplete mesh change", ErrInvalidArgument)
		}
		if err := d.setCredentials(*change.name, *change.password); err != nil {
			d.pairReply = []byte{pairing.StatusRejected}
			return err
		}
		d.pairReply = []byte{pairing.StatusMeshChanged}
		if d.log != nil {
			d.log.Infof("moved to mesh %q", *change.name)
		}
	default:
		return fmt.Errorf("%w: pair op 0x%02x", ErrUnsupported, op)
	}
	return nil
}

func (d *Device) handleStatusWrite(data []byte) error {
	d.mu.Lock()
	if d.sessionKey == nil {
		d.mu.Unlock()
		return ErrNotPaired
	}
	if len(data) != 1 || data[0] != gatt.EnableNotifications[0] {
		d.mu.Unlock()
		return fmt.Errorf("%w: status write % x", ErrInvalidArgument, data)
	}
	d.notify = true
	pkt, err := d.sealStatus(packet.OpNotification)
	n := d.notifier
	d.mu.Unlock()

	if err != nil {
		return err
	}
	return d.push(n, pkt)
}

func (d *Device) handleCommand(data []byte) error {
	d.mu.Lock()

	if d.sessionKey == nil {
		d.mu.Unlock()
		return ErrNotPaired
	}

	cmd, err := packet.OpenCommandPacket(d.sessionKey, d.address, data)
	if err != nil {
		d.mu.Unlock()
		if d.log != nil {
			d.log.Warnf("dropping command packet: %v", err)
		}
		return err
	}

	if cmd.DestID != 0 && cmd.DestID != d.state.MeshID && cmd.DestID != BroadcastID {
		d.mu.Unlock()
		if d.log != nil {
			d.log.Debugf("ignoring %s for mesh id %d", cmd.Opcode, cmd.DestID)
		}
		return nil
	}

	if d.log != nil {
		d.log.Debugf("command %s % x", cmd.Opcode, cmd.Data)
	}

	changed, err := d.apply(cmd)
	if err != nil {
		d.mu.Unlock()
		return err
	}

	var pkt []byte
	if d.notify && (changed || cmd.Opcode == packet.OpStatusQuery) {
		op := packet.OpNotification
		if cmd.Opcode == packet.OpStatusQuery {
			op = packet.OpStatusReply
		}
		pkt, err = d.sealStatus(op)
	}
	n := d.notifier
	state := d.state
	cb := d.onStateChange
	d.mu.Unlock()

	if err != nil {
		return err
	}
	if changed && cb != nil {
		cb(state)
	}
	if pkt != nil {
		return d.push(n, pkt)
	}
	return nil
}

// apply updates the lamp state for cmd and reports whether it changed.
func (d *Device) apply(cmd *packet.Command) (bool, error) {
	before := d.state
	data := cmd.Data

	switch cmd.Opcode {
	case packet.OpPower:
		if data[0] != 0 {
			d.state.Mode |= packet.ModeOn
		} else {
			d.state.Mode &^= packet.ModeOn
		}
	case packet.OpColor:
		if data[0] != 0x04 {
			return false, fmt.Errorf("%w: colour marker 0x%02x", ErrInvalidArgument, data[0])
		}
		d.state.Red, d.state.Green, d.state.Blue = data[1], data[2], data[3]
		d.state.Mode = d.state.Mode&^packet.ModeTransition | packet.ModeColor
	case packet.OpColorBrightness:
		d.state.ColorBrightness = data[0]
		d.state.Mode |= packet.ModeColor
	case packet.OpWhiteTemperature:
		d.state.WhiteTemperature = data[0]
	case packet.OpWhiteBrightness:
		d.state.WhiteBrightness = data[0]
		d.state.Mode &^= packet.ModeColor | packet.ModeTransition
	case packet.OpPreset:
		d.state.Mode |= packet.ModeTransition
	case packet.OpLightMode:
		d.state.Mode = d.state.Mode&packet.ModeOn | data[0]&^packet.ModeOn
	case packet.OpMeshAddress:
		d.state.MeshID = binary.LittleEndian.Uint16(data[0:2])
	case packet.OpMeshReset:
		if err := d.setCredentials(DefaultMeshName, DefaultMeshPassword); err != nil {
			return false, err
		}
		d.state.MeshID = 0
	case packet.OpTime:
		d.clock = append(d.clock[:0], data[:7]...)
	case packet.OpStatusQuery, packet.OpAlarms, packet.OpMeshGroup,
		packet.OpSequenceColorDuration, packet.OpSequenceFadeDuration:
		// Accepted without a visible state change.
	default:
		return false, fmt.Errorf("%w: opcode %s", ErrUnsupported, cmd.Opcode)
	}

	return d.state != before, nil
}

// sealStatus encrypts the current state as op. Callers hold mu.
func (d *Device) sealStatus(op packet.Opcode) ([]byte, error) {
	d.seq++
	var seq [packet.SequenceSize]byte
	seq[0] = byte(d.seq)
	seq[1] = byte(d.seq >> 8)
	seq[2] = byte(d.seq >> 16)

	s := d.state
	s.Opcode = op
	return packet.MakeStatusPacket(d.sessionKey, d.address, seq, &s)
}

func (d *Device) push(n Notifier, pkt []byte) error {
	if n == nil {
		return nil
	}
	return n.Notify(gatt.Status, pkt)
}
