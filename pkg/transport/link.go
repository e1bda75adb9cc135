// Package transport carries GATT characteristic operations over a packet
// connection.
//
// Central implements light.Transport for the controller side; Peripheral
// serves a Handler for the lamp side. Together with Pipe they give a full
// in-memory BLE link for tests and simulation. Each frame is one packet:
//
//	kind(1) || characteristic(1) || request id(1) || payload
//
// The request id pairs a read with its response and is zero on writes and
// notifications.
package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/backkem/meshlight/pkg/gatt"
	"github.com/pion/logging"
)

type frameKind uint8

const (
	frameWrite frameKind = iota + 1
	frameRead
	frameReadResponse
	frameNotify
	frameError
)

const (
	frameHeaderSize = 3

	// MaxPayloadSize bounds a single characteristic value.
	MaxPayloadSize = 512
)

type frame struct {
	kind    frameKind
	char    gatt.Characteristic
	id      uint8
	payload []byte
}

func (f frame) encode() ([]byte, error) {
	if len(f.payload) > MaxPayloadSize {
		return nil, ErrFrameTooLarge
	}
	buf := make([]byte, 0, frameHeaderSize+len(f.payload))
	buf = append(buf, byte(f.kind), byte(f.char), f.id)
	return append(buf, f.payload...), nil
}

func decodeFrame(b []byte) (frame, error) {
	if len(b) < frameHeaderSize {
		return frame{}, ErrInvalidFrame
	}
	kind := frameKind(b[0])
	if kind < frameWrite || kind > frameError {
		return frame{}, ErrInvalidFrame
	}
	payload := make([]byte, len(b)-frameHeaderSize)
	copy(payload, b[frameHeaderSize:])
	return frame{kind: kind, char: gatt.Characteristic(b[1]), id: b[2], payload: payload}, nil
}

type readResult struct {
	id   uint8
	c    gatt.Characteristic
	data []byte
	err  error
}

// Central is the controller end of a link.
// Reads are serialized; writes and notifications may interleave with them.
type Central struct {
	conn net.Conn
	log  logging.LeveledLogger

	readMu    sync.Mutex
	lastID    uint8
	pending   atomic.Uint32 // id of the outstanding read, 0 if none
	responses chan readResult
	notify    chan []byte

	closeOnce sync.Once
	closeCh   chan struct{}
	wg        sync.WaitGroup
}

// CentralConfig configures a Central.
type CentralConfig struct {
	// NotifyBuffer is the number of undelivered notifications kept before
	// new ones are dropped. Default: 64
	NotifyBuffer int

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// NewCentral starts a Central on conn.
func NewCentral(conn net.Conn, config CentralConfig) *Central {
	buffer := config.NotifyBuffer
	if buffer == 0 {
		buffer = 64
	}

	c := &Central{
		conn:      conn,
		responses: make(chan readResult, 1),
		notify:    make(chan []byte, buffer),
		closeCh:   make(chan struct{}),
	}
	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("transport")
	}

	c.wg.Add(1)
	go c.readLoop()

	return c
}

func (c *Central) readLoop() {
	defer c.wg.Done()
	defer c.closeOnce.Do(func() { close(c.closeCh) })

	buf := make([]byte, frameHeaderSize+MaxPayloadSize)
	for {
		n, err := c.conn.Read(buf)
		if err != nil {
			return
		}

		f, err := decodeFrame(buf[:n])
		if err != nil {
			if c.log != nil {
				c.log.Warnf("dropping frame: %v", err)
			}
			continue
		}

		switch f.kind {
		case frameReadResponse:
			c.deliver(readResult{id: f.id, c: f.char, data: f.payload})
		case frameError:
			c.deliver(readResult{id: f.id, c: f.char, err: fmt.Errorf("transport: peer: %s", f.payload)})
		case frameNotify:
			select {
			case c.notify <- f.payload:
			default:
				if c.log != nil {
					c.log.Warnf("notification buffer full, dropping %d bytes", len(f.payload))
				}
			}
		default:
			if c.log != nil {
				c.log.Warnf("unexpected frame kind %d on %s", f.kind, f.char)
			}
		}
	}
}

// deliver hands r to the outstanding Read. Responses to reads that have
// already given up are dropped.
func (c *Central) deliver(r readResult) {
	if r.id == 0 || uint32(r.id) != c.pending.Load() {
		if c.log != nil {
			c.log.Debugf("dropping stale read response %d on %s", r.id, r.c)
		}
		return
	}
	select {
	case c.responses <- r:
	default:
		if c.log != nil {
			c.log.Warnf("unsolicited read response on %s", r.c)
		}
	}
}

// Write writes data to characteristic ch.
func (c *Central) Write(ctx context.Context, ch gatt.Characteristic, data []byte) error {
	if !ch.Valid() {
		return ErrUnknownCharacteristic
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-c.closeCh:
		return ErrClosed
	default:
	}

	b, err := frame{kind: frameWrite, char: ch, payload: data}.encode()
	if err != nil {
		return err
	}
	if _, err := c.conn.Write(b); err != nil {
		return fmt.Errorf("transport: write %s: %w", ch, err)
	}
	return nil
}

// Read reads characteristic ch, waiting for the peer's response or ctx.
func (c *Central) Read(ctx context.Context, ch gatt.Characteristic) ([]byte, error) {
	if !ch.Valid() {
		return nil, ErrUnknownCharacteristic
	}

	c.readMu.Lock()
	defer c.readMu.Unlock()

	c.lastID++
	if c.lastID == 0 {
		c.lastID = 1
	}
	id := c.lastID
	c.pending.Store(uint32(id))
	defer c.pending.Store(0)

	// A response that slipped in as an earlier Read gave up.
	select {
	case <-c.responses:
	default:
	}

	b, err := frame{kind: frameRead, char: ch, id: id}.encode()
	if err != nil {
		return nil, err
	}
	if _, err := c.conn.Write(b); err != nil {
		return nil, fmt.Errorf("transport: read %s: %w", ch, err)
	}

	for {
		select {
		case r := <-c.responses:
			if r.id != id {
				continue
			}
			if r.err != nil {
				return nil, r.err
			}
			if r.c != ch {
				return nil, fmt.Errorf("%w: response for %s, want %s", ErrInvalidFrame, r.c, ch)
			}
			return r.data, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.closeCh:
			return nil, ErrClosed
		}
	}
}

// Notifications returns the channel of status notifications. It is never
// closed; select on Done to detect the end of the link.
func (c *Central) Notifications() <-chan []byte {
	return c.notify
}

// Done is closed when the link goes down.
func (c *Central) Done() <-chan struct{} {
	return c.closeCh
}

// Close closes the connection and waits for the read loop.
func (c *Central) Close() error {
	err := c.conn.Close()
	c.wg.Wait()
	return err
}

// Handler serves characteristic operations on the peripheral side.
type Handler interface {
	HandleWrite(ch gatt.Characteristic, data []byte) error
	HandleRead(ch gatt.Characteristic) ([]byte, error)
}

// Peripheral is the lamp end of a link.
type Peripheral struct {
	conn    net.Conn
	handler Handler
	log     logging.LeveledLogger

	writeMu sync.Mutex
}

// PeripheralConfig configures a Peripheral.
type PeripheralConfig struct {
	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// NewPeripheral creates a Peripheral serving handler on conn.
// Call Serve to start processing frames.
func NewPeripheral(conn net.Conn, handler Handler, config PeripheralConfig) *Peripheral {
	p := &Peripheral{conn: conn, handler: handler}
	if config.LoggerFactory != nil {
		p.log = config.LoggerFactory.NewLogger("peripheral")
	}
	return p
}

// Serve processes frames until the connection closes or ctx is done.
func (p *Peripheral) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { p.conn.Close() })
	defer stop()

	buf := make([]byte, frameHeaderSize+MaxPayloadSize)
	for {
		n, err := p.conn.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return nil
		}

		f, err := decodeFrame(buf[:n])
		if err != nil {
			if p.log != nil {
				p.log.Warnf("dropping frame: %v", err)
			}
			continue
		}

		switch f.kind {
		case frameWrite:
			if err := p.handler.HandleWrite(f.char, f.payload); err != nil && p.log != nil {
				p.log.Warnf("write %s: %v", f.char, err)
			}
		case frameRead:
			data, err := p.handler.HandleRead(f.char)
			if err != nil {
				p.send(frame{kind: frameError, char: f.char, id: f.id, payload: []byte(err.Error())})
				continue
			}
			p.send(frame{kind: frameReadResponse, char: f.char, id: f.id, payload: data})
		default:
			if p.log != nil {
				p.log.Warnf("unexpected frame kind %d on %s", f.kind, f.char)
			}
		}
	}
}

// Notify pushes a notification on characteristic ch.
func (p *Peripheral) Notify(ch gatt.Characteristic, data []byte) error {
	return p.send(frame{kind: frameNotify, char: ch, payload: data})
}

func (p *Peripheral) send(f frame) error {
	b, err := f.encode()
	if err != nil {
		return err
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if _, err := p.conn.Write(b); err != nil {
		if p.log != nil {
			p.log.Warnf("send %s: %v", f.char, err)
		}
		return err
	}
	return nil
}
