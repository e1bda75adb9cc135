package simdevice

import (
	"bytes"
	"sync"
	"testing"

	"github.com/backkem/meshlight/pkg/gatt"
	"github.com/backkem/meshlight/pkg/packet"
	"github.com/backkem/meshlight/pkg/pairing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddress = "A4:C1:38:01:02:03"

type fakeNotifier struct {
	mu   sync.Mutex
	pkts [][]byte
}

func (n *fakeNotifier) Notify(ch gatt.Characteristic, data []byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if ch == gatt.Status {
		n.pkts = append(n.pkts, data)
	}
	return nil
}

func (n *fakeNotifier) last() []byte {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.pkts) == 0 {
		return nil
	}
	return n.pkts[len(n.pkts)-1]
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.pkts)
}

// pair runs the handshake against d and returns the session key.
func pair(t *testing.T, d *Device, name, password string) ([]byte, error) {
	t.Helper()

	s, err := pairing.NewSession(name, password)
	require.NoError(t, err)

	req, err := s.Start()
	require.NoError(t, err)
	require.NoError(t, d.HandleWrite(gatt.Pair, req))

	reply, err := d.HandleRead(gatt.Pair)
	require.NoError(t, err)

	if err := s.HandleReply(reply); err != nil {
		return nil, err
	}
	return s.SessionKey()
}

func newDevice(t *testing.T, cfg Config) *Device {
	t.Helper()
	if cfg.Address == "" {
		cfg.Address = testAddress
	}
	d, err := New(cfg)
	require.NoError(t, err)
	return d
}

func send(t *testing.T, d *Device, key []byte, destID uint16, op packet.Opcode, data []byte) error {
	t.Helper()
	pkt, err := packet.MakeCommandPacket(key, testAddress, destID, op, data)
	require.NoError(t, err)
	return d.HandleWrite(gatt.Command, pkt)
}

func TestNewDefaults(t *testing.T) {
	d := newDevice(t, Config{MeshID: 7})

	name, password := d.Credentials()
	assert.Equal(t, DefaultMeshName, name)
	assert.Equal(t, DefaultMeshPassword, password)
	assert.Equal(t, uint16(7), d.Status().MeshID)
	assert.False(t, d.Paired())

	_, err := New(Config{Address: "bogus"})
	assert.ErrorIs(t, err, packet.ErrInvalidAddress)

	_, err = New(Config{Address: testAddress, MeshName: "a name that is far too long"})
	assert.ErrorIs(t, err, pairing.ErrCredentialTooLong)
}

func TestPairing(t *testing.T) {
	d := newDevice(t, Config{})

	key, err := pair(t, d, DefaultMeshName, DefaultMeshPassword)
	require.NoError(t, err)
	assert.Len(t, key, 16)
	assert.True(t, d.Paired())
}

func TestPairingWrongPassword(t *testing.T) {
	d := newDevice(t, Config{MeshName: "home", MeshPassword: "secret"})

	_, err := pair(t, d, "home", "wrong")
	assert.ErrorIs(t, err, pairing.ErrAuthFailed)
	assert.False(t, d.Paired())
}

func TestReadBeforePair(t *testing.T) {
	d := newDevice(t, Config{})

	_, err := d.HandleRead(gatt.Pair)
	assert.ErrorIs(t, err, ErrNoReply)

	_, err = d.HandleRead(gatt.Status)
	assert.ErrorIs(t, err, ErrNotPaired)

	assert.ErrorIs(t, d.HandleWrite(gatt.Command, make([]byte, packet.PacketSize)), ErrNotPaired)
	assert.ErrorIs(t, d.HandleWrite(gatt.Status, gatt.EnableNotifications), ErrNotPaired)
}

func TestCommands(t *testing.T) {
	var changes []packet.Status
	d := newDevice(t, Config{
		OnStateChange: func(s packet.Status) { changes = append(changes, s) },
	})
	key, err := pair(t, d, DefaultMeshName, DefaultMeshPassword)
	require.NoError(t, err)

	require.NoError(t, send(t, d, key, 0, packet.OpPower, []byte{0x01}))
	assert.True(t, statusOf(d).On())

	require.NoError(t, send(t, d, key, 0, packet.OpColor, []byte{0x04, 0xff, 0x80, 0x01}))
	s := d.Status()
	assert.True(t, s.ColorMode())
	assert.Equal(t, [3]uint8{0xff, 0x80, 0x01}, [3]uint8{s.Red, s.Green, s.Blue})

	require.NoError(t, send(t, d, key, 0, packet.OpWhiteBrightness, []byte{0x40}))
	s = d.Status()
	assert.False(t, s.ColorMode())
	assert.Equal(t, uint8(0x40), s.WhiteBrightness)

	require.NoError(t, send(t, d, key, 0, packet.OpWhiteTemperature, []byte{0x20}))
	assert.Equal(t, uint8(0x20), d.Status().WhiteTemperature)

	require.NoError(t, send(t, d, key, 0, packet.OpMeshAddress, []byte{0x05, 0x01}))
	assert.Equal(t, uint16(0x0105), d.Status().MeshID)

	require.NoError(t, send(t, d, key, 0, packet.OpTime, []byte{0xea, 0x07, 10, 19, 12, 30, 0}))
	assert.Equal(t, []byte{0xea, 0x07, 10, 19, 12, 30, 0}, d.Clock())

	require.NoError(t, send(t, d, key, 0, packet.OpPower, []byte{0x00}))
	assert.False(t, statusOf(d).On())

	assert.Len(t, changes, 6)
}

func statusOf(d *Device) *packet.Status {
	s := d.Status()
	return &s
}

func TestCommandAddressing(t *testing.T) {
	d := newDevice(t, Config{MeshID: 3})
	key, err := pair(t, d, DefaultMeshName, DefaultMeshPassword)
	require.NoError(t, err)

	require.NoError(t, send(t, d, key, 9, packet.OpPower, []byte{0x01}))
	assert.False(t, statusOf(d).On(), "command for another lamp applied")

	require.NoError(t, send(t, d, key, 3, packet.OpPower, []byte{0x01}))
	assert.True(t, statusOf(d).On())

	require.NoError(t, send(t, d, key, BroadcastID, packet.OpPower, []byte{0x00}))
	assert.False(t, statusOf(d).On())
}

func TestCommandWrongKey(t *testing.T) {
	d := newDevice(t, Config{})
	_, err := pair(t, d, DefaultMeshName, DefaultMeshPassword)
	require.NoError(t, err)

	err = send(t, d, bytes.Repeat([]byte{0x55}, 16), 0, packet.OpPower, []byte{0x01})
	assert.ErrorIs(t, err, packet.ErrChecksumMismatch)
	assert.False(t, statusOf(d).On())
}

func TestNotifications(t *testing.T) {
	n := &fakeNotifier{}
	d := newDevice(t, Config{MeshID: 0x0102})
	d.Attach(n)

	key, err := pair(t, d, DefaultMeshName, DefaultMeshPassword)
	require.NoError(t, err)

	// Nothing is pushed until notifications are enabled.
	require.NoError(t, send(t, d, key, 0, packet.OpPower, []byte{0x01}))
	assert.Equal(t, 0, n.count())

	require.NoError(t, d.HandleWrite(gatt.Status, gatt.EnableNotifications))
	require.Equal(t, 1, n.count())

	require.NoError(t, send(t, d, key, 0, packet.OpColorBrightness, []byte{0x32}))
	require.Equal(t, 2, n.count())

	plain, err := packet.DecryptPacket(key, testAddress, n.last())
	require.NoError(t, err)
	s, err := packet.ParseStatus(plain)
	require.NoError(t, err)
	assert.Equal(t, packet.OpNotification, s.Opcode)
	assert.Equal(t, uint16(0x0102), s.MeshID)
	assert.True(t, s.On())
	assert.Equal(t, uint8(0x32), s.ColorBrightness)

	// A status query answers with a status reply even without a change.
	require.NoError(t, send(t, d, key, 0, packet.OpStatusQuery, []byte{0x10}))
	require.Equal(t, 3, n.count())
	plain, err = packet.DecryptPacket(key, testAddress, n.last())
	require.NoError(t, err)
	s, err = packet.ParseStatus(plain)
	require.NoError(t, err)
	assert.Equal(t, packet.OpStatusReply, s.Opcode)

	assert.ErrorIs(t, d.HandleWrite(gatt.Status, []byte{0x02}), ErrInvalidArgument)
}

func TestReadStatus(t *testing.T) {
	d := newDevice(t, Config{
		MeshID:  0x0a0b,
		Initial: packet.Status{Mode: packet.ModeOn, WhiteBrightness: 0x7f},
	})
	key, err := pair(t, d, DefaultMeshName, DefaultMeshPassword)
	require.NoError(t, err)

	pkt, err := d.HandleRead(gatt.Status)
	require.NoError(t, err)

	plain, err := packet.DecryptPacket(key, testAddress, pkt)
	require.NoError(t, err)
	s, err := packet.ParseStatus(plain)
	require.NoError(t, err)
	assert.Equal(t, packet.OpStatusReply, s.Opcode)
	assert.Equal(t, uint16(0x0a0b), s.MeshID)
	assert.True(t, s.On())
	assert.Equal(t, uint8(0x7f), s.WhiteBrightness)
}

func TestMeshChange(t *testing.T) {
	d := newDevice(t, Config{})
	key, err := pair(t, d, DefaultMeshName, DefaultMeshPassword)
	require.NoError(t, err)

	pkts, err := pairing.MakeMeshChangePackets(key, "home", "s3cret", "0123456789abcdef")
	require.NoError(t, err)
	for _, pkt := range pkts {
		require.NoError(t, d.HandleWrite(gatt.Pair, pkt))
	}

	reply, err := d.HandleRead(gatt.Pair)
	require.NoError(t, err)
	assert.NoError(t, pairing.CheckMeshChangeReply(reply))

	name, password := d.Credentials()
	assert.Equal(t, "home", name)
	assert.Equal(t, "s3cret", password)

	_, err = pair(t, d, DefaultMeshName, DefaultMeshPassword)
	assert.ErrorIs(t, err, pairing.ErrAuthFailed)

	_, err = pair(t, d, "home", "s3cret")
	assert.NoError(t, err)
}

func TestMeshChangeIncomplete(t *testing.T) {
	d := newDevice(t, Config{})
	key, err := pair(t, d, DefaultMeshName, DefaultMeshPassword)
	require.NoError(t, err)

	pkts, err := pairing.MakeMeshChangePackets(key, "home", "s3cret", "ltk")
	require.NoError(t, err)

	// Skip the password write.
	require.NoError(t, d.HandleWrite(gatt.Pair, pkts[0]))
	assert.ErrorIs(t, d.HandleWrite(gatt.Pair, pkts[2]), ErrInvalidArgument)

	reply, err := d.HandleRead(gatt.Pair)
	require.NoError(t, err)
	assert.ErrorIs(t, pairing.CheckMeshChangeReply(reply), pairing.ErrMeshChangeRejected)

	name, _ := d.Credentials()
	assert.Equal(t, DefaultMeshName, name)
}

func TestMeshReset(t *testing.T) {
	d := newDevice(t, Config{MeshName: "home", MeshPassword: "s3cret", MeshID: 4})
	key, err := pair(t, d, "home", "s3cret")
	require.NoError(t, err)

	require.NoError(t, send(t, d, key, 0, packet.OpMeshReset, []byte{0x00}))

	name, password := d.Credentials()
	assert.Equal(t, DefaultMeshName, name)
	assert.Equal(t, DefaultMeshPassword, password)
	assert.Equal(t, uint16(0), d.Status().MeshID)
}

func TestUnsupported(t *testing.T) {
	d := newDevice(t, Config{})

	assert.ErrorIs(t, d.HandleWrite(gatt.OTA, []byte{0x00}), ErrUnsupported)
	_, err := d.HandleRead(gatt.Command)
	assert.ErrorIs(t, err, ErrUnsupported)
}
