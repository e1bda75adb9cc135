// Package capture records raw characteristic traffic to CBOR files.
//
// Captures make it possible to replay real device traffic through the
// packet codec offline, for example to check the nonce conventions against
// a lamp, without the BLE stack in the loop.
package capture

import (
	"fmt"
	"io"
	"time"

	"github.com/backkem/meshlight/pkg/gatt"
	"github.com/fxamacker/cbor/v2"
)

// Direction indicates which way a record travelled.
type Direction uint8

const (
	// DirectionIn is traffic received from the device.
	DirectionIn Direction = 0
	// DirectionOut is traffic written to the device.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Record is one characteristic read, write or notification.
// CBOR encoding uses integer keys for compactness.
type Record struct {
	// Timestamp when the bytes crossed the transport.
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID groups the records of one connection (UUID).
	SessionID string `cbor:"2,keyasint"`

	Direction      Direction           `cbor:"3,keyasint"`
	Characteristic gatt.Characteristic `cbor:"4,keyasint"`

	// Address is the device hardware address.
	Address string `cbor:"5,keyasint,omitempty"`

	Data []byte `cbor:"6,keyasint"`
}

// Records keep nanosecond timestamps. Captures are only ever written by
// Writer, so the decoder rejects anything it would not produce.
var (
	encMode = mustEncMode(cbor.EncOptions{Time: cbor.TimeRFC3339Nano})
	decMode = mustDecMode(cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
	})
)

func mustEncMode(opts cbor.EncOptions) cbor.EncMode {
	m, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("capture: cbor encoder: %v", err))
	}
	return m
}

func mustDecMode(opts cbor.DecOptions) cbor.DecMode {
	m, err := opts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("capture: cbor decoder: %v", err))
	}
	return m
}

// EncodeRecord encodes a single record.
func EncodeRecord(r Record) ([]byte, error) {
	return encMode.Marshal(r)
}

// DecodeRecord decodes a single record.
func DecodeRecord(data []byte) (Record, error) {
	var r Record
	if err := decMode.Unmarshal(data, &r); err != nil {
		return Record{}, err
	}
	return r, nil
}

// NewEncoder returns a CBOR encoder writing records to w.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder returns a CBOR decoder reading records from r.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return decMode.NewDecoder(r)
}
