// Package gatt describes the GATT profile exposed by Telink mesh lamps.
//
// The BLE stack itself lives outside this module; transports use these
// identifiers to find the characteristics the protocol writes to.
package gatt

import (
	"fmt"

	"github.com/google/uuid"
)

// ServiceUUID is the primary service carrying all mesh characteristics.
var ServiceUUID = uuid.MustParse("00010203-0405-0607-0809-0a0b0c0d1910")

// Characteristic identifies one of the mesh characteristics.
type Characteristic uint8

const (
	// Status delivers notifications; writing 0x01 enables them.
	Status Characteristic = iota + 1
	// Command accepts encrypted command packets.
	Command
	// OTA is the firmware update channel.
	OTA
	// Pair carries the pairing handshake and mesh credential changes.
	Pair
)

var characteristicUUIDs = map[Characteristic]uuid.UUID{
	Status:  uuid.MustParse("00010203-0405-0607-0809-0a0b0c0d1911"),
	Command: uuid.MustParse("00010203-0405-0607-0809-0a0b0c0d1912"),
	OTA:     uuid.MustParse("00010203-0405-0607-0809-0a0b0c0d1913"),
	Pair:    uuid.MustParse("00010203-0405-0607-0809-0a0b0c0d1914"),
}

// EnableNotifications is written to Status to start notifications.
var EnableNotifications = []byte{0x01}

// UUID returns the characteristic UUID.
func (c Characteristic) UUID() uuid.UUID {
	return characteristicUUIDs[c]
}

// Valid reports whether c is a known characteristic.
func (c Characteristic) Valid() bool {
	_, ok := characteristicUUIDs[c]
	return ok
}

// String returns the characteristic name.
func (c Characteristic) String() string {
	switch c {
	case Status:
		return "Status"
	case Command:
		return "Command"
	case OTA:
		return "OTA"
	case Pair:
		return "Pair"
	default:
		return fmt.Sprintf("Characteristic(%d)", uint8(c))
	}
}

// Lookup maps a discovered UUID back to its characteristic.
func Lookup(id uuid.UUID) (Characteristic, bool) {
	for c, u := range characteristicUUIDs {
		if u == id {
			return c, true
		}
	}
	return 0, false
}
