package transport

import "errors"

// Transport errors.
var (
	// ErrClosed is returned when an operation is attempted on a closed link.
	ErrClosed = errors.New("transport: closed")

	// ErrInvalidFrame is returned for frames that cannot be parsed.
	ErrInvalidFrame = errors.New("transport: invalid frame")

	// ErrUnknownCharacteristic is returned for operations on a
	// characteristic the lamp does not expose.
	ErrUnknownCharacteristic = errors.New("transport: unknown characteristic")

	// ErrFrameTooLarge is returned when a value exceeds MaxPayloadSize.
	ErrFrameTooLarge = errors.New("transport: frame too large")
)
