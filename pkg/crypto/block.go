// Package crypto implements the cryptographic primitives of the Telink mesh
// protocol: the byte-reversed AES-128 block function, the CBC-MAC style
// message integrity check, the single-byte-counter keystream and CRC-16.
//
// All functions are pure and safe for concurrent use.
package crypto

import (
	"crypto/aes"
	"errors"
)

const (
	// KeySize is the AES-128 key size in bytes.
	KeySize = 16

	// BlockSize is the AES block size in bytes.
	BlockSize = 16

	// NonceSize is the size of the per-packet nonce.
	NonceSize = 8

	// MICSize is the number of checksum bytes carried on the wire.
	MICSize = 2
)

// Errors
var (
	ErrInvalidKeyLength   = errors.New("crypto: invalid key length, must be 16 bytes")
	ErrInvalidBlockLength = errors.New("crypto: block longer than 16 bytes")
	ErrInvalidNonceLength = errors.New("crypto: invalid nonce length, must be 8 bytes")
)

// Encrypt runs a single AES-128 block encryption in the byte order the mesh
// firmware uses.
//
// The value is zero-padded on the right to 16 bytes. Key and padded value are
// byte-reversed before encryption and the ciphertext is reversed again before
// it is returned. The reversal must be kept exactly or the device rejects
// everything silently.
func Encrypt(key, value []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeyLength
	}
	if len(value) > BlockSize {
		return nil, ErrInvalidBlockLength
	}

	var k, v [BlockSize]byte
	copy(k[:], key)
	copy(v[:], value)
	reverse(k[:])
	reverse(v[:])

	block, err := aes.NewCipher(k[:])
	if err != nil {
		return nil, err
	}

	out := make([]byte, BlockSize)
	block.Encrypt(out, v[:])
	reverse(out)

	return out, nil
}

// Decrypt inverts Encrypt for a full 16-byte block. Zero padding added by
// Encrypt is not removed.
func Decrypt(key, block []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeyLength
	}
	if len(block) != BlockSize {
		return nil, ErrInvalidBlockLength
	}

	var k, v [BlockSize]byte
	copy(k[:], key)
	copy(v[:], block)
	reverse(k[:])
	reverse(v[:])

	c, err := aes.NewCipher(k[:])
	if err != nil {
		return nil, err
	}

	out := make([]byte, BlockSize)
	c.Decrypt(out, v[:])
	reverse(out)

	return out, nil
}

// reverse reverses b in place.
func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

// xorBlock sets dst[i] = a[i] ^ b[i] for the length of dst.
// Bytes missing from a or b are treated as zero.
func xorBlock(dst, a, b []byte) {
	for i := range dst {
		var x, y byte
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		dst[i] = x ^ y
	}
}
