package crypto

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func TestChecksumVector(t *testing.T) {
	key := seqBytes(16)
	nonce := mustHex(t, "0102030405060708")
	payload := seqBytes(15)

	got, err := Checksum(key, nonce, payload)
	if err != nil {
		t.Fatalf("Checksum failed: %v", err)
	}
	if want := "aee05ed04e1cb21f3f095c578cb2dd32"; hex.EncodeToString(got) != want {
		t.Errorf("Checksum = %x, want %s", got, want)
	}
}

func TestChecksumDeterministic(t *testing.T) {
	key := seqBytes(16)
	nonce := mustHex(t, "a1a2a3a4a5a6a7a8")
	payload := []byte("turn the lights on")

	a, err := Checksum(key, nonce, payload)
	if err != nil {
		t.Fatalf("Checksum failed: %v", err)
	}
	b, err := Checksum(key, nonce, payload)
	if err != nil {
		t.Fatalf("Checksum failed: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("identical inputs gave %x and %x", a, b)
	}
	if len(a) != BlockSize {
		t.Errorf("len = %d, want %d", len(a), BlockSize)
	}
}

func TestChecksumAvalanche(t *testing.T) {
	key := seqBytes(16)
	nonce := mustHex(t, "0102030405060708")
	payload := seqBytes(15)

	base, err := Checksum(key, nonce, payload)
	if err != nil {
		t.Fatalf("Checksum failed: %v", err)
	}

	for i := range payload {
		modified := append([]byte(nil), payload...)
		modified[i] ^= 0x01

		got, err := Checksum(key, nonce, modified)
		if err != nil {
			t.Fatalf("Checksum failed: %v", err)
		}
		if bytes.Equal(got, base) {
			t.Errorf("flipping payload byte %d did not change the checksum", i)
		}
	}
}

func TestChecksumCoversLength(t *testing.T) {
	key := seqBytes(16)
	nonce := mustHex(t, "0102030405060708")

	// Trailing zeros are indistinguishable after padding; only the length
	// byte in the first block separates these.
	a, _ := Checksum(key, nonce, []byte{0x01})
	b, _ := Checksum(key, nonce, []byte{0x01, 0x00})
	if bytes.Equal(a, b) {
		t.Error("payloads of different length produced the same checksum")
	}
}

func TestChecksumInvalidKey(t *testing.T) {
	if _, err := Checksum(make([]byte, 8), nil, nil); err != ErrInvalidKeyLength {
		t.Errorf("got %v, want ErrInvalidKeyLength", err)
	}
}

func TestChecksumInvalidNonce(t *testing.T) {
	key := make([]byte, KeySize)
	for _, n := range []int{0, 7, 9, 16} {
		if _, err := Checksum(key, make([]byte, n), []byte{1}); err != ErrInvalidNonceLength {
			t.Errorf("nonce of %d bytes: got %v, want ErrInvalidNonceLength", n, err)
		}
	}
}
