package crypto

// Checksum computes the message integrity check over nonce and payload.
//
// The construction is a CBC-MAC: the first block is nonce || len(payload)
// zero-padded to 16 bytes, then every 16-byte chunk of payload (the last one
// zero-padded) is XORed into the running value and encrypted again.
//
// The full 16-byte value is returned; only the first MICSize bytes travel
// on the wire. The nonce must be NonceSize bytes.
func Checksum(key, nonce, payload []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeyLength
	}
	if len(nonce) != NonceSize {
		return nil, ErrInvalidNonceLength
	}

	var base [BlockSize]byte
	copy(base[:], nonce)
	base[NonceSize] = byte(len(payload))

	check, err := Encrypt(key, base[:])
	if err != nil {
		return nil, err
	}

	var chunk [BlockSize]byte
	for i := 0; i < len(payload); i += BlockSize {
		end := i + BlockSize
		if end > len(payload) {
			end = len(payload)
		}
		xorBlock(chunk[:], check, payload[i:end])

		check, err = Encrypt(key, chunk[:])
		if err != nil {
			return nil, err
		}
	}

	return check, nil
}
