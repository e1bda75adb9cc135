package crypto

// CryptPayload encrypts or decrypts data with the mesh keystream.
//
// The counter block is 0x00 || nonce, zero-padded to 16 bytes. Each 16-byte
// chunk of data is XORed with Encrypt(key, counter) and then only the first
// byte of the counter is incremented, wrapping at 256 without carry.
//
// The output has the same length as data. Applying CryptPayload twice with
// the same key and nonce returns the original bytes. The nonce must be
// NonceSize bytes.
func CryptPayload(key, nonce, data []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeyLength
	}
	if len(nonce) != NonceSize {
		return nil, ErrInvalidNonceLength
	}

	var base [BlockSize]byte
	copy(base[1:], nonce)

	out := make([]byte, len(data))
	for i := 0; i < len(data); i += BlockSize {
		keystream, err := Encrypt(key, base[:])
		if err != nil {
			return nil, err
		}

		end := i + BlockSize
		if end > len(data) {
			end = len(data)
		}
		xorBlock(out[i:end], data[i:end], keystream)

		base[0]++
	}

	return out, nil
}
