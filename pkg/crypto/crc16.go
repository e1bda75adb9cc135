package crypto

// crc16Table holds the two possible feedback terms of the reflected
// polynomial 0x8005.
var crc16Table = [2]uint16{0x0000, 0xA001}

// CRC16 computes the reflected CRC-16 (polynomial 0xA001, initial value
// 0xFFFF) used by some device commands. Bits are consumed LSB first.
//
// It is independent of the MIC and keystream path.
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		for j := 0; j < 8; j++ {
			crc = (crc >> 1) ^ crc16Table[(crc^uint16(b))&1]
			b >>= 1
		}
	}
	return crc
}
