package mavlink

// crc16 implements the CRC-16/MCRF4XX accumulator used for MAVLink frame
// checksums (X.25 polynomial, 0xFFFF seed, no final inversion).
type crc16 uint16

func newCRC16() crc16 { return 0xFFFF }

func (c crc16) update(b byte) crc16 {
	tmp := b ^ byte(c)
	tmp ^= tmp << 4
	return (c >> 8) ^ (crc16(tmp) << 8) ^ (crc16(tmp) << 3) ^ (crc16(tmp) >> 4)
}

func (c crc16) updateBytes(buf []byte) crc16 {
	for _, b := range buf {
		c = c.update(b)
	}
	return c
}
