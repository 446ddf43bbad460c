package ftp

import "hash/crc32"

// Checksum computes the CRC-32 variant used by MAVLink FTP's CalcFileCRC32:
// the IEEE polynomial with a zero initial value and no final inversion.
// Note this differs from hash/crc32.ChecksumIEEE, which seeds and inverts.
func Checksum(data []byte) uint32 {
	var crc uint32
	for _, b := range data {
		crc = crc32.IEEETable[byte(crc)^b] ^ (crc >> 8)
	}
	return crc
}
