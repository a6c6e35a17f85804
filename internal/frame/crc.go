package frame

import "hash/crc32"

// CRC32 computes the IEEE CRC-32 of data, matching the 32-bit declared_crc
// field width on the wire. hash/crc32 is used rather than a third-party CRC
// package: the wire's declared_crc is a plain, unseeded CRC-32 with no
// exotic polynomial or reflection requirement the stdlib table-based
// implementation doesn't already cover, and nothing else in the module
// needs a CRC variant hash/crc32 can't produce.
func CRC32(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// VerifyPayloadCRC reports whether f.DeclaredCRC matches the CRC-32 of
// f.Payload. The codec computes this but does not enforce it itself — the
// session driver decides when the check applies (it is skipped for
// Command frames, see needsPayloadCRC in run.go).
func VerifyPayloadCRC(f Frame) bool {
	return f.DeclaredCRC == CRC32(f.Payload)
}
