// Package wire holds the big-endian integer encodings shared by the
// tcpq and udpm framings. All integers on the wire are big-endian
// unsigned, per spec.
package wire

import "encoding/binary"

// PutUint32 appends the big-endian encoding of v to dst and returns the
// extended slice.
func PutUint32(dst []byte, v uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	return append(dst, buf[:]...)
}

// PutUint16 appends the big-endian encoding of v to dst and returns the
// extended slice.
func PutUint16(dst []byte, v uint16) []byte {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	return append(dst, buf[:]...)
}

// Uint32 decodes a big-endian uint32 from the front of b.
func Uint32(b []byte) uint32 {
	return binary.BigEndian.Uint32(b)
}

// Uint16 decodes a big-endian uint16 from the front of b.
func Uint16(b []byte) uint16 {
	return binary.BigEndian.Uint16(b)
}
