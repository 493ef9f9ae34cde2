// SPDX-License-Identifier: GPL-3.0-or-later

// Package cmp implements the length-framed record codec used to carry
// messages across a cluster IPC pipe (or any other byte stream that needs
// reliable message boundaries). A stream of arbitrary size is split into
// fixed-size fragments by [Encoder.Push] and reassembled by repeated calls
// to [Decoder.Push]; the decoder never hands back a partial record.
package cmp

import "encoding/binary"

// HeaderSize is the fixed size, in bytes, of every fragment header.
const HeaderSize = 16

// magic identifies a well-formed header. Any fragment whose first two
// bytes don't match this value is treated as stream corruption.
const magic = uint16(0xAC4D)

// DefaultChunkSize is the fragmentation threshold used when a caller does
// not request a specific one.
const DefaultChunkSize = 64 * 1024

// MinChunkSize is the smallest chunk size either side will honor; anything
// smaller is rounded up so a header always fits alongside at least one
// byte of payload.
const MinChunkSize = 1024

// mode tags whether a fragment is the last one for its message.
type mode uint8

const (
	modeContinue mode = iota
	modeEnd
)

// header is the on-wire fragment header: crc (2) id (4) mode (1) mid (1)
// bytes (2) pid (4) reserved (2), little-endian, 16 bytes total.
type header struct {
	id    uint32
	mode  mode
	mid   uint8
	bytes uint16
	pid   uint32
}

func putHeader(dst []byte, h header) {
	_ = dst[HeaderSize-1]
	binary.LittleEndian.PutUint16(dst[0:2], magic)
	binary.LittleEndian.PutUint32(dst[2:6], h.id)
	dst[6] = byte(h.mode)
	dst[7] = h.mid
	binary.LittleEndian.PutUint16(dst[8:10], h.bytes)
	binary.LittleEndian.PutUint32(dst[10:14], h.pid)
	dst[14] = 0
	dst[15] = 0
}

// getHeader decodes a HeaderSize-byte slice. ok is false when the magic
// does not match, which the caller treats as stream corruption.
func getHeader(src []byte) (h header, ok bool) {
	if binary.LittleEndian.Uint16(src[0:2]) != magic {
		return header{}, false
	}
	h.id = binary.LittleEndian.Uint32(src[2:6])
	h.mode = mode(src[6])
	h.mid = src[7]
	h.bytes = binary.LittleEndian.Uint16(src[8:10])
	h.pid = binary.LittleEndian.Uint32(src[10:14])
	return h, true
}

func chunkOrDefault(chunkSize int) int {
	if chunkSize < MinChunkSize {
		return DefaultChunkSize
	}
	return chunkSize
}
