package prompt

import (
	"encoding/binary"
	"fmt"
	"iter"
)

// Record layout:
//
//	+------+----------+--------------+-------------------+--------------+
//	| type | reserved | payload_size | opaque (12 bytes) | opus payload |
//	| (1B) | (1B)     | (2B, BE)     |                   |              |
//	+------+----------+--------------+-------------------+--------------+
//
// The header is 16 bytes; only the type byte and the big-endian payload
// size at offset 2 are interpreted here.
const (
	// HeaderSize is the fixed record header size in bytes.
	HeaderSize = 16

	sizeOffset = 2
)

// Record is one framed opus packet from a prompt blob. Payload aliases
// the input buffer; clone it before mutating or retaining past the
// buffer's lifetime.
type Record struct {
	Type    byte
	Payload []byte
}

// Records iterates over the records in buf, in order. Iteration stops
// at the end of the buffer, or with a non-nil error on a truncated
// header or payload.
func Records(buf []byte) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for off := 0; off < len(buf); {
			if len(buf)-off < HeaderSize {
				yield(Record{}, fmt.Errorf("prompt: truncated header at offset %d", off))
				return
			}
			size := int(binary.BigEndian.Uint16(buf[off+sizeOffset:]))
			if len(buf)-off-HeaderSize < size {
				yield(Record{}, fmt.Errorf("prompt: truncated payload at offset %d: need %d bytes", off, size))
				return
			}
			rec := Record{
				Type:    buf[off],
				Payload: buf[off+HeaderSize : off+HeaderSize+size],
			}
			off += HeaderSize + size
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// Append appends one framed record to dst and returns the result.
// Payloads longer than 65535 bytes cannot be framed and panic.
func Append(dst []byte, typ byte, payload []byte) []byte {
	if len(payload) > 0xFFFF {
		panic("prompt: payload too large")
	}
	var header [HeaderSize]byte
	header[0] = typ
	binary.BigEndian.PutUint16(header[sizeOffset:], uint16(len(payload)))
	dst = append(dst, header[:]...)
	return append(dst, payload...)
}
