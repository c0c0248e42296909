// Package leb128 implements DWARF-style variable-length integer encoding.
//
// Every length-like field in the journal, snapshot-cache data file, and wire
// protocol uses LEB128, except the fixed-width snapshot-cache index entries
// (see internal/snapcache). Mim messages write their numbers in ASCII
// decimal instead (see internal/mim).
package leb128

import (
	"errors"
	"fmt"
	"io"
)

// ErrOverflow is returned when a decoded value would not fit in the target width.
var ErrOverflow = errors.New("leb128: value overflows target width")

// ErrTruncated is returned when the input ends before a complete encoding is read.
var ErrTruncated = errors.New("leb128: truncated input")

// MaxLength is the largest number of bytes a 64-bit value can encode to.
const MaxLength = 10

// AppendUvarint appends the unsigned LEB128 encoding of v to dst and returns the result.
func AppendUvarint(dst []byte, v uint64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7

		if v != 0 {
			dst = append(dst, b|0x80)

			continue
		}

		return append(dst, b)
	}
}

// AppendVarint appends the signed LEB128 encoding of v to dst and returns the result.
func AppendVarint(dst []byte, v int64) []byte {
	more := true

	for more {
		b := byte(v & 0x7f)
		v >>= 7

		signBitSet := b&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			more = false
		} else {
			b |= 0x80
		}

		dst = append(dst, b)
	}

	return dst
}

// Uvarint decodes an unsigned LEB128 value from buf.
// It returns the value and the number of bytes consumed, or an error.
func Uvarint(buf []byte) (uint64, int, error) {
	var (
		result uint64
		shift  uint
	)

	for i, b := range buf {
		if i >= MaxLength {
			return 0, 0, ErrOverflow
		}

		result |= uint64(b&0x7f) << shift

		if b&0x80 == 0 {
			return result, i + 1, nil
		}

		shift += 7
	}

	return 0, 0, ErrTruncated
}

// Varint decodes a signed LEB128 value from buf.
// It returns the value and the number of bytes consumed, or an error.
func Varint(buf []byte) (int64, int, error) {
	var (
		result int64
		shift  uint
	)

	for i, b := range buf {
		if i >= MaxLength {
			return 0, 0, ErrOverflow
		}

		result |= int64(b&0x7f) << shift
		shift += 7

		if b&0x80 == 0 {
			if shift < 64 && b&0x40 != 0 {
				result |= -1 << shift
			}

			return result, i + 1, nil
		}
	}

	return 0, 0, ErrTruncated
}

// ReadUvarint reads an unsigned LEB128 value one byte at a time from r.
func ReadUvarint(r io.ByteReader) (uint64, error) {
	var (
		result uint64
		shift  uint
	)

	for i := 0; ; i++ {
		if i >= MaxLength {
			return 0, ErrOverflow
		}

		b, err := r.ReadByte()
		if err != nil {
			return 0, fmt.Errorf("leb128: read uvarint: %w", err)
		}

		result |= uint64(b&0x7f) << shift

		if b&0x80 == 0 {
			return result, nil
		}

		shift += 7
	}
}

// ReadVarint reads a signed LEB128 value one byte at a time from r.
func ReadVarint(r io.ByteReader) (int64, error) {
	var (
		result int64
		shift  uint
	)

	for i := 0; ; i++ {
		if i >= MaxLength {
			return 0, ErrOverflow
		}

		b, err := r.ReadByte()
		if err != nil {
			return 0, fmt.Errorf("leb128: read varint: %w", err)
		}

		result |= int64(b&0x7f) << shift
		shift += 7

		if b&0x80 == 0 {
			if shift < 64 && b&0x40 != 0 {
				result |= -1 << shift
			}

			return result, nil
		}
	}
}
