// Package leb128 implements the variable-length integer encoding used
// throughout the WebAssembly binary format.
//
// See https://webassembly.github.io/spec/core/binary/values.html#integers
package leb128

import (
	"errors"
	"io"
)

// ErrOverflow32 is returned when a decoded value overflows 32 bits.
var ErrOverflow32 = errors.New("leb128: overflows 32-bit integer")

// ErrOverflow33 is returned when a decoded signed value overflows 33 bits
// (used for block-type immediates which are encoded as signed 33-bit values).
var ErrOverflow33 = errors.New("leb128: overflows 33-bit integer")

// ErrOverflow64 is returned when a decoded value overflows 64 bits.
var ErrOverflow64 = errors.New("leb128: overflows 64-bit integer")

// DecodeUint32 decodes an unsigned 32-bit LEB128 value from r, returning the
// value and the number of bytes read.
func DecodeUint32(r io.ByteReader) (uint32, uint64, error) {
	v, n, err := decodeUvarint(r, 32)
	return uint32(v), n, err
}

// DecodeUint64 decodes an unsigned 64-bit LEB128 value from r.
func DecodeUint64(r io.ByteReader) (uint64, uint64, error) {
	return decodeUvarint(r, 64)
}

// decodeUvarint reads an unsigned LEB128 integer up to maxBits wide.
// An overlong encoding that would require a shift past maxBits in a
// non-terminal byte, or whose final byte has bits set beyond maxBits, is
// rejected per the decoder's MalformedBinary contract.
func decodeUvarint(r io.ByteReader, maxBits int) (result uint64, bytesRead uint64, err error) {
	var shift int
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, bytesRead, err
		}
		bytesRead++

		hasNext := b&0x80 != 0
		payload := uint64(b & 0x7f)

		if shift >= maxBits {
			// Every remaining bit of this overlong byte must be zero (or the
			// sign-continuation bit for signed types, handled by callers).
			if payload != 0 {
				return 0, bytesRead, overflowErr(maxBits)
			}
		} else if shift+7 > maxBits {
			// Last meaningful byte: high bits beyond maxBits must be zero.
			if payload>>(maxBits-shift) != 0 {
				return 0, bytesRead, overflowErr(maxBits)
			}
			result |= payload << shift
		} else {
			result |= payload << shift
		}

		if !hasNext {
			return result, bytesRead, nil
		}
		shift += 7
		if shift > maxBits+7 {
			return 0, bytesRead, overflowErr(maxBits)
		}
	}
}

func overflowErr(maxBits int) error {
	switch maxBits {
	case 32:
		return ErrOverflow32
	case 33:
		return ErrOverflow33
	default:
		return ErrOverflow64
	}
}

// DecodeInt32 decodes a signed 32-bit LEB128 value.
func DecodeInt32(r io.ByteReader) (int32, uint64, error) {
	v, n, err := decodeVarint(r, 32)
	return int32(v), n, err
}

// DecodeInt33AsInt64 decodes a signed 33-bit LEB128 value (used for block
// type immediates, which distinguish "empty" from a type-index encoding by
// using one extra sign bit) sign-extended into an int64.
func DecodeInt33AsInt64(r io.ByteReader) (int64, uint64, error) {
	return decodeVarint(r, 33)
}

// DecodeInt64 decodes a signed 64-bit LEB128 value.
func DecodeInt64(r io.ByteReader) (int64, uint64, error) {
	return decodeVarint(r, 64)
}

func decodeVarint(r io.ByteReader, maxBits int) (result int64, bytesRead uint64, err error) {
	var shift int
	var b byte
	for {
		b, err = r.ReadByte()
		if err != nil {
			return 0, bytesRead, err
		}
		bytesRead++

		payload := int64(b & 0x7f)
		if shift < maxBits {
			result |= payload << shift
		} else if payload != 0 && payload != 0x7f {
			// Overlong byte whose bits disagree with the sign sentinel.
			return 0, bytesRead, overflowErr(maxBits)
		}
		shift += 7

		if b&0x80 == 0 {
			break
		}
		if shift > maxBits+7 {
			return 0, bytesRead, overflowErr(maxBits)
		}
	}

	// Sign extend if the sign bit of the last byte read is set and we
	// haven't filled the full width.
	if shift < 64 && (b&0x40) != 0 {
		result |= -1 << shift
	}
	return result, bytesRead, nil
}

// EncodeUint32 encodes v as an unsigned LEB128 byte sequence.
func EncodeUint32(v uint32) []byte {
	return EncodeUint64(uint64(v))
}

// EncodeUint64 encodes v as an unsigned LEB128 byte sequence.
func EncodeUint64(v uint64) []byte {
	out := make([]byte, 0, 10)
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
		} else {
			out = append(out, b)
			return out
		}
	}
}

// EncodeInt32 encodes v as a signed LEB128 byte sequence.
func EncodeInt32(v int32) []byte {
	return EncodeInt64(int64(v))
}

// EncodeInt64 encodes v as a signed LEB128 byte sequence.
func EncodeInt64(v int64) []byte {
	out := make([]byte, 0, 10)
	for {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			out = append(out, b)
			return out
		}
		out = append(out, b|0x80)
	}
}
