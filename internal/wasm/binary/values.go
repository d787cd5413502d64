// Package binary implements the WebAssembly binary format: decoding a
// byte stream into *wasm.Module and encoding one back, per spec.md §4.1
// and the round-trip property in §8.
package binary

import (
	"bytes"
	"fmt"
	"io"

	"github.com/wazerow/wazerow/api"
	"github.com/wazerow/wazerow/internal/leb128"
)

// Magic is the 4-byte binary magic number, "\0asm".
var Magic = []byte{0x00, 0x61, 0x73, 0x6d}

// Version is the only binary format version wazerow understands: 1.
var Version = []byte{0x01, 0x00, 0x00, 0x00}

func decodeValueType(r io.ByteReader) (api.ValueType, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, fmt.Errorf("read value type: %w", err)
	}
	switch b {
	case api.ValueTypeI32, api.ValueTypeI64, api.ValueTypeF32, api.ValueTypeF64, api.ValueTypeV128,
		api.ValueTypeFuncref, api.ValueTypeExternref, api.ValueTypeExnref,
		api.ValueTypeAny, api.ValueTypeEq, api.ValueTypeI31, api.ValueTypeStruct, api.ValueTypeArray,
		api.ValueTypeNone, api.ValueTypeNoFunc, api.ValueTypeNoExtern:
		return b, nil
	}
	return 0, fmt.Errorf("invalid value type: %#x", b)
}

func decodeValueTypes(r io.ByteReader, count uint32) ([]api.ValueType, error) {
	if count == 0 {
		return nil, nil
	}
	types := make([]api.ValueType, count)
	for i := range types {
		vt, err := decodeValueType(r)
		if err != nil {
			return nil, err
		}
		types[i] = vt
	}
	return types, nil
}

func encodeValueTypes(types []api.ValueType) []byte {
	return append([]byte{}, types...)
}

// byteReader adapts a *bytes.Reader so callers can track position alongside
// io.ByteReader, used for BodyOffsetInCodeSection bookkeeping.
type byteReader = bytes.Reader

func readUint32(r io.ByteReader) (uint32, error) {
	v, _, err := leb128.DecodeUint32(r)
	return v, err
}

func readUint64(r io.ByteReader) (uint64, error) {
	v, _, err := leb128.DecodeUint64(r)
	return v, err
}

func readInt32(r io.ByteReader) (int32, error) {
	v, _, err := leb128.DecodeInt32(r)
	return v, err
}

func readInt64(r io.ByteReader) (int64, error) {
	v, _, err := leb128.DecodeInt64(r)
	return v, err
}

func readName(r io.ByteReader) (string, error) {
	n, err := readUint32(r)
	if err != nil {
		return "", fmt.Errorf("read name length: %w", err)
	}
	buf := make([]byte, n)
	for i := range buf {
		b, err := r.ReadByte()
		if err != nil {
			return "", fmt.Errorf("read name: %w", err)
		}
		buf[i] = b
	}
	return string(buf), nil
}

func encodeVarUint32Len(n int) []byte {
	return leb128.EncodeUint32(uint32(n))
}

func encodeName(s string) []byte {
	b := leb128.EncodeUint32(uint32(len(s)))
	return append(b, s...)
}
