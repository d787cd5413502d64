package binary

import (
	"fmt"
	"io"

	"github.com/wazerow/wazerow/api"
	"github.com/wazerow/wazerow/internal/leb128"
	"github.com/wazerow/wazerow/internal/wasm"
)

// limits flags, per the binary format's (limits) production, extended by
// the threads proposal (shared bit) and custom-page-sizes proposal (page
// size present bit).
const (
	limitsFlagHasMax    = 0x01
	limitsFlagShared    = 0x02
	limitsFlagHasPageSz = 0x08
)

func decodeLimits(r io.ByteReader) (min, max uint32, shared bool, hasMax bool, pageSize uint64, err error) {
	flag, err := r.ReadByte()
	if err != nil {
		return 0, 0, false, false, 0, fmt.Errorf("read limits flag: %w", err)
	}
	min, err = readUint32(r)
	if err != nil {
		return 0, 0, false, false, 0, fmt.Errorf("read limits min: %w", err)
	}
	hasMax = flag&limitsFlagHasMax != 0
	shared = flag&limitsFlagShared != 0
	if hasMax {
		max, err = readUint32(r)
		if err != nil {
			return 0, 0, false, false, 0, fmt.Errorf("read limits max: %w", err)
		}
	}
	pageSize = wasm.MemoryPageSize
	if flag&limitsFlagHasPageSz != 0 {
		shift, err := readUint32(r)
		if err != nil {
			return 0, 0, false, false, 0, fmt.Errorf("read page size exponent: %w", err)
		}
		pageSize = uint64(1) << shift
	}
	return
}

func decodeTableType(r io.ByteReader) (*wasm.Table, error) {
	elem, err := decodeValueType(r)
	if err != nil {
		return nil, fmt.Errorf("table element type: %w", err)
	}
	if !api.IsRefType(elem) {
		return nil, fmt.Errorf("table element type must be a reference type, got %#x", elem)
	}
	min, max, _, hasMax, _, err := decodeLimits(r)
	if err != nil {
		return nil, err
	}
	t := &wasm.Table{Type: elem, Min: min}
	if hasMax {
		t.Max = &max
	}
	return t, nil
}

func decodeMemoryType(r io.ByteReader) (*wasm.Memory, error) {
	min, max, shared, hasMax, pageSize, err := decodeLimits(r)
	if err != nil {
		return nil, err
	}
	m := &wasm.Memory{Min: min, Cap: min, Shared: shared, PageSize: pageSize}
	if hasMax {
		m.Max = max
		m.IsMaxEncoded = true
	} else {
		m.Max = wasm.MemoryLimitPages
	}
	return m, nil
}

func encodeLimits(min, max uint32, hasMax, shared bool) []byte {
	var flag byte
	if hasMax {
		flag |= limitsFlagHasMax
	}
	if shared {
		flag |= limitsFlagShared
	}
	b := []byte{flag}
	b = append(b, leb128.EncodeUint32(min)...)
	if hasMax {
		b = append(b, leb128.EncodeUint32(max)...)
	}
	return b
}
