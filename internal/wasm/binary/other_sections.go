package binary

import (
	"bytes"
	"fmt"

	"github.com/wazerow/wazerow/internal/wasm"
)

func decodeFunctionSection(r *bytes.Reader) ([]uint32, error) {
	count, err := readUint32(r)
	if err != nil {
		return nil, fmt.Errorf("read function count: %w", err)
	}
	out := make([]uint32, count)
	for i := range out {
		out[i], err = readUint32(r)
		if err != nil {
			return nil, fmt.Errorf("function[%d] type index: %w", i, err)
		}
	}
	return out, nil
}

func decodeTableSection(r *bytes.Reader) ([]*wasm.Table, error) {
	count, err := readUint32(r)
	if err != nil {
		return nil, fmt.Errorf("read table count: %w", err)
	}
	out := make([]*wasm.Table, count)
	for i := range out {
		out[i], err = decodeTableType(r)
		if err != nil {
			return nil, fmt.Errorf("table[%d]: %w", i, err)
		}
	}
	return out, nil
}

func decodeMemorySection(r *bytes.Reader) ([]*wasm.Memory, error) {
	count, err := readUint32(r)
	if err != nil {
		return nil, fmt.Errorf("read memory count: %w", err)
	}
	out := make([]*wasm.Memory, count)
	for i := range out {
		out[i], err = decodeMemoryType(r)
		if err != nil {
			return nil, fmt.Errorf("memory[%d]: %w", i, err)
		}
	}
	return out, nil
}

func decodeGlobalSection(r *bytes.Reader) ([]*wasm.Global, error) {
	count, err := readUint32(r)
	if err != nil {
		return nil, fmt.Errorf("read global count: %w", err)
	}
	out := make([]*wasm.Global, count)
	for i := range out {
		gt, err := decodeGlobalType(r)
		if err != nil {
			return nil, fmt.Errorf("global[%d] type: %w", i, err)
		}
		init, err := decodeConstantExpression(r)
		if err != nil {
			return nil, fmt.Errorf("global[%d] init: %w", i, err)
		}
		out[i] = &wasm.Global{Type: *gt, Init: init}
	}
	return out, nil
}

func decodeTagSection(r *bytes.Reader, types []*wasm.TypeDefinition) ([]*wasm.Tag, error) {
	count, err := readUint32(r)
	if err != nil {
		return nil, fmt.Errorf("read tag count: %w", err)
	}
	out := make([]*wasm.Tag, count)
	for i := range out {
		if _, err := r.ReadByte(); err != nil { // attribute byte, reserved as 0
			return nil, err
		}
		typeIdx, err := readUint32(r)
		if err != nil {
			return nil, fmt.Errorf("tag[%d] type index: %w", i, err)
		}
		if int(typeIdx) >= len(types) {
			return nil, fmt.Errorf("tag[%d]: type index %d out of range", i, typeIdx)
		}
		out[i] = &wasm.Tag{Type: types[typeIdx].FunctionType}
	}
	return out, nil
}

func decodeStartSection(r *bytes.Reader) (*uint32, error) {
	idx, err := readUint32(r)
	if err != nil {
		return nil, fmt.Errorf("read start index: %w", err)
	}
	return &idx, nil
}

func decodeDataCountSection(r *bytes.Reader) (*uint32, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, fmt.Errorf("read data count: %w", err)
	}
	return &n, nil
}

func encodeGlobal(g *wasm.Global) []byte {
	b := []byte{g.Type.ValType}
	if g.Type.Mutable {
		b = append(b, 1)
	} else {
		b = append(b, 0)
	}
	return append(b, encodeConstantExpression(g.Init)...)
}
