package binary

import (
	"bytes"
	"fmt"

	"github.com/wazerow/wazerow/internal/wasm"
)

const (
	typeKindFunc       = 0x60
	typeKindStruct     = 0x5f
	typeKindArray      = 0x5e
	typeKindSub        = 0x50
	typeKindSubFinal   = 0x4f
	typeKindRecursive  = 0x4e
)

func decodeTypeSection(r *bytes.Reader) ([]*wasm.TypeDefinition, error) {
	count, err := readUint32(r)
	if err != nil {
		return nil, fmt.Errorf("read type count: %w", err)
	}
	defs := make([]*wasm.TypeDefinition, 0, count)
	for i := uint32(0); i < count; i++ {
		group, err := decodeTypeGroup(r)
		if err != nil {
			return nil, fmt.Errorf("type[%d]: %w", i, err)
		}
		defs = append(defs, group...)
	}
	return defs, nil
}

// decodeTypeGroup decodes one type-section entry, which may itself be a
// `rec` group of several mutually-recursive composite types (GC proposal).
func decodeTypeGroup(r *bytes.Reader) ([]*wasm.TypeDefinition, error) {
	b, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if b == typeKindRecursive {
		n, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		group := make([]*wasm.TypeDefinition, n)
		for i := uint32(0); i < n; i++ {
			td, err := decodeSubtype(r)
			if err != nil {
				return nil, err
			}
			td.RecursiveGroupSize = n
			td.RecursiveGroupIndex = i
			group[i] = td
		}
		return group, nil
	}
	if err := r.UnreadByte(); err != nil {
		return nil, err
	}
	td, err := decodeSubtype(r)
	if err != nil {
		return nil, err
	}
	td.RecursiveGroupSize = 1
	return []*wasm.TypeDefinition{td}, nil
}

func decodeSubtype(r *bytes.Reader) (*wasm.TypeDefinition, error) {
	b, err := r.ReadByte()
	if err != nil {
		return nil, err
	}

	td := &wasm.TypeDefinition{SuperType: -1}

	if b == typeKindSub || b == typeKindSubFinal {
		td.Final = b == typeKindSubFinal
		n, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			super, err := readUint32(r)
			if err != nil {
				return nil, err
			}
			td.SuperType = int32(super)
			for i := uint32(1); i < n; i++ { // wazerow supports single inheritance; skip any extra listed supertypes
				if _, err := readUint32(r); err != nil {
					return nil, err
				}
			}
		}
		b, err = r.ReadByte()
		if err != nil {
			return nil, err
		}
	} else {
		td.Final = true
	}

	switch b {
	case typeKindFunc:
		ft, err := decodeFunctionType(r)
		if err != nil {
			return nil, err
		}
		td.Kind = wasm.CompositeTypeKindFunction
		td.FunctionType = ft
	case typeKindStruct:
		st, err := decodeStructType(r)
		if err != nil {
			return nil, err
		}
		td.Kind = wasm.CompositeTypeKindStruct
		td.StructType = st
	case typeKindArray:
		at, err := decodeArrayType(r)
		if err != nil {
			return nil, err
		}
		td.Kind = wasm.CompositeTypeKindArray
		td.ArrayType = at
	default:
		return nil, fmt.Errorf("invalid type form: %#x", b)
	}
	return td, nil
}

func decodeFunctionType(r *bytes.Reader) (*wasm.FunctionType, error) {
	paramCount, err := readUint32(r)
	if err != nil {
		return nil, fmt.Errorf("read param count: %w", err)
	}
	params, err := decodeValueTypes(r, paramCount)
	if err != nil {
		return nil, fmt.Errorf("read params: %w", err)
	}
	resultCount, err := readUint32(r)
	if err != nil {
		return nil, fmt.Errorf("read result count: %w", err)
	}
	results, err := decodeValueTypes(r, resultCount)
	if err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	return &wasm.FunctionType{Params: params, Results: results}, nil
}

func decodeFieldType(r *bytes.Reader) (wasm.FieldType, error) {
	b, err := r.ReadByte()
	if err != nil {
		return wasm.FieldType{}, err
	}
	var ft wasm.FieldType
	switch b {
	case 0x78:
		ft.Kind = wasm.StorageKindI8
	case 0x77:
		ft.Kind = wasm.StorageKindI16
	default:
		if err := r.UnreadByte(); err != nil {
			return wasm.FieldType{}, err
		}
		vt, err := decodeValueType(r)
		if err != nil {
			return wasm.FieldType{}, err
		}
		ft.Kind = wasm.StorageKindValueType
		ft.ValueType = vt
	}
	mut, err := r.ReadByte()
	if err != nil {
		return wasm.FieldType{}, err
	}
	ft.Mutable = mut != 0
	return ft, nil
}

func decodeStructType(r *bytes.Reader) (*wasm.StructType, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	fields := make([]wasm.FieldType, n)
	for i := range fields {
		fields[i], err = decodeFieldType(r)
		if err != nil {
			return nil, err
		}
	}
	return &wasm.StructType{Fields: fields}, nil
}

func decodeArrayType(r *bytes.Reader) (*wasm.ArrayType, error) {
	ft, err := decodeFieldType(r)
	if err != nil {
		return nil, err
	}
	return &wasm.ArrayType{Element: ft}, nil
}

func encodeFunctionType(ft *wasm.FunctionType) []byte {
	b := []byte{typeKindFunc}
	b = append(b, encodeVarUint32Len(len(ft.Params))...)
	b = append(b, encodeValueTypes(ft.Params)...)
	b = append(b, encodeVarUint32Len(len(ft.Results))...)
	b = append(b, encodeValueTypes(ft.Results)...)
	return b
}
