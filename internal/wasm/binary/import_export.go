package binary

import (
	"bytes"
	"fmt"

	"github.com/wazerow/wazerow/api"
	"github.com/wazerow/wazerow/internal/wasm"
)

func decodeImportSection(r *bytes.Reader) ([]*wasm.Import, error) {
	count, err := readUint32(r)
	if err != nil {
		return nil, fmt.Errorf("read import count: %w", err)
	}
	imports := make([]*wasm.Import, 0, count)
	for i := uint32(0); i < count; i++ {
		mod, err := readName(r)
		if err != nil {
			return nil, fmt.Errorf("import[%d] module name: %w", i, err)
		}
		name, err := readName(r)
		if err != nil {
			return nil, fmt.Errorf("import[%d] field name: %w", i, err)
		}
		kind, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("import[%d] kind: %w", i, err)
		}
		imp := &wasm.Import{Type: kind, Module: mod, Name: name}
		switch kind {
		case api.ExternTypeFunc:
			imp.DescFunc, err = readUint32(r)
		case api.ExternTypeTable:
			imp.DescTable, err = decodeTableType(r)
		case api.ExternTypeMemory:
			imp.DescMem, err = decodeMemoryType(r)
		case api.ExternTypeGlobal:
			imp.DescGlobal, err = decodeGlobalType(r)
		case api.ExternTypeTag:
			var attr byte
			if attr, err = r.ReadByte(); err == nil {
				_ = attr // reserved, always 0 (exception tag) in the current proposal
				var typeIdx uint32
				typeIdx, err = readUint32(r)
				imp.DescTag = &wasm.Tag{Type: &wasm.FunctionType{}} // resolved to TypeSection[typeIdx] by the caller
				imp.DescFunc = typeIdx
			}
		default:
			return nil, fmt.Errorf("import[%d]: invalid kind %#x", i, kind)
		}
		if err != nil {
			return nil, fmt.Errorf("import[%d] desc: %w", i, err)
		}
		imports = append(imports, imp)
	}
	return imports, nil
}

func decodeGlobalType(r *bytes.Reader) (*wasm.GlobalType, error) {
	vt, err := decodeValueType(r)
	if err != nil {
		return nil, err
	}
	mut, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	return &wasm.GlobalType{ValType: vt, Mutable: mut != 0}, nil
}

func decodeExportSection(r *bytes.Reader) ([]*wasm.Export, error) {
	count, err := readUint32(r)
	if err != nil {
		return nil, fmt.Errorf("read export count: %w", err)
	}
	exports := make([]*wasm.Export, 0, count)
	for i := uint32(0); i < count; i++ {
		name, err := readName(r)
		if err != nil {
			return nil, fmt.Errorf("export[%d] name: %w", i, err)
		}
		kind, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("export[%d] kind: %w", i, err)
		}
		idx, err := readUint32(r)
		if err != nil {
			return nil, fmt.Errorf("export[%d] index: %w", i, err)
		}
		exports = append(exports, &wasm.Export{Type: kind, Name: name, Index: idx})
	}
	return exports, nil
}

func encodeImport(imp *wasm.Import) []byte {
	b := encodeName(imp.Module)
	b = append(b, encodeName(imp.Name)...)
	b = append(b, imp.Type)
	switch imp.Type {
	case api.ExternTypeFunc:
		b = append(b, encodeVarUint32Len(int(imp.DescFunc))...)
	case api.ExternTypeTable:
		b = append(b, imp.DescTable.Type)
		if imp.DescTable.Max != nil {
			b = append(b, encodeLimits(imp.DescTable.Min, *imp.DescTable.Max, true, false)...)
		} else {
			b = append(b, encodeLimits(imp.DescTable.Min, 0, false, false)...)
		}
	case api.ExternTypeMemory:
		b = append(b, encodeLimits(imp.DescMem.Min, imp.DescMem.Max, imp.DescMem.IsMaxEncoded, imp.DescMem.Shared)...)
	case api.ExternTypeGlobal:
		b = append(b, imp.DescGlobal.ValType)
		if imp.DescGlobal.Mutable {
			b = append(b, 1)
		} else {
			b = append(b, 0)
		}
	case api.ExternTypeTag:
		b = append(b, 0) // attribute, reserved
		b = append(b, encodeVarUint32Len(int(imp.DescFunc))...)
	}
	return b
}

func encodeExport(e *wasm.Export) []byte {
	b := encodeName(e.Name)
	b = append(b, e.Type)
	b = append(b, encodeVarUint32Len(int(e.Index))...)
	return b
}
