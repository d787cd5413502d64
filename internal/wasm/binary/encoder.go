package binary

import (
	"github.com/wazerow/wazerow/internal/wasm"
)

// EncodeModule serializes m back into a WebAssembly binary, the inverse of
// DecodeModule. Round-tripping DecodeModule(EncodeModule(m)) is expected to
// produce a semantically equivalent module, per spec.md §8, though byte
// identity with a hand-authored binary isn't guaranteed (e.g. name-section
// subsection ordering, local-run collapsing).
func EncodeModule(m *wasm.Module) []byte {
	out := append([]byte{}, Magic...)
	out = append(out, Version...)

	if len(m.TypeSection) > 0 {
		out = append(out, encodeSection(byte(wasm.SectionIDType), encodeTypeSection(m.TypeSection))...)
	}
	if len(m.ImportSection) > 0 {
		out = append(out, encodeSection(byte(wasm.SectionIDImport), encodeImportSection(m.ImportSection))...)
	}
	if len(m.FunctionSection) > 0 {
		out = append(out, encodeSection(byte(wasm.SectionIDFunction), encodeFunctionSection(m.FunctionSection))...)
	}
	if len(m.TableSection) > 0 {
		out = append(out, encodeSection(byte(wasm.SectionIDTable), encodeTableSection(m.TableSection))...)
	}
	if len(m.MemorySection) > 0 {
		out = append(out, encodeSection(byte(wasm.SectionIDMemory), encodeMemorySection(m.MemorySection))...)
	}
	if len(m.TagSection) > 0 {
		out = append(out, encodeSection(byte(wasm.SectionIDTag), encodeTagSection(m.TagSection, m.TypeSection))...)
	}
	if len(m.GlobalSection) > 0 {
		out = append(out, encodeSection(byte(wasm.SectionIDGlobal), encodeGlobalSection(m.GlobalSection))...)
	}
	if len(m.ExportSection) > 0 {
		out = append(out, encodeSection(byte(wasm.SectionIDExport), encodeExportSection(m.ExportSection))...)
	}
	if m.StartSection != nil {
		out = append(out, encodeSection(byte(wasm.SectionIDStart), encodeVarUint32Len(int(*m.StartSection)))...)
	}
	if len(m.ElementSection) > 0 {
		out = append(out, encodeSection(byte(wasm.SectionIDElement), encodeElementSection(m.ElementSection))...)
	}
	if m.DataCountSection != nil {
		out = append(out, encodeSection(byte(wasm.SectionIDDataCount), encodeVarUint32Len(int(*m.DataCountSection)))...)
	}
	if len(m.CodeSection) > 0 {
		out = append(out, encodeSection(byte(wasm.SectionIDCode), encodeCodeSection(m.CodeSection))...)
	}
	if len(m.DataSection) > 0 {
		out = append(out, encodeSection(byte(wasm.SectionIDData), encodeDataSection(m.DataSection))...)
	}
	if m.NameSection != nil {
		out = append(out, encodeSection(0, encodeNameCustomSection(m.NameSection))...)
	}
	for _, cs := range m.CustomSections {
		out = append(out, encodeSection(0, encodeCustomSection(cs))...)
	}
	return out
}

func encodeSection(id byte, body []byte) []byte {
	out := []byte{id}
	out = append(out, encodeVarUint32Len(len(body))...)
	return append(out, body...)
}

func encodeTypeSection(defs []*wasm.TypeDefinition) []byte {
	b := encodeVarUint32Len(len(defs))
	for _, td := range defs {
		// recursive groups are re-flattened as independent single-member
		// groups; a round-tripped module loses group structure but keeps
		// equivalent supertype relationships.
		if td.Kind == wasm.CompositeTypeKindFunction {
			if td.SuperType < 0 && td.Final {
				b = append(b, encodeFunctionType(td.FunctionType)...)
				continue
			}
		}
		b = append(b, encodeSubtype(td)...)
	}
	return b
}

func encodeSubtype(td *wasm.TypeDefinition) []byte {
	var b []byte
	if td.Final {
		b = append(b, typeKindSubFinal)
	} else {
		b = append(b, typeKindSub)
	}
	if td.SuperType >= 0 {
		b = append(b, encodeVarUint32Len(1)...)
		b = append(b, encodeVarUint32Len(int(td.SuperType))...)
	} else {
		b = append(b, encodeVarUint32Len(0)...)
	}
	switch td.Kind {
	case wasm.CompositeTypeKindFunction:
		b = append(b, encodeFunctionType(td.FunctionType)...)
	case wasm.CompositeTypeKindStruct:
		b = append(b, typeKindStruct)
		b = append(b, encodeVarUint32Len(len(td.StructType.Fields))...)
		for _, f := range td.StructType.Fields {
			b = append(b, encodeFieldType(f)...)
		}
	case wasm.CompositeTypeKindArray:
		b = append(b, typeKindArray)
		b = append(b, encodeFieldType(td.ArrayType.Element)...)
	}
	return b
}

func encodeFieldType(f wasm.FieldType) []byte {
	var b []byte
	switch f.Kind {
	case wasm.StorageKindI8:
		b = append(b, 0x78)
	case wasm.StorageKindI16:
		b = append(b, 0x77)
	default:
		b = append(b, f.ValueType)
	}
	if f.Mutable {
		b = append(b, 1)
	} else {
		b = append(b, 0)
	}
	return b
}

func encodeImportSection(imports []*wasm.Import) []byte {
	b := encodeVarUint32Len(len(imports))
	for _, imp := range imports {
		b = append(b, encodeImport(imp)...)
	}
	return b
}

func encodeFunctionSection(idxs []uint32) []byte {
	b := encodeVarUint32Len(len(idxs))
	for _, i := range idxs {
		b = append(b, encodeVarUint32Len(int(i))...)
	}
	return b
}

func encodeTableSection(tables []*wasm.Table) []byte {
	b := encodeVarUint32Len(len(tables))
	for _, t := range tables {
		b = append(b, t.Type)
		if t.Max != nil {
			b = append(b, encodeLimits(t.Min, *t.Max, true, false)...)
		} else {
			b = append(b, encodeLimits(t.Min, 0, false, false)...)
		}
	}
	return b
}

func encodeMemorySection(mems []*wasm.Memory) []byte {
	b := encodeVarUint32Len(len(mems))
	for _, m := range mems {
		b = append(b, encodeLimits(m.Min, m.Max, m.IsMaxEncoded, m.Shared)...)
	}
	return b
}

func encodeTagSection(tags []*wasm.Tag, types []*wasm.TypeDefinition) []byte {
	b := encodeVarUint32Len(len(tags))
	for _, tag := range tags {
		b = append(b, 0) // attribute, reserved
		idx := indexOfFunctionType(types, tag.Type)
		b = append(b, encodeVarUint32Len(idx)...)
	}
	return b
}

func indexOfFunctionType(types []*wasm.TypeDefinition, ft *wasm.FunctionType) int {
	for i, td := range types {
		if td.FunctionType == ft {
			return i
		}
	}
	return 0
}

func encodeGlobalSection(globals []*wasm.Global) []byte {
	b := encodeVarUint32Len(len(globals))
	for _, g := range globals {
		b = append(b, encodeGlobal(g)...)
	}
	return b
}

func encodeExportSection(exports []*wasm.Export) []byte {
	b := encodeVarUint32Len(len(exports))
	for _, e := range exports {
		b = append(b, encodeExport(e)...)
	}
	return b
}

func encodeElementSection(segs []*wasm.ElementSegment) []byte {
	b := encodeVarUint32Len(len(segs))
	for _, seg := range segs {
		b = append(b, encodeElementSegment(seg)...)
	}
	return b
}

// encodeElementSegment picks one of the eight legal flag values (0-7)
// matching the segment's mode and representation: Init (plain function
// indices) uses the elemkind family 0-3, InitExprs uses the expression
// family 4-7. Flags 0 and 4 (active, implicit table 0) omit the
// elemkind/reftype byte the others carry.
func encodeElementSegment(seg *wasm.ElementSegment) []byte {
	useExprForm := len(seg.InitExprs) > 0
	explicitTable := seg.TableIndex != 0

	var flag uint32
	switch seg.Mode {
	case wasm.ElementModeActive:
		switch {
		case explicitTable && useExprForm:
			flag = 6
		case explicitTable:
			flag = 2
		case useExprForm:
			flag = 4
		default:
			flag = 0
		}
	case wasm.ElementModePassive:
		if useExprForm {
			flag = 5
		} else {
			flag = 1
		}
	case wasm.ElementModeDeclarative:
		if useExprForm {
			flag = 7
		} else {
			flag = 3
		}
	}

	b := encodeVarUint32Len(int(flag))
	if seg.Mode == wasm.ElementModeActive {
		if explicitTable {
			b = append(b, encodeVarUint32Len(int(seg.TableIndex))...)
		}
		b = append(b, encodeConstantExpression(seg.OffsetExpr)...)
	}
	switch flag {
	case 0, 4:
		// elemkind/reftype implied (funcref), nothing to write
	default:
		if useExprForm {
			b = append(b, seg.Type)
		} else {
			b = append(b, 0x00) // elemkind: funcref, the only legal value
		}
	}

	if useExprForm {
		b = append(b, encodeVarUint32Len(len(seg.InitExprs))...)
		for _, e := range seg.InitExprs {
			b = append(b, encodeConstantExpression(e)...)
		}
	} else {
		b = append(b, encodeVarUint32Len(len(seg.Init))...)
		for _, idx := range seg.Init {
			b = append(b, encodeVarUint32Len(int(idx))...)
		}
	}
	return b
}

func encodeDataSection(segs []*wasm.DataSegment) []byte {
	b := encodeVarUint32Len(len(segs))
	for _, seg := range segs {
		b = append(b, encodeDataSegment(seg)...)
	}
	return b
}

func encodeDataSegment(seg *wasm.DataSegment) []byte {
	var b []byte
	switch seg.Mode {
	case wasm.DataModeActive:
		if seg.MemoryIndex != 0 {
			b = encodeVarUint32Len(2)
			b = append(b, encodeVarUint32Len(int(seg.MemoryIndex))...)
		} else {
			b = encodeVarUint32Len(0)
		}
		b = append(b, encodeConstantExpression(seg.OffsetExpr)...)
	case wasm.DataModePassive:
		b = encodeVarUint32Len(1)
	}
	b = append(b, encodeVarUint32Len(len(seg.Init))...)
	return append(b, seg.Init...)
}

func encodeCodeSection(codes []*wasm.Code) []byte {
	b := encodeVarUint32Len(len(codes))
	for _, c := range codes {
		b = append(b, encodeCode(c)...)
	}
	return b
}

func encodeNameCustomSection(ns *wasm.NameSection) []byte {
	b := encodeName("name")
	if ns.ModuleName != "" {
		sub := encodeName(ns.ModuleName)
		b = append(b, nameSubsectionModule)
		b = append(b, encodeVarUint32Len(len(sub))...)
		b = append(b, sub...)
	}
	if len(ns.FunctionNames) > 0 {
		sub := encodeNameMap(ns.FunctionNames)
		b = append(b, nameSubsectionFunction)
		b = append(b, encodeVarUint32Len(len(sub))...)
		b = append(b, sub...)
	}
	return b
}

func encodeNameMap(m map[uint32]string) []byte {
	b := encodeVarUint32Len(len(m))
	for idx, name := range m {
		b = append(b, encodeVarUint32Len(int(idx))...)
		b = append(b, encodeName(name)...)
	}
	return b
}
