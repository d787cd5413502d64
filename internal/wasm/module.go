package wasm

import (
	"fmt"

	"github.com/wazerow/wazerow/api"
)

// ModuleID is a content hash (sha256 of the binary) identifying a decoded
// Module, used to key the compilation cache and the engine's compiled-code
// table.
type ModuleID [32]byte

// FunctionType is a function signature, aka (func) type in the WebAssembly
// specification. The decoder builds one FunctionType per type-section
// entry; equal signatures share one FunctionTypeID through the Store's
// interning (Store.getTypeID).
type FunctionType struct {
	Params, Results []api.ValueType

	// cachedTypeID is assigned once, lazily, by Store.getTypeID via the
	// store's interning cache; 0 means "not yet interned".
	cachedTypeID FunctionTypeID
}

// FunctionTypeID is a process-unique, small integer identifying a
// FunctionType, used so indirect calls compare types in O(1) rather than
// walking Params/Results.
type FunctionTypeID uint32

// TypeID returns t's interned FunctionTypeID, or 0 if it has never been
// passed through a Store's type interning (see Store.GetFunctionTypeID).
func (t *FunctionType) TypeID() FunctionTypeID { return t.cachedTypeID }

// key renders a FunctionType into a comparable string for interning.
func (t *FunctionType) key() string {
	b := make([]byte, len(t.Params)+len(t.Results)+1)
	copy(b, t.Params)
	b[len(t.Params)] = 0xff // delimiter unambiguous vs any ValueType byte
	copy(b[len(t.Params)+1:], t.Results)
	return string(b)
}

// String renders the type in WebAssembly text-format-like notation, ex.
// "(i32, i32) -> (i32)" or "() -> ()".
func (t *FunctionType) String() string {
	return fmt.Sprintf("(%s) -> (%s)", valueTypesString(t.Params), valueTypesString(t.Results))
}

func valueTypesString(ts []api.ValueType) string {
	s := ""
	for i, v := range ts {
		if i > 0 {
			s += ", "
		}
		s += api.ValueTypeName(v)
	}
	return s
}

// EqualsSignature returns true if params and results exactly match.
func (t *FunctionType) EqualsSignature(params, results []api.ValueType) bool {
	if len(t.Params) != len(params) || len(t.Results) != len(results) {
		return false
	}
	for i := range params {
		if t.Params[i] != params[i] {
			return false
		}
	}
	for i := range results {
		if t.Results[i] != results[i] {
			return false
		}
	}
	return true
}

// StorageKind distinguishes how a struct/array field is packed, per the GC
// proposal's packed-field types (i8/i16 in addition to full value types).
type StorageKind byte

const (
	StorageKindValueType StorageKind = iota
	StorageKindI8
	StorageKindI16
)

// FieldType is one field of a StructType, or the element type of an
// ArrayType.
type FieldType struct {
	Kind      StorageKind
	ValueType api.ValueType // meaningful when Kind == StorageKindValueType
	Mutable   bool
}

// StructType is a GC proposal composite type: a fixed sequence of typed,
// individually mutable fields.
type StructType struct {
	Fields []FieldType
}

// ArrayType is a GC proposal composite type: a variable-length homogeneous
// sequence of one field type.
type ArrayType struct {
	Element FieldType
}

// CompositeTypeKind distinguishes which of FunctionType/StructType/ArrayType
// a RecursiveGroup member is.
type CompositeTypeKind byte

const (
	CompositeTypeKindFunction CompositeTypeKind = iota
	CompositeTypeKindStruct
	CompositeTypeKindArray
)

// TypeDefinition is one member of the module's type section, tagging which
// composite kind it is and, for struct/array, the index of its declared
// supertype (or -1 if none) for the GC subtyping lattice.
type TypeDefinition struct {
	Kind         CompositeTypeKind
	FunctionType *FunctionType
	StructType   *StructType
	ArrayType    *ArrayType

	// SuperType is the type index of the explicit supertype declared with
	// `sub`, or -1 if this type has none beyond the top of its hierarchy.
	SuperType int32
	// Final marks a `sub final` declaration: no further subtypes are legal.
	Final bool
	// RecursiveGroupSize and RecursiveGroupIndex place this definition in
	// its (rec ...) group for the canonicalization rules used by ref.test
	// et al. across distinct but structurally recursive modules.
	RecursiveGroupSize  uint32
	RecursiveGroupIndex uint32
}

// Import describes a single module-level import declaration.
type Import struct {
	Type       api.ExternType
	Module     string
	Name       string
	DescFunc   uint32 // index into Module.TypeSection, when Type == ExternTypeFunc
	DescTable  *Table
	DescMem    *Memory
	DescGlobal *GlobalType
	DescTag    *Tag
}

// Export describes a single module-level export declaration.
type Export struct {
	Type  api.ExternType
	Name  string
	Index uint32
}

// GlobalType is a global's declared, static type.
type GlobalType struct {
	ValType api.ValueType
	Mutable bool
}

// Global couples a GlobalType with its initialization expression, for
// module-defined (non-imported) globals.
type Global struct {
	Type GlobalType
	Init ConstantExpression
}

// Table is a table's declared type: element type plus size limits.
type Table struct {
	Type    api.ValueType // ValueTypeFuncref or an externref/GC reference type
	Min     uint32
	Max     *uint32
}

// Memory is a memory's declared size limits, in pages (see Memory.PageSize
// for the page-size-in-bytes the custom-page-sizes proposal allows to vary).
type Memory struct {
	Min, Cap  uint32
	Max       uint32
	IsMaxEncoded bool
	Shared    bool // threads proposal: a shared memory, growable concurrently
	PageSize  uint64 // defaults to MemoryPageSize; custom-page-sizes proposal
}

// Tag is a tag's declared type: the exception-handling proposal's payload
// signature, reusing FunctionType's Params as the payload value types
// (Results is always empty for a tag).
type Tag struct {
	Type *FunctionType
}

// ConstantExpression is a side-effect-free initializer used for global
// initializers, element segment offsets, and data segment offsets.
type ConstantExpression struct {
	Opcode OpcodeConstExpr
	Data   []byte // operand bytes, as they appeared in the binary
}

// OpcodeConstExpr enumerates the opcodes legal in a constant expression.
type OpcodeConstExpr byte

const (
	OpcodeConstExprI32Const OpcodeConstExpr = iota
	OpcodeConstExprI64Const
	OpcodeConstExprF32Const
	OpcodeConstExprF64Const
	OpcodeConstExprV128Const
	OpcodeConstExprGlobalGet
	OpcodeConstExprRefNull
	OpcodeConstExprRefFunc
	OpcodeConstExprStructNew
	OpcodeConstExprArrayNew
	OpcodeConstExprArrayNewFixed
	OpcodeConstExprExternConvertAny
	OpcodeConstExprAnyConvertExtern
	OpcodeConstExprEnd // used as the 0xb terminator sentinel, never evaluated
)

// ElementSegmentMode distinguishes active/passive/declarative element
// segments, per spec.md's bulk-memory/reference-types semantics.
type ElementSegmentMode byte

const (
	ElementModeActive ElementSegmentMode = iota
	ElementModePassive
	ElementModeDeclarative
)

// ElementSegment is one element (table-initializer) segment.
type ElementSegment struct {
	Type       api.ValueType
	TableIndex uint32
	Mode       ElementSegmentMode
	OffsetExpr ConstantExpression // meaningful when Mode == ElementModeActive

	// Init holds either function indices (common case, indices into the
	// combined function index space) or, for the expression-encoded form,
	// one ConstantExpression per element.
	Init      []uint32
	InitExprs []ConstantExpression

	// UsesExprForm records whether Init was encoded using the expression
	// form (flag bit 0x04) rather than bare function indices. resolveElementInits
	// does not consult it: it reads InitExprs whenever that is non-empty.
	UsesExprForm bool
}

// DataSegmentMode distinguishes active/passive data segments.
type DataSegmentMode byte

const (
	DataModeActive DataSegmentMode = iota
	DataModePassive
)

// DataSegment is one data (linear-memory-initializer) segment.
type DataSegment struct {
	MemoryIndex uint32
	Mode        DataSegmentMode
	OffsetExpr  ConstantExpression // meaningful when Mode == DataModeActive
	Init        []byte
}

// NameSection is the decoded custom "name" section, when present.
type NameSection struct {
	ModuleName    string
	FunctionNames map[uint32]string
	LocalNames    map[uint32]map[uint32]string
}

// CustomSection preserves a custom section verbatim for round-trip encoding
// (spec.md §8's testable property), except for "name" which is parsed into
// NameSection instead.
type CustomSection struct {
	Name string
	Data []byte
}

// Code is one entry of the code section: a function body paired with its
// locals declaration, kept in binary form until the engine compiles it.
type Code struct {
	LocalTypes []api.ValueType
	Body       []byte

	// BodyOffsetInCodeSection is the byte offset of Body's first
	// instruction relative to this entry's own body-size field, used to
	// correlate runtime program counters back to source positions.
	BodyOffsetInCodeSection uint64
}

// Module is the fully decoded representation of a WebAssembly binary,
// pre-instantiation. It is immutable and may be compiled once, then
// instantiated many times into independent ModuleInstances.
type Module struct {
	ID ModuleID

	TypeSection    []*TypeDefinition
	ImportSection  []*Import
	FunctionSection []uint32 // indices into TypeSection, one per module-defined function
	TableSection   []*Table
	MemorySection  []*Memory
	GlobalSection  []*Global
	TagSection     []*Tag
	ExportSection  []*Export
	StartSection   *uint32
	ElementSection []*ElementSegment
	CodeSection    []*Code
	DataSection    []*DataSegment
	DataCountSection *uint32

	CustomSections []*CustomSection
	NameSection    *NameSection

	// hostFuncs correlates CodeSection[i] (a placeholder Code with no Body)
	// back to its HostFunc, for modules built by NewHostModule rather than
	// decoded from a binary.
	hostFuncs []*HostFunc

	exportsByName map[string]*Export
}

// ImportFuncCount returns the number of function imports, i.e. the offset at
// which module-defined function indices begin in the function index space.
func (m *Module) ImportFuncCount() (n uint32) {
	for _, i := range m.ImportSection {
		if i.Type == api.ExternTypeFunc {
			n++
		}
	}
	return
}

// ImportTableCount mirrors ImportFuncCount for tables.
func (m *Module) ImportTableCount() (n uint32) {
	for _, i := range m.ImportSection {
		if i.Type == api.ExternTypeTable {
			n++
		}
	}
	return
}

// ImportMemoryCount mirrors ImportFuncCount for memories.
func (m *Module) ImportMemoryCount() (n uint32) {
	for _, i := range m.ImportSection {
		if i.Type == api.ExternTypeMemory {
			n++
		}
	}
	return
}

// ImportGlobalCount mirrors ImportFuncCount for globals.
func (m *Module) ImportGlobalCount() (n uint32) {
	for _, i := range m.ImportSection {
		if i.Type == api.ExternTypeGlobal {
			n++
		}
	}
	return
}

// ImportTagCount mirrors ImportFuncCount for tags.
func (m *Module) ImportTagCount() (n uint32) {
	for _, i := range m.ImportSection {
		if i.Type == api.ExternTypeTag {
			n++
		}
	}
	return
}

// TypeOfFunction resolves a function index (import or module-defined) to its
// FunctionType.
func (m *Module) TypeOfFunction(funcIdx uint32) *FunctionType {
	importFuncCount := m.ImportFuncCount()
	if funcIdx < importFuncCount {
		var seen uint32
		for _, imp := range m.ImportSection {
			if imp.Type != api.ExternTypeFunc {
				continue
			}
			if seen == funcIdx {
				return m.TypeSection[imp.DescFunc].FunctionType
			}
			seen++
		}
		return nil
	}
	localIdx := funcIdx - importFuncCount
	if int(localIdx) >= len(m.FunctionSection) {
		return nil
	}
	return m.TypeSection[m.FunctionSection[localIdx]].FunctionType
}

// TagTypeOf resolves a tag index (import or module-defined) to its payload
// FunctionType, or nil if tagIdx is out of range.
func (m *Module) TagTypeOf(tagIdx uint32) *FunctionType {
	importTagCount := m.ImportTagCount()
	if tagIdx < importTagCount {
		var seen uint32
		for _, imp := range m.ImportSection {
			if imp.Type != api.ExternTypeTag {
				continue
			}
			if seen == tagIdx {
				return imp.DescTag.Type
			}
			seen++
		}
		return nil
	}
	localIdx := tagIdx - importTagCount
	if int(localIdx) >= len(m.TagSection) {
		return nil
	}
	return m.TagSection[localIdx].Type
}

// GlobalTypeOf resolves a global index (import or module-defined) to its
// GlobalType, or nil if globalIdx is out of range.
func (m *Module) GlobalTypeOf(globalIdx uint32) *GlobalType {
	importGlobalCount := m.ImportGlobalCount()
	if globalIdx < importGlobalCount {
		var seen uint32
		for _, imp := range m.ImportSection {
			if imp.Type != api.ExternTypeGlobal {
				continue
			}
			if seen == globalIdx {
				return imp.DescGlobal
			}
			seen++
		}
		return nil
	}
	localIdx := globalIdx - importGlobalCount
	if int(localIdx) >= len(m.GlobalSection) {
		return nil
	}
	return &m.GlobalSection[localIdx].Type
}

// TableTypeOf resolves a table index (import or module-defined) to its
// element ValueType, or 0 if tableIdx is out of range.
func (m *Module) TableTypeOf(tableIdx uint32) api.ValueType {
	importTableCount := m.ImportTableCount()
	if tableIdx < importTableCount {
		var seen uint32
		for _, imp := range m.ImportSection {
			if imp.Type != api.ExternTypeTable {
				continue
			}
			if seen == tableIdx {
				return imp.DescTable.Type
			}
			seen++
		}
		return 0
	}
	localIdx := tableIdx - importTableCount
	if int(localIdx) >= len(m.TableSection) {
		return 0
	}
	return m.TableSection[localIdx].Type
}

// buildExportIndex lazily builds and returns the by-name export lookup.
func (m *Module) buildExportIndex() map[string]*Export {
	if m.exportsByName != nil {
		return m.exportsByName
	}
	idx := make(map[string]*Export, len(m.ExportSection))
	for _, e := range m.ExportSection {
		idx[e.Name] = e
	}
	m.exportsByName = idx
	return idx
}

// Exports returns the export declared under name, or nil.
func (m *Module) Exports(name string) *Export {
	return m.buildExportIndex()[name]
}

// functionExportNames groups exported names by the function index they
// export, for populating FunctionDefinitionInstance.Exports.
func (m *Module) functionExportNames() map[uint32][]string {
	names := make(map[uint32][]string)
	for _, e := range m.ExportSection {
		if e.Type == api.ExternTypeFunc {
			names[e.Index] = append(names[e.Index], e.Name)
		}
	}
	return names
}

// SectionID enumerates WebAssembly binary section IDs, including the Tag
// section added by the exception-handling proposal.
type SectionID byte

const (
	SectionIDCustom SectionID = iota
	SectionIDType
	SectionIDImport
	SectionIDFunction
	SectionIDTable
	SectionIDMemory
	SectionIDGlobal
	SectionIDExport
	SectionIDStart
	SectionIDElement
	SectionIDCode
	SectionIDData
	SectionIDDataCount
	SectionIDTag
)

// SectionIDName returns the human name of a section ID, for error messages.
func SectionIDName(id SectionID) string {
	switch id {
	case SectionIDCustom:
		return "custom"
	case SectionIDType:
		return "type"
	case SectionIDImport:
		return "import"
	case SectionIDFunction:
		return "function"
	case SectionIDTable:
		return "table"
	case SectionIDMemory:
		return "memory"
	case SectionIDGlobal:
		return "global"
	case SectionIDExport:
		return "export"
	case SectionIDStart:
		return "start"
	case SectionIDElement:
		return "element"
	case SectionIDCode:
		return "code"
	case SectionIDData:
		return "data"
	case SectionIDDataCount:
		return "data count"
	case SectionIDTag:
		return "tag"
	}
	return fmt.Sprintf("unknown(%d)", id)
}
