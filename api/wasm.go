// Package api includes constants and interfaces used by both end-users and
// internal implementations.
package api

import (
	"context"
	"fmt"
	"math"
)

// ExternType classifies imports and exports with their respective types.
//
// See https://webassembly.github.io/spec/core/syntax/types.html#external-types
type ExternType = byte

const (
	ExternTypeFunc   ExternType = 0x00
	ExternTypeTable  ExternType = 0x01
	ExternTypeMemory ExternType = 0x02
	ExternTypeGlobal ExternType = 0x03
	ExternTypeTag    ExternType = 0x04
)

const (
	ExternTypeFuncName   = "func"
	ExternTypeTableName  = "table"
	ExternTypeMemoryName = "memory"
	ExternTypeGlobalName = "global"
	ExternTypeTagName    = "tag"
)

// ExternTypeName returns the name of the Text Format field of the given
// type.
func ExternTypeName(et ExternType) string {
	switch et {
	case ExternTypeFunc:
		return ExternTypeFuncName
	case ExternTypeTable:
		return ExternTypeTableName
	case ExternTypeMemory:
		return ExternTypeMemoryName
	case ExternTypeGlobal:
		return ExternTypeGlobalName
	case ExternTypeTag:
		return ExternTypeTagName
	}
	return fmt.Sprintf("%#x", et)
}

// ValueType describes a value used in WebAssembly, numeric or reference.
//
// Note: This is a type alias as it is easier to encode and decode in the
// binary format.
//
// See https://webassembly.github.io/spec/core/binary/types.html#value-types
type ValueType = byte

const (
	// ValueTypeI32 is a 32-bit integer.
	ValueTypeI32 ValueType = 0x7f
	// ValueTypeI64 is a 64-bit integer.
	ValueTypeI64 ValueType = 0x7e
	// ValueTypeF32 is a 32-bit floating point number.
	ValueTypeF32 ValueType = 0x7d
	// ValueTypeF64 is a 64-bit floating point number.
	ValueTypeF64 ValueType = 0x7c
	// ValueTypeV128 is a 128-bit vector value, added by the SIMD proposal.
	//
	// On the operand stack it occupies two consecutive 64-bit slots (low,
	// then high lane half); everywhere else (locals, globals, struct/array
	// fields) it is a single 128-bit value.
	ValueTypeV128 ValueType = 0x7b

	// ValueTypeFuncref is a nullable reference to a function.
	ValueTypeFuncref ValueType = 0x70
	// ValueTypeExternref is a nullable opaque reference to a host object.
	//
	// In wazerow, externref values are opaque raw 64-bit words and are
	// translated as uintptr in the Go-facing API.
	ValueTypeExternref ValueType = 0x6f
	// ValueTypeExnref is a nullable reference to an exception, produced by
	// the catch_ref/catch_all_ref clauses of try_table.
	ValueTypeExnref ValueType = 0x69

	// The following are GC proposal heap types, usable both as standalone
	// value types (implicitly nullable) and as the referent of a
	// `(ref null? $T)` typed reference.

	// ValueTypeAny is the top type of the internal (GC) reference hierarchy.
	ValueTypeAny ValueType = 0x6e
	// ValueTypeEq is the common supertype of i31, struct, and array.
	ValueTypeEq ValueType = 0x6d
	// ValueTypeI31 is an unboxed 31-bit integer reference.
	ValueTypeI31 ValueType = 0x6c
	// ValueTypeStruct is the top type of all struct types.
	ValueTypeStruct ValueType = 0x6b
	// ValueTypeArray is the top type of all array types.
	ValueTypeArray ValueType = 0x6a
	// ValueTypeNone is the bottom type of the internal reference hierarchy:
	// a subtype of every internal reference type, inhabited only by null.
	ValueTypeNone ValueType = 0x65
	// ValueTypeNoFunc is the bottom type of the funcref hierarchy.
	ValueTypeNoFunc ValueType = 0x68
	// ValueTypeNoExtern is the bottom type of the externref hierarchy.
	ValueTypeNoExtern ValueType = 0x67
)

// ValueTypeName returns the type name of the given ValueType as used in the
// WebAssembly text format, or "unknown" for an undefined value.
func ValueTypeName(t ValueType) string {
	switch t {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	case ValueTypeV128:
		return "v128"
	case ValueTypeFuncref:
		return "funcref"
	case ValueTypeExternref:
		return "externref"
	case ValueTypeExnref:
		return "exnref"
	case ValueTypeAny:
		return "anyref"
	case ValueTypeEq:
		return "eqref"
	case ValueTypeI31:
		return "i31ref"
	case ValueTypeStruct:
		return "structref"
	case ValueTypeArray:
		return "arrayref"
	case ValueTypeNone:
		return "nullref"
	case ValueTypeNoFunc:
		return "nullfuncref"
	case ValueTypeNoExtern:
		return "nullexternref"
	}
	return "unknown"
}

// IsRefType returns true if t is any reference type (funcref, externref,
// exnref, or one of the GC internal-hierarchy types).
func IsRefType(t ValueType) bool {
	switch t {
	case ValueTypeFuncref, ValueTypeExternref, ValueTypeExnref,
		ValueTypeAny, ValueTypeEq, ValueTypeI31, ValueTypeStruct, ValueTypeArray,
		ValueTypeNone, ValueTypeNoFunc, ValueTypeNoExtern:
		return true
	}
	return false
}

// GoFunction is a function implemented in Go, with a raw operand stack
// accessor, for use with HostFunctionBuilder.WithGoFunction.
type GoFunction interface {
	// Call invokes the function, reading parameters off and writing results
	// onto stack, encoded per ValueType as documented on Memory.
	Call(ctx context.Context, stack []uint64)
}

// GoModuleFunction is a GoFunction that can also access the calling
// api.Module, notably to read or write its Memory.
type GoModuleFunction interface {
	Call(ctx context.Context, mod Module, stack []uint64)
}

// GoFunc adapts a func(context.Context, []uint64) to a GoFunction.
type GoFunc func(ctx context.Context, stack []uint64)

// Call implements GoFunction.Call.
func (f GoFunc) Call(ctx context.Context, stack []uint64) { f(ctx, stack) }

// GoModuleFunc adapts a func(context.Context, Module, []uint64) to a
// GoModuleFunction.
type GoModuleFunc func(ctx context.Context, mod Module, stack []uint64)

// Call implements GoModuleFunction.Call.
func (f GoModuleFunc) Call(ctx context.Context, mod Module, stack []uint64) { f(ctx, mod, stack) }

// Module return functions exported in a module, post-instantiation.
//
// # Notes
//
//   - Closing the wazerow.Runtime closes any Module it instantiated.
//   - This is an interface for decoupling, not third-party implementations.
//     All implementations are in wazerow.
type Module interface {
	fmt.Stringer

	// Name is the name this module was instantiated with. Exported
	// functions can be imported with this name.
	Name() string

	// Memory returns the first memory defined in this module, or nil if it
	// has none.
	Memory() Memory

	// ExportedFunction returns a function exported from this module, or nil
	// if it wasn't.
	ExportedFunction(name string) Function

	// ExportedMemory returns a memory exported from this module, or nil if
	// it wasn't.
	ExportedMemory(name string) Memory

	// ExportedTable returns a table exported from this module, or nil if it
	// wasn't.
	ExportedTable(name string) Table

	// ExportedGlobal returns a global exported from this module, or nil if
	// it wasn't.
	ExportedGlobal(name string) Global

	// CloseWithExitCode releases resources allocated for this Module. Use a
	// non-zero exitCode to indicate failure to ExportedFunction callers.
	//
	// The error returned here, if present, is about resource
	// de-allocation (such as I/O errors). Only the last error is returned,
	// so a non-nil return means at least one error happened. Regardless of
	// error, this module instance is removed, making its name available
	// again.
	CloseWithExitCode(ctx context.Context, exitCode uint32) error

	// Closer closes this module by delegating to CloseWithExitCode with an
	// exit code of zero.
	Closer
}

// Closer closes a resource.
type Closer interface {
	// Close closes the resource. When the context is nil, it defaults to
	// context.Background.
	Close(context.Context) error
}

// FunctionDefinition is a WebAssembly function exported in a module
// (wazerow.CompiledModule), pre-instantiation.
type FunctionDefinition interface {
	// ModuleName is the possibly empty name of the module defining this
	// function.
	ModuleName() string

	// Index is the position in the module's function index namespace,
	// imports first.
	Index() uint32

	// Name is the module-defined name of the function, which is not
	// necessarily the same as its export name.
	Name() string

	// DebugName identifies this function based on its Index or Name in the
	// module, used for errors and stack traces. Ex. "env.abort".
	DebugName() string

	// Import returns true with the module and function name when this
	// function is imported. Otherwise, it returns false.
	Import() (moduleName, name string, isImport bool)

	// ExportNames include all exported names for the given function.
	ExportNames() []string

	// ParamTypes are the possibly empty sequence of value types accepted by
	// a function with this signature.
	ParamTypes() []ValueType

	// ParamNames are index-correlated with ParamTypes, or nil if not
	// available for one or more parameters.
	ParamNames() []string

	// ResultTypes are the results of the function.
	ResultTypes() []ValueType

	// ResultNames are index-correlated with ResultTypes, or nil if not
	// available.
	ResultNames() []string
}

// Function is a WebAssembly function exported from an instantiated module.
type Function interface {
	// Definition is metadata about this function from its defining module.
	Definition() FunctionDefinition

	// Call invokes the function with parameters encoded according to
	// ParamTypes. Results are encoded according to ResultTypes. An error is
	// returned for any failure looking up or invoking the function,
	// including a signature mismatch or a Trap. When the context is nil, it
	// defaults to context.Background.
	Call(ctx context.Context, params ...uint64) ([]uint64, error)
}

// Global is a WebAssembly global exported from an instantiated module.
type Global interface {
	fmt.Stringer

	// Type describes the value type of the global.
	Type() ValueType

	// Get returns the last known value of this global. When the context is
	// nil, it defaults to context.Background.
	Get(context.Context) uint64
}

// MutableGlobal is a Global whose value can be updated at runtime.
type MutableGlobal interface {
	Global

	// Set updates the value of this global. When the context is nil, it
	// defaults to context.Background.
	Set(ctx context.Context, v uint64)
}

// Table allows restricted access to a module's table of references.
type Table interface {
	// Type is the table's reference element type: ValueTypeFuncref,
	// ValueTypeExternref, or a GC reference type.
	Type() ValueType

	// Size returns the current number of elements in the table.
	Size(context.Context) uint32

	// Grow increases the table by the delta in elements, filling new
	// entries with init. Returns the previous size, or false if the delta
	// would exceed the table's declared maximum.
	Grow(ctx context.Context, delta uint32, init uint64) (previousSize uint32, ok bool)
}

// Memory allows restricted access to a module's memory, including growing
// it by whole pages via Grow.
//
// # Notes
//
//   - All functions accept a context.Context, which when nil, default to
//     context.Background.
//   - This is an interface for decoupling, not third-party implementations.
//     All implementations are in wazerow.
//   - This includes all value types available in WebAssembly and all are
//     encoded little-endian.
type Memory interface {
	// Size returns the size in bytes available. Ex. If the underlying
	// memory has 1 page: 65536 (or the module's custom page size).
	Size(context.Context) uint32

	// Grow increases memory by the delta in pages (65536 bytes per page,
	// unless the memory declares a custom page size). The return value is
	// the previous memory size in pages, or false if the delta was ignored
	// as it exceeds max memory.
	Grow(ctx context.Context, deltaPages uint32) (previousPages uint32, ok bool)

	// ReadByte reads a single byte from the underlying buffer at the offset
	// or returns false if out of range.
	ReadByte(ctx context.Context, offset uint32) (byte, bool)

	// ReadUint16Le reads a uint16 in little-endian encoding from the offset,
	// or returns false if out of range.
	ReadUint16Le(ctx context.Context, offset uint32) (uint16, bool)

	// ReadUint32Le reads a uint32 in little-endian encoding from the offset,
	// or returns false if out of range.
	ReadUint32Le(ctx context.Context, offset uint32) (uint32, bool)

	// ReadFloat32Le reads a float32 from 32 IEEE 754 little-endian encoded
	// bits at the offset, or returns false if out of range.
	ReadFloat32Le(ctx context.Context, offset uint32) (float32, bool)

	// ReadUint64Le reads a uint64 in little-endian encoding from the offset,
	// or returns false if out of range.
	ReadUint64Le(ctx context.Context, offset uint32) (uint64, bool)

	// ReadFloat64Le reads a float64 from 64 IEEE 754 little-endian encoded
	// bits at the offset, or returns false if out of range.
	ReadFloat64Le(ctx context.Context, offset uint32) (float64, bool)

	// Read reads byteCount bytes from the underlying buffer at the offset,
	// or returns false if out of range.
	//
	// This returns a view of the underlying memory, not a copy. Writes to
	// the returned slice are visible to Wasm and vice-versa, until the
	// underlying capacity changes (ex. via memory.grow).
	Read(ctx context.Context, offset, byteCount uint32) ([]byte, bool)

	// WriteByte writes a single byte to the underlying buffer at the offset,
	// or returns false if out of range.
	WriteByte(ctx context.Context, offset uint32, v byte) bool

	// WriteUint16Le writes v in little-endian encoding to the offset, or
	// returns false if out of range.
	WriteUint16Le(ctx context.Context, offset uint32, v uint16) bool

	// WriteUint32Le writes v in little-endian encoding to the offset, or
	// returns false if out of range.
	WriteUint32Le(ctx context.Context, offset, v uint32) bool

	// WriteFloat32Le writes v's 32 IEEE 754 little-endian encoded bits to
	// the offset, or returns false if out of range.
	WriteFloat32Le(ctx context.Context, offset uint32, v float32) bool

	// WriteUint64Le writes v in little-endian encoding to the offset, or
	// returns false if out of range.
	WriteUint64Le(ctx context.Context, offset uint32, v uint64) bool

	// WriteFloat64Le writes v's 64 IEEE 754 little-endian encoded bits to
	// the offset, or returns false if out of range.
	WriteFloat64Le(ctx context.Context, offset uint32, v float64) bool

	// Write writes the slice to the underlying buffer at the offset, or
	// returns false if out of range.
	Write(ctx context.Context, offset uint32, v []byte) bool
}

// EncodeExternref encodes the input as a ValueTypeExternref.
func EncodeExternref(input uintptr) uint64 { return uint64(input) }

// DecodeExternref decodes the input as a ValueTypeExternref.
func DecodeExternref(input uint64) uintptr { return uintptr(input) }

// EncodeI32 encodes the input as a ValueTypeI32.
func EncodeI32(input int32) uint64 { return uint64(uint32(input)) }

// EncodeI64 encodes the input as a ValueTypeI64.
func EncodeI64(input int64) uint64 { return uint64(input) }

// EncodeF32 encodes the input as a ValueTypeF32.
func EncodeF32(input float32) uint64 { return uint64(math.Float32bits(input)) }

// DecodeF32 decodes the input as a ValueTypeF32.
func DecodeF32(input uint64) float32 { return math.Float32frombits(uint32(input)) }

// EncodeF64 encodes the input as a ValueTypeF64.
func EncodeF64(input float64) uint64 { return math.Float64bits(input) }

// DecodeF64 decodes the input as a ValueTypeF64.
func DecodeF64(input uint64) float64 { return math.Float64frombits(input) }

// EncodeV128 encodes a 128-bit vector as two little-endian uint64 lane
// halves, for pushing onto the operand stack.
func EncodeV128(input [16]byte) (lo, hi uint64) {
	lo = uint64(input[0]) | uint64(input[1])<<8 | uint64(input[2])<<16 | uint64(input[3])<<24 |
		uint64(input[4])<<32 | uint64(input[5])<<40 | uint64(input[6])<<48 | uint64(input[7])<<56
	hi = uint64(input[8]) | uint64(input[9])<<8 | uint64(input[10])<<16 | uint64(input[11])<<24 |
		uint64(input[12])<<32 | uint64(input[13])<<40 | uint64(input[14])<<48 | uint64(input[15])<<56
	return
}

// DecodeV128 is the inverse of EncodeV128.
func DecodeV128(lo, hi uint64) (out [16]byte) {
	for i := 0; i < 8; i++ {
		out[i] = byte(lo >> (8 * i))
		out[i+8] = byte(hi >> (8 * i))
	}
	return
}

// MemorySizer applies during compilation after a module has been decoded,
// but before it is instantiated. This determines the amount of memory pages
// to use when a memory is instantiated as a []byte.
type MemorySizer func(minPages uint32, maxPages *uint32) (min, capacity, max uint32)
