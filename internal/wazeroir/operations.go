// Package wazeroir lowers a validated wasm function body into a flat,
// stack-machine-shaped intermediate representation that interpreter.go
// executes directly. Lowering is also where per-instruction stack-type
// checking happens (see CompileFunction), since internal/wasm's validator
// intentionally defers it here rather than duplicating a second type-checker.
package wazeroir

import "github.com/wazerow/wazerow/api"

// UnsignedType distinguishes operand width/representation for numeric ops
// whose opcode is shared across types (e.g. add is one Operation kind,
// parameterized by UnsignedType).
type UnsignedType byte

const (
	UnsignedTypeI32 UnsignedType = iota
	UnsignedTypeI64
	UnsignedTypeF32
	UnsignedTypeF64
	UnsignedTypeV128
)

// SignedType distinguishes signed-vs-unsigned interpretation for ops like
// division, remainder, and comparison where it matters.
type SignedType byte

const (
	SignedTypeInt32 SignedType = iota
	SignedTypeUint32
	SignedTypeInt64
	SignedTypeUint64
	SignedTypeFloat32
	SignedTypeFloat64
)

// InclusiveRange is an inclusive [Start, End] byte range, used for memory
// alignment hints and select-with-arity style ops.
type InclusiveRange struct {
	Start, End int
}

// OperationKind enumerates every instruction shape the interpreter executes.
// Grouped by the spec.md area that introduces it.
type OperationKind int

const (
	OperationKindUnreachable OperationKind = iota
	OperationKindNop
	OperationKindBr
	OperationKindBrIf
	OperationKindBrTable
	OperationKindCall
	OperationKindCallIndirect
	OperationKindReturn
	OperationKindDrop
	OperationKindSelect
	OperationKindPick
	OperationKindSet
	OperationKindGlobalGet
	OperationKindGlobalSet
	OperationKindLoad
	OperationKindStore
	OperationKindMemorySize
	OperationKindMemoryGrow
	OperationKindConstI32
	OperationKindConstI64
	OperationKindConstF32
	OperationKindConstF64
	OperationKindEq
	OperationKindNe
	OperationKindEqz
	OperationKindLt
	OperationKindGt
	OperationKindLe
	OperationKindGe
	OperationKindAdd
	OperationKindSub
	OperationKindMul
	OperationKindDiv
	OperationKindRem
	OperationKindAnd
	OperationKindOr
	OperationKindXor
	OperationKindShl
	OperationKindShr
	OperationKindRotl
	OperationKindRotr
	OperationKindClz
	OperationKindCtz
	OperationKindPopcnt
	OperationKindAbs
	OperationKindNeg
	OperationKindCeil
	OperationKindFloor
	OperationKindTrunc
	OperationKindNearest
	OperationKindSqrt
	OperationKindMin
	OperationKindMax
	OperationKindCopysign
	OperationKindConvert
	OperationKindReinterpret
	OperationKindExtend
	OperationKindSignExtend32From8
	OperationKindSignExtend32From16
	OperationKindSignExtend64From8
	OperationKindSignExtend64From16
	OperationKindSignExtend64From32

	// bulk-memory / reference-types (spec.md §4.5A)
	OperationKindMemoryInit
	OperationKindDataDrop
	OperationKindMemoryCopy
	OperationKindMemoryFill
	OperationKindTableInit
	OperationKindElemDrop
	OperationKindTableCopy
	OperationKindTableGrow
	OperationKindTableSize
	OperationKindTableFill
	OperationKindRefNull
	OperationKindRefIsNull
	OperationKindRefFunc
	OperationKindTableGet
	OperationKindTableSet

	// exception-handling
	OperationKindTry
	OperationKindThrow
	OperationKindThrowRef
	OperationKindCatch
	OperationKindRethrow

	// tail calls
	OperationKindReturnCall
	OperationKindReturnCallIndirect

	// threads/atomics
	OperationKindAtomicLoad
	OperationKindAtomicStore
	OperationKindAtomicRMW
	OperationKindAtomicCmpxchg
	OperationKindAtomicWait
	OperationKindAtomicNotify
	OperationKindAtomicFence

	// SIMD (representative subset; see DESIGN.md for scope)
	OperationKindV128Const
	OperationKindV128Add
	OperationKindV128Sub
	OperationKindV128Load
	OperationKindV128Store
	OperationKindV128Splat
	OperationKindV128ExtractLane
	OperationKindV128ReplaceLane

	// GC
	OperationKindStructNew
	OperationKindStructGet
	OperationKindStructSet
	OperationKindArrayNew
	OperationKindArrayNewFixed
	OperationKindArrayGet
	OperationKindArraySet
	OperationKindArrayLen
	OperationKindRefTest
	OperationKindRefCast
	OperationKindBrOnCast
	OperationKindI31New
	OperationKindI31Get
	OperationKindAnyConvertExtern
	OperationKindExternConvertAny
)

// ConversionKind distinguishes the specific numeric conversion an
// OperationKindConvert or OperationKindReinterpret performs; carried in the
// Operation's B1 field so the interpreter can dispatch without re-decoding
// the original wasm opcode byte.
type ConversionKind byte

const (
	ConversionI32TruncF32S ConversionKind = iota
	ConversionI32TruncF32U
	ConversionI32TruncF64S
	ConversionI32TruncF64U
	ConversionI64TruncF32S
	ConversionI64TruncF32U
	ConversionI64TruncF64S
	ConversionI64TruncF64U
	ConversionF32ConvertI32S
	ConversionF32ConvertI32U
	ConversionF32ConvertI64S
	ConversionF32ConvertI64U
	ConversionF32DemoteF64
	ConversionF64ConvertI32S
	ConversionF64ConvertI32U
	ConversionF64ConvertI64S
	ConversionF64ConvertI64U
	ConversionF64PromoteF32
	ConversionI32WrapI64
	ConversionI32ReinterpretF32
	ConversionI64ReinterpretF64
	ConversionF32ReinterpretI32
	ConversionF64ReinterpretI64
	ConversionI32TruncSatF32S
	ConversionI32TruncSatF32U
	ConversionI32TruncSatF64S
	ConversionI32TruncSatF64U
	ConversionI64TruncSatF32S
	ConversionI64TruncSatF32U
	ConversionI64TruncSatF64S
	ConversionI64TruncSatF64U
)

// NoTarget marks a try's absent catch_all clause in Operation.B2: no real pc
// is ever this large, so it doubles as a sentinel without a separate bool.
const NoTarget = ^uint32(0)

// LaneShape distinguishes how a v128 operand's 128 bits are sliced into
// lanes for splat/extract_lane/replace_lane/add/sub, since those share one
// OperationKind across shapes (see operations.go's SIMD subset comment).
type LaneShape byte

const (
	LaneShapeI32x4 LaneShape = iota
	LaneShapeF32x4
)

// Operation is one lowered instruction. Not every field is meaningful for
// every Kind; see the per-kind comment in compiler.go's emit functions for
// which fields a given Kind reads.
type Operation struct {
	Kind OperationKind

	B1, B2 uint64      // generic small operands: constants, indices, depths
	B3     uint64
	Us     []uint32    // br_table targets, call_indirect extra operands, try_table catch entries
	Type   UnsignedType
	Signed SignedType
	ValueType api.ValueType
	Lane   LaneShape

	ConstI32 uint32
	ConstI64 uint64
	ConstF32 float32
	ConstF64 float64
	ConstV128Lo uint64
	ConstV128Hi uint64

	// Target is the control-flow linking field resolved by the
	// compiler's backpatch pass.
	Target int
}

// CompilationResult is the flattened, executable form of one function body.
type CompilationResult struct {
	Operations  []Operation
	LabelNames  map[int]string // debug-only
	NumLocals   uint32
	LocalTypes  []api.ValueType // declared locals only, i.e. excluding ParamTypes
	ParamTypes  []api.ValueType
	ResultTypes []api.ValueType
}
