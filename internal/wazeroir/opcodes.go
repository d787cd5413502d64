package wazeroir

// Raw wasm opcode byte values the compiler's lowering switch recognizes.
// Named the way the spec names them, not the way any particular assembler
// renders them.
const (
	opUnreachable = 0x00
	opNop         = 0x01
	opBlock       = 0x02
	opLoop        = 0x03
	opIf          = 0x04
	opElse        = 0x05
	opTry         = 0x06
	opCatch       = 0x07
	opThrow       = 0x08
	opRethrow     = 0x09
	opEnd         = 0x0b
	opBr          = 0x0c
	opBrIf        = 0x0d
	opBrTable     = 0x0e
	opReturn      = 0x0f
	opCall        = 0x10
	opCallIndirect = 0x11
	opReturnCall         = 0x12
	opReturnCallIndirect = 0x13
	opThrowRef           = 0x0a

	opDrop   = 0x1a
	opSelect = 0x1b
	opSelectT = 0x1c

	opLocalGet  = 0x20
	opLocalSet  = 0x21
	opLocalTee  = 0x22
	opGlobalGet = 0x23
	opGlobalSet = 0x24

	opTableGet = 0x25
	opTableSet = 0x26

	opI32Load    = 0x28
	opI64Load    = 0x29
	opF32Load    = 0x2a
	opF64Load    = 0x2b
	opI32Load8S  = 0x2c
	opI32Load8U  = 0x2d
	opI32Load16S = 0x2e
	opI32Load16U = 0x2f
	opI64Load8S  = 0x30
	opI64Load8U  = 0x31
	opI64Load16S = 0x32
	opI64Load16U = 0x33
	opI64Load32S = 0x34
	opI64Load32U = 0x35
	opI32Store   = 0x36
	opI64Store   = 0x37
	opF32Store   = 0x38
	opF64Store   = 0x39
	opI32Store8  = 0x3a
	opI32Store16 = 0x3b
	opI64Store8  = 0x3c
	opI64Store16 = 0x3d
	opI64Store32 = 0x3e
	opMemorySize = 0x3f
	opMemoryGrow = 0x40

	opI32Const = 0x41
	opI64Const = 0x42
	opF32Const = 0x43
	opF64Const = 0x44

	opI32Eqz = 0x45
	opI32Eq  = 0x46
	opI32Ne  = 0x47
	opI32LtS = 0x48
	opI32LtU = 0x49
	opI32GtS = 0x4a
	opI32GtU = 0x4b
	opI32LeS = 0x4c
	opI32LeU = 0x4d
	opI32GeS = 0x4e
	opI32GeU = 0x4f

	opI64Eqz = 0x50
	opI64Eq  = 0x51
	opI64Ne  = 0x52
	opI64LtS = 0x53
	opI64LtU = 0x54
	opI64GtS = 0x55
	opI64GtU = 0x56
	opI64LeS = 0x57
	opI64LeU = 0x58
	opI64GeS = 0x59
	opI64GeU = 0x5a

	opF32Eq = 0x5b
	opF32Ne = 0x5c
	opF32Lt = 0x5d
	opF32Gt = 0x5e
	opF32Le = 0x5f
	opF32Ge = 0x60

	opF64Eq = 0x61
	opF64Ne = 0x62
	opF64Lt = 0x63
	opF64Gt = 0x64
	opF64Le = 0x65
	opF64Ge = 0x66

	opI32Clz    = 0x67
	opI32Ctz    = 0x68
	opI32Popcnt = 0x69
	opI32Add    = 0x6a
	opI32Sub    = 0x6b
	opI32Mul    = 0x6c
	opI32DivS   = 0x6d
	opI32DivU   = 0x6e
	opI32RemS   = 0x6f
	opI32RemU   = 0x70
	opI32And    = 0x71
	opI32Or     = 0x72
	opI32Xor    = 0x73
	opI32Shl    = 0x74
	opI32ShrS   = 0x75
	opI32ShrU   = 0x76
	opI32Rotl   = 0x77
	opI32Rotr   = 0x78

	opI64Clz    = 0x79
	opI64Ctz    = 0x7a
	opI64Popcnt = 0x7b
	opI64Add    = 0x7c
	opI64Sub    = 0x7d
	opI64Mul    = 0x7e
	opI64DivS   = 0x7f
	opI64DivU   = 0x80
	opI64RemS   = 0x81
	opI64RemU   = 0x82
	opI64And    = 0x83
	opI64Or     = 0x84
	opI64Xor    = 0x85
	opI64Shl    = 0x86
	opI64ShrS   = 0x87
	opI64ShrU   = 0x88
	opI64Rotl   = 0x89
	opI64Rotr   = 0x8a

	opF32Abs      = 0x8b
	opF32Neg      = 0x8c
	opF32Ceil     = 0x8d
	opF32Floor    = 0x8e
	opF32Trunc    = 0x8f
	opF32Nearest  = 0x90
	opF32Sqrt     = 0x91
	opF32Add      = 0x92
	opF32Sub      = 0x93
	opF32Mul      = 0x94
	opF32Div      = 0x95
	opF32Min      = 0x96
	opF32Max      = 0x97
	opF32Copysign = 0x98

	opF64Abs      = 0x99
	opF64Neg      = 0x9a
	opF64Ceil     = 0x9b
	opF64Floor    = 0x9c
	opF64Trunc    = 0x9d
	opF64Nearest  = 0x9e
	opF64Sqrt     = 0x9f
	opF64Add      = 0xa0
	opF64Sub      = 0xa1
	opF64Mul      = 0xa2
	opF64Div      = 0xa3
	opF64Min      = 0xa4
	opF64Max      = 0xa5
	opF64Copysign = 0xa6

	opI32WrapI64        = 0xa7
	opI32TruncF32S      = 0xa8
	opI32TruncF32U      = 0xa9
	opI32TruncF64S      = 0xaa
	opI32TruncF64U      = 0xab
	opI64ExtendI32S     = 0xac
	opI64ExtendI32U     = 0xad
	opI64TruncF32S      = 0xae
	opI64TruncF32U      = 0xaf
	opI64TruncF64S      = 0xb0
	opI64TruncF64U      = 0xb1
	opF32ConvertI32S    = 0xb2
	opF32ConvertI32U    = 0xb3
	opF32ConvertI64S    = 0xb4
	opF32ConvertI64U    = 0xb5
	opF32DemoteF64      = 0xb6
	opF64ConvertI32S    = 0xb7
	opF64ConvertI32U    = 0xb8
	opF64ConvertI64S    = 0xb9
	opF64ConvertI64U    = 0xba
	opF64PromoteF32     = 0xbb
	opI32ReinterpretF32 = 0xbc
	opI64ReinterpretF64 = 0xbd
	opF32ReinterpretI32 = 0xbe
	opF64ReinterpretI64 = 0xbf

	opI32Extend8S  = 0xc0
	opI32Extend16S = 0xc1
	opI64Extend8S  = 0xc2
	opI64Extend16S = 0xc3
	opI64Extend32S = 0xc4

	opRefNull   = 0xd0
	opRefIsNull = 0xd1
	opRefFunc   = 0xd2

	opMiscPrefix   = 0xfc
	opVectorPrefix = 0xfd
	opAtomicPrefix = 0xfe
	opGCPrefix     = 0xfb
)

// misc-prefixed (0xfc) sub-opcodes: truncation saturation and bulk-memory.
const (
	miscI32TruncSatF32S = 0x00
	miscI32TruncSatF32U = 0x01
	miscI32TruncSatF64S = 0x02
	miscI32TruncSatF64U = 0x03
	miscI64TruncSatF32S = 0x04
	miscI64TruncSatF32U = 0x05
	miscI64TruncSatF64S = 0x06
	miscI64TruncSatF64U = 0x07

	miscMemoryInit = 0x08
	miscDataDrop   = 0x09
	miscMemoryCopy = 0x0a
	miscMemoryFill = 0x0b
	miscTableInit  = 0x0c
	miscElemDrop   = 0x0d
	miscTableCopy  = 0x0e
	miscTableGrow  = 0x0f
	miscTableSize  = 0x10
	miscTableFill  = 0x11
)

// opCatchAll marks a try's catch-all clause (exception-handling proposal);
// it isn't a full opcode of its own in the binary format so much as the
// byte that follows opCatch's position when no tag index is intended, but
// wazerow treats it as a distinct marker byte read where a catch clause is
// expected, mirroring how opElse marks an if's second arm.
const opCatchAll = 0x19

// GC-prefixed (0xfb) sub-opcodes. wazerow implements the struct/array/i31
// core of the proposal; packed-field narrow accessors beyond get_s/get_u
// and the *_default/array.new_data/array.new_elem/array.fill/array.copy/
// br_on_cast_fail family are out of scope (see DESIGN.md).
const (
	gcStructNew  = 0x00
	gcStructGet  = 0x02
	gcStructGetS = 0x03
	gcStructGetU = 0x04
	gcStructSet  = 0x05

	gcArrayNew      = 0x06
	gcArrayNewFixed = 0x08
	gcArrayGet      = 0x0b
	gcArrayGetS     = 0x0c
	gcArrayGetU     = 0x0d
	gcArraySet      = 0x0e
	gcArrayLen      = 0x0f

	gcRefTest     = 0x14
	gcRefTestNull = 0x15
	gcRefCast     = 0x16
	gcRefCastNull = 0x17
	gcBrOnCast    = 0x18

	gcAnyConvertExtern = 0x1a
	gcExternConvertAny = 0x1b
	gcRefI31           = 0x1c
	gcI31GetS          = 0x1d
	gcI31GetU          = 0x1e
)

// Vector (SIMD, 0xfd-prefixed) sub-opcodes. wazerow implements v128.const,
// memory access, and a representative i32x4/f32x4 arithmetic slice; the
// rest of the ~230-opcode SIMD surface (i8x16/i16x8/i64x2/f64x2 lanes,
// shuffle/swizzle, saturating ops, the relaxed-SIMD proposal) is out of
// scope, disclosed in DESIGN.md.
const (
	vecV128Load  = 0x00
	vecV128Store = 0x0b
	vecV128Const = 0x0c

	vecI32x4Splat = 0x11
	vecF32x4Splat = 0x13

	vecI32x4ExtractLane = 0x1b
	vecI32x4ReplaceLane = 0x1c
	vecF32x4ExtractLane = 0x1f
	vecF32x4ReplaceLane = 0x20

	vecI32x4Add = 0xae
	vecI32x4Sub = 0xb1
	vecF32x4Add = 0xe4
	vecF32x4Sub = 0xe5
)

// Atomic (threads proposal, 0xfe-prefixed) sub-opcodes. wazerow implements
// full-width (32/64-bit) loads, stores, read-modify-write ops, compare-
// exchange, fence, and memory.atomic.wait/notify; the narrow 8/16-bit
// partial-width atomic accessors are out of scope (see DESIGN.md).
const (
	atomicNotify = 0x00
	atomicWait32 = 0x01
	atomicWait64 = 0x02
	atomicFence  = 0x03

	atomicI32Load  = 0x10
	atomicI64Load  = 0x11
	atomicI32Store = 0x17
	atomicI64Store = 0x18

	atomicI32RmwAdd = 0x1e
	atomicI64RmwAdd = 0x1f
	atomicI32RmwSub = 0x25
	atomicI64RmwSub = 0x26
	atomicI32RmwAnd = 0x2c
	atomicI64RmwAnd = 0x2d
	atomicI32RmwOr  = 0x33
	atomicI64RmwOr  = 0x34
	atomicI32RmwXor = 0x3a
	atomicI64RmwXor = 0x3b
	atomicI32RmwXchg = 0x41
	atomicI64RmwXchg = 0x42

	atomicI32RmwCmpxchg = 0x48
	atomicI64RmwCmpxchg = 0x49
)
