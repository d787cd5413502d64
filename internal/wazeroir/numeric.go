package wazeroir

import "github.com/wazerow/wazerow/api"

// numericOpcodeTable maps every plain (unprefixed) numeric opcode to its
// lowered Operation shape. Built once in init rather than as a giant
// switch in compiler.go's step, since the mapping is a pure lookup with no
// operand bytes to decode for any of these opcodes.
var numericOpcodeTable map[byte]Operation

func init() {
	numericOpcodeTable = map[byte]Operation{
		opI32Eqz: {Kind: OperationKindEqz, Type: UnsignedTypeI32},
		opI32Eq:  {Kind: OperationKindEq, Type: UnsignedTypeI32},
		opI32Ne:  {Kind: OperationKindNe, Type: UnsignedTypeI32},
		opI32LtS: {Kind: OperationKindLt, Signed: SignedTypeInt32},
		opI32LtU: {Kind: OperationKindLt, Signed: SignedTypeUint32},
		opI32GtS: {Kind: OperationKindGt, Signed: SignedTypeInt32},
		opI32GtU: {Kind: OperationKindGt, Signed: SignedTypeUint32},
		opI32LeS: {Kind: OperationKindLe, Signed: SignedTypeInt32},
		opI32LeU: {Kind: OperationKindLe, Signed: SignedTypeUint32},
		opI32GeS: {Kind: OperationKindGe, Signed: SignedTypeInt32},
		opI32GeU: {Kind: OperationKindGe, Signed: SignedTypeUint32},

		opI64Eqz: {Kind: OperationKindEqz, Type: UnsignedTypeI64},
		opI64Eq:  {Kind: OperationKindEq, Type: UnsignedTypeI64},
		opI64Ne:  {Kind: OperationKindNe, Type: UnsignedTypeI64},
		opI64LtS: {Kind: OperationKindLt, Signed: SignedTypeInt64},
		opI64LtU: {Kind: OperationKindLt, Signed: SignedTypeUint64},
		opI64GtS: {Kind: OperationKindGt, Signed: SignedTypeInt64},
		opI64GtU: {Kind: OperationKindGt, Signed: SignedTypeUint64},
		opI64LeS: {Kind: OperationKindLe, Signed: SignedTypeInt64},
		opI64LeU: {Kind: OperationKindLe, Signed: SignedTypeUint64},
		opI64GeS: {Kind: OperationKindGe, Signed: SignedTypeInt64},
		opI64GeU: {Kind: OperationKindGe, Signed: SignedTypeUint64},

		opF32Eq: {Kind: OperationKindEq, Type: UnsignedTypeF32},
		opF32Ne: {Kind: OperationKindNe, Type: UnsignedTypeF32},
		opF32Lt: {Kind: OperationKindLt, Signed: SignedTypeFloat32},
		opF32Gt: {Kind: OperationKindGt, Signed: SignedTypeFloat32},
		opF32Le: {Kind: OperationKindLe, Signed: SignedTypeFloat32},
		opF32Ge: {Kind: OperationKindGe, Signed: SignedTypeFloat32},

		opF64Eq: {Kind: OperationKindEq, Type: UnsignedTypeF64},
		opF64Ne: {Kind: OperationKindNe, Type: UnsignedTypeF64},
		opF64Lt: {Kind: OperationKindLt, Signed: SignedTypeFloat64},
		opF64Gt: {Kind: OperationKindGt, Signed: SignedTypeFloat64},
		opF64Le: {Kind: OperationKindLe, Signed: SignedTypeFloat64},
		opF64Ge: {Kind: OperationKindGe, Signed: SignedTypeFloat64},

		opI32Clz:    {Kind: OperationKindClz, Type: UnsignedTypeI32},
		opI32Ctz:    {Kind: OperationKindCtz, Type: UnsignedTypeI32},
		opI32Popcnt: {Kind: OperationKindPopcnt, Type: UnsignedTypeI32},
		opI32Add:    {Kind: OperationKindAdd, Type: UnsignedTypeI32},
		opI32Sub:    {Kind: OperationKindSub, Type: UnsignedTypeI32},
		opI32Mul:    {Kind: OperationKindMul, Type: UnsignedTypeI32},
		opI32DivS:   {Kind: OperationKindDiv, Signed: SignedTypeInt32},
		opI32DivU:   {Kind: OperationKindDiv, Signed: SignedTypeUint32},
		opI32RemS:   {Kind: OperationKindRem, Signed: SignedTypeInt32},
		opI32RemU:   {Kind: OperationKindRem, Signed: SignedTypeUint32},
		opI32And:    {Kind: OperationKindAnd, Type: UnsignedTypeI32},
		opI32Or:     {Kind: OperationKindOr, Type: UnsignedTypeI32},
		opI32Xor:    {Kind: OperationKindXor, Type: UnsignedTypeI32},
		opI32Shl:    {Kind: OperationKindShl, Type: UnsignedTypeI32},
		opI32ShrS:   {Kind: OperationKindShr, Signed: SignedTypeInt32},
		opI32ShrU:   {Kind: OperationKindShr, Signed: SignedTypeUint32},
		opI32Rotl:   {Kind: OperationKindRotl, Type: UnsignedTypeI32},
		opI32Rotr:   {Kind: OperationKindRotr, Type: UnsignedTypeI32},

		opI64Clz:    {Kind: OperationKindClz, Type: UnsignedTypeI64},
		opI64Ctz:    {Kind: OperationKindCtz, Type: UnsignedTypeI64},
		opI64Popcnt: {Kind: OperationKindPopcnt, Type: UnsignedTypeI64},
		opI64Add:    {Kind: OperationKindAdd, Type: UnsignedTypeI64},
		opI64Sub:    {Kind: OperationKindSub, Type: UnsignedTypeI64},
		opI64Mul:    {Kind: OperationKindMul, Type: UnsignedTypeI64},
		opI64DivS:   {Kind: OperationKindDiv, Signed: SignedTypeInt64},
		opI64DivU:   {Kind: OperationKindDiv, Signed: SignedTypeUint64},
		opI64RemS:   {Kind: OperationKindRem, Signed: SignedTypeInt64},
		opI64RemU:   {Kind: OperationKindRem, Signed: SignedTypeUint64},
		opI64And:    {Kind: OperationKindAnd, Type: UnsignedTypeI64},
		opI64Or:     {Kind: OperationKindOr, Type: UnsignedTypeI64},
		opI64Xor:    {Kind: OperationKindXor, Type: UnsignedTypeI64},
		opI64Shl:    {Kind: OperationKindShl, Type: UnsignedTypeI64},
		opI64ShrS:   {Kind: OperationKindShr, Signed: SignedTypeInt64},
		opI64ShrU:   {Kind: OperationKindShr, Signed: SignedTypeUint64},
		opI64Rotl:   {Kind: OperationKindRotl, Type: UnsignedTypeI64},
		opI64Rotr:   {Kind: OperationKindRotr, Type: UnsignedTypeI64},

		opF32Abs:      {Kind: OperationKindAbs, Type: UnsignedTypeF32},
		opF32Neg:      {Kind: OperationKindNeg, Type: UnsignedTypeF32},
		opF32Ceil:     {Kind: OperationKindCeil, Type: UnsignedTypeF32},
		opF32Floor:    {Kind: OperationKindFloor, Type: UnsignedTypeF32},
		opF32Trunc:    {Kind: OperationKindTrunc, Type: UnsignedTypeF32},
		opF32Nearest:  {Kind: OperationKindNearest, Type: UnsignedTypeF32},
		opF32Sqrt:     {Kind: OperationKindSqrt, Type: UnsignedTypeF32},
		opF32Add:      {Kind: OperationKindAdd, Type: UnsignedTypeF32},
		opF32Sub:      {Kind: OperationKindSub, Type: UnsignedTypeF32},
		opF32Mul:      {Kind: OperationKindMul, Type: UnsignedTypeF32},
		opF32Div:      {Kind: OperationKindDiv, Signed: SignedTypeFloat32},
		opF32Min:      {Kind: OperationKindMin, Type: UnsignedTypeF32},
		opF32Max:      {Kind: OperationKindMax, Type: UnsignedTypeF32},
		opF32Copysign: {Kind: OperationKindCopysign, Type: UnsignedTypeF32},

		opF64Abs:      {Kind: OperationKindAbs, Type: UnsignedTypeF64},
		opF64Neg:      {Kind: OperationKindNeg, Type: UnsignedTypeF64},
		opF64Ceil:     {Kind: OperationKindCeil, Type: UnsignedTypeF64},
		opF64Floor:    {Kind: OperationKindFloor, Type: UnsignedTypeF64},
		opF64Trunc:    {Kind: OperationKindTrunc, Type: UnsignedTypeF64},
		opF64Nearest:  {Kind: OperationKindNearest, Type: UnsignedTypeF64},
		opF64Sqrt:     {Kind: OperationKindSqrt, Type: UnsignedTypeF64},
		opF64Add:      {Kind: OperationKindAdd, Type: UnsignedTypeF64},
		opF64Sub:      {Kind: OperationKindSub, Type: UnsignedTypeF64},
		opF64Mul:      {Kind: OperationKindMul, Type: UnsignedTypeF64},
		opF64Div:      {Kind: OperationKindDiv, Signed: SignedTypeFloat64},
		opF64Min:      {Kind: OperationKindMin, Type: UnsignedTypeF64},
		opF64Max:      {Kind: OperationKindMax, Type: UnsignedTypeF64},
		opF64Copysign: {Kind: OperationKindCopysign, Type: UnsignedTypeF64},

		opI32WrapI64:        {Kind: OperationKindConvert, B1: uint64(ConversionI32WrapI64)},
		opI32TruncF32S:      {Kind: OperationKindConvert, B1: uint64(ConversionI32TruncF32S)},
		opI32TruncF32U:      {Kind: OperationKindConvert, B1: uint64(ConversionI32TruncF32U)},
		opI32TruncF64S:      {Kind: OperationKindConvert, B1: uint64(ConversionI32TruncF64S)},
		opI32TruncF64U:      {Kind: OperationKindConvert, B1: uint64(ConversionI32TruncF64U)},
		opI64ExtendI32S:     {Kind: OperationKindExtend, B1: 1},
		opI64ExtendI32U:     {Kind: OperationKindExtend, B1: 0},
		opI64TruncF32S:      {Kind: OperationKindConvert, B1: uint64(ConversionI64TruncF32S)},
		opI64TruncF32U:      {Kind: OperationKindConvert, B1: uint64(ConversionI64TruncF32U)},
		opI64TruncF64S:      {Kind: OperationKindConvert, B1: uint64(ConversionI64TruncF64S)},
		opI64TruncF64U:      {Kind: OperationKindConvert, B1: uint64(ConversionI64TruncF64U)},
		opF32ConvertI32S:    {Kind: OperationKindConvert, B1: uint64(ConversionF32ConvertI32S)},
		opF32ConvertI32U:    {Kind: OperationKindConvert, B1: uint64(ConversionF32ConvertI32U)},
		opF32ConvertI64S:    {Kind: OperationKindConvert, B1: uint64(ConversionF32ConvertI64S)},
		opF32ConvertI64U:    {Kind: OperationKindConvert, B1: uint64(ConversionF32ConvertI64U)},
		opF32DemoteF64:      {Kind: OperationKindConvert, B1: uint64(ConversionF32DemoteF64)},
		opF64ConvertI32S:    {Kind: OperationKindConvert, B1: uint64(ConversionF64ConvertI32S)},
		opF64ConvertI32U:    {Kind: OperationKindConvert, B1: uint64(ConversionF64ConvertI32U)},
		opF64ConvertI64S:    {Kind: OperationKindConvert, B1: uint64(ConversionF64ConvertI64S)},
		opF64ConvertI64U:    {Kind: OperationKindConvert, B1: uint64(ConversionF64ConvertI64U)},
		opF64PromoteF32:     {Kind: OperationKindConvert, B1: uint64(ConversionF64PromoteF32)},
		opI32ReinterpretF32: {Kind: OperationKindReinterpret, B1: uint64(ConversionI32ReinterpretF32)},
		opI64ReinterpretF64: {Kind: OperationKindReinterpret, B1: uint64(ConversionI64ReinterpretF64)},
		opF32ReinterpretI32: {Kind: OperationKindReinterpret, B1: uint64(ConversionF32ReinterpretI32)},
		opF64ReinterpretI64: {Kind: OperationKindReinterpret, B1: uint64(ConversionF64ReinterpretI64)},

		opI32Extend8S:  {Kind: OperationKindSignExtend32From8},
		opI32Extend16S: {Kind: OperationKindSignExtend32From16},
		opI64Extend8S:  {Kind: OperationKindSignExtend64From8},
		opI64Extend16S: {Kind: OperationKindSignExtend64From16},
		opI64Extend32S: {Kind: OperationKindSignExtend64From32},
	}
}

func unsignedValueType(t UnsignedType) api.ValueType {
	switch t {
	case UnsignedTypeI64:
		return api.ValueTypeI64
	case UnsignedTypeF32:
		return api.ValueTypeF32
	case UnsignedTypeF64:
		return api.ValueTypeF64
	default:
		return api.ValueTypeI32
	}
}

func signedValueType(t SignedType) api.ValueType {
	switch t {
	case SignedTypeInt64, SignedTypeUint64:
		return api.ValueTypeI64
	case SignedTypeFloat32:
		return api.ValueTypeF32
	case SignedTypeFloat64:
		return api.ValueTypeF64
	default:
		return api.ValueTypeI32
	}
}

// conversionSrcDst maps a ConversionKind to the operand it pops and the
// result it pushes, indexed by the ConversionKind's own byte value.
var conversionSrcDst = [...]struct{ src, dst api.ValueType }{
	ConversionI32TruncF32S:      {api.ValueTypeF32, api.ValueTypeI32},
	ConversionI32TruncF32U:      {api.ValueTypeF32, api.ValueTypeI32},
	ConversionI32TruncF64S:      {api.ValueTypeF64, api.ValueTypeI32},
	ConversionI32TruncF64U:      {api.ValueTypeF64, api.ValueTypeI32},
	ConversionI64TruncF32S:      {api.ValueTypeF32, api.ValueTypeI64},
	ConversionI64TruncF32U:      {api.ValueTypeF32, api.ValueTypeI64},
	ConversionI64TruncF64S:      {api.ValueTypeF64, api.ValueTypeI64},
	ConversionI64TruncF64U:      {api.ValueTypeF64, api.ValueTypeI64},
	ConversionF32ConvertI32S:    {api.ValueTypeI32, api.ValueTypeF32},
	ConversionF32ConvertI32U:    {api.ValueTypeI32, api.ValueTypeF32},
	ConversionF32ConvertI64S:    {api.ValueTypeI64, api.ValueTypeF32},
	ConversionF32ConvertI64U:    {api.ValueTypeI64, api.ValueTypeF32},
	ConversionF32DemoteF64:      {api.ValueTypeF64, api.ValueTypeF32},
	ConversionF64ConvertI32S:    {api.ValueTypeI32, api.ValueTypeF64},
	ConversionF64ConvertI32U:    {api.ValueTypeI32, api.ValueTypeF64},
	ConversionF64ConvertI64S:    {api.ValueTypeI64, api.ValueTypeF64},
	ConversionF64ConvertI64U:    {api.ValueTypeI64, api.ValueTypeF64},
	ConversionF64PromoteF32:     {api.ValueTypeF32, api.ValueTypeF64},
	ConversionI32WrapI64:        {api.ValueTypeI64, api.ValueTypeI32},
	ConversionI32ReinterpretF32: {api.ValueTypeF32, api.ValueTypeI32},
	ConversionI64ReinterpretF64: {api.ValueTypeF64, api.ValueTypeI64},
	ConversionF32ReinterpretI32: {api.ValueTypeI32, api.ValueTypeF32},
	ConversionF64ReinterpretI64: {api.ValueTypeI64, api.ValueTypeF64},
	ConversionI32TruncSatF32S:   {api.ValueTypeF32, api.ValueTypeI32},
	ConversionI32TruncSatF32U:   {api.ValueTypeF32, api.ValueTypeI32},
	ConversionI32TruncSatF64S:   {api.ValueTypeF64, api.ValueTypeI32},
	ConversionI32TruncSatF64U:   {api.ValueTypeF64, api.ValueTypeI32},
	ConversionI64TruncSatF32S:   {api.ValueTypeF32, api.ValueTypeI64},
	ConversionI64TruncSatF32U:   {api.ValueTypeF32, api.ValueTypeI64},
	ConversionI64TruncSatF64S:   {api.ValueTypeF64, api.ValueTypeI64},
	ConversionI64TruncSatF64U:   {api.ValueTypeF64, api.ValueTypeI64},
}

// numericArity reports the operand types op pops (in push order, so the
// caller pops them back to front) and the single result type it pushes, for
// every Operation numericOpcodeTable can produce. Isolated from
// numericOpcodeTable itself since the lowering and the type-checking are
// different concerns that happen to share the same opcode-to-shape mapping.
func numericArity(op Operation) (pops []api.ValueType, result api.ValueType) {
	switch op.Kind {
	case OperationKindEqz:
		t := unsignedValueType(op.Type)
		return []api.ValueType{t}, api.ValueTypeI32
	case OperationKindEq, OperationKindNe:
		t := unsignedValueType(op.Type)
		return []api.ValueType{t, t}, api.ValueTypeI32
	case OperationKindLt, OperationKindGt, OperationKindLe, OperationKindGe:
		t := signedValueType(op.Signed)
		return []api.ValueType{t, t}, api.ValueTypeI32
	case OperationKindClz, OperationKindCtz, OperationKindPopcnt,
		OperationKindAbs, OperationKindNeg, OperationKindCeil, OperationKindFloor,
		OperationKindTrunc, OperationKindNearest, OperationKindSqrt:
		t := unsignedValueType(op.Type)
		return []api.ValueType{t}, t
	case OperationKindAdd, OperationKindSub, OperationKindMul,
		OperationKindAnd, OperationKindOr, OperationKindXor,
		OperationKindShl, OperationKindRotl, OperationKindRotr,
		OperationKindMin, OperationKindMax, OperationKindCopysign:
		t := unsignedValueType(op.Type)
		return []api.ValueType{t, t}, t
	case OperationKindDiv, OperationKindRem, OperationKindShr:
		t := signedValueType(op.Signed)
		return []api.ValueType{t, t}, t
	case OperationKindConvert:
		c := conversionSrcDst[ConversionKind(op.B1)]
		return []api.ValueType{c.src}, c.dst
	case OperationKindReinterpret:
		c := conversionSrcDst[ConversionKind(op.B1)]
		return []api.ValueType{c.src}, c.dst
	case OperationKindExtend:
		return []api.ValueType{api.ValueTypeI32}, api.ValueTypeI64
	case OperationKindSignExtend32From8, OperationKindSignExtend32From16:
		return []api.ValueType{api.ValueTypeI32}, api.ValueTypeI32
	case OperationKindSignExtend64From8, OperationKindSignExtend64From16, OperationKindSignExtend64From32:
		return []api.ValueType{api.ValueTypeI64}, api.ValueTypeI64
	default:
		return nil, valueTypeUnknown
	}
}
