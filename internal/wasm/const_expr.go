package wasm

import (
	"encoding/binary"
	"io"

	"github.com/wazerow/wazerow/internal/leb128"
)

// evalConstExpr evaluates a ConstantExpression against an already-partially
// initialized ModuleInstance (its Globals/Functions built so far; neither
// this function nor the validator checks that a global.get index names an
// earlier, already-resolved global). It returns the raw low/high 64-bit
// encoding of the result (high is only meaningful for v128).
func evalConstExpr(instance *ModuleInstance, e ConstantExpression) (lo, hi uint64) {
	r := byteReader{b: e.Data}
	switch e.Opcode {
	case OpcodeConstExprI32Const:
		v, _, _ := leb128.DecodeInt32(&r)
		return uint64(uint32(v)), 0
	case OpcodeConstExprI64Const:
		v, _, _ := leb128.DecodeInt64(&r)
		return uint64(v), 0
	case OpcodeConstExprF32Const:
		return uint64(binary.LittleEndian.Uint32(e.Data)), 0
	case OpcodeConstExprF64Const:
		return binary.LittleEndian.Uint64(e.Data), 0
	case OpcodeConstExprV128Const:
		return binary.LittleEndian.Uint64(e.Data[0:8]), binary.LittleEndian.Uint64(e.Data[8:16])
	case OpcodeConstExprGlobalGet:
		idx, _, _ := leb128.DecodeUint32(&r)
		g := instance.Globals[idx]
		return g.Val, g.ValHi
	case OpcodeConstExprRefNull:
		return uint64(NullRef), 0
	case OpcodeConstExprRefFunc:
		idx, _, _ := leb128.DecodeUint32(&r)
		return uint64(instance.funcRef(idx)), 0
	case OpcodeConstExprStructNew, OpcodeConstExprArrayNew, OpcodeConstExprArrayNewFixed:
		// GC constant initializers: the decoder accepts exactly one
		// instruction per const-expr (see internal/wasm/binary), so no
		// field or element operand values reach this point, and each of
		// these opcodes yields a struct object with no fields.
		idx, _, _ := leb128.DecodeUint32(&r)
		return uint64(instance.Store.Heap.NewStruct(idx, nil)), 0
	case OpcodeConstExprExternConvertAny, OpcodeConstExprAnyConvertExtern:
		idx, _, _ := leb128.DecodeUint32(&r)
		g := instance.Globals[idx]
		return g.Val, 0
	}
	return 0, 0
}

// byteReader adapts a []byte to io.ByteReader for leb128 decoding without
// allocating a bytes.Reader.
type byteReader struct {
	b   []byte
	pos int
}

func (r *byteReader) ReadByte() (byte, error) {
	if r.pos >= len(r.b) {
		return 0, io.EOF
	}
	b := r.b[r.pos]
	r.pos++
	return b, nil
}
