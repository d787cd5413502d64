package binary

import (
	"bytes"
	"fmt"
	"io"

	"github.com/wazerow/wazerow/internal/leb128"
	"github.com/wazerow/wazerow/internal/wasm"
)

const (
	opcodeI32Const   = 0x41
	opcodeI64Const   = 0x42
	opcodeF32Const   = 0x43
	opcodeF64Const   = 0x44
	opcodeRefNull    = 0xd0
	opcodeRefFunc    = 0xd2
	opcodeGlobalGet  = 0x23
	opcodeEnd        = 0x0b
	opcodeGCPrefix   = 0xfb
	opcodeVectorPrefix = 0xfd
	gcOpStructNew      = 0x00
	gcOpArrayNewFixed  = 0x08
	gcOpExternConvertAny = 0x1b
	gcOpAnyConvertExtern = 0x1a
	vecOpV128Const     = 0x0c
)

// decodeConstantExpression decodes one constant expression, terminated by
// opcodeEnd, returning it in the flattened representation wasm.ConstantExpression
// stores (opcode plus raw operand bytes exactly as they appeared).
func decodeConstantExpression(r *bytes.Reader) (wasm.ConstantExpression, error) {
	op, err := r.ReadByte()
	if err != nil {
		return wasm.ConstantExpression{}, fmt.Errorf("read const expr opcode: %w", err)
	}

	var out wasm.ConstantExpression
	var operand bytes.Buffer

	switch op {
	case opcodeI32Const:
		v, n, err := leb128.DecodeInt32(r)
		if err != nil {
			return out, err
		}
		operand.Write(leb128.EncodeInt32(v))
		_ = n
		out.Opcode = wasm.OpcodeConstExprI32Const
	case opcodeI64Const:
		v, _, err := leb128.DecodeInt64(r)
		if err != nil {
			return out, err
		}
		operand.Write(leb128.EncodeInt64(v))
		out.Opcode = wasm.OpcodeConstExprI64Const
	case opcodeF32Const:
		var buf [4]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return out, fmt.Errorf("read f32 const: %w", err)
		}
		operand.Write(buf[:])
		out.Opcode = wasm.OpcodeConstExprF32Const
	case opcodeF64Const:
		var buf [8]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return out, fmt.Errorf("read f64 const: %w", err)
		}
		operand.Write(buf[:])
		out.Opcode = wasm.OpcodeConstExprF64Const
	case opcodeGlobalGet:
		idx, err := readUint32(r)
		if err != nil {
			return out, err
		}
		operand.Write(leb128.EncodeUint32(idx))
		out.Opcode = wasm.OpcodeConstExprGlobalGet
	case opcodeRefNull:
		if _, err := decodeValueType(r); err != nil {
			return out, err
		}
		out.Opcode = wasm.OpcodeConstExprRefNull
	case opcodeRefFunc:
		idx, err := readUint32(r)
		if err != nil {
			return out, err
		}
		operand.Write(leb128.EncodeUint32(idx))
		out.Opcode = wasm.OpcodeConstExprRefFunc
	case opcodeVectorPrefix:
		sub, err := readUint32(r)
		if err != nil {
			return out, err
		}
		if sub == vecOpV128Const {
			var buf [16]byte
			if _, err := io.ReadFull(r, buf[:]); err != nil {
				return out, fmt.Errorf("read v128 const: %w", err)
			}
			operand.Write(buf[:])
		}
		out.Opcode = wasm.OpcodeConstExprV128Const
	case opcodeGCPrefix:
		sub, err := readUint32(r)
		if err != nil {
			return out, err
		}
		switch sub {
		case gcOpStructNew:
			idx, err := readUint32(r)
			if err != nil {
				return out, err
			}
			operand.Write(leb128.EncodeUint32(idx))
			out.Opcode = wasm.OpcodeConstExprStructNew
		case gcOpExternConvertAny:
			out.Opcode = wasm.OpcodeConstExprExternConvertAny
		case gcOpAnyConvertExtern:
			out.Opcode = wasm.OpcodeConstExprAnyConvertExtern
		default:
			return out, fmt.Errorf("unsupported gc const expr opcode: %#x", sub)
		}
	default:
		return out, fmt.Errorf("invalid const expr opcode: %#x", op)
	}

	end, err := r.ReadByte()
	if err != nil {
		return out, fmt.Errorf("read const expr end: %w", err)
	}
	if end != opcodeEnd {
		return out, fmt.Errorf("const expr not terminated by 0x0b, got %#x", end)
	}

	out.Data = operand.Bytes()
	return out, nil
}

func encodeConstantExpression(e wasm.ConstantExpression) []byte {
	var b bytes.Buffer
	switch e.Opcode {
	case wasm.OpcodeConstExprI32Const:
		b.WriteByte(opcodeI32Const)
	case wasm.OpcodeConstExprI64Const:
		b.WriteByte(opcodeI64Const)
	case wasm.OpcodeConstExprF32Const:
		b.WriteByte(opcodeF32Const)
	case wasm.OpcodeConstExprF64Const:
		b.WriteByte(opcodeF64Const)
	case wasm.OpcodeConstExprGlobalGet:
		b.WriteByte(opcodeGlobalGet)
	case wasm.OpcodeConstExprRefNull:
		b.WriteByte(opcodeRefNull)
	case wasm.OpcodeConstExprRefFunc:
		b.WriteByte(opcodeRefFunc)
	case wasm.OpcodeConstExprV128Const:
		b.WriteByte(opcodeVectorPrefix)
		b.Write(leb128.EncodeUint32(vecOpV128Const))
	case wasm.OpcodeConstExprStructNew:
		b.WriteByte(opcodeGCPrefix)
		b.Write(leb128.EncodeUint32(gcOpStructNew))
	case wasm.OpcodeConstExprExternConvertAny:
		b.WriteByte(opcodeGCPrefix)
		b.Write(leb128.EncodeUint32(gcOpExternConvertAny))
	case wasm.OpcodeConstExprAnyConvertExtern:
		b.WriteByte(opcodeGCPrefix)
		b.Write(leb128.EncodeUint32(gcOpAnyConvertExtern))
	}
	b.Write(e.Data)
	b.WriteByte(opcodeEnd)
	return b.Bytes()
}
