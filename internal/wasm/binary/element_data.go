package binary

import (
	"bytes"
	"fmt"

	"github.com/wazerow/wazerow/api"
	"github.com/wazerow/wazerow/internal/wasm"
)

func decodeElementSection(r *bytes.Reader) ([]*wasm.ElementSegment, error) {
	count, err := readUint32(r)
	if err != nil {
		return nil, fmt.Errorf("read element count: %w", err)
	}
	out := make([]*wasm.ElementSegment, count)
	for i := range out {
		seg, err := decodeElementSegment(r)
		if err != nil {
			return nil, fmt.Errorf("element[%d]: %w", i, err)
		}
		out[i] = seg
	}
	return out, nil
}

// decodeElementSegment decodes one element segment. The binary format
// defines eight legal flag values (0-7); rather than derive behavior from
// individual bits, each is handled explicitly since they don't all follow
// the same bit-to-behavior mapping (flags 0 and 4 omit the elemkind/reftype
// byte that every other flag carries).
func decodeElementSegment(r *bytes.Reader) (*wasm.ElementSegment, error) {
	flag, err := readUint32(r)
	if err != nil {
		return nil, err
	}

	seg := &wasm.ElementSegment{Type: api.ValueTypeFuncref}
	useExprForm := false

	switch flag {
	case 0:
		seg.Mode = wasm.ElementModeActive
		if seg.OffsetExpr, err = decodeConstantExpression(r); err != nil {
			return nil, err
		}
	case 1:
		seg.Mode = wasm.ElementModePassive
		if _, err = r.ReadByte(); err != nil { // elemkind
			return nil, err
		}
	case 2:
		seg.Mode = wasm.ElementModeActive
		if seg.TableIndex, err = readUint32(r); err != nil {
			return nil, err
		}
		if seg.OffsetExpr, err = decodeConstantExpression(r); err != nil {
			return nil, err
		}
		if _, err = r.ReadByte(); err != nil { // elemkind
			return nil, err
		}
	case 3:
		seg.Mode = wasm.ElementModeDeclarative
		if _, err = r.ReadByte(); err != nil { // elemkind
			return nil, err
		}
	case 4:
		seg.Mode = wasm.ElementModeActive
		useExprForm = true
		if seg.OffsetExpr, err = decodeConstantExpression(r); err != nil {
			return nil, err
		}
	case 5:
		seg.Mode = wasm.ElementModePassive
		useExprForm = true
		if seg.Type, err = decodeValueType(r); err != nil {
			return nil, err
		}
	case 6:
		seg.Mode = wasm.ElementModeActive
		useExprForm = true
		if seg.TableIndex, err = readUint32(r); err != nil {
			return nil, err
		}
		if seg.OffsetExpr, err = decodeConstantExpression(r); err != nil {
			return nil, err
		}
		if seg.Type, err = decodeValueType(r); err != nil {
			return nil, err
		}
	case 7:
		seg.Mode = wasm.ElementModeDeclarative
		useExprForm = true
		if seg.Type, err = decodeValueType(r); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("invalid element segment flag: %d", flag)
	}

	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	if useExprForm {
		seg.InitExprs = make([]wasm.ConstantExpression, n)
		for i := range seg.InitExprs {
			seg.InitExprs[i], err = decodeConstantExpression(r)
			if err != nil {
				return nil, err
			}
		}
		seg.UsesExprForm = true
	} else {
		seg.Init = make([]uint32, n)
		for i := range seg.Init {
			seg.Init[i], err = readUint32(r)
			if err != nil {
				return nil, err
			}
		}
	}
	return seg, nil
}

func decodeDataSection(r *bytes.Reader) ([]*wasm.DataSegment, error) {
	count, err := readUint32(r)
	if err != nil {
		return nil, fmt.Errorf("read data count: %w", err)
	}
	out := make([]*wasm.DataSegment, count)
	for i := range out {
		seg, err := decodeDataSegment(r)
		if err != nil {
			return nil, fmt.Errorf("data[%d]: %w", i, err)
		}
		out[i] = seg
	}
	return out, nil
}

func decodeDataSegment(r *bytes.Reader) (*wasm.DataSegment, error) {
	flag, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	seg := &wasm.DataSegment{}
	switch flag {
	case 0:
		seg.Mode = wasm.DataModeActive
		seg.OffsetExpr, err = decodeConstantExpression(r)
	case 1:
		seg.Mode = wasm.DataModePassive
	case 2:
		seg.Mode = wasm.DataModeActive
		seg.MemoryIndex, err = readUint32(r)
		if err == nil {
			seg.OffsetExpr, err = decodeConstantExpression(r)
		}
	default:
		return nil, fmt.Errorf("invalid data segment flag: %d", flag)
	}
	if err != nil {
		return nil, err
	}
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := r.Read(buf); err != nil && n > 0 {
		return nil, fmt.Errorf("read data bytes: %w", err)
	}
	seg.Init = buf
	return seg, nil
}
