package binary

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wazerow/wazerow/api"
	"github.com/wazerow/wazerow/internal/wasm"
)

func TestDecodeModule_InvalidMagic(t *testing.T) {
	_, err := DecodeModule([]byte{0x00, 0x61, 0x73, 0x00, 0x01, 0x00, 0x00, 0x00})
	require.Error(t, err)
}

func TestDecodeModule_InvalidVersion(t *testing.T) {
	bin := append(append([]byte{}, Magic...), 0x02, 0x00, 0x00, 0x00)
	_, err := DecodeModule(bin)
	require.Error(t, err)
}

func TestDecodeModule_Empty(t *testing.T) {
	bin := append(append([]byte{}, Magic...), Version...)
	m, err := DecodeModule(bin)
	require.NoError(t, err)
	require.Empty(t, m.TypeSection)
	require.Empty(t, m.FunctionSection)
}

// TestRoundTrip_SimpleModule builds a module with one function type, one
// function exporting "add", and a minimal body, then checks that encoding
// and re-decoding preserves every section.
func TestRoundTrip_SimpleModule(t *testing.T) {
	original := &wasm.Module{
		TypeSection: []*wasm.TypeDefinition{
			{
				Kind: wasm.CompositeTypeKindFunction,
				FunctionType: &wasm.FunctionType{
					Params:  []api.ValueType{api.ValueTypeI32, api.ValueTypeI32},
					Results: []api.ValueType{api.ValueTypeI32},
				},
				SuperType: -1,
				Final:     true,
			},
		},
		FunctionSection: []uint32{0},
		ExportSection: []*wasm.Export{
			{Type: api.ExternTypeFunc, Name: "add", Index: 0},
		},
		CodeSection: []*wasm.Code{
			{
				LocalTypes: nil,
				Body:       []byte{0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b}, // local.get 0; local.get 1; i32.add; end
			},
		},
	}

	encoded := EncodeModule(original)
	decoded, err := DecodeModule(encoded)
	require.NoError(t, err)

	require.Len(t, decoded.TypeSection, 1)
	require.Equal(t, original.TypeSection[0].FunctionType.Params, decoded.TypeSection[0].FunctionType.Params)
	require.Equal(t, original.TypeSection[0].FunctionType.Results, decoded.TypeSection[0].FunctionType.Results)

	require.Equal(t, original.FunctionSection, decoded.FunctionSection)

	require.Len(t, decoded.ExportSection, 1)
	require.Equal(t, "add", decoded.ExportSection[0].Name)
	require.Equal(t, api.ExternTypeFunc, decoded.ExportSection[0].Type)

	require.Len(t, decoded.CodeSection, 1)
	require.Equal(t, original.CodeSection[0].Body, decoded.CodeSection[0].Body)
}

func TestRoundTrip_MemoryAndGlobal(t *testing.T) {
	maxPages := uint32(10)
	original := &wasm.Module{
		MemorySection: []*wasm.Memory{
			{Min: 1, Cap: 1, Max: maxPages, IsMaxEncoded: true, PageSize: wasm.MemoryPageSize},
		},
		GlobalSection: []*wasm.Global{
			{
				Type: wasm.GlobalType{ValType: api.ValueTypeI32, Mutable: true},
				Init: wasm.ConstantExpression{Opcode: wasm.OpcodeConstExprI32Const, Data: []byte{0x2a}},
			},
		},
	}

	encoded := EncodeModule(original)
	decoded, err := DecodeModule(encoded)
	require.NoError(t, err)

	require.Len(t, decoded.MemorySection, 1)
	require.Equal(t, uint32(1), decoded.MemorySection[0].Min)
	require.True(t, decoded.MemorySection[0].IsMaxEncoded)
	require.Equal(t, maxPages, decoded.MemorySection[0].Max)

	require.Len(t, decoded.GlobalSection, 1)
	require.Equal(t, api.ValueTypeI32, decoded.GlobalSection[0].Type.ValType)
	require.True(t, decoded.GlobalSection[0].Type.Mutable)
	require.Equal(t, wasm.OpcodeConstExprI32Const, decoded.GlobalSection[0].Init.Opcode)
}

func TestRoundTrip_ElementSegmentActive(t *testing.T) {
	original := &wasm.Module{
		ElementSection: []*wasm.ElementSegment{
			{
				Type: api.ValueTypeFuncref,
				Mode: wasm.ElementModeActive,
				OffsetExpr: wasm.ConstantExpression{
					Opcode: wasm.OpcodeConstExprI32Const, Data: []byte{0x00},
				},
				Init: []uint32{0, 1, 2},
			},
		},
	}

	encoded := EncodeModule(original)
	decoded, err := DecodeModule(encoded)
	require.NoError(t, err)

	require.Len(t, decoded.ElementSection, 1)
	seg := decoded.ElementSection[0]
	require.Equal(t, wasm.ElementModeActive, seg.Mode)
	require.Equal(t, []uint32{0, 1, 2}, seg.Init)
}

func TestRoundTrip_DataSegmentPassive(t *testing.T) {
	original := &wasm.Module{
		DataSection: []*wasm.DataSegment{
			{Mode: wasm.DataModePassive, Init: []byte("hello")},
		},
	}

	encoded := EncodeModule(original)
	decoded, err := DecodeModule(encoded)
	require.NoError(t, err)

	require.Len(t, decoded.DataSection, 1)
	require.Equal(t, wasm.DataModePassive, decoded.DataSection[0].Mode)
	require.Equal(t, []byte("hello"), decoded.DataSection[0].Init)
}

func TestDecodeCode_LocalsExpanded(t *testing.T) {
	// two i32 locals followed by one i64 local, then a trivial body.
	body := []byte{
		0x02,       // 2 local decls
		0x02, 0x7f, // run of 2 x i32
		0x01, 0x7e, // run of 1 x i64
		0x0b, // end
	}
	bodyWithSize := append(encodeVarUint32Len(len(body)), body...)
	r := bytes.NewReader(bodyWithSize)
	code, err := decodeCode(r)
	require.NoError(t, err)
	require.Equal(t, []api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI64}, code.LocalTypes)
}
