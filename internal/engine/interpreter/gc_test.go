package interpreter

import (
	"testing"

	"github.com/wazerow/wazerow/api"
	"github.com/wazerow/wazerow/internal/wasm"
)

// buildModuleWithTypes is buildModule but prepends extraTypes ahead of the
// function's own FunctionType, for tests whose body references struct/array
// composite type indices via GC opcodes.
func buildModuleWithTypes(t *testing.T, extraTypes []*wasm.TypeDefinition, params, results []api.ValueType, locals []api.ValueType, body []byte) *wasm.Module {
	t.Helper()
	ft := &wasm.FunctionType{Params: params, Results: results}
	types := append(append([]*wasm.TypeDefinition{}, extraTypes...), &wasm.TypeDefinition{FunctionType: ft})
	funcTypeIdx := uint32(len(types) - 1)
	return &wasm.Module{
		TypeSection:     types,
		FunctionSection: []uint32{funcTypeIdx},
		CodeSection:     []*wasm.Code{{LocalTypes: locals, Body: body}},
		ExportSection:   []*wasm.Export{{Type: api.ExternTypeFunc, Name: "run", Index: 0}},
	}
}

// TestInterpreter_structNewGetSet exercises:
//
//	(type $p (struct (field i32) (field i32)))
//	(func (result i32)
//	  (local $s structref)
//	  (local.set $s (struct.new $p (i32.const 10) (i32.const 20)))
//	  (struct.set $p 1 (local.get $s) (i32.const 99))
//	  (struct.get $p 1 (local.get $s)))
func TestInterpreter_structNewGetSet(t *testing.T) {
	structType := &wasm.TypeDefinition{
		Kind: wasm.CompositeTypeKindStruct,
		StructType: &wasm.StructType{Fields: []wasm.FieldType{
			{Kind: wasm.StorageKindValueType, ValueType: api.ValueTypeI32},
			{Kind: wasm.StorageKindValueType, ValueType: api.ValueTypeI32},
		}},
		SuperType: -1,
	}
	body := []byte{
		0x41, 0x0a, // i32.const 10
		0x41, 0x14, // i32.const 20
		0xfb, 0x00, 0x00, // struct.new 0
		0x21, 0x00, // local.set 0 ($s, local index 0 since no params)

		0x20, 0x00, // local.get $s
		0x41, 0x63, // i32.const 99
		0xfb, 0x05, 0x00, 0x01, // struct.set 0 1  (note: struct.set pops value then ref per wasm stack order)
		0x20, 0x00, // local.get $s
		0xfb, 0x02, 0x00, 0x01, // struct.get 0 1
		0x0b,
	}
	module := buildModuleWithTypes(t, []*wasm.TypeDefinition{structType}, nil, []api.ValueType{api.ValueTypeI32},
		[]api.ValueType{api.ValueTypeStruct}, body)
	_, instance := instantiateV3(t, module)

	results := callRun(t, instance)
	if len(results) != 1 || uint32(results[0]) != 99 {
		t.Fatalf("got %v, want [99]", results)
	}
}

// TestInterpreter_arrayNewFixedGetLen exercises:
//
//	(type $a (array i32))
//	(func (result i32)
//	  (local $arr arrayref)
//	  (local.set $arr (array.new_fixed $a 3 (i32.const 7) (i32.const 8) (i32.const 9)))
//	  (i32.add (array.get $a (local.get $arr) (i32.const 2))
//	           (array.len (local.get $arr))))
func TestInterpreter_arrayNewFixedGetLen(t *testing.T) {
	arrayType := &wasm.TypeDefinition{
		Kind:      wasm.CompositeTypeKindArray,
		ArrayType: &wasm.ArrayType{Element: wasm.FieldType{Kind: wasm.StorageKindValueType, ValueType: api.ValueTypeI32}},
		SuperType: -1,
	}
	body := []byte{
		0x41, 0x07, // i32.const 7
		0x41, 0x08, // i32.const 8
		0x41, 0x09, // i32.const 9
		0xfb, 0x08, 0x00, 0x03, // array.new_fixed 0 3
		0x21, 0x00, // local.set 0 ($arr)

		0x20, 0x00, // local.get $arr
		0x41, 0x02, // i32.const 2
		0xfb, 0x0b, 0x00, // array.get 0

		0x20, 0x00, // local.get $arr
		0xfb, 0x0f, // array.len

		0x6a, // i32.add
		0x0b,
	}
	module := buildModuleWithTypes(t, []*wasm.TypeDefinition{arrayType}, nil, []api.ValueType{api.ValueTypeI32},
		[]api.ValueType{api.ValueTypeArray}, body)
	_, instance := instantiateV3(t, module)

	results := callRun(t, instance)
	if len(results) != 1 || uint32(results[0]) != 12 { // element 2 (=9) + len (=3)
		t.Fatalf("got %v, want [12]", results)
	}
}

// TestInterpreter_i31RoundTrip exercises ref.i31 / i31.get_u:
//
//	(func (result i32) (i31.get_u (ref.i31 (i32.const 123))))
func TestInterpreter_i31RoundTrip(t *testing.T) {
	body := []byte{
		0x41, 0x7b, // i32.const 123
		0xfb, 0x1c, // ref.i31
		0xfb, 0x1e, // i31.get_u
		0x0b,
	}
	module := buildModule(t, nil, []api.ValueType{api.ValueTypeI32}, nil, body)
	_, instance := instantiateV3(t, module)

	results := callRun(t, instance)
	if len(results) != 1 || uint32(results[0]) != 123 {
		t.Fatalf("got %v, want [123]", results)
	}
}

// TestInterpreter_refTestConcreteStruct exercises ref.test against a
// concrete struct type:
//
//	(type $p (struct (field i32)))
//	(func (result i32)
//	  (ref.test (ref $p) (struct.new $p (i32.const 1))))
func TestInterpreter_refTestConcreteStruct(t *testing.T) {
	structType := &wasm.TypeDefinition{
		Kind:       wasm.CompositeTypeKindStruct,
		StructType: &wasm.StructType{Fields: []wasm.FieldType{{Kind: wasm.StorageKindValueType, ValueType: api.ValueTypeI32}}},
		SuperType:  -1,
	}
	body := []byte{
		0x41, 0x01, // i32.const 1
		0xfb, 0x00, 0x00, // struct.new 0
		0xfb, 0x14, 0x00, // ref.test 0 (non-null concrete heap type, type index 0)
		0x0b,
	}
	module := buildModuleWithTypes(t, []*wasm.TypeDefinition{structType}, nil, []api.ValueType{api.ValueTypeI32}, nil, body)
	_, instance := instantiateV3(t, module)

	results := callRun(t, instance)
	if len(results) != 1 || uint32(results[0]) != 1 {
		t.Fatalf("got %v, want [1]", results)
	}
}
