package wazero

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wazerow/wazerow/api"
	"github.com/wazerow/wazerow/internal/wasm"
	"github.com/wazerow/wazerow/internal/wasm/binary"
)

// addModule encodes a single-function module exporting "add": (func (param
// i32 i32) (result i32) (i32.add (local.get 0) (local.get 1))).
func addModuleBinary() []byte {
	ft := &wasm.FunctionType{Params: []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, Results: []api.ValueType{api.ValueTypeI32}}
	m := &wasm.Module{
		TypeSection:     []*wasm.TypeDefinition{{FunctionType: ft}},
		FunctionSection: []uint32{0},
		CodeSection: []*wasm.Code{{Body: []byte{
			0x20, 0x00, // local.get 0
			0x20, 0x01, // local.get 1
			0x6a, // i32.add
			0x0b, // end
		}}},
		ExportSection: []*wasm.Export{{Type: api.ExternTypeFunc, Name: "add", Index: 0}},
	}
	return binary.EncodeModule(m)
}

func TestRuntime_InstantiateModuleFromBinary(t *testing.T) {
	ctx := context.Background()
	r := NewRuntime(ctx)
	defer r.Close(ctx)

	mod, err := r.InstantiateModuleFromBinary(ctx, addModuleBinary())
	require.NoError(t, err)

	results, err := mod.ExportedFunction("add").Call(ctx, 1, 2)
	require.NoError(t, err)
	require.Equal(t, []uint64{3}, results)
}

func TestRuntime_CompileModuleThenInstantiateTwice(t *testing.T) {
	ctx := context.Background()
	r := NewRuntime(ctx)
	defer r.Close(ctx)

	compiled, err := r.CompileModule(ctx, addModuleBinary())
	require.NoError(t, err)

	one, err := r.InstantiateModule(ctx, compiled, NewModuleConfig().WithName("one"))
	require.NoError(t, err)
	two, err := r.InstantiateModule(ctx, compiled, NewModuleConfig().WithName("two"))
	require.NoError(t, err)

	require.Equal(t, "one", one.Name())
	require.Equal(t, "two", two.Name())

	results, err := two.ExportedFunction("add").Call(ctx, 10, 32)
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, results)
}

func TestRuntime_InstantiateModule_DuplicateNameFails(t *testing.T) {
	ctx := context.Background()
	r := NewRuntime(ctx)
	defer r.Close(ctx)

	compiled, err := r.CompileModule(ctx, addModuleBinary())
	require.NoError(t, err)

	_, err = r.InstantiateModule(ctx, compiled, NewModuleConfig().WithName("dup"))
	require.NoError(t, err)

	_, err = r.InstantiateModule(ctx, compiled, NewModuleConfig().WithName("dup"))
	require.Error(t, err)
}

func TestRuntime_Module(t *testing.T) {
	ctx := context.Background()
	r := NewRuntime(ctx)
	defer r.Close(ctx)

	require.Nil(t, r.Module("absent"))

	compiled, err := r.CompileModule(ctx, addModuleBinary())
	require.NoError(t, err)
	_, err = r.InstantiateModule(ctx, compiled, NewModuleConfig().WithName("present"))
	require.NoError(t, err)

	require.NotNil(t, r.Module("present"))
}

func TestRuntime_Close_ClosesInstantiatedModules(t *testing.T) {
	ctx := context.Background()
	r := NewRuntime(ctx)

	compiled, err := r.CompileModule(ctx, addModuleBinary())
	require.NoError(t, err)
	_, err = r.InstantiateModule(ctx, compiled, NewModuleConfig().WithName("m"))
	require.NoError(t, err)
	require.NotNil(t, r.Module("m"))

	require.NoError(t, r.Close(ctx))
	require.Nil(t, r.Module("m"))
}

func TestRuntime_CompileModule_InvalidBinary(t *testing.T) {
	ctx := context.Background()
	r := NewRuntime(ctx)
	defer r.Close(ctx)

	_, err := r.CompileModule(ctx, []byte("not wasm"))
	require.Error(t, err)
}

func TestRuntime_CompileModule_MemoryDefaultsToConfiguredLimit(t *testing.T) {
	ctx := context.Background()
	r := NewRuntimeWithConfig(ctx, NewRuntimeConfig().WithMemoryLimitPages(5))

	m := &wasm.Module{MemorySection: []*wasm.Memory{{Min: 1}}}
	compiled, err := r.CompileModule(ctx, binary.EncodeModule(m))
	require.NoError(t, err)

	mem := compiled.module.MemorySection[0]
	require.Equal(t, uint32(5), mem.Max)
}
