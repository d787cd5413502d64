package wazero

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wazerow/wazerow/api"
)

func TestHostModuleBuilder_WithFunc(t *testing.T) {
	ctx := context.Background()
	r := NewRuntime(ctx)
	defer r.Close(ctx)

	add := func(ctx context.Context, x, y uint32) uint32 { return x + y }

	env, err := r.NewHostModuleBuilder("env").
		NewFunctionBuilder().WithFunc(add).Export("add").
		Instantiate(ctx)
	require.NoError(t, err)

	results, err := env.ExportedFunction("add").Call(ctx, 1, 41)
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, results)
}

func TestHostModuleBuilder_WithGoFunction(t *testing.T) {
	ctx := context.Background()
	r := NewRuntime(ctx)
	defer r.Close(ctx)

	double := api.GoFunc(func(ctx context.Context, stack []uint64) {
		stack[0] = uint64(uint32(stack[0]) * 2)
	})

	env, err := r.NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithGoFunction(double, []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}).
		Export("double").
		Instantiate(ctx)
	require.NoError(t, err)

	results, err := env.ExportedFunction("double").Call(ctx, 21)
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, results)
}

func TestHostModuleBuilder_WithGoModuleFunction_Instantiates(t *testing.T) {
	ctx := context.Background()
	r := NewRuntime(ctx)
	defer r.Close(ctx)

	readI32 := api.GoModuleFunc(func(ctx context.Context, m api.Module, stack []uint64) {
		offset := uint32(stack[0])
		v, ok := m.Memory().ReadUint32Le(ctx, offset)
		if !ok {
			panic("out of bounds")
		}
		stack[0] = uint64(v)
	})

	_, err := r.NewHostModuleBuilder("env").
		ExportMemory("memory", 1).
		NewFunctionBuilder().
		WithGoModuleFunction(readI32, []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}).
		Export("read_i32").
		Instantiate(ctx)
	require.NoError(t, err)
}

func TestHostModuleBuilder_ExportMemoryWithMax_ExceedsRuntimeLimit(t *testing.T) {
	ctx := context.Background()
	r := NewRuntimeWithConfig(ctx, NewRuntimeConfig().WithMemoryLimitPages(2))
	defer r.Close(ctx)

	_, err := r.NewHostModuleBuilder("env").
		ExportMemoryWithMax("memory", 1, 10).
		Compile(ctx)
	require.Error(t, err)
}

func TestHostModuleBuilder_WithName(t *testing.T) {
	ctx := context.Background()
	r := NewRuntime(ctx)
	defer r.Close(ctx)

	fn := func() uint32 { return 7 }
	_, err := r.NewHostModuleBuilder("env").
		NewFunctionBuilder().WithFunc(fn).WithName("seven").Export("get_seven").
		Instantiate(ctx)
	require.NoError(t, err)
	require.NotNil(t, r.Module("env"))
}
