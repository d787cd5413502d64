package wasi_snapshot_preview1

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wazerow/wazerow"
	"github.com/wazerow/wazerow/api"
	"github.com/wazerow/wazerow/internal/wasm"
	"github.com/wazerow/wazerow/internal/wasm/binary"
)

// writerModuleBinary encodes a single-function guest module that calls fd_write
// to write one string to the given fd, then returns the errno.
func writerModuleBinary() []byte {
	ft := &wasm.FunctionType{Params: []api.ValueType{api.ValueTypeI32}, Results: []api.ValueType{api.ValueTypeI32}}
	m := &wasm.Module{
		TypeSection:     []*wasm.TypeDefinition{{FunctionType: ft}, {FunctionType: &wasm.FunctionType{Params: []api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32}, Results: []api.ValueType{api.ValueTypeI32}}}},
		ImportSection: []*wasm.Import{{
			Module: ModuleName, Name: "fd_write", Type: api.ExternTypeFunc, DescFunc: 1,
		}},
		FunctionSection: []uint32{0},
		MemorySection:   []*wasm.Memory{{Min: 1, Cap: 1}},
		CodeSection: []*wasm.Code{{Body: []byte{
			0x20, 0x00, // local.get 0 (fd)
			0x41, 0x08, // i32.const 8 (iovs ptr)
			0x41, 0x01, // i32.const 1 (iovs_len)
			0x41, 0x10, // i32.const 16 (nwritten ptr)
			0x10, 0x00, // call 0 (imported fd_write)
			0x0b, // end
		}}},
		ExportSection: []*wasm.Export{{Type: api.ExternTypeFunc, Name: "write_it", Index: 1}},
	}
	return binary.EncodeModule(m)
}

func TestFdWrite_ToStdout(t *testing.T) {
	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	_, err := Instantiate(ctx, r)
	require.NoError(t, err)

	var stdout bytes.Buffer
	compiled, err := r.CompileModule(ctx, writerModuleBinary())
	require.NoError(t, err)
	mod, err := r.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName("writer").WithStdout(&stdout))
	require.NoError(t, err)

	mem := mod.Memory()
	require.True(t, mem.Write(ctx, 0, []byte("hi")))   // the string bytes
	require.True(t, mem.WriteUint32Le(ctx, 8, 0))       // iov.buf
	require.True(t, mem.WriteUint32Le(ctx, 12, 2))      // iov.buf_len

	_, err = mod.ExportedFunction("write_it").Call(ctx, 1) // fd 1 = stdout
	require.NoError(t, err)
	require.Equal(t, "hi", stdout.String())
}

func TestArgsSizesGet(t *testing.T) {
	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	_, err := Instantiate(ctx, r)
	require.NoError(t, err)

	ft := &wasm.FunctionType{Params: []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, Results: []api.ValueType{api.ValueTypeI32}}
	m := &wasm.Module{
		TypeSection: []*wasm.TypeDefinition{{FunctionType: ft}},
		ImportSection: []*wasm.Import{{
			Module: ModuleName, Name: "args_sizes_get", Type: api.ExternTypeFunc, DescFunc: 0,
		}},
		MemorySection: []*wasm.Memory{{Min: 1, Cap: 1}},
		ExportSection: []*wasm.Export{{Type: api.ExternTypeFunc, Name: "args_sizes_get", Index: 0}},
	}

	mod, err := r.InstantiateModule(ctx, mustCompile(ctx, t, r, binary.EncodeModule(m)),
		wazero.NewModuleConfig().WithName("guest").WithArgs("prog", "a", "bb"))
	require.NoError(t, err)

	_, err = mod.ExportedFunction("args_sizes_get").Call(ctx, 0, 4)
	require.NoError(t, err)

	argc, ok := mod.Memory().ReadUint32Le(ctx, 0)
	require.True(t, ok)
	require.Equal(t, uint32(3), argc)
}

func mustCompile(ctx context.Context, t *testing.T, r wazero.Runtime, bin []byte) wazero.CompiledModule {
	t.Helper()
	compiled, err := r.CompileModule(ctx, bin)
	require.NoError(t, err)
	return compiled
}

func TestErrnoName(t *testing.T) {
	require.Equal(t, "ESUCCESS", ErrnoName(ErrnoSuccess))
	require.Equal(t, "EBADF", ErrnoName(ErrnoBadf))
	require.Equal(t, "UNKNOWN", ErrnoName(999))
}

func TestProcExit_ReturnsError(t *testing.T) {
	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	_, err := Instantiate(ctx, r)
	require.NoError(t, err)

	ft := &wasm.FunctionType{Params: []api.ValueType{api.ValueTypeI32}}
	m := &wasm.Module{
		TypeSection: []*wasm.TypeDefinition{{FunctionType: ft}},
		ImportSection: []*wasm.Import{{
			Module: ModuleName, Name: "proc_exit", Type: api.ExternTypeFunc, DescFunc: 0,
		}},
		ExportSection: []*wasm.Export{{Type: api.ExternTypeFunc, Name: "proc_exit", Index: 0}},
	}

	mod, err := r.InstantiateModuleFromBinary(ctx, binary.EncodeModule(m))
	require.NoError(t, err)

	_, err = mod.ExportedFunction("proc_exit").Call(ctx, 7)
	require.Error(t, err)
}
