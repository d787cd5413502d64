package wazero_test

import (
	"context"
	"fmt"

	"github.com/wazerow/wazerow"
	"github.com/wazerow/wazerow/api"
	"github.com/wazerow/wazerow/internal/wasm"
	"github.com/wazerow/wazerow/internal/wasm/binary"
)

// This is an example of instantiating a small WebAssembly module and calling
// an exported function, using only this module's public API.
func Example() {
	ctx := context.Background()

	// Choose the runtime, which backs every Wasm module.
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx) // This closes everything this Runtime created.

	// addBinary is the equivalent of the following WebAssembly Text Format:
	//	(module
	//	  (func (export "add") (param i32 i32) (result i32)
	//	    local.get 0
	//	    local.get 1
	//	    i32.add))
	ft := &wasm.FunctionType{Params: []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, Results: []api.ValueType{api.ValueTypeI32}}
	addBinary := binary.EncodeModule(&wasm.Module{
		TypeSection:     []*wasm.TypeDefinition{{FunctionType: ft}},
		FunctionSection: []uint32{0},
		CodeSection:     []*wasm.Code{{Body: []byte{0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b}}},
		ExportSection:   []*wasm.Export{{Type: api.ExternTypeFunc, Name: "add", Index: 0}},
	})

	mod, err := r.InstantiateModuleFromBinary(ctx, addBinary)
	if err != nil {
		panic(err)
	}

	results, err := mod.ExportedFunction("add").Call(ctx, 1, 2)
	if err != nil {
		panic(err)
	}

	fmt.Println(results[0])

	// Output:
	// 3
}
