package interpreter

import (
	"context"
	"testing"

	"github.com/wazerow/wazerow/api"
	"github.com/wazerow/wazerow/internal/wasm"
)

// buildModule assembles a minimal single-function module: one type, one
// function body, exported under "run". Callers mutate the returned Module
// before instantiation to add tables/memories/element or data segments.
func buildModule(t *testing.T, params, results []api.ValueType, locals []api.ValueType, body []byte) *wasm.Module {
	t.Helper()
	ft := &wasm.FunctionType{Params: params, Results: results}
	return &wasm.Module{
		TypeSection:     []*wasm.TypeDefinition{{FunctionType: ft}},
		FunctionSection: []uint32{0},
		CodeSection:     []*wasm.Code{{LocalTypes: locals, Body: body}},
		ExportSection:   []*wasm.Export{{Type: api.ExternTypeFunc, Name: "run", Index: 0}},
	}
}

func instantiate(t *testing.T, module *wasm.Module) (*wasm.Store, *wasm.ModuleInstance) {
	t.Helper()
	store := wasm.NewStore(NewEngine(), api.CoreFeatures(0))
	if err := store.Engine.CompileModule(context.Background(), module); err != nil {
		t.Fatalf("CompileModule: %v", err)
	}
	instance, err := store.Instantiate(context.Background(), module, "test", nil, nil)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	return store, instance
}

func callRun(t *testing.T, instance *wasm.ModuleInstance, params ...uint64) []uint64 {
	t.Helper()
	fn := instance.ExportedFunction("run")
	if fn == nil {
		t.Fatal(`no exported function "run"`)
	}
	results, err := fn.Call(context.Background(), params...)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	return results
}

func TestInterpreter_addTwoConstants(t *testing.T) {
	// (func (result i32) (i32.add (i32.const 1) (i32.const 41)))
	body := []byte{0x41, 0x01, 0x41, 0x29, 0x6a, 0x0b}
	module := buildModule(t, nil, []api.ValueType{api.ValueTypeI32}, nil, body)
	_, instance := instantiate(t, module)

	results := callRun(t, instance)
	if len(results) != 1 || uint32(results[0]) != 42 {
		t.Fatalf("got %v, want [42]", results)
	}
}

func TestInterpreter_paramsAndLocals(t *testing.T) {
	// (func (param i32 i32) (result i32) (local i32)
	//   (local.set 2 (i32.add (local.get 0) (local.get 1)))
	//   (local.get 2))
	body := []byte{
		0x20, 0x00, // local.get 0
		0x20, 0x01, // local.get 1
		0x6a,       // i32.add
		0x21, 0x02, // local.set 2
		0x20, 0x02, // local.get 2
		0x0b,
	}
	module := buildModule(t, []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32},
		[]api.ValueType{api.ValueTypeI32}, body)
	_, instance := instantiate(t, module)

	results := callRun(t, instance, 10, 32)
	if len(results) != 1 || uint32(results[0]) != 42 {
		t.Fatalf("got %v, want [42]", results)
	}
}

func TestInterpreter_ifElse(t *testing.T) {
	// (func (param i32) (result i32)
	//   (if (result i32) (local.get 0) (then (i32.const 1)) (else (i32.const 0))))
	body := []byte{
		0x20, 0x00, // local.get 0
		0x04, 0x7f, // if (result i32)
		0x41, 0x01, // i32.const 1
		0x05,       // else
		0x41, 0x00, // i32.const 0
		0x0b, // end (if)
		0x0b, // end (func)
	}
	module := buildModule(t, []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}, nil, body)
	_, instance := instantiate(t, module)

	if r := callRun(t, instance, 1); uint32(r[0]) != 1 {
		t.Errorf("condition=1: got %v, want [1]", r)
	}
	if r := callRun(t, instance, 0); uint32(r[0]) != 0 {
		t.Errorf("condition=0: got %v, want [0]", r)
	}
}

func TestInterpreter_loopCountdown(t *testing.T) {
	// (func (param i32) (result i32)
	//   (block
	//     (loop
	//       (br_if 1 (i32.eqz (local.get 0)))
	//       (local.set 0 (i32.sub (local.get 0) (i32.const 1)))
	//       (br 0)))
	//   (local.get 0))
	body := []byte{
		0x02, 0x40, // block
		0x03, 0x40, // loop
		0x20, 0x00, // local.get 0
		0x45,       // i32.eqz
		0x0d, 0x01, // br_if 1
		0x20, 0x00, // local.get 0
		0x41, 0x01, // i32.const 1
		0x6b,       // i32.sub
		0x21, 0x00, // local.set 0
		0x0c, 0x00, // br 0
		0x0b, // end (loop)
		0x0b, // end (block)
		0x20, 0x00, // local.get 0
		0x0b, // end (func)
	}
	module := buildModule(t, []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}, nil, body)
	_, instance := instantiate(t, module)

	results := callRun(t, instance, 5)
	if len(results) != 1 || uint32(results[0]) != 0 {
		t.Fatalf("got %v, want [0]", results)
	}
}

func TestInterpreter_integerDivideByZeroTraps(t *testing.T) {
	// (func (param i32 i32) (result i32) (i32.div_s (local.get 0) (local.get 1)))
	body := []byte{0x20, 0x00, 0x20, 0x01, 0x6d, 0x0b}
	module := buildModule(t, []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}, nil, body)
	_, instance := instantiate(t, module)

	fn := instance.ExportedFunction("run")
	_, err := fn.Call(context.Background(), 1, 0)
	if err == nil {
		t.Fatal("expected a trap, got nil error")
	}
}

func TestInterpreter_callBetweenFunctions(t *testing.T) {
	doubleType := &wasm.FunctionType{Params: []api.ValueType{api.ValueTypeI32}, Results: []api.ValueType{api.ValueTypeI32}}
	callerType := &wasm.FunctionType{Params: []api.ValueType{api.ValueTypeI32}, Results: []api.ValueType{api.ValueTypeI32}}

	module := &wasm.Module{
		TypeSection:     []*wasm.TypeDefinition{{FunctionType: doubleType}, {FunctionType: callerType}},
		FunctionSection: []uint32{0, 1},
		CodeSection: []*wasm.Code{
			// func 0: (param i32) (result i32) (i32.add (local.get 0) (local.get 0))
			{Body: []byte{0x20, 0x00, 0x20, 0x00, 0x6a, 0x0b}},
			// func 1: (param i32) (result i32) (call 0 (local.get 0))
			{Body: []byte{0x20, 0x00, 0x10, 0x00, 0x0b}},
		},
		ExportSection: []*wasm.Export{{Type: api.ExternTypeFunc, Name: "run", Index: 1}},
	}
	_, instance := instantiate(t, module)

	results := callRun(t, instance, 21)
	if len(results) != 1 || uint32(results[0]) != 42 {
		t.Fatalf("got %v, want [42]", results)
	}
}

func TestInterpreter_memoryLoadStore(t *testing.T) {
	// (func (result i32)
	//   (i32.store (i32.const 0) (i32.const 42))
	//   (i32.load (i32.const 0)))
	body := []byte{
		0x41, 0x00, 0x41, 0x2a, 0x36, 0x02, 0x00, // i32.store offset=0 align=2
		0x41, 0x00, 0x28, 0x02, 0x00, // i32.load offset=0 align=2
		0x0b,
	}
	module := buildModule(t, nil, []api.ValueType{api.ValueTypeI32}, nil, body)
	module.MemorySection = []*wasm.Memory{{Min: 1}}
	_, instance := instantiate(t, module)

	results := callRun(t, instance)
	if len(results) != 1 || uint32(results[0]) != 42 {
		t.Fatalf("got %v, want [42]", results)
	}
}

func TestInterpreter_memoryGrowAndSize(t *testing.T) {
	// (func (result i32 i32) (memory.grow (i32.const 1)) (memory.size))
	body := []byte{
		0x41, 0x01, 0x40, 0x00, // memory.grow 1
		0x3f, 0x00, // memory.size
		0x0b,
	}
	module := buildModule(t, nil, []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, nil, body)
	module.MemorySection = []*wasm.Memory{{Min: 1, Max: 10}}
	_, instance := instantiate(t, module)

	results := callRun(t, instance)
	if len(results) != 2 {
		t.Fatalf("got %v, want 2 results", results)
	}
	if uint32(results[0]) != 1 {
		t.Errorf("memory.grow prior size = %d, want 1", uint32(results[0]))
	}
	if uint32(results[1]) != 2 {
		t.Errorf("memory.size after grow = %d, want 2", uint32(results[1]))
	}
}

func TestInterpreter_bulkMemoryInitAndDrop(t *testing.T) {
	// (func
	//   (memory.init 0 (i32.const 0) (i32.const 0) (i32.const 4))
	//   (data.drop 0))
	body := []byte{
		0x41, 0x00, 0x41, 0x00, 0x41, 0x04, // dst=0 src=0 n=4
		0xfc, 0x08, 0x00, 0x00, // memory.init 0, reserved memidx 0
		0xfc, 0x09, 0x00, // data.drop 0
		0x0b,
	}
	module := buildModule(t, nil, nil, nil, body)
	module.MemorySection = []*wasm.Memory{{Min: 1}}
	module.DataSection = []*wasm.DataSegment{{Mode: wasm.DataModePassive, Init: []byte{1, 2, 3, 4}}}
	_, instance := instantiate(t, module)

	callRun(t, instance)
	if got := instance.Memories[0].Buffer[:4]; got[0] != 1 || got[3] != 4 {
		t.Fatalf("memory after init = %v, want [1 2 3 4 ...]", got)
	}
	if instance.DataInstances[0].Bytes != nil {
		t.Error("data segment 0 should be dropped (nil Bytes) after data.drop")
	}
}

func TestInterpreter_tableGrowAndSize(t *testing.T) {
	// (func (result i32)
	//   (table.grow (ref.null func) (i32.const 3))
	//   (drop)
	//   (table.size))
	body := []byte{
		0xd0, 0x70, // ref.null func
		0x41, 0x03, // i32.const 3
		0xfc, 0x0f, 0x00, // table.grow 0
		0x1a,       // drop
		0xfc, 0x10, 0x00, // table.size 0
		0x0b,
	}
	module := buildModule(t, nil, []api.ValueType{api.ValueTypeI32}, nil, body)
	module.TableSection = []*wasm.Table{{Type: api.ValueTypeFuncref, Min: 1, Max: nil}}
	_, instance := instantiate(t, module)

	results := callRun(t, instance)
	if len(results) != 1 || uint32(results[0]) != 4 {
		t.Fatalf("got %v, want [4] (1 initial + 3 grown)", results)
	}
}
