package interpreter

import (
	"context"
	"testing"

	"github.com/wazerow/wazerow/api"
	"github.com/wazerow/wazerow/internal/wasm"
)

// buildModuleWithTags is buildModule plus a declared TagSection, for
// exception-handling tests.
func buildModuleWithTags(t *testing.T, params, results []api.ValueType, locals []api.ValueType, body []byte, tags []*wasm.Tag) *wasm.Module {
	t.Helper()
	m := buildModule(t, params, results, locals, body)
	m.TagSection = tags
	return m
}

// instantiateV3 is instantiate gated under CoreFeaturesV3, needed by any
// module declaring a TagSection or GC composite types, neither of which
// CoreFeatures(0) accepts in validateModule.
func instantiateV3(t *testing.T, module *wasm.Module) (*wasm.Store, *wasm.ModuleInstance) {
	t.Helper()
	store := wasm.NewStore(NewEngine(), api.CoreFeaturesV3)
	if err := store.Engine.CompileModule(context.Background(), module); err != nil {
		t.Fatalf("CompileModule: %v", err)
	}
	instance, err := store.Instantiate(context.Background(), module, "test", nil, nil)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	return store, instance
}

// TestInterpreter_throwCaughtByMatchingCatch exercises:
//
//	(func (result i32)
//	  (try (result i32)
//	    (throw 0)
//	    (catch 0 (i32.const 7))))
func TestInterpreter_throwCaughtByMatchingCatch(t *testing.T) {
	tagType := &wasm.FunctionType{}
	body := []byte{
		0x06, 0x7f, // try (result i32)
		0x08, 0x00, // throw 0
		0x07, 0x00, // catch 0
		0x41, 0x07, // i32.const 7
		0x0b, // end try
		0x0b, // end func
	}
	module := buildModuleWithTags(t, nil, []api.ValueType{api.ValueTypeI32}, nil, body, []*wasm.Tag{{Type: tagType}})
	_, instance := instantiateV3(t, module)

	results := callRun(t, instance)
	if len(results) != 1 || uint32(results[0]) != 7 {
		t.Fatalf("got %v, want [7]", results)
	}
}

// TestInterpreter_throwPayloadDeliveredToCatch exercises a tag carrying an
// i32 payload, checking catch receives it on the stack:
//
//	(func (result i32)
//	  (try (result i32)
//	    (i32.const 42) (throw 0)
//	    (catch 0)))  ;; catch 0 leaves the payload i32 on the stack
func TestInterpreter_throwPayloadDeliveredToCatch(t *testing.T) {
	tagType := &wasm.FunctionType{Params: []api.ValueType{api.ValueTypeI32}}
	body := []byte{
		0x06, 0x7f, // try (result i32)
		0x41, 0x2a, // i32.const 42
		0x08, 0x00, // throw 0
		0x07, 0x00, // catch 0
		0x0b, // end try
		0x0b, // end func
	}
	module := buildModuleWithTags(t, nil, []api.ValueType{api.ValueTypeI32}, nil, body, []*wasm.Tag{{Type: tagType}})
	_, instance := instantiateV3(t, module)

	results := callRun(t, instance)
	if len(results) != 1 || uint32(results[0]) != 42 {
		t.Fatalf("got %v, want [42]", results)
	}
}

// TestInterpreter_catchAllCatchesAnyTag checks catch_all matches a thrown
// tag with no catch clause naming it:
//
//	(func (result i32)
//	  (try (result i32)
//	    (throw 0)
//	    (catch_all (i32.const 9))))
func TestInterpreter_catchAllCatchesAnyTag(t *testing.T) {
	tagType := &wasm.FunctionType{}
	body := []byte{
		0x06, 0x7f, // try (result i32)
		0x08, 0x00, // throw 0
		0x19,       // catch_all
		0x41, 0x09, // i32.const 9
		0x0b, // end try
		0x0b, // end func
	}
	module := buildModuleWithTags(t, nil, []api.ValueType{api.ValueTypeI32}, nil, body, []*wasm.Tag{{Type: tagType}})
	_, instance := instantiateV3(t, module)

	results := callRun(t, instance)
	if len(results) != 1 || uint32(results[0]) != 9 {
		t.Fatalf("got %v, want [9]", results)
	}
}

// TestInterpreter_rethrowReraisesCurrentException checks rethrow inside a
// catch clause reraises the caught exception to the next enclosing try:
//
//	(func (result i32)
//	  (try (result i32)
//	    (try
//	      (throw 0)
//	      (catch 0 (rethrow 0)))
//	    (unreachable) ;; unreached: inner try has no result, its catch rethrows
//	    (catch 0 (i32.const 3))))
func TestInterpreter_rethrowReraisesCurrentException(t *testing.T) {
	tagType := &wasm.FunctionType{}
	body := []byte{
		0x06, 0x7f, // outer try (result i32)
		0x06, 0x40, // inner try (no result)
		0x08, 0x00, // throw 0
		0x07, 0x00, // catch 0
		0x09, 0x00, // rethrow (relative depth 0: the inner try's own catch)
		0x0b,       // end inner try
		0x00,       // unreachable (only reached if rethrow failed to propagate)
		0x07, 0x00, // catch 0 (outer)
		0x41, 0x03, // i32.const 3
		0x0b, // end outer try
		0x0b, // end func
	}
	module := buildModuleWithTags(t, nil, []api.ValueType{api.ValueTypeI32}, nil, body, []*wasm.Tag{{Type: tagType}})
	_, instance := instantiateV3(t, module)

	results := callRun(t, instance)
	if len(results) != 1 || uint32(results[0]) != 3 {
		t.Fatalf("got %v, want [3]", results)
	}
}

// TestInterpreter_uncaughtExceptionPropagatesAcrossCalls checks an
// exception thrown in a callee, with no try anywhere in the callee, unwinds
// into the caller's own try:
//
//	callee (index 0): (func (throw 0))
//	caller (index 1): (func (result i32)
//	  (try (result i32)
//	    (call 0)
//	    (catch 0 (i32.const 5))))
func TestInterpreter_uncaughtExceptionPropagatesAcrossCalls(t *testing.T) {
	tagType := &wasm.FunctionType{}
	calleeBody := []byte{0x08, 0x00, 0x0b} // throw 0; end
	callerBody := []byte{
		0x06, 0x7f, // try (result i32)
		0x10, 0x00, // call 0 (callee)
		0x07, 0x00, // catch 0
		0x41, 0x05, // i32.const 5
		0x0b, // end try
		0x0b, // end func
	}

	calleeType := &wasm.FunctionType{}
	callerType := &wasm.FunctionType{Results: []api.ValueType{api.ValueTypeI32}}
	module := &wasm.Module{
		TypeSection:     []*wasm.TypeDefinition{{FunctionType: calleeType}, {FunctionType: callerType}},
		FunctionSection: []uint32{0, 1},
		CodeSection: []*wasm.Code{
			{Body: calleeBody},
			{Body: callerBody},
		},
		TagSection:    []*wasm.Tag{{Type: tagType}},
		ExportSection: []*wasm.Export{{Type: api.ExternTypeFunc, Name: "run", Index: 1}},
	}
	_, instance := instantiateV3(t, module)

	results := callRun(t, instance)
	if len(results) != 1 || uint32(results[0]) != 5 {
		t.Fatalf("got %v, want [5]", results)
	}
}

// TestInterpreter_returnCallDoesNotGrowCallStack exercises deep self tail
// recursion through return_call:
//
//	(func (param i32) (result i32)
//	  (if (result i32) (i32.eqz (local.get 0))
//	    (then (i32.const 0))
//	    (else (return_call 0 (i32.sub (local.get 0) (i32.const 1))))))
//
// A plain (non-tail) recursive call at this depth would exceed
// buildoptions.CallStackCeiling and trap StackOverflow; return_call must
// reuse the existing frame instead of pushing a new one.
func TestInterpreter_returnCallDoesNotGrowCallStack(t *testing.T) {
	body := []byte{
		0x20, 0x00, // local.get 0
		0x45,       // i32.eqz
		0x04, 0x7f, // if (result i32)
		0x41, 0x00, // i32.const 0
		0x05,       // else
		0x20, 0x00, // local.get 0
		0x41, 0x01, // i32.const 1
		0x6b,       // i32.sub
		0x12, 0x00, // return_call 0
		0x0b, // end if
		0x0b, // end func
	}
	module := buildModule(t, []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}, nil, body)
	_, instance := instantiateV3(t, module)

	const depth = 5000 // comfortably exceeds buildoptions.CallStackCeiling's production default of 2000
	results := callRun(t, instance, uint64(depth))
	if len(results) != 1 || uint32(results[0]) != 0 {
		t.Fatalf("got %v, want [0]", results)
	}
}
