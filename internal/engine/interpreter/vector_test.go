package interpreter

import (
	"testing"

	"github.com/wazerow/wazerow/api"
	"github.com/wazerow/wazerow/internal/wasm"
)

// TestInterpreter_v128SplatExtractReplaceAdd exercises the v128 lane
// instructions this interpreter implements:
//
//	(func (result i32)
//	  (local $v v128)
//	  (local.set $v (i32x4.splat (i32.const 10)))
//	  (local.set $v (i32x4.replace_lane 1 (local.get $v) (i32.const 99)))
//	  (local.set $v (i32x4.add (local.get $v) (i32x4.splat (i32.const 1))))
//	  (i32x4.extract_lane 1 (local.get $v)))
func TestInterpreter_v128SplatExtractReplaceAdd(t *testing.T) {
	body := []byte{
		0x41, 0x0a, // i32.const 10
		0xfd, 0x11, // i32x4.splat
		0x21, 0x00, // local.set $v

		0x20, 0x00, // local.get $v
		0x41, 0x63, // i32.const 99
		0xfd, 0x1c, 0x01, // i32x4.replace_lane 1
		0x21, 0x00, // local.set $v

		0x20, 0x00, // local.get $v
		0x41, 0x01, // i32.const 1
		0xfd, 0x11, // i32x4.splat
		0xfd, 0xae, 0x01, // i32x4.add
		0x21, 0x00, // local.set $v

		0x20, 0x00, // local.get $v
		0xfd, 0x1b, 0x01, // i32x4.extract_lane 1
		0x0b,
	}
	module := buildModule(t, nil, []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeV128}, body)
	_, instance := instantiateV3(t, module)

	results := callRun(t, instance)
	if len(results) != 1 || uint32(results[0]) != 100 { // 99 + 1
		t.Fatalf("got %v, want [100]", results)
	}
}

// TestInterpreter_v128LoadStoreRoundTrip exercises v128.load/v128.store
// against linear memory:
//
//	(memory 1)
//	(func (result i32)
//	  (v128.store (i32.const 0) (i32x4.splat (i32.const 7)))
//	  (i32x4.extract_lane 2 (v128.load (i32.const 0))))
func TestInterpreter_v128LoadStoreRoundTrip(t *testing.T) {
	body := []byte{
		0x41, 0x00, // i32.const 0 (store address)
		0x41, 0x07, // i32.const 7
		0xfd, 0x11, // i32x4.splat
		0xfd, 0x0b, 0x00, 0x00, // v128.store align=0 offset=0

		0x41, 0x00, // i32.const 0 (load address)
		0xfd, 0x00, 0x00, 0x00, // v128.load align=0 offset=0
		0xfd, 0x1b, 0x02, // i32x4.extract_lane 2
		0x0b,
	}
	module := buildModule(t, nil, []api.ValueType{api.ValueTypeI32}, nil, body)
	module.MemorySection = []*wasm.Memory{{Min: 1}}
	_, instance := instantiateV3(t, module)

	results := callRun(t, instance)
	if len(results) != 1 || uint32(results[0]) != 7 {
		t.Fatalf("got %v, want [7]", results)
	}
}

// TestInterpreter_atomicRmwAddAndCmpxchg exercises atomic.rmw.add and
// atomic.rmw.cmpxchg against linear memory, executed non-atomically since
// the interpreter never has two goroutines sharing one callEngine (see
// atomic.go).
//
//	(memory 1)
//	(func (result i32)
//	  (i32.atomic.store (i32.const 0) (i32.const 5))
//	  (drop (i32.atomic.rmw.add (i32.const 0) (i32.const 3))) ;; mem[0] 5 -> 8
//	  (drop (i32.atomic.rmw.cmpxchg (i32.const 0) (i32.const 8) (i32.const 42))) ;; 8==8, mem[0] -> 42
//	  (i32.atomic.load (i32.const 0)))
func TestInterpreter_atomicRmwAddAndCmpxchg(t *testing.T) {
	body := []byte{
		0x41, 0x00, 0x41, 0x05, // i32.const 0, i32.const 5
		0xfe, 0x17, 0x02, 0x00, // i32.atomic.store align=2 offset=0

		0x41, 0x00, 0x41, 0x03, // i32.const 0, i32.const 3
		0xfe, 0x1e, 0x02, 0x00, // i32.atomic.rmw.add align=2 offset=0
		0x1a, // drop

		0x41, 0x00, 0x41, 0x08, 0x41, 0x2a, // i32.const 0, i32.const 8, i32.const 42
		0xfe, 0x48, 0x02, 0x00, // i32.atomic.rmw.cmpxchg align=2 offset=0
		0x1a, // drop

		0x41, 0x00, // i32.const 0
		0xfe, 0x10, 0x02, 0x00, // i32.atomic.load align=2 offset=0
		0x0b,
	}
	module := buildModule(t, nil, []api.ValueType{api.ValueTypeI32}, nil, body)
	module.MemorySection = []*wasm.Memory{{Min: 1}}
	_, instance := instantiateV3(t, module)

	results := callRun(t, instance)
	if len(results) != 1 || uint32(results[0]) != 42 {
		t.Fatalf("got %v, want [42]", results)
	}
}
