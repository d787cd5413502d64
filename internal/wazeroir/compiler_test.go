package wazeroir

import (
	"testing"

	"github.com/wazerow/wazerow/api"
	"github.com/wazerow/wazerow/internal/wasm"
)

func compileBody(t *testing.T, body []byte, params, results []api.ValueType) *CompilationResult {
	t.Helper()
	ft := &wasm.FunctionType{Params: params, Results: results}
	module := &wasm.Module{TypeSection: []*wasm.TypeDefinition{{FunctionType: ft}}}
	result, err := CompileFunction(module, ft, &wasm.Code{Body: body})
	if err != nil {
		t.Fatalf("CompileFunction: %v", err)
	}
	return result
}

func TestCompileFunction_constAdd(t *testing.T) {
	// (i32.add (i32.const 1) (i32.const 2))
	body := []byte{
		opI32Const, 0x01,
		opI32Const, 0x02,
		opI32Add,
		opEnd,
	}
	result := compileBody(t, body, nil, []api.ValueType{api.ValueTypeI32})

	wantKinds := []OperationKind{OperationKindConstI32, OperationKindConstI32, OperationKindAdd, OperationKindReturn}
	if len(result.Operations) != len(wantKinds) {
		t.Fatalf("got %d operations, want %d: %+v", len(result.Operations), len(wantKinds), result.Operations)
	}
	for i, k := range wantKinds {
		if result.Operations[i].Kind != k {
			t.Errorf("operation[%d].Kind = %v, want %v", i, result.Operations[i].Kind, k)
		}
	}
	if result.Operations[0].ConstI32 != 1 || result.Operations[1].ConstI32 != 2 {
		t.Errorf("unexpected const operands: %+v", result.Operations[:2])
	}
	if result.Operations[2].Type != UnsignedTypeI32 {
		t.Errorf("add operation type = %v, want UnsignedTypeI32", result.Operations[2].Type)
	}
}

func TestCompileFunction_ifElse(t *testing.T) {
	// (if (result i32) (local.get 0) (then (i32.const 1)) (else (i32.const 2)))
	body := []byte{
		opLocalGet, 0x00,
		opIf, 0x7f, // block type i32
		opI32Const, 0x01,
		opElse,
		opI32Const, 0x02,
		opEnd,
		opEnd,
	}
	result := compileBody(t, body, []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32})

	var brIf, unconditionalBr *Operation
	for i := range result.Operations {
		op := &result.Operations[i]
		switch op.Kind {
		case OperationKindBrIf:
			brIf = op
		case OperationKindBr:
			unconditionalBr = op
		}
	}
	if brIf == nil {
		t.Fatal("no BrIf emitted for `if`")
	}
	if brIf.B1 != 1 {
		t.Errorf("if's BrIf.B1 = %d, want 1 (branch-when-false)", brIf.B1)
	}
	if unconditionalBr == nil {
		t.Fatal("no unconditional Br emitted for `else` skip-jump")
	}
	// the BrIf jumps to the else arm (the op just before the final Return),
	// and the then arm's Br skips the else arm to the final Return.
	last := result.Operations[len(result.Operations)-1]
	if last.Kind != OperationKindReturn {
		t.Fatalf("last operation = %v, want OperationKindReturn", last.Kind)
	}
	lastIdx := len(result.Operations) - 1
	if brIf.Target != lastIdx-1 || unconditionalBr.Target != lastIdx {
		t.Errorf("branch targets = (%d, %d), want (%d, %d)", brIf.Target, unconditionalBr.Target, lastIdx-1, lastIdx)
	}
}

func TestCompileFunction_loopBranchesBackward(t *testing.T) {
	// (loop (br 0))
	body := []byte{
		opLoop, 0x40, // empty block type
		opBr, 0x00,
		opEnd,
		opEnd,
	}
	result := compileBody(t, body, nil, nil)

	var br *Operation
	loopStart := -1
	for i := range result.Operations {
		if result.Operations[i].Kind == OperationKindBr && br == nil {
			br = &result.Operations[i]
			loopStart = i
		}
	}
	if br == nil {
		t.Fatal("no Br emitted")
	}
	if br.Target != loopStart {
		t.Errorf("loop branch Target = %d, want %d (the loop's own start)", br.Target, loopStart)
	}
}

func TestCompileFunction_brTable(t *testing.T) {
	// (block (block (block (br_table 0 1 2 (local.get 0)))))
	body := []byte{
		opBlock, 0x40,
		opBlock, 0x40,
		opBlock, 0x40,
		opLocalGet, 0x00, // index operand, ignored at compile time
		opBrTable, 0x02, 0x00, 0x01, 0x02,
		opEnd,
		opEnd,
		opEnd,
	}
	ft := &wasm.FunctionType{Params: []api.ValueType{api.ValueTypeI32}}
	module := &wasm.Module{TypeSection: []*wasm.TypeDefinition{{FunctionType: ft}}}
	result, err := CompileFunction(module, ft, &wasm.Code{Body: body})
	if err != nil {
		t.Fatalf("CompileFunction: %v", err)
	}

	var brTable *Operation
	for i := range result.Operations {
		if result.Operations[i].Kind == OperationKindBrTable {
			brTable = &result.Operations[i]
		}
	}
	if brTable == nil {
		t.Fatal("no BrTable emitted")
	}
	if len(brTable.Us) != 3 {
		t.Fatalf("BrTable.Us has %d entries, want 3", len(brTable.Us))
	}
	// depth 0 => innermost block (closes first, lowest target), depth 2 => outermost.
	if !(brTable.Us[0] <= brTable.Us[1] && brTable.Us[1] <= brTable.Us[2]) {
		t.Errorf("BrTable.Us targets not in expected non-decreasing depth order: %v", brTable.Us)
	}
}

func TestCompileFunction_saturatingTruncation(t *testing.T) {
	// (i32.trunc_sat_f64_u (f64.const ...)) via the 0xFC misc prefix.
	body := []byte{
		opF64Const, 0, 0, 0, 0, 0, 0, 0, 0,
		opMiscPrefix, miscI32TruncSatF64U,
		opEnd,
	}
	result := compileBody(t, body, nil, []api.ValueType{api.ValueTypeI32})

	var convert *Operation
	for i := range result.Operations {
		if result.Operations[i].Kind == OperationKindConvert {
			convert = &result.Operations[i]
		}
	}
	if convert == nil {
		t.Fatal("no Convert operation emitted")
	}
	if ConversionKind(convert.B1) != ConversionI32TruncSatF64U {
		t.Errorf("Convert.B1 = %v, want ConversionI32TruncSatF64U", ConversionKind(convert.B1))
	}
}

func TestCompileFunction_localTeeKeepsValue(t *testing.T) {
	body := []byte{
		opI32Const, 0x05,
		opLocalTee, 0x00,
		opDrop,
		opLocalGet, 0x00,
		opEnd,
	}
	ft := &wasm.FunctionType{Results: []api.ValueType{api.ValueTypeI32}}
	module := &wasm.Module{TypeSection: []*wasm.TypeDefinition{{FunctionType: ft}}}
	result, err := CompileFunction(module, ft, &wasm.Code{LocalTypes: []api.ValueType{api.ValueTypeI32}, Body: body})
	if err != nil {
		t.Fatalf("CompileFunction: %v", err)
	}

	var tee *Operation
	for i := range result.Operations {
		if result.Operations[i].Kind == OperationKindSet {
			tee = &result.Operations[i]
		}
	}
	if tee == nil {
		t.Fatal("no Set operation emitted for local.tee")
	}
	if tee.B2 != 1 {
		t.Errorf("local.tee's Set.B2 = %d, want 1", tee.B2)
	}
}

func TestCompileFunction_bulkMemoryOps(t *testing.T) {
	body := []byte{
		opI32Const, 0x00,
		opI32Const, 0x00,
		opI32Const, 0x00,
		opMiscPrefix, miscMemoryCopy, 0x00, 0x00,
		opMiscPrefix, miscElemDrop, 0x01,
		opEnd,
	}
	result := compileBody(t, body, nil, nil)

	var sawCopy, sawDrop bool
	for _, op := range result.Operations {
		switch op.Kind {
		case OperationKindMemoryCopy:
			sawCopy = true
		case OperationKindElemDrop:
			sawDrop = true
			if op.B1 != 1 {
				t.Errorf("ElemDrop.B1 = %d, want 1", op.B1)
			}
		}
	}
	if !sawCopy || !sawDrop {
		t.Errorf("missing expected bulk-memory operations: copy=%v drop=%v", sawCopy, sawDrop)
	}
}
