// Package interpreter is wazerow's only Engine implementation: a portable,
// pure-Go bytecode interpreter that walks the flattened wazeroir operation
// list directly, with no further lowering pass. There is no JIT backend in
// this module; the interpreter is both the reference and the production
// execution strategy.
package interpreter

import (
	"context"
	"fmt"
	"sync"

	"github.com/wazerow/wazerow/api"
	"github.com/wazerow/wazerow/internal/buildoptions"
	"github.com/wazerow/wazerow/internal/wasm"
	"github.com/wazerow/wazerow/internal/wasmdebug"
	"github.com/wazerow/wazerow/internal/wasmruntime"
	"github.com/wazerow/wazerow/internal/wazeroir"
)

// engine owns compiled code for every Module that has gone through
// CompileModule, keyed by the module's content hash so instantiating the
// same Module twice (e.g. two WASI guests from one binary) doesn't recompile.
type engine struct {
	mux   sync.RWMutex
	codes map[wasm.ModuleID][]*code
}

// code is the compiled form of one module-defined function. Host functions
// get a nil result; they execute via wasm.CallGoFunc instead of this VM.
type code struct {
	result *wazeroir.CompilationResult
}

// NewEngine constructs the interpreter Engine.
func NewEngine() wasm.Engine {
	return &engine{codes: map[wasm.ModuleID][]*code{}}
}

// CompileModule implements wasm.Engine.
func (e *engine) CompileModule(_ context.Context, module *wasm.Module) error {
	e.mux.RLock()
	_, ok := e.codes[module.ID]
	e.mux.RUnlock()
	if ok {
		return nil
	}

	importCount := module.ImportFuncCount()
	codes := make([]*code, len(module.CodeSection))
	for i, body := range module.CodeSection {
		if module.HostFuncAt(uint32(i)) != nil {
			codes[i] = &code{}
			continue
		}
		typeIdx := module.FunctionSection[i]
		ft := module.TypeSection[typeIdx].FunctionType
		result, err := wazeroir.CompileFunction(module, ft, body)
		if err != nil {
			return fmt.Errorf("function[%d]: %w", importCount+uint32(i), err)
		}
		codes[i] = &code{result: result}
	}

	e.mux.Lock()
	e.codes[module.ID] = codes
	e.mux.Unlock()
	return nil
}

// CompiledModuleCount implements wasm.Engine.
func (e *engine) CompiledModuleCount() uint32 {
	e.mux.RLock()
	defer e.mux.RUnlock()
	return uint32(len(e.codes))
}

// DeleteCompiledModule implements wasm.Engine.
func (e *engine) DeleteCompiledModule(module *wasm.Module) {
	e.mux.Lock()
	defer e.mux.Unlock()
	delete(e.codes, module.ID)
}

// NewModuleEngine implements wasm.Engine.
func (e *engine) NewModuleEngine(module *wasm.Module, instance *wasm.ModuleInstance) (wasm.ModuleEngine, error) {
	e.mux.RLock()
	codes, ok := e.codes[module.ID]
	e.mux.RUnlock()
	if !ok {
		return nil, fmt.Errorf("module %q was not compiled", instance.ModuleName)
	}
	return &moduleEngine{instance: instance, codes: codes, importedFuncCount: module.ImportFuncCount()}, nil
}

// moduleEngine is the per-instance half of the interpreter: it knows which
// compiled code backs which of instance's module-defined functions.
type moduleEngine struct {
	instance          *wasm.ModuleInstance
	codes             []*code
	importedFuncCount uint32
}

// NewFunction implements wasm.ModuleEngine.
func (me *moduleEngine) NewFunction(index wasm.Index) api.Function {
	fn := me.instance.Function(index)
	if fn == nil {
		return nil
	}
	return &function{fn: fn}
}

// function is the api.Function handle returned to embedders and used for
// recursive calls between wasm functions.
type function struct {
	fn *wasm.FunctionInstance
}

// Definition implements api.Function.
func (f *function) Definition() api.FunctionDefinition { return f.fn.Definition }

// Call implements api.Function. It is the sole entry point from outside the
// VM: every call crossing the host/wasm boundary, including re-entrant host
// calls back into wasm, goes through here so panics are always recovered at
// exactly one place with a full frame trace attached.
func (f *function) Call(ctx context.Context, params ...uint64) (results []uint64, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(params) != len(f.fn.Type.Params) {
		return nil, fmt.Errorf("expected %d params, but passed %d", len(f.fn.Type.Params), len(params))
	}

	ce := &callEngine{}
	defer func() {
		if v := recover(); v != nil {
			builder := wasmdebug.NewErrorBuilder()
			for i := len(ce.frames) - 1; i >= 0; i-- {
				fr := ce.frames[i]
				builder.AddFrame(wasmdebug.FuncName(fr.fn.Module.ModuleName, fr.fn.Definition.Name(), fr.fn.Idx),
					fr.fn.Type.Params, fr.fn.Type.Results)
			}
			err = builder.FromRecovered(v)
		}
	}()

	for _, p := range params {
		ce.pushValue(p)
	}
	ce.invoke(ctx, f.fn.Module, f.fn)

	results = make([]uint64, len(f.fn.Type.Results))
	for i := len(results) - 1; i >= 0; i-- {
		results[i] = ce.popValue()
	}
	return results, nil
}

// callFrame is one entry of the explicit call stack: pc indexes into
// result.Operations, locals is this invocation's parameter+local vector
// (kept separate from the shared operand stack, unlike a register-starved
// bytecode VM that would have to interleave them).
type callFrame struct {
	pc     int
	fn     *wasm.FunctionInstance
	result *wazeroir.CompilationResult
	locals []uint64

	// currentExn is the exception currently being handled by a catch clause
	// this frame jumped into, read by a subsequent rethrow. Only the
	// innermost active handler is tracked (see except.go).
	currentExn *wasmException
}

// callEngine threads the operand stack and call-frame stack through one
// top-level function.Call invocation. It is not reused across calls.
type callEngine struct {
	stack  []uint64
	frames []*callFrame

	// tailCall, when non-nil after run returns, names the function a
	// return_call(_indirect) in the frame just run asked to replace it with.
	// callNativeFunc mutates the existing frame in place and loops rather
	// than recursing, so tail-call depth never grows ce.frames or the Go
	// call stack (spec.md's tail-call contract).
	tailCall *tailCallRequest
}

// tailCallRequest is the handoff between step (which resolves the callee)
// and callNativeFunc's loop (which performs the frame reuse).
type tailCallRequest struct {
	callee *wasm.FunctionInstance
}

func (ce *callEngine) pushValue(v uint64) { ce.stack = append(ce.stack, v) }

func (ce *callEngine) popValue() uint64 {
	n := len(ce.stack) - 1
	v := ce.stack[n]
	ce.stack = ce.stack[:n]
	return v
}

func (ce *callEngine) peekValue() uint64 { return ce.stack[len(ce.stack)-1] }

// dropKeepTop removes n values from just below the top of the stack, keeping
// the top value: the shape select/drop-with-arity operations need.
func (ce *callEngine) dropKeepTop(n int) {
	if n == 0 {
		return
	}
	top := ce.popValue()
	ce.stack = ce.stack[:len(ce.stack)-n]
	ce.pushValue(top)
}

func (ce *callEngine) pushFrame(f *callFrame) {
	if len(ce.frames) >= buildoptions.CallStackCeiling {
		panic(wasmruntime.ErrRuntimeCallStackOverflow)
	}
	ce.frames = append(ce.frames, f)
}

func (ce *callEngine) popFrame() {
	ce.frames = ce.frames[:len(ce.frames)-1]
}

// invoke dispatches to a host function or the bytecode VM, depending on
// callee's kind. caller is the ModuleInstance whose operand stack params
// were popped from, passed through as the api.Module a host function sees.
func (ce *callEngine) invoke(ctx context.Context, caller *wasm.ModuleInstance, callee *wasm.FunctionInstance) {
	if callee.GoFunc != nil {
		ce.invokeHost(ctx, caller, callee)
		return
	}

	me, ok := callee.Module.Engine.(*moduleEngine)
	if !ok {
		panic(fmt.Errorf("function %s has no interpreter code", callee.Definition.DebugName()))
	}
	local := callee.Idx - me.importedFuncCount
	if int(local) >= len(me.codes) || me.codes[local].result == nil {
		panic(fmt.Errorf("function %s has no compiled body", callee.Definition.DebugName()))
	}
	ce.callNativeFunc(ctx, callee, me.codes[local].result)
}

func (ce *callEngine) invokeHost(ctx context.Context, caller *wasm.ModuleInstance, callee *wasm.FunctionInstance) {
	n := len(callee.Type.Params)
	if r := len(callee.Type.Results); r > n {
		n = r
	}
	stack := make([]uint64, n)
	for i := len(callee.Type.Params) - 1; i >= 0; i-- {
		stack[i] = ce.popValue()
	}

	ce.pushFrame(&callFrame{fn: callee})
	wasm.CallGoFunc(ctx, caller, callee, stack)
	ce.popFrame()

	for i := 0; i < len(callee.Type.Results); i++ {
		ce.pushValue(stack[i])
	}
}

// callNativeFunc pops fn's parameters off the shared operand stack into a
// fresh locals vector, pushes a call frame, and runs the bytecode loop to
// completion, leaving fn's results on the shared operand stack.
//
// A return_call(_indirect) inside that loop doesn't recurse: run sets
// ce.tailCall and returns, and the loop below reuses frame in place for the
// new callee (new locals, pc reset to 0, same *callFrame, same ce.frames
// depth) before running again. Neither ce.frames nor the Go call stack grows
// per tail call, however deep the chain.
func (ce *callEngine) callNativeFunc(ctx context.Context, fn *wasm.FunctionInstance, result *wazeroir.CompilationResult) {
	locals := make([]uint64, len(result.ParamTypes)+len(result.LocalTypes))
	for i := len(result.ParamTypes) - 1; i >= 0; i-- {
		locals[i] = ce.popValue()
	}

	frame := &callFrame{fn: fn, result: result, locals: locals}
	ce.pushFrame(frame)
	for {
		ce.run(ctx, frame)
		if ce.tailCall == nil {
			break
		}
		callee := ce.tailCall.callee
		ce.tailCall = nil

		if callee.GoFunc != nil {
			// A host function can't be resumed into via frame reuse (it
			// doesn't run on this loop at all); call it ordinarily. This is
			// the one case where a tail call still costs a Go stack frame,
			// scoped out because host calls don't themselves tail-call back
			// into wasm in a way that would accumulate (see DESIGN.md).
			ce.invokeHost(ctx, frame.fn.Module, callee)
			break
		}

		me, ok := callee.Module.Engine.(*moduleEngine)
		if !ok {
			panic(fmt.Errorf("function %s has no interpreter code", callee.Definition.DebugName()))
		}
		local := callee.Idx - me.importedFuncCount
		if int(local) >= len(me.codes) || me.codes[local].result == nil {
			panic(fmt.Errorf("function %s has no compiled body", callee.Definition.DebugName()))
		}
		newResult := me.codes[local].result
		newLocals := make([]uint64, len(newResult.ParamTypes)+len(newResult.LocalTypes))
		for i := len(newResult.ParamTypes) - 1; i >= 0; i-- {
			newLocals[i] = ce.popValue()
		}
		frame.fn = callee
		frame.result = newResult
		frame.locals = newLocals
		frame.pc = 0
		frame.currentExn = nil
	}
	ce.popFrame()
}

// run executes frame's operation list until an operation signals return or
// a tail call replaces frame's callee (see callNativeFunc). wazeroir's
// compiler always terminates a function body with an explicit
// OperationKindReturn, so falling off the end of Operations never happens in
// practice; the loop bound is a defensive invariant, not a normal exit path.
//
// A propagating wasmException (see except.go) unwinds one frame at a time:
// each call to run recovers exactly once, via runSegment, and either resumes
// this frame's loop from a matching catch clause or re-panics to keep
// unwinding into the caller's own run call.
func (ce *callEngine) run(ctx context.Context, frame *callFrame) {
	ops := frame.result.Operations
	for {
		if ce.runSegment(ctx, frame, ops) {
			return
		}
	}
}

func (ce *callEngine) runSegment(ctx context.Context, frame *callFrame, ops []wazeroir.Operation) (done bool) {
	defer func() {
		v := recover()
		if v == nil {
			return
		}
		exc, ok := v.(*wasmException)
		if !ok || !ce.catchInFrame(frame, exc) {
			panic(v)
		}
		done = false // resume the loop: catchInFrame already moved frame.pc to the handler
	}()
	for frame.pc < len(ops) {
		op := &ops[frame.pc]
		if ce.step(ctx, frame, op) {
			return true
		}
		frame.pc++
	}
	return true
}
