// Package wazero is a WebAssembly Core runtime written in Go. It decodes,
// validates, and executes WebAssembly binaries against a pure-Go
// interpreter, with no cgo or platform-specific assembly.
//
// The below is a very simple example of using this library:
//
//	ctx := context.Background()
//	r := wazero.NewRuntime(ctx)
//	defer r.Close(ctx) // This closes everything this Runtime created.
//
//	compiled, _ := r.CompileModule(ctx, wasmBinary)
//	mod, _ := r.InstantiateModule(ctx, compiled, wazero.NewModuleConfig())
//	results, _ := mod.ExportedFunction("add").Call(ctx, 1, 2)
package wazero

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/wazerow/wazerow/api"
	"github.com/wazerow/wazerow/internal/engine/interpreter"
	"github.com/wazerow/wazerow/internal/wasm"
	"github.com/wazerow/wazerow/internal/wasm/binary"
)

// Runtime allows embedding of WebAssembly modules.
//
// The below is a basic example of decoding and running a factorial function:
//
//	r := wazero.NewRuntime(ctx)
//	defer r.Close(ctx) // This closes everything this Runtime created.
//
//	mod, _ := r.InstantiateModuleFromBinary(ctx, wasmBinary)
//	ret, _ := mod.ExportedFunction("fac").Call(ctx, 20)
//	result := ret[0] // Call returns results as []uint64
//
// # Notes
//
//   - This is an interface for decoupling, not third-party implementations.
//     All implementations are in wazerow.
type Runtime interface {
	// NewHostModuleBuilder lets you create host functions that a
	// WebAssembly binary can import. moduleName is the module name given
	// to the import, e.g. "wasi_snapshot_preview1".
	NewHostModuleBuilder(moduleName string) HostModuleBuilder

	// CompileModule decodes the WebAssembly binary (%.wasm) and validates
	// it. This can be used to instantiate the same module multiple times
	// without re-decoding and re-validating it each time.
	//
	// There are no unresolved imports checked during CompileModule:
	// resolution happens during InstantiateModule.
	CompileModule(ctx context.Context, binary []byte) (CompiledModule, error)

	// InstantiateModule instantiates the module namespace, resolving
	// imports against any modules previously instantiated in this
	// Runtime, and running the start function, if present.
	//
	// If moduleConfig doesn't set WithName, the name from the module's
	// custom name section (if any) is used.
	InstantiateModule(ctx context.Context, compiled CompiledModule, moduleConfig *ModuleConfig) (api.Module, error)

	// InstantiateModuleFromBinary is a convenience that calls CompileModule,
	// then InstantiateModule with NewModuleConfig.
	InstantiateModuleFromBinary(ctx context.Context, binary []byte) (api.Module, error)

	// Module returns an instantiated module in this Runtime, or nil if
	// there aren't any with the given name.
	Module(moduleName string) api.Module

	api.Closer
}

// runtime implements Runtime.
type runtime struct {
	store            *wasm.Store
	enabledFeatures  api.CoreFeatures
	ctx              context.Context
	memoryLimitPages uint32
	cache            Cache

	mux     sync.Mutex
	modules []api.Module
}

// NewRuntime returns a Runtime with the default RuntimeConfig.
//
// Ex.
//
//	ctx := context.Background()
//	r := wazero.NewRuntime(ctx)
//	defer r.Close(ctx) // This closes everything this Runtime created.
func NewRuntime(ctx context.Context) Runtime {
	return NewRuntimeWithConfig(ctx, NewRuntimeConfig())
}

// NewRuntimeWithConfig returns a Runtime with the given RuntimeConfig.
func NewRuntimeWithConfig(ctx context.Context, rConfig *RuntimeConfig) Runtime {
	if rConfig == nil {
		rConfig = NewRuntimeConfig()
	}
	if ctx == nil {
		ctx = rConfig.ctx
	}

	return &runtime{
		store:            wasm.NewStore(interpreter.NewEngine(), rConfig.enabledFeatures),
		enabledFeatures:  rConfig.enabledFeatures,
		ctx:              rConfig.ctx,
		memoryLimitPages: rConfig.memoryLimitPages,
		cache:            rConfig.cache,
	}
}

// CompileModule implements Runtime.CompileModule
func (r *runtime) CompileModule(ctx context.Context, wasmBinary []byte) (CompiledModule, error) {
	module, err := binary.DecodeModule(wasmBinary)
	if err != nil {
		return CompiledModule{}, fmt.Errorf("decode: %w", err)
	}
	if err = module.Validate(r.enabledFeatures); err != nil {
		return CompiledModule{}, fmt.Errorf("validate: %w", err)
	}
	applyMemoryLimit(module, r.memoryLimitPages)

	if err = r.store.Engine.CompileModule(ctx, module); err != nil {
		return CompiledModule{}, fmt.Errorf("compile: %w", err)
	}
	return CompiledModule{module: module}, nil
}

// applyMemoryLimit sets Max on any memory declaration that didn't encode its
// own, per spec.md's memory limit semantics: an implementation-chosen upper
// bound applies when a module doesn't name one.
func applyMemoryLimit(module *wasm.Module, limitPages uint32) {
	for _, m := range module.MemorySection {
		if !m.IsMaxEncoded {
			m.Max = limitPages
		}
	}
}

// InstantiateModuleFromBinary implements Runtime.InstantiateModuleFromBinary
func (r *runtime) InstantiateModuleFromBinary(ctx context.Context, wasmBinary []byte) (api.Module, error) {
	compiled, err := r.CompileModule(ctx, wasmBinary)
	if err != nil {
		return nil, err
	}
	return r.InstantiateModule(ctx, compiled, NewModuleConfig())
}

// InstantiateModule implements Runtime.InstantiateModule
func (r *runtime) InstantiateModule(ctx context.Context, compiled CompiledModule, moduleConfig *ModuleConfig) (api.Module, error) {
	if compiled.module == nil {
		return nil, errors.New("wazero: compiled module is the zero value")
	}
	if moduleConfig == nil {
		moduleConfig = NewModuleConfig()
	}
	if ctx == nil {
		ctx = r.ctx
	}

	name := moduleConfig.name
	if name == "" && compiled.module.NameSection != nil {
		name = compiled.module.NameSection.ModuleName
	}

	sysCtx, err := moduleConfig.toSysContext()
	if err != nil {
		return nil, err
	}

	instance, err := r.store.Instantiate(ctx, compiled.module, name, sysCtx, &wasm.ModuleConfig{Name: name, Sys: sysCtx})
	if err != nil {
		return nil, err
	}

	r.mux.Lock()
	r.modules = append(r.modules, instance)
	r.mux.Unlock()
	return instance, nil
}

// Module implements Runtime.Module
func (r *runtime) Module(moduleName string) api.Module {
	if instance := r.store.Module(moduleName); instance != nil {
		return instance
	}
	return nil
}

// Close implements api.Closer
func (r *runtime) Close(ctx context.Context) error {
	r.mux.Lock()
	modules := r.modules
	r.modules = nil
	r.mux.Unlock()

	for _, m := range modules {
		_ = m.Close(ctx)
	}
	return nil
}
