package wasm

import (
	"context"

	"github.com/wazerow/wazerow/api"
)

// Engine compiles decoded Modules into directly-callable code and manages
// per-module compiled-code lifetime. internal/engine/interpreter is the one
// Engine implementation wazerow ships.
type Engine interface {
	// CompileModule compiles every function body in module, caching the
	// result keyed by module.ID so repeated instantiation of the same
	// Module is cheap.
	CompileModule(ctx context.Context, module *Module) error

	// CompiledModuleCount returns how many distinct Modules have compiled
	// code cached.
	CompiledModuleCount() uint32

	// DeleteCompiledModule releases the cached code for module. Closing a
	// ModuleInstance does not call it, so cached code stays until it is
	// called explicitly.
	DeleteCompiledModule(module *Module)

	// NewModuleEngine instantiates the compiled code of module against the
	// given imported and module-defined functions, returning a ModuleEngine
	// ready to execute them.
	NewModuleEngine(module *Module, instance *ModuleInstance) (ModuleEngine, error)
}

// ModuleEngine executes the compiled functions of one ModuleInstance.
type ModuleEngine interface {
	// NewFunction returns an invocable handle for the i'th function in the
	// module's function index namespace (imports first).
	NewFunction(index Index) api.Function
}

// Index is a position in one of a module's index namespaces (function,
// table, memory, global, type, tag, element, data).
type Index = uint32
