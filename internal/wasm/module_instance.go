package wasm

import (
	"context"
	"fmt"

	"github.com/wazerow/wazerow/api"
)

// ModuleInstance is a Module bound to a Store: resolved imports followed by
// module-defined declarations, in each index namespace, exactly mirroring
// the combined index space the binary format defines.
type ModuleInstance struct {
	ModuleName string
	Source     *Module
	Store      *Store
	Sys        *SysContext
	Engine     ModuleEngine

	Functions     []*FunctionInstance
	Tables        []*TableInstance
	Memories      []*MemoryInstance
	Globals       []*GlobalInstance
	Tags          []*TagInstance
	Elements      []*ElementInstance
	DataInstances []*DataInstance

	closed bool
	exitCode uint32
}

// String implements fmt.Stringer.
func (m *ModuleInstance) String() string { return fmt.Sprintf("Module[%s]", m.ModuleName) }

// Name implements api.Module.
func (m *ModuleInstance) Name() string { return m.ModuleName }

// Memory implements api.Module.
func (m *ModuleInstance) Memory() api.Memory {
	if len(m.Memories) == 0 {
		return nil
	}
	return m.Memories[0]
}

// Function looks up a function by combined index, or nil if out of range.
func (m *ModuleInstance) Function(idx uint32) *FunctionInstance {
	if int(idx) >= len(m.Functions) {
		return nil
	}
	return m.Functions[idx]
}

// funcRef produces the Ref encoding of function idx for use in a table slot
// or constant expression result: boxed onto the GC heap so funcref shares
// Ref's uniform handle representation with every other reference type.
func (m *ModuleInstance) funcRef(idx uint32) Ref {
	fn := m.Function(idx)
	if fn == nil {
		return NullRef
	}
	return m.Store.Heap.NewFuncRef(fn)
}

// ExportedFunction implements api.Module.
func (m *ModuleInstance) ExportedFunction(name string) api.Function {
	exp := m.Source.Exports(name)
	if exp == nil || exp.Type != api.ExternTypeFunc || m.Engine == nil {
		return nil
	}
	return m.Engine.NewFunction(exp.Index)
}

// ExportedMemory implements api.Module.
func (m *ModuleInstance) ExportedMemory(name string) api.Memory {
	exp := m.Source.Exports(name)
	if exp == nil || exp.Type != api.ExternTypeMemory {
		return nil
	}
	return m.Memories[exp.Index]
}

// ExportedTable implements api.Module.
func (m *ModuleInstance) ExportedTable(name string) api.Table {
	exp := m.Source.Exports(name)
	if exp == nil || exp.Type != api.ExternTypeTable {
		return nil
	}
	return m.Tables[exp.Index]
}

// ExportedGlobal implements api.Module.
func (m *ModuleInstance) ExportedGlobal(name string) api.Global {
	exp := m.Source.Exports(name)
	if exp == nil || exp.Type != api.ExternTypeGlobal {
		return nil
	}
	return m.Globals[exp.Index]
}

// Close implements api.Closer.
func (m *ModuleInstance) Close(ctx context.Context) error {
	return m.CloseWithExitCode(ctx, 0)
}

// CloseWithExitCode implements api.Module.
func (m *ModuleInstance) CloseWithExitCode(_ context.Context, exitCode uint32) error {
	if m.closed {
		return nil
	}
	m.closed = true
	m.exitCode = exitCode
	m.Store.deleteModule(m.ModuleName)
	return nil
}

var _ api.Module = (*ModuleInstance)(nil)
