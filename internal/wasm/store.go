package wasm

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/wazerow/wazerow/api"
)

// The following are the closed set of link errors, raised while resolving
// imports or applying element/data segments during instantiation.
var (
	ErrImportNotFound          = fmt.Errorf("import not found")
	ErrImportTypeMismatch      = fmt.Errorf("import type mismatch")
	ErrElementOffsetOutOfBounds = fmt.Errorf("element segment does not fit")
	ErrDataOffsetOutOfBounds   = fmt.Errorf("data segment does not fit")
	ErrModuleNameAlreadyInUse  = fmt.Errorf("module name already in use")
)

// Store is the process-wide arena backing every ModuleInstance: it owns the
// GC heap, the function-type interning cache, and the registry of named
// module instances available for cross-module imports. A Store outlives any
// single ModuleInstance and is safe for concurrent use.
type Store struct {
	mux sync.RWMutex

	modules map[string]*ModuleInstance

	Heap Heap

	Engine Engine

	typeIDs    *lru.Cache[string, FunctionTypeID]
	nextTypeID FunctionTypeID

	EnabledFeatures Features
}

// NewStore creates an empty Store bound to the given Engine.
func NewStore(engine Engine, features Features) *Store {
	cache, _ := lru.New[string, FunctionTypeID](4096)
	return &Store{
		modules:         map[string]*ModuleInstance{},
		Engine:          engine,
		typeIDs:         cache,
		EnabledFeatures: features,
	}
}

// getTypeID interns t, returning a process-unique small integer so indirect
// calls can compare signatures in O(1).
func (s *Store) getTypeID(t *FunctionType) FunctionTypeID {
	s.mux.Lock()
	defer s.mux.Unlock()
	key := t.key()
	if id, ok := s.typeIDs.Get(key); ok {
		t.cachedTypeID = id
		return id
	}
	s.nextTypeID++
	id := s.nextTypeID
	s.typeIDs.Add(key, id)
	t.cachedTypeID = id
	return id
}

// GetFunctionTypeID interns t if necessary and returns its FunctionTypeID,
// for engines that need to compare a call_indirect's declared type against a
// table-resident function's actual type in O(1).
func (s *Store) GetFunctionTypeID(t *FunctionType) FunctionTypeID {
	return s.getTypeID(t)
}

// Module looks up a registered ModuleInstance by name.
func (s *Store) Module(name string) *ModuleInstance {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.modules[name]
}

// registerModule adds instance under name, failing if the name is taken.
func (s *Store) registerModule(name string, instance *ModuleInstance) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	if _, ok := s.modules[name]; ok {
		return ErrModuleNameAlreadyInUse
	}
	s.modules[name] = instance
	return nil
}

// deleteModule removes name's registration, called on Module.Close.
func (s *Store) deleteModule(name string) {
	s.mux.Lock()
	defer s.mux.Unlock()
	delete(s.modules, name)
}

// Instantiate runs the instantiation algorithm (spec.md §4.4) against
// module, binding it under moduleName:
//
//  1. Resolve every import against already-registered modules.
//  2. Build table/memory/global/tag instances for module-defined
//     declarations, evaluating constant expressions (globals may reference
//     already-resolved imported globals, per the spec's validity rule that
//     global.get in a const-expr may only name an imported global).
//  3. Build FunctionInstances for module-defined functions.
//  4. Apply active element segments (trapping the whole instantiation if
//     any is out of bounds) and passive/declarative ones become
//     ElementInstances.
//  5. Apply active data segments, similarly.
//  6. Run the start function, if present.
func (s *Store) Instantiate(ctx context.Context, module *Module, moduleName string, sysCtx *SysContext, config *ModuleConfig) (*ModuleInstance, error) {
	instance := &ModuleInstance{
		ModuleName: moduleName,
		Source:     module,
		Store:      s,
		Sys:        sysCtx,
	}

	if err := s.resolveImports(instance, module, config); err != nil {
		return nil, err
	}

	for _, g := range module.GlobalSection {
		val, valHi := evalConstExpr(instance, g.Init)
		instance.Globals = append(instance.Globals, &GlobalInstance{DeclaredType: g.Type, Val: val, ValHi: valHi})
	}

	for _, t := range module.TableSection {
		instance.Tables = append(instance.Tables, NewTableInstance(t))
	}

	for _, m := range module.MemorySection {
		instance.Memories = append(instance.Memories, NewMemoryInstance(m))
	}

	for _, tg := range module.TagSection {
		instance.Tags = append(instance.Tags, NewTagInstance(tg.Type))
	}

	importFuncCount := module.ImportFuncCount()
	exportNames := module.functionExportNames()
	for i, typeIdx := range module.FunctionSection {
		idx := importFuncCount + uint32(i)
		ft := module.TypeSection[typeIdx].FunctionType
		fn := &FunctionInstance{
			Kind:   FunctionKindWasm,
			Type:   ft,
			Module: instance,
			Idx:    idx,
		}

		name := ""
		if module.NameSection != nil {
			name = module.NameSection.FunctionNames[idx]
		}
		fn.Definition = &FunctionDefinitionInstance{
			ModuleNameValue:  moduleName,
			IndexValue:       idx,
			NameValue:        name,
			Exports:          exportNames[idx],
			ParamTypesValue:  ft.Params,
			ResultTypesValue: ft.Results,
		}

		if hf := module.HostFuncAt(uint32(i)); hf != nil {
			fn.GoFunc = hf.Code.GoFunc
			if _, ok := hf.Code.GoFunc.(api.GoModuleFunction); ok {
				fn.Kind = FunctionKindGoModule
			} else {
				fn.Kind = FunctionKindGoContext
			}
			if hf.Name != "" {
				fn.Definition.NameValue = hf.Name
			}
		}

		s.getTypeID(fn.Type)
		instance.Functions = append(instance.Functions, fn)
	}

	if err := s.applyElementSegments(instance, module); err != nil {
		return nil, err
	}
	if err := s.applyDataSegments(instance, module); err != nil {
		return nil, err
	}

	if s.Engine != nil {
		me, err := s.Engine.NewModuleEngine(module, instance)
		if err != nil {
			return nil, fmt.Errorf("compiling module %q: %w", moduleName, err)
		}
		instance.Engine = me
	}

	if module.StartSection != nil && instance.Engine != nil {
		start := instance.Engine.NewFunction(*module.StartSection)
		if _, err := start.Call(ctx); err != nil {
			return nil, fmt.Errorf("start function failed: %w", err)
		}
	}

	if err := s.registerModule(moduleName, instance); err != nil {
		return nil, err
	}
	return instance, nil
}

func (s *Store) resolveImports(instance *ModuleInstance, module *Module, config *ModuleConfig) error {
	for _, imp := range module.ImportSection {
		src := s.Module(imp.Module)
		if src == nil {
			return fmt.Errorf("%w: module %q for import %q.%q", ErrImportNotFound, imp.Module, imp.Module, imp.Name)
		}
		exp := src.Source.Exports(imp.Name)
		if exp == nil || exp.Type != imp.Type {
			return fmt.Errorf("%w: %q.%q", ErrImportNotFound, imp.Module, imp.Name)
		}
		switch imp.Type {
		case api.ExternTypeFunc:
			fn := src.Function(exp.Index)
			wantType := module.TypeSection[imp.DescFunc].FunctionType
			if !fn.Type.EqualsSignature(wantType.Params, wantType.Results) {
				return fmt.Errorf("%w: func %q.%q", ErrImportTypeMismatch, imp.Module, imp.Name)
			}
			instance.Functions = append(instance.Functions, fn)
		case api.ExternTypeTable:
			t := src.Tables[localIndex(src.Source, exp.Index, api.ExternTypeTable)]
			instance.Tables = append(instance.Tables, t)
		case api.ExternTypeMemory:
			m := src.Memories[localIndex(src.Source, exp.Index, api.ExternTypeMemory)]
			instance.Memories = append(instance.Memories, m)
		case api.ExternTypeGlobal:
			g := src.Globals[localIndex(src.Source, exp.Index, api.ExternTypeGlobal)]
			if g.DeclaredType.ValType != imp.DescGlobal.ValType || g.DeclaredType.Mutable != imp.DescGlobal.Mutable {
				return fmt.Errorf("%w: global %q.%q", ErrImportTypeMismatch, imp.Module, imp.Name)
			}
			instance.Globals = append(instance.Globals, g)
		case api.ExternTypeTag:
			tg := src.Tags[localIndex(src.Source, exp.Index, api.ExternTypeTag)]
			instance.Tags = append(instance.Tags, tg)
		}
	}
	return nil
}

// localIndex converts a combined (import+module-defined) index namespace
// position into an offset within just the module-defined slice, which is
// how ModuleInstance stores already-resolved imports followed by locals.
func localIndex(m *Module, idx uint32, t api.ExternType) uint32 {
	return idx // ModuleInstance slices are laid out import-then-local, same as the combined namespace.
}

// applyElementSegments builds one ElementInstance per declared segment, in
// declaration order, so table.init/elem.drop's segment-index operand lines
// up with instance.Elements regardless of segment mode. Active and
// declarative segments are dropped (emptied) immediately after
// instantiation, per the bulk-memory proposal: an active segment's elements
// are only ever visible during the copy into its target table.
func (s *Store) applyElementSegments(instance *ModuleInstance, module *Module) error {
	for _, seg := range module.ElementSection {
		refs := instance.resolveElementInits(seg)
		switch seg.Mode {
		case ElementModeActive:
			table := instance.Tables[seg.TableIndex]
			offset, _ := evalConstExpr(instance, seg.OffsetExpr)
			start := uint32(offset)
			if uint64(start)+uint64(len(refs)) > uint64(len(table.References)) {
				return ErrElementOffsetOutOfBounds
			}
			copy(table.References[start:], refs)
			instance.Elements = append(instance.Elements, &ElementInstance{Type: seg.Type, References: nil})
		case ElementModePassive:
			instance.Elements = append(instance.Elements, &ElementInstance{Type: seg.Type, References: refs})
		case ElementModeDeclarative:
			instance.Elements = append(instance.Elements, &ElementInstance{Type: seg.Type, References: nil})
		}
	}
	return nil
}

// applyDataSegments mirrors applyElementSegments for data segments: every
// segment gets a DataInstance at its declaration-order index, with active
// ones dropped immediately after their instantiation-time copy.
func (s *Store) applyDataSegments(instance *ModuleInstance, module *Module) error {
	for _, seg := range module.DataSection {
		switch seg.Mode {
		case DataModeActive:
			mem := instance.Memories[seg.MemoryIndex]
			offset, _ := evalConstExpr(instance, seg.OffsetExpr)
			start := uint64(offset)
			if start+uint64(len(seg.Init)) > uint64(len(mem.Buffer)) {
				return ErrDataOffsetOutOfBounds
			}
			copy(mem.Buffer[start:], seg.Init)
			instance.DataInstances = append(instance.DataInstances, &DataInstance{Bytes: nil})
		case DataModePassive:
			instance.DataInstances = append(instance.DataInstances, &DataInstance{Bytes: seg.Init})
		}
	}
	return nil
}

// resolveElementInits materializes an element segment's references, either
// from its function-index form or its expression form.
func (instance *ModuleInstance) resolveElementInits(seg *ElementSegment) []Ref {
	if len(seg.InitExprs) > 0 {
		refs := make([]Ref, len(seg.InitExprs))
		for i, e := range seg.InitExprs {
			v, _ := evalConstExpr(instance, e)
			refs[i] = Ref(v)
		}
		return refs
	}
	refs := make([]Ref, len(seg.Init))
	for i, funcIdx := range seg.Init {
		refs[i] = instance.funcRef(funcIdx)
	}
	return refs
}
