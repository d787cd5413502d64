package wasm

import (
	"fmt"

	"github.com/wazerow/wazerow/api"
)

// validateModule checks the structural invariants spec.md §4.2 requires
// that aren't already enforced by the binary decoder's section-order
// parsing: index-space bounds, declared-limits sanity, feature gating, and
// the GC proposal's declared supertype lattice (validateGCSubtyping).
//
// Per-instruction operand-stack type checking (the polymorphic-stack and
// branch-target-arity rules) happens in internal/wazeroir's lowering pass
// instead of a second walk here: CompileFunction already tracks an
// operand-type stack to lower each instruction, so re-deriving the same
// information in a separate validator pass would only risk the two
// disagreeing. That pass rejects a module (returning an error from
// CompileFunction, surfaced before the module is ever instantiated) exactly
// as this one does; the two together are what make ill-typed input
// impossible to observe past module compilation.
func validateModule(m *Module, features Features) error {
	numTypes := uint32(len(m.TypeSection))
	for _, imp := range m.ImportSection {
		switch imp.Type {
		case api.ExternTypeFunc:
			if imp.DescFunc >= numTypes {
				return fmt.Errorf("import %s.%s: type index %d out of range", imp.Module, imp.Name, imp.DescFunc)
			}
		case api.ExternTypeTable:
			if err := validateTableType(imp.DescTable, features); err != nil {
				return err
			}
		case api.ExternTypeMemory:
			if err := validateMemoryType(imp.DescMem, features); err != nil {
				return err
			}
		case api.ExternTypeTag:
			if err := features.RequireEnabled(api.CoreFeatureExceptionHandling); err != nil {
				return err
			}
		}
	}

	for _, typeIdx := range m.FunctionSection {
		if typeIdx >= numTypes {
			return fmt.Errorf("function: type index %d out of range", typeIdx)
		}
	}

	for _, t := range m.TableSection {
		if err := validateTableType(t, features); err != nil {
			return err
		}
	}
	if len(m.TableSection)+int(m.ImportTableCount()) > 1 {
		if err := features.RequireEnabled(api.CoreFeatureReferenceTypes); err != nil {
			return fmt.Errorf("multiple tables: %w", err)
		}
	}

	for _, mem := range m.MemorySection {
		if err := validateMemoryType(mem, features); err != nil {
			return err
		}
	}
	if len(m.MemorySection)+int(m.ImportMemoryCount()) > 1 {
		if err := features.RequireEnabled(api.CoreFeatureMultiMemory); err != nil {
			return fmt.Errorf("multiple memories: %w", err)
		}
	}

	if len(m.TagSection) > 0 {
		if err := features.RequireEnabled(api.CoreFeatureExceptionHandling); err != nil {
			return err
		}
	}

	funcCount := m.ImportFuncCount() + uint32(len(m.FunctionSection))
	tableCount := m.ImportTableCount() + uint32(len(m.TableSection))
	memCount := m.ImportMemoryCount() + uint32(len(m.MemorySection))
	globalCount := m.ImportGlobalCount() + uint32(len(m.GlobalSection))
	tagCount := m.ImportTagCount() + uint32(len(m.TagSection))

	for _, e := range m.ExportSection {
		var max uint32
		switch e.Type {
		case api.ExternTypeFunc:
			max = funcCount
		case api.ExternTypeTable:
			max = tableCount
		case api.ExternTypeMemory:
			max = memCount
		case api.ExternTypeGlobal:
			max = globalCount
		case api.ExternTypeTag:
			max = tagCount
		}
		if e.Index >= max {
			return fmt.Errorf("export %q: index %d out of range", e.Name, e.Index)
		}
	}

	if m.StartSection != nil {
		ft := m.TypeOfFunction(*m.StartSection)
		if ft == nil {
			return fmt.Errorf("start function: index %d out of range", *m.StartSection)
		}
		if len(ft.Params) != 0 || len(ft.Results) != 0 {
			return fmt.Errorf("start function must have no params or results")
		}
	}

	for _, seg := range m.ElementSection {
		if seg.Mode == ElementModeActive && seg.TableIndex >= tableCount {
			return fmt.Errorf("element segment: table index %d out of range", seg.TableIndex)
		}
	}
	for _, seg := range m.DataSection {
		if seg.Mode == DataModeActive && seg.MemoryIndex >= memCount {
			return fmt.Errorf("data segment: memory index %d out of range", seg.MemoryIndex)
		}
	}
	if len(m.DataSection) > 0 {
		hasPassive := false
		for _, seg := range m.DataSection {
			if seg.Mode == DataModePassive {
				hasPassive = true
			}
		}
		if hasPassive && m.DataCountSection == nil {
			if err := features.RequireEnabled(api.CoreFeatureBulkMemoryOperations); err != nil {
				return err
			}
		}
	}

	for _, td := range m.TypeSection {
		switch td.Kind {
		case CompositeTypeKindStruct, CompositeTypeKindArray:
			if err := features.RequireEnabled(api.CoreFeatureGC); err != nil {
				return err
			}
		}
	}
	if err := validateGCSubtyping(m); err != nil {
		return err
	}

	return nil
}

func validateTableType(t *Table, features Features) error {
	if t == nil {
		return fmt.Errorf("nil table type")
	}
	if t.Type != api.ValueTypeFuncref {
		if err := features.RequireEnabled(api.CoreFeatureReferenceTypes); err != nil {
			return err
		}
	}
	if t.Max != nil && t.Min > *t.Max {
		return fmt.Errorf("table: min %d exceeds max %d", t.Min, *t.Max)
	}
	return nil
}

func validateMemoryType(m *Memory, features Features) error {
	if m == nil {
		return fmt.Errorf("nil memory type")
	}
	if m.Max > MemoryLimitPages || m.Min > MemoryLimitPages {
		return fmt.Errorf("memory: size exceeds %d pages", MemoryLimitPages)
	}
	if m.Min > m.Max {
		return fmt.Errorf("memory: min %d exceeds max %d", m.Min, m.Max)
	}
	if m.Shared {
		if err := features.RequireEnabled(api.CoreFeatureThreads); err != nil {
			return err
		}
	}
	if m.PageSize != 0 && m.PageSize != MemoryPageSize {
		if err := features.RequireEnabled(api.CoreFeatureCustomPageSizes); err != nil {
			return err
		}
	}
	return nil
}
