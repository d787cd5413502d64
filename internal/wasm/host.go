package wasm

import (
	"crypto/sha256"
	"fmt"

	"github.com/wazerow/wazerow/api"
)

// HostFunc describes one function of a host module before it is folded into
// a Module: either a raw Go func (mapped via reflection at Compile time) or
// an already-typed api.GoFunction/api.GoModuleFunction.
type HostFunc struct {
	ExportName  string
	Name        string
	ParamTypes  []api.ValueType
	ResultTypes []api.ValueType
	ParamNames  []string
	ResultNames []string
	Code        HostCode
}

// HostCode holds whichever calling convention the builder was given.
type HostCode struct {
	GoFunc interface{}
}

// HostFuncExporter receives one finished HostFunc. HostModuleBuilder (root
// package) implements this to accumulate Export(name) calls.
type HostFuncExporter interface {
	ExportHostFunc(fn *HostFunc)
}

// NewHostModule synthesizes a Module purely from host-declared functions and
// exported memories, with no binary form: the function and type sections
// are built directly from nameToHostFunc, skipping the decoder entirely.
func NewHostModule(moduleName string, exportNames []string, nameToHostFunc map[string]*HostFunc, nameToMemory map[string]*Memory, features Features) (*Module, error) {
	// Host modules have no binary form to hash, so derive an ID from the
	// module name: distinct enough to keep the Engine's per-Module code
	// cache from conflating two different host modules.
	m := &Module{ID: sha256.Sum256([]byte(moduleName))}

	for _, name := range exportNames {
		hf := nameToHostFunc[name]
		params, results, err := hostFuncSignature(hf)
		if err != nil {
			return nil, fmt.Errorf("func[%s.%s] %w", moduleName, name, err)
		}
		ft := &FunctionType{Params: params, Results: results}
		typeIdx := uint32(len(m.TypeSection))
		m.TypeSection = append(m.TypeSection, &TypeDefinition{Kind: CompositeTypeKindFunction, FunctionType: ft, SuperType: -1})
		m.FunctionSection = append(m.FunctionSection, typeIdx)

		funcIdx := uint32(len(m.FunctionSection) - 1)
		m.ExportSection = append(m.ExportSection, &Export{Type: api.ExternTypeFunc, Name: name, Index: funcIdx})

		localName := hf.Name
		if localName == "" {
			localName = name
		}
		if m.NameSection == nil {
			m.NameSection = &NameSection{FunctionNames: map[uint32]string{}}
		}
		m.NameSection.FunctionNames[funcIdx] = localName

		m.CodeSection = append(m.CodeSection, &Code{})
		m.hostFuncs = append(m.hostFuncs, hf)
	}

	for name, mem := range nameToMemory {
		idx := uint32(len(m.MemorySection))
		m.MemorySection = append(m.MemorySection, mem)
		m.ExportSection = append(m.ExportSection, &Export{Type: api.ExternTypeMemory, Name: name, Index: idx})
	}

	return m, nil
}

func hostFuncSignature(hf *HostFunc) ([]api.ValueType, []api.ValueType, error) {
	if hf.ParamTypes != nil || hf.ResultTypes != nil || hf.Code.GoFunc == nil {
		return hf.ParamTypes, hf.ResultTypes, nil
	}
	params, results, err := reflectSignature(hf.Code.GoFunc)
	if err != nil {
		return nil, nil, err
	}
	hf.ParamTypes, hf.ResultTypes = params, results
	return params, results, nil
}

// Validate performs the structural validation spec.md §4.2 requires, for
// modules that bypassed the binary decoder (host modules) as well as those
// that went through it.
func (m *Module) Validate(features Features) error {
	return validateModule(m, features)
}

// HostFuncAt returns the HostFunc backing module-defined function index idx
// in a host module, or nil if this isn't a host module or idx is a
// non-host function.
func (m *Module) HostFuncAt(idx uint32) *HostFunc {
	if int(idx) >= len(m.hostFuncs) {
		return nil
	}
	return m.hostFuncs[idx]
}
