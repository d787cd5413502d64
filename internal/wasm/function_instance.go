package wasm

import "github.com/wazerow/wazerow/api"

// FunctionKind distinguishes a module-defined wasm function from one
// supplied by the host.
type FunctionKind byte

const (
	FunctionKindWasm FunctionKind = iota
	FunctionKindGoNoContext
	FunctionKindGoContext
	FunctionKindGoModule
)

// FunctionInstance is a function's runtime identity within a ModuleInstance:
// its type, its defining module, and (for wasm-defined functions) a pointer
// to the compiled code the engine produced for it.
type FunctionInstance struct {
	Kind   FunctionKind
	Type   *FunctionType
	Module *ModuleInstance

	// Idx is this function's index in Module's function index namespace.
	Idx uint32
	// Definition carries the export/name/debug metadata surfaced to
	// embedders through api.FunctionDefinition.
	Definition *FunctionDefinitionInstance

	// GoFunc holds the host implementation, set only when Kind != FunctionKindWasm.
	GoFunc interface{}
}

// FunctionDefinitionInstance implements api.FunctionDefinition.
type FunctionDefinitionInstance struct {
	ModuleNameValue string
	IndexValue      uint32
	NameValue       string
	Imported        bool
	ImportModule    string
	ImportName      string
	Exports         []string
	ParamTypesValue  []api.ValueType
	ParamNamesValue  []string
	ResultTypesValue []api.ValueType
	ResultNamesValue []string
}

// ModuleName implements api.FunctionDefinition.
func (f *FunctionDefinitionInstance) ModuleName() string { return f.ModuleNameValue }

// Index implements api.FunctionDefinition.
func (f *FunctionDefinitionInstance) Index() uint32 { return f.IndexValue }

// Name implements api.FunctionDefinition.
func (f *FunctionDefinitionInstance) Name() string { return f.NameValue }

// DebugName implements api.FunctionDefinition.
func (f *FunctionDefinitionInstance) DebugName() string {
	name := f.NameValue
	if name == "" {
		return f.ModuleNameValue
	}
	return f.ModuleNameValue + "." + name
}

// Import implements api.FunctionDefinition.
func (f *FunctionDefinitionInstance) Import() (string, string, bool) {
	return f.ImportModule, f.ImportName, f.Imported
}

// ExportNames implements api.FunctionDefinition.
func (f *FunctionDefinitionInstance) ExportNames() []string { return f.Exports }

// ParamTypes implements api.FunctionDefinition.
func (f *FunctionDefinitionInstance) ParamTypes() []api.ValueType { return f.ParamTypesValue }

// ParamNames implements api.FunctionDefinition.
func (f *FunctionDefinitionInstance) ParamNames() []string { return f.ParamNamesValue }

// ResultTypes implements api.FunctionDefinition.
func (f *FunctionDefinitionInstance) ResultTypes() []api.ValueType { return f.ResultTypesValue }

// ResultNames implements api.FunctionDefinition.
func (f *FunctionDefinitionInstance) ResultNames() []string { return f.ResultNamesValue }

var _ api.FunctionDefinition = (*FunctionDefinitionInstance)(nil)
