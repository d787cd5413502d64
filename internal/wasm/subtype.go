package wasm

import "fmt"

// IsSubtype reports whether the composite type at index sub is type index
// super itself, or was declared (via an explicit `sub` clause) to descend
// from it. It walks TypeDefinition.SuperType chains rather than comparing
// structural shape, matching the GC proposal's nominal (not structural)
// subtyping rule: two otherwise-identical struct types are related only if
// one's declaration names the other as an ancestor.
//
// Used by the interpreter's ref.test/ref.cast at run time (checking a heap
// object's declared type against a dynamic target); validateGCSubtyping
// does not call it.
func IsSubtype(types []*TypeDefinition, sub, super int32) bool {
	for sub >= 0 {
		if sub == super {
			return true
		}
		if int(sub) >= len(types) {
			return false
		}
		sub = types[sub].SuperType
	}
	return sub == super
}

// validateGCSubtyping checks every type declaration's explicit `sub`
// supertype: the index must be in range, name a type of the same composite
// kind, not be declared `final`, and every field the supertype exposes must
// still be present with compatible storage and mutability. Structs may
// extend with extra trailing fields (struct subtyping is depth-, not
// width-invariant); arrays, having one element type, offer no such room.
//
// Field types themselves are required to match supertype fields exactly
// rather than covariantly widen: FieldType only carries an abstract
// ValueType, not a specific struct/array type index, so there's no way to
// ask "is this field's concrete type a subtype of that one's" without more
// plumbing than the scope here affords. Requiring equality is conservative
// (it rejects some modules the full proposal accepts) but never unsound.
func validateGCSubtyping(m *Module) error {
	for i, td := range m.TypeSection {
		if td.SuperType < 0 {
			continue
		}
		if int(td.SuperType) >= len(m.TypeSection) {
			return fmt.Errorf("type %d: supertype index %d out of range", i, td.SuperType)
		}
		super := m.TypeSection[td.SuperType]
		if super.Final {
			return fmt.Errorf("type %d: declares %d as supertype, but %d is final", i, td.SuperType, td.SuperType)
		}
		if super.Kind != td.Kind {
			return fmt.Errorf("type %d: supertype %d is a different composite kind", i, td.SuperType)
		}
		switch td.Kind {
		case CompositeTypeKindStruct:
			if len(td.StructType.Fields) < len(super.StructType.Fields) {
				return fmt.Errorf("type %d: has fewer fields than its supertype %d", i, td.SuperType)
			}
			for fi := range super.StructType.Fields {
				sf, of := super.StructType.Fields[fi], td.StructType.Fields[fi]
				if of.Kind != sf.Kind {
					return fmt.Errorf("type %d: field %d storage kind doesn't match supertype", i, fi)
				}
				if of.Mutable != sf.Mutable {
					return fmt.Errorf("type %d: field %d mutability doesn't match supertype", i, fi)
				}
				if of.Kind == StorageKindValueType && of.ValueType != sf.ValueType {
					return fmt.Errorf("type %d: field %d type doesn't match supertype", i, fi)
				}
			}
		case CompositeTypeKindArray:
			sf, of := super.ArrayType.Element, td.ArrayType.Element
			if of.Kind != sf.Kind {
				return fmt.Errorf("type %d: element storage kind doesn't match supertype", i)
			}
			if of.Mutable != sf.Mutable {
				return fmt.Errorf("type %d: element mutability doesn't match supertype", i)
			}
			if of.Kind == StorageKindValueType && of.ValueType != sf.ValueType {
				return fmt.Errorf("type %d: element type doesn't match supertype", i)
			}
		}
	}
	return nil
}
