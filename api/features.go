package api

import (
	"fmt"
	"sort"
	"strings"
)

// CoreFeatures is a bitset of WebAssembly Core specification proposals that
// an embedder may opt into. The zero value has none enabled: iota starts at
// 1 because a bitset cannot use zero as a flag.
type CoreFeatures uint64

const (
	// CoreFeatureMutableGlobal allows globals to be mutable. Finished in
	// WebAssembly 1.0 (20191205).
	CoreFeatureMutableGlobal CoreFeatures = 1 << iota
	// CoreFeatureSignExtensionOps adds sign-extension instructions.
	CoreFeatureSignExtensionOps
	// CoreFeatureMultiValue allows multiple result types and arbitrary block
	// types.
	CoreFeatureMultiValue
	// CoreFeatureNonTrappingFloatToIntConversion adds the *.trunc_sat_*
	// instructions.
	CoreFeatureNonTrappingFloatToIntConversion
	// CoreFeatureBulkMemoryOperations adds memory.copy, memory.fill,
	// table.copy and the *.init/*.drop instructions.
	CoreFeatureBulkMemoryOperations
	// CoreFeatureReferenceTypes adds funcref/externref value types and their
	// instructions.
	CoreFeatureReferenceTypes
	// CoreFeatureSIMD adds the v128 value type and vector instructions.
	CoreFeatureSIMD
	// CoreFeatureMultiMemory allows more than one memory per module.
	CoreFeatureMultiMemory
	// CoreFeatureThreads adds shared memories and atomic instructions.
	CoreFeatureThreads
	// CoreFeatureTailCall adds return_call/return_call_indirect/
	// return_call_ref.
	CoreFeatureTailCall
	// CoreFeatureExceptionHandling adds tags, throw, throw_ref and
	// try_table.
	CoreFeatureExceptionHandling
	// CoreFeatureGC adds struct/array heap types and their instructions,
	// building on CoreFeatureReferenceTypes.
	CoreFeatureGC
	// CoreFeatureCustomPageSizes allows memories to declare a page size
	// other than the default 64KiB.
	CoreFeatureCustomPageSizes
)

// CoreFeaturesV1 are features included in the WebAssembly Core
// Specification 1.0 (20191205).
const CoreFeaturesV1 = CoreFeatureMutableGlobal

// CoreFeaturesV2 are features included in the WebAssembly Core
// Specification 2.0.
const CoreFeaturesV2 = CoreFeaturesV1 |
	CoreFeatureSignExtensionOps |
	CoreFeatureMultiValue |
	CoreFeatureNonTrappingFloatToIntConversion |
	CoreFeatureBulkMemoryOperations |
	CoreFeatureReferenceTypes |
	CoreFeatureSIMD

// CoreFeaturesV3 additionally enables the proposals this runtime's "2.0/3.0"
// scope names in spec.md: multi-memory, threads, tail calls, exception
// handling, GC and custom page sizes.
const CoreFeaturesV3 = CoreFeaturesV2 |
	CoreFeatureMultiMemory |
	CoreFeatureThreads |
	CoreFeatureTailCall |
	CoreFeatureExceptionHandling |
	CoreFeatureGC |
	CoreFeatureCustomPageSizes

var allCoreFeatures = []struct {
	flag CoreFeatures
	name string
}{
	{CoreFeatureMutableGlobal, "mutable-global"},
	{CoreFeatureSignExtensionOps, "sign-extension-ops"},
	{CoreFeatureMultiValue, "multi-value"},
	{CoreFeatureNonTrappingFloatToIntConversion, "nontrapping-float-to-int-conversion"},
	{CoreFeatureBulkMemoryOperations, "bulk-memory-operations"},
	{CoreFeatureReferenceTypes, "reference-types"},
	{CoreFeatureSIMD, "simd"},
	{CoreFeatureMultiMemory, "multi-memory"},
	{CoreFeatureThreads, "threads"},
	{CoreFeatureTailCall, "tail-call"},
	{CoreFeatureExceptionHandling, "exception-handling"},
	{CoreFeatureGC, "gc"},
	{CoreFeatureCustomPageSizes, "custom-page-sizes"},
}

// IsEnabled returns true if the feature is enabled.
func (f CoreFeatures) IsEnabled(feature CoreFeatures) bool {
	return f&feature != 0
}

// SetEnabled returns a copy of f with the feature set per the enabled flag.
// Setting bit zero (an invalid flag, since iota starts at 1) is a no-op.
func (f CoreFeatures) SetEnabled(feature CoreFeatures, enabled bool) CoreFeatures {
	if enabled {
		return f | feature
	}
	return f &^ feature
}

// RequireEnabled returns an error if a feature isn't enabled.
func (f CoreFeatures) RequireEnabled(feature CoreFeatures) error {
	if f&feature == 0 {
		for _, c := range allCoreFeatures {
			if c.flag == feature {
				return fmt.Errorf("feature %q is disabled", c.name)
			}
		}
		return fmt.Errorf("feature %#x is disabled", uint64(feature))
	}
	return nil
}

// String implements fmt.Stringer by listing enabled feature names, sorted
// and pipe-delimited.
func (f CoreFeatures) String() string {
	var names []string
	for _, c := range allCoreFeatures {
		if f.IsEnabled(c.flag) {
			names = append(names, c.name)
		}
	}
	sort.Strings(names)
	return strings.Join(names, "|")
}
