package wasm

import "github.com/wazerow/wazerow/api"

// Features is the set of WebAssembly proposals enabled for a Store. It is
// an alias of api.CoreFeatures so the embedder-facing and internal
// vocabularies stay identical.
type Features = api.CoreFeatures

const (
	FeaturesV1 = api.CoreFeaturesV1
	FeaturesV2 = api.CoreFeaturesV2
	FeaturesV3 = api.CoreFeaturesV3
)
