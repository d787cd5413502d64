package wasm

import (
	"context"
	"sync/atomic"

	"github.com/wazerow/wazerow/api"
)

// GlobalInstance is a global's runtime state. Val holds the raw encoded
// value (see api's Encode*/Decode* helpers); ValHi holds the upper 64 bits
// for a v128 global.
type GlobalInstance struct {
	DeclaredType GlobalType
	Val, ValHi   uint64
}

// Type implements api.Global.
func (g *GlobalInstance) Type() api.ValueType { return g.DeclaredType.ValType }

// Get implements api.Global.
func (g *GlobalInstance) Get(context.Context) uint64 {
	return atomic.LoadUint64(&g.Val)
}

// Set implements api.MutableGlobal.
func (g *GlobalInstance) Set(_ context.Context, v uint64) {
	atomic.StoreUint64(&g.Val, v)
}

// String implements fmt.Stringer.
func (g *GlobalInstance) String() string {
	return api.ValueTypeName(g.DeclaredType.ValType)
}

var (
	_ api.Global        = (*GlobalInstance)(nil)
	_ api.MutableGlobal = (*GlobalInstance)(nil)
)
