package wasi_snapshot_preview1

import (
	"context"

	"github.com/wazerow/wazerow/api"
)

// randomGet is the WASI random_get function, filling buf with bufLen bytes
// drawn from the instance's SysContext.RandSource. It returns ErrnoFault
// when RandSource is nil; the root package's ModuleConfig has no option
// that sets it.
func randomGet(ctx context.Context, mod api.Module, buf, bufLen uint32) uint32 {
	_, sys, ok := fdTableFor(mod)
	if !ok || sys.RandSource == nil {
		return ErrnoFault
	}

	b := make([]byte, bufLen)
	if _, err := sys.RandSource.Read(b); err != nil {
		return ErrnoIo
	}
	if !mod.Memory().Write(ctx, buf, b) {
		return ErrnoFault
	}
	return ErrnoSuccess
}
