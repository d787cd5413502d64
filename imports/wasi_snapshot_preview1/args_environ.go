package wasi_snapshot_preview1

import (
	"context"

	"github.com/wazerow/wazerow/api"
)

// writeStrings packs a NUL-terminated string array into guest memory at
// argvBuf, and its little-endian offsets into argv. Returns ErrnoFault if
// either region doesn't fit.
func writeStrings(ctx context.Context, mod api.Module, values []string, argv, argvBuf uint32) Errno {
	mem := mod.Memory()
	buf := argvBuf
	for i, v := range values {
		if !mem.WriteUint32Le(ctx, argv+uint32(i*4), buf) {
			return ErrnoFault
		}
		if !mem.Write(ctx, buf, append([]byte(v), 0)) {
			return ErrnoFault
		}
		buf += uint32(len(v)) + 1
	}
	return ErrnoSuccess
}

func sizesOf(values []string) (count, bufLen uint32) {
	count = uint32(len(values))
	for _, v := range values {
		bufLen += uint32(len(v)) + 1
	}
	return
}

// argsSizesGet is the WASI args_sizes_get function.
func argsSizesGet(ctx context.Context, mod api.Module, argcPtr, argvBufSizePtr uint32) uint32 {
	_, sys, ok := fdTableFor(mod)
	if !ok {
		return ErrnoFault
	}
	count, bufLen := sizesOf(sys.Args)
	mem := mod.Memory()
	if !mem.WriteUint32Le(ctx, argcPtr, count) || !mem.WriteUint32Le(ctx, argvBufSizePtr, bufLen) {
		return ErrnoFault
	}
	return ErrnoSuccess
}

// argsGet is the WASI args_get function.
func argsGet(ctx context.Context, mod api.Module, argv, argvBuf uint32) uint32 {
	_, sys, ok := fdTableFor(mod)
	if !ok {
		return ErrnoFault
	}
	return writeStrings(ctx, mod, sys.Args, argv, argvBuf)
}

// environSizesGet is the WASI environ_sizes_get function.
func environSizesGet(ctx context.Context, mod api.Module, countPtr, bufLenPtr uint32) uint32 {
	_, sys, ok := fdTableFor(mod)
	if !ok {
		return ErrnoFault
	}
	count, bufLen := sizesOf(sys.Environ)
	mem := mod.Memory()
	if !mem.WriteUint32Le(ctx, countPtr, count) || !mem.WriteUint32Le(ctx, bufLenPtr, bufLen) {
		return ErrnoFault
	}
	return ErrnoSuccess
}

// environGet is the WASI environ_get function.
func environGet(ctx context.Context, mod api.Module, environ, environBuf uint32) uint32 {
	_, sys, ok := fdTableFor(mod)
	if !ok {
		return ErrnoFault
	}
	return writeStrings(ctx, mod, sys.Environ, environ, environBuf)
}
