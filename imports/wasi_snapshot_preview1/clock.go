package wasi_snapshot_preview1

import (
	"context"
	"time"

	"github.com/wazerow/wazerow/api"
)

// Clock IDs, per the WASI snapshot-01 clockid_t enum. Only realtime and
// monotonic are meaningful without a real OS process clock, which this
// runtime does not model.
const (
	clockIDRealtime  = 0
	clockIDMonotonic = 1
)

// clockResGet is the WASI clock_res_get function: reports 1 nanosecond
// resolution for either clock this runtime supports.
func clockResGet(ctx context.Context, mod api.Module, id uint32, resultPtr uint32) uint32 {
	if id != clockIDRealtime && id != clockIDMonotonic {
		return ErrnoInval
	}
	if !mod.Memory().WriteUint64Le(ctx, resultPtr, 1) {
		return ErrnoFault
	}
	return ErrnoSuccess
}

// clockTimeGet is the WASI clock_time_get function: writes nanoseconds
// since the Unix epoch (realtime), or SysContext.Nanotime's reading
// (monotonic), which falls back to nanoseconds since the Unix epoch when
// Nanotime is nil.
func clockTimeGet(ctx context.Context, mod api.Module, id uint32, _ uint64, resultPtr uint32) uint32 {
	_, sys, ok := fdTableFor(mod)
	if !ok {
		return ErrnoFault
	}

	var nanos uint64
	switch id {
	case clockIDRealtime:
		if sys.Walltime != nil {
			sec, nsec := sys.Walltime()
			nanos = uint64(sec)*uint64(time.Second) + uint64(nsec)
		} else {
			now := time.Now()
			nanos = uint64(now.Unix())*uint64(time.Second) + uint64(now.Nanosecond())
		}
	case clockIDMonotonic:
		if sys.Nanotime != nil {
			nanos = uint64(sys.Nanotime())
		} else {
			nanos = uint64(time.Now().UnixNano())
		}
	default:
		return ErrnoInval
	}

	if !mod.Memory().WriteUint64Le(ctx, resultPtr, nanos) {
		return ErrnoFault
	}
	return ErrnoSuccess
}
