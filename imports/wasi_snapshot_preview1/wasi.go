package wasi_snapshot_preview1

import (
	"context"

	"github.com/wazerow/wazerow"
	"github.com/wazerow/wazerow/api"
)

// ModuleName is the name of the host module defined by this package, which
// matches the guest-side import module name used by WASI-targeting
// toolchains (e.g. wasi-libc, Rust's wasm32-wasip1 target).
const ModuleName = "wasi_snapshot_preview1"

// Instantiate builds and instantiates a host module implementing the
// condensed wasi_snapshot_preview1 surface this runtime supports: args,
// environ, clocks, random, a sandboxed filesystem view rooted at a single
// preopen, and process exit. Call this once per Runtime, before
// instantiating any guest module that imports "wasi_snapshot_preview1".
func Instantiate(ctx context.Context, r wazero.Runtime) (api.Module, error) {
	return NewBuilder(r).Instantiate(ctx)
}

// NewBuilder returns a HostModuleBuilder for wasi_snapshot_preview1, letting
// callers Compile it (e.g. to share across several runtimes via a Cache)
// rather than Instantiate it directly.
func NewBuilder(r wazero.Runtime) wazero.HostModuleBuilder {
	b := r.NewHostModuleBuilder(ModuleName)

	exportFn(b, "args_get", argsGet, "argv", "argv_buf")
	exportFn(b, "args_sizes_get", argsSizesGet, "argc", "argv_buf_size")
	exportFn(b, "environ_get", environGet, "environ", "environ_buf")
	exportFn(b, "environ_sizes_get", environSizesGet, "environc", "environ_buf_size")

	exportFn(b, "clock_res_get", clockResGet, "id", "result.resolution")
	exportFn(b, "clock_time_get", clockTimeGet, "id", "precision", "result.timestamp")

	exportFn(b, "random_get", randomGet, "buf", "buf_len")

	exportFn(b, "fd_write", fdWrite, "fd", "iovs", "iovs_len", "result.nwritten")
	exportFn(b, "fd_read", fdRead, "fd", "iovs", "iovs_len", "result.nread")
	exportFn(b, "fd_close", fdClose, "fd")
	exportFn(b, "fd_seek", fdSeek, "fd", "offset", "whence", "result.newoffset")
	exportFn(b, "fd_fdstat_get", fdFdstatGet, "fd", "result.stat")
	exportFn(b, "fd_prestat_get", fdPrestatGet, "fd", "result.prestat")
	exportFn(b, "fd_prestat_dir_name", fdPrestatDirName, "fd", "path", "path_len")
	exportFn(b, "path_open", pathOpen, "fd", "dirflags", "path", "path_len", "oflags",
		"fs_rights_base", "fs_rights_inheriting", "fdflags", "result.opened_fd")

	exportVoidFn(b, "proc_exit", procExit, "rval")

	return b
}

// exportFn registers fn (a Go func returning Errno, taking a leading
// context.Context and api.Module) as a WASI export, annotating its
// parameter names for introspection tools.
func exportFn(b wazero.HostModuleBuilder, exportName string, fn interface{}, paramNames ...string) {
	b.NewFunctionBuilder().
		WithFunc(fn).
		WithParameterNames(paramNames...).
		WithResultNames("errno").
		Export(exportName)
}

// exportVoidFn is exportFn for WASI functions that never return to the
// guest, e.g. proc_exit.
func exportVoidFn(b wazero.HostModuleBuilder, exportName string, fn interface{}, paramNames ...string) {
	b.NewFunctionBuilder().
		WithFunc(fn).
		WithParameterNames(paramNames...).
		Export(exportName)
}
