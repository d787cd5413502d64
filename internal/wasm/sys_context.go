package wasm

import "io"

// SysContext carries the host-facing resources a ModuleInstance sees:
// standard streams, arguments, environment, and a virtual filesystem view
// for imports/wasi_snapshot_preview1 to read from. It is the internal
// counterpart of the root package's embedder-facing ModuleConfig, built
// once at instantiation time.
type SysContext struct {
	Args       []string
	Environ    []string
	Stdin      io.Reader
	Stdout     io.Writer
	Stderr     io.Writer
	FS         FS
	RandSource io.Reader
	Walltime   func() (sec int64, nsec int32)
	Nanotime   func() int64
}

// FS is the minimal filesystem capability surface wasi_snapshot_preview1
// needs: named, sandboxed file access rooted at a single guest-visible
// directory tree. A nil FS means no filesystem capability is granted, and
// path_open returns ErrnoNotsup.
type FS interface {
	OpenFile(name string, flags int, perm uint32) (File, error)
}

// File is the minimal per-descriptor surface wasi_snapshot_preview1 needs.
type File interface {
	io.Reader
	io.Writer
	io.Closer
	io.Seeker
	Readdirnames(n int) ([]string, error)
	Stat() (size int64, isDir bool, err error)
}

// ModuleConfig is the internal, already-resolved shape of an instantiation
// request: name plus a SysContext. The root package's exported
// ModuleConfig builder produces one of these right before calling
// Store.Instantiate.
type ModuleConfig struct {
	Name string
	Sys  *SysContext
}
